// Package selector implements the discovery/enqueue pass: scanning the
// content mirror for rows that meet
// gap/upgrade criteria and admitting them into the search registry's
// pending state, then queuing the ones eligible right now.
package selector

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"comradarr/internal/domain"
	"comradarr/internal/service/registry"
)

// Service runs the discovery pass for one connector at a time.
type Service struct {
	content     domain.ContentRepository
	registry    domain.RegistryRepository
	registrySvc *registry.Service
	scanLimit   int
	now         func() time.Time
	entropy     func() *ulid.MonotonicEntropy
}

// New constructs a selector Service. scanLimit bounds how many candidates
// are pulled from the content mirror per connector per pass.
func New(content domain.ContentRepository, registryRepo domain.RegistryRepository, registrySvc *registry.Service, scanLimit int) *Service {
	source := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec // ULID entropy, not security-sensitive.
	entropy := ulid.Monotonic(source, 0)
	return &Service{
		content:     content,
		registry:    registryRepo,
		registrySvc: registrySvc,
		scanLimit:   scanLimit,
		now:         time.Now,
		entropy:     func() *ulid.MonotonicEntropy { return entropy },
	}
}

// WithClock overrides the service's now function, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Result summarizes one connector's discovery pass.
type Result struct {
	Scanned int
	Enqueued int
}

// Run scans connectorID's content mirror for gap/upgrade candidates,
// materializes (or reuses) their registry row, and enqueues every row that
// is pending and eligible right now (nextEligible null or already past).
// A fresh row is always eligible immediately since nextEligible starts
// nil.
func (s *Service) Run(ctx domain.Context, connectorID int64) (Result, error) {
	var result Result

	candidates, err := s.content.ListSearchCandidates(ctx, connectorID, s.scanLimit)
	if err != nil {
		return result, fmt.Errorf("op=selector.run.listCandidates: %w", err)
	}
	result.Scanned = len(candidates)

	now := s.now()
	batchID := s.newBatchID()

	for _, c := range candidates {
		row, err := s.registry.GetOrCreate(ctx, connectorID, c.ContentType, c.ContentID, c.SearchType, now)
		if err != nil {
			return result, fmt.Errorf("op=selector.run.getOrCreate: %w", err)
		}
		if row.State != domain.RegistryPending {
			continue
		}
		if row.NextEligible != nil && row.NextEligible.After(now) {
			continue
		}

		if err := s.registrySvc.Enqueue(ctx, row, c.CurrentlyAiring, batchID); err != nil {
			return result, fmt.Errorf("op=selector.run.enqueue: %w", err)
		}
		result.Enqueued++
	}

	return result, nil
}

func (s *Service) newBatchID() string {
	id, err := ulid.New(ulid.Timestamp(s.now()), s.entropy())
	if err != nil {
		return ulid.MustNew(ulid.Timestamp(s.now()), ulid.DefaultEntropy()).String()
	}
	return id.String()
}
