package registry

import (
	"fmt"
	"time"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/domain"
)

// Service orchestrates the search registry state machine against the
// persistence ports, applying the pure decision functions in this
// package.
type Service struct {
	repo          domain.RegistryRepository
	history       domain.HistoryRepository
	cooldownTiers []time.Duration
	maxAttempts   int
	errorCooldown time.Duration
	now           func() time.Time
}

// NewService constructs a registry Service.
func NewService(repo domain.RegistryRepository, history domain.HistoryRepository, cooldownTiers []time.Duration, maxAttempts int, errorCooldown time.Duration) *Service {
	return &Service{
		repo:          repo,
		history:       history,
		cooldownTiers: cooldownTiers,
		maxAttempts:   maxAttempts,
		errorCooldown: errorCooldown,
		now:           time.Now,
	}
}

// WithClock overrides the service's now function, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Enqueue transitions a discovered gap/upgrade row from pending to
// queued, computing its priority score.
func (s *Service) Enqueue(ctx domain.Context, row domain.SearchRegistry, currentlyAiring bool, batchID string) error {
	now := s.now()
	priority := ComputePriority(PriorityInputs{
		FirstDiscovered: row.FirstDiscovered,
		Now:             now,
		SearchType:      row.SearchType,
		CurrentlyAiring: currentlyAiring,
		AttemptCount:    row.AttemptCount,
	})
	if err := s.repo.Enqueue(ctx, row.ID, priority, now, batchID); err != nil {
		return fmt.Errorf("op=registry.enqueue: %w", err)
	}
	return nil
}

// Pick claims the next eligible RequestQueue row for connectorID in
// priority order.
func (s *Service) Pick(ctx domain.Context, connectorID int64) (domain.SearchRegistry, bool, error) {
	row, ok, err := s.repo.PickNext(ctx, connectorID, s.now())
	if err != nil {
		return domain.SearchRegistry{}, false, fmt.Errorf("op=registry.pick: %w", err)
	}
	return row, ok, nil
}

// OutcomeInput bundles the information Outcome needs beyond what's already
// on the registry row.
type OutcomeInput struct {
	Registry             domain.SearchRegistry
	Success              bool
	Category             domain.FailureCategory
	IsSeasonPackSearch   bool
	ConnectorPausedUntil *time.Time
	HistoryMetadata      map[string]any
}

// Outcome applies a dispatch outcome to the registry row, writes the
// corresponding history row (leaving searching always writes history),
// and persists the resulting state.
func (s *Service) Outcome(ctx domain.Context, in OutcomeInput) error {
	now := s.now()

	update := DecideOutcome(OutcomeParams{
		Row:                  in.Registry,
		Now:                  now,
		Success:              in.Success,
		Category:             in.Category,
		IsSeasonPackSearch:   in.IsSeasonPackSearch,
		ConnectorPausedUntil: in.ConnectorPausedUntil,
		CooldownTiers:        s.cooldownTiers,
		MaxAttempts:          s.maxAttempts,
		ErrorCooldown:        s.errorCooldown,
	})

	if err := s.repo.ApplyOutcome(ctx, in.Registry.ID, update); err != nil {
		return fmt.Errorf("op=registry.outcome.apply: %w", err)
	}
	observability.RecordRegistryTransition(string(in.Registry.State), string(update.State))

	outcome := historyOutcomeFor(in.Success, in.Category)
	if err := s.history.Append(ctx, domain.SearchHistory{
		RegistryID:  in.Registry.ID,
		ConnectorID: in.Registry.ConnectorID,
		Outcome:     outcome,
		Category:    in.Category,
		Metadata:    in.HistoryMetadata,
		CreatedAt:   now,
	}); err != nil {
		return fmt.Errorf("op=registry.outcome.history: %w", err)
	}

	return nil
}

func historyOutcomeFor(success bool, category domain.FailureCategory) domain.HistoryOutcome {
	if success {
		return domain.OutcomeSuccess
	}
	switch category {
	case domain.FailureNoResults:
		return domain.OutcomeNoResults
	case domain.FailureTimeout:
		return domain.OutcomeTimeout
	default:
		return domain.OutcomeError
	}
}

// ManualReset transitions an exhausted row back to pending (operator
// action).
func (s *Service) ManualReset(ctx domain.Context, registryID int64) error {
	if err := s.repo.ManualReset(ctx, registryID); err != nil {
		return fmt.Errorf("op=registry.manualReset: %w", err)
	}
	return nil
}
