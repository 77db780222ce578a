package dispatcher

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"comradarr/internal/adapter/observability"
	"comradarr/internal/domain"
	"comradarr/internal/service/registry"
	"comradarr/internal/service/throttle"
)

// Dispatcher orchestrates one connector's dispatch pass: select
// eligible registry rows, batch them, and execute each batch against the
// throttle gate and connector client, feeding outcomes back to the
// registry state machine.
type Dispatcher struct {
	registryRepo domain.RegistryRepository
	content      domain.ContentRepository
	enforcer     *throttle.Enforcer
	registrySvc  *registry.Service
	indexers     domain.IndexerHealthProvider
	limits       BatchingLimits
	selectLimit  int
	now          func() time.Time
}

// New constructs a Dispatcher. indexers may be nil (indexer-health
// lookups are then skipped entirely, never blocking a pass).
func New(
	registryRepo domain.RegistryRepository,
	content domain.ContentRepository,
	enforcer *throttle.Enforcer,
	registrySvc *registry.Service,
	indexers domain.IndexerHealthProvider,
	limits BatchingLimits,
	selectLimit int,
) *Dispatcher {
	return &Dispatcher{
		registryRepo: registryRepo,
		content:      content,
		enforcer:     enforcer,
		registrySvc:  registrySvc,
		indexers:     indexers,
		limits:       limits,
		selectLimit:  selectLimit,
		now:          time.Now,
	}
}

// WithClock overrides the dispatcher's now function, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// PassResult summarizes one connector's dispatch pass.
type PassResult struct {
	BatchesAttempted    int
	BatchesDispatched   int
	BatchesSkipped      int
	StoppedEarly        bool
	StopReason          throttle.DenyReason
	IndexersRateLimited bool
}

// Run executes a single dispatch pass for connectorID.
// client issues the outbound command; it is resolved by the caller (e.g.
// via a connector-kind factory) since it requires the connector's
// decrypted credentials.
func (d *Dispatcher) Run(ctx domain.Context, connectorID int64, client domain.ConnectorClient) (PassResult, error) {
	ctx, span := otel.Tracer("service.dispatcher").Start(ctx, "dispatcher.run",
		trace.WithAttributes(attribute.Int64("connector.id", connectorID)))
	defer span.End()

	label := strconv.FormatInt(connectorID, 10)
	started := time.Now()
	defer func() {
		observability.DispatchPassDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())
	}()

	var result PassResult
	now := d.now()

	if d.indexers != nil {
		if snap, err := d.indexers.Snapshot(ctx); err == nil {
			result.IndexersRateLimited = snap.AnyRateLimited
			if snap.AnyRateLimited {
				slog.Warn("indexer health snapshot reports rate-limited indexers, dispatching anyway",
					slog.Int64("connector_id", connectorID))
			}
		}
		// Indexer-health lookup is advisory only: any error is
		// swallowed and never blocks the pass.
	}

	rows, err := d.registryRepo.SelectEligible(ctx, connectorID, now, d.selectLimit)
	if err != nil {
		return result, fmt.Errorf("op=dispatcher.run.selectEligible: %w", err)
	}
	if len(rows) == 0 {
		return result, nil
	}

	status, err := d.enforcer.GetStatus(ctx, connectorID)
	if err != nil {
		return result, fmt.Errorf("op=dispatcher.run.getStatus: %w", err)
	}

	episodesByRegistry, moviesByRegistry, seasonsByKey, err := d.fetchContent(ctx, rows)
	if err != nil {
		return result, fmt.Errorf("op=dispatcher.run.fetchContent: %w", err)
	}

	batches, err := Prepare(rows, episodesByRegistry, moviesByRegistry, seasonsByKey, status.Profile.BatchSize, d.limits)
	if err != nil {
		return result, fmt.Errorf("op=dispatcher.run.prepare: %w", err)
	}

	for _, batch := range batches {
		result.BatchesAttempted++

		decision, err := d.enforcer.CanDispatch(ctx, connectorID)
		if err != nil {
			return result, fmt.Errorf("op=dispatcher.run.canDispatch: %w", err)
		}
		if !decision.Allowed {
			result.BatchesSkipped += len(batches) - result.BatchesAttempted + 1
			result.StoppedEarly = true
			result.StopReason = decision.Reason
			observability.RecordDispatchBatch(label, "skipped_"+string(decision.Reason))
			break
		}

		claimed, err := d.registryRepo.ClaimSearching(ctx, batch.RegistryIDs, now)
		if err != nil {
			return result, fmt.Errorf("op=dispatcher.run.claimSearching: %w", err)
		}
		if len(claimed) == 0 {
			// A concurrent pass claimed every row in this batch. The slot
			// already charged stays charged; slots are never refunded.
			result.BatchesSkipped++
			continue
		}

		resp, sendErr := client.SendSearch(ctx, batch.Command)
		if rErr := d.enforcer.RecordRequest(ctx, connectorID); rErr != nil {
			return result, fmt.Errorf("op=dispatcher.run.recordRequest: %w", rErr)
		}

		if sendErr != nil {
			d.applyFailureOutcome(ctx, connectorID, batch, claimed, sendErr)
			result.BatchesDispatched++
			observability.RecordDispatchBatch(label, "failed")
			continue
		}

		d.applySuccessOutcome(ctx, batch, claimed, resp)
		result.BatchesDispatched++
		observability.RecordDispatchBatch(label, "dispatched")
	}

	return result, nil
}

func (d *Dispatcher) fetchContent(ctx domain.Context, rows []domain.SearchRegistry) (
	map[int64]domain.Episode, map[int64]domain.Movie, map[seasonKey]domain.Season, error,
) {
	episodesByRegistry := map[int64]domain.Episode{}
	moviesByRegistry := map[int64]domain.Movie{}
	seasonsByKey := map[seasonKey]domain.Season{}

	for _, row := range rows {
		switch row.ContentType {
		case domain.ContentEpisode:
			ep, err := d.content.GetEpisode(ctx, row.ContentID)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op=dispatcher.fetchContent.getEpisode: %w", err)
			}
			episodesByRegistry[row.ID] = ep
			key := seasonKey{seriesID: ep.SeriesID, seasonNumber: ep.SeasonNumber}
			if _, ok := seasonsByKey[key]; !ok {
				season, err := d.content.GetSeason(ctx, ep.SeriesID, ep.SeasonNumber)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("op=dispatcher.fetchContent.getSeason: %w", err)
				}
				seasonsByKey[key] = season
			}
		case domain.ContentMovie:
			m, err := d.content.GetMovie(ctx, row.ContentID)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("op=dispatcher.fetchContent.getMovie: %w", err)
			}
			moviesByRegistry[row.ID] = m
		}
	}

	return episodesByRegistry, moviesByRegistry, seasonsByKey, nil
}

func (d *Dispatcher) applySuccessOutcome(ctx domain.Context, batch PreparedBatch, claimed []domain.SearchRegistry, resp domain.CommandResponse) {
	success := resp.Status != "noResults" && resp.Status != "failed"
	category := domain.FailureNone
	if !success {
		category = domain.FailureNoResults
	}
	for _, row := range claimed {
		metadata := map[string]any{"commandId": resp.ID, "commandName": resp.Name}
		if batch.Reason != "" {
			metadata["batchReason"] = batch.Reason
		}
		err := d.registrySvc.Outcome(ctx, registry.OutcomeInput{
			Registry:           row,
			Success:            success,
			Category:           category,
			IsSeasonPackSearch: batch.IsSeasonPackSearch,
			HistoryMetadata:    metadata,
		})
		if err != nil {
			slog.Error("recording dispatch outcome failed, registry row left in searching",
				slog.Int64("registry_id", row.ID), slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) applyFailureOutcome(ctx domain.Context, connectorID int64, batch PreparedBatch, claimed []domain.SearchRegistry, sendErr error) {
	category := domain.FailureNetwork
	var pausedUntil *time.Time

	if upErr, ok := domain.AsUpstreamError(sendErr); ok {
		switch upErr.Category {
		case domain.CategoryAuthentication:
			category = domain.FailureAuthentication
		case domain.CategoryServer:
			category = domain.FailureServer
		case domain.CategoryTimeout:
			category = domain.FailureTimeout
		case domain.CategorySSL:
			category = domain.FailureSSL
		case domain.CategoryRateLimit:
			category = domain.FailureRateLimit
			retryAfter := upErr.RetryAfterSeconds
			if until, err := d.enforcer.HandleRateLimitResponse(ctx, connectorID, &retryAfter); err == nil {
				pausedUntil = &until
			}
		default:
			category = domain.FailureNetwork
		}
	}

	for _, row := range claimed {
		metadata := map[string]any{"error": sendErr.Error()}
		if batch.Reason != "" {
			metadata["batchReason"] = batch.Reason
		}
		err := d.registrySvc.Outcome(ctx, registry.OutcomeInput{
			Registry:             row,
			Success:              false,
			Category:             category,
			IsSeasonPackSearch:   batch.IsSeasonPackSearch,
			ConnectorPausedUntil: pausedUntil,
			HistoryMetadata:      metadata,
		})
		if err != nil {
			slog.Error("recording dispatch outcome failed, registry row left in searching",
				slog.Int64("registry_id", row.ID), slog.Any("error", err))
		}
	}
}
