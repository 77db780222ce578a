package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// RegistryRepo persists SearchRegistry rows and their RequestQueue
// counterparts.
type RegistryRepo struct{ Pool PgxPool }

// NewRegistryRepo constructs a RegistryRepo with the given pool.
func NewRegistryRepo(p PgxPool) *RegistryRepo { return &RegistryRepo{Pool: p} }

func (r *RegistryRepo) span(ctx domain.Context, op, sqlOp string) (domain.Context, func()) {
	tracer := otel.Tracer("repo.registry")
	ctx, span := tracer.Start(ctx, "registry."+op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", sqlOp),
		attribute.String("db.sql.table", "search_registry"),
	)
	return ctx, func() { span.End() }
}

const registryColumns = `id, connector_id, content_type, content_id, search_type, state,
	attempt_count, last_searched, next_eligible, failure_category, season_pack_failed,
	backlog_tier, priority, first_discovered`

func scanSearchRegistry(row pgx.Row) (domain.SearchRegistry, error) {
	var sr domain.SearchRegistry
	err := row.Scan(&sr.ID, &sr.ConnectorID, &sr.ContentType, &sr.ContentID, &sr.SearchType, &sr.State,
		&sr.AttemptCount, &sr.LastSearched, &sr.NextEligible, &sr.FailureCategory, &sr.SeasonPackFailed,
		&sr.BacklogTier, &sr.Priority, &sr.FirstDiscovered)
	return sr, err
}

// Get returns a registry row by id.
func (r *RegistryRepo) Get(ctx domain.Context, id int64) (domain.SearchRegistry, error) {
	ctx, end := r.span(ctx, "Get", "SELECT")
	defer end()

	q := fmt.Sprintf(`SELECT %s FROM search_registry WHERE id = $1`, registryColumns)
	sr, err := scanSearchRegistry(r.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SearchRegistry{}, fmt.Errorf("op=registry.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.SearchRegistry{}, fmt.Errorf("op=registry.get: %w", err)
	}
	return sr, nil
}

// GetByContent returns the registry row for (connectorID, contentType,
// contentID), if any.
func (r *RegistryRepo) GetByContent(ctx domain.Context, connectorID int64, contentType domain.ContentType, contentID int64) (*domain.SearchRegistry, error) {
	ctx, end := r.span(ctx, "GetByContent", "SELECT")
	defer end()

	q := fmt.Sprintf(`SELECT %s FROM search_registry WHERE connector_id = $1 AND content_type = $2 AND content_id = $3`, registryColumns)
	sr, err := scanSearchRegistry(r.Pool.QueryRow(ctx, q, connectorID, contentType, contentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("op=registry.getByContent: %w", err)
	}
	return &sr, nil
}

// Enqueue transitions a pending-eligible row to queued and inserts the
// matching RequestQueue row, atomically.
func (r *RegistryRepo) Enqueue(ctx domain.Context, registryID int64, priority int, now time.Time, batchID string) error {
	ctx, end := r.span(ctx, "Enqueue", "UPDATE")
	defer end()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("op=registry.enqueue.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const updateQ = `
		UPDATE search_registry SET state = 'queued', priority = $2
		WHERE id = $1 AND state = 'pending'
		RETURNING connector_id
	`
	var connectorID int64
	if err := tx.QueryRow(ctx, updateQ, registryID, priority).Scan(&connectorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("op=registry.enqueue: %w", domain.ErrConflict)
		}
		return fmt.Errorf("op=registry.enqueue.update: %w", err)
	}

	const insertQ = `
		INSERT INTO request_queue (registry_id, connector_id, priority, scheduled_at, batch_id)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insertQ, registryID, connectorID, priority, now, batchID); err != nil {
		return fmt.Errorf("op=registry.enqueue.insertQueue: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=registry.enqueue.commit: %w", err)
	}
	return nil
}

// SelectEligible returns pending/queued rows for connectorID where
// nextEligible <= now, ordered priority DESC, scheduledAt ASC, id ASC.
func (r *RegistryRepo) SelectEligible(ctx domain.Context, connectorID int64, now time.Time, limit int) ([]domain.SearchRegistry, error) {
	ctx, end := r.span(ctx, "SelectEligible", "SELECT")
	defer end()

	q := fmt.Sprintf(`
		SELECT %s FROM search_registry
		WHERE connector_id = $1
		  AND state IN ('pending', 'queued')
		  AND (next_eligible IS NULL OR next_eligible <= $2)
		ORDER BY priority DESC,
		  (SELECT MIN(rq.scheduled_at) FROM request_queue rq WHERE rq.registry_id = search_registry.id) ASC NULLS LAST,
		  id ASC
		LIMIT $3
	`, registryColumns)
	rows, err := r.Pool.Query(ctx, q, connectorID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("op=registry.selectEligible: %w", err)
	}
	defer rows.Close()

	var out []domain.SearchRegistry
	for rows.Next() {
		sr, err := scanSearchRegistry(rows)
		if err != nil {
			return nil, fmt.Errorf("op=registry.selectEligible.scan: %w", err)
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=registry.selectEligible.rows: %w", err)
	}
	return out, nil
}

// PickNext claims the next queued RequestQueue row for connectorID using
// SELECT ... FOR UPDATE SKIP LOCKED semantics, transitioning the registry
// row to searching.
func (r *RegistryRepo) PickNext(ctx domain.Context, connectorID int64, now time.Time) (domain.SearchRegistry, bool, error) {
	ctx, end := r.span(ctx, "PickNext", "UPDATE")
	defer end()

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.SearchRegistry{}, false, fmt.Errorf("op=registry.pickNext.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const claimQ = `
		SELECT rq.registry_id
		FROM request_queue rq
		JOIN search_registry sr ON sr.id = rq.registry_id
		WHERE rq.connector_id = $1 AND sr.state = 'queued'
		ORDER BY rq.priority DESC, rq.scheduled_at ASC, rq.id ASC
		FOR UPDATE OF rq SKIP LOCKED
		LIMIT 1
	`
	var registryID int64
	err = tx.QueryRow(ctx, claimQ, connectorID).Scan(&registryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SearchRegistry{}, false, nil
	}
	if err != nil {
		return domain.SearchRegistry{}, false, fmt.Errorf("op=registry.pickNext.claim: %w", err)
	}

	updateQ := fmt.Sprintf(`
		UPDATE search_registry
		SET state = 'searching', attempt_count = attempt_count + 1, last_searched = $2
		WHERE id = $1
		RETURNING %s
	`, registryColumns)
	sr, err := scanSearchRegistry(tx.QueryRow(ctx, updateQ, registryID, now))
	if err != nil {
		return domain.SearchRegistry{}, false, fmt.Errorf("op=registry.pickNext.update: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM request_queue WHERE registry_id = $1`, registryID); err != nil {
		return domain.SearchRegistry{}, false, fmt.Errorf("op=registry.pickNext.deleteQueue: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SearchRegistry{}, false, fmt.Errorf("op=registry.pickNext.commit: %w", err)
	}
	return sr, true, nil
}

// ClaimSearching transitions the given pending/queued rows to searching via
// a state-CAS, incrementing attempt_count, and consumes their request_queue
// rows in the same transaction. Rows a concurrent pass already claimed are
// skipped; only the rows claimed here are returned.
func (r *RegistryRepo) ClaimSearching(ctx domain.Context, registryIDs []int64, now time.Time) ([]domain.SearchRegistry, error) {
	ctx, end := r.span(ctx, "ClaimSearching", "UPDATE")
	defer end()

	if len(registryIDs) == 0 {
		return nil, nil
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("op=registry.claimSearching.begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	claimQ := fmt.Sprintf(`
		UPDATE search_registry
		SET state = 'searching', attempt_count = attempt_count + 1, last_searched = $2
		WHERE id = ANY($1) AND state IN ('pending', 'queued')
		RETURNING %s
	`, registryColumns)
	rows, err := tx.Query(ctx, claimQ, registryIDs, now)
	if err != nil {
		return nil, fmt.Errorf("op=registry.claimSearching.update: %w", err)
	}

	var claimed []domain.SearchRegistry
	for rows.Next() {
		sr, err := scanSearchRegistry(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("op=registry.claimSearching.scan: %w", err)
		}
		claimed = append(claimed, sr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=registry.claimSearching.rows: %w", err)
	}

	if len(claimed) > 0 {
		claimedIDs := make([]int64, len(claimed))
		for i, sr := range claimed {
			claimedIDs[i] = sr.ID
		}
		if _, err := tx.Exec(ctx, `DELETE FROM request_queue WHERE registry_id = ANY($1)`, claimedIDs); err != nil {
			return nil, fmt.Errorf("op=registry.claimSearching.deleteQueue: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=registry.claimSearching.commit: %w", err)
	}
	return claimed, nil
}

// ApplyOutcome records the side effects of a dispatch outcome on the
// registry row.
func (r *RegistryRepo) ApplyOutcome(ctx domain.Context, registryID int64, update domain.RegistryOutcomeUpdate) error {
	ctx, end := r.span(ctx, "ApplyOutcome", "UPDATE")
	defer end()

	const q = `
		UPDATE search_registry
		SET state = $2, attempt_count = $3, last_searched = $4, next_eligible = $5,
		    failure_category = $6, season_pack_failed = COALESCE($7, season_pack_failed),
		    backlog_tier = $8
		WHERE id = $1
	`
	_, err := r.Pool.Exec(ctx, q, registryID, update.State, update.AttemptCount, update.LastSearched,
		update.NextEligible, update.FailureCategory, update.SeasonPackFailed, update.BacklogTier)
	if err != nil {
		return fmt.Errorf("op=registry.applyOutcome: %w", err)
	}
	return nil
}

// ManualReset transitions an exhausted row back to pending.
func (r *RegistryRepo) ManualReset(ctx domain.Context, registryID int64) error {
	ctx, end := r.span(ctx, "ManualReset", "UPDATE")
	defer end()

	const q = `
		UPDATE search_registry
		SET state = 'pending', attempt_count = 0, backlog_tier = 0, next_eligible = NULL,
		    failure_category = '', season_pack_failed = false
		WHERE id = $1 AND state = 'exhausted'
	`
	tag, err := r.Pool.Exec(ctx, q, registryID)
	if err != nil {
		return fmt.Errorf("op=registry.manualReset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=registry.manualReset: %w", domain.ErrConflict)
	}
	return nil
}

// GetOrCreate returns the registry row for (connectorID, contentType,
// contentID), inserting a fresh pending row if none exists.
// The unique-by-composite-key upsert is idempotent against concurrent
// discovery passes racing on the same content item.
func (r *RegistryRepo) GetOrCreate(ctx domain.Context, connectorID int64, contentType domain.ContentType, contentID int64, searchType domain.SearchType, now time.Time) (domain.SearchRegistry, error) {
	ctx, end := r.span(ctx, "GetOrCreate", "INSERT")
	defer end()

	q := fmt.Sprintf(`
		INSERT INTO search_registry (connector_id, content_type, content_id, search_type, state,
			attempt_count, backlog_tier, priority, first_discovered)
		VALUES ($1, $2, $3, $4, 'pending', 0, 0, 0, $5)
		ON CONFLICT (connector_id, content_type, content_id) DO UPDATE
			SET search_type = search_registry.search_type
		RETURNING %s
	`, registryColumns)
	sr, err := scanSearchRegistry(r.Pool.QueryRow(ctx, q, connectorID, contentType, contentID, searchType, now))
	if err != nil {
		return domain.SearchRegistry{}, fmt.Errorf("op=registry.getOrCreate: %w", err)
	}
	return sr, nil
}
