package postgres

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// SyncRepo persists per-connector sync/reconnect state.
type SyncRepo struct{ Pool PgxPool }

// NewSyncRepo constructs a SyncRepo with the given pool.
func NewSyncRepo(p PgxPool) *SyncRepo { return &SyncRepo{Pool: p} }

func (r *SyncRepo) span(ctx domain.Context, op, sqlOp string) (domain.Context, func()) {
	tracer := otel.Tracer("repo.sync")
	ctx, span := tracer.Start(ctx, "sync."+op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", sqlOp),
		attribute.String("db.sql.table", "sync_state"),
	)
	return ctx, func() { span.End() }
}

const syncColumns = `connector_id, last_sync, consecutive_failures, reconnect_attempts,
	next_reconnect_at, reconnect_started_at, last_reconnect_error, reconnect_paused`

func scanSyncState(row pgx.Row) (domain.SyncState, error) {
	var s domain.SyncState
	err := row.Scan(&s.ConnectorID, &s.LastSync, &s.ConsecutiveFailures, &s.ReconnectAttempts,
		&s.NextReconnectAt, &s.ReconnectStartedAt, &s.LastReconnectError, &s.ReconnectPaused)
	return s, err
}

// Get returns the SyncState for connectorID, creating a zero-value row if
// absent.
func (r *SyncRepo) Get(ctx domain.Context, connectorID int64) (domain.SyncState, error) {
	ctx, end := r.span(ctx, "Get", "INSERT")
	defer end()

	q := fmt.Sprintf(`
		INSERT INTO sync_state (connector_id, consecutive_failures, reconnect_attempts, reconnect_paused, last_reconnect_error)
		VALUES ($1, 0, 0, false, '')
		ON CONFLICT (connector_id) DO UPDATE SET connector_id = sync_state.connector_id
		RETURNING %s
	`, syncColumns)
	state, err := scanSyncState(r.Pool.QueryRow(ctx, q, connectorID))
	if err != nil {
		return domain.SyncState{}, fmt.Errorf("op=sync.get: %w", err)
	}
	return state, nil
}

// Update persists the full SyncState row.
func (r *SyncRepo) Update(ctx domain.Context, state domain.SyncState) error {
	ctx, end := r.span(ctx, "Update", "UPDATE")
	defer end()

	const q = `
		UPDATE sync_state
		SET last_sync = $2, consecutive_failures = $3, reconnect_attempts = $4,
		    next_reconnect_at = $5, reconnect_started_at = $6, last_reconnect_error = $7,
		    reconnect_paused = $8
		WHERE connector_id = $1
	`
	_, err := r.Pool.Exec(ctx, q, state.ConnectorID, state.LastSync, state.ConsecutiveFailures,
		state.ReconnectAttempts, state.NextReconnectAt, state.ReconnectStartedAt,
		state.LastReconnectError, state.ReconnectPaused)
	if err != nil {
		return fmt.Errorf("op=sync.update: %w", err)
	}
	return nil
}

// SelectReconnectDue returns connectors with reconnectPaused=false,
// nextReconnectAt set and <= now.
func (r *SyncRepo) SelectReconnectDue(ctx domain.Context, now time.Time) ([]domain.SyncState, error) {
	ctx, end := r.span(ctx, "SelectReconnectDue", "SELECT")
	defer end()

	q := fmt.Sprintf(`
		SELECT %s FROM sync_state
		WHERE reconnect_paused = false AND next_reconnect_at IS NOT NULL AND next_reconnect_at <= $1
		ORDER BY next_reconnect_at ASC
	`, syncColumns)
	rows, err := r.Pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("op=sync.selectReconnectDue: %w", err)
	}
	defer rows.Close()

	var out []domain.SyncState
	for rows.Next() {
		s, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("op=sync.selectReconnectDue.scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=sync.selectReconnectDue.rows: %w", err)
	}
	return out, nil
}
