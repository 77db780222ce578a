package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// ConnectorRepo persists Connector rows.
type ConnectorRepo struct{ Pool PgxPool }

// NewConnectorRepo constructs a ConnectorRepo with the given pool.
func NewConnectorRepo(p PgxPool) *ConnectorRepo { return &ConnectorRepo{Pool: p} }

func (r *ConnectorRepo) span(ctx domain.Context, op, sqlOp string) (domain.Context, func()) {
	tracer := otel.Tracer("repo.connector")
	ctx, span := tracer.Start(ctx, "connector."+op)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", sqlOp),
		attribute.String("db.sql.table", "connectors"),
	)
	return ctx, func() { span.End() }
}

const connectorColumns = `id, kind, name, base_url, encrypted_api_key, enabled, health,
	queue_paused, throttle_profile_id, created_at, updated_at`

func scanConnector(row pgx.Row) (domain.Connector, error) {
	var c domain.Connector
	err := row.Scan(&c.ID, &c.Kind, &c.Name, &c.BaseURL, &c.EncryptedAPIKey, &c.Enabled, &c.Health,
		&c.QueuePaused, &c.ThrottleProfileID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Get returns a connector by id.
func (r *ConnectorRepo) Get(ctx domain.Context, id int64) (domain.Connector, error) {
	ctx, end := r.span(ctx, "Get", "SELECT")
	defer end()

	q := fmt.Sprintf(`SELECT %s FROM connectors WHERE id = $1`, connectorColumns)
	c, err := scanConnector(r.Pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Connector{}, fmt.Errorf("op=connector.get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Connector{}, fmt.Errorf("op=connector.get: %w", err)
	}
	return c, nil
}

// List returns every connector.
func (r *ConnectorRepo) List(ctx domain.Context) ([]domain.Connector, error) {
	ctx, end := r.span(ctx, "List", "SELECT")
	defer end()

	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM connectors ORDER BY id ASC`, connectorColumns))
}

// ListDispatchable returns enabled, non-queue-paused, non-offline
// connectors eligible for a dispatch pass.
func (r *ConnectorRepo) ListDispatchable(ctx domain.Context) ([]domain.Connector, error) {
	ctx, end := r.span(ctx, "ListDispatchable", "SELECT")
	defer end()

	q := fmt.Sprintf(`
		SELECT %s FROM connectors
		WHERE enabled = true AND queue_paused = false AND health != 'offline'
		ORDER BY id ASC
	`, connectorColumns)
	return r.query(ctx, q)
}

func (r *ConnectorRepo) query(ctx domain.Context, q string, args ...any) ([]domain.Connector, error) {
	rows, err := r.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("op=connector.query: %w", err)
	}
	defer rows.Close()

	var out []domain.Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("op=connector.query.scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=connector.query.rows: %w", err)
	}
	return out, nil
}

// UpdateHealth updates a connector's health.
func (r *ConnectorRepo) UpdateHealth(ctx domain.Context, connectorID int64, health domain.ConnectorHealth) error {
	ctx, end := r.span(ctx, "UpdateHealth", "UPDATE")
	defer end()

	const q = `UPDATE connectors SET health = $2, updated_at = now() WHERE id = $1`
	if _, err := r.Pool.Exec(ctx, q, connectorID, health); err != nil {
		return fmt.Errorf("op=connector.updateHealth: %w", err)
	}
	return nil
}

// SetQueuePaused toggles a connector's dispatch-pause flag.
func (r *ConnectorRepo) SetQueuePaused(ctx domain.Context, connectorID int64, paused bool) error {
	ctx, end := r.span(ctx, "SetQueuePaused", "UPDATE")
	defer end()

	const q = `UPDATE connectors SET queue_paused = $2, updated_at = now() WHERE id = $1`
	if _, err := r.Pool.Exec(ctx, q, connectorID, paused); err != nil {
		return fmt.Errorf("op=connector.setQueuePaused: %w", err)
	}
	return nil
}
