package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// QueueRepo reads RequestQueue rows. Inserts and deletes happen inside
// RegistryRepo's Enqueue/PickNext/ClaimSearching transactions, so this
// repo only serves observation: queue depth for the dispatch tick's gauge.
type QueueRepo struct{ Pool PgxPool }

// NewQueueRepo constructs a QueueRepo with the given pool.
func NewQueueRepo(p PgxPool) *QueueRepo { return &QueueRepo{Pool: p} }

// DepthByConnector returns the number of queued rows per connector.
func (r *QueueRepo) DepthByConnector(ctx domain.Context) (map[int64]int, error) {
	tracer := otel.Tracer("repo.queue")
	ctx, span := tracer.Start(ctx, "queue.DepthByConnector")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "request_queue"),
	)

	const q = `SELECT connector_id, count(*) FROM request_queue GROUP BY connector_id`
	rows, err := r.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("op=queue.depthByConnector: %w", err)
	}
	defer rows.Close()

	out := map[int64]int{}
	for rows.Next() {
		var connectorID int64
		var depth int
		if err := rows.Scan(&connectorID, &depth); err != nil {
			return nil, fmt.Errorf("op=queue.depthByConnector.scan: %w", err)
		}
		out[connectorID] = depth
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=queue.depthByConnector.rows: %w", err)
	}
	return out, nil
}

var _ domain.QueueRepository = (*QueueRepo)(nil)
