package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"comradarr/internal/domain"
)

// HistoryRepo persists append-only SearchHistory rows.
type HistoryRepo struct{ Pool PgxPool }

// NewHistoryRepo constructs a HistoryRepo with the given pool.
func NewHistoryRepo(p PgxPool) *HistoryRepo { return &HistoryRepo{Pool: p} }

// Append writes one history row. Every non-success dispatch outcome writes
// exactly one row; rows are never updated or deleted by the core.
func (r *HistoryRepo) Append(ctx domain.Context, row domain.SearchHistory) error {
	tracer := otel.Tracer("repo.history")
	ctx, span := tracer.Start(ctx, "history.Append")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "search_history"),
	)

	metadata, err := json.Marshal(row.Metadata)
	if err != nil {
		return fmt.Errorf("op=history.append.marshal: %w", err)
	}

	createdAt := row.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO search_history (registry_id, connector_id, outcome, category, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.Pool.Exec(ctx, q, row.RegistryID, row.ConnectorID, row.Outcome, row.Category, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("op=history.append: %w", err)
	}
	return nil
}
