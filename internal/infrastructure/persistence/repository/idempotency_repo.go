package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// IdempotencyRepository implements port.IdempotencyRepository
type IdempotencyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIdempotencyRepository creates a new idempotency key repository
func NewIdempotencyRepository(db *sql.DB, logger *zap.Logger) port.IdempotencyRepository {
	return &IdempotencyRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the record for (tenant, endpoint, key)
func (r *IdempotencyRepository) Get(ctx context.Context, tenantID, endpoint, key string) (*entity.IdempotencyKey, error) {
	var rec entity.IdempotencyKey
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, tenant_id, endpoint, key, payload_hash, response_status, response_body, created_at
		FROM idempotency_keys
		WHERE tenant_id = ? AND endpoint = ? AND key = ?`,
		tenantID, endpoint, key,
	).Scan(&rec.ID, &rec.TenantID, &rec.Endpoint, &rec.Key, &rec.PayloadHash,
		&rec.ResponseStatus, &rec.ResponseBody, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return &rec, nil
}

// Create stores a new record
func (r *IdempotencyRepository) Create(ctx context.Context, rec *entity.IdempotencyKey) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO idempotency_keys (id, tenant_id, endpoint, key, payload_hash, response_status, response_body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.Endpoint, rec.Key, rec.PayloadHash,
		rec.ResponseStatus, rec.ResponseBody, rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to store idempotency key",
			zap.String("tenant_id", rec.TenantID),
			zap.String("endpoint", rec.Endpoint),
			zap.Error(err))
		return wrapWriteError("failed to store idempotency key", err)
	}
	return nil
}
