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

// TenantRepository implements port.TenantRepository
type TenantRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *sql.DB, logger *zap.Logger) port.TenantRepository {
	return &TenantRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new tenant
func (r *TenantRepository) Create(ctx context.Context, tenant *entity.Tenant) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		tenant.ID, tenant.Name, tenant.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create tenant", zap.String("name", tenant.Name), zap.Error(err))
		return wrapWriteError("failed to create tenant", err)
	}
	return nil
}

// GetByID retrieves a tenant by its ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, id)
	return r.scanOne(row)
}

// GetByName retrieves a tenant by its unique name
func (r *TenantRepository) GetByName(ctx context.Context, name string) (*entity.Tenant, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE name = ?`, name)
	return r.scanOne(row)
}

// List returns all tenants ordered by name
func (r *TenantRepository) List(ctx context.Context) ([]*entity.Tenant, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	tenants := []*entity.Tenant{}
	for rows.Next() {
		var t entity.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) scanOne(row *sql.Row) (*entity.Tenant, error) {
	var t entity.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}
