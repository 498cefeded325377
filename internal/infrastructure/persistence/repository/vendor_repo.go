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

// VendorRepository implements port.VendorRepository
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) port.VendorRepository {
	return &VendorRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new vendor
func (r *VendorRepository) Create(ctx context.Context, vendor *entity.Vendor) error {
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`INSERT INTO vendors (id, tenant_id, name, created_at) VALUES (?, ?, ?, ?)`,
		vendor.ID, vendor.TenantID, vendor.Name, vendor.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create vendor",
			zap.String("tenant_id", vendor.TenantID),
			zap.String("name", vendor.Name),
			zap.Error(err))
		return wrapWriteError("failed to create vendor", err)
	}
	return nil
}

// GetByID retrieves a vendor of the tenant
func (r *VendorRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Vendor, error) {
	var v entity.Vendor
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM vendors WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	).Scan(&v.ID, &v.TenantID, &v.Name, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return &v, nil
}

// ListByTenant returns the tenant's vendors ordered by name
func (r *VendorRepository) ListByTenant(ctx context.Context, tenantID string) ([]*entity.Vendor, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT id, tenant_id, name, created_at FROM vendors WHERE tenant_id = ? ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	vendors := []*entity.Vendor{}
	for rows.Next() {
		var v entity.Vendor
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Name, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, &v)
	}
	return vendors, rows.Err()
}
