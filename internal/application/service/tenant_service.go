package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/pkg/utils"
	"github.com/google/uuid"
)

// TenantService manages tenants and their vendors
type TenantService interface {
	CreateTenant(ctx context.Context, name string) (*entity.Tenant, error)
	GetTenant(ctx context.Context, id string) (*entity.Tenant, error)
	ListTenants(ctx context.Context) ([]*entity.Tenant, error)

	CreateVendor(ctx context.Context, tenantID, name string) (*entity.Vendor, error)
	ListVendors(ctx context.Context, tenantID string) ([]*entity.Vendor, error)
}

type tenantServiceImpl struct {
	tenantRepo port.TenantRepository
	vendorRepo port.VendorRepository
	logger     Logger
}

// NewTenantService creates a new TenantService
func NewTenantService(tenantRepo port.TenantRepository, vendorRepo port.VendorRepository, logger Logger) TenantService {
	return &tenantServiceImpl{
		tenantRepo: tenantRepo,
		vendorRepo: vendorRepo,
		logger:     logger,
	}
}

func (s *tenantServiceImpl) CreateTenant(ctx context.Context, name string) (*entity.Tenant, error) {
	name = utils.SanitizeString(name)
	if name == "" {
		return nil, Validation("tenant name is required")
	}

	existing, err := s.tenantRepo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get tenant by name: %w", err)
	}
	if existing != nil {
		return nil, Conflict("tenant %q already exists", name)
	}

	tenant := &entity.Tenant{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tenantRepo.Create(ctx, tenant); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, Conflict("tenant %q already exists", name)
		}
		s.logger.Error("Failed to create tenant", "error", err, "name", name)
		return nil, err
	}

	s.logger.Info("Tenant created", "tenant_id", tenant.ID, "name", name)
	return tenant, nil
}

func (s *tenantServiceImpl) GetTenant(ctx context.Context, id string) (*entity.Tenant, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if tenant == nil {
		return nil, NotFound("tenant %s not found", id)
	}
	return tenant, nil
}

func (s *tenantServiceImpl) ListTenants(ctx context.Context) ([]*entity.Tenant, error) {
	return s.tenantRepo.List(ctx)
}

func (s *tenantServiceImpl) CreateVendor(ctx context.Context, tenantID, name string) (*entity.Vendor, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	name = utils.SanitizeString(name)
	if name == "" {
		return nil, Validation("vendor name is required")
	}

	vendor := &entity.Vendor{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.vendorRepo.Create(ctx, vendor); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, Conflict("vendor %q already exists", name)
		}
		s.logger.Error("Failed to create vendor", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	s.logger.Info("Vendor created", "tenant_id", tenantID, "vendor_id", vendor.ID)
	return vendor, nil
}

func (s *tenantServiceImpl) ListVendors(ctx context.Context, tenantID string) ([]*entity.Vendor, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.vendorRepo.ListByTenant(ctx, tenantID)
}
