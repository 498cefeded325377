package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantService(t *testing.T) {
	store := newMemStore()
	svc := NewTenantService(memTenantRepo{store}, memVendorRepo{store}, &mockLogger{})
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "  Acme Holdings ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", tenant.Name)

	_, err = svc.CreateTenant(ctx, "Acme Holdings")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateTenant(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	got, err := svc.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.ID)

	_, err = svc.GetTenant(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	tenants, err := svc.ListTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
}

func TestTenantService_Vendors(t *testing.T) {
	store := newMemStore()
	store.addTenant(tenantA)
	svc := NewTenantService(memTenantRepo{store}, memVendorRepo{store}, &mockLogger{})
	ctx := context.Background()

	vendor, err := svc.CreateVendor(ctx, tenantA, "Northwind")
	require.NoError(t, err)
	assert.Equal(t, tenantA, vendor.TenantID)

	_, err = svc.CreateVendor(ctx, tenantA, "Northwind")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateVendor(ctx, "missing", "Northwind")
	assert.ErrorIs(t, err, ErrNotFound)

	vendors, err := svc.ListVendors(ctx, tenantA)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Northwind", vendors[0].Name)
}
