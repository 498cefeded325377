package port

import (
	"context"
	"errors"

	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
)

// ErrDuplicate is returned by repositories when a uniqueness constraint rejects a write
var ErrDuplicate = errors.New("duplicate record")

// TenantRepository defines persistence operations for Tenant
type TenantRepository interface {
	Create(ctx context.Context, tenant *entity.Tenant) error
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
	GetByName(ctx context.Context, name string) (*entity.Tenant, error)
	List(ctx context.Context) ([]*entity.Tenant, error)
}

// VendorRepository defines persistence operations for Vendor
type VendorRepository interface {
	Create(ctx context.Context, vendor *entity.Vendor) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Vendor, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.Vendor, error)
}

// InvoiceRepository defines persistence operations for Invoice.
// Every read joins the vendor name so scoring can use it.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.Invoice, error)

	// List returns a page of invoices ordered by creation time, newest first
	List(ctx context.Context, tenantID string, filter entity.InvoiceFilter, limit, offset int) ([]*entity.Invoice, error)
	Count(ctx context.Context, tenantID string, filter entity.InvoiceFilter) (int, error)

	// ListOpen returns every OPEN invoice of the tenant ordered by id
	ListOpen(ctx context.Context, tenantID string) ([]*entity.Invoice, error)

	UpdateStatus(ctx context.Context, tenantID, id string, status entity.InvoiceStatus) error
	Delete(ctx context.Context, tenantID, id string) error
}

// BankTransactionRepository defines persistence operations for BankTransaction
type BankTransactionRepository interface {
	CreateBatch(ctx context.Context, txns []*entity.BankTransaction) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.BankTransaction, error)

	// ExistingExternalIDs returns the subset of externalIDs already stored for the tenant
	ExistingExternalIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]bool, error)

	// ListAll returns every transaction of the tenant ordered by id
	ListAll(ctx context.Context, tenantID string) ([]*entity.BankTransaction, error)

	// List returns a page of transactions ordered by posting time, newest first
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.BankTransaction, error)
}

// MatchRepository defines persistence operations for MatchCandidate
type MatchRepository interface {
	CreateBatch(ctx context.Context, matches []*entity.MatchCandidate) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.MatchCandidate, error)

	// List returns the tenant's candidates ordered by score descending then id.
	// A nil status returns every candidate.
	List(ctx context.Context, tenantID string, status *entity.MatchStatus) ([]*entity.MatchCandidate, error)

	// ConfirmedInvoiceIDs returns invoices that own a CONFIRMED candidate
	ConfirmedInvoiceIDs(ctx context.Context, tenantID string) (map[string]bool, error)

	// ConfirmedTransactionIDs returns transactions that belong to a CONFIRMED candidate
	ConfirmedTransactionIDs(ctx context.Context, tenantID string) (map[string]bool, error)

	// ExistingPairs returns every stored (invoice, transaction) pair with its status
	ExistingPairs(ctx context.Context, tenantID string) (map[entity.Pair]entity.MatchStatus, error)

	// DeleteProposed removes all PROPOSED candidates of the tenant
	DeleteProposed(ctx context.Context, tenantID string) (int64, error)

	UpdateStatus(ctx context.Context, tenantID, id string, status entity.MatchStatus) error

	// RejectProposedSiblings marks every other PROPOSED candidate of the invoice REJECTED
	RejectProposedSiblings(ctx context.Context, tenantID, invoiceID, keepID string) (int64, error)
}

// IdempotencyRepository defines persistence operations for IdempotencyKey
type IdempotencyRepository interface {
	Get(ctx context.Context, tenantID, endpoint, key string) (*entity.IdempotencyKey, error)
	Create(ctx context.Context, record *entity.IdempotencyKey) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
