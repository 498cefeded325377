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
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// CreateInvoiceInput holds the fields accepted when recording an invoice
type CreateInvoiceInput struct {
	VendorID      string
	InvoiceNumber string
	Amount        decimal.Decimal
	Currency      string
	InvoiceDate   *time.Time
	Description   string
}

// InvoicePage is one page of a filtered invoice listing
type InvoicePage struct {
	Items  []*entity.Invoice `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// InvoiceService manages a tenant's invoices
type InvoiceService interface {
	CreateInvoice(ctx context.Context, tenantID string, input CreateInvoiceInput) (*entity.Invoice, error)
	GetInvoice(ctx context.Context, tenantID, id string) (*entity.Invoice, error)
	ListInvoices(ctx context.Context, tenantID string, filter entity.InvoiceFilter, limit, offset int) (*InvoicePage, error)
	DeleteInvoice(ctx context.Context, tenantID, id string) error
}

type invoiceServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	vendorRepo  port.VendorRepository
	logger      Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(invoiceRepo port.InvoiceRepository, vendorRepo port.VendorRepository, logger Logger) InvoiceService {
	return &invoiceServiceImpl{
		invoiceRepo: invoiceRepo,
		vendorRepo:  vendorRepo,
		logger:      logger,
	}
}

func (s *invoiceServiceImpl) CreateInvoice(ctx context.Context, tenantID string, input CreateInvoiceInput) (*entity.Invoice, error) {
	if err := utils.ValidateAmount(input.Amount); err != nil {
		return nil, Validation("invalid invoice amount: %v", err)
	}
	currency, err := utils.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, Validation("%v", err)
	}

	invoice := &entity.Invoice{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		InvoiceNumber: utils.SanitizeString(input.InvoiceNumber),
		Amount:        input.Amount,
		Currency:      currency,
		InvoiceDate:   truncateToDate(input.InvoiceDate),
		Description:   utils.SanitizeString(input.Description),
		Status:        entity.InvoiceStatusOpen,
		CreatedAt:     time.Now().UTC(),
	}

	if input.VendorID != "" {
		vendor, err := s.vendorRepo.GetByID(ctx, tenantID, input.VendorID)
		if err != nil {
			return nil, fmt.Errorf("get vendor: %w", err)
		}
		if vendor == nil {
			return nil, NotFound("vendor %s not found", input.VendorID)
		}
		invoice.VendorID = vendor.ID
		invoice.VendorName = vendor.Name
	}

	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, Conflict("invoice number %q already exists", invoice.InvoiceNumber)
		}
		s.logger.Error("Failed to create invoice", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	s.logger.Info("Invoice created", "tenant_id", tenantID, "invoice_id", invoice.ID, "amount", invoice.Amount.StringFixed(2))
	return invoice, nil
}

func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, tenantID, id string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, NotFound("invoice %s not found", id)
	}
	return invoice, nil
}

func (s *invoiceServiceImpl) ListInvoices(ctx context.Context, tenantID string, filter entity.InvoiceFilter, limit, offset int) (*InvoicePage, error) {
	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, Validation("unknown invoice status %q", filter.Status)
	}
	if filter.AmountMin != nil && filter.AmountMax != nil && filter.AmountMin.GreaterThan(*filter.AmountMax) {
		return nil, Validation("amount_min must not exceed amount_max")
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, Validation("date_from must not be after date_to")
	}

	items, err := s.invoiceRepo.List(ctx, tenantID, filter, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list invoices", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	total, err := s.invoiceRepo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("count invoices: %w", err)
	}

	return &InvoicePage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *invoiceServiceImpl) DeleteInvoice(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetInvoice(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.invoiceRepo.Delete(ctx, tenantID, id); err != nil {
		s.logger.Error("Failed to delete invoice", "error", err, "tenant_id", tenantID, "invoice_id", id)
		return err
	}
	s.logger.Info("Invoice deleted", "tenant_id", tenantID, "invoice_id", id)
	return nil
}

func normalizePage(limit, offset int) (int, int, error) {
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit < 0 || limit > maxPageSize {
		return 0, 0, Validation("limit must be between 1 and %d", maxPageSize)
	}
	if offset < 0 {
		return 0, 0, Validation("offset must not be negative")
	}
	return limit, offset, nil
}

// truncateToDate drops the time of day; invoice dates are calendar dates
func truncateToDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}
