package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const invoiceColumns = `
	i.id, i.tenant_id, i.vendor_id, v.name, i.invoice_number, i.amount_cents,
	i.currency, i.invoice_date, i.description, i.status, i.created_at`

const invoiceFrom = `
	FROM invoices i
	LEFT JOIN vendors v ON v.id = i.vendor_id`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, tenant_id, vendor_id, invoice_number, amount_cents,
			currency, invoice_date, description, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var invoiceDate interface{}
	if invoice.InvoiceDate != nil {
		invoiceDate = *invoice.InvoiceDate
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		invoice.ID,
		invoice.TenantID,
		nullString(invoice.VendorID),
		nullString(invoice.InvoiceNumber),
		toCents(invoice.Amount),
		invoice.Currency,
		invoiceDate,
		nullString(invoice.Description),
		string(invoice.Status),
		invoice.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("tenant_id", invoice.TenantID),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Error(err))
		return wrapWriteError("failed to create invoice", err)
	}
	return nil
}

// GetByID retrieves an invoice of the tenant
func (r *InvoiceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + invoiceFrom + ` WHERE i.tenant_id = ? AND i.id = ?`

	invoice, err := scanInvoice(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

// List returns a filtered page of invoices, newest first
func (r *InvoiceRepository) List(ctx context.Context, tenantID string, filter entity.InvoiceFilter, limit, offset int) ([]*entity.Invoice, error) {
	where, args := invoiceWhere(tenantID, filter)
	query := `SELECT ` + invoiceColumns + invoiceFrom + where +
		` ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return r.query(ctx, query, args...)
}

// Count returns the number of invoices matching the filter
func (r *InvoiceRepository) Count(ctx context.Context, tenantID string, filter entity.InvoiceFilter) (int, error) {
	where, args := invoiceWhere(tenantID, filter)

	var count int
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, `SELECT COUNT(*)`+invoiceFrom+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count, nil
}

// ListOpen returns every OPEN invoice ordered by id
func (r *InvoiceRepository) ListOpen(ctx context.Context, tenantID string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + invoiceFrom + ` WHERE i.tenant_id = ? AND i.status = ? ORDER BY i.id`
	return r.query(ctx, query, tenantID, string(entity.InvoiceStatusOpen))
}

// UpdateStatus sets the invoice status
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, tenantID, id string, status entity.InvoiceStatus) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE tenant_id = ? AND id = ?`,
		string(status), tenantID, id,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return requireAffected(result, "invoice", id)
}

// Delete removes an invoice; its match candidates cascade
func (r *InvoiceRepository) Delete(ctx context.Context, tenantID, id string) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM invoices WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return requireAffected(result, "invoice", id)
}

func (r *InvoiceRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Invoice, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []*entity.Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func invoiceWhere(tenantID string, filter entity.InvoiceFilter) (string, []interface{}) {
	clauses := []string{"i.tenant_id = ?"}
	args := []interface{}{tenantID}

	if filter.Status != "" {
		clauses = append(clauses, "i.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.VendorID != "" {
		clauses = append(clauses, "i.vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.DateFrom != nil {
		clauses = append(clauses, "i.invoice_date >= ?")
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		clauses = append(clauses, "i.invoice_date <= ?")
		args = append(args, *filter.DateTo)
	}
	if filter.AmountMin != nil {
		clauses = append(clauses, "i.amount_cents >= ?")
		args = append(args, toCents(*filter.AmountMin))
	}
	if filter.AmountMax != nil {
		clauses = append(clauses, "i.amount_cents <= ?")
		args = append(args, toCents(*filter.AmountMax))
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		invoice       entity.Invoice
		vendorID      sql.NullString
		vendorName    sql.NullString
		invoiceNumber sql.NullString
		amountCents   int64
		invoiceDate   sql.NullTime
		description   sql.NullString
		status        string
	)

	err := row.Scan(
		&invoice.ID,
		&invoice.TenantID,
		&vendorID,
		&vendorName,
		&invoiceNumber,
		&amountCents,
		&invoice.Currency,
		&invoiceDate,
		&description,
		&status,
		&invoice.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.VendorID = vendorID.String
	invoice.VendorName = vendorName.String
	invoice.InvoiceNumber = invoiceNumber.String
	invoice.Amount = fromCents(amountCents)
	invoice.Description = description.String
	invoice.Status = entity.InvoiceStatus(status)
	if invoiceDate.Valid {
		d := invoiceDate.Time.UTC()
		invoice.InvoiceDate = &d
	}
	return &invoice, nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s not found", kind, id)
	}
	return nil
}
