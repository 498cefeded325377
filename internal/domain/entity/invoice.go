package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen      InvoiceStatus = "OPEN"
	InvoiceStatusMatched   InvoiceStatus = "MATCHED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid reports whether s is a known invoice status
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusMatched, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Invoice is an amount owed to a vendor, awaiting a matching bank movement.
// Empty VendorID, InvoiceNumber and Description mean the field is absent.
type Invoice struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenant_id"`
	VendorID      string          `json:"vendor_id,omitempty"`
	VendorName    string          `json:"vendor_name,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	InvoiceDate   *time.Time      `json:"invoice_date,omitempty"`
	Description   string          `json:"description,omitempty"`
	Status        InvoiceStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InvoiceFilter narrows invoice listings. Zero values mean no constraint.
type InvoiceFilter struct {
	Status    InvoiceStatus
	VendorID  string
	DateFrom  *time.Time
	DateTo    *time.Time
	AmountMin *decimal.Decimal
	AmountMax *decimal.Decimal
}
