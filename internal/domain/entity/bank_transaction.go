package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankTransaction is a posted movement on a tenant's bank account
type BankTransaction struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	ExternalID  string          `json:"external_id,omitempty"`
	PostedAt    time.Time       `json:"posted_at"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
