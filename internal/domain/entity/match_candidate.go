package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle status of a match candidate
type MatchStatus string

const (
	MatchStatusProposed  MatchStatus = "PROPOSED"
	MatchStatusConfirmed MatchStatus = "CONFIRMED"
	MatchStatusRejected  MatchStatus = "REJECTED"
)

// IsValid reports whether s is a known match status
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusProposed, MatchStatusConfirmed, MatchStatusRejected:
		return true
	}
	return false
}

// MatchCandidate is a proposed, confirmed or rejected pairing of one invoice with one bank transaction
type MatchCandidate struct {
	ID                string          `json:"id"`
	TenantID          string          `json:"tenant_id"`
	InvoiceID         string          `json:"invoice_id"`
	BankTransactionID string          `json:"bank_transaction_id"`
	Score             decimal.Decimal `json:"score"`
	Status            MatchStatus     `json:"status"`
	Reasoning         string          `json:"reasoning"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Pair identifies an (invoice, bank transaction) combination
type Pair struct {
	InvoiceID     string
	TransactionID string
}

// Pair returns the (invoice, transaction) key of the candidate
func (m *MatchCandidate) Pair() Pair {
	return Pair{InvoiceID: m.InvoiceID, TransactionID: m.BankTransactionID}
}
