package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/domain/event"
	"github.com/shopspring/decimal"
)

// ExplanationRequest carries the facts of one scored pair to an explainer
type ExplanationRequest struct {
	InvoiceAmount          decimal.Decimal
	InvoiceCurrency        string
	InvoiceDate            *time.Time
	InvoiceDescription     string
	VendorName             string
	TransactionAmount      decimal.Decimal
	TransactionCurrency    string
	TransactionPostedAt    time.Time
	TransactionDescription string
	Score                  decimal.Decimal
	Reasoning              string
}

// Explanation is a short human-readable account of a match
type Explanation struct {
	Text       string `json:"explanation"`
	Confidence string `json:"confidence"`
	Source     string `json:"source"`
}

// Explainer produces natural-language explanations for scored pairs
type Explainer interface {
	Explain(ctx context.Context, req ExplanationRequest) (*Explanation, error)
}

// Notifier delivers plain-text operational messages to a chat channel
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// EventPublisher hands committed domain events to subscribers without blocking the caller
type EventPublisher interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

// MatchReportRow is one line of a match export
type MatchReportRow struct {
	MatchID                string
	Status                 string
	Score                  decimal.Decimal
	Confidence             string
	InvoiceID              string
	InvoiceNumber          string
	VendorName             string
	InvoiceAmount          decimal.Decimal
	InvoiceCurrency        string
	InvoiceDate            *time.Time
	TransactionID          string
	TransactionExternalID  string
	TransactionAmount      decimal.Decimal
	TransactionPostedAt    time.Time
	TransactionDescription string
	Reasoning              string
	CreatedAt              time.Time
}

// MatchReportExporter renders match rows into a downloadable document
type MatchReportExporter interface {
	Export(rows []MatchReportRow) ([]byte, error)
	ContentType() string
	FileExtension() string
}
