// Package scoring computes the weighted similarity between an invoice and a bank transaction.
package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/shopspring/decimal"
)

const (
	weightAmountExact     = 0.5
	weightAmountTolerance = 0.2
	weightDate            = 0.2
	weightDescription     = 0.1
	weightVendorBoost     = 0.05
)

var (
	exactTolerance = decimal.New(1, -2) // $0.01
	looseTolerance = decimal.New(1, 0)  // $1.00

	highThreshold   = decimal.RequireFromString("0.8")
	mediumThreshold = decimal.RequireFromString("0.55")
)

// Confidence bands
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// InvoiceInput carries the invoice facts the scorer reads.
// Empty strings mean the field is absent.
type InvoiceInput struct {
	Amount      decimal.Decimal
	InvoiceDate *time.Time
	Description string
	VendorName  string
}

// TransactionInput carries the bank transaction facts the scorer reads
type TransactionInput struct {
	Amount      decimal.Decimal
	PostedAt    time.Time
	Description string
}

// Component is one weighted term of a score
type Component struct {
	Name     string
	Weight   float64
	Achieved float64
	Detail   string
}

// String renders the component the way it appears in reasoning text
func (c Component) String() string {
	return fmt.Sprintf("%s: %s (weight %.2f, achieved %.2f)", c.Name, c.Detail, c.Weight, c.Achieved)
}

// MatchScore is the result of scoring one invoice against one transaction
type MatchScore struct {
	Total      decimal.Decimal
	Components []Component
	Reasoning  string
	Confidence string
}

// InvoiceInputFrom extracts scoring facts from an invoice
func InvoiceInputFrom(inv *entity.Invoice) InvoiceInput {
	return InvoiceInput{
		Amount:      inv.Amount,
		InvoiceDate: inv.InvoiceDate,
		Description: inv.Description,
		VendorName:  inv.VendorName,
	}
}

// TransactionInputFrom extracts scoring facts from a bank transaction
func TransactionInputFrom(txn *entity.BankTransaction) TransactionInput {
	return TransactionInput{
		Amount:      txn.Amount,
		PostedAt:    txn.PostedAt,
		Description: txn.Description,
	}
}

// Score is a pure function of its inputs: equal inputs always yield equal results.
func Score(inv InvoiceInput, txn TransactionInput) MatchScore {
	diff := inv.Amount.Sub(txn.Amount).Abs()

	components := []Component{
		amountExact(diff),
		amountTolerance(diff),
		dateProximity(inv.InvoiceDate, txn.PostedAt),
		descriptionSimilarity(inv.Description, txn.Description),
		vendorBoost(inv.VendorName, txn.Description),
	}

	total := decimal.Zero
	reasons := make([]string, 0, len(components))
	for _, c := range components {
		total = total.Add(decimal.NewFromFloat(c.Weight).Mul(decimal.NewFromFloat(c.Achieved)))
		reasons = append(reasons, c.String())
	}
	// weights sum to 1.05 so a perfect pair needs clamping
	total = decimal.Max(decimal.Zero, decimal.Min(total, decimal.NewFromInt(1)))

	rounded := total.Round(4)
	return MatchScore{
		Total:      rounded,
		Components: components,
		Reasoning:  strings.Join(reasons, "; "),
		Confidence: ConfidenceLabel(rounded),
	}
}

// ConfidenceLabel maps a total score onto its confidence band
func ConfidenceLabel(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(highThreshold):
		return ConfidenceHigh
	case score.GreaterThanOrEqual(mediumThreshold):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func amountExact(diff decimal.Decimal) Component {
	c := Component{Name: "amount_exact", Weight: weightAmountExact}
	if diff.LessThanOrEqual(exactTolerance) {
		c.Achieved = 1
		c.Detail = "Exact amount match"
	} else {
		c.Detail = fmt.Sprintf("Amount diff $%s", diff.StringFixed(2))
	}
	return c
}

func amountTolerance(diff decimal.Decimal) Component {
	c := Component{Name: "amount_tolerance", Weight: weightAmountTolerance}
	if diff.LessThanOrEqual(looseTolerance) {
		c.Achieved = looseTolerance.Sub(diff).InexactFloat64()
		c.Detail = fmt.Sprintf("Within $1 tolerance (difference $%s)", diff.StringFixed(2))
	} else {
		c.Detail = fmt.Sprintf("Outside $1 tolerance (difference $%s)", diff.StringFixed(2))
	}
	return c
}

func dateProximity(invoiceDate *time.Time, postedAt time.Time) Component {
	c := Component{Name: "date", Weight: weightDate}
	if invoiceDate == nil {
		c.Achieved = 0.3
		c.Detail = "Invoice date missing; partial credit"
		return c
	}

	days := daysApart(*invoiceDate, postedAt)
	switch {
	case days <= 3:
		c.Achieved = 1
		c.Detail = "Transaction within ±3 days"
	case days <= 7:
		c.Achieved = 0.5
		c.Detail = fmt.Sprintf("Transaction within ±7 days (%d days apart)", days)
	default:
		c.Detail = fmt.Sprintf("Transaction %d days apart", days)
	}
	return c
}

func descriptionSimilarity(invoiceText, txnText string) Component {
	c := Component{Name: "description", Weight: weightDescription}
	if invoiceText == "" || txnText == "" {
		if invoiceText != "" || txnText != "" {
			c.Achieved = 0.3
		}
		c.Detail = "Limited description data"
		return c
	}

	c.Achieved = TextSimilarity(invoiceText, txnText)
	c.Detail = fmt.Sprintf("Text similarity %.2f", c.Achieved)
	return c
}

func vendorBoost(vendorName, memo string) Component {
	c := Component{Name: "vendor_boost", Weight: weightVendorBoost}
	switch {
	case vendorName == "":
		c.Detail = "No vendor specified"
	case memo == "":
		c.Achieved = 0.2
		c.Detail = "Vendor known but transaction lacks memo"
	case strings.Contains(strings.ToLower(memo), strings.ToLower(vendorName)):
		c.Achieved = 1
		c.Detail = "Vendor name present in transaction memo"
	default:
		c.Detail = "Vendor not referenced in memo"
	}
	return c
}

// daysApart counts whole calendar days between the invoice date and the posting date
func daysApart(invoiceDate, postedAt time.Time) int {
	iy, im, id := invoiceDate.Date()
	py, pm, pd := postedAt.Date()
	a := time.Date(iy, im, id, 0, 0, 0, 0, time.UTC)
	b := time.Date(py, pm, pd, 0, 0, 0, 0, time.UTC)

	// Unix seconds do not saturate the way time.Duration does past ~292 years.
	days := int((b.Unix() - a.Unix()) / 86400)
	if days < 0 {
		days = -days
	}
	return days
}
