package service

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/domain/scoring"
	"github.com/shopspring/decimal"
)

// ExplanationService turns scored pairs into readable explanations
type ExplanationService interface {
	// ExplainMatch explains a stored candidate using its persisted score and reasoning
	ExplainMatch(ctx context.Context, tenantID, matchID string) (*port.Explanation, error)

	// ExplainPair scores an arbitrary invoice/transaction pair and explains it
	ExplainPair(ctx context.Context, tenantID, invoiceID, transactionID string) (*port.Explanation, error)
}

type explanationServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	txnRepo     port.BankTransactionRepository
	matchRepo   port.MatchRepository
	explainer   port.Explainer
	fallback    port.Explainer
	logger      Logger
}

// NewExplanationService creates a new ExplanationService. A nil explainer
// means every explanation comes from the deterministic templates.
func NewExplanationService(
	invoiceRepo port.InvoiceRepository,
	txnRepo port.BankTransactionRepository,
	matchRepo port.MatchRepository,
	explainer port.Explainer,
	logger Logger,
) ExplanationService {
	return &explanationServiceImpl{
		invoiceRepo: invoiceRepo,
		txnRepo:     txnRepo,
		matchRepo:   matchRepo,
		explainer:   explainer,
		fallback:    TemplateExplainer{},
		logger:      logger,
	}
}

func (s *explanationServiceImpl) ExplainMatch(ctx context.Context, tenantID, matchID string) (*port.Explanation, error) {
	match, err := s.matchRepo.GetByID(ctx, tenantID, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if match == nil {
		return nil, NotFound("match %s not found", matchID)
	}

	invoice, txn, err := loadPair(ctx, s.invoiceRepo, s.txnRepo, tenantID, match.InvoiceID, match.BankTransactionID)
	if err != nil {
		return nil, err
	}

	reasoning := match.Reasoning
	if reasoning == "" {
		reasoning = scoring.Score(scoring.InvoiceInputFrom(invoice), scoring.TransactionInputFrom(txn)).Reasoning
	}
	return s.explain(ctx, invoice, txn, match.Score, reasoning), nil
}

func (s *explanationServiceImpl) ExplainPair(ctx context.Context, tenantID, invoiceID, transactionID string) (*port.Explanation, error) {
	invoice, txn, err := loadPair(ctx, s.invoiceRepo, s.txnRepo, tenantID, invoiceID, transactionID)
	if err != nil {
		return nil, err
	}

	result := scoring.Score(scoring.InvoiceInputFrom(invoice), scoring.TransactionInputFrom(txn))
	return s.explain(ctx, invoice, txn, result.Total, result.Reasoning), nil
}

func (s *explanationServiceImpl) explain(ctx context.Context, invoice *entity.Invoice, txn *entity.BankTransaction, score decimal.Decimal, reasoning string) *port.Explanation {
	req := port.ExplanationRequest{
		InvoiceAmount:          invoice.Amount,
		InvoiceCurrency:        invoice.Currency,
		InvoiceDate:            invoice.InvoiceDate,
		InvoiceDescription:     invoice.Description,
		VendorName:             invoice.VendorName,
		TransactionAmount:      txn.Amount,
		TransactionCurrency:    txn.Currency,
		TransactionPostedAt:    txn.PostedAt,
		TransactionDescription: txn.Description,
		Score:                  score,
		Reasoning:              reasoning,
	}

	if s.explainer != nil {
		explanation, err := s.explainer.Explain(ctx, req)
		if err == nil {
			return explanation
		}
		s.logger.Error("Explainer failed; using template", "error", err, "invoice_id", invoice.ID, "transaction_id", txn.ID)
	}

	// the template explainer never fails
	explanation, _ := s.fallback.Explain(ctx, req)
	return explanation
}

// TemplateExplainer renders a fixed explanation per confidence band
type TemplateExplainer struct{}

// Explain implements port.Explainer
func (TemplateExplainer) Explain(_ context.Context, req port.ExplanationRequest) (*port.Explanation, error) {
	band := scoring.ConfidenceLabel(req.Score)

	var text string
	switch band {
	case scoring.ConfidenceHigh:
		text = "The invoice and transaction align strongly: exact or tight amount match, date proximity, and descriptive similarity. Reasoning: %s."
	case scoring.ConfidenceMedium:
		text = "The match appears plausible with reasonable amount alignment and some context overlap. Reasoning: %s."
	default:
		text = "The evidence is weak; consider manual review before confirming. Reasoning: %s."
	}

	return &port.Explanation{
		Text:       fmt.Sprintf(text, req.Reasoning),
		Confidence: band,
		Source:     "template",
	}, nil
}
