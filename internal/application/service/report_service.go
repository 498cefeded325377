package service

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/domain/scoring"
)

// MatchReport is a rendered export ready for download
type MatchReport struct {
	Filename    string
	ContentType string
	Content     []byte
	Rows        int
}

// ReportService exports match candidates into documents
type ReportService interface {
	ExportMatches(ctx context.Context, tenantID string, status *entity.MatchStatus) (*MatchReport, error)
}

type reportServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	txnRepo     port.BankTransactionRepository
	matchRepo   port.MatchRepository
	exporter    port.MatchReportExporter
	logger      Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	invoiceRepo port.InvoiceRepository,
	txnRepo port.BankTransactionRepository,
	matchRepo port.MatchRepository,
	exporter port.MatchReportExporter,
	logger Logger,
) ReportService {
	return &reportServiceImpl{
		invoiceRepo: invoiceRepo,
		txnRepo:     txnRepo,
		matchRepo:   matchRepo,
		exporter:    exporter,
		logger:      logger,
	}
}

func (s *reportServiceImpl) ExportMatches(ctx context.Context, tenantID string, status *entity.MatchStatus) (*MatchReport, error) {
	if status != nil && !status.IsValid() {
		return nil, Validation("unknown match status %q", *status)
	}

	matches, err := s.matchRepo.List(ctx, tenantID, status)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	invoices := make(map[string]*entity.Invoice)
	txns := make(map[string]*entity.BankTransaction)
	rows := make([]port.MatchReportRow, 0, len(matches))
	for _, m := range matches {
		invoice, ok := invoices[m.InvoiceID]
		if !ok {
			if invoice, err = s.invoiceRepo.GetByID(ctx, tenantID, m.InvoiceID); err != nil {
				return nil, fmt.Errorf("get invoice: %w", err)
			}
			invoices[m.InvoiceID] = invoice
		}
		txn, ok := txns[m.BankTransactionID]
		if !ok {
			if txn, err = s.txnRepo.GetByID(ctx, tenantID, m.BankTransactionID); err != nil {
				return nil, fmt.Errorf("get bank transaction: %w", err)
			}
			txns[m.BankTransactionID] = txn
		}
		if invoice == nil || txn == nil {
			continue
		}

		rows = append(rows, port.MatchReportRow{
			MatchID:                m.ID,
			Status:                 string(m.Status),
			Score:                  m.Score,
			Confidence:             scoring.ConfidenceLabel(m.Score),
			InvoiceID:              invoice.ID,
			InvoiceNumber:          invoice.InvoiceNumber,
			VendorName:             invoice.VendorName,
			InvoiceAmount:          invoice.Amount,
			InvoiceCurrency:        invoice.Currency,
			InvoiceDate:            invoice.InvoiceDate,
			TransactionID:          txn.ID,
			TransactionExternalID:  txn.ExternalID,
			TransactionAmount:      txn.Amount,
			TransactionPostedAt:    txn.PostedAt,
			TransactionDescription: txn.Description,
			Reasoning:              m.Reasoning,
			CreatedAt:              m.CreatedAt,
		})
	}

	content, err := s.exporter.Export(rows)
	if err != nil {
		s.logger.Error("Failed to render match report", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	s.logger.Info("Match report exported", "tenant_id", tenantID, "rows", len(rows))
	return &MatchReport{
		Filename:    fmt.Sprintf("matches-%s.%s", tenantID, s.exporter.FileExtension()),
		ContentType: s.exporter.ContentType(),
		Content:     content,
		Rows:        len(rows),
	}, nil
}
