package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/domain/event"
	"github.com/garyjia/invoice-reconciler/internal/domain/scoring"
	"github.com/garyjia/invoice-reconciler/internal/domain/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationConfig tunes candidate generation
type ReconciliationConfig struct {
	ScoreThreshold       decimal.Decimal
	CandidatesPerInvoice int
	ScoringWorkers       int
}

// DefaultReconciliationConfig returns the production tuning
func DefaultReconciliationConfig() ReconciliationConfig {
	return ReconciliationConfig{
		ScoreThreshold:       decimal.RequireFromString("0.45"),
		CandidatesPerInvoice: 3,
		ScoringWorkers:       4,
	}
}

// ReconciliationResult summarizes one reconciliation run
type ReconciliationResult struct {
	Matches                []*entity.MatchCandidate `json:"matches"`
	ClearedProposals       int64                    `json:"cleared_proposals"`
	InvoicesConsidered     int                      `json:"invoices_considered"`
	TransactionsConsidered int                      `json:"transactions_considered"`
}

// ConfirmationResult describes the effect of confirming a match
type ConfirmationResult struct {
	Match            *entity.MatchCandidate `json:"match"`
	InvoiceStatus    entity.InvoiceStatus   `json:"invoice_status"`
	RejectedSiblings int64                  `json:"rejected_siblings"`
}

// PairScore is an on-demand score of a stored invoice against a stored transaction
type PairScore struct {
	Invoice     *entity.Invoice
	Transaction *entity.BankTransaction
	Score       scoring.MatchScore
}

// ReconciliationService proposes and confirms invoice/transaction matches
type ReconciliationService interface {
	// Reconcile replaces the tenant's PROPOSED candidates with a fresh one-to-one allocation
	Reconcile(ctx context.Context, tenantID string) (*ReconciliationResult, error)

	// ConfirmMatch accepts a PROPOSED candidate, marks its invoice MATCHED and rejects sibling proposals
	ConfirmMatch(ctx context.Context, tenantID, matchID string) (*ConfirmationResult, error)

	ListMatches(ctx context.Context, tenantID string, status *entity.MatchStatus) ([]*entity.MatchCandidate, error)
	GetMatch(ctx context.Context, tenantID, matchID string) (*entity.MatchCandidate, error)
	ScorePair(ctx context.Context, tenantID, invoiceID, transactionID string) (*PairScore, error)
}

type reconciliationServiceImpl struct {
	tenantRepo  port.TenantRepository
	invoiceRepo port.InvoiceRepository
	txnRepo     port.BankTransactionRepository
	matchRepo   port.MatchRepository
	txManager   port.TransactionManager
	events      port.EventPublisher
	locks       *TenantLocker
	allocator   *allocator
	logger      Logger
}

// NewReconciliationService creates a new ReconciliationService. events may be nil.
func NewReconciliationService(
	tenantRepo port.TenantRepository,
	invoiceRepo port.InvoiceRepository,
	txnRepo port.BankTransactionRepository,
	matchRepo port.MatchRepository,
	txManager port.TransactionManager,
	events port.EventPublisher,
	locks *TenantLocker,
	cfg ReconciliationConfig,
	logger Logger,
) ReconciliationService {
	if cfg.CandidatesPerInvoice <= 0 {
		cfg.CandidatesPerInvoice = DefaultReconciliationConfig().CandidatesPerInvoice
	}
	if locks == nil {
		locks = NewTenantLocker()
	}
	return &reconciliationServiceImpl{
		tenantRepo:  tenantRepo,
		invoiceRepo: invoiceRepo,
		txnRepo:     txnRepo,
		matchRepo:   matchRepo,
		txManager:   txManager,
		events:      events,
		locks:       locks,
		allocator: &allocator{
			threshold:  cfg.ScoreThreshold,
			perInvoice: cfg.CandidatesPerInvoice,
			workers:    cfg.ScoringWorkers,
		},
		logger: logger,
	}
}

// Reconcile runs the whole snapshot-clear-score-allocate-persist sequence in one transaction
func (s *reconciliationServiceImpl) Reconcile(ctx context.Context, tenantID string) (*ReconciliationResult, error) {
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	result := &ReconciliationResult{Matches: []*entity.MatchCandidate{}}
	shortlisted := 0

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoices, err := s.invoiceRepo.ListOpen(txCtx, tenantID)
		if err != nil {
			return fmt.Errorf("list open invoices: %w", err)
		}
		txns, err := s.txnRepo.ListAll(txCtx, tenantID)
		if err != nil {
			return fmt.Errorf("list bank transactions: %w", err)
		}
		result.InvoicesConsidered = len(invoices)
		result.TransactionsConsidered = len(txns)

		if len(invoices) == 0 || len(txns) == 0 {
			cleared, err := s.matchRepo.DeleteProposed(txCtx, tenantID)
			if err != nil {
				return fmt.Errorf("clear proposals: %w", err)
			}
			result.ClearedProposals = cleared
			return nil
		}

		input, err := s.snapshot(txCtx, tenantID, invoices, txns)
		if err != nil {
			return err
		}

		cleared, err := s.matchRepo.DeleteProposed(txCtx, tenantID)
		if err != nil {
			return fmt.Errorf("clear proposals: %w", err)
		}
		result.ClearedProposals = cleared

		pool, err := s.allocator.shortlist(txCtx, input)
		if err != nil {
			return fmt.Errorf("score candidates: %w", err)
		}
		shortlisted = len(pool)
		accepted := s.allocator.allocate(pool, input.confirmedTxns)

		now := time.Now().UTC()
		for _, c := range accepted {
			result.Matches = append(result.Matches, &entity.MatchCandidate{
				ID:                uuid.NewString(),
				TenantID:          tenantID,
				InvoiceID:         c.invoice.ID,
				BankTransactionID: c.txn.ID,
				Score:             c.score.Total,
				Status:            entity.MatchStatusProposed,
				Reasoning:         c.score.Reasoning,
				CreatedAt:         now,
			})
		}

		if len(result.Matches) == 0 {
			return nil
		}
		if err := s.matchRepo.CreateBatch(txCtx, result.Matches); err != nil {
			return fmt.Errorf("persist proposals: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Reconciliation failed", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	s.logger.Info("Reconciliation completed",
		"tenant_id", tenantID,
		"invoices", result.InvoicesConsidered,
		"transactions", result.TransactionsConsidered,
		"cleared", result.ClearedProposals,
		"shortlisted", shortlisted,
		"proposed", len(result.Matches))

	s.publish(ctx, event.NewEvent(event.TypeReconciliationCompleted, tenantID, map[string]interface{}{
		event.KeyProposed:           len(result.Matches),
		event.KeyCleared:            result.ClearedProposals,
		event.KeyInvoicesConsidered: result.InvoicesConsidered,
	}))
	return result, nil
}

// snapshot reads the confirmed and decided state before stale proposals are cleared
func (s *reconciliationServiceImpl) snapshot(ctx context.Context, tenantID string, invoices []*entity.Invoice, txns []*entity.BankTransaction) (allocationInput, error) {
	confirmedInvs, err := s.matchRepo.ConfirmedInvoiceIDs(ctx, tenantID)
	if err != nil {
		return allocationInput{}, fmt.Errorf("load confirmed invoices: %w", err)
	}
	confirmedTxns, err := s.matchRepo.ConfirmedTransactionIDs(ctx, tenantID)
	if err != nil {
		return allocationInput{}, fmt.Errorf("load confirmed transactions: %w", err)
	}
	pairs, err := s.matchRepo.ExistingPairs(ctx, tenantID)
	if err != nil {
		return allocationInput{}, fmt.Errorf("load existing pairs: %w", err)
	}

	// PROPOSED rows are about to be deleted; only user decisions count as history.
	decided := make(map[entity.Pair]bool, len(pairs))
	for pair, status := range pairs {
		if status != entity.MatchStatusProposed {
			decided[pair] = true
		}
	}

	return allocationInput{
		invoices:      invoices,
		transactions:  txns,
		confirmedInvs: confirmedInvs,
		confirmedTxns: confirmedTxns,
		decided:       decided,
	}, nil
}

// ConfirmMatch commits the candidate, the invoice status and sibling rejections atomically
func (s *reconciliationServiceImpl) ConfirmMatch(ctx context.Context, tenantID, matchID string) (*ConfirmationResult, error) {
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	result := &ConfirmationResult{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		match, err := s.matchRepo.GetByID(txCtx, tenantID, matchID)
		if err != nil {
			return fmt.Errorf("get match: %w", err)
		}
		if match == nil {
			return NotFound("match %s not found", matchID)
		}

		matchState, err := workflow.NewMatchLifecycle(workflow.State(match.Status))
		if err != nil {
			return fmt.Errorf("match %s: %w", matchID, err)
		}
		if err := matchState.Fire(workflow.TriggerConfirm); err != nil {
			return Conflict("match %s is %s; only PROPOSED matches can be confirmed", matchID, match.Status)
		}

		invoice, err := s.invoiceRepo.GetByID(txCtx, tenantID, match.InvoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if invoice == nil {
			return NotFound("invoice %s not found", match.InvoiceID)
		}
		invoiceState, err := workflow.NewInvoiceLifecycle(workflow.State(invoice.Status))
		if err != nil {
			return fmt.Errorf("invoice %s: %w", invoice.ID, err)
		}
		if err := invoiceState.Fire(workflow.TriggerMatch); err != nil {
			return Conflict("invoice %s is %s; only OPEN invoices can be matched", invoice.ID, invoice.Status)
		}

		if err := s.matchRepo.UpdateStatus(txCtx, tenantID, match.ID, entity.MatchStatus(matchState.State())); err != nil {
			return fmt.Errorf("confirm match: %w", err)
		}
		if err := s.invoiceRepo.UpdateStatus(txCtx, tenantID, invoice.ID, entity.InvoiceStatus(invoiceState.State())); err != nil {
			return fmt.Errorf("mark invoice matched: %w", err)
		}
		// Siblings are still PROPOSED; the statement only touches rows in that state.
		sibling, err := workflow.NewMatchLifecycle(workflow.StateProposed)
		if err != nil {
			return fmt.Errorf("sibling lifecycle: %w", err)
		}
		if err := sibling.Fire(workflow.TriggerReject); err != nil {
			return fmt.Errorf("reject sibling proposals: %w", err)
		}
		rejected, err := s.matchRepo.RejectProposedSiblings(txCtx, tenantID, invoice.ID, match.ID)
		if err != nil {
			return fmt.Errorf("reject sibling proposals: %w", err)
		}

		match.Status = entity.MatchStatusConfirmed
		result.Match = match
		result.InvoiceStatus = entity.InvoiceStatus(invoiceState.State())
		result.RejectedSiblings = rejected
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to confirm match", "error", err, "tenant_id", tenantID, "match_id", matchID)
		return nil, err
	}

	s.logger.Info("Match confirmed",
		"tenant_id", tenantID,
		"match_id", matchID,
		"invoice_id", result.Match.InvoiceID,
		"invoice_status", result.InvoiceStatus,
		"rejected_siblings", result.RejectedSiblings)

	s.publish(ctx, event.NewEvent(event.TypeMatchConfirmed, tenantID, map[string]interface{}{
		event.KeyMatchID:          result.Match.ID,
		event.KeyInvoiceID:        result.Match.InvoiceID,
		event.KeyTransactionID:    result.Match.BankTransactionID,
		event.KeyScore:            result.Match.Score.StringFixed(4),
		event.KeyRejectedSiblings: result.RejectedSiblings,
	}))
	return result, nil
}

// ListMatches returns the tenant's candidates, optionally filtered by status
func (s *reconciliationServiceImpl) ListMatches(ctx context.Context, tenantID string, status *entity.MatchStatus) ([]*entity.MatchCandidate, error) {
	if status != nil && !status.IsValid() {
		return nil, Validation("unknown match status %q", *status)
	}
	if err := s.requireTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	matches, err := s.matchRepo.List(ctx, tenantID, status)
	if err != nil {
		s.logger.Error("Failed to list matches", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return matches, nil
}

// GetMatch returns one candidate of the tenant
func (s *reconciliationServiceImpl) GetMatch(ctx context.Context, tenantID, matchID string) (*entity.MatchCandidate, error) {
	match, err := s.matchRepo.GetByID(ctx, tenantID, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, NotFound("match %s not found", matchID)
	}
	return match, nil
}

// ScorePair scores a stored invoice against a stored transaction without persisting anything
func (s *reconciliationServiceImpl) ScorePair(ctx context.Context, tenantID, invoiceID, transactionID string) (*PairScore, error) {
	invoice, txn, err := loadPair(ctx, s.invoiceRepo, s.txnRepo, tenantID, invoiceID, transactionID)
	if err != nil {
		return nil, err
	}

	return &PairScore{
		Invoice:     invoice,
		Transaction: txn,
		Score:       scoring.Score(scoring.InvoiceInputFrom(invoice), scoring.TransactionInputFrom(txn)),
	}, nil
}

func (s *reconciliationServiceImpl) requireTenant(ctx context.Context, tenantID string) error {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("get tenant: %w", err)
	}
	if tenant == nil {
		return NotFound("tenant %s not found", tenantID)
	}
	return nil
}

// publish runs after commit; subscribers never affect the committed result
func (s *reconciliationServiceImpl) publish(ctx context.Context, evt *event.Event) {
	if s.events == nil {
		return
	}
	s.events.DispatchAsync(ctx, evt)
}

// loadPair fetches an invoice and a transaction that must both belong to the tenant
func loadPair(
	ctx context.Context,
	invoiceRepo port.InvoiceRepository,
	txnRepo port.BankTransactionRepository,
	tenantID, invoiceID, transactionID string,
) (*entity.Invoice, *entity.BankTransaction, error) {
	invoice, err := invoiceRepo.GetByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, nil, NotFound("invoice %s not found", invoiceID)
	}

	txn, err := txnRepo.GetByID(ctx, tenantID, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("get bank transaction: %w", err)
	}
	if txn == nil {
		return nil, nil, NotFound("bank transaction %s not found", transactionID)
	}
	return invoice, txn, nil
}
