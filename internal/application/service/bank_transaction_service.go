package service

import (
	"context"
	"encoding/json"
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
	importEndpoint = "bank-transactions/import"

	// importResponseStatus is replayed for repeated idempotent imports (HTTP 201 Created)
	importResponseStatus = 201
)

// ImportTransactionInput is one bank transaction in an import payload
type ImportTransactionInput struct {
	ExternalID  string          `json:"external_id,omitempty"`
	PostedAt    time.Time       `json:"posted_at"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ImportResult summarizes a bank transaction import
type ImportResult struct {
	Imported     int                       `json:"imported"`
	Duplicates   int                       `json:"duplicates"`
	Transactions []*entity.BankTransaction `json:"transactions"`
	Replayed     bool                      `json:"replayed"`
}

// TransactionPage is one page of a transaction listing
type TransactionPage struct {
	Items  []*entity.BankTransaction `json:"items"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

// BankTransactionService ingests and lists bank transactions
type BankTransactionService interface {
	// Import stores new transactions, skipping external ids already on file.
	// A non-empty idempotencyKey makes repeated calls with the same payload
	// return the first result.
	Import(ctx context.Context, tenantID string, items []ImportTransactionInput, idempotencyKey string) (*ImportResult, error)

	ListTransactions(ctx context.Context, tenantID string, limit, offset int) (*TransactionPage, error)
}

type bankTransactionServiceImpl struct {
	txnRepo         port.BankTransactionRepository
	idempotencyRepo port.IdempotencyRepository
	txManager       port.TransactionManager
	locks           *TenantLocker
	logger          Logger
}

// NewBankTransactionService creates a new BankTransactionService
func NewBankTransactionService(
	txnRepo port.BankTransactionRepository,
	idempotencyRepo port.IdempotencyRepository,
	txManager port.TransactionManager,
	locks *TenantLocker,
	logger Logger,
) BankTransactionService {
	if locks == nil {
		locks = NewTenantLocker()
	}
	return &bankTransactionServiceImpl{
		txnRepo:         txnRepo,
		idempotencyRepo: idempotencyRepo,
		txManager:       txManager,
		locks:           locks,
		logger:          logger,
	}
}

func (s *bankTransactionServiceImpl) Import(ctx context.Context, tenantID string, items []ImportTransactionInput, idempotencyKey string) (*ImportResult, error) {
	normalized, err := normalizeImport(items)
	if err != nil {
		return nil, err
	}

	payloadHash, err := utils.StableHash(normalized)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(tenantID)
	defer unlock()

	var result *ImportResult
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if idempotencyKey != "" {
			replayed, err := s.replay(txCtx, tenantID, idempotencyKey, payloadHash)
			if err != nil {
				return err
			}
			if replayed != nil {
				result = replayed
				return nil
			}
		}

		externalIDs := make([]string, 0, len(normalized))
		for _, item := range normalized {
			if item.ExternalID != "" {
				externalIDs = append(externalIDs, item.ExternalID)
			}
		}
		existing, err := s.txnRepo.ExistingExternalIDs(txCtx, tenantID, externalIDs)
		if err != nil {
			return fmt.Errorf("check existing external ids: %w", err)
		}

		now := time.Now().UTC()
		imported := &ImportResult{Transactions: []*entity.BankTransaction{}}
		for _, item := range normalized {
			if item.ExternalID != "" && existing[item.ExternalID] {
				imported.Duplicates++
				continue
			}
			imported.Transactions = append(imported.Transactions, &entity.BankTransaction{
				ID:          uuid.NewString(),
				TenantID:    tenantID,
				ExternalID:  item.ExternalID,
				PostedAt:    item.PostedAt,
				Amount:      item.Amount,
				Currency:    item.Currency,
				Description: item.Description,
				CreatedAt:   now,
			})
		}
		imported.Imported = len(imported.Transactions)

		if imported.Imported > 0 {
			if err := s.txnRepo.CreateBatch(txCtx, imported.Transactions); err != nil {
				if errors.Is(err, port.ErrDuplicate) {
					return Conflict("bank transaction already exists")
				}
				return fmt.Errorf("insert bank transactions: %w", err)
			}
		}

		if idempotencyKey != "" {
			if err := s.remember(txCtx, tenantID, idempotencyKey, payloadHash, imported); err != nil {
				return err
			}
		}
		result = imported
		return nil
	})
	if err != nil {
		s.logger.Error("Bank transaction import failed", "error", err, "tenant_id", tenantID)
		return nil, err
	}

	s.logger.Info("Bank transactions imported",
		"tenant_id", tenantID,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"replayed", result.Replayed)
	return result, nil
}

// replay returns the stored result for a known key, or nil when the key is new
func (s *bankTransactionServiceImpl) replay(ctx context.Context, tenantID, key, payloadHash string) (*ImportResult, error) {
	record, err := s.idempotencyRepo.Get(ctx, tenantID, importEndpoint, key)
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	if record.PayloadHash != payloadHash {
		return nil, Conflict("idempotency key %q was already used with a different payload", key)
	}

	var stored ImportResult
	if err := json.Unmarshal([]byte(record.ResponseBody), &stored); err != nil {
		return nil, fmt.Errorf("decode stored import result: %w", err)
	}
	stored.Replayed = true
	return &stored, nil
}

func (s *bankTransactionServiceImpl) remember(ctx context.Context, tenantID, key, payloadHash string, result *ImportResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode import result: %w", err)
	}

	err = s.idempotencyRepo.Create(ctx, &entity.IdempotencyKey{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		Endpoint:       importEndpoint,
		Key:            key,
		PayloadHash:    payloadHash,
		ResponseStatus: importResponseStatus,
		ResponseBody:   string(body),
		CreatedAt:      time.Now().UTC(),
	})
	if errors.Is(err, port.ErrDuplicate) {
		return Conflict("idempotency key %q is already in use", key)
	}
	if err != nil {
		return fmt.Errorf("store idempotency key: %w", err)
	}
	return nil
}

func (s *bankTransactionServiceImpl) ListTransactions(ctx context.Context, tenantID string, limit, offset int) (*TransactionPage, error) {
	limit, offset, err := normalizePage(limit, offset)
	if err != nil {
		return nil, err
	}

	items, err := s.txnRepo.List(ctx, tenantID, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list bank transactions", "error", err, "tenant_id", tenantID)
		return nil, err
	}
	return &TransactionPage{Items: items, Limit: limit, Offset: offset}, nil
}

// normalizeImport validates the payload and returns a canonical copy used for both hashing and storage
func normalizeImport(items []ImportTransactionInput) ([]ImportTransactionInput, error) {
	if len(items) == 0 {
		return nil, Validation("at least one transaction is required")
	}

	seen := make(map[string]bool, len(items))
	normalized := make([]ImportTransactionInput, 0, len(items))
	for i, item := range items {
		if item.PostedAt.IsZero() {
			return nil, Validation("transactions[%d]: posted_at is required", i)
		}
		if err := utils.ValidateAmount(item.Amount); err != nil {
			return nil, Validation("transactions[%d]: %v", i, err)
		}
		currency, err := utils.NormalizeCurrency(item.Currency)
		if err != nil {
			return nil, Validation("transactions[%d]: %v", i, err)
		}

		externalID := utils.SanitizeString(item.ExternalID)
		if externalID != "" {
			if seen[externalID] {
				return nil, Conflict("duplicate external_id %q in payload", externalID)
			}
			seen[externalID] = true
		}

		normalized = append(normalized, ImportTransactionInput{
			ExternalID:  externalID,
			PostedAt:    item.PostedAt.UTC(),
			Amount:      item.Amount,
			Currency:    currency,
			Description: utils.SanitizeString(item.Description),
		})
	}
	return normalized, nil
}
