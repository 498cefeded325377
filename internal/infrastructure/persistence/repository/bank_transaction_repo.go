package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const bankTransactionColumns = `id, tenant_id, external_id, posted_at, amount_cents, currency, description, created_at`

// externalIDChunk keeps IN lists well below SQLite's bound-variable limit
const externalIDChunk = 500

// BankTransactionRepository implements port.BankTransactionRepository
type BankTransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBankTransactionRepository creates a new bank transaction repository
func NewBankTransactionRepository(db *sql.DB, logger *zap.Logger) port.BankTransactionRepository {
	return &BankTransactionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts transactions in order
func (r *BankTransactionRepository) CreateBatch(ctx context.Context, txns []*entity.BankTransaction) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	query := `INSERT INTO bank_transactions (` + bankTransactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, txn := range txns {
		_, err := exec.ExecContext(ctx, query,
			txn.ID,
			txn.TenantID,
			nullString(txn.ExternalID),
			txn.PostedAt,
			toCents(txn.Amount),
			txn.Currency,
			nullString(txn.Description),
			txn.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create bank transaction",
				zap.String("tenant_id", txn.TenantID),
				zap.String("external_id", txn.ExternalID),
				zap.Error(err))
			return wrapWriteError("failed to create bank transaction", err)
		}
	}
	return nil
}

// GetByID retrieves a transaction of the tenant
func (r *BankTransactionRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.BankTransaction, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+bankTransactionColumns+` FROM bank_transactions WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	txn, err := scanBankTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank transaction: %w", err)
	}
	return txn, nil
}

// ExistingExternalIDs returns which of externalIDs the tenant already stores
func (r *BankTransactionRepository) ExistingExternalIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	exec := sqlite.ExecutorFrom(ctx, r.db)

	for start := 0; start < len(externalIDs); start += externalIDChunk {
		end := start + externalIDChunk
		if end > len(externalIDs) {
			end = len(externalIDs)
		}
		chunk := externalIDs[start:end]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, tenantID)
		for _, id := range chunk {
			args = append(args, id)
		}

		rows, err := exec.QueryContext(ctx,
			`SELECT external_id FROM bank_transactions WHERE tenant_id = ? AND external_id IN (`+placeholders(len(chunk))+`)`,
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query external ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan external id: %w", err)
			}
			existing[id] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return existing, nil
}

// ListAll returns every transaction of the tenant ordered by id
func (r *BankTransactionRepository) ListAll(ctx context.Context, tenantID string) ([]*entity.BankTransaction, error) {
	return r.query(ctx,
		`SELECT `+bankTransactionColumns+` FROM bank_transactions WHERE tenant_id = ? ORDER BY id`,
		tenantID,
	)
}

// List returns a page of transactions, most recently posted first
func (r *BankTransactionRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.BankTransaction, error) {
	return r.query(ctx,
		`SELECT `+bankTransactionColumns+` FROM bank_transactions WHERE tenant_id = ? ORDER BY posted_at DESC, id LIMIT ? OFFSET ?`,
		tenantID, limit, offset,
	)
}

func (r *BankTransactionRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.BankTransaction, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query bank transactions", zap.Error(err))
		return nil, fmt.Errorf("failed to query bank transactions: %w", err)
	}
	defer rows.Close()

	txns := []*entity.BankTransaction{}
	for rows.Next() {
		txn, err := scanBankTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func scanBankTransaction(row rowScanner) (*entity.BankTransaction, error) {
	var (
		txn         entity.BankTransaction
		externalID  sql.NullString
		amountCents int64
		description sql.NullString
	)
	err := row.Scan(
		&txn.ID,
		&txn.TenantID,
		&externalID,
		&txn.PostedAt,
		&amountCents,
		&txn.Currency,
		&description,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.ExternalID = externalID.String
	txn.Amount = fromCents(amountCents)
	txn.Description = description.String
	txn.PostedAt = txn.PostedAt.UTC()
	return &txn, nil
}
