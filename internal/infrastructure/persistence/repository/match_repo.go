package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/garyjia/invoice-reconciler/internal/domain/entity"
	"github.com/garyjia/invoice-reconciler/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const matchColumns = `id, tenant_id, invoice_id, bank_transaction_id, score, status, reasoning, created_at`

// MatchRepository implements port.MatchRepository
type MatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMatchRepository creates a new match candidate repository
func NewMatchRepository(db *sql.DB, logger *zap.Logger) port.MatchRepository {
	return &MatchRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts candidates in order. Scores are stored as 4-place decimal text.
func (r *MatchRepository) CreateBatch(ctx context.Context, matches []*entity.MatchCandidate) error {
	exec := sqlite.ExecutorFrom(ctx, r.db)
	query := `INSERT INTO match_candidates (` + matchColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, m := range matches {
		_, err := exec.ExecContext(ctx, query,
			m.ID,
			m.TenantID,
			m.InvoiceID,
			m.BankTransactionID,
			m.Score.StringFixed(4),
			string(m.Status),
			m.Reasoning,
			m.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create match candidate",
				zap.String("invoice_id", m.InvoiceID),
				zap.String("bank_transaction_id", m.BankTransactionID),
				zap.Error(err))
			return wrapWriteError("failed to create match candidate", err)
		}
	}
	return nil
}

// GetByID retrieves a candidate of the tenant
func (r *MatchRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.MatchCandidate, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM match_candidates WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	m, err := scanMatch(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match candidate: %w", err)
	}
	return m, nil
}

// List returns candidates ordered by score descending, then id
func (r *MatchRepository) List(ctx context.Context, tenantID string, status *entity.MatchStatus) ([]*entity.MatchCandidate, error) {
	query := `SELECT ` + matchColumns + ` FROM match_candidates WHERE tenant_id = ?`
	args := []interface{}{tenantID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY CAST(score AS REAL) DESC, id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list match candidates", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list match candidates: %w", err)
	}
	defer rows.Close()

	matches := []*entity.MatchCandidate{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match candidate: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ConfirmedInvoiceIDs returns invoices owning a CONFIRMED candidate
func (r *MatchRepository) ConfirmedInvoiceIDs(ctx context.Context, tenantID string) (map[string]bool, error) {
	return r.idSet(ctx,
		`SELECT DISTINCT invoice_id FROM match_candidates WHERE tenant_id = ? AND status = ?`,
		tenantID, string(entity.MatchStatusConfirmed))
}

// ConfirmedTransactionIDs returns transactions belonging to a CONFIRMED candidate
func (r *MatchRepository) ConfirmedTransactionIDs(ctx context.Context, tenantID string) (map[string]bool, error) {
	return r.idSet(ctx,
		`SELECT DISTINCT bank_transaction_id FROM match_candidates WHERE tenant_id = ? AND status = ?`,
		tenantID, string(entity.MatchStatusConfirmed))
}

// ExistingPairs returns every stored pair with its status
func (r *MatchRepository) ExistingPairs(ctx context.Context, tenantID string) (map[entity.Pair]entity.MatchStatus, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT invoice_id, bank_transaction_id, status FROM match_candidates WHERE tenant_id = ?`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query match pairs: %w", err)
	}
	defer rows.Close()

	pairs := make(map[entity.Pair]entity.MatchStatus)
	for rows.Next() {
		var (
			pair   entity.Pair
			status string
		)
		if err := rows.Scan(&pair.InvoiceID, &pair.TransactionID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan match pair: %w", err)
		}
		pairs[pair] = entity.MatchStatus(status)
	}
	return pairs, rows.Err()
}

// DeleteProposed removes every PROPOSED candidate of the tenant
func (r *MatchRepository) DeleteProposed(ctx context.Context, tenantID string) (int64, error) {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`DELETE FROM match_candidates WHERE tenant_id = ? AND status = ?`,
		tenantID, string(entity.MatchStatusProposed),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete proposed candidates: %w", err)
	}
	return result.RowsAffected()
}

// UpdateStatus sets the status of one candidate
func (r *MatchRepository) UpdateStatus(ctx context.Context, tenantID, id string, status entity.MatchStatus) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx,
		`UPDATE match_candidates SET status = ? WHERE tenant_id = ? AND id = ?`,
		string(status), tenantID, id,
	)
	if err != nil {
		r.logger.Error("Failed to update match status", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update match status: %w", err)
	}
	return requireAffected(result, "match candidate", id)
}

// RejectProposedSiblings rejects the invoice's other PROPOSED candidates
func (r *MatchRepository) RejectProposedSiblings(ctx context.Context, tenantID, invoiceID, keepID string) (int64, error) {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE match_candidates SET status = ?
		WHERE tenant_id = ? AND invoice_id = ? AND id != ? AND status = ?`,
		string(entity.MatchStatusRejected), tenantID, invoiceID, keepID, string(entity.MatchStatusProposed),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reject sibling candidates: %w", err)
	}
	return result.RowsAffected()
}

func (r *MatchRepository) idSet(ctx context.Context, query string, args ...interface{}) (map[string]bool, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func scanMatch(row rowScanner) (*entity.MatchCandidate, error) {
	var (
		m         entity.MatchCandidate
		score     string
		status    string
		reasoning sql.NullString
	)
	err := row.Scan(&m.ID, &m.TenantID, &m.InvoiceID, &m.BankTransactionID, &score, &status, &reasoning, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	m.Score, err = decimal.NewFromString(score)
	if err != nil {
		return nil, fmt.Errorf("invalid stored score %q: %w", score, err)
	}
	m.Status = entity.MatchStatus(status)
	m.Reasoning = reasoning.String
	return &m, nil
}
