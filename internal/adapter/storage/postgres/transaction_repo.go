package postgres

import (
	"context"
	"fmt"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. Records are
// append-only; there is no update or delete path.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger record within the caller's transaction so the
// record commits atomically with the balance change it describes.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.TransactionRecord) error {
	query := `INSERT INTO transactions (id, account_id, type, amount_sol, amount_usd, currency, counterparty_id, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.AccountID, rec.Type, rec.AmountSOL, rec.AmountUSD,
		rec.Currency, rec.Counterparty, rec.Reference, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

// ListByAccount returns an account's records, newest first.
func (r *TransactionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.TransactionRecord, error) {
	query := `SELECT id, account_id, type, amount_sol, amount_usd, currency, counterparty_id, reference_id, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(
			&rec.ID, &rec.AccountID, &rec.Type, &rec.AmountSOL, &rec.AmountUSD,
			&rec.Currency, &rec.Counterparty, &rec.Reference, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}
