package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

const withdrawalColumns = `id, account_id, destination_enc, amount_sol, status, denial_reason, denial_note, tx_signature, created_at, resolved_at`

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	w := &domain.WithdrawalRequest{}
	err := row.Scan(
		&w.ID, &w.AccountID, &w.Destination, &w.AmountSOL, &w.Status,
		&w.Reason, &w.ReasonNote, &w.TxSignature, &w.CreatedAt, &w.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Create inserts a new withdrawal request. Destination is the encrypted form.
func (r *WithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	query := `INSERT INTO withdrawals (id, account_id, destination_enc, amount_sol, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.AccountID, w.Destination, w.AmountSOL, w.Status, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID fetches a withdrawal request by its UUID (without locking).
func (r *WithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// GetByIDForUpdate fetches a withdrawal request with pessimistic locking so
// concurrent approve/deny attempts serialize.
// This MUST be called within a transaction.
func (r *WithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`

	w, err := scanWithdrawal(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal for update: %w", err)
	}
	return w, nil
}

// Update writes the mutable resolution fields within a transaction.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	query := `UPDATE withdrawals SET
		status = $1, denial_reason = $2, denial_note = $3, tx_signature = $4, resolved_at = $5
		WHERE id = $6`

	tag, err := tx.Exec(ctx, query,
		w.Status, w.Reason, w.ReasonNote, w.TxSignature, w.ResolvedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", w.ID)
	}
	return nil
}

// ListByStatus returns withdrawal requests in the given status, oldest first
// so the admin queue processes in arrival order.
func (r *WithdrawalRepo) ListByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var requests []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		requests = append(requests, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return requests, nil
}

// SumSince totals the account's debited withdrawals (approved, processing,
// completed) created after the cutoff. Pending and denied requests do not
// count against the cap.
func (r *WithdrawalRepo) SumSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount_sol), 0) FROM withdrawals
		WHERE account_id = $1
		AND status IN ('approved', 'processing', 'completed')
		AND created_at >= $2`

	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, query, accountID, since).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum withdrawals: %w", err)
	}
	return total, nil
}
