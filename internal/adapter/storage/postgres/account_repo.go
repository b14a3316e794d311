package postgres

import (
	"context"
	"errors"
	"fmt"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account into the database.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (id, wallet_address, username, available_balance, locked_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.WalletAddress, a.Username,
		a.AvailableBalance, a.LockedBalance, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, wallet_address, username, available_balance, locked_balance, created_at, updated_at
		FROM accounts WHERE id = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.WalletAddress, &a.Username,
		&a.AvailableBalance, &a.LockedBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// GetByWallet fetches an account by its wallet public key.
func (r *AccountRepo) GetByWallet(ctx context.Context, walletAddress string) (*domain.Account, error) {
	query := `SELECT id, wallet_address, username, available_balance, locked_balance, created_at, updated_at
		FROM accounts WHERE wallet_address = $1`

	a := &domain.Account{}
	err := r.pool.QueryRow(ctx, query, walletAddress).Scan(
		&a.ID, &a.WalletAddress, &a.Username,
		&a.AvailableBalance, &a.LockedBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account by wallet: %w", err)
	}
	return a, nil
}

// GetByIDForUpdate fetches an account by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, wallet_address, username, available_balance, locked_balance, created_at, updated_at
		FROM accounts WHERE id = $1 FOR UPDATE`

	a := &domain.Account{}
	err := tx.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.WalletAddress, &a.Username,
		&a.AvailableBalance, &a.LockedBalance, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account for update: %w", err)
	}
	return a, nil
}

// UpdateBalances writes both balances within a transaction. The row must
// already be locked via GetByIDForUpdate.
func (r *AccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, available, locked decimal.Decimal) error {
	query := `UPDATE accounts SET available_balance = $1, locked_balance = $2, updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, available, locked, id)
	if err != nil {
		return fmt.Errorf("update account balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}
