package ports

import (
	"context"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for player accounts.
// Methods accepting pgx.Tx run inside transaction blocks with pessimistic
// locking; balance writes happen only through UpdateBalances.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByWallet(ctx context.Context, walletAddress string) (*domain.Account, error)
	// GetByIDForUpdate locks the account row (SELECT ... FOR UPDATE).
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, available, locked decimal.Decimal) error
}

// ContractRepository defines persistence operations for wager contracts.
type ContractRepository interface {
	Create(ctx context.Context, contract *domain.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error)
	// GetByIDForUpdate locks the contract row so that concurrent lifecycle
	// transitions on the same contract serialize.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Contract, error)
	Update(ctx context.Context, tx pgx.Tx, contract *domain.Contract) error
	ListOpen(ctx context.Context, game string, status domain.ContractStatus, limit int) ([]domain.Contract, error)
	// ListStale returns accepted/started contracts with no activity since the
	// cutoff, for the refund sweep.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Contract, error)
}

// TransactionRepository appends immutable ledger records.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.TransactionRecord) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.TransactionRecord, error)
}

// WithdrawalRepository defines persistence for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, request *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, tx pgx.Tx, request *domain.WithdrawalRequest) error
	ListByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.WithdrawalRequest, error)
	// SumSince totals approved + completed withdrawals for the account created
	// after the cutoff. Used by the cooldown-window cap.
	SumSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error)
}

// RakeRepository accumulates collected rake per day.
type RakeRepository interface {
	// AddInTx upserts the daily rake totals inside the settlement transaction.
	AddInTx(ctx context.Context, tx pgx.Tx, day time.Time, usd, sol decimal.Decimal) error
	Totals(ctx context.Context, from, to time.Time) (usd, sol decimal.Decimal, err error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
