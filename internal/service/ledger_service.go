package service

import (
	"context"
	"fmt"
	"time"

	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService. It is the only writer of
// account balances; every mutation pairs a balance update with exactly one
// append-only transaction record inside the same database transaction.
type LedgerServiceImpl struct {
	accountRepo ports.AccountRepository
	txRepo      ports.TransactionRepository
	rakeRepo    ports.RakeRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	accountRepo ports.AccountRepository,
	txRepo ports.TransactionRepository,
	rakeRepo ports.RakeRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		rakeRepo:    rakeRepo,
		transactor:  transactor,
		log:         log,
	}
}

// Lock moves amount from available to locked balance in its own transaction.
// The FOR UPDATE read serializes concurrent locks against the same account,
// so available never goes negative even when callers race.
func (s *LedgerServiceImpl) Lock(ctx context.Context, accountID uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error {
	if amountSOL.Sign() <= 0 {
		return apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.lockInTx(ctx, dbTx, accountID, amountSOL, contractID); err != nil {
		return err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("amount_sol", amountSOL.String()).
		Str("contract_id", contractID.String()).
		Msg("wager locked")

	return nil
}

// LockBothInTx locks both parties' wagers inside the caller's transaction.
// Accounts are acquired in ID order so two contracts sharing parties cannot
// deadlock each other.
func (s *LedgerServiceImpl) LockBothInTx(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error {
	if amountSOL.Sign() <= 0 {
		return apperror.ErrInvalidAmount()
	}
	first, second := orderAccounts(a, b)
	if err := s.lockInTx(ctx, tx, first, amountSOL, contractID); err != nil {
		return err
	}
	return s.lockInTx(ctx, tx, second, amountSOL, contractID)
}

func (s *LedgerServiceImpl) lockInTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error {
	account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}
	if account.AvailableBalance.LessThan(amountSOL) {
		return apperror.ErrInsufficientFunds()
	}

	available := account.AvailableBalance.Sub(amountSOL)
	locked := account.LockedBalance.Add(amountSOL)
	if err := s.accountRepo.UpdateBalances(ctx, tx, accountID, available, locked); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	ref := contractID
	record := &domain.TransactionRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      domain.TransactionTypeLock,
		AmountSOL: amountSOL,
		Currency:  domain.SettlementCurrency,
		Reference: &ref,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, tx, record); err != nil {
		return apperror.InternalError(fmt.Errorf("create lock record: %w", err))
	}
	return nil
}

// ReleaseInTx moves amount back from locked to available (cancel/refund path).
func (s *LedgerServiceImpl) ReleaseInTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error {
	account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}
	if account.LockedBalance.LessThan(amountSOL) {
		return apperror.ErrInsufficientLockedFunds()
	}

	available := account.AvailableBalance.Add(amountSOL)
	locked := account.LockedBalance.Sub(amountSOL)
	if err := s.accountRepo.UpdateBalances(ctx, tx, accountID, available, locked); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	ref := contractID
	record := &domain.TransactionRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      domain.TransactionTypeRelease,
		AmountSOL: amountSOL,
		Currency:  domain.SettlementCurrency,
		Reference: &ref,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, tx, record); err != nil {
		return apperror.InternalError(fmt.Errorf("create release record: %w", err))
	}
	return nil
}

// SettleInTx performs the winner/loser mutation inside the caller's
// transaction. Both locked wagers leave escrow: the winner's wager returns as
// part of the pot-minus-rake credit, the loser's is forfeited. One game-won
// and one game-lost record are written, and the daily rake accumulator is
// updated, all atomically with the contract status write the caller holds.
func (s *LedgerServiceImpl) SettleInTx(ctx context.Context, tx pgx.Tx, ins ports.SettlementInstruction) error {
	first, second := orderAccounts(ins.WinnerID, ins.LoserID)

	accounts := make(map[uuid.UUID]*domain.Account, 2)
	for _, id := range []uuid.UUID{first, second} {
		account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock account: %w", err))
		}
		if account == nil {
			return apperror.ErrAccountNotFound()
		}
		accounts[id] = account
	}

	winner := accounts[ins.WinnerID]
	loser := accounts[ins.LoserID]

	if winner.LockedBalance.LessThan(ins.WagerSOL) || loser.LockedBalance.LessThan(ins.WagerSOL) {
		return apperror.ErrInsufficientLockedFunds()
	}

	pot := ins.WagerSOL.Mul(decimal.NewFromInt(2))
	winnerCredit := pot.Sub(ins.RakeSOL) // includes the winner's own returned wager

	winnerAvailable := winner.AvailableBalance.Add(winnerCredit)
	winnerLocked := winner.LockedBalance.Sub(ins.WagerSOL)
	if err := s.accountRepo.UpdateBalances(ctx, tx, ins.WinnerID, winnerAvailable, winnerLocked); err != nil {
		return apperror.InternalError(fmt.Errorf("update winner balances: %w", err))
	}

	loserLocked := loser.LockedBalance.Sub(ins.WagerSOL)
	if err := s.accountRepo.UpdateBalances(ctx, tx, ins.LoserID, loser.AvailableBalance, loserLocked); err != nil {
		return apperror.InternalError(fmt.Errorf("update loser balances: %w", err))
	}

	now := time.Now().UTC()
	contractRef := ins.ContractID
	winnerRef := ins.WinnerID
	loserRef := ins.LoserID

	wonRecord := &domain.TransactionRecord{
		ID:           uuid.New(),
		AccountID:    ins.WinnerID,
		Type:         domain.TransactionTypeGameWon,
		AmountSOL:    ins.WagerSOL.Sub(ins.RakeSOL), // net gain over the returned wager
		AmountUSD:    ins.WagerUSD.Sub(ins.RakeUSD),
		Currency:     domain.SettlementCurrency,
		Counterparty: &loserRef,
		Reference:    &contractRef,
		CreatedAt:    now,
	}
	if err := s.txRepo.Create(ctx, tx, wonRecord); err != nil {
		return apperror.InternalError(fmt.Errorf("create game-won record: %w", err))
	}

	lostRecord := &domain.TransactionRecord{
		ID:           uuid.New(),
		AccountID:    ins.LoserID,
		Type:         domain.TransactionTypeGameLost,
		AmountSOL:    ins.WagerSOL,
		AmountUSD:    ins.WagerUSD,
		Currency:     domain.SettlementCurrency,
		Counterparty: &winnerRef,
		Reference:    &contractRef,
		CreatedAt:    now,
	}
	if err := s.txRepo.Create(ctx, tx, lostRecord); err != nil {
		return apperror.InternalError(fmt.Errorf("create game-lost record: %w", err))
	}

	if err := s.rakeRepo.AddInTx(ctx, tx, now, ins.RakeUSD, ins.RakeSOL); err != nil {
		return apperror.InternalError(fmt.Errorf("accumulate rake: %w", err))
	}

	return nil
}

// Deposit credits available balance in its own transaction.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, accountID uuid.UUID, amountSOL decimal.Decimal) error {
	if amountSOL.Sign() <= 0 {
		return apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}

	available := account.AvailableBalance.Add(amountSOL)
	if err := s.accountRepo.UpdateBalances(ctx, dbTx, accountID, available, account.LockedBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	record := &domain.TransactionRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      domain.TransactionTypeDeposit,
		AmountSOL: amountSOL,
		Currency:  domain.SettlementCurrency,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, record); err != nil {
		return apperror.InternalError(fmt.Errorf("create deposit record: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("account_id", accountID.String()).
		Str("amount_sol", amountSOL.String()).
		Msg("deposit credited")

	return nil
}

// DebitForWithdrawalInTx debits available balance for an approved withdrawal
// inside the caller's transaction.
func (s *LedgerServiceImpl) DebitForWithdrawalInTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountSOL decimal.Decimal, withdrawalID uuid.UUID) error {
	account, err := s.accountRepo.GetByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return apperror.ErrAccountNotFound()
	}
	if account.AvailableBalance.LessThan(amountSOL) {
		return apperror.ErrInsufficientFunds()
	}

	available := account.AvailableBalance.Sub(amountSOL)
	if err := s.accountRepo.UpdateBalances(ctx, tx, accountID, available, account.LockedBalance); err != nil {
		return apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}

	ref := withdrawalID
	record := &domain.TransactionRecord{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      domain.TransactionTypeWithdraw,
		AmountSOL: amountSOL,
		Currency:  domain.SettlementCurrency,
		Reference: &ref,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, tx, record); err != nil {
		return apperror.InternalError(fmt.Errorf("create withdraw record: %w", err))
	}
	return nil
}

// GetBalance returns the account's available and locked balances.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, decimal.Decimal, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, decimal.Zero, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return decimal.Zero, decimal.Zero, apperror.ErrAccountNotFound()
	}
	return account.AvailableBalance, account.LockedBalance, nil
}

// orderAccounts returns the pair in ascending UUID order for deterministic
// lock acquisition.
func orderAccounts(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}
