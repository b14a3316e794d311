package service

import (
	"context"
	"fmt"
	"time"

	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const withdrawalListLimit = 100

// WithdrawalServiceImpl gates outbound transfers. Requests within the rolling
// cooldown cap are processed immediately; anything above the cap parks as
// pending until an admin approves or denies it. Destination addresses are
// stored encrypted.
type WithdrawalServiceImpl struct {
	withdrawalRepo ports.WithdrawalRepository
	accountRepo    ports.AccountRepository
	ledger         ports.LedgerService
	transferor     ports.FundsTransferor
	encSvc         ports.EncryptionService
	transactor     ports.DBTransactor
	metrics        *Metrics
	log            zerolog.Logger

	capSOL   decimal.Decimal
	cooldown time.Duration
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	withdrawalRepo ports.WithdrawalRepository,
	accountRepo ports.AccountRepository,
	ledger ports.LedgerService,
	transferor ports.FundsTransferor,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	metrics *Metrics,
	log zerolog.Logger,
	capSOL decimal.Decimal,
	cooldown time.Duration,
) *WithdrawalServiceImpl {
	return &WithdrawalServiceImpl{
		withdrawalRepo: withdrawalRepo,
		accountRepo:    accountRepo,
		ledger:         ledger,
		transferor:     transferor,
		encSvc:         encSvc,
		transactor:     transactor,
		metrics:        metrics,
		log:            log,
		capSOL:         capSOL,
		cooldown:       cooldown,
	}
}

// Submit records a withdrawal request. Exceeding the cooldown-window cap is
// not an error: the request routes to the pending queue instead of being
// processed immediately.
func (s *WithdrawalServiceImpl) Submit(ctx context.Context, accountID uuid.UUID, amountSOL decimal.Decimal, destination string) (*domain.WithdrawalRequest, error) {
	if amountSOL.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if destination == "" {
		return nil, apperror.Validation("destination address is required")
	}

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	if account.AvailableBalance.LessThan(amountSOL) {
		return nil, apperror.ErrInsufficientFunds()
	}

	encDest, err := s.encSvc.Encrypt(destination)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt destination: %w", err))
	}

	request := &domain.WithdrawalRequest{
		ID:          uuid.New(),
		AccountID:   accountID,
		Destination: encDest,
		AmountSOL:   amountSOL,
		Status:      domain.WithdrawalStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.withdrawalRepo.Create(ctx, request); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create withdrawal: %w", err))
	}

	// The window sum runs outside the debit transaction: the cap throttles
	// withdrawal velocity, while the ledger debit alone guards balances.
	// Concurrent submits can land on either side of the cap.
	windowTotal, err := s.withdrawalRepo.SumSince(ctx, accountID, request.CreatedAt.Add(-s.cooldown))
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("sum recent withdrawals: %w", err))
	}

	if windowTotal.Add(amountSOL).GreaterThan(s.capSOL) {
		s.metrics.WithdrawalsTotal.WithLabelValues("queued").Inc()
		s.log.Info().
			Str("request_id", request.ID.String()).
			Str("account_id", accountID.String()).
			Str("amount_sol", amountSOL.String()).
			Str("window_total_sol", windowTotal.String()).
			Msg("withdrawal over cap, queued for review")
		return request, nil
	}

	// Within the cap: process immediately through the same approval path an
	// admin would take.
	if _, err := s.Approve(ctx, request.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, request.ID)
}

// Approve debits the account and sends the on-chain transfer. The debit
// commits before the transfer is attempted, so a chain failure never leaves
// funds both in the account and on the wire. The transfer runs under a
// persisted processing claim: concurrent approvals of the same request are
// rejected instead of sending twice. Re-approving a request whose transfer
// failed retries only the transfer; re-approving a completed request returns
// the existing signature.
func (s *WithdrawalServiceImpl) Approve(ctx context.Context, requestID uuid.UUID) (string, error) {
	request, err := s.claimTransfer(ctx, requestID)
	if err != nil {
		return "", err
	}
	if request.Status == domain.WithdrawalStatusCompleted {
		if request.TxSignature != nil {
			return *request.TxSignature, nil
		}
		return "", nil
	}

	destination, err := s.encSvc.Decrypt(request.Destination)
	if err != nil {
		s.releaseClaim(ctx, requestID)
		return "", apperror.InternalError(fmt.Errorf("decrypt destination: %w", err))
	}

	signature, err := s.transferor.Transfer(ctx, destination, request.AmountSOL)
	if err != nil {
		s.metrics.WithdrawalsTotal.WithLabelValues("transfer_failed").Inc()
		s.releaseClaim(ctx, requestID)
		s.log.Error().Err(err).
			Str("request_id", requestID.String()).
			Msg("chain transfer failed, request stays approved")
		return "", apperror.ErrTransferFailed(err)
	}

	if err := s.markCompleted(ctx, requestID, signature); err != nil {
		// Funds left the treasury; surface the signature so the operator can
		// reconcile even though the status write failed.
		s.log.Error().Err(err).
			Str("request_id", requestID.String()).
			Str("tx_signature", signature).
			Msg("failed to record completed withdrawal")
		return signature, err
	}

	s.metrics.WithdrawalsTotal.WithLabelValues("completed").Inc()
	s.log.Info().
		Str("request_id", requestID.String()).
		Str("tx_signature", signature).
		Msg("withdrawal completed")

	return signature, nil
}

// claimTransfer moves the request into processing and, on first approval,
// debits the account in the same transaction. Only the holder of the
// processing claim may send the chain transfer, so a concurrent approval
// cannot produce a second send. A claim stuck in processing (completion
// write failed after a successful transfer) blocks re-approval until an
// operator reconciles it against the logged signature.
func (s *WithdrawalServiceImpl) claimTransfer(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, requestID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}

	switch request.Status {
	case domain.WithdrawalStatusDenied:
		return nil, apperror.ErrWithdrawalAlreadyResolved()
	case domain.WithdrawalStatusCompleted:
		return request, nil
	case domain.WithdrawalStatusProcessing:
		return nil, apperror.ErrTransferInFlight()
	case domain.WithdrawalStatusPending:
		if err := s.ledger.DebitForWithdrawalInTx(ctx, dbTx, request.AccountID, request.AmountSOL, request.ID); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		request.ResolvedAt = &now
	}

	request.Status = domain.WithdrawalStatusProcessing
	if err := s.withdrawalRepo.Update(ctx, dbTx, request); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return request, nil
}

// releaseClaim returns a processing request to approved so a later approval
// retries the transfer. The debit stays in place.
func (s *WithdrawalServiceImpl) releaseClaim(ctx context.Context, requestID uuid.UUID) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		s.log.Error().Err(err).
			Str("request_id", requestID.String()).
			Msg("failed to release transfer claim")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, requestID)
	if err != nil {
		s.log.Error().Err(err).
			Str("request_id", requestID.String()).
			Msg("failed to release transfer claim")
		return
	}
	if request == nil || request.Status != domain.WithdrawalStatusProcessing {
		return
	}

	request.Status = domain.WithdrawalStatusApproved
	if err := s.withdrawalRepo.Update(ctx, dbTx, request); err != nil {
		s.log.Error().Err(err).
			Str("request_id", requestID.String()).
			Msg("failed to release transfer claim")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		s.log.Error().Err(err).
			Str("request_id", requestID.String()).
			Msg("failed to release transfer claim")
	}
}

func (s *WithdrawalServiceImpl) markCompleted(ctx context.Context, requestID uuid.UUID, signature string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, requestID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if request == nil {
		return apperror.ErrWithdrawalNotFound()
	}

	request.Status = domain.WithdrawalStatusCompleted
	request.TxSignature = &signature
	if err := s.withdrawalRepo.Update(ctx, dbTx, request); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("update withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Deny resolves a pending request with an enumerated reason. No funds move;
// the debit only ever happens on approval.
func (s *WithdrawalServiceImpl) Deny(ctx context.Context, requestID uuid.UUID, reason domain.DenialReason, note string) error {
	if !domain.ValidDenialReason(reason) {
		return apperror.ErrInvalidDenialReason()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	request, err := s.withdrawalRepo.GetByIDForUpdate(ctx, dbTx, requestID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock withdrawal: %w", err))
	}
	if request == nil {
		return apperror.ErrWithdrawalNotFound()
	}
	if request.Status != domain.WithdrawalStatusPending {
		return apperror.ErrWithdrawalAlreadyResolved()
	}

	now := time.Now().UTC()
	request.Status = domain.WithdrawalStatusDenied
	request.Reason = &reason
	request.ResolvedAt = &now
	if note != "" {
		request.ReasonNote = &note
	}
	if err := s.withdrawalRepo.Update(ctx, dbTx, request); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("update withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.WithdrawalsTotal.WithLabelValues("denied").Inc()
	s.log.Info().
		Str("request_id", requestID.String()).
		Str("reason", string(reason)).
		Msg("withdrawal denied")

	return nil
}

// Get returns a withdrawal request by ID.
func (s *WithdrawalServiceImpl) Get(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get withdrawal: %w", err))
	}
	if request == nil {
		return nil, apperror.ErrWithdrawalNotFound()
	}
	return request, nil
}

// ListByStatus returns withdrawal requests in the given state, newest first.
func (s *WithdrawalServiceImpl) ListByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]domain.WithdrawalRequest, error) {
	requests, err := s.withdrawalRepo.ListByStatus(ctx, status, withdrawalListLimit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list withdrawals: %w", err))
	}
	return requests, nil
}
