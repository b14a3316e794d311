package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// Scale of the settlement currency. Lamports are 1e-9 SOL.
	solScale = 9
	usdScale = 2

	settlementMaxRetries = 3
	settlementCacheTTL   = 24 * time.Hour
	openContractsLimit   = 50
	staleSweepBatch      = 100
)

var two = decimal.NewFromInt(2)

// EscrowServiceImpl drives the wager contract lifecycle:
// pending -> accepted -> started -> completed, with canceled reachable from
// pending and accepted. Completion is the only transition that pays out and
// happens at most once per contract.
type EscrowServiceImpl struct {
	contractRepo ports.ContractRepository
	ledger       ports.LedgerService
	oracle       ports.PriceOracle
	cache        ports.SettlementCache
	transactor   ports.DBTransactor
	metrics      *Metrics
	log          zerolog.Logger

	minWagerUSD decimal.Decimal
}

// NewEscrowService creates a new EscrowServiceImpl.
func NewEscrowService(
	contractRepo ports.ContractRepository,
	ledger ports.LedgerService,
	oracle ports.PriceOracle,
	cache ports.SettlementCache,
	transactor ports.DBTransactor,
	metrics *Metrics,
	log zerolog.Logger,
	minWagerUSD decimal.Decimal,
) *EscrowServiceImpl {
	return &EscrowServiceImpl{
		contractRepo: contractRepo,
		ledger:       ledger,
		oracle:       oracle,
		cache:        cache,
		transactor:   transactor,
		metrics:      metrics,
		log:          log,
		minWagerUSD:  minWagerUSD,
	}
}

// Create validates the wager and writes a pending contract. No funds move
// until the contract is accepted. The rake band is validated here so a
// contract that could never settle cannot exist.
func (s *EscrowServiceImpl) Create(ctx context.Context, req ports.CreateContractRequest) (*domain.Contract, error) {
	if req.WagerUSD.LessThan(s.minWagerUSD) {
		return nil, apperror.ErrBelowMinimumWager(s.minWagerUSD.StringFixed(usdScale))
	}
	if req.Game == "" {
		return nil, apperror.Validation("game is required")
	}
	switch req.MatchType {
	case domain.MatchTypeStandard, domain.MatchTypeStandardRematch, domain.MatchTypeLeaderboardRematch:
	default:
		return nil, apperror.Validation("unknown match type")
	}
	if _, err := RakeRate(req.WagerUSD, req.MatchType); err != nil {
		return nil, err
	}

	contract := &domain.Contract{
		ID:        uuid.New(),
		CreatorID: req.CreatorID,
		Game:      req.Game,
		AmountUSD: req.WagerUSD.Round(usdScale),
		AmountSOL: decimal.Zero,
		MatchType: req.MatchType,
		Status:    domain.ContractStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.contractRepo.Create(ctx, contract); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create contract: %w", err))
	}

	s.metrics.ContractsCreated.Inc()
	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("creator_id", req.CreatorID.String()).
		Str("wager_usd", contract.AmountUSD.String()).
		Str("match_type", string(req.MatchType)).
		Msg("contract created")

	return contract, nil
}

// Accept converts the USD quote to SOL at the current price and locks both
// parties' wagers atomically with the status transition. The price fetch
// happens before the transaction so an oracle outage mutates nothing.
func (s *EscrowServiceImpl) Accept(ctx context.Context, contractID, acceptorID uuid.UUID) (*domain.Contract, error) {
	price, err := s.oracle.SolPriceUSD(ctx)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	contract, err := s.contractRepo.GetByIDForUpdate(ctx, dbTx, contractID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock contract: %w", err))
	}
	if contract == nil {
		return nil, apperror.ErrContractNotFound()
	}
	if contract.Status != domain.ContractStatusPending {
		if contract.AcceptorID != nil {
			return nil, apperror.ErrAlreadyAccepted()
		}
		return nil, apperror.ErrInvalidContractState(string(contract.Status))
	}
	if contract.CreatorID == acceptorID {
		return nil, apperror.ErrSelfAccept()
	}

	amountSOL := contract.AmountUSD.Div(price).Round(solScale)
	now := time.Now().UTC()
	contract.AcceptorID = &acceptorID
	contract.AmountSOL = amountSOL
	contract.Status = domain.ContractStatusAccepted
	contract.AcceptedAt = &now

	if err := s.ledger.LockBothInTx(ctx, dbTx, contract.CreatorID, acceptorID, amountSOL, contract.ID); err != nil {
		return nil, err
	}
	if err := s.contractRepo.Update(ctx, dbTx, contract); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update contract: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("acceptor_id", acceptorID.String()).
		Str("amount_sol", amountSOL.String()).
		Str("sol_price_usd", price.String()).
		Msg("contract accepted, wagers locked")

	return contract, nil
}

// Start transitions accepted -> started and issues the game room ID. It is
// idempotent: a repeat call on a started contract returns the existing room
// ID so both clients join the same game instance.
func (s *EscrowServiceImpl) Start(ctx context.Context, contractID uuid.UUID) (string, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	contract, err := s.contractRepo.GetByIDForUpdate(ctx, dbTx, contractID)
	if err != nil {
		return "", apperror.ErrDatabaseError(fmt.Errorf("lock contract: %w", err))
	}
	if contract == nil {
		return "", apperror.ErrContractNotFound()
	}
	if contract.Status == domain.ContractStatusStarted && contract.RoomID != nil {
		return *contract.RoomID, nil
	}
	if contract.Status != domain.ContractStatusAccepted {
		return "", apperror.ErrInvalidContractState(string(contract.Status))
	}

	roomID := uuid.NewString()
	now := time.Now().UTC()
	contract.RoomID = &roomID
	contract.Status = domain.ContractStatusStarted
	contract.StartedAt = &now

	if err := s.contractRepo.Update(ctx, dbTx, contract); err != nil {
		return "", apperror.ErrDatabaseError(fmt.Errorf("update contract: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return "", apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("room_id", roomID).
		Msg("match started")

	return roomID, nil
}

// Complete settles a started contract from a trusted result report. It is
// idempotent: a repeat report of a completed contract returns the persisted
// summary without moving funds again. Serialization conflicts are retried a
// bounded number of times before surfacing as transient failures.
func (s *EscrowServiceImpl) Complete(ctx context.Context, contractID, winnerID, loserID uuid.UUID) (*domain.PayoutSummary, error) {
	if cached := s.cachedSummary(ctx, contractID); cached != nil {
		return cached, nil
	}

	// Fail closed before any mutation. A zero or stale price would corrupt
	// the payout math.
	price, err := s.oracle.SolPriceUSD(ctx)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	var summary *domain.PayoutSummary
	for attempt := 1; ; attempt++ {
		summary, err = s.completeOnce(ctx, contractID, winnerID, loserID, price)
		if err == nil {
			break
		}
		if attempt >= settlementMaxRetries || !isRetryableTxError(err) {
			if isRetryableTxError(err) {
				err = apperror.ErrTransientConflict(err)
			}
			s.metrics.ContractsSettled.WithLabelValues("error").Inc()
			return nil, err
		}
		s.log.Warn().
			Str("contract_id", contractID.String()).
			Int("attempt", attempt).
			Msg("settlement conflict, retrying")
	}

	s.metrics.ContractsSettled.WithLabelValues("completed").Inc()
	s.metrics.SettlementLatency.Observe(time.Since(started).Seconds())

	s.storeSummary(ctx, summary)
	return summary, nil
}

func (s *EscrowServiceImpl) completeOnce(ctx context.Context, contractID, winnerID, loserID uuid.UUID, price decimal.Decimal) (*domain.PayoutSummary, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	contract, err := s.contractRepo.GetByIDForUpdate(ctx, dbTx, contractID)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, apperror.ErrContractNotFound()
	}

	// Duplicate result callback: return the stored outcome unchanged.
	if contract.Status == domain.ContractStatusCompleted {
		return summaryFromContract(contract)
	}
	if contract.Status != domain.ContractStatusStarted {
		return nil, apperror.ErrInvalidContractState(string(contract.Status))
	}
	if !contract.HasParties(winnerID, loserID) {
		return nil, apperror.ErrResultPartyMismatch()
	}

	rate, err := RakeRate(contract.AmountUSD, contract.MatchType)
	if err != nil {
		return nil, err
	}

	potSOL := contract.AmountSOL.Mul(two)
	rakeSOL := potSOL.Mul(rate).Round(solScale)
	payoutSOL := potSOL.Sub(rakeSOL)
	rakeUSD := rakeSOL.Mul(price).Round(usdScale)
	payoutUSD := payoutSOL.Mul(price).Round(usdScale)

	if err := s.ledger.SettleInTx(ctx, dbTx, ports.SettlementInstruction{
		ContractID: contract.ID,
		WinnerID:   winnerID,
		LoserID:    loserID,
		WagerSOL:   contract.AmountSOL,
		RakeSOL:    rakeSOL,
		WagerUSD:   contract.AmountUSD,
		RakeUSD:    rakeUSD,
	}); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	contract.Status = domain.ContractStatusCompleted
	contract.WinnerID = &winnerID
	contract.LoserID = &loserID
	contract.RakeUSD = &rakeUSD
	contract.RakeSOL = &rakeSOL
	contract.WinnerPayoutUSD = &payoutUSD
	contract.WinnerPayoutSOL = &payoutSOL
	contract.CompletedAt = &now

	if err := s.contractRepo.Update(ctx, dbTx, contract); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, err
	}

	rakeFloat, _ := rakeSOL.Float64()
	s.metrics.RakeCollectedSOL.Add(rakeFloat)

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("winner_id", winnerID.String()).
		Str("rake_sol", rakeSOL.String()).
		Str("payout_sol", payoutSOL.String()).
		Msg("contract settled")

	return &domain.PayoutSummary{
		ContractID:      contract.ID,
		WinnerID:        winnerID,
		LoserID:         loserID,
		WagerUSD:        contract.AmountUSD,
		WagerSOL:        contract.AmountSOL,
		RakeRate:        rate,
		RakeUSD:         rakeUSD,
		RakeSOL:         rakeSOL,
		WinnerPayoutUSD: payoutUSD,
		WinnerPayoutSOL: payoutSOL,
		SettledAt:       now,
	}, nil
}

// Cancel voids a contract before the match starts. Only the creator may
// cancel; accepted contracts refund both locked wagers.
func (s *EscrowServiceImpl) Cancel(ctx context.Context, contractID, requesterID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	contract, err := s.contractRepo.GetByIDForUpdate(ctx, dbTx, contractID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("lock contract: %w", err))
	}
	if contract == nil {
		return apperror.ErrContractNotFound()
	}
	if contract.CreatorID != requesterID {
		return apperror.ErrNotCreator()
	}
	switch contract.Status {
	case domain.ContractStatusPending, domain.ContractStatusAccepted:
	case domain.ContractStatusStarted:
		return apperror.ErrAlreadyStarted()
	default:
		return apperror.ErrInvalidContractState(string(contract.Status))
	}

	if contract.Status == domain.ContractStatusAccepted {
		if err := s.releaseBoth(ctx, dbTx, contract); err != nil {
			return err
		}
	}

	contract.Status = domain.ContractStatusCanceled
	if err := s.contractRepo.Update(ctx, dbTx, contract); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("update contract: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.ContractsSettled.WithLabelValues("canceled").Inc()
	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("requester_id", requesterID.String()).
		Msg("contract canceled")

	return nil
}

// Get returns a contract by ID.
func (s *EscrowServiceImpl) Get(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error) {
	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get contract: %w", err))
	}
	if contract == nil {
		return nil, apperror.ErrContractNotFound()
	}
	return contract, nil
}

// ListOpen returns pending contracts for the lobby, optionally filtered by game.
func (s *EscrowServiceImpl) ListOpen(ctx context.Context, game string) ([]domain.Contract, error) {
	contracts, err := s.contractRepo.ListOpen(ctx, game, domain.ContractStatusPending, openContractsLimit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list open contracts: %w", err))
	}
	return contracts, nil
}

// ExpireStale refunds and cancels accepted or started contracts that have
// seen no activity beyond olderThan. Matches abandoned mid-game release both
// wagers rather than holding funds hostage.
func (s *EscrowServiceImpl) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.contractRepo.ListStale(ctx, cutoff, staleSweepBatch)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("list stale contracts: %w", err))
	}

	expired := 0
	for i := range stale {
		done, err := s.expireOne(ctx, stale[i].ID)
		if err != nil {
			s.log.Error().Err(err).
				Str("contract_id", stale[i].ID.String()).
				Msg("failed to expire stale contract")
			continue
		}
		if done {
			expired++
		}
	}

	if expired > 0 {
		s.metrics.StaleExpired.Add(float64(expired))
		s.log.Info().Int("expired", expired).Msg("stale contract sweep complete")
	}
	return expired, nil
}

func (s *EscrowServiceImpl) expireOne(ctx context.Context, contractID uuid.UUID) (bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	contract, err := s.contractRepo.GetByIDForUpdate(ctx, dbTx, contractID)
	if err != nil {
		return false, err
	}
	// Re-check under lock: the contract may have settled since the list query.
	if contract == nil || contract.IsTerminal() {
		return false, nil
	}

	if err := s.releaseBoth(ctx, dbTx, contract); err != nil {
		return false, err
	}
	contract.Status = domain.ContractStatusCanceled
	if err := s.contractRepo.Update(ctx, dbTx, contract); err != nil {
		return false, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *EscrowServiceImpl) releaseBoth(ctx context.Context, tx pgx.Tx, contract *domain.Contract) error {
	if contract.AcceptorID == nil || contract.AmountSOL.IsZero() {
		return nil
	}
	if err := s.ledger.ReleaseInTx(ctx, tx, contract.CreatorID, contract.AmountSOL, contract.ID); err != nil {
		return err
	}
	return s.ledger.ReleaseInTx(ctx, tx, *contract.AcceptorID, contract.AmountSOL, contract.ID)
}

func (s *EscrowServiceImpl) cachedSummary(ctx context.Context, contractID uuid.UUID) *domain.PayoutSummary {
	data, err := s.cache.Get(ctx, contractID)
	if err != nil || data == nil {
		return nil
	}
	var summary domain.PayoutSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil
	}
	return &summary
}

func (s *EscrowServiceImpl) storeSummary(ctx context.Context, summary *domain.PayoutSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summary.ContractID, data, settlementCacheTTL); err != nil {
		s.log.Warn().Err(err).
			Str("contract_id", summary.ContractID.String()).
			Msg("failed to cache settlement summary")
	}
}

func summaryFromContract(c *domain.Contract) (*domain.PayoutSummary, error) {
	if c.WinnerID == nil || c.LoserID == nil || c.RakeSOL == nil || c.CompletedAt == nil {
		return nil, apperror.InternalError(errors.New("completed contract missing result fields"))
	}
	rate, err := RakeRate(c.AmountUSD, c.MatchType)
	if err != nil {
		return nil, err
	}
	summary := &domain.PayoutSummary{
		ContractID: c.ID,
		WinnerID:   *c.WinnerID,
		LoserID:    *c.LoserID,
		WagerUSD:   c.AmountUSD,
		WagerSOL:   c.AmountSOL,
		RakeRate:   rate,
		SettledAt:  *c.CompletedAt,
	}
	if c.RakeUSD != nil {
		summary.RakeUSD = *c.RakeUSD
	}
	summary.RakeSOL = *c.RakeSOL
	if c.WinnerPayoutUSD != nil {
		summary.WinnerPayoutUSD = *c.WinnerPayoutUSD
	}
	if c.WinnerPayoutSOL != nil {
		summary.WinnerPayoutSOL = *c.WinnerPayoutSOL
	}
	return summary, nil
}

// isRetryableTxError reports whether the error is a serialization failure or
// deadlock, both of which are safe to retry after rollback.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
