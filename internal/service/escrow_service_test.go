package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/internal/core/ports/mocks"
	"duel-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type escrowTestDeps struct {
	svc          *EscrowServiceImpl
	contractRepo *mocks.MockContractRepository
	ledger       *mocks.MockLedgerService
	oracle       *mocks.MockPriceOracle
	cache        *mocks.MockSettlementCache
	transactor   *mocks.MockDBTransactor
	ctrl         *gomock.Controller
}

func setupEscrowService(t *testing.T) *escrowTestDeps {
	ctrl := gomock.NewController(t)
	d := &escrowTestDeps{
		contractRepo: mocks.NewMockContractRepository(ctrl),
		ledger:       mocks.NewMockLedgerService(ctrl),
		oracle:       mocks.NewMockPriceOracle(ctrl),
		cache:        mocks.NewMockSettlementCache(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewEscrowService(
		d.contractRepo, d.ledger, d.oracle, d.cache, d.transactor,
		NewMetrics(prometheus.NewRegistry()), zerolog.Nop(), dec("2.50"),
	)
	return d
}

func startedContract(creatorID, acceptorID uuid.UUID) *domain.Contract {
	roomID := uuid.NewString()
	now := time.Now().UTC()
	return &domain.Contract{
		ID:         uuid.New(),
		CreatorID:  creatorID,
		AcceptorID: &acceptorID,
		Game:       "chess",
		AmountUSD:  dec("20"),
		AmountSOL:  dec("0.1"),
		MatchType:  domain.MatchTypeStandard,
		Status:     domain.ContractStatusStarted,
		RoomID:     &roomID,
		CreatedAt:  now,
		AcceptedAt: &now,
		StartedAt:  &now,
	}
}

// ==================== Create Tests ====================

func TestEscrowService_Create_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	creatorID := uuid.New()

	d.contractRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, c *domain.Contract) error {
			assert.Equal(t, domain.ContractStatusPending, c.Status)
			assert.Equal(t, creatorID, c.CreatorID)
			assert.True(t, c.AmountUSD.Equal(dec("20")))
			assert.True(t, c.AmountSOL.IsZero(), "no escrow before accept")
			assert.Nil(t, c.AcceptorID)
			return nil
		})

	contract, err := d.svc.Create(ctx, ports.CreateContractRequest{
		CreatorID: creatorID,
		Game:      "chess",
		WagerUSD:  dec("20"),
		MatchType: domain.MatchTypeStandard,
	})
	require.NoError(t, err)
	require.NotNil(t, contract)
}

func TestEscrowService_Create_BelowMinimum(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreateContractRequest{
		CreatorID: uuid.New(),
		Game:      "chess",
		WagerUSD:  dec("2.49"),
		MatchType: domain.MatchTypeStandard,
	})
	require.Error(t, err)
	assertAppError(t, err, "ESC_001")
}

func TestEscrowService_Create_NoRakeBand(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	// Above the platform minimum but below the lowest rake band: no
	// settleable contract can be created for it.
	_, err := d.svc.Create(context.Background(), ports.CreateContractRequest{
		CreatorID: uuid.New(),
		Game:      "chess",
		WagerUSD:  dec("3"),
		MatchType: domain.MatchTypeStandard,
	})
	require.Error(t, err)
	assertAppError(t, err, "ESC_001")
}

func TestEscrowService_Create_InvalidInput(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreateContractRequest{
		CreatorID: uuid.New(),
		WagerUSD:  dec("20"),
		MatchType: domain.MatchTypeStandard,
	})
	require.Error(t, err)

	_, err = d.svc.Create(context.Background(), ports.CreateContractRequest{
		CreatorID: uuid.New(),
		Game:      "chess",
		WagerUSD:  dec("20"),
		MatchType: domain.MatchType("ranked"),
	})
	require.Error(t, err)
}

// ==================== Accept Tests ====================

func TestEscrowService_Accept_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	creatorID := uuid.New()
	acceptorID := uuid.New()
	tx := &mockTx{}

	pending := &domain.Contract{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Game:      "chess",
		AmountUSD: dec("20"),
		MatchType: domain.MatchTypeStandard,
		Status:    domain.ContractStatusPending,
	}

	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, pending.ID).Return(pending, nil)
	d.ledger.EXPECT().
		LockBothInTx(ctx, tx, creatorID, acceptorID, gomock.Any(), pending.ID).
		DoAndReturn(func(_ context.Context, _ interface{}, _, _ uuid.UUID, amount decimal.Decimal, _ uuid.UUID) error {
			// $20 at $200/SOL locks 0.1 SOL per party.
			assert.True(t, amount.Equal(dec("0.1")), "locked = %s", amount)
			return nil
		})
	d.contractRepo.EXPECT().Update(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, c *domain.Contract) error {
			assert.Equal(t, domain.ContractStatusAccepted, c.Status)
			require.NotNil(t, c.AcceptorID)
			assert.Equal(t, acceptorID, *c.AcceptorID)
			assert.True(t, c.AmountSOL.Equal(dec("0.1")))
			return nil
		})

	contract, err := d.svc.Accept(ctx, pending.ID, acceptorID)
	require.NoError(t, err)
	assert.Equal(t, domain.ContractStatusAccepted, contract.Status)
}

func TestEscrowService_Accept_OracleDown(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.oracle.EXPECT().SolPriceUSD(ctx).
		Return(decimal.Zero, apperror.ErrPriceUnavailable(assert.AnError))

	_, err := d.svc.Accept(ctx, uuid.New(), uuid.New())
	require.Error(t, err)
	assertAppError(t, err, "ORC_001")
}

func TestEscrowService_Accept_SelfAccept(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	creatorID := uuid.New()
	tx := &mockTx{}
	pending := &domain.Contract{
		ID:        uuid.New(),
		CreatorID: creatorID,
		AmountUSD: dec("20"),
		MatchType: domain.MatchTypeStandard,
		Status:    domain.ContractStatusPending,
	}

	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, pending.ID).Return(pending, nil)

	_, err := d.svc.Accept(ctx, pending.ID, creatorID)
	require.Error(t, err)
	assertAppError(t, err, "ESC_007")
}

func TestEscrowService_Accept_AlreadyAccepted(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acceptorID := uuid.New()
	contract := &domain.Contract{
		ID:         uuid.New(),
		CreatorID:  uuid.New(),
		AcceptorID: &acceptorID,
		AmountUSD:  dec("20"),
		Status:     domain.ContractStatusAccepted,
	}

	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	_, err := d.svc.Accept(ctx, contract.ID, uuid.New())
	require.Error(t, err)
	assertAppError(t, err, "ESC_003")
}

func TestEscrowService_Accept_NotFound(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, gomock.Any()).Return(nil, nil)

	_, err := d.svc.Accept(ctx, uuid.New(), uuid.New())
	require.Error(t, err)
	assertAppError(t, err, "ESC_002")
}

// ==================== Start Tests ====================

func TestEscrowService_Start_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acceptorID := uuid.New()
	contract := &domain.Contract{
		ID:         uuid.New(),
		CreatorID:  uuid.New(),
		AcceptorID: &acceptorID,
		AmountUSD:  dec("20"),
		AmountSOL:  dec("0.1"),
		Status:     domain.ContractStatusAccepted,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)
	d.contractRepo.EXPECT().Update(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, c *domain.Contract) error {
			assert.Equal(t, domain.ContractStatusStarted, c.Status)
			require.NotNil(t, c.RoomID)
			return nil
		})

	roomID, err := d.svc.Start(ctx, contract.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, roomID)
}

func TestEscrowService_Start_RepeatReturnsSameRoom(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	contract := startedContract(uuid.New(), uuid.New())

	// No Update: the repeat call only reads the existing room.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	roomID, err := d.svc.Start(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, *contract.RoomID, roomID)
}

func TestEscrowService_Start_NotAccepted(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	contract := &domain.Contract{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		AmountUSD: dec("20"),
		Status:    domain.ContractStatusPending,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	_, err := d.svc.Start(ctx, contract.ID)
	require.Error(t, err)
	assertAppError(t, err, "ESC_006")
}

// ==================== Complete Tests ====================

func TestEscrowService_Complete_Success(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	creatorID := uuid.New()
	acceptorID := uuid.New()
	contract := startedContract(creatorID, acceptorID)

	d.cache.EXPECT().Get(ctx, contract.ID).Return(nil, nil)
	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)
	d.ledger.EXPECT().SettleInTx(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, ins ports.SettlementInstruction) error {
			assert.Equal(t, creatorID, ins.WinnerID)
			assert.Equal(t, acceptorID, ins.LoserID)
			assert.True(t, ins.WagerSOL.Equal(dec("0.1")))
			// pot 0.2 SOL * 4.5% = 0.009 SOL rake
			assert.True(t, ins.RakeSOL.Equal(dec("0.009")), "rake = %s", ins.RakeSOL)
			assert.True(t, ins.RakeUSD.Equal(dec("1.80")), "rake usd = %s", ins.RakeUSD)
			return nil
		})
	d.contractRepo.EXPECT().Update(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, c *domain.Contract) error {
			assert.Equal(t, domain.ContractStatusCompleted, c.Status)
			require.NotNil(t, c.WinnerPayoutSOL)
			assert.True(t, c.WinnerPayoutSOL.Equal(dec("0.191")))
			return nil
		})
	d.cache.EXPECT().Set(ctx, contract.ID, gomock.Any(), gomock.Any()).Return(nil)

	summary, err := d.svc.Complete(ctx, contract.ID, creatorID, acceptorID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.True(t, summary.WinnerPayoutSOL.Equal(dec("0.191")))
	assert.True(t, summary.WinnerPayoutUSD.Equal(dec("38.20")), "payout usd = %s", summary.WinnerPayoutUSD)
	assert.True(t, summary.RakeRate.Equal(dec("0.045")))
}

func TestEscrowService_Complete_DuplicateReport(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	creatorID := uuid.New()
	acceptorID := uuid.New()
	contract := startedContract(creatorID, acceptorID)

	now := time.Now().UTC()
	rakeSOL := dec("0.009")
	rakeUSD := dec("1.80")
	payoutSOL := dec("0.191")
	payoutUSD := dec("38.20")
	contract.Status = domain.ContractStatusCompleted
	contract.WinnerID = &creatorID
	contract.LoserID = &acceptorID
	contract.RakeSOL = &rakeSOL
	contract.RakeUSD = &rakeUSD
	contract.WinnerPayoutSOL = &payoutSOL
	contract.WinnerPayoutUSD = &payoutUSD
	contract.CompletedAt = &now

	d.cache.EXPECT().Get(ctx, contract.ID).Return(nil, nil)
	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)
	// No SettleInTx, no Update: funds must not move twice.
	d.cache.EXPECT().Set(ctx, contract.ID, gomock.Any(), gomock.Any()).Return(nil)

	summary, err := d.svc.Complete(ctx, contract.ID, creatorID, acceptorID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, creatorID, summary.WinnerID)
	assert.True(t, summary.WinnerPayoutSOL.Equal(payoutSOL))
}

func TestEscrowService_Complete_CacheHit(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	contractID := uuid.New()
	winnerID := uuid.New()

	cached, err := json.Marshal(&domain.PayoutSummary{
		ContractID:      contractID,
		WinnerID:        winnerID,
		WinnerPayoutSOL: dec("0.191"),
	})
	require.NoError(t, err)

	// No oracle call and no transaction on the cached path.
	d.cache.EXPECT().Get(ctx, contractID).Return(cached, nil)

	summary, err := d.svc.Complete(ctx, contractID, winnerID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, winnerID, summary.WinnerID)
}

func TestEscrowService_Complete_PriceUnavailable(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	contractID := uuid.New()

	d.cache.EXPECT().Get(ctx, contractID).Return(nil, nil)
	d.oracle.EXPECT().SolPriceUSD(ctx).
		Return(decimal.Zero, apperror.ErrPriceUnavailable(assert.AnError))
	// No transaction is ever begun: the failure leaves no partial mutation.

	_, err := d.svc.Complete(ctx, contractID, uuid.New(), uuid.New())
	require.Error(t, err)
	assertAppError(t, err, "ORC_001")
}

func TestEscrowService_Complete_PartyMismatch(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	contract := startedContract(uuid.New(), uuid.New())

	d.cache.EXPECT().Get(ctx, contract.ID).Return(nil, nil)
	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	_, err := d.svc.Complete(ctx, contract.ID, uuid.New(), uuid.New())
	require.Error(t, err)
	assertAppError(t, err, "ESC_008")
}

func TestEscrowService_Complete_NotStarted(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	acceptorID := uuid.New()
	contract := &domain.Contract{
		ID:         uuid.New(),
		CreatorID:  uuid.New(),
		AcceptorID: &acceptorID,
		AmountUSD:  dec("20"),
		AmountSOL:  dec("0.1"),
		Status:     domain.ContractStatusAccepted,
	}

	d.cache.EXPECT().Get(ctx, contract.ID).Return(nil, nil)
	d.oracle.EXPECT().SolPriceUSD(ctx).Return(dec("200"), nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	_, err := d.svc.Complete(ctx, contract.ID, contract.CreatorID, acceptorID)
	require.Error(t, err)
	assertAppError(t, err, "ESC_006")
}

// ==================== Cancel Tests ====================

func TestEscrowService_Cancel_Pending(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	creatorID := uuid.New()
	contract := &domain.Contract{
		ID:        uuid.New(),
		CreatorID: creatorID,
		AmountUSD: dec("20"),
		Status:    domain.ContractStatusPending,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)
	// Nothing locked yet, so no ledger release.
	d.contractRepo.EXPECT().Update(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, c *domain.Contract) error {
			assert.Equal(t, domain.ContractStatusCanceled, c.Status)
			return nil
		})

	err := d.svc.Cancel(ctx, contract.ID, creatorID)
	require.NoError(t, err)
}

func TestEscrowService_Cancel_AcceptedRefundsBoth(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	creatorID := uuid.New()
	acceptorID := uuid.New()
	contract := &domain.Contract{
		ID:         uuid.New(),
		CreatorID:  creatorID,
		AcceptorID: &acceptorID,
		AmountUSD:  dec("20"),
		AmountSOL:  dec("0.1"),
		Status:     domain.ContractStatusAccepted,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)
	d.ledger.EXPECT().ReleaseInTx(ctx, tx, creatorID, dec("0.1"), contract.ID).Return(nil)
	d.ledger.EXPECT().ReleaseInTx(ctx, tx, acceptorID, dec("0.1"), contract.ID).Return(nil)
	d.contractRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)

	err := d.svc.Cancel(ctx, contract.ID, creatorID)
	require.NoError(t, err)
}

func TestEscrowService_Cancel_NotCreator(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	contract := &domain.Contract{
		ID:        uuid.New(),
		CreatorID: uuid.New(),
		AmountUSD: dec("20"),
		Status:    domain.ContractStatusPending,
	}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	err := d.svc.Cancel(ctx, contract.ID, uuid.New())
	require.Error(t, err)
	assertAppError(t, err, "ESC_004")
}

func TestEscrowService_Cancel_Started(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	contract := startedContract(uuid.New(), uuid.New())

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, contract.ID).Return(contract, nil)

	err := d.svc.Cancel(ctx, contract.ID, contract.CreatorID)
	require.Error(t, err)
	assertAppError(t, err, "ESC_005")
}

// ==================== ExpireStale Tests ====================

func TestEscrowService_ExpireStale(t *testing.T) {
	d := setupEscrowService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	creatorID := uuid.New()
	acceptorID := uuid.New()

	stale := &domain.Contract{
		ID:         uuid.New(),
		CreatorID:  creatorID,
		AcceptorID: &acceptorID,
		AmountUSD:  dec("20"),
		AmountSOL:  dec("0.1"),
		Status:     domain.ContractStatusAccepted,
	}
	settledMeanwhile := startedContract(uuid.New(), uuid.New())
	settledMeanwhile.Status = domain.ContractStatusCompleted

	d.contractRepo.EXPECT().ListStale(ctx, gomock.Any(), staleSweepBatch).
		Return([]domain.Contract{*stale, *settledMeanwhile}, nil)

	// First contract refunds both parties and cancels.
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, stale.ID).Return(stale, nil)
	d.ledger.EXPECT().ReleaseInTx(ctx, tx, creatorID, dec("0.1"), stale.ID).Return(nil)
	d.ledger.EXPECT().ReleaseInTx(ctx, tx, acceptorID, dec("0.1"), stale.ID).Return(nil)
	d.contractRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)

	// Second settled since the list query: skipped under lock.
	d.contractRepo.EXPECT().GetByIDForUpdate(ctx, tx, settledMeanwhile.ID).
		Return(settledMeanwhile, nil)

	expired, err := d.svc.ExpireStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
}
