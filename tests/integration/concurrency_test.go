package integration

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentWagerLocks races 100 one-SOL lock attempts against an account
// holding 10 SOL. The pessimistic lock inside each ledger transaction must let
// exactly 10 through; available balance never goes negative.
func TestConcurrentWagerLocks(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	accountID := uuid.New()
	require.NoError(t, app.accountRepo.Create(ctx, &domain.Account{
		ID:               accountID,
		WalletAddress:    "wallet-under-contention",
		Username:         "contender",
		AvailableBalance: decimal.NewFromInt(10),
		LockedBalance:    decimal.Zero,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}))

	one := decimal.NewFromInt(1)
	var succeeded, failed atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := app.ledgerSvc.Lock(ctx, accountID, one, uuid.New())
			if err != nil {
				failed.Add(1)
				return
			}
			succeeded.Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), succeeded.Load())
	assert.Equal(t, int64(90), failed.Load())

	account, err := app.accountRepo.GetByID(ctx, accountID)
	require.NoError(t, err)
	assert.True(t, account.AvailableBalance.IsZero(),
		"available balance should be exhausted, got %s", account.AvailableBalance)
	assert.True(t, account.LockedBalance.Equal(decimal.NewFromInt(10)),
		"locked balance should be 10, got %s", account.LockedBalance)
}

// TestConcurrentAccepts races several funded players accepting the same open
// contract. Exactly one accept wins; the losers' balances stay untouched.
func TestConcurrentAccepts(t *testing.T) {
	app := newTestApp(t)
	creator := registerPlayer(t, app, "creator")
	app.deposit(t, creator, "1")

	const racers = 5
	acceptors := make([]*player, racers)
	for i := range acceptors {
		acceptors[i] = registerPlayer(t, app, fmt.Sprintf("racer_%d", i))
		app.deposit(t, acceptors[i], "1")
	}

	contract := app.postJSON(t, "/api/v1/contracts", creator.token, map[string]string{
		"game":       "chess",
		"wager_usd":  "20",
		"match_type": "standard",
	}, http.StatusCreated)
	contractID := contract["id"].(string)

	var won atomic.Int64
	var wg sync.WaitGroup
	for _, acceptor := range acceptors {
		wg.Add(1)
		go func(p *player) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/contracts/"+contractID+"/accept", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+p.token)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				won.Add(1)
			} else {
				assert.Equal(t, http.StatusConflict, resp.StatusCode)
			}
		}(acceptor)
	}
	wg.Wait()

	assert.Equal(t, int64(1), won.Load())

	// Exactly one acceptor holds a locked wager; everyone else is whole.
	lockedCount := 0
	for _, p := range acceptors {
		available, locked := app.balance(t, p)
		if locked != "0" {
			lockedCount++
			assert.Equal(t, "0.1", locked)
			assert.Equal(t, "0.9", available)
		} else {
			assert.Equal(t, "1", available)
		}
	}
	assert.Equal(t, 1, lockedCount)

	_, creatorLocked := app.balance(t, creator)
	assert.Equal(t, "0.1", creatorLocked)
}

// TestConcurrentApprovals races several admin approvals of the same queued
// withdrawal. The processing claim lets exactly one reach the chain; the
// others observe the in-flight conflict or the completed signature.
func TestConcurrentApprovals(t *testing.T) {
	app := newTestApp(t)
	p := registerPlayer(t, app, "big_withdrawer")
	app.deposit(t, p, "10")

	// 5 SOL exceeds the 3 SOL window cap, so the request parks as pending.
	data := app.postJSON(t, "/api/v1/wallet/withdrawals", p.token, map[string]string{
		"amount":      "5",
		"destination": "DestWallet1111111111111111111111111111111111",
	}, http.StatusCreated)
	requestID := data["id"].(string)
	require.Equal(t, "pending", data["status"])

	adminToken := adminLogin(t, app)

	const approvers = 4
	statuses := make([]int, approvers)
	var wg sync.WaitGroup
	for i := 0; i < approvers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, app.server.URL+"/api/v1/admin/withdrawals/"+requestID+"/approve", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+adminToken)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			statuses[n] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, status := range statuses {
		switch status {
		case http.StatusOK:
			wins++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected approve status %d", status)
		}
	}
	assert.GreaterOrEqual(t, wins, 1)

	// The chain saw exactly one transfer and the debit landed once.
	assert.Len(t, app.transferor.transfers, 1)
	available, _ := app.balance(t, p)
	assert.Equal(t, "5", available)

	final := app.getJSON(t, "/api/v1/wallet/withdrawals/"+requestID, p.token, http.StatusOK)
	assert.Equal(t, "completed", final["status"])
}

// TestConcurrentSettlementReports fires duplicate result callbacks (distinct
// nonces, so each passes replay protection) at a started match. Funds move
// exactly once and every caller receives the same summary.
func TestConcurrentSettlementReports(t *testing.T) {
	app := newTestApp(t)
	creator := registerPlayer(t, app, "creator")
	acceptor := registerPlayer(t, app, "acceptor")

	app.deposit(t, creator, "0.5")
	app.deposit(t, acceptor, "0.5")

	contract := app.postJSON(t, "/api/v1/contracts", creator.token, map[string]string{
		"game":       "chess",
		"wager_usd":  "20",
		"match_type": "standard",
	}, http.StatusCreated)
	contractID := contract["id"].(string)

	app.postJSON(t, "/api/v1/contracts/"+contractID+"/accept", acceptor.token, nil, http.StatusOK)
	app.postJSON(t, "/api/v1/contracts/"+contractID+"/start", creator.token, nil, http.StatusOK)

	const reports = 5
	var wg sync.WaitGroup
	statuses := make([]int, reports)
	for i := 0; i < reports; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			resp, _ := app.postResultCallback(t, contractID, creator.id, acceptor.id, fmt.Sprintf("dup-nonce-%d", n))
			statuses[n] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for _, status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}

	// The payout landed exactly once.
	available, locked := app.balance(t, creator)
	assert.Equal(t, "0.591", available)
	assert.Equal(t, "0", locked)
	available, locked = app.balance(t, acceptor)
	assert.Equal(t, "0.4", available)
	assert.Equal(t, "0", locked)
}
