package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.WalletAddress == a.WalletAddress {
			return fmt.Errorf("wallet already exists")
		}
		if existing.Username == a.Username {
			return fmt.Errorf("username already exists")
		}
	}
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByWallet(ctx context.Context, walletAddress string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.WalletAddress == walletAddress {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAccountRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, id uuid.UUID, available, locked decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.AvailableBalance = available
	a.LockedBalance = locked
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Contract Repo ---

type inMemoryContractRepo struct {
	mu        sync.RWMutex
	contracts map[uuid.UUID]*domain.Contract
}

func newInMemoryContractRepo() *inMemoryContractRepo {
	return &inMemoryContractRepo{contracts: make(map[uuid.UUID]*domain.Contract)}
}

func (r *inMemoryContractRepo) Create(ctx context.Context, c *domain.Contract) error {
	// Mirrors the schema checks: amount_usd > 0, amount_sol >= 0 (zero until
	// acceptance captures the SOL amount).
	if c.AmountUSD.Sign() <= 0 || c.AmountSOL.Sign() < 0 {
		return fmt.Errorf("contract amount check violated")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contracts[c.ID] = &cp
	return nil
}

func (r *inMemoryContractRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryContractRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Contract, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryContractRepo) Update(ctx context.Context, tx pgx.Tx, c *domain.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[c.ID]; !ok {
		return fmt.Errorf("contract not found")
	}
	cp := *c
	r.contracts[c.ID] = &cp
	return nil
}

func (r *inMemoryContractRepo) ListOpen(ctx context.Context, game string, status domain.ContractStatus, limit int) ([]domain.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Contract
	for _, c := range r.contracts {
		if c.Game == game && c.Status == status {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryContractRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]domain.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Contract
	for _, c := range r.contracts {
		if c.Status != domain.ContractStatusAccepted && c.Status != domain.ContractStatusStarted {
			continue
		}
		last := c.AcceptedAt
		if c.StartedAt != nil {
			last = c.StartedAt
		}
		if last != nil && last.Before(cutoff) {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu      sync.RWMutex
	records []domain.TransactionRecord
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, record *domain.TransactionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *inMemoryTransactionRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.TransactionRecord
	for i := len(r.records) - 1; i >= 0 && len(result) < limit; i-- {
		if r.records[i].AccountID == accountID {
			result = append(result, r.records[i])
		}
	}
	return result, nil
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*domain.WithdrawalRequest
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{requests: make(map[uuid.UUID]*domain.WithdrawalRequest)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.requests[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryWithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[w.ID]; !ok {
		return fmt.Errorf("withdrawal not found")
	}
	cp := *w
	r.requests[w.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) ListByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WithdrawalRequest
	for _, w := range r.requests {
		if w.Status == status {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryWithdrawalRepo) SumSince(ctx context.Context, accountID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := decimal.Zero
	for _, w := range r.requests {
		if w.AccountID != accountID {
			continue
		}
		switch w.Status {
		case domain.WithdrawalStatusApproved, domain.WithdrawalStatusProcessing,
			domain.WithdrawalStatusCompleted:
		default:
			continue
		}
		if w.CreatedAt.Before(since) {
			continue
		}
		total = total.Add(w.AmountSOL)
	}
	return total, nil
}

// --- In-Memory Rake Repo ---

type inMemoryRakeRepo struct {
	mu  sync.RWMutex
	usd map[time.Time]decimal.Decimal
	sol map[time.Time]decimal.Decimal
}

func newInMemoryRakeRepo() *inMemoryRakeRepo {
	return &inMemoryRakeRepo{
		usd: make(map[time.Time]decimal.Decimal),
		sol: make(map[time.Time]decimal.Decimal),
	}
}

func (r *inMemoryRakeRepo) AddInTx(ctx context.Context, tx pgx.Tx, day time.Time, usd, sol decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := day.UTC().Truncate(24 * time.Hour)
	r.usd[key] = r.usd[key].Add(usd)
	r.sol[key] = r.sol[key].Add(sol)
	return nil
}

func (r *inMemoryRakeRepo) Totals(ctx context.Context, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	usd, sol := decimal.Zero, decimal.Zero
	for day, v := range r.usd {
		if day.Before(from) || day.After(to) {
			continue
		}
		usd = usd.Add(v)
		sol = sol.Add(r.sol[day])
	}
	return usd, sol, nil
}

// --- Serializing In-Memory Transactor ---

// serialTransactor makes every Begin..Commit block mutually exclusive, which
// stands in for the row-level FOR UPDATE serialization the real repos get
// from PostgreSQL. Without it, concurrent lock attempts could read the same
// balance snapshot and both pass the sufficient-funds check.
type serialTransactor struct {
	mu sync.Mutex
}

func newSerialTransactor() *serialTransactor {
	return &serialTransactor{}
}

func (t *serialTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{release: t.mu.Unlock}, nil
}

// memTx is a pgx.Tx stand-in that releases the transactor on the first
// Commit or Rollback. The deferred Rollback after Commit is a no-op.
type memTx struct {
	release func()
	once    sync.Once
}

func (t *memTx) Commit(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.once.Do(t.release)
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- Fakes for external adapters ---

// fixedPriceFetcher returns a constant SOL/USD price.
type fixedPriceFetcher struct {
	price decimal.Decimal
}

func (f *fixedPriceFetcher) FetchSolPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return f.price, nil
}

// recordingTransferor fakes the on-chain transfer and remembers destinations.
type recordingTransferor struct {
	mu        sync.Mutex
	transfers []string
}

func (f *recordingTransferor) Transfer(ctx context.Context, destination string, amountSOL decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, destination)
	return fmt.Sprintf("sig-%d", len(f.transfers)), nil
}
