package ports

import (
	"context"
	"time"

	"duel-escrow/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// --- Core engine ports ---

// LedgerService owns all balance mutation. Only the escrow and withdrawal
// engines call it; every method is a single atomic unit against the accounts
// it touches.
type LedgerService interface {
	// Lock moves amount from available to locked in its own transaction.
	Lock(ctx context.Context, accountID uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error
	// LockBothInTx locks both parties' wagers inside the caller's transaction,
	// acquiring account rows in ID order to avoid deadlocks.
	LockBothInTx(ctx context.Context, tx pgx.Tx, a, b uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error
	// ReleaseInTx moves amount back from locked to available (cancel path).
	ReleaseInTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountSOL decimal.Decimal, contractID uuid.UUID) error
	// SettleInTx performs the winner/loser balance mutation inside the
	// caller's transaction: each party's locked wager is released from escrow,
	// the winner is credited pot minus rake, the loser forfeits the wager.
	SettleInTx(ctx context.Context, tx pgx.Tx, s SettlementInstruction) error
	// Deposit credits available balance in its own transaction.
	Deposit(ctx context.Context, accountID uuid.UUID, amountSOL decimal.Decimal) error
	// DebitForWithdrawalInTx debits available balance for an approved
	// withdrawal inside the caller's transaction.
	DebitForWithdrawalInTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amountSOL decimal.Decimal, withdrawalID uuid.UUID) error
	GetBalance(ctx context.Context, accountID uuid.UUID) (available, locked decimal.Decimal, err error)
}

// SettlementInstruction carries the amounts for one settlement.
type SettlementInstruction struct {
	ContractID uuid.UUID
	WinnerID   uuid.UUID
	LoserID    uuid.UUID
	WagerSOL   decimal.Decimal
	RakeSOL    decimal.Decimal
	WagerUSD   decimal.Decimal
	RakeUSD    decimal.Decimal
}

// EscrowService is the wager contract lifecycle engine.
type EscrowService interface {
	Create(ctx context.Context, req CreateContractRequest) (*domain.Contract, error)
	Accept(ctx context.Context, contractID, acceptorID uuid.UUID) (*domain.Contract, error)
	Start(ctx context.Context, contractID uuid.UUID) (roomID string, err error)
	// Complete is the sole settlement entry point. It is idempotent: a repeat
	// report for a completed contract returns the stored summary unchanged.
	Complete(ctx context.Context, contractID, winnerID, loserID uuid.UUID) (*domain.PayoutSummary, error)
	Cancel(ctx context.Context, contractID, requesterID uuid.UUID) error
	Get(ctx context.Context, contractID uuid.UUID) (*domain.Contract, error)
	ListOpen(ctx context.Context, game string) ([]domain.Contract, error)
	// ExpireStale refunds and cancels matches idle beyond olderThan.
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// CreateContractRequest holds validated input for contract creation.
type CreateContractRequest struct {
	CreatorID uuid.UUID
	Game      string
	WagerUSD  decimal.Decimal
	MatchType domain.MatchType
}

// WithdrawalService gates outbound transfers behind the cooldown cap and
// admin approval.
type WithdrawalService interface {
	Submit(ctx context.Context, accountID uuid.UUID, amountSOL decimal.Decimal, destination string) (*domain.WithdrawalRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID) (txSignature string, err error)
	Deny(ctx context.Context, requestID uuid.UUID, reason domain.DenialReason, note string) error
	Get(ctx context.Context, requestID uuid.UUID) (*domain.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status domain.WithdrawalStatus) ([]domain.WithdrawalRequest, error)
}

// --- Oracle / chain ports ---

// PriceOracle supplies the USD price of one unit of settlement currency.
// Implementations must fail closed: no price older than the cache TTL is
// ever returned, and zero is never a valid price.
type PriceOracle interface {
	SolPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// PriceFetcher retrieves a fresh price from the upstream source.
type PriceFetcher interface {
	FetchSolPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// PriceCache stores the last fetched price with a TTL enforced by the store.
type PriceCache interface {
	Get(ctx context.Context) (decimal.Decimal, bool, error)
	Set(ctx context.Context, price decimal.Decimal, ttl time.Duration) error
}

// FundsTransferor moves settlement currency to an external wallet and
// returns the chain transaction signature.
type FundsTransferor interface {
	Transfer(ctx context.Context, destination string, amountSOL decimal.Decimal) (signature string, err error)
}

// --- Ambient ports ---

// SettlementCache is a best-effort fast path for repeated result callbacks.
// The database contract row remains the source of truth.
type SettlementCache interface {
	Get(ctx context.Context, contractID uuid.UUID) ([]byte, error)
	Set(ctx context.Context, contractID uuid.UUID, summary []byte, ttl time.Duration) error
}

// ChallengeStore holds the single outstanding login challenge per wallet.
type ChallengeStore interface {
	// Put stores the challenge nonce, replacing any previous one.
	Put(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error
	// Take retrieves and deletes the challenge. Returns "" if none exists.
	Take(ctx context.Context, walletAddress string) (string, error)
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if the nonce exists, sets it if not.
	// Returns true if the nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// EncryptionService handles AES-256-GCM encryption/decryption of withdrawal
// payloads.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing for the game result callback.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles password hashing (Argon2id) for admin credentials.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT session token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, wallet string, admin bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Wallet    string
	Admin     bool
}

// AuthService authenticates players (wallet signature) and admins.
type AuthService interface {
	Register(ctx context.Context, walletAddress, username string) (*domain.Account, error)
	Challenge(ctx context.Context, walletAddress string) (nonce string, err error)
	Login(ctx context.Context, walletAddress, nonce, signature string) (token string, expiry time.Time, err error)
	AdminLogin(ctx context.Context, username, password string) (token string, expiry time.Time, err error)
}
