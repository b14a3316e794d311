package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports"
	"duel-escrow/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	challengeTTL     = 5 * time.Minute
	challengeByteLen = 32
)

// loginMessage is what the wallet signs to prove key ownership.
func loginMessage(nonce string) string {
	return "duel-escrow login: " + nonce
}

// AuthServiceImpl authenticates players by wallet signature and admins by
// username/password. Wallet addresses are base64-encoded ed25519 public keys;
// ownership is proven by signing a server-issued challenge nonce.
type AuthServiceImpl struct {
	accountRepo ports.AccountRepository
	challenges  ports.ChallengeStore
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService

	adminUsername     string
	adminPasswordHash string
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	accountRepo ports.AccountRepository,
	challenges ports.ChallengeStore,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	adminUsername string,
	adminPasswordHash string,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		accountRepo:       accountRepo,
		challenges:        challenges,
		hashSvc:           hashSvc,
		tokenSvc:          tokenSvc,
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
	}
}

// Register creates a player account keyed by wallet address.
func (s *AuthServiceImpl) Register(ctx context.Context, walletAddress, username string) (*domain.Account, error) {
	if _, err := decodePublicKey(walletAddress); err != nil {
		return nil, apperror.Validation("invalid wallet address")
	}
	if username == "" {
		return nil, apperror.Validation("username is required")
	}

	existing, err := s.accountRepo.GetByWallet(ctx, walletAddress)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check wallet: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrWalletExists()
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:               uuid.New(),
		WalletAddress:    walletAddress,
		Username:         username,
		AvailableBalance: decimal.Zero,
		LockedBalance:    decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}
	return account, nil
}

// Challenge issues a fresh login nonce for the wallet. Requesting a new
// challenge invalidates the previous one.
func (s *AuthServiceImpl) Challenge(ctx context.Context, walletAddress string) (string, error) {
	account, err := s.accountRepo.GetByWallet(ctx, walletAddress)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return "", apperror.ErrInvalidCredentials()
	}

	nonce, err := generateRandomHex(challengeByteLen)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate challenge: %w", err))
	}
	if err := s.challenges.Put(ctx, walletAddress, nonce, challengeTTL); err != nil {
		return "", apperror.InternalError(fmt.Errorf("store challenge: %w", err))
	}
	return nonce, nil
}

// Login verifies the signed challenge and returns a session JWT. The
// challenge is consumed on first use regardless of outcome, so a captured
// signature cannot be replayed.
func (s *AuthServiceImpl) Login(ctx context.Context, walletAddress, nonce, signature string) (string, time.Time, error) {
	account, err := s.accountRepo.GetByWallet(ctx, walletAddress)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find account: %w", err))
	}
	if account == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	issued, err := s.challenges.Take(ctx, walletAddress)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("load challenge: %w", err))
	}
	if issued == "" || issued != nonce {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	pubKey, err := decodePublicKey(walletAddress)
	if err != nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return "", time.Time{}, apperror.ErrInvalidSignature()
	}
	if !ed25519.Verify(pubKey, []byte(loginMessage(nonce)), sig) {
		return "", time.Time{}, apperror.ErrInvalidSignature()
	}

	token, expiry, err := s.tokenSvc.Generate(account.ID, walletAddress, false)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiry, nil
}

// AdminLogin validates the operator credentials and returns an admin JWT.
func (s *AuthServiceImpl) AdminLogin(ctx context.Context, username, password string) (string, time.Time, error) {
	if username != s.adminUsername {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	valid, err := s.hashSvc.Verify(password, s.adminPasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(uuid.Nil, "", true)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiry, nil
}

func decodePublicKey(walletAddress string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(walletAddress)
	if err != nil {
		return nil, fmt.Errorf("decoding wallet address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("wallet address must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
