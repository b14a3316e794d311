package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
	"time"

	"duel-escrow/internal/core/domain"
	"duel-escrow/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc         *AuthServiceImpl
	accountRepo *mocks.MockAccountRepository
	challenges  *mocks.MockChallengeStore
	hashSvc     *mocks.MockHashService
	tokenSvc    *mocks.MockTokenService
	ctrl        *gomock.Controller
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		accountRepo: mocks.NewMockAccountRepository(ctrl),
		challenges:  mocks.NewMockChallengeStore(ctrl),
		hashSvc:     mocks.NewMockHashService(ctrl),
		tokenSvc:    mocks.NewMockTokenService(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewAuthService(
		d.accountRepo, d.challenges, d.hashSvc, d.tokenSvc,
		"admin", "$argon2id$hash",
	)
	return d
}

func testKeyPair(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(pub), priv
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet, _ := testKeyPair(t)

	d.accountRepo.EXPECT().GetByWallet(ctx, wallet).Return(nil, nil)
	d.accountRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, a *domain.Account) error {
			assert.Equal(t, wallet, a.WalletAddress)
			assert.Equal(t, "player_one", a.Username)
			assert.True(t, a.AvailableBalance.IsZero())
			assert.True(t, a.LockedBalance.IsZero())
			return nil
		})

	account, err := d.svc.Register(ctx, wallet, "player_one")
	require.NoError(t, err)
	require.NotNil(t, account)
}

func TestAuthService_Register_DuplicateWallet(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet, _ := testKeyPair(t)

	d.accountRepo.EXPECT().GetByWallet(ctx, wallet).
		Return(&domain.Account{ID: uuid.New(), WalletAddress: wallet}, nil)

	_, err := d.svc.Register(ctx, wallet, "player_two")
	require.Error(t, err)
	assertAppError(t, err, "AUTH_006")
}

func TestAuthService_Register_InvalidWallet(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Register(context.Background(), "not-base64!!!", "player")
	require.Error(t, err)

	// Valid base64 but wrong key length.
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = d.svc.Register(context.Background(), short, "player")
	require.Error(t, err)
}

func TestAuthService_ChallengeAndLogin(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet, priv := testKeyPair(t)
	accountID := uuid.New()
	acct := &domain.Account{ID: accountID, WalletAddress: wallet}

	var issued string
	d.accountRepo.EXPECT().GetByWallet(ctx, wallet).Return(acct, nil).Times(2)
	d.challenges.EXPECT().Put(ctx, wallet, gomock.Any(), challengeTTL).
		DoAndReturn(func(_ context.Context, _, nonce string, _ time.Duration) error {
			issued = nonce
			return nil
		})

	nonce, err := d.svc.Challenge(ctx, wallet)
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	assert.Equal(t, issued, nonce)

	d.challenges.EXPECT().Take(ctx, wallet).Return(nonce, nil)
	signature := base64.StdEncoding.EncodeToString(
		ed25519.Sign(priv, []byte(loginMessage(nonce))))
	d.tokenSvc.EXPECT().Generate(accountID, wallet, false).
		Return("jwt_token", time.Now().Add(time.Hour), nil)

	token, _, err := d.svc.Login(ctx, wallet, nonce, signature)
	require.NoError(t, err)
	assert.Equal(t, "jwt_token", token)
}

func TestAuthService_Login_WrongSignature(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet, _ := testKeyPair(t)
	_, otherPriv := testKeyPair(t)
	acct := &domain.Account{ID: uuid.New(), WalletAddress: wallet}
	nonce := "abc123"

	d.accountRepo.EXPECT().GetByWallet(ctx, wallet).Return(acct, nil)
	d.challenges.EXPECT().Take(ctx, wallet).Return(nonce, nil)

	// Signed by a different key.
	signature := base64.StdEncoding.EncodeToString(
		ed25519.Sign(otherPriv, []byte(loginMessage(nonce))))

	_, _, err := d.svc.Login(ctx, wallet, nonce, signature)
	require.Error(t, err)
	assertAppError(t, err, "AUTH_003")
}

func TestAuthService_Login_ChallengeMismatch(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	wallet, priv := testKeyPair(t)
	acct := &domain.Account{ID: uuid.New(), WalletAddress: wallet}

	d.accountRepo.EXPECT().GetByWallet(ctx, wallet).Return(acct, nil)
	// A different challenge was issued (or none at all).
	d.challenges.EXPECT().Take(ctx, wallet).Return("other_nonce", nil)

	signature := base64.StdEncoding.EncodeToString(
		ed25519.Sign(priv, []byte(loginMessage("stale_nonce"))))

	_, _, err := d.svc.Login(ctx, wallet, "stale_nonce", signature)
	require.Error(t, err)
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_Login_UnknownWallet(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.accountRepo.EXPECT().GetByWallet(ctx, gomock.Any()).Return(nil, nil)

	_, _, err := d.svc.Login(ctx, "wallet", "nonce", "sig")
	require.Error(t, err)
	assertAppError(t, err, "AUTH_001")
}

func TestAuthService_AdminLogin_Success(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.hashSvc.EXPECT().Verify("s3cret", "$argon2id$hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(uuid.Nil, "", true).
		Return("admin_jwt", time.Now().Add(time.Hour), nil)

	token, _, err := d.svc.AdminLogin(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin_jwt", token)
}

func TestAuthService_AdminLogin_BadCredentials(t *testing.T) {
	d := setupAuthService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	_, _, err := d.svc.AdminLogin(ctx, "root", "s3cret")
	require.Error(t, err)
	assertAppError(t, err, "AUTH_001")

	d.hashSvc.EXPECT().Verify("wrong", "$argon2id$hash").Return(false, nil)
	_, _, err = d.svc.AdminLogin(ctx, "admin", "wrong")
	require.Error(t, err)
	assertAppError(t, err, "AUTH_001")
}
