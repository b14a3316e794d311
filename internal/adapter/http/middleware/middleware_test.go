package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"duel-escrow/internal/core/ports"
	"duel-escrow/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSigner implements ports.SignatureService for middleware tests without
// pulling in the crypto implementation.
type fakeSigner struct{}

func (fakeSigner) Sign(secret, payload string) string { return secret + "|" + payload }

func (f fakeSigner) Verify(secret, payload, signature string) bool {
	return f.Sign(secret, payload) == signature
}

func (fakeSigner) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	return method + "|" + path + "|" + strconv.FormatInt(timestamp, 10) + "|" + nonce + "|" + body
}

func okHandler(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }

// --- JWTAuth ---

func TestJWTAuth_ValidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountID := uuid.New()
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good-token").Return(&ports.TokenClaims{
		AccountID: accountID,
		Wallet:    "wallet-A",
	}, nil)

	r := gin.New()
	r.GET("/protected", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		id, _ := c.Get(CtxAccountID)
		assert.Equal(t, accountID, id)
		okHandler(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)

	r := gin.New()
	r.GET("/protected", JWTAuth(tokenSvc, zerolog.Nop()), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_002")
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad").Return(nil, assertErr{})

	r := gin.New()
	r.GET("/protected", JWTAuth(tokenSvc, zerolog.Nop()), okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type assertErr struct{}

func (assertErr) Error() string { return "invalid token" }

// --- AdminOnly ---

func TestAdminOnly_AllowsAdmin(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set(CtxAdmin, true) }, AdminOnly(), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminOnly_RejectsPlayer(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set(CtxAdmin, false) }, AdminOnly(), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_007")
}

// --- CallbackAuth ---

func callbackRouter(t *testing.T, secret string, nonceStore ports.NonceStore) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.POST("/result", CallbackAuth(secret, fakeSigner{}, nonceStore, zerolog.Nop()), okHandler)
	return r
}

func signedCallback(t *testing.T, secret, body, nonce string, ts int64) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/result", strings.NewReader(body))
	canonical := fakeSigner{}.BuildCanonicalString(http.MethodPost, "/result", ts, nonce, body)
	req.Header.Set(HeaderSignature, fakeSigner{}.Sign(secret, canonical))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)
	return req
}

func TestCallbackAuth_ValidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().
		CheckAndSet(gomock.Any(), "callback", "n1", gomock.Any()).
		Return(true, nil)

	r := callbackRouter(t, "secret", nonceStore)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedCallback(t, "secret", `{"winner_id":"x"}`, "n1", time.Now().Unix()))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallbackAuth_WrongSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().
		CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(true, nil)

	r := callbackRouter(t, "server-secret", nonceStore)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedCallback(t, "attacker-secret", `{}`, "n1", time.Now().Unix()))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_003")
}

func TestCallbackAuth_ReplayedNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().
		CheckAndSet(gomock.Any(), "callback", "used", gomock.Any()).
		Return(false, nil)

	r := callbackRouter(t, "secret", nonceStore)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedCallback(t, "secret", `{}`, "used", time.Now().Unix()))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_004")
}

func TestCallbackAuth_StaleTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)

	r := callbackRouter(t, "secret", nonceStore)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedCallback(t, "secret", `{}`, "n1", time.Now().Add(-5*time.Minute).Unix()))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_005")
}

func TestCallbackAuth_MissingHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := callbackRouter(t, "secret", mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/result", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
