package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-counter-deck/internal/repository"
	"go-counter-deck/pkg/models"
)

const testSecret = "super-secret-signing-key"

func init() {
	gin.SetMode(gin.TestMode)
}

type failingStore struct{}

func (failingStore) GetEntitlement(context.Context, string) (*models.Entitlement, error) {
	return nil, repository.ErrRepositoryUnavailable
}
func (failingStore) CreateFreeEntitlement(context.Context, string) (*models.Entitlement, error) {
	return nil, repository.ErrRepositoryUnavailable
}
func (failingStore) UpsertEntitlement(context.Context, *models.Entitlement) (*models.Entitlement, error) {
	return nil, repository.ErrRepositoryUnavailable
}

func newRouter(a *Authenticator, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(a.Middleware())
	handlers := append(extra, func(c *gin.Context) {
		c.JSON(http.StatusOK, SessionFrom(c))
	})
	r.GET("/who", handlers...)
	return r
}

func call(r http.Handler, header string) (*httptest.ResponseRecorder, models.Session) {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var s models.Session
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	return w, s
}

func TestIssueAndParseToken(t *testing.T) {
	a := NewAuthenticator(testSecret, repository.NewMemoryStore())

	token, err := a.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	claims, err := a.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "authenticated", claims.Role)
}

func TestParseTokenRejects(t *testing.T) {
	a := NewAuthenticator(testSecret, repository.NewMemoryStore())
	other := NewAuthenticator("another-secret", repository.NewMemoryStore())

	wrongKey, err := other.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	expired, err := a.IssueToken("user-1", -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong key":  wrongKey,
		"expired":    expired,
		"no subject": noSubject,
		"wrong alg":  wrongAlg,
		"garbage":    "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.ParseToken(token)
			assert.Error(t, err)
		})
	}
}

func TestIssueTokenWithoutSecret(t *testing.T) {
	a := NewAuthenticator("", repository.NewMemoryStore())
	assert.False(t, a.Enabled())
	_, err := a.IssueToken("user-1", time.Hour)
	assert.Error(t, err)
}

func TestMiddlewareAnonymousWithoutHeader(t *testing.T) {
	a := NewAuthenticator(testSecret, repository.NewMemoryStore())
	w, s := call(newRouter(a), "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.Authenticated())
	assert.True(t, s.Enforced)
}

func TestMiddlewareDisabledIgnoresHeader(t *testing.T) {
	a := NewAuthenticator("", repository.NewMemoryStore())
	w, s := call(newRouter(a), "Bearer whatever")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.Authenticated())
	assert.False(t, s.Enforced)
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	a := NewAuthenticator(testSecret, repository.NewMemoryStore())

	for _, header := range []string{"Bearer nope", "Basic dXNlcjpwYXNz", "Bearer "} {
		w, _ := call(newRouter(a), header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.JSONEq(t, `{"error":"Usuário não autenticado"}`, w.Body.String())
	}
}

func TestMiddlewareResolvesEntitlement(t *testing.T) {
	store := repository.NewMemoryStore()
	_, err := store.UpsertEntitlement(context.Background(), &models.Entitlement{
		UserID: "premium-user",
		Tier:   models.TierPremium,
	})
	require.NoError(t, err)

	a := NewAuthenticator(testSecret, store)

	token, err := a.IssueToken("premium-user", time.Hour)
	require.NoError(t, err)
	w, s := call(newRouter(a), "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "premium-user", s.UserID)
	assert.True(t, s.Premium(time.Now()))
	assert.True(t, s.Enforced)

	token, err = a.IssueToken("new-user", time.Hour)
	require.NoError(t, err)
	w, s = call(newRouter(a), "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new-user", s.UserID)
	require.NotNil(t, s.Entitlement)
	assert.Equal(t, models.TierFree, s.Entitlement.Tier)
	assert.False(t, s.Premium(time.Now()))
}

func TestResolveStoreFailureIsFree(t *testing.T) {
	a := NewAuthenticator(testSecret, failingStore{})
	s := a.Resolve(context.Background(), "user-9")

	assert.True(t, s.Authenticated())
	assert.False(t, s.Premium(time.Now()))
}

func TestRequireUser(t *testing.T) {
	a := NewAuthenticator(testSecret, repository.NewMemoryStore())
	r := newRouter(a, RequireUser())

	w, _ := call(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := a.IssueToken("user-1", time.Hour)
	require.NoError(t, err)
	w, s := call(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", s.UserID)
}
