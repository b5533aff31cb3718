// Package auth identifies callers from bearer tokens and attaches their
// subscription to the request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/logger"
	"go-counter-deck/internal/repository"
	"go-counter-deck/pkg/models"
)

const sessionKey = "session"

// Claims are the token claims; the subject is the user id
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 tokens and resolves entitlements
type Authenticator struct {
	secret []byte
	store  repository.EntitlementRepository
	now    func() time.Time
}

// NewAuthenticator creates an authenticator. With an empty secret every
// request is treated as anonymous.
func NewAuthenticator(secret string, store repository.EntitlementRepository) *Authenticator {
	return &Authenticator{secret: []byte(secret), store: store, now: time.Now}
}

// Enabled reports whether tokens are verified
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// IssueToken signs a token for userID valid for ttl
func (a *Authenticator) IssueToken(userID string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", fmt.Errorf("auth secret not configured")
	}
	now := a.now()
	claims := Claims{
		Role: "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates a token and returns its claims
func (a *Authenticator) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// Resolve loads the session for userID. A missing record yields a free
// session; a store failure is logged and also yields a free session.
func (a *Authenticator) Resolve(ctx context.Context, userID string) models.Session {
	session := models.Session{UserID: userID}
	ent, err := a.store.GetEntitlement(ctx, userID)
	switch {
	case err == nil:
		session.Entitlement = ent
	case errors.Is(err, repository.ErrEntitlementNotFound):
		session.Entitlement = models.FreeEntitlement(userID, a.now().UTC())
	default:
		logger.WithFields(logrus.Fields{"user_id": userID}).WithError(err).Warn("Failed to load entitlement, treating caller as free")
		session.Entitlement = models.FreeEntitlement(userID, a.now().UTC())
	}
	return session
}

// Middleware attaches a Session to every request. Requests without an
// Authorization header are anonymous; invalid tokens are rejected with 401.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Set(sessionKey, models.Session{})
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(sessionKey, models.Session{Enforced: true})
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, apperrors.NewUnauthorizedError("Usuário não autenticado", fmt.Errorf("malformed authorization header")))
			return
		}

		claims, err := a.ParseToken(strings.TrimSpace(token))
		if err != nil {
			abort(c, apperrors.NewUnauthorizedError("Usuário não autenticado", err))
			return
		}

		session := a.Resolve(c.Request.Context(), claims.Subject)
		session.Enforced = true
		c.Set(sessionKey, session)
		c.Next()
	}
}

// RequireUser rejects anonymous callers
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SessionFrom(c).Authenticated() {
			abort(c, apperrors.NewUnauthorizedError("Usuário não autenticado", nil))
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session attached by Middleware, or an anonymous one
func SessionFrom(c *gin.Context) models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if s, ok := v.(models.Session); ok {
			return s
		}
	}
	return models.Session{}
}

func abort(c *gin.Context, err *apperrors.AppError) {
	logger.WithFields(logrus.Fields{
		"path":  c.Request.URL.Path,
		"ip":    c.ClientIP(),
		"cause": err.Detail(),
	}).Warn("Request rejected by auth")

	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: err.Message})
}
