package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-counter-deck/internal/auth"
	"go-counter-deck/internal/config"
	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/logger"
	"go-counter-deck/internal/observer"
	"go-counter-deck/internal/repository"
	"go-counter-deck/internal/service"
	"go-counter-deck/pkg/models"
)

// WebhookSecretHeader carries the shared secret on payment webhooks
const WebhookSecretHeader = "X-Webhook-Secret"

const version = "1.0.0"

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services exposed over HTTP
type Dependencies struct {
	Analysis      service.DeckAnalysisService
	Subscriptions service.SubscriptionService
	Auth          *auth.Authenticator
	Metrics       *observer.MetricsObserver
	Store         Pinger
}

func NewHandler(deps Dependencies, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		cors(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		deps.Auth.Middleware(),
	)

	r.GET("/health", healthCheck(deps.Store))
	r.GET("/metrics", metrics(deps.Metrics))
	r.POST("/analyze-deck", analyzeDeck(deps.Analysis, cfg.RequestTimeout))
	r.POST("/webhooks/payment", paymentWebhook(deps.Subscriptions, cfg.WebhookSecret))

	user := r.Group("/", auth.RequireUser())
	user.GET("/subscriptions/me", subscriptionMe(deps.Subscriptions))
	user.POST("/subscriptions/free", signupFree(deps.Subscriptions))
	user.POST("/subscriptions/checkout", checkout(deps.Subscriptions))
	user.GET("/analyses", analysisHistory(deps.Subscriptions))

	return r
}

func analyzeDeck(svc service.DeckAnalysisService, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		var req models.AnalysisRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.NewInvalidInputError("Corpo da requisição inválido", err))
			return
		}

		parsed, err := svc.Analyze(ctx, auth.SessionFrom(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		// the model's JSON is returned byte for byte
		c.Data(http.StatusOK, "application/json; charset=utf-8", parsed.Raw)
	}
}

func subscriptionMe(svc service.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.Me(c.Request.Context(), auth.SessionFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func signupFree(svc service.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ent, err := svc.SignupFree(c.Request.Context(), auth.SessionFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ent)
	}
}

func checkout(svc service.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.Checkout(c.Request.Context(), auth.SessionFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func analysisHistory(svc service.SubscriptionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := repository.DefaultListLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				respondError(c, apperrors.NewInvalidInputError("Parâmetro limit inválido", err))
				return
			}
			limit = n
		}

		resp, err := svc.History(c.Request.Context(), auth.SessionFrom(c), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func paymentWebhook(svc service.SubscriptionService, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(WebhookSecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			respondError(c, apperrors.NewUnauthorizedError("Webhook não autorizado", nil))
			return
		}

		var event models.PaymentWebhook
		if err := c.ShouldBindJSON(&event); err != nil {
			respondError(c, apperrors.NewInvalidInputError("Corpo da requisição inválido", err))
			return
		}

		ent, err := svc.ApplyWebhook(c.Request.Context(), event)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ent)
	}
}

func healthCheck(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		storage := "ok"
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				logger.WithError(err).Warn("Storage health check failed")
				storage = "unavailable"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "available",
			"version": version,
			"storage": storage,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func metrics(m *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.JSON(http.StatusOK, observer.Metrics{})
			return
		}
		c.JSON(http.StatusOK, m.Snapshot())
	}
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// cors allows any origin and answers preflight requests directly
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request completed with server error")
			return
		}
		entry.Info("Request completed")
	}
}

// respondError writes the tagged error with the status picked from its kind.
// Client errors carry only the message; server errors add the detail.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		appErr = apperrors.NewInvalidInputError("Corpo da requisição muito grande", err)
	}

	fields := logrus.Fields{
		"status_code": appErr.StatusCode,
		"error_type":  appErr.Type,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		logger.WithError(err).WithFields(fields).Error("Request failed")
	} else {
		logger.WithError(err).WithFields(fields).Warn("Request rejected")
	}

	resp := models.ErrorResponse{Error: appErr.Message}
	if appErr.StatusCode >= http.StatusInternalServerError {
		resp.Details = appErr.Detail()
	}
	c.AbortWithStatusJSON(appErr.StatusCode, resp)
}
