package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-counter-deck/internal/errors"
	"go-counter-deck/internal/logger"
	"go-counter-deck/internal/repository"
	"go-counter-deck/pkg/models"
)

const (
	// CheckoutMessage is returned by the payment checkout placeholder
	CheckoutMessage = "Integração com Abacate Pay será implementada em breve"
	// DefaultCheckoutURL is the placeholder checkout link
	DefaultCheckoutURL = "https://abacatepay.com"
	// HistoryPremiumMessage is returned when a free user asks for history
	HistoryPremiumMessage = "Histórico de análises é exclusivo para Premium"
)

// SubscriptionService manages entitlements and premium-only data
type SubscriptionService interface {
	Me(ctx context.Context, session models.Session) (*models.EntitlementResponse, error)
	SignupFree(ctx context.Context, session models.Session) (*models.Entitlement, error)
	Checkout(ctx context.Context, session models.Session) (*models.CheckoutResponse, error)
	ApplyWebhook(ctx context.Context, event models.PaymentWebhook) (*models.Entitlement, error)
	Grant(ctx context.Context, userID string, expiresAt *time.Time) (*models.Entitlement, error)
	History(ctx context.Context, session models.Session, limit int) (*models.AnalysisHistoryResponse, error)
}

type subscriptionService struct {
	entitlements repository.EntitlementRepository
	analyses     repository.AnalysisRepository
	checkoutURL  string
	now          func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	entitlements repository.EntitlementRepository,
	analyses repository.AnalysisRepository,
	checkoutURL string,
) SubscriptionService {
	if checkoutURL == "" {
		checkoutURL = DefaultCheckoutURL
	}
	return &subscriptionService{
		entitlements: entitlements,
		analyses:     analyses,
		checkoutURL:  checkoutURL,
		now:          time.Now,
	}
}

// Me returns the caller's stored entitlement, or a free one when none exists yet
func (s *subscriptionService) Me(ctx context.Context, session models.Session) (*models.EntitlementResponse, error) {
	if err := requireUser(session); err != nil {
		return nil, err
	}

	ent, err := s.entitlements.GetEntitlement(ctx, session.UserID)
	if errors.Is(err, repository.ErrEntitlementNotFound) {
		ent = models.FreeEntitlement(session.UserID, s.now().UTC())
	} else if err != nil {
		return nil, storeError(err)
	}

	return &models.EntitlementResponse{Entitlement: *ent, IsPremium: ent.Active(s.now())}, nil
}

// SignupFree creates the free record for the caller. An existing record,
// premium or not, is left untouched.
func (s *subscriptionService) SignupFree(ctx context.Context, session models.Session) (*models.Entitlement, error) {
	if err := requireUser(session); err != nil {
		return nil, err
	}

	ent, err := s.entitlements.CreateFreeEntitlement(ctx, session.UserID)
	if err != nil {
		return nil, storeError(err)
	}
	logger.WithFields(logrus.Fields{"user_id": session.UserID, "tier": ent.Tier}).Info("Free entitlement ensured")
	return ent, nil
}

// Checkout starts a premium purchase. The payment provider is not integrated
// yet, so it only returns the placeholder link.
func (s *subscriptionService) Checkout(_ context.Context, session models.Session) (*models.CheckoutResponse, error) {
	if err := requireUser(session); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{"user_id": session.UserID}).Info("Checkout requested")
	return &models.CheckoutResponse{Message: CheckoutMessage, CheckoutURL: s.checkoutURL}, nil
}

// ApplyWebhook records a subscription change reported by the payment provider
func (s *subscriptionService) ApplyWebhook(ctx context.Context, event models.PaymentWebhook) (*models.Entitlement, error) {
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("userId é obrigatório", nil)
	}
	tier := event.Tier
	if tier == "" {
		tier = models.TierPremium
	}
	if !tier.Valid() {
		return nil, apperrors.NewInvalidInputError("Plano inválido", repository.ErrInvalidTier)
	}

	ent, err := s.entitlements.UpsertEntitlement(ctx, &models.Entitlement{
		UserID:                userID,
		Tier:                  tier,
		PaymentSubscriptionID: event.SubscriptionID,
		ExpiresAt:             event.ExpiresAt,
	})
	if err != nil {
		return nil, storeError(err)
	}

	logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"tier":            ent.Tier,
		"subscription_id": event.SubscriptionID,
	}).Info("Entitlement updated from payment webhook")
	return ent, nil
}

// Grant upgrades userID to premium without a payment
func (s *subscriptionService) Grant(ctx context.Context, userID string, expiresAt *time.Time) (*models.Entitlement, error) {
	return s.ApplyWebhook(ctx, models.PaymentWebhook{UserID: userID, Tier: models.TierPremium, ExpiresAt: expiresAt})
}

// History lists the caller's stored analyses, newest first
func (s *subscriptionService) History(ctx context.Context, session models.Session, limit int) (*models.AnalysisHistoryResponse, error) {
	if err := requireUser(session); err != nil {
		return nil, err
	}
	if !session.Premium(s.now()) {
		return nil, apperrors.NewForbiddenError(HistoryPremiumMessage, nil)
	}

	records, err := s.analyses.ListAnalyses(ctx, session.UserID, limit)
	if err != nil {
		return nil, storeError(err)
	}

	resp := &models.AnalysisHistoryResponse{Analyses: make([]models.AnalysisRecord, 0, len(records))}
	for _, r := range records {
		resp.Analyses = append(resp.Analyses, *r)
	}
	return resp, nil
}

func requireUser(session models.Session) error {
	if !session.Authenticated() {
		return apperrors.NewUnauthorizedError("Usuário não autenticado", nil)
	}
	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, repository.ErrInvalidUserID), errors.Is(err, repository.ErrInvalidTier):
		return apperrors.NewInvalidInputError("Dados de assinatura inválidos", err)
	default:
		return apperrors.NewInternalError("Erro ao acessar assinaturas", err)
	}
}
