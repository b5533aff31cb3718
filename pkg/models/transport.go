package models

import (
	"strings"
	"time"
)

// AnalysisRequest is the body of POST /analyze-deck
type AnalysisRequest struct {
	Image     string `json:"image,omitempty"`
	DeckText  string `json:"deckText,omitempty"`
	Arena     *int   `json:"arena,omitempty"`
	IsPremium bool   `json:"isPremium,omitempty"`
}

// HasImage reports whether the request carries image content
func (r AnalysisRequest) HasImage() bool {
	return strings.TrimSpace(r.Image) != ""
}

// HasDeckText reports whether the request carries typed deck content
func (r AnalysisRequest) HasDeckText() bool {
	return strings.TrimSpace(r.DeckText) != ""
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CheckoutResponse is returned by the payment checkout stub
type CheckoutResponse struct {
	Message     string `json:"message"`
	CheckoutURL string `json:"checkout_url"`
}

// PaymentWebhook is the payload a payment provider posts when a subscription changes
type PaymentWebhook struct {
	UserID         string     `json:"userId" binding:"required"`
	SubscriptionID string     `json:"subscriptionId"`
	Tier           Tier       `json:"tier"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

// AnalysisHistoryResponse lists stored analyses
type AnalysisHistoryResponse struct {
	Analyses []AnalysisRecord `json:"analyses"`
}
