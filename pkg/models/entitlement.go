package models

import "time"

// Tier is a subscription level
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// Entitlement is the persisted subscription record of a user.
// A nil ExpiresAt means the subscription does not expire until cancelled.
type Entitlement struct {
	UserID                string     `json:"userId"`
	Tier                  Tier       `json:"tier"`
	PaymentSubscriptionID string     `json:"paymentSubscriptionId,omitempty"`
	ExpiresAt             *time.Time `json:"expiresAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Active reports whether the entitlement grants premium access at now
func (e *Entitlement) Active(now time.Time) bool {
	if e == nil || e.Tier != TierPremium {
		return false
	}
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// FreeEntitlement is the default record assigned at signup
func FreeEntitlement(userID string, now time.Time) *Entitlement {
	return &Entitlement{
		UserID:    userID,
		Tier:      TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Session is the per-request caller context threaded through the pipeline.
// An anonymous session has an empty UserID and no entitlement.
type Session struct {
	UserID      string
	Entitlement *Entitlement
	// Enforced is set when tokens are verified; premium then comes only
	// from the stored entitlement, never from the request body
	Enforced bool
}

// Authenticated reports whether the caller was identified
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Premium reports whether the caller holds an active premium entitlement
func (s Session) Premium(now time.Time) bool {
	return s.Entitlement.Active(now)
}

// EntitlementResponse is returned by GET /subscriptions/me
type EntitlementResponse struct {
	Entitlement
	IsPremium bool `json:"isPremium"`
}
