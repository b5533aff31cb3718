package repository

import (
	"context"

	"go-counter-deck/pkg/models"
)

// EntitlementRepository defines the data access operations for subscriptions
type EntitlementRepository interface {
	// GetEntitlement returns the user's record, or ErrEntitlementNotFound
	GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)

	// CreateFreeEntitlement inserts a free record unless one already exists,
	// and returns the record stored for the user either way
	CreateFreeEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)

	// UpsertEntitlement inserts or replaces the user's record; last write wins
	UpsertEntitlement(ctx context.Context, ent *models.Entitlement) (*models.Entitlement, error)
}

// AnalysisRepository defines the interface for analysis history operations
type AnalysisRepository interface {
	// SaveAnalysis stores a completed analysis
	SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) error

	// ListAnalyses returns the user's analyses, newest first
	ListAnalyses(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error)
}

// Store is a backing store for both repositories
type Store interface {
	EntitlementRepository
	AnalysisRepository
	Ping(ctx context.Context) error
	Close() error
}

// DefaultListLimit caps history queries that do not specify a limit
const DefaultListLimit = 20

// MaxListLimit is the largest accepted history page
const MaxListLimit = 100

// ClampLimit maps a requested page size into [1, MaxListLimit]
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
