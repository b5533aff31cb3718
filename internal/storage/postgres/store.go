// Package postgres implements the repository store on PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-counter-deck/internal/repository"
	"go-counter-deck/pkg/models"
)

// Store is a repository.Store backed by a pgx connection pool
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// NewStore connects to dsn and verifies the connection
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, repository.ErrInvalidUserID
	}

	var (
		ent   models.Entitlement
		tier  string
		subID *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, tier, payment_subscription_id, expires_at, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`, userID).Scan(&ent.UserID, &tier, &subID, &ent.ExpiresAt, &ent.CreatedAt, &ent.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement: %w", err)
	}
	ent.Tier = models.Tier(tier)
	if subID != nil {
		ent.PaymentSubscriptionID = *subID
	}
	return &ent, nil
}

func (s *Store) CreateFreeEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, repository.ErrInvalidUserID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, tier)
		VALUES ($1, 'free')
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create free entitlement: %w", err)
	}
	return s.GetEntitlement(ctx, userID)
}

func (s *Store) UpsertEntitlement(ctx context.Context, in *models.Entitlement) (*models.Entitlement, error) {
	if in == nil || strings.TrimSpace(in.UserID) == "" {
		return nil, repository.ErrInvalidUserID
	}
	if !in.Tier.Valid() {
		return nil, repository.ErrInvalidTier
	}

	var subID *string
	if in.PaymentSubscriptionID != "" {
		subID = &in.PaymentSubscriptionID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, tier, payment_subscription_id, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			payment_subscription_id = EXCLUDED.payment_subscription_id,
			expires_at = EXCLUDED.expires_at,
			updated_at = now()
	`, in.UserID, string(in.Tier), subID, in.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return s.GetEntitlement(ctx, in.UserID)
}

func (s *Store) SaveAnalysis(ctx context.Context, r *models.AnalysisRecord) error {
	if r == nil || strings.TrimSpace(r.UserID) == "" {
		return repository.ErrInvalidUserID
	}
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return fmt.Errorf("invalid analysis id: %w", err)
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO analyses (id, user_id, arena, input_kind, counter_name, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, r.UserID, r.Arena, string(r.InputKind), r.CounterName, []byte(r.Result), created)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (s *Store) ListAnalyses(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, repository.ErrInvalidUserID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, arena, input_kind, counter_name, result, created_at
		FROM analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	items := make([]*models.AnalysisRecord, 0)
	for rows.Next() {
		var (
			r      models.AnalysisRecord
			id     uuid.UUID
			arena  *int16
			kind   string
			result []byte
		)
		if err := rows.Scan(&id, &r.UserID, &arena, &kind, &r.CounterName, &result, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		r.ID = id.String()
		if arena != nil {
			a := int(*arena)
			r.Arena = &a
		}
		r.InputKind = models.InputKind(kind)
		r.Result = json.RawMessage(result)
		items = append(items, &r)
	}
	return items, rows.Err()
}
