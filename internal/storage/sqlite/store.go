// Package sqlite implements the repository store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"go-counter-deck/internal/repository"
	"go-counter-deck/pkg/models"
)

// Store is a repository.Store backed by SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open creates the database file if needed, migrates it and returns a store
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if _, err := Migrate(path); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer avoids SQLITE_BUSY under concurrent upserts
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// WithClock overrides the store's time source
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, repository.ErrInvalidUserID
	}

	var (
		ent       models.Entitlement
		subID     sql.NullString
		expiresAt sql.NullInt64
		created   int64
		updated   int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, tier, payment_subscription_id, expires_at, created_at, updated_at
		FROM subscriptions
		WHERE user_id = ?`, userID,
	).Scan(&ent.UserID, &ent.Tier, &subID, &expiresAt, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load entitlement: %w", err)
	}

	ent.PaymentSubscriptionID = subID.String
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		ent.ExpiresAt = &t
	}
	ent.CreatedAt = time.UnixMilli(created).UTC()
	ent.UpdatedAt = time.UnixMilli(updated).UTC()
	return &ent, nil
}

func (s *Store) CreateFreeEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, repository.ErrInvalidUserID
	}

	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, created_at, updated_at)
		VALUES (?, 'free', ?, ?)
		ON CONFLICT (user_id) DO NOTHING`, userID, now, now)
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

	var expiresAt sql.NullInt64
	if in.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: in.ExpiresAt.UnixMilli(), Valid: true}
	}
	var subID sql.NullString
	if in.PaymentSubscriptionID != "" {
		subID = sql.NullString{String: in.PaymentSubscriptionID, Valid: true}
	}

	now := s.now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, tier, payment_subscription_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = excluded.tier,
			payment_subscription_id = excluded.payment_subscription_id,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		in.UserID, string(in.Tier), subID, expiresAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert entitlement: %w", err)
	}
	return s.GetEntitlement(ctx, in.UserID)
}

func (s *Store) SaveAnalysis(ctx context.Context, r *models.AnalysisRecord) error {
	if r == nil || strings.TrimSpace(r.UserID) == "" {
		return repository.ErrInvalidUserID
	}

	var arena sql.NullInt64
	if r.Arena != nil {
		arena = sql.NullInt64{Int64: int64(*r.Arena), Valid: true}
	}
	created := r.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, user_id, arena, input_kind, counter_name, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, arena, string(r.InputKind), r.CounterName, string(r.Result), created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (s *Store) ListAnalyses(ctx context.Context, userID string, limit int) ([]*models.AnalysisRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, repository.ErrInvalidUserID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, arena, input_kind, counter_name, result, created_at
		FROM analyses
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, repository.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	items := make([]*models.AnalysisRecord, 0)
	for rows.Next() {
		var (
			r       models.AnalysisRecord
			arena   sql.NullInt64
			kind    string
			result  string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &arena, &kind, &r.CounterName, &result, &created); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		if arena.Valid {
			a := int(arena.Int64)
			r.Arena = &a
		}
		r.InputKind = models.InputKind(kind)
		r.Result = json.RawMessage(result)
		r.CreatedAt = time.UnixMilli(created).UTC()
		items = append(items, &r)
	}
	return items, rows.Err()
}
