package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mantled-app/creator-api/internal/generation"
)

// UsageRecord matches the usage_records table schema: durable per-period
// attempt counters mirroring the Redis ledger.
type UsageRecord struct {
	UserID      uuid.UUID `json:"user_id"`
	Period      string    `json:"period"`
	TextCount   int       `json:"text_count"`
	ImageCount  int       `json:"image_count"`
	AvatarCount int       `json:"avatar_count"`
	VideoCount  int       `json:"video_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Counts returns the record's counters keyed by capability.
func (r UsageRecord) Counts() map[generation.Capability]int {
	return map[generation.Capability]int{
		generation.CapabilityText:   r.TextCount,
		generation.CapabilityImage:  r.ImageCount,
		generation.CapabilityAvatar: r.AvatarCount,
		generation.CapabilityVideo:  r.VideoCount,
	}
}

// Repository handles usage_records PostgreSQL operations.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func countColumn(c generation.Capability) (string, error) {
	switch c {
	case generation.CapabilityText:
		return "text_count", nil
	case generation.CapabilityImage:
		return "image_count", nil
	case generation.CapabilityAvatar:
		return "avatar_count", nil
	case generation.CapabilityVideo:
		return "video_count", nil
	}
	return "", fmt.Errorf("unknown capability %q", c)
}

// RecordAttempt upserts the period row and bumps the capability's counter
// by one. Called once per generation attempt regardless of outcome.
func (r *Repository) RecordAttempt(ctx context.Context, userID uuid.UUID, period string, c generation.Capability, outcome string) error {
	col, err := countColumn(c)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO usage_records (user_id, period, %s)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, period)
		 DO UPDATE SET %s = usage_records.%s + 1, updated_at = NOW()`, col, col, col)

	if _, err := r.pool.Exec(ctx, query, userID, period); err != nil {
		return fmt.Errorf("recording usage attempt: %w", err)
	}
	return nil
}

// Get returns the durable usage record for a period, or a zero-count
// record if none exists yet.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID, period string) (*UsageRecord, error) {
	rec := &UsageRecord{UserID: userID, Period: period}

	err := r.pool.QueryRow(ctx,
		`SELECT text_count, image_count, avatar_count, video_count, updated_at
		 FROM usage_records WHERE user_id = $1 AND period = $2`, userID, period,
	).Scan(&rec.TextCount, &rec.ImageCount, &rec.AvatarCount, &rec.VideoCount, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching usage record: %w", err)
	}
	return rec, nil
}
