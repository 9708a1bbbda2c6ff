package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Recording session states.
const (
	StatusRecording  = "recording"
	StatusProcessing = "processing"
	StatusReady      = "ready"
)

// Recording is one in-progress capture session. Held in Redis with a TTL
// and keyed by session id, so every caller addresses a session explicitly
// instead of relying on ambient "current recording" state.
type Recording struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Status      string    `json:"status"`
	MediaRef    string    `json:"media_ref,omitempty"`
	DurationSec int       `json:"duration_sec,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store manages recording sessions in Redis.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return "session:recording:" + id.String()
}

// Put writes the session and refreshes its TTL.
func (s *Store) Put(ctx context.Context, rec Recording) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing session %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the session, or nil if it does not exist or has expired.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Recording, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", id, err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling session %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.client.Del(ctx, sessionKey(id)).Err()
}
