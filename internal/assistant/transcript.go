package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// RoleAction marks dispatch-result entries: part of the oracle's
	// context, hidden from the human transcript.
	RoleAction = "action"
	// RoleActionRequest marks the oracle turn that asked for an action.
	// Replayed to the oracle as an assistant turn, hidden from the human
	// transcript.
	RoleActionRequest = "action_request"

	transcriptTTL = 24 * time.Hour
)

// Entry is one turn in a conversation transcript.
type Entry struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// TranscriptStore keeps per-account conversation history in Redis,
// trimmed to the configured context window.
type TranscriptStore struct {
	client *redis.Client
	window int
}

func NewTranscriptStore(client *redis.Client, window int) *TranscriptStore {
	if window < 1 {
		window = 20
	}
	return &TranscriptStore{client: client, window: window}
}

func transcriptKey(accountID uuid.UUID) string {
	return fmt.Sprintf("chat:transcript:%s", accountID)
}

func (s *TranscriptStore) Append(ctx context.Context, accountID uuid.UUID, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal transcript entry: %w", err)
	}

	key := transcriptKey(accountID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.window), -1)
	pipe.Expire(ctx, key, transcriptTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append transcript entry: %w", err)
	}
	return nil
}

// Recent returns the windowed transcript, oldest first.
func (s *TranscriptStore) Recent(ctx context.Context, accountID uuid.UUID) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, transcriptKey(accountID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// skip corrupt entries rather than breaking the whole chat
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *TranscriptStore) Clear(ctx context.Context, accountID uuid.UUID) error {
	return s.client.Del(ctx, transcriptKey(accountID)).Err()
}
