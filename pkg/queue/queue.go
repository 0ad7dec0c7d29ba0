package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is the producer side of a queue.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type QueueConfig struct {
	Workers    int
	RetryLimit int
	// RetryDelay is the first backoff; it doubles per attempt.
	RetryDelay time.Duration
}

// Message is the envelope stored in Redis. Payload stays encoded until a job decodes it.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"ts"`
}

// Decode unmarshals a job payload. A malformed payload is Permanent.
func Decode[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return nil, Permanent(fmt.Errorf("empty payload"))
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return &v, nil
}
