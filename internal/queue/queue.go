// Package queue is a small Redis-backed task queue. Producers enqueue JSON messages
// onto a named list; workers pop them, run the registered handler under soft and hard
// time limits and store the outcome in a result backend.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"studium/internal/config"
)

// ContentTypeJSON is the only accepted message encoding.
const ContentTypeJSON = "application/json"

// Task states stored in the result backend.
const (
	StatusPending  = "PENDING"
	StatusStarted  = "STARTED"
	StatusSuccess  = "SUCCESS"
	StatusFailure  = "FAILURE"
	StatusRejected = "REJECTED"
)

var (
	ErrSoftTimeLimit          = errors.New("soft time limit exceeded")
	ErrHardTimeLimit          = errors.New("hard time limit exceeded")
	ErrUnknownTask            = errors.New("unknown task")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrNoMessage              = errors.New("no message available")
	ErrResultNotFound         = errors.New("result not found")
)

// Config controls queue naming, time limits and result tracking.
type Config struct {
	Name          string
	SoftTimeLimit time.Duration
	HardTimeLimit time.Duration
	// TrackStarted records a STARTED result before a task runs.
	TrackStarted bool
	ResultTTL    time.Duration
}

// DefaultResultTTL is how long results are kept.
const DefaultResultTTL = 24 * time.Hour

// ConfigFrom maps the application settings onto a queue Config.
func ConfigFrom(c config.QueueConfig) Config {
	return Config{
		Name:          c.Name,
		SoftTimeLimit: time.Duration(c.SoftTimeLimitSec) * time.Second,
		HardTimeLimit: time.Duration(c.TimeLimitSec) * time.Second,
		TrackStarted:  true,
		ResultTTL:     DefaultResultTTL,
	}
}

// Message is the envelope pushed to the broker.
type Message struct {
	ID          string          `json:"id"`
	Task        string          `json:"task"`
	ContentType string          `json:"content_type"`
	Args        json.RawMessage `json:"args,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Result is the stored outcome of a task.
type Result struct {
	ID       string          `json:"task_id"`
	Task     string          `json:"task,omitempty"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	DateDone *time.Time      `json:"date_done,omitempty"`
}

// Broker moves raw messages and results. Implementations must be safe for concurrent use.
type Broker interface {
	// Push appends payload to the named queue.
	Push(ctx context.Context, queue string, payload []byte) error
	// Pop blocks up to timeout for the next message and returns ErrNoMessage when none arrived.
	Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error)
	// SetResult stores a result payload for id, expiring after ttl.
	SetResult(ctx context.Context, id string, payload []byte, ttl time.Duration) error
	// GetResult returns the stored result payload or ErrResultNotFound.
	GetResult(ctx context.Context, id string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}
