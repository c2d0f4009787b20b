package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Client publishes tasks and reads their results.
type Client struct {
	broker Broker
	cfg    Config
}

// NewClient returns a Client publishing to cfg.Name.
func NewClient(b Broker, cfg Config) *Client {
	return &Client{broker: b, cfg: cfg}
}

// Enqueue publishes task with args encoded as JSON and returns the task id.
func (c *Client) Enqueue(ctx context.Context, task string, args any) (string, error) {
	if task == "" {
		return "", errors.New("enqueue: task name is required")
	}
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("enqueue %s: encode args: %w", task, err)
		}
		raw = b
	}

	msg := Message{
		ID:          uuid.NewString(),
		Task:        task,
		ContentType: ContentTypeJSON,
		Args:        raw,
		CreatedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task, err)
	}
	if err := c.broker.Push(ctx, c.cfg.Name, payload); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task, err)
	}
	return msg.ID, nil
}

// Result returns the stored outcome of task id. Unknown ids are reported as PENDING.
func (c *Client) Result(ctx context.Context, id string) (*Result, error) {
	data, err := c.broker.GetResult(ctx, id)
	if errors.Is(err, ErrResultNotFound) {
		return &Result{ID: id, Status: StatusPending}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", id, err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &r, nil
}
