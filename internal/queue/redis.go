package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resultKeyPrefix = "task-meta-"

// RedisBroker keeps queues as Redis lists and results as expiring string keys.
type RedisBroker struct {
	broker  *redis.Client
	backend *redis.Client
}

// NewRedisBroker connects to the broker and result backend URLs. Identical URLs share one client.
func NewRedisBroker(brokerURL, backendURL string) (*RedisBroker, error) {
	bopt, err := redis.ParseURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("parse broker url: %w", err)
	}
	b := &RedisBroker{broker: redis.NewClient(bopt)}

	if backendURL == "" || backendURL == brokerURL {
		b.backend = b.broker
		return b, nil
	}
	ropt, err := redis.ParseURL(backendURL)
	if err != nil {
		b.broker.Close()
		return nil, fmt.Errorf("parse result backend url: %w", err)
	}
	b.backend = redis.NewClient(ropt)
	return b, nil
}

func (b *RedisBroker) Push(ctx context.Context, queue string, payload []byte) error {
	return b.broker.LPush(ctx, queue, payload).Err()
}

func (b *RedisBroker) Pop(ctx context.Context, queue string, timeout time.Duration) ([]byte, error) {
	vals, err := b.broker.BRPop(ctx, timeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessage
	}
	if err != nil {
		return nil, err
	}
	// BRPOP replies with the list name followed by the value.
	return []byte(vals[1]), nil
}

func (b *RedisBroker) SetResult(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	return b.backend.Set(ctx, resultKeyPrefix+id, payload, ttl).Err()
}

func (b *RedisBroker) GetResult(ctx context.Context, id string) ([]byte, error) {
	data, err := b.backend.Get(ctx, resultKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrResultNotFound
	}
	return data, err
}

func (b *RedisBroker) Ping(ctx context.Context) error {
	if err := b.broker.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if b.backend != b.broker {
		if err := b.backend.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("result backend: %w", err)
		}
	}
	return nil
}

func (b *RedisBroker) Close() error {
	err := b.broker.Close()
	if b.backend != b.broker {
		err = errors.Join(err, b.backend.Close())
	}
	return err
}
