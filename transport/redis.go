package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTransport keeps one list per receiving rank and tag. Send pushes to the
// tail and TryReceive pops from the head.
type RedisTransport struct {
	client  *redis.Client
	rank    int
	prefix  string
	metrics *Metrics
}

type RedisOption func(*RedisTransport)

// WithRedisPrefix sets the key prefix, "ngen" by default. Runs sharing a
// Redis server need distinct prefixes.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisTransport) {
		r.prefix = prefix
	}
}

func WithRedisMetrics(m *Metrics) RedisOption {
	return func(r *RedisTransport) {
		r.metrics = m
	}
}

func NewRedis(client *redis.Client, rank int, opts ...RedisOption) *RedisTransport {
	r := &RedisTransport{
		client: client,
		rank:   rank,
		prefix: "ngen",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisTransport) key(rank int, tag Tag) string {
	return fmt.Sprintf("%s:flow:%d:%d", r.prefix, rank, tag)
}

func (r *RedisTransport) Rank() int {
	return r.rank
}

func (r *RedisTransport) Send(ctx context.Context, rank int, tag Tag, msg Message) error {
	if rank < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.RPush(ctx, r.key(rank, tag), data).Err(); err != nil {
		r.metrics.Error("redis", "send")
		return fmt.Errorf("push to rank %d tag %d: %w", rank, tag, err)
	}
	r.metrics.Sent("redis")
	return nil
}

func (r *RedisTransport) TryReceive(ctx context.Context, tag Tag) (Message, bool, error) {
	data, err := r.client.LPop(ctx, r.key(r.rank, tag)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		r.metrics.Error("redis", "receive")
		return Message{}, false, fmt.Errorf("pop tag %d: %w", tag, err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.metrics.Error("redis", "receive")
		return Message{}, false, fmt.Errorf("unmarshal message: %w", err)
	}
	r.metrics.Received("redis")
	return msg, true, nil
}

func (r *RedisTransport) Close() error {
	return r.client.Close()
}
