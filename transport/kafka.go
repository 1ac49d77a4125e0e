package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaTransport sends to a topic per rank, keyed by tag. Each rank consumes
// only its own topic and buffers records until they are asked for.
type KafkaTransport struct {
	client      *kgo.Client
	rank        int
	topicPrefix string
	pollTimeout time.Duration
	metrics     *Metrics
	log         logr.Logger

	mu      sync.Mutex
	pending map[Tag][]Message
}

type KafkaOption func(*KafkaTransport)

// WithTopicPrefix sets the topic prefix, "ngen-flow" by default.
func WithTopicPrefix(prefix string) KafkaOption {
	return func(k *KafkaTransport) {
		k.topicPrefix = prefix
	}
}

// WithPollTimeout bounds how long a TryReceive waits on the broker.
func WithPollTimeout(d time.Duration) KafkaOption {
	return func(k *KafkaTransport) {
		k.pollTimeout = d
	}
}

func WithKafkaMetrics(m *Metrics) KafkaOption {
	return func(k *KafkaTransport) {
		k.metrics = m
	}
}

func WithKafkaLogger(log logr.Logger) KafkaOption {
	return func(k *KafkaTransport) {
		k.log = log
	}
}

// RankTopic returns the topic rank consumes from.
func RankTopic(prefix string, rank int) string {
	return prefix + "-rank-" + strconv.Itoa(rank)
}

// NewKafka connects to brokers and consumes the topic of rank.
func NewKafka(brokers []string, rank int, opts ...KafkaOption) (*KafkaTransport, error) {
	if rank < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}

	k := &KafkaTransport{
		rank:        rank,
		topicPrefix: "ngen-flow",
		pollTimeout: 50 * time.Millisecond,
		log:         logr.Discard(),
		pending:     make(map[Tag][]Message),
	}
	for _, opt := range opts {
		opt(k)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(RankTopic(k.topicPrefix, rank)),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	k.client = client

	return k, nil
}

// EnsureTopics creates one topic per rank. Existing topics are left alone.
func EnsureTopics(ctx context.Context, brokers []string, prefix string, numRanks int) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	defer client.Close()

	topics := make([]string, numRanks)
	for i := range topics {
		topics[i] = RankTopic(prefix, i)
	}

	resp, err := kadm.NewClient(client).CreateTopics(ctx, 1, 1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (k *KafkaTransport) Rank() int {
	return k.rank
}

func (k *KafkaTransport) Send(ctx context.Context, rank int, tag Tag, msg Message) error {
	if rank < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	rec := &kgo.Record{
		Topic: RankTopic(k.topicPrefix, rank),
		Key:   []byte(tag.String()),
		Value: data,
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		k.metrics.Error("kafka", "send")
		return fmt.Errorf("produce to rank %d tag %d: %w", rank, tag, err)
	}
	k.metrics.Sent("kafka")
	return nil
}

func (k *KafkaTransport) TryReceive(ctx context.Context, tag Tag) (Message, bool, error) {
	if msg, ok := k.pop(tag); ok {
		return msg, true, nil
	}

	pctx, cancel := context.WithTimeout(ctx, k.pollTimeout)
	defer cancel()

	fetches := k.client.PollFetches(pctx)
	var fetchErr error
	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		k.metrics.Error("kafka", "receive")
		if fetchErr == nil {
			fetchErr = fmt.Errorf("fetch %s/%d: %w", topic, partition, err)
		}
	})
	if errors.Is(ctx.Err(), context.Canceled) {
		return Message{}, false, ctx.Err()
	}

	fetches.EachRecord(func(r *kgo.Record) {
		n, err := strconv.ParseInt(string(r.Key), 10, 64)
		if err != nil {
			k.log.Error(err, "Dropping record with invalid tag", "key", string(r.Key))
			return
		}
		var msg Message
		if err := json.Unmarshal(r.Value, &msg); err != nil {
			k.log.Error(err, "Dropping undecodable record", "tag", n)
			return
		}
		k.mu.Lock()
		k.pending[Tag(n)] = append(k.pending[Tag(n)], msg)
		k.mu.Unlock()
	})

	if fetchErr != nil {
		return Message{}, false, fetchErr
	}

	msg, ok := k.pop(tag)
	return msg, ok, nil
}

func (k *KafkaTransport) pop(tag Tag) (Message, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	queue := k.pending[tag]
	if len(queue) == 0 {
		return Message{}, false
	}
	k.pending[tag] = queue[1:]
	k.metrics.Received("kafka")
	return queue[0], true
}

func (k *KafkaTransport) Close() error {
	k.client.Close()
	return nil
}
