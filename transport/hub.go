package transport

import (
	"context"
	"fmt"
	"sync"
)

// Hub connects partitions running in the same process.
type Hub struct {
	mu     sync.Mutex
	boxes  map[int]map[Tag][]Message
	closed bool
}

func NewHub() *Hub {
	return &Hub{boxes: make(map[int]map[Tag][]Message)}
}

// Endpoint returns the transport for rank.
func (h *Hub) Endpoint(rank int, metrics *Metrics) *Endpoint {
	return &Endpoint{hub: h, rank: rank, metrics: metrics}
}

// Close rejects further traffic on every endpoint.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.boxes = make(map[int]map[Tag][]Message)
	return nil
}

// Endpoint is one rank's view of a Hub.
type Endpoint struct {
	hub     *Hub
	rank    int
	metrics *Metrics
}

func (e *Endpoint) Rank() int {
	return e.rank
}

func (e *Endpoint) Send(ctx context.Context, rank int, tag Tag, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rank < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}

	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	if e.hub.closed {
		e.metrics.Error("hub", "send")
		return ErrClosed
	}

	box, ok := e.hub.boxes[rank]
	if !ok {
		box = make(map[Tag][]Message)
		e.hub.boxes[rank] = box
	}
	box[tag] = append(box[tag], msg)
	e.metrics.Sent("hub")
	return nil
}

func (e *Endpoint) TryReceive(ctx context.Context, tag Tag) (Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, false, err
	}

	e.hub.mu.Lock()
	defer e.hub.mu.Unlock()
	if e.hub.closed {
		return Message{}, false, ErrClosed
	}

	queue := e.hub.boxes[e.rank][tag]
	if len(queue) == 0 {
		return Message{}, false, nil
	}
	msg := queue[0]
	e.hub.boxes[e.rank][tag] = queue[1:]
	e.metrics.Received("hub")
	return msg, true, nil
}

// Close is a no-op; close the Hub instead.
func (e *Endpoint) Close() error {
	return nil
}
