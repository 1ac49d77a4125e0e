// Package transport moves nexus flow messages between partitions.
//
// A partition sends to another partition by rank and receives by tag. Tags
// are derived from the catchment id the flow belongs to, so a receiver can ask
// for exactly the contribution it is waiting on. Receives never block:
// TryReceive reports whether a message was available and callers poll.
//
// Three transports are provided: Hub for partitions living in one process,
// KafkaTransport with one topic per rank and RedisTransport with one list per
// rank and tag.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTag  = errors.New("invalid tag")
	ErrClosed      = errors.New("transport closed")
	ErrInvalidRank = errors.New("invalid rank")
)

// Tag identifies the stream of messages for one catchment.
type Tag int64

func (t Tag) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// TagFor derives the tag from the numeric part of a feature id such as
// "cat-27".
func TagFor(featureID string) (Tag, error) {
	_, num, ok := strings.Cut(featureID, "-")
	if !ok || num == "" {
		return 0, fmt.Errorf("%w: %q has no numeric suffix", ErrInvalidTag, featureID)
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTag, featureID)
	}
	return Tag(n), nil
}

// Message is one flow contribution for a time step.
type Message struct {
	Step        int64   `json:"step"`
	NexusID     string  `json:"nex-id"`
	CatchmentID string  `json:"cat-id"`
	Flow        float64 `json:"flow"`
}

// Transport exchanges messages between ranks.
type Transport interface {
	// Rank returns the rank this transport receives for.
	Rank() int
	// Send delivers msg to rank under tag.
	Send(ctx context.Context, rank int, tag Tag, msg Message) error
	// TryReceive returns the oldest message for tag addressed to this rank,
	// or false when none is available yet.
	TryReceive(ctx context.Context, tag Tag) (Message, bool, error)
	Close() error
}
