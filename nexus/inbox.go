package nexus

import (
	"context"
	"sync"

	"github.com/NOAA-OWP/ngen-sub002/transport"
)

type inboxKey struct {
	nexusID     string
	catchmentID string
}

// Inbox is the receiving side of one transport shared by every RemoteNexus
// of a partition. Tags only name the upstream catchment, so a catchment that
// feeds several nexuses delivers all of them on one tag; Inbox files each
// message under its nexus until the owning RemoteNexus asks for it.
type Inbox struct {
	tr transport.Transport

	mu      sync.Mutex
	pending map[inboxKey][]transport.Message
}

func NewInbox(tr transport.Transport) *Inbox {
	return &Inbox{
		tr:      tr,
		pending: make(map[inboxKey][]transport.Message),
	}
}

// Transport returns the transport the inbox reads from.
func (b *Inbox) Transport() transport.Transport {
	return b.tr
}

// Receive returns the oldest message from catchmentID to nexusID, or false
// when none has arrived yet. Messages for other nexuses read on the way are
// kept for them.
func (b *Inbox) Receive(ctx context.Context, tag transport.Tag, nexusID, catchmentID string) (transport.Message, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := inboxKey{nexusID: nexusID, catchmentID: catchmentID}
	if msg, ok := b.pop(key); ok {
		return msg, true, nil
	}

	for {
		msg, ok, err := b.tr.TryReceive(ctx, tag)
		if err != nil || !ok {
			return transport.Message{}, false, err
		}
		got := inboxKey{nexusID: msg.NexusID, catchmentID: msg.CatchmentID}
		if got == key {
			return msg, true, nil
		}
		b.pending[got] = append(b.pending[got], msg)
	}
}

// Pending returns the number of messages held for nexuses that have not
// asked for them yet.
func (b *Inbox) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, queue := range b.pending {
		n += len(queue)
	}
	return n
}

func (b *Inbox) pop(key inboxKey) (transport.Message, bool) {
	queue := b.pending[key]
	if len(queue) == 0 {
		return transport.Message{}, false
	}
	if len(queue) == 1 {
		delete(b.pending, key)
	} else {
		b.pending[key] = queue[1:]
	}
	return queue[0], true
}
