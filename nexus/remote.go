package nexus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NOAA-OWP/ngen-sub002/transport"
	"github.com/go-logr/logr"
	"go.uber.org/multierr"
)

var ErrLocalNexus = errors.New("nexus has no remote connections")

const (
	DefaultTimeout      = 120 * time.Second
	DefaultPollInterval = 10 * time.Millisecond
)

type contributor struct {
	Peer
	tag transport.Tag
}

// RemoteNexus exchanges the flow of one nexus with the partitions holding its
// remote catchments. Flows are kept per time step until Release.
type RemoteNexus struct {
	route        Route
	inbox        *Inbox
	contributors []contributor
	receivers    []int

	local  map[int64]map[string]float64
	remote map[int64]map[string]float64

	timeout      time.Duration
	pollInterval time.Duration
	metrics      *transport.Metrics
	log          logr.Logger
}

type Option func(*RemoteNexus)

// WithTimeout bounds how long Exchange waits for remote contributions.
// Contributions still missing afterwards are skipped for the step.
func WithTimeout(d time.Duration) Option {
	return func(n *RemoteNexus) {
		n.timeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(n *RemoteNexus) {
		n.pollInterval = d
	}
}

func WithLogger(log logr.Logger) Option {
	return func(n *RemoteNexus) {
		n.log = log
	}
}

func WithMetrics(m *transport.Metrics) Option {
	return func(n *RemoteNexus) {
		n.metrics = m
	}
}

// NewRemoteNexus prepares the exchange of route. Every RemoteNexus of a
// partition must share the partition's inbox.
func NewRemoteNexus(route Route, inbox *Inbox, opts ...Option) (*RemoteNexus, error) {
	if route.Type == Local {
		return nil, fmt.Errorf("%w: %s", ErrLocalNexus, route.NexusID)
	}

	n := &RemoteNexus{
		route:        route,
		inbox:        inbox,
		receivers:    route.ReceiverRanks(),
		local:        make(map[int64]map[string]float64),
		remote:       make(map[int64]map[string]float64),
		timeout:      DefaultTimeout,
		pollInterval: DefaultPollInterval,
		log:          logr.Discard(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.WithValues("nexus", route.NexusID)

	for _, peer := range route.Contributors {
		tag, err := transport.TagFor(peer.CatchmentID)
		if err != nil {
			return nil, err
		}
		n.contributors = append(n.contributors, contributor{Peer: peer, tag: tag})
	}
	return n, nil
}

// Connect creates a RemoteNexus for every remote route of r, keyed by nexus
// id. They share one Inbox on tr.
func (r *Router) Connect(tr transport.Transport, opts ...Option) (map[string]*RemoteNexus, error) {
	inbox := NewInbox(tr)
	out := make(map[string]*RemoteNexus)
	for _, route := range r.Remote() {
		n, err := NewRemoteNexus(route, inbox, opts...)
		if err != nil {
			return nil, err
		}
		out[route.NexusID] = n
	}
	return out, nil
}

func (n *RemoteNexus) Route() Route {
	return n.route
}

// AddUpstreamFlow records the flow a local catchment delivers to the nexus in
// step. Adding twice for the same catchment and step accumulates.
func (n *RemoteNexus) AddUpstreamFlow(catchmentID string, step int64, flow float64) {
	flows, ok := n.local[step]
	if !ok {
		flows = make(map[string]float64)
		n.local[step] = flows
	}
	flows[catchmentID] += flow
}

// Exchange sends the local contributions of step to every receiving rank and
// then polls for the remote contributions. Contributions that do not arrive
// within the timeout are logged and left out of Flow.
func (n *RemoteNexus) Exchange(ctx context.Context, step int64) error {
	if err := n.send(ctx, step); err != nil {
		return err
	}
	return n.receive(ctx, step)
}

func (n *RemoteNexus) send(ctx context.Context, step int64) error {
	if len(n.receivers) == 0 {
		return nil
	}

	var errs error
	for cat, flow := range n.local[step] {
		tag, err := transport.TagFor(cat)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		msg := transport.Message{
			Step:        step,
			NexusID:     n.route.NexusID,
			CatchmentID: cat,
			Flow:        flow,
		}
		for _, rank := range n.receivers {
			if err := n.inbox.Transport().Send(ctx, rank, tag, msg); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (n *RemoteNexus) receive(ctx context.Context, step int64) error {
	if len(n.contributors) == 0 {
		return nil
	}

	deadline := time.Now().Add(n.timeout)
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		missing, err := n.poll(ctx, step)
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			n.log.Info("warning: remote contributions not received", "step", step, "missing", missing, "timeout", n.timeout)
			n.metrics.Timeout()
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll drains what is available for every contributor still missing in step
// and returns the catchments still missing.
func (n *RemoteNexus) poll(ctx context.Context, step int64) ([]string, error) {
	var missing []string
	for _, c := range n.contributors {
		for !n.has(step, c.CatchmentID) {
			msg, ok, err := n.inbox.Receive(ctx, c.tag, n.route.NexusID, c.CatchmentID)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			n.accept(step, msg)
		}
		if !n.has(step, c.CatchmentID) {
			missing = append(missing, c.CatchmentID)
		}
	}
	return missing, nil
}

func (n *RemoteNexus) accept(step int64, msg transport.Message) {
	if msg.Step < step {
		if _, ok := n.remote[msg.Step]; !ok {
			n.log.V(1).Info("Dropping late contribution", "step", msg.Step, "catchment", msg.CatchmentID)
			return
		}
	}

	flows, ok := n.remote[msg.Step]
	if !ok {
		flows = make(map[string]float64)
		n.remote[msg.Step] = flows
	}
	flows[msg.CatchmentID] = msg.Flow
}

func (n *RemoteNexus) has(step int64, catchmentID string) bool {
	_, ok := n.remote[step][catchmentID]
	return ok
}

// Flow returns the total flow through the nexus in step: the local
// contributions plus the remote contributions received so far.
func (n *RemoteNexus) Flow(step int64) float64 {
	var sum float64
	for _, f := range n.local[step] {
		sum += f
	}
	for _, f := range n.remote[step] {
		sum += f
	}
	return sum
}

// Release forgets every step up to and including step.
func (n *RemoteNexus) Release(step int64) {
	for s := range n.local {
		if s <= step {
			delete(n.local, s)
		}
	}
	for s := range n.remote {
		if s <= step {
			delete(n.remote, s)
		}
	}
}
