// Package nexus routes nexus flow across partition boundaries.
//
// A Router reads the remote connections of one partition and tells, per
// nexus, which ranks must receive the local contributions and which remote
// catchments contribute flow. A RemoteNexus then runs the exchange for one
// nexus and one time step over a transport.Transport.
package nexus

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NOAA-OWP/ngen-sub002/partition"
)

// CommType is the role a partition plays for a nexus.
type CommType int

const (
	// Local nexuses have every upstream and downstream catchment in the
	// partition.
	Local CommType = iota
	// Sender nexuses feed at least one remote downstream catchment.
	Sender
	// Receiver nexuses are fed by at least one remote upstream catchment.
	Receiver
	// SenderReceiver nexuses do both.
	SenderReceiver
)

func (c CommType) String() string {
	switch c {
	case Local:
		return "local"
	case Sender:
		return "sender"
	case Receiver:
		return "receiver"
	case SenderReceiver:
		return "sender_receiver"
	default:
		return fmt.Sprintf("commtype(%d)", int(c))
	}
}

// Peer is a catchment living in another partition.
type Peer struct {
	Rank        int
	CatchmentID string
}

// Route describes one nexus as seen from a partition.
type Route struct {
	NexusID string
	Type    CommType
	// Receivers are the remote downstream catchments, in connection order.
	Receivers []Peer
	// Contributors are the remote upstream catchments. Each appears once even
	// when the partition file lists it for several local destinations.
	Contributors []Peer
}

// ReceiverRanks returns the distinct ranks in Receivers, sorted.
func (r Route) ReceiverRanks() []int {
	ranks := make([]int, 0, len(r.Receivers))
	for _, p := range r.Receivers {
		ranks = append(ranks, p.Rank)
	}
	slices.Sort(ranks)
	return slices.Compact(ranks)
}

// Router holds the routes of one partition.
type Router struct {
	partition int
	routes    map[string]*Route
}

// NewRouter builds the routes of data. Nexuses of the partition without
// remote connections are Local.
func NewRouter(data partition.Data) *Router {
	r := &Router{
		partition: data.ID,
		routes:    make(map[string]*Route, len(data.NexusIDs)),
	}
	for _, id := range data.NexusIDs {
		r.route(id)
	}

	for _, conn := range data.RemoteConnections {
		route := r.route(conn.NexusID)
		peer := Peer{Rank: conn.Rank, CatchmentID: conn.CatchmentID}
		switch conn.Direction {
		case partition.NexToDestCat:
			route.Receivers = append(route.Receivers, peer)
		case partition.OrigCatToNex:
			if !slices.Contains(route.Contributors, peer) {
				route.Contributors = append(route.Contributors, peer)
			}
		}
	}

	for _, route := range r.routes {
		switch {
		case len(route.Receivers) > 0 && len(route.Contributors) > 0:
			route.Type = SenderReceiver
		case len(route.Receivers) > 0:
			route.Type = Sender
		case len(route.Contributors) > 0:
			route.Type = Receiver
		}
	}
	return r
}

func (r *Router) route(id string) *Route {
	route, ok := r.routes[id]
	if !ok {
		route = &Route{NexusID: id}
		r.routes[id] = route
	}
	return route
}

// Partition returns the id of the partition the routes belong to.
func (r *Router) Partition() int {
	return r.partition
}

// Route returns the route of nexusID. Unknown nexuses are Local.
func (r *Router) Route(nexusID string) Route {
	if route, ok := r.routes[nexusID]; ok {
		return *route
	}
	return Route{NexusID: nexusID}
}

// Routes returns every route sorted by nexus id.
func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, *route)
	}
	slices.SortFunc(out, func(a, b Route) int {
		return strings.Compare(a.NexusID, b.NexusID)
	})
	return out
}

// Remote returns the routes that cross a partition boundary, sorted by
// nexus id.
func (r *Router) Remote() []Route {
	return slices.DeleteFunc(r.Routes(), func(route Route) bool {
		return route.Type == Local
	})
}
