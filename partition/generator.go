package partition

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NOAA-OWP/ngen-sub002/network"
	"github.com/go-logr/logr"
)

// Plan is the result of partitioning a network.
type Plan struct {
	Catchments []IDSet
	Nexuses    []IDSet
	// BoundaryNexuses holds, per partition, the first destination of the
	// catchment that closed it.
	BoundaryNexuses []string
	Connections     [][]RemoteConnection
}

// Data returns the serializable partitions with sorted id lists.
func (p *Plan) Data() []Data {
	parts := make([]Data, len(p.Catchments))
	for i := range p.Catchments {
		conns := p.Connections[i]
		if conns == nil {
			conns = []RemoteConnection{}
		}
		parts[i] = Data{
			ID:                i,
			CatchmentIDs:      p.Catchments[i].Sorted(),
			NexusIDs:          p.Nexuses[i].Sorted(),
			RemoteConnections: conns,
		}
	}
	return parts
}

// Generator splits a network into balanced, contiguous partitions.
type Generator struct {
	net *network.Network
	log logr.Logger
}

type Option func(*Generator)

func WithLogger(log logr.Logger) Option {
	return func(g *Generator) {
		g.log = log
	}
}

func NewGenerator(net *network.Network, opts ...Option) *Generator {
	g := &Generator{
		net: net,
		log: logr.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate partitions numCatchments catchments into numPartitions groups and
// computes the remote connections of every group.
func (g *Generator) Generate(numPartitions, numCatchments int) (*Plan, error) {
	cats, nexs, boundaries, err := g.GeneratePartitions(numPartitions, numCatchments)
	if err != nil {
		return nil, err
	}

	if err := CheckDisjoint(cats); err != nil {
		return nil, err
	}

	plan := &Plan{
		Catchments:      cats,
		Nexuses:         nexs,
		BoundaryNexuses: boundaries,
		Connections:     make([][]RemoteConnection, len(cats)),
	}

	total := 0
	for i := range cats {
		for _, nexus := range nexs[i].Sorted() {
			origins, err := g.net.OriginationIDs(nexus)
			if err != nil {
				return nil, err
			}
			dests, err := g.net.DestinationIDs(nexus)
			if err != nil {
				return nil, err
			}
			conns, err := FindPartitionConnections(nexus, cats, i, origins, dests)
			if err != nil {
				return nil, err
			}
			plan.Connections[i] = append(plan.Connections[i], conns...)
		}
		g.log.V(1).Info("Found remotes", "partition", i, "remotes", len(plan.Connections[i]))
		total += len(plan.Connections[i])
	}

	g.log.Info("Generated partitions",
		"partitions", len(cats),
		"catchments", numCatchments,
		"remotes", total,
		"remotes_per_partition", total/len(cats))

	return plan, nil
}

// GeneratePartitions walks the catchments in transposed depth-first preorder
// and closes a partition whenever it reaches its target size. The first
// numCatchments%numPartitions partitions take one extra catchment.
func (g *Generator) GeneratePartitions(numPartitions, numCatchments int) (cats, nexs []IDSet, boundaries []string, err error) {
	if numPartitions <= 0 {
		return nil, nil, nil, fmt.Errorf("%w: %d", ErrInvalidPartitionCount, numPartitions)
	}
	if numCatchments < numPartitions {
		return nil, nil, nil, fmt.Errorf("%w: %d catchments cannot fill %d partitions",
			ErrInvalidPartitionCount, numCatchments, numPartitions)
	}

	order := g.net.Filter("cat", network.TransposedDepthFirstPreorder)
	if len(order) != numCatchments {
		return nil, nil, nil, fmt.Errorf("%w: expected %d, network has %d",
			ErrCatchmentCountMismatch, numCatchments, len(order))
	}

	size := numCatchments / numPartitions
	remainder := numCatchments % numPartitions
	target := func(p int) int {
		if p < remainder {
			return size + 1
		}
		return size
	}

	catSet, nexSet := NewIDSet(), NewIDSet()
	for _, cat := range order {
		dests, err := g.net.DestinationIDs(cat)
		if err != nil {
			return nil, nil, nil, err
		}
		if len(dests) == 0 {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrNoDestination, cat)
		}
		origins, err := g.net.OriginationIDs(cat)
		if err != nil {
			return nil, nil, nil, err
		}

		nexSet.Add(dests...)
		nexSet.Add(origins...)
		catSet.Add(cat)

		if len(catSet) == target(len(cats)) {
			cats = append(cats, catSet)
			nexs = append(nexs, nexSet)
			boundaries = append(boundaries, dests[0])
			g.log.V(1).Info("Closed partition",
				"partition", len(cats)-1,
				"catchments", len(catSet),
				"boundary_nexus", dests[0])
			catSet, nexSet = NewIDSet(), NewIDSet()
		}
	}

	return cats, nexs, boundaries, nil
}

// FindRemoteRank returns the partition holding id. When several partitions
// hold id the lowest one wins.
func FindRemoteRank(id string, cats []IDSet) (int, error) {
	for i, set := range cats {
		if set.Has(id) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrNotInAnyPartition, id)
}

// FindPartitionConnections classifies the edges of nexus that cross the
// boundary of partition. Every destination outside the partition is a send.
// Every origin outside the partition is a receive, recorded once for each
// destination of the nexus that the partition holds.
func FindPartitionConnections(nexus string, cats []IDSet, partition int, origins, dests []string) ([]RemoteConnection, error) {
	if partition < 0 || partition >= len(cats) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPartition, partition, len(cats))
	}
	local := cats[partition]

	var conns []RemoteConnection
	for _, dest := range dests {
		if local.Has(dest) {
			continue
		}
		rank, err := FindRemoteRank(dest, cats)
		if err != nil {
			return nil, err
		}
		conns = append(conns, RemoteConnection{
			Rank:        rank,
			NexusID:     nexus,
			CatchmentID: dest,
			Direction:   NexToDestCat,
		})
	}

	for _, origin := range origins {
		if local.Has(origin) {
			continue
		}
		for _, dest := range dests {
			if !local.Has(dest) {
				continue
			}
			rank, err := FindRemoteRank(origin, cats)
			if err != nil {
				return nil, err
			}
			conns = append(conns, RemoteConnection{
				Rank:        rank,
				NexusID:     nexus,
				CatchmentID: origin,
				Direction:   OrigCatToNex,
			})
		}
	}

	return conns, nil
}

// CheckDisjoint fails when a catchment appears in more than one partition.
func CheckDisjoint(cats []IDSet) error {
	seen := NewIDSet()
	var dups []string
	for _, set := range cats {
		for id := range set {
			if seen.Has(id) {
				dups = append(dups, id)
				continue
			}
			seen.Add(id)
		}
	}
	if len(dups) > 0 {
		slices.Sort(dups)
		dups = slices.Compact(dups)
		return fmt.Errorf("%w: %s", ErrDuplicateCatchment, strings.Join(dups, ", "))
	}
	return nil
}
