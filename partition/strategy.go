package partition

import (
	"fmt"

	"github.com/NOAA-OWP/ngen-sub002/network"
)

// Strategy names a partitioning algorithm.
type Strategy string

const (
	// StrategyDFS groups contiguous catchments along the transposed
	// depth-first preorder and records remote connections.
	StrategyDFS Strategy = "dfs"
	// StrategyRoundRobin deals catchments across partitions in turn. It
	// ignores connectivity and records no remote connections.
	StrategyRoundRobin Strategy = "round-robin"
	// StrategyOne puts everything into a single partition.
	StrategyOne Strategy = "one"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyDFS, StrategyRoundRobin, StrategyOne:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// One builds a single partition holding every catchment and the nexus named
// by its linkKey property.
func One[F network.PropertyFeature](catchments []F, linkKey string) Data {
	cats, nexs := NewIDSet(), NewIDSet()
	for _, f := range catchments {
		cats.Add(f.ID())
		if nex, ok := f.Property(linkKey); ok && nex != "" {
			nexs.Add(nex)
		}
	}
	return Data{
		ID:                0,
		CatchmentIDs:      cats.Sorted(),
		NexusIDs:          nexs.Sorted(),
		RemoteConnections: []RemoteConnection{},
	}
}

// RoundRobin assigns catchment i to partition i mod numPartitions along with
// the nexus named by its linkKey property. When there are fewer catchments
// than partitions, one partition per catchment is returned.
func RoundRobin[F network.PropertyFeature](catchments []F, linkKey string, numPartitions int) ([]Data, error) {
	if numPartitions <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPartitionCount, numPartitions)
	}
	numPartitions = min(numPartitions, len(catchments))

	cats := make([]IDSet, numPartitions)
	nexs := make([]IDSet, numPartitions)
	for i := range cats {
		cats[i], nexs[i] = NewIDSet(), NewIDSet()
	}

	for i, f := range catchments {
		p := i % numPartitions
		cats[p].Add(f.ID())
		if nex, ok := f.Property(linkKey); ok && nex != "" {
			nexs[p].Add(nex)
		}
	}

	if err := CheckDisjoint(cats); err != nil {
		return nil, err
	}

	parts := make([]Data, numPartitions)
	for i := range parts {
		parts[i] = Data{
			ID:                i,
			CatchmentIDs:      cats[i].Sorted(),
			NexusIDs:          nexs[i].Sorted(),
			RemoteConnections: []RemoteConnection{},
		}
	}
	return parts, nil
}
