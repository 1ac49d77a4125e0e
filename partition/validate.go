package partition

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"golang.org/x/exp/maps"
)

// Validate checks a set of partitions for consistency and returns every
// problem found:
//   - a catchment listed in more than one partition
//   - a remote connection naming a partition that does not exist
//   - a send without the matching receive in the target partition
func Validate(parts []Data) error {
	var err error

	byID := make(map[int]Data, len(parts))
	owner := make(map[string]int)
	for _, p := range parts {
		if _, ok := byID[p.ID]; ok {
			err = multierr.Append(err, fmt.Errorf("%w: duplicate partition id %d", ErrInvalidPartition, p.ID))
		}
		byID[p.ID] = p
		for _, cat := range p.CatchmentIDs {
			if other, ok := owner[cat]; ok {
				err = multierr.Append(err, fmt.Errorf("%w: %s in partitions %d and %d",
					ErrDuplicateCatchment, cat, other, p.ID))
				continue
			}
			owner[cat] = p.ID
		}
	}

	for _, p := range parts {
		for _, rc := range p.RemoteConnections {
			target, ok := byID[rc.Rank]
			if !ok {
				err = multierr.Append(err, fmt.Errorf("%w: partition %d connects to missing partition %d via %s",
					ErrInvalidPartition, p.ID, rc.Rank, rc.NexusID))
				continue
			}
			if rc.Direction != NexToDestCat {
				continue
			}
			if !hasCounterpart(target, p.ID, rc) {
				err = multierr.Append(err, fmt.Errorf("%w: partition %d sends %s to %s in partition %d, which does not receive it",
					ErrUnmatchedConnection, p.ID, rc.NexusID, rc.CatchmentID, rc.Rank))
			}
		}
	}

	return err
}

func hasCounterpart(target Data, source int, send RemoteConnection) bool {
	for _, rc := range target.RemoteConnections {
		if rc.Rank == source && rc.NexusID == send.NexusID && rc.Direction == send.Direction.Opposite() {
			return true
		}
	}
	return false
}

// SharedNexuses returns the nexuses listed by more than one partition, sorted.
func SharedNexuses(parts []Data) []string {
	count := make(map[string]int)
	for _, p := range parts {
		for _, nex := range NewIDSet(p.NexusIDs...).Sorted() {
			count[nex]++
		}
	}
	shared := make(map[string]struct{})
	for nex, n := range count {
		if n > 1 {
			shared[nex] = struct{}{}
		}
	}
	ids := maps.Keys(shared)
	slices.Sort(ids)
	return ids
}
