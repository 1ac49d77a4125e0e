package partition

import (
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

// Index looks up partitions read from a partition file.
type Index struct {
	parts      map[int]Data
	catchments map[string]int
}

// NewIndex indexes parts by id and by catchment. Partition ids must be
// unique.
func NewIndex(parts []Data) (*Index, error) {
	x := &Index{
		parts:      make(map[int]Data, len(parts)),
		catchments: make(map[string]int),
	}
	for _, p := range parts {
		if _, ok := x.parts[p.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate partition id %d", ErrInvalidPartition, p.ID)
		}
		x.parts[p.ID] = p
		for _, cat := range p.CatchmentIDs {
			if other, ok := x.catchments[cat]; ok {
				return nil, fmt.Errorf("%w: %s in partitions %d and %d", ErrDuplicateCatchment, cat, other, p.ID)
			}
			x.catchments[cat] = p.ID
		}
	}
	return x, nil
}

// Partition returns the partition with the given id.
func (x *Index) Partition(id int) (Data, error) {
	p, ok := x.parts[id]
	if !ok {
		return Data{}, fmt.Errorf("%w: %d", ErrInvalidPartition, id)
	}
	return p, nil
}

// PartitionOf returns the id of the partition holding catchmentID.
func (x *Index) PartitionOf(catchmentID string) (int, error) {
	id, ok := x.catchments[catchmentID]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrNotInAnyPartition, catchmentID)
	}
	return id, nil
}

func (x *Index) Len() int {
	return len(x.parts)
}

// IDs returns the partition ids in ascending order.
func (x *Index) IDs() []int {
	ids := maps.Keys(x.parts)
	slices.Sort(ids)
	return ids
}
