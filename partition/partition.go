package partition

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

var (
	ErrInvalidPartitionCount  = errors.New("invalid number of partitions")
	ErrCatchmentCountMismatch = errors.New("catchment count does not match network")
	ErrNoDestination          = errors.New("catchment has no destination nexus")
	ErrNotInAnyPartition      = errors.New("feature not in any partition")
	ErrDuplicateCatchment     = errors.New("catchment in more than one partition")
	ErrInvalidPartition       = errors.New("invalid partition number")
	ErrUnknownDirection       = errors.New("unknown connection direction")
	ErrMissingField           = errors.New("missing field")
	ErrUnmatchedConnection    = errors.New("unmatched remote connection")
	ErrUnknownStrategy        = errors.New("unknown partitioning strategy")
)

// Direction tells which end of a remote nexus a partition operates.
type Direction int

const (
	// OrigCatToNex means a remote upstream catchment feeds a nexus whose
	// downstream catchment is local: the partition receives.
	OrigCatToNex Direction = iota
	// NexToDestCat means a nexus feeds a remote downstream catchment: the
	// partition sends.
	NexToDestCat
)

func (d Direction) String() string {
	switch d {
	case OrigCatToNex:
		return "orig_cat-to-nex"
	case NexToDestCat:
		return "nex-to-dest_cat"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the direction seen from the other end of the connection.
func (d Direction) Opposite() Direction {
	if d == OrigCatToNex {
		return NexToDestCat
	}
	return OrigCatToNex
}

func (d Direction) MarshalText() ([]byte, error) {
	switch d {
	case OrigCatToNex, NexToDestCat:
		return []byte(d.String()), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownDirection, int(d))
}

func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "orig_cat-to-nex":
		*d = OrigCatToNex
	case "nex-to-dest_cat":
		*d = NexToDestCat
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDirection, string(text))
	}
	return nil
}

// RemoteConnection is one edge of a nexus that crosses a partition boundary.
// Rank is the partition holding CatchmentID.
type RemoteConnection struct {
	Rank        int       `json:"mpi-rank"`
	NexusID     string    `json:"nex-id"`
	CatchmentID string    `json:"cat-id"`
	Direction   Direction `json:"cat-direction"`
}

// Data is the serialized form of one partition.
type Data struct {
	ID                int                `json:"id"`
	CatchmentIDs      []string           `json:"cat-ids"`
	NexusIDs          []string           `json:"nex-ids"`
	RemoteConnections []RemoteConnection `json:"remote-connections"`
}

// IDSet is an unordered set of feature ids.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	s.Add(ids...)
	return s
}

func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s IDSet) Sorted() []string {
	ids := maps.Keys(s)
	slices.Sort(ids)
	return ids
}
