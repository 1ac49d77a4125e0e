package network

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// SortOrder selects the traversal used by Filter.
type SortOrder int

const (
	// TopologicalSort lists upstream features before downstream ones.
	TopologicalSort SortOrder = iota
	// TransposedDepthFirstPreorder is the depth-first discovery order of the
	// reversed graph, rooted at the tailwaters.
	TransposedDepthFirstPreorder
)

func (o SortOrder) String() string {
	switch o {
	case TopologicalSort:
		return "topological"
	case TransposedDepthFirstPreorder:
		return "transposed-dfs-preorder"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// ParseSortOrder is the inverse of SortOrder.String.
func ParseSortOrder(s string) (SortOrder, error) {
	switch s {
	case "topological":
		return TopologicalSort, nil
	case "transposed-dfs-preorder":
		return TransposedDepthFirstPreorder, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSortOrder, s)
}

// Network is an immutable DAG of hydrofabric features.
type Network struct {
	ids   []string
	index map[string]int
	out   [][]int
	in    [][]int

	headwaters []int
	tailwaters []int
	topo       []int

	dfrOnce sync.Once
	dfr     []int
}

// Size returns the number of vertices.
func (n *Network) Size() int {
	return len(n.ids)
}

// ID returns the feature id of descriptor v.
func (n *Network) ID(v int) (string, error) {
	if v < 0 || v >= len(n.ids) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidDescriptor, v, len(n.ids))
	}
	return n.ids[v], nil
}

// Descriptor returns the descriptor of id.
func (n *Network) Descriptor(id string) (int, bool) {
	v, ok := n.index[id]
	return v, ok
}

// Contains reports whether id is a vertex.
func (n *Network) Contains(id string) bool {
	_, ok := n.index[id]
	return ok
}

// OriginationIDs returns the ids directly upstream of id in edge insertion
// order.
func (n *Network) OriginationIDs(id string) ([]string, error) {
	v, ok := n.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, id)
	}
	return n.idsOf(n.in[v]), nil
}

// DestinationIDs returns the ids directly downstream of id in edge insertion
// order.
func (n *Network) DestinationIDs(id string) ([]string, error) {
	v, ok := n.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, id)
	}
	return n.idsOf(n.out[v]), nil
}

// Headwaters returns the ids without upstream features.
func (n *Network) Headwaters() []string {
	return n.idsOf(n.headwaters)
}

// Tailwaters returns the ids without downstream features.
func (n *Network) Tailwaters() []string {
	return n.idsOf(n.tailwaters)
}

// TopologicalOrder returns every id, upstream features first.
func (n *Network) TopologicalOrder() []string {
	return n.idsOf(n.topo)
}

// Filter returns the ids starting with prefix in the given order.
func (n *Network) Filter(prefix string, order SortOrder) []string {
	it := n.FilterIter(prefix, order)
	var ids []string
	for it.Next() {
		ids = append(ids, it.ID())
	}
	return ids
}

// FilterIter returns a restartable iterator over the ids starting with prefix.
// An unknown order yields an empty iterator.
func (n *Network) FilterIter(prefix string, order SortOrder) *Iterator {
	var seq []int
	switch order {
	case TopologicalSort:
		seq = n.topo
	case TransposedDepthFirstPreorder:
		seq = n.transposedPreorder()
	}
	return &Iterator{n: n, seq: seq, prefix: prefix, pos: -1}
}

func (n *Network) idsOf(vs []int) []string {
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = n.ids[v]
	}
	return ids
}

// topologicalSort runs Kahn's algorithm. Ties are broken by descriptor so the
// order follows feature insertion order.
func (n *Network) topologicalSort() ([]int, error) {
	indegree := make([]int, len(n.ids))
	for v := range n.ids {
		indegree[v] = len(n.in[v])
	}

	queue := make([]int, 0, len(n.ids))
	queue = append(queue, n.headwaters...)

	order := make([]int, 0, len(n.ids))
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for _, w := range n.out[v] {
			indegree[w]--
			if indegree[w] == 0 {
				queue = append(queue, w)
			}
		}
	}

	if len(order) != len(n.ids) {
		var stuck []string
		for v, d := range indegree {
			if d > 0 {
				stuck = append(stuck, n.ids[v])
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("%w: involving %s", ErrCycleDetected, strings.Join(stuck, ", "))
	}

	return order, nil
}

// transposedPreorder walks the reversed graph depth first from each
// tailwater, recording vertices when first discovered. Upstream neighbours
// are visited in edge insertion order.
func (n *Network) transposedPreorder() []int {
	n.dfrOnce.Do(func() {
		visited := make([]bool, len(n.ids))
		order := make([]int, 0, len(n.ids))
		var stack []int

		visit := func(root int) {
			if visited[root] {
				return
			}
			stack = append(stack[:0], root)
			for len(stack) > 0 {
				v := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if visited[v] {
					continue
				}
				visited[v] = true
				order = append(order, v)
				for i := len(n.in[v]) - 1; i >= 0; i-- {
					if u := n.in[v][i]; !visited[u] {
						stack = append(stack, u)
					}
				}
			}
		}

		for _, v := range n.tailwaters {
			visit(v)
		}
		// Anything not reachable from a tailwater.
		for v := range n.ids {
			visit(v)
		}
		n.dfr = order
	})
	return n.dfr
}

// Iterator walks a filtered view of a Network.
type Iterator struct {
	n      *Network
	seq    []int
	prefix string
	pos    int
}

// Next advances to the next matching id.
func (it *Iterator) Next() bool {
	for it.pos+1 < len(it.seq) {
		it.pos++
		if strings.HasPrefix(it.n.ids[it.seq[it.pos]], it.prefix) {
			return true
		}
	}
	it.pos = len(it.seq)
	return false
}

// ID returns the current id.
func (it *Iterator) ID() string {
	return it.n.ids[it.seq[it.pos]]
}

// Descriptor returns the current descriptor.
func (it *Iterator) Descriptor() int {
	return it.seq[it.pos]
}

// Reset rewinds the iterator.
func (it *Iterator) Reset() {
	it.pos = -1
}
