// Package network builds the directed acyclic graph of a hydrofabric.
//
// # Overview
//
// A hydrofabric is a collection of catchments ("cat-*") and nexuses ("nex-*").
// Water flows from a catchment into the nexus it drains to, and from a nexus
// into the catchments downstream of it. Network holds that graph in a dense
// arena: every unique feature id gets an integer descriptor in
// [0, Size()), adjacency is kept as slices of descriptors and an id index
// maps feature ids back to descriptors.
//
// A Network is built once and is immutable afterwards. Construction computes
// the headwaters (no upstream features), the tailwaters (no downstream
// features) and a topological order, and fails with ErrCycleDetected when the
// input is not acyclic.
//
// # Building
//
// From features that already know their downstream ids:
//
//	n, err := network.New(features)
//
// From features that name their downstream feature in a property:
//
//	n, err := network.NewFromLinkKey(features, "toid")
//
// Or edge by edge:
//
//	b := network.NewBuilder()
//	b.AddEdge("cat-0", "nex-0")
//	b.AddEdge("cat-1", "nex-0")
//	n, err := b.Build()
//
// Repeated ids reuse their vertex and repeated edges are stored once.
//
// # Traversal
//
// TopologicalOrder lists every feature so that each one appears before all of
// the features downstream of it. Filter selects the features whose id starts
// with a prefix, either in topological order or in transposed depth-first
// preorder. The transposed preorder starts at the tailwaters and walks
// upstream, so contiguous runs of it form spatially compact groups. It is
// computed on first use and cached.
//
//	for _, id := range n.Filter("cat", network.TransposedDepthFirstPreorder) {
//	    ...
//	}
//
// # Concurrency
//
// A built Network is safe for concurrent use.
package network
