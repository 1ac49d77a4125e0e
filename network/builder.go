package network

import (
	"fmt"
	"slices"

	"github.com/go-logr/logr"
)

// Feature is a hydrofabric feature that knows its downstream features.
type Feature interface {
	ID() string
	DestinationIDs() []string
}

// PropertyFeature is a hydrofabric feature that names its downstream feature
// in a string property.
type PropertyFeature interface {
	ID() string
	Property(key string) (string, bool)
}

// Builder collects vertices and edges for a Network.
//
// Builder is not safe for concurrent use.
type Builder struct {
	ids   []string
	index map[string]int
	out   [][]int
	in    [][]int
	err   error
	log   logr.Logger
}

type Option func(*Builder)

// WithLogger sets the logger used during construction.
func WithLogger(log logr.Logger) Option {
	return func(b *Builder) {
		b.log = log
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		index: make(map[string]int),
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddVertex returns the descriptor of id, adding a vertex when id is new.
func (b *Builder) AddVertex(id string) int {
	if id == "" {
		if b.err == nil {
			b.err = fmt.Errorf("%w: empty id", ErrInvalidID)
		}
		return -1
	}
	if v, ok := b.index[id]; ok {
		return v
	}
	v := len(b.ids)
	b.ids = append(b.ids, id)
	b.index[id] = v
	b.out = append(b.out, nil)
	b.in = append(b.in, nil)
	return v
}

// AddEdge adds an upstream to downstream edge, adding missing vertices.
// Parallel edges are stored once.
func (b *Builder) AddEdge(upstream, downstream string) {
	from := b.AddVertex(upstream)
	to := b.AddVertex(downstream)
	if from < 0 || to < 0 {
		return
	}
	if slices.Contains(b.out[from], to) {
		return
	}
	b.out[from] = append(b.out[from], to)
	b.in[to] = append(b.in[to], from)
}

// Build validates the graph and returns the immutable Network.
func (b *Builder) Build() (*Network, error) {
	if b.err != nil {
		return nil, b.err
	}

	n := &Network{
		ids:   b.ids,
		index: b.index,
		out:   b.out,
		in:    b.in,
	}

	for v := range n.ids {
		if len(n.in[v]) == 0 {
			n.headwaters = append(n.headwaters, v)
		}
		if len(n.out[v]) == 0 {
			n.tailwaters = append(n.tailwaters, v)
		}
	}

	topo, err := n.topologicalSort()
	if err != nil {
		return nil, err
	}
	n.topo = topo

	b.log.V(1).Info("Built network",
		"vertices", len(n.ids),
		"headwaters", len(n.headwaters),
		"tailwaters", len(n.tailwaters))

	// The builder must not mutate the network from here on.
	*b = Builder{index: make(map[string]int), log: b.log}

	return n, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Network {
	n, err := b.Build()
	if err != nil {
		panic(err)
	}
	return n
}

// New builds a Network from features with known downstream ids. Every
// feature becomes a vertex, as does every id it points to.
func New[F Feature](features []F, opts ...Option) (*Network, error) {
	b := NewBuilder(opts...)
	for _, f := range features {
		b.AddVertex(f.ID())
		for _, dest := range f.DestinationIDs() {
			b.AddEdge(f.ID(), dest)
		}
	}
	return b.Build()
}

// NewFromLinkKey builds a Network from features that name their downstream
// feature in the linkKey property. Features without the property are
// included as vertices without downstream edges.
func NewFromLinkKey[F PropertyFeature](features []F, linkKey string, opts ...Option) (*Network, error) {
	b := NewBuilder(opts...)
	for _, f := range features {
		b.AddVertex(f.ID())
		if dest, ok := f.Property(linkKey); ok && dest != "" {
			b.AddEdge(f.ID(), dest)
		}
	}
	return b.Build()
}

// MustNew is like New but panics on error.
func MustNew[F Feature](features []F, opts ...Option) *Network {
	n, err := New(features, opts...)
	if err != nil {
		panic(err)
	}
	return n
}
