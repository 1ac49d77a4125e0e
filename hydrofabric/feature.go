// Package hydrofabric loads catchment and nexus features and links them into
// the upstream/downstream relations a network is built from.
package hydrofabric

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
)

var (
	ErrDuplicateFeature = errors.New("duplicate feature")
	ErrMissingID        = errors.New("feature without id")
	ErrLayerNotFound    = errors.New("layer not found")
	ErrUnsupportedInput = errors.New("unsupported hydrofabric input")
)

// Feature is a single catchment or nexus.
type Feature struct {
	id           string
	properties   map[string]any
	destinations []string
	origins      []string
}

func NewFeature(id string, properties map[string]any) *Feature {
	if properties == nil {
		properties = map[string]any{}
	}
	return &Feature{id: id, properties: properties}
}

func (f *Feature) ID() string {
	return f.id
}

// Property returns the property as a string. Numbers are formatted without
// trailing zeros.
func (f *Feature) Property(key string) (string, bool) {
	v, ok := f.properties[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	default:
		return fmt.Sprint(t), true
	}
}

// Properties returns the raw property map.
func (f *Feature) Properties() map[string]any {
	return f.properties
}

// DestinationIDs returns the ids of the downstream features.
func (f *Feature) DestinationIDs() []string {
	return f.destinations
}

// OriginationIDs returns the ids of the upstream features.
func (f *Feature) OriginationIDs() []string {
	return f.origins
}

// IsCatchment reports whether the feature id has the catchment prefix.
func (f *Feature) IsCatchment() bool {
	return strings.HasPrefix(f.id, "cat")
}

// IsNexus reports whether the feature id has the nexus prefix.
func (f *Feature) IsNexus() bool {
	return strings.HasPrefix(f.id, "nex")
}

func (f *Feature) linkTo(dest *Feature) {
	if slices.Contains(f.destinations, dest.id) {
		return
	}
	f.destinations = append(f.destinations, dest.id)
	dest.origins = append(dest.origins, f.id)
}

// Collection is an ordered set of features indexed by id.
//
// Collection is not safe for concurrent use.
type Collection struct {
	features []*Feature
	index    map[string]int
	aliases  map[string]string
	log      logr.Logger
}

type Option func(*Collection)

func WithLogger(log logr.Logger) Option {
	return func(c *Collection) {
		c.log = log
	}
}

func NewCollection(opts ...Option) *Collection {
	c := &Collection{
		index:   make(map[string]int),
		aliases: make(map[string]string),
		log:     logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add appends a feature. Ids must be unique and non-empty.
func (c *Collection) Add(f *Feature) error {
	if f.id == "" {
		return ErrMissingID
	}
	if _, ok := c.index[f.id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFeature, f.id)
	}
	c.index[f.id] = len(c.features)
	c.features = append(c.features, f)
	return nil
}

// Get returns the feature with the given id or alias.
func (c *Collection) Get(id string) (*Feature, bool) {
	if i, ok := c.index[id]; ok {
		return c.features[i], true
	}
	if primary, ok := c.aliases[id]; ok {
		return c.features[c.index[primary]], true
	}
	return nil, false
}

func (c *Collection) Len() int {
	return len(c.features)
}

// Features returns the features in insertion order.
func (c *Collection) Features() []*Feature {
	return slices.Clone(c.features)
}

// IDs returns the feature ids in insertion order.
func (c *Collection) IDs() []string {
	ids := make([]string, len(c.features))
	for i, f := range c.features {
		ids[i] = f.id
	}
	return ids
}

// Merge adds every feature of other.
func (c *Collection) Merge(other *Collection) error {
	for _, f := range other.features {
		if err := c.Add(f); err != nil {
			return err
		}
	}
	for alias, primary := range other.aliases {
		c.aliases[alias] = primary
	}
	return nil
}

// Subset returns a new collection with the features whose id or alias is in
// ids, in the order of ids. Unknown ids are skipped.
func (c *Collection) Subset(ids []string) *Collection {
	sub := NewCollection(WithLogger(c.log))
	for _, id := range ids {
		f, ok := c.Get(id)
		if !ok {
			c.log.V(1).Info("Subset id not in collection", "id", id)
			continue
		}
		if _, dup := sub.index[f.id]; dup {
			continue
		}
		_ = sub.Add(f)
	}
	return sub
}

// UpdateIDs registers the value of the key property of every feature as an
// alternate id for that feature.
func (c *Collection) UpdateIDs(key string) {
	for _, f := range c.features {
		alt, ok := f.Property(key)
		if !ok || alt == "" || alt == f.id {
			continue
		}
		c.aliases[alt] = f.id
	}
}

// LinkFromProperty links every feature to the feature named by its linkKey
// property. Targets outside the collection are skipped. Returns the number of
// links made.
func (c *Collection) LinkFromProperty(linkKey string) int {
	linked := 0
	for _, f := range c.features {
		target, ok := f.Property(linkKey)
		if !ok || target == "" {
			continue
		}
		dest, ok := c.Get(target)
		if !ok {
			c.log.V(1).Info("Dangling link", "feature", f.id, "key", linkKey, "target", target)
			continue
		}
		f.linkTo(dest)
		linked++
	}
	return linked
}

// SplitIDs parses a comma separated id list. Empty input yields nil.
func SplitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
