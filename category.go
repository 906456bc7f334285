package tev

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// MaxSessions is the maximum number of concurrently started tracing sessions.
// Each started session is assigned a bit position in every category's active
// state bitmap, so this bound is fixed by the bitmap width.
const MaxSessions = 8

// Category is a static trace category descriptor. Categories are registered
// once, at construction of a [Registry], and are immutable thereafter.
//
// A name containing commas, e.g. "cat1,cat2", declares a group category: an
// event tagged with the group belongs to every member, and the group is
// enabled whenever any member is enabled.
type Category struct {
	Name        string   `json:"name"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

// IsGroup reports whether the category is a group of multiple members.
func (c Category) IsGroup() bool {
	return strings.ContainsRune(c.Name, ',')
}

// GroupMembers returns the member names of a group category, or a single
// element containing the category's own name if it is not a group.
func (c Category) GroupMembers() []string {
	if !c.IsGroup() {
		return []string{c.Name}
	}
	return strings.Split(c.Name, ",")
}

// HasTag reports whether the category carries the given tag.
func (c Category) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// DynamicCategory identifies a category by a runtime string rather than a
// static registry index. Dynamic categories are never present in the static
// table; their enablement is resolved lazily, per sequence, against the
// configs of the active sessions.
type DynamicCategory struct {
	Name string
}

// Category returns the dynamic category viewed as a category descriptor.
func (d DynamicCategory) Category() Category {
	return Category{Name: d.Name}
}

//
//
//

// Registry is the static table of trace categories for one source. The table
// shape is immutable after construction; the only mutable state is the
// per-category active session bitmap, which is written exclusively by the
// session controller and read by every trace point.
type Registry struct {
	categories []Category
	indices    map[string]int
	states     []atomic.Uint32
	bound      atomic.Bool // claimed by a Source
}

// NewRegistry constructs a registry from the given static category table.
// Category names must be non-empty and unique.
func NewRegistry(categories ...Category) (*Registry, error) {
	r := &Registry{
		categories: categories,
		indices:    make(map[string]int, len(categories)),
		states:     make([]atomic.Uint32, len(categories)),
	}
	for i, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category %d: empty name", i)
		}
		if prev, ok := r.indices[c.Name]; ok {
			return nil, fmt.Errorf("category %q: duplicate of index %d", c.Name, prev)
		}
		r.indices[c.Name] = i
	}
	return r, nil
}

// Len returns the number of static categories.
func (r *Registry) Len() int {
	return len(r.categories)
}

// CategoryAt returns the category descriptor at the given index. It is used
// only on the slow path; an out-of-range index is a caller bug and panics.
func (r *Registry) CategoryAt(index int) Category {
	return r.categories[index]
}

// StateOf returns the active session bitmap for the category at the given
// index. It is called on every trace point and performs no locking.
func (r *Registry) StateOf(index int) *atomic.Uint32 {
	return &r.states[index]
}

// IndexOf resolves a static category name to its index. A name unknown to the
// registry is, by definition, dynamic.
func (r *Registry) IndexOf(name string) (int, bool) {
	i, ok := r.indices[name]
	return i, ok
}
