// Package tree reconstructs the containment forest from collection
// records and walks it deterministically.
package tree

import (
	"slices"
	"sort"

	"github.com/agentic-research/docudump/internal/record"
)

// Node is one forest entry: an ordered child list plus a weak parent
// back-reference used for ancestor-path reconstruction.
type Node struct {
	Children []string
	Parent   string // "" when the node is a root
}

// Forest is an arena of nodes keyed by id, plus the root set. It also
// interns ids to dense uint32 values so the walker's seen set can be a
// roaring bitmap.
type Forest struct {
	nodes map[string]*Node
	roots map[string]struct{}

	intID map[string]uint32
	ids   []string // reverse of intID
}

func New() *Forest {
	return &Forest{
		nodes: make(map[string]*Node),
		roots: make(map[string]struct{}),
		intID: make(map[string]uint32),
	}
}

// Node returns the forest entry for id, if present.
func (f *Forest) Node(id string) (*Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// IDs returns all node ids in interning order.
func (f *Forest) IDs() []string {
	return f.ids
}

// Roots returns the ids with no parent, sorted for deterministic walks.
func (f *Forest) Roots() []string {
	out := make([]string, 0, len(f.roots))
	for id := range f.roots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddNode registers id with the given declared children. A node with no
// parent assigned yet joins the root set. Children may reference ids not
// (yet, or ever) present in the forest.
func (f *Forest) AddNode(id string, children []string) {
	n := f.node(id)
	if n.Parent == "" {
		f.roots[id] = struct{}{}
	}
	f.addChildren(n, children)
}

// SetParent makes parent the single parent of child, overwriting any
// earlier assignment and removing child from the root set. Insertion into
// the parent's child list is idempotent.
func (f *Forest) SetParent(parent, child string) {
	p := f.node(parent)
	f.addChildren(p, []string{child})
	c := f.node(child)
	c.Parent = parent
	delete(f.roots, child)
}

func (f *Forest) node(id string) *Node {
	if n, ok := f.nodes[id]; ok {
		return n
	}
	n := &Node{}
	f.nodes[id] = n
	f.intern(id)
	return n
}

func (f *Forest) addChildren(n *Node, children []string) {
	for _, c := range children {
		if !slices.Contains(n.Children, c) {
			n.Children = append(n.Children, c)
		}
	}
}

// intern assigns a stable dense id used by bitmap indexes.
func (f *Forest) intern(id string) uint32 {
	if v, ok := f.intID[id]; ok {
		return v
	}
	v := uint32(len(f.ids))
	f.intID[id] = v
	f.ids = append(f.ids, id)
	return v
}

func (f *Forest) interned(id string) (uint32, bool) {
	v, ok := f.intID[id]
	return v, ok
}

// Build assembles the forest from the full record model: every collection
// registers its declared children, collection-class children get their
// parent back-reference set (a second pass over each child list, since
// declarations arrive before all nodes exist), and finally each
// collection's sort policy reorders its child list in place.
func Build(store *record.Store) *Forest {
	f := New()
	for _, id := range store.IDs() {
		rec, _ := store.Get(id)
		if rec.Kind != record.KindCollection {
			continue
		}
		f.AddNode(id, rec.Children)
		for _, child := range rec.Children {
			if record.IsCollectionID(child) {
				f.SetParent(id, child)
			}
		}
	}
	for _, id := range store.IDs() {
		rec, _ := store.Get(id)
		if rec.Kind == record.KindCollection && len(rec.Children) > 0 {
			policyFor(rec.SortOrder)(f, store, id)
		}
	}
	return f
}
