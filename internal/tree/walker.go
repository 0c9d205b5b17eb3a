package tree

import (
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/docudump/internal/record"
)

// Traversal disciplines.
const (
	DepthFirst   = "dfs"
	BreadthFirst = "bfs"
)

// Item is one traversal result: a node id plus the ids of its ancestor
// collections, outermost first.
type Item struct {
	ID        string
	Ancestors []string
}

// WalkOptions configures a Walker.
type WalkOptions struct {
	// Order is DepthFirst or BreadthFirst; anything else walks depth-first.
	Order string

	// SkipLevel bounds descent: a node whose ancestor count reaches the
	// limit is yielded but not expanded. Zero means unlimited.
	SkipLevel int
}

// Walker produces a lazy, deterministic traversal over a forest. The seen
// bitmap guarantees each collection is expanded at most once per Walker,
// which also makes traversal terminate on cyclic child references.
// A Walker is single-use and not safe for concurrent walks.
type Walker struct {
	forest *Forest
	store  *record.Store
	opts   WalkOptions
	seen   *roaring.Bitmap
}

func NewWalker(f *Forest, store *record.Store, opts WalkOptions) *Walker {
	return &Walker{
		forest: f,
		store:  store,
		opts:   opts,
		seen:   roaring.New(),
	}
}

// Items returns the traversal sequence. With an empty root, traversal
// starts from every forest root; otherwise it starts at the given
// sub-collection with an empty ancestor context.
func (w *Walker) Items(root string) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		roots := w.forest.Roots()
		if root != "" {
			roots = []string{root}
		}
		if w.opts.Order == BreadthFirst {
			w.bfs(roots, yield)
			return
		}
		for _, id := range roots {
			if !w.dfs(id, nil, yield) {
				return
			}
		}
	}
}

// dfs is recursive pre-order: yield the node, then descend into
// collection-kind children in list order, yielding the rest as leaves.
func (w *Walker) dfs(id string, ancestors []string, yield func(Item) bool) bool {
	w.markSeen(id)
	if !yield(Item{ID: id, Ancestors: ancestors}) {
		return false
	}
	if w.atBoundary(len(ancestors)) {
		return true
	}
	node, ok := w.forest.Node(id)
	if !ok {
		return true
	}
	next := append(slices.Clone(ancestors), id)
	for _, child := range node.Children {
		if w.isCollection(child) {
			if slices.Contains(next, child) || w.seenID(child) {
				continue
			}
			if !w.dfs(child, next, yield) {
				return false
			}
		} else if !yield(Item{ID: child, Ancestors: next}) {
			return false
		}
	}
	return true
}

// bfs is level-order with an explicit queue. All of a node's children are
// yielded when the node is visited, so sibling leaves become visible
// before any sibling sub-collection is expanded.
func (w *Walker) bfs(roots []string, yield func(Item) bool) {
	type entry struct {
		id        string
		ancestors []string
	}
	var queue []entry
	for _, id := range roots {
		if w.seenID(id) {
			continue
		}
		w.markSeen(id)
		if !yield(Item{ID: id}) {
			return
		}
		if !w.atBoundary(0) {
			queue = append(queue, entry{id: id})
		}
	}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		node, ok := w.forest.Node(e.id)
		if !ok {
			continue
		}
		ancestors := append(slices.Clone(e.ancestors), e.id)
		for _, child := range node.Children {
			if w.isCollection(child) {
				if slices.Contains(ancestors, child) || w.seenID(child) {
					continue
				}
				w.markSeen(child)
				if !yield(Item{ID: child, Ancestors: ancestors}) {
					return
				}
				if !w.atBoundary(len(ancestors)) {
					queue = append(queue, entry{id: child, ancestors: ancestors})
				}
			} else if !yield(Item{ID: child, Ancestors: ancestors}) {
				return
			}
		}
	}
}

// atBoundary reports whether a node with the given ancestor count must
// not be expanded.
func (w *Walker) atBoundary(level int) bool {
	return w.opts.SkipLevel > 0 && level >= w.opts.SkipLevel
}

// isCollection classifies a child by its record's kind; unresolved ids
// are treated as plain document leaves.
func (w *Walker) isCollection(id string) bool {
	rec, ok := w.store.Get(id)
	return ok && rec.Kind == record.KindCollection
}

func (w *Walker) markSeen(id string) {
	w.seen.Add(w.forest.intern(id))
}

func (w *Walker) seenID(id string) bool {
	v, ok := w.forest.interned(id)
	return ok && w.seen.Contains(v)
}
