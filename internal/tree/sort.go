package tree

import (
	"sort"

	"github.com/agentic-research/docudump/internal/record"
)

// sortPolicy reorders one collection's child list in place.
type sortPolicy func(f *Forest, store *record.Store, id string)

// policies is the closed mapping from declared sort-order names to
// strategies. The source data distinguishes "type and title" from plain
// title sorting, but both collapse to title-only ordering here, matching
// the observed export behavior.
var policies = map[string]sortPolicy{
	"Title":                sortByTitle(false),
	"TitleReversed":        sortByTitle(true),
	"TypeAndTitle":         sortByTitle(false),
	"TypeAndTitleReversed": sortByTitle(true),
}

// policyFor returns the strategy for name, or the identity policy for
// unrecognized names (declaration order preserved).
func policyFor(name string) sortPolicy {
	if p, ok := policies[name]; ok {
		return p
	}
	return func(*Forest, *record.Store, string) {}
}

// sortByTitle orders children by their referenced record's title, stable.
// Children whose record is missing or untitled collate after all titled
// ones regardless of direction.
func sortByTitle(descending bool) sortPolicy {
	return func(f *Forest, store *record.Store, id string) {
		n, ok := f.nodes[id]
		if !ok {
			return
		}
		key := func(child string) (bool, string) {
			if rec, ok := store.Get(child); ok && rec.Titled() {
				return true, rec.Title
			}
			return false, ""
		}
		sort.SliceStable(n.Children, func(i, j int) bool {
			iTitled, iTitle := key(n.Children[i])
			jTitled, jTitle := key(n.Children[j])
			if iTitled != jTitled {
				return iTitled
			}
			if descending {
				return iTitle > jTitle
			}
			return iTitle < jTitle
		})
	}
}
