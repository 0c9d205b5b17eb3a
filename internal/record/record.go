// Package record defines the typed model for entries extracted from a
// repository export: documents, collections, URL shortcuts and users,
// keyed by their stable handle.
package record

import (
	"strings"
	"time"
)

// Kind discriminates the record variants. The zero value is invalid.
type Kind string

const (
	KindDocument   Kind = "Document"
	KindCollection Kind = "Collection"
	KindURL        Kind = "URL"
	KindUser       Kind = "User"
)

// collectionPrefix is the structural prefix shared by all collection-class
// handles. Traversal relies on it to classify child references without a
// record lookup.
const collectionPrefix = "Collection"

// IsCollectionID reports whether id belongs to the collection handle class.
func IsCollectionID(id string) bool {
	return strings.HasPrefix(id, collectionPrefix)
}

// Record is the universal parsed entry. Variant-specific fields are only
// meaningful for the matching Kind; the rest stay at their zero values.
type Record struct {
	ID      string
	Kind    Kind
	Title   string
	Owner   string // User record id, "" when no owner link was present
	Private bool

	// VisibilityKnown marks Private as derived from an ACL list rather
	// than defaulted. Merging uses it to avoid clobbering a known flag
	// with a defaulted one.
	VisibilityKnown bool

	// Detailed marks a record produced by the expensive per-item pass,
	// with the full field set resolved.
	Detailed bool

	// Ignored marks a recognized but skipped container type (boards,
	// wikis, calendars). Only ID and Kind are populated.
	Ignored bool

	// Collection fields.
	SortOrder string
	Children  []string

	// Document fields.
	Size             int64
	ContentFilename  string // on-disk name assigned by the export
	OriginalFileName string // used only to recover a file extension

	// URL fields.
	URL string

	// User fields.
	Username string

	// CreateDate is zero when the export carried none.
	CreateDate time.Time
}

// Titled reports whether the record carries a resolved title. Collections
// always do; documents and URL shortcuts only after the detailed pass.
// Sort policies collate untitled records last.
func (r *Record) Titled() bool {
	switch r.Kind {
	case KindCollection:
		return true
	case KindDocument, KindURL:
		return r.Detailed
	default:
		return false
	}
}

// Store maps record ids to records, preserving first-insertion order so
// that downstream passes see records in export order.
type Store struct {
	recs  map[string]*Record
	order []string
}

func NewStore() *Store {
	return &Store{recs: make(map[string]*Record)}
}

// Put inserts or replaces the record keyed by r.ID. A replacement keeps
// the owner and visibility already known when the incoming record does
// not supply them; everything else is taken from the incoming record.
func (s *Store) Put(r *Record) {
	old, exists := s.recs[r.ID]
	if exists {
		if r.Owner == "" && old.Owner != "" {
			r.Owner = old.Owner
		}
		if !r.VisibilityKnown && old.VisibilityKnown {
			r.Private = old.Private
			r.VisibilityKnown = true
		}
	} else {
		s.order = append(s.order, r.ID)
	}
	s.recs[r.ID] = r
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (*Record, bool) {
	r, ok := s.recs[id]
	return r, ok
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.recs)
}

// IDs returns all record ids in first-insertion order.
func (s *Store) IDs() []string {
	return s.order
}

// OwnerUsername resolves a record's owner link to a username, defaulting
// to "root" when the owner is absent or does not resolve to a User record.
func (s *Store) OwnerUsername(r *Record) string {
	if r.Owner != "" {
		if u, ok := s.recs[r.Owner]; ok && u.Username != "" {
			return u.Username
		}
	}
	return "root"
}
