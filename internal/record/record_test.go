package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCollectionID(t *testing.T) {
	assert.True(t, IsCollectionID("Collection-42"))
	assert.False(t, IsCollectionID("Document-42"))
	assert.False(t, IsCollectionID("URL-7"))
}

func TestStore_PutPreservesInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Put(&Record{ID: "Document-2", Kind: KindDocument})
	s.Put(&Record{ID: "Document-1", Kind: KindDocument})
	s.Put(&Record{ID: "Document-2", Kind: KindDocument}) // replacement, not re-append

	assert.Equal(t, []string{"Document-2", "Document-1"}, s.IDs())
	assert.Equal(t, 2, s.Len())
}

func TestStore_DetailReplacementKeepsOwnerAndVisibility(t *testing.T) {
	s := NewStore()
	s.Put(&Record{
		ID:              "Document-1",
		Kind:            KindDocument,
		Owner:           "User-9",
		Private:         true,
		VisibilityKnown: true,
	})

	// Detailed pass that only supplied filename/size/date.
	s.Put(&Record{
		ID:               "Document-1",
		Kind:             KindDocument,
		Detailed:         true,
		Size:             42,
		OriginalFileName: "report.pdf",
	})

	r, ok := s.Get("Document-1")
	if !ok {
		t.Fatal("Document-1 missing after replacement")
	}
	assert.Equal(t, "User-9", r.Owner)
	assert.True(t, r.Private)
	assert.True(t, r.VisibilityKnown)
	assert.Equal(t, int64(42), r.Size)
	assert.True(t, r.Detailed)
}

func TestStore_DetailReplacementWithOwnVisibilityWins(t *testing.T) {
	s := NewStore()
	s.Put(&Record{ID: "Document-1", Kind: KindDocument, Private: true, VisibilityKnown: true})
	s.Put(&Record{ID: "Document-1", Kind: KindDocument, Private: false, VisibilityKnown: true, Detailed: true})

	r, _ := s.Get("Document-1")
	assert.False(t, r.Private)
}

func TestStore_OwnerUsername(t *testing.T) {
	s := NewStore()
	s.Put(&Record{ID: "User-3", Kind: KindUser, Username: "alice"})
	s.Put(&Record{ID: "Document-1", Kind: KindDocument, Owner: "User-3"})
	s.Put(&Record{ID: "Document-2", Kind: KindDocument, Owner: "User-404"})
	s.Put(&Record{ID: "Document-3", Kind: KindDocument})

	d1, _ := s.Get("Document-1")
	d2, _ := s.Get("Document-2")
	d3, _ := s.Get("Document-3")
	assert.Equal(t, "alice", s.OwnerUsername(d1))
	assert.Equal(t, "root", s.OwnerUsername(d2))
	assert.Equal(t, "root", s.OwnerUsername(d3))
}

func TestTitled(t *testing.T) {
	assert.True(t, (&Record{Kind: KindCollection}).Titled())
	assert.False(t, (&Record{Kind: KindDocument}).Titled())
	assert.True(t, (&Record{Kind: KindDocument, Detailed: true}).Titled())
	assert.False(t, (&Record{Kind: KindUser, Username: "alice"}).Titled())
}
