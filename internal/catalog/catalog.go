// Package catalog writes the extracted record model and the reconstructed
// containment edges to a SQLite database for offline querying.
package catalog

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/docudump/internal/record"
	"github.com/agentic-research/docudump/internal/tree"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	title TEXT,
	owner TEXT,
	private INTEGER NOT NULL,
	sort_order TEXT,
	size INTEGER,
	content_filename TEXT,
	original_file_name TEXT,
	url TEXT,
	username TEXT,
	create_date INTEGER,
	detailed INTEGER NOT NULL,
	ignored INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS edges (
	parent_id TEXT NOT NULL,
	child_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (parent_id, position)
) WITHOUT ROWID;
`

// Write overwrites path with a catalog of store and forest.
func Write(path string, store *record.Store, forest *tree.Forest) error {
	_ = os.Remove(path) // overwrite
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	// Bulk-load tuning; the catalog is rebuilt from scratch every run.
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		return err
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	recStmt, err := tx.Prepare(`
		INSERT INTO records (id, kind, title, owner, private, sort_order, size,
			content_filename, original_file_name, url, username, create_date,
			detailed, ignored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = recStmt.Close() }()

	for _, id := range store.IDs() {
		rec, _ := store.Get(id)
		var createDate any
		if !rec.CreateDate.IsZero() {
			createDate = rec.CreateDate.Unix()
		}
		if _, err := recStmt.Exec(
			rec.ID, string(rec.Kind), rec.Title, rec.Owner, rec.Private,
			rec.SortOrder, rec.Size, rec.ContentFilename, rec.OriginalFileName,
			rec.URL, rec.Username, createDate, rec.Detailed, rec.Ignored,
		); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges (parent_id, child_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = edgeStmt.Close() }()

	for _, id := range forest.IDs() {
		node, ok := forest.Node(id)
		if !ok {
			continue
		}
		for pos, child := range node.Children {
			if _, err := edgeStmt.Exec(id, child, pos); err != nil {
				return fmt.Errorf("insert edge %s -> %s: %w", id, child, err)
			}
		}
	}

	return tx.Commit()
}
