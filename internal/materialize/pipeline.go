// Package materialize consumes a tree traversal and produces filesystem
// artifacts: directories for collections, shortcut files for URL records,
// payload copies for documents, each stamped with ownership, permission
// bits and timestamps, with one append-only id→path mapping line per item.
package materialize

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentic-research/docudump/internal/extract"
	"github.com/agentic-research/docudump/internal/identity"
	"github.com/agentic-research/docudump/internal/record"
	"github.com/agentic-research/docudump/internal/tree"
)

// Permission pairs chosen from the private flag.
const (
	ownerFileMode = os.FileMode(0o600)
	ownerDirMode  = os.FileMode(0o700)
	worldFileMode = os.FileMode(0o644)
	worldDirMode  = os.FileMode(0o755)
)

const progressInterval = time.Minute

// Fetch locates one batch's detail-export staging area.
type Fetch struct {
	Dir     string // staging directory, removed by the cleanup func
	XMLPath string // per-batch detail XML inside Dir
}

// Exporter runs the external batched detail retrieval. The returned
// cleanup removes the staging workspace and must be called exactly once,
// whether or not the batch succeeds.
type Exporter interface {
	FetchDetails(ctx context.Context, ids []string) (Fetch, func() error, error)
}

// Pipeline drives traversal consumption. Items are pulled in fixed-size
// batches; each batch's non-collection items share a single external
// detail fetch. Batches are processed strictly sequentially.
type Pipeline struct {
	Records  *record.Store
	Exporter Exporter
	UIDs     *identity.Cache
	Log      zerolog.Logger

	// FS and OutputRoot enable materialization; with a nil FS the
	// pipeline only reports the tree.
	FS         FS
	OutputRoot string

	// Mapping receives one "id,absolute-path" line per materialized
	// item. Nil disables the log. Paths containing commas corrupt the
	// line format; no escaping is performed.
	Mapping io.Writer

	// Report receives one tree line per traversed item.
	Report io.Writer

	// BatchWidth is the number of traversal items per external call,
	// minimum 1.
	BatchWidth int

	// MaxExtLen is the longest destination extension (dot included)
	// considered plausible; longer or missing ones trigger recovery
	// from the original filename.
	MaxExtLen int

	// URLExt is the extension given to URL shortcut files.
	URLExt string

	// Extract configures parsing of batch detail XML.
	Extract extract.Options

	processed int
	lastNote  time.Time
}

// Sanitize converts a display title to a safe path segment, replacing
// path separators, semicolons and dollar signs with hyphens.
func Sanitize(name string) string {
	return strings.NewReplacer("/", "-", ";", "-", "$", "-").Replace(name)
}

func (p *Pipeline) materializing() bool {
	return p.FS != nil
}

// Run consumes the traversal to completion or first fatal error.
func (p *Pipeline) Run(ctx context.Context, items iter.Seq[tree.Item]) error {
	next, stop := iter.Pull(items)
	defer stop()

	width := p.BatchWidth
	if width < 1 {
		width = 1
	}
	p.lastNote = time.Now()
	for {
		batch := make([]tree.Item, 0, width)
		for len(batch) < width {
			item, ok := next()
			if !ok {
				break
			}
			batch = append(batch, item)
		}
		if len(batch) == 0 {
			return nil
		}
		if err := p.processBatch(ctx, batch); err != nil {
			return err
		}
		p.processed += len(batch)
		if time.Since(p.lastNote) > progressInterval {
			p.Log.Info().Int("items", p.processed).Msg("export progress")
			p.lastNote = time.Now()
		}
	}
}

func (p *Pipeline) processBatch(ctx context.Context, batch []tree.Item) error {
	var fetchIDs []string
	for _, item := range batch {
		rec := p.rec(item.ID)
		if rec.Ignored {
			continue
		}
		if rec.Kind != record.KindCollection && p.materializing() {
			fetchIDs = append(fetchIDs, item.ID)
		}
	}

	details := record.NewStore()
	var staging string
	if len(fetchIDs) > 0 {
		fetch, cleanup, err := p.Exporter.FetchDetails(ctx, fetchIDs)
		if err != nil {
			return fmt.Errorf("fetch batch details: %w", err)
		}
		// The staging workspace must go away even when an item in this
		// batch fails, or workspaces pile up across a long export.
		defer func() {
			if err := cleanup(); err != nil {
				p.Log.Warn().Err(err).Str("dir", fetch.Dir).Msg("cannot remove staging workspace")
			}
		}()
		staging = fetch.Dir

		data, err := os.ReadFile(fetch.XMLPath)
		if err != nil {
			return fmt.Errorf("read batch detail export: %w", err)
		}
		opts := p.Extract
		opts.Details = true
		if err := extract.Extract(data, opts, details); err != nil {
			return fmt.Errorf("parse batch detail export: %w", err)
		}
	}

	for _, item := range batch {
		rec := p.rec(item.ID)
		if rec.Ignored {
			continue
		}
		if rec.Kind != record.KindCollection && p.materializing() {
			d, ok := details.Get(item.ID)
			if !ok {
				return fmt.Errorf("record %s missing from batch detail export", item.ID)
			}
			rec = d
		}
		if err := p.emit(item, rec, staging); err != nil {
			return err
		}
	}
	return nil
}

// rec resolves a traversal id, defaulting unresolved references to a
// public document leaf.
func (p *Pipeline) rec(id string) *record.Record {
	if rec, ok := p.Records.Get(id); ok {
		return rec
	}
	return &record.Record{ID: id, Kind: record.KindDocument}
}

func (p *Pipeline) emit(item tree.Item, rec *record.Record, staging string) error {
	username := p.Records.OwnerUsername(rec)
	uid := p.UIDs.Lookup(username)

	if p.Report != nil {
		fmt.Fprintf(p.Report, "|%s%s %s %t\n",
			strings.Repeat("-", len(item.Ancestors)), item.ID, username, rec.Private)
	}
	if !p.materializing() {
		return nil
	}

	dir := p.ancestorPath(item.Ancestors)
	var dest string
	var mode os.FileMode
	switch rec.Kind {
	case record.KindCollection:
		dest = path.Join(dir, Sanitize(rec.Title))
		mode = dirMode(rec.Private)
		if err := p.FS.MkdirAll(dest, mode); err != nil {
			return fmt.Errorf("create collection directory %s: %w", dest, err)
		}

	case record.KindURL:
		dest = path.Join(dir, Sanitize(rec.Title)) + p.URLExt
		mode = fileMode(rec.Private)
		if err := p.writeFile(dest, strings.NewReader(rec.URL+"\n")); err != nil {
			return fmt.Errorf("write url shortcut %s: %w", dest, err)
		}

	case record.KindDocument:
		src := path.Join(staging, "documents", rec.ContentFilename)
		dest = path.Join(dir, Sanitize(rec.Title))
		if ext := path.Ext(dest); ext == "" || len(ext) > p.MaxExtLen {
			dest += recoverExt(rec)
		}
		mode = fileMode(rec.Private)
		if err := p.copyPayload(src, dest); err != nil {
			// Data loss territory: dump everything an operator needs
			// and halt rather than skip silently.
			p.Log.Error().
				Str("id", rec.ID).
				Str("title", rec.Title).
				Str("src", src).
				Str("dest", dest).
				Err(err).
				Msg("content copy failed")
			return fmt.Errorf("copy document %s content: %w", rec.ID, err)
		}

	default:
		return fmt.Errorf("record %s: cannot materialize kind %q", item.ID, rec.Kind)
	}

	if !rec.CreateDate.IsZero() {
		if err := p.FS.Chtimes(dest, rec.CreateDate, rec.CreateDate); err != nil {
			p.Log.Warn().Err(err).Str("dest", dest).Msg("cannot set time")
		}
	}
	if err := p.FS.Chown(dest, uid, uid); err != nil {
		return fmt.Errorf("chown %s: %w", dest, err)
	}
	if err := p.FS.Chmod(dest, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", dest, err)
	}

	if p.Mapping != nil {
		if _, err := fmt.Fprintf(p.Mapping, "%s,%s\n", item.ID, path.Join(p.OutputRoot, dest)); err != nil {
			return fmt.Errorf("write mapping line for %s: %w", item.ID, err)
		}
	}
	return nil
}

// ancestorPath joins the sanitized titles of the ancestor collections.
// Parent directories always exist by the time a child is emitted because
// traversal yields parents first.
func (p *Pipeline) ancestorPath(ancestors []string) string {
	segs := make([]string, 0, len(ancestors))
	for _, id := range ancestors {
		title := id
		if rec, ok := p.Records.Get(id); ok {
			title = rec.Title
		}
		segs = append(segs, Sanitize(title))
	}
	return path.Join(segs...)
}

func (p *Pipeline) writeFile(dest string, src io.Reader) error {
	f, err := p.FS.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (p *Pipeline) copyPayload(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	return p.writeFile(dest, in)
}

// recoverExt recovers a file extension from the original upload name,
// falling back to the export's on-disk content filename.
func recoverExt(rec *record.Record) string {
	if ext := path.Ext(rec.OriginalFileName); ext != "" {
		return ext
	}
	return path.Ext(rec.ContentFilename)
}

func dirMode(private bool) os.FileMode {
	if private {
		return ownerDirMode
	}
	return worldDirMode
}

func fileMode(private bool) os.FileMode {
	if private {
		return ownerFileMode
	}
	return worldFileMode
}
