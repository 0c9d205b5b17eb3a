// Package export invokes the external batch export command that produces
// the raw record XML and, for content fetches, the document payloads. The
// command is a black box: scope, recursion and property filters go in,
// files appear under a staging directory keyed by scope name or id, and a
// non-zero exit is fatal.
package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentic-research/docudump/internal/materialize"
)

// Runner shells out to the export command.
type Runner struct {
	Script  string // export command path
	WorkDir string // directory the command must run from
	Staging string // destination directory handed to the command
	Threads int    // worker threads for recursive fetches
	Log     zerolog.Logger
}

// Request is one export invocation.
type Request struct {
	Scope        []string // class name, collection id, or explicit id list
	Recursive    bool
	MetadataOnly bool
	Props        []string // optional property allow-list
}

func (r *Runner) args(req Request) []string {
	args := []string{"-d", r.Staging}
	if req.Recursive {
		threads := r.Threads
		if threads < 1 {
			threads = 1
		}
		args = append(args, "-r", "-t", strconv.Itoa(threads))
	}
	if req.MetadataOnly {
		args = append(args, "-m")
	}
	if len(req.Props) > 0 {
		args = append(args, "-p", strings.Join(req.Props, ","))
	}
	return append(args, req.Scope...)
}

// Run executes one export invocation, capturing its output to a log file
// in the staging directory.
func (r *Runner) Run(ctx context.Context, req Request) error {
	if err := os.MkdirAll(r.Staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	logPath := filepath.Join(r.Staging, "export_err")
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open export log: %w", err)
	}
	defer func() { _ = out.Close() }()

	args := r.args(req)
	r.Log.Debug().Str("script", r.Script).Strs("args", args).Msg("running export")
	cmd := exec.CommandContext(ctx, r.Script, args...)
	cmd.Dir = r.WorkDir
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("export %s: %w (see %s)", strings.Join(req.Scope, " "), err, logPath)
	}
	return nil
}

// ClassXML ensures the metadata export for one record class exists and
// returns the path to its XML. An export already present in the staging
// directory is reused.
func (r *Runner) ClassXML(ctx context.Context, class string, props []string) (string, error) {
	xmlPath := filepath.Join(r.Staging, class, class+".xml")
	if _, err := os.Stat(xmlPath); err == nil {
		return xmlPath, nil
	}
	r.Log.Info().Str("class", class).Msg("running export for class metadata")
	if err := r.Run(ctx, Request{Scope: []string{class}, MetadataOnly: true, Props: props}); err != nil {
		return "", err
	}
	return xmlPath, nil
}

// CollectionXML exports one collection recursively (metadata only) and
// returns the path to its XML.
func (r *Runner) CollectionXML(ctx context.Context, id string) (string, error) {
	if err := r.Run(ctx, Request{Scope: []string{id}, Recursive: true, MetadataOnly: true}); err != nil {
		return "", err
	}
	return filepath.Join(r.Staging, id, id+".xml"), nil
}

// FetchDetails implements materialize.Exporter: one recursive content
// export for the batch's ids. The export writes everything under a
// directory named after the first id; the returned cleanup removes it.
func (r *Runner) FetchDetails(ctx context.Context, ids []string) (materialize.Fetch, func() error, error) {
	if len(ids) == 0 {
		return materialize.Fetch{}, nil, fmt.Errorf("empty detail fetch")
	}
	if err := r.Run(ctx, Request{Scope: ids, Recursive: true}); err != nil {
		return materialize.Fetch{}, nil, err
	}
	dir := filepath.Join(r.Staging, ids[0])
	fetch := materialize.Fetch{
		Dir:     dir,
		XMLPath: filepath.Join(dir, ids[0]+".xml"),
	}
	return fetch, func() error { return os.RemoveAll(dir) }, nil
}

var _ materialize.Exporter = (*Runner)(nil)
