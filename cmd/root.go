// Package cmd wires the export pipeline behind the docudump command:
// extract records, build the containment forest, walk it, and optionally
// materialize it onto a filesystem.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentic-research/docudump/internal/catalog"
	"github.com/agentic-research/docudump/internal/config"
	"github.com/agentic-research/docudump/internal/export"
	"github.com/agentic-research/docudump/internal/extract"
	"github.com/agentic-research/docudump/internal/identity"
	"github.com/agentic-research/docudump/internal/materialize"
	"github.com/agentic-research/docudump/internal/record"
	"github.com/agentic-research/docudump/internal/tree"
)

var (
	inputXML      []string
	collectionID  string
	outputDir     string
	mappingPath   string
	catalogPath   string
	configPath    string
	uidCachePath  string
	stagingDir    string
	exportScript  string
	exportWorkDir string
	subCollection string
	order         string
	maxDepth      int
	batchWidth    int
	verbose       bool
)

func init() {
	f := rootCmd.Flags()
	f.StringSliceVar(&inputXML, "input-xml", nil, "Parse these export XML files instead of invoking the export command")
	f.StringVar(&collectionID, "collection", "", "Export and process a single collection id")
	f.StringVarP(&outputDir, "output", "o", "", "Output directory (omit to only report the tree)")
	f.StringVar(&mappingPath, "output-mapping", "", "Append id,path mapping lines to this file")
	f.StringVar(&catalogPath, "catalog", "", "Write a SQLite catalog of records and edges to this path")
	f.StringVarP(&configPath, "config", "c", "", "Policy configuration file (HCL)")
	f.StringVar(&uidCachePath, "uid-cache", "username_uid_map.json", "Persisted username to uid mapping")
	f.StringVar(&stagingDir, "staging", "", "Staging directory for the export command")
	f.StringVar(&exportScript, "export-script", "", "Path to the export command")
	f.StringVar(&exportWorkDir, "export-workdir", "", "Working directory for the export command")
	f.StringVar(&subCollection, "sub-collection", "", "Start traversal at this collection instead of the roots")
	f.StringVar(&order, "order", tree.BreadthFirst, "Traversal discipline: dfs or bfs")
	f.IntVar(&maxDepth, "max-depth", 0, "Maximum traversal depth (0 = unlimited)")
	f.IntVar(&batchWidth, "batch", 1, "Traversal items per external detail fetch")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:   "docudump",
	Short: "Export a document repository tree onto a POSIX filesystem",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		ctx := cmd.Context()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Export != nil {
			if exportScript == "" {
				exportScript = cfg.Export.Script
			}
			if exportWorkDir == "" {
				exportWorkDir = cfg.Export.WorkDir
			}
			if stagingDir == "" {
				stagingDir = cfg.Export.Staging
			}
		}
		runner := &export.Runner{
			Script:  exportScript,
			WorkDir: exportWorkDir,
			Staging: stagingDir,
			Log:     log,
		}
		if cfg.Export != nil {
			runner.Threads = cfg.Export.Threads
		}

		opts := extract.Options{
			PublicGroups:   cfg.PublicGroups,
			ReadPermission: cfg.ReadPermission,
			IgnoreTypes:    cfg.IgnoreTypes,
		}

		store := record.NewStore()
		if err := loadRecords(cmd, log, runner, opts, store); err != nil {
			return err
		}
		log.Info().Int("records", store.Len()).Msg("metadata processed, building tree")

		forest := tree.Build(store)

		if catalogPath != "" {
			if err := catalog.Write(catalogPath, store, forest); err != nil {
				return err
			}
			log.Info().Str("path", catalogPath).Msg("catalog written")
		}

		uids, err := identity.Load(ctx, uidCachePath, nil, cfg.SeedUsers())
		if err != nil {
			return err
		}

		pipe := &materialize.Pipeline{
			Records:    store,
			Exporter:   runner,
			UIDs:       uids,
			Log:        log,
			BatchWidth: batchWidth,
			MaxExtLen:  cfg.MaxExtensionLen,
			URLExt:     cfg.URLExtension,
			Extract:    opts,
		}
		if outputDir != "" {
			pipe.FS = materialize.NewOSFS(outputDir)
			pipe.OutputRoot = outputDir
		} else {
			pipe.Report = os.Stdout
		}
		if mappingPath != "" {
			mapping, err := os.OpenFile(mappingPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open mapping log: %w", err)
			}
			defer func() { _ = mapping.Close() }()
			pipe.Mapping = mapping
		}

		walker := tree.NewWalker(forest, store, tree.WalkOptions{
			Order:     order,
			SkipLevel: maxDepth,
		})
		if err := pipe.Run(ctx, walker.Items(subCollection)); err != nil {
			return err
		}
		log.Info().Msg("export complete")
		return nil
	},
}

// loadRecords fills the store from explicit input buffers, a single
// recursive collection export, or the three bootstrap class exports.
func loadRecords(cmd *cobra.Command, log zerolog.Logger, runner *export.Runner, opts extract.Options, store *record.Store) error {
	ctx := cmd.Context()

	if len(inputXML) > 0 {
		detailOpts := opts
		detailOpts.Details = true
		for _, path := range inputXML {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read input xml: %w", err)
			}
			if err := extract.Extract(data, detailOpts, store); err != nil {
				return err
			}
		}
		return nil
	}

	if collectionID != "" {
		xmlPath, err := runner.CollectionXML(ctx, collectionID)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(xmlPath)
		if err != nil {
			return fmt.Errorf("read collection export: %w", err)
		}
		detailOpts := opts
		detailOpts.Details = true
		return extract.Extract(data, detailOpts, store)
	}

	// Bootstrap: cheap metadata passes per class. Documents and URL
	// shortcuts stay as stubs until the batched detail fetches.
	classes := []struct {
		name  string
		props []string
	}{
		{"Collection", []string{"title", "create_date", "sort_order"}},
		{"Document", []string{"noprops"}},
		{"URL", []string{"noprops"}},
	}
	for _, class := range classes {
		xmlPath, err := runner.ClassXML(ctx, class.name, class.props)
		if err != nil {
			return err
		}
		log.Info().Str("class", class.name).Msg("processing class metadata")
		data, err := os.ReadFile(xmlPath)
		if err != nil {
			return fmt.Errorf("read %s export: %w", class.name, err)
		}
		if err := extract.Extract(data, opts, store); err != nil {
			return err
		}
	}
	return nil
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
