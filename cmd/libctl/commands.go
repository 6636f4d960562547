package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"music-library/internal/database"
	"music-library/internal/indexer"
	"music-library/internal/logging"
)

// databaseFile is the database file name inside the database directory.
const databaseFile = "library.db"

type globalOptions struct {
	library  string
	database string
	logLevel string
	autosave int
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "libctl",
		Short:         "Sync and query a music library database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			logging.SetLevel(level)
			logging.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.library, "library", "l", envOr("LIBRARY_DIR", "/music"), "library root directory")
	flags.StringVarP(&opts.database, "database", "d", envOr("DATABASE_DIR", "/database"), "directory holding "+databaseFile)
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.IntVar(&opts.autosave, "autosave", indexer.DefaultAutosaveInterval, "inserts per committed batch, 0 for a single transaction")

	root.AddCommand(
		newSyncCmd(opts),
		newUpdateCmd(opts),
		newSearchCmd(opts),
		newRandomCmd(opts),
		newStatsCmd(opts),
	)
	return root
}

// library opens the database and an indexer over the library root.
type library struct {
	db  *database.Database
	idx *indexer.Indexer
}

func openLibrary(ctx context.Context, opts *globalOptions) (*library, error) {
	if err := os.MkdirAll(opts.database, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := database.New(ctx, filepath.Join(opts.database, databaseFile), nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	idxOpts := indexer.DefaultOptions()
	idxOpts.AutosaveInterval = opts.autosave
	idxOpts.Interval = 0
	idxOpts.Watch = false
	return &library{db: db, idx: indexer.New(db, opts.library, idxOpts)}, nil
}

func (l *library) Close() error {
	l.idx.Stop()
	return l.db.Close()
}

// runFunc is the body of a command that works on an open library.
type runFunc func(ctx context.Context, l *library, out io.Writer, args []string) error

func withLibrary(opts *globalOptions, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		l, err := openLibrary(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := l.Close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd.Context(), l, cmd.OutOrStdout(), args)
	}
}

func printResult(out io.Writer, res indexer.Result) {
	fmt.Fprintf(out, "added %d, removed %d\n", res.Added, res.Removed)
}

func printEntries(out io.Writer, entries []database.MediaEntry) {
	for _, e := range entries {
		if e.IsDirectory {
			fmt.Fprintf(out, "%s/\n", e.Path)
			continue
		}
		fmt.Fprintln(out, e.Path)
	}
}

func newSyncCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Bring the whole database in line with the library directory",
		Args:  cobra.NoArgs,
		RunE: withLibrary(opts, func(ctx context.Context, l *library, out io.Writer, _ []string) error {
			res, err := l.idx.FullSync(ctx)
			if err != nil {
				return err
			}
			printResult(out, res)
			return nil
		}),
	}
}

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <path>...",
		Short: "Sync the given paths and everything below them",
		Args:  cobra.MinimumNArgs(1),
		RunE: withLibrary(opts, func(ctx context.Context, l *library, out io.Writer, args []string) error {
			res, err := l.idx.PartialSync(ctx, args...)
			if err != nil {
				return err
			}
			printResult(out, res)
			return nil
		}),
	}
}

func newSearchCmd(opts *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <words>...",
		Short: "Print the entries matching the given word prefixes",
		Long: `Print the entries with a word starting with any of the given words,
those matching the most words first. A leading or trailing !f limits the
results to files, !d to directories.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withLibrary(opts, func(ctx context.Context, l *library, out io.Writer, args []string) error {
			entries, err := l.db.Search(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			printEntries(out, entries)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", database.DefaultSearchLimit, "maximum number of results")
	return cmd
}

func newRandomCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "random [count]",
		Short: "Print randomly picked files",
		Args: cobra.MatchAll(cobra.MaximumNArgs(1), func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}
			if n, err := strconv.Atoi(args[0]); err != nil || n <= 0 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			return nil
		}),
		RunE: withLibrary(opts, func(ctx context.Context, l *library, out io.Writer, args []string) error {
			count := 1
			if len(args) == 1 {
				count, _ = strconv.Atoi(args[0])
			}
			if count > database.MaxRandomCount {
				logging.Warn("Printing at most %d random files", database.MaxRandomCount)
				count = database.MaxRandomCount
			}
			entries, err := l.db.RandomFileEntries(ctx, count)
			if err != nil {
				return err
			}
			printEntries(out, entries)
			return nil
		}),
	}
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts of the library tables",
		Args:  cobra.NoArgs,
		RunE: withLibrary(opts, func(ctx context.Context, l *library, out io.Writer, _ []string) error {
			stats, err := l.db.CalculateStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "files:       %d\n", stats.Files)
			fmt.Fprintf(out, "directories: %d\n", stats.Directories)
			fmt.Fprintf(out, "words:       %d\n", stats.Words)
			fmt.Fprintf(out, "postings:    %d\n", stats.Postings)
			return nil
		}),
	}
}
