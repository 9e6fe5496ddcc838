package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"nogal/internal/catver"
	"nogal/internal/config"
	"nogal/internal/curate"
	"nogal/internal/fsx"
	"nogal/internal/journal"
	"nogal/internal/logging"
	"nogal/internal/match"
	"nogal/internal/romset"
	"nogal/internal/runlock"
)

func (c *commandContext) runCurate(cmd *cobra.Command, flags *curateFlags) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	stderr := newErrorWriter(cmd.ErrOrStderr())

	db, err := loadCategories(flags.catver, cfg, stderr)
	if err != nil {
		return err
	}
	logger.Info("category database loaded", logging.Int("entries", db.Len()))

	directory, err := config.ExpandPath(flags.directory)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	backup, err := config.ExpandPath(flags.backup)
	if err != nil {
		return fmt.Errorf("resolve backup directory: %w", err)
	}

	opts := curate.Options{
		Directory:     directory,
		Filter:        match.Filter{Category: flags.category, CaseInsensitive: flags.caseInsensitive},
		ListOnly:      flags.list,
		IncludeVideos: flags.video,
		BackupDir:     backup,
	}

	scanner := romset.NewScanner(cfg.Scan.Extensions, cfg.Scan.VideoDir, logger)
	engine := curate.New(db, scanner, fsx.OS{}, logger, curate.Streams{
		Out: cmd.OutOrStdout(),
		Err: stderr,
	})

	if opts.ListOnly && flags.format != formatText {
		return printPlan(cmd, engine, opts, flags.format, stderr)
	}

	if opts.Disposition() == curate.DispositionList {
		if _, err := engine.Run(cmd.Context(), opts); err != nil {
			return reportedError{err: err}
		}
		return nil
	}

	if err := cfg.EnsureStateDir(); err != nil {
		return err
	}
	lock, err := runlock.Acquire(cfg.LockDir(), opts.Directory)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release run lock", logging.String("path", lock.Path()), logging.Error(err))
		}
	}()

	report, runErr := engine.Run(cmd.Context(), opts)
	recordRun(cmd.Context(), cfg, logger, report)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return reportedError{err: runErr}
	}
	return nil
}

// loadCategories resolves the category file (flag, then config, then the
// executable's directory) and parses it. Failures are printed here since they
// abort before any output from the engine.
func loadCategories(flagPath string, cfg *config.Config, stderr io.Writer) (catver.Database, error) {
	path := flagPath
	if path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return catver.Database{}, err
		}
		path = expanded
	} else {
		path = cfg.Paths.CategoryFile
	}
	besideExecutable := path == ""
	if besideExecutable {
		defaultPath, err := catver.DefaultPath()
		if err != nil {
			return catver.Database{}, err
		}
		path = defaultPath
	}

	db, err := catver.Load(path)
	switch {
	case err == nil:
		return db, nil
	case errors.Is(err, catver.ErrNotFound):
		if besideExecutable {
			fmt.Fprintln(stderr, "Error: catver.ini not found in the same directory as the executable.")
		} else {
			fmt.Fprintln(stderr, "Error: category file not found.")
		}
		fmt.Fprintf(stderr, "Looked for: %s\n", path)
	default:
		fmt.Fprintf(stderr, "Error reading %s: %v\n", path, errors.Unwrap(err))
	}
	return catver.Database{}, reportedError{err: err}
}

// recordRun writes a mutating run to the history database. Runs that aborted
// before touching any file are skipped. Journal failures never fail the run.
func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, report curate.Report) {
	if !cfg.Journal.Enabled {
		return
	}
	if report.Status == curate.StatusAborted && len(report.Actions) == 0 {
		return
	}
	// A cancelled run is still worth recording.
	ctx = context.WithoutCancel(ctx)

	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		logging.WarnWithContext(logger, "open run history", "journal_open_failed",
			logging.String("path", cfg.JournalPath()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "run not recorded"),
		)
		return
	}
	defer store.Close()

	id, err := store.Record(ctx, report)
	if err != nil {
		logging.WarnWithContext(logger, "record run history", "journal_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run not recorded"),
		)
		return
	}
	logger.Info("run recorded", logging.String("run_id", id), logging.String("path", store.Path()))
}
