// Package curate runs one curation pass over a ROM directory: scan, look up
// categories, filter, then list, delete, or move the matches along with their
// companion videos.
//
// The engine is sequential. Every per-file failure is reported and skipped;
// only a missing ROM directory or an uncreatable backup directory aborts a run.
package curate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"nogal/internal/catver"
	"nogal/internal/fsx"
	"nogal/internal/logging"
	"nogal/internal/match"
	"nogal/internal/romset"
)

// Storage is the narrow set of filesystem mutations a run performs.
type Storage interface {
	Remove(path string) error
	Move(src, dst string) error
	MkdirAll(path string) error
}

// Scanner lists candidate ROMs and their companion videos.
type Scanner interface {
	ListRomFiles(dir string) []romset.RomFile
	ListVideoFiles(dir, id string) []string
	VideoDir() string
}

// Streams receives the human-readable run transcript: progress on Out,
// failures on Err.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

// Engine orchestrates a run against one category database.
type Engine struct {
	db            catver.Database
	scanner       Scanner
	storage       Storage
	logger        *slog.Logger
	out           io.Writer
	errOut        io.Writer
	now           func() time.Time
	checkWritable func(string) error
}

// New builds an Engine. Nil streams discard output.
func New(db catver.Database, scanner Scanner, storage Storage, logger *slog.Logger, streams Streams) *Engine {
	out, errOut := streams.Out, streams.Err
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	return &Engine{
		db:            db,
		scanner:       scanner,
		storage:       storage,
		logger:        logging.NewComponentLogger(logger, "curate"),
		out:           out,
		errOut:        errOut,
		now:           time.Now,
		checkWritable: fsx.CheckWritable,
	}
}

// Plan resolves the matching ROMs without touching the filesystem.
func (e *Engine) Plan(ctx context.Context, opts Options) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateDirectory(opts.Directory); err != nil {
		return nil, err
	}
	return e.classify(opts), nil
}

// Run executes the full pass and returns its report. The error is non-nil
// only when the run aborted.
func (e *Engine) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{
		Status:      StatusCompleted,
		Disposition: opts.Disposition(),
		Directory:   opts.Directory,
		BackupDir:   opts.BackupDir,
		Filter:      opts.Filter,
		Videos:      opts.IncludeVideos && !opts.ListOnly,
		StartedAt:   e.now(),
	}
	abort := func(err error) (Report, error) {
		report.Status = StatusAborted
		report.FinishedAt = e.now()
		return report, err
	}

	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	if err := validateDirectory(opts.Directory); err != nil {
		fmt.Fprintf(e.errOut, "Directory not found: %s\n", opts.Directory)
		return abort(err)
	}

	mutating := report.Disposition != DispositionList
	if mutating {
		if err := e.ensureBackupDir(opts.BackupDir); err != nil {
			return abort(err)
		}
		if err := e.checkWritable(opts.Directory); err != nil {
			logging.WarnWithContext(e.logger, "rom directory may not be writable", "preflight_not_writable",
				logging.String("path", opts.Directory),
				logging.Error(err),
				logging.String(logging.FieldImpact, "deletes and moves are likely to fail"),
				logging.String(logging.FieldErrorHint, "check directory ownership and permissions"),
			)
		}
	}

	report.Matches = e.classify(opts)

	if len(report.Matches) == 0 {
		if mutating {
			fmt.Fprintln(e.out, "No games to delete.")
		} else {
			fmt.Fprintln(e.out, "No matching games found.")
		}
		report.FinishedAt = e.now()
		return report, nil
	}

	if !mutating {
		fmt.Fprintf(e.out, "Found %d matching games:\n", len(report.Matches))
		for _, m := range report.Matches {
			fmt.Fprintf(e.out, "%s - %s\n", m.Name, m.Category)
		}
		report.FinishedAt = e.now()
		return report, nil
	}

	if err := e.act(ctx, opts, &report); err != nil {
		return abort(err)
	}
	report.FinishedAt = e.now()
	e.logger.Info("run finished",
		logging.String("disposition", string(report.Disposition)),
		logging.Bool("videos", report.Videos),
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func validateDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return fmt.Errorf("%w: %s: %v", ErrDirectoryNotFound, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, dir)
	}
	return nil
}

func (e *Engine) ensureBackupDir(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			fmt.Fprintf(e.errOut, "Error creating backup directory %s: not a directory\n", dir)
			return fmt.Errorf("%w %s: not a directory", ErrBackupDirCreate, dir)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(e.errOut, "Error creating backup directory %s: %v\n", dir, err)
		return fmt.Errorf("%w %s: %w", ErrBackupDirCreate, dir, err)
	}
	if err := e.storage.MkdirAll(dir); err != nil {
		fmt.Fprintf(e.errOut, "Error creating backup directory %s: %v\n", dir, err)
		return fmt.Errorf("%w %s: %w", ErrBackupDirCreate, dir, err)
	}
	fmt.Fprintf(e.out, "Created backup directory: %s\n", dir)
	return nil
}

// classify scans the directory, drops ROMs the database does not know, and
// keeps those whose category passes the filter.
func (e *Engine) classify(opts Options) []Match {
	roms := e.scanner.ListRomFiles(opts.Directory)
	matches := make([]Match, 0)
	var unknown int
	for _, rom := range roms {
		id := rom.Identifier()
		category, ok := e.db.Lookup(id)
		if !ok {
			unknown++
			continue
		}
		if !match.Matches(category, opts.Filter) {
			continue
		}
		matches = append(matches, Match{
			Name:       rom.Name,
			Identifier: id,
			Category:   category,
			Size:       rom.Size,
		})
	}
	e.logger.Info("classified roms",
		logging.String("path", opts.Directory),
		logging.String("filter", opts.Filter.String()),
		logging.Int("scanned", len(roms)),
		logging.Int("uncategorized", unknown),
		logging.Int("matched", len(matches)),
	)
	return matches
}
