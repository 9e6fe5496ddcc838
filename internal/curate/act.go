package curate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"nogal/internal/fsx"
	"nogal/internal/logging"
)

func (e *Engine) act(ctx context.Context, opts Options, report *Report) error {
	moving := report.Disposition == DispositionMove
	verb, past, gerund := "delete", "deleted", "Deleting"
	if moving {
		verb, past, gerund = "move", "moved", "Moving"
	}

	fmt.Fprintf(e.out, "%s %d games...\n", gerund, len(report.Matches))

	videoBackup := videoBackupDir{storage: e.storage, dir: filepath.Join(opts.BackupDir, e.scanner.VideoDir())}

	for _, m := range report.Matches {
		if err := ctx.Err(); err != nil {
			fmt.Fprintf(e.out, "Successfully %s %d games.\n", past, report.Succeeded)
			return err
		}

		action := Action{
			Kind:   KindROM,
			ROM:    m.Identifier,
			Name:   m.Name,
			Source: filepath.Join(opts.Directory, m.Name),
		}
		if moving {
			action.Destination = filepath.Join(opts.BackupDir, m.Name)
		}

		action.Err = e.apply(verb, action)
		report.Actions = append(report.Actions, action)
		if action.Err != nil {
			report.Failed++
			fmt.Fprintf(e.errOut, "Error %s %s: %v\n", gerundLower(verb), m.Name, causeOf(action.Err))
			e.logger.Info("rom action failed",
				logging.String(logging.FieldEventType, "rom_"+verb+"_failed"),
				logging.String("file", m.Name),
				logging.Error(action.Err),
				logging.String(logging.FieldErrorHint, fsx.DescribeError(action.Err)),
				logging.String(logging.FieldImpact, "rom left in place"),
			)
			continue
		}

		report.Succeeded++
		if moving {
			fmt.Fprintf(e.out, "Moved: %s -> %s/\n", m.Name, opts.BackupDir)
		} else {
			fmt.Fprintf(e.out, "Deleted: %s\n", m.Name)
		}
		e.logger.Info("rom "+past,
			logging.String("file", m.Name),
			logging.String("category", m.Category),
			logging.Int64("size", m.Size),
		)

		if opts.IncludeVideos {
			report.Actions = append(report.Actions, e.actOnVideos(opts, m, verb, &videoBackup)...)
		}
	}

	fmt.Fprintf(e.out, "Successfully %s %d games.\n", past, report.Succeeded)
	return nil
}

// actOnVideos handles each companion video independently. Failures are
// reported but never change the ROM's outcome.
func (e *Engine) actOnVideos(opts Options, m Match, verb string, backup *videoBackupDir) []Action {
	paths := e.scanner.ListVideoFiles(opts.Directory, m.Identifier)
	actions := make([]Action, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		action := Action{
			Kind:   KindVideo,
			ROM:    m.Identifier,
			Name:   name,
			Source: path,
		}
		if verb == "move" {
			action.Destination = filepath.Join(backup.dir, name)
			if err := backup.ensure(); err != nil {
				action.Err = &ActionError{Op: "create", Path: backup.dir, Err: err}
			}
		}
		if action.Err == nil {
			action.Err = e.apply(verb, action)
		}
		actions = append(actions, action)

		if action.Err != nil {
			fmt.Fprintf(e.errOut, "Error %s video %s: %v\n", gerundLower(verb), name, causeOf(action.Err))
			e.logger.Info("video action failed",
				logging.String(logging.FieldEventType, "video_"+verb+"_failed"),
				logging.String("file", name),
				logging.String("rom", m.Identifier),
				logging.Error(action.Err),
				logging.String(logging.FieldErrorHint, fsx.DescribeError(action.Err)),
				logging.String(logging.FieldImpact, "video left in place; rom already handled"),
			)
			continue
		}
		if verb == "move" {
			fmt.Fprintf(e.out, "Moved video: %s -> %s/\n", name, backup.dir)
		} else {
			fmt.Fprintf(e.out, "Deleted video: %s\n", name)
		}
	}
	return actions
}

func (e *Engine) apply(verb string, a Action) error {
	var err error
	if verb == "move" {
		err = e.storage.Move(a.Source, a.Destination)
	} else {
		err = e.storage.Remove(a.Source)
	}
	if err != nil {
		return &ActionError{Op: verb, Path: a.Source, Err: err}
	}
	return nil
}

// causeOf strips the ActionError wrapper; the filename is already on the line.
func causeOf(err error) error {
	var ae *ActionError
	if errors.As(err, &ae) && ae.Err != nil {
		return ae.Err
	}
	return err
}

func gerundLower(verb string) string {
	if verb == "move" {
		return "moving"
	}
	return "deleting"
}

// videoBackupDir creates <backup>/video on first use.
type videoBackupDir struct {
	storage Storage
	dir     string
	ready   bool
}

func (v *videoBackupDir) ensure() error {
	if v.ready {
		return nil
	}
	if err := v.storage.MkdirAll(v.dir); err != nil {
		return err
	}
	v.ready = true
	return nil
}
