package curate

import (
	"errors"
	"fmt"
)

var (
	// ErrDirectoryNotFound aborts a run whose ROM directory is missing.
	ErrDirectoryNotFound = errors.New("directory not found")
	// ErrBackupDirCreate aborts a run whose backup directory cannot be created.
	ErrBackupDirCreate = errors.New("create backup directory")
)

// ActionError is a per-file failure. It never aborts the run.
type ActionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
