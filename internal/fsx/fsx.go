// Package fsx implements the filesystem mutations the curation engine needs:
// remove one file, move one file, and create directories.
package fsx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Replaceable so tests can simulate EXDEV and permission failures.
var (
	renameFunc = os.Rename
	removeFunc = os.Remove
)

// CrossDeviceError reports a rename that failed because source and target
// live on different filesystems. Files are never copied as a fallback.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device move %q -> %q: source and backup must be on the same filesystem: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// OS performs mutations against the real filesystem.
type OS struct{}

// Remove deletes a single file.
func (OS) Remove(path string) error {
	return removeFunc(path)
}

// Move renames src to dst, marking EXDEV failures as CrossDeviceError.
func (OS) Move(src, dst string) error {
	return Rename(src, dst)
}

// MkdirAll creates path and any missing parents.
func (OS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// Rename wraps os.Rename and marks EXDEV as CrossDeviceError.
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// DescribeError returns a short hint for common per-file failure causes.
func DescribeError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsCrossDevice(err):
		return "backup directory is on another filesystem"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, fs.ErrNotExist):
		return "file disappeared before it could be processed"
	default:
		return "unexpected filesystem error"
	}
}
