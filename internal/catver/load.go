package catver

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FileName is the category database file looked up beside the executable.
const FileName = "catver.ini"

var (
	// ErrNotFound is returned when the category database does not exist.
	ErrNotFound = errors.New("category database not found")
	// ErrUnreadable is returned when the category database exists but cannot be read or decoded.
	ErrUnreadable = errors.New("category database unreadable")
)

// LoadError records which file failed to load and why.
type LoadError struct {
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Path)
}

// Is lets errors.Is match the sentinel kind.
func (e *LoadError) Is(target error) bool { return target == e.Kind }

func (e *LoadError) Unwrap() error { return e.Err }

// DefaultPath returns catver.ini in the directory of the running executable,
// resolving symlinks so a linked binary still finds its database.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// Load reads and parses the category database at path.
func Load(path string) (Database, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Database{}, &LoadError{Path: path, Kind: ErrNotFound}
		}
		return Database{}, &LoadError{Path: path, Kind: ErrUnreadable, Err: err}
	}
	if info.IsDir() {
		return Database{}, &LoadError{Path: path, Kind: ErrUnreadable, Err: errors.New("path is a directory")}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Database{}, &LoadError{Path: path, Kind: ErrUnreadable, Err: err}
	}

	text, err := Decode(raw)
	if err != nil {
		return Database{}, &LoadError{Path: path, Kind: ErrUnreadable, Err: err}
	}
	return Parse(text), nil
}

// Decode converts raw file bytes to text. A UTF-8 or UTF-16 byte order mark
// selects the encoding; without one the input is read as UTF-8. Text that
// still holds U+FFFD after decoding is rejected.
func Decode(raw []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", errors.New("decode: content contains invalid or unpaired characters")
	}
	return strings.ReplaceAll(string(decoded), "\r\n", "\n"), nil
}
