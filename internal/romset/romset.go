// Package romset enumerates ROM archives in a directory and the companion
// preview videos that travel with them.
package romset

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"nogal/internal/config"
	"nogal/internal/logging"
)

const (
	// DefaultVideoDir is the subdirectory holding <rom>-video.<ext> files.
	DefaultVideoDir = "video"
	// VideoSuffix is appended to a ROM identifier to form its video stem.
	VideoSuffix = "-video"
)

// RomFile is a candidate ROM archive found directly inside the scanned directory.
type RomFile struct {
	Name string
	Size int64
}

// Identifier returns the ROM identifier catver.ini keys on.
func (r RomFile) Identifier() string {
	return Identifier(r.Name)
}

// Identifier strips the final extension from a filename. "game.v1.zip"
// yields "game.v1".
func Identifier(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Scanner lists ROM archives and their companion videos.
type Scanner struct {
	extensions map[string]struct{}
	videoDir   string
	logger     *slog.Logger
}

// NewScanner builds a Scanner. Extensions are compared case-insensitively;
// empty arguments fall back to the defaults.
func NewScanner(extensions []string, videoDir string, logger *slog.Logger) *Scanner {
	if len(extensions) == 0 {
		extensions = config.DefaultExtensions
	}
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	if strings.TrimSpace(videoDir) == "" {
		videoDir = DefaultVideoDir
	}
	return &Scanner{
		extensions: set,
		videoDir:   videoDir,
		logger:     logging.NewComponentLogger(logger, "romset"),
	}
}

// VideoDir returns the companion video subdirectory name.
func (s *Scanner) VideoDir() string {
	return s.videoDir
}

// IsRom reports whether name carries an allowed extension.
func (s *Scanner) IsRom(name string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListRomFiles returns the ROM archives directly inside dir, sorted by name.
// An unreadable directory is logged and yields an empty result.
func (s *Scanner) ListRomFiles(dir string) []RomFile {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.ErrorWithContext(s.logger, "read rom directory failed", "rom_scan_failed",
			logging.String("path", dir),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the directory exists and is readable"),
		)
		return []RomFile{}
	}

	files := make([]RomFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !s.IsRom(entry.Name()) {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		files = append(files, RomFile{Name: entry.Name(), Size: size})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	s.logger.Debug("scanned rom directory", logging.String("path", dir), logging.Int("roms", len(files)))
	return files
}

// ListVideoFiles returns full paths of every file in the video subdirectory
// whose stem is exactly "<id>-video". Any extension qualifies, so one ROM may
// own several videos. A missing video directory yields an empty result.
func (s *Scanner) ListVideoFiles(dir, id string) []string {
	videoDir := filepath.Join(dir, s.videoDir)
	entries, err := os.ReadDir(videoDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logging.ErrorWithContext(s.logger, "read video directory failed", "video_scan_failed",
				logging.String("path", videoDir),
				logging.Error(err),
			)
		}
		return []string{}
	}

	want := id + VideoSuffix
	paths := make([]string, 0, 1)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if Identifier(entry.Name()) == want {
			paths = append(paths, filepath.Join(videoDir, entry.Name()))
		}
	}
	return paths
}
