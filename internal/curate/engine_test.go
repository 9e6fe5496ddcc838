package curate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nogal/internal/catver"
	"nogal/internal/fsx"
	"nogal/internal/logging"
	"nogal/internal/match"
	"nogal/internal/romset"
)

type fakeStorage struct {
	removed    []string
	moved      [][2]string
	mkdirs     []string
	failRemove map[string]error
	failMove   map[string]error
	failMkdir  map[string]error
}

func (f *fakeStorage) Remove(path string) error {
	if err := f.failRemove[filepath.Base(path)]; err != nil {
		return err
	}
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeStorage) Move(src, dst string) error {
	if err := f.failMove[filepath.Base(src)]; err != nil {
		return err
	}
	f.moved = append(f.moved, [2]string{src, dst})
	return nil
}

func (f *fakeStorage) MkdirAll(path string) error {
	if err := f.failMkdir[path]; err != nil {
		return err
	}
	f.mkdirs = append(f.mkdirs, path)
	return nil
}

func (f *fakeStorage) calls() int {
	return len(f.removed) + len(f.moved) + len(f.mkdirs)
}

type harness struct {
	dir    string
	out    *bytes.Buffer
	errOut *bytes.Buffer
	engine *Engine
}

var testDB = catver.New(map[string]string{
	"pacman": "Maze / Collect",
	"mk":     "Fighter / Versus * Mature *",
	"mk2":    "Fighter / Versus * Mature *",
	"sf2":    "Fighter / Versus",
	"galaga": "Shooter / Flying Vertical",
})

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func newHarness(t *testing.T, storage Storage, files ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(name)))
	}
	h := &harness{dir: dir, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	scanner := romset.NewScanner(nil, "", logging.NewNop())
	h.engine = New(testDB, scanner, storage, logging.NewNop(), Streams{Out: h.out, Err: h.errOut})
	h.engine.checkWritable = func(string) error { return nil }
	return h
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			tree[rel] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func matchNames(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Name)
	}
	return out
}

func TestPlanDefaultFilterSelectsMatureOnly(t *testing.T) {
	h := newHarness(t, &fakeStorage{}, "pacman.zip", "mk.zip", "unknown.7z")

	matches, err := h.engine.Plan(context.Background(), Options{Directory: h.dir})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, Match{Name: "mk.zip", Identifier: "mk", Category: "Fighter / Versus * Mature *", Size: int64(len("mk.zip"))}, matches[0])
}

func TestPlanSkipsUncategorizedRegardlessOfFilter(t *testing.T) {
	h := newHarness(t, &fakeStorage{}, "pacman.zip", "mk.zip", "unknown.7z")

	for _, filter := range []match.Filter{{}, {Category: ""}, {Category: "/", CaseInsensitive: true}, {Category: "unknown"}} {
		matches, err := h.engine.Plan(context.Background(), Options{Directory: h.dir, Filter: filter})
		require.NoError(t, err)
		assert.NotContains(t, matchNames(matches), "unknown.7z", "filter %v", filter)
	}
}

func TestPlanCustomFilter(t *testing.T) {
	h := newHarness(t, &fakeStorage{}, "pacman.zip", "mk.zip", "sf2.7z", "galaga.chd")

	matches, err := h.engine.Plan(context.Background(), Options{Directory: h.dir, Filter: match.Filter{Category: "Fighter"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"mk.zip", "sf2.7z"}, matchNames(matches))

	matches, err = h.engine.Plan(context.Background(), Options{Directory: h.dir, Filter: match.Filter{Category: "SHOOTER"}})
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = h.engine.Plan(context.Background(), Options{Directory: h.dir, Filter: match.Filter{Category: "SHOOTER", CaseInsensitive: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"galaga.chd"}, matchNames(matches))
}

func TestPlanMissingDirectory(t *testing.T) {
	h := newHarness(t, &fakeStorage{})

	_, err := h.engine.Plan(context.Background(), Options{Directory: filepath.Join(h.dir, "missing")})
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestRunListModeNeverMutates(t *testing.T) {
	h := newHarness(t, fsx.OS{}, "pacman.zip", "mk.zip", "mk2.zip", "video/mk-video.mp4")
	backup := filepath.Join(h.dir, "backup")
	before := snapshot(t, h.dir)

	report, err := h.engine.Run(context.Background(), Options{
		Directory:     h.dir,
		ListOnly:      true,
		IncludeVideos: true,
		BackupDir:     backup,
	})
	require.NoError(t, err)

	assert.Equal(t, before, snapshot(t, h.dir))
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, DispositionList, report.Disposition)
	assert.Empty(t, report.Actions)
	assert.Equal(t, "Found 2 matching games:\nmk.zip - Fighter / Versus * Mature *\nmk2.zip - Fighter / Versus * Mature *\n", h.out.String())
	assert.Empty(t, h.errOut.String())
}

func TestRunListModeNothingFound(t *testing.T) {
	h := newHarness(t, &fakeStorage{}, "pacman.zip")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, ListOnly: true})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "No matching games found.\n", h.out.String())
}

func TestRunDeleteNothingMatched(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage)

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, "No games to delete.\n", h.out.String())
	assert.Zero(t, storage.calls())
}

func TestRunDeleteRemovesMatchesAndVideos(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "pacman.zip", "mk.zip", "video/mk-video.mp4", "video/mk-video.png", "video/pacman-video.mp4")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(h.dir, "mk.zip"),
		filepath.Join(h.dir, "video", "mk-video.mp4"),
		filepath.Join(h.dir, "video", "mk-video.png"),
	}, storage.removed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Len(t, report.VideoActions(), 2)
	assert.Contains(t, h.out.String(), "Deleting 1 games...\n")
	assert.Contains(t, h.out.String(), "Deleted: mk.zip\n")
	assert.Contains(t, h.out.String(), "Deleted video: mk-video.mp4\n")
	assert.True(t, strings.HasSuffix(h.out.String(), "Successfully deleted 1 games.\n"))
}

func TestRunDeleteWithoutVideoFlagLeavesVideos(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "mk.zip", "video/mk-video.mp4")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(h.dir, "mk.zip")}, storage.removed)
	assert.Empty(t, report.VideoActions())
}

func TestRunMoveToBackupWithVideos(t *testing.T) {
	h := newHarness(t, fsx.OS{}, "pacman.zip", "mk.zip", "video/mk-video.mp4", "video/pacman-video.mp4")
	backup := filepath.Join(t.TempDir(), "nested", "backup")

	report, err := h.engine.Run(context.Background(), Options{
		Directory:     h.dir,
		IncludeVideos: true,
		BackupDir:     backup,
	})
	require.NoError(t, err)

	assert.Equal(t, DispositionMove, report.Disposition)
	assert.Equal(t, 1, report.Succeeded)

	assert.FileExists(t, filepath.Join(backup, "mk.zip"))
	assert.FileExists(t, filepath.Join(backup, "video", "mk-video.mp4"))
	assert.NoFileExists(t, filepath.Join(h.dir, "mk.zip"))
	assert.NoFileExists(t, filepath.Join(h.dir, "video", "mk-video.mp4"))
	assert.FileExists(t, filepath.Join(h.dir, "pacman.zip"))
	assert.FileExists(t, filepath.Join(h.dir, "video", "pacman-video.mp4"))

	out := h.out.String()
	assert.Contains(t, out, "Created backup directory: "+backup+"\n")
	assert.Contains(t, out, "Moving 1 games...\n")
	assert.Contains(t, out, "Moved: mk.zip -> "+backup+"/\n")
	assert.Contains(t, out, "Moved video: mk-video.mp4 -> "+filepath.Join(backup, "video")+"/\n")
	assert.Contains(t, out, "Successfully moved 1 games.\n")
}

func TestRunMoveCreatesVideoBackupDirLazily(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "mk.zip", "mk2.zip", "video/mk-video.mp4", "video/mk2-video.mp4")
	backup := t.TempDir()

	_, err := h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true, BackupDir: backup})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(backup, "video")}, storage.mkdirs, "existing backup root is reused; video dir created once")
	assert.Len(t, storage.moved, 4)
}

func TestRunMoveWithoutVideosSkipsVideoBackupDir(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "mk.zip", "video/mk-video.mp4")
	backup := t.TempDir()

	_, err := h.engine.Run(context.Background(), Options{Directory: h.dir, BackupDir: backup})
	require.NoError(t, err)

	assert.Empty(t, storage.mkdirs)
	assert.Equal(t, [][2]string{{filepath.Join(h.dir, "mk.zip"), filepath.Join(backup, "mk.zip")}}, storage.moved)
}

func TestRunPartialFailureContinues(t *testing.T) {
	storage := &fakeStorage{failRemove: map[string]error{"mk.zip": fs.ErrPermission}}
	h := newHarness(t, storage, "mk.zip", "mk2.zip", "kinst.zip")
	h.engine.db = catver.New(map[string]string{
		"mk":    "Fighter * Mature *",
		"mk2":   "Fighter * Mature *",
		"kinst": "Fighter * Mature *",
	})

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, report.Status)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{filepath.Join(h.dir, "kinst.zip"), filepath.Join(h.dir, "mk2.zip")}, storage.removed)
	assert.Equal(t, "Error deleting mk.zip: permission denied\n", h.errOut.String())
	assert.Contains(t, h.out.String(), "Successfully deleted 2 games.\n")

	var actionErr *ActionError
	for _, a := range report.Actions {
		if a.Name == "mk.zip" {
			require.ErrorAs(t, a.Err, &actionErr)
			assert.ErrorIs(t, a.Err, fs.ErrPermission)
		}
	}
	require.NotNil(t, actionErr)
	assert.Equal(t, "delete", actionErr.Op)
}

func TestRunPerFileFailuresStayOutOfWarnLog(t *testing.T) {
	storage := &fakeStorage{failRemove: map[string]error{"mk.zip": fs.ErrPermission, "mk2-video.mp4": fs.ErrPermission}}
	h := newHarness(t, storage, "mk.zip", "mk2.zip", "video/mk2-video.mp4")

	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Level: "warn", OutputPaths: []string{logPath}})
	require.NoError(t, err)
	h.engine.logger = logger

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, h.errOut.String(), "Error deleting mk.zip: permission denied\n")
	assert.Contains(t, h.errOut.String(), "Error deleting video mk2-video.mp4: permission denied\n")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Empty(t, string(content), "per-file failures are reported once, on the error stream")
}

func TestRunLogsSizesAndSummaryAtInfo(t *testing.T) {
	h := newHarness(t, &fakeStorage{}, "mk.zip")
	logPath := filepath.Join(t.TempDir(), "info.log")
	logger, err := logging.New(logging.Options{Level: "info", OutputPaths: []string{logPath}})
	require.NoError(t, err)
	h.engine.logger = logging.NewComponentLogger(logger, "curate")

	_, err = h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true})
	require.NoError(t, err)

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	log := string(content)
	assert.Contains(t, log, "curate: rom deleted")
	assert.Contains(t, log, fmt.Sprintf("size=%d", len("mk.zip")))
	assert.Contains(t, log, "curate: run finished")
	assert.Contains(t, log, "videos=true")
	assert.Contains(t, log, "elapsed=")
}

func TestRunPartialFailureOnRealFilesystem(t *testing.T) {
	h := newHarness(t, fsx.OS{}, "mk.zip", "mk2.zip")
	require.NoError(t, os.Remove(filepath.Join(h.dir, "mk.zip")))
	// Simulate the file vanishing between scan and action.
	h.engine.scanner = staticScanner{
		Scanner: romset.NewScanner(nil, "", logging.NewNop()),
		roms:    []romset.RomFile{{Name: "mk.zip"}, {Name: "mk2.zip"}},
	}

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, h.errOut.String(), "Error deleting mk.zip:")
	assert.NoFileExists(t, filepath.Join(h.dir, "mk2.zip"))
}

type staticScanner struct {
	*romset.Scanner
	roms []romset.RomFile
}

func (s staticScanner) ListRomFiles(string) []romset.RomFile { return s.roms }

func TestRunVideoFailureDoesNotAffectRomCount(t *testing.T) {
	storage := &fakeStorage{failRemove: map[string]error{"mk-video.mp4": fs.ErrPermission}}
	h := newHarness(t, storage, "mk.zip", "mk2.zip", "video/mk-video.mp4", "video/mk-video.avi", "video/mk2-video.mp4")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []string{
		filepath.Join(h.dir, "mk.zip"),
		filepath.Join(h.dir, "video", "mk-video.avi"),
		filepath.Join(h.dir, "mk2.zip"),
		filepath.Join(h.dir, "video", "mk2-video.mp4"),
	}, storage.removed)
	assert.Equal(t, "Error deleting video mk-video.mp4: permission denied\n", h.errOut.String())

	var failedVideos int
	for _, a := range report.VideoActions() {
		if !a.Succeeded() {
			failedVideos++
		}
	}
	assert.Equal(t, 1, failedVideos)
}

func TestRunVideoBackupDirFailureIsPerVideo(t *testing.T) {
	backup := t.TempDir()
	storage := &fakeStorage{failMkdir: map[string]error{filepath.Join(backup, "video"): fs.ErrPermission}}
	h := newHarness(t, storage, "mk.zip", "video/mk-video.mp4")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true, BackupDir: backup})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Len(t, storage.moved, 1, "only the rom is moved")
	assert.Contains(t, h.errOut.String(), "Error moving video mk-video.mp4:")
}

func TestRunRomFailureSkipsItsVideos(t *testing.T) {
	storage := &fakeStorage{failMove: map[string]error{"mk.zip": errors.New("busy")}}
	h := newHarness(t, storage, "mk.zip", "video/mk-video.mp4")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, IncludeVideos: true, BackupDir: t.TempDir()})
	require.NoError(t, err)

	assert.Zero(t, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, storage.moved)
	assert.Empty(t, report.VideoActions())
	assert.Equal(t, "Error moving mk.zip: busy\n", h.errOut.String())
	assert.Contains(t, h.out.String(), "Successfully moved 0 games.\n")
}

func TestRunMissingDirectoryAborts(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage)
	missing := filepath.Join(h.dir, "missing")

	report, err := h.engine.Run(context.Background(), Options{Directory: missing, BackupDir: filepath.Join(h.dir, "backup")})
	require.ErrorIs(t, err, ErrDirectoryNotFound)

	assert.Equal(t, StatusAborted, report.Status)
	assert.Zero(t, storage.calls())
	assert.Equal(t, "Directory not found: "+missing+"\n", h.errOut.String())
}

func TestRunDirectoryIsAFile(t *testing.T) {
	h := newHarness(t, &fakeStorage{}, "mk.zip")

	_, err := h.engine.Run(context.Background(), Options{Directory: filepath.Join(h.dir, "mk.zip")})
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestRunBackupCreateFailureAborts(t *testing.T) {
	h := newHarness(t, nil, "mk.zip")
	backup := filepath.Join(h.dir, "backup")
	storage := &fakeStorage{failMkdir: map[string]error{backup: fs.ErrPermission}}
	h.engine.storage = storage

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, BackupDir: backup})
	require.ErrorIs(t, err, ErrBackupDirCreate)
	assert.ErrorIs(t, err, fs.ErrPermission)

	assert.Equal(t, StatusAborted, report.Status)
	assert.Empty(t, storage.moved)
	assert.Empty(t, storage.removed)
	assert.Contains(t, h.errOut.String(), "Error creating backup directory "+backup)
}

func TestRunBackupPathIsAFile(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "mk.zip", "backup")

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir, BackupDir: filepath.Join(h.dir, "backup")})
	require.ErrorIs(t, err, ErrBackupDirCreate)
	assert.Equal(t, StatusAborted, report.Status)
	assert.Zero(t, storage.calls())
}

func TestRunCancelledContext(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "mk.zip")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.engine.Run(ctx, Options{Directory: h.dir})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusAborted, report.Status)
	assert.Zero(t, storage.calls())
}

func TestRunWarnsWhenDirectoryNotWritable(t *testing.T) {
	storage := &fakeStorage{}
	h := newHarness(t, storage, "mk.zip")
	var checked string
	h.engine.checkWritable = func(dir string) error {
		checked = dir
		return fs.ErrPermission
	}

	report, err := h.engine.Run(context.Background(), Options{Directory: h.dir})
	require.NoError(t, err)
	assert.Equal(t, h.dir, checked)
	assert.Equal(t, 1, report.Succeeded, "preflight only warns")
}

func TestOptionsDisposition(t *testing.T) {
	assert.Equal(t, DispositionList, Options{ListOnly: true, BackupDir: "/b"}.Disposition())
	assert.Equal(t, DispositionMove, Options{BackupDir: "/b"}.Disposition())
	assert.Equal(t, DispositionDelete, Options{}.Disposition())
}
