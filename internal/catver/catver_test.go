package catver

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleINI = `;; catver.ini 0.262 / 24-Jan-24
[FOLDER_SETTINGS]
RootFolderIcon mame
SubFolderIcon folder

[ROOT_FOLDER]

[Category]
pacman=Maze / Collect
mk=Fighter / Versus * Mature *
  galaga = Shooter / Flying Vertical
; commented=Ignored
=orphan value
noequals
sf2=Fighter / Versus
formula=Misc / Equation = 42
pacman=Maze / Collect (updated)

[VerAdded]
sf2=0.01
later=0.100

[Category]
reopened=Should Not Count
`

func TestParseCollectsCategorySection(t *testing.T) {
	db := Parse(sampleINI)

	got, ok := db.Lookup("mk")
	require.True(t, ok)
	assert.Equal(t, "Fighter / Versus * Mature *", got)

	got, ok = db.Lookup("sf2")
	require.True(t, ok)
	assert.Equal(t, "Fighter / Versus", got, "later sections must not overwrite category entries")

	assert.Equal(t, 5, db.Len())
}

func TestParseSplitsOnFirstEquals(t *testing.T) {
	db := Parse(sampleINI)

	got, ok := db.Lookup("formula")
	require.True(t, ok)
	assert.Equal(t, "Misc / Equation = 42", got)
}

func TestParseTrimsLinesBeforeSplitting(t *testing.T) {
	db := Parse(sampleINI)

	got, ok := db.Lookup("galaga ")
	require.True(t, ok, "only the whole line is trimmed, not the key")
	assert.Equal(t, " Shooter / Flying Vertical", got)
}

func TestParseLastValueWins(t *testing.T) {
	db := Parse(sampleINI)

	got, ok := db.Lookup("pacman")
	require.True(t, ok)
	assert.Equal(t, "Maze / Collect (updated)", got)
}

func TestParseIgnoresMalformedAndCommentLines(t *testing.T) {
	db := Parse(sampleINI)

	for _, key := range []string{"", "noequals", "; commented", "commented"} {
		_, ok := db.Lookup(key)
		assert.False(t, ok, "unexpected entry for %q", key)
	}
}

func TestParseSectionDoesNotResume(t *testing.T) {
	db := Parse(sampleINI)

	for _, key := range []string{"later", "reopened", "RootFolderIcon mame"} {
		_, ok := db.Lookup(key)
		assert.False(t, ok, "entry %q is outside the first [Category] section", key)
	}
}

func TestParseEntriesBeforeAnySection(t *testing.T) {
	db := Parse("pacman=Maze\n[Category]\nmk=Fighter\n")

	_, ok := db.Lookup("pacman")
	assert.False(t, ok)
	_, ok = db.Lookup("mk")
	assert.True(t, ok)
}

func TestParseHandlesCRLF(t *testing.T) {
	db := Parse("[Category]\r\nmk=Fighter * Mature *\r\n[VerAdded]\r\nmk=0.1\r\n")

	got, ok := db.Lookup("mk")
	require.True(t, ok)
	assert.Equal(t, "Fighter * Mature *", got)
}

func TestParseIsIdempotent(t *testing.T) {
	assert.Equal(t, Parse(sampleINI).Entries(), Parse(sampleINI).Entries())
}

func TestParseEmptyInput(t *testing.T) {
	assert.Zero(t, Parse("").Len())
}

func TestNewCopiesEntries(t *testing.T) {
	src := map[string]string{"mk": "Fighter"}
	db := New(src)
	src["mk"] = "changed"

	got, _ := db.Lookup("mk")
	assert.Equal(t, "Fighter", got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrUnreadable))
}

func TestLoadDirectoryIsUnreadable(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestLoadInvalidUTF8IsUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[Category]\nmk=\xff\xfe\xfd bad\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestLoadPermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("[Category]\n"), 0o000))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestLoadStripsUTF8BOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("[Category]\nmk=Fighter * Mature *\n")...)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	db, err := Load(path)
	require.NoError(t, err)
	got, ok := db.Lookup("mk")
	require.True(t, ok)
	assert.Equal(t, "Fighter * Mature *", got)
}

func TestLoadDecodesUTF16LE(t *testing.T) {
	text := "[Category]\nmk=Fighter * Mature *\n"
	content := []byte{0xFF, 0xFE}
	for _, r := range text {
		content = append(content, byte(r), 0)
	}
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	db, err := Load(path)
	require.NoError(t, err)
	_, ok := db.Lookup("mk")
	assert.True(t, ok)
}

func TestLoadRejectsUnpairedUTF16Surrogate(t *testing.T) {
	text := "[Category]\nmk=Fighter "
	content := []byte{0xFF, 0xFE}
	for _, r := range text {
		content = append(content, byte(r), 0)
	}
	content = append(content, 0x00, 0xD8, '\n', 0)
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadable))
}

func TestDecodeUTF16BE(t *testing.T) {
	text := "[Category]\nmk=Fighter\n"
	content := []byte{0xFE, 0xFF}
	for _, r := range text {
		content = append(content, 0, byte(r))
	}

	got, err := Decode(content)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestDefaultPathIsBesideExecutable(t *testing.T) {
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, FileName, filepath.Base(path))
	assert.True(t, filepath.IsAbs(path))
}
