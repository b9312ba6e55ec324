package model

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("GGUF"), 0o644))
}

func newTestLocator(locations ...string) *Locator {
	return &Locator{
		Locations: locations,
		Suffix:    DefaultSuffix,
		Marker:    DefaultMarker,
	}
}

func TestLocator_ExplicitPathIsTrusted(t *testing.T) {
	l := newTestLocator()

	got, err := l.Resolve("/does/not/exist.bin")
	require.NoError(t, err)
	assert.Equal(t, Resolved{Path: "/does/not/exist.bin", Origin: OriginExplicit}, got)
	assert.True(t, got.IsExplicit())
}

func TestLocator_Priority(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a", "absent.bin")
	b := filepath.Join(root, "b")
	c := filepath.Join(root, "c", "present.bin")

	touch(t, filepath.Join(b, "weights-chat.bin"))
	touch(t, c)

	got, err := newTestLocator(a, b, c).Resolve("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b, "weights-chat.bin"), got.Path)
	assert.Equal(t, OriginDiscovered, got.Origin)
	assert.False(t, got.IsExplicit())
}

func TestLocator_FileLocationWinsImmediately(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "llama-2-7b-chat.ggmlv3.q4_1.bin")
	dir := filepath.Join(root, "models")
	touch(t, file)
	touch(t, filepath.Join(dir, "other-chat.bin"))

	got, err := newTestLocator(file, dir).Find()
	require.NoError(t, err)
	assert.Equal(t, file, got)
}

func TestLocator_FileLocationNeedsNoMarker(t *testing.T) {
	file := filepath.Join(t.TempDir(), "weights.gguf")
	touch(t, file)

	got, err := newTestLocator(file).Find()
	require.NoError(t, err)
	assert.Equal(t, file, got)
}

func TestLocator_DirectoryFilter(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "model.bin", "model-chat.bin"} {
		touch(t, filepath.Join(dir, name))
	}

	got, err := newTestLocator(dir).Find()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "model-chat.bin"), got)
}

func TestLocator_DirectoryRejectsDirectoriesAndPartialMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested-chat.bin"), 0o755))
	touch(t, filepath.Join(dir, "model-chat.gguf"))
	touch(t, filepath.Join(dir, "model-chat.bin.part"))
	touch(t, filepath.Join(dir, "chat.bin"))

	_, err := newTestLocator(dir).Find()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocator_ScanIsNotRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "sub", "deep-chat.bin"))

	_, err := newTestLocator(dir).Find()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocator_EmptyDirectoryFallsThrough(t *testing.T) {
	root := t.TempDir()
	empty := filepath.Join(root, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	next := filepath.Join(root, "next")
	touch(t, filepath.Join(next, "llama-chat.bin"))

	got, err := newTestLocator(empty, next).Find()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(next, "llama-chat.bin"), got)
}

func TestLocator_AccessErrorIsSoft(t *testing.T) {
	root := t.TempDir()
	regular := filepath.Join(root, "plain")
	touch(t, regular)
	// Stat through a regular file fails with ENOTDIR, not ENOENT.
	broken := filepath.Join(regular, "child")
	good := filepath.Join(root, "good-chat.bin")
	touch(t, good)

	got, err := newTestLocator(broken, good).Find()
	require.NoError(t, err)
	assert.Equal(t, good, got)
}

func TestLocator_Exhaustion(t *testing.T) {
	root := t.TempDir()

	got, err := newTestLocator(filepath.Join(root, "x.bin"), filepath.Join(root, "y")).Resolve("")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, got.Path)

	_, err = newTestLocator().Resolve("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocator_SortCandidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c-chat.bin", "a-chat.bin", "b-chat.bin"} {
		touch(t, filepath.Join(dir, name))
	}

	l := newTestLocator(dir)
	l.SortCandidates = true

	got, err := l.Find()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a-chat.bin"), got)
}

func TestLocator_ManyEntries(t *testing.T) {
	dir := t.TempDir()
	for i := range 3 * scanBatch {
		touch(t, filepath.Join(dir, "noise-"+strconv.Itoa(i)+".txt"))
	}
	touch(t, filepath.Join(dir, "needle-chat.bin"))

	got, err := newTestLocator(dir).Find()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "needle-chat.bin"), got)
}

func TestNewLocator(t *testing.T) {
	l := NewLocator("/opt/models")

	assert.Equal(t, append(DefaultSearchLocations(), "/opt/models"), l.Locations)
	assert.Equal(t, ".bin", l.Suffix)
	assert.Equal(t, "-chat", l.Marker)
	assert.False(t, l.SortCandidates)

	// The default list is not shared.
	l.Locations[0] = "mutated"
	assert.NotEqual(t, "mutated", DefaultSearchLocations()[0])
}

func TestLocator_Matches(t *testing.T) {
	l := NewLocator()

	assert.True(t, l.Matches("llama-2-7b-chat.ggmlv3.q4_1.bin"))
	assert.False(t, l.Matches("llama-2-7b.ggmlv3.q4_1.bin"))
	assert.False(t, l.Matches("llama-2-7b-chat.gguf"))
}
