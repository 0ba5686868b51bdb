package frames

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgunny/pyomicron/internal/model"
)

func TestCacheRoundTrip(t *testing.T) {
	manifests := []model.FrameManifest{
		{Files: []model.FileRef{
			{Path: "/data/L1-0-100.gwf", Start: 0, End: 100},
			{Path: "/data/L1-100-100.gwf", Start: 100, End: 200},
		}},
		{Files: []model.FileRef{
			{Path: "/data/L1-500-100.gwf", Start: 500, End: 600},
		}},
	}

	path := filepath.Join(t.TempDir(), "cache", "frames.lcf")
	require.NoError(t, WriteCache(manifests, path))

	refs, err := ReadCache(path)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, model.FileRef{Path: "/data/L1-0-100.gwf", Start: 0, End: 100}, refs[0])
	assert.Equal(t, model.FileRef{Path: "/data/L1-500-100.gwf", Start: 500, End: 600}, refs[2])
}

func TestWriteCacheByteStable(t *testing.T) {
	manifests := []model.FrameManifest{
		{Files: []model.FileRef{{Path: "a.gwf", Start: 0, End: 64}}},
	}
	dir := t.TempDir()

	first := filepath.Join(dir, "one.lcf")
	second := filepath.Join(dir, "two.lcf")
	require.NoError(t, WriteCache(manifests, first))
	require.NoError(t, WriteCache(manifests, second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "a.gwf 0 64\n", string(a))
}

func TestReadCacheMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.lcf")
	require.NoError(t, os.WriteFile(path, []byte("a.gwf 0\n"), 0o644))

	_, err := ReadCache(path)
	assert.Error(t, err)
}

func TestCacheArchiveFiltersWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.lcf")
	content := "a.gwf 0 100\nb.gwf 100 200\nc.gwf 200 300\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	archive := &CacheArchive{Path: path}
	got, err := archive.Find(context.Background(), "L1", model.Range{Start: 150, End: 250})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.gwf", got[0].Path)
	assert.Equal(t, "c.gwf", got[1].Path)
}

func TestDirArchive(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"L1-0-100.gwf",
		"L1-100-100.gwf",
		"L1-900-100.gwf",
		"H1-0-100.gwf",
		"README",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	archive := &DirArchive{Dir: dir}
	got, err := archive.Find(context.Background(), "L1", model.Range{Start: 0, End: 300})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Start)
	assert.Equal(t, int64(100), got[0].End)
	assert.Equal(t, filepath.Join(dir, "L1-0-100.gwf"), got[0].Path)
}

func TestDirArchiveMissingDir(t *testing.T) {
	archive := &DirArchive{Dir: filepath.Join(t.TempDir(), "nope")}
	_, err := archive.Find(context.Background(), "L1", model.Range{Start: 0, End: 100})
	assert.Error(t, err)
}

func TestParseFrameName(t *testing.T) {
	span, ok := parseFrameName("123-456.gwf")
	require.True(t, ok)
	assert.Equal(t, model.Range{Start: 123, End: 579}, span)

	for _, bad := range []string{"123.gwf", "a-b.gwf", "123-0.gwf", "1-2-3.gwf"} {
		_, ok := parseFrameName(bad)
		assert.False(t, ok, bad)
	}
}
