package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadSearchesLastRootFirst(t *testing.T) {
	m := NewManager()
	m.AddFS(fstest.MapFS{
		"maps/a.dds": {Data: []byte("base")},
		"maps/b.dds": {Data: []byte("only-base")},
	})
	m.AddFS(fstest.MapFS{
		"maps/a.dds": {Data: []byte("patch")},
	})

	data, err := m.Load("maps/a.dds")
	require.NoError(t, err)
	assert.Equal(t, "patch", string(data))

	data, err = m.Load(`\maps\b.dds`)
	require.NoError(t, err)
	assert.Equal(t, "only-base", string(data))

	_, err = m.Load("maps/c.dds")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadCaches(t *testing.T) {
	m := NewManager()
	m.AddFS(fstest.MapFS{"x": {Data: []byte("1")}})

	_, err := m.Load("x")
	require.NoError(t, err)
	_, err = m.Load("x")
	require.NoError(t, err)

	hits, misses := m.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	m.Invalidate("x")
	_, err = m.Load("x")
	require.NoError(t, err)
	_, misses = m.Stats()
	assert.Equal(t, 2, misses)
}

func TestCdataArchive(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"terrain2/heights": "H",
		"terrain2/holes":   "O",
	})
	m := NewManager()
	m.AddFS(fstest.MapFS{
		"spaces/arena/0000ffff.cdata": {Data: archive},
	})

	data, err := m.Load("spaces/arena/0000ffff.cdata/terrain2/heights")
	require.NoError(t, err)
	assert.Equal(t, "H", string(data))

	assert.True(t, m.Exists("spaces/arena/0000ffff.cdata/terrain2"))
	assert.True(t, m.Exists("spaces/arena/0000ffff.cdata/terrain2/holes"))
	assert.False(t, m.Exists("spaces/arena/0000ffff.cdata/terrain"))
}

func TestAddRootDirectoryAndZip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "maps"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps", "grass.dds"), []byte("dir"), 0644))

	zipPath := filepath.Join(t.TempDir(), "pack.zip")
	require.NoError(t, os.WriteFile(zipPath, zipBytes(t, map[string]string{"maps/rock.dds": "zip"}), 0644))

	m := NewManager()
	defer m.Close()
	require.NoError(t, m.AddRoot(dir))
	require.NoError(t, m.AddRoot(zipPath))

	data, err := m.Load("maps/grass.dds")
	require.NoError(t, err)
	assert.Equal(t, "dir", string(data))

	data, err = m.Load("maps/rock.dds")
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	assert.Error(t, m.AddRoot(filepath.Join(dir, "missing")))
}

func TestResolveTexture(t *testing.T) {
	m := NewManager()
	m.AddFS(fstest.MapFS{"maps/grass.dds": {Data: []byte{1}}})

	name, ok := m.ResolveTexture("maps/grass.dds", "helpers/missing.dds")
	assert.True(t, ok)
	assert.Equal(t, "maps/grass.dds", name)

	name, ok = m.ResolveTexture("maps/lava.dds", "helpers/missing.dds")
	assert.False(t, ok)
	assert.Equal(t, "helpers/missing.dds", name)
}
