// Package assets resolves terrain resource paths against a stack of roots.
//
// A root is any fs.FS: a directory, a zip archive, or an in-memory tree.
// Paths that pass through a ".cdata" component are also looked up inside
// the zip archive of that name, which is how chunk data is usually shipped.
package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/Faultbox/midgard-terrain/pkg/encoding"
)

// ErrNotFound is returned when no root has the requested resource.
var ErrNotFound = errors.New("resource not found")

const cdataSuffix = ".cdata"

// Manager handles resource loading from its roots.
type Manager struct {
	roots    []fs.FS
	closers  []func() error
	archives map[string]*zip.Reader // keyed by "<root index>:<archive path>"
	cache    *Cache
	mu       sync.RWMutex

	// archiveMu guards archives, which is filled lazily by readers.
	archiveMu sync.Mutex
}

// NewManager creates a new resource manager.
func NewManager() *Manager {
	return &Manager{
		archives: make(map[string]*zip.Reader),
		cache:    NewCache(),
	}
}

// AddRoot adds a directory or zip archive on disk.
// Roots are searched in reverse order (last added = highest priority).
func (m *Manager) AddRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("opening root %s: %w", path, err)
	}
	if info.IsDir() {
		m.AddFS(os.DirFS(path))
		return nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	m.mu.Lock()
	m.roots = append(m.roots, zr)
	m.closers = append(m.closers, zr.Close)
	m.mu.Unlock()
	return nil
}

// AddFS adds an arbitrary file system as a root.
func (m *Manager) AddFS(fsys fs.FS) {
	m.mu.Lock()
	m.roots = append(m.roots, fsys)
	m.mu.Unlock()
}

// Load reads a resource from the roots.
func (m *Manager) Load(path string) ([]byte, error) {
	path = encoding.NormalizeResourcePath(path)

	if data, ok := m.cache.Get(path); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		data, err := m.readFrom(i, path)
		if err == nil {
			m.cache.Set(path, data)
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Exists reports whether a resource (file or section directory) exists.
func (m *Manager) Exists(path string) bool {
	path = encoding.NormalizeResourcePath(path)

	if _, ok := m.cache.Get(path); ok {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.roots) - 1; i >= 0; i-- {
		if _, err := fs.Stat(m.roots[i], path); err == nil {
			return true
		}
		if zr, inner, ok := m.archiveFor(i, path); ok {
			if _, err := fs.Stat(zr, inner); err == nil {
				return true
			}
		}
	}
	return false
}

// ResolveTexture returns name when it exists and fallback otherwise.
// The second result reports whether name was found.
func (m *Manager) ResolveTexture(name, fallback string) (string, bool) {
	if name != "" && m.Exists(name) {
		return name, true
	}
	return fallback, false
}

// Invalidate drops cached bytes under prefix, so edited sections are re-read.
func (m *Manager) Invalidate(prefix string) {
	m.cache.DeletePrefix(encoding.NormalizeResourcePath(prefix))
}

// Stats returns resource cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, closeFn := range m.closers {
		closeFn()
	}
	m.roots = nil
	m.closers = nil
	m.archiveMu.Lock()
	m.archives = make(map[string]*zip.Reader)
	m.archiveMu.Unlock()
	m.cache.Clear()
}

// readFrom reads path from root i, looking inside .cdata archives when the
// plain lookup fails. Caller holds m.mu for reading.
func (m *Manager) readFrom(i int, path string) ([]byte, error) {
	data, err := fs.ReadFile(m.roots[i], path)
	if err == nil {
		return data, nil
	}
	if zr, inner, ok := m.archiveFor(i, path); ok {
		return fs.ReadFile(zr, inner)
	}
	return nil, err
}

// archiveFor splits path at its ".cdata" component and opens that archive.
func (m *Manager) archiveFor(i int, path string) (*zip.Reader, string, bool) {
	idx := strings.Index(path, cdataSuffix+"/")
	if idx < 0 {
		return nil, "", false
	}
	archivePath := path[:idx+len(cdataSuffix)]
	inner := path[idx+len(cdataSuffix)+1:]

	key := fmt.Sprintf("%d:%s", i, archivePath)

	m.archiveMu.Lock()
	defer m.archiveMu.Unlock()

	if zr, ok := m.archives[key]; ok {
		return zr, inner, zr != nil
	}

	raw, err := fs.ReadFile(m.roots[i], archivePath)
	if err != nil {
		return nil, "", false
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		m.archives[key] = nil
		return nil, "", false
	}
	m.archives[key] = zr
	return zr, inner, true
}
