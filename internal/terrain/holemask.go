package terrain

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Faultbox/midgard-terrain/pkg/formats"
)

// HoleMask marks which cells of a block have no terrain. A mask whose cells
// are all solid or all holes drops its grid and keeps only the flag.
type HoleMask struct {
	width, height int
	sizeX, sizeZ  float32
	cells         []bool // nil when degenerate

	noHoles  bool
	allHoles bool

	lock     mapLock
	onCommit func()
}

// NewHoleMask creates a width x height mask covering sizeX x sizeZ metres.
// cells is row-major; nil means no holes.
func NewHoleMask(width, height int, sizeX, sizeZ float32, cells []bool) (*HoleMask, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: hole mask %dx%d", formats.ErrInvalidDimensions, width, height)
	}
	m := &HoleMask{width: width, height: height, sizeX: sizeX, sizeZ: sizeZ}
	if cells == nil {
		m.noHoles = true
		return m, nil
	}
	if len(cells) != width*height {
		return nil, fmt.Errorf("%w: %d hole cells, want %d", formats.ErrTruncatedTerrainData, len(cells), width*height)
	}
	m.cells = cells
	m.recalcHoles()
	return m, nil
}

// LoadHoleMask parses a holes section covering sizeX x sizeZ metres.
func LoadHoleMask(data []byte, sizeX, sizeZ float32) (*HoleMask, error) {
	sec, err := formats.ParseHoles(data)
	if err != nil {
		return nil, err
	}
	m := &HoleMask{
		width:  int(sec.Header.Width),
		height: int(sec.Header.Height),
		sizeX:  sizeX,
		sizeZ:  sizeZ,
	}
	switch {
	case sec.AllHoles():
		m.allHoles = true
	case sec.NoHoles():
		m.noHoles = true
	default:
		m.cells = sec.Cells
		m.recalcHoles()
	}
	return m, nil
}

// Save writes the mask as a holes section. Degenerate masks are written
// as a bare header.
func (m *HoleMask) Save(w io.Writer) error {
	sec := &formats.Holes{
		Header: formats.HolesHeader{Width: uint32(m.width), Height: uint32(m.height)},
		Cells:  m.cells,
	}
	switch {
	case m.allHoles:
		sec.Header.Flags = formats.HoleFlagAllHoles
	case m.noHoles:
		sec.Header.Flags = formats.HoleFlagNoHoles
	}
	return formats.WriteHoles(w, sec)
}

// Bytes returns the mask serialised as a holes section.
func (m *HoleMask) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Width returns the number of cells across.
func (m *HoleMask) Width() int { return m.width }

// Height returns the number of cells down.
func (m *HoleMask) Height() int { return m.height }

// NoHoles reports whether every cell is solid.
func (m *HoleMask) NoHoles() bool { return m.noHoles }

// AllHoles reports whether every cell is a hole.
func (m *HoleMask) AllHoles() bool { return m.allHoles }

// Cells returns the backing grid, or nil for a degenerate mask.
func (m *HoleMask) Cells() []bool { return m.cells }

// HoleAtCell reports whether cell (cx, cz) is a hole. Indices are clamped.
func (m *HoleMask) HoleAtCell(cx, cz int) bool {
	if m.cells == nil {
		return m.allHoles
	}
	cx = clampInt(cx, 0, m.width-1)
	cz = clampInt(cz, 0, m.height-1)
	return m.cells[cz*m.width+cx]
}

// HoleAt reports whether local (x, z) falls in a hole.
func (m *HoleMask) HoleAt(x, z float32) bool {
	if m.noHoles {
		return false
	}
	if m.allHoles {
		return true
	}
	return m.HoleAtCell(m.cellX(x), m.cellZ(z))
}

// HoleInRect reports whether any cell overlapping the local rectangle
// (xs, zs)-(xe, ze) is a hole.
func (m *HoleMask) HoleInRect(xs, zs, xe, ze float32) bool {
	if m.noHoles {
		return false
	}
	if m.allHoles {
		return true
	}
	x0, x1 := m.cellX(min(xs, xe)), m.cellX(max(xs, xe))
	z0, z1 := m.cellZ(min(zs, ze)), m.cellZ(max(zs, ze))
	for cz := z0; cz <= z1; cz++ {
		for cx := x0; cx <= x1; cx++ {
			if m.cells[cz*m.width+cx] {
				return true
			}
		}
	}
	return false
}

func (m *HoleMask) cellX(x float32) int {
	return clampInt(int(x*float32(m.width)/m.sizeX), 0, m.width-1)
}

func (m *HoleMask) cellZ(z float32) int {
	return clampInt(int(z*float32(m.height)/m.sizeZ), 0, m.height-1)
}

// Lock locks the mask for reading or editing. A write lock on a degenerate
// mask materialises its grid.
func (m *HoleMask) Lock(readOnly bool) error {
	if err := m.lock.lock(readOnly); err != nil {
		return err
	}
	if !readOnly && m.cells == nil {
		m.cells = make([]bool, m.width*m.height)
		if m.allHoles {
			for i := range m.cells {
				m.cells[i] = true
			}
		}
	}
	return nil
}

// Unlock releases the lock. Releasing a write lock re-derives the
// degenerate flags and notifies the owning block.
func (m *HoleMask) Unlock() error {
	wrote, err := m.lock.unlock()
	if err != nil {
		return err
	}
	if wrote {
		m.recalcHoles()
		if m.onCommit != nil {
			m.onCommit()
		}
	}
	return nil
}

// SetHole marks cell (cx, cz). The mask must be write locked.
func (m *HoleMask) SetHole(cx, cz int, hole bool) error {
	if err := m.lock.writable(); err != nil {
		return err
	}
	if cx < 0 || cx >= m.width || cz < 0 || cz >= m.height {
		return fmt.Errorf("hole cell (%d, %d) outside %dx%d mask", cx, cz, m.width, m.height)
	}
	m.cells[cz*m.width+cx] = hole
	return nil
}

// recalcHoles sets the degenerate flags and frees a uniform grid.
func (m *HoleMask) recalcHoles() {
	some, all := false, true
	for _, h := range m.cells {
		if h {
			some = true
		} else {
			all = false
		}
	}
	m.noHoles = !some
	m.allHoles = some && all
	if m.noHoles || m.allHoles {
		m.cells = nil
	}
}
