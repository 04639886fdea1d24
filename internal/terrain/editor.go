package terrain

import (
	"fmt"

	"github.com/Faultbox/midgard-terrain/internal/materials"
)

// Editor changes a block's maps through their lock protocol and tracks
// whether the geometry needs saving. One editor per block; it is not safe
// for concurrent use.
type Editor struct {
	block Block
}

// NewEditor returns an editor for b.
func NewEditor(b Block) *Editor {
	return &Editor{block: b}
}

// Block returns the edited block.
func (e *Editor) Block() Block { return e.block }

// Dirty reports whether a committed edit has not been saved yet.
func (e *Editor) Dirty() bool { return e.block.base().dirty.Load() }

// EditHeights write-locks the height field for fn. The extrema and bounding
// box are refreshed when fn returns.
func (e *Editor) EditHeights(fn func(hf *HeightField) error) error {
	hf := e.block.HeightField()
	if err := hf.Lock(false); err != nil {
		return err
	}
	ferr := fn(hf)
	if err := hf.Unlock(); err != nil {
		return err
	}
	return ferr
}

// SetHeight changes one height sample.
func (e *Editor) SetHeight(x, z int, height float32) error {
	return e.EditHeights(func(hf *HeightField) error {
		return hf.SetHeightAtSample(x, z, height)
	})
}

// EditHoles write-locks the hole mask for fn.
func (e *Editor) EditHoles(fn func(m *HoleMask) error) error {
	m := e.block.HoleMask()
	if err := m.Lock(false); err != nil {
		return err
	}
	ferr := fn(m)
	if err := m.Unlock(); err != nil {
		return err
	}
	return ferr
}

// SetHole marks or clears one hole cell.
func (e *Editor) SetHole(cx, cz int, hole bool) error {
	return e.EditHoles(func(m *HoleMask) error {
		return m.SetHole(cx, cz, hole)
	})
}

// EditMaterials write-locks the material map for fn. The dominant map is
// rebuilt when fn returns.
func (e *Editor) EditMaterials(fn func(m *MaterialMap) error) error {
	m := e.block.MaterialMap()
	if m == nil {
		return fmt.Errorf("block %s has no material map", e.block.ResourcePath())
	}
	if err := m.Lock(false); err != nil {
		return err
	}
	ferr := fn(m)
	if err := m.Unlock(); err != nil {
		return err
	}
	return ferr
}

// SetLayerBlend changes one blend sample of a texture layer.
func (e *Editor) SetLayerBlend(layer, x, z int, value uint8) error {
	return e.EditMaterials(func(m *MaterialMap) error {
		return m.SetBlend(layer, x, z, value)
	})
}

// ApplyMaterials refreshes layer kinds and weights from reg, picking up
// registry changes made after the block was loaded.
func (e *Editor) ApplyMaterials(reg *materials.Registry) error {
	return e.EditMaterials(func(m *MaterialMap) error {
		return m.ApplyMaterials(reg)
	})
}

// Save writes the block as current-format sections into dir and clears
// the dirty flag.
func (e *Editor) Save(dir string) error {
	if err := SaveCurrent(e.block, dir); err != nil {
		return err
	}
	e.block.base().dirty.Store(false)
	return nil
}
