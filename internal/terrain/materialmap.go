package terrain

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/Faultbox/midgard-terrain/internal/materials"
)

// Layer is one texture layer of a block: its blend image and the weights
// used when deciding which layer dominates a sample.
type Layer struct {
	// TextureName is the texture the block references. Material kinds and
	// weights are looked up by it and it is what gets saved.
	TextureName string
	// Texture is the texture to render, the fallback when TextureName is
	// missing from the resources.
	Texture string
	Blends  *image.Gray
	Weight  float32
	Kind    uint8
}

// MaterialMap stores the dominant texture layer for every sample of a
// block, so collision can tag hits with a material kind.
type MaterialMap struct {
	width, height int
	sizeX, sizeZ  float32
	layers        []Layer
	dominant      []uint8

	lock     mapLock
	onCommit func()
}

// NewMaterialMap builds the dominant map at width x height over a block of
// sizeX x sizeZ metres. A non-positive resolution uses the largest layer's.
// Layers at other resolutions are resampled bicubically.
func NewMaterialMap(layers []Layer, width, height int, sizeX, sizeZ float32) (*MaterialMap, error) {
	if len(layers) > 256 {
		return nil, fmt.Errorf("%d texture layers, at most 256 supported", len(layers))
	}
	if width <= 0 || height <= 0 {
		for _, l := range layers {
			if l.Blends == nil {
				continue
			}
			b := l.Blends.Bounds()
			width = max(width, b.Dx())
			height = max(height, b.Dy())
		}
	}
	width = max(width, 1)
	height = max(height, 1)

	m := &MaterialMap{
		width:  width,
		height: height,
		sizeX:  sizeX,
		sizeZ:  sizeZ,
		layers: layers,
	}
	m.recompute()
	return m, nil
}

// Width returns the dominant map resolution across.
func (m *MaterialMap) Width() int { return m.width }

// Height returns the dominant map resolution down.
func (m *MaterialMap) Height() int { return m.height }

// Layers returns the texture layers.
func (m *MaterialMap) Layers() []Layer { return m.layers }

// DominantLayer returns the index of the dominant layer at local (x, z),
// or -1 when the block has no layers.
func (m *MaterialMap) DominantLayer(x, z float32) int {
	if len(m.layers) == 0 {
		return -1
	}
	ix := m.sample(x, m.sizeX, m.width)
	iz := m.sample(z, m.sizeZ, m.height)
	return int(m.dominant[iz*m.width+ix])
}

// TextureAt returns the dominant texture name at local (x, z).
func (m *MaterialMap) TextureAt(x, z float32) string {
	if i := m.DominantLayer(x, z); i >= 0 {
		return m.layers[i].TextureName
	}
	return ""
}

// MaterialKind returns the material kind of the dominant layer at local (x, z).
func (m *MaterialMap) MaterialKind(x, z float32) uint8 {
	if i := m.DominantLayer(x, z); i >= 0 {
		return m.layers[i].Kind
	}
	return materials.Unknown
}

func (m *MaterialMap) sample(v, size float32, n int) int {
	if n == 1 || size <= 0 {
		return 0
	}
	return clampInt(int(v/size*float32(n-1)+0.5), 0, n-1)
}

// Lock locks the map for reading or editing.
func (m *MaterialMap) Lock(readOnly bool) error {
	return m.lock.lock(readOnly)
}

// Unlock releases the lock. Releasing a write lock rebuilds the dominant map.
func (m *MaterialMap) Unlock() error {
	wrote, err := m.lock.unlock()
	if err != nil {
		return err
	}
	if wrote {
		m.recompute()
		if m.onCommit != nil {
			m.onCommit()
		}
	}
	return nil
}

// SetBlend changes one blend sample of a layer at the layer's own
// resolution. The map must be write locked.
func (m *MaterialMap) SetBlend(layer, x, z int, value uint8) error {
	if err := m.lock.writable(); err != nil {
		return err
	}
	if layer < 0 || layer >= len(m.layers) {
		return fmt.Errorf("layer %d outside %d layers", layer, len(m.layers))
	}
	img := m.layers[layer].Blends
	if img == nil || !(image.Point{X: x, Y: z}.In(img.Bounds())) {
		return fmt.Errorf("blend sample (%d, %d) outside layer %d", x, z, layer)
	}
	img.SetGray(x, z, color.Gray{Y: value})
	return nil
}

// SetLayerWeight changes the dominance weight of a layer. The map must be
// write locked.
func (m *MaterialMap) SetLayerWeight(layer int, weight float32) error {
	if err := m.lock.writable(); err != nil {
		return err
	}
	if layer < 0 || layer >= len(m.layers) {
		return fmt.Errorf("layer %d outside %d layers", layer, len(m.layers))
	}
	m.layers[layer].Weight = weight
	return nil
}

// ApplyMaterials re-reads every layer's kind and weight from reg, keyed
// by the referenced texture name. The map must be write locked.
func (m *MaterialMap) ApplyMaterials(reg *materials.Registry) error {
	if err := m.lock.writable(); err != nil {
		return err
	}
	for i := range m.layers {
		m.layers[i].Weight = reg.Weight(m.layers[i].TextureName)
		m.layers[i].Kind = reg.KindOf(m.layers[i].TextureName)
	}
	return nil
}

// recompute picks, per sample, the layer with the largest weighted blend.
// Ties go to the lower layer index.
func (m *MaterialMap) recompute() {
	n := m.width * m.height
	m.dominant = make([]uint8, n)
	if len(m.layers) == 0 {
		return
	}

	best := make([]float32, n)
	for i := range best {
		best[i] = -1
	}
	for li, l := range m.layers {
		img := resampleGray(l.Blends, m.width, m.height)
		for z := 0; z < m.height; z++ {
			for x := 0; x < m.width; x++ {
				var v float32
				if img != nil {
					v = float32(img.Pix[z*img.Stride+x]) * l.Weight
				}
				k := z*m.width + x
				if v > best[k] {
					best[k] = v
					m.dominant[k] = uint8(li)
				}
			}
		}
	}
}

// resampleGray returns src at width x height with a zero origin.
func resampleGray(src *image.Gray, width, height int) *image.Gray {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Min == (image.Point{}) && b.Dx() == width && b.Dy() == height {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
