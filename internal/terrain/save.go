package terrain

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/Faultbox/midgard-terrain/pkg/formats"
)

// SaveCurrent writes b as current-format sections into dir, creating it if
// needed. Legacy blocks are converted; their footprint becomes
// BlockSizeMetres when loaded back.
func SaveCurrent(b Block, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating block directory: %w", err)
	}

	hf := b.HeightField()
	var buf bytes.Buffer
	err := formats.WriteHeights(&buf, &formats.Heights{
		Header: formats.HeightsHeader{
			Width:       uint32(hf.Width()),
			Height:      uint32(hf.Height()),
			MinHeight:   hf.MinHeight(),
			MaxHeight:   hf.MaxHeight(),
			Compression: formats.CompressionZlib,
		},
		Samples: hf.Samples(),
	})
	if err != nil {
		return fmt.Errorf("encoding heights: %w", err)
	}
	if err := writeSection(dir, formats.HeightsSection, buf.Bytes()); err != nil {
		return err
	}

	holes, err := b.HoleMask().Bytes()
	if err != nil {
		return fmt.Errorf("encoding holes: %w", err)
	}
	if err := writeSection(dir, formats.HolesSection, holes); err != nil {
		return err
	}

	var layers []Layer
	if mm := b.MaterialMap(); mm != nil {
		layers = mm.Layers()
	}
	for i, l := range layers {
		buf.Reset()
		if err := formats.WriteLayer(&buf, layerSection(l)); err != nil {
			return fmt.Errorf("encoding layer %d: %w", i+1, err)
		}
		if err := writeSection(dir, formats.LayerSectionName(i), buf.Bytes()); err != nil {
			return err
		}
	}

	// Drop stale layers left by an earlier save with more layers.
	for i := len(layers); ; i++ {
		stale := filepath.Join(dir, formats.LayerSectionName(i))
		if _, err := os.Stat(stale); err != nil {
			break
		}
		if err := os.Remove(stale); err != nil {
			return fmt.Errorf("removing stale layer: %w", err)
		}
	}
	return nil
}

func layerSection(l Layer) *formats.Layer {
	sec := &formats.Layer{TextureName: l.TextureName}
	if l.Blends == nil {
		sec.Header.Width, sec.Header.Height = 1, 1
		sec.Blends = []uint8{0}
		return sec
	}
	r := l.Blends.Bounds()
	sec.Header.Width = uint32(r.Dx())
	sec.Header.Height = uint32(r.Dy())
	sec.Blends = make([]uint8, r.Dx()*r.Dy())
	for z := r.Min.Y; z < r.Max.Y; z++ {
		row := l.Blends.Pix[l.Blends.PixOffset(r.Min.X, z):]
		copy(sec.Blends[(z-r.Min.Y)*r.Dx():], row[:r.Dx()])
	}
	return sec
}

// writeSection replaces dir/name atomically.
func writeSection(dir, name string, data []byte) error {
	target := filepath.Join(dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s section: %w", name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s section: %w", name, err)
	}
	return nil
}

// grayFromBlends wraps a row-major blend slice as an image.
func grayFromBlends(blends []uint8, width, height int) *image.Gray {
	return &image.Gray{Pix: blends, Stride: width, Rect: image.Rect(0, 0, width, height)}
}
