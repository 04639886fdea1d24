package terrain

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/Faultbox/midgard-terrain/internal/assets"
	"github.com/Faultbox/midgard-terrain/pkg/formats"
)

const missingTexture = "helpers/maps/aid_missing.dds"

// flatSamples returns w*h samples at height.
func flatSamples(w, h int, height float32) []float32 {
	s := make([]float32, w*h)
	for i := range s {
		s[i] = height
	}
	return s
}

// legacyBlock describes a legacy block for tests.
type legacyBlock struct {
	width, height int
	spacing       float32
	heights       []float32 // border included; nil means flat 10
	textures      []string
	blends        func(layer, x, z int) uint8 // per sample, border included
	holes         []bool
}

func (lb legacyBlock) bytes(t *testing.T) []byte {
	t.Helper()
	lt := &formats.LegacyTerrain{
		Header: formats.LegacyHeader{
			HeightMapWidth:  uint32(lb.width),
			HeightMapHeight: uint32(lb.height),
			Spacing:         lb.spacing,
		},
		Textures: lb.textures,
		Heights:  lb.heights,
		Holes:    lb.holes,
	}
	if lt.Heights == nil {
		lt.Heights = flatSamples(lb.width, lb.height, 10)
	}
	if lb.blends != nil {
		lt.Blends = make([]uint32, lb.width*lb.height)
		for z := 0; z < lb.height; z++ {
			for x := 0; x < lb.width; x++ {
				var w [formats.LegacyTextureCount]uint8
				for i := range w {
					w[i] = lb.blends(i, x, z)
				}
				lt.Blends[z*lb.width+x] = formats.PackBlends(w)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, formats.WriteLegacyTerrain(&buf, lt))
	return buf.Bytes()
}

// currentBlock describes a current-format block for tests.
type currentBlock struct {
	width, height int
	heights       []float32 // nil means flat 10
	holes         *formats.Holes
	layers        []*formats.Layer
}

func (cb currentBlock) addTo(t *testing.T, fsys fstest.MapFS, dir string) {
	t.Helper()
	samples := cb.heights
	if samples == nil {
		samples = flatSamples(cb.width, cb.height, 10)
	}
	var buf bytes.Buffer
	require.NoError(t, formats.WriteHeights(&buf, &formats.Heights{
		Header: formats.HeightsHeader{
			Width:       uint32(cb.width),
			Height:      uint32(cb.height),
			Compression: formats.CompressionZlib,
		},
		Samples: samples,
	}))
	fsys[dir+"/"+formats.HeightsSection] = &fstest.MapFile{Data: bytes.Clone(buf.Bytes())}

	holes := cb.holes
	if holes == nil {
		holes = &formats.Holes{Header: formats.HolesHeader{
			Width:  uint32(cb.width - 3),
			Height: uint32(cb.height - 3),
			Flags:  formats.HoleFlagNoHoles,
		}}
	}
	buf.Reset()
	require.NoError(t, formats.WriteHoles(&buf, holes))
	fsys[dir+"/"+formats.HolesSection] = &fstest.MapFile{Data: bytes.Clone(buf.Bytes())}

	for i, l := range cb.layers {
		buf.Reset()
		require.NoError(t, formats.WriteLayer(&buf, l))
		fsys[dir+"/"+formats.LayerSectionName(i)] = &fstest.MapFile{Data: bytes.Clone(buf.Bytes())}
	}
}

func uniformLayer(texture string, w, h int, value uint8) *formats.Layer {
	l := &formats.Layer{
		Header:      formats.LayerHeader{Width: uint32(w), Height: uint32(h)},
		TextureName: texture,
		Blends:      make([]uint8, w*h),
	}
	for i := range l.Blends {
		l.Blends[i] = value
	}
	return l
}

func newResources(fsys fstest.MapFS) *assets.Manager {
	m := assets.NewManager()
	m.AddFS(fsys)
	return m
}

func testOptions() LoadOptions {
	return LoadOptions{MissingTexture: missingTexture}
}

// e2eBlock is a 6x6 legacy block, spacing 1, flat at height 10: three
// visible cells on a 3m footprint.
func e2eBlock(t *testing.T) Block {
	t.Helper()
	fsys := fstest.MapFS{
		"spaces/test/0000ffff/terrain": {Data: legacyBlock{width: 6, height: 6, spacing: 1}.bytes(t)},
	}
	b, err := LoadBlock(newResources(fsys), "spaces/test/0000ffff/terrain", testOptions())
	require.NoError(t, err)
	return b
}
