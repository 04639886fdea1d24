package terrain

import (
	"errors"
	"fmt"
	"image"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/internal/materials"
	"github.com/Faultbox/midgard-terrain/pkg/formats"
)

// Block load errors.
var (
	ErrUnknownTerrainVersion = errors.New("unknown terrain block version")
	ErrSectionNotFound       = errors.New("terrain section not found")
)

// Resources is the resource lookup a block is loaded from.
type Resources interface {
	Load(path string) ([]byte, error)
	Exists(path string) bool
	ResolveTexture(name, fallback string) (string, bool)
}

// LoadOptions configures LoadBlock.
type LoadOptions struct {
	// Materials maps textures to material kinds and dominance weights.
	// Nil tags every hit with materials.Unknown.
	Materials *materials.Registry
	// MissingTexture replaces textures that cannot be found.
	MissingTexture string
	// DominantResolution overrides the material map resolution.
	DominantResolution int
	Logger             *zap.Logger
}

func (o LoadOptions) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.Named("terrain")
}

const (
	legacySuffix  = "/terrain"
	currentSuffix = "/terrain2"
)

// TerrainVersion reports which generation resourcePath names, along with the
// path to load it from. A legacy path is upgraded when its "terrain2"
// sibling exists.
func TerrainVersion(res Resources, resourcePath string) (Version, string) {
	p := strings.TrimSuffix(resourcePath, "/")
	switch {
	case strings.HasSuffix(p, legacySuffix):
		if upgraded := p + "2"; res.Exists(path.Join(upgraded, formats.HeightsSection)) {
			return VersionCurrent, upgraded
		}
		if res.Exists(p) {
			return VersionLegacy, p
		}
	case strings.HasSuffix(p, currentSuffix):
		if res.Exists(path.Join(p, formats.HeightsSection)) {
			return VersionCurrent, p
		}
	}
	return VersionUnknown, p
}

// LoadBlock loads the block at resourcePath. Missing textures are replaced
// and logged; anything wrong with heights or holes fails the load.
func LoadBlock(res Resources, resourcePath string, opts LoadOptions) (Block, error) {
	version, p := TerrainVersion(res, resourcePath)

	var (
		b   Block
		err error
	)
	switch version {
	case VersionLegacy:
		b, err = loadLegacy(res, p, opts)
	case VersionCurrent:
		b, err = loadCurrent(res, p, opts)
	default:
		err = ErrUnknownTerrainVersion
	}
	if err != nil {
		return nil, &LoadError{Path: resourcePath, Err: err}
	}

	opts.logger().Debug("terrain block loaded",
		zap.String("path", p),
		zap.Stringer("version", version),
		zap.Int("textures", len(b.Textures())))
	return b, nil
}

func loadLegacy(res Resources, p string, opts LoadOptions) (Block, error) {
	data, err := res.Load(p)
	if err != nil {
		return nil, err
	}
	t, err := formats.ParseLegacyTerrain(data)
	if err != nil {
		return nil, err
	}

	w, h := int(t.Header.HeightMapWidth), int(t.Header.HeightMapHeight)
	heights, err := NewHeightField(w, h, t.Header.Spacing, t.Heights)
	if err != nil {
		return nil, err
	}
	sx, sz := heights.Size()

	holes, err := NewHoleMask(t.Header.HoleWidth(), t.Header.HoleHeight(), sx, sz, t.Holes)
	if err != nil {
		return nil, err
	}

	// Blends are stored per sample with the border; layers keep only the
	// visible samples.
	vw, vh := w-2*border, h-2*border
	textures := make([]string, len(t.Textures))
	layers := make([]Layer, 0, len(t.Textures))
	for i, name := range t.Textures {
		textures[i] = resolveTexture(res, name, opts, p)
		img := image.NewGray(image.Rect(0, 0, vw, vh))
		for z := 0; z < vh; z++ {
			for x := 0; x < vw; x++ {
				img.Pix[z*img.Stride+x] = formats.BlendChannel(t.Blends[(z+border)*w+x+border], i)
			}
		}
		layers = append(layers, newLayer(name, textures[i], img, opts.Materials))
	}

	mats, err := NewMaterialMap(layers, opts.DominantResolution, opts.DominantResolution, sx, sz)
	if err != nil {
		return nil, err
	}

	b := &LegacyBlock{
		baseBlock: newBaseBlock(p, heights, holes, mats, textures),
		spacing:   t.Header.Spacing,
		shadows:   t.Shadows,
		detail:    t.Detail,
		detailW:   int(t.Header.DetailWidth),
		detailH:   int(t.Header.DetailHeight),
	}
	b.attach()
	return b, nil
}

func loadCurrent(res Resources, dir string, opts LoadOptions) (Block, error) {
	data, err := res.Load(path.Join(dir, formats.HeightsSection))
	if err != nil {
		return nil, fmt.Errorf("%w: heights: %w", ErrSectionNotFound, err)
	}
	sec, err := formats.ParseHeights(data)
	if err != nil {
		return nil, fmt.Errorf("heights section: %w", err)
	}
	w, h := int(sec.Header.Width), int(sec.Header.Height)
	cells := w - 2*border - 1
	heights, err := NewHeightField(w, h, BlockSizeMetres/float32(cells), sec.Samples)
	if err != nil {
		return nil, err
	}
	sx, sz := heights.Size()

	data, err = res.Load(path.Join(dir, formats.HolesSection))
	if err != nil {
		return nil, fmt.Errorf("%w: holes: %w", ErrSectionNotFound, err)
	}
	holes, err := LoadHoleMask(data, sx, sz)
	if err != nil {
		return nil, fmt.Errorf("holes section: %w", err)
	}

	var (
		textures []string
		layers   []Layer
	)
	for i := 0; ; i++ {
		name := path.Join(dir, formats.LayerSectionName(i))
		if !res.Exists(name) {
			break
		}
		data, err := res.Load(name)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
		l, err := formats.ParseLayer(data)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
		tex := resolveTexture(res, l.TextureName, opts, dir)
		img := grayFromBlends(l.Blends, int(l.Header.Width), int(l.Header.Height))
		textures = append(textures, tex)
		layers = append(layers, newLayer(l.TextureName, tex, img, opts.Materials))
	}

	mats, err := NewMaterialMap(layers, opts.DominantResolution, opts.DominantResolution, sx, sz)
	if err != nil {
		return nil, err
	}

	b := &CurrentBlock{baseBlock: newBaseBlock(dir, heights, holes, mats, textures)}
	b.attach()
	return b, nil
}

// newLayer keys the material lookup on the referenced name, not the
// resolved one, so a missing texture keeps its kind.
func newLayer(name, resolved string, blends *image.Gray, reg *materials.Registry) Layer {
	return Layer{
		TextureName: name,
		Texture:     resolved,
		Blends:      blends,
		Weight:      reg.Weight(name),
		Kind:        reg.KindOf(name),
	}
}

// resolveTexture returns name if it exists, otherwise the missing texture.
func resolveTexture(res Resources, name string, opts LoadOptions, block string) string {
	resolved, ok := res.ResolveTexture(name, opts.MissingTexture)
	if !ok {
		opts.logger().Warn("terrain texture not found, using fallback",
			zap.String("block", block),
			zap.String("texture", name),
			zap.String("fallback", opts.MissingTexture))
	}
	return resolved
}
