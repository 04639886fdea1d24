package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/midgard-terrain/pkg/encoding"
)

// Terrain block format errors.
var (
	ErrInvalidTerrainHeader    = errors.New("invalid terrain header")
	ErrTruncatedTerrainData    = errors.New("truncated terrain data")
	ErrUnsupportedTextureCount = errors.New("unsupported texture count")
	ErrInvalidDimensions       = errors.New("invalid terrain dimensions")
)

const (
	// LegacyHeaderVersion is the only header version the legacy loader accepts.
	LegacyHeaderVersion = 2

	// LegacyTextureCount is the fixed number of texture layers in a legacy block.
	LegacyTextureCount = 4

	// HeightBorder is the number of extra samples on each side of the visible
	// height grid, kept so normals at the block edge see their neighbours.
	HeightBorder = 1

	maxGridSize        = 4096
	maxTextureNameSize = 1024
)

// LegacyHeader is the fixed 64-slot header at the start of a legacy block.
type LegacyHeader struct {
	Version         uint32
	HeightMapWidth  uint32
	HeightMapHeight uint32
	Spacing         float32
	TextureCount    uint32
	TextureNameSize uint32
	DetailWidth     uint32
	DetailHeight    uint32
	Pad             [56]uint32
}

// HoleWidth returns the number of hole cells across: one per visible height cell.
func (h LegacyHeader) HoleWidth() int {
	return int(h.HeightMapWidth) - 2*HeightBorder - 1
}

// HoleHeight returns the number of hole cells down.
func (h LegacyHeader) HoleHeight() int {
	return int(h.HeightMapHeight) - 2*HeightBorder - 1
}

// LegacyTerrain is a parsed legacy ("terrain") block resource.
type LegacyTerrain struct {
	Header   LegacyHeader
	Textures []string
	Heights  []float32 // HeightMapWidth*HeightMapHeight, row-major, border included
	Blends   []uint32  // one byte per texture packed per sample, texture 0 in the low byte
	Shadows  []uint16
	Holes    []bool // HoleWidth*HoleHeight
	Detail   []uint8
}

// BlendChannel extracts the blend weight of texture i from a packed sample.
func BlendChannel(packed uint32, i int) uint8 {
	return uint8(packed >> (8 * uint(i)))
}

// PackBlends packs four blend weights into one sample.
func PackBlends(w [LegacyTextureCount]uint8) uint32 {
	return uint32(w[0]) | uint32(w[1])<<8 | uint32(w[2])<<16 | uint32(w[3])<<24
}

// ParseLegacyTerrain parses a legacy terrain block from raw bytes.
func ParseLegacyTerrain(data []byte) (*LegacyTerrain, error) {
	r := bytes.NewReader(data)

	var hdr LegacyHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header", ErrTruncatedTerrainData)
	}

	if hdr.Version != LegacyHeaderVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidTerrainHeader, hdr.Version)
	}
	if hdr.HeightMapWidth < 2*HeightBorder+2 || hdr.HeightMapHeight < 2*HeightBorder+2 ||
		hdr.HeightMapWidth > maxGridSize || hdr.HeightMapHeight > maxGridSize {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, hdr.HeightMapWidth, hdr.HeightMapHeight)
	}
	if hdr.Spacing <= 0 {
		return nil, fmt.Errorf("%w: spacing %f", ErrInvalidTerrainHeader, hdr.Spacing)
	}
	if hdr.TextureCount != LegacyTextureCount {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTextureCount, hdr.TextureCount)
	}
	if hdr.TextureNameSize > maxTextureNameSize {
		return nil, fmt.Errorf("%w: texture name size %d", ErrInvalidTerrainHeader, hdr.TextureNameSize)
	}
	if hdr.DetailWidth > maxGridSize || hdr.DetailHeight > maxGridSize {
		return nil, fmt.Errorf("%w: detail %dx%d", ErrInvalidDimensions, hdr.DetailWidth, hdr.DetailHeight)
	}

	t := &LegacyTerrain{Header: hdr}

	t.Textures = make([]string, hdr.TextureCount)
	name := make([]byte, hdr.TextureNameSize)
	for i := range t.Textures {
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("%w: reading texture %d name", ErrTruncatedTerrainData, i)
		}
		t.Textures[i] = encoding.FixedStringToUTF8(name)
	}

	samples := int(hdr.HeightMapWidth * hdr.HeightMapHeight)

	t.Heights = make([]float32, samples)
	if err := binary.Read(r, binary.LittleEndian, t.Heights); err != nil {
		return nil, fmt.Errorf("%w: reading heights", ErrTruncatedTerrainData)
	}

	t.Blends = make([]uint32, samples)
	if err := binary.Read(r, binary.LittleEndian, t.Blends); err != nil {
		return nil, fmt.Errorf("%w: reading blends", ErrTruncatedTerrainData)
	}

	t.Shadows = make([]uint16, samples)
	if err := binary.Read(r, binary.LittleEndian, t.Shadows); err != nil {
		return nil, fmt.Errorf("%w: reading shadows", ErrTruncatedTerrainData)
	}

	holes := make([]byte, hdr.HoleWidth()*hdr.HoleHeight())
	if _, err := io.ReadFull(r, holes); err != nil {
		return nil, fmt.Errorf("%w: reading holes", ErrTruncatedTerrainData)
	}
	t.Holes = make([]bool, len(holes))
	for i, b := range holes {
		t.Holes[i] = b != 0
	}

	if n := int(hdr.DetailWidth * hdr.DetailHeight); n > 0 {
		t.Detail = make([]uint8, n)
		if _, err := io.ReadFull(r, t.Detail); err != nil {
			return nil, fmt.Errorf("%w: reading detail", ErrTruncatedTerrainData)
		}
	}

	return t, nil
}

// ParseLegacyTerrainFile parses a legacy terrain block from disk.
func ParseLegacyTerrainFile(path string) (*LegacyTerrain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading terrain file: %w", err)
	}
	return ParseLegacyTerrain(data)
}

// WriteLegacyTerrain serialises t. Slices shorter than the header demands are
// zero-filled so tools can write partially populated blocks.
func WriteLegacyTerrain(w io.Writer, t *LegacyTerrain) error {
	hdr := t.Header
	if hdr.Version == 0 {
		hdr.Version = LegacyHeaderVersion
	}
	if hdr.TextureNameSize == 0 {
		hdr.TextureNameSize = 64
	}
	hdr.TextureCount = LegacyTextureCount

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return err
	}

	for i := 0; i < LegacyTextureCount; i++ {
		var name string
		if i < len(t.Textures) {
			name = t.Textures[i]
		}
		buf.Write(encoding.UTF8ToFixedString(name, int(hdr.TextureNameSize)))
	}

	samples := int(hdr.HeightMapWidth * hdr.HeightMapHeight)
	binary.Write(buf, binary.LittleEndian, fitFloat32(t.Heights, samples))
	binary.Write(buf, binary.LittleEndian, fitUint32(t.Blends, samples))
	binary.Write(buf, binary.LittleEndian, fitUint16(t.Shadows, samples))

	holes := make([]byte, hdr.HoleWidth()*hdr.HoleHeight())
	for i := range holes {
		if i < len(t.Holes) && t.Holes[i] {
			holes[i] = 1
		}
	}
	buf.Write(holes)

	detail := make([]byte, hdr.DetailWidth*hdr.DetailHeight)
	copy(detail, t.Detail)
	buf.Write(detail)

	_, err := w.Write(buf.Bytes())
	return err
}

func fitFloat32(s []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, s)
	return out
}

func fitUint32(s []uint32, n int) []uint32 {
	out := make([]uint32, n)
	copy(out, s)
	return out
}

func fitUint16(s []uint16, n int) []uint16 {
	out := make([]uint16, n)
	copy(out, s)
	return out
}
