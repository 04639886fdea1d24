package formats

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Faultbox/midgard-terrain/pkg/encoding"
)

// Section format errors.
var (
	ErrInvalidSectionMagic       = errors.New("invalid section magic")
	ErrUnsupportedSectionVersion = errors.New("unsupported section version")
)

// Section names inside a current-format ("terrain2") block.
const (
	HeightsSection     = "heights"
	HolesSection       = "holes"
	LayerSectionPrefix = "layer "
)

// LayerSectionName returns the section name of layer i (zero based).
func LayerSectionName(i int) string {
	return fmt.Sprintf("%s%d", LayerSectionPrefix, i+1)
}

const (
	heightsMagic = "hmp2"
	holesMagic   = "hol2"
	layerMagic   = "bld2"

	sectionVersion = 1
)

// Compression modes for height payloads.
const (
	CompressionNone uint32 = 0
	CompressionZlib uint32 = 1
)

// Hole section flags. Degenerate masks carry no payload.
const (
	HoleFlagNoHoles  uint32 = 1 << 0
	HoleFlagAllHoles uint32 = 1 << 1
)

// HeightsHeader precedes the height samples of a current-format block.
type HeightsHeader struct {
	Magic       [4]byte
	Version     uint32
	Width       uint32 // samples, border included
	Height      uint32
	MinHeight   float32
	MaxHeight   float32
	Compression uint32
	Pad         uint32
}

// Heights is a parsed heights section.
type Heights struct {
	Header  HeightsHeader
	Samples []float32
}

// HolesHeader precedes the hole bits.
type HolesHeader struct {
	Magic   [4]byte
	Version uint32
	Width   uint32
	Height  uint32
	Flags   uint32
}

// Holes is a parsed holes section. Cells is nil for degenerate masks.
type Holes struct {
	Header HolesHeader
	Cells  []bool
}

// NoHoles reports whether the section marks the whole block solid.
func (h *Holes) NoHoles() bool { return h.Header.Flags&HoleFlagNoHoles != 0 }

// AllHoles reports whether the section marks the whole block as a hole.
func (h *Holes) AllHoles() bool { return h.Header.Flags&HoleFlagAllHoles != 0 }

// LayerHeader precedes a texture layer's blend weights.
type LayerHeader struct {
	Magic           [4]byte
	Version         uint32
	Width           uint32
	Height          uint32
	TextureNameSize uint32
}

// Layer is a parsed texture layer: one blend weight per sample.
type Layer struct {
	Header      LayerHeader
	TextureName string
	Blends      []uint8
}

func checkMagic(got [4]byte, want string) error {
	if string(got[:]) != want {
		return fmt.Errorf("%w: got %q, want %q", ErrInvalidSectionMagic, got[:], want)
	}
	return nil
}

func magic(s string) [4]byte {
	var m [4]byte
	copy(m[:], s)
	return m
}

func checkDims(w, h uint32) error {
	if w == 0 || h == 0 || w > maxGridSize || h > maxGridSize {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, w, h)
	}
	return nil
}

// ParseHeights parses a heights section.
func ParseHeights(data []byte) (*Heights, error) {
	r := bytes.NewReader(data)

	var hdr HeightsHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading heights header", ErrTruncatedTerrainData)
	}
	if err := checkMagic(hdr.Magic, heightsMagic); err != nil {
		return nil, err
	}
	if hdr.Version != sectionVersion {
		return nil, fmt.Errorf("%w: heights %d", ErrUnsupportedSectionVersion, hdr.Version)
	}
	if err := checkDims(hdr.Width, hdr.Height); err != nil {
		return nil, err
	}
	if hdr.Width < 2*HeightBorder+2 || hdr.Height < 2*HeightBorder+2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, hdr.Width, hdr.Height)
	}

	var payload io.Reader = r
	switch hdr.Compression {
	case CompressionNone:
	case CompressionZlib:
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: opening zlib stream: %v", ErrTruncatedTerrainData, err)
		}
		defer zr.Close()
		payload = zr
	default:
		return nil, fmt.Errorf("%w: compression %d", ErrInvalidTerrainHeader, hdr.Compression)
	}

	h := &Heights{Header: hdr, Samples: make([]float32, hdr.Width*hdr.Height)}
	if err := binary.Read(payload, binary.LittleEndian, h.Samples); err != nil {
		return nil, fmt.Errorf("%w: reading height samples", ErrTruncatedTerrainData)
	}
	return h, nil
}

// WriteHeights writes a heights section.
func WriteHeights(w io.Writer, h *Heights) error {
	hdr := h.Header
	hdr.Magic = magic(heightsMagic)
	hdr.Version = sectionVersion

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	samples := fitFloat32(h.Samples, int(hdr.Width*hdr.Height))

	if hdr.Compression == CompressionZlib {
		zw := zlib.NewWriter(w)
		if err := binary.Write(zw, binary.LittleEndian, samples); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return binary.Write(w, binary.LittleEndian, samples)
}

// ParseHoles parses a holes section.
func ParseHoles(data []byte) (*Holes, error) {
	r := bytes.NewReader(data)

	var hdr HolesHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading holes header", ErrTruncatedTerrainData)
	}
	if err := checkMagic(hdr.Magic, holesMagic); err != nil {
		return nil, err
	}
	if hdr.Version != sectionVersion {
		return nil, fmt.Errorf("%w: holes %d", ErrUnsupportedSectionVersion, hdr.Version)
	}
	if err := checkDims(hdr.Width, hdr.Height); err != nil {
		return nil, err
	}

	h := &Holes{Header: hdr}
	if h.NoHoles() || h.AllHoles() {
		return h, nil
	}

	stride := (int(hdr.Width) + 7) / 8
	bits := make([]byte, stride*int(hdr.Height))
	if _, err := io.ReadFull(r, bits); err != nil {
		return nil, fmt.Errorf("%w: reading hole bits", ErrTruncatedTerrainData)
	}

	h.Cells = make([]bool, hdr.Width*hdr.Height)
	for z := 0; z < int(hdr.Height); z++ {
		for x := 0; x < int(hdr.Width); x++ {
			h.Cells[z*int(hdr.Width)+x] = bits[z*stride+x/8]&(1<<uint(x%8)) != 0
		}
	}
	return h, nil
}

// WriteHoles writes a holes section. Degenerate flags suppress the payload.
func WriteHoles(w io.Writer, h *Holes) error {
	hdr := h.Header
	hdr.Magic = magic(holesMagic)
	hdr.Version = sectionVersion

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if h.NoHoles() || h.AllHoles() {
		return nil
	}

	stride := (int(hdr.Width) + 7) / 8
	bits := make([]byte, stride*int(hdr.Height))
	for z := 0; z < int(hdr.Height); z++ {
		for x := 0; x < int(hdr.Width); x++ {
			i := z*int(hdr.Width) + x
			if i < len(h.Cells) && h.Cells[i] {
				bits[z*stride+x/8] |= 1 << uint(x%8)
			}
		}
	}
	_, err := w.Write(bits)
	return err
}

// ParseLayer parses a texture layer section.
func ParseLayer(data []byte) (*Layer, error) {
	r := bytes.NewReader(data)

	var hdr LayerHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: reading layer header", ErrTruncatedTerrainData)
	}
	if err := checkMagic(hdr.Magic, layerMagic); err != nil {
		return nil, err
	}
	if hdr.Version != sectionVersion {
		return nil, fmt.Errorf("%w: layer %d", ErrUnsupportedSectionVersion, hdr.Version)
	}
	if err := checkDims(hdr.Width, hdr.Height); err != nil {
		return nil, err
	}
	if hdr.TextureNameSize > maxTextureNameSize {
		return nil, fmt.Errorf("%w: texture name size %d", ErrInvalidTerrainHeader, hdr.TextureNameSize)
	}

	name := make([]byte, hdr.TextureNameSize)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("%w: reading layer texture name", ErrTruncatedTerrainData)
	}

	l := &Layer{
		Header:      hdr,
		TextureName: encoding.FixedStringToUTF8(name),
		Blends:      make([]uint8, hdr.Width*hdr.Height),
	}
	if _, err := io.ReadFull(r, l.Blends); err != nil {
		return nil, fmt.Errorf("%w: reading layer blends", ErrTruncatedTerrainData)
	}
	return l, nil
}

// WriteLayer writes a texture layer section.
func WriteLayer(w io.Writer, l *Layer) error {
	hdr := l.Header
	hdr.Magic = magic(layerMagic)
	hdr.Version = sectionVersion
	if hdr.TextureNameSize == 0 {
		hdr.TextureNameSize = uint32(len(encoding.EncodeName(l.TextureName)) + 1)
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if _, err := w.Write(encoding.UTF8ToFixedString(l.TextureName, int(hdr.TextureNameSize))); err != nil {
		return err
	}
	blends := make([]byte, hdr.Width*hdr.Height)
	copy(blends, l.Blends)
	_, err := w.Write(blends)
	return err
}
