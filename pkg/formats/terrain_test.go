package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// createTestLegacyTerrain builds a flat legacy block of the given size.
func createTestLegacyTerrain(width, height uint32, h float32) *LegacyTerrain {
	hdr := LegacyHeader{
		Version:         LegacyHeaderVersion,
		HeightMapWidth:  width,
		HeightMapHeight: height,
		Spacing:         1,
		TextureCount:    LegacyTextureCount,
		TextureNameSize: 32,
	}
	t := &LegacyTerrain{
		Header:   hdr,
		Textures: []string{"maps/grass.dds", "maps/dirt.dds", "maps/rock.dds", "maps/sand.dds"},
		Heights:  make([]float32, width*height),
		Blends:   make([]uint32, width*height),
		Holes:    make([]bool, hdr.HoleWidth()*hdr.HoleHeight()),
	}
	for i := range t.Heights {
		t.Heights[i] = h
		t.Blends[i] = PackBlends([4]uint8{255, 0, 0, 0})
	}
	return t
}

func encodeLegacy(t *testing.T, lt *LegacyTerrain) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	if err := WriteLegacyTerrain(buf, lt); err != nil {
		t.Fatalf("WriteLegacyTerrain failed: %v", err)
	}
	return buf.Bytes()
}

func TestParseLegacyTerrain_ValidFile(t *testing.T) {
	src := createTestLegacyTerrain(6, 6, 10)
	src.Holes[4] = true

	lt, err := ParseLegacyTerrain(encodeLegacy(t, src))
	if err != nil {
		t.Fatalf("ParseLegacyTerrain failed: %v", err)
	}

	if lt.Header.HeightMapWidth != 6 || lt.Header.HeightMapHeight != 6 {
		t.Errorf("expected 6x6, got %dx%d", lt.Header.HeightMapWidth, lt.Header.HeightMapHeight)
	}
	if len(lt.Heights) != 36 || lt.Heights[17] != 10 {
		t.Errorf("unexpected heights: len %d", len(lt.Heights))
	}
	if len(lt.Holes) != 9 {
		t.Fatalf("expected 9 hole cells, got %d", len(lt.Holes))
	}
	if !lt.Holes[4] || lt.Holes[3] {
		t.Errorf("hole bits not preserved: %v", lt.Holes)
	}
	if lt.Textures[2] != "maps/rock.dds" {
		t.Errorf("texture 2 = %q", lt.Textures[2])
	}
	if BlendChannel(lt.Blends[0], 0) != 255 || BlendChannel(lt.Blends[0], 1) != 0 {
		t.Errorf("blend channels not preserved: %08x", lt.Blends[0])
	}
}

func TestParseLegacyTerrain_HeaderIs64Slots(t *testing.T) {
	if size := binary.Size(LegacyHeader{}); size != 64*4 {
		t.Errorf("header size = %d, want 256", size)
	}
}

func TestParseLegacyTerrain_WrongTextureCount(t *testing.T) {
	data := encodeLegacy(t, createTestLegacyTerrain(6, 6, 0))
	// TextureCount is the fifth uint32 slot.
	binary.LittleEndian.PutUint32(data[16:], 3)

	_, err := ParseLegacyTerrain(data)
	if !errors.Is(err, ErrUnsupportedTextureCount) {
		t.Errorf("expected ErrUnsupportedTextureCount, got %v", err)
	}
}

func TestParseLegacyTerrain_HugeTextureNameSize(t *testing.T) {
	data := encodeLegacy(t, createTestLegacyTerrain(6, 6, 0))
	// TextureNameSize is the sixth uint32 slot.
	binary.LittleEndian.PutUint32(data[20:], 0xfffffff0)

	_, err := ParseLegacyTerrain(data)
	if !errors.Is(err, ErrInvalidTerrainHeader) {
		t.Errorf("expected ErrInvalidTerrainHeader, got %v", err)
	}
}

func TestParseLegacyTerrain_BadVersion(t *testing.T) {
	data := encodeLegacy(t, createTestLegacyTerrain(6, 6, 0))
	binary.LittleEndian.PutUint32(data[0:], 7)

	_, err := ParseLegacyTerrain(data)
	if !errors.Is(err, ErrInvalidTerrainHeader) {
		t.Errorf("expected ErrInvalidTerrainHeader, got %v", err)
	}
}

func TestParseLegacyTerrain_TruncatedData(t *testing.T) {
	data := encodeLegacy(t, createTestLegacyTerrain(6, 6, 0))

	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"header only", 256},
		{"missing holes", len(data) - 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLegacyTerrain(data[:tc.size])
			if !errors.Is(err, ErrTruncatedTerrainData) {
				t.Errorf("expected ErrTruncatedTerrainData, got %v", err)
			}
		})
	}
}

func TestParseLegacyTerrain_TooSmall(t *testing.T) {
	data := encodeLegacy(t, createTestLegacyTerrain(3, 3, 0))
	_, err := ParseLegacyTerrain(data)
	if !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("expected ErrInvalidDimensions, got %v", err)
	}
}
