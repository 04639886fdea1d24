package formats

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeightsRoundTrip(t *testing.T) {
	for _, compression := range []uint32{CompressionNone, CompressionZlib} {
		src := &Heights{
			Header:  HeightsHeader{Width: 5, Height: 4, MinHeight: -2, MaxHeight: 7, Compression: compression},
			Samples: []float32{1, 2, 3, 4, 5, -2, 7},
		}
		buf := new(bytes.Buffer)
		if err := WriteHeights(buf, src); err != nil {
			t.Fatalf("WriteHeights failed: %v", err)
		}

		got, err := ParseHeights(buf.Bytes())
		if err != nil {
			t.Fatalf("ParseHeights (compression %d) failed: %v", compression, err)
		}
		if len(got.Samples) != 20 {
			t.Fatalf("expected 20 samples, got %d", len(got.Samples))
		}
		if got.Samples[5] != -2 || got.Samples[6] != 7 || got.Samples[19] != 0 {
			t.Errorf("samples not preserved: %v", got.Samples)
		}
		if got.Header.MaxHeight != 7 {
			t.Errorf("max height = %v", got.Header.MaxHeight)
		}
	}
}

func TestParseHeights_BadMagic(t *testing.T) {
	buf := new(bytes.Buffer)
	WriteHeights(buf, &Heights{Header: HeightsHeader{Width: 4, Height: 4}})
	data := buf.Bytes()
	copy(data, "nope")

	if _, err := ParseHeights(data); !errors.Is(err, ErrInvalidSectionMagic) {
		t.Errorf("expected ErrInvalidSectionMagic, got %v", err)
	}
}

func TestHolesRoundTrip(t *testing.T) {
	cells := make([]bool, 10*3)
	cells[0] = true
	cells[9] = true
	cells[25] = true

	buf := new(bytes.Buffer)
	if err := WriteHoles(buf, &Holes{Header: HolesHeader{Width: 10, Height: 3}, Cells: cells}); err != nil {
		t.Fatalf("WriteHoles failed: %v", err)
	}

	got, err := ParseHoles(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseHoles failed: %v", err)
	}
	for i := range cells {
		if got.Cells[i] != cells[i] {
			t.Errorf("cell %d = %v, want %v", i, got.Cells[i], cells[i])
		}
	}
}

func TestHolesDegenerateHasNoPayload(t *testing.T) {
	for _, flag := range []uint32{HoleFlagNoHoles, HoleFlagAllHoles} {
		buf := new(bytes.Buffer)
		WriteHoles(buf, &Holes{Header: HolesHeader{Width: 25, Height: 25, Flags: flag}, Cells: make([]bool, 625)})
		if buf.Len() != 20 {
			t.Errorf("flag %d: expected header-only section (20 bytes), got %d", flag, buf.Len())
		}

		got, err := ParseHoles(buf.Bytes())
		if err != nil {
			t.Fatalf("ParseHoles failed: %v", err)
		}
		if got.Cells != nil {
			t.Errorf("flag %d: degenerate section should have no cells", flag)
		}
		if got.NoHoles() != (flag == HoleFlagNoHoles) || got.AllHoles() != (flag == HoleFlagAllHoles) {
			t.Errorf("flag %d not preserved", flag)
		}
	}
}

func TestLayerRoundTrip(t *testing.T) {
	src := &Layer{
		Header:      LayerHeader{Width: 3, Height: 2},
		TextureName: "maps/terrain/grass.dds",
		Blends:      []uint8{200, 200, 200, 10, 20, 30},
	}
	buf := new(bytes.Buffer)
	if err := WriteLayer(buf, src); err != nil {
		t.Fatalf("WriteLayer failed: %v", err)
	}

	got, err := ParseLayer(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseLayer failed: %v", err)
	}
	if got.TextureName != src.TextureName {
		t.Errorf("texture = %q", got.TextureName)
	}
	if !bytes.Equal(got.Blends, src.Blends) {
		t.Errorf("blends = %v", got.Blends)
	}
}

func TestLayerSectionName(t *testing.T) {
	if got := LayerSectionName(0); got != "layer 1" {
		t.Errorf("LayerSectionName(0) = %q", got)
	}
}
