package materials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKinds = `
kinds:
  - id: 1
    name: grass
    textures:
      - name: maps/terrain/grass.dds
      - name: maps/terrain/meadow.dds
        weight: 0.5
  - id: 2
    name: stone
    weight: 2
    textures:
      - name: maps/terrain/cobble.dds
        weight: 1.5
`

func TestParse(t *testing.T) {
	r, err := Parse([]byte(testKinds))
	require.NoError(t, err)

	assert.Equal(t, uint8(1), r.KindOf("maps/terrain/grass.dds"))
	assert.Equal(t, uint8(2), r.KindOf("maps/terrain/cobble.dds"))
	assert.Equal(t, Unknown, r.KindOf("maps/terrain/lava.dds"))

	assert.Equal(t, float32(1), r.Weight("maps/terrain/grass.dds"))
	assert.Equal(t, float32(0.5), r.Weight("maps/terrain/meadow.dds"))
	assert.Equal(t, float32(3), r.Weight("maps/terrain/cobble.dds"), "kind weight times texture weight")
	assert.Equal(t, float32(1), r.Weight("unlisted.dds"))

	k, ok := r.Kind(2)
	require.True(t, ok)
	assert.Equal(t, "stone", k.Name)
}

func TestTextureKeyIgnoresCaseSeparatorsAndExtension(t *testing.T) {
	r, err := Parse([]byte(testKinds))
	require.NoError(t, err)

	assert.Equal(t, uint8(1), r.KindOf(`Maps\Terrain\GRASS.tga`))
}

func TestParseRejectsReservedAndDuplicateIDs(t *testing.T) {
	_, err := Parse([]byte("kinds:\n  - id: 0\n    name: bad\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("kinds:\n  - id: 3\n    name: a\n  - id: 3\n    name: b\n"))
	assert.Error(t, err)
}

func TestSetTextureWeight(t *testing.T) {
	r, err := New(Kind{ID: 4, Name: "mud", Textures: []Texture{{Name: "mud.dds"}}})
	require.NoError(t, err)

	r.SetTextureWeight("mud.dds", 5)
	assert.Equal(t, float32(5), r.Weight("mud.dds"))
	assert.Equal(t, uint8(4), r.KindOf("mud.dds"), "weight override keeps the kind")
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.Equal(t, Unknown, r.KindOf("x"))
	assert.Equal(t, float32(1), r.Weight("x"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testKinds), 0644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), r.KindOf("maps/terrain/cobble.dds"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
