// Package materials maps terrain textures to gameplay material kinds.
//
// The registry is read from a YAML file listing each material kind, the
// textures that belong to it, and optional weight multipliers used when
// deciding which texture dominates a patch of terrain.
package materials

import (
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Unknown is the kind reported for textures that no material claims.
const Unknown uint8 = 0

// Texture is a texture entry within a material kind.
type Texture struct {
	Name   string   `yaml:"name"`
	Weight *float32 `yaml:"weight,omitempty"`
}

// Kind is one material kind.
type Kind struct {
	ID       uint8     `yaml:"id"`
	Name     string    `yaml:"name"`
	Weight   *float32  `yaml:"weight,omitempty"`
	Textures []Texture `yaml:"textures"`
}

type file struct {
	Kinds []Kind `yaml:"kinds"`
}

type entry struct {
	kind   uint8
	weight float32
}

// Registry resolves texture names to material kinds and dominance weights.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[uint8]Kind
	textures map[string]entry
}

// New builds a registry from kinds. Later kinds override earlier ones for
// textures listed twice.
func New(kinds ...Kind) (*Registry, error) {
	r := &Registry{
		kinds:    make(map[uint8]Kind),
		textures: make(map[string]entry),
	}
	for _, k := range kinds {
		if err := r.add(k); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing material kinds: %w", err)
	}
	return New(f.Kinds...)
}

// Load reads a registry from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading material kinds: %w", err)
	}
	return Parse(data)
}

func (r *Registry) add(k Kind) error {
	if k.ID == Unknown {
		return fmt.Errorf("material kind %q: id 0 is reserved", k.Name)
	}
	if _, dup := r.kinds[k.ID]; dup {
		return fmt.Errorf("material kind %q: duplicate id %d", k.Name, k.ID)
	}
	r.kinds[k.ID] = k

	kindWeight := float32(1)
	if k.Weight != nil {
		kindWeight = *k.Weight
	}
	for _, tex := range k.Textures {
		w := kindWeight
		if tex.Weight != nil {
			w *= *tex.Weight
		}
		r.textures[textureKey(tex.Name)] = entry{kind: k.ID, weight: w}
	}
	return nil
}

// KindOf returns the material kind for a texture, or Unknown.
func (r *Registry) KindOf(texture string) uint8 {
	if r == nil {
		return Unknown
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textures[textureKey(texture)].kind
}

// Weight returns the dominance multiplier for a texture: the kind's weight
// times the texture's own weight. Unlisted textures weigh 1.
func (r *Registry) Weight(texture string) float32 {
	if r == nil {
		return 1
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.textures[textureKey(texture)]
	if !ok {
		return 1
	}
	return e.weight
}

// SetTextureWeight overrides the dominance multiplier of one texture.
// Editors use this to preview weight changes without rewriting the file.
func (r *Registry) SetTextureWeight(texture string, weight float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := textureKey(texture)
	e := r.textures[key]
	e.weight = weight
	r.textures[key] = e
}

// Kind returns a material kind by id.
func (r *Registry) Kind(id uint8) (Kind, bool) {
	if r == nil {
		return Kind{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kinds[id]
	return k, ok
}

// textureKey normalises a texture resource name: case, separators and the
// file extension (textures are often converted between formats) are ignored.
func textureKey(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}
