// Package terrain loads terrain blocks and answers height, normal and
// collision queries against them.
//
// A block is a height field with a hole mask and a material map. Blocks come
// in two on-disk generations: a single legacy "terrain" resource and a
// sectioned "terrain2" directory. Both load into the same Block interface.
// Loaded blocks are shared through a reference counted Cache and placed in
// the world through an Obstacle.
package terrain

import (
	"fmt"
	"sync/atomic"

	"github.com/Faultbox/midgard-terrain/pkg/math"
)

const (
	// BlockSizeMetres is the edge length of a current-format block.
	BlockSizeMetres float32 = 100

	// NoTerrain is the height reported inside holes.
	NoTerrain float32 = -1000000

	clipEpsilon float32 = 1e-3
)

// Version identifies a block's on-disk generation.
type Version int

const (
	VersionUnknown Version = 0
	VersionLegacy  Version = 100
	VersionCurrent Version = 200
)

func (v Version) String() string {
	switch v {
	case VersionLegacy:
		return "terrain"
	case VersionCurrent:
		return "terrain2"
	default:
		return "unknown"
	}
}

// Block is a loaded terrain block. Queries take block-local coordinates.
type Block interface {
	Version() Version
	ResourcePath() string

	HeightField() *HeightField
	HoleMask() *HoleMask
	MaterialMap() *MaterialMap
	Textures() []string

	// HeightAt returns the surface height, or NoTerrain inside a hole.
	HeightAt(x, z float32) float32
	NormalAt(x, z float32) math.Vec3
	BoundingBox() math.AABB

	// ClipAgainstBB clips start -> end against the bounding box grown by
	// bloat. ok is false when the segment misses it.
	ClipAgainstBB(start, end math.Vec3, bloat float32) (math.Vec3, math.Vec3, bool)

	// Collide casts start -> end and reports whether the callback ended
	// the search.
	Collide(start, end math.Vec3, state *CollisionState) bool
	// CollidePrism sweeps tri until its first vertex reaches end and
	// reports whether the callback ended the search.
	CollidePrism(tri math.Triangle, end math.Vec3, state *CollisionState) bool

	base() *baseBlock
}

// LoadError is returned when a block cannot be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load terrain block %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// baseBlock holds what both block generations share.
type baseBlock struct {
	path      string
	heights   *HeightField
	holes     *HoleMask
	materials *MaterialMap
	textures  []string

	dirty atomic.Bool
}

func newBaseBlock(path string, heights *HeightField, holes *HoleMask, mats *MaterialMap, textures []string) baseBlock {
	return baseBlock{
		path:      path,
		heights:   heights,
		holes:     holes,
		materials: mats,
		textures:  textures,
	}
}

// attach hooks the maps' commit notifications to the block's dirty flag.
func (b *baseBlock) attach() {
	mark := func() { b.dirty.Store(true) }
	b.heights.onCommit = mark
	b.holes.onCommit = mark
	if b.materials != nil {
		b.materials.onCommit = mark
	}
}

func (b *baseBlock) base() *baseBlock { return b }

func (b *baseBlock) ResourcePath() string { return b.path }

func (b *baseBlock) HeightField() *HeightField { return b.heights }

func (b *baseBlock) HoleMask() *HoleMask { return b.holes }

func (b *baseBlock) MaterialMap() *MaterialMap { return b.materials }

func (b *baseBlock) Textures() []string { return b.textures }

func (b *baseBlock) HeightAt(x, z float32) float32 {
	if b.holes.HoleAt(x, z) {
		return NoTerrain
	}
	return b.heights.HeightAt(x, z)
}

func (b *baseBlock) NormalAt(x, z float32) math.Vec3 {
	return b.heights.NormalAt(x, z)
}

func (b *baseBlock) BoundingBox() math.AABB {
	return b.heights.BoundingBox()
}

func (b *baseBlock) ClipAgainstBB(start, end math.Vec3, bloat float32) (math.Vec3, math.Vec3, bool) {
	t0, t1, ok := b.BoundingBox().ClipSegment(start, end, bloat)
	if !ok {
		return start, end, false
	}
	return start.Lerp(end, t0), start.Lerp(end, t1), true
}

func (b *baseBlock) Collide(start, end math.Vec3, state *CollisionState) bool {
	return b.collideRay(start, end, state)
}

func (b *baseBlock) CollidePrism(tri math.Triangle, end math.Vec3, state *CollisionState) bool {
	return b.collidePrism(tri, end, state)
}

// LegacyBlock is a block loaded from a single "terrain" resource.
type LegacyBlock struct {
	baseBlock
	spacing float32
	shadows []uint16
	detail  []uint8
	detailW int
	detailH int
}

func (b *LegacyBlock) Version() Version { return VersionLegacy }

// Shadows returns the per-sample shadow values, border included.
func (b *LegacyBlock) Shadows() []uint16 { return b.shadows }

// Detail returns the detail object map and its size.
func (b *LegacyBlock) Detail() ([]uint8, int, int) { return b.detail, b.detailW, b.detailH }

// CurrentBlock is a block loaded from a sectioned "terrain2" directory.
type CurrentBlock struct {
	baseBlock
}

func (b *CurrentBlock) Version() Version { return VersionCurrent }
