// Package space places terrain blocks on a world grid and answers world
// height, normal and collision queries across them.
package space

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-terrain/internal/logger"
	"github.com/Faultbox/midgard-terrain/internal/terrain"
	"github.com/Faultbox/midgard-terrain/pkg/math"
)

// BlockSpec names the block to load at grid cell (X, Z).
type BlockSpec struct {
	X, Z int
	Path string
}

// Options configures a Space.
type Options struct {
	// CollideHoles makes ray queries hit terrain inside holes.
	CollideHoles bool
	// Concurrency bounds parallel block loads. Zero means 4.
	Concurrency int
}

type cell struct{ x, z int }

type placed struct {
	handle   *terrain.Handle
	obstacle *terrain.Obstacle
}

// Space is a grid of terrain blocks sharing one cache.
type Space struct {
	id    uuid.UUID
	name  string
	cache *terrain.Cache
	opts  Options
	log   *zap.Logger

	mu     sync.RWMutex
	blocks map[cell]*placed
}

// New creates an empty space.
func New(name string, cache *terrain.Cache, opts Options) *Space {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	id := uuid.New()
	return &Space{
		id:     id,
		name:   name,
		cache:  cache,
		opts:   opts,
		log:    logger.Named("space").With(zap.String("space", name), zap.Stringer("id", id)),
		blocks: make(map[cell]*placed),
	}
}

// ID returns the space's unique id.
func (s *Space) ID() uuid.UUID { return s.id }

// Name returns the space's name.
func (s *Space) Name() string { return s.name }

// Len returns the number of placed blocks.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

// CellTransform returns the world transform of grid cell (x, z).
func CellTransform(x, z int) math.Mat4 {
	return math.Translate(float32(x)*terrain.BlockSizeMetres, 0, float32(z)*terrain.BlockSizeMetres)
}

// LoadBlocks loads specs, nearest to camera first, and places them. Loads
// run concurrently; the first failure cancels the rest and is returned.
// Blocks placed before the failure stay placed.
func (s *Space) LoadBlocks(ctx context.Context, specs []BlockSpec, camera math.Vec3) error {
	ordered := make([]BlockSpec, len(specs))
	copy(ordered, specs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return cellDistance(ordered[i], camera) < cellDistance(ordered[j], camera)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, spec := range ordered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, err := s.cache.FindOrLoad(spec.Path)
			if err != nil {
				return fmt.Errorf("block (%d, %d): %w", spec.X, spec.Z, err)
			}
			s.place(spec, h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Error("loading space blocks failed", zap.Error(err))
		return err
	}
	s.log.Info("space blocks loaded", zap.Int("blocks", len(ordered)))
	return nil
}

func cellDistance(spec BlockSpec, camera math.Vec3) float32 {
	half := terrain.BlockSizeMetres / 2
	dx := float32(spec.X)*terrain.BlockSizeMetres + half - camera.X
	dz := float32(spec.Z)*terrain.BlockSizeMetres + half - camera.Z
	return dx*dx + dz*dz
}

func (s *Space) place(spec BlockSpec, h *terrain.Handle) {
	p := &placed{
		handle:   h,
		obstacle: terrain.NewObstacle(h.Block(), CellTransform(spec.X, spec.Z)),
	}
	s.mu.Lock()
	old := s.blocks[cell{spec.X, spec.Z}]
	s.blocks[cell{spec.X, spec.Z}] = p
	s.mu.Unlock()

	if old != nil {
		old.handle.Release()
	}
}

// Unload releases the block at grid cell (x, z).
func (s *Space) Unload(x, z int) bool {
	s.mu.Lock()
	p, ok := s.blocks[cell{x, z}]
	delete(s.blocks, cell{x, z})
	s.mu.Unlock()

	if ok {
		p.handle.Release()
	}
	return ok
}

// Block returns the block at grid cell (x, z).
func (s *Space) Block(x, z int) (terrain.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.blocks[cell{x, z}]
	if !ok {
		return nil, false
	}
	return p.handle.Block(), true
}

func (s *Space) obstacleAt(x, z float32) *terrain.Obstacle {
	c := cell{
		int(math32.Floor(x / terrain.BlockSizeMetres)),
		int(math32.Floor(z / terrain.BlockSizeMetres)),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.blocks[c]; ok {
		return p.obstacle
	}
	return nil
}

// HeightAt returns the terrain height at world (x, z), or NoTerrain.
func (s *Space) HeightAt(x, z float32) float32 {
	if o := s.obstacleAt(x, z); o != nil {
		return o.HeightAt(x, z)
	}
	return terrain.NoTerrain
}

// NormalAt returns the terrain normal at world (x, z). ok is false where
// no block is loaded.
func (s *Space) NormalAt(x, z float32) (n math.Vec3, ok bool) {
	if o := s.obstacleAt(x, z); o != nil {
		return o.NormalAt(x, z), true
	}
	return math.Vec3{}, false
}

type candidate struct {
	obstacle *terrain.Obstacle
	t0       float32
}

func (s *Space) obstacles() []*terrain.Obstacle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*terrain.Obstacle, 0, len(s.blocks))
	for _, p := range s.blocks {
		out = append(out, p.obstacle)
	}
	return out
}

// Collide casts start -> end across the space. Blocks are visited in the
// order the segment enters them, so hits arrive nearest first. Hit
// distances are metres from start.
func (s *Space) Collide(start, end math.Vec3, cb terrain.CollisionCallback) *terrain.CollisionState {
	state := terrain.NewCollisionState(cb, 0, start.Distance(end))
	state.CollideHoles = s.opts.CollideHoles

	var cands []candidate
	for _, o := range s.obstacles() {
		if t0, _, ok := o.WorldBoundingBox().ClipSegment(start, end, 0); ok {
			cands = append(cands, candidate{o, t0})
		}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].t0 < cands[j].t0 })

	for _, c := range cands {
		if c.obstacle.CollideRay(start, end, state) {
			break
		}
	}
	return state
}

// CollidePrism sweeps tri until its first vertex reaches end. Every block
// under the sweep is searched unless the callback stops. Hit distances are
// metres travelled by the triangle.
func (s *Space) CollidePrism(tri math.Triangle, end math.Vec3, cb terrain.CollisionCallback) *terrain.CollisionState {
	state := terrain.NewCollisionState(cb, 0, tri.V[0].Distance(end))

	swept := tri.Bounds().Union(tri.Translate(end.Sub(tri.V[0])).Bounds())
	for _, o := range s.obstacles() {
		bb := o.WorldBoundingBox()
		if swept.Max.X < bb.Min.X || swept.Min.X > bb.Max.X ||
			swept.Max.Z < bb.Min.Z || swept.Min.Z > bb.Max.Z {
			continue
		}
		if o.CollidePrism(tri, end, state) {
			break
		}
	}
	return state
}

// Close releases every placed block.
func (s *Space) Close() {
	s.mu.Lock()
	blocks := s.blocks
	s.blocks = make(map[cell]*placed)
	s.mu.Unlock()

	for _, p := range blocks {
		p.handle.Release()
	}
	s.log.Debug("space closed", zap.Int("released", len(blocks)))
}
