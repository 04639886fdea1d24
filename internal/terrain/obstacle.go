package terrain

import "github.com/Faultbox/midgard-terrain/pkg/math"

// Obstacle places a block in the world. World queries are moved into the
// block's local space, clipped to its bounds and dispatched to it.
type Obstacle struct {
	block     Block
	transform math.Mat4
	inverse   math.Mat4
}

// NewObstacle places block with transform.
func NewObstacle(block Block, transform math.Mat4) *Obstacle {
	return &Obstacle{
		block:     block,
		transform: transform,
		inverse:   transform.AffineInverse(),
	}
}

// Block returns the placed block.
func (o *Obstacle) Block() Block { return o.block }

// Transform returns the block-to-world transform.
func (o *Obstacle) Transform() math.Mat4 { return o.transform }

// WorldBoundingBox returns the block's bounds in world space.
func (o *Obstacle) WorldBoundingBox() math.AABB {
	return o.block.BoundingBox().Transform(o.transform)
}

// ToLocal moves a world point into block space.
func (o *Obstacle) ToLocal(p math.Vec3) math.Vec3 {
	return o.inverse.TransformVec3(p)
}

// HeightAt returns the world height at world (x, z), or NoTerrain when the
// point is in a hole or off the block.
func (o *Obstacle) HeightAt(x, z float32) float32 {
	local := o.ToLocal(math.Vec3{X: x, Z: z})
	bb := o.block.BoundingBox()
	if local.X < bb.Min.X || local.X > bb.Max.X || local.Z < bb.Min.Z || local.Z > bb.Max.Z {
		return NoTerrain
	}
	h := o.block.HeightAt(local.X, local.Z)
	if h == NoTerrain {
		return NoTerrain
	}
	return o.transform.TransformVec3(math.Vec3{X: local.X, Y: h, Z: local.Z}).Y
}

// NormalAt returns the world normal at world (x, z).
func (o *Obstacle) NormalAt(x, z float32) math.Vec3 {
	local := o.ToLocal(math.Vec3{X: x, Z: z})
	return o.transform.TransformDirection(o.block.NormalAt(local.X, local.Z)).Normalize()
}

// CollideRay casts the world segment start -> end against the block. The
// state's travel window is narrowed to the part of the segment inside the
// block's bounds for the duration of the call.
func (o *Obstacle) CollideRay(start, end math.Vec3, state *CollisionState) bool {
	ls := o.ToLocal(start)
	le := o.ToLocal(end)

	cs, ce, ok := o.block.ClipAgainstBB(ls, le, clipEpsilon)
	if !ok {
		return false
	}

	total := ls.Distance(le)
	var t0, t1 float32 = 0, 1
	if total > 0 {
		t0 = ls.Distance(cs) / total
		t1 = ls.Distance(ce) / total
	}

	sTravel, eTravel, prev := state.STravel, state.ETravel, state.obstacle
	state.STravel = sTravel + (eTravel-sTravel)*t0
	state.ETravel = sTravel + (eTravel-sTravel)*t1
	state.obstacle = o
	defer func() {
		state.STravel, state.ETravel, state.obstacle = sTravel, eTravel, prev
	}()

	return o.block.Collide(cs, ce, state)
}

// CollidePrism sweeps the world triangle tri until its first vertex reaches
// end. The travel window is used as given.
func (o *Obstacle) CollidePrism(tri math.Triangle, end math.Vec3, state *CollisionState) bool {
	local := tri.Transform(o.inverse)
	localEnd := o.ToLocal(end)

	swept := local.Bounds().Union(local.Translate(localEnd.Sub(local.V[0])).Bounds())
	bb := o.block.BoundingBox().Expand(clipEpsilon)
	if swept.Max.X < bb.Min.X || swept.Min.X > bb.Max.X ||
		swept.Max.Y < bb.Min.Y || swept.Min.Y > bb.Max.Y ||
		swept.Max.Z < bb.Min.Z || swept.Min.Z > bb.Max.Z {
		return false
	}

	prev := state.obstacle
	state.obstacle = o
	defer func() { state.obstacle = prev }()

	return o.block.CollidePrism(local, localEnd, state)
}
