package terrain

import "github.com/Faultbox/midgard-terrain/pkg/math"

// Continuation tells a collision query what to do after a hit.
type Continuation int

const (
	// Stop ends the query.
	Stop Continuation = iota
	// ContinueNearerOnly keeps searching for hits nearer than the last one.
	ContinueNearerOnly
	// ContinueFartherOnly keeps searching for hits farther than the last one.
	ContinueFartherOnly
	// ContinueBoth keeps searching in both directions.
	ContinueBoth
)

func (c Continuation) String() string {
	switch c {
	case Stop:
		return "stop"
	case ContinueNearerOnly:
		return "nearer"
	case ContinueFartherOnly:
		return "farther"
	case ContinueBoth:
		return "both"
	default:
		return "unknown"
	}
}

// Hit describes one accepted collision.
type Hit struct {
	// Obstacle is the placed block that was hit, nil when the block was
	// queried directly.
	Obstacle *Obstacle
	// Triangle is the block-local terrain triangle, with the material kind
	// of the impact point packed into its flags.
	Triangle math.Triangle
	// Dist is the travel distance of the hit.
	Dist float32
	// Impact is the block-local impact point.
	Impact math.Vec3
}

// WorldImpact returns the impact point in world space.
func (h Hit) WorldImpact() math.Vec3 {
	if h.Obstacle == nil {
		return h.Impact
	}
	return h.Obstacle.transform.TransformVec3(h.Impact)
}

// WorldTriangle returns the hit triangle in world space.
func (h Hit) WorldTriangle() math.Triangle {
	if h.Obstacle == nil {
		return h.Triangle
	}
	return h.Triangle.Transform(h.Obstacle.transform)
}

// CollisionCallback receives accepted hits and decides how the query goes on.
type CollisionCallback func(hit Hit) Continuation

// CollisionState carries a query's callback and window across blocks.
// Hit distances are mapped from the segment parameter t onto
// STravel + (ETravel-STravel)*t.
type CollisionState struct {
	Callback CollisionCallback
	STravel  float32
	ETravel  float32

	// OnlyLess and OnlyMore narrow the window around Dist. Both set means
	// the query has stopped.
	OnlyLess bool
	OnlyMore bool
	Dist     float32

	// CollideHoles makes ray queries hit terrain inside holes.
	CollideHoles bool

	// Hits counts callback invocations.
	Hits int

	obstacle *Obstacle
}

// NewCollisionState returns a state with an open window.
func NewCollisionState(cb CollisionCallback, sTravel, eTravel float32) *CollisionState {
	return &CollisionState{Callback: cb, STravel: sTravel, ETravel: eTravel}
}

// Stopped reports whether the callback ended the query.
func (s *CollisionState) Stopped() bool {
	return s.OnlyLess && s.OnlyMore
}

func (s *CollisionState) travel(t float32) float32 {
	return s.STravel + (s.ETravel-s.STravel)*t
}

func (s *CollisionState) inWindow(dist float32) bool {
	if s.OnlyLess && dist > s.Dist {
		return false
	}
	if s.OnlyMore && dist < s.Dist {
		return false
	}
	return true
}

func (s *CollisionState) apply(c Continuation) {
	switch c {
	case Stop:
		s.OnlyLess, s.OnlyMore = true, true
	case ContinueNearerOnly:
		s.OnlyLess, s.OnlyMore = true, false
	case ContinueFartherOnly:
		s.OnlyLess, s.OnlyMore = false, true
	default:
		s.OnlyLess, s.OnlyMore = false, false
	}
}

// accept runs the window, hole and material checks for one candidate and
// hands it to the callback. It reports whether the candidate was accepted.
func (s *CollisionState) accept(b *baseBlock, tri math.Triangle, t float32, impact math.Vec3, checkHoles bool) bool {
	dist := s.travel(t)
	if !s.inWindow(dist) {
		return false
	}
	if checkHoles && b.holes.HoleAt(impact.X, impact.Z) {
		return false
	}
	if b.materials != nil {
		tri.Flags = tri.Flags.WithMaterialKind(b.materials.MaterialKind(impact.X, impact.Z))
	}

	s.Dist = dist
	s.Hits++
	c := ContinueBoth
	if s.Callback != nil {
		c = s.Callback(Hit{Obstacle: s.obstacle, Triangle: tri, Dist: dist, Impact: impact})
	}
	s.apply(c)
	return true
}

// collideRay runs a ray query against a block. Hits arrive nearest first,
// so once only nearer hits are wanted the walk can end.
func (b *baseBlock) collideRay(start, end math.Vec3, s *CollisionState) bool {
	dir := end.Sub(start)
	return b.heights.Collide(start, end, func(tri math.Triangle, t float32) bool {
		impact := start.Add(dir.Scale(t))
		if !s.accept(b, tri, t, impact, !s.CollideHoles) {
			return false
		}
		return s.OnlyLess
	})
}

// collidePrism runs a swept triangle query against a block. Cells are not
// visited by distance, so the search only ends when the callback stops it.
// Holes are always respected.
func (b *baseBlock) collidePrism(tri math.Triangle, end math.Vec3, s *CollisionState) bool {
	return b.heights.CollidePrism(tri, end, func(hit math.Triangle, t float32) bool {
		impact := hit.V[0].Add(hit.V[1]).Add(hit.V[2]).Scale(1.0 / 3)
		if !s.accept(b, hit, t, impact, true) {
			return false
		}
		return s.Stopped()
	})
}
