package terrain

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"

	"github.com/Faultbox/midgard-terrain/pkg/formats"
	"github.com/Faultbox/midgard-terrain/pkg/math"
)

const border = formats.HeightBorder

// HeightField is a regular grid of height samples with a one-sample border
// on every side. Sample (0, 0) is the first visible sample and sits at the
// block's local origin; visible samples are spacing metres apart.
type HeightField struct {
	width, height int // samples, border included
	spacing       float32
	samples       []float32

	minHeight, maxHeight float32
	diagonalDistance     float32

	lock     mapLock
	onCommit func()
}

// NewHeightField creates a height field over samples, stored row-major with
// the border included. The slice is kept, not copied.
func NewHeightField(width, height int, spacing float32, samples []float32) (*HeightField, error) {
	if width < 2*border+2 || height < 2*border+2 {
		return nil, fmt.Errorf("%w: %dx%d", formats.ErrInvalidDimensions, width, height)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("%w: spacing %f", formats.ErrInvalidTerrainHeader, spacing)
	}
	if len(samples) != width*height {
		return nil, fmt.Errorf("%w: %d height samples, want %d",
			formats.ErrTruncatedTerrainData, len(samples), width*height)
	}

	h := &HeightField{
		width:            width,
		height:           height,
		spacing:          spacing,
		samples:          samples,
		diagonalDistance: spacing * math32.Sqrt(2),
	}
	h.recalcExtrema()
	return h, nil
}

// Width returns the number of samples across, border included.
func (h *HeightField) Width() int { return h.width }

// Height returns the number of samples down, border included.
func (h *HeightField) Height() int { return h.height }

// CellsX returns the number of visible cells across.
func (h *HeightField) CellsX() int { return h.width - 2*border - 1 }

// CellsZ returns the number of visible cells down.
func (h *HeightField) CellsZ() int { return h.height - 2*border - 1 }

// Spacing returns the distance between samples in metres.
func (h *HeightField) Spacing() float32 { return h.spacing }

// Size returns the extent of the visible area.
func (h *HeightField) Size() (x, z float32) {
	return float32(h.CellsX()) * h.spacing, float32(h.CellsZ()) * h.spacing
}

// MinHeight returns the lowest visible sample.
func (h *HeightField) MinHeight() float32 { return h.minHeight }

// MaxHeight returns the highest visible sample.
func (h *HeightField) MaxHeight() float32 { return h.maxHeight }

// Samples returns the backing samples, border included.
func (h *HeightField) Samples() []float32 { return h.samples }

// HeightAtSample returns the sample at (x, z) relative to the first visible
// sample. Indices are clamped to the full array, border included.
func (h *HeightField) HeightAtSample(x, z int) float32 {
	ix := clampInt(x+border, 0, h.width-1)
	iz := clampInt(z+border, 0, h.height-1)
	return h.samples[iz*h.width+ix]
}

// HeightAt returns the height at local (x, z) on the triangulated surface.
// Each cell is split along its (0,0)-(1,1) diagonal, so the value always
// lies on one of the two triangles that collision tests against.
func (h *HeightField) HeightAt(x, z float32) float32 {
	cx, cz, u, v := h.cellAt(x, z)

	h00 := h.HeightAtSample(cx, cz)
	h10 := h.HeightAtSample(cx+1, cz)
	h01 := h.HeightAtSample(cx, cz+1)
	h11 := h.HeightAtSample(cx+1, cz+1)

	if u >= v {
		return h00 + u*(h10-h00) + v*(h11-h10)
	}
	return h00 + v*(h01-h00) + u*(h11-h01)
}

// SmoothHeightAt returns a Catmull-Rom bicubic height at local (x, z),
// clamped to the field's extrema.
func (h *HeightField) SmoothHeightAt(x, z float32) float32 {
	cx, cz, u, v := h.cellAt(x, z)

	var rows [4]float32
	for j := -1; j <= 2; j++ {
		rows[j+1] = catmullRom(
			h.HeightAtSample(cx-1, cz+j),
			h.HeightAtSample(cx, cz+j),
			h.HeightAtSample(cx+1, cz+j),
			h.HeightAtSample(cx+2, cz+j),
			u,
		)
	}
	return clampFloat(catmullRom(rows[0], rows[1], rows[2], rows[3], v), h.minHeight, h.maxHeight)
}

// NormalAt returns the surface normal at local (x, z), blended bilinearly
// from the normals of the four surrounding samples.
func (h *HeightField) NormalAt(x, z float32) math.Vec3 {
	cx, cz, u, v := h.cellAt(x, z)

	n00 := h.sampleNormal(cx, cz)
	n10 := h.sampleNormal(cx+1, cz)
	n01 := h.sampleNormal(cx, cz+1)
	n11 := h.sampleNormal(cx+1, cz+1)

	n := n00.Lerp(n10, u).Lerp(n01.Lerp(n11, u), v)
	return n.Normalize()
}

// sampleNormal estimates the normal at a sample from central differences
// along both axes and both diagonals.
func (h *HeightField) sampleNormal(x, z int) math.Vec3 {
	gx := (h.HeightAtSample(x+1, z) - h.HeightAtSample(x-1, z)) / (2 * h.spacing)
	gz := (h.HeightAtSample(x, z+1) - h.HeightAtSample(x, z-1)) / (2 * h.spacing)

	s1 := (h.HeightAtSample(x+1, z+1) - h.HeightAtSample(x-1, z-1)) / (2 * h.diagonalDistance)
	s2 := (h.HeightAtSample(x+1, z-1) - h.HeightAtSample(x-1, z+1)) / (2 * h.diagonalDistance)

	const invSqrt2 = 0.70710678
	gx = (gx + (s1+s2)*invSqrt2) / 2
	gz = (gz + (s1-s2)*invSqrt2) / 2

	return math.Vec3{X: -gx, Y: 1, Z: -gz}.Normalize()
}

// cellAt clamps (x, z) to the visible area and returns the containing cell
// and the position within it.
func (h *HeightField) cellAt(x, z float32) (cx, cz int, u, v float32) {
	fx := clampFloat(x/h.spacing, 0, float32(h.CellsX()))
	fz := clampFloat(z/h.spacing, 0, float32(h.CellsZ()))

	cx = min(int(fx), h.CellsX()-1)
	cz = min(int(fz), h.CellsZ()-1)
	return cx, cz, fx - float32(cx), fz - float32(cz)
}

// CellTriangles returns the two triangles of visible cell (cx, cz), both
// wound so their normals point up.
func (h *HeightField) CellTriangles(cx, cz int) [2]math.Triangle {
	x0 := float32(cx) * h.spacing
	z0 := float32(cz) * h.spacing
	x1 := x0 + h.spacing
	z1 := z0 + h.spacing

	v00 := math.Vec3{X: x0, Y: h.HeightAtSample(cx, cz), Z: z0}
	v10 := math.Vec3{X: x1, Y: h.HeightAtSample(cx+1, cz), Z: z0}
	v01 := math.Vec3{X: x0, Y: h.HeightAtSample(cx, cz+1), Z: z1}
	v11 := math.Vec3{X: x1, Y: h.HeightAtSample(cx+1, cz+1), Z: z1}

	return [2]math.Triangle{
		math.NewTriangle(v00, v11, v10, math.FlagTerrain),
		math.NewTriangle(v00, v01, v11, math.FlagTerrain),
	}
}

// cellRange returns the lowest and highest sample of a visible cell.
func (h *HeightField) cellRange(cx, cz int) (lo, hi float32) {
	a := h.HeightAtSample(cx, cz)
	b := h.HeightAtSample(cx+1, cz)
	c := h.HeightAtSample(cx, cz+1)
	d := h.HeightAtSample(cx+1, cz+1)
	return min(a, b, c, d), max(a, b, c, d)
}

// BoundingBox returns the local bounds of the visible surface.
func (h *HeightField) BoundingBox() math.AABB {
	sx, sz := h.Size()
	return math.AABB{
		Min: math.Vec3{X: 0, Y: h.minHeight, Z: 0},
		Max: math.Vec3{X: sx, Y: h.maxHeight, Z: sz},
	}
}

type cellHit struct {
	tri  math.Triangle
	dist float32
}

// Collide walks the cells under start -> end nearest first and calls fn
// for every triangle the segment touches, in increasing distance. dist is
// the parameter along the segment in [0, 1]. It stops and returns true as
// soon as fn does.
func (h *HeightField) Collide(start, end math.Vec3, fn func(tri math.Triangle, dist float32) bool) bool {
	t0, t1, ok := h.BoundingBox().ClipSegment(start, end, clipEpsilon)
	if !ok {
		return false
	}

	d := end.Sub(start)
	cellsX, cellsZ := h.CellsX(), h.CellsZ()

	p := start.Lerp(end, t0)
	cx := clampInt(int(math32.Floor(p.X/h.spacing)), 0, cellsX-1)
	cz := clampInt(int(math32.Floor(p.Z/h.spacing)), 0, cellsZ-1)

	stepX, tMaxX, tDeltaX := h.ddaAxis(start.X, d.X, cx)
	stepZ, tMaxZ, tDeltaZ := h.ddaAxis(start.Z, d.Z, cz)

	var hits [2]cellHit
	for {
		n := 0
		for _, tri := range h.CellTriangles(cx, cz) {
			if dist, ok := tri.IntersectSegment(start, d); ok {
				hits[n] = cellHit{tri, dist}
				n++
			}
		}
		if n == 2 && hits[1].dist < hits[0].dist {
			hits[0], hits[1] = hits[1], hits[0]
		}
		for _, hit := range hits[:n] {
			if fn(hit.tri, hit.dist) {
				return true
			}
		}

		if tMaxX < tMaxZ {
			if tMaxX > t1 {
				return false
			}
			cx += stepX
			tMaxX += tDeltaX
		} else {
			if tMaxZ > t1 {
				return false
			}
			cz += stepZ
			tMaxZ += tDeltaZ
		}
		if cx < 0 || cx >= cellsX || cz < 0 || cz >= cellsZ {
			return false
		}
	}
}

// ddaAxis sets up one axis of the grid walk: the cell step, the parameter at
// which the segment leaves the current cell, and the parameter per cell.
func (h *HeightField) ddaAxis(origin, dir float32, cell int) (step int, tMax, tDelta float32) {
	switch {
	case dir > 0:
		return 1, (float32(cell+1)*h.spacing - origin) / dir, h.spacing / dir
	case dir < 0:
		return -1, (float32(cell)*h.spacing - origin) / dir, -h.spacing / dir
	default:
		return 0, math32.MaxFloat32, math32.MaxFloat32
	}
}

// CollidePrism sweeps tri towards end (the new position of its first vertex)
// and calls fn for every cell triangle it touches. Cells are visited in row
// order across the swept bounds, not by distance. It stops and returns true
// as soon as fn does.
func (h *HeightField) CollidePrism(tri math.Triangle, end math.Vec3, fn func(hit math.Triangle, dist float32) bool) bool {
	delta := end.Sub(tri.V[0])
	swept := tri.Bounds().Union(tri.Translate(delta).Bounds()).Expand(clipEpsilon)

	sx, sz := h.Size()
	if swept.Max.Y < h.minHeight || swept.Min.Y > h.maxHeight ||
		swept.Max.X < 0 || swept.Max.Z < 0 || swept.Min.X > sx || swept.Min.Z > sz {
		return false
	}

	cellsX, cellsZ := h.CellsX(), h.CellsZ()
	x0 := clampInt(int(math32.Floor(swept.Min.X/h.spacing)), 0, cellsX-1)
	x1 := clampInt(int(math32.Floor(swept.Max.X/h.spacing)), 0, cellsX-1)
	z0 := clampInt(int(math32.Floor(swept.Min.Z/h.spacing)), 0, cellsZ-1)
	z1 := clampInt(int(math32.Floor(swept.Max.Z/h.spacing)), 0, cellsZ-1)

	var hits []cellHit
	for cz := z0; cz <= z1; cz++ {
		for cx := x0; cx <= x1; cx++ {
			lo, hi := h.cellRange(cx, cz)
			if swept.Max.Y < lo || swept.Min.Y > hi {
				continue
			}
			hits = hits[:0]
			for _, cellTri := range h.CellTriangles(cx, cz) {
				if dist, ok := tri.SweepCollide(cellTri, delta); ok {
					hits = append(hits, cellHit{cellTri, dist})
				}
			}
			sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
			for _, hit := range hits {
				if fn(hit.tri, hit.dist) {
					return true
				}
			}
		}
	}
	return false
}

// Lock locks the field for reading or editing.
func (h *HeightField) Lock(readOnly bool) error {
	return h.lock.lock(readOnly)
}

// Unlock releases the lock. Releasing a write lock recomputes the extrema
// and notifies the owning block.
func (h *HeightField) Unlock() error {
	wrote, err := h.lock.unlock()
	if err != nil {
		return err
	}
	if wrote {
		h.recalcExtrema()
		if h.onCommit != nil {
			h.onCommit()
		}
	}
	return nil
}

// SetHeightAtSample changes one sample. (x, z) is relative to the first
// visible sample and may address the border. The field must be write locked.
func (h *HeightField) SetHeightAtSample(x, z int, height float32) error {
	if err := h.lock.writable(); err != nil {
		return err
	}
	ix, iz := x+border, z+border
	if ix < 0 || ix >= h.width || iz < 0 || iz >= h.height {
		return fmt.Errorf("sample (%d, %d) outside %dx%d height field", x, z, h.width, h.height)
	}
	h.samples[iz*h.width+ix] = height
	return nil
}

func (h *HeightField) recalcExtrema() {
	h.minHeight = math32.MaxFloat32
	h.maxHeight = -math32.MaxFloat32
	for z := 0; z <= h.CellsZ(); z++ {
		for x := 0; x <= h.CellsX(); x++ {
			s := h.HeightAtSample(x, z)
			h.minHeight = min(h.minHeight, s)
			h.maxHeight = max(h.maxHeight, s)
		}
	}
}

func catmullRom(p0, p1, p2, p3, t float32) float32 {
	return p1 + 0.5*t*(p2-p0+t*(2*p0-5*p1+4*p2-p3+t*(3*(p1-p2)+p3-p0)))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
