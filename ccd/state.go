// Package ccd implements continuous collision detection between moving line
// segments, used for suture-like thin geometry.
package ccd

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Collision classification codes returned by TestCollision.
const (
	// NoCollision means the segments neither overlap nor crossed.
	NoCollision = 0
	// LineOverlap means the segments overlap within thickness with an
	// internal intersection in the current state.
	LineOverlap = 1
	// VertexOverlap means the closest approach is at segment endpoints
	// (external intersection) within thickness.
	VertexOverlap = 2
	// LinesCrossed means the segments passed through each other between the
	// two time samples.
	LinesCrossed = 3
)

const (
	// DefaultThickness is the assumed thickness of colliding segments.
	DefaultThickness = 0.0016
	defaultEpsilon   = 1e-10
	// defaultTolerance widens the [0,1] parameter interval when classifying
	// internal vs external intersections. It is not derived from geometry;
	// override on the state when scaling beyond unit thickness.
	defaultTolerance = 0.01
)

// State captures the closest-point algebra between two line segments
// (Xi, Xi1) and (Xj, Xj1) at one time sample.
type State struct {
	Xi, Xi1, Xj, Xj1 mgl64.Vec3

	// Ei and Ej are the edge vectors, W0 the offset Xj-Xi, and W the
	// shortest distance vector between the two infinite lines.
	Ei, Ej, W0, W mgl64.Vec3

	// Thickness of the colliding segment geometry.
	Thickness float64
	// Epsilon guards near-zero denominators.
	Epsilon float64
	// Tolerance widens the internal-intersection parameter interval.
	Tolerance float64

	si, sj float64
	pi, pj mgl64.Vec3
}

// NewState derives all closest-point quantities for one segment pair.
func NewState(i0, i1, j0, j1 mgl64.Vec3) State {
	s := State{
		Xi: i0, Xi1: i1, Xj: j0, Xj1: j1,
		Ei: i1.Sub(i0), Ej: j1.Sub(j0), W0: j0.Sub(i0),
		Thickness: DefaultThickness,
		Epsilon:   defaultEpsilon,
		Tolerance: defaultTolerance,
	}
	s.W = s.shortestDistanceVector()
	s.si = s.computeSi()
	s.sj = s.computeSj()
	s.pi = s.computePi()
	s.pj = s.computePj()
	return s
}

func (s *State) a() float64 { return s.Ei.Dot(s.Ei) }
func (s *State) b() float64 { return s.Ei.Dot(s.Ej) }
func (s *State) c() float64 { return s.Ej.Dot(s.Ej) }
func (s *State) d() float64 { return s.Ei.Dot(s.W0) }
func (s *State) e() float64 { return s.Ej.Dot(s.W0) }

func (s *State) denom() float64 { return s.a()*s.c() - s.b()*s.b() }

// Si is the parameterized closest point on segment Xi--Xi1; values inside
// [0,1] are internal intersections.
func (s *State) Si() float64 { return s.si }

// Sj is the parameterized closest point on segment Xj--Xj1.
func (s *State) Sj() float64 { return s.sj }

// Pi is the closest point on segment Xi--Xi1 to segment Xj--Xj1.
func (s *State) Pi() mgl64.Vec3 { return s.pi }

// Pj is the closest point on segment Xj--Xj1 to segment Xi--Xi1.
func (s *State) Pj() mgl64.Vec3 { return s.pj }

func (s *State) computeSi() float64 {
	acbb := s.denom()
	if math.Abs(acbb) < s.Epsilon {
		// Parallel lines: report a value well outside [0,1] so callers fall
		// back to endpoint checks.
		return -1.0
	}
	// w0 is inverted relative to the textbook derivation, hence the sign.
	return -1.0 * (s.b()*s.e() - s.c()*s.d()) / acbb
}

func (s *State) computeSj() float64 {
	acbb := s.denom()
	if math.Abs(acbb) < s.Epsilon {
		if s.b() < s.Epsilon {
			return -1.0
		}
		return s.d() / s.b()
	}
	return -1.0 * (s.a()*s.e() - s.b()*s.d()) / acbb
}

func (s *State) computePi() mgl64.Vec3 { return s.Xi.Add(s.Ei.Mul(s.si)) }
func (s *State) computePj() mgl64.Vec3 { return s.Xj.Add(s.Ej.Mul(s.sj)) }

func (s *State) shortestDistanceVector() mgl64.Vec3 {
	n := s.Ei.Cross(s.Ej).Normalize()
	return n.Mul(s.W0.Dot(n))
}

// computeWBar returns the smallest vector between endpoint pairs of the two
// segments: (xi,xj), (xi,xj1), (xi1,xj), (xi1,xj1). It overwrites si/sj and
// the closest points accordingly; call only after ruling out an internal
// intersection.
func (s *State) computeWBar() mgl64.Vec3 {
	type vertexPair struct {
		diff   mgl64.Vec3
		si, sj float64
	}
	pairs := [4]vertexPair{
		{s.Xj.Sub(s.Xi), 0, 0},
		{s.Xj1.Sub(s.Xi), 0, 1},
		{s.Xj.Sub(s.Xi1), 1, 0},
		{s.Xj1.Sub(s.Xi1), 1, 1},
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.diff.Len() < best.diff.Len() {
			best = p
		}
	}

	s.si = best.si
	s.sj = best.sj
	s.pi = s.computePi()
	s.pj = s.computePj()
	return best.diff
}

// computeWBar2 is the side-effect-free variant: the smallest endpoint-pair
// vector without touching si/sj.
func (s *State) computeWBar2() mgl64.Vec3 {
	pairs := [4]mgl64.Vec3{
		s.Xj.Sub(s.Xi),
		s.Xj1.Sub(s.Xi),
		s.Xj.Sub(s.Xi1),
		s.Xj1.Sub(s.Xi1),
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Len() < best.Len() {
			best = p
		}
	}
	return best
}

// TestCollision classifies the motion of two segment pairs between a previous
// and current time sample. It returns one of the collision codes and the
// estimated relative time of impact in [0, 1], where 0 is the previous sample
// and 1 the current one.
func TestCollision(prev, curr *State) (int, float64) {
	toi := 0.0
	tol := curr.Tolerance
	externalIntersection := curr.Si() < 0-tol || curr.Si() > 1+tol ||
		curr.Sj() < 0-tol || curr.Sj() > 1+tol

	currWBar := curr.W
	if externalIntersection {
		currWBar = curr.computeWBar2()
	}

	if currWBar.Len() < prev.Thickness+prev.Epsilon {
		toi = 1.0 // impact happens in the current time step
		if externalIntersection {
			return VertexOverlap, toi
		}
		return LineOverlap, toi
	}

	crossedEachOther := prev.W.Dot(curr.W) < 0
	if crossedEachOther && !externalIntersection {
		m := math.Copysign(1.0, curr.W.Dot(prev.W))
		denom := prev.W.Len() - m*curr.W.Len()
		if denom > prev.Epsilon {
			toi = prev.W.Len() / denom
		}
		return LinesCrossed, toi
	}

	return NoCollision, toi
}
