package pbd

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DistanceConstraint keeps two particles at their rest separation.
type DistanceConstraint struct {
	base
	restLength float64
}

// NewDistanceConstraint measures the rest length between p0 and p1 from the
// given state.
func NewDistanceConstraint(s *State, p0, p1 ParticleId, stiffness float64) (*DistanceConstraint, error) {
	c := &DistanceConstraint{base: newBase(2)}
	c.particles[0] = p0
	c.particles[1] = p1
	c.SetStiffness(stiffness)
	c.restLength = s.Position(p0).Sub(s.Position(p1)).Len()
	if c.restLength == 0 {
		return nil, fmt.Errorf("pbd: distance constraint over coincident particles %v, %v", p0, p1)
	}
	return c, nil
}

// RestLength returns the rest separation.
func (c *DistanceConstraint) RestLength() float64 { return c.restLength }

func (c *DistanceConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	p0 := s.Position(c.particles[0])
	p1 := s.Position(c.particles[1])

	diff := p0.Sub(p1)
	length := diff.Len()
	if length == 0 {
		return 0, false
	}
	dcdx[0] = diff.Mul(1.0 / length)
	dcdx[1] = dcdx[0].Mul(-1)
	return length - c.restLength, true
}

// Project applies one correction.
func (c *DistanceConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}

// BendConstraint resists bending of three consecutive particles by pulling
// the middle particle toward the triangle centroid distance it had at rest.
type BendConstraint struct {
	base
	restLength float64
}

// NewBendConstraint builds a bend over (p0, p1, p2) with p1 the middle
// particle; the rest value is the distance from the centroid to p1.
func NewBendConstraint(s *State, p0, p1, p2 ParticleId, stiffness float64) *BendConstraint {
	c := &BendConstraint{base: newBase(3)}
	c.particles[0] = p0
	c.particles[1] = p1
	c.particles[2] = p2
	c.SetStiffness(stiffness)

	center := s.Position(p0).Add(s.Position(p1)).Add(s.Position(p2)).Mul(1.0 / 3.0)
	c.restLength = s.Position(p1).Sub(center).Len()
	return c
}

func (c *BendConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	p0 := s.Position(c.particles[0])
	p1 := s.Position(c.particles[1])
	p2 := s.Position(c.particles[2])

	center := p0.Add(p1).Add(p2).Mul(1.0 / 3.0)
	diff := p1.Sub(center)
	dist := diff.Len()
	if dist < constraintEps {
		return 0, false
	}

	dcdx[0] = diff.Mul(-2.0 / dist)
	dcdx[1] = dcdx[0].Mul(-2.0)
	dcdx[2] = dcdx[0]
	return dist - c.restLength, true
}

// Project applies one correction.
func (c *BendConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}

// DihedralConstraint maintains the rest dihedral angle between the triangles
// (p0, p2, p3) and (p1, p3, p2) sharing the edge (p2, p3).
type DihedralConstraint struct {
	base
	restAngle float64
}

// NewDihedralConstraint measures the rest angle from the given state.
func NewDihedralConstraint(s *State, p0, p1, p2, p3 ParticleId, stiffness float64) *DihedralConstraint {
	c := &DihedralConstraint{base: newBase(4)}
	c.particles[0] = p0
	c.particles[1] = p1
	c.particles[2] = p2
	c.particles[3] = p3
	c.SetStiffness(stiffness)

	x0 := s.Position(p0)
	x1 := s.Position(p1)
	x2 := s.Position(p2)
	x3 := s.Position(p3)

	n1 := x2.Sub(x0).Cross(x3.Sub(x0)).Normalize()
	n2 := x3.Sub(x1).Cross(x2.Sub(x1)).Normalize()
	e := x3.Sub(x2)
	c.restAngle = math.Atan2(n1.Cross(n2).Dot(e), e.Len()*n1.Dot(n2))
	return c
}

func (c *DihedralConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	p0 := s.Position(c.particles[0])
	p1 := s.Position(c.particles[1])
	p2 := s.Position(c.particles[2])
	p3 := s.Position(c.particles[3])

	e := p3.Sub(p2)
	e1 := p3.Sub(p0)
	e2 := p0.Sub(p2)
	e3 := p3.Sub(p1)
	e4 := p1.Sub(p2)

	n1 := e1.Cross(e)
	n2 := e.Cross(e3)
	a1 := n1.Len()
	a2 := n2.Len()
	n1 = n1.Mul(1 / a1)
	n2 = n2.Mul(1 / a2)

	l := e.Len()
	if l < constraintEps {
		return 0, false
	}

	dcdx[0] = n1.Mul(-l / a1)
	dcdx[1] = n2.Mul(-l / a2)
	dcdx[2] = n1.Mul(e.Dot(e1) / (a1 * l)).Add(n2.Mul(e.Dot(e3) / (a2 * l)))
	dcdx[3] = n1.Mul(e.Dot(e2) / (a1 * l)).Add(n2.Mul(e.Dot(e4) / (a2 * l)))

	return math.Atan2(n1.Cross(n2).Dot(e), l*n1.Dot(n2)) - c.restAngle, true
}

// Project applies one correction.
func (c *DihedralConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}

// AreaConstraint preserves the rest area of a triangle.
type AreaConstraint struct {
	base
	restArea float64
}

// NewAreaConstraint measures the rest area from the given state.
func NewAreaConstraint(s *State, p0, p1, p2 ParticleId, stiffness float64) (*AreaConstraint, error) {
	c := &AreaConstraint{base: newBase(3)}
	c.particles[0] = p0
	c.particles[1] = p1
	c.particles[2] = p2
	c.SetStiffness(stiffness)

	x0 := s.Position(p0)
	x1 := s.Position(p1)
	x2 := s.Position(p2)
	c.restArea = 0.5 * x1.Sub(x0).Cross(x2.Sub(x0)).Len()
	if c.restArea == 0 {
		return nil, fmt.Errorf("pbd: area constraint over a degenerate rest triangle")
	}
	return c, nil
}

func (c *AreaConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	p0 := s.Position(c.particles[0])
	p1 := s.Position(c.particles[1])
	p2 := s.Position(c.particles[2])

	e1 := p0.Sub(p1)
	e2 := p1.Sub(p2)
	e3 := p2.Sub(p0)

	n := e1.Cross(e2)
	area := 0.5 * n.Len()
	if area < constraintEps {
		return 0, false
	}
	n = n.Mul(1 / (2 * area))

	dcdx[0] = e2.Cross(n)
	dcdx[1] = e3.Cross(n)
	dcdx[2] = e1.Cross(n)
	return area - c.restArea, true
}

// Project applies one correction.
func (c *AreaConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}

// VolumeConstraint preserves the signed rest volume of a tetrahedron.
type VolumeConstraint struct {
	base
	restVolume float64
}

// NewVolumeConstraint measures the rest volume from the given state.
func NewVolumeConstraint(s *State, p0, p1, p2, p3 ParticleId, stiffness float64) (*VolumeConstraint, error) {
	c := &VolumeConstraint{base: newBase(4)}
	c.particles[0] = p0
	c.particles[1] = p1
	c.particles[2] = p2
	c.particles[3] = p3
	c.SetStiffness(stiffness)

	x0 := s.Position(p0)
	x1 := s.Position(p1)
	x2 := s.Position(p2)
	x3 := s.Position(p3)
	c.restVolume = (1.0 / 6.0) * x1.Sub(x0).Cross(x2.Sub(x0)).Dot(x3.Sub(x0))
	if c.restVolume == 0 {
		return nil, fmt.Errorf("pbd: volume constraint over a coplanar rest tetrahedron")
	}
	return c, nil
}

func (c *VolumeConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	x1 := s.Position(c.particles[0])
	x2 := s.Position(c.particles[1])
	x3 := s.Position(c.particles[2])
	x4 := s.Position(c.particles[3])

	const oneSixth = 1.0 / 6.0
	dcdx[0] = x2.Sub(x3).Cross(x4.Sub(x2)).Mul(oneSixth)
	dcdx[1] = x3.Sub(x1).Cross(x4.Sub(x1)).Mul(oneSixth)
	dcdx[2] = x4.Sub(x1).Cross(x2.Sub(x1)).Mul(oneSixth)
	dcdx[3] = x2.Sub(x1).Cross(x3.Sub(x1)).Mul(oneSixth)

	volume := dcdx[3].Dot(x4.Sub(x1))
	return volume - c.restVolume, true
}

// Project applies one correction.
func (c *VolumeConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}
