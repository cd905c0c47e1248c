package pbd

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/ccd"
)

// PointTriangleConstraint pushes a point out of a triangle it penetrates,
// splitting the correction barycentrically between the triangle vertices.
// The point and the triangle may live on different bodies; each side applies
// its own contact stiffness.
type PointTriangleConstraint struct {
	base
	proximity  float64
	stiffnessA float64
	stiffnessB float64
}

// NewPointTriangleConstraint couples point p with triangle (t0, t1, t2).
// proximity is the combined contact offset of the two sides.
func NewPointTriangleConstraint(p, t0, t1, t2 ParticleId, proximity, stiffnessA, stiffnessB float64) *PointTriangleConstraint {
	c := &PointTriangleConstraint{
		base:       newBase(4),
		proximity:  proximity,
		stiffnessA: stiffnessA,
		stiffnessB: stiffnessB,
	}
	c.particles[0] = p
	c.particles[1] = t0
	c.particles[2] = t1
	c.particles[3] = t2
	return c
}

// Project resolves the contact, if the point projects inside the triangle
// and within proximity.
func (c *PointTriangleConstraint) Project(s *State, dt float64, solver SolverType) {
	if dt == 0 {
		return
	}

	x0 := s.Position(c.particles[0])
	x1 := s.Position(c.particles[1])
	x2 := s.Position(c.particles[2])
	x3 := s.Position(c.particles[3])

	x12 := x2.Sub(x1)
	x13 := x3.Sub(x1)
	n := x12.Cross(x13)
	x01 := x0.Sub(x1)

	nn := n.Dot(n)
	if nn < constraintEps {
		return
	}
	alpha := n.Dot(x12.Cross(x01)) / nn
	beta := n.Dot(x01.Cross(x13)) / nn
	if alpha < 0 || beta < 0 || alpha+beta > 1 {
		// Projection lands outside the triangle.
		return
	}

	n = n.Normalize()
	l := x01.Dot(n)
	if l > c.proximity {
		return
	}

	gamma := 1.0 - alpha - beta
	grad := [4]mgl64.Vec3{
		n,
		n.Mul(-alpha),
		n.Mul(-beta),
		n.Mul(-gamma),
	}

	denom := 0.0
	for i, id := range c.particles {
		denom += s.InvMass(id) * grad[i].Dot(grad[i])
	}
	if denom < constraintEps {
		return
	}
	lambda := (l - c.proximity) / denom

	sideStiffness := [4]float64{c.stiffnessA, c.stiffnessB, c.stiffnessB, c.stiffnessB}
	for i, id := range c.particles {
		if w := s.InvMass(id); w > 0 {
			s.Displace(id, grad[i].Mul(-w*lambda*sideStiffness[i]))
		}
	}
}

// PointNormalConstraint pushes a single particle out along a fixed
// penetration vector supplied by an analytical collision test.
type PointNormalConstraint struct {
	base
	contactPoint     mgl64.Vec3
	normal           mgl64.Vec3
	penetrationDepth float64
}

// NewPointNormalConstraint couples particle p against the contact described
// by contactPoint and penetrationVector (the direction and depth the particle
// is pushed, pointing out of the surface).
func NewPointNormalConstraint(p ParticleId, contactPoint, penetrationVector mgl64.Vec3, stiffness float64) *PointNormalConstraint {
	c := &PointNormalConstraint{
		base:             newBase(1),
		contactPoint:     contactPoint,
		penetrationDepth: penetrationVector.Len(),
		normal:           penetrationVector.Normalize(),
	}
	c.particles[0] = p
	c.SetStiffness(stiffness)
	return c
}

func (c *PointNormalConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	x := s.Position(c.particles[0])
	diff := x.Sub(c.contactPoint)
	// Penetration still remaining during the solve, clamped to [0, depth].
	cv := math.Max(math.Min(diff.Dot(c.normal.Mul(-1)), c.penetrationDepth), 0.0)
	dcdx[0] = c.normal.Mul(-1)
	return cv, true
}

// Project applies one correction.
func (c *PointNormalConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}

// EdgeEdgeCCDConstraint resolves a detected segment-segment crossing or
// overlap. It references the current endpoints of both segments; the
// previous-step endpoints are fixed snapshots taken at construction. The
// correction acts along the closest-point normal only and is split between
// the four current endpoints by the closest-point parameters.
type EdgeEdgeCCDConstraint struct {
	base
	prevA0, prevA1 mgl64.Vec3
	prevB0, prevB1 mgl64.Vec3
	thickness      float64
	stiffnessA     float64
	stiffnessB     float64
}

// NewEdgeEdgeCCDConstraint couples segment (a0, a1) with segment (b0, b1),
// given their positions at the previous time sample.
func NewEdgeEdgeCCDConstraint(
	a0, a1, b0, b1 ParticleId,
	prevA0, prevA1, prevB0, prevB1 mgl64.Vec3,
	thickness, stiffnessA, stiffnessB float64,
) *EdgeEdgeCCDConstraint {
	c := &EdgeEdgeCCDConstraint{
		base:       newBase(4),
		prevA0:     prevA0,
		prevA1:     prevA1,
		prevB0:     prevB0,
		prevB1:     prevB1,
		thickness:  thickness,
		stiffnessA: stiffnessA,
		stiffnessB: stiffnessB,
	}
	c.particles[0] = a0
	c.particles[1] = a1
	c.particles[2] = b0
	c.particles[3] = b1
	return c
}

// Project gates on the CCD classification and applies a normal-only
// displacement when a collision is present.
func (c *EdgeEdgeCCDConstraint) Project(s *State, dt float64, solver SolverType) {
	if dt == 0 {
		return
	}

	prevState := ccd.NewState(c.prevA0, c.prevA1, c.prevB0, c.prevB1)
	currState := ccd.NewState(
		s.Position(c.particles[0]), s.Position(c.particles[1]),
		s.Position(c.particles[2]), s.Position(c.particles[3]),
	)
	prevState.Thickness = c.thickness
	currState.Thickness = c.thickness

	code, _ := ccd.TestCollision(&prevState, &currState)
	if code == ccd.NoCollision {
		return
	}

	si := currState.Si()
	sj := currState.Sj()
	n0 := prevState.Pi().Sub(prevState.Pj())
	n1 := currState.Pi().Sub(currState.Pj())

	n := n1
	crossing := false
	if n0.Dot(n1) < 0 {
		n = n.Mul(-1)
		crossing = true
	}

	d := n.Len()
	if d <= 0 {
		return
	}
	n = n.Mul(1 / d)

	var cv float64
	if crossing {
		cv = d + c.thickness
	} else {
		cv = math.Abs(d - c.thickness)
	}

	grad := [4]mgl64.Vec3{
		n.Mul(1 - si),
		n.Mul(si),
		n.Mul(-(1 - sj)),
		n.Mul(-sj),
	}

	denom := 0.0
	for i, id := range c.particles {
		denom += s.InvMass(id) * grad[i].Dot(grad[i])
	}
	if denom < constraintEps {
		return
	}
	lambda := cv / denom

	sideStiffness := [4]float64{c.stiffnessA, c.stiffnessA, c.stiffnessB, c.stiffnessB}
	for i, id := range c.particles {
		if w := s.InvMass(id); w > 0 {
			s.Displace(id, grad[i].Mul(w*lambda*sideStiffness[i]))
		}
	}
}
