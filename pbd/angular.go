package pbd

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AngularHingeConstraint aligns the up axis of a single oriented particle
// with a world hinge axis, leaving rotation about the hinge free.
type AngularHingeConstraint struct {
	base
	hingeAxis mgl64.Vec3
}

// NewAngularHingeConstraint constrains p0's local up axis to hingeAxis.
func NewAngularHingeConstraint(p0 ParticleId, hingeAxis mgl64.Vec3, compliance float64) *AngularHingeConstraint {
	c := &AngularHingeConstraint{base: newBase(1), hingeAxis: hingeAxis}
	c.particles[0] = p0
	c.SetCompliance(compliance)
	return c
}

func (c *AngularHingeConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	up := quatCol(s.Orientation(c.particles[0]), 1)

	dir := c.hingeAxis.Cross(up)
	length := dir.Len()
	if length < constraintEps {
		return 0, false
	}
	dcdx[0] = dir.Mul(1 / length)
	return length, true
}

// Project applies one rotational correction.
func (c *AngularHingeConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectAngular(s, dt, solver, c.evaluate)
}

// AngularDistanceConstraint drives one particle's orientation to another's,
// optionally through a fixed rotational offset.
type AngularDistanceConstraint struct {
	base
	offset mgl64.Quat
}

// NewAngularDistanceConstraint constrains p0 to match p1 with zero offset.
func NewAngularDistanceConstraint(p0, p1 ParticleId, compliance float64) *AngularDistanceConstraint {
	return NewAngularDistanceConstraintOffset(p0, p1, mgl64.QuatIdent(), compliance)
}

// NewAngularDistanceConstraintOffset constrains p0 to match p1 through the
// given rotational offset.
func NewAngularDistanceConstraintOffset(p0, p1 ParticleId, offset mgl64.Quat, compliance float64) *AngularDistanceConstraint {
	c := &AngularDistanceConstraint{base: newBase(2), offset: offset}
	c.particles[0] = p0
	c.particles[1] = p1
	c.SetCompliance(compliance)
	return c
}

// NewAngularDistanceConstraintCurrentOffset captures the present relative
// rotation between p0 and p1 as the offset to maintain.
func NewAngularDistanceConstraintCurrentOffset(s *State, p0, p1 ParticleId, compliance float64) *AngularDistanceConstraint {
	offset := s.Orientation(p1).Inverse().Mul(s.Orientation(p0))
	return NewAngularDistanceConstraintOffset(p0, p1, offset, compliance)
}

func (c *AngularDistanceConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	q0 := s.Orientation(c.particles[0])
	q1 := s.Orientation(c.particles[1]).Mul(c.offset)

	// Rotation taking q0 to q1, as an axis-angle pair.
	dq := q1.Mul(q0.Inverse())
	if dq.W < 0 {
		dq = mgl64.Quat{W: -dq.W, V: dq.V.Mul(-1)}
	}
	axisLen := dq.V.Len()
	if axisLen < constraintEps {
		return 0, false
	}
	angle := 2.0 * math.Atan2(axisLen, dq.W)

	dcdx[0] = dq.V.Mul(1 / axisLen)
	dcdx[1] = dcdx[0].Mul(-1)
	return -angle, true
}

// Project applies one rotational correction.
func (c *AngularDistanceConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectAngular(s, dt, solver, c.evaluate)
}

// quatCol returns the given column of the rotation matrix of q: column 0, 1,
// 2 are the rotated local x, y (up), z axes.
func quatCol(q mgl64.Quat, col int) mgl64.Vec3 {
	m := q.Mat4()
	return mgl64.Vec3{m[col*4], m[col*4+1], m[col*4+2]}
}
