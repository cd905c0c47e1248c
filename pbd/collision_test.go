package pbd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointTriangleResolvesPenetration(t *testing.T) {
	s := NewState()
	s.AddBody(NewBody("point", []mgl64.Vec3{{0.25, 0.02, 0.25}}))
	// Wound so the triangle normal points up, toward the point.
	s.AddBody(NewBody("triangle", []mgl64.Vec3{
		{0, 0, 0}, {0, 0, 1}, {1, 0, 0},
	}))
	s.Bodies[1].Pin(0, 1, 2)

	c := NewPointTriangleConstraint(
		ParticleId{0, 0},
		ParticleId{1, 0}, ParticleId{1, 1}, ParticleId{1, 2},
		0.1, 1.0, 1.0,
	)
	for i := 0; i < 100; i++ {
		c.Project(s, 0.01, XPBD)
	}

	// Point driven to the proximity distance above the triangle plane.
	assert.InDelta(t, 0.1, s.Position(ParticleId{0, 0})[1], 1e-6)
}

func TestPointTriangleOutsideDoesNothing(t *testing.T) {
	s := NewState()
	s.AddBody(NewBody("point", []mgl64.Vec3{{5, 0.02, 5}}))
	s.AddBody(NewBody("triangle", []mgl64.Vec3{
		{0, 0, 0}, {0, 0, 1}, {1, 0, 0},
	}))

	c := NewPointTriangleConstraint(
		ParticleId{0, 0},
		ParticleId{1, 0}, ParticleId{1, 1}, ParticleId{1, 2},
		0.1, 1.0, 1.0,
	)
	before := s.Position(ParticleId{0, 0})
	c.Project(s, 0.01, XPBD)
	assert.Equal(t, before, s.Position(ParticleId{0, 0}))
}

func TestPointNormalPushesAlongPenetrationVector(t *testing.T) {
	s := NewState()
	s.AddBody(NewBody("point", []mgl64.Vec3{{0, -0.05, 0}}))

	// Penetrating 0.05 below the floor plane y = 0; the resolution vector
	// points back out of the surface.
	c := NewPointNormalConstraint(
		ParticleId{0, 0},
		mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{0, 0.05, 0},
		1.0,
	)
	for i := 0; i < 200; i++ {
		c.Project(s, 0.01, PBD)
	}
	assert.InDelta(t, 0.0, s.Position(ParticleId{0, 0})[1], 1e-4)
}

// An edge sweeping through another edge is pulled back to the contact
// surface instead of tunnelling.
func TestEdgeEdgeCCDConstraintStopsTunnelling(t *testing.T) {
	s := NewState()
	s.AddBody(NewBody("a", []mgl64.Vec3{{0, 0, -0.01}, {0, 0, 0.01}}))
	s.AddBody(NewBody("b", []mgl64.Vec3{{-0.01, -0.01, 0}, {0.01, -0.01, 0}}))
	s.Bodies[0].Pin(0, 1)

	prevB0 := mgl64.Vec3{-0.01, 0.01, 0}
	prevB1 := mgl64.Vec3{0.01, 0.01, 0}

	c := NewEdgeEdgeCCDConstraint(
		ParticleId{0, 0}, ParticleId{0, 1},
		ParticleId{1, 0}, ParticleId{1, 1},
		mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01},
		prevB0, prevB1,
		0.0016, 1.0, 1.0,
	)

	for i := 0; i < 200; i++ {
		c.Project(s, 0.01, XPBD)
	}

	// Edge B ends up back on the +y side of edge A.
	assert.Greater(t, s.Position(ParticleId{1, 0})[1], 0.0)
	assert.Greater(t, s.Position(ParticleId{1, 1})[1], 0.0)

	// The static edge never moved.
	assert.Equal(t, mgl64.Vec3{0, 0, -0.01}, s.Position(ParticleId{0, 0}))
	assert.Equal(t, mgl64.Vec3{0, 0, 0.01}, s.Position(ParticleId{0, 1}))
}

func TestAngularHingeAlignsUpAxis(t *testing.T) {
	s := NewState()
	b := NewBody("oriented", []mgl64.Vec3{{0, 0, 0}})
	b.EnableOrientations()
	// Tilt the body 90 degrees about x so its up axis points along z.
	b.Orientations[0] = mgl64.QuatRotate(1.5707963, mgl64.Vec3{1, 0, 0})
	s.AddBody(b)

	c := NewAngularHingeConstraint(ParticleId{0, 0}, mgl64.Vec3{0, 1, 0}, 1e-9)
	for i := 0; i < 500; i++ {
		c.Project(s, 0.01, XPBD)
	}

	up := quatCol(s.Orientation(ParticleId{0, 0}), 1)
	require.InDelta(t, 1.0, up.Dot(mgl64.Vec3{0, 1, 0}), 1e-3)
}

func TestAngularDistanceMatchesOrientations(t *testing.T) {
	s := NewState()
	b := NewBody("oriented", []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}})
	b.EnableOrientations()
	b.Orientations[0] = mgl64.QuatRotate(0.8, mgl64.Vec3{0, 0, 1})
	// Particle 1 is the orientation target; give it no rotational freedom.
	b.InvInertias[1] = mgl64.Mat3{}
	s.AddBody(b)

	c := NewAngularDistanceConstraint(ParticleId{0, 0}, ParticleId{0, 1}, 1e-9)
	for i := 0; i < 500; i++ {
		c.Project(s, 0.01, XPBD)
	}

	q0 := s.Orientation(ParticleId{0, 0})
	q1 := s.Orientation(ParticleId{0, 1})
	dq := q1.Mul(q0.Inverse())
	assert.InDelta(t, 1.0, mgl64.Abs(dq.W), 1e-3, "orientations aligned")
}
