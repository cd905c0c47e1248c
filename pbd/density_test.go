package pbd

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/lancet/spatial"
)

func clusterPositions(spacing float64) []mgl64.Vec3 {
	var positions []mgl64.Vec3
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				positions = append(positions, mgl64.Vec3{
					float64(i) * spacing, float64(j) * spacing, float64(k) * spacing,
				})
			}
		}
	}
	return positions
}

// Projecting an off-rest-density cluster displaces particles while keeping
// the update finite and, by symmetry, the center of mass in place.
func TestConstantDensityProjection(t *testing.T) {
	positions := clusterPositions(0.05)
	s := NewState()
	s.AddBody(NewBody("fluid", positions))

	c := NewConstantDensityConstraint(s, 0, 0.2, spatial.UniformGridBasedSearch)
	c.SetRestDensity(1000.0)
	require.Len(t, c.Particles(), len(positions))

	centerOf := func() mgl64.Vec3 {
		pts := s.Bodies[0].Positions.Data()
		center := mgl64.Vec3{}
		for _, p := range pts {
			center = center.Add(p)
		}
		return center.Mul(1.0 / float64(len(pts)))
	}

	centerBefore := centerOf()
	c.Project(s, 0.01, XPBD)

	moved := 0.0
	for i, p := range s.Bodies[0].Positions.Data() {
		d := p.Sub(positions[i]).Len()
		require.False(t, math.IsNaN(d), "particle %d went NaN", i)
		moved += d
	}
	assert.Greater(t, moved, 0.0, "off-rest density produces corrections")

	// The pairwise updates are antisymmetric across the symmetric cluster.
	assert.InDelta(t, 0.0, centerOf().Sub(centerBefore).Len(), 1e-9)
}

func TestConstantDensityRespectsPins(t *testing.T) {
	positions := []mgl64.Vec3{{0, 0, 0}, {0.01, 0, 0}, {0, 0.01, 0}}
	s := NewState()
	s.AddBody(NewBody("fluid", positions))
	s.Bodies[0].Pin(0)

	c := NewConstantDensityConstraint(s, 0, 0.1, spatial.SpatialHashing)
	for i := 0; i < 5; i++ {
		c.Project(s, 0.01, XPBD)
	}

	assert.Equal(t, mgl64.Vec3{0, 0, 0}, s.Position(ParticleId{Body: 0, Particle: 0}))
}
