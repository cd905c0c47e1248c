package pbd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSolver(t *testing.T, cfg Config) *Solver {
	t.Helper()
	s, err := NewSolver(cfg, nil)
	require.NoError(t, err)
	return s
}

func defaultConfig() Config {
	return Config{Iterations: 10, Damping: 0.01, Dt: 0.01, Solver: XPBD}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero iterations", Config{Iterations: 0, Damping: 0, Dt: 0.01}},
		{"negative dt", Config{Iterations: 5, Damping: 0, Dt: -1}},
		{"zero dt", Config{Iterations: 5, Damping: 0, Dt: 0}},
		{"damping above one", Config{Iterations: 5, Damping: 1.5, Dt: 0.01}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSolver(tc.cfg, nil)
			assert.Error(t, err)
		})
	}
}

// Particles with inverse mass zero keep their exact position across steps.
func TestPinnedParticlesNeverMove(t *testing.T) {
	solver := newTestSolver(t, defaultConfig())
	body := NewBody("cloth", []mgl64.Vec3{
		{0, 1, 0}, {1, 1, 0}, {0, 0, 0}, {1, 0, 0},
	})
	body.Pin(0, 1)
	solver.AddBody(body)

	s := solver.State()
	ids := []ParticleId{{0, 0}, {0, 1}, {0, 2}, {0, 3}}
	for _, pair := range [][2]int{{0, 2}, {1, 3}, {2, 3}, {0, 3}} {
		c, err := NewDistanceConstraint(s, ids[pair[0]], ids[pair[1]], 1e4)
		require.NoError(t, err)
		solver.AddConstraint(c)
	}

	pinned0 := s.Position(ids[0])
	pinned1 := s.Position(ids[1])
	for step := 0; step < 100; step++ {
		solver.Step()
		assert.Equal(t, pinned0, s.Position(ids[0]))
		assert.Equal(t, pinned1, s.Position(ids[1]))
	}
	// The free corners fell but stayed attached.
	assert.Less(t, s.Position(ids[2])[1], 0.0)
	assert.InDelta(t, 1.0, s.Position(ids[2]).Sub(pinned0).Len(), 0.15)
}

// With no velocities, no external forces, no gravity, and satisfied
// constraints, a step is the identity on positions.
func TestIdentityStep(t *testing.T) {
	solver := newTestSolver(t, defaultConfig())
	solver.SetGravity(mgl64.Vec3{})

	rest := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	solver.AddBody(NewBody("triangle", rest))

	s := solver.State()
	c01, err := NewDistanceConstraint(s, ParticleId{0, 0}, ParticleId{0, 1}, 1.0)
	require.NoError(t, err)
	solver.AddConstraint(c01)

	solver.Step()
	for i, want := range rest {
		assert.InDelta(t, 0, s.Position(ParticleId{0, i}).Sub(want).Len(), 1e-14)
	}
}

func TestPostStepHookSeesFinalPositions(t *testing.T) {
	solver := newTestSolver(t, defaultConfig())
	solver.AddBody(NewBody("point", []mgl64.Vec3{{0, 10, 0}}))

	var hookPos mgl64.Vec3
	solver.PostStepHook = func(s *State) {
		hookPos = s.Position(ParticleId{0, 0})
	}
	solver.Step()
	assert.Equal(t, solver.State().Position(ParticleId{0, 0}), hookPos)
	assert.Less(t, hookPos[1], 10.0, "free particle fell under gravity")
}

func TestVelocityDamping(t *testing.T) {
	cfg := defaultConfig()
	cfg.Damping = 1.0
	solver := newTestSolver(t, cfg)
	solver.SetGravity(mgl64.Vec3{})

	body := NewBody("point", []mgl64.Vec3{{0, 0, 0}})
	body.Velocities.Set(0, mgl64.Vec3{1, 0, 0})
	solver.AddBody(body)

	solver.Step()
	v := solver.State().Velocity(ParticleId{0, 0})
	assert.InDelta(t, 1.0*(1.0-cfg.Damping*cfg.Dt), v[0], 1e-12)
}

func TestAddConstraintRejectsUnknownParticles(t *testing.T) {
	solver := newTestSolver(t, defaultConfig())
	solver.AddBody(NewBody("one", []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}))

	s := solver.State()
	good, err := NewDistanceConstraint(s, ParticleId{0, 0}, ParticleId{0, 1}, 1.0)
	require.NoError(t, err)
	solver.AddConstraint(good)
	require.Len(t, solver.Constraints(), 1)

	bad := &DistanceConstraint{base: newBase(2), restLength: 1}
	bad.particles[0] = ParticleId{0, 0}
	bad.particles[1] = ParticleId{3, 7}
	solver.AddConstraint(bad)
	assert.Len(t, solver.Constraints(), 1, "constraint with dangling reference dropped")
}

func TestSolverGraphNodes(t *testing.T) {
	solver := newTestSolver(t, defaultConfig())
	solver.AddBody(NewBody("point", []mgl64.Vec3{{0, 5, 0}}))

	g := newGraphForTest()
	solver.InitGraphEdges(g, g.Source, g.Sink)
	require.NoError(t, g.Execute())
	assert.Less(t, solver.State().Position(ParticleId{0, 0})[1], 5.0)
}
