package sph

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/arrays"
)

// ParticleType classifies every particle slot. The total particle count is
// constant over a simulation: particles change type, never identity.
type ParticleType int

const (
	// Fluid particles carry the full pipeline.
	Fluid ParticleType = iota
	// Wall particles are static boundary samples.
	Wall
	// Inlet particles have prescribed inflow kinematics.
	Inlet
	// Outlet particles are advected out of the domain.
	Outlet
	// Buffer particles are inactive storage parked far away.
	Buffer
)

// State holds all per-particle fluid arrays. Index identity is stable for
// the lifetime of the simulation.
type State struct {
	Positions  *arrays.Vec3s
	Velocities *arrays.Vec3s
	Densities  *arrays.Scalars
	Pressures  *arrays.Scalars

	PressureAccels       *arrays.Vec3s
	ViscousAccels        *arrays.Vec3s
	SurfaceTensionAccels *arrays.Vec3s
	Accels               *arrays.Vec3s

	// Normals are the weighted surface normals used by the curvature term.
	Normals *arrays.Vec3s

	// DiffuseVelocities are the XSPH smoothing contributions.
	DiffuseVelocities *arrays.Vec3s

	Types []ParticleType

	// NeighborLists are rebuilt each step over non-buffer particles.
	NeighborLists [][]int
}

// NewState allocates fluid state for n dynamic particles.
func NewState(positions []mgl64.Vec3) *State {
	n := len(positions)
	s := &State{
		Positions:            arrays.New[mgl64.Vec3](n),
		Velocities:           arrays.New[mgl64.Vec3](n),
		Densities:            arrays.New[float64](n),
		Pressures:            arrays.New[float64](n),
		PressureAccels:       arrays.New[mgl64.Vec3](n),
		ViscousAccels:        arrays.New[mgl64.Vec3](n),
		SurfaceTensionAccels: arrays.New[mgl64.Vec3](n),
		Accels:               arrays.New[mgl64.Vec3](n),
		Normals:              arrays.New[mgl64.Vec3](n),
		DiffuseVelocities:    arrays.New[mgl64.Vec3](n),
		Types:                make([]ParticleType, n),
		NeighborLists:        make([][]int, n),
	}
	copy(s.Positions.Data(), positions)
	return s
}

// NumParticles returns the dynamic particle count.
func (s *State) NumParticles() int { return s.Positions.Len() }

// CountType returns how many particles currently have the given type.
func (s *State) CountType(t ParticleType) int {
	n := 0
	for _, pt := range s.Types {
		if pt == t {
			n++
		}
	}
	return n
}

// SetUniformVelocity assigns v to every dynamic particle.
func (s *State) SetUniformVelocity(v mgl64.Vec3) {
	s.Velocities.Fill(v)
}
