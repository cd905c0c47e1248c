// Package pbd implements the position-based dynamics core: per-body particle
// state, an extensible constraint set with xPBD projection, and the
// iterative solver loop.
package pbd

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/arrays"
)

// ParticleId addresses one particle as a (body, local index) pair. Ids are
// stable under storage reallocation; constraints never hold pointers into
// particle arrays.
type ParticleId struct {
	Body     int
	Particle int
}

// Body is an ordered set of particles plus optional orientation state for
// the angular constraints. A particle with inverse mass zero is pinned and
// never displaced by a projection.
type Body struct {
	Name string

	Positions      *arrays.Vec3s
	PrevPositions  *arrays.Vec3s
	Velocities     *arrays.Vec3s
	ExternalForces *arrays.Vec3s
	InvMasses      *arrays.Scalars

	// Orientation state, present only for oriented bodies.
	Orientations      []mgl64.Quat
	AngularVelocities []mgl64.Vec3
	InvInertias       []mgl64.Mat3
}

// NewBody creates a body of n particles at the given rest positions, all
// with unit inverse mass.
func NewBody(name string, restPositions []mgl64.Vec3) *Body {
	n := len(restPositions)
	b := &Body{
		Name:           name,
		Positions:      arrays.New[mgl64.Vec3](n),
		PrevPositions:  arrays.New[mgl64.Vec3](n),
		Velocities:     arrays.New[mgl64.Vec3](n),
		ExternalForces: arrays.New[mgl64.Vec3](n),
		InvMasses:      arrays.New[float64](n),
	}
	copy(b.Positions.Data(), restPositions)
	copy(b.PrevPositions.Data(), restPositions)
	b.InvMasses.Fill(1.0)
	return b
}

// NumParticles returns the particle count.
func (b *Body) NumParticles() int { return b.Positions.Len() }

// EnableOrientations allocates identity orientation state for every particle.
func (b *Body) EnableOrientations() {
	n := b.NumParticles()
	b.Orientations = make([]mgl64.Quat, n)
	b.AngularVelocities = make([]mgl64.Vec3, n)
	b.InvInertias = make([]mgl64.Mat3, n)
	for i := range b.Orientations {
		b.Orientations[i] = mgl64.QuatIdent()
		b.InvInertias[i] = mgl64.Ident3()
	}
}

// Oriented reports whether orientation state is present.
func (b *Body) Oriented() bool { return len(b.Orientations) > 0 }

// Pin sets the inverse mass of the given local particle indices to zero.
func (b *Body) Pin(indices ...int) {
	for _, i := range indices {
		b.InvMasses.Set(i, 0)
	}
}

// SetUniformMass distributes the given total mass over all particles.
func (b *Body) SetUniformMass(total float64) {
	if total <= 0 {
		return
	}
	perParticle := total / float64(b.NumParticles())
	b.InvMasses.Fill(1.0 / perParticle)
}

// State owns the particle arrays of all registered bodies for the lifetime
// of the simulation.
type State struct {
	Bodies []*Body
}

// NewState creates an empty state.
func NewState() *State { return &State{} }

// AddBody registers a body and returns its index.
func (s *State) AddBody(b *Body) int {
	s.Bodies = append(s.Bodies, b)
	return len(s.Bodies) - 1
}

// Position returns the current position of id.
func (s *State) Position(id ParticleId) mgl64.Vec3 {
	return s.Bodies[id.Body].Positions.At(id.Particle)
}

// SetPosition stores a position.
func (s *State) SetPosition(id ParticleId, p mgl64.Vec3) {
	s.Bodies[id.Body].Positions.Set(id.Particle, p)
}

// Displace adds d to the position of id.
func (s *State) Displace(id ParticleId, d mgl64.Vec3) {
	b := s.Bodies[id.Body]
	b.Positions.Set(id.Particle, b.Positions.At(id.Particle).Add(d))
}

// InvMass returns the inverse mass of id (0 means pinned).
func (s *State) InvMass(id ParticleId) float64 {
	return s.Bodies[id.Body].InvMasses.At(id.Particle)
}

// Velocity returns the velocity of id.
func (s *State) Velocity(id ParticleId) mgl64.Vec3 {
	return s.Bodies[id.Body].Velocities.At(id.Particle)
}

// Orientation returns the orientation of id; identity for unoriented bodies.
func (s *State) Orientation(id ParticleId) mgl64.Quat {
	b := s.Bodies[id.Body]
	if !b.Oriented() {
		return mgl64.QuatIdent()
	}
	return b.Orientations[id.Particle]
}

// SetOrientation stores an orientation; no-op for unoriented bodies.
func (s *State) SetOrientation(id ParticleId, q mgl64.Quat) {
	b := s.Bodies[id.Body]
	if b.Oriented() {
		b.Orientations[id.Particle] = q
	}
}

// InvInertia returns the body-frame inverse inertia tensor of id.
func (s *State) InvInertia(id ParticleId) mgl64.Mat3 {
	b := s.Bodies[id.Body]
	if !b.Oriented() {
		return mgl64.Ident3()
	}
	return b.InvInertias[id.Particle]
}
