package pbd

import (
	"github.com/go-gl/mathgl/mgl64"
)

// SolverType selects between the extended and classical projection rules.
type SolverType int

const (
	// XPBD accumulates a Lagrange multiplier against a compliance term,
	// recovering material stiffness independent of step size.
	XPBD SolverType = iota
	// PBD is the classical stiffness-scaled projection; lambda is unused.
	PBD
)

// constraintEps guards degenerate denominators in projections.
const constraintEps = 1.0e-16

// Constraint couples 1 to 4 particles through a scalar function that is zero
// in the rest configuration. Degenerate geometry yields a skipped projection,
// never a failure.
type Constraint interface {
	// Particles returns the ordered particle references.
	Particles() []ParticleId
	// ZeroLambda resets the accumulated Lagrange multiplier; the solver
	// calls it at the start of every step.
	ZeroLambda()
	// Project performs one xPBD/PBD correction against the state.
	Project(s *State, dt float64, solver SolverType)
}

// base carries the fields shared by every constraint variant.
type base struct {
	particles  []ParticleId
	stiffness  float64
	compliance float64
	lambda     float64
	dcdx       []mgl64.Vec3
}

func newBase(arity int) base {
	return base{
		particles:  make([]ParticleId, arity),
		stiffness:  1.0,
		compliance: 1e-7,
		dcdx:       make([]mgl64.Vec3, arity),
	}
}

// Particles returns the ordered particle references.
func (b *base) Particles() []ParticleId { return b.particles }

// ZeroLambda resets the Lagrange multiplier.
func (b *base) ZeroLambda() { b.lambda = 0 }

// Lambda returns the accumulated multiplier of the current step.
func (b *base) Lambda() float64 { return b.lambda }

// SetStiffness sets the classical stiffness and the derived compliance.
func (b *base) SetStiffness(k float64) {
	b.stiffness = k
	b.compliance = 1.0 / k
}

// Stiffness returns the classical stiffness in [0, 1] (or the large pseudo
// stiffness used by near-rigid constraints).
func (b *base) Stiffness() float64 { return b.stiffness }

// SetCompliance sets the xPBD compliance directly.
func (b *base) SetCompliance(c float64) { b.compliance = c }

// evaluator computes the constraint value and per-particle gradients. It
// reports false when the configuration is degenerate and no update applies.
type evaluator func(s *State, dcdx []mgl64.Vec3) (c float64, ok bool)

// projectPositional runs the shared xPBD/PBD position correction:
//
//	dLambda = -(c + alpha*lambda) / (sum w_i |dc/dx_i|^2 + alpha)
//	x_i    += w_i * dLambda * dc/dx_i
//
// Pinned particles (w_i = 0) are never displaced.
func (b *base) projectPositional(s *State, dt float64, solver SolverType, eval evaluator) {
	if dt == 0 {
		return
	}
	c, ok := eval(s, b.dcdx)
	if !ok {
		return
	}

	dcMidc := 0.0
	for i, id := range b.particles {
		w := s.InvMass(id)
		dcMidc += w * b.dcdx[i].Dot(b.dcdx[i])
	}
	if dcMidc < constraintEps {
		return
	}

	var dLambda float64
	switch solver {
	case PBD:
		dLambda = -c * b.stiffness / dcMidc
	default:
		alpha := b.compliance / (dt * dt)
		dLambda = -(c + alpha*b.lambda) / (dcMidc + alpha)
		b.lambda += dLambda
	}

	for i, id := range b.particles {
		if w := s.InvMass(id); w > 0 {
			s.Displace(id, b.dcdx[i].Mul(w*dLambda))
		}
	}
}

// projectAngular applies a rotational-only correction: the gradient lives in
// the tangent space of each particle's orientation and is mapped through the
// body-frame inverse inertia.
func (b *base) projectAngular(s *State, dt float64, solver SolverType, eval evaluator) {
	if dt == 0 {
		return
	}
	c, ok := eval(s, b.dcdx)
	if !ok {
		return
	}

	// Generalized inverse mass over the diagonal body-frame inertia.
	w := 0.0
	for i, id := range b.particles {
		q := s.Orientation(id)
		invInertia := s.InvInertia(id)
		l := q.Inverse().Rotate(b.dcdx[i])
		w += l[0]*l[0]*invInertia.At(0, 0) +
			l[1]*l[1]*invInertia.At(1, 1) +
			l[2]*l[2]*invInertia.At(2, 2)
	}
	if w < constraintEps {
		return
	}

	var dLambda float64
	switch solver {
	case PBD:
		dLambda = -c * b.stiffness / w
	default:
		alpha := b.compliance / (dt * dt)
		dLambda = -(c + alpha*b.lambda) / (w + alpha)
		b.lambda += dLambda
	}

	for i, id := range b.particles {
		q := s.Orientation(id)
		invInertia := s.InvInertia(id)

		// Transform to the rest pose, apply inertia, transform back.
		rot := b.dcdx[i].Mul(dLambda)
		rot = q.Inverse().Rotate(rot)
		rot = invInertia.Mul3x1(rot)
		rot = q.Rotate(rot)

		scale := 1.0
		if phi := rot.Len(); phi > 0.5 { // max rotation per projection
			scale = 0.5 / phi
		}

		dq := mgl64.Quat{W: 0, V: rot.Mul(scale)}.Mul(q)
		q.W += dq.W * 0.5
		q.V = q.V.Add(dq.V.Mul(0.5))
		s.SetOrientation(id, q.Normalize())
	}
}
