package pbd

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/taskgraph"
)

// Config holds the solver inputs recognized at construction.
type Config struct {
	// Iterations is the inner projection iteration count per step.
	Iterations int `yaml:"iterations"`
	// Damping in [0, 1] scales velocities after integration.
	Damping float64 `yaml:"damping"`
	// Dt is the fixed step duration.
	Dt float64 `yaml:"dt"`
	// Solver selects XPBD (default) or classical PBD.
	Solver SolverType `yaml:"solver"`
}

// Validate reports invalid configuration values.
func (c *Config) Validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("pbd: iterations must be positive, got %d", c.Iterations)
	}
	if c.Damping < 0 || c.Damping > 1 {
		return fmt.Errorf("pbd: damping must be in [0,1], got %v", c.Damping)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("pbd: dt must be positive, got %v", c.Dt)
	}
	return nil
}

// Solver owns the particle state and the ordered constraint list, and
// advances them by Δt per step:
//
//  1. predict positions from velocities and external forces
//  2. reset Lagrange multipliers
//  3. project every constraint for N iterations, in registration order
//  4. derive velocities from the position delta and damp them
//  5. fire the post-step hook
type Solver struct {
	cfg   Config
	state *State

	constraints []Constraint
	// collisionConstraints are transient, regenerated by collision
	// detection before every step and projected after the regular set.
	collisionConstraints []Constraint
	gravity              mgl64.Vec3

	// PostStepHook runs after velocities are updated so consumers may read
	// final positions.
	PostStepHook func(*State)

	logger *slog.Logger

	predictNode   *taskgraph.Node
	constrainNode *taskgraph.Node
	velocityNode  *taskgraph.Node
}

// NewSolver creates a solver over an empty state.
func NewSolver(cfg Config, logger *slog.Logger) (*Solver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Solver{
		cfg:     cfg,
		state:   NewState(),
		gravity: mgl64.Vec3{0, -9.81, 0},
		logger:  logger,
	}
	s.predictNode = taskgraph.NewNode("pbdPredictPositions", s.predictPositions)
	s.constrainNode = taskgraph.NewNode("pbdSolveConstraints", s.solveConstraints)
	s.velocityNode = taskgraph.NewNode("pbdUpdateVelocities", s.updateVelocities)
	return s, nil
}

// State returns the owned particle state.
func (s *Solver) State() *State { return s.state }

// Config returns the solver configuration.
func (s *Solver) Config() Config { return s.cfg }

// SetGravity overrides the default gravity applied as an external force.
func (s *Solver) SetGravity(g mgl64.Vec3) { s.gravity = g }

// AddBody registers a body and returns its index.
func (s *Solver) AddBody(b *Body) int { return s.state.AddBody(b) }

// AddConstraint appends a constraint. Registration order fixes the
// deterministic projection order within a step.
func (s *Solver) AddConstraint(c Constraint) {
	for _, id := range c.Particles() {
		if id.Body < 0 || id.Body >= len(s.state.Bodies) ||
			id.Particle < 0 || id.Particle >= s.state.Bodies[id.Body].NumParticles() {
			s.logger.Warn("constraint references unknown particle; dropped",
				"body", id.Body, "particle", id.Particle)
			return
		}
	}
	s.constraints = append(s.constraints, c)
}

// Constraints returns the registered constraints in projection order.
func (s *Solver) Constraints() []Constraint { return s.constraints }

// SetCollisionConstraints replaces the transient collision constraint set
// for the upcoming step.
func (s *Solver) SetCollisionConstraints(cs []Constraint) {
	s.collisionConstraints = cs
}

// CollisionConstraints returns the transient collision constraints of the
// current step.
func (s *Solver) CollisionConstraints() []Constraint { return s.collisionConstraints }

// PredictNode is the task node predicting positions from velocities.
func (s *Solver) PredictNode() *taskgraph.Node { return s.predictNode }

// ConstrainNode is the task node running the projection iterations.
func (s *Solver) ConstrainNode() *taskgraph.Node { return s.constrainNode }

// VelocityNode is the task node deriving velocities from position deltas.
func (s *Solver) VelocityNode() *taskgraph.Node { return s.velocityNode }

// InitGraphEdges publishes the solver's nodes into g between source and sink.
func (s *Solver) InitGraphEdges(g *taskgraph.Graph, source, sink *taskgraph.Node) {
	g.AddEdge(source, s.predictNode)
	g.AddEdge(s.predictNode, s.constrainNode)
	g.AddEdge(s.constrainNode, s.velocityNode)
	g.AddEdge(s.velocityNode, sink)
}

// Step advances the simulation by one Δt.
func (s *Solver) Step() {
	s.predictPositions()
	s.solveConstraints()
	s.updateVelocities()
}

func (s *Solver) predictPositions() {
	dt := s.cfg.Dt
	for _, b := range s.state.Bodies {
		positions := b.Positions.Data()
		prev := b.PrevPositions.Data()
		velocities := b.Velocities.Data()
		forces := b.ExternalForces.Data()
		invMasses := b.InvMasses.Data()

		for i := range positions {
			prev[i] = positions[i]
			w := invMasses[i]
			if w == 0 {
				continue
			}
			accel := s.gravity.Add(forces[i].Mul(w))
			velocities[i] = velocities[i].Add(accel.Mul(dt))
			positions[i] = positions[i].Add(velocities[i].Mul(dt))
		}
	}
}

func (s *Solver) solveConstraints() {
	for _, c := range s.constraints {
		c.ZeroLambda()
	}
	for _, c := range s.collisionConstraints {
		c.ZeroLambda()
	}
	// The projection loop is serialized: constraint-to-constraint ordering
	// within an iteration is part of the contract.
	for iter := 0; iter < s.cfg.Iterations; iter++ {
		for _, c := range s.constraints {
			c.Project(s.state, s.cfg.Dt, s.cfg.Solver)
		}
		for _, c := range s.collisionConstraints {
			c.Project(s.state, s.cfg.Dt, s.cfg.Solver)
		}
	}
}

func (s *Solver) updateVelocities() {
	dt := s.cfg.Dt
	damp := 1.0 - s.cfg.Damping*dt
	for _, b := range s.state.Bodies {
		positions := b.Positions.Data()
		prev := b.PrevPositions.Data()
		velocities := b.Velocities.Data()
		invMasses := b.InvMasses.Data()

		for i := range positions {
			if invMasses[i] == 0 {
				continue
			}
			velocities[i] = positions[i].Sub(prev[i]).Mul(1.0 / dt).Mul(damp)
		}
	}
	if s.PostStepHook != nil {
		s.PostStepHook(s.state)
	}
}
