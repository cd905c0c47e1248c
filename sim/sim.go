// Package sim composes the deformable solver, the fluid systems, and the
// task graph into one time-stepped simulation.
package sim

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/config"
	"github.com/pthm-cable/lancet/pbd"
	"github.com/pthm-cable/lancet/sph"
	"github.com/pthm-cable/lancet/taskgraph"
	"github.com/pthm-cable/lancet/telemetry"
)

// Simulation owns one PBD solver, any number of SPH fluids, the per-tick
// task graph, and the optional telemetry recorder.
type Simulation struct {
	cfg    *config.Config
	logger *slog.Logger

	solver *pbd.Solver
	fluids []*sph.System

	thinPairs []thinPair

	graph      *taskgraph.Graph
	graphDirty bool

	recorder *telemetry.Recorder
	step     int
	exploded bool
}

// New builds a simulation from a validated configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Simulation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	solver, err := pbd.NewSolver(cfg.Solver, logger)
	if err != nil {
		return nil, err
	}
	recorder, err := telemetry.NewRecorder(cfg.Telemetry.OutputDir, cfg.Telemetry.LogEveryNSteps, logger)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		cfg:        cfg,
		logger:     logger,
		solver:     solver,
		recorder:   recorder,
		graphDirty: true,
	}, nil
}

// Solver exposes the deformable solver.
func (s *Simulation) Solver() *pbd.Solver { return s.solver }

// Fluids exposes the registered fluid systems.
func (s *Simulation) Fluids() []*sph.System { return s.fluids }

// Recorder exposes the telemetry recorder (may be nil).
func (s *Simulation) Recorder() *telemetry.Recorder { return s.recorder }

// AddFluid registers a fluid built from the given input.
func (s *Simulation) AddFluid(input FluidInput) (*sph.System, error) {
	system, err := buildFluid(s.cfg.Fluid, input, s.logger)
	if err != nil {
		return nil, err
	}
	s.fluids = append(s.fluids, system)
	s.graphDirty = true
	return system, nil
}

// buildGraph assembles the per-tick DAG: CCD detection feeds the PBD
// projection; each fluid pipeline is nested alongside so independent nodes
// may run concurrently.
func (s *Simulation) buildGraph() {
	g := taskgraph.New("simSource", "simSink")

	detect := taskgraph.NewNode("detectThinStructureCollisions", s.detectThinStructureCollisions)
	g.AddEdge(g.Source, s.solver.PredictNode())
	g.AddEdge(s.solver.PredictNode(), detect)
	g.AddEdge(detect, s.solver.ConstrainNode())
	g.AddEdge(s.solver.ConstrainNode(), s.solver.VelocityNode())
	g.AddEdge(s.solver.VelocityNode(), g.Sink)

	for i, fluid := range s.fluids {
		inner := taskgraph.New(
			fmt.Sprintf("fluid%dSource", i),
			fmt.Sprintf("fluid%dSink", i),
		)
		fluid.InitGraphEdges(inner, inner.Source, inner.Sink)
		g.NestGraph(inner, g.Source, g.Sink)
	}

	s.graph = g
	s.graphDirty = false
}

// Graph returns the per-tick task graph, building it on first use.
func (s *Simulation) Graph() *taskgraph.Graph {
	if s.graphDirty {
		s.buildGraph()
	}
	return s.graph
}

// Step executes one tick of the task graph and records telemetry.
func (s *Simulation) Step() error {
	if err := s.Graph().Execute(); err != nil {
		return err
	}

	s.exploded = false
	for _, f := range s.fluids {
		if f.ExplosionThisStep() {
			s.exploded = true
		}
	}
	s.record()
	s.step++
	return nil
}

// ExplosionThisStep reports whether any fluid tripped its stability guard
// during the last step.
func (s *Simulation) ExplosionThisStep() bool { return s.exploded }

// StepCount returns the number of completed steps.
func (s *Simulation) StepCount() int { return s.step }

func (s *Simulation) record() {
	if s.recorder == nil {
		return
	}
	stats := telemetry.StepStats{
		Step:            s.step,
		BodyCount:       len(s.solver.State().Bodies),
		ConstraintCount: len(s.solver.Constraints()),
		Explosion:       s.exploded,
	}
	for _, f := range s.fluids {
		st := f.State()
		stats.SimTime = f.SimTime()
		stats.FluidCount += st.CountType(sph.Fluid)
		stats.WallCount += st.CountType(sph.Wall)
		stats.InletCount += st.CountType(sph.Inlet)
		stats.OutletCount += st.CountType(sph.Outlet)
		stats.BufferCount += st.CountType(sph.Buffer)

		mean, max := telemetry.FieldStats(st.Densities.Data())
		stats.MeanDensity = mean
		stats.MaxDensity = max
		meanP, _ := telemetry.FieldStats(st.Pressures.Data())
		stats.MeanPressure = meanP
		for _, v := range st.Velocities.Data() {
			if speed := v.Len(); speed > stats.MaxSpeed {
				stats.MaxSpeed = speed
			}
		}
	}
	s.recorder.Record(stats)
}

// Positions returns the current positions of a body, for output consumers.
func (s *Simulation) Positions(body int) []mgl64.Vec3 {
	return s.solver.State().Bodies[body].Positions.Data()
}

// Velocities returns the current velocities of a body.
func (s *Simulation) Velocities(body int) []mgl64.Vec3 {
	return s.solver.State().Bodies[body].Velocities.Data()
}

// Close flushes telemetry output.
func (s *Simulation) Close() error {
	return s.recorder.Flush()
}
