package sph

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/parallel"
	"github.com/pthm-cable/lancet/spatial"
	"github.com/pthm-cable/lancet/taskgraph"
)

// System is the SPH fluid: particle state plus the staged per-step pipeline
// (find neighbors, density, pressure, viscosity, surface tension, sum,
// integrate, move) with inlet/outlet boundary conditions.
type System struct {
	cfg     Config
	state   *State
	kernels Kernels

	searcher *spatial.NeighborSearch
	bc       *BoundaryConditions
	logger   *slog.Logger

	dt        float64
	simTime   float64
	explosion bool

	// Compact views over non-buffer particles, rebuilt per step so parked
	// particles cost nothing in the neighbor search.
	active          []int
	activePositions []mgl64.Vec3
	activeNeighbors [][]int

	findParticleNeighborsNode *taskgraph.Node
	computeDensityNode        *taskgraph.Node
	normalizeDensityNode      *taskgraph.Node
	computePressureAccelNode  *taskgraph.Node
	computeViscosityNode      *taskgraph.Node
	computeSurfaceTensionNode *taskgraph.Node
	sumAccelsNode             *taskgraph.Node
	computeTimeStepSizeNode   *taskgraph.Node
	integrateNode             *taskgraph.Node
	updateVelocityNode        *taskgraph.Node
	moveParticlesNode         *taskgraph.Node
}

// NewSystem creates a fluid from dynamic particle positions, all typed
// Fluid. Use SetBoundaryConditions to add walls, inlet and outlet.
func NewSystem(cfg Config, positions []mgl64.Vec3, logger *slog.Logger) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	if logger == nil {
		logger = slog.Default()
	}

	s := &System{
		cfg:      cfg,
		state:    NewState(positions),
		searcher: spatial.NewNeighborSearch(cfg.NeighborSearchMethod, cfg.kernelRadius),
		logger:   logger,
		dt:       cfg.MaxTimestep,
	}
	s.kernels.Initialize(cfg.kernelRadius)

	s.findParticleNeighborsNode = taskgraph.NewNode("findParticleNeighbors", s.findParticleNeighbors)
	s.computeDensityNode = taskgraph.NewNode("computeDensity", s.computeDensity)
	s.normalizeDensityNode = taskgraph.NewNode("normalizeDensity", s.normalizeDensity)
	s.computePressureAccelNode = taskgraph.NewNode("computePressureAccel", s.computePressureAccel)
	s.computeViscosityNode = taskgraph.NewNode("computeViscosity", s.computeViscosity)
	s.computeSurfaceTensionNode = taskgraph.NewNode("computeSurfaceTension", s.computeSurfaceTension)
	s.sumAccelsNode = taskgraph.NewNode("sumAccels", s.sumAccels)
	s.computeTimeStepSizeNode = taskgraph.NewNode("computeTimeStepSize", s.computeTimeStepSize)
	s.integrateNode = taskgraph.NewNode("integrate", s.integrate)
	s.updateVelocityNode = taskgraph.NewNode("updateVelocity", s.updateVelocity)
	s.moveParticlesNode = taskgraph.NewNode("moveParticles", s.moveParticles)
	return s, nil
}

// SetBoundaryConditions replaces the particle set with the combined
// positions and types produced by NewBoundaryConditions.
func (s *System) SetBoundaryConditions(bc *BoundaryConditions, positions []mgl64.Vec3, types []ParticleType) {
	s.bc = bc
	s.state = NewState(positions)
	copy(s.state.Types, types)
	for i, t := range types {
		if t == Inlet {
			s.state.Velocities.Set(i, bc.ComputeParabolicInletVelocity(positions[i]))
		}
	}
}

// State exposes the particle arrays.
func (s *System) State() *State { return s.state }

// Config returns the fluid configuration with derived values filled.
func (s *System) Config() Config { return s.cfg }

// BoundaryConditions returns the installed boundary conditions, or nil.
func (s *System) BoundaryConditions() *BoundaryConditions { return s.bc }

// TimeStep returns the step size chosen by the CFL condition.
func (s *System) TimeStep() float64 { return s.dt }

// SimTime returns the accumulated simulated time.
func (s *System) SimTime() float64 { return s.simTime }

// ExplosionThisStep reports whether the stability guard tripped during the
// last step.
func (s *System) ExplosionThisStep() bool { return s.explosion }

// Task node accessors, published so a host can interleave extra work.

// FindParticleNeighborsNode returns the neighbor search stage.
func (s *System) FindParticleNeighborsNode() *taskgraph.Node { return s.findParticleNeighborsNode }

// ComputeDensityNode returns the density stage.
func (s *System) ComputeDensityNode() *taskgraph.Node { return s.computeDensityNode }

// ComputePressureAccelNode returns the pressure stage.
func (s *System) ComputePressureAccelNode() *taskgraph.Node { return s.computePressureAccelNode }

// ComputeViscosityNode returns the viscosity stage.
func (s *System) ComputeViscosityNode() *taskgraph.Node { return s.computeViscosityNode }

// ComputeSurfaceTensionNode returns the surface tension stage.
func (s *System) ComputeSurfaceTensionNode() *taskgraph.Node { return s.computeSurfaceTensionNode }

// SumAccelsNode returns the acceleration sum stage.
func (s *System) SumAccelsNode() *taskgraph.Node { return s.sumAccelsNode }

// ComputeTimeStepSizeNode returns the CFL stage.
func (s *System) ComputeTimeStepSizeNode() *taskgraph.Node { return s.computeTimeStepSizeNode }

// IntegrateNode returns the integration stage.
func (s *System) IntegrateNode() *taskgraph.Node { return s.integrateNode }

// UpdateVelocityNode returns the XSPH smoothing stage.
func (s *System) UpdateVelocityNode() *taskgraph.Node { return s.updateVelocityNode }

// MoveParticlesNode returns the position update / boundary stage.
func (s *System) MoveParticlesNode() *taskgraph.Node { return s.moveParticlesNode }

// InitGraphEdges publishes the pipeline into g between source and sink.
func (s *System) InitGraphEdges(g *taskgraph.Graph, source, sink *taskgraph.Node) {
	g.AddEdge(source, s.findParticleNeighborsNode)
	g.AddEdge(s.findParticleNeighborsNode, s.computeDensityNode)

	densityOut := s.computeDensityNode
	if s.cfg.NormalizeDensity {
		g.AddEdge(s.computeDensityNode, s.normalizeDensityNode)
		densityOut = s.normalizeDensityNode
	}

	g.AddEdge(densityOut, s.computePressureAccelNode)
	g.AddEdge(densityOut, s.computeViscosityNode)
	g.AddEdge(densityOut, s.computeSurfaceTensionNode)

	g.AddEdge(s.computePressureAccelNode, s.sumAccelsNode)
	g.AddEdge(s.computeViscosityNode, s.sumAccelsNode)
	g.AddEdge(s.computeSurfaceTensionNode, s.sumAccelsNode)

	g.AddEdge(s.sumAccelsNode, s.computeTimeStepSizeNode)
	g.AddEdge(s.computeTimeStepSizeNode, s.integrateNode)
	g.AddEdge(s.integrateNode, s.updateVelocityNode)
	g.AddEdge(s.updateVelocityNode, s.moveParticlesNode)
	g.AddEdge(s.moveParticlesNode, sink)
}

// Step runs the full pipeline once, sequentially.
func (s *System) Step() {
	s.findParticleNeighbors()
	s.computeDensity()
	if s.cfg.NormalizeDensity {
		s.normalizeDensity()
	}
	s.computePressureAccel()
	s.computeViscosity()
	s.computeSurfaceTension()
	s.sumAccels()
	s.computeTimeStepSize()
	s.integrate()
	s.updateVelocity()
	s.moveParticles()
}

// moving reports whether particle i takes part in the dynamics this step.
func (s *System) moving(i int) bool {
	t := s.state.Types[i]
	return t == Fluid || t == Inlet || t == Outlet
}

// findParticleNeighbors rebuilds the per-particle neighbor lists over the
// compact set of non-buffer particles.
func (s *System) findParticleNeighbors() {
	st := s.state
	positions := st.Positions.Data()

	s.active = s.active[:0]
	s.activePositions = s.activePositions[:0]
	for i := range positions {
		if st.Types[i] == Buffer {
			continue
		}
		s.active = append(s.active, i)
		s.activePositions = append(s.activePositions, positions[i])
	}

	if cap(s.activeNeighbors) < len(s.active) {
		s.activeNeighbors = make([][]int, len(s.active))
	}
	s.activeNeighbors = s.activeNeighbors[:len(s.active)]

	if err := s.searcher.NeighborsSelf(s.activeNeighbors, s.activePositions); err != nil {
		s.logger.Warn("neighbor search failed", "err", err)
		return
	}

	// Translate compact indices back to particle ids.
	parallel.For(len(s.active), func(a int) {
		gi := s.active[a]
		list := st.NeighborLists[gi][:0]
		for _, q := range s.activeNeighbors[a] {
			list = append(list, s.active[q])
		}
		st.NeighborLists[gi] = list
	})
}

// computeDensity accumulates rho_p = sum m W(p-q) over the neighbor list,
// optionally including wall samples.
func (s *System) computeDensity() {
	st := s.state
	positions := st.Positions.Data()
	densities := st.Densities.Data()
	mass := s.cfg.particleMass

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		sum := 0.0
		for _, q := range st.NeighborLists[p] {
			if st.Types[q] == Wall && !s.cfg.DensityWithBoundary {
				continue
			}
			sum += s.kernels.Poly6.W(positions[p].Sub(positions[q]))
		}
		densities[p] = sum * mass
	})
}

// normalizeDensity applies a Shepard correction so free surfaces do not read
// as low density.
func (s *System) normalizeDensity() {
	st := s.state
	positions := st.Positions.Data()
	densities := st.Densities.Data()
	mass := s.cfg.particleMass

	normalized := make([]float64, len(densities))
	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		weightSum := 0.0
		for _, q := range st.NeighborLists[p] {
			if st.Types[q] == Wall && !s.cfg.DensityWithBoundary {
				continue
			}
			weightSum += s.kernels.Poly6.W(positions[p].Sub(positions[q])) * mass * s.cfg.restDensityInv
		}
		if weightSum > 0 {
			normalized[p] = densities[p] / weightSum
		} else {
			normalized[p] = densities[p]
		}
	})
	copy(densities, normalized)
}

// particlePressure is the Tait equation of state, clamped so the fluid
// never pulls.
func (s *System) particlePressure(density float64) float64 {
	ratio := density * s.cfg.restDensityInv
	r2 := ratio * ratio
	p := s.cfg.PressureStiffness * (r2*r2*r2*ratio - 1.0)
	if p < 0 {
		return 0
	}
	return p
}

// computePressureAccel evaluates the symmetric pressure gradient term.
func (s *System) computePressureAccel() {
	st := s.state
	positions := st.Positions.Data()
	densities := st.Densities.Data()
	pressures := st.Pressures.Data()
	accels := st.PressureAccels.Data()
	mass := s.cfg.particleMass

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		pressures[p] = s.particlePressure(densities[p])
	})

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		if densities[p] < 1e-10 {
			accels[p] = mgl64.Vec3{}
			return
		}
		var accel mgl64.Vec3
		pp := pressures[p] / (densities[p] * densities[p])
		for _, q := range st.NeighborLists[p] {
			if q == p {
				continue
			}
			var pq float64
			if st.Types[q] == Wall {
				// Pressure mirrored across the boundary sample.
				pq = pressures[p] / s.cfg.restDensitySqr
			} else {
				if densities[q] < 1e-10 {
					continue
				}
				pq = pressures[q] / (densities[q] * densities[q])
			}
			grad := s.kernels.Spiky.GradW(positions[p].Sub(positions[q]))
			accel = accel.Add(grad.Mul(pp + pq))
		}
		accels[p] = accel.Mul(-mass)
	})
}

// computeViscosity evaluates the viscous acceleration against fluid and
// wall neighbors.
func (s *System) computeViscosity() {
	st := s.state
	positions := st.Positions.Data()
	velocities := st.Velocities.Data()
	densities := st.Densities.Data()
	accels := st.ViscousAccels.Data()
	mass := s.cfg.particleMass

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		var accel mgl64.Vec3
		for _, q := range st.NeighborLists[p] {
			if q == p {
				continue
			}
			lap := s.kernels.Viscosity.Laplacian(positions[p].Sub(positions[q]))
			if st.Types[q] == Wall {
				dv := velocities[p].Mul(-1) // walls are static
				accel = accel.Add(dv.Mul(s.cfg.BoundaryViscosity * mass * s.cfg.restDensityInv * lap))
				continue
			}
			if densities[q] < 1e-10 {
				continue
			}
			dv := velocities[q].Sub(velocities[p])
			accel = accel.Add(dv.Mul(s.cfg.DynamicViscosity * mass / densities[q] * lap))
		}
		accels[p] = accel
	})
}

// computeSurfaceTension evaluates the Akinci cohesion and curvature terms.
func (s *System) computeSurfaceTension() {
	st := s.state
	positions := st.Positions.Data()
	densities := st.Densities.Data()
	normals := st.Normals.Data()
	accels := st.SurfaceTensionAccels.Data()
	mass := s.cfg.particleMass
	sigma := s.cfg.SurfaceTensionStiffness

	// Weighted surface normals.
	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		var n mgl64.Vec3
		for _, q := range st.NeighborLists[p] {
			if q == p || st.Types[q] == Wall {
				continue
			}
			if densities[q] < 1e-10 {
				continue
			}
			grad := s.kernels.Poly6.GradW(positions[p].Sub(positions[q]))
			n = n.Add(grad.Mul(mass / densities[q]))
		}
		normals[p] = n.Mul(s.cfg.kernelRadius)
	})

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		var accel mgl64.Vec3
		for _, q := range st.NeighborLists[p] {
			if q == p || st.Types[q] == Wall {
				continue
			}
			r := positions[p].Sub(positions[q])
			r2 := r.Dot(r)
			if r2 > s.cfg.kernelRadiusSqr || r2 < 1e-20 {
				continue
			}
			denom := densities[p] + densities[q]
			if denom < 1e-10 {
				continue
			}
			kij := 2.0 * s.cfg.RestDensity / denom

			// Cohesion between particle pairs.
			rl := math.Sqrt(r2)
			cohesion := r.Mul(-sigma * mass * s.kernels.Cohesion.W(r) / rl)
			// Curvature flattening the normal field.
			curvature := normals[p].Sub(normals[q]).Mul(-sigma)

			accel = accel.Add(cohesion.Add(curvature).Mul(kij))
		}
		accels[p] = accel
	})
}

// sumAccels combines pressure, viscous, surface tension and gravity.
func (s *System) sumAccels() {
	st := s.state
	gravity := s.cfg.GravityVec()
	accels := st.Accels.Data()
	pa := st.PressureAccels.Data()
	va := st.ViscousAccels.Data()
	sta := st.SurfaceTensionAccels.Data()

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) {
			return
		}
		accels[p] = pa[p].Add(va[p]).Add(sta[p]).Add(gravity)
	})
}

// computeTimeStepSize applies the CFL condition over the fastest particle.
func (s *System) computeTimeStepSize() {
	maxSpeedSqr := 0.0
	velocities := s.state.Velocities.Data()
	for _, p := range s.active {
		if !s.moving(p) {
			continue
		}
		v2 := velocities[p].Dot(velocities[p])
		if v2 > maxSpeedSqr {
			maxSpeedSqr = v2
		}
	}

	dt := s.cfg.MaxTimestep
	if maxSpeedSqr > 0 {
		dt = s.cfg.CFLFactor * s.cfg.kernelRadius / math.Sqrt(maxSpeedSqr)
	}
	s.dt = math.Min(s.cfg.MaxTimestep, math.Max(s.cfg.MinTimestep, dt))
}

// integrate advances velocities semi-implicitly. Inlet particles keep their
// prescribed profile.
func (s *System) integrate() {
	st := s.state
	velocities := st.Velocities.Data()
	accels := st.Accels.Data()

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if !s.moving(p) || st.Types[p] == Inlet {
			return
		}
		velocities[p] = velocities[p].Add(accels[p].Mul(s.dt))
	})
}

// updateVelocity applies the optional XSPH smoothing toward the neighbor
// velocity field.
func (s *System) updateVelocity() {
	if s.cfg.Eta == 0 {
		return
	}
	st := s.state
	positions := st.Positions.Data()
	velocities := st.Velocities.Data()
	densities := st.Densities.Data()
	diffuse := st.DiffuseVelocities.Data()
	mass := s.cfg.particleMass

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if st.Types[p] != Fluid {
			return
		}
		var dv mgl64.Vec3
		for _, q := range st.NeighborLists[p] {
			if q == p || st.Types[q] != Fluid {
				continue
			}
			if densities[q] < 1e-10 {
				continue
			}
			w := s.kernels.Poly6.W(positions[p].Sub(positions[q]))
			dv = dv.Add(velocities[q].Sub(velocities[p]).Mul(mass / densities[q] * w))
		}
		diffuse[p] = dv.Mul(s.cfg.Eta)
	})

	parallel.For(len(s.active), func(a int) {
		p := s.active[a]
		if st.Types[p] != Fluid {
			return
		}
		velocities[p] = velocities[p].Add(diffuse[p])
	})
}

// moveParticles advances positions, applies the boundary conditions, and
// recovers from numerical explosions by zeroing motion while keeping
// positions.
func (s *System) moveParticles() {
	st := s.state
	positions := st.Positions.Data()
	velocities := st.Velocities.Data()

	speedCeiling := s.cfg.SpeedOfSound
	exploded := false

	for _, p := range s.active {
		if !s.moving(p) {
			continue
		}
		if velocities[p].Len() > speedCeiling {
			exploded = true
			break
		}
	}

	if exploded {
		s.explosion = true
		s.logger.Warn("numerical explosion detected; velocities and forces reset",
			"simTime", s.simTime, "speedCeiling", speedCeiling)
		st.Accels.Fill(mgl64.Vec3{})
		st.PressureAccels.Fill(mgl64.Vec3{})
		st.ViscousAccels.Fill(mgl64.Vec3{})
		st.SurfaceTensionAccels.Fill(mgl64.Vec3{})
		for _, p := range s.active {
			if s.moving(p) {
				velocities[p] = mgl64.Vec3{}
			}
		}
	} else {
		s.explosion = false
	}

	for _, p := range s.active {
		if !s.moving(p) {
			continue
		}
		if st.Types[p] == Inlet && s.bc != nil {
			velocities[p] = s.bc.ComputeParabolicInletVelocity(positions[p])
		}
		positions[p] = positions[p].Add(velocities[p].Mul(s.dt))
	}

	if s.bc != nil {
		s.applyBoundaryTransitions()
	}
	s.simTime += s.dt
}

// applyBoundaryTransitions reclassifies particles crossing the inlet and
// outlet domains, recycling parked buffer particles so the population stays
// constant.
func (s *System) applyBoundaryTransitions() {
	st := s.state
	positions := st.Positions.Data()
	velocities := st.Velocities.Data()
	bc := s.bc

	for _, p := range s.active {
		switch st.Types[p] {
		case Inlet:
			if !bc.IsInInletDomain(positions[p]) {
				// The particle entered the fluid domain; backfill the inlet
				// from the buffer reserve.
				st.Types[p] = Fluid
				if n := len(bc.bufferIndices); n > 0 {
					b := bc.bufferIndices[n-1]
					bc.bufferIndices = bc.bufferIndices[:n-1]
					positions[b] = bc.PlaceParticleAtInlet(positions[p])
					velocities[b] = bc.ComputeParabolicInletVelocity(positions[b])
					st.Types[b] = Inlet
				}
			}
		case Fluid:
			if bc.IsInOutletDomain(positions[p]) {
				st.Types[p] = Outlet
			}
		case Outlet:
			if !bc.IsInFluidDomain(positions[p]) {
				// Park the particle for reuse.
				st.Types[p] = Buffer
				positions[p] = bc.BufferCoord()
				velocities[p] = mgl64.Vec3{}
				bc.bufferIndices = append(bc.bufferIndices, p)
			}
		}
	}
}
