package sim

import (
	"github.com/pthm-cable/lancet/ccd"
	"github.com/pthm-cable/lancet/pbd"
)

// thinPair is one registered suture-suture interaction: two bodies whose
// particles form polylines, swept against each other every step.
type thinPair struct {
	bodyA, bodyB int
	sweep        *ccd.LineMeshCCD
}

// AddThinStructureInteraction registers continuous collision detection
// between two suture-like bodies. Pass the same index twice for
// self collision.
func (s *Simulation) AddThinStructureInteraction(bodyA, bodyB int) {
	sweep := ccd.NewLineMeshCCD()
	sweep.Thickness = s.cfg.Collision.Thickness
	s.thinPairs = append(s.thinPairs, thinPair{bodyA: bodyA, bodyB: bodyB, sweep: sweep})
	s.graphDirty = true
}

func (s *Simulation) polyline(body int) *ccd.LineMesh {
	return ccd.NewPolyline(s.solver.State().Bodies[body].Positions.Data())
}

func (s *Simulation) prevPolyline(body int) *ccd.LineMesh {
	return ccd.NewPolyline(s.solver.State().Bodies[body].PrevPositions.Data())
}

// detectThinStructureCollisions sweeps every registered pair between the
// previous and predicted positions, turning each collision element pair into
// a transient edge-edge constraint for the upcoming projection.
func (s *Simulation) detectThinStructureCollisions() {
	if len(s.thinPairs) == 0 {
		s.solver.SetCollisionConstraints(nil)
		return
	}

	state := s.solver.State()
	var constraints []pbd.Constraint
	for _, pair := range s.thinPairs {
		meshA := s.polyline(pair.bodyA)
		var meshB *ccd.LineMesh
		if pair.bodyB == pair.bodyA {
			meshB = meshA
		} else {
			meshB = s.polyline(pair.bodyB)
		}

		pair.sweep.UpdatePreviousGeometry(s.prevPolyline(pair.bodyA), s.prevPolyline(pair.bodyB))
		elemsA, elemsB, err := pair.sweep.Compute(meshA, meshB)
		if err != nil {
			s.logger.Warn("thin structure sweep failed", "err", err)
			continue
		}

		prevA := state.Bodies[pair.bodyA].PrevPositions
		prevB := state.Bodies[pair.bodyB].PrevPositions
		for i := range elemsA {
			ea := elemsA[i]
			eb := elemsB[i]
			constraints = append(constraints, pbd.NewEdgeEdgeCCDConstraint(
				pbd.ParticleId{Body: pair.bodyA, Particle: ea.Ids[0]},
				pbd.ParticleId{Body: pair.bodyA, Particle: ea.Ids[1]},
				pbd.ParticleId{Body: pair.bodyB, Particle: eb.Ids[0]},
				pbd.ParticleId{Body: pair.bodyB, Particle: eb.Ids[1]},
				prevA.At(ea.Ids[0]), prevA.At(ea.Ids[1]),
				prevB.At(eb.Ids[0]), prevB.At(eb.Ids[1]),
				s.cfg.Collision.Thickness,
				s.cfg.Collision.ContactStiffness,
				s.cfg.Collision.ContactStiffness,
			))
		}
	}
	s.solver.SetCollisionConstraints(constraints)
}
