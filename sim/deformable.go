package sim

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/pbd"
)

// RestGeometry is the rest-state input for one deformable body, supplied by
// a mesh loader.
type RestGeometry struct {
	Positions  []mgl64.Vec3
	Tetrahedra [][4]int
	Triangles  [][3]int
	// Weights optionally interpolate a surface mesh over the volume mesh;
	// the core stores them for output consumers.
	Weights []float64
}

// Material carries the constitutive parameters of a deformable body. Either
// the Lame constants or Young's modulus and Poisson's ratio must be set.
type Material struct {
	Type pbd.MaterialType

	Mu     float64
	Lambda float64

	YoungModulus float64
	PoissonRatio float64

	// MassDensity is the volumetric density used to distribute particle
	// masses.
	MassDensity float64
}

func (m Material) femConfig() pbd.FemConfig {
	if m.Mu != 0 || m.Lambda != 0 {
		return pbd.FemConfig{Mu: m.Mu, Lambda: m.Lambda,
			YoungModulus: m.YoungModulus, PoissonRatio: m.PoissonRatio}
	}
	return pbd.NewFemConfig(m.YoungModulus, m.PoissonRatio)
}

// AddDeformable builds a body from rest geometry: FEM tet plus volume
// constraints for each tetrahedron, distance constraints along triangle
// edges, and dihedral constraints across shared triangle edges. fixed lists
// pinned vertex indices (inverse mass zero).
func (s *Simulation) AddDeformable(name string, geom RestGeometry, mat Material, fixed []int) (int, error) {
	if len(geom.Positions) == 0 {
		return 0, fmt.Errorf("sim: deformable %q has no rest positions", name)
	}

	body := pbd.NewBody(name, geom.Positions)
	if mat.MassDensity > 0 {
		volume := totalVolume(geom)
		if volume > 0 {
			body.SetUniformMass(mat.MassDensity * volume)
		}
	}
	body.Pin(fixed...)
	bodyIdx := s.solver.AddBody(body)
	state := s.solver.State()

	pid := func(i int) pbd.ParticleId { return pbd.ParticleId{Body: bodyIdx, Particle: i} }

	femConfig := mat.femConfig()
	degenerate := 0
	for _, tet := range geom.Tetrahedra {
		fem, err := pbd.NewFemTetConstraint(state, pid(tet[0]), pid(tet[1]), pid(tet[2]), pid(tet[3]), mat.Type, femConfig)
		if err != nil {
			degenerate++
			continue
		}
		s.solver.AddConstraint(fem)

		vol, err := pbd.NewVolumeConstraint(state, pid(tet[0]), pid(tet[1]), pid(tet[2]), pid(tet[3]), 1e4)
		if err != nil {
			degenerate++
			continue
		}
		s.solver.AddConstraint(vol)
	}

	// Distance constraints along unique triangle edges; dihedral across
	// edges shared by two triangles. Edges are visited in sorted order so
	// constraint registration is deterministic.
	type edgeKey [2]int
	edgeTriangles := make(map[edgeKey][]int)
	var edgeOrder []edgeKey
	for t, tri := range geom.Triangles {
		for e := 0; e < 3; e++ {
			a, b := tri[e], tri[(e+1)%3]
			if a > b {
				a, b = b, a
			}
			key := edgeKey{a, b}
			if _, seen := edgeTriangles[key]; !seen {
				edgeOrder = append(edgeOrder, key)
			}
			edgeTriangles[key] = append(edgeTriangles[key], t)
		}
	}
	sort.Slice(edgeOrder, func(i, j int) bool {
		if edgeOrder[i][0] != edgeOrder[j][0] {
			return edgeOrder[i][0] < edgeOrder[j][0]
		}
		return edgeOrder[i][1] < edgeOrder[j][1]
	})
	for _, key := range edgeOrder {
		tris := edgeTriangles[key]
		dist, err := pbd.NewDistanceConstraint(state, pid(key[0]), pid(key[1]), 1e4)
		if err != nil {
			degenerate++
			continue
		}
		s.solver.AddConstraint(dist)

		if len(tris) == 2 {
			t0 := geom.Triangles[tris[0]]
			t1 := geom.Triangles[tris[1]]
			w0 := oppositeVertex(t0, key[0], key[1])
			w1 := oppositeVertex(t1, key[0], key[1])
			if w0 >= 0 && w1 >= 0 {
				dihedral := pbd.NewDihedralConstraint(state,
					pid(w0), pid(w1), pid(key[0]), pid(key[1]), 1e3)
				s.solver.AddConstraint(dihedral)
			}
		}
	}

	if degenerate > 0 {
		s.logger.Warn("degenerate rest elements skipped",
			"body", name, "count", degenerate)
	}
	s.graphDirty = true
	return bodyIdx, nil
}

func totalVolume(geom RestGeometry) float64 {
	v := 0.0
	for _, tet := range geom.Tetrahedra {
		p0 := geom.Positions[tet[0]]
		p1 := geom.Positions[tet[1]]
		p2 := geom.Positions[tet[2]]
		p3 := geom.Positions[tet[3]]
		tv := (1.0 / 6.0) * p1.Sub(p0).Cross(p2.Sub(p0)).Dot(p3.Sub(p0))
		if tv < 0 {
			tv = -tv
		}
		v += tv
	}
	return v
}

func oppositeVertex(tri [3]int, a, b int) int {
	for _, v := range tri {
		if v != a && v != b {
			return v
		}
	}
	return -1
}
