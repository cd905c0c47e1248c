package pbd

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/parallel"
	"github.com/pthm-cable/lancet/spatial"
)

// ConstantDensityConstraint keeps a particle set at constant density, the
// position-based-fluids formulation. It couples every particle of one body
// and owns its own neighbor search; the per-particle multiplier
//
//	lambda_p = ((rho_p/rho_0) - 1) / (sum_q |gradW|^2 / rho_0^2 + eps)
//
// drives the position update dp = (1/rho_0) * sum_q (lambda_p+lambda_q)*gradW.
type ConstantDensityConstraint struct {
	base
	body int

	restDensity float64
	maxDist     float64
	maxDistSqr  float64
	relaxation  float64

	wPoly6Coeff float64
	wSpikyCoeff float64

	lambdas   []float64
	densities []float64
	deltas    []mgl64.Vec3
	neighbors [][]int
	searcher  *spatial.NeighborSearch
}

// NewConstantDensityConstraint builds the constraint over every particle of
// the given body. maxDist is the kernel support radius.
func NewConstantDensityConstraint(s *State, body int, maxDist float64, method spatial.Method) *ConstantDensityConstraint {
	n := s.Bodies[body].NumParticles()
	c := &ConstantDensityConstraint{
		base:        newBase(0),
		body:        body,
		restDensity: 6378.0,
		maxDist:     maxDist,
		maxDistSqr:  maxDist * maxDist,
		relaxation:  600.0,
		lambdas:     make([]float64, n),
		densities:   make([]float64, n),
		deltas:      make([]mgl64.Vec3, n),
		neighbors:   make([][]int, n),
		searcher:    spatial.NewNeighborSearch(method, maxDist),
	}
	c.wPoly6Coeff = 315.0 / (64.0 * math.Pi * math.Pow(maxDist, 9))
	c.wSpikyCoeff = 15.0 / (math.Pi * math.Pow(maxDist, 6))

	for i := 0; i < n; i++ {
		c.particles = append(c.particles, ParticleId{Body: body, Particle: i})
	}
	return c
}

// SetRestDensity overrides the rest density.
func (c *ConstantDensityConstraint) SetRestDensity(rho float64) { c.restDensity = rho }

func (c *ConstantDensityConstraint) wPoly6(pi, pj mgl64.Vec3) float64 {
	diff := pi.Sub(pj)
	r2 := diff.Dot(diff)
	if r2 > c.maxDistSqr || r2 < 1e-20 {
		return 0
	}
	d := c.maxDistSqr - r2
	return c.wPoly6Coeff * d * d * d
}

func (c *ConstantDensityConstraint) gradSpiky(pi, pj mgl64.Vec3) mgl64.Vec3 {
	r := pi.Sub(pj)
	r2 := r.Dot(r)
	if r2 > c.maxDistSqr || r2 < 1e-20 {
		return mgl64.Vec3{}
	}
	rl := math.Sqrt(r2)
	hr := c.maxDist - rl
	return r.Mul(c.wSpikyCoeff * -3.0 * hr * hr)
}

// Project runs the three staged passes (density, multiplier, update) over
// all particles. Solver type and dt are irrelevant to this formulation.
func (c *ConstantDensityConstraint) Project(s *State, _ float64, _ SolverType) {
	positions := s.Bodies[c.body].Positions.Data()
	n := len(positions)

	if err := c.searcher.NeighborsSelf(c.neighbors, positions); err != nil {
		return
	}

	parallel.For(n, func(i int) {
		sum := 0.0
		for _, q := range c.neighbors[i] {
			sum += c.wPoly6(positions[i], positions[q])
		}
		c.densities[i] = sum
	})

	parallel.For(n, func(i int) {
		densityConstraint := c.densities[i]/c.restDensity - 1
		gradientSum := 0.0
		for _, q := range c.neighbors[i] {
			g := c.gradSpiky(positions[i], positions[q])
			gradientSum += g.Dot(g) / (c.restDensity * c.restDensity)
		}
		c.lambdas[i] = densityConstraint / (gradientSum + c.relaxation)
	})

	parallel.For(n, func(i int) {
		var gradLambdaSum mgl64.Vec3
		for _, q := range c.neighbors[i] {
			g := c.gradSpiky(positions[i], positions[q])
			gradLambdaSum = gradLambdaSum.Add(g.Mul(c.lambdas[i] + c.lambdas[q]))
		}
		c.deltas[i] = gradLambdaSum.Mul(1.0 / c.restDensity)
	})

	invMasses := s.Bodies[c.body].InvMasses.Data()
	for i := 0; i < n; i++ {
		if invMasses[i] > 0 {
			positions[i] = positions[i].Add(c.deltas[i])
		}
	}
}
