package pbd

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// MaterialType selects the constitutive law of a FEM tet constraint.
type MaterialType int

const (
	// StVK is the St. Venant-Kirchhoff model.
	StVK MaterialType = iota
	// Corotational extracts the rotation via SVD before applying a linear
	// response.
	Corotational
	// NeoHookean is the compressible neo-Hookean model.
	NeoHookean
)

// FemConfig holds the Lame constants of a FEM constraint, optionally derived
// from Young's modulus and Poisson's ratio.
type FemConfig struct {
	Mu     float64
	Lambda float64

	YoungModulus float64
	PoissonRatio float64
}

// NewFemConfig derives the Lame constants from Young's modulus and Poisson's
// ratio.
func NewFemConfig(youngModulus, poissonRatio float64) FemConfig {
	mu := youngModulus / (2.0 * (1.0 + poissonRatio))
	lambda := youngModulus * poissonRatio / ((1.0 + poissonRatio) * (1.0 - 2.0*poissonRatio))
	return FemConfig{
		Mu:           mu,
		Lambda:       lambda,
		YoungModulus: youngModulus,
		PoissonRatio: poissonRatio,
	}
}

// FemTetConstraint treats the elastic energy of a tetrahedral element as the
// constraint value, with the first Piola-Kirchhoff stress providing the
// gradient. Inverted elements are recovered by re-signing the smallest
// singular value of the deformation gradient until its determinant turns
// positive again; that decision is recomputed every projection and never
// persisted.
type FemTetConstraint struct {
	base
	material      MaterialType
	config        FemConfig
	elementVolume float64
	invRestMat    mgl64.Mat3
}

// NewFemTetConstraint builds the element from rest positions. The compliance
// is 1/(lambda + 2*mu) as for a near-incompressible solid.
func NewFemTetConstraint(s *State, p0, p1, p2, p3 ParticleId, material MaterialType, cfg FemConfig) (*FemTetConstraint, error) {
	c := &FemTetConstraint{
		base:     newBase(4),
		material: material,
		config:   cfg,
	}
	c.particles[0] = p0
	c.particles[1] = p1
	c.particles[2] = p2
	c.particles[3] = p3
	c.compliance = 1.0 / (cfg.Lambda + 2.0*cfg.Mu)
	c.stiffness = 1.0

	x0 := s.Position(p0)
	x1 := s.Position(p1)
	x2 := s.Position(p2)
	x3 := s.Position(p3)

	c.elementVolume = (1.0 / 6.0) * x3.Sub(x0).Dot(x1.Sub(x0).Cross(x2.Sub(x0)))

	m := mat3FromCols(x0.Sub(x3), x1.Sub(x3), x2.Sub(x3))
	if math.Abs(m.Det()) <= constraintEps {
		return nil, fmt.Errorf("pbd: fem tet constraint over a degenerate rest element")
	}
	c.invRestMat = m.Inv()
	return c, nil
}

// Material returns the constitutive law.
func (c *FemTetConstraint) Material() MaterialType { return c.material }

// DeformationGradient computes F for the current positions.
func (c *FemTetConstraint) DeformationGradient(s *State) mgl64.Mat3 {
	x0 := s.Position(c.particles[0])
	x1 := s.Position(c.particles[1])
	x2 := s.Position(c.particles[2])
	x3 := s.Position(c.particles[3])
	m := mat3FromCols(x0.Sub(x3), x1.Sub(x3), x2.Sub(x3))
	return m.Mul3(c.invRestMat)
}

func (c *FemTetConstraint) evaluate(s *State, dcdx []mgl64.Vec3) (float64, bool) {
	f := c.DeformationGradient(s)

	// Inversion handling: while the element is inverted, act on a corrected
	// gradient whose smallest singular value is re-signed.
	if f.Det() <= 0 {
		u, sigma, v := svd3(f)
		sigma[2] = -sigma[2]
		f = u.Mul3(mgl64.Diag3(mgl64.Vec3{sigma[0], sigma[1], sigma[2]})).Mul3(v.Transpose())
	}

	mu := c.config.Mu
	lambda := c.config.Lambda

	var p mgl64.Mat3
	energy := 0.0

	switch c.material {
	case StVK:
		// P(F) = F*(2*mu*E + lambda*tr(E)*I), E = (F^T F - I)/2
		var e mgl64.Mat3
		e.Set(0, 0, 0.5*(f.At(0, 0)*f.At(0, 0)+f.At(1, 0)*f.At(1, 0)+f.At(2, 0)*f.At(2, 0)-1.0))
		e.Set(1, 1, 0.5*(f.At(0, 1)*f.At(0, 1)+f.At(1, 1)*f.At(1, 1)+f.At(2, 1)*f.At(2, 1)-1.0))
		e.Set(2, 2, 0.5*(f.At(0, 2)*f.At(0, 2)+f.At(1, 2)*f.At(1, 2)+f.At(2, 2)*f.At(2, 2)-1.0))
		e.Set(0, 1, 0.5*(f.At(0, 0)*f.At(0, 1)+f.At(1, 0)*f.At(1, 1)+f.At(2, 0)*f.At(2, 1)))
		e.Set(0, 2, 0.5*(f.At(0, 0)*f.At(0, 2)+f.At(1, 0)*f.At(1, 2)+f.At(2, 0)*f.At(2, 2)))
		e.Set(1, 2, 0.5*(f.At(0, 1)*f.At(0, 2)+f.At(1, 1)*f.At(1, 2)+f.At(2, 1)*f.At(2, 2)))
		e.Set(1, 0, e.At(0, 1))
		e.Set(2, 0, e.At(0, 2))
		e.Set(2, 1, e.At(1, 2))

		tr := e.At(0, 0) + e.At(1, 1) + e.At(2, 2)
		p = e.Mul(2 * mu)
		lt := lambda * tr
		p.Set(0, 0, p.At(0, 0)+lt)
		p.Set(1, 1, p.At(1, 1)+lt)
		p.Set(2, 2, p.At(2, 2)+lt)
		p = f.Mul3(p)

		sqSum := 0.0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				sqSum += e.At(i, j) * e.At(i, j)
			}
		}
		energy = mu*sqSum + 0.5*lambda*tr*tr

	case Corotational:
		// P(F) = 2*mu*(F-R) + lambda*(J-1)*J*F^-T
		u, sigma, v := svd3(f)
		r := u.Mul3(v.Transpose())
		invFT := u.Mul3(mgl64.Diag3(mgl64.Vec3{1 / sigma[0], 1 / sigma[1], 1 / sigma[2]})).Mul3(v.Transpose())
		j := sigma[0] * sigma[1] * sigma[2]
		fr := f.Sub(r)

		p = fr.Mul(2 * mu).Add(invFT.Mul(lambda * (j - 1) * j))

		sqSum := 0.0
		for i := 0; i < 3; i++ {
			for k := 0; k < 3; k++ {
				sqSum += fr.At(i, k) * fr.At(i, k)
			}
		}
		energy = mu*sqSum + 0.5*lambda*(j-1)*(j-1)

	case NeoHookean:
		// P(F) = mu*(F - F^-T) + lambda*log(J)*F^-T
		invFT := f.Inv().Transpose()
		logJ := math.Log(f.Det())
		p = f.Sub(invFT).Mul(mu).Add(invFT.Mul(lambda * logJ))

		sqSum := 0.0
		for i := 0; i < 3; i++ {
			for k := 0; k < 3; k++ {
				sqSum += f.At(i, k) * f.At(i, k)
			}
		}
		energy = 0.5*mu*(sqSum-3) - mu*logJ + 0.5*lambda*logJ*logJ
	}

	gradC := p.Mul3(c.invRestMat.Transpose()).Mul(c.elementVolume)
	dcdx[0] = gradC.Col(0)
	dcdx[1] = gradC.Col(1)
	dcdx[2] = gradC.Col(2)
	dcdx[3] = dcdx[0].Add(dcdx[1]).Add(dcdx[2]).Mul(-1)

	return energy * c.elementVolume, true
}

// Project applies one correction.
func (c *FemTetConstraint) Project(s *State, dt float64, solver SolverType) {
	c.projectPositional(s, dt, solver, c.evaluate)
}

// mat3FromCols assembles a column-major Mat3 from three column vectors.
func mat3FromCols(c0, c1, c2 mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3{
		c0[0], c0[1], c0[2],
		c1[0], c1[1], c1[2],
		c2[0], c2[1], c2[2],
	}
}

// svd3 decomposes m = U * diag(sigma) * V^T with singular values in
// descending order.
func svd3(m mgl64.Mat3) (u mgl64.Mat3, sigma [3]float64, v mgl64.Mat3) {
	dense := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dense.Set(i, j, m.At(i, j))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(dense, mat.SVDFull) {
		// A 3x3 SVD only fails to converge on pathological input; identity
		// factors make the caller skip the correction gracefully.
		return mgl64.Ident3(), [3]float64{1, 1, 1}, mgl64.Ident3()
	}

	var uDense, vDense mat.Dense
	svd.UTo(&uDense)
	svd.VTo(&vDense)
	values := svd.Values(nil)

	for i := 0; i < 3; i++ {
		sigma[i] = values[i]
		for j := 0; j < 3; j++ {
			u.Set(i, j, uDense.At(i, j))
			v.Set(i, j, vDense.At(i, j))
		}
	}
	return u, sigma, v
}
