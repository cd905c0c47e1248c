// Package sph implements the weakly compressible smoothed-particle
// hydrodynamics fluid: smoothing kernels, particle state, the staged
// per-step pipeline, and inlet/outlet boundary conditions.
package sph

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// gradEps keeps kernel gradients finite at r = 0.
const gradEps = 1e-12

// Poly6Kernel is the standard density kernel
// W(r,h) = (315/(64 pi h^9)) (h^2-|r|^2)^3.
type Poly6Kernel struct {
	radius    float64
	radiusSqr float64
	k         float64
	l         float64
	w0        float64
}

// SetRadius precomputes the kernel coefficients for support radius h.
func (p *Poly6Kernel) SetRadius(h float64) {
	p.radius = h
	p.radiusSqr = h * h
	p.k = 315.0 / (64.0 * math.Pi * math.Pow(h, 9))
	p.l = -945.0 / (32.0 * math.Pi * math.Pow(h, 9))
	p.w0 = p.W(mgl64.Vec3{})
}

// W evaluates the kernel at offset r.
func (p *Poly6Kernel) W(r mgl64.Vec3) float64 {
	r2 := r.Dot(r)
	if r2 > p.radiusSqr {
		return 0
	}
	d := p.radiusSqr - r2
	return d * d * d * p.k
}

// W0 is the precomputed value at the origin.
func (p *Poly6Kernel) W0() float64 { return p.w0 }

// GradW evaluates the kernel gradient, zero at the origin.
func (p *Poly6Kernel) GradW(r mgl64.Vec3) mgl64.Vec3 {
	r2 := r.Dot(r)
	if r2 > p.radiusSqr || r2 <= gradEps {
		return mgl64.Vec3{}
	}
	tmp := p.radiusSqr - r2
	return r.Mul(p.l * tmp * tmp)
}

// Laplacian evaluates the kernel laplacian.
func (p *Poly6Kernel) Laplacian(r mgl64.Vec3) float64 {
	r2 := r.Dot(r)
	if r2 > p.radiusSqr {
		return 0
	}
	tmp := p.radiusSqr - r2
	tmp2 := 3.0*p.radiusSqr - 7.0*r2
	return p.l * tmp * tmp2
}

// SpikyKernel is the pressure kernel W(r,h) = 15/(pi h^6) (h-r)^3 whose
// gradient does not vanish at contact.
type SpikyKernel struct {
	radius    float64
	radiusSqr float64
	k         float64
	l         float64
	w0        float64
}

// SetRadius precomputes the kernel coefficients for support radius h.
func (s *SpikyKernel) SetRadius(h float64) {
	s.radius = h
	s.radiusSqr = h * h
	h6 := math.Pow(h, 6)
	s.k = 15.0 / (math.Pi * h6)
	s.l = -45.0 / (math.Pi * h6)
	s.w0 = s.W(mgl64.Vec3{})
}

// W evaluates the kernel at offset r.
func (s *SpikyKernel) W(r mgl64.Vec3) float64 {
	r2 := r.Dot(r)
	if r2 > s.radiusSqr {
		return 0
	}
	hr := s.radius - math.Sqrt(r2)
	return hr * hr * hr * s.k
}

// W0 is the precomputed value at the origin.
func (s *SpikyKernel) W0() float64 { return s.w0 }

// GradW evaluates the kernel gradient, zero at the origin.
func (s *SpikyKernel) GradW(r mgl64.Vec3) mgl64.Vec3 {
	r2 := r.Dot(r)
	if r2 > s.radiusSqr || r2 <= gradEps {
		return mgl64.Vec3{}
	}
	rl := math.Sqrt(r2)
	hr := s.radius - rl
	return r.Mul(s.l * hr * hr / rl)
}

// ViscosityKernel provides the laplacian used by the viscous acceleration,
// laplacian(W) = 45/(pi h^6) (h-r).
type ViscosityKernel struct {
	radius    float64
	radiusSqr float64
	m         float64
}

// SetRadius precomputes the kernel coefficient for support radius h.
func (v *ViscosityKernel) SetRadius(h float64) {
	v.radius = h
	v.radiusSqr = h * h
	v.m = 45.0 / (math.Pi * math.Pow(h, 6))
}

// Laplacian evaluates the viscosity laplacian at offset r.
func (v *ViscosityKernel) Laplacian(r mgl64.Vec3) float64 {
	r2 := r.Dot(r)
	if r2 > v.radiusSqr {
		return 0
	}
	return v.m * (v.radius - math.Sqrt(r2))
}

// CohesionKernel is the Akinci surface tension kernel:
//
//	W(r,h) = (32/(pi h^9)) (h-r)^3 r^3            if h/2 < r <= h
//	         (32/(pi h^9)) (2 (h-r)^3 r^3 - h^6/64) if 0 < r <= h/2
type CohesionKernel struct {
	radius    float64
	radiusSqr float64
	k         float64
	c         float64
	w0        float64
}

// SetRadius precomputes the kernel coefficients for support radius h.
func (c *CohesionKernel) SetRadius(h float64) {
	c.radius = h
	c.radiusSqr = h * h
	c.k = 32.0 / (math.Pi * math.Pow(h, 9))
	c.c = math.Pow(h, 6) / 64.0
	c.w0 = c.W(mgl64.Vec3{})
}

// W evaluates the kernel at offset r.
func (c *CohesionKernel) W(r mgl64.Vec3) float64 {
	r2 := r.Dot(r)
	if r2 > c.radiusSqr {
		return 0
	}
	r1 := math.Sqrt(r2)
	r3 := r2 * r1
	hr := c.radius - r1
	if r1 > 0.5*c.radius {
		return c.k * hr * hr * hr * r3
	}
	return c.k * (2.0*hr*hr*hr*r3 - c.c)
}

// W0 is the precomputed value at the origin.
func (c *CohesionKernel) W0() float64 { return c.w0 }

// AdhesionKernel is the Akinci boundary adhesion kernel:
//
//	W(r,h) = (0.007/h^3.25) (-4r^2/h + 6r - 2h)^(1/4)   if h/2 < r <= h
type AdhesionKernel struct {
	radius    float64
	radiusSqr float64
	k         float64
	w0        float64
}

// SetRadius precomputes the kernel coefficient for support radius h.
func (a *AdhesionKernel) SetRadius(h float64) {
	a.radius = h
	a.radiusSqr = h * h
	a.k = 0.007 / math.Pow(h, 3.25)
	a.w0 = a.W(mgl64.Vec3{})
}

// W evaluates the kernel at offset r.
func (a *AdhesionKernel) W(r mgl64.Vec3) float64 {
	r2 := r.Dot(r)
	if r2 > a.radiusSqr {
		return 0
	}
	r1 := math.Sqrt(r2)
	if r1 <= 0.5*a.radius {
		return 0
	}
	inner := -4.0*r2/a.radius + 6.0*r1 - 2.0*a.radius
	if inner <= 0 {
		return 0
	}
	return a.k * math.Pow(inner, 0.25)
}

// W0 is the precomputed value at the origin.
func (a *AdhesionKernel) W0() float64 { return a.w0 }

// Kernels bundles every kernel a simulation needs, sharing one support
// radius.
type Kernels struct {
	Poly6     Poly6Kernel
	Spiky     SpikyKernel
	Viscosity ViscosityKernel
	Cohesion  CohesionKernel
	Adhesion  AdhesionKernel
}

// Initialize sets every kernel's support radius.
func (k *Kernels) Initialize(radius float64) {
	k.Poly6.SetRadius(radius)
	k.Spiky.SetRadius(radius)
	k.Viscosity.SetRadius(radius)
	k.Cohesion.SetRadius(radius)
	k.Adhesion.SetRadius(radius)
}
