package sph

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

const h = 0.1

func TestPoly6Support(t *testing.T) {
	var k Poly6Kernel
	k.SetRadius(h)

	assert.Greater(t, k.W(mgl64.Vec3{}), 0.0)
	assert.Equal(t, k.W0(), k.W(mgl64.Vec3{}))
	assert.Greater(t, k.W(mgl64.Vec3{h / 2, 0, 0}), 0.0)
	assert.Zero(t, k.W(mgl64.Vec3{h * 1.01, 0, 0}))

	// Monotone decrease with distance.
	prev := k.W0()
	for r := 0.01 * h; r < h; r += 0.01 * h {
		w := k.W(mgl64.Vec3{r, 0, 0})
		assert.LessOrEqual(t, w, prev)
		prev = w
	}
}

// The Poly6 kernel integrates to ~1 over its support; sampled on a fine
// lattice the sum of W * cell volume must be close to unity.
func TestPoly6Normalization(t *testing.T) {
	var k Poly6Kernel
	k.SetRadius(h)

	step := h / 25.0
	sum := 0.0
	for x := -h; x <= h; x += step {
		for y := -h; y <= h; y += step {
			for z := -h; z <= h; z += step {
				sum += k.W(mgl64.Vec3{x, y, z}) * step * step * step
			}
		}
	}
	assert.InDelta(t, 1.0, sum, 0.02)
}

func TestGradientsVanishAtOrigin(t *testing.T) {
	var poly6 Poly6Kernel
	poly6.SetRadius(h)
	var spiky SpikyKernel
	spiky.SetRadius(h)

	assert.Equal(t, mgl64.Vec3{}, poly6.GradW(mgl64.Vec3{}))
	assert.Equal(t, mgl64.Vec3{}, spiky.GradW(mgl64.Vec3{}))
}

func TestSpikyGradientPointsInward(t *testing.T) {
	var k SpikyKernel
	k.SetRadius(h)

	r := mgl64.Vec3{h / 2, 0, 0}
	grad := k.GradW(r)
	// W decreases away from the origin, so the gradient points back.
	assert.Less(t, grad[0], 0.0)
	assert.Zero(t, grad[1])
	assert.Zero(t, grad[2])
}

func TestSpikyGradientMatchesFiniteDifference(t *testing.T) {
	var k SpikyKernel
	k.SetRadius(h)

	r := mgl64.Vec3{0.03, 0.02, -0.04}
	grad := k.GradW(r)

	const eps = 1e-7
	for d := 0; d < 3; d++ {
		hi := r
		hi[d] += eps
		lo := r
		lo[d] -= eps
		fd := (k.W(hi) - k.W(lo)) / (2 * eps)
		assert.InDelta(t, fd, grad[d], 1e-3*math.Abs(fd)+1e-6)
	}
}

func TestViscosityLaplacianNonNegative(t *testing.T) {
	var k ViscosityKernel
	k.SetRadius(h)
	for r := 0.0; r <= h; r += h / 20 {
		assert.GreaterOrEqual(t, k.Laplacian(mgl64.Vec3{r, 0, 0}), 0.0)
	}
	assert.Zero(t, k.Laplacian(mgl64.Vec3{h * 1.1, 0, 0}))
}

func TestCohesionKernelShape(t *testing.T) {
	var k CohesionKernel
	k.SetRadius(h)

	// Negative (repulsive) near contact, positive (attractive) in the outer
	// band, zero outside support.
	assert.Less(t, k.W(mgl64.Vec3{0.05 * h, 0, 0}), 0.0)
	assert.Greater(t, k.W(mgl64.Vec3{0.75 * h, 0, 0}), 0.0)
	assert.Zero(t, k.W(mgl64.Vec3{1.01 * h, 0, 0}))
}

func TestAdhesionKernelSupport(t *testing.T) {
	var k AdhesionKernel
	k.SetRadius(h)

	assert.Zero(t, k.W(mgl64.Vec3{0.25 * h, 0, 0}), "inner half of the support is zero")
	assert.Greater(t, k.W(mgl64.Vec3{0.75 * h, 0, 0}), 0.0)
	assert.Zero(t, k.W(mgl64.Vec3{1.2 * h, 0, 0}))
}

func TestKernelsShareRadius(t *testing.T) {
	var ks Kernels
	ks.Initialize(h)
	assert.Equal(t, ks.Poly6.radius, ks.Spiky.radius)
	assert.Equal(t, ks.Poly6.radius, ks.Cohesion.radius)
}
