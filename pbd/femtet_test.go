package pbd

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An inverted tet must right itself: after enough projections the
// deformation gradient determinant is positive again, for every material.
func TestTetInversionRecovery(t *testing.T) {
	materials := []struct {
		name     string
		material MaterialType
	}{
		{"StVK", StVK},
		{"Corotational", Corotational},
		{"NeoHookean", NeoHookean},
	}

	for _, tc := range materials {
		t.Run(tc.name, func(t *testing.T) {
			s, ids := singleBodyState(t,
				mgl64.Vec3{0.5, 0.0, -1.0 / 3.0},
				mgl64.Vec3{-0.5, 0.0, -1.0 / 3.0},
				mgl64.Vec3{0.0, 0.0, 2.0 / 3.0},
				mgl64.Vec3{0.0, 1.0, 0.0},
			)
			s.Bodies[0].InvMasses.Fill(400.0)

			config := FemConfig{Mu: 344.82, Lambda: 3103.44, YoungModulus: 1000.0, PoissonRatio: 0.45}
			c, err := NewFemTetConstraint(s, ids[0], ids[1], ids[2], ids[3], tc.material, config)
			require.NoError(t, err)

			// Push the apex through the base plane.
			s.Displace(ids[3], mgl64.Vec3{0.1, -2.6, -0.1})
			require.LessOrEqual(t, c.DeformationGradient(s).Det(), 0.0, "tet starts inverted")

			for step := 0; step < 600; step++ {
				c.Project(s, 0.01, XPBD)
			}

			assert.Greater(t, c.DeformationGradient(s).Det(), 0.0, "tet recovered")
		})
	}
}

func TestFemTetDegenerateRest(t *testing.T) {
	s, ids := singleBodyState(t,
		mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{2, 0, 0},
		mgl64.Vec3{3, 0, 0}, // collinear: zero volume
	)
	_, err := NewFemTetConstraint(s, ids[0], ids[1], ids[2], ids[3], StVK, NewFemConfig(1000, 0.3))
	assert.Error(t, err)
}

func TestFemTetRestStateIsEquilibrium(t *testing.T) {
	s, ids := singleBodyState(t,
		mgl64.Vec3{0.5, 0.0, -1.0 / 3.0},
		mgl64.Vec3{-0.5, 0.0, -1.0 / 3.0},
		mgl64.Vec3{0.0, 0.0, 2.0 / 3.0},
		mgl64.Vec3{0.0, 1.0, 0.0},
	)
	c, err := NewFemTetConstraint(s, ids[0], ids[1], ids[2], ids[3], StVK, NewFemConfig(1000, 0.3))
	require.NoError(t, err)

	before := make([]mgl64.Vec3, 4)
	for i, id := range ids {
		before[i] = s.Position(id)
	}
	c.Project(s, 0.01, XPBD)
	for i, id := range ids {
		assert.InDelta(t, 0, s.Position(id).Sub(before[i]).Len(), 1e-12,
			"particle %d moved at rest", i)
	}
}

func TestNewFemConfigLameConstants(t *testing.T) {
	cfg := NewFemConfig(1000.0, 0.45)
	assert.InDelta(t, 344.83, cfg.Mu, 0.01)
	assert.InDelta(t, 3103.45, cfg.Lambda, 0.01)
}

func TestSVD3Reconstructs(t *testing.T) {
	cases := []mgl64.Mat3{
		mgl64.Ident3(),
		{2, 0, 0, 0, 3, 0, 0, 0, 4},
		{0.8, 0.2, -0.1, 0.3, 1.2, 0.05, -0.4, 0.1, 0.9},
		// An inverted configuration.
		{1, 0, 0, 0, -1, 0, 0, 0, 1},
	}
	for i, m := range cases {
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			u, sigma, v := svd3(m)
			rebuilt := u.Mul3(mgl64.Diag3(mgl64.Vec3{sigma[0], sigma[1], sigma[2]})).Mul3(v.Transpose())
			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					assert.InDelta(t, m.At(r, c), rebuilt.At(r, c), 1e-10)
				}
			}
			assert.GreaterOrEqual(t, sigma[0], sigma[1])
			assert.GreaterOrEqual(t, sigma[1], sigma[2])
		})
	}
}
