package ccd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateClosestPointsPerpendicular(t *testing.T) {
	// Segment A along z, segment B along x at y = 1 crossing over A's middle.
	s := NewState(
		mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 0, 1},
		mgl64.Vec3{-1, 1, 0}, mgl64.Vec3{1, 1, 0},
	)
	assert.InDelta(t, 0.5, s.Si(), 1e-12)
	assert.InDelta(t, 0.5, s.Sj(), 1e-12)
	assert.InDelta(t, 1.0, s.W.Len(), 1e-12)
}

func TestStateParallelLinesSentinel(t *testing.T) {
	s := NewState(
		mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 1, 0},
	)
	assert.Equal(t, -1.0, s.Si(), "parallel lines report the endpoint-check sentinel")
}

// When the previous and current shortest-distance vectors point in opposite
// directions and the intersection stays internal, the classification must be
// LinesCrossed with a time of impact in [0, 1].
func TestCollisionCrossingCode(t *testing.T) {
	aPrev0, aPrev1 := mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01}
	bPrev0, bPrev1 := mgl64.Vec3{-0.01, 0.01, 0}, mgl64.Vec3{0.01, 0.01, 0}
	bCurr0, bCurr1 := mgl64.Vec3{-0.01, -0.01, 0}, mgl64.Vec3{0.01, -0.01, 0}

	prev := NewState(aPrev0, aPrev1, bPrev0, bPrev1)
	curr := NewState(aPrev0, aPrev1, bCurr0, bCurr1)

	code, toi := TestCollision(&prev, &curr)
	assert.Equal(t, LinesCrossed, code)
	assert.GreaterOrEqual(t, toi, 0.0)
	assert.LessOrEqual(t, toi, 1.0)
}

func TestCollisionOverlapCode(t *testing.T) {
	// B ends the step on top of A, within thickness.
	a0, a1 := mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01}
	prev := NewState(a0, a1, mgl64.Vec3{-0.01, 0.01, 0}, mgl64.Vec3{0.01, 0.01, 0})
	curr := NewState(a0, a1, mgl64.Vec3{-0.01, 0.001, 0}, mgl64.Vec3{0.01, 0.001, 0})

	code, toi := TestCollision(&prev, &curr)
	assert.Equal(t, LineOverlap, code)
	assert.Equal(t, 1.0, toi)
}

func TestCollisionVertexOverlapCode(t *testing.T) {
	// B's near endpoint ends up within thickness of A's far endpoint while
	// the infinite-line intersection lies outside both segments.
	a0, a1 := mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01}
	prev := NewState(a0, a1, mgl64.Vec3{0.0005, 0.01, 0.0105}, mgl64.Vec3{0.02, 0.01, 0.0105})
	curr := NewState(a0, a1, mgl64.Vec3{0.0005, 0, 0.0105}, mgl64.Vec3{0.02, 0, 0.0105})

	code, toi := TestCollision(&prev, &curr)
	assert.Equal(t, VertexOverlap, code)
	assert.Equal(t, 1.0, toi)
}

func TestCollisionNoCollision(t *testing.T) {
	a0, a1 := mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01}
	prev := NewState(a0, a1, mgl64.Vec3{-0.01, 0.01, 0}, mgl64.Vec3{0.01, 0.01, 0})
	curr := NewState(a0, a1, mgl64.Vec3{-0.01, 0.02, 0}, mgl64.Vec3{0.01, 0.02, 0})

	code, toi := TestCollision(&prev, &curr)
	assert.Equal(t, NoCollision, code)
	assert.Equal(t, 0.0, toi)
}

func TestComputeWBarPicksSmallestPair(t *testing.T) {
	s := NewState(
		mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{1.2, 0, 0}, mgl64.Vec3{3, 0, 0},
	)
	w := s.computeWBar()
	require.InDelta(t, 0.2, w.Len(), 1e-12)
	// si/sj are overwritten with the winning pair's parameters.
	assert.Equal(t, 1.0, s.Si())
	assert.Equal(t, 0.0, s.Sj())
}
