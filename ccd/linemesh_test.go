package ccd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneSegment(a, b mgl64.Vec3) *LineMesh {
	return NewPolyline([]mgl64.Vec3{a, b})
}

// Segment B sweeps through static segment A: exactly one collision element
// per side with vertex ids (0, 1).
func TestLineMeshCCDCrossing(t *testing.T) {
	aPrev := oneSegment(mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01})
	aCurr := oneSegment(mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01})
	bPrev := oneSegment(mgl64.Vec3{-0.01, 0.01, 0}, mgl64.Vec3{0.01, 0.01, 0})
	bCurr := oneSegment(mgl64.Vec3{-0.01, -0.01, 0}, mgl64.Vec3{0.01, -0.01, 0})

	sweep := NewLineMeshCCD()
	sweep.UpdatePreviousGeometry(aPrev, bPrev)
	elemsA, elemsB, err := sweep.Compute(aCurr, bCurr)
	require.NoError(t, err)

	require.Len(t, elemsA, 1)
	require.Len(t, elemsB, 1)
	assert.Equal(t, [2]int{0, 1}, elemsA[0].Ids)
	assert.Equal(t, [2]int{0, 1}, elemsB[0].Ids)
}

// B moves away from A: both element lists stay empty.
func TestLineMeshCCDNonIntersection(t *testing.T) {
	aPrev := oneSegment(mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01})
	aCurr := oneSegment(mgl64.Vec3{0, 0, -0.01}, mgl64.Vec3{0, 0, 0.01})
	bPrev := oneSegment(mgl64.Vec3{-0.01, 0.01, 0}, mgl64.Vec3{0.01, 0.01, 0})
	bCurr := oneSegment(mgl64.Vec3{-0.01, 0.05, 0}, mgl64.Vec3{0.01, 0.05, 0})

	sweep := NewLineMeshCCD()
	sweep.UpdatePreviousGeometry(aPrev, bPrev)
	elemsA, elemsB, err := sweep.Compute(aCurr, bCurr)
	require.NoError(t, err)

	assert.Empty(t, elemsA)
	assert.Empty(t, elemsB)
}

// A polyline folding onto itself reports a single self collision, skipping
// adjacent segments.
func TestLineMeshCCDSelfCollision(t *testing.T) {
	prevPoints := []mgl64.Vec3{{1, 0, 1}, {1, 0, -1}, {0, 0, 0}, {2, 1, 0}}
	currPoints := []mgl64.Vec3{{1, 0, 1}, {1, 0, -1}, {0, 0, 0}, {2, -1, 0}}

	prevMesh := NewPolyline(prevPoints)
	currMesh := NewPolyline(currPoints)

	sweep := NewLineMeshCCD()
	sweep.UpdatePreviousGeometry(prevMesh, prevMesh)
	elemsA, elemsB, err := sweep.Compute(currMesh, currMesh)
	require.NoError(t, err)

	require.Len(t, elemsA, 1)
	require.Len(t, elemsB, 1)
	assert.Equal(t, [2]int{0, 1}, elemsA[0].Ids)
	assert.Equal(t, [2]int{2, 3}, elemsB[0].Ids)
}

func TestLineMeshCCDStaleCache(t *testing.T) {
	a := oneSegment(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0})
	b := NewPolyline([]mgl64.Vec3{{0, 1, 0}, {1, 1, 0}, {2, 1, 0}})

	sweep := NewLineMeshCCD()
	sweep.UpdatePreviousGeometry(a, a) // wrong sizes for b
	_, _, err := sweep.Compute(a, b)
	assert.Error(t, err)
}
