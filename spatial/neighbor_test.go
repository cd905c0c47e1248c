package spatial

import (
	"math"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bruteForceNeighbors(setA, setB []mgl64.Vec3, radius float64) [][]int {
	result := make([][]int, len(setA))
	r2 := radius * radius
	for p := range setA {
		for q := range setB {
			diff := setA[p].Sub(setB[q])
			if diff.Dot(diff) < r2 {
				result[p] = append(result[p], q)
			}
		}
	}
	return result
}

func sortLists(lists [][]int) {
	for i := range lists {
		sort.Ints(lists[i])
	}
}

// spherePoints samples points on a unit-ish sphere shell with roughly 2r
// spacing, the particle layout used by the neighbor search agreement test.
func spherePoints(sphereRadius, spacing float64) []mgl64.Vec3 {
	var points []mgl64.Vec3
	n := int(math.Ceil(math.Pi / (spacing / sphereRadius)))
	for i := 0; i <= n; i++ {
		theta := math.Pi * float64(i) / float64(n)
		ringRadius := sphereRadius * math.Sin(theta)
		m := int(math.Ceil(2 * math.Pi * ringRadius / spacing))
		if m == 0 {
			m = 1
		}
		for j := 0; j < m; j++ {
			phi := 2 * math.Pi * float64(j) / float64(m)
			points = append(points, mgl64.Vec3{
				ringRadius * math.Cos(phi),
				sphereRadius * math.Cos(theta),
				ringRadius * math.Sin(phi),
			})
		}
	}
	return points
}

// Brute-force, grid-based, and hashing-based searches must agree up to set
// equality per particle, across several radial rescalings of the point set.
func TestNeighborSearchMethodsAgree(t *testing.T) {
	const particleRadius = 0.05
	searchRadius := 4.0 * particleRadius

	points := spherePoints(1.0, 2*particleRadius)
	require.Greater(t, len(points), 100)

	gridSearch := NewNeighborSearch(UniformGridBasedSearch, searchRadius)
	hashSearch := NewNeighborSearch(SpatialHashing, searchRadius)

	for iter := 0; iter < 5; iter++ {
		want := bruteForceNeighbors(points, points, searchRadius)

		gridResult := make([][]int, len(points))
		require.NoError(t, gridSearch.NeighborsSelf(gridResult, points))

		hashResult := make([][]int, len(points))
		require.NoError(t, hashSearch.NeighborsSelf(hashResult, points))

		sortLists(want)
		sortLists(gridResult)
		sortLists(hashResult)

		for p := range points {
			require.Equal(t, want[p], gridResult[p], "iter %d: grid search disagrees at particle %d", iter, p)
			require.Equal(t, want[p], hashResult[p], "iter %d: hash search disagrees at particle %d", iter, p)
		}

		// Scale the shell outward and search again.
		for i := range points {
			points[i] = points[i].Mul(1.1)
		}
	}
}

func TestNeighborSearchTwoSets(t *testing.T) {
	setA := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {5, 5, 5}}
	setB := []mgl64.Vec3{{0.1, 0, 0}, {0.9, 0, 0}, {2, 0, 0}, {5.05, 5, 5}}
	const radius = 0.3

	want := bruteForceNeighbors(setA, setB, radius)

	for _, method := range []Method{UniformGridBasedSearch, SpatialHashing} {
		result := make([][]int, len(setA))
		search := NewNeighborSearch(method, radius)
		require.NoError(t, search.Neighbors(result, setA, setB))
		sortLists(result)
		sortLists(want)
		assert.Equal(t, want, result, "method %v", method)
	}
}

// Result lists must be cleared before writing, so repeated queries on the
// same buffers do not accumulate.
func TestNeighborSearchClearsResultLists(t *testing.T) {
	points := []mgl64.Vec3{{0, 0, 0}, {0.1, 0, 0}}
	result := make([][]int, 2)

	search := NewNeighborSearch(UniformGridBasedSearch, 0.5)
	require.NoError(t, search.NeighborsSelf(result, points))
	first := len(result[0])
	require.NoError(t, search.NeighborsSelf(result, points))
	assert.Equal(t, first, len(result[0]))
}

func TestGridSearchRejectsZeroRadius(t *testing.T) {
	s := NewGridSearch(0)
	err := s.Neighbors(make([][]int, 1), []mgl64.Vec3{{0, 0, 0}}, []mgl64.Vec3{{0, 0, 0}})
	assert.Error(t, err)
}
