package spatial

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/parallel"
)

// Method selects the acceleration structure backing a NeighborSearch.
type Method int

const (
	// UniformGridBasedSearch rebuilds a fixed-extent grid per query batch.
	UniformGridBasedSearch Method = iota
	// SpatialHashing keeps points in an unbounded hash table.
	SpatialHashing
)

// cellBucket is the grid cell payload for the grid-based search. The lock
// guards concurrent pushes during the parallel fill and is held only for the
// duration of a single append.
type cellBucket struct {
	lock    sync.Mutex
	indices []int
}

// GridSearch finds fixed-radius neighbors by bucketing points into a uniform
// grid sized from the query batch's bounding box.
type GridSearch struct {
	radius    float64
	radiusSqr float64
	grid      UniformGrid[cellBucket]
}

// NewGridSearch creates a grid-based searcher with the given radius.
func NewGridSearch(radius float64) *GridSearch {
	s := &GridSearch{}
	s.SetRadius(radius)
	return s
}

// SetRadius changes the search radius (also the grid cell size).
func (s *GridSearch) SetRadius(radius float64) {
	s.radius = radius
	s.radiusSqr = radius * radius
}

// Neighbors writes, for each point p of setA, the indices q of setB with
// ||setA[p]-setB[q]|| < radius. Previous contents of each per-point list are
// cleared. Result ordering within a list is implementation defined.
//
// The grid extent is derived per call from the AABB of setB, expanded by
// 0.1*radius to absorb round-off on the upper boundary.
func (s *GridSearch) Neighbors(result [][]int, setA, setB []mgl64.Vec3) error {
	if s.radius < 1e-8 {
		return fmt.Errorf("spatial: neighbor search radius is zero")
	}

	lower, upper := parallel.FindAABB(setB)
	expand := s.radius * 0.1
	upper = upper.Add(mgl64.Vec3{expand, expand, expand})

	if err := s.grid.Initialize(lower, upper, s.radius); err != nil {
		return err
	}

	// Bucket setB under per-cell locks.
	parallel.For(len(setB), func(p int) {
		cell := s.grid.CellOf(setB[p])
		cell.lock.Lock()
		cell.indices = append(cell.indices, p)
		cell.lock.Unlock()
	})

	// Gather from the 3x3x3 neighborhood of each query point.
	parallel.For(len(setA), func(p int) {
		neighbors := result[p][:0]
		ppos := setA[p]
		ci, cj, ck := s.grid.CellIndex(ppos)

		for k := -1; k <= 1; k++ {
			cellZ := ck + k
			if !s.grid.IsValidAxisIndex(2, cellZ) {
				continue
			}
			for j := -1; j <= 1; j++ {
				cellY := cj + j
				if !s.grid.IsValidAxisIndex(1, cellY) {
					continue
				}
				for i := -1; i <= 1; i++ {
					cellX := ci + i
					if !s.grid.IsValidAxisIndex(0, cellX) {
						continue
					}
					for _, q := range s.grid.Cell(cellX, cellY, cellZ).indices {
						diff := ppos.Sub(setB[q])
						if diff.Dot(diff) < s.radiusSqr {
							neighbors = append(neighbors, q)
						}
					}
				}
			}
		}
		result[p] = neighbors
	})
	return nil
}

// NeighborSearch is the unified fixed-radius query over either a uniform
// grid or a spatial hash, selected at construction.
type NeighborSearch struct {
	method Method
	radius float64

	gridSearcher *GridSearch
	hashSearcher *HashTable
}

// NewNeighborSearch creates a searcher with the given method and radius.
func NewNeighborSearch(method Method, radius float64) *NeighborSearch {
	ns := &NeighborSearch{method: method, radius: radius}
	if method == UniformGridBasedSearch {
		ns.gridSearcher = NewGridSearch(radius)
	} else {
		ns.hashSearcher = NewHashTable(radius)
	}
	return ns
}

// Method returns the selected backing structure.
func (ns *NeighborSearch) Method() Method { return ns.method }

// SetRadius changes the search radius on the backing structure.
func (ns *NeighborSearch) SetRadius(radius float64) {
	ns.radius = radius
	if ns.method == UniformGridBasedSearch {
		ns.gridSearcher.SetRadius(radius)
	} else {
		ns.hashSearcher.SetCellSize(radius, radius, radius)
	}
}

// NeighborsSelf finds neighbors of points within points itself. A point's own
// index may appear in its list; filtering self is the caller's duty.
func (ns *NeighborSearch) NeighborsSelf(result [][]int, points []mgl64.Vec3) error {
	return ns.Neighbors(result, points, points)
}

// Neighbors writes for each index p of setA the indices q of setB with
// ||setA[p]-setB[q]|| < radius. result must have len(setA) lists; previous
// contents are cleared.
func (ns *NeighborSearch) Neighbors(result [][]int, setA, setB []mgl64.Vec3) error {
	if len(result) != len(setA) {
		return fmt.Errorf("spatial: result holds %d lists for %d query points", len(result), len(setA))
	}
	if ns.method == UniformGridBasedSearch {
		return ns.gridSearcher.Neighbors(result, setA, setB)
	}

	ns.hashSearcher.Clear()
	ns.hashSearcher.InsertPoints(setB)
	parallel.For(len(setA), func(p int) {
		result[p] = ns.hashSearcher.PointsInSphereInto(result[p], setA[p], ns.radius)
	})
	return nil
}
