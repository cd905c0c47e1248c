// Package spatial provides the acceleration structures used for fixed-radius
// neighbor queries: a fixed-extent uniform grid and an unbounded separate
// chaining hash table, unified behind a NeighborSearch facade.
package spatial

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// UniformGrid maps 3D space inside [lower, upper) onto a flat cell array.
// The meaning of the per-cell data C is defined by the owner.
//
// Lookups outside the configured extent are a programmer error; callers
// must check IsValidCellIndex before indexing.
type UniformGrid[C any] struct {
	lower    mgl64.Vec3
	upper    mgl64.Vec3
	cellSize float64
	res      [3]int
	cells    []C
}

// NewUniformGrid builds a grid covering [lower, upper) with cubic cells.
// Each axis resolution is ceil((upper-lower)/cellSize).
func NewUniformGrid[C any](lower, upper mgl64.Vec3, cellSize float64) (*UniformGrid[C], error) {
	g := &UniformGrid[C]{}
	if err := g.Initialize(lower, upper, cellSize); err != nil {
		return nil, err
	}
	return g, nil
}

// Initialize re-extents the grid, discarding all cell data.
func (g *UniformGrid[C]) Initialize(lower, upper mgl64.Vec3, cellSize float64) error {
	if cellSize <= 0 {
		return fmt.Errorf("spatial: cell size must be positive, got %v", cellSize)
	}
	var res [3]int
	for d := 0; d < 3; d++ {
		res[d] = int(math.Ceil((upper[d] - lower[d]) / cellSize))
		if res[d] == 0 {
			return fmt.Errorf("spatial: grid resolution is zero on axis %d (lower %v, upper %v, cell size %v)",
				d, lower, upper, cellSize)
		}
	}
	g.lower = lower
	g.upper = upper
	g.cellSize = cellSize
	g.res = res
	g.cells = make([]C, res[0]*res[1]*res[2])
	return nil
}

// Lower returns the lower corner.
func (g *UniformGrid[C]) Lower() mgl64.Vec3 { return g.lower }

// Upper returns the upper corner.
func (g *UniformGrid[C]) Upper() mgl64.Vec3 { return g.upper }

// CellSize returns the cell edge length.
func (g *UniformGrid[C]) CellSize() float64 { return g.cellSize }

// Res returns the per-axis cell counts.
func (g *UniformGrid[C]) Res() [3]int { return g.res }

// NumCells returns the total cell count.
func (g *UniformGrid[C]) NumCells() int { return len(g.cells) }

// CellIndex returns the integer cell coordinate of p. The result is only
// meaningful for points inside [lower, upper); validate with IsValidCellIndex.
func (g *UniformGrid[C]) CellIndex(p mgl64.Vec3) (i, j, k int) {
	i = int(math.Floor((p[0] - g.lower[0]) / g.cellSize))
	j = int(math.Floor((p[1] - g.lower[1]) / g.cellSize))
	k = int(math.Floor((p[2] - g.lower[2]) / g.cellSize))
	return i, j, k
}

// IsValidCellIndex reports whether (i, j, k) addresses a cell.
func (g *UniformGrid[C]) IsValidCellIndex(i, j, k int) bool {
	return g.IsValidAxisIndex(0, i) && g.IsValidAxisIndex(1, j) && g.IsValidAxisIndex(2, k)
}

// IsValidAxisIndex reports whether idx is a valid cell coordinate on axis d.
func (g *UniformGrid[C]) IsValidAxisIndex(d, idx int) bool {
	return idx >= 0 && idx < g.res[d]
}

// FlatIndex converts a cell coordinate to an index into the flat cell array.
func (g *UniformGrid[C]) FlatIndex(i, j, k int) int {
	return (k*g.res[1]+j)*g.res[0] + i
}

// Cell returns the data of cell (i, j, k).
func (g *UniformGrid[C]) Cell(i, j, k int) *C {
	return &g.cells[g.FlatIndex(i, j, k)]
}

// CellAt returns the data of the cell with the given flat index.
func (g *UniformGrid[C]) CellAt(flat int) *C { return &g.cells[flat] }

// CellOf returns the data of the cell containing p.
func (g *UniformGrid[C]) CellOf(p mgl64.Vec3) *C {
	i, j, k := g.CellIndex(p)
	return &g.cells[g.FlatIndex(i, j, k)]
}
