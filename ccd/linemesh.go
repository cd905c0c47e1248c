package ccd

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// LineMesh is a polyline: shared vertex positions plus segment index pairs.
type LineMesh struct {
	Positions []mgl64.Vec3
	Segments  [][2]int
}

// NewPolyline builds a mesh connecting consecutive points.
func NewPolyline(points []mgl64.Vec3) *LineMesh {
	m := &LineMesh{Positions: points}
	for i := 1; i < len(points); i++ {
		m.Segments = append(m.Segments, [2]int{i - 1, i})
	}
	return m
}

// CellIndexElement identifies one colliding segment by its vertex ids.
type CellIndexElement struct {
	Ids [2]int
	// TimeOfImpact is the relative time of impact estimate from the CCD
	// classification, in [0, 1].
	TimeOfImpact float64
	// Code is the collision classification (LineOverlap, VertexOverlap or
	// LinesCrossed).
	Code int
}

// LineMeshCCD sweeps every segment pair of two polyline meshes between the
// cached previous geometry and the current one, collecting one collision
// element per side for each pair whose classification is non-zero.
//
// Self collision is detected by passing the same mesh on both sides; segment
// pairs closer than two indices apart are skipped in that mode.
type LineMeshCCD struct {
	Thickness float64

	prevA []mgl64.Vec3
	prevB []mgl64.Vec3
}

// NewLineMeshCCD creates a sweep with the default segment thickness.
func NewLineMeshCCD() *LineMeshCCD {
	return &LineMeshCCD{Thickness: DefaultThickness}
}

// UpdatePreviousGeometry snapshots the vertex positions of both meshes as the
// previous time sample for the next Compute call.
func (c *LineMeshCCD) UpdatePreviousGeometry(a, b *LineMesh) {
	c.prevA = append(c.prevA[:0], a.Positions...)
	c.prevB = append(c.prevB[:0], b.Positions...)
}

// Compute tests every segment pair of the current meshes against the cached
// previous geometry and returns the per-side collision element lists.
func (c *LineMeshCCD) Compute(a, b *LineMesh) (elementsA, elementsB []CellIndexElement, err error) {
	if a == nil || b == nil {
		return nil, nil, fmt.Errorf("ccd: nil input mesh")
	}
	if len(a.Positions) != len(c.prevA) || len(b.Positions) != len(c.prevB) {
		return nil, nil, fmt.Errorf("ccd: previous geometry cache does not match input sizes (%d/%d vs %d/%d)",
			len(c.prevA), len(c.prevB), len(a.Positions), len(b.Positions))
	}

	selfCollision := a == b

	for i, cellA := range a.Segments {
		jStart := 0
		if selfCollision {
			jStart = i + 2
		}
		for j := jStart; j < len(b.Segments); j++ {
			if selfCollision && absInt(i-j) <= 1 {
				continue
			}
			cellB := b.Segments[j]

			curr := NewState(a.Positions[cellA[0]], a.Positions[cellA[1]],
				b.Positions[cellB[0]], b.Positions[cellB[1]])
			prev := NewState(c.prevA[cellA[0]], c.prevA[cellA[1]],
				c.prevB[cellB[0]], c.prevB[cellB[1]])
			prev.Thickness = c.Thickness
			curr.Thickness = c.Thickness

			code, toi := TestCollision(&prev, &curr)
			if code == NoCollision {
				continue
			}
			elementsA = append(elementsA, CellIndexElement{
				Ids:          cellA,
				TimeOfImpact: toi,
				Code:         code,
			})
			elementsB = append(elementsB, CellIndexElement{
				Ids:          cellB,
				TimeOfImpact: toi,
				Code:         code,
			})
		}
	}
	return elementsA, elementsB, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
