package sph

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// numBufferParticles is the reserve of parked particles covering inlet and
// outlet transients.
const numBufferParticles = 10000

// bufferParkingCoord is the far position where inactive particles wait.
var bufferParkingCoord = mgl64.Vec3{100.0, 0.0, 0.0}

// Domain is an axis-aligned box given by two corners.
type Domain struct {
	Lower mgl64.Vec3
	Upper mgl64.Vec3
}

// Contains reports whether p is inside the box.
func (d Domain) Contains(p mgl64.Vec3) bool {
	return p[0] >= d.Lower[0] && p[1] >= d.Lower[1] && p[2] >= d.Lower[2] &&
		p[0] <= d.Upper[0] && p[1] <= d.Upper[1] && p[2] <= d.Upper[2]
}

// ContainsLoose is Contains with a margin on every side.
func (d Domain) ContainsLoose(p mgl64.Vec3, margin float64) bool {
	return p[0] >= d.Lower[0]-margin && p[1] >= d.Lower[1]-margin && p[2] >= d.Lower[2]-margin &&
		p[0] <= d.Upper[0]+margin && p[1] <= d.Upper[1]+margin && p[2] <= d.Upper[2]+margin
}

// BoundaryConditions classifies particles into inlet, outlet, fluid, wall
// and buffer populations and prescribes the inlet kinematics. A ring of
// parked buffer particles absorbs outflow and feeds the inlet so the total
// particle count never changes.
type BoundaryConditions struct {
	inletDomain   Domain
	outletDomains []Domain
	fluidDomain   Domain

	inletCenterPoint mgl64.Vec3
	inletRadius      float64
	inletNormal      mgl64.Vec3
	inletVelocity    mgl64.Vec3
	inletCrossArea   float64

	bufferIndices []int
}

// NewBoundaryConditions builds the boundary state and appends wall and
// buffer particles to mainPositions. Particle types for the combined array
// are derived from the domains.
func NewBoundaryConditions(
	inlet Domain, outlets []Domain, fluid Domain,
	inletNormal mgl64.Vec3, inletRadius float64, inletCenter mgl64.Vec3, inletFlowRate float64,
	mainPositions []mgl64.Vec3, wallPositions []mgl64.Vec3,
) (*BoundaryConditions, []mgl64.Vec3, []ParticleType) {
	bc := &BoundaryConditions{
		inletDomain:      inlet,
		outletDomains:    outlets,
		fluidDomain:      fluid,
		inletCenterPoint: inletCenter,
		inletRadius:      inletRadius,
		inletNormal:      inletNormal.Normalize(),
		inletCrossArea:   math.Pi * inletRadius * inletRadius,
	}
	bc.SetInletFlowRate(inletFlowRate)

	types := make([]ParticleType, 0, len(mainPositions)+len(wallPositions)+numBufferParticles)
	for _, p := range mainPositions {
		switch {
		case bc.IsInInletDomain(p):
			types = append(types, Inlet)
		case bc.IsInOutletDomain(p):
			types = append(types, Outlet)
		default:
			types = append(types, Fluid)
		}
	}
	for range wallPositions {
		types = append(types, Wall)
	}

	positions := make([]mgl64.Vec3, 0, cap(types))
	positions = append(positions, mainPositions...)
	positions = append(positions, wallPositions...)

	bc.bufferIndices = make([]int, numBufferParticles)
	for i := 0; i < numBufferParticles; i++ {
		bc.bufferIndices[i] = len(positions)
		positions = append(positions, bufferParkingCoord)
		types = append(types, Buffer)
	}

	return bc, positions, types
}

// IsInInletDomain reports whether p is inside the inlet box.
func (bc *BoundaryConditions) IsInInletDomain(p mgl64.Vec3) bool {
	return bc.inletDomain.Contains(p)
}

// IsInOutletDomain reports whether p is inside any outlet box.
func (bc *BoundaryConditions) IsInOutletDomain(p mgl64.Vec3) bool {
	for _, d := range bc.outletDomains {
		if d.Contains(p) {
			return true
		}
	}
	return false
}

// IsInFluidDomain reports whether p is inside the fluid box, with a small
// margin for particles mid-transit.
func (bc *BoundaryConditions) IsInFluidDomain(p mgl64.Vec3) bool {
	return bc.fluidDomain.ContainsLoose(p, 0.1)
}

// SetInletFlowRate derives the peak inlet velocity so the integrated
// parabolic profile matches the target volumetric rate: the profile peak is
// twice the mean velocity Q/A, directed against the inlet normal.
func (bc *BoundaryConditions) SetInletFlowRate(flowRate float64) {
	bc.inletVelocity = bc.inletNormal.Mul(-(flowRate / bc.inletCrossArea * 2.0))
}

// InletVelocity returns the peak inlet velocity vector.
func (bc *BoundaryConditions) InletVelocity() mgl64.Vec3 { return bc.inletVelocity }

// InletNormal returns the unit inlet normal.
func (bc *BoundaryConditions) InletNormal() mgl64.Vec3 { return bc.inletNormal }

// BufferIndices returns the indices of currently parked particles.
func (bc *BoundaryConditions) BufferIndices() []int { return bc.bufferIndices }

// BufferCoord returns the parking position.
func (bc *BoundaryConditions) BufferCoord() mgl64.Vec3 { return bufferParkingCoord }

// ComputeParabolicInletVelocity evaluates the inlet profile at a particle
// position: zero outside the inlet disc, peak velocity on the axis.
func (bc *BoundaryConditions) ComputeParabolicInletVelocity(p mgl64.Vec3) mgl64.Vec3 {
	// Project the particle onto the inlet plane axis to measure its radial
	// distance from the inlet center line.
	one := mgl64.Vec3{1, 1, 1}
	axisPoint := mgl64.Vec3{
		(one[0] + bc.inletNormal[0]) * bc.inletCenterPoint[0],
		(one[1] + bc.inletNormal[1]) * bc.inletCenterPoint[1],
		(one[2] + bc.inletNormal[2]) * bc.inletCenterPoint[2],
	}.Add(bc.inletNormal.Mul(p.Dot(bc.inletNormal)))

	distance := p.Sub(axisPoint).Len()
	if distance > bc.inletRadius {
		return mgl64.Vec3{}
	}
	ratio := distance / bc.inletRadius
	return bc.inletVelocity.Mul(1.0 - ratio*ratio)
}

// PlaceParticleAtInlet maps an escaped position back onto the inlet plane,
// keeping its cross-sectional coordinates.
func (bc *BoundaryConditions) PlaceParticleAtInlet(p mgl64.Vec3) mgl64.Vec3 {
	one := mgl64.Vec3{1, 1, 1}
	return mgl64.Vec3{
		(one[0]+bc.inletNormal[0])*p[0] - bc.inletCenterPoint[0]*bc.inletNormal[0],
		(one[1]+bc.inletNormal[1])*p[1] - bc.inletCenterPoint[1]*bc.inletNormal[1],
		(one[2]+bc.inletNormal[2])*p[2] - bc.inletCenterPoint[2]*bc.inletNormal[2],
	}
}
