// Package telemetry collects per-step simulation statistics and writes them
// to structured CSV output.
package telemetry

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StepStats is one row of the per-step record.
type StepStats struct {
	Step    int     `csv:"step"`
	SimTime float64 `csv:"sim_time"`

	// Fluid population by type.
	FluidCount  int `csv:"fluid"`
	WallCount   int `csv:"wall"`
	InletCount  int `csv:"inlet"`
	OutletCount int `csv:"outlet"`
	BufferCount int `csv:"buffer"`

	// Field statistics over active fluid particles.
	MeanDensity  float64 `csv:"mean_density"`
	MaxDensity   float64 `csv:"max_density"`
	MeanPressure float64 `csv:"mean_pressure"`
	MaxSpeed     float64 `csv:"max_speed"`

	// Deformable bodies.
	BodyCount       int `csv:"bodies"`
	ConstraintCount int `csv:"constraints"`

	// Explosion reports whether the stability guard tripped this step.
	Explosion bool `csv:"explosion"`
}

// FieldStats summarizes a scalar field, ignoring NaN entries.
func FieldStats(values []float64) (mean, max float64) {
	clean := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0, 0
	}
	mean = stat.Mean(clean, nil)
	max = clean[0]
	for _, v := range clean[1:] {
		if v > max {
			max = v
		}
	}
	return mean, max
}
