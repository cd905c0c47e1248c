package sim

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/sph"
)

// FluidInput is the external description of one fluid: particle seeds,
// optional wall samples, and optional inlet/outlet plumbing.
type FluidInput struct {
	Positions       []mgl64.Vec3
	WallPositions   []mgl64.Vec3
	InitialVelocity mgl64.Vec3

	// Plumbing; BoundariesEnabled selects whether the domains below apply.
	BoundariesEnabled bool
	InletDomain       sph.Domain
	OutletDomains     []sph.Domain
	FluidDomain       sph.Domain
	InletNormal       mgl64.Vec3
	InletRadius       float64
	InletCenter       mgl64.Vec3
	InletFlowRate     float64
}

func buildFluid(cfg sph.Config, input FluidInput, logger *slog.Logger) (*sph.System, error) {
	if len(input.Positions) == 0 {
		return nil, fmt.Errorf("sim: fluid input has no particles")
	}

	if !input.BoundariesEnabled {
		system, err := sph.NewSystem(cfg, input.Positions, logger)
		if err != nil {
			return nil, err
		}
		system.State().SetUniformVelocity(input.InitialVelocity)
		return system, nil
	}

	if input.InletRadius <= 0 {
		return nil, fmt.Errorf("sim: inlet radius must be positive, got %v", input.InletRadius)
	}

	bc, positions, types := sph.NewBoundaryConditions(
		input.InletDomain, input.OutletDomains, input.FluidDomain,
		input.InletNormal, input.InletRadius, input.InletCenter, input.InletFlowRate,
		input.Positions, input.WallPositions,
	)
	system, err := sph.NewSystem(cfg, nil, logger)
	if err != nil {
		return nil, err
	}
	system.SetBoundaryConditions(bc, positions, types)
	for i, t := range types {
		if t == sph.Fluid {
			system.State().Velocities.Set(i, input.InitialVelocity)
		}
	}
	return system, nil
}
