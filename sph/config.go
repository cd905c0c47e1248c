package sph

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/pthm-cable/lancet/spatial"
)

// Config holds the fluid parameters recognized at construction. DefaultConfig
// supplies a complete set; zero-valued fields are not replaced by defaults,
// except that a zero ParticleMassScale is treated as 1.
type Config struct {
	ParticleRadius float64 `yaml:"particle_radius"`
	RestDensity    float64 `yaml:"rest_density"`
	SpeedOfSound   float64 `yaml:"speed_of_sound"`

	KernelOverParticleRadiusRatio float64 `yaml:"kernel_over_particle_radius_ratio"`

	PressureStiffness       float64 `yaml:"pressure_stiffness"`
	DynamicViscosity        float64 `yaml:"dynamic_viscosity"`
	SurfaceTensionStiffness float64 `yaml:"surface_tension_stiffness"`
	BoundaryViscosity       float64 `yaml:"boundary_viscosity"`
	BoundaryFriction        float64 `yaml:"boundary_friction"`

	Gravity [3]float64 `yaml:"gravity"`

	CFLFactor   float64 `yaml:"cfl_factor"`
	MinTimestep float64 `yaml:"min_timestep"`
	MaxTimestep float64 `yaml:"max_timestep"`

	NormalizeDensity    bool `yaml:"normalize_density"`
	DensityWithBoundary bool `yaml:"density_with_boundary"`

	// Eta is the XSPH velocity smoothing coefficient.
	Eta float64 `yaml:"eta"`

	ParticleMassScale float64 `yaml:"particle_mass_scale"`

	NeighborSearchMethod spatial.Method `yaml:"neighbor_search_method"`

	// Derived quantities, filled by computeDerived.
	kernelRadius    float64
	kernelRadiusSqr float64
	particleMass    float64
	restDensityInv  float64
	restDensitySqr  float64
}

// DefaultConfig returns the parameter set for a water-like fluid with the
// given particle radius.
func DefaultConfig(particleRadius float64) Config {
	cfg := Config{
		ParticleRadius:                particleRadius,
		RestDensity:                   1000.0,
		SpeedOfSound:                  18.7,
		KernelOverParticleRadiusRatio: 4.0,
		PressureStiffness:             50000.0,
		DynamicViscosity:              1.0e-2,
		SurfaceTensionStiffness:       1.0,
		BoundaryViscosity:             1.0e-5,
		BoundaryFriction:              0.1,
		Gravity:                       [3]float64{0.0, -9.81, 0.0},
		CFLFactor:                     1.0,
		MinTimestep:                   1.0e-6,
		MaxTimestep:                   1.0e-3,
		Eta:                           0.5,
		ParticleMassScale:             0.95,
		NeighborSearchMethod:          spatial.UniformGridBasedSearch,
	}
	return cfg
}

// Validate reports invalid configuration values.
func (c *Config) Validate() error {
	if c.ParticleRadius <= 0 {
		return fmt.Errorf("sph: particle radius must be positive, got %v", c.ParticleRadius)
	}
	if c.RestDensity <= 0 {
		return fmt.Errorf("sph: rest density must be positive, got %v", c.RestDensity)
	}
	if c.KernelOverParticleRadiusRatio <= 0 {
		return fmt.Errorf("sph: kernel/particle radius ratio must be positive, got %v", c.KernelOverParticleRadiusRatio)
	}
	if c.MinTimestep <= 0 || c.MaxTimestep < c.MinTimestep {
		return fmt.Errorf("sph: timestep bounds invalid (min %v, max %v)", c.MinTimestep, c.MaxTimestep)
	}
	return nil
}

func (c *Config) computeDerived() {
	c.kernelRadius = c.ParticleRadius * c.KernelOverParticleRadiusRatio
	c.kernelRadiusSqr = c.kernelRadius * c.kernelRadius
	d := 2.0 * c.ParticleRadius
	scale := c.ParticleMassScale
	if scale == 0 {
		scale = 1.0
	}
	c.particleMass = c.RestDensity * d * d * d * scale
	c.restDensityInv = 1.0 / c.RestDensity
	c.restDensitySqr = c.RestDensity * c.RestDensity
}

// KernelRadius is the derived kernel support radius.
func (c *Config) KernelRadius() float64 { return c.kernelRadius }

// ParticleMass is the derived per-particle mass.
func (c *Config) ParticleMass() float64 { return c.particleMass }

// GravityVec returns the gravity as a vector.
func (c *Config) GravityVec() mgl64.Vec3 {
	return mgl64.Vec3{c.Gravity[0], c.Gravity[1], c.Gravity[2]}
}
