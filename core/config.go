package core

import "math"

// Config holds the simulation's scalar configuration: everything the
// Parameter & Buffer Manager and Core need at construction time and cannot
// change afterward except TimeStep, which may be updated between sub-steps.
type Config struct {
	SphereCount      uint32
	Boundary         float32
	GridSize         float32
	TimeStep         float32
	SubStepsPerFrame int
	MaxRadius        float32
	Seed             int64
}

// DefaultConfig returns a Config with sensible defaults for a small
// interactive scene: 1024 spheres, a boundary of 10 units, a time step of
// 1/240s, one sub-step per frame, a grid size of 1, a max radius of 0.5, and
// a fixed seed of 1.
func DefaultConfig() Config {
	return Config{
		SphereCount:      1024,
		Boundary:         10,
		GridSize:         1,
		TimeStep:         1.0 / 240.0,
		SubStepsPerFrame: 1,
		MaxRadius:        0.5,
		Seed:             1,
	}
}

// Validate checks the invariants spec'd for the Parameter & Buffer Manager:
// grid_size >= 2*max_radius so a sphere can overlap only its 27-cell
// neighborhood, boundary > 0, and grid_size > 0. Returns a *ConfigError
// naming the first violated field.
func (c Config) Validate() error {
	if c.Boundary <= 0 {
		return &ConfigError{Field: "Boundary", Reason: "must be > 0"}
	}
	if c.GridSize <= 0 {
		return &ConfigError{Field: "GridSize", Reason: "must be > 0"}
	}
	if c.GridSize < 2*c.MaxRadius {
		return &ConfigError{Field: "GridSize", Reason: "must be >= 2*MaxRadius so the 27-neighbor narrow phase is sound"}
	}
	if c.SphereCount == 0 {
		return &ConfigError{Field: "SphereCount", Reason: "must be > 0"}
	}
	if c.SubStepsPerFrame <= 0 {
		return &ConfigError{Field: "SubStepsPerFrame", Reason: "must be > 0"}
	}
	return nil
}

// GridCount returns the number of cells along one axis of the cubic grid:
// ceil(2*boundary / grid_size + 0.5), the same formula the WGSL kernels use.
func (c Config) GridCount() uint32 {
	return uint32(math.Ceil(float64(2*c.Boundary)/float64(c.GridSize) + 0.5))
}

// TotalCells returns the total number of cells in the cubic grid, GridCount^3.
func (c Config) TotalCells() uint32 {
	g := c.GridCount()
	return g * g * g
}

// PaddedSphereCount returns the next power of two at or above SphereCount,
// the length the instance buffer must be allocated at so the bitonic sort
// stage's pairwise XOR network is well-defined.
func (c Config) PaddedSphereCount() uint32 {
	n := uint32(1)
	for n < c.SphereCount {
		n <<= 1
	}
	return n
}
