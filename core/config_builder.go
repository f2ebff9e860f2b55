package core

// ConfigOption is a functional option for configuring a Config, in the
// teacher engine's With* builder style.
type ConfigOption func(*Config)

// WithSphereCount sets the number of live spheres the simulation manages.
func WithSphereCount(n uint32) ConfigOption {
	return func(c *Config) { c.SphereCount = n }
}

// WithBoundary sets the half-extent of the cubic container.
func WithBoundary(boundary float32) ConfigOption {
	return func(c *Config) { c.Boundary = boundary }
}

// WithGridSize sets the uniform grid's cell side length.
func WithGridSize(gridSize float32) ConfigOption {
	return func(c *Config) { c.GridSize = gridSize }
}

// WithTimeStep sets the sub-step time delta.
func WithTimeStep(dt float32) ConfigOption {
	return func(c *Config) { c.TimeStep = dt }
}

// WithSubStepsPerFrame sets how many sub-steps the core advances per
// displayed frame.
func WithSubStepsPerFrame(n int) ConfigOption {
	return func(c *Config) { c.SubStepsPerFrame = n }
}

// WithMaxRadius sets the largest sphere radius the scene will generate,
// used to validate GridSize.
func WithMaxRadius(r float32) ConfigOption {
	return func(c *Config) { c.MaxRadius = r }
}

// WithSeed sets the deterministic seed used by initgen to generate the
// initial instance array.
func WithSeed(seed int64) ConfigOption {
	return func(c *Config) { c.Seed = seed }
}

// NewConfig builds a Config starting from DefaultConfig and applying opts in
// order.
func NewConfig(opts ...ConfigOption) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
