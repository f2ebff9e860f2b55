package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate_RejectsNonPositiveBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Boundary = 0

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Boundary", cfgErr.Field)
}

func TestConfigValidate_RejectsGridSizeSmallerThanTwiceMaxRadius(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRadius = 1
	cfg.GridSize = 1

	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GridSize", cfgErr.Field)
}

func TestConfigValidate_RejectsZeroSphereCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SphereCount = 0

	err := cfg.Validate()
	require.Error(t, err)
}

func TestConfigValidate_RejectsZeroSubSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SubStepsPerFrame = 0

	err := cfg.Validate()
	require.Error(t, err)
}

func TestGridCount(t *testing.T) {
	cfg := NewConfig(WithBoundary(10), WithGridSize(1))
	assert.Equal(t, uint32(21), cfg.GridCount())
}

func TestTotalCells(t *testing.T) {
	cfg := NewConfig(WithBoundary(10), WithGridSize(1))
	g := cfg.GridCount()
	assert.Equal(t, g*g*g, cfg.TotalCells())
}

func TestPaddedSphereCount_RoundsUpToPowerOfTwo(t *testing.T) {
	cases := map[uint32]uint32{
		1:    1,
		2:    2,
		3:    4,
		5:    8,
		1000: 1024,
		1024: 1024,
	}
	for in, want := range cases {
		cfg := NewConfig(WithSphereCount(in))
		assert.Equal(t, want, cfg.PaddedSphereCount(), "sphereCount=%d", in)
	}
}

func TestNewConfig_AppliesOptionsOverDefaults(t *testing.T) {
	cfg := NewConfig(
		WithSphereCount(256),
		WithBoundary(5),
		WithGridSize(0.5),
		WithTimeStep(1.0/120.0),
		WithSubStepsPerFrame(2),
		WithMaxRadius(0.1),
		WithSeed(42),
	)

	assert.Equal(t, uint32(256), cfg.SphereCount)
	assert.Equal(t, float32(5), cfg.Boundary)
	assert.Equal(t, float32(0.5), cfg.GridSize)
	assert.Equal(t, float32(1.0/120.0), cfg.TimeStep)
	assert.Equal(t, 2, cfg.SubStepsPerFrame)
	assert.Equal(t, float32(0.1), cfg.MaxRadius)
	assert.Equal(t, int64(42), cfg.Seed)
}
