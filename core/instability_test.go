package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborlight-sim/spherecore/model"
)

func TestScanForInstability_NoneOnSoundResults(t *testing.T) {
	results := []model.Result{
		{Position: [3]float32{1, 2, 3}, Velocity: [3]float32{0.1, 0.2, 0.3}},
		{Position: [3]float32{-1, -2, -3}, Velocity: [3]float32{0, 0, 0}},
	}
	assert.Empty(t, ScanForInstability(results))
}

func TestScanForInstability_FlagsNaNPosition(t *testing.T) {
	results := []model.Result{
		{Position: [3]float32{float32(math.NaN()), 0, 0}},
	}
	errs := ScanForInstability(results)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, uint32(0), errs[0].InstanceID)
		assert.Equal(t, "position", errs[0].Field)
	}
}

func TestScanForInstability_FlagsInfVelocity(t *testing.T) {
	results := []model.Result{
		{},
		{Velocity: [3]float32{float32(math.Inf(1)), 0, 0}},
	}
	errs := ScanForInstability(results)
	if assert.Len(t, errs, 1) {
		assert.Equal(t, uint32(1), errs[0].InstanceID)
		assert.Equal(t, "velocity", errs[0].Field)
	}
}

func TestComputeKineticEnergyStats(t *testing.T) {
	instances := []model.Instance{
		{Id: 0, Radius: 1},
		{Id: 1, Radius: 2},
	}
	results := []model.Result{
		{Velocity: [3]float32{1, 0, 0}}, // mass 1, speedSq 1, KE 0.5
		{Velocity: [3]float32{2, 0, 0}}, // mass 8, speedSq 4, KE 16
	}

	stats := ComputeKineticEnergyStats(results, instances)
	assert.InDelta(t, (0.5+16)/2, stats.Mean, 1e-9)
	assert.Greater(t, stats.Variance, 0.0)
}

func TestComputeKineticEnergyStats_SkipsPaddingInstances(t *testing.T) {
	instances := []model.Instance{
		{Id: 0, Radius: 1, CellIndex: model.PaddedCellIndex},
	}
	results := []model.Result{
		{Velocity: [3]float32{5, 0, 0}},
	}

	stats := ComputeKineticEnergyStats(results, instances)
	assert.Zero(t, stats.Mean)
	assert.Zero(t, stats.Variance)
}
