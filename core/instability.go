package core

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/harborlight-sim/spherecore/model"
)

// ScanForInstability walks a read-back Result array for NaN/Inf components
// and returns one *InstabilityError per offending field (position or
// velocity) of each offending instance, identified by its stable id (the
// Result array's own index). An empty return means the sub-step stayed
// numerically sound.
func ScanForInstability(results []model.Result) []*InstabilityError {
	var errs []*InstabilityError
	for id, r := range results {
		if badVec3(r.Position) {
			errs = append(errs, &InstabilityError{InstanceID: uint32(id), Field: "position"})
		}
		if badVec3(r.Velocity) {
			errs = append(errs, &InstabilityError{InstanceID: uint32(id), Field: "velocity"})
		}
	}
	return errs
}

func badVec3(v [3]float32) bool {
	for _, c := range v {
		f := float64(c)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return true
		}
	}
	return false
}

// KineticEnergyStats summarizes the mean and variance of per-instance
// kinetic energy (0.5 * mass * |v|^2, mass = radius^3) across a read-back
// population. A widening variance run over run is the signal a run loop can
// use to flag a configuration as diverging rather than merely energetic.
type KineticEnergyStats struct {
	Mean     float64
	Variance float64
}

// ComputeKineticEnergyStats pairs a Result array's velocities with the
// matching Instance array's radii (same stable-id indexing) and returns the
// population mean/variance of kinetic energy using gonum's numerically
// stable single-pass estimator.
func ComputeKineticEnergyStats(results []model.Result, instances []model.Instance) KineticEnergyStats {
	radiusByID := make(map[uint32]float32, len(instances))
	for _, inst := range instances {
		if inst.CellIndex == model.PaddedCellIndex {
			continue
		}
		radiusByID[inst.Id] = inst.Radius
	}

	energies := make([]float64, 0, len(results))
	for id, r := range results {
		radius, ok := radiusByID[uint32(id)]
		if !ok {
			continue
		}
		mass := float64(radius * radius * radius)
		speedSq := float64(r.Velocity[0])*float64(r.Velocity[0]) +
			float64(r.Velocity[1])*float64(r.Velocity[1]) +
			float64(r.Velocity[2])*float64(r.Velocity[2])
		energies = append(energies, 0.5*mass*speedSq)
	}

	if len(energies) == 0 {
		return KineticEnergyStats{}
	}

	mean, variance := stat.MeanVariance(energies, nil)
	return KineticEnergyStats{Mean: mean, Variance: variance}
}
