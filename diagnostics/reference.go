// Package diagnostics reimplements the WGSL kernels' math in Go so the
// testable properties of spec §8 can be checked without a real GPU device
// in the test environment. These reference functions are the same formulas
// and constants as the WGSL source embedded in stages/assets — the WGSL is
// the implementation of record for the GPU path; this package exists only
// so tests can assert against it.
package diagnostics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/harborlight-sim/spherecore/core"
	"github.com/harborlight-sim/spherecore/model"
)

// Physics constants mirrored from stages/assets/integrate.wgsl.
const (
	Stiffness   = 1000.0
	Gravity     = 9.8
	DragCoeff   = 0.01
	Restitution = 0.85 // advisory only, unused by the boundary rule
)

// GridCount returns ceil(2*boundary/gridSize + 0.5), the same formula every
// stage that flattens cells uses (stages/assets/flatten.wgsl's grid_count).
func GridCount(cfg core.Config) uint32 {
	return cfg.GridCount()
}

// FlattenCell computes the 1-D cell index for a position inside the cube,
// mirroring stages/assets/flatten.wgsl's grid_coord+flatten, with the same
// clamp-on-rounding-error behavior the Grid Assignment kernel applies.
func FlattenCell(position mgl32.Vec3, cfg core.Config) uint32 {
	g := int32(GridCount(cfg))
	offset := position.Add(mgl32.Vec3{cfg.Boundary, cfg.Boundary, cfg.Boundary})

	coord := [3]int32{
		int32(math.Floor(float64(offset.X() / cfg.GridSize))),
		int32(math.Floor(float64(offset.Y() / cfg.GridSize))),
		int32(math.Floor(float64(offset.Z() / cfg.GridSize))),
	}
	for i := range coord {
		if coord[i] < 0 {
			coord[i] = 0
		}
		if coord[i] > g-1 {
			coord[i] = g - 1
		}
	}

	return uint32(coord[0]) + uint32(coord[1])*uint32(g) + uint32(coord[2])*uint32(g)*uint32(g)
}

// ReferenceAssign recomputes cell_index for every non-padding instance,
// mirroring the Grid Assignment kernel.
func ReferenceAssign(instances []model.Instance, cfg core.Config) []model.Instance {
	out := make([]model.Instance, len(instances))
	copy(out, instances)
	for i := range out {
		if out[i].CellIndex == model.PaddedCellIndex {
			continue
		}
		pos := mgl32.Vec3{out[i].Position[0], out[i].Position[1], out[i].Position[2]}
		out[i].CellIndex = FlattenCell(pos, cfg)
	}
	return out
}

// ReferenceSort returns a copy of instances sorted ascending by CellIndex,
// mirroring the invariant the bitonic sort stage must establish (stable
// multiset, non-decreasing key) without reproducing the comparator-network
// schedule itself.
func ReferenceSort(instances []model.Instance) []model.Instance {
	out := make([]model.Instance, len(instances))
	copy(out, instances)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].CellIndex > out[j].CellIndex; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// ReferenceCellRanges builds the {start, end} table from a sorted instance
// array, mirroring the Cell Range Builder's clear + boundary-detection
// passes.
func ReferenceCellRanges(sorted []model.Instance, totalCells uint32) []model.CellIndex {
	cells := make([]model.CellIndex, totalCells)

	n := uint32(0)
	for _, inst := range sorted {
		if inst.CellIndex != model.PaddedCellIndex {
			n++
		}
	}

	for idx := uint32(0); idx < n; idx++ {
		inst := sorted[idx]
		if idx == 0 {
			cells[inst.CellIndex].Start = 0
		} else {
			prev := sorted[idx-1]
			if inst.CellIndex != prev.CellIndex {
				cells[inst.CellIndex].Start = idx
				cells[prev.CellIndex].End = idx
			}
		}
		if idx == n-1 {
			cells[inst.CellIndex].End = n
		}
	}

	return cells
}

// ReferenceIntegrate advances every non-padding instance by one sub-step
// using the compile-time constants (Stiffness, Gravity, DragCoeff),
// mirroring stages/assets/integrate.wgsl exactly as it runs on the GPU.
func ReferenceIntegrate(sorted []model.Instance, cells []model.CellIndex, cfg core.Config) ([]model.Instance, []model.Result) {
	return ReferenceIntegrateWithConstants(sorted, cells, cfg, Gravity, DragCoeff)
}

// ReferenceIntegrateWithConstants is ReferenceIntegrate with gravity and
// drag passed explicitly instead of taken from the package constants. The
// WGSL kernel hardcodes G and AR at compile time, so there is no way to
// drive the GPU path itself at G=0 or AR=0 without a second shader
// variant — this parameterization exists so the zero-gravity /
// zero-drag testable properties (spec §8 invariant 6, S2, S3) can be
// checked against the same contact/boundary/integration math without
// needing that second variant.
func ReferenceIntegrateWithConstants(sorted []model.Instance, cells []model.CellIndex, cfg core.Config, gravity, drag float64) ([]model.Instance, []model.Result) {
	out := make([]model.Instance, len(sorted))
	copy(out, sorted)

	results := make([]model.Result, len(sorted))

	g := GridCount(cfg)
	for gid := range out {
		inst := out[gid]
		if inst.CellIndex == model.PaddedCellIndex {
			continue
		}

		pos := mgl32.Vec3{inst.Position[0], inst.Position[1], inst.Position[2]}
		vel := mgl32.Vec3{inst.Velocity[0], inst.Velocity[1], inst.Velocity[2]}

		force := mgl32.Vec3{}
		base := cellCoord(inst.CellIndex, g)
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					coord := [3]int32{base[0] + int32(dx), base[1] + int32(dy), base[2] + int32(dz)}
					if !coordInBounds(coord, g) {
						continue
					}
					cell := flattenCoord(coord, g)
					r := cells[cell]
					for j := r.Start; j < r.End; j++ {
						if uint32(j) == uint32(gid) {
							continue
						}
						other := sorted[j]
						rel := pos.Sub(mgl32.Vec3{other.Position[0], other.Position[1], other.Position[2]})
						d := rel.Len()
						overlap := inst.Radius + other.Radius - d
						if overlap > 0 && d > 0 {
							force = force.Add(rel.Normalize().Mul(float32(Stiffness) * overlap))
						}
					}
				}
			}
		}

		mass := inst.Radius * inst.Radius * inst.Radius
		accel := force.Mul(1 / mass).Add(mgl32.Vec3{0, -float32(gravity), 0})

		vPrime := vel.Add(accel.Mul(cfg.TimeStep))

		if pos.X()+inst.Radius > cfg.Boundary {
			vPrime[0] = -abs32(vPrime.X())
		} else if pos.X()-inst.Radius < -cfg.Boundary {
			vPrime[0] = abs32(vPrime.X())
		}
		if pos.Y()+inst.Radius > cfg.Boundary {
			vPrime[1] = -abs32(vPrime.Y())
		} else if pos.Y()-inst.Radius < -cfg.Boundary {
			vPrime[1] = abs32(vPrime.Y())
		}
		if pos.Z()+inst.Radius > cfg.Boundary {
			vPrime[2] = -abs32(vPrime.Z())
		} else if pos.Z()-inst.Radius < -cfg.Boundary {
			vPrime[2] = abs32(vPrime.Z())
		}

		pPrime := pos.Add(vel.Mul(cfg.TimeStep)).Add(accel.Mul(0.5 * cfg.TimeStep * cfg.TimeStep))
		pPrime = clampVec(pPrime, -cfg.Boundary+inst.Radius, cfg.Boundary-inst.Radius)

		speed := vPrime.Len()
		vDoublePrime := vPrime.Mul(1 - float32(drag)*speed*speed*speed*cfg.TimeStep)

		out[gid].Position = [3]float32{pPrime.X(), pPrime.Y(), pPrime.Z()}
		out[gid].Velocity = [3]float32{vDoublePrime.X(), vDoublePrime.Y(), vDoublePrime.Z()}
		results[inst.Id] = model.Result{
			Position: out[gid].Position,
			Velocity: out[gid].Velocity,
		}
	}

	return out, results
}

func cellCoord(cellIndex, g uint32) [3]int32 {
	return [3]int32{
		int32(cellIndex % g),
		int32((cellIndex / g) % g),
		int32(cellIndex / (g * g)),
	}
}

func coordInBounds(coord [3]int32, g uint32) bool {
	gi := int32(g)
	return coord[0] >= 0 && coord[1] >= 0 && coord[2] >= 0 && coord[0] < gi && coord[1] < gi && coord[2] < gi
}

func flattenCoord(coord [3]int32, g uint32) uint32 {
	return uint32(coord[0]) + uint32(coord[1])*g + uint32(coord[2])*g*g
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampVec(v mgl32.Vec3, lo, hi float32) mgl32.Vec3 {
	return mgl32.Vec3{
		clampScalar(v.X(), lo, hi),
		clampScalar(v.Y(), lo, hi),
		clampScalar(v.Z(), lo, hi),
	}
}

func clampScalar(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
