package diagnostics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight-sim/spherecore/core"
	"github.com/harborlight-sim/spherecore/model"
)

func testConfig() core.Config {
	return core.NewConfig(
		core.WithSphereCount(8),
		core.WithBoundary(10),
		core.WithGridSize(1),
		core.WithTimeStep(1.0/240.0),
		core.WithMaxRadius(0.5),
	)
}

// Invariant 1: Assign correctness.
func TestReferenceAssign_MatchesFlattenFormula(t *testing.T) {
	cfg := testConfig()
	instances := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{0, 0, 0}},
		{Id: 1, Radius: 0.5, Position: [3]float32{9.9, -9.9, 9.9}},
		{Id: 2, Radius: 0.5, Position: [3]float32{-9.9, 0, 0}},
	}

	assigned := ReferenceAssign(instances, cfg)
	for i, inst := range assigned {
		p := instances[i].Position
		want := FlattenCell(mgl32.Vec3{p[0], p[1], p[2]}, cfg)
		assert.Equal(t, want, inst.CellIndex, "instance %d", i)
	}
}

func TestReferenceAssign_SkipsPaddingSentinels(t *testing.T) {
	cfg := testConfig()
	instances := []model.Instance{{CellIndex: model.PaddedCellIndex}}

	assigned := ReferenceAssign(instances, cfg)
	assert.Equal(t, uint32(model.PaddedCellIndex), assigned[0].CellIndex)
}

// Invariant 2: sort stability of the multiset.
func TestReferenceSort_IsPermutationAndNonDecreasing(t *testing.T) {
	instances := []model.Instance{
		{Id: 0, CellIndex: 5},
		{Id: 1, CellIndex: 1},
		{Id: 2, CellIndex: 3},
		{Id: 3, CellIndex: 1},
	}

	sorted := ReferenceSort(instances)
	require.Len(t, sorted, len(instances))

	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1].CellIndex, sorted[i].CellIndex)
	}

	gotIDs := make(map[uint32]bool)
	for _, inst := range sorted {
		gotIDs[inst.Id] = true
	}
	for _, inst := range instances {
		assert.True(t, gotIDs[inst.Id], "id %d missing after sort", inst.Id)
	}
}

// Invariant 3: cell table exactness.
func TestReferenceCellRanges_RangesMatchCellMembership(t *testing.T) {
	sorted := []model.Instance{
		{Id: 0, CellIndex: 0},
		{Id: 1, CellIndex: 0},
		{Id: 2, CellIndex: 2},
		{Id: 3, CellIndex: 4},
		{Id: 4, CellIndex: 4},
		{Id: 5, CellIndex: 4},
	}
	cells := ReferenceCellRanges(sorted, 5)

	require.Len(t, cells, 5)
	assert.Equal(t, model.CellIndex{Start: 0, End: 2}, cells[0])
	assert.Equal(t, model.CellIndex{Start: 0, End: 0}, cells[1]) // empty
	assert.Equal(t, model.CellIndex{Start: 2, End: 3}, cells[2])
	assert.Equal(t, model.CellIndex{Start: 0, End: 0}, cells[3]) // empty
	assert.Equal(t, model.CellIndex{Start: 3, End: 6}, cells[4])
}

// Invariant 5: conservation of count.
func TestReferenceIntegrate_ConservesInstanceCount(t *testing.T) {
	cfg := testConfig()
	sorted := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{0, 5, 0}},
		{Id: 1, Radius: 0.5, Position: [3]float32{3, 5, 0}, CellIndex: model.PaddedCellIndex},
	}
	cells := ReferenceCellRanges(sorted, cfg.TotalCells())

	out, results := ReferenceIntegrate(sorted, cells, cfg)
	assert.Len(t, out, len(sorted))
	assert.Len(t, results, len(sorted))
}

// Invariant 4: containment within boundary + epsilon.
func TestReferenceIntegrate_KeepsPositionsWithinBoundary(t *testing.T) {
	cfg := testConfig()
	sorted := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{cfg.Boundary - 0.05, 0, 0}, Velocity: [3]float32{10, 0, 0}},
	}
	sorted = ReferenceAssign(sorted, cfg)
	cells := ReferenceCellRanges(sorted, cfg.TotalCells())

	out, _ := ReferenceIntegrate(sorted, cells, cfg)
	for _, inst := range out {
		for axis := 0; axis < 3; axis++ {
			assert.LessOrEqual(t, float64(inst.Position[axis]), float64(cfg.Boundary)+1e-3)
			assert.GreaterOrEqual(t, float64(inst.Position[axis]), float64(-cfg.Boundary)-1e-3)
		}
	}
}

// Invariant 6: energy monotonicity under drag with no gravity. A single
// isolated sphere (no contacts, no boundary) loses kinetic energy every
// sub-step once AR > 0, since the only thing touching its velocity is the
// cubic drag term.
func TestReferenceIntegrate_EnergyStrictlyDecreasesUnderDragNoGravity(t *testing.T) {
	cfg := core.NewConfig(
		core.WithSphereCount(1),
		core.WithBoundary(20),
		core.WithGridSize(1),
		core.WithTimeStep(1.0/240.0),
		core.WithMaxRadius(0.5),
	)

	sorted := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{0, 0, 0}, Velocity: [3]float32{2, 0, 0}},
	}

	kineticEnergy := func(inst model.Instance) float64 {
		mass := float64(inst.Radius * inst.Radius * inst.Radius)
		v := inst.Velocity
		speedSq := float64(v[0])*float64(v[0]) + float64(v[1])*float64(v[1]) + float64(v[2])*float64(v[2])
		return 0.5 * mass * speedSq
	}

	prevEnergy := kineticEnergy(sorted[0])
	for step := 0; step < 5; step++ {
		sorted = ReferenceAssign(sorted, cfg)
		cells := ReferenceCellRanges(sorted, cfg.TotalCells())
		sorted, _ = ReferenceIntegrateWithConstants(sorted, cells, cfg, 0, DragCoeff)

		energy := kineticEnergy(sorted[0])
		assert.Less(t, energy, prevEnergy, "step %d", step)
		prevEnergy = energy
	}
}

// S1 Single falling sphere.
func TestScenario_S1_SingleFallingSphere(t *testing.T) {
	cfg := core.NewConfig(
		core.WithSphereCount(1),
		core.WithBoundary(10),
		core.WithGridSize(1),
		core.WithTimeStep(1.0/240.0),
		core.WithMaxRadius(0.5),
	)

	sorted := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{0, 0.5 * cfg.Boundary, 0}},
	}

	const subSteps = 120
	for step := 0; step < subSteps; step++ {
		sorted = ReferenceAssign(sorted, cfg)
		cells := ReferenceCellRanges(sorted, cfg.TotalCells())
		sorted, _ = ReferenceIntegrate(sorted, cells, cfg)
	}

	elapsed := float64(subSteps) * float64(cfg.TimeStep)
	idealDrop := 0.5 * Gravity * elapsed * elapsed
	bound := 0.5*float64(cfg.Boundary) - idealDrop + 1.0 // generous tolerance for drag + midpoint discretization

	assert.Less(t, float64(sorted[0].Position[1]), bound)
	assert.Less(t, sorted[0].Velocity[1], float32(0))
}

// S2 Head-on pair, G=0, AR=0: both spheres reverse sign and end no faster
// than twice their initial speed.
func TestScenario_S2_HeadOnPair(t *testing.T) {
	cfg := core.NewConfig(
		core.WithSphereCount(2),
		core.WithBoundary(10),
		core.WithGridSize(1),
		core.WithTimeStep(1.0/240.0),
		core.WithMaxRadius(0.5),
	)

	sorted := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{1, 0, 0}, Velocity: [3]float32{-1, 0, 0}},
		{Id: 1, Radius: 0.5, Position: [3]float32{-1, 0, 0}, Velocity: [3]float32{1, 0, 0}},
	}

	for step := 0; step < 400; step++ {
		sorted = ReferenceAssign(sorted, cfg)
		cells := ReferenceCellRanges(sorted, cfg.TotalCells())
		sorted, _ = ReferenceIntegrateWithConstants(sorted, cells, cfg, 0, 0)
	}

	byID := make(map[uint32]model.Instance, len(sorted))
	for _, inst := range sorted {
		byID[inst.Id] = inst
	}

	// sphere 0 started moving in -x, ends moving in +x (and vice versa for 1).
	assert.Greater(t, byID[0].Velocity[0], float32(0))
	assert.Less(t, byID[1].Velocity[0], float32(0))

	// integrator tolerance: the penalty spring can overshoot slightly, but
	// shouldn't run away.
	const before = 1.0
	assert.LessOrEqual(t, abs32(byID[0].Velocity[0]), float32(2*before))
	assert.LessOrEqual(t, abs32(byID[1].Velocity[0]), float32(2*before))
}

// S3 Packed grid at rest, G=0: no overlap means no force, so nothing moves,
// and every occupied cell holds exactly one instance.
func TestScenario_S3_PackedGridAtRest(t *testing.T) {
	cfg := core.NewConfig(
		core.WithSphereCount(512),
		core.WithBoundary(4),
		core.WithGridSize(1),
		core.WithTimeStep(1.0/240.0),
		core.WithMaxRadius(0.2),
	)

	var sorted []model.Instance
	id := uint32(0)
	for xi := 0; xi < 8; xi++ {
		for yi := 0; yi < 8; yi++ {
			for zi := 0; zi < 8; zi++ {
				pos := [3]float32{
					-cfg.Boundary + (float32(xi)+0.5)*cfg.GridSize,
					-cfg.Boundary + (float32(yi)+0.5)*cfg.GridSize,
					-cfg.Boundary + (float32(zi)+0.5)*cfg.GridSize,
				}
				sorted = append(sorted, model.Instance{Id: id, Radius: 0.2, Position: pos})
				id++
			}
		}
	}

	sorted = ReferenceAssign(sorted, cfg)
	sorted = ReferenceSort(sorted)
	cells := ReferenceCellRanges(sorted, cfg.TotalCells())

	occupied := 0
	for _, c := range cells {
		if c.End > c.Start {
			assert.Equal(t, uint32(1), c.End-c.Start, "cell should hold exactly one instance")
			occupied++
		}
	}
	assert.Equal(t, len(sorted), occupied)

	out, _ := ReferenceIntegrateWithConstants(sorted, cells, cfg, 0, DragCoeff)
	tol := float32(Stiffness) * cfg.TimeStep * cfg.TimeStep
	for i, inst := range out {
		for axis := 0; axis < 3; axis++ {
			assert.InDelta(t, sorted[i].Position[axis], inst.Position[axis], float64(tol)+1e-6)
		}
	}
}

// S5 Cell range rebuild: ranges concatenate to [0, N) exactly once.
func TestScenario_S5_CellRangeRebuild(t *testing.T) {
	instances := []model.Instance{
		{Id: 0, CellIndex: 7}, {Id: 1, CellIndex: 2}, {Id: 2, CellIndex: 2},
		{Id: 3, CellIndex: 0}, {Id: 4, CellIndex: 9}, {Id: 5, CellIndex: 2},
		{Id: 6, CellIndex: 9}, {Id: 7, CellIndex: 4},
	}
	const totalCells = 10

	sorted := ReferenceSort(instances)
	cells := ReferenceCellRanges(sorted, totalCells)

	prevEnd := uint32(0)
	for _, c := range cells {
		if c.End == c.Start {
			continue
		}
		assert.Equal(t, prevEnd, c.Start, "ranges must concatenate with no gap or overlap")
		prevEnd = c.End
	}
	assert.Equal(t, uint32(len(instances)), prevEnd)
}

// S6 Boundary trap: a sphere driven into the wall ends with negative
// x-velocity after one sub-step.
func TestScenario_S6_BoundaryTrap(t *testing.T) {
	cfg := core.NewConfig(
		core.WithSphereCount(1),
		core.WithBoundary(10),
		core.WithGridSize(1),
		core.WithTimeStep(1.0/240.0),
		core.WithMaxRadius(0.5),
	)

	sorted := []model.Instance{
		{Id: 0, Radius: 0.5, Position: [3]float32{cfg.Boundary - 0.1*0.5, 0, 0}, Velocity: [3]float32{10, 0, 0}},
	}
	sorted = ReferenceAssign(sorted, cfg)
	cells := ReferenceCellRanges(sorted, cfg.TotalCells())

	out, _ := ReferenceIntegrate(sorted, cells, cfg)
	assert.Less(t, out[0].Velocity[0], float32(0))
}
