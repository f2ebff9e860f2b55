package stages

import (
	_ "embed"

	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/gpu/pipeline"
)

//go:embed assets/cell_clear.wgsl
var cellClearSource string

//go:embed assets/cell_build.wgsl
var cellBuildSource string

// cellRangeBuilderStage fills the per-cell [start, end) table from the
// sorted instance array, in two kernels: a wide strided clear pass, then a
// boundary-detection pass keyed by cell_index transitions.
type cellRangeBuilderStage struct {
	clearPipeline pipeline.Pipeline
	buildPipeline pipeline.Pipeline
}

// CellRangeBuilderStage is the host-side driver for the cell-table rebuild.
type CellRangeBuilderStage interface {
	Register(dev gpu.Device) error

	// Dispatch clears the full cells array, sized totalCells, then scans
	// the sorted padded instance array to fill in ranges.
	Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, totalCells, paddedCount uint32) error
}

var _ CellRangeBuilderStage = &cellRangeBuilderStage{}

// NewCellRangeBuilderStage constructs an unregistered CellRangeBuilderStage.
func NewCellRangeBuilderStage() CellRangeBuilderStage {
	return &cellRangeBuilderStage{}
}

func (s *cellRangeBuilderStage) Register(dev gpu.Device) error {
	clear, err := buildPipeline(dev, "cell-clear", []string{cellIndexStruct}, cellClearSource)
	if err != nil {
		return err
	}
	s.clearPipeline = clear

	build, err := buildPipeline(dev, "cell-build",
		[]string{flattenSource, parametersStruct, instanceStruct, cellIndexStruct}, cellBuildSource)
	if err != nil {
		return err
	}
	s.buildPipeline = build

	return nil
}

func (s *cellRangeBuilderStage) Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, totalCells, paddedCount uint32) error {
	cellGroup := selectGroups(providers, GroupCells)
	buildGroups := selectGroups(providers, GroupInstances, GroupCells)

	if err := dev.BeginComputeFrame(); err != nil {
		return err
	}
	dev.DispatchCompute(s.clearPipeline, cellGroup, [3]uint32{workgroupCount(totalCells, 256), 1, 1})
	dev.EndComputeFrame()

	if err := dev.BeginComputeFrame(); err != nil {
		return err
	}
	dev.DispatchCompute(s.buildPipeline, buildGroups, [3]uint32{workgroupCount(paddedCount, 64), 1, 1})
	dev.EndComputeFrame()

	return nil
}
