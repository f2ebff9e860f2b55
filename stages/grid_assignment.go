package stages

import (
	_ "embed"

	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/gpu/pipeline"
)

//go:embed assets/grid_assignment.wgsl
var gridAssignmentSource string

// gridAssignmentStage recomputes every instance's cell_index from its
// current position, one thread per instance, workgroup size 64.
type gridAssignmentStage struct {
	pipeline pipeline.Pipeline
}

// GridAssignmentStage is the host-side driver for the Grid Assignment
// compute kernel.
type GridAssignmentStage interface {
	// Register creates the GPU compute pipeline against dev. Must be called
	// once before Dispatch.
	Register(dev gpu.Device) error

	// Dispatch binds the Parameters and Instances groups and launches one
	// workgroup per 64 instances in the padded instance buffer.
	Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, paddedCount uint32) error
}

var _ GridAssignmentStage = &gridAssignmentStage{}

// NewGridAssignmentStage constructs an unregistered GridAssignmentStage.
func NewGridAssignmentStage() GridAssignmentStage {
	return &gridAssignmentStage{}
}

func (s *gridAssignmentStage) Register(dev gpu.Device) error {
	p, err := buildPipeline(dev, "grid-assignment",
		[]string{flattenSource, parametersStruct, instanceStruct}, gridAssignmentSource)
	if err != nil {
		return err
	}
	s.pipeline = p
	return nil
}

func (s *gridAssignmentStage) Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, paddedCount uint32) error {
	if err := dev.BeginComputeFrame(); err != nil {
		return err
	}
	dev.DispatchCompute(
		s.pipeline,
		selectGroups(providers, GroupParameters, GroupInstances),
		[3]uint32{workgroupCount(paddedCount, 64), 1, 1},
	)
	dev.EndComputeFrame()
	return nil
}
