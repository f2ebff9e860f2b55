package stages

import (
	_ "embed"

	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/gpu/pipeline"
)

//go:embed assets/integrate.wgsl
var integrateSource string

// integrationStage is the only stage that reads physics: gravity, penalty
// contact forces gathered from the 27-cell neighborhood, boundary
// reflection, and cubic air drag, scattered to Results by stable id and
// written back to Instances for the next sub-step.
type integrationStage struct {
	pipeline pipeline.Pipeline
}

// IntegrationStage is the host-side driver for the integration kernel.
type IntegrationStage interface {
	Register(dev gpu.Device) error

	// Dispatch binds Parameters, Instances, Cells, and Results and launches
	// one workgroup per 64 instances in the padded buffer.
	Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, paddedCount uint32) error
}

var _ IntegrationStage = &integrationStage{}

// NewIntegrationStage constructs an unregistered IntegrationStage.
func NewIntegrationStage() IntegrationStage {
	return &integrationStage{}
}

func (s *integrationStage) Register(dev gpu.Device) error {
	p, err := buildPipeline(dev, "integrate",
		[]string{flattenSource, parametersStruct, instanceStruct, cellIndexStruct, resultStruct},
		integrateSource)
	if err != nil {
		return err
	}
	s.pipeline = p
	return nil
}

func (s *integrationStage) Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, paddedCount uint32) error {
	groups := selectGroups(providers, GroupParameters, GroupInstances, GroupCells, GroupResults)

	if err := dev.BeginComputeFrame(); err != nil {
		return err
	}
	dev.DispatchCompute(s.pipeline, groups, [3]uint32{workgroupCount(paddedCount, 64), 1, 1})
	dev.EndComputeFrame()

	return nil
}
