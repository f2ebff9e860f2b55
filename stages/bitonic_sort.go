package stages

import (
	_ "embed"

	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/gpu/pipeline"
	"github.com/harborlight-sim/spherecore/model"
)

//go:embed assets/bitonic_sort.wgsl
var bitonicSortSource string

// bitonicSortStage drives the Batcher bitonic network over the padded
// instance array, one dispatch per (k, j) stride pair.
type bitonicSortStage struct {
	pipeline pipeline.Pipeline
}

// BitonicSortStage is the host-side driver for the bitonic sort kernel. A
// single Dispatch call issues every (k, j) dispatch of one full sort sweep.
type BitonicSortStage interface {
	Register(dev gpu.Device) error

	// Dispatch sorts the padded instance buffer in place by cell_index,
	// issuing log2(paddedCount)*(log2(paddedCount)+1)/2 kernel dispatches,
	// each preceded by a SortParams write. paddedCount must be a power of
	// two.
	Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, paddedCount uint32) error
}

var _ BitonicSortStage = &bitonicSortStage{}

// NewBitonicSortStage constructs an unregistered BitonicSortStage.
func NewBitonicSortStage() BitonicSortStage {
	return &bitonicSortStage{}
}

func (s *bitonicSortStage) Register(dev gpu.Device) error {
	p, err := buildPipeline(dev, "bitonic-sort",
		[]string{instanceStruct, sortParamsStruct}, bitonicSortSource)
	if err != nil {
		return err
	}
	s.pipeline = p
	return nil
}

func (s *bitonicSortStage) Dispatch(dev gpu.Device, providers map[int]bindgroup.BindGroupProvider, paddedCount uint32) error {
	sortParamsProvider := providers[GroupSortParams]
	groups := selectGroups(providers, GroupInstances, GroupSortParams)
	workgroups := [3]uint32{workgroupCount(paddedCount, 64), 1, 1}

	for k := uint32(2); k <= paddedCount; k <<= 1 {
		for j := k / 2; j > 0; j >>= 1 {
			sp := model.SortParams{J: j, K: k}
			dev.WriteBuffers([]bindgroup.BufferWrite{
				{Provider: sortParamsProvider, Binding: 0, Offset: 0, Data: sp.Marshal()},
			})

			if err := dev.BeginComputeFrame(); err != nil {
				return err
			}
			dev.DispatchCompute(s.pipeline, groups, workgroups)
			dev.EndComputeFrame()
		}
	}

	return nil
}
