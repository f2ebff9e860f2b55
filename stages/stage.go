// Package stages implements the four compute stages of one physics
// sub-step — Grid Assignment, Bitonic Sort, Cell Range Builder, and
// Integration & Contact — each as embedded WGSL compiled into a
// gpu/pipeline.Pipeline via gpu/shader.Shader. Host-side Dispatch methods
// drive the GPU work; the math itself lives in the WGSL, not here.
package stages

import (
	_ "embed"

	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/gpu/pipeline"
	"github.com/harborlight-sim/spherecore/gpu/shader"
	"github.com/harborlight-sim/spherecore/model"
)

//go:embed assets/flatten.wgsl
var flattenSource string

// workgroupCount returns the number of workgroups of the given size needed
// to cover n threads: ceil(n / size).
func workgroupCount(n uint32, size uint32) uint32 {
	return (n + size - 1) / size
}

// buildPipeline assembles a shader from the struct definitions named in
// structs plus body, registers it against dev, and wraps it in a Pipeline
// keyed by key.
func buildPipeline(dev gpu.Device, key string, structs []string, body string) (pipeline.Pipeline, error) {
	source := ""
	for _, s := range structs {
		source += s + "\n"
	}
	source += body

	sh := shader.NewShader(key, source)
	p := pipeline.NewPipeline(key, pipeline.WithComputeShader(sh))
	if err := dev.RegisterComputePipeline(p); err != nil {
		return nil, err
	}
	return p, nil
}

// The WGSL struct source snippets every stage may draw from, one variable
// per struct, each taken from model's embedded source.
var (
	parametersStruct = model.ParametersSource
	instanceStruct   = model.InstanceSource
	sortParamsStruct = model.SortParamsSource
	cellIndexStruct  = model.CellIndexSource
	resultStruct     = model.ResultSource
)

// Groups names the resource-group indices shared by every stage, matching
// the Parameter & Buffer Manager's bind group table.
const (
	GroupParameters = 0
	GroupInstances  = 1
	GroupSortParams = 2
	GroupCells      = 3
	GroupResults    = 4
)

// selectGroups returns the subset of providers whose keys are in groups, in
// the shape gpu.Device.DispatchCompute expects.
func selectGroups(providers map[int]bindgroup.BindGroupProvider, groups ...int) map[int]bindgroup.BindGroupProvider {
	out := make(map[int]bindgroup.BindGroupProvider, len(groups))
	for _, g := range groups {
		if p, ok := providers[g]; ok {
			out[g] = p
		}
	}
	return out
}
