// Package pipeline wraps a single wgpu.ComputePipeline plus the shader and
// bind group layouts that built it. The renderer's Pipeline type carries a
// PipelineType distinguishing render from compute and a long list of
// depth/blend/cull/topology fields that only apply to the render case; none
// of that applies here since every pipeline in this core is a compute
// pipeline, so this package keeps only what a compute pipeline needs.
package pipeline

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/harborlight-sim/spherecore/gpu/shader"
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups.
	pipelineKey string

	// computeShader is the shader this pipeline was built from.
	computeShader shader.Shader

	// computePipeline is the underlying GPU compute pipeline object, set once
	// the device orchestrator has created it.
	computePipeline *wgpu.ComputePipeline
}

// Pipeline defines the interface for a GPU compute pipeline, encapsulating
// the compute shader and the wgpu.ComputePipeline object built from it.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline, used for caching and lookups.
	PipelineKey() string

	// Shader returns the compute shader this pipeline was built from.
	Shader() shader.Shader

	// ComputePipeline returns the underlying wgpu.ComputePipeline, or nil if
	// the device orchestrator has not yet created it.
	ComputePipeline() *wgpu.ComputePipeline

	// SetComputePipeline sets the compute pipeline after GPU creation.
	SetComputePipeline(p *wgpu.ComputePipeline)
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline interface.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified configuration
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *pipeline) ComputePipeline() *wgpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline) {
	p.computePipeline = cp
}
