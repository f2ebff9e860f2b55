// Package gpu owns the single wgpu.Device/Queue pair the physics core runs
// against and the compute-frame/dispatch/readback surface built on top of
// it. Unlike the teacher's renderer backend there is no surface, no
// swapchain, and no render/shadow pass — every pipeline here is a compute
// pipeline and every resource a buffer, so this package keeps only the
// device bring-up, pipeline registration, bind group materialization, and
// buffer write/readback paths that a headless compute core needs.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/gpu/pipeline"
)

// device is the implementation of the Device interface.
type device struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	pipelineCache map[string]pipeline.Pipeline

	computeFrameEncoder *wgpu.CommandEncoder
}

// Device orchestrates GPU bring-up and the per-sub-step compute frame: one
// compute pass may dispatch several registered pipelines, each bound to its
// own BindGroupProvider, before the frame is submitted to the queue.
type Device interface {
	// Instance returns the underlying wgpu.Instance.
	Instance() *wgpu.Instance

	// Adapter returns the underlying wgpu.Adapter.
	Adapter() *wgpu.Adapter

	// Queue returns the underlying wgpu.Queue.
	Queue() *wgpu.Queue

	// RegisterComputePipeline builds the GPU-side wgpu.ComputePipeline for p
	// from its shader's parsed bind group layouts and stores the result on p
	// itself. Safe to call once per pipeline; p is also recorded in the
	// device's internal cache under its PipelineKey, which nothing reads
	// back, so callers keep p themselves (each stage in package stages does).
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitBindGroup materializes the buffers and wgpu.BindGroup described by
	// descriptor onto provider, creating any buffer not already set via
	// provider.SetBuffer. bufferUsageOverrides/bufferSizeOverrides let a
	// caller widen a buffer's usage flags (e.g. add CopySrc for a buffer that
	// will later be read back) or force an explicit byte size instead of the
	// size derived from the WGSL struct layout.
	InitBindGroup(provider bindgroup.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// BeginComputeFrame opens a new command encoder for this sub-step. Must
	// be paired with EndComputeFrame.
	BeginComputeFrame() error

	// DispatchCompute records one compute pass binding every group in
	// providers (keyed by group index) against p's pipeline, then dispatches
	// workGroupCount workgroups. Unlike the teacher's renderer, which only
	// ever binds group 0, every stage in this core reads/writes several
	// resource groups (Parameters, Instances, SortParams, Cells, Results) in
	// the same dispatch, so all of them are bound here in one pass.
	DispatchCompute(p pipeline.Pipeline, providers map[int]bindgroup.BindGroupProvider, workGroupCount [3]uint32)

	// EndComputeFrame finishes and submits the open command encoder.
	EndComputeFrame()

	// WriteBuffers stages a batch of buffer writes and submits them to the
	// queue.
	WriteBuffers(writes []bindgroup.BufferWrite)

	// ReadBuffer copies size bytes starting at offset out of src into a
	// freshly created staging buffer, maps it, copies the mapped range into a
	// Go byte slice, and unmaps it. src must have been created with
	// wgpu.BufferUsageCopySrc set (via a bufferUsageOverrides entry passed to
	// InitBindGroup). Blocks the calling goroutine until the map completes.
	ReadBuffer(src *wgpu.Buffer, offset, size uint64) ([]byte, error)

	// Release tears down the device, adapter, and instance. Pipelines and
	// bind group providers created against this device must be released by
	// their owners first.
	Release()
}

var _ Device = &device{}

// NewDevice requests a GPU adapter and device with no compatible surface —
// this core is headless — and returns an error instead of panicking on
// failure, unlike the teacher's newWGPURendererBackend, since adapter/device
// request failure here is recoverable by the caller (core.Core wraps it as
// a ResourceError; it always passes forceFallbackAdapter=false).
func NewDevice(forceFallbackAdapter bool) (Device, error) {
	d := &device{
		mu:            &sync.Mutex{},
		instance:      wgpu.CreateInstance(nil),
		pipelineCache: make(map[string]pipeline.Pipeline),
	}

	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}
	d.adapter = adapter

	// The five resource groups (Parameters, Instances, SortParams, Cells,
	// Results) never exceed wgpu's default MaxBindGroups, so the default
	// limits are used as-is unlike the teacher's render path which raises
	// MaxBindGroups to 8 for its lit fragment shader.
	limits := wgpu.DefaultLimits()

	gpuDevice, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Sphere Core Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}
	d.device = gpuDevice
	d.queue = gpuDevice.GetQueue()

	return d, nil
}

func (d *device) Instance() *wgpu.Instance { return d.instance }
func (d *device) Adapter() *wgpu.Adapter   { return d.adapter }
func (d *device) Queue() *wgpu.Queue       { return d.queue }

func (d *device) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Shader() == nil {
		return errors.New("gpu: compute shader must be set to create a compute pipeline")
	}

	computeShader := p.Shader()
	module, err := d.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return fmt.Errorf("gpu: create shader module %s: %w", computeShader.Key(), err)
	}

	descriptors := computeShader.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range descriptors {
		bgl, bglErr := d.device.CreateBindGroupLayout(&desc)
		if bglErr != nil {
			return fmt.Errorf("gpu: create bind group layout for group %d: %w", g, bglErr)
		}
		bindGroupLayouts[g] = bgl
	}

	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return fmt.Errorf("gpu: create pipeline layout for %s: %w", p.PipelineKey(), err)
	}

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: create compute pipeline %s: %w", p.PipelineKey(), err)
	}

	p.SetComputePipeline(created)
	d.pipelineCache[p.PipelineKey()] = p

	return nil
}

func (d *device) InitBindGroup(provider bindgroup.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(descriptor.Entries) == 0 {
		return nil
	}

	layout := provider.BindGroupLayout()
	if layout == nil {
		var err error
		layout, err = d.device.CreateBindGroupLayout(&descriptor)
		if err != nil {
			return fmt.Errorf("gpu: create bind group layout for %s: %w", provider.Label(), err)
		}
		provider.SetBindGroupLayout(layout)
	}

	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		var usage wgpu.BufferUsage
		switch entry.Buffer.Type {
		case wgpu.BufferBindingTypeUniform:
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
			usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		}
		if override, ok := bufferUsageOverrides[binding]; ok {
			usage |= override
		}

		buf := provider.Buffer(binding)
		if buf == nil {
			bufSize := entry.Buffer.MinBindingSize
			if override, ok := bufferSizeOverrides[binding]; ok {
				bufSize = override
			}
			var bufErr error
			buf, bufErr = d.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
				Size:  bufSize,
				Usage: usage,
			})
			if bufErr != nil {
				return fmt.Errorf("gpu: create buffer %s[%d]: %w", provider.Label(), binding, bufErr)
			}
			provider.SetBuffer(binding, buf)
		}

		entries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("gpu: create bind group %s: %w", provider.Label(), err)
	}
	provider.SetBindGroup(bindGroup)

	return nil
}

func (d *device) BeginComputeFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: create command encoder: %w", err)
	}
	d.computeFrameEncoder = encoder
	return nil
}

func (d *device) EndComputeFrame() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.computeFrameEncoder == nil {
		return
	}

	commandBuffer, err := d.computeFrameEncoder.Finish(nil)
	if err != nil {
		d.computeFrameEncoder.Release()
		d.computeFrameEncoder = nil
		return
	}

	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	d.computeFrameEncoder.Release()
	d.computeFrameEncoder = nil
}

func (d *device) DispatchCompute(p pipeline.Pipeline, providers map[int]bindgroup.BindGroupProvider, workGroupCount [3]uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.computeFrameEncoder == nil {
		return
	}

	pass := d.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.ComputePipeline())
	for group, provider := range providers {
		pass.SetBindGroup(uint32(group), provider.BindGroup(), nil)
	}
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
}

func (d *device) WriteBuffers(writes []bindgroup.BufferWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		d.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

// ReadBuffer reads size bytes at offset out of src via a staging buffer,
// following the teacher's buffer-write idiom in reverse: instead of
// queue.WriteBuffer pushing host data to the GPU, CopyBufferToBuffer pulls
// GPU data into a host-visible staging buffer, which is then mapped,
// copied out, and unmapped.
func (d *device) ReadBuffer(src *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	d.mu.Lock()
	staging, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Readback Staging Buffer",
		Size:  size,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("gpu: create readback encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(src, offset, staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		d.mu.Unlock()
		return nil, fmt.Errorf("gpu: finish readback encoder: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
	d.mu.Unlock()

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("gpu: map staging buffer: status %v", status)
			return
		}
		done <- nil
	})

	for {
		d.device.Poll(false, nil)
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
			mapped := staging.GetMappedRange(0, uint(size))
			out := make([]byte, size)
			copy(out, mapped)
			staging.Unmap()
			return out, nil
		default:
		}
	}
}

func (d *device) Release() {
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
