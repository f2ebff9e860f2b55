// Package buffers implements the Parameter & Buffer Manager: it owns the
// five long-lived GPU buffers backing one simulation run and the bind
// group providers each compute stage binds against, and is the only
// component that talks to gpu.Device for buffer lifecycle concerns outside
// of dispatch itself.
package buffers

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/gpu/bindgroup"
	"github.com/harborlight-sim/spherecore/model"
)

// Params carries the already-validated, already-derived quantities Manager
// needs to size and seed its buffers. The caller (core.Core) owns Config
// validation and the GridCount/PaddedSphereCount/TotalCells derivations;
// Manager stays a pure GPU-resource layer with no knowledge of Config
// itself, so it can be driven directly from tests without a core import.
type Params struct {
	TimeStep    float32
	Boundary    float32
	GridSize    float32
	PaddedCount uint32
	TotalCells  uint32
}

// Manager owns the Parameters, Instances, SortParams, Cells, and Results
// buffers and the bind group providers for groups 0 through 4.
type Manager struct {
	dev       gpu.Device
	providers map[int]bindgroup.BindGroupProvider

	paddedCount uint32
	totalCells  uint32
}

// NewManager constructs an empty Manager bound to dev. Call Init before use.
func NewManager(dev gpu.Device) *Manager {
	return &Manager{
		dev:       dev,
		providers: make(map[int]bindgroup.BindGroupProvider),
	}
}

// Providers returns the bind group providers keyed by group index, the
// shape every stage's Dispatch method expects.
func (m *Manager) Providers() map[int]bindgroup.BindGroupProvider {
	return m.providers
}

// PaddedCount returns the power-of-two length the Instances and Results
// buffers were allocated at.
func (m *Manager) PaddedCount() uint32 {
	return m.paddedCount
}

// TotalCells returns the number of cells the Cells buffer was allocated at.
func (m *Manager) TotalCells() uint32 {
	return m.totalCells
}

// Init pads initialInstances up to params.PaddedCount with PaddedCellIndex
// sentinels and allocates and uploads all five buffers. Callers are
// responsible for validating their Config and deriving Params before
// calling Init; Init itself returns a plain error on GPU allocation
// failure, which callers in package core wrap as a *core.ResourceError.
func (m *Manager) Init(params Params, initialInstances []model.Instance) error {
	m.paddedCount = params.PaddedCount
	m.totalCells = params.TotalCells

	padded := make([]model.Instance, m.paddedCount)
	copy(padded, initialInstances)
	for i := len(initialInstances); i < len(padded); i++ {
		padded[i] = model.Instance{CellIndex: model.PaddedCellIndex}
	}

	if err := m.initParameters(params); err != nil {
		return fmt.Errorf("init parameters buffer: %w", err)
	}
	if err := m.initInstances(padded); err != nil {
		return fmt.Errorf("init instances buffer: %w", err)
	}
	if err := m.initSortParams(); err != nil {
		return fmt.Errorf("init sort params buffer: %w", err)
	}
	if err := m.initCells(); err != nil {
		return fmt.Errorf("init cells buffer: %w", err)
	}
	if err := m.initResults(); err != nil {
		return fmt.Errorf("init results buffer: %w", err)
	}

	return nil
}

func (m *Manager) initParameters(params Params) error {
	provider := bindgroup.NewBindGroupProvider("Parameters")
	descriptor := wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeStorage,
					MinBindingSize: model.ParametersSize,
				},
			},
		},
	}
	if err := m.dev.InitBindGroup(provider, descriptor, nil, nil); err != nil {
		return err
	}

	wireParams := model.Parameters{
		TimeStep: params.TimeStep,
		Boundary: params.Boundary,
		GridSize: params.GridSize,
	}
	m.dev.WriteBuffers([]bindgroup.BufferWrite{
		{Provider: provider, Binding: 0, Offset: 0, Data: wireParams.Marshal()},
	})

	m.providers[0] = provider
	return nil
}

func (m *Manager) initInstances(instances []model.Instance) error {
	provider := bindgroup.NewBindGroupProvider("Instances")
	size := uint64(len(instances)) * model.InstanceSize
	descriptor := wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeStorage,
					MinBindingSize: model.InstanceSize,
				},
			},
		},
	}
	// Instances must also be readable back (diagnostics, S1-S6 scenarios,
	// reseeding on instability), so CopySrc is added on top of the usage
	// InitBindGroup derives from the layout entry.
	usageOverrides := map[int]wgpu.BufferUsage{0: wgpu.BufferUsageCopySrc}
	sizeOverrides := map[int]uint64{0: size}
	if err := m.dev.InitBindGroup(provider, descriptor, usageOverrides, sizeOverrides); err != nil {
		return err
	}

	data := make([]byte, 0, size)
	for i := range instances {
		data = append(data, instances[i].Marshal()...)
	}
	m.dev.WriteBuffers([]bindgroup.BufferWrite{
		{Provider: provider, Binding: 0, Offset: 0, Data: data},
	})

	m.providers[1] = provider
	return nil
}

func (m *Manager) initSortParams() error {
	provider := bindgroup.NewBindGroupProvider("SortParams")
	descriptor := wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeStorage,
					MinBindingSize: model.SortParamsSize,
				},
			},
		},
	}
	if err := m.dev.InitBindGroup(provider, descriptor, nil, nil); err != nil {
		return err
	}

	m.providers[2] = provider
	return nil
}

func (m *Manager) initCells() error {
	provider := bindgroup.NewBindGroupProvider("Cells")
	size := uint64(m.totalCells) * model.CellIndexSize
	descriptor := wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeStorage,
					MinBindingSize: model.CellIndexSize,
				},
			},
		},
	}
	sizeOverrides := map[int]uint64{0: size}
	if err := m.dev.InitBindGroup(provider, descriptor, nil, sizeOverrides); err != nil {
		return err
	}

	m.providers[3] = provider
	return nil
}

func (m *Manager) initResults() error {
	provider := bindgroup.NewBindGroupProvider("Results")
	size := uint64(m.paddedCount) * model.ResultSize
	descriptor := wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeStorage,
					MinBindingSize: model.ResultSize,
				},
			},
		},
	}
	usageOverrides := map[int]wgpu.BufferUsage{0: wgpu.BufferUsageCopySrc}
	sizeOverrides := map[int]uint64{0: size}
	if err := m.dev.InitBindGroup(provider, descriptor, usageOverrides, sizeOverrides); err != nil {
		return err
	}

	m.providers[4] = provider
	return nil
}

// WriteSortParams rewrites the SortParams buffer ahead of one bitonic sort
// dispatch. Exposed directly for callers (tests, diagnostics) that want to
// drive a single comparator stage without going through stages.BitonicSortStage.
func (m *Manager) WriteSortParams(k, j uint32) {
	sp := model.SortParams{J: j, K: k}
	m.dev.WriteBuffers([]bindgroup.BufferWrite{
		{Provider: m.providers[2], Binding: 0, Offset: 0, Data: sp.Marshal()},
	})
}

// ReadBackResults reads the whole Results buffer back to the CPU, indexed
// by stable instance id.
func (m *Manager) ReadBackResults() ([]model.Result, error) {
	buf := m.providers[4].Buffer(0)
	if buf == nil {
		return nil, fmt.Errorf("buffers: results buffer not initialized")
	}
	data, err := m.dev.ReadBuffer(buf, 0, uint64(m.paddedCount)*model.ResultSize)
	if err != nil {
		return nil, fmt.Errorf("read back results: %w", err)
	}
	return model.UnmarshalResults(data), nil
}

// ReadBackInstances reads the whole Instances buffer back to the CPU, in
// sorted (gid) order.
func (m *Manager) ReadBackInstances() ([]model.Instance, error) {
	buf := m.providers[1].Buffer(0)
	if buf == nil {
		return nil, fmt.Errorf("buffers: instances buffer not initialized")
	}
	data, err := m.dev.ReadBuffer(buf, 0, uint64(m.paddedCount)*model.InstanceSize)
	if err != nil {
		return nil, fmt.Errorf("read back instances: %w", err)
	}
	return model.UnmarshalInstances(data), nil
}

// ReadBackCells reads the whole Cells buffer back to the CPU.
func (m *Manager) ReadBackCells() ([]model.CellIndex, error) {
	buf := m.providers[3].Buffer(0)
	if buf == nil {
		return nil, fmt.Errorf("buffers: cells buffer not initialized")
	}
	data, err := m.dev.ReadBuffer(buf, 0, uint64(m.totalCells)*model.CellIndexSize)
	if err != nil {
		return nil, fmt.Errorf("read back cells: %w", err)
	}
	return model.UnmarshalCellIndices(data), nil
}

// ReseedInstance overwrites a single instance's position and velocity via a
// targeted write at its current slot in the instances array — not the
// results array, since the next sub-step's Assign pass reads instances, not
// results. idx is the instance's current slot in the (possibly reordered)
// Instances buffer, which the caller must have located via a prior
// ReadBackInstances scan for the matching stable id.
func (m *Manager) ReseedInstance(idx uint32, position, velocity [3]float32) error {
	if idx >= m.paddedCount {
		return fmt.Errorf("buffers: reseed index %d out of range [0, %d)", idx, m.paddedCount)
	}
	current, err := m.instanceAt(idx)
	if err != nil {
		return err
	}
	current.Position = position
	current.Velocity = velocity

	offset := uint64(idx) * model.InstanceSize
	m.dev.WriteBuffers([]bindgroup.BufferWrite{
		{Provider: m.providers[1], Binding: 0, Offset: offset, Data: current.Marshal()},
	})
	return nil
}

func (m *Manager) instanceAt(idx uint32) (model.Instance, error) {
	buf := m.providers[1].Buffer(0)
	if buf == nil {
		return model.Instance{}, fmt.Errorf("buffers: instances buffer not initialized")
	}
	data, err := m.dev.ReadBuffer(buf, uint64(idx)*model.InstanceSize, model.InstanceSize)
	if err != nil {
		return model.Instance{}, err
	}
	return model.UnmarshalInstance(data), nil
}

// Release tears down all five buffers and bind group providers.
func (m *Manager) Release() {
	for _, p := range m.providers {
		p.Release()
	}
}
