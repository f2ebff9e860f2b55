// Package model defines the GPU-aligned wire types exchanged between the host
// and the compute stages: Parameters, Instance, Result, SortParams, and
// CellIndex. Layouts mirror the WGSL struct definitions embedded alongside
// them byte-for-byte (std430-like, 16-byte aligned vec3s) so that Marshal
// output can be uploaded directly into a storage buffer and Unmarshal can
// decode a read-back byte range without any intermediate struct tags.
package model

import (
	_ "embed"
	"encoding/binary"
	"math"
)

// ParametersSource is the canonical WGSL definition of the Parameters struct
// shared by every compute stage. Matches Parameters layout exactly.
//
//go:embed assets/parameters.wgsl
var ParametersSource string

// Parameters holds the scalar simulation configuration read by every stage.
// Size: 16 bytes (12 bytes of data padded to a 16-byte struct stride).
type Parameters struct {
	TimeStep float32 // offset  0: Δt for one sub-step
	Boundary float32 // offset  4: half-extent of the cube container
	GridSize float32 // offset  8: uniform grid cell side length
	// offset 12: 4 bytes of tail padding to a 16-byte stride
}

// ParametersSize is the byte size of a Parameters record on the GPU.
const ParametersSize = 16

// Marshal serializes Parameters into a 16-byte buffer ready for GPU upload.
func (p *Parameters) Marshal() []byte {
	buf := make([]byte, ParametersSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.TimeStep))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Boundary))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(p.GridSize))
	return buf
}

// UnmarshalParameters decodes a 16-byte GPU buffer into a Parameters value.
func UnmarshalParameters(buf []byte) Parameters {
	return Parameters{
		TimeStep: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		Boundary: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		GridSize: math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
	}
}

// InstanceSource is the canonical WGSL definition of the Instance struct.
// Matches Instance layout exactly (48 bytes, std430 aligned).
//
//go:embed assets/instance.wgsl
var InstanceSource string

// Instance is one sphere. Id is a stable 32-bit index that survives sorting
// and addresses this sphere's slot in the Result array; CellIndex is
// recomputed by the Grid Assignment stage every sub-step; Position and
// Velocity are mutated only by the Integration stage (and swapped wholesale,
// along with every other field, by the Bitonic Sort stage).
// Size: 48 bytes (std430 aligned, vec3f fields padded to 16 bytes each).
type Instance struct {
	Id        uint32     // offset  0: stable identity, unchanged by sorting
	Radius    float32    // offset  4: sphere radius
	CellIndex uint32     // offset  8: flattened grid cell index, recomputed each sub-step
	_         uint32     // offset 12: padding
	Position  [3]float32 // offset 16: world-space center
	_         uint32     // offset 28: padding
	Velocity  [3]float32 // offset 32: world-space velocity
	_         uint32     // offset 44: padding
}

// InstanceSize is the byte size of an Instance record on the GPU.
const InstanceSize = 48

// PaddedCellIndex is the sentinel cell_index assigned to padding instances
// when the live instance count is not a power of two (spec §4.3). It sorts
// to the tail of the array under the ascending/descending Batcher network.
const PaddedCellIndex = 0xFFFFFFFF

// Marshal serializes Instance into a 48-byte buffer ready for GPU upload.
func (in *Instance) Marshal() []byte {
	buf := make([]byte, InstanceSize)
	binary.LittleEndian.PutUint32(buf[0:4], in.Id)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(in.Radius))
	binary.LittleEndian.PutUint32(buf[8:12], in.CellIndex)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(in.Position[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(in.Position[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(in.Position[2]))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(in.Velocity[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(in.Velocity[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(in.Velocity[2]))
	return buf
}

// UnmarshalInstance decodes a 48-byte GPU buffer region into an Instance value.
func UnmarshalInstance(buf []byte) Instance {
	return Instance{
		Id:        binary.LittleEndian.Uint32(buf[0:4]),
		Radius:    math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		CellIndex: binary.LittleEndian.Uint32(buf[8:12]),
		Position: [3]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28])),
		},
		Velocity: [3]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(buf[32:36])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[36:40])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[40:44])),
		},
	}
}

// UnmarshalInstances decodes a whole read-back instance buffer into a slice,
// one Instance per InstanceSize-byte stride.
func UnmarshalInstances(buf []byte) []Instance {
	n := len(buf) / InstanceSize
	out := make([]Instance, n)
	for i := 0; i < n; i++ {
		out[i] = UnmarshalInstance(buf[i*InstanceSize : (i+1)*InstanceSize])
	}
	return out
}

// ResultSource is the canonical WGSL definition of the Result struct.
// Matches Result layout exactly (32 bytes, std430 aligned).
//
//go:embed assets/result.wgsl
var ResultSource string

// Result is the integration output for a given stable Instance.Id, scattered
// by the Integration stage so any external consumer can index a sphere by
// persistent identity even though the Instance array is continually
// reshuffled by the sort. Size: 32 bytes.
type Result struct {
	Position [3]float32 // offset  0
	_        float32    // offset 12: padding
	Velocity [3]float32 // offset 16
	_        float32    // offset 28: padding
}

// ResultSize is the byte size of a Result record on the GPU.
const ResultSize = 32

// Marshal serializes Result into a 32-byte buffer ready for GPU upload.
func (r *Result) Marshal() []byte {
	buf := make([]byte, ResultSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(r.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(r.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(r.Position[2]))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(r.Velocity[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(r.Velocity[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(r.Velocity[2]))
	return buf
}

// UnmarshalResult decodes a 32-byte GPU buffer region into a Result value.
func UnmarshalResult(buf []byte) Result {
	return Result{
		Position: [3]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
		},
		Velocity: [3]float32{
			math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[20:24])),
			math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28])),
		},
	}
}

// UnmarshalResults decodes a whole read-back results buffer into a slice,
// one Result per ResultSize-byte stride, indexed by stable Instance.Id.
func UnmarshalResults(buf []byte) []Result {
	n := len(buf) / ResultSize
	out := make([]Result, n)
	for i := 0; i < n; i++ {
		out[i] = UnmarshalResult(buf[i*ResultSize : (i+1)*ResultSize])
	}
	return out
}

// SortParamsSource is the canonical WGSL definition of the SortParams struct.
// Matches SortParams layout exactly (8 bytes).
//
//go:embed assets/sort_params.wgsl
var SortParamsSource string

// SortParams carries the current outer (K) and inner (J) stride of the
// bitonic network. Rewritten by the host before every sort dispatch.
type SortParams struct {
	J uint32 // offset 0
	K uint32 // offset 4
}

// SortParamsSize is the byte size of a SortParams record on the GPU.
const SortParamsSize = 8

// Marshal serializes SortParams into an 8-byte buffer ready for GPU upload.
func (s *SortParams) Marshal() []byte {
	buf := make([]byte, SortParamsSize)
	binary.LittleEndian.PutUint32(buf[0:4], s.J)
	binary.LittleEndian.PutUint32(buf[4:8], s.K)
	return buf
}

// CellIndexSource is the canonical WGSL definition of the CellIndex struct.
// Matches CellIndex layout exactly (8 bytes).
//
//go:embed assets/cell_index.wgsl
var CellIndexSource string

// CellIndex is a per-cell half-open range [Start, End) into the sorted
// instance array. Start == End means the cell is empty.
type CellIndex struct {
	Start uint32 // offset 0
	End   uint32 // offset 4
}

// CellIndexSize is the byte size of a CellIndex record on the GPU.
const CellIndexSize = 8

// Marshal serializes CellIndex into an 8-byte buffer ready for GPU upload.
func (c *CellIndex) Marshal() []byte {
	buf := make([]byte, CellIndexSize)
	binary.LittleEndian.PutUint32(buf[0:4], c.Start)
	binary.LittleEndian.PutUint32(buf[4:8], c.End)
	return buf
}

// UnmarshalCellIndex decodes an 8-byte GPU buffer region into a CellIndex value.
func UnmarshalCellIndex(buf []byte) CellIndex {
	return CellIndex{
		Start: binary.LittleEndian.Uint32(buf[0:4]),
		End:   binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// UnmarshalCellIndices decodes a whole read-back cell table into a slice,
// one CellIndex per CellIndexSize-byte stride.
func UnmarshalCellIndices(buf []byte) []CellIndex {
	n := len(buf) / CellIndexSize
	out := make([]CellIndex, n)
	for i := 0; i < n; i++ {
		out[i] = UnmarshalCellIndex(buf[i*CellIndexSize : (i+1)*CellIndexSize])
	}
	return out
}
