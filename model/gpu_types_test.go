package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParametersRoundTrip(t *testing.T) {
	p := Parameters{TimeStep: 1.0 / 240.0, Boundary: 10, GridSize: 1.5}
	got := UnmarshalParameters(p.Marshal())
	assert.Equal(t, p, got)
}

func TestInstanceRoundTrip(t *testing.T) {
	in := Instance{
		Id:        7,
		Radius:    0.33,
		CellIndex: 42,
		Position:  [3]float32{1, -2, 3.5},
		Velocity:  [3]float32{-0.1, 0.2, -0.3},
	}
	got := UnmarshalInstance(in.Marshal())
	assert.Equal(t, in.Id, got.Id)
	assert.Equal(t, in.Radius, got.Radius)
	assert.Equal(t, in.CellIndex, got.CellIndex)
	assert.Equal(t, in.Position, got.Position)
	assert.Equal(t, in.Velocity, got.Velocity)
}

func TestInstancePaddingSentinelRoundTrips(t *testing.T) {
	in := Instance{CellIndex: PaddedCellIndex}
	got := UnmarshalInstance(in.Marshal())
	assert.Equal(t, uint32(PaddedCellIndex), got.CellIndex)
}

func TestUnmarshalInstances(t *testing.T) {
	instances := []Instance{
		{Id: 0, Radius: 1},
		{Id: 1, Radius: 2},
		{Id: 2, CellIndex: PaddedCellIndex},
	}
	buf := make([]byte, 0, len(instances)*InstanceSize)
	for i := range instances {
		buf = append(buf, instances[i].Marshal()...)
	}

	got := UnmarshalInstances(buf)
	assert.Len(t, got, 3)
	for i := range instances {
		assert.Equal(t, instances[i].Id, got[i].Id)
		assert.Equal(t, instances[i].CellIndex, got[i].CellIndex)
	}
}

func TestResultRoundTrip(t *testing.T) {
	r := Result{Position: [3]float32{1, 2, 3}, Velocity: [3]float32{4, 5, 6}}
	got := UnmarshalResult(r.Marshal())
	assert.Equal(t, r.Position, got.Position)
	assert.Equal(t, r.Velocity, got.Velocity)
}

func TestUnmarshalResults(t *testing.T) {
	results := []Result{
		{Position: [3]float32{1, 0, 0}},
		{Position: [3]float32{0, 1, 0}},
	}
	buf := make([]byte, 0, len(results)*ResultSize)
	for i := range results {
		buf = append(buf, results[i].Marshal()...)
	}

	got := UnmarshalResults(buf)
	assert.Len(t, got, 2)
	assert.Equal(t, results[0].Position, got[0].Position)
	assert.Equal(t, results[1].Position, got[1].Position)
}

func TestSortParamsMarshal(t *testing.T) {
	sp := SortParams{J: 4, K: 8}
	buf := sp.Marshal()
	assert.Len(t, buf, SortParamsSize)
	assert.Equal(t, uint32(4), le32(buf[0:4]))
	assert.Equal(t, uint32(8), le32(buf[4:8]))
}

func TestCellIndexRoundTrip(t *testing.T) {
	c := CellIndex{Start: 3, End: 9}
	got := UnmarshalCellIndex(c.Marshal())
	assert.Equal(t, c, got)
}

func TestUnmarshalCellIndices(t *testing.T) {
	cells := []CellIndex{{Start: 0, End: 2}, {Start: 2, End: 2}, {Start: 2, End: 5}}
	buf := make([]byte, 0, len(cells)*CellIndexSize)
	for i := range cells {
		buf = append(buf, cells[i].Marshal()...)
	}

	got := UnmarshalCellIndices(buf)
	assert.Equal(t, cells, got)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
