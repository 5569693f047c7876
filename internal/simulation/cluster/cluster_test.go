package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/workload"
)

func TestClusterSpecFromFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nodes:
  - architecture: arm
    cpuCapacity: 2.0
  - memBandwidth: 3.0
`), 0o644))

	spec, err := ClusterSpecFromFilePath(path)
	require.NoError(t, err)
	assert.Equal(t, "small", spec.Name)
	require.Equal(t, 2, len(spec.Nodes))

	// Ids are positional; unset fields take defaults.
	assert.Equal(t, 0, spec.Nodes[0].Id)
	assert.Equal(t, ARM, spec.Nodes[0].Architecture)
	assert.Equal(t, 2.0, spec.Nodes[0].CpuCapacity)
	assert.Equal(t, 1.0, spec.Nodes[0].MemBandwidth)

	assert.Equal(t, 1, spec.Nodes[1].Id)
	assert.Equal(t, X86, spec.Nodes[1].Architecture)
	assert.Equal(t, 1.0, spec.Nodes[1].CpuCapacity)
	assert.Equal(t, 3.0, spec.Nodes[1].MemBandwidth)
}

func TestClusterSpecValidate(t *testing.T) {
	tests := map[string]*ClusterSpec{
		"empty cluster": {Name: "empty"},
		"bad architecture": {Name: "bad", Nodes: []*NodeProfile{
			{Architecture: "sparc", CpuCapacity: 1, MemBandwidth: 1, IoBandwidth: 1},
		}},
		"zero capacity": {Name: "zero", Nodes: []*NodeProfile{
			{Architecture: X86, CpuCapacity: 0, MemBandwidth: 1, IoBandwidth: 1},
		}},
	}
	for name, spec := range tests {
		t.Run(name, func(t *testing.T) {
			err := spec.Validate()
			var invalid *metiserrors.ErrInvalidArgument
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestStateTransitions(t *testing.T) {
	profiles := []*NodeProfile{
		{Id: 0, Architecture: X86, CpuCapacity: 1, MemBandwidth: 1, IoBandwidth: 1},
		{Id: 1, Architecture: ARM, CpuCapacity: 2, MemBandwidth: 1, IoBandwidth: 1},
	}
	state := NewState(profiles)
	assert.Equal(t, []int{0, 1}, state.IdleNodes())

	task, err := workload.Submit(workload.MatMul, 1000)
	require.NoError(t, err)
	state.SetBusy(1, task, 10.0)

	assert.True(t, state.IsIdle(0))
	assert.False(t, state.IsIdle(1))
	assert.Equal(t, []int{0}, state.IdleNodes())
	assert.Equal(t, task, state.Current(1))
	assert.Equal(t, 6.0, state.RemainingTime(1, 4.0))
	assert.Equal(t, 0.0, state.RemainingTime(0, 4.0))

	state.SetIdle(1)
	assert.True(t, state.IsIdle(1))
	assert.Nil(t, state.Current(1))

	state.SetBusy(0, task, 3.0)
	state.Reset()
	assert.Equal(t, []int{0, 1}, state.IdleNodes())
}
