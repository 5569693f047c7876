package duration

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/workload"
)

func referenceNode() *cluster.NodeProfile {
	return &cluster.NodeProfile{Id: 0, Architecture: cluster.X86, CpuCapacity: 1, MemBandwidth: 1, IoBandwidth: 1}
}

func mustTask(t *testing.T, typ workload.Type, parameter float64) *workload.Task {
	task, err := workload.Submit(typ, parameter)
	require.NoError(t, err)
	return task
}

func TestExpectedMatchesBaseCurves(t *testing.T) {
	model, err := NewModel(rand.New(rand.NewSource(0)), 0)
	require.NoError(t, err)
	node := referenceNode()

	tests := map[string]struct {
		task     *workload.Task
		expected float64
	}{
		"matmul":  {task: mustTask(t, workload.MatMul, 1000), expected: 1.0},
		"primes":  {task: mustTask(t, workload.PrimeCalc, 1000000), expected: 2.0},
		"sort":    {task: mustTask(t, workload.Sort, 1000000), expected: 1.5},
		"file io": {task: mustTask(t, workload.FileIO, 100000), expected: 0.8},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			actual, err := model.Expected(tc.task, node)
			require.NoError(t, err)
			assert.InDelta(t, tc.expected, actual, 1e-9)
		})
	}
}

func TestExpectedScalesWithRelevantCapacity(t *testing.T) {
	model, err := NewModel(rand.New(rand.NewSource(0)), 0)
	require.NoError(t, err)

	fastCpu := &cluster.NodeProfile{Id: 0, Architecture: cluster.X86, CpuCapacity: 2, MemBandwidth: 1, IoBandwidth: 1}
	slowIo := &cluster.NodeProfile{Id: 1, Architecture: cluster.ARM, CpuCapacity: 1, MemBandwidth: 1, IoBandwidth: 0.5}

	matmul := mustTask(t, workload.MatMul, 1000)
	onRef, err := model.Expected(matmul, referenceNode())
	require.NoError(t, err)
	onFast, err := model.Expected(matmul, fastCpu)
	require.NoError(t, err)
	assert.InDelta(t, onRef/2, onFast, 1e-9)

	// CPU capacity must not affect an I/O-bound task.
	fileio := mustTask(t, workload.FileIO, 200000)
	onRefIo, err := model.Expected(fileio, referenceNode())
	require.NoError(t, err)
	onFastCpu, err := model.Expected(fileio, fastCpu)
	require.NoError(t, err)
	onSlowIo, err := model.Expected(fileio, slowIo)
	require.NoError(t, err)
	assert.Equal(t, onRefIo, onFastCpu)
	assert.InDelta(t, 2*onRefIo, onSlowIo, 1e-9)
}

func TestSampleIsAlwaysPositive(t *testing.T) {
	model, err := NewModel(rand.New(rand.NewSource(123)), 0.5)
	require.NoError(t, err)
	node := referenceNode()
	task := mustTask(t, workload.PrimeCalc, 240000)
	for i := 0; i < 10000; i++ {
		d, err := model.Sample(task, node)
		require.NoError(t, err)
		assert.Greater(t, d, 0.0)
	}
}

func TestSampleNoiseIsBounded(t *testing.T) {
	model, err := NewModel(rand.New(rand.NewSource(5)), 2.0)
	require.NoError(t, err)
	node := referenceNode()
	task := mustTask(t, workload.Sort, 1000000)
	expected, err := model.Expected(task, node)
	require.NoError(t, err)
	for i := 0; i < 10000; i++ {
		d, err := model.Sample(task, node)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, expected/4)
		assert.LessOrEqual(t, d, expected*4)
	}
}

func TestSampleIsDeterministicForFixedSeed(t *testing.T) {
	first, err := NewModel(rand.New(rand.NewSource(99)), 0.3)
	require.NoError(t, err)
	second, err := NewModel(rand.New(rand.NewSource(99)), 0.3)
	require.NoError(t, err)
	node := referenceNode()
	task := mustTask(t, workload.MatMul, 2000)
	for i := 0; i < 100; i++ {
		a, err := first.Sample(task, node)
		require.NoError(t, err)
		b, err := second.Sample(task, node)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestNewModelRequiresNoiseSource(t *testing.T) {
	_, err := NewModel(nil, 0.1)
	assert.Error(t, err)
	_, err = NewModel(rand.New(rand.NewSource(0)), -0.1)
	assert.Error(t, err)
}
