package simulator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/encoding"
	"github.com/metisproject/metis/internal/simulation/workload"
)

func testClusterSpec(n int) *cluster.ClusterSpec {
	nodes := make([]*cluster.NodeProfile, n)
	for i := range nodes {
		nodes[i] = &cluster.NodeProfile{
			Id:           i,
			Architecture: cluster.X86,
			CpuCapacity:  1 + 0.1*float64(i),
			MemBandwidth: 1,
			IoBandwidth:  1,
		}
	}
	return &cluster.ClusterSpec{Name: "test", Nodes: nodes}
}

func newTestSimulator(t *testing.T, numNodes int, seed int64, sigma float64) *Simulator {
	model, err := duration.NewModel(rand.New(rand.NewSource(seed)), sigma)
	require.NoError(t, err)
	s, err := New(testClusterSpec(numNodes), model, nil)
	require.NoError(t, err)
	return s
}

func mustTask(t *testing.T, typ workload.Type, parameter float64) *workload.Task {
	task, err := workload.Submit(typ, parameter)
	require.NoError(t, err)
	return task
}

func TestAssignOnBusyNodeFails(t *testing.T) {
	s := newTestSimulator(t, 2, 0, 0)
	_, err := s.Assign(mustTask(t, workload.Sort, 1000000), 0)
	require.NoError(t, err)

	_, err = s.Assign(mustTask(t, workload.Sort, 1000000), 0)
	require.Error(t, err)
	var busyErr *metiserrors.ErrNodeBusy
	require.ErrorAs(t, err, &busyErr)
	assert.Equal(t, 0, busyErr.NodeId)
	assert.Greater(t, busyErr.RemainingTime, 0.0)
}

func TestAssignThenAdvanceReturnsNodeToIdle(t *testing.T) {
	s := newTestSimulator(t, 1, 0, 0)
	require.True(t, s.State().IsIdle(0))

	_, err := s.Assign(mustTask(t, workload.MatMul, 1000), 0)
	require.NoError(t, err)
	assert.False(t, s.State().IsIdle(0))

	decision, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, 0, decision.NodeId)
	assert.True(t, s.State().IsIdle(0))
}

func TestAssignRejectsNodeOutsideCluster(t *testing.T) {
	s := newTestSimulator(t, 2, 0, 0)
	_, err := s.Assign(mustTask(t, workload.MatMul, 1000), 2)
	assert.Error(t, err)
	_, err = s.Assign(mustTask(t, workload.MatMul, 1000), -1)
	assert.Error(t, err)
}

func TestAdvanceWithNoPendingEvents(t *testing.T) {
	s := newTestSimulator(t, 2, 0, 0)
	_, err := s.Advance()
	require.Error(t, err)
	var noEventsErr *metiserrors.ErrNoPendingEvents
	assert.ErrorAs(t, err, &noEventsErr)
}

func TestEventOrderingBreaksTiesByNodeId(t *testing.T) {
	// Zero noise and identical tasks on identical nodes give identical
	// completion times; the lower node id must complete first.
	model, err := duration.NewModel(rand.New(rand.NewSource(0)), 0)
	require.NoError(t, err)
	spec := &cluster.ClusterSpec{Name: "twins", Nodes: []*cluster.NodeProfile{
		{Id: 0, Architecture: cluster.X86, CpuCapacity: 1, MemBandwidth: 1, IoBandwidth: 1},
		{Id: 1, Architecture: cluster.X86, CpuCapacity: 1, MemBandwidth: 1, IoBandwidth: 1},
	}}
	s, err := New(spec, model, nil)
	require.NoError(t, err)

	_, err = s.Assign(mustTask(t, workload.PrimeCalc, 1000000), 1)
	require.NoError(t, err)
	_, err = s.Assign(mustTask(t, workload.PrimeCalc, 1000000), 0)
	require.NoError(t, err)

	first, err := s.Advance()
	require.NoError(t, err)
	second, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, 0, first.NodeId)
	assert.Equal(t, 1, second.NodeId)
}

func TestDeterminismAcrossRuns(t *testing.T) {
	run := func() ([]int, []float64) {
		s := newTestSimulator(t, 3, 42, 0.3)
		catalog, err := workload.NewCatalog(rand.New(rand.NewSource(7)), nil)
		require.NoError(t, err)
		tasks := catalog.SampleN(12)

		completedNodes := make([]int, 0, len(tasks))
		completionTimes := make([]float64, 0, len(tasks))
		for _, task := range tasks {
			idle := s.IdleNodes()
			if len(idle) == 0 {
				decision, err := s.Advance()
				require.NoError(t, err)
				completedNodes = append(completedNodes, decision.NodeId)
				completionTimes = append(completionTimes, s.Time())
				idle = s.IdleNodes()
			}
			_, err := s.Assign(task, idle[0])
			require.NoError(t, err)
		}
		for s.PendingEvents() > 0 {
			decision, err := s.Advance()
			require.NoError(t, err)
			completedNodes = append(completedNodes, decision.NodeId)
			completionTimes = append(completionTimes, s.Time())
		}
		return completedNodes, completionTimes
	}

	firstNodes, firstTimes := run()
	secondNodes, secondTimes := run()
	assert.Equal(t, firstNodes, secondNodes)
	assert.Equal(t, firstTimes, secondTimes)
}

func TestTimeIsMonotone(t *testing.T) {
	s := newTestSimulator(t, 2, 3, 0.5)
	for i := 0; i < 5; i++ {
		_, err := s.Assign(mustTask(t, workload.FileIO, 500000), s.IdleNodes()[0])
		require.NoError(t, err)
		if len(s.IdleNodes()) == 0 {
			prev := s.Time()
			_, err := s.Advance()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, s.Time(), prev)
		}
	}
}

func TestPeekStateReflectsRelativeRemainingTime(t *testing.T) {
	s := newTestSimulator(t, 2, 0, 0)
	_, err := s.Assign(mustTask(t, workload.Sort, 2000000), 0)
	require.NoError(t, err)
	_, err = s.Assign(mustTask(t, workload.Sort, 8000000), 1)
	require.NoError(t, err)

	before := s.PeekState()
	require.Len(t, before, 2*encoding.PerNodeFeatures)

	// After the first completion, node 1's remaining time must have shrunk.
	remainingBefore := before[2*encoding.PerNodeFeatures-1]
	_, err = s.Advance()
	require.NoError(t, err)
	after := s.PeekState()
	remainingAfter := after[2*encoding.PerNodeFeatures-1]
	assert.Less(t, remainingAfter, remainingBefore)
}

// Single node, one Sort task submitted at time zero: exactly one completion with
// positive duration, the node idle before and after.
func TestSingleNodeSingleTaskScenario(t *testing.T) {
	s := newTestSimulator(t, 1, 11, 0.2)
	require.True(t, s.State().IsIdle(0))

	_, err := s.Assign(mustTask(t, workload.Sort, 1000), 0)
	require.NoError(t, err)

	decision, err := s.Advance()
	require.NoError(t, err)
	assert.Greater(t, decision.Duration, 0.0)
	assert.Equal(t, 0, decision.NodeId)
	assert.True(t, s.State().IsIdle(0))
	assert.Equal(t, 1, s.TasksCompleted())

	_, err = s.Advance()
	var noEventsErr *metiserrors.ErrNoPendingEvents
	assert.ErrorAs(t, err, &noEventsErr)
}

func TestResetClearsStateAndTime(t *testing.T) {
	s := newTestSimulator(t, 2, 1, 0.1)
	_, err := s.Assign(mustTask(t, workload.MatMul, 2000), 0)
	require.NoError(t, err)
	_, err = s.Advance()
	require.NoError(t, err)
	require.Greater(t, s.Time(), 0.0)

	s.Reset()
	assert.Equal(t, 0.0, s.Time())
	assert.Equal(t, 0, s.PendingEvents())
	assert.Equal(t, 0, s.TasksCompleted())
	assert.Equal(t, []int{0, 1}, s.IdleNodes())
}
