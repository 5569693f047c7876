// Package simulator contains the discrete-event engine that executes assignment
// decisions against a simulated heterogeneous cluster. Time advances by jumping
// directly to the next completion event; total event ordering is enforced by the
// (completion time, node id) key, so identical seeds, task sequences and decisions
// produce bit-identical runs.
package simulator

import (
	"container/heap"

	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/encoding"
	"github.com/metisproject/metis/internal/simulation/sink"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// AssignmentDecision is a committed (task, node) assignment.
type AssignmentDecision struct {
	Task *workload.Task
	// Node the task was assigned to.
	NodeId int
	// Sampled execution duration.
	Duration float64
	// Simulated time at which the assignment was made.
	DecisionTime float64
}

// Simulator owns the cluster runtime state and the pending-completion event log.
// It is single-threaded; each parallel episode runs its own instance.
type Simulator struct {
	state         *cluster.State
	durationModel *duration.Model
	// Current simulated time; monotonically non-decreasing.
	time float64
	// Pending completion events ordered by (time, node id).
	eventLog EventLog
	// Sum over completed tasks of their completion times; drives per-step rewards.
	totalCompletionTime float64
	tasksCompleted      int
	sink                sink.Sink
}

func New(clusterSpec *cluster.ClusterSpec, durationModel *duration.Model, s sink.Sink) (*Simulator, error) {
	if err := clusterSpec.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		s = sink.NullSink{}
	}
	return &Simulator{
		state:         cluster.NewState(clusterSpec.Nodes),
		durationModel: durationModel,
		eventLog:      make(EventLog, 0, len(clusterSpec.Nodes)),
		sink:          s,
	}, nil
}

// Time returns the current simulated time.
func (s *Simulator) Time() float64 {
	return s.time
}

// State returns the cluster runtime state. Callers must not mutate it.
func (s *Simulator) State() *cluster.State {
	return s.state
}

// NumNodes returns the cluster size.
func (s *Simulator) NumNodes() int {
	return s.state.NumNodes()
}

// IdleNodes returns the ids of all currently idle nodes in ascending order.
func (s *Simulator) IdleNodes() []int {
	return s.state.IdleNodes()
}

// PendingEvents returns the number of outstanding completion events.
func (s *Simulator) PendingEvents() int {
	return len(s.eventLog)
}

// TasksCompleted returns the number of completions so far.
func (s *Simulator) TasksCompleted() int {
	return s.tasksCompleted
}

// TotalCompletionTime returns the sum of completion times over all completed tasks.
func (s *Simulator) TotalCompletionTime() float64 {
	return s.totalCompletionTime
}

// Assign commits the task to the node: samples a duration, marks the node busy and
// enqueues the completion event. Fails with ErrNodeBusy if the node is not idle.
func (s *Simulator) Assign(task *workload.Task, nodeId int) (*AssignmentDecision, error) {
	if nodeId < 0 || nodeId >= s.state.NumNodes() {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "nodeId",
			Value:   nodeId,
			Message: "outside cluster",
		})
	}
	if !s.state.IsIdle(nodeId) {
		return nil, errors.WithStack(&metiserrors.ErrNodeBusy{
			NodeId:        nodeId,
			RemainingTime: s.state.RemainingTime(nodeId, s.time),
		})
	}
	d, err := s.durationModel.Sample(task, s.state.Profile(nodeId))
	if err != nil {
		return nil, err
	}
	decision := &AssignmentDecision{
		Task:         task.WithSubmissionTime(s.time),
		NodeId:       nodeId,
		Duration:     d,
		DecisionTime: s.time,
	}
	s.state.SetBusy(nodeId, decision.Task, s.time+d)
	heap.Push(&s.eventLog, &Event{
		time:     s.time + d,
		nodeId:   nodeId,
		decision: decision,
	})
	return decision, nil
}

// Advance pops the earliest completion event, advances simulated time to its
// timestamp and returns the node to idle. Fails with ErrNoPendingEvents when the
// event log is drained, signalling clean episode termination.
func (s *Simulator) Advance() (*AssignmentDecision, error) {
	if len(s.eventLog) == 0 {
		return nil, errors.WithStack(&metiserrors.ErrNoPendingEvents{})
	}
	event := heap.Pop(&s.eventLog).(*Event)
	s.time = event.time
	s.state.SetIdle(event.nodeId)
	s.tasksCompleted++
	s.totalCompletionTime += event.time

	decision := event.decision
	if err := s.sink.OnTaskCompleted(sink.TaskRunRow{
		NodeId:      int32(decision.NodeId),
		TaskType:    decision.Task.Type.String(),
		Parameter:   decision.Task.Parameter,
		AssignedAt:  decision.DecisionTime,
		CompletedAt: event.time,
		Duration:    decision.Duration,
	}); err != nil {
		return nil, err
	}
	return decision, nil
}

// PeekState returns a snapshot of the encoded cluster state. Remaining times are
// relative to the current simulated time.
func (s *Simulator) PeekState() []float64 {
	return encoding.EncodeClusterState(s.state, s.time)
}

// Reset returns the simulator to its initial state: all nodes idle, time zero,
// no pending events.
func (s *Simulator) Reset() {
	s.state.Reset()
	s.time = 0
	s.eventLog = s.eventLog[:0]
	s.totalCompletionTime = 0
	s.tasksCompleted = 0
}
