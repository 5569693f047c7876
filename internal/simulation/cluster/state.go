package cluster

import (
	"github.com/metisproject/metis/internal/simulation/workload"
)

// State tracks the mutable occupancy of every node in the cluster.
// It is owned by the simulator: mutations happen only on assignment and on
// completion events.
type State struct {
	profiles []*NodeProfile
	// Task currently executing on each node; nil when idle.
	current []*workload.Task
	// Absolute simulated completion time of the running task; meaningful only while busy.
	completionTime []float64
}

func NewState(profiles []*NodeProfile) *State {
	return &State{
		profiles:       profiles,
		current:        make([]*workload.Task, len(profiles)),
		completionTime: make([]float64, len(profiles)),
	}
}

func (s *State) NumNodes() int {
	return len(s.profiles)
}

func (s *State) Profiles() []*NodeProfile {
	return s.profiles
}

func (s *State) Profile(nodeId int) *NodeProfile {
	return s.profiles[nodeId]
}

// Current returns the task running on the node, or nil if the node is idle.
func (s *State) Current(nodeId int) *workload.Task {
	return s.current[nodeId]
}

func (s *State) IsIdle(nodeId int) bool {
	return s.current[nodeId] == nil
}

// IdleNodes returns the ids of all idle nodes in ascending order.
func (s *State) IdleNodes() []int {
	rv := make([]int, 0, len(s.profiles))
	for id := range s.profiles {
		if s.IsIdle(id) {
			rv = append(rv, id)
		}
	}
	return rv
}

// RemainingTime returns the wall-clock-relative time left on the node's current
// task at simulated time now, or zero if the node is idle.
func (s *State) RemainingTime(nodeId int, now float64) float64 {
	if s.IsIdle(nodeId) {
		return 0
	}
	remaining := s.completionTime[nodeId] - now
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetBusy records that task runs on the node until completionTime.
func (s *State) SetBusy(nodeId int, task *workload.Task, completionTime float64) {
	s.current[nodeId] = task
	s.completionTime[nodeId] = completionTime
}

// SetIdle marks the node idle.
func (s *State) SetIdle(nodeId int) {
	s.current[nodeId] = nil
	s.completionTime[nodeId] = 0
}

// Reset returns every node to idle.
func (s *State) Reset() {
	for id := range s.profiles {
		s.SetIdle(id)
	}
}
