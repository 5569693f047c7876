package scheduling

import (
	"github.com/metisproject/metis/internal/policy"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/encoding"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// PolicyScheduler adapts a trained AllocationPolicy to the Scheduler interface
// so it can be evaluated with the same episode loop as the baselines. Tasks are
// taken from the head of the queue in order; for each one the policy picks the
// best remaining idle node.
type PolicyScheduler struct {
	policy *policy.AllocationPolicy
}

// NewPolicyScheduler wraps a trained policy for evaluation.
func NewPolicyScheduler(p *policy.AllocationPolicy) *PolicyScheduler {
	return &PolicyScheduler{policy: p}
}

func (s *PolicyScheduler) Schedule(idleNodes []int, queue []*workload.Task, state *cluster.State, now float64) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(idleNodes))
	candidates := append([]int(nil), idleNodes...)
	stateVec := encoding.EncodeClusterState(state, now)
	for _, task := range queue {
		if len(candidates) == 0 {
			break
		}
		taskEmbedding, err := encoding.EncodeTask(task)
		if err != nil {
			return nil, err
		}
		nodeId, err := s.policy.SelectNode(stateVec, taskEmbedding, candidates)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, Assignment{NodeId: nodeId, Task: task})
		candidates = removeNode(candidates, nodeId)
	}
	return assignments, nil
}

func removeNode(candidates []int, nodeId int) []int {
	for i, c := range candidates {
		if c == nodeId {
			return append(candidates[:i], candidates[i+1:]...)
		}
	}
	return candidates
}
