package scheduling

import (
	"math"
	"math/rand"
	"sort"

	metisslices "github.com/metisproject/metis/internal/common/slices"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// RandomScheduler assigns queued tasks to idle nodes uniformly at random.
type RandomScheduler struct {
	rand *rand.Rand
}

func (s *RandomScheduler) Schedule(idleNodes []int, queue []*workload.Task, _ *cluster.State, _ float64) ([]Assignment, error) {
	if len(queue) == 0 || len(idleNodes) == 0 {
		return nil, nil
	}
	shuffled := append([]*workload.Task(nil), queue...)
	metisslices.Shuffle(s.rand, shuffled)

	rv := make([]Assignment, 0, len(idleNodes))
	for i, nodeId := range idleNodes {
		if i >= len(shuffled) {
			break
		}
		rv = append(rv, Assignment{NodeId: nodeId, Task: shuffled[i]})
	}
	return rv, nil
}

// GreedyScheduler implements per-node shortest processing time: each idle node,
// in id order, takes the remaining task with the shortest predicted duration on
// that node.
type GreedyScheduler struct {
	model *duration.Model
}

func (s *GreedyScheduler) Schedule(idleNodes []int, queue []*workload.Task, state *cluster.State, _ float64) ([]Assignment, error) {
	if len(queue) == 0 || len(idleNodes) == 0 {
		return nil, nil
	}
	available := append([]*workload.Task(nil), queue...)
	rv := make([]Assignment, 0, len(idleNodes))
	for _, nodeId := range idleNodes {
		if len(available) == 0 {
			break
		}
		bestIdx := -1
		bestDuration := math.Inf(1)
		for i, task := range available {
			d, err := s.model.Expected(task, state.Profile(nodeId))
			if err != nil {
				return nil, err
			}
			if d < bestDuration {
				bestDuration = d
				bestIdx = i
			}
		}
		rv = append(rv, Assignment{NodeId: nodeId, Task: available[bestIdx]})
		available = append(available[:bestIdx], available[bestIdx+1:]...)
	}
	return rv, nil
}

// ShortestJobFirstScheduler orders the queue globally by mean predicted duration
// across all nodes and hands out the shortest jobs first.
type ShortestJobFirstScheduler struct {
	model *duration.Model
}

func (s *ShortestJobFirstScheduler) Schedule(idleNodes []int, queue []*workload.Task, state *cluster.State, _ float64) ([]Assignment, error) {
	if len(queue) == 0 || len(idleNodes) == 0 {
		return nil, nil
	}
	type scoredTask struct {
		task *workload.Task
		mean float64
	}
	scored := make([]scoredTask, len(queue))
	for i, task := range queue {
		durations := make([]float64, state.NumNodes())
		for nodeId := 0; nodeId < state.NumNodes(); nodeId++ {
			d, err := s.model.Expected(task, state.Profile(nodeId))
			if err != nil {
				return nil, err
			}
			durations[nodeId] = d
		}
		scored[i] = scoredTask{task: task, mean: metisslices.Mean(durations)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].mean < scored[j].mean })

	rv := make([]Assignment, 0, len(idleNodes))
	for i, nodeId := range idleNodes {
		if i >= len(scored) {
			break
		}
		rv = append(rv, Assignment{NodeId: nodeId, Task: scored[i].task})
	}
	return rv, nil
}

// OptimalMatchingScheduler solves a one-shot assignment minimizing the total
// predicted completion time over all (task, idle node) pairs via min-cost
// bipartite matching. It is an offline reference and not real-time schedulable
// in general.
type OptimalMatchingScheduler struct {
	model *duration.Model
}

func (s *OptimalMatchingScheduler) Schedule(idleNodes []int, queue []*workload.Task, state *cluster.State, _ float64) ([]Assignment, error) {
	if len(queue) == 0 || len(idleNodes) == 0 {
		return nil, nil
	}
	// Pad the cost matrix to square with zero-cost dummy rows/columns: dummy
	// tasks leave nodes idle, dummy nodes leave the most expensive tasks queued.
	n := len(queue)
	if len(idleNodes) > n {
		n = len(idleNodes)
	}
	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		if i >= len(queue) {
			continue
		}
		for j, nodeId := range idleNodes {
			d, err := s.model.Expected(queue[i], state.Profile(nodeId))
			if err != nil {
				return nil, err
			}
			cost[i][j] = d
		}
	}

	matchedColByRow := solveAssignment(cost)
	rv := make([]Assignment, 0, len(idleNodes))
	for taskIdx, col := range matchedColByRow {
		if taskIdx >= len(queue) || col >= len(idleNodes) {
			continue
		}
		rv = append(rv, Assignment{NodeId: idleNodes[col], Task: queue[taskIdx]})
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].NodeId < rv[j].NodeId })
	return rv, nil
}

// solveAssignment computes a minimum-cost perfect matching on a square cost
// matrix using the Hungarian algorithm with potentials, O(n^3). Returns the
// matched column for each row.
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	// matchedRowByCol[j] is the row matched to column j; 0 means unmatched.
	matchedRowByCol := make([]int, n+1)
	way := make([]int, n+1)
	for i := 1; i <= n; i++ {
		matchedRowByCol[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := matchedRowByCol[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[matchedRowByCol[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if matchedRowByCol[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			matchedRowByCol[j0] = matchedRowByCol[j1]
			j0 = j1
		}
	}
	rv := make([]int, n)
	for j := 1; j <= n; j++ {
		if matchedRowByCol[j] > 0 {
			rv[matchedRowByCol[j]-1] = j - 1
		}
	}
	return rv
}
