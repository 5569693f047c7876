package scheduling

import (
	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/simulator"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// Result summarises one completed episode.
type Result struct {
	// Simulated time from first assignment to last completion.
	Makespan float64
	// Sum of completion times over all tasks.
	TotalCompletionTime float64
	TasksCompleted      int
}

// RunEpisode drains the queue through the simulator using the given scheduler:
// repeatedly assign tasks to idle nodes, then advance to the next completion.
// The simulator is reset first; the queue is not mutated.
func RunEpisode(sim *simulator.Simulator, scheduler Scheduler, queue []*workload.Task) (Result, error) {
	sim.Reset()
	pending := append([]*workload.Task(nil), queue...)

	for len(pending) > 0 || sim.PendingEvents() > 0 {
		if len(pending) > 0 {
			idle := sim.IdleNodes()
			assignments, err := scheduler.Schedule(idle, pending, sim.State(), sim.Time())
			if err != nil {
				return Result{}, err
			}
			for _, a := range assignments {
				if _, err := sim.Assign(a.Task, a.NodeId); err != nil {
					return Result{}, err
				}
				pending = removeTask(pending, a.Task)
			}
		}
		if sim.PendingEvents() == 0 {
			if len(pending) == 0 {
				break
			}
			// The scheduler made no progress with tasks left over.
			return Result{}, errors.WithStack(&metiserrors.ErrNoPendingEvents{})
		}
		if _, err := sim.Advance(); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Makespan:            sim.Time(),
		TotalCompletionTime: sim.TotalCompletionTime(),
		TasksCompleted:      sim.TasksCompleted(),
	}, nil
}

func removeTask(tasks []*workload.Task, task *workload.Task) []*workload.Task {
	for i, t := range tasks {
		if t.Id == task.Id {
			return append(tasks[:i], tasks[i+1:]...)
		}
	}
	return tasks
}
