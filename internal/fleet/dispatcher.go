package fleet

import (
	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/simulator"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// Dispatcher commits placement decisions through the fleet before they reach
// the simulator. If the chosen node is unreachable it fails over to the next
// candidate instead of aborting the episode.
type Dispatcher struct {
	fleet Fleet
	sim   *simulator.Simulator
}

func NewDispatcher(f Fleet, sim *simulator.Simulator) *Dispatcher {
	return &Dispatcher{fleet: f, sim: sim}
}

// Dispatch starts the task on the first reachable candidate, in the order
// given. Candidates that are unreachable or already busy are skipped with a
// warning. Fails with ErrNodeUnreachable if no candidate accepts the task.
func (d *Dispatcher) Dispatch(ctx *metiscontext.Context, task *workload.Task, candidates []int) (*simulator.AssignmentDecision, error) {
	for _, nodeId := range candidates {
		if _, err := d.fleet.Start(ctx, nodeId); err != nil {
			if isRetryable(err) {
				ctx.Log.WithField("nodeId", nodeId).Warnf("skipping node: %s", err)
				continue
			}
			return nil, err
		}
		decision, err := d.sim.Assign(task, nodeId)
		if err != nil {
			// The fleet accepted the start; release the node before
			// moving on.
			if stopErr := d.fleet.Stop(ctx, nodeId); stopErr != nil {
				ctx.Log.WithField("nodeId", nodeId).Warnf("failed to release node: %s", stopErr)
			}
			if isRetryable(err) {
				continue
			}
			return nil, err
		}
		return decision, nil
	}
	return nil, errors.WithStack(&metiserrors.ErrNodeUnreachable{
		NodeId:  -1,
		Message: "no reachable idle candidate",
	})
}

// Complete advances the simulator to the next completion and returns the
// finished node to the fleet.
func (d *Dispatcher) Complete(ctx *metiscontext.Context) (*simulator.AssignmentDecision, error) {
	decision, err := d.sim.Advance()
	if err != nil {
		return nil, err
	}
	if err := d.fleet.Stop(ctx, decision.NodeId); err != nil {
		var unreachable *metiserrors.ErrNodeUnreachable
		if !errors.As(err, &unreachable) {
			return nil, err
		}
		ctx.Log.WithField("nodeId", decision.NodeId).Warnf("completed task on unreachable node: %s", err)
	}
	return decision, nil
}

func isRetryable(err error) bool {
	var unreachable *metiserrors.ErrNodeUnreachable
	var busy *metiserrors.ErrNodeBusy
	return errors.As(err, &unreachable) || errors.As(err, &busy)
}
