package fleet

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/common/metiserrors"
)

// SimulatedFleet is an in-memory Fleet. Nodes can be marked unreachable to
// exercise failover paths. Safe for concurrent use.
type SimulatedFleet struct {
	mu     sync.Mutex
	status []Status
}

// NewSimulatedFleet creates a fleet of numNodes idle nodes.
func NewSimulatedFleet(numNodes int) (*SimulatedFleet, error) {
	if numNodes < 1 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "numNodes",
			Value:   numNodes,
			Message: "must be at least 1",
		})
	}
	status := make([]Status, numNodes)
	for i := range status {
		status[i] = StatusIdle
	}
	return &SimulatedFleet{status: status}, nil
}

func (f *SimulatedFleet) Start(ctx *metiscontext.Context, nodeId int) (Health, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(nodeId); err != nil {
		return Health{}, err
	}
	switch f.status[nodeId] {
	case StatusUnreachable:
		return Health{}, errors.WithStack(&metiserrors.ErrNodeUnreachable{
			NodeId:  nodeId,
			Message: "node did not respond to start",
		})
	case StatusBusy:
		return Health{}, errors.WithStack(&metiserrors.ErrNodeBusy{NodeId: nodeId})
	}
	f.status[nodeId] = StatusBusy
	return Health{NodeId: nodeId, Status: StatusBusy}, nil
}

func (f *SimulatedFleet) Stop(ctx *metiscontext.Context, nodeId int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(nodeId); err != nil {
		return err
	}
	if f.status[nodeId] == StatusUnreachable {
		return errors.WithStack(&metiserrors.ErrNodeUnreachable{
			NodeId:  nodeId,
			Message: "node did not respond to stop",
		})
	}
	f.status[nodeId] = StatusIdle
	return nil
}

func (f *SimulatedFleet) Status(ctx *metiscontext.Context, nodeId int) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(nodeId); err != nil {
		return "", err
	}
	return f.status[nodeId], nil
}

// MarkUnreachable simulates the node dropping off the network. Any task the
// simulator thinks is running there still completes; only new starts fail.
func (f *SimulatedFleet) MarkUnreachable(nodeId int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(nodeId); err != nil {
		return err
	}
	f.status[nodeId] = StatusUnreachable
	return nil
}

// MarkReachable returns an unreachable node to idle.
func (f *SimulatedFleet) MarkReachable(nodeId int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(nodeId); err != nil {
		return err
	}
	if f.status[nodeId] == StatusUnreachable {
		f.status[nodeId] = StatusIdle
	}
	return nil
}

func (f *SimulatedFleet) check(nodeId int) error {
	if nodeId < 0 || nodeId >= len(f.status) {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "nodeId",
			Value:   nodeId,
			Message: "outside fleet",
		})
	}
	return nil
}
