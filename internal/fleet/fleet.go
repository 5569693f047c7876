// Package fleet abstracts the node fleet the scheduler places tasks onto.
// The simulator owns task timing; the fleet owns node reachability and
// lifecycle. Production fleets would sit behind this interface; the package
// ships an in-memory implementation used by simulation and tests.
package fleet

import (
	"github.com/metisproject/metis/internal/common/metiscontext"
)

// Status of one node as reported by the fleet.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusBusy        Status = "busy"
	StatusUnreachable Status = "unreachable"
)

// Health is the fleet's view of a node after a successful start.
type Health struct {
	NodeId int
	Status Status
}

// Fleet starts and stops work on nodes. Unreachable nodes surface as
// ErrNodeUnreachable, never as a panic or a hang; callers are expected to
// fail over to another node.
type Fleet interface {
	// Start marks the node as running a task.
	Start(ctx *metiscontext.Context, nodeId int) (Health, error)
	// Stop returns the node to idle.
	Stop(ctx *metiscontext.Context, nodeId int) error
	// Status reports the node's current status.
	Status(ctx *metiscontext.Context, nodeId int) (Status, error)
}
