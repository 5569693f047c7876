// Package metiserrors contains generic errors that are returned by the simulation and training core.
// Callers are expected to recover concrete error types with errors.As and react accordingly,
// e.g., treating ErrNoPendingEvents as clean episode termination rather than a failure.
//
// Errors are wrapped with github.com/pkg/errors at the point they are first returned so that
// stack traces are available to operators.
package metiserrors

import (
	"fmt"
)

// ErrInvalidArgument represents an error that occurs when a provided value is out of its allowed range.
type ErrInvalidArgument struct {
	// Name of the argument
	Name string
	// The provided value
	Value any
	// Optional message included with the error message
	Message string
}

func (err *ErrInvalidArgument) Error() (s string) {
	s = fmt.Sprintf("value %v of argument %s is invalid", err.Value, err.Name)
	if err.Message != "" {
		s += fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrUnknownTaskType is returned when a task type outside the four workload families is encountered.
// Fatal to the calling episode; never retried.
type ErrUnknownTaskType struct {
	// The offending type, as provided by the caller.
	Type string
}

func (err *ErrUnknownTaskType) Error() string {
	return fmt.Sprintf("unknown task type %q", err.Type)
}

// ErrNodeBusy is returned when an assignment is attempted on a node that is already executing a task.
// Schedulers must treat this as an invalid action; the simulator never silently reassigns.
type ErrNodeBusy struct {
	// Id of the occupied node.
	NodeId int
	// Simulated time remaining on the node's current task.
	RemainingTime float64
}

func (err *ErrNodeBusy) Error() string {
	return fmt.Sprintf("node %d is busy for another %f simulated seconds", err.NodeId, err.RemainingTime)
}

// ErrNoPendingEvents is returned when the simulator is asked for progress with no outstanding work.
// It signals clean episode termination, not a failure.
type ErrNoPendingEvents struct{}

func (err *ErrNoPendingEvents) Error() string {
	return "no pending completion events; all nodes are idle"
}

// ErrNumericDivergence is returned by the trainer when a NaN or Inf is detected in the loss,
// gradients, or parameters. The current training run is aborted and the last valid checkpoint kept.
type ErrNumericDivergence struct {
	// Where the divergence was detected, e.g., "loss" or "policy parameters".
	Quantity string
	// Training update in which the divergence occurred.
	Update int
}

func (err *ErrNumericDivergence) Error() string {
	return fmt.Sprintf("NaN or Inf detected in %s at update %d", err.Quantity, err.Update)
}

// ErrNodeUnreachable is returned by the node fleet when a node cannot be contacted.
// Distinct from ErrNodeBusy; callers reassign to a healthy node.
type ErrNodeUnreachable struct {
	// Id of the unreachable node.
	NodeId int
	// Optional message included with the error message
	Message string
}

func (err *ErrNodeUnreachable) Error() (s string) {
	s = fmt.Sprintf("node %d is unreachable", err.NodeId)
	if err.Message != "" {
		s += fmt.Sprintf("; %s", err.Message)
	}
	return
}

// ErrCheckpointMismatch is returned when a checkpoint cannot be loaded because its version or
// normalization constants are incompatible with this build. Loading such a checkpoint anyway
// would silently corrupt inference.
type ErrCheckpointMismatch struct {
	// The incompatible field, e.g., "version" or "parameter bounds".
	Field    string
	Expected any
	Actual   any
}

func (err *ErrCheckpointMismatch) Error() string {
	return fmt.Sprintf("checkpoint %s mismatch: expected %v but got %v", err.Field, err.Expected, err.Actual)
}
