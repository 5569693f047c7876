// Package scheduling contains the non-learned baseline schedulers used as
// evaluation references, and the episode loop shared by all schedulers.
package scheduling

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// Assignment pairs a queued task with the node it should run on.
type Assignment struct {
	NodeId int
	Task   *workload.Task
}

// Scheduler decides which queued tasks run on which idle nodes. Implementations
// are pure decision functions: they never mutate the cluster state and are never
// used for training updates.
type Scheduler interface {
	// Schedule returns assignments for a subset of the idle nodes and queued tasks.
	// Each returned task and node appears at most once.
	Schedule(idleNodes []int, queue []*workload.Task, state *cluster.State, now float64) ([]Assignment, error)
}

const (
	KindRandom          = "random"
	KindGreedy          = "greedy"
	KindShortestJob     = "sjf"
	KindOptimalMatching = "matching"
)

// New returns the baseline scheduler named by kind.
func New(kind string, model *duration.Model, r *rand.Rand) (Scheduler, error) {
	switch kind {
	case KindRandom:
		return &RandomScheduler{rand: r}, nil
	case KindGreedy:
		return &GreedyScheduler{model: model}, nil
	case KindShortestJob:
		return &ShortestJobFirstScheduler{model: model}, nil
	case KindOptimalMatching:
		return &OptimalMatchingScheduler{model: model}, nil
	default:
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "kind",
			Value:   kind,
			Message: "unknown scheduler",
		})
	}
}

// Kinds lists the baseline scheduler names.
func Kinds() []string {
	return []string{KindRandom, KindGreedy, KindShortestJob, KindOptimalMatching}
}
