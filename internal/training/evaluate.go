package training

import (
	"math/rand"
	"sort"

	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/common/slices"
	"github.com/metisproject/metis/internal/scheduling"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/simulator"
	"github.com/metisproject/metis/internal/simulation/sink"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// EvaluationResult aggregates episode outcomes for one scheduler.
type EvaluationResult struct {
	Scheduler               string
	Episodes                int
	MeanMakespan            float64
	MeanTotalCompletionTime float64
	TasksCompleted          int
}

// SinkFactory builds a per-scheduler sink for evaluation output. A nil
// factory disables output.
type SinkFactory func(scheduler string) (sink.Sink, error)

// Evaluate runs every scheduler over the same sequence of episodes. Queues
// and duration noise are seeded identically across schedulers, so results
// differ only by placement decisions. Results are sorted by scheduler name.
func Evaluate(
	ctx *metiscontext.Context,
	schedulers map[string]scheduling.Scheduler,
	clusterSpec *cluster.ClusterSpec,
	workloadSpec *workload.WorkloadSpec,
	episodes int,
	seed int64,
	sigma float64,
	sinkFactory SinkFactory,
) ([]EvaluationResult, error) {
	names := make([]string, 0, len(schedulers))
	for name := range schedulers {
		names = append(names, name)
	}
	sort.Strings(names)

	rv := make([]EvaluationResult, 0, len(names))
	for _, name := range names {
		result, err := evaluateScheduler(ctx, name, schedulers[name], clusterSpec, workloadSpec, episodes, seed, sigma, sinkFactory)
		if err != nil {
			return nil, err
		}
		rv = append(rv, result)
	}
	return rv, nil
}

func evaluateScheduler(
	ctx *metiscontext.Context,
	name string,
	scheduler scheduling.Scheduler,
	clusterSpec *cluster.ClusterSpec,
	workloadSpec *workload.WorkloadSpec,
	episodes int,
	seed int64,
	sigma float64,
	sinkFactory SinkFactory,
) (EvaluationResult, error) {
	var episodeSink sink.Sink = sink.NullSink{}
	if sinkFactory != nil {
		var err error
		episodeSink, err = sinkFactory(name)
		if err != nil {
			return EvaluationResult{}, err
		}
		defer episodeSink.Close(ctx)
	}

	makespans := make([]float64, 0, episodes)
	completionTimes := make([]float64, 0, episodes)
	tasksCompleted := 0
	for episode := 0; episode < episodes; episode++ {
		if err := ctx.Err(); err != nil {
			return EvaluationResult{}, err
		}
		queue, err := workloadSpec.Queue(episode)
		if err != nil {
			return EvaluationResult{}, err
		}
		model, err := duration.NewModel(rand.New(rand.NewSource(seed+int64(episode))), sigma)
		if err != nil {
			return EvaluationResult{}, err
		}
		sim, err := simulator.New(clusterSpec, model, episodeSink)
		if err != nil {
			return EvaluationResult{}, err
		}
		result, err := scheduling.RunEpisode(sim, scheduler, queue)
		if err != nil {
			return EvaluationResult{}, err
		}
		makespans = append(makespans, result.Makespan)
		completionTimes = append(completionTimes, result.TotalCompletionTime)
		tasksCompleted += result.TasksCompleted
	}

	ctx.Log.WithField("scheduler", name).Infof(
		"evaluated %d episodes, mean makespan %.3f", episodes, slices.Mean(makespans),
	)
	return EvaluationResult{
		Scheduler:               name,
		Episodes:                episodes,
		MeanMakespan:            slices.Mean(makespans),
		MeanTotalCompletionTime: slices.Mean(completionTimes),
		TasksCompleted:          tasksCompleted,
	}, nil
}
