package cmd

import (
	"math/rand"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/policy"
	"github.com/metisproject/metis/internal/scheduling"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/sink"
	"github.com/metisproject/metis/internal/simulation/workload"
	"github.com/metisproject/metis/internal/training"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compare a trained policy against the baseline schedulers.",
		RunE:  runEvaluate,
	}
	cmd.Flags().String("clusters", "", "Glob pattern specifying cluster specs to evaluate on.")
	cmd.Flags().String("workloads", "", "Glob pattern specifying workload specs to evaluate on.")
	cmd.Flags().String("checkpoint", "", "Policy checkpoint to evaluate. Baselines only if empty.")
	cmd.Flags().StringSlice("schedulers", scheduling.Kinds(), "Baseline schedulers to include.")
	cmd.Flags().Int("episodes", 10, "Episodes per scheduler.")
	cmd.Flags().Int64("seed", 0, "Base seed for duration noise.")
	cmd.Flags().Float64("sigma", 0.1, "Log-normal duration noise scale.")
	cmd.Flags().String("output", "", "Directory to write per-task parquet results to. Disabled if empty.")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	clusterPattern, err := cmd.Flags().GetString("clusters")
	if err != nil {
		return err
	}
	workloadPattern, err := cmd.Flags().GetString("workloads")
	if err != nil {
		return err
	}
	checkpoint, err := cmd.Flags().GetString("checkpoint")
	if err != nil {
		return err
	}
	kinds, err := cmd.Flags().GetStringSlice("schedulers")
	if err != nil {
		return err
	}
	episodes, err := cmd.Flags().GetInt("episodes")
	if err != nil {
		return err
	}
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return err
	}
	sigma, err := cmd.Flags().GetFloat64("sigma")
	if err != nil {
		return err
	}
	outputDir, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	clusterSpecs, err := cluster.ClusterSpecsFromPattern(clusterPattern)
	if err != nil {
		return err
	}
	workloadSpecs, err := workload.WorkloadsFromPattern(workloadPattern)
	if err != nil {
		return err
	}

	// Baselines estimate durations without noise; episode noise comes from
	// the simulator's own model.
	expectationModel, err := duration.NewModel(rand.New(rand.NewSource(seed)), 0)
	if err != nil {
		return err
	}
	schedulers := make(map[string]scheduling.Scheduler, len(kinds)+1)
	for _, kind := range kinds {
		scheduler, err := scheduling.New(kind, expectationModel, rand.New(rand.NewSource(seed)))
		if err != nil {
			return err
		}
		schedulers[kind] = scheduler
	}
	if checkpoint != "" {
		p, err := policy.Load(checkpoint)
		if err != nil {
			return err
		}
		schedulers["policy"] = scheduling.NewPolicyScheduler(p)
	}

	ctx := metiscontext.Background()
	ctx.Log.Infof("evaluating schedulers %v", maps.Keys(schedulers))

	var sinkFactory training.SinkFactory
	for _, clusterSpec := range clusterSpecs {
		for _, workloadSpec := range workloadSpecs {
			if outputDir != "" {
				runDir := filepath.Join(outputDir, clusterSpec.Name+"-"+workloadSpec.Name)
				sinkFactory = func(scheduler string) (sink.Sink, error) {
					return sink.NewTaskRunWriter(filepath.Join(runDir, scheduler))
				}
			}
			results, err := training.Evaluate(ctx, schedulers, clusterSpec, workloadSpec, episodes, seed, sigma, sinkFactory)
			if err != nil {
				return err
			}
			for _, result := range results {
				ctx.Log.WithFields(logrus.Fields{
					"cluster":                 clusterSpec.Name,
					"workload":                workloadSpec.Name,
					"scheduler":               result.Scheduler,
					"meanMakespan":            result.MeanMakespan,
					"meanTotalCompletionTime": result.MeanTotalCompletionTime,
					"tasksCompleted":          result.TasksCompleted,
				}).Info("evaluation result")
			}
		}
	}
	return nil
}
