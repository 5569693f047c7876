package cmd

import (
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/fleet"
	"github.com/metisproject/metis/internal/scheduling"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/simulator"
	"github.com/metisproject/metis/internal/simulation/sink"
	"github.com/metisproject/metis/internal/simulation/workload"
)

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play one episode per cluster/workload pair through the fleet dispatcher.",
		RunE:  runSimulate,
	}
	cmd.Flags().String("clusters", "", "Glob pattern specifying cluster specs to simulate.")
	cmd.Flags().String("workloads", "", "Glob pattern specifying workloads to simulate.")
	cmd.Flags().String("scheduler", scheduling.KindGreedy, "Scheduler to drive placements with.")
	cmd.Flags().Int64("seed", 0, "Seed for duration noise and scheduler randomness.")
	cmd.Flags().Float64("sigma", 0.1, "Log-normal duration noise scale.")
	cmd.Flags().IntSlice("unreachable", nil, "Node ids to mark unreachable before the episode.")
	cmd.Flags().String("output", "", "Directory to write per-task parquet results to. Disabled if empty.")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	clusterPattern, err := cmd.Flags().GetString("clusters")
	if err != nil {
		return err
	}
	workloadPattern, err := cmd.Flags().GetString("workloads")
	if err != nil {
		return err
	}
	kind, err := cmd.Flags().GetString("scheduler")
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
	unreachable, err := cmd.Flags().GetIntSlice("unreachable")
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

	ctx := metiscontext.Background()
	for _, clusterSpec := range clusterSpecs {
		for _, workloadSpec := range workloadSpecs {
			if err := simulateEpisode(ctx, clusterSpec, workloadSpec, kind, seed, sigma, unreachable, outputDir); err != nil {
				return err
			}
		}
	}
	return nil
}

func simulateEpisode(
	ctx *metiscontext.Context,
	clusterSpec *cluster.ClusterSpec,
	workloadSpec *workload.WorkloadSpec,
	kind string,
	seed int64,
	sigma float64,
	unreachable []int,
	outputDir string,
) error {
	model, err := duration.NewModel(rand.New(rand.NewSource(seed)), sigma)
	if err != nil {
		return err
	}
	var episodeSink sink.Sink = sink.NullSink{}
	if outputDir != "" {
		episodeSink, err = sink.NewTaskRunWriter(outputDir)
		if err != nil {
			return err
		}
	}
	sim, err := simulator.New(clusterSpec, model, episodeSink)
	if err != nil {
		return err
	}
	defer episodeSink.Close(ctx)

	scheduler, err := scheduling.New(kind, model, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}
	nodeFleet, err := fleet.NewSimulatedFleet(len(clusterSpec.Nodes))
	if err != nil {
		return err
	}
	for _, nodeId := range unreachable {
		if err := nodeFleet.MarkUnreachable(nodeId); err != nil {
			return err
		}
	}
	dispatcher := fleet.NewDispatcher(nodeFleet, sim)

	queue, err := workloadSpec.Queue(0)
	if err != nil {
		return err
	}
	for len(queue) > 0 || sim.PendingEvents() > 0 {
		idle := reachableIdleNodes(ctx, nodeFleet, sim)
		for len(idle) > 0 && len(queue) > 0 {
			assignments, err := scheduler.Schedule(idle, queue, sim.State(), sim.Time())
			if err != nil {
				return err
			}
			if len(assignments) == 0 {
				break
			}
			for _, assignment := range assignments {
				// Preferred node first, remaining idle nodes as fallback.
				candidates := append([]int{assignment.NodeId}, without(idle, assignment.NodeId)...)
				decision, err := dispatcher.Dispatch(ctx, assignment.Task, candidates)
				if err != nil {
					return err
				}
				queue = without(queue, assignment.Task)
				idle = without(idle, decision.NodeId)
			}
		}
		if sim.PendingEvents() == 0 {
			if len(queue) > 0 {
				return errors.WithStack(&metiserrors.ErrNodeUnreachable{
					NodeId:  -1,
					Message: "tasks pending but no reachable node left",
				})
			}
			break
		}
		if _, err := dispatcher.Complete(ctx); err != nil {
			return err
		}
	}

	ctx.Log.WithFields(logrus.Fields{
		"cluster":             clusterSpec.Name,
		"workload":            workloadSpec.Name,
		"scheduler":           kind,
		"makespan":            sim.Time(),
		"totalCompletionTime": sim.TotalCompletionTime(),
		"tasksCompleted":      sim.TasksCompleted(),
	}).Info("episode complete")
	return nil
}

func reachableIdleNodes(ctx *metiscontext.Context, nodeFleet fleet.Fleet, sim *simulator.Simulator) []int {
	rv := make([]int, 0)
	for _, nodeId := range sim.IdleNodes() {
		status, err := nodeFleet.Status(ctx, nodeId)
		if err != nil || status != fleet.StatusIdle {
			continue
		}
		rv = append(rv, nodeId)
	}
	return rv
}

func without[E comparable](s []E, v E) []E {
	rv := make([]E, 0, len(s))
	for _, e := range s {
		if e != v {
			rv = append(rv, e)
		}
	}
	return rv
}
