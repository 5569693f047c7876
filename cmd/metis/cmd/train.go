package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/common/slices"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/workload"
	"github.com/metisproject/metis/internal/training"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train an allocation policy with PPO against the cluster simulator.",
		RunE:  runTrain,
	}
	cmd.Flags().String("clusters", "", "Glob pattern specifying cluster specs to train against.")
	cmd.Flags().String("workloads", "", "Glob pattern specifying workload specs to train against.")
	cmd.Flags().String("configs", "", "Glob pattern specifying training configs.")
	cmd.Flags().String("checkpoints", "", "Directory to write checkpoints to; overrides the config value.")
	cmd.Flags().Int("metricsPort", 0, "Port to serve Prometheus metrics on. Disabled if 0.")
	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	clusterPattern, err := cmd.Flags().GetString("clusters")
	if err != nil {
		return err
	}
	workloadPattern, err := cmd.Flags().GetString("workloads")
	if err != nil {
		return err
	}
	configPattern, err := cmd.Flags().GetString("configs")
	if err != nil {
		return err
	}
	checkpointDir, err := cmd.Flags().GetString("checkpoints")
	if err != nil {
		return err
	}
	metricsPort, err := cmd.Flags().GetInt("metricsPort")
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
	configs, err := training.ConfigsFromPattern(configPattern)
	if err != nil {
		return err
	}

	ctx := metiscontext.Background()
	ctx.Log.Info("metis trainer")
	ctx.Log.Infof("ClusterSpecs: %v", slices.Map(clusterSpecs, func(spec *cluster.ClusterSpec) string { return spec.Name }))
	ctx.Log.Infof("WorkloadSpecs: %v", slices.Map(workloadSpecs, func(spec *workload.WorkloadSpec) string { return spec.Name }))
	ctx.Log.Infof("TrainingConfigs: %v", slices.Map(configs, func(config training.Config) string { return config.Name }))

	registry := prometheus.NewRegistry()
	metrics := training.NewMetrics(registry)
	if metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), mux); err != nil {
				ctx.Log.Errorf("metrics server stopped: %s", err)
			}
		}()
	}

	for _, clusterSpec := range clusterSpecs {
		for _, workloadSpec := range workloadSpecs {
			for _, config := range configs {
				if checkpointDir != "" {
					config.CheckpointDir = filepath.Join(
						checkpointDir,
						fmt.Sprintf("%s-%s-%s", config.Name, clusterSpec.Name, workloadSpec.Name),
					)
				}
				runCtx := metiscontext.WithLogField(ctx, "run", fmt.Sprintf("%s/%s/%s", config.Name, clusterSpec.Name, workloadSpec.Name))
				trainer, err := training.New(config, clusterSpec, workloadSpec, nil, metrics)
				if err != nil {
					return err
				}
				if err := trainer.Train(runCtx); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
