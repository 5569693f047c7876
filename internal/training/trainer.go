package training

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/metisproject/metis/internal/common/linalg"
	"github.com/metisproject/metis/internal/common/metiscontext"
	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/common/optimisation"
	"github.com/metisproject/metis/internal/common/slices"
	"github.com/metisproject/metis/internal/policy"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// Trainer optimises an allocation policy with clipped-surrogate policy
// gradients (PPO). Rollouts are simulated concurrently; updates are applied
// on the caller's goroutine.
type Trainer struct {
	config       Config
	clusterSpec  *cluster.ClusterSpec
	workloadSpec *workload.WorkloadSpec
	policy       *policy.AllocationPolicy
	optimiser    optimisation.Optimiser
	metrics      *Metrics
	// Parameter snapshot from before the most recent update, used to roll
	// back when an update produces non-finite values.
	lastGood *mat.VecDense
}

// New creates a trainer. If p is nil a fresh policy is initialised from the
// config seed; if metrics is nil a private registry is used.
func New(
	config Config,
	clusterSpec *cluster.ClusterSpec,
	workloadSpec *workload.WorkloadSpec,
	p *policy.AllocationPolicy,
	metrics *Metrics,
) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		var err error
		p, err = policy.New(len(clusterSpec.Nodes), config.Hidden, rand.New(rand.NewSource(config.Seed)))
		if err != nil {
			return nil, err
		}
	}
	if len(clusterSpec.Nodes) != p.NumNodes() {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "clusterSpec",
			Value:   len(clusterSpec.Nodes),
			Message: fmt.Sprintf("policy expects %d nodes", p.NumNodes()),
		})
	}
	optimiser, err := config.NewOptimiser()
	if err != nil {
		return nil, err
	}
	optimiser.Extend(p.NumParameters())
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Trainer{
		config:       config,
		clusterSpec:  clusterSpec,
		workloadSpec: workloadSpec,
		policy:       p,
		optimiser:    optimiser,
		metrics:      metrics,
		lastGood:     mat.VecDenseCopyOf(p.Parameters()),
	}, nil
}

// Policy returns the policy being trained.
func (t *Trainer) Policy() *policy.AllocationPolicy {
	return t.policy
}

// Train runs the configured number of updates. On numeric divergence the
// policy is rolled back to the last finite parameters before returning.
func (t *Trainer) Train(ctx *metiscontext.Context) error {
	for update := 0; update < t.config.NumUpdates; update++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		trajectories, err := t.collect(ctx, update)
		if err != nil {
			return err
		}
		t.metrics.episodes.Add(float64(len(trajectories)))

		rewards := slices.Map(trajectories, func(trajectory *Trajectory) float64 {
			return episodeReward(trajectory)
		})
		makespans := slices.Map(trajectories, func(trajectory *Trajectory) float64 {
			return trajectory.Makespan
		})
		t.metrics.meanEpisodeReward.Set(slices.Mean(rewards))
		t.metrics.meanMakespan.Set(slices.Mean(makespans))

		t.lastGood.CopyVec(t.policy.Parameters())
		loss, err := t.update(update, trajectories)
		if err != nil {
			var divergence *metiserrors.ErrNumericDivergence
			if errors.As(err, &divergence) {
				t.metrics.divergences.Inc()
				t.policy.SetParameters(t.lastGood)
			}
			return errors.WithMessagef(err, "update %d", update)
		}
		t.metrics.updates.Inc()
		t.metrics.surrogateLoss.Set(loss)

		ctx.Log.WithFields(logrus.Fields{
			"update":        update,
			"meanReward":    slices.Mean(rewards),
			"meanMakespan":  slices.Mean(makespans),
			"surrogateLoss": loss,
		}).Info("completed policy update")

		if t.config.CheckpointInterval > 0 && (update+1)%t.config.CheckpointInterval == 0 {
			if err := t.saveCheckpoint(ctx, update); err != nil {
				return err
			}
		}
	}
	if t.config.CheckpointDir != "" {
		if err := os.MkdirAll(t.config.CheckpointDir, 0o755); err != nil {
			return errors.WithStack(err)
		}
		return t.policy.Save(filepath.Join(t.config.CheckpointDir, "policy.yaml"))
	}
	return nil
}

// collect simulates one batch of episodes concurrently.
func (t *Trainer) collect(ctx *metiscontext.Context, update int) ([]*Trajectory, error) {
	trajectories := make([]*Trajectory, t.config.EpisodesPerUpdate)
	g, gctx := metiscontext.ErrGroup(ctx)
	g.SetLimit(t.config.parallelism())
	for i := 0; i < t.config.EpisodesPerUpdate; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			episode := update*t.config.EpisodesPerUpdate + i
			queue, err := t.workloadSpec.Queue(episode)
			if err != nil {
				return err
			}
			trajectory, err := RunRollout(t.policy, t.clusterSpec, queue, RolloutOptions{
				Seed:          t.config.Seed + int64(episode),
				Sigma:         t.config.NoiseSigma,
				TimeHorizon:   t.config.TimeHorizon,
				MaxPlacements: t.config.MaxPlacements,
				RewardMode:    t.config.RewardMode,
			})
			if err != nil {
				return err
			}
			trajectories[i] = trajectory
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trajectories, nil
}

// update applies the configured number of clipped-surrogate epochs to one
// batch of trajectories and returns the final mean surrogate loss.
func (t *Trainer) update(update int, trajectories []*Trajectory) (float64, error) {
	type sample struct {
		step      *Step
		advantage float64
	}
	samples := make([]sample, 0)
	allReturns := make([]float64, 0)
	for _, trajectory := range trajectories {
		returns := trajectory.Returns(t.config.Discount)
		for i := range trajectory.Steps {
			samples = append(samples, sample{step: &trajectory.Steps[i]})
			allReturns = append(allReturns, returns[i])
		}
	}
	if len(samples) == 0 {
		return 0, nil
	}

	// Batch-mean baseline with variance normalisation.
	baseline := slices.Mean(allReturns)
	variance := 0.0
	for _, g := range allReturns {
		variance += (g - baseline) * (g - baseline)
	}
	std := math.Sqrt(variance / float64(len(allReturns)))
	for i := range samples {
		samples[i].advantage = (allReturns[i] - baseline) / (std + 1e-8)
	}

	loss := 0.0
	grad := mat.NewVecDense(t.policy.NumParameters(), nil)
	for epoch := 0; epoch < t.config.EpochsPerUpdate; epoch++ {
		grad.Zero()
		loss = 0.0
		for _, s := range samples {
			newLogProb, err := t.policy.LogProb(s.step.StateVector, s.step.TaskEmbedding, s.step.Candidates, s.step.Chosen)
			if err != nil {
				return 0, err
			}
			ratio := math.Exp(newLogProb - s.step.LogProb)
			clipped := clamp(ratio, 1-t.config.ClipEpsilon, 1+t.config.ClipEpsilon)
			loss -= math.Min(ratio*s.advantage, clipped*s.advantage)

			// Inside the clip region the surrogate gradient is
			// advantage * ratio * grad(log pi); outside it is zero.
			if ratio != clipped && math.Min(ratio*s.advantage, clipped*s.advantage) == clipped*s.advantage {
				continue
			}
			scale := -s.advantage * ratio / float64(len(samples))
			if _, err := t.policy.AccumulateLogProbGrad(
				s.step.StateVector, s.step.TaskEmbedding, s.step.Candidates, s.step.Chosen, scale, grad,
			); err != nil {
				return 0, err
			}
		}
		loss /= float64(len(samples))

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return 0, errors.WithStack(&metiserrors.ErrNumericDivergence{Quantity: "loss", Update: update})
		}
		if linalg.HasNaNOrInf(grad) {
			return 0, errors.WithStack(&metiserrors.ErrNumericDivergence{Quantity: "gradient", Update: update})
		}
		parameters := t.policy.Parameters()
		t.optimiser.Update(parameters, parameters, grad)
		if linalg.HasNaNOrInf(parameters) {
			return 0, errors.WithStack(&metiserrors.ErrNumericDivergence{Quantity: "parameters", Update: update})
		}
	}
	return loss, nil
}

func (t *Trainer) saveCheckpoint(ctx *metiscontext.Context, update int) error {
	if t.config.CheckpointDir == "" {
		return nil
	}
	if err := os.MkdirAll(t.config.CheckpointDir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	path := filepath.Join(t.config.CheckpointDir, fmt.Sprintf("policy-%06d.yaml", update+1))
	if err := t.policy.Save(path); err != nil {
		return err
	}
	ctx.Log.Infof("saved checkpoint %s", path)
	return nil
}

func episodeReward(trajectory *Trajectory) float64 {
	rewards := slices.Map(trajectory.Steps, func(s Step) float64 { return s.Reward })
	return slices.Sum(rewards)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
