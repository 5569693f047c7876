package training

import (
	"math/rand"

	"github.com/metisproject/metis/internal/policy"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/duration"
	"github.com/metisproject/metis/internal/simulation/encoding"
	"github.com/metisproject/metis/internal/simulation/simulator"
	"github.com/metisproject/metis/internal/simulation/sink"
	"github.com/metisproject/metis/internal/simulation/workload"
)

// Step records one placement decision made during a rollout, with everything
// needed to re-evaluate its probability under updated parameters.
type Step struct {
	StateVector   []float64
	TaskEmbedding []float64
	Candidates    []int
	Chosen        int
	LogProb       float64
	Reward        float64
}

// Trajectory is one simulated episode played with softmax sampling.
type Trajectory struct {
	Steps               []Step
	Makespan            float64
	TotalCompletionTime float64
	TasksCompleted      int
	// True if the horizon cut the episode short of the full queue.
	Truncated bool
}

// Returns computes the discounted return ahead of each step.
func (t *Trajectory) Returns(discount float64) []float64 {
	rv := make([]float64, len(t.Steps))
	g := 0.0
	for i := len(t.Steps) - 1; i >= 0; i-- {
		g = t.Steps[i].Reward + discount*g
		rv[i] = g
	}
	return rv
}

// RolloutOptions control episode truncation and stochasticity.
type RolloutOptions struct {
	// Base seed; duration noise and action sampling draw from separate
	// streams derived from it, so a rollout is reproducible from
	// (parameters, queue, seed) alone.
	Seed int64
	// Log-normal duration noise scale.
	Sigma float64
	// Stop placing tasks once simulated time reaches this; 0 means no limit.
	TimeHorizon float64
	// Maximum placements per episode; 0 means no limit.
	MaxPlacements int
	RewardMode    string
}

// RunRollout plays one episode of queue on a fresh simulator, sampling
// placements from p. A truncated episode is not a failure: placed tasks
// drain to completion and the realised makespan still drives the terminal
// reward.
func RunRollout(
	p *policy.AllocationPolicy,
	clusterSpec *cluster.ClusterSpec,
	queue []*workload.Task,
	opts RolloutOptions,
) (*Trajectory, error) {
	model, err := duration.NewModel(rand.New(rand.NewSource(2*opts.Seed)), opts.Sigma)
	if err != nil {
		return nil, err
	}
	sim, err := simulator.New(clusterSpec, model, sink.NullSink{})
	if err != nil {
		return nil, err
	}
	sampler := rand.New(rand.NewSource(2*opts.Seed + 1))

	trajectory := &Trajectory{}
	pending := append([]*workload.Task(nil), queue...)
	for len(pending) > 0 || sim.PendingEvents() > 0 {
		idle := sim.IdleNodes()
		for len(pending) > 0 && len(idle) > 0 {
			timedOut := opts.TimeHorizon > 0 && sim.Time() >= opts.TimeHorizon
			capped := opts.MaxPlacements > 0 && len(trajectory.Steps) >= opts.MaxPlacements
			if timedOut || capped {
				pending = nil
				trajectory.Truncated = true
				break
			}
			task := pending[0]
			stateVector := sim.PeekState()
			taskEmbedding, err := encoding.EncodeTask(task)
			if err != nil {
				return nil, err
			}
			nodeId, logProb, err := p.SampleNode(sampler, stateVector, taskEmbedding, idle)
			if err != nil {
				return nil, err
			}
			decision, err := sim.Assign(task, nodeId)
			if err != nil {
				return nil, err
			}
			reward := 0.0
			if opts.RewardMode == RewardPerStepCompletion {
				reward = -(decision.DecisionTime + decision.Duration)
			}
			trajectory.Steps = append(trajectory.Steps, Step{
				StateVector:   stateVector,
				TaskEmbedding: taskEmbedding,
				Candidates:    idle,
				Chosen:        nodeId,
				LogProb:       logProb,
				Reward:        reward,
			})
			pending = pending[1:]
			idle = withoutNode(idle, nodeId)
		}
		if sim.PendingEvents() == 0 {
			break
		}
		if _, err := sim.Advance(); err != nil {
			return nil, err
		}
	}

	trajectory.Makespan = sim.Time()
	trajectory.TotalCompletionTime = sim.TotalCompletionTime()
	trajectory.TasksCompleted = sim.TasksCompleted()
	if opts.RewardMode == RewardTerminalMakespan && len(trajectory.Steps) > 0 {
		trajectory.Steps[len(trajectory.Steps)-1].Reward = -trajectory.Makespan
	}
	return trajectory, nil
}

func withoutNode(nodes []int, nodeId int) []int {
	rv := make([]int, 0, len(nodes))
	for _, n := range nodes {
		if n != nodeId {
			rv = append(rv, n)
		}
	}
	return rv
}
