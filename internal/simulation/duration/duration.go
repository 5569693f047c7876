// Package duration models stochastic task execution time on heterogeneous nodes.
// The base duration is a deterministic function of the task parameter and the node
// capacity dimension relevant to the task type; bounded multiplicative log-normal
// noise emulates real-world variance.
package duration

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/workload"
)

const (
	// Sampled durations never fall below this floor, guaranteeing duration > 0.
	durationFloor = 1e-6
	// The multiplicative noise factor is clamped to [1/noiseBound, noiseBound].
	noiseBound = 4.0
)

// Model samples execution durations for (task, node) pairs.
type Model struct {
	rand  *rand.Rand
	sigma float64
}

// NewModel returns a duration model drawing noise from r with log-normal scale sigma.
// Pass sigma 0 for a noiseless model.
func NewModel(r *rand.Rand, sigma float64) (*Model, error) {
	if r == nil {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "r",
			Value:   nil,
			Message: "noise source is required; use NewUnseededModel outside training",
		})
	}
	if sigma < 0 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "sigma",
			Value:   sigma,
			Message: "outside allowed range [0, Inf)",
		})
	}
	return &Model{rand: r, sigma: sigma}, nil
}

// NewUnseededModel returns a model seeded from the wall clock.
// Training must not use this; reproducibility requires an explicit seed.
func NewUnseededModel(sigma float64) (*Model, error) {
	return NewModel(rand.New(rand.NewSource(time.Now().UnixNano())), sigma)
}

// Expected returns the deterministic base duration of the task on the node.
func (m *Model) Expected(task *workload.Task, profile *cluster.NodeProfile) (float64, error) {
	var base, capacity float64
	switch task.Type {
	case workload.MatMul:
		base = math.Pow(task.Parameter/1000, 2.5)
		capacity = profile.CpuCapacity
	case workload.PrimeCalc:
		base = task.Parameter / 1000000 * 2.0
		capacity = profile.CpuCapacity
	case workload.Sort:
		base = task.Parameter / 1000000 * 1.5
		capacity = profile.MemBandwidth
	case workload.FileIO:
		base = task.Parameter / 100000 * 0.8
		capacity = profile.IoBandwidth
	default:
		return 0, errors.WithStack(&metiserrors.ErrUnknownTaskType{Type: task.Type.String()})
	}
	return math.Max(base/capacity, durationFloor), nil
}

// Sample returns a stochastic duration for the task on the node: the expected
// duration scaled by bounded log-normal noise, clamped at a positive floor.
func (m *Model) Sample(task *workload.Task, profile *cluster.NodeProfile) (float64, error) {
	expected, err := m.Expected(task, profile)
	if err != nil {
		return 0, err
	}
	factor := math.Exp(m.sigma * m.rand.NormFloat64())
	if factor > noiseBound {
		factor = noiseBound
	} else if factor < 1/noiseBound {
		factor = 1 / noiseBound
	}
	return math.Max(expected*factor, durationFloor), nil
}
