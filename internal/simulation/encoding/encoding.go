// Package encoding maps tasks and cluster state into the fixed-size numeric vectors
// consumed by the allocation policy. The normalization constants here and in
// workload.ParameterRangeForType travel with every checkpoint; changing them breaks
// previously trained policies.
package encoding

import (
	"github.com/metisproject/metis/internal/simulation/cluster"
	"github.com/metisproject/metis/internal/simulation/workload"
)

const (
	// TaskEmbeddingSize is the width of a task embedding: one-hot type plus normalized parameter.
	TaskEmbeddingSize = workload.NumTypes + 1
	// PerNodeFeatures is the per-node slice width of the cluster state vector,
	// constant across the cluster regardless of node heterogeneity.
	PerNodeFeatures = workload.NumTypes + 1
	// RemainingTimeScale normalizes remaining execution time into [0, 1].
	// Durations beyond the scale saturate at 1.
	RemainingTimeScale = 300.0
)

// NormalizeParameter maps a raw task parameter into [0, 1] using the fixed
// per-type range, clamping values outside it.
func NormalizeParameter(t workload.Type, parameter float64) (float64, error) {
	r, err := workload.ParameterRangeForType(t)
	if err != nil {
		return 0, err
	}
	normalized := (parameter - r.Min) / (r.Max - r.Min)
	return clamp01(normalized), nil
}

// DenormalizeParameter is the inverse of NormalizeParameter for values inside the range.
func DenormalizeParameter(t workload.Type, normalized float64) (float64, error) {
	r, err := workload.ParameterRangeForType(t)
	if err != nil {
		return 0, err
	}
	return normalized*(r.Max-r.Min) + r.Min, nil
}

// EncodeTask returns the task embedding: one-hot of the type followed by the
// normalized parameter. Pure; the same task always yields the same vector and
// every element lies in [0, 1].
func EncodeTask(task *workload.Task) ([]float64, error) {
	normalized, err := NormalizeParameter(task.Type, task.Parameter)
	if err != nil {
		return nil, err
	}
	rv := make([]float64, TaskEmbeddingSize)
	rv[int(task.Type)] = 1.0
	rv[TaskEmbeddingSize-1] = normalized
	return rv, nil
}

// EncodeNode returns the one-hot encoding of a node id.
func EncodeNode(nodeId, numNodes int) []float64 {
	rv := make([]float64, numNodes)
	rv[nodeId] = 1.0
	return rv
}

// EncodeClusterState returns the global state vector at simulated time now:
// for each node in id order, a one-hot of the running task type (all zeros when
// idle) followed by the normalized remaining time.
func EncodeClusterState(state *cluster.State, now float64) []float64 {
	n := state.NumNodes()
	rv := make([]float64, n*PerNodeFeatures)
	for id := 0; id < n; id++ {
		offset := id * PerNodeFeatures
		if task := state.Current(id); task != nil {
			rv[offset+int(task.Type)] = 1.0
		}
		rv[offset+PerNodeFeatures-1] = clamp01(state.RemainingTime(id, now) / RemainingTimeScale)
	}
	return rv
}

// PolicyInputDim is the input width of the allocation policy for a cluster of numNodes nodes.
func PolicyInputDim(numNodes int) int {
	return numNodes + numNodes*PerNodeFeatures + TaskEmbeddingSize
}

// PolicyInput concatenates the one-hot of the candidate node, the cluster state
// vector and the task embedding into a single policy input vector.
func PolicyInput(candidate int, stateVector, taskEmbedding []float64, numNodes int) []float64 {
	rv := make([]float64, 0, PolicyInputDim(numNodes))
	rv = append(rv, EncodeNode(candidate, numNodes)...)
	rv = append(rv, stateVector...)
	rv = append(rv, taskEmbedding...)
	return rv
}

// Bounds captures the normalization constants in effect. Checkpoints persist these
// so that mismatched constants are detected at load time instead of silently
// corrupting inference.
type Bounds struct {
	ParameterRanges    map[string][2]float64 `yaml:"parameterRanges"`
	RemainingTimeScale float64               `yaml:"remainingTimeScale"`
}

// CurrentBounds returns the bounds compiled into this build.
func CurrentBounds() Bounds {
	ranges := make(map[string][2]float64, workload.NumTypes)
	for t := workload.Type(0); t < workload.NumTypes; t++ {
		r, err := workload.ParameterRangeForType(t)
		if err != nil {
			panic(err)
		}
		ranges[t.String()] = [2]float64{r.Min, r.Max}
	}
	return Bounds{
		ParameterRanges:    ranges,
		RemainingTimeScale: RemainingTimeScale,
	}
}

// Equal reports whether two bounds are identical.
func (b Bounds) Equal(other Bounds) bool {
	if b.RemainingTimeScale != other.RemainingTimeScale {
		return false
	}
	if len(b.ParameterRanges) != len(other.ParameterRanges) {
		return false
	}
	for name, r := range b.ParameterRanges {
		if other.ParameterRanges[name] != r {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
