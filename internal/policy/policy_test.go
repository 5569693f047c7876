package policy

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/encoding"
)

func TestNetworkParameterCount(t *testing.T) {
	n, err := NewNetwork(59, []int{128, 128}, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	expected := 59*128 + 128 + 128*128 + 128 + 128*1 + 1
	assert.Equal(t, expected, n.NumParameters())
	assert.Equal(t, 59, n.InputDim())
}

func TestNewNetworkValidation(t *testing.T) {
	tests := map[string]struct {
		inputDim int
		hidden   []int
	}{
		"zero input":        {inputDim: 0, hidden: []int{8}},
		"zero hidden layer": {inputDim: 4, hidden: []int{8, 0}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewNetwork(tc.inputDim, tc.hidden, rand.New(rand.NewSource(0)))
			var invalid *metiserrors.ErrInvalidArgument
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestNetworkGradientMatchesFiniteDifference(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	n, err := NewNetwork(4, []int{5, 3}, r)
	require.NoError(t, err)

	x := []float64{0.3, -0.7, 1.2, 0.1}
	grad := mat.NewVecDense(n.NumParameters(), nil)
	n.AccumulateGrad(x, 1.0, grad)

	params := n.Parameters()
	const eps = 1e-5
	for _, i := range []int{0, 3, 11, 23, 31, n.NumParameters() - 1} {
		old := params.AtVec(i)
		params.SetVec(i, old+eps)
		plus := n.Forward(x)
		params.SetVec(i, old-eps)
		minus := n.Forward(x)
		params.SetVec(i, old)
		assert.InDelta(t, (plus-minus)/(2*eps), grad.AtVec(i), 1e-5, "parameter %d", i)
	}
}

func TestAccumulateGradScalesAndAccumulates(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	n, err := NewNetwork(3, []int{4}, r)
	require.NoError(t, err)

	x := []float64{0.5, -0.2, 0.9}
	once := mat.NewVecDense(n.NumParameters(), nil)
	n.AccumulateGrad(x, 1.0, once)

	twice := mat.NewVecDense(n.NumParameters(), nil)
	n.AccumulateGrad(x, 0.5, twice)
	n.AccumulateGrad(x, 1.5, twice)

	for i := 0; i < n.NumParameters(); i++ {
		assert.InDelta(t, 2*once.AtVec(i), twice.AtVec(i), 1e-12)
	}
}

func TestSelectNodeTieBreaksOnLowestId(t *testing.T) {
	// Nil source leaves all parameters zero, so every candidate scores 0.
	p, err := New(4, []int{8}, nil)
	require.NoError(t, err)

	stateVec := make([]float64, 4*encoding.PerNodeFeatures)
	taskEmbedding := make([]float64, encoding.TaskEmbeddingSize)

	nodeId, err := p.SelectNode(stateVec, taskEmbedding, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1, nodeId)
}

func TestSelectNodeRejectsEmptyCandidates(t *testing.T) {
	p, err := New(2, []int{4}, rand.New(rand.NewSource(0)))
	require.NoError(t, err)

	_, err = p.SelectNode(make([]float64, 2*encoding.PerNodeFeatures), make([]float64, encoding.TaskEmbeddingSize), nil)
	var invalid *metiserrors.ErrInvalidArgument
	assert.ErrorAs(t, err, &invalid)
}

func TestSampleNodeIsDeterministicForSeed(t *testing.T) {
	p, err := New(3, []int{16}, rand.New(rand.NewSource(11)))
	require.NoError(t, err)

	stateVec := make([]float64, 3*encoding.PerNodeFeatures)
	taskEmbedding := []float64{1, 0, 0, 0, 0.5}
	candidates := []int{0, 1, 2}

	first := make([]int, 0, 20)
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		nodeId, logProb, err := p.SampleNode(r, stateVec, taskEmbedding, candidates)
		require.NoError(t, err)
		assert.Contains(t, candidates, nodeId)
		assert.LessOrEqual(t, logProb, 0.0)
		first = append(first, nodeId)
	}

	second := make([]int, 0, 20)
	r = rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		nodeId, _, err := p.SampleNode(r, stateVec, taskEmbedding, candidates)
		require.NoError(t, err)
		second = append(second, nodeId)
	}
	assert.Equal(t, first, second)
}

func TestLogProbGradMatchesFiniteDifference(t *testing.T) {
	p, err := New(2, []int{6}, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	stateVec := []float64{0.2, 0, 0, 0.3, 0, 0.8, 0.1, 0, 0.5, 0}
	taskEmbedding := []float64{0, 1, 0, 0, 0.4}
	candidates := []int{0, 1}

	grad := mat.NewVecDense(p.NumParameters(), nil)
	logProb, err := p.AccumulateLogProbGrad(stateVec, taskEmbedding, candidates, 1, 1.0, grad)
	require.NoError(t, err)
	assert.Less(t, logProb, 0.0)

	params := p.Parameters()
	const eps = 1e-5
	for _, i := range []int{0, 7, 19, p.NumParameters() - 1} {
		old := params.AtVec(i)
		params.SetVec(i, old+eps)
		plus, err := p.LogProb(stateVec, taskEmbedding, candidates, 1)
		require.NoError(t, err)
		params.SetVec(i, old-eps)
		minus, err := p.LogProb(stateVec, taskEmbedding, candidates, 1)
		require.NoError(t, err)
		params.SetVec(i, old)
		assert.InDelta(t, (plus-minus)/(2*eps), grad.AtVec(i), 1e-5, "parameter %d", i)
	}
}

func TestLogProbsSumToOne(t *testing.T) {
	p, err := New(3, []int{8}, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	stateVec := make([]float64, 3*encoding.PerNodeFeatures)
	taskEmbedding := []float64{0, 0, 1, 0, 0.9}
	candidates := []int{0, 1, 2}

	total := 0.0
	for _, c := range candidates {
		logProb, err := p.LogProb(stateVec, taskEmbedding, candidates, c)
		require.NoError(t, err)
		total += math.Exp(logProb)
	}
	assert.InDelta(t, 1.0, total, 1e-12)
}

func TestCheckpointRoundTrip(t *testing.T) {
	p, err := New(3, []int{16, 16}, rand.New(rand.NewSource(9)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, p.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, p.NumNodes(), loaded.NumNodes())
	assert.Equal(t, p.Hidden(), loaded.Hidden())
	require.Equal(t, p.NumParameters(), loaded.NumParameters())

	stateVec := []float64{0.1, 0.2, 0.3, 0, 0, 0.4, 0, 0, 0.5, 0, 0.6, 0, 0, 0, 0.7}
	taskEmbedding := []float64{1, 0, 0, 0, 0.25}
	for candidate := 0; candidate < 3; candidate++ {
		assert.InDelta(t,
			p.Score(candidate, stateVec, taskEmbedding),
			loaded.Score(candidate, stateVec, taskEmbedding),
			1e-12,
		)
	}
}

func TestFromCheckpointRejectsMismatch(t *testing.T) {
	p, err := New(2, []int{4}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	base := &Checkpoint{
		Version:    checkpointVersion,
		NumNodes:   2,
		Hidden:     []int{4},
		Bounds:     encoding.CurrentBounds(),
		Parameters: append([]float64(nil), p.Parameters().RawVector().Data...),
	}

	tests := map[string]func(c *Checkpoint){
		"wrong version": func(c *Checkpoint) {
			c.Version = 99
		},
		"wrong bounds": func(c *Checkpoint) {
			c.Bounds.RemainingTimeScale = 1.0
		},
		"wrong parameter count": func(c *Checkpoint) {
			c.Parameters = c.Parameters[:len(c.Parameters)-1]
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := *base
			c.Parameters = append([]float64(nil), base.Parameters...)
			mutate(&c)
			_, err := FromCheckpoint(&c)
			var mismatch *metiserrors.ErrCheckpointMismatch
			assert.True(t, errors.As(err, &mismatch))
		})
	}
}
