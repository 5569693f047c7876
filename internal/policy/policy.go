package policy

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/encoding"
)

// AllocationPolicy scores candidate nodes for a pending task. Each candidate
// node is scored independently from the same cluster state and task embedding,
// so the node with the highest score (or a softmax sample over scores) is the
// policy's placement decision.
type AllocationPolicy struct {
	numNodes int
	hidden   []int
	net      *Network
}

// New creates a policy for a cluster of numNodes nodes, with randomly
// initialised weights drawn from r.
func New(numNodes int, hidden []int, r *rand.Rand) (*AllocationPolicy, error) {
	if numNodes < 1 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "numNodes",
			Value:   numNodes,
			Message: "must be at least 1",
		})
	}
	net, err := NewNetwork(encoding.PolicyInputDim(numNodes), hidden, r)
	if err != nil {
		return nil, err
	}
	return &AllocationPolicy{
		numNodes: numNodes,
		hidden:   append([]int(nil), hidden...),
		net:      net,
	}, nil
}

// NumNodes returns the cluster size the policy was built for.
func (p *AllocationPolicy) NumNodes() int {
	return p.numNodes
}

// Hidden returns the hidden layer widths.
func (p *AllocationPolicy) Hidden() []int {
	return append([]int(nil), p.hidden...)
}

// NumParameters returns the total parameter count.
func (p *AllocationPolicy) NumParameters() int {
	return p.net.NumParameters()
}

// Parameters returns the flat parameter vector backing the policy network.
func (p *AllocationPolicy) Parameters() *mat.VecDense {
	return p.net.Parameters()
}

// SetParameters copies v into the policy's parameter vector.
func (p *AllocationPolicy) SetParameters(v *mat.VecDense) error {
	return p.net.SetParameters(v)
}

// Score returns the raw score of placing the embedded task on candidate.
func (p *AllocationPolicy) Score(candidate int, stateVec, taskEmbedding []float64) float64 {
	return p.net.Forward(encoding.PolicyInput(candidate, stateVec, taskEmbedding, p.numNodes))
}

func (p *AllocationPolicy) scores(stateVec, taskEmbedding []float64, candidates []int) []float64 {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = p.Score(c, stateVec, taskEmbedding)
	}
	return scores
}

// SelectNode returns the candidate with the highest score. Candidates must be
// sorted ascending; on ties the lowest node id wins.
func (p *AllocationPolicy) SelectNode(stateVec, taskEmbedding []float64, candidates []int) (int, error) {
	if len(candidates) == 0 {
		return 0, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "candidates",
			Value:   candidates,
			Message: "must not be empty",
		})
	}
	best := candidates[0]
	bestScore := p.Score(best, stateVec, taskEmbedding)
	for _, c := range candidates[1:] {
		if score := p.Score(c, stateVec, taskEmbedding); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, nil
}

// SampleNode draws a candidate from the softmax distribution over scores and
// returns it together with the log-probability of the draw.
func (p *AllocationPolicy) SampleNode(r *rand.Rand, stateVec, taskEmbedding []float64, candidates []int) (int, float64, error) {
	if len(candidates) == 0 {
		return 0, 0, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "candidates",
			Value:   candidates,
			Message: "must not be empty",
		})
	}
	probs := softmax(p.scores(stateVec, taskEmbedding, candidates))
	u := r.Float64()
	cumulative := 0.0
	choice := len(candidates) - 1
	for i, q := range probs {
		cumulative += q
		if u < cumulative {
			choice = i
			break
		}
	}
	return candidates[choice], math.Log(probs[choice]), nil
}

// LogProb returns the log-probability under the softmax policy of having
// chosen the given node among candidates.
func (p *AllocationPolicy) LogProb(stateVec, taskEmbedding []float64, candidates []int, chosen int) (float64, error) {
	i, err := indexOf(candidates, chosen)
	if err != nil {
		return 0, err
	}
	probs := softmax(p.scores(stateVec, taskEmbedding, candidates))
	return math.Log(probs[i]), nil
}

// AccumulateLogProbGrad adds scale times the gradient of the log-probability
// of the chosen node into gradOut, and returns that log-probability. The
// gradient follows from the softmax: for each candidate c with probability
// q_c, the score gradient is weighted by 1{c == chosen} - q_c.
func (p *AllocationPolicy) AccumulateLogProbGrad(
	stateVec, taskEmbedding []float64,
	candidates []int,
	chosen int,
	scale float64,
	gradOut *mat.VecDense,
) (float64, error) {
	i, err := indexOf(candidates, chosen)
	if err != nil {
		return 0, err
	}
	probs := softmax(p.scores(stateVec, taskEmbedding, candidates))
	for j, c := range candidates {
		coefficient := -probs[j]
		if j == i {
			coefficient += 1
		}
		input := encoding.PolicyInput(c, stateVec, taskEmbedding, p.numNodes)
		p.net.AccumulateGrad(input, scale*coefficient, gradOut)
	}
	return math.Log(probs[i]), nil
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	probs := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		probs[i] = math.Exp(s - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func indexOf(candidates []int, chosen int) (int, error) {
	for i, c := range candidates {
		if c == chosen {
			return i, nil
		}
	}
	return 0, errors.WithStack(&metiserrors.ErrInvalidArgument{
		Name:    "chosen",
		Value:   chosen,
		Message: "not among candidates",
	})
}
