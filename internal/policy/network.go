package policy

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/metisproject/metis/internal/common/metiserrors"
)

// Network is a fully connected scoring network: hidden layers with ReLU
// activations and a single linear output. All parameters live in one flat
// vector so that optimisers and checkpoints can treat the model as a single
// point in parameter space; per-layer weight matrices are views over it.
type Network struct {
	// Layer widths, input first, 1 last.
	sizes  []int
	params *mat.VecDense
	// Weight and bias views sharing the params backing array.
	weights []*mat.Dense
	biases  []*mat.VecDense
}

// NewNetwork creates a network with the given input width and hidden layer
// widths, with weights drawn from He-scaled normals using r.
func NewNetwork(inputDim int, hidden []int, r *rand.Rand) (*Network, error) {
	if inputDim < 1 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "inputDim",
			Value:   inputDim,
			Message: "must be at least 1",
		})
	}
	for _, h := range hidden {
		if h < 1 {
			return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
				Name:    "hidden",
				Value:   h,
				Message: "hidden layer widths must be at least 1",
			})
		}
	}
	sizes := append(append([]int{inputDim}, hidden...), 1)
	total := 0
	for l := 1; l < len(sizes); l++ {
		total += sizes[l]*sizes[l-1] + sizes[l]
	}
	data := make([]float64, total)
	n := &Network{
		sizes:  sizes,
		params: mat.NewVecDense(total, data),
	}
	offset := 0
	for l := 1; l < len(sizes); l++ {
		out, in := sizes[l], sizes[l-1]
		n.weights = append(n.weights, mat.NewDense(out, in, data[offset:offset+out*in]))
		offset += out * in
		n.biases = append(n.biases, mat.NewVecDense(out, data[offset:offset+out]))
		offset += out
	}
	if r != nil {
		n.initialise(r)
	}
	return n, nil
}

func (n *Network) initialise(r *rand.Rand) {
	for l, w := range n.weights {
		in := n.sizes[l]
		scale := math.Sqrt(2 / float64(in))
		rows, cols := w.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				w.Set(i, j, scale*r.NormFloat64())
			}
		}
	}
}

// InputDim returns the expected input width.
func (n *Network) InputDim() int {
	return n.sizes[0]
}

// NumParameters returns the total parameter count.
func (n *Network) NumParameters() int {
	return n.params.Len()
}

// Parameters returns the flat parameter vector. The layer views share its
// backing array, so in-place optimiser updates are reflected immediately.
func (n *Network) Parameters() *mat.VecDense {
	return n.params
}

// SetParameters copies v into the network's parameter vector.
func (n *Network) SetParameters(v *mat.VecDense) error {
	if v.Len() != n.params.Len() {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "v",
			Value:   v.Len(),
			Message: "parameter count mismatch",
		})
	}
	n.params.CopyVec(v)
	return nil
}

// Forward computes the scalar score for input x.
func (n *Network) Forward(x []float64) float64 {
	activations, _ := n.forward(x)
	return activations[len(activations)-1].AtVec(0)
}

// forward returns per-layer activations (input included) and pre-activations.
func (n *Network) forward(x []float64) ([]*mat.VecDense, []*mat.VecDense) {
	activations := make([]*mat.VecDense, len(n.sizes))
	preActivations := make([]*mat.VecDense, len(n.sizes))
	activations[0] = mat.NewVecDense(len(x), append([]float64(nil), x...))
	for l := 1; l < len(n.sizes); l++ {
		z := mat.NewVecDense(n.sizes[l], nil)
		z.MulVec(n.weights[l-1], activations[l-1])
		z.AddVec(z, n.biases[l-1])
		preActivations[l] = z
		if l == len(n.sizes)-1 {
			activations[l] = z
			continue
		}
		a := mat.NewVecDense(n.sizes[l], nil)
		for i := 0; i < z.Len(); i++ {
			a.SetVec(i, math.Max(z.AtVec(i), 0))
		}
		activations[l] = a
	}
	return activations, preActivations
}

// AccumulateGrad adds scale times the gradient of the score at x with respect to
// the parameters into gradOut, and returns the score. gradOut must have length
// NumParameters.
func (n *Network) AccumulateGrad(x []float64, scale float64, gradOut *mat.VecDense) float64 {
	activations, preActivations := n.forward(x)
	score := activations[len(activations)-1].AtVec(0)

	// Gradient views over gradOut, mirroring the parameter layout.
	gradData := gradOut.RawVector().Data
	delta := mat.NewVecDense(1, []float64{scale})
	for l := len(n.sizes) - 1; l >= 1; l-- {
		out, in := n.sizes[l], n.sizes[l-1]
		layerOffset := 0
		for k := 1; k < l; k++ {
			layerOffset += n.sizes[k]*n.sizes[k-1] + n.sizes[k]
		}
		gw := mat.NewDense(out, in, gradData[layerOffset:layerOffset+out*in])
		gb := mat.NewVecDense(out, gradData[layerOffset+out*in:layerOffset+out*in+out])

		gw.RankOne(gw, 1, delta, activations[l-1])
		gb.AddVec(gb, delta)

		if l > 1 {
			prev := mat.NewVecDense(in, nil)
			prev.MulVec(n.weights[l-1].T(), delta)
			for i := 0; i < in; i++ {
				if preActivations[l-1].AtVec(i) <= 0 {
					prev.SetVec(i, 0)
				}
			}
			delta = prev
		}
	}
	return score
}
