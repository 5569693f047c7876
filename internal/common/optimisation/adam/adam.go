package adam

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/metisproject/metis/internal/common/linalg"
	"github.com/metisproject/metis/internal/common/metiserrors"
)

// Adam optimiser; see the following link for details:
// https://fluxml.ai/Flux.jl/stable/training/optimisers/
type Adam struct {
	eta   float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int
	mom   *mat.VecDense
	vel   *mat.VecDense
}

func New(eta, beta1, beta2 float64) (*Adam, error) {
	if eta < 0 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "eta",
			Value:   eta,
			Message: fmt.Sprintf("outside allowed range [0, Inf)"),
		})
	}
	if beta1 < 0 || beta1 >= 1 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "beta1",
			Value:   beta1,
			Message: fmt.Sprintf("outside allowed range [0, 1)"),
		})
	}
	if beta2 < 0 || beta2 >= 1 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "beta2",
			Value:   beta2,
			Message: fmt.Sprintf("outside allowed range [0, 1)"),
		})
	}
	return &Adam{eta: eta, beta1: beta1, beta2: beta2, eps: 1e-8}, nil
}

func MustNew(eta, beta1, beta2 float64) *Adam {
	opt, err := New(eta, beta1, beta2)
	if err != nil {
		panic(err)
	}
	return opt
}

func (o *Adam) Update(out, p *mat.VecDense, g mat.Vector) *mat.VecDense {
	o.t++
	mc := 1 - math.Pow(o.beta1, float64(o.t))
	vc := 1 - math.Pow(o.beta2, float64(o.t))
	for i := 0; i < g.Len(); i++ {
		gi := g.AtVec(i)
		m := o.beta1*o.mom.AtVec(i) + (1-o.beta1)*gi
		v := o.beta2*o.vel.AtVec(i) + (1-o.beta2)*gi*gi
		o.mom.SetVec(i, m)
		o.vel.SetVec(i, v)
		out.SetVec(i, p.AtVec(i)-o.eta*(m/mc)/(math.Sqrt(v/vc)+o.eps))
	}
	return p
}

func (o *Adam) Extend(n int) {
	o.mom = linalg.ExtendVecDense(o.mom, n)
	o.vel = linalg.ExtendVecDense(o.vel, n)
}
