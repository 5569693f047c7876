package workload

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiserrors"
)

// Catalog samples task instances from the four workload families.
// All randomness is drawn from the supplied generator so that episodes are reproducible:
// a catalog created with the same seed produces the same task sequence.
type Catalog struct {
	rand *rand.Rand
	// Cumulative sampling weights indexed by Type.
	cumulative [NumTypes]float64
}

// NewCatalog returns a catalog sampling types according to weights, or uniformly if weights is nil.
func NewCatalog(r *rand.Rand, weights map[Type]float64) (*Catalog, error) {
	c := &Catalog{rand: r}
	if weights == nil {
		for i := range c.cumulative {
			c.cumulative[i] = float64(i+1) / NumTypes
		}
		return c, nil
	}
	total := 0.0
	for t, w := range weights {
		if t < 0 || t >= NumTypes {
			return nil, errors.WithStack(&metiserrors.ErrUnknownTaskType{Type: t.String()})
		}
		if w < 0 {
			return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
				Name:    "weights",
				Value:   w,
				Message: "type weights must be non-negative",
			})
		}
		total += w
	}
	if total <= 0 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "weights",
			Value:   total,
			Message: "type weights must sum to a positive value",
		})
	}
	acc := 0.0
	for t := Type(0); t < NumTypes; t++ {
		acc += weights[t] / total
		c.cumulative[t] = acc
	}
	return c, nil
}

// Sample draws one task: a type from the configured distribution, then a parameter
// uniform over the type's range.
func (c *Catalog) Sample() *Task {
	u := c.rand.Float64()
	t := Type(NumTypes - 1)
	for i := Type(0); i < NumTypes; i++ {
		if u < c.cumulative[i] {
			t = i
			break
		}
	}
	r, err := ParameterRangeForType(t)
	if err != nil {
		// Unreachable for types produced above.
		panic(err)
	}
	parameter := r.Min + c.rand.Float64()*(r.Max-r.Min)
	task, err := Submit(t, parameter)
	if err != nil {
		panic(err)
	}
	return task
}

// SampleN draws n tasks.
func (c *Catalog) SampleN(n int) []*Task {
	rv := make([]*Task, n)
	for i := range rv {
		rv[i] = c.Sample()
	}
	return rv
}
