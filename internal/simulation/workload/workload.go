package workload

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/metisproject/metis/internal/common/metiserrors"
)

// Type identifies one of the four parametric workload families.
type Type int

const (
	MatMul Type = iota
	PrimeCalc
	Sort
	FileIO
)

// NumTypes is the number of workload families; also the width of the one-hot type encoding.
const NumTypes = 4

func (t Type) String() string {
	switch t {
	case MatMul:
		return "matmul"
	case PrimeCalc:
		return "primes"
	case Sort:
		return "sort"
	case FileIO:
		return "fileio"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// TypeFromString parses a task type name as it appears in workload specs.
func TypeFromString(s string) (Type, error) {
	switch s {
	case "matmul":
		return MatMul, nil
	case "primes":
		return PrimeCalc, nil
	case "sort":
		return Sort, nil
	case "fileio":
		return FileIO, nil
	default:
		return 0, errors.WithStack(&metiserrors.ErrUnknownTaskType{Type: s})
	}
}

// ParameterRange is the allowed range of the complexity parameter for a task type.
// These bounds double as the normalization constants of the task embedding and must
// stay fixed across training and inference.
type ParameterRange struct {
	Min float64
	Max float64
}

// ParameterRangeForType returns the parameter range for t.
// MatMul: matrix size, PrimeCalc: prime search bound, Sort: array length, FileIO: operation count.
func ParameterRangeForType(t Type) (ParameterRange, error) {
	switch t {
	case MatMul:
		return ParameterRange{Min: 250, Max: 5000}, nil
	case PrimeCalc:
		return ParameterRange{Min: 240000, Max: 4800000}, nil
	case Sort:
		return ParameterRange{Min: 500000, Max: 10000000}, nil
	case FileIO:
		return ParameterRange{Min: 100000, Max: 2000000}, nil
	default:
		return ParameterRange{}, errors.WithStack(&metiserrors.ErrUnknownTaskType{Type: t.String()})
	}
}

// Task is a single sampled workload instance. Immutable once created.
type Task struct {
	Id             string
	Type           Type
	Parameter      float64
	SubmissionTime float64
}

// Submit creates a task of the given type and complexity parameter.
func Submit(t Type, parameter float64) (*Task, error) {
	if _, err := ParameterRangeForType(t); err != nil {
		return nil, err
	}
	if parameter <= 0 {
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "parameter",
			Value:   parameter,
			Message: "must be positive",
		})
	}
	return &Task{
		Id:        uuid.NewString(),
		Type:      t,
		Parameter: parameter,
	}, nil
}

// WithSubmissionTime returns a copy of task stamped with the given submission time.
func (task *Task) WithSubmissionTime(t float64) *Task {
	rv := *task
	rv.SubmissionTime = t
	return &rv
}
