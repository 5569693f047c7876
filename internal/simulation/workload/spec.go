package workload

import (
	"math/rand"
	"path/filepath"
	"strings"

	zglob "github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// WorkloadSpec describes the task queue for a set of simulated episodes.
// Either an explicit task list or a sampled workload (numTasks plus optional
// per-type weights) may be given; explicit tasks take precedence.
type WorkloadSpec struct {
	Name string
	// Seed for task sampling. Episode i uses Seed+i so that parallel episodes differ
	// but the whole run is reproducible.
	Seed int64
	// Number of tasks to sample per episode; ignored if Tasks is non-empty.
	NumTasks int
	// Sampling weight per task type name; uniform if empty.
	TypeWeights map[string]float64
	// Explicit task queue, identical for every episode.
	Tasks []TaskSpec
}

// TaskSpec is one fixed task in a workload spec.
type TaskSpec struct {
	Type      string
	Parameter float64
}

func WorkloadsFromPattern(pattern string) ([]*WorkloadSpec, error) {
	filePaths, err := zglob.Glob(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return WorkloadSpecsFromFilePaths(filePaths)
}

func WorkloadSpecsFromFilePaths(filePaths []string) ([]*WorkloadSpec, error) {
	rv := make([]*WorkloadSpec, len(filePaths))
	for i, filePath := range filePaths {
		workloadSpec, err := WorkloadSpecFromFilePath(filePath)
		if err != nil {
			return nil, err
		}
		rv[i] = workloadSpec
	}
	return rv, nil
}

func WorkloadSpecFromFilePath(filePath string) (*WorkloadSpec, error) {
	rv := &WorkloadSpec{}
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		err = errors.WithMessagef(err, "failed to read in WorkloadSpec %s", filePath)
		return nil, errors.WithStack(err)
	}
	if err := v.Unmarshal(rv); err != nil {
		err = errors.WithMessagef(err, "failed to unmarshal WorkloadSpec %s", filePath)
		return nil, errors.WithStack(err)
	}

	// If no test name is provided, set it to be the filename.
	if rv.Name == "" {
		fileName := filepath.Base(filePath)
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		rv.Name = fileName
	}

	if err := rv.Validate(); err != nil {
		return nil, err
	}
	return rv, nil
}

// Validate checks that all task type names in the spec are known and parameters positive.
func (spec *WorkloadSpec) Validate() error {
	for name := range spec.TypeWeights {
		if _, err := TypeFromString(name); err != nil {
			return err
		}
	}
	for _, taskSpec := range spec.Tasks {
		t, err := TypeFromString(taskSpec.Type)
		if err != nil {
			return err
		}
		if _, err := Submit(t, taskSpec.Parameter); err != nil {
			return err
		}
	}
	return nil
}

// Queue materialises the task queue for one episode. episode offsets the sampling
// seed so that distinct episodes see distinct, but reproducible, queues.
func (spec *WorkloadSpec) Queue(episode int) ([]*Task, error) {
	if len(spec.Tasks) > 0 {
		rv := make([]*Task, len(spec.Tasks))
		for i, taskSpec := range spec.Tasks {
			t, err := TypeFromString(taskSpec.Type)
			if err != nil {
				return nil, err
			}
			task, err := Submit(t, taskSpec.Parameter)
			if err != nil {
				return nil, err
			}
			rv[i] = task
		}
		return rv, nil
	}

	var weights map[Type]float64
	if len(spec.TypeWeights) > 0 {
		weights = make(map[Type]float64, len(spec.TypeWeights))
		for name, w := range spec.TypeWeights {
			t, err := TypeFromString(name)
			if err != nil {
				return nil, err
			}
			weights[t] = w
		}
	}
	catalog, err := NewCatalog(rand.New(rand.NewSource(spec.Seed+int64(episode))), weights)
	if err != nil {
		return nil, err
	}
	return catalog.SampleN(spec.NumTasks), nil
}
