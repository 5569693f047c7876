package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/simulation/encoding"
)

const checkpointVersion = 1

// Checkpoint is the serialised form of an AllocationPolicy. It carries the
// encoding bounds in force when the policy was trained, so that a policy is
// never silently loaded into a build that normalises features differently.
type Checkpoint struct {
	Version    int             `yaml:"version"`
	NumNodes   int             `yaml:"numNodes"`
	Hidden     []int           `yaml:"hidden"`
	Bounds     encoding.Bounds `yaml:"bounds"`
	Parameters []float64       `yaml:"parameters"`
}

// Save writes the policy to path as a yaml checkpoint. The file is written to
// a temporary sibling first and renamed into place.
func (p *AllocationPolicy) Save(path string) error {
	checkpoint := &Checkpoint{
		Version:    checkpointVersion,
		NumNodes:   p.numNodes,
		Hidden:     p.Hidden(),
		Bounds:     encoding.CurrentBounds(),
		Parameters: append([]float64(nil), p.net.Parameters().RawVector().Data...),
	}
	data, err := yaml.Marshal(checkpoint)
	if err != nil {
		return errors.WithStack(err)
	}
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp", filepath.Base(path)))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp, path))
}

// Load reads a checkpoint from path and reconstructs the policy. It fails
// with ErrCheckpointMismatch if the checkpoint version or encoding bounds do
// not match the running build.
func Load(path string) (*AllocationPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	checkpoint := &Checkpoint{}
	if err := yaml.Unmarshal(data, checkpoint); err != nil {
		return nil, errors.WithStack(err)
	}
	return FromCheckpoint(checkpoint)
}

// FromCheckpoint reconstructs a policy from an in-memory checkpoint.
func FromCheckpoint(checkpoint *Checkpoint) (*AllocationPolicy, error) {
	if checkpoint.Version != checkpointVersion {
		return nil, errors.WithStack(&metiserrors.ErrCheckpointMismatch{
			Field:    "version",
			Expected: checkpointVersion,
			Actual:   checkpoint.Version,
		})
	}
	current := encoding.CurrentBounds()
	if !checkpoint.Bounds.Equal(current) {
		return nil, errors.WithStack(&metiserrors.ErrCheckpointMismatch{
			Field:    "bounds",
			Expected: current,
			Actual:   checkpoint.Bounds,
		})
	}
	p, err := New(checkpoint.NumNodes, checkpoint.Hidden, nil)
	if err != nil {
		return nil, err
	}
	if len(checkpoint.Parameters) != p.NumParameters() {
		return nil, errors.WithStack(&metiserrors.ErrCheckpointMismatch{
			Field:    "parameters",
			Expected: p.NumParameters(),
			Actual:   len(checkpoint.Parameters),
		})
	}
	if err := p.SetParameters(mat.NewVecDense(len(checkpoint.Parameters), checkpoint.Parameters)); err != nil {
		return nil, err
	}
	return p, nil
}
