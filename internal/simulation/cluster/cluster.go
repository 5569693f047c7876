package cluster

import (
	"fmt"
	"path/filepath"
	"strings"

	zglob "github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/metisproject/metis/internal/common/metiserrors"
)

// Architecture of a simulated node.
type Architecture string

const (
	ARM Architecture = "arm"
	X86 Architecture = "x86"
)

// NodeProfile is the static hardware description of one node. Heterogeneity lives
// here; the encoded cluster state has a fixed per-node width regardless of profile.
type NodeProfile struct {
	Id           int
	Architecture Architecture
	// Relative compute capacity; 1.0 is the reference node.
	CpuCapacity float64
	// Relative memory bandwidth.
	MemBandwidth float64
	// Relative I/O bandwidth.
	IoBandwidth float64
}

// ClusterSpec describes the node fleet for a simulation run.
type ClusterSpec struct {
	Name  string
	Nodes []*NodeProfile
}

func ClusterSpecsFromPattern(pattern string) ([]*ClusterSpec, error) {
	filePaths, err := zglob.Glob(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ClusterSpecsFromFilePaths(filePaths)
}

func ClusterSpecsFromFilePaths(filePaths []string) ([]*ClusterSpec, error) {
	rv := make([]*ClusterSpec, len(filePaths))
	for i, filePath := range filePaths {
		clusterSpec, err := ClusterSpecFromFilePath(filePath)
		if err != nil {
			return nil, err
		}
		rv[i] = clusterSpec
	}
	return rv, nil
}

func ClusterSpecFromFilePath(filePath string) (*ClusterSpec, error) {
	rv := &ClusterSpec{}
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		err = errors.WithMessagef(err, "failed to read in ClusterSpec %s", filePath)
		return nil, errors.WithStack(err)
	}
	if err := v.Unmarshal(rv); err != nil {
		err = errors.WithMessagef(err, "failed to unmarshal ClusterSpec %s", filePath)
		return nil, errors.WithStack(err)
	}

	// If no cluster name is provided, set it to be the filename.
	if rv.Name == "" {
		fileName := filepath.Base(filePath)
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		rv.Name = fileName
	}
	initialiseClusterSpec(rv)

	if err := rv.Validate(); err != nil {
		return nil, err
	}
	return rv, nil
}

// Node ids index into one-hot encodings, so assign them positionally when unset.
func initialiseClusterSpec(clusterSpec *ClusterSpec) {
	for i, node := range clusterSpec.Nodes {
		node.Id = i
		if node.Architecture == "" {
			node.Architecture = X86
		}
		if node.CpuCapacity == 0 {
			node.CpuCapacity = 1.0
		}
		if node.MemBandwidth == 0 {
			node.MemBandwidth = 1.0
		}
		if node.IoBandwidth == 0 {
			node.IoBandwidth = 1.0
		}
	}
}

// Validate checks that the spec describes a non-empty cluster with positive capacities.
func (spec *ClusterSpec) Validate() error {
	if len(spec.Nodes) == 0 {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "nodes",
			Value:   0,
			Message: "cluster must contain at least one node",
		})
	}
	for _, node := range spec.Nodes {
		if node.Architecture != ARM && node.Architecture != X86 {
			return errors.WithStack(&metiserrors.ErrInvalidArgument{
				Name:    "architecture",
				Value:   node.Architecture,
				Message: fmt.Sprintf("node %d: must be %q or %q", node.Id, ARM, X86),
			})
		}
		if node.CpuCapacity <= 0 || node.MemBandwidth <= 0 || node.IoBandwidth <= 0 {
			return errors.WithStack(&metiserrors.ErrInvalidArgument{
				Name:    "capacity",
				Value:   node,
				Message: fmt.Sprintf("node %d: all capacities must be positive", node.Id),
			})
		}
	}
	return nil
}
