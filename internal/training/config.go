// Package training implements proximal policy optimisation of an allocation
// policy against the cluster simulator.
package training

import (
	"fmt"
	"path/filepath"
	"strings"

	zglob "github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/metisproject/metis/internal/common/metiserrors"
	"github.com/metisproject/metis/internal/common/optimisation"
	"github.com/metisproject/metis/internal/common/optimisation/adam"
	"github.com/metisproject/metis/internal/common/optimisation/descent"
	"github.com/metisproject/metis/internal/common/optimisation/nesterov"
)

const (
	OptimiserAdam     = "adam"
	OptimiserDescent  = "descent"
	OptimiserNesterov = "nesterov"

	// Only the final step of an episode carries reward.
	RewardTerminalMakespan = "terminal"
	// Each placement is rewarded with the negated completion time it adds.
	RewardPerStepCompletion = "per-step"
)

// Config controls a training run.
type Config struct {
	Name string
	// Base seed; episode e of update u draws from Seed + u*EpisodesPerUpdate + e.
	Seed int64
	// Standard deviation of the log-normal duration noise.
	NoiseSigma float64

	NumUpdates        int
	EpisodesPerUpdate int
	EpochsPerUpdate   int
	// Simulated-time horizon: an episode stops placing tasks once the
	// simulator clock reaches this and drains what is already running.
	// 0 means no limit.
	TimeHorizon float64
	// Additional cap on placements per episode; 0 means no limit.
	MaxPlacements int

	ClipEpsilon  float64
	Discount     float64
	LearningRate float64
	Momentum     float64
	Optimiser    string
	RewardMode   string

	Hidden []int

	// Number of episodes simulated concurrently; 0 means EpisodesPerUpdate.
	Parallelism int

	CheckpointDir string
	// Save a checkpoint every this many updates; 0 disables autosave.
	CheckpointInterval int
}

// DefaultConfig returns the values used when a config file leaves them unset.
func DefaultConfig() Config {
	return Config{
		Seed:               0,
		NoiseSigma:         0.1,
		NumUpdates:         100,
		EpisodesPerUpdate:  16,
		EpochsPerUpdate:    4,
		ClipEpsilon:        0.2,
		Discount:           0.99,
		LearningRate:       3e-4,
		Momentum:           0.9,
		Optimiser:          OptimiserAdam,
		RewardMode:         RewardTerminalMakespan,
		Hidden:             []int{128, 128},
		CheckpointInterval: 10,
	}
}

func ConfigsFromPattern(pattern string) ([]Config, error) {
	filePaths, err := zglob.Glob(pattern)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	rv := make([]Config, len(filePaths))
	for i, filePath := range filePaths {
		config, err := ConfigFromFilePath(filePath)
		if err != nil {
			return nil, err
		}
		rv[i] = config
	}
	return rv, nil
}

func ConfigFromFilePath(filePath string) (Config, error) {
	rv := DefaultConfig()
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		err = errors.WithMessagef(err, "failed to read in training config %s", filePath)
		return rv, errors.WithStack(err)
	}
	if err := v.Unmarshal(&rv); err != nil {
		err = errors.WithMessagef(err, "failed to unmarshal training config %s", filePath)
		return rv, errors.WithStack(err)
	}
	if rv.Name == "" {
		fileName := filepath.Base(filePath)
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName))
		rv.Name = fileName
	}
	if err := rv.Validate(); err != nil {
		return rv, err
	}
	return rv, nil
}

func (c *Config) Validate() error {
	for name, value := range map[string]int{
		"numUpdates":        c.NumUpdates,
		"episodesPerUpdate": c.EpisodesPerUpdate,
		"epochsPerUpdate":   c.EpochsPerUpdate,
	} {
		if value < 1 {
			return errors.WithStack(&metiserrors.ErrInvalidArgument{
				Name:    name,
				Value:   value,
				Message: "must be at least 1",
			})
		}
	}
	if c.TimeHorizon < 0 {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "timeHorizon",
			Value:   c.TimeHorizon,
			Message: "must not be negative",
		})
	}
	if c.MaxPlacements < 0 {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "maxPlacements",
			Value:   c.MaxPlacements,
			Message: "must not be negative",
		})
	}
	if c.ClipEpsilon <= 0 || c.ClipEpsilon >= 1 {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "clipEpsilon",
			Value:   c.ClipEpsilon,
			Message: "must be in (0, 1)",
		})
	}
	if c.Discount <= 0 || c.Discount > 1 {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "discount",
			Value:   c.Discount,
			Message: "must be in (0, 1]",
		})
	}
	if c.LearningRate <= 0 {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "learningRate",
			Value:   c.LearningRate,
			Message: "must be positive",
		})
	}
	if c.RewardMode != RewardTerminalMakespan && c.RewardMode != RewardPerStepCompletion {
		return errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "rewardMode",
			Value:   c.RewardMode,
			Message: fmt.Sprintf("must be %q or %q", RewardTerminalMakespan, RewardPerStepCompletion),
		})
	}
	if _, err := c.NewOptimiser(); err != nil {
		return err
	}
	return nil
}

// NewOptimiser instantiates the optimiser named by the config.
func (c *Config) NewOptimiser() (optimisation.Optimiser, error) {
	switch c.Optimiser {
	case OptimiserAdam:
		return adam.New(c.LearningRate, 0.9, 0.999)
	case OptimiserDescent:
		return descent.New(c.LearningRate)
	case OptimiserNesterov:
		return nesterov.New(c.LearningRate, c.Momentum)
	default:
		return nil, errors.WithStack(&metiserrors.ErrInvalidArgument{
			Name:    "optimiser",
			Value:   c.Optimiser,
			Message: fmt.Sprintf("must be %q, %q or %q", OptimiserAdam, OptimiserDescent, OptimiserNesterov),
		})
	}
}

func (c *Config) parallelism() int {
	if c.Parallelism < 1 {
		return c.EpisodesPerUpdate
	}
	return c.Parallelism
}
