package training

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metisproject/metis/internal/common/metiserrors"
)

func TestConfigFromFilePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
seed: 7
numUpdates: 3
episodesPerUpdate: 4
optimiser: descent
learningRate: 0.001
rewardMode: per-step
hidden: [32]
`), 0o644))

	config, err := ConfigFromFilePath(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", config.Name)
	assert.Equal(t, int64(7), config.Seed)
	assert.Equal(t, 3, config.NumUpdates)
	assert.Equal(t, 4, config.EpisodesPerUpdate)
	assert.Equal(t, OptimiserDescent, config.Optimiser)
	assert.Equal(t, RewardPerStepCompletion, config.RewardMode)
	assert.Equal(t, []int{32}, config.Hidden)

	// Unset keys keep their defaults.
	defaults := DefaultConfig()
	assert.Equal(t, defaults.ClipEpsilon, config.ClipEpsilon)
	assert.Equal(t, defaults.Discount, config.Discount)
	assert.Equal(t, defaults.EpochsPerUpdate, config.EpochsPerUpdate)
}

func TestConfigValidate(t *testing.T) {
	tests := map[string]func(c *Config){
		"zero updates":           func(c *Config) { c.NumUpdates = 0 },
		"zero episodes":          func(c *Config) { c.EpisodesPerUpdate = 0 },
		"zero epochs":            func(c *Config) { c.EpochsPerUpdate = 0 },
		"negative time horizon":  func(c *Config) { c.TimeHorizon = -1 },
		"negative placement cap": func(c *Config) { c.MaxPlacements = -1 },
		"clip too large":         func(c *Config) { c.ClipEpsilon = 1.0 },
		"zero discount":          func(c *Config) { c.Discount = 0 },
		"discount above one":     func(c *Config) { c.Discount = 1.1 },
		"zero learning rate":     func(c *Config) { c.LearningRate = 0 },
		"unknown reward":         func(c *Config) { c.RewardMode = "average" },
		"unknown optimiser":      func(c *Config) { c.Optimiser = "lbfgs" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			mutate(&config)
			err := config.Validate()
			var invalid *metiserrors.ErrInvalidArgument
			assert.ErrorAs(t, err, &invalid)
		})
	}

	config := DefaultConfig()
	assert.NoError(t, config.Validate())
}
