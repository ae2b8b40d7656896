package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlp_lib/nn"
)

func TestParseArchitecture(t *testing.T) {
	arch, err := ParseArchitecture("784 30 10")
	require.NoError(t, err)
	assert.Equal(t, []int{784, 30, 10}, arch)

	arch, err = ParseArchitecture("2,4, 1")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 1}, arch)
	assert.Equal(t, "2 4 1", FormatArchitecture(arch))

	_, err = ParseArchitecture("784 x 10")
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, ValidateConfig(DefaultConfig()))

	mutations := map[string]func(c *Config){
		"architecture":   func(c *Config) { c.Architecture = []int{784} },
		"zero layer":     func(c *Config) { c.Architecture = []int{784, 0, 10} },
		"epochs":         func(c *Config) { c.Epochs = 0 },
		"batch size":     func(c *Config) { c.BatchSize = -1 },
		"gamma":          func(c *Config) { c.Gamma = 0 },
		"momentum":       func(c *Config) { c.Momentum = 1 },
		"momentum scope": func(c *Config) { c.MomentumScope = "sometimes" },
		"distortion":     func(c *Config) { c.DistortEvery = -2 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(c)
			err := ValidateConfig(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, nn.ErrConfig), "%v", err)
		})
	}
}
