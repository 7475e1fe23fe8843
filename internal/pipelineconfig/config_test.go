package pipelineconfig

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoad_RepositoryFile(t *testing.T) {
	path := "../../config/pipeline.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, data, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	assert.Equal(t, "rental_demand_daily", cfg.Meta.PipelineID)
	assert.Equal(t, []int{1, 7, 14, 28}, cfg.Features.LagDays)
	assert.Equal(t, 30, cfg.Training.HorizonDays)
	assert.Equal(t, "seasonal_naive", cfg.Training.Baseline)

	// 동일 설정 → 동일 해시
	h1, err := Hash(cfg)
	require.NoError(t, err)
	h2, _ := Hash(Default())
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2, "file mirrors the built-in defaults")
}

func TestParse_PartialOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
split:
  validation_days: 30
training:
  horizon_days: 14
`))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Split.ValidationDays)
	assert.Equal(t, 14, cfg.Training.HorizonDays)
	assert.Equal(t, Default().Features.LagDays, cfg.Features.LagDays)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte(`
training:
  horizon: 30
`))
	require.Error(t, err)
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "duplicate lag",
			mutate: func(c *Config) { c.Features.LagDays = []int{1, 7, 7} },
			field:  "features.lag_days",
		},
		{
			name:   "zero lag",
			mutate: func(c *Config) { c.Features.LagDays = []int{0, 7} },
			field:  "features.lag_days[0]",
		},
		{
			name:   "fraction out of range",
			mutate: func(c *Config) { c.Split.ValidationFraction = 1.2 },
			field:  "split.validation_fraction",
		},
		{
			name:   "unknown candidate",
			mutate: func(c *Config) { c.Training.Candidates = []string{"seasonal_naive", "lstm"} },
			field:  "training.candidates[1]",
		},
		{
			name:   "baseline not in roster",
			mutate: func(c *Config) { c.Training.Candidates = []string{"ridge_regression"} },
			field:  "training.baseline",
		},
		{
			name:   "unknown required feature",
			mutate: func(c *Config) { c.Validation.RequiredFeatures = []string{"rentals_lag_3d"} },
			field:  "validation.required_features[0]",
		},
		{
			name:   "min periods larger than window",
			mutate: func(c *Config) { c.Features.RollingMinPeriods = 10 },
			field:  "features.rolling_min_periods",
		},
		{
			name:   "bound factor below one",
			mutate: func(c *Config) { c.Training.BaselineBoundFactor = 0.9 },
			field:  "training.baseline_bound_factor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestFeatureNames(t *testing.T) {
	f := Default().Features
	assert.Equal(t, []string{
		"rentals_lag_1d", "rentals_lag_7d", "rentals_lag_14d", "rentals_lag_28d",
		"rentals_rolling_7d_avg", "rentals_rolling_28d_avg",
	}, f.FeatureNames())
	assert.Equal(t, 28, f.MaxWindow())
}
