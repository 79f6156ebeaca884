package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleYAML = `
model_dir: fixtures/nkpc
forecast_horizons: 12
forecast_enforce_zlb: true
forecast_zlb_value: 0.05
forecast_draws: 200
observables:
  obs_gdp: 0
  obs_nominalrate: 2
exogenous_shocks:
  b_sh: 0
  rm_sh: 3
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dsge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.ForecastHorizons)
	assert.InDelta(t, 0.0325, cfg.ForecastZLBValue, 1e-15)
	assert.Equal(t, 15.0, cfg.ForecastTDistDFVal)
	assert.Equal(t, 1, cfg.ForecastDraws)
	assert.Equal(t, "obs_nominalrate", cfg.RateObservable)
	assert.Equal(t, "rm_sh", cfg.RateShock)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "fixtures/nkpc", cfg.ModelDir)
	assert.Equal(t, 12, cfg.ForecastHorizons)
	assert.Equal(t, 200, cfg.ForecastDraws)
	assert.Equal(t, "json", cfg.Log.Format)

	s, err := cfg.ForecastSettings()
	require.NoError(t, err)
	assert.True(t, s.EnforceZLB)
	assert.Equal(t, 0.05, s.ZLBValue)
	assert.Equal(t, 2, s.RateIndex)
	assert.Equal(t, 3, s.RateShockIndex)
	assert.Equal(t, 12, s.Horizons)
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("DSGE_FORECAST_HORIZONS", "8")
	t.Setenv("DSGE_LOG_LEVEL", "warn")

	fs := Flags("test")
	require.NoError(t, fs.Parse([]string{"--draws=5", "--seed", "77", "--kill-shocks"}))

	cfg, err := Load(writeConfig(t, sampleYAML), fs)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.ForecastHorizons, "env overrides file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5, cfg.ForecastDraws, "flag overrides file")
	assert.Equal(t, uint64(77), cfg.ForecastSeed)
	assert.True(t, cfg.ForecastKillShocks)
	// Unset flags leave the file value alone.
	assert.True(t, cfg.ForecastEnforceZLB)

	opts := cfg.BatchOptions()
	assert.Equal(t, uint64(77), opts.Seed)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"horizons", "forecast_horizons: 0\n"},
		{"draws", "forecast_draws: -1\n"},
		{"alpha", "forecast_band_alpha: 1.5\n"},
		{"format", "log:\n  format: xml\n"},
		{"tdist df", "forecast_tdist_shocks: true\nforecast_tdist_df_val: 0\n"},
		{"missing rate", "forecast_enforce_zlb: true\nobservables:\n  obs_gdp: 0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body), nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, 12, back["forecast_horizons"])
	assert.Equal(t, "fixtures/nkpc", back["model_dir"])
}
