package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rokkuran/dsge/forecast"
	"github.com/rokkuran/dsge/gensys"
)

// ErrInvalidConfig indicates a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	ModelDir  string  `mapstructure:"model_dir" yaml:"model_dir"`
	OutputDir string  `mapstructure:"output_dir" yaml:"output_dir"`
	Stake     float64 `mapstructure:"stake" yaml:"stake"`

	ForecastHorizons          int     `mapstructure:"forecast_horizons" yaml:"forecast_horizons"`
	ForecastKillShocks        bool    `mapstructure:"forecast_kill_shocks" yaml:"forecast_kill_shocks"`
	ForecastTDistShocks       bool    `mapstructure:"forecast_tdist_shocks" yaml:"forecast_tdist_shocks"`
	ForecastTDistDFVal        float64 `mapstructure:"forecast_tdist_df_val" yaml:"forecast_tdist_df_val"`
	ForecastEnforceZLB        bool    `mapstructure:"forecast_enforce_zlb" yaml:"forecast_enforce_zlb"`
	ForecastZLBValue          float64 `mapstructure:"forecast_zlb_value" yaml:"forecast_zlb_value"`
	ForecastPseudoobservables bool    `mapstructure:"forecast_pseudoobservables" yaml:"forecast_pseudoobservables"`
	ForecastDraws             int     `mapstructure:"forecast_draws" yaml:"forecast_draws"`
	ForecastWorkers           int     `mapstructure:"forecast_workers" yaml:"forecast_workers"`
	ForecastSeed              uint64  `mapstructure:"forecast_seed" yaml:"forecast_seed"`
	ForecastBandAlpha         float64 `mapstructure:"forecast_band_alpha" yaml:"forecast_band_alpha"`
	ForecastIRFHorizons       int     `mapstructure:"forecast_irf_horizons" yaml:"forecast_irf_horizons"`

	// Observables and ExogenousShocks map symbolic names to positions. Viper
	// lowercases the names.
	Observables     map[string]int `mapstructure:"observables" yaml:"observables"`
	ExogenousShocks map[string]int `mapstructure:"exogenous_shocks" yaml:"exogenous_shocks"`
	RateObservable  string         `mapstructure:"rate_observable" yaml:"rate_observable"`
	RateShock       string         `mapstructure:"rate_shock" yaml:"rate_shock"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"model-dir":    "model_dir",
	"output-dir":   "output_dir",
	"stake":        "stake",
	"horizons":     "forecast_horizons",
	"kill-shocks":  "forecast_kill_shocks",
	"tdist-shocks": "forecast_tdist_shocks",
	"enforce-zlb":  "forecast_enforce_zlb",
	"pseudo":       "forecast_pseudoobservables",
	"draws":        "forecast_draws",
	"workers":      "forecast_workers",
	"seed":         "forecast_seed",
	"irf-horizons": "forecast_irf_horizons",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// Flags returns the command line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file (default ./dsge.yaml if present)")
	fs.Bool("print-config", false, "print the effective configuration and exit")
	fs.String("model-dir", "", "directory holding gamma0.csv, gamma1.csv, c.csv, psi.csv, pi.csv and the measurement matrices")
	fs.String("output-dir", "", "directory for forecast CSV output")
	fs.Float64("stake", 0, "stability cutoff for gensys (0 picks one automatically)")
	fs.Int("horizons", 0, "forecast horizon in periods")
	fs.Bool("kill-shocks", false, "run a deterministic forecast")
	fs.Bool("tdist-shocks", false, "draw Student-t shocks")
	fs.Bool("enforce-zlb", false, "enforce the zero lower bound on the nominal rate")
	fs.Bool("pseudo", false, "compute pseudo-observables")
	fs.Int("draws", 0, "number of forecast draws")
	fs.Int("workers", 0, "concurrent draws (0 uses every CPU)")
	fs.Uint64("seed", 0, "master random seed (0 seeds from the clock)")
	fs.Int("irf-horizons", 0, "impulse response horizon (0 skips impulse responses)")
	fs.String("log-level", "", "log level")
	fs.String("log-format", "", "log format: text or json")
	return fs
}

func setDefaults(v *viper.Viper) {
	d := forecast.DefaultSettings()

	v.SetDefault("model_dir", "model")
	v.SetDefault("output_dir", "output")
	v.SetDefault("stake", gensys.DefaultStake)

	v.SetDefault("forecast_horizons", d.Horizons)
	v.SetDefault("forecast_kill_shocks", false)
	v.SetDefault("forecast_tdist_shocks", false)
	v.SetDefault("forecast_tdist_df_val", d.TDistDF)
	v.SetDefault("forecast_enforce_zlb", false)
	v.SetDefault("forecast_zlb_value", d.ZLBValue)
	v.SetDefault("forecast_pseudoobservables", false)
	v.SetDefault("forecast_draws", 1)
	v.SetDefault("forecast_workers", 0)
	v.SetDefault("forecast_seed", 0)
	v.SetDefault("forecast_band_alpha", 0.1)
	v.SetDefault("forecast_irf_horizons", 0)

	v.SetDefault("observables", map[string]int{})
	v.SetDefault("exogenous_shocks", map[string]int{})
	v.SetDefault("rate_observable", "obs_nominalrate")
	v.SetDefault("rate_shock", "rm_sh")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then the config file, then DSGE_ environment variables,
// then any flags in fs that were set on the command line. An empty path looks
// for dsge.yaml in the working directory and tolerates its absence.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DSGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("dsge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read dsge.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and that the rate names resolve when the zero
// lower bound is enforced.
func (c *Config) Validate() error {
	switch {
	case c.ForecastHorizons <= 0:
		return fmt.Errorf("%w: forecast_horizons must be > 0, got %d", ErrInvalidConfig, c.ForecastHorizons)
	case c.ForecastTDistShocks && c.ForecastTDistDFVal <= 0:
		return fmt.Errorf("%w: forecast_tdist_df_val must be > 0, got %v", ErrInvalidConfig, c.ForecastTDistDFVal)
	case math.IsNaN(c.ForecastZLBValue) || math.IsInf(c.ForecastZLBValue, 0):
		return fmt.Errorf("%w: forecast_zlb_value must be finite", ErrInvalidConfig)
	case c.ForecastDraws <= 0:
		return fmt.Errorf("%w: forecast_draws must be > 0, got %d", ErrInvalidConfig, c.ForecastDraws)
	case c.ForecastWorkers < 0:
		return fmt.Errorf("%w: forecast_workers must be >= 0, got %d", ErrInvalidConfig, c.ForecastWorkers)
	case c.ForecastBandAlpha <= 0 || c.ForecastBandAlpha >= 1:
		return fmt.Errorf("%w: forecast_band_alpha must be in (0, 1), got %v", ErrInvalidConfig, c.ForecastBandAlpha)
	case c.ForecastIRFHorizons < 0:
		return fmt.Errorf("%w: forecast_irf_horizons must be >= 0, got %d", ErrInvalidConfig, c.ForecastIRFHorizons)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.ForecastEnforceZLB {
		if _, err := c.rateIndices(); err != nil {
			return err
		}
	}
	return nil
}

type rateIndex struct{ obs, shock int }

func (c *Config) rateIndices() (rateIndex, error) {
	obs, ok := c.Observables[strings.ToLower(c.RateObservable)]
	if !ok {
		return rateIndex{}, fmt.Errorf("%w: observable %q not in observables", ErrInvalidConfig, c.RateObservable)
	}
	shock, ok := c.ExogenousShocks[strings.ToLower(c.RateShock)]
	if !ok {
		return rateIndex{}, fmt.Errorf("%w: shock %q not in exogenous_shocks", ErrInvalidConfig, c.RateShock)
	}
	return rateIndex{obs: obs, shock: shock}, nil
}

// ForecastSettings resolves the configuration into forecast settings.
func (c *Config) ForecastSettings() (forecast.Settings, error) {
	s := forecast.Settings{
		Horizons:          c.ForecastHorizons,
		KillShocks:        c.ForecastKillShocks,
		TDistShocks:       c.ForecastTDistShocks,
		TDistDF:           c.ForecastTDistDFVal,
		EnforceZLB:        c.ForecastEnforceZLB,
		ZLBValue:          c.ForecastZLBValue,
		Pseudoobservables: c.ForecastPseudoobservables,
	}
	if c.ForecastEnforceZLB {
		idx, err := c.rateIndices()
		if err != nil {
			return forecast.Settings{}, err
		}
		s.RateIndex, s.RateShockIndex = idx.obs, idx.shock
	}
	return s, nil
}

// BatchOptions returns the options for forecast.Forecast.
func (c *Config) BatchOptions() forecast.BatchOptions {
	return forecast.BatchOptions{Workers: c.ForecastWorkers, Seed: c.ForecastSeed}
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return out, nil
}
