// Command dsgeforecast solves a linear rational expectations model with gensys
// and simulates forecasts from the solved state space system.
//
// The model directory holds plain numeric CSV files:
//
//	gamma0.csv gamma1.csv c.csv psi.csv pi.csv   canonical form
//	zz.csv dd.csv qq.csv                         measurement equation
//	zz_pseudo.csv dd_pseudo.csv                  optional pseudo-observables
//	z0.csv                                       optional initial state
//	shocks.csv                                   optional nshocks x horizons shocks
//
// Results are written to the output directory as CSV files with one row per period.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/mat"

	"github.com/rokkuran/dsge/forecast"
	"github.com/rokkuran/dsge/gensys"
	"github.com/rokkuran/dsge/internal/config"
	"github.com/rokkuran/dsge/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "dsgeforecast:", err)
		os.Exit(1)
	}
}

// run performs the whole pipeline. There are 8 steps: parse the configuration,
// set up logging, solve the model, build the state space system, run the
// forecast draws, summarize them, compute impulse responses and write everything
// to the output directory.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// 1. Parse flags and load configuration
	fs := config.Flags("dsgeforecast")
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	path, _ := fs.GetString("config")
	cfg, err := config.Load(path, fs)
	if err != nil {
		return err
	}
	if show, _ := fs.GetBool("print-config"); show {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = stdout.Write(out)
		return err
	}

	// 2. Set up logging
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return err
	}
	gensys.SetLogger(log)
	forecast.SetLogger(log)

	settings, err := cfg.ForecastSettings()
	if err != nil {
		return err
	}

	// 3. Solve the model
	sol, err := solveModel(cfg.ModelDir, cfg.Stake)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"eu":       sol.EU,
		"unstable": sol.NumUnstable,
		"stake":    sol.Stake,
	}).Info("gensys: solved")
	if !sol.Determinate() {
		return fmt.Errorf("model is not determinate: eu = [%d %d]", sol.EU[0], sol.EU[1])
	}
	if log.IsLevelEnabled(logrus.DebugLevel) {
		PrintSolution(stdout, sol.G1, sol.C, sol.Impact, sol.EU)
	}

	// 4. Build the state space system
	sys, err := loadSystem(cfg.ModelDir, sol)
	if err != nil {
		return err
	}
	nstates, nshocks, nobs, npseudo := sys.Dims()
	z0, err := loadInitialState(cfg.ModelDir, nstates)
	if err != nil {
		return err
	}
	shocks, err := loadShocks(cfg.ModelDir, cfg.ForecastDraws)
	if err != nil {
		return err
	}

	// 5. Run forecast draws
	systems := make([]*forecast.System, cfg.ForecastDraws)
	z0s := make([]*mat.VecDense, cfg.ForecastDraws)
	for i := range systems {
		systems[i] = sys
		z0s[i] = z0
	}
	batch, err := forecast.Forecast(ctx, systems, z0s, shocks, settings, cfg.BatchOptions())
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"run_id": batch.RunID.String(),
		"seed":   batch.Seed,
		"draws":  len(batch.Draws),
	}).Info("forecast: draws complete")

	// 6. Summarize draws
	obsNames := nameSlice(cfg.Observables, nobs)
	shockNames := nameSlice(cfg.ExogenousShocks, nshocks)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", cfg.OutputDir, err)
	}
	outputs := []output{
		{"states", batch.States(), nil},
		{"obs", batch.Obs(), obsNames},
		{"shocks", batch.Shocks(), shockNames},
	}
	if settings.Pseudoobservables && npseudo > 0 {
		outputs = append(outputs, output{"pseudo", batch.Pseudo(), nil})
	}
	for _, o := range outputs {
		band, err := forecast.Bands(o.draws, cfg.ForecastBandAlpha)
		if err != nil {
			return fmt.Errorf("%s bands: %w", o.name, err)
		}
		if err := writeBand(cfg.OutputDir, o.name, band, o.names); err != nil {
			return err
		}
		if o.name == "obs" {
			PrintSeries(stdout, "Forecast mean: observables", band.Mean, o.names)
		}
	}

	// 7. Impulse responses
	if cfg.ForecastIRFHorizons > 0 {
		irfs, err := forecast.ImpulseResponses(sys, cfg.ForecastIRFHorizons)
		if err != nil {
			return err
		}
		for _, r := range irfs {
			label := fmt.Sprintf("shock%d", r.Shock+1)
			if shockNames[r.Shock] != "" {
				label = shockNames[r.Shock]
			}
			if err := WriteSeriesCSV(filepath.Join(cfg.OutputDir, "irf_"+label+"_obs.csv"), r.Obs, obsNames); err != nil {
				return err
			}
			if err := WriteSeriesCSV(filepath.Join(cfg.OutputDir, "irf_"+label+"_states.csv"), r.States, nil); err != nil {
				return err
			}
			if r.Pseudo != nil && settings.Pseudoobservables {
				if err := WriteSeriesCSV(filepath.Join(cfg.OutputDir, "irf_"+label+"_pseudo.csv"), r.Pseudo, nil); err != nil {
					return err
				}
			}
		}
		log.WithField("shocks", len(irfs)).Info("impulse responses written")
	}

	// 8. Done
	log.WithField("output_dir", cfg.OutputDir).Info("results written")
	return nil
}

// output is one summarized forecast quantity.
type output struct {
	name  string
	draws []*mat.Dense
	names []string
}

// solveModel loads the canonical form from dir and runs gensys.
func solveModel(dir string, stake float64) (*gensys.Solution, error) {
	load := func(name string) (*mat.Dense, error) {
		return LoadMatrixCSV(filepath.Join(dir, name))
	}
	gamma0, err := load("gamma0.csv")
	if err != nil {
		return nil, err
	}
	gamma1, err := load("gamma1.csv")
	if err != nil {
		return nil, err
	}
	cv, err := LoadVectorCSV(filepath.Join(dir, "c.csv"))
	if err != nil {
		return nil, err
	}
	psi, err := load("psi.csv")
	if err != nil {
		return nil, err
	}
	pi, err := load("pi.csv")
	if err != nil {
		return nil, err
	}
	c := mat.NewDense(cv.Len(), 1, cv.RawVector().Data)
	return gensys.Solve(gamma0, gamma1, c, psi, pi, stake)
}

// loadSystem pairs the gensys transition with the measurement equations in dir.
func loadSystem(dir string, sol *gensys.Solution) (*forecast.System, error) {
	tr, err := forecast.NewTransition(sol)
	if err != nil {
		return nil, err
	}
	zz, err := LoadMatrixCSV(filepath.Join(dir, "zz.csv"))
	if err != nil {
		return nil, err
	}
	dd, err := LoadVectorCSV(filepath.Join(dir, "dd.csv"))
	if err != nil {
		return nil, err
	}
	qq, err := LoadSymCSV(filepath.Join(dir, "qq.csv"))
	if err != nil {
		return nil, err
	}
	sys := &forecast.System{
		Transition:  tr,
		Measurement: forecast.Measurement{Z: zz, D: dd, Q: qq},
	}

	ok, err := optional(filepath.Join(dir, "zz_pseudo.csv"))
	if err != nil {
		return nil, err
	}
	if ok {
		pz, err := LoadMatrixCSV(filepath.Join(dir, "zz_pseudo.csv"))
		if err != nil {
			return nil, err
		}
		pd, err := LoadVectorCSV(filepath.Join(dir, "dd_pseudo.csv"))
		if err != nil {
			return nil, err
		}
		sys.Pseudo = &forecast.PseudoMeasurement{Z: pz, D: pd}
	}

	if err := sys.Validate(); err != nil {
		return nil, err
	}
	return sys, nil
}

// loadInitialState reads z0.csv, or starts from zero when it is absent.
func loadInitialState(dir string, nstates int) (*mat.VecDense, error) {
	path := filepath.Join(dir, "z0.csv")
	ok, err := optional(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return mat.NewVecDense(nstates, nil), nil
	}
	z0, err := LoadVectorCSV(path)
	if err != nil {
		return nil, err
	}
	if z0.Len() != nstates {
		return nil, fmt.Errorf("%s: %d states, model has %d", path, z0.Len(), nstates)
	}
	return z0, nil
}

// loadShocks reads shocks.csv and uses it for every draw. A nil result means
// shocks are drawn.
func loadShocks(dir string, ndraws int) ([]*mat.Dense, error) {
	path := filepath.Join(dir, "shocks.csv")
	ok, err := optional(path)
	if err != nil || !ok {
		return nil, err
	}
	eps, err := LoadMatrixCSV(path)
	if err != nil {
		return nil, err
	}
	shocks := make([]*mat.Dense, ndraws)
	for i := range shocks {
		shocks[i] = eps
	}
	return shocks, nil
}

// writeBand writes the mean and band edges of one output.
func writeBand(dir, name string, b *forecast.Band, names []string) error {
	for suffix, m := range map[string]*mat.Dense{
		"mean":  b.Mean,
		"lower": b.Lower,
		"upper": b.Upper,
	} {
		if err := WriteSeriesCSV(filepath.Join(dir, name+"_"+suffix+".csv"), m, names); err != nil {
			return err
		}
	}
	return nil
}
