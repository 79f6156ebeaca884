package forecast

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// BatchOptions controls how draws are spread over goroutines.
type BatchOptions struct {
	// Workers caps concurrent draws; <= 0 uses runtime.NumCPU().
	Workers int
	// Seed fixes the master random source; 0 seeds from the clock.
	Seed uint64
}

// Batch holds one forecast per draw, in input order.
type Batch struct {
	RunID uuid.UUID
	Seed  uint64
	Draws []*Draw
}

// Forecast runs ComputeForecast for every draw concurrently.
// systems, z0s: one entry per draw
// shocks: nil, or one entry per draw where a nil entry means drawn shocks
// Returns: a Batch whose Draws[i] belongs to systems[i]
//
// Each draw gets its own random source derived from the master seed, so results
// do not depend on scheduling. The first failing draw cancels the rest.
func Forecast(ctx context.Context, systems []*System, z0s []*mat.VecDense, shocks []*mat.Dense, s Settings, opts BatchOptions) (*Batch, error) {
	ndraws := len(systems)
	if ndraws == 0 {
		return nil, fmt.Errorf("%w: no draws", ErrDimensionMismatch)
	}
	if len(z0s) != ndraws {
		return nil, fmt.Errorf("%w: %d initial states for %d draws", ErrDimensionMismatch, len(z0s), ndraws)
	}
	if shocks != nil && len(shocks) != ndraws {
		return nil, fmt.Errorf("%w: %d shock matrices for %d draws", ErrDimensionMismatch, len(shocks), ndraws)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	// per-draw seeds so no random source is shared across goroutines
	master := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, ndraws)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > ndraws {
		workers = ndraws
	}

	b := &Batch{
		RunID: uuid.New(),
		Seed:  seed,
		Draws: make([]*Draw, ndraws),
	}
	log := logger.WithFields(logrus.Fields{
		"run_id":  b.RunID.String(),
		"draws":   ndraws,
		"workers": workers,
	})
	log.Debug("forecast: batch started")
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < ndraws; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var eps *mat.Dense
			if shocks != nil {
				eps = shocks[i]
			}
			src := rand.NewPCG(seeds[i], uint64(i))
			d, err := ComputeForecast(systems[i], z0s[i], eps, s, src)
			if err != nil {
				return &DrawError{Draw: i, Err: err}
			}
			b.Draws[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("forecast: batch failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.WithField("elapsed", time.Since(start).String()).Info("forecast: batch complete")
	return b, nil
}

// States returns the state paths of every draw.
func (b *Batch) States() []*mat.Dense {
	return collect(b.Draws, func(d *Draw) *mat.Dense { return d.States })
}

// Obs returns the observable paths of every draw.
func (b *Batch) Obs() []*mat.Dense {
	return collect(b.Draws, func(d *Draw) *mat.Dense { return d.Obs })
}

// Pseudo returns the pseudo-observable paths of every draw, nil entries included.
func (b *Batch) Pseudo() []*mat.Dense {
	return collect(b.Draws, func(d *Draw) *mat.Dense { return d.Pseudo })
}

// Shocks returns the realized shocks of every draw.
func (b *Batch) Shocks() []*mat.Dense {
	return collect(b.Draws, func(d *Draw) *mat.Dense { return d.Shocks })
}

func collect(draws []*Draw, pick func(*Draw) *mat.Dense) []*mat.Dense {
	out := make([]*mat.Dense, len(draws))
	for i, d := range draws {
		out[i] = pick(d)
	}
	return out
}
