package forecast

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Response is the reaction to one shock. Each matrix is variables x horizon.
type Response struct {
	Shock  int
	States *mat.Dense
	Obs    *mat.Dense
	Pseudo *mat.Dense
}

// ImpulseResponses computes the response of states, observables and
// pseudo-observables to a one standard deviation shock in period 1, for every shock.
// sys: state space system
// horizon: number of periods to compute
// Returns: one Response per shock, indexed by shock
//
// Constants are dropped: the paths are deviations from the no-shock path.
func ImpulseResponses(sys *System, horizon int) ([]*Response, error) {
	if sys == nil {
		return nil, fmt.Errorf("%w: system is nil", ErrDimensionMismatch)
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be > 0, got %d", ErrInvalidSettings, horizon)
	}

	nstates, nshocks, _, _ := sys.Dims()
	tr, m := sys.Transition, sys.Measurement

	out := make([]*Response, nshocks)
	for sh := 0; sh < nshocks; sh++ {
		states := mat.NewDense(nstates, horizon, nil)

		// z_1 = R·e_sh·sqrt(Q_sh,sh), then z_t = T·z_{t-1}
		z := mat.NewVecDense(nstates, nil)
		z.ScaleVec(math.Sqrt(math.Max(m.Q.At(sh, sh), 0)), tr.R.ColView(sh))
		states.SetCol(0, z.RawVector().Data)

		next := mat.NewVecDense(nstates, nil)
		for t := 1; t < horizon; t++ {
			next.MulVec(tr.T, z)
			states.SetCol(t, next.RawVector().Data)
			z, next = next, z
		}

		r := &Response{Shock: sh, States: states}
		r.Obs = respond(m.Z, states)
		if sys.Pseudo != nil {
			r.Pseudo = respond(sys.Pseudo.Z, states)
		}
		out[sh] = r
	}
	return out, nil
}

func respond(z, states *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(z, states)
	return &out
}
