package solver

import (
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// runMayfly searches the penalty surface with the mayfly swarm optimizer.
// The library takes a single scalar bound pair for all dimensions, so the
// search runs over the unit box and positions are rescaled per dimension.
func (e *Engine) runMayfly(pf *penaltyFunc, lower, upper []float64, rng *rand.Rand) ([]float64, error) {
	n := len(lower)
	lo := make([]float64, n)
	hi := make([]float64, n)
	for i := range lower {
		lo[i] = replaceInf(lower[i])
		hi[i] = replaceInf(upper[i])
	}

	denormalize := func(u []float64) []float64 {
		x := make([]float64, n)
		for i := range x {
			x[i] = lo[i] + u[i]*(hi[i]-lo[i])
		}
		return x
	}

	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = func(u []float64) float64 {
		v, err := pf.value(denormalize(u))
		if err != nil {
			return math.Inf(1)
		}
		return v
	}
	cfg.ProblemSize = n
	cfg.MaxIterations = e.cfg.MaxIterations
	cfg.LowerBound = 0
	cfg.UpperBound = 1
	cfg.Rand = rng

	result, err := mayfly.Optimize(cfg)
	if err != nil {
		return nil, err
	}
	return denormalize(result.GlobalBest.Position), nil
}
