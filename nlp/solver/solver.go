// Package solver implements the trial engine: repeated independent local
// optimizations from randomized starting points over a problem's penalty
// surface, keeping the best feasible assignment found.
package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/quibbleopt/quibble/internal/logging"
	"github.com/quibbleopt/quibble/nlp"
)

// Search method names accepted by Config.Method.
const (
	MethodLBFGS  = "lbfgs"
	MethodMayfly = "mayfly"
)

// Config tunes the trial engine. The zero value gets sensible defaults from
// New.
type Config struct {
	// Method selects the per-trial search: MethodLBFGS (default) runs
	// gradient-based local minimization; MethodMayfly runs a
	// derivative-free swarm search.
	Method string
	// MaxIterations caps each trial's local iterations.
	MaxIterations int
	// Penalty is the quadratic penalty coefficient applied to constraint
	// and bound violations.
	Penalty float64
	// Workers bounds how many trials run concurrently.
	Workers int
	// Seed overrides the problem's random seed when non-zero.
	Seed int64
	// InitialGuess, when it matches the variable count, is used as the
	// starting point of trial 0 instead of a random sample.
	InitialGuess []float64
}

// Engine runs solve requests. Safe for concurrent use; each Solve call keeps
// its own state.
type Engine struct {
	cfg    Config
	logger *logging.Logger
}

// New creates an engine, filling unset config fields with defaults.
func New(cfg Config, logger *logging.Logger) *Engine {
	if cfg.Method == "" {
		cfg.Method = MethodLBFGS
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 200
	}
	if cfg.Penalty <= 0 {
		cfg.Penalty = 1e6
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.New(logging.InfoLevel, os.Stderr)
	}
	return &Engine{cfg: cfg, logger: logger}
}

// trialOutcome is one trial's private result, reduced into the shared best
// slot under a mutex.
type trialOutcome struct {
	index     int
	x         []float64
	objective float64
	feasible  bool
	err       error
}

// Solve runs the requested number of independent trials against the problem
// and returns the best feasible assignment found. The problem is only read.
// A trial that fails numerically (domain error, diverged search) is counted
// and skipped; solve only errors on precondition violations or context
// cancellation.
func (e *Engine) Solve(ctx context.Context, p *nlp.Problem, trials int) (*nlp.Result, error) {
	if trials < 1 {
		return nil, &nlp.InvalidTrialCountError{Trials: trials}
	}
	if p.Objective() == nil {
		return nil, &nlp.EmptyProblemError{}
	}

	lower, upper := p.Bounds()
	pf := newPenaltyFunc(p, e.cfg.Penalty)
	eps := p.Epsilon()

	seed := e.cfg.Seed
	if seed == 0 {
		seed = p.Seed()
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger := e.logger
	if pl := p.Logger(); pl != nil {
		logger = pl
	}
	verbose := p.Verbose()

	workers := e.cfg.Workers
	if workers > trials {
		workers = trials
	}

	var (
		mu         sync.Mutex
		candidates []trialOutcome
		failed     int
		run        int
	)

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				out := e.runTrial(p, pf, lower, upper, eps, idx, seed)

				mu.Lock()
				run++
				if out.err != nil {
					failed++
				} else if out.feasible {
					candidates = append(candidates, out)
				}
				mu.Unlock()

				if verbose {
					fields := map[string]interface{}{
						"trial":    out.index,
						"feasible": out.feasible,
					}
					if out.err != nil {
						fields["error"] = out.err.Error()
					} else {
						fields["objective"] = out.objective
					}
					logger.Info("trial finished", fields)
				}
			}
		}()
	}

dispatch:
	for i := 0; i < trials; i++ {
		select {
		case <-ctx.Done():
			break dispatch
		case indices <- i:
		}
	}
	close(indices)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &nlp.Result{
		Status:       nlp.StatusInfeasible,
		Trial:        -1,
		TrialsRun:    run,
		TrialsFailed: failed,
	}
	best := selectBest(candidates, eps)
	if best == nil {
		if run > 0 && failed == run {
			result.Status = nlp.StatusNoTrialsSucceeded
		}
		if verbose {
			logger.Warn("no feasible solution found", map[string]interface{}{
				"status": result.Status.String(),
				"trials": run,
				"failed": failed,
			})
		}
		return result, nil
	}

	e.fillResult(result, p, best)
	if verbose {
		logger.Info("solve succeeded", map[string]interface{}{
			"objective": result.Objective,
			"trial":     result.Trial,
		})
	}
	return result, nil
}

// selectBest reduces the feasible outcomes to the winner. Outcomes are
// sorted by trial index first, so the result does not depend on the order
// trials happened to finish in.
func selectBest(candidates []trialOutcome, eps float64) *trialOutcome {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].index < candidates[j].index
	})
	var best *trialOutcome
	for i := range candidates {
		if better(&candidates[i], best, eps) {
			best = &candidates[i]
		}
	}
	return best
}

// better implements the tie-break policy: strictly lower objective wins;
// within tolerance the earlier trial index wins, keeping results
// deterministic under a fixed seed.
func better(candidate, incumbent *trialOutcome, eps float64) bool {
	if incumbent == nil {
		return true
	}
	diff := candidate.objective - incumbent.objective
	if math.Abs(diff) <= eps {
		return candidate.index < incumbent.index
	}
	return diff < 0
}

// runTrial performs one independent trial: sample a start, search locally,
// then judge true feasibility at the converged point. Panics and evaluation
// errors abort only this trial.
func (e *Engine) runTrial(p *nlp.Problem, pf *penaltyFunc, lower, upper []float64, eps float64, idx int, baseSeed int64) (out trialOutcome) {
	out.index = idx
	defer func() {
		if rec := recover(); rec != nil {
			out = trialOutcome{index: idx, err: fmt.Errorf("trial %d: panic: %v", idx, rec)}
		}
	}()

	rng := rand.New(rand.NewSource(baseSeed + int64(idx)))

	var start []float64
	if idx == 0 && len(e.cfg.InitialGuess) == len(lower) && len(lower) > 0 {
		start = append([]float64(nil), e.cfg.InitialGuess...)
	} else {
		start = samplePoint(rng, lower, upper)
	}

	var (
		x   []float64
		err error
	)
	switch e.cfg.Method {
	case MethodMayfly:
		x, err = e.runMayfly(pf, lower, upper, rng)
	default:
		x, err = e.runLBFGS(pf, start)
	}
	if err != nil {
		out.err = fmt.Errorf("trial %d: %w", idx, err)
		return out
	}

	clampToBounds(x, lower, upper)
	a := pf.assignment(x)

	objective, err := p.Objective().Expr().Eval(a)
	if err != nil {
		out.err = fmt.Errorf("trial %d: objective: %w", idx, err)
		return out
	}

	feasible := true
	for _, c := range p.Constraints() {
		g, err := c.Expr().Eval(a)
		if err != nil {
			out.err = fmt.Errorf("trial %d: constraint %q: %w", idx, c.Name(), err)
			return out
		}
		if g < c.Lower()-eps || g > c.Upper()+eps {
			feasible = false
			break
		}
	}

	out.x = x
	out.objective = objective
	out.feasible = feasible
	return out
}

// runLBFGS minimizes the penalty surface from start with gonum's L-BFGS.
// Domain errors make the surface +Inf so line searches back away from bad
// regions; only a search that cannot produce a point at all fails.
func (e *Engine) runLBFGS(pf *penaltyFunc, start []float64) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v, err := pf.value(x)
			if err != nil {
				return math.Inf(1)
			}
			return v
		},
		Grad: func(grad, x []float64) {
			if err := pf.gradient(grad, x); err != nil {
				for i := range grad {
					grad[i] = 0
				}
			}
		},
	}

	settings := &optimize.Settings{
		MajorIterations: e.cfg.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Relative:   1e-10,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(problem, start, settings, &optimize.LBFGS{})
	if result == nil || result.X == nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("local search produced no point")
	}
	if math.IsInf(result.F, 0) || math.IsNaN(result.F) {
		return nil, fmt.Errorf("local search diverged")
	}
	return result.X, nil
}

// fillResult expands the winning trial into per-component results with
// active-bound flags.
func (e *Engine) fillResult(result *nlp.Result, p *nlp.Problem, best *trialOutcome) {
	result.Status = nlp.StatusFeasible
	result.Objective = best.objective
	result.Trial = best.index

	a := make(map[string]float64, len(best.x))
	for i, v := range p.Variables() {
		val := best.x[i]
		a[v.Name()] = val
		result.Variables = append(result.Variables, nlp.ComponentResult{
			Name:        v.Name(),
			Group:       v.Group(),
			Value:       val,
			LowerActive: math.Abs(val-v.Lower()) < nlp.ActivationEpsilon,
			UpperActive: math.Abs(val-v.Upper()) < nlp.ActivationEpsilon,
		})
	}
	for _, c := range p.Constraints() {
		g, err := c.Expr().Eval(a)
		if err != nil {
			// The winning trial already evaluated every constraint here.
			continue
		}
		result.Constraints = append(result.Constraints, nlp.ComponentResult{
			Name:        c.Name(),
			Group:       c.Group(),
			Value:       g,
			LowerActive: math.Abs(g-c.Lower()) < nlp.ActivationEpsilon,
			UpperActive: math.Abs(g-c.Upper()) < nlp.ActivationEpsilon,
		})
	}
}
