package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/quibbleopt/quibble/expr"
	"github.com/quibbleopt/quibble/nlp"
	"github.com/quibbleopt/quibble/nlp/solver"
)

var (
	trials     int
	seed       int64
	method     string
	maxIters   int
	epsilon    float64
	verbose    bool
	jsonOutput bool
)

var solveCmd = &cobra.Command{
	Use:   "solve <problem.json>",
	Short: "Solve a nonlinear program from a problem file",
	Long: `Reads a problem description (variables, constraints, objective as
expression trees) from a JSON file and runs the trial engine over it.`,
	Args: cobra.ExactArgs(1),
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().IntVar(&trials, "trials", 1, "Number of independent trials")
	solveCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = from clock)")
	solveCmd.Flags().StringVar(&method, "method", solver.MethodLBFGS, "Search method: lbfgs or mayfly")
	solveCmd.Flags().IntVar(&maxIters, "max-iters", 200, "Per-trial iteration cap")
	solveCmd.Flags().Float64Var(&epsilon, "epsilon", nlp.DefaultEpsilon, "Feasibility tolerance")
	solveCmd.Flags().BoolVar(&verbose, "verbose", false, "Log per-trial progress")
	solveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the raw result as JSON")
	rootCmd.AddCommand(solveCmd)
}

// problemFile mirrors the service wire format: nil bounds mean unbounded on
// that side.
type problemFile struct {
	Variables []struct {
		Name  string   `json:"name"`
		Lower *float64 `json:"lower,omitempty"`
		Upper *float64 `json:"upper,omitempty"`
		Group string   `json:"group,omitempty"`
	} `json:"variables"`
	Constraints []struct {
		Expr  *expr.Expr `json:"expr"`
		Lower *float64   `json:"lower,omitempty"`
		Upper *float64   `json:"upper,omitempty"`
		Name  string     `json:"name,omitempty"`
		Group string     `json:"group,omitempty"`
	} `json:"constraints,omitempty"`
	Objective *expr.Expr `json:"objective"`
}

func boundOrInf(b *float64, sign int) float64 {
	if b == nil {
		return math.Inf(sign)
	}
	return *b
}

func loadProblem(path string) (*nlp.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}
	var pf problemFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse problem file: %w", err)
	}
	if pf.Objective == nil {
		return nil, fmt.Errorf("problem file has no objective")
	}

	opts := []nlp.Option{nlp.WithSeed(seed), nlp.WithEpsilon(epsilon)}
	if verbose {
		opts = append(opts, nlp.WithVerbose(true), nlp.WithLogger(logger))
	}
	p := nlp.New(opts...)

	for _, v := range pf.Variables {
		var copts []nlp.ComponentOption
		if v.Group != "" {
			copts = append(copts, nlp.WithGroup(v.Group))
		}
		if _, err := p.AddDecisionVariable(v.Name, boundOrInf(v.Lower, -1), boundOrInf(v.Upper, 1), copts...); err != nil {
			return nil, err
		}
	}
	for _, c := range pf.Constraints {
		if c.Expr == nil {
			return nil, fmt.Errorf("constraint %q has no expression", c.Name)
		}
		var copts []nlp.ComponentOption
		if c.Name != "" {
			copts = append(copts, nlp.WithName(c.Name))
		}
		if c.Group != "" {
			copts = append(copts, nlp.WithGroup(c.Group))
		}
		if err := p.AddConstraint(c.Expr, boundOrInf(c.Lower, -1), boundOrInf(c.Upper, 1), copts...); err != nil {
			return nil, err
		}
	}
	if err := p.AddObjective(pf.Objective); err != nil {
		return nil, err
	}
	return p, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	problem, err := loadProblem(args[0])
	if err != nil {
		return err
	}

	engine := solver.New(solver.Config{
		Method:        method,
		MaxIterations: maxIters,
		Seed:          seed,
	}, logger)

	result, err := engine.Solve(context.Background(), problem, trials)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func printResult(r *nlp.Result) {
	if r.Status != nlp.StatusFeasible {
		color.New(color.FgRed, color.Bold).Println("Problem seems infeasible!")
		fmt.Printf("trials run: %d, failed: %d\n", r.TrialsRun, r.TrialsFailed)
		return
	}

	color.New(color.FgGreen, color.Bold).Println("Solve succeeded.")
	fmt.Printf("objective: %g (trial %d of %d)\n\n", r.Objective, r.Trial, r.TrialsRun)

	fmt.Println("Variables:")
	for _, v := range r.Variables {
		fmt.Printf("  %-20s %12g%s\n", v.Name, v.Value, boundMarker(v))
	}
	if len(r.Constraints) > 0 {
		fmt.Println("\nConstraints:")
		for _, c := range r.Constraints {
			fmt.Printf("  %-20s %12g%s\n", c.Name, c.Value, boundMarker(c))
		}
	}
	if active := r.ActiveConstraints(); len(active) > 0 {
		fmt.Printf("\nActive constraints: %s\n", strings.Join(active, ", "))
	}
}

func boundMarker(c nlp.ComponentResult) string {
	switch {
	case c.LowerActive && c.UpperActive:
		return "  [at both bounds]"
	case c.LowerActive:
		return "  [at lower bound]"
	case c.UpperActive:
		return "  [at upper bound]"
	}
	return ""
}
