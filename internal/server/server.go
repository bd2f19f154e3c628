package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quibbleopt/quibble/expr"
	"github.com/quibbleopt/quibble/internal/config"
	"github.com/quibbleopt/quibble/internal/logging"
	"github.com/quibbleopt/quibble/nlp"
	"github.com/quibbleopt/quibble/nlp/solver"
)

// Logger is the logging surface the server needs. Satisfied by
// *logging.Logger.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// variableJSON is the wire form of a decision variable. Nil bounds mean
// unbounded on that side; JSON cannot carry IEEE infinities.
type variableJSON struct {
	Name  string   `json:"name"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
	Group string   `json:"group,omitempty"`
}

// constraintJSON is the wire form of a constraint: an expression tree plus
// an interval.
type constraintJSON struct {
	Expr  *expr.Expr `json:"expr"`
	Lower *float64   `json:"lower,omitempty"`
	Upper *float64   `json:"upper,omitempty"`
	Name  string     `json:"name,omitempty"`
	Group string     `json:"group,omitempty"`
}

// solveRequest is the body of POST /api/v1/solve and the params of the
// nlp.solve JSON-RPC method.
type solveRequest struct {
	Variables   []variableJSON   `json:"variables"`
	Constraints []constraintJSON `json:"constraints,omitempty"`
	Objective   *expr.Expr       `json:"objective"`
	Trials      int              `json:"trials,omitempty"`
	Method      string           `json:"method,omitempty"`
	Seed        int64            `json:"seed,omitempty"`
}

type statusRequest struct {
	JobID string `json:"job_id"`
}

// SolveState tracks one solve job. Guarded by the server's jobs mutex.
type SolveState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	Result      *nlp.Result
	Error       string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time
}

// Server exposes the solver over HTTP and JSON-RPC 2.0. Jobs run
// asynchronously; clients poll for results.
type Server struct {
	cfg    *config.Config
	logger Logger

	jobs   map[string]*SolveState
	jobsMu sync.RWMutex
}

// NewServer creates a server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*SolveState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/solve", s.handleSolve)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/solve/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

func boundOrInf(b *float64, sign int) float64 {
	if b == nil {
		return math.Inf(sign)
	}
	return *b
}

// buildProblem converts a wire request into a problem model, surfacing the
// model's typed construction errors unchanged.
func buildProblem(req *solveRequest, seed int64, epsilon float64) (*nlp.Problem, error) {
	if len(req.Variables) == 0 {
		return nil, fmt.Errorf("at least one variable is required")
	}
	if req.Objective == nil {
		return nil, fmt.Errorf("objective is required")
	}

	opts := []nlp.Option{nlp.WithSeed(seed)}
	if epsilon > 0 {
		opts = append(opts, nlp.WithEpsilon(epsilon))
	}
	p := nlp.New(opts...)
	for _, v := range req.Variables {
		var copts []nlp.ComponentOption
		if v.Group != "" {
			copts = append(copts, nlp.WithGroup(v.Group))
		}
		if _, err := p.AddDecisionVariable(v.Name, boundOrInf(v.Lower, -1), boundOrInf(v.Upper, 1), copts...); err != nil {
			return nil, err
		}
	}
	for _, c := range req.Constraints {
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
	if err := p.AddObjective(req.Objective); err != nil {
		return nil, err
	}
	return p, nil
}

// startSolve validates the request, registers a pending job, and launches
// the solve goroutine.
func (s *Server) startSolve(req *solveRequest) (map[string]interface{}, error) {
	seed := req.Seed
	if seed == 0 {
		seed = s.cfg.Solver.Seed
	}
	problem, err := buildProblem(req, seed, s.cfg.Solver.Epsilon)
	if err != nil {
		return nil, err
	}

	trials := req.Trials
	if trials <= 0 {
		trials = s.cfg.Solver.Trials
	}

	engine := solver.New(solver.Config{
		Method:        req.Method,
		MaxIterations: s.cfg.Solver.MaxIterations,
		Penalty:       s.cfg.Solver.Penalty,
		Workers:       s.cfg.Solver.Workers,
	}, nil)

	id := fmt.Sprintf("solve_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	state := &SolveState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	go s.runSolve(ctx, state, engine, problem, trials)

	return map[string]interface{}{
		"job_id": id,
		"status": "pending",
	}, nil
}

// runSolve executes the solve in a goroutine and records the outcome.
func (s *Server) runSolve(ctx context.Context, state *SolveState, engine *solver.Engine, problem *nlp.Problem, trials int) {
	s.jobsMu.Lock()
	state.Status = "running"
	state.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	start := time.Now()
	result, err := engine.Solve(ctx, problem, trials)
	solveDuration.Observe(time.Since(start).Seconds())

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	// Cancellation already moved the job to a terminal state.
	if state.Status == "cancelled" {
		solvesTotal.WithLabelValues("cancelled").Inc()
		return
	}

	if err != nil {
		s.logger.Error("solve failed", map[string]interface{}{
			"job_id": state.ID,
			"error":  err.Error(),
		})
		state.Status = "failed"
		state.Error = err.Error()
		solvesTotal.WithLabelValues("failed").Inc()
	} else {
		state.Status = "completed"
		state.Result = result
		solvesTotal.WithLabelValues(result.Status.String()).Inc()
		trialsTotal.Add(float64(result.TrialsRun))
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// jobStatus builds the status payload for a job.
func (s *Server) jobStatus(id string) (map[string]interface{}, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job not found")
	}

	response := map[string]interface{}{
		"job_id":      state.ID,
		"status":      state.Status,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Error != "" {
		response["error"] = state.Error
	}
	if state.Result != nil {
		response["result"] = state.Result
	}
	return response, nil
}

// cancelJob requests cancellation of a running job.
func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel job with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("solve cancelled", map[string]interface{}{
		"job_id": id,
	})
	return nil
}

// handleJSONRPC dispatches JSON-RPC 2.0 requests to the nlp.* methods.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", request.ID)
		return
	}

	var result interface{}
	var err error

	switch request.Method {
	case "nlp.solve":
		var req solveRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			result, err = s.startSolve(&req)
		}
	case "nlp.status":
		var req statusRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			result, err = s.jobStatus(req.JobID)
		}
	case "nlp.cancel":
		var req statusRequest
		if err = json.Unmarshal(request.Params, &req); err == nil {
			err = s.cancelJob(req.JobID)
			result = map[string]string{"status": "cancellation requested"}
		}
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("request error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// handleSolve handles POST /api/v1/solve.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.startSolve(&req)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing job ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/solve/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing job ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob(id)

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}

// Close cancels every outstanding job.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}
