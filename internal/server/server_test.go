package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quibbleopt/quibble/expr"
	"github.com/quibbleopt/quibble/internal/config"
	"github.com/quibbleopt/quibble/internal/logging"
	"github.com/quibbleopt/quibble/nlp"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.HTTP.Port = 8080
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "stderr"
	cfg.Solver.Workers = 2
	cfg.Solver.Trials = 2
	cfg.Solver.MaxIterations = 100
	cfg.Solver.Penalty = 1e6
	cfg.Solver.Epsilon = 1e-6
	cfg.Solver.Seed = 7
	return cfg
}

func testServer(t *testing.T) (*Server, *chi.Mux) {
	t.Helper()
	logger, err := logging.NewLogger(&logging.Config{Level: "error", Output: "stderr"})
	require.NoError(t, err)

	srv := NewServer(testConfig(t), logger)
	t.Cleanup(func() { srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return srv, r
}

// quadraticProblem is minimize (x-1)^2 over x in [-5, 5].
func quadraticProblem() string {
	return `{
		"variables": [{"name": "x", "lower": -5, "upper": 5}],
		"objective": {
			"type": "pow",
			"left": {"type": "sub", "left": {"type": "var", "name": "x"}, "right": {"type": "const", "value": 1}},
			"right": {"type": "const", "value": 2}
		},
		"trials": 2
	}`
}

func waitForJob(t *testing.T, r http.Handler, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var status map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		switch status["status"] {
		case "completed", "failed", "cancelled":
			return status
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state")
	return nil
}

func TestSolveEndpoint(t *testing.T) {
	_, r := testServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/solve", bytes.NewBufferString(quadraticProblem()))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, ok := resp["job_id"].(string)
	require.True(t, ok)
	assert.Equal(t, "pending", resp["status"])

	status := waitForJob(t, r, id)
	require.Equal(t, "completed", status["status"])

	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 0.0, result["objective"].(float64), 1e-4)
}

func TestSolveEndpointRejectsBadRequests(t *testing.T) {
	_, r := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"no variables", `{"variables": [], "objective": {"type": "const", "value": 1}}`},
		{"no objective", `{"variables": [{"name": "x", "lower": 0, "upper": 1}]}`},
		{"inverted bounds", `{
			"variables": [{"name": "x", "lower": 5, "upper": -5}],
			"objective": {"type": "var", "name": "x"}
		}`},
		{"unknown variable", `{
			"variables": [{"name": "x", "lower": 0, "upper": 1}],
			"objective": {"type": "var", "name": "ghost"}
		}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/solve", bytes.NewBufferString(tt.body))
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := testServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status/solve_404", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelEndpoint(t *testing.T) {
	_, r := testServer(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/solve", bytes.NewBufferString(quadraticProblem())))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := resp["job_id"].(string)

	// The job is likely finished or running; either cancel succeeds now or
	// is rejected because the job already reached a terminal state.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/solve/"+id, nil))
	assert.Contains(t, []int{http.StatusOK, http.StatusBadRequest}, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/solve/solve_404", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func rpcCall(t *testing.T, r http.Handler, method string, params interface{}) map[string]interface{} {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBuffer(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestJSONRPCSolveFlow(t *testing.T) {
	_, r := testServer(t)

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(quadraticProblem()), &params))

	resp := rpcCall(t, r, "nlp.solve", params)
	require.NotContains(t, resp, "error", "unexpected rpc error: %v", resp["error"])

	result := resp["result"].(map[string]interface{})
	id := result["job_id"].(string)
	require.NotEmpty(t, id)

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp = rpcCall(t, r, "nlp.status", map[string]string{"job_id": id})
		status := resp["result"].(map[string]interface{})
		if status["status"] == "completed" {
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatalf("job stuck in status %v", status["status"])
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestJSONRPCErrors(t *testing.T) {
	_, r := testServer(t)

	resp := rpcCall(t, r, "nlp.teleport", nil)
	rpcErr := resp["error"].(map[string]interface{})
	assert.Equal(t, float64(-32601), rpcErr["code"])

	resp = rpcCall(t, r, "nlp.status", map[string]string{"job_id": "solve_404"})
	rpcErr = resp["error"].(map[string]interface{})
	assert.Equal(t, float64(-32000), rpcErr["code"])

	// Wrong jsonrpc version
	w := httptest.NewRecorder()
	body := `{"jsonrpc": "1.0", "id": 1, "method": "nlp.status"}`
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body)))
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	rpcErr = v["error"].(map[string]interface{})
	assert.Equal(t, float64(-32600), rpcErr["code"])
}

func TestBuildProblemUnboundedSides(t *testing.T) {
	lo := -2.0
	req := &solveRequest{
		Variables: []variableJSON{{Name: "x", Lower: &lo}},
	}
	req.Objective = mustExpr(t, `{"type": "var", "name": "x"}`)

	p, err := buildProblem(req, 0, 0)
	require.NoError(t, err)

	lower, upper := p.Bounds()
	assert.Equal(t, -2.0, lower[0])
	assert.True(t, upper[0] > 1e300)
}

func TestBuildProblemAppliesEpsilon(t *testing.T) {
	lo, hi := -5.0, 5.0
	req := &solveRequest{
		Variables: []variableJSON{{Name: "x", Lower: &lo, Upper: &hi}},
	}
	req.Objective = mustExpr(t, `{"type": "var", "name": "x"}`)

	p, err := buildProblem(req, 0, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.25, p.Epsilon())

	// Zero falls back to the model default.
	p, err = buildProblem(req, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, nlp.DefaultEpsilon, p.Epsilon())
}

// A loosened feasibility tolerance from the config must reach the solver:
// minimizing x over [-5, 5] with constraint x in [10, 20] violates the
// interval by at most 15, which a tolerance of 100 accepts.
func TestSolveEndpointUsesConfiguredEpsilon(t *testing.T) {
	logger, err := logging.NewLogger(&logging.Config{Level: "error", Output: "stderr"})
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Solver.Epsilon = 100

	srv := NewServer(cfg, logger)
	t.Cleanup(func() { srv.Close() })
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	body := `{
		"variables": [{"name": "x", "lower": -5, "upper": 5}],
		"constraints": [{"expr": {"type": "var", "name": "x"}, "lower": 10, "upper": 20}],
		"objective": {"type": "var", "name": "x"},
		"trials": 2
	}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/solve", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	status := waitForJob(t, r, resp["job_id"].(string))
	require.Equal(t, "completed", status["status"])

	result := status["result"].(map[string]interface{})
	assert.Equal(t, float64(nlp.StatusFeasible), result["status"].(float64))
}

func mustExpr(t *testing.T, raw string) *expr.Expr {
	t.Helper()
	var e expr.Expr
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	return &e
}
