package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumahq/chainmesh/batch"
	"github.com/lumahq/chainmesh/chain"
	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/internal/testutil"
	"github.com/lumahq/chainmesh/registry"
)

const apiDoc = `
agents:
  worker:
    baseUrl: http://worker.local
    description: test worker
    actions:
      process:
        endpoint: /process
        method: POST
chains:
  - name: greet
    description: says hello
    complexity: low
    estimatedCostUsd: 0.01
    steps:
      - id: hello
        agent: worker
        action: process
`

func newTestAPI(t *testing.T, caller core.AgentCaller) *httptest.Server {
	t.Helper()
	reg := registry.New(registry.BytesSource(apiDoc))
	exec := chain.New(reg, caller)
	sched := batch.New(exec)
	srv := httptest.NewServer(Routes(NewHandlers(reg, exec, sched, caller, nil)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestServer_ListChains(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	resp, err := http.Get(srv.URL + "/chains")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chains []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chains))
	require.Len(t, chains, 1)
	assert.Equal(t, "greet", chains[0]["name"])
	assert.Equal(t, float64(1), chains[0]["stepCount"])
}

func TestServer_GetChain(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	resp, payload := doJSON(t, http.MethodGet, srv.URL+"/chains/greet", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "greet", payload["name"])

	resp, payload = doJSON(t, http.MethodGet, srv.URL+"/chains/ghost", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(CodeChainNotFound), payload["code"])
}

func TestServer_Agents(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	resp, err := http.Get(srv.URL + "/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	var agents []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	require.Len(t, agents, 1)
	assert.Equal(t, "worker", agents[0]["name"])

	got, payload := doJSON(t, http.MethodGet, srv.URL+"/agents/worker", "")
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "http://worker.local", payload["baseUrl"])

	got, payload = doJSON(t, http.MethodGet, srv.URL+"/agents/ghost", "")
	assert.Equal(t, http.StatusNotFound, got.StatusCode)
	assert.Equal(t, string(CodeAgentNotFound), payload["code"])
}

func TestServer_ExecuteNamedChain(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("worker", "process", map[string]any{"greeting": "hi"})
	srv := newTestAPI(t, caller)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute",
		`{"chainName":"greet","input":{"who":"world"}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(core.ExecutionCompleted), payload["status"])
	assert.Equal(t, "greet", payload["chainName"])
	assert.NotEmpty(t, payload["executionId"])
}

func TestServer_ExecuteInlineSteps(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("worker", "process", map[string]any{"v": 1})
	srv := newTestAPI(t, caller)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute",
		`{"steps":[{"id":"s1","agent":"worker","action":"process"}],"input":{}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(core.ExecutionCompleted), payload["status"])
}

func TestServer_ExecuteValidation(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	tests := []struct {
		name string
		body string
	}{
		{"neither chain nor steps", `{"input":{}}`},
		{"both chain and steps", `{"chainName":"greet","steps":[{"id":"s","agent":"a","action":"x"}]}`},
		{"malformed json", `{"chainName":`},
		{"step missing id", `{"steps":[{"agent":"a","action":"x"}]}`},
		{"call step missing action", `{"steps":[{"id":"s","agent":"a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, string(CodeInvalidRequest), payload["code"])
		})
	}
}

func TestServer_ExecuteUnknownChainIs404(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute", `{"chainName":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(CodeChainNotFound), payload["code"])
}

func TestServer_ExecuteStepFailureIsWellFormedResult(t *testing.T) {
	caller := testutil.NewScriptedCaller().Fail("worker", "process", errors.New("boom"))
	srv := newTestAPI(t, caller)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute", `{"chainName":"greet"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, "business failure is not a transport error")
	assert.Equal(t, string(core.ExecutionFailed), payload["status"])
}

func TestServer_BatchLifecycle(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("worker", "process", map[string]any{"cost": 0.5})
	srv := newTestAPI(t, caller)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute-parallel",
		`{"tasks":[{"chainName":"greet"},{"chainName":"greet"}],"concurrency":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	batchID, _ := payload["batchId"].(string)
	require.NotEmpty(t, batchID)

	var status map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, p := doJSON(t, http.MethodGet, srv.URL+"/batch/"+batchID+"/status", "")
		require.Equal(t, http.StatusOK, r.StatusCode)
		status = p
		if p["status"] != string(core.ExecutionRunning) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, string(core.ExecutionCompleted), status["status"])
	assert.Equal(t, float64(2), status["completed"])
	assert.Equal(t, float64(100), status["progressPercent"])

	r, results := doJSON(t, http.MethodGet, srv.URL+"/batch/"+batchID+"/results", "")
	require.Equal(t, http.StatusOK, r.StatusCode)
	tasks, ok := results["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 2)
	first, ok := tasks[0].(map[string]any)
	require.True(t, ok)
	assert.NotNil(t, first["result"], "full execution result attached per task")
}

func TestServer_BatchValidation(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute-parallel", `{"tasks":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(CodeInvalidRequest), payload["code"])
}

func TestServer_BatchNotFound(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	for _, path := range []string{"/batch/nope/status", "/batch/nope/results"} {
		resp, payload := doJSON(t, http.MethodGet, srv.URL+path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, string(CodeBatchNotFound), payload["code"])
	}

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/batch/nope/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(CodeBatchNotFound), payload["code"])
}

func TestServer_BatchCancel(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("worker", "process", map[string]any{})
	caller.Delay = 50 * time.Millisecond
	srv := newTestAPI(t, caller)

	body := `{"tasks":[{"chainName":"greet"},{"chainName":"greet"},{"chainName":"greet"},{"chainName":"greet"}],"concurrency":1}`
	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/execute-parallel", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	batchID := payload["batchId"].(string)

	time.Sleep(10 * time.Millisecond)
	r, cancelled := doJSON(t, http.MethodPost, srv.URL+"/batch/"+batchID+"/cancel", "")
	require.Equal(t, http.StatusOK, r.StatusCode)
	assert.Positive(t, cancelled["cancelled"])
}

func TestServer_DirectCall(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("worker", "process", map[string]any{"ok": true})
	srv := newTestAPI(t, caller)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/call",
		`{"agent":"worker","action":"process","params":{"x":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out, ok := payload["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, out["ok"])

	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/call", `{"agent":"worker"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(CodeInvalidRequest), payload["code"])
}

func TestServer_DirectCallUpstreamErrors(t *testing.T) {
	caller := testutil.NewScriptedCaller().
		Fail("worker", "slow", core.ErrAgentTimeout).
		Fail("worker", "down", core.ErrAgentUnreachable)
	srv := newTestAPI(t, caller)

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/call", `{"agent":"worker","action":"slow"}`)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	assert.Equal(t, string(CodeAgentTimeout), payload["code"])

	resp, payload = doJSON(t, http.MethodPost, srv.URL+"/call", `{"agent":"worker","action":"down"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, string(CodeAgentUnreachable), payload["code"])
}

func TestServer_RegistryReload(t *testing.T) {
	srv := newTestAPI(t, testutil.NewScriptedCaller())

	resp, payload := doJSON(t, http.MethodPost, srv.URL+"/registry/reload", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reloaded", payload["status"])
}
