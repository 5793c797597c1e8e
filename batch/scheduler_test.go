package batch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumahq/chainmesh/chain"
	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/internal/testutil"
	"github.com/lumahq/chainmesh/registry"
	"github.com/lumahq/chainmesh/sink"
)

func registryWithOneChain(t *testing.T) core.Registry {
	t.Helper()
	doc := `
agents: {}
chains:
  - name: known
    steps:
      - id: s
        agent: a
        action: ok
`
	return registry.New(registry.BytesSource(doc))
}

// waitTerminal polls until the batch leaves the running state.
func waitTerminal(t *testing.T, s *Scheduler, batchID string) *core.BatchExecution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		b, err := s.Status(batchID)
		require.NoError(t, err)
		if b.Status != core.ExecutionRunning {
			return b
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("batch never finalized")
	return nil
}

func inlineSpec(agent, action string) TaskSpec {
	return TaskSpec{Steps: []core.StepDefinition{testutil.CallStep("s", agent, action)}}
}

func TestScheduler_AllTasksComplete(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{"cost": 0.5})
	s := New(chain.New(nil, caller))

	id, err := s.Submit([]TaskSpec{inlineSpec("a", "ok"), inlineSpec("a", "ok"), inlineSpec("a", "ok")}, 2, "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	b := waitTerminal(t, s, id)
	assert.Equal(t, core.ExecutionCompleted, b.Status)
	assert.Equal(t, 3, b.Completed)
	assert.Zero(t, b.Failed)
	assert.InDelta(t, 1.5, b.TotalCost, 1e-9)
	assert.InDelta(t, 100, b.Progress(), 1e-9)
	assert.False(t, b.FinishedAt.IsZero())
	for _, task := range b.Tasks {
		assert.Equal(t, core.ExecutionCompleted, task.Status)
		require.NotNil(t, task.Result)
		assert.Equal(t, core.ExecutionCompleted, task.Result.Status)
	}
}

func TestScheduler_MixedOutcomesDerivePartial(t *testing.T) {
	caller := testutil.NewScriptedCaller().
		Respond("a", "ok", map[string]any{}).
		Fail("a", "bad", errors.New("boom"))
	s := New(chain.New(nil, caller))

	specs := []TaskSpec{
		inlineSpec("a", "ok"), inlineSpec("a", "ok"), inlineSpec("a", "ok"),
		inlineSpec("a", "bad"), inlineSpec("a", "bad"),
	}
	id, err := s.Submit(specs, 3, "")
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Equal(t, core.ExecutionPartial, b.Status)
	assert.Equal(t, 3, b.Completed)
	assert.Equal(t, 2, b.Failed)
	assert.InDelta(t, 100, b.Progress(), 1e-9)
}

func TestScheduler_AllTasksFail(t *testing.T) {
	caller := testutil.NewScriptedCaller().Fail("a", "bad", errors.New("boom"))
	s := New(chain.New(nil, caller))

	id, err := s.Submit([]TaskSpec{inlineSpec("a", "bad"), inlineSpec("a", "bad")}, 2, "")
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Equal(t, core.ExecutionFailed, b.Status)
	assert.Zero(t, b.Completed)
	assert.Equal(t, 2, b.Failed)
}

func TestScheduler_ConcurrencyBound(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	caller.Delay = 30 * time.Millisecond
	s := New(chain.New(nil, caller))

	specs := make([]TaskSpec, 10)
	for i := range specs {
		specs[i] = inlineSpec("a", "ok")
	}
	id, err := s.Submit(specs, 2, "")
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Equal(t, 10, b.Completed)
	assert.LessOrEqual(t, caller.MaxInFlight(), 2, "never more than 2 dispatches in flight")
}

func TestScheduler_ConcurrencyClampedToSystemMax(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	caller.Delay = 20 * time.Millisecond
	s := New(chain.New(nil, caller), func(o *Options) { o.MaxConcurrency = 3 })

	specs := make([]TaskSpec, 9)
	for i := range specs {
		specs[i] = inlineSpec("a", "ok")
	}
	id, err := s.Submit(specs, 100, "")
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Equal(t, 3, b.Concurrency)
	assert.LessOrEqual(t, caller.MaxInFlight(), 3)
}

func TestScheduler_SubmitValidation(t *testing.T) {
	s := New(chain.New(nil, testutil.NewScriptedCaller()))

	_, err := s.Submit(nil, 1, "")
	assert.Error(t, err, "empty batch rejected")

	_, err = s.Submit([]TaskSpec{{}}, 1, "")
	assert.Error(t, err, "neither chainName nor steps")

	_, err = s.Submit([]TaskSpec{{ChainName: "c", Steps: []core.StepDefinition{testutil.CallStep("s", "a", "x")}}}, 1, "")
	assert.Error(t, err, "both chainName and steps")
}

func TestScheduler_UnknownChainRecordedPerTask(t *testing.T) {
	reg := registryWithOneChain(t)
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	s := New(chain.New(reg, caller))

	id, err := s.Submit([]TaskSpec{
		{ChainName: "known", Input: map[string]any{}},
		{ChainName: "ghost"},
	}, 2, "")
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Equal(t, core.ExecutionPartial, b.Status)
	assert.Equal(t, 1, b.Completed)
	assert.Equal(t, 1, b.Failed)

	var ghost *core.BatchTask
	for _, task := range b.Tasks {
		if task.ChainName == "ghost" {
			ghost = task
		}
	}
	require.NotNil(t, ghost)
	assert.Equal(t, core.ExecutionFailed, ghost.Status)
	assert.Contains(t, ghost.Error, "ghost")
	assert.Nil(t, ghost.Result)
}

func TestScheduler_StatusSnapshotIdempotentAfterCompletion(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{"cost": 1.0})
	s := New(chain.New(nil, caller))

	id, err := s.Submit([]TaskSpec{inlineSpec("a", "ok")}, 1, "")
	require.NoError(t, err)
	first := waitTerminal(t, s, id)

	for i := 0; i < 5; i++ {
		again, err := s.Status(id)
		require.NoError(t, err)
		assert.Equal(t, first.Status, again.Status)
		assert.Equal(t, first.Completed, again.Completed)
		assert.Equal(t, first.TotalCost, again.TotalCost)
		assert.Equal(t, first.FinishedAt, again.FinishedAt)
	}
}

func TestScheduler_UnknownBatch(t *testing.T) {
	s := New(chain.New(nil, testutil.NewScriptedCaller()))
	_, err := s.Status("nope")
	assert.ErrorIs(t, err, core.ErrBatchNotFound)
	_, err = s.Cancel("nope")
	assert.ErrorIs(t, err, core.ErrBatchNotFound)
}

func TestScheduler_CancelMarksUnstartedTasks(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	caller.Delay = 50 * time.Millisecond
	s := New(chain.New(nil, caller))

	specs := make([]TaskSpec, 6)
	for i := range specs {
		specs[i] = inlineSpec("a", "ok")
	}
	id, err := s.Submit(specs, 1, "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond) // let the first task be admitted
	_, err = s.Cancel(id)
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Positive(t, b.Cancelled, "tasks waiting on the semaphore were cancelled")
	assert.Positive(t, b.Completed, "already-admitted work ran to completion")
	assert.Equal(t, len(specs), b.Completed+b.Failed+b.Cancelled)
	assert.Less(t, caller.TotalCalls(), len(specs))
}

func TestScheduler_CallbackPostedOnce(t *testing.T) {
	calls := make(chan map[string]any, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		calls <- payload
	}))
	defer srv.Close()

	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	s := New(chain.New(nil, caller))

	id, err := s.Submit([]TaskSpec{inlineSpec("a", "ok")}, 1, srv.URL)
	require.NoError(t, err)
	waitTerminal(t, s, id)

	select {
	case payload := <-calls:
		assert.Equal(t, id, payload["batchId"])
		assert.Equal(t, string(core.ExecutionCompleted), payload["status"])
		assert.Equal(t, float64(100), payload["progressPercent"])
	case <-time.After(2 * time.Second):
		t.Fatal("callback never arrived")
	}

	select {
	case <-calls:
		t.Fatal("callback posted more than once")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduler_CallbackFailureDoesNotAffectBatch(t *testing.T) {
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	s := New(chain.New(nil, caller))

	id, err := s.Submit([]TaskSpec{inlineSpec("a", "ok")}, 1, "http://127.0.0.1:1/cb")
	require.NoError(t, err)

	b := waitTerminal(t, s, id)
	assert.Equal(t, core.ExecutionCompleted, b.Status)
}

func TestScheduler_BatchEventEmitted(t *testing.T) {
	rec := &sink.Recorder{}
	caller := testutil.NewScriptedCaller().Respond("a", "ok", map[string]any{})
	s := New(chain.New(nil, caller), func(o *Options) { o.Sink = rec })

	id, err := s.Submit([]TaskSpec{inlineSpec("a", "ok")}, 1, "")
	require.NoError(t, err)
	waitTerminal(t, s, id)

	var batchEvents []core.Event
	for _, ev := range rec.Events() {
		if ev.EventType == "batch.completed" {
			batchEvents = append(batchEvents, ev)
		}
	}
	require.Len(t, batchEvents, 1)
	assert.Equal(t, id, batchEvents[0].Data["batchId"])
}
