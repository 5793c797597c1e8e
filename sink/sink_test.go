package sink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumahq/chainmesh/core"
)

func TestHTTPSink_Emit(t *testing.T) {
	var got core.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, nil)
	ev := core.NewEvent("chain.completed", "test", map[string]any{"k": "v"})
	require.NoError(t, s.Emit(context.Background(), ev))

	assert.Equal(t, "chain.completed", got.EventType)
	assert.Equal(t, "test", got.Source)
	assert.Equal(t, "v", got.Data["k"])
	assert.False(t, got.Timestamp.IsZero())
}

func TestHTTPSink_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSink(srv.URL, nil)
	err := s.Emit(context.Background(), core.NewEvent("x", "y", nil))
	assert.Error(t, err)
}

func TestHTTPSink_Unreachable(t *testing.T) {
	s := NewHTTPSink("http://127.0.0.1:1", nil)
	err := s.Emit(context.Background(), core.NewEvent("x", "y", nil))
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Emit(context.Background(), core.NewEvent("a", "s", nil)))
	require.NoError(t, r.Emit(context.Background(), core.NewEvent("b", "s", nil)))

	events := r.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].EventType)

	r.Err = assert.AnError
	assert.Error(t, r.Emit(context.Background(), core.NewEvent("c", "s", nil)))
	assert.Len(t, r.Events(), 3, "recorded even when erroring")
}
