package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumahq/chainmesh/core"
)

// CallFunc scripts the behavior of one (agent, action) pair.
type CallFunc func(params map[string]any) (*core.AgentResponse, error)

// ScriptedCaller is an in-memory core.AgentCaller for tests. Behaviors are
// registered per "agent/action" key; unregistered pairs fail with
// core.ErrUnknownAction. The caller counts invocations and tracks the
// maximum number of concurrently in-flight calls, which batch tests use to
// assert the concurrency bound.
type ScriptedCaller struct {
	mu        sync.Mutex
	behaviors map[string]CallFunc
	calls     map[string]int

	inFlight      atomic.Int64
	maxInFlight   atomic.Int64
	Delay         time.Duration // artificial latency applied to every call
	totalDispatch atomic.Int64
}

// NewScriptedCaller creates an empty scripted caller.
func NewScriptedCaller() *ScriptedCaller {
	return &ScriptedCaller{
		behaviors: map[string]CallFunc{},
		calls:     map[string]int{},
	}
}

// On registers the behavior for an (agent, action) pair.
func (c *ScriptedCaller) On(agent, action string, fn CallFunc) *ScriptedCaller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.behaviors[agent+"/"+action] = fn
	return c
}

// Respond registers a fixed successful JSON-object response.
func (c *ScriptedCaller) Respond(agent, action string, output map[string]any) *ScriptedCaller {
	return c.On(agent, action, func(map[string]any) (*core.AgentResponse, error) {
		return &core.AgentResponse{StatusCode: 200, Output: output}, nil
	})
}

// Fail registers a fixed error response.
func (c *ScriptedCaller) Fail(agent, action string, err error) *ScriptedCaller {
	return c.On(agent, action, func(map[string]any) (*core.AgentResponse, error) {
		return nil, err
	})
}

// Call implements core.AgentCaller.
func (c *ScriptedCaller) Call(ctx context.Context, agent, action string, params map[string]any, _ time.Duration) (*core.AgentResponse, error) {
	cur := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		observed := c.maxInFlight.Load()
		if cur <= observed || c.maxInFlight.CompareAndSwap(observed, cur) {
			break
		}
	}
	c.totalDispatch.Add(1)

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	key := agent + "/" + action
	c.mu.Lock()
	c.calls[key]++
	fn, ok := c.behaviors[key]
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no scripted behavior for %s: %w", key, core.ErrUnknownAction)
	}
	return fn(params)
}

// Calls returns how many times the (agent, action) pair was dispatched.
func (c *ScriptedCaller) Calls(agent, action string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[agent+"/"+action]
}

// TotalCalls returns the overall dispatch count.
func (c *ScriptedCaller) TotalCalls() int { return int(c.totalDispatch.Load()) }

// MaxInFlight returns the highest number of concurrently executing calls
// observed so far.
func (c *ScriptedCaller) MaxInFlight() int { return int(c.maxInFlight.Load()) }
