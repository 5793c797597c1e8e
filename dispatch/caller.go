package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/logging"
)

// maxResponseBytes caps how much of an agent response body is read.
const maxResponseBytes = 8 << 20

// CallError reports a non-2xx agent response, carrying the upstream status
// and body for diagnosis.
type CallError struct {
	Agent      string
	Action     string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	return fmt.Sprintf("agent %s action %s returned %d: %s", e.Agent, e.Action, e.StatusCode, e.Body)
}

// Options configures a Caller.
type Options struct {
	// HTTPClient is the transport used for all dispatches. Defaults to a
	// client with no global timeout; per-call timeouts come from the
	// context the Caller derives.
	HTTPClient *http.Client

	// DefaultTimeout applies when neither the call nor the action declares
	// one.
	DefaultTimeout time.Duration

	// Logger receives per-call diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Caller implements core.AgentCaller over net/http.
type Caller struct {
	registry       core.Registry
	client         *http.Client
	defaultTimeout time.Duration
	logger         logging.Logger
}

// New creates a Caller bound to the registry. The zero-value options yield a
// fresh http.Client and a 30s default timeout.
func New(registry core.Registry, optFns ...func(o *Options)) *Caller {
	opts := Options{
		DefaultTimeout: 30 * time.Second,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Caller{
		registry:       registry,
		client:         opts.HTTPClient,
		defaultTimeout: opts.DefaultTimeout,
		logger:         opts.Logger,
	}
}

// Close releases idle transport connections. Call once at orchestrator
// shutdown.
func (c *Caller) Close() {
	c.client.CloseIdleConnections()
}

// pathParamPattern matches {key} placeholders in an action endpoint.
var pathParamPattern = regexp.MustCompile(`\{([A-Za-z0-9_-]+)\}`)

// Call resolves the agent and action, builds the target URL (consuming any
// {key} path parameters from params), dispatches with the action's declared
// method and the effective timeout, and decodes the JSON response.
//
// Effective timeout precedence: the timeout argument, then the action's
// declared timeout, then the caller default.
func (c *Caller) Call(ctx context.Context, agent, action string, params map[string]any, timeout time.Duration) (*core.AgentResponse, error) {
	agentDef, err := c.registry.Agent(agent)
	if err != nil {
		return nil, err
	}
	act, ok := agentDef.Actions[action]
	if !ok {
		return nil, fmt.Errorf("agent %q has no action %q: %w", agent, action, core.ErrUnknownAction)
	}

	endpoint, remaining, err := expandPath(act.Endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("agent %q action %q: %w", agent, action, err)
	}
	target := strings.TrimRight(agentDef.BaseURL, "/") + endpoint

	effective := timeout
	if effective <= 0 {
		effective = act.Timeout
	}
	if effective <= 0 {
		effective = c.defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, effective)
	defer cancel()

	req, err := c.buildRequest(callCtx, act.Method, target, remaining)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("agent %q action %q after %s: %w", agent, action, effective, core.ErrAgentTimeout)
		}
		return nil, fmt.Errorf("agent %q action %q: %v: %w", agent, action, err, core.ErrAgentUnreachable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("agent %q action %q read body: %v: %w", agent, action, err, core.ErrAgentUnreachable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("agent call failed", "agent", agent, "action", action, "status", resp.StatusCode, "duration", time.Since(start))
		return nil, &CallError{Agent: agent, Action: action, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Debug("agent call completed", "agent", agent, "action", action, "status", resp.StatusCode, "duration", time.Since(start))

	return &core.AgentResponse{
		StatusCode: resp.StatusCode,
		Output:     decodeBody(raw),
		Raw:        raw,
	}, nil
}

// buildRequest shapes the request per method: GET encodes params as query
// values, everything else sends a JSON body.
func (c *Caller) buildRequest(ctx context.Context, method, target string, params map[string]any) (*http.Request, error) {
	method = strings.ToUpper(method)

	if method == http.MethodGet {
		req, err := http.NewRequestWithContext(ctx, method, target, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, queryValue(v))
			}
			req.URL.RawQuery = q.Encode()
		}
		return req, nil
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// expandPath substitutes {key} placeholders in the endpoint from params. Path
// parameters are consumed: the returned map no longer carries them, so they
// are not also sent as query or body values.
func expandPath(endpoint string, params map[string]any) (string, map[string]any, error) {
	matches := pathParamPattern.FindAllStringSubmatch(endpoint, -1)
	if len(matches) == 0 {
		return endpoint, params, nil
	}

	remaining := make(map[string]any, len(params))
	for k, v := range params {
		remaining[k] = v
	}

	var missing error
	expanded := pathParamPattern.ReplaceAllStringFunc(endpoint, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := remaining[key]
		if !ok {
			missing = errors.Join(missing, fmt.Errorf("path parameter %q not supplied", key))
			return match
		}
		delete(remaining, key)
		return url.PathEscape(queryValue(v))
	})
	if missing != nil {
		return "", nil, missing
	}
	return expanded, remaining, nil
}

// queryValue renders a param value for a URL position: scalars as plain
// text, non-scalars as compact JSON.
func queryValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case bool, float64, float32, int, int32, int64, uint:
		return fmt.Sprintf("%v", s)
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprintf("%v", s)
		}
		return string(raw)
	}
}

// decodeBody parses JSON when possible, falling back to the raw string.
func decodeBody(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}
