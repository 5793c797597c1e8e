// Package chainmesh provides a high-level façade over the chain executor,
// batch scheduler and agent dispatch layer, enabling rapid construction of
// multi-agent orchestration services. Most applications interact with this
// package by:
//  1. Creating a ChainMesh via New() pointed at a registry document
//  2. Executing named or inline chains synchronously (ExecuteChain,
//     ExecuteSteps)
//  3. Submitting batches for asynchronous fan-out (Submit) and polling
//     BatchStatus
//
// The façade delegates orchestration to chain.Executor and batch.Scheduler
// while keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// batch store, an event sink and a structured logger.
package chainmesh

import (
	"context"
	"net/http"
	"time"

	"github.com/lumahq/chainmesh/batch"
	"github.com/lumahq/chainmesh/chain"
	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/dispatch"
	"github.com/lumahq/chainmesh/logging"
	"github.com/lumahq/chainmesh/registry"
	"github.com/lumahq/chainmesh/sink"
)

// Options configures the ChainMesh instance.
type Options struct {
	// RegistrySource supplies the agent & chain definition document.
	// Ignored when Registry is set directly.
	RegistrySource registry.Source

	// RegistryTTL refreshes the definition document at most this often.
	// Zero keeps the first parse until Reload.
	RegistryTTL time.Duration

	// Registry overrides the source-backed provider entirely.
	Registry core.Registry

	// Caller overrides the HTTP dispatch layer, mainly for tests.
	Caller core.AgentCaller

	// HTTPClient underlies the default dispatch caller.
	HTTPClient *http.Client

	// DefaultTimeout bounds agent calls that specify no timeout of their
	// own.
	DefaultTimeout time.Duration

	// Store holds batch records (defaults to in-memory).
	Store core.BatchStore

	// Sink receives completion events (defaults to NoOp).
	Sink core.EventSink

	// MaxConcurrency caps per-batch parallelism.
	MaxConcurrency int

	// MaxRetryAttempts caps per-step delivery attempts.
	MaxRetryAttempts int

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// ChainMesh is the high-level façade aggregating registry, dispatch,
// execution and batch scheduling.
type ChainMesh struct {
	registry  core.Registry
	caller    core.AgentCaller
	executor  *chain.Executor
	scheduler *batch.Scheduler
	dispatch  *dispatch.Caller // nil when a custom Caller was supplied
	logger    logging.Logger
}

// New creates a ChainMesh instance with optional overrides. Any unset
// component is initialized with its default implementation.
func New(optFns ...func(o *Options)) *ChainMesh {
	opts := Options{
		Sink:   sink.NoOp{},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	reg := opts.Registry
	if reg == nil && opts.RegistrySource != nil {
		reg = registry.New(opts.RegistrySource, func(o *registry.Options) {
			o.TTL = opts.RegistryTTL
			o.Logger = opts.Logger
		})
	}

	var httpCaller *dispatch.Caller
	caller := opts.Caller
	if caller == nil {
		httpCaller = dispatch.New(reg, func(o *dispatch.Options) {
			if opts.HTTPClient != nil {
				o.HTTPClient = opts.HTTPClient
			}
			if opts.DefaultTimeout > 0 {
				o.DefaultTimeout = opts.DefaultTimeout
			}
			o.Logger = opts.Logger
		})
		caller = httpCaller
	}

	executor := chain.New(reg, caller, func(o *chain.Options) {
		o.Sink = opts.Sink
		o.Logger = opts.Logger
		if opts.MaxRetryAttempts > 0 {
			o.MaxRetryAttempts = opts.MaxRetryAttempts
		}
	})

	scheduler := batch.New(executor, func(o *batch.Options) {
		if opts.Store != nil {
			o.Store = opts.Store
		}
		if opts.MaxConcurrency > 0 {
			o.MaxConcurrency = opts.MaxConcurrency
		}
		o.Sink = opts.Sink
		o.Logger = opts.Logger
	})

	return &ChainMesh{
		registry:  reg,
		caller:    caller,
		executor:  executor,
		scheduler: scheduler,
		dispatch:  httpCaller,
		logger:    opts.Logger,
	}
}

// Registry exposes the definition provider.
func (m *ChainMesh) Registry() core.Registry { return m.registry }

// Executor exposes the chain executor for advanced wiring.
func (m *ChainMesh) Executor() *chain.Executor { return m.executor }

// Scheduler exposes the batch scheduler for advanced wiring.
func (m *ChainMesh) Scheduler() *batch.Scheduler { return m.scheduler }

// Caller exposes the agent dispatch layer.
func (m *ChainMesh) Caller() core.AgentCaller { return m.caller }

// ExecuteChain runs the named chain to completion.
func (m *ChainMesh) ExecuteChain(ctx context.Context, name string, input, options map[string]any) (*core.ExecutionResult, error) {
	return m.executor.Execute(ctx, chain.NamedSource(name), input, options)
}

// ExecuteSteps runs an ad-hoc inline chain to completion.
func (m *ChainMesh) ExecuteSteps(ctx context.Context, steps []core.StepDefinition, input, options map[string]any) (*core.ExecutionResult, error) {
	return m.executor.Execute(ctx, chain.InlineSource(steps), input, options)
}

// Submit registers a batch for asynchronous execution and returns its id.
func (m *ChainMesh) Submit(specs []batch.TaskSpec, concurrency int, callbackURL string) (string, error) {
	return m.scheduler.Submit(specs, concurrency, callbackURL)
}

// BatchStatus returns a point-in-time snapshot of the batch.
func (m *ChainMesh) BatchStatus(batchID string) (*core.BatchExecution, error) {
	return m.scheduler.Status(batchID)
}

// CancelBatch marks unstarted tasks of the batch as cancelled.
func (m *ChainMesh) CancelBatch(batchID string) (*core.BatchExecution, error) {
	return m.scheduler.Cancel(batchID)
}

// Close releases resources held by the default dispatch layer. Safe to call
// when a custom caller was supplied.
func (m *ChainMesh) Close() {
	if m.dispatch != nil {
		m.dispatch.Close()
	}
}
