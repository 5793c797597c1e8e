package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/logging"
	"github.com/lumahq/chainmesh/sink"
	"github.com/lumahq/chainmesh/template"
)

// Options configures an Executor.
type Options struct {
	// Sink receives one completion event per execution. Defaults to NoOp.
	Sink core.EventSink

	// Logger receives per-step diagnostics. Defaults to NoOp.
	Logger logging.Logger

	// MaxRetryAttempts caps total dispatch attempts per step regardless of
	// the step's declared RetryCount.
	MaxRetryAttempts int

	// RetryBaseDelay is the first backoff interval; it doubles per attempt.
	RetryBaseDelay time.Duration
}

// Executor runs chains against the registry through the agent caller.
// Instances are immutable after construction and safe for concurrent use.
type Executor struct {
	registry    core.Registry
	caller      core.AgentCaller
	sink        core.EventSink
	logger      logging.Logger
	maxAttempts int
	retryBase   time.Duration
}

// New constructs an Executor. Registry may be nil when only inline sources
// are executed; the caller is required.
func New(registry core.Registry, caller core.AgentCaller, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Sink:             sink.NoOp{},
		Logger:           logging.NoOpLogger{},
		MaxRetryAttempts: 5,
		RetryBaseDelay:   250 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Executor{
		registry:    registry,
		caller:      caller,
		sink:        opts.Sink,
		logger:      opts.Logger,
		maxAttempts: opts.MaxRetryAttempts,
		retryBase:   opts.RetryBaseDelay,
	}
}

// Execute runs the source to completion. The returned error is non-nil only
// when the source itself cannot be resolved (unknown chain, bad input);
// every resolved execution yields a well-formed ExecutionResult whose Status
// and Error fields carry step-level failures.
func (e *Executor) Execute(ctx context.Context, src Source, input, options map[string]any) (*core.ExecutionResult, error) {
	chainName, steps, outputTemplate, err := src.resolve(e.registry)
	if err != nil {
		return nil, err
	}
	execCtx, err := core.NewExecutionContext(input, options)
	if err != nil {
		return nil, err
	}

	res := &core.ExecutionResult{
		ExecutionID: core.NewID(),
		ChainName:   chainName,
		Status:      core.ExecutionRunning,
		StartedAt:   time.Now().UTC(),
	}

	var lastOutput any
	anyFailed := false

	for _, step := range steps {
		sr, fatal := e.runStep(ctx, execCtx, step)
		res.StepResults = append(res.StepResults, sr)
		res.TotalCost += sr.Cost

		switch sr.Status {
		case core.StepCompleted:
			lastOutput = sr.Output
		case core.StepFailed:
			anyFailed = true
			if fatal || !step.Optional {
				res.Status = core.ExecutionFailed
				res.Error = sr.Error
			}
		}
		if res.Status == core.ExecutionFailed {
			break
		}
	}

	if res.Status != core.ExecutionFailed {
		if anyFailed {
			res.Status = core.ExecutionPartial
		} else {
			res.Status = core.ExecutionCompleted
		}
	}

	if outputTemplate != "" {
		res.FinalOutput = template.Render(outputTemplate, execCtx)
	} else {
		res.FinalOutput = lastOutput
	}

	res.FinishedAt = time.Now().UTC()
	res.Duration = res.FinishedAt.Sub(res.StartedAt).Milliseconds()

	e.logger.Info("chain execution finished",
		"execution_id", res.ExecutionID,
		"chain", chainName,
		"status", res.Status,
		"steps", len(res.StepResults),
		"total_cost", res.TotalCost,
		"duration_ms", res.Duration,
	)
	e.emit(ctx, core.NewChainCompletedEvent(res))

	return res, nil
}

// emit delivers an event to the sink, swallowing delivery failures.
func (e *Executor) emit(ctx context.Context, ev core.Event) {
	if err := e.sink.Emit(ctx, ev); err != nil {
		e.logger.Warn("event emission failed", "event_type", ev.EventType, "error", err)
	}
}

// runStep drives one step through its state machine. The second return marks
// failures that halt the chain even for optional steps (required-input
// violations). Any panic inside step logic is recovered into a failed result
// rather than crashing the chain.
func (e *Executor) runStep(ctx context.Context, execCtx *core.ExecutionContext, step core.StepDefinition) (res core.StepResult, fatal bool) {
	res = core.StepResult{
		StepID: step.ID,
		Agent:  step.Agent,
		Action: step.Action,
		Status: core.StepRunning,
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Status = core.StepFailed
			res.Error = fmt.Sprintf("step %s: panic: %v", step.ID, r)
			_ = execCtx.RecordFailure(step.ID, res.Error)
		}
		res.Duration = time.Since(start).Milliseconds()
	}()

	if step.Condition != nil {
		ok, err := step.Condition.Evaluate(execCtx)
		if err != nil {
			res.Status = core.StepFailed
			res.Error = fmt.Sprintf("step %s: %v", step.ID, err)
			_ = execCtx.RecordFailure(step.ID, res.Error)
			return res, false
		}
		if !ok {
			res.Status = core.StepSkipped
			_ = execCtx.RecordSkip(step.ID)
			e.logger.Debug("step skipped by condition", "step", step.ID)
			return res, false
		}
	}

	for _, key := range step.RequiredInputs {
		if !execCtx.Exists(key) {
			res.Status = core.StepFailed
			res.Error = fmt.Sprintf("step %s: %v: %s", step.ID, core.ErrMissingRequiredInput, key)
			_ = execCtx.RecordFailure(step.ID, res.Error)
			return res, true
		}
	}

	if step.IsParallel() {
		return e.runParallel(ctx, execCtx, step), false
	}

	params := template.RenderParams(step.Params, execCtx)

	resp, attempts, err := e.dispatch(ctx, step, params)
	res.Attempts = attempts
	if err != nil {
		res.Status = core.StepFailed
		res.Error = fmt.Sprintf("step %s: %v", step.ID, err)
		_ = execCtx.RecordFailure(step.ID, res.Error)
		e.logger.Warn("step failed", "step", step.ID, "agent", step.Agent, "action", step.Action, "attempts", attempts, "error", err)
		return res, false
	}

	res.Status = core.StepCompleted
	res.Output = resp.Output
	res.Cost = resp.Cost()
	if err := execCtx.RecordStep(step.ID, core.StepCompleted, resp.Output); err != nil {
		res.Status = core.StepFailed
		res.Error = fmt.Sprintf("step %s: %v", step.ID, err)
		return res, false
	}
	return res, false
}

// dispatch invokes the agent caller with bounded retry. Attempts =
// RetryCount+1 capped at MaxRetryAttempts; backoff doubles from
// RetryBaseDelay between attempts. Context cancellation aborts the wait.
func (e *Executor) dispatch(ctx context.Context, step core.StepDefinition, params map[string]any) (*core.AgentResponse, int, error) {
	attempts := 1
	if step.RetryCount > 0 {
		attempts = step.RetryCount + 1
	}
	if attempts > e.maxAttempts {
		attempts = e.maxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := e.caller.Call(ctx, step.Agent, step.Action, params, step.Timeout)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		if attempt < attempts {
			delay := e.retryBase << (attempt - 1)
			e.logger.Debug("retrying step dispatch", "step", step.ID, "attempt", attempt, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, attempt, ctx.Err()
			}
		}
	}
	return nil, attempts, lastErr
}
