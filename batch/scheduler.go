package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lumahq/chainmesh/chain"
	"github.com/lumahq/chainmesh/core"
	"github.com/lumahq/chainmesh/logging"
	"github.com/lumahq/chainmesh/sink"
)

// Options configures a Scheduler.
type Options struct {
	// Store holds batch records. Defaults to a fresh InMemoryStore.
	Store core.BatchStore

	// MaxConcurrency is the system-wide cap; caller-supplied concurrency
	// is clamped to it.
	MaxConcurrency int

	// Sink receives one event per finalized batch. Defaults to NoOp.
	Sink core.EventSink

	// Logger receives scheduling diagnostics. Defaults to NoOp.
	Logger logging.Logger

	// CallbackClient performs the one-shot completion POST. Defaults to a
	// client with a 10s timeout.
	CallbackClient *http.Client
}

// TaskSpec describes one unit of a batch submission.
type TaskSpec struct {
	ChainName string
	Steps     []core.StepDefinition
	Input     map[string]any
	Options   map[string]any
}

// Scheduler runs submitted batches asynchronously through a chain.Executor.
// Admission is gated by a counting semaphore sized min(requested, system
// max); all tasks start immediately and block on acquisition, giving
// FIFO-ish admission with no per-task priority.
type Scheduler struct {
	executor *chain.Executor
	store    core.BatchStore
	sink     core.EventSink
	logger   logging.Logger
	maxConc  int
	client   *http.Client
}

// New constructs a Scheduler around the executor.
func New(executor *chain.Executor, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		Store:          NewInMemoryStore(),
		MaxConcurrency: 10,
		Sink:           sink.NoOp{},
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CallbackClient == nil {
		opts.CallbackClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Scheduler{
		executor: executor,
		store:    opts.Store,
		sink:     opts.Sink,
		logger:   opts.Logger,
		maxConc:  opts.MaxConcurrency,
		client:   opts.CallbackClient,
	}
}

// Submit validates the specs, registers the batch and returns its id
// immediately; execution proceeds asynchronously. Each spec must carry
// exactly one of ChainName or Steps.
func (s *Scheduler) Submit(specs []TaskSpec, concurrency int, callbackURL string) (string, error) {
	if len(specs) == 0 {
		return "", errors.New("batch needs at least one task")
	}
	for i, spec := range specs {
		if (spec.ChainName == "") == (len(spec.Steps) == 0) {
			return "", fmt.Errorf("task %d: exactly one of chainName or steps is required", i)
		}
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > s.maxConc {
		concurrency = s.maxConc
	}

	b := &core.BatchExecution{
		BatchID:     core.NewID(),
		Concurrency: concurrency,
		Status:      core.ExecutionRunning,
		CallbackURL: callbackURL,
		CreatedAt:   time.Now().UTC(),
	}
	for _, spec := range specs {
		b.Tasks = append(b.Tasks, &core.BatchTask{
			TaskID:    core.NewID(),
			ChainName: spec.ChainName,
			Steps:     spec.Steps,
			Input:     spec.Input,
			Options:   spec.Options,
			Status:    core.ExecutionPending,
		})
	}
	if err := s.store.Create(b); err != nil {
		return "", err
	}

	s.logger.Info("batch submitted", "batch_id", b.BatchID, "tasks", len(b.Tasks), "concurrency", concurrency)
	go s.run(b.BatchID, concurrency)

	return b.BatchID, nil
}

// Status returns a point-in-time snapshot of the batch.
func (s *Scheduler) Status(batchID string) (*core.BatchExecution, error) {
	return s.store.Get(batchID)
}

// Cancel marks every task still waiting for admission as cancelled.
// Already-dispatched executions cannot be safely aborted and run to
// completion; the batch still finalizes once they drain.
func (s *Scheduler) Cancel(batchID string) (*core.BatchExecution, error) {
	err := s.store.Update(batchID, func(b *core.BatchExecution) {
		for _, task := range b.Tasks {
			if task.Status == core.ExecutionPending {
				task.Status = core.ExecutionCancelled
				b.Cancelled++
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return s.store.Get(batchID)
}

// run executes every task of the batch under the semaphore and finalizes
// the record once all tasks are terminal.
func (s *Scheduler) run(batchID string, concurrency int) {
	snap, err := s.store.Get(batchID)
	if err != nil {
		s.logger.Error("batch vanished before start", "batch_id", batchID, "error", err)
		return
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, task := range snap.Tasks {
		wg.Add(1)
		go func(taskID string, spec TaskSpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.runTask(batchID, taskID, spec)
		}(task.TaskID, TaskSpec{
			ChainName: task.ChainName,
			Steps:     task.Steps,
			Input:     task.Input,
			Options:   task.Options,
		})
	}

	wg.Wait()
	s.finalize(batchID)
}

// runTask admits one task, executes it and folds the outcome into the batch
// counters. Cancelled tasks are skipped at admission time.
func (s *Scheduler) runTask(batchID, taskID string, spec TaskSpec) {
	admitted := false
	_ = s.store.Update(batchID, func(b *core.BatchExecution) {
		task := findTask(b, taskID)
		if task != nil && task.Status == core.ExecutionPending {
			task.Status = core.ExecutionRunning
			admitted = true
		}
	})
	if !admitted {
		return
	}

	src := chain.NamedSource(spec.ChainName)
	if spec.ChainName == "" {
		src = chain.InlineSource(spec.Steps)
	}

	res, err := s.executor.Execute(context.Background(), src, spec.Input, spec.Options)

	_ = s.store.Update(batchID, func(b *core.BatchExecution) {
		task := findTask(b, taskID)
		if task == nil {
			return
		}
		if err != nil {
			// e.g. a task referencing an unknown chain; recorded
			// per-task without affecting siblings
			task.Status = core.ExecutionFailed
			task.Error = err.Error()
			b.Failed++
			return
		}
		task.Status = res.Status
		task.Result = res
		b.TotalCost += res.TotalCost
		if res.Status == core.ExecutionFailed {
			b.Failed++
		} else {
			b.Completed++
		}
	})

	if err != nil {
		s.logger.Warn("batch task failed to start", "batch_id", batchID, "task_id", taskID, "error", err)
	}
}

// finalize derives the batch terminal status, emits the completion event and
// fires the one-shot callback when configured.
func (s *Scheduler) finalize(batchID string) {
	var final *core.BatchExecution
	err := s.store.Update(batchID, func(b *core.BatchExecution) {
		switch {
		case b.Completed == len(b.Tasks):
			b.Status = core.ExecutionCompleted
		case b.Completed == 0:
			b.Status = core.ExecutionFailed
		default:
			b.Status = core.ExecutionPartial
		}
		b.FinishedAt = time.Now().UTC()
		final = snapshot(b)
	})
	if err != nil {
		s.logger.Error("batch finalize failed", "batch_id", batchID, "error", err)
		return
	}

	s.logger.Info("batch finalized",
		"batch_id", batchID,
		"status", final.Status,
		"completed", final.Completed,
		"failed", final.Failed,
		"cancelled", final.Cancelled,
		"total_cost", final.TotalCost,
	)

	if err := s.sink.Emit(context.Background(), core.NewBatchCompletedEvent(final)); err != nil {
		s.logger.Warn("batch event emission failed", "batch_id", batchID, "error", err)
	}
	if final.CallbackURL != "" {
		s.postCallback(final)
	}
}

// postCallback POSTs the batch summary once; failures are logged, never
// retried.
func (s *Scheduler) postCallback(b *core.BatchExecution) {
	payload, err := json.Marshal(map[string]any{
		"batchId":         b.BatchID,
		"status":          b.Status,
		"completed":       b.Completed,
		"failed":          b.Failed,
		"cancelled":       b.Cancelled,
		"totalCost":       b.TotalCost,
		"progressPercent": b.Progress(),
	})
	if err != nil {
		s.logger.Warn("callback payload encoding failed", "batch_id", b.BatchID, "error", err)
		return
	}

	resp, err := s.client.Post(b.CallbackURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		s.logger.Warn("batch callback failed", "batch_id", b.BatchID, "url", b.CallbackURL, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("batch callback rejected", "batch_id", b.BatchID, "status", resp.StatusCode)
	}
}

func findTask(b *core.BatchExecution, taskID string) *core.BatchTask {
	for _, task := range b.Tasks {
		if task.TaskID == taskID {
			return task
		}
	}
	return nil
}
