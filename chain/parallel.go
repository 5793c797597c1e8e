package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lumahq/chainmesh/core"
)

// runParallel fans out a composite step's substeps concurrently. Each
// substep runs its own nested state machine against a clone of the
// pre-step context, so siblings never observe each other's output during
// their own execution. Once every substep has finished the aggregated
// outcome map is merged back into the shared context in a single write.
//
// The parent step completes only when no substep failed; otherwise it fails
// with an error naming the failed substeps. Its output is always the full
// map of substep outcomes, failures included.
func (e *Executor) runParallel(ctx context.Context, execCtx *core.ExecutionContext, step core.StepDefinition) core.StepResult {
	res := core.StepResult{StepID: step.ID, Status: core.StepRunning}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[string]core.SubstepOutcome, len(step.Substeps))
		cost     float64
		failed   []string
	)

	for _, sub := range step.Substeps {
		wg.Add(1)
		go func(sub core.StepDefinition) {
			defer wg.Done()

			// Branch isolation: every substep sees the pre-parallel snapshot.
			branchCtx := execCtx.Clone()
			subRes, _ := e.runStep(ctx, branchCtx, sub)

			mu.Lock()
			defer mu.Unlock()
			outcomes[sub.ID] = core.SubstepOutcome{
				Status: subRes.Status,
				Output: subRes.Output,
				Error:  subRes.Error,
			}
			cost += subRes.Cost
			if subRes.Status == core.StepFailed {
				failed = append(failed, sub.ID)
			}
		}(sub)
	}
	wg.Wait()

	res.Cost = cost
	res.Output = outcomes

	if len(failed) > 0 {
		sort.Strings(failed)
		res.Status = core.StepFailed
		res.Error = fmt.Sprintf("step %s: %d of %d substeps failed: %v", step.ID, len(failed), len(step.Substeps), failed)
		_ = execCtx.RecordFailure(step.ID, res.Error)
		return res
	}

	res.Status = core.StepCompleted
	if err := execCtx.RecordStep(step.ID, core.StepCompleted, outcomes); err != nil {
		res.Status = core.StepFailed
		res.Error = fmt.Sprintf("step %s: %v", step.ID, err)
	}
	return res
}
