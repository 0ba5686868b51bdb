// Package tracker ingests job-completion signals from the batch engine
// and decides what happens next: retries, gap recording, merge kickoff,
// or completion.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alecgunny/pyomicron/internal/dag"
	"github.com/alecgunny/pyomicron/internal/model"
)

// ActionKind classifies a tracker decision.
type ActionKind int

const (
	// ActionRetry asks for a superseding retry node to be executed.
	ActionRetry ActionKind = iota
	// ActionMarkGapped records that an interval had no usable input
	// data, feeding the next planning pass instead of a blind retry.
	ActionMarkGapped
	// ActionRequestMerge fires when every constituent of a merge
	// group has succeeded.
	ActionRequestMerge
	// ActionComplete fires when every active node reached terminal
	// success.
	ActionComplete
)

func (k ActionKind) String() string {
	switch k {
	case ActionRetry:
		return "retry"
	case ActionMarkGapped:
		return "mark-gapped"
	case ActionRequestMerge:
		return "request-merge"
	case ActionComplete:
		return "complete"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one decision produced by an observation pass.
type Action struct {
	Kind  ActionKind
	Node  string
	Gap   model.Range
	Group string
}

// Recorder is the subset of the run ledger the tracker writes to.
type Recorder interface {
	RecordState(runID, node string, state dag.State, exitCode, attempt int) error
	RecordGap(runID string, gap model.Range, source string) error
	HasGap(runID string, gap model.Range) (bool, error)
}

// Tracker polls the engine and advances the DAG's node states. It is
// the only writer of node state after graph emission. Observation is
// idempotent: a node already in a terminal state yields no new action
// however many times it is reported.
type Tracker struct {
	Engine     Engine
	Dag        *dag.Dag
	Submission string

	RunID  string
	Ledger Recorder

	// MaxRetries bounds supersessions per node lineage.
	MaxRetries int

	// NoDataExitCode is the algorithm's "no usable input" exit code,
	// distinguishing gap-causing failures from retryable ones.
	NoDataExitCode int

	// Interval bounds the wait between polls in Run.
	Interval time.Duration

	// OutputsExist overrides the expected-output check, used in
	// tests. Nil means stat the job's expected output files.
	OutputsExist func(*dag.Node) bool
}

// Observe ingests one engine report and returns the resulting actions.
// It holds no lock across the engine call and may be invoked any
// number of times; repeated observation of terminal states produces
// nothing new.
func (t *Tracker) Observe(ctx context.Context) ([]Action, error) {
	report, err := t.Engine.Status(ctx, t.Submission)
	if err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	var actions []Action
	for _, node := range t.Dag.Active() {
		if node.State.Terminal() {
			continue
		}
		// an idle merge node is not yet eligible for execution;
		// checkMerges releases it once every parent has succeeded
		if node.Group != nil && node.State == dag.StateIdle {
			continue
		}
		status, reported := report[node.Name]
		if !reported {
			continue
		}

		switch status.Phase {
		case PhaseQueued:
			err = t.advance(node, dag.StateSubmitted)
		case PhaseRunning:
			err = t.advance(node, dag.StateRunning)
		case PhaseDone:
			if t.outputsPresent(node) {
				err = t.advance(node, dag.StateSucceeded)
			} else {
				// exit-success with missing expected outputs is a
				// job failure
				actions, err = t.classifyFailure(actions, node, status.ExitCode)
			}
		case PhaseFailed:
			actions, err = t.classifyFailure(actions, node, status.ExitCode)
		default:
			err = fmt.Errorf("observe: node %s: unknown phase %q", node.Name, status.Phase)
		}
		if err != nil {
			return nil, err
		}
	}

	actions, err = t.checkMerges(actions)
	if err != nil {
		return nil, err
	}

	if t.allSucceeded() {
		actions = append(actions, Action{Kind: ActionComplete})
	}
	return actions, nil
}

func (t *Tracker) classifyFailure(actions []Action, node *dag.Node, exitCode int) ([]Action, error) {
	if err := t.advance(node, dag.StateFailed); err != nil {
		return nil, err
	}

	if node.Job != nil && exitCode == t.NoDataExitCode {
		gap := node.Job.Span()
		if t.Ledger != nil {
			known, err := t.Ledger.HasGap(t.RunID, gap)
			if err != nil {
				return nil, err
			}
			if known {
				return actions, nil
			}
			if err := t.Ledger.RecordGap(t.RunID, gap, node.Name); err != nil {
				return nil, err
			}
		}
		return append(actions, Action{Kind: ActionMarkGapped, Node: node.Name, Gap: gap}), nil
	}

	retry, err := t.Dag.Supersede(node.Name, t.MaxRetries)
	if err != nil {
		if errors.Is(err, dag.ErrRetryExhausted) {
			// terminal failure: surfaced per-node by status, never
			// auto-retried
			t.record(node.Name, dag.StateExhausted, exitCode, node.Attempt)
			return actions, nil
		}
		return nil, err
	}
	t.record(retry.Name, retry.State, 0, retry.Attempt)
	return append(actions, Action{Kind: ActionRetry, Node: retry.Name}), nil
}

// checkMerges moves idle merge nodes to submitted once every parent
// has succeeded, which is the only path into a RequestMerge action.
func (t *Tracker) checkMerges(actions []Action) ([]Action, error) {
	for _, node := range t.Dag.Active() {
		if node.Group == nil || node.State != dag.StateIdle {
			continue
		}
		ready := true
		for _, parent := range node.Parents {
			if parent.State != dag.StateSucceeded {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if err := t.advance(node, dag.StateSubmitted); err != nil {
			return nil, err
		}
		actions = append(actions, Action{Kind: ActionRequestMerge, Node: node.Name, Group: node.Group.ID()})
	}
	return actions, nil
}

func (t *Tracker) allSucceeded() bool {
	for _, node := range t.Dag.Active() {
		if node.State != dag.StateSucceeded {
			return false
		}
	}
	return true
}

// advance walks the node through intermediate states to target so the
// machine never skips a transition, recording each step.
func (t *Tracker) advance(node *dag.Node, target dag.State) error {
	for _, step := range statePath(node.State, target) {
		if err := t.Dag.SetState(node.Name, step); err != nil {
			return err
		}
		t.record(node.Name, step, 0, node.Attempt)
	}
	return nil
}

func (t *Tracker) record(name string, state dag.State, exitCode, attempt int) {
	if t.Ledger == nil {
		return
	}
	// ledger writes are best-effort audit trail; observation proceeds
	// even if one fails
	_ = t.Ledger.RecordState(t.RunID, name, state, exitCode, attempt)
}

// statePath lists the transitions needed to reach target from cur, in
// order. An unreachable target yields nil.
func statePath(cur, target dag.State) []dag.State {
	var steps []dag.State
	for cur != target {
		if cur.CanAdvance(target) {
			return append(steps, target)
		}
		switch cur {
		case dag.StateIdle:
			cur = dag.StateSubmitted
		case dag.StateSubmitted:
			cur = dag.StateRunning
		default:
			return nil
		}
		steps = append(steps, cur)
	}
	return steps
}

func (t *Tracker) outputsPresent(node *dag.Node) bool {
	if t.OutputsExist != nil {
		return t.OutputsExist(node)
	}
	if node.Group != nil {
		_, err := os.Stat(node.Group.ConsolidatedPath)
		return err == nil
	}
	if node.Job == nil {
		return true
	}
	for _, path := range node.Job.Outputs {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// Run polls Observe every Interval, delivering each batch of actions on
// the channel. It exits when the run completes, or when ctx is
// cancelled at a poll boundary; cancellation never corrupts DAG state
// because each observation pass commits its transitions before waiting.
func (t *Tracker) Run(ctx context.Context, actions chan<- []Action) error {
	interval := t.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		acts, err := t.Observe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// transient engine failure: retry on the next tick
		} else {
			select {
			case actions <- acts:
			case <-ctx.Done():
				return ctx.Err()
			}
			for _, a := range acts {
				if a.Kind == ActionComplete {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
