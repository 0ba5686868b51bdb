package workflow

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alecgunny/pyomicron/internal/dag"
)

// ApplyStates replays recorded node states onto a freshly rebuilt
// graph. Planning is deterministic, so the rebuilt graph carries the
// same node names the states were recorded under; this is what makes a
// restart re-derive tracker state instead of trusting memory.
func ApplyStates(d *dag.Dag, states map[string]dag.State) error {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := d.Node(name)
		if node == nil || !node.Active() {
			continue
		}
		for cur := node.State; cur != states[name]; {
			next, ok := stateStep(cur, states[name])
			if !ok {
				return fmt.Errorf("apply states: node %s cannot reach %s from %s", name, states[name], node.State)
			}
			if err := d.SetState(name, next); err != nil {
				return err
			}
			cur = next
		}
	}
	return nil
}

func stateStep(cur, target dag.State) (dag.State, bool) {
	if cur.CanAdvance(target) {
		return target, true
	}
	switch cur {
	case dag.StateIdle:
		return dag.StateSubmitted, true
	case dag.StateSubmitted:
		return dag.StateRunning, true
	case dag.StateRunning:
		// retry-exhausted is only reachable through failed
		if target == dag.StateExhausted {
			return dag.StateFailed, true
		}
	}
	return 0, false
}

// Rescue supersedes every active failed node within the retry budget
// and returns the number of retry nodes created. Nodes whose budget is
// exhausted are left terminal for the operator; the caller then writes
// the rescue sub-DAG for re-submission.
func Rescue(d *dag.Dag, maxRetries int) (int, error) {
	created := 0
	for _, node := range d.Active() {
		if node.State != dag.StateFailed {
			continue
		}
		if _, err := d.Supersede(node.Name, maxRetries); err != nil {
			if errors.Is(err, dag.ErrRetryExhausted) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
