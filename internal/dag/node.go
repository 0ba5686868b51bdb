// Package dag assembles analysis, merge, and retry jobs into the
// directed acyclic graph submitted to the external batch engine.
package dag

import (
	"fmt"

	"github.com/alecgunny/pyomicron/internal/model"
)

// Kind classifies a node.
type Kind int

const (
	KindAnalysis Kind = iota
	KindMerge
	KindRetry
)

func (k Kind) String() string {
	switch k {
	case KindAnalysis:
		return "analysis"
	case KindMerge:
		return "merge"
	case KindRetry:
		return "retry"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// State is a node's position in its lifecycle. States only advance
// forward; a failed node is never reanimated in place, it is superseded
// by a fresh retry node.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StateRunning
	StateSucceeded
	StateFailed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "retry-exhausted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ParseState is the inverse of String.
func ParseState(s string) (State, error) {
	for st := StateIdle; st <= StateExhausted; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown node state %q", s)
}

// Terminal reports whether a node in this state will never change
// state again.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted
}

var transitions = map[State][]State{
	StateIdle:      {StateSubmitted},
	StateSubmitted: {StateRunning, StateSucceeded, StateFailed},
	StateRunning:   {StateSucceeded, StateFailed},
	StateFailed:    {StateExhausted},
}

// CanAdvance reports whether the state machine permits moving from s
// to next.
func (s State) CanAdvance(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Node is one vertex of the submission graph. Nodes reference job
// specs and merge groups by back-reference only; they do not own them.
type Node struct {
	Name    string
	Kind    Kind
	Command string
	Args    []string

	// Retry is the engine-level retry count declared in the
	// submission file; the tracker additionally supersedes failed
	// nodes up to the planning retry budget.
	Retry int

	RequestMemoryMB int
	RequestDiskMB   int

	// Parents are sorted by name. A merge node's parents are the
	// analysis nodes of its member jobs; analysis nodes have parents
	// only when concurrency-throttling edges are generated.
	Parents []*Node

	State State

	// Attempt counts supersessions in this node's lineage, starting
	// at zero for the originally planned node.
	Attempt int

	// Supersedes and SupersededBy link the retry lineage, keeping the
	// graph's history auditable: failed nodes stay in the graph,
	// marked superseded, instead of being mutated in place.
	Supersedes   string
	SupersededBy string

	Job   *model.JobSpec
	Group *model.MergeGroup
}

// Active reports whether this node is the current representative of
// its lineage.
func (n *Node) Active() bool {
	return n.SupersededBy == ""
}
