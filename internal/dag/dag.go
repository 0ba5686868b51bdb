package dag

import (
	"errors"
	"fmt"
	"sort"
)

// ValidationError reports a structural defect in a built graph: a
// duplicate node name, a dangling parent, or a cycle. It signals a
// planning bug and is fatal to the run, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dag validation: %s", e.Reason)
}

// ErrRetryExhausted is returned by Supersede when a node has no retry
// budget left.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// Dag is a validated graph of nodes keyed by name.
type Dag struct {
	nodes map[string]*Node
}

func newDag() *Dag {
	return &Dag{nodes: make(map[string]*Node)}
}

// Node returns the named node, or nil.
func (d *Dag) Node(name string) *Node {
	return d.nodes[name]
}

// Len is the total node count, superseded lineage included.
func (d *Dag) Len() int {
	return len(d.nodes)
}

// Names returns all node names sorted lexically. The ordering is part
// of the determinism contract: every serialization of the same graph
// walks nodes in this order.
func (d *Dag) Names() []string {
	names := make([]string, 0, len(d.nodes))
	for name := range d.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active returns the active (non-superseded) nodes in name order.
func (d *Dag) Active() []*Node {
	var out []*Node
	for _, name := range d.Names() {
		if n := d.nodes[name]; n.Active() {
			out = append(out, n)
		}
	}
	return out
}

func (d *Dag) add(n *Node) error {
	if n.Name == "" {
		return &ValidationError{Reason: "node with empty name"}
	}
	if _, exists := d.nodes[n.Name]; exists {
		return &ValidationError{Reason: fmt.Sprintf("duplicate node name %s", n.Name)}
	}
	d.nodes[n.Name] = n
	return nil
}

// Validate checks that every parent reference resolves and that the
// parent relation is acyclic.
func (d *Dag) Validate() error {
	for _, name := range d.Names() {
		for _, parent := range d.nodes[name].Parents {
			if d.nodes[parent.Name] == nil {
				return &ValidationError{
					Reason: fmt.Sprintf("node %s has unknown parent %s", name, parent.Name),
				}
			}
		}
	}

	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	for _, name := range d.Names() {
		if !visited[name] {
			if cycle := d.findCycle(name, visited, inStack); cycle != "" {
				return &ValidationError{Reason: fmt.Sprintf("cycle through node %s", cycle)}
			}
		}
	}
	return nil
}

// findCycle walks parent edges depth-first, returning the name of a
// node on a cycle, or "".
func (d *Dag) findCycle(name string, visited, inStack map[string]bool) string {
	visited[name] = true
	inStack[name] = true

	for _, parent := range d.nodes[name].Parents {
		if !visited[parent.Name] {
			if cycle := d.findCycle(parent.Name, visited, inStack); cycle != "" {
				return cycle
			}
		} else if inStack[parent.Name] {
			return parent.Name
		}
	}

	inStack[name] = false
	return ""
}

// SetState advances a node through its state machine. Re-applying the
// current state is a no-op, so repeated observation of the same engine
// report is idempotent; any other backward move is rejected.
func (d *Dag) SetState(name string, next State) error {
	n := d.nodes[name]
	if n == nil {
		return fmt.Errorf("set state: unknown node %s", name)
	}
	if n.State == next {
		return nil
	}
	if !n.State.CanAdvance(next) {
		return fmt.Errorf("set state: node %s cannot move %s -> %s", name, n.State, next)
	}
	n.State = next
	return nil
}

// Supersede replaces a failed node with a fresh retry node carrying the
// same command, parents, and children, bounded by maxRetries attempts.
// The failed node stays in the graph for audit; children are rewired to
// the replacement. On an exhausted budget the node is marked
// retry-exhausted and ErrRetryExhausted is returned.
func (d *Dag) Supersede(name string, maxRetries int) (*Node, error) {
	n := d.nodes[name]
	if n == nil {
		return nil, fmt.Errorf("supersede: unknown node %s", name)
	}
	if n.State != StateFailed {
		return nil, fmt.Errorf("supersede: node %s is %s, not failed", name, n.State)
	}
	if !n.Active() {
		return nil, fmt.Errorf("supersede: node %s already superseded by %s", name, n.SupersededBy)
	}
	if n.Attempt >= maxRetries {
		n.State = StateExhausted
		return nil, fmt.Errorf("supersede node %s after %d attempts: %w", name, n.Attempt, ErrRetryExhausted)
	}

	retry := &Node{
		Name:            fmt.Sprintf("%s.r%d", lineageRoot(n.Name), n.Attempt+1),
		Kind:            KindRetry,
		Command:         n.Command,
		Args:            append([]string{}, n.Args...),
		Retry:           n.Retry,
		RequestMemoryMB: n.RequestMemoryMB,
		RequestDiskMB:   n.RequestDiskMB,
		Parents:         append([]*Node{}, n.Parents...),
		State:           StateIdle,
		Attempt:         n.Attempt + 1,
		Supersedes:      n.Name,
		Job:             n.Job,
		Group:           n.Group,
	}
	if err := d.add(retry); err != nil {
		return nil, err
	}
	n.SupersededBy = retry.Name

	for _, other := range d.nodes {
		for i, parent := range other.Parents {
			if parent == n {
				other.Parents[i] = retry
			}
		}
	}
	return retry, nil
}

// Lineage returns a node's supersession chain from the original node
// to the current one.
func (d *Dag) Lineage(name string) []*Node {
	n := d.nodes[name]
	if n == nil {
		return nil
	}
	for n.Supersedes != "" {
		n = d.nodes[n.Supersedes]
	}
	out := []*Node{n}
	for n.SupersededBy != "" {
		n = d.nodes[n.SupersededBy]
		out = append(out, n)
	}
	return out
}

// lineageRoot strips any ".rN" retry suffix, so successive retries of
// one job share a name stem.
func lineageRoot(name string) string {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '.' {
			if isRetrySuffix(name[i+1:]) {
				return name[:i]
			}
			return name
		}
	}
	return name
}

func isRetrySuffix(s string) bool {
	if len(s) < 2 || s[0] != 'r' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
