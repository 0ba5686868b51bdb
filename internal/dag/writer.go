package dag

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Write serializes the active graph in the batch engine's submission
// format: one JOB line per node with its command, a RETRY and VARS line
// carrying per-node metadata, then PARENT/CHILD edge declarations.
// Output is byte-stable for identical planning input; nodes and edges
// appear in lexical name order so two plans can be diffed directly.
func (d *Dag) Write(w io.Writer) error {
	return d.write(w, func(*Node) bool { return true })
}

// WriteRescue serializes only the active nodes that have not yet
// succeeded, producing the retry sub-DAG re-submitted after a partial
// failure. Edges into succeeded nodes are dropped since those parents
// are already satisfied.
func (d *Dag) WriteRescue(w io.Writer) error {
	return d.write(w, func(n *Node) bool { return n.State != StateSucceeded })
}

func (d *Dag) write(w io.Writer, include func(*Node) bool) error {
	var nodes []*Node
	included := make(map[string]bool)
	for _, n := range d.Active() {
		if include(n) {
			nodes = append(nodes, n)
			included[n.Name] = true
		}
	}

	var b bytes.Buffer
	for _, n := range nodes {
		fmt.Fprintf(&b, "JOB %s %s %s\n", n.Name, n.Command, strings.Join(n.Args, " "))
		fmt.Fprintf(&b, "RETRY %s %d\n", n.Name, n.Retry)
		fmt.Fprintf(&b, "VARS %s kind=\"%s\" request_memory_mb=\"%d\" request_disk_mb=\"%d\"\n",
			n.Name, n.Kind, n.RequestMemoryMB, n.RequestDiskMB)
	}
	for _, n := range nodes {
		var parents []string
		for _, p := range n.Parents {
			if included[p.Name] {
				parents = append(parents, p.Name)
			}
		}
		if len(parents) == 0 {
			continue
		}
		fmt.Fprintf(&b, "PARENT %s CHILD %s\n", strings.Join(parents, " "), n.Name)
	}

	_, err := w.Write(b.Bytes())
	return err
}

// WriteFile renders the graph to path. If an identical file already
// exists the write is skipped and alreadyWritten is true: re-submission
// of an already-submitted DAG is detected, not duplicated.
func (d *Dag) WriteFile(path string) (alreadyWritten bool, err error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return false, err
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, buf.Bytes()) {
		return true, nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create dag directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("write dag file: %w", err)
	}
	return false, nil
}
