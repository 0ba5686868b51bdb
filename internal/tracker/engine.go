package tracker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phase is the batch engine's view of one job.
type Phase string

const (
	PhaseQueued  Phase = "queued"
	PhaseRunning Phase = "running"
	PhaseDone    Phase = "done"
	PhaseFailed  Phase = "failed"
)

// JobStatus is one node's status as reported by the engine.
type JobStatus struct {
	Phase    Phase `yaml:"phase"`
	ExitCode int   `yaml:"exit"`
}

// Engine is the external batch execution engine, specified only at its
// interface boundary: it accepts a DAG description and reports per-node
// status. Submission is the only write; status queries are bounded,
// side-effect-free reads.
type Engine interface {
	Submit(ctx context.Context, dagFile string) (submission string, err error)
	Status(ctx context.Context, submission string) (map[string]JobStatus, error)
}

// ExecEngine adapts a command-line batch engine: submission and status
// are external commands, with the status command printing a YAML map of
// node name to {phase, exit}.
type ExecEngine struct {
	SubmitCommand []string `yaml:"submit-command"`
	StatusCommand []string `yaml:"status-command"`
}

func (e *ExecEngine) Submit(ctx context.Context, dagFile string) (string, error) {
	if len(e.SubmitCommand) == 0 {
		return "", fmt.Errorf("engine: no submit command configured")
	}
	out, err := runCommand(ctx, append(append([]string{}, e.SubmitCommand...), dagFile))
	if err != nil {
		return "", fmt.Errorf("engine submit: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *ExecEngine) Status(ctx context.Context, submission string) (map[string]JobStatus, error) {
	if len(e.StatusCommand) == 0 {
		return nil, fmt.Errorf("engine: no status command configured")
	}
	out, err := runCommand(ctx, append(append([]string{}, e.StatusCommand...), submission))
	if err != nil {
		return nil, fmt.Errorf("engine status: %w", err)
	}

	report := make(map[string]JobStatus)
	if err := yaml.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("engine status: parse report: %w", err)
	}
	return report, nil
}

func runCommand(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
