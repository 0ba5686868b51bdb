package dag

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/alecgunny/pyomicron/internal/model"
)

// Builder assembles the submission graph: one analysis node per job
// spec (independently schedulable fan-out), one merge node per merge
// group whose parents are the analysis nodes of its members.
type Builder struct {
	// Executable and MergeExecutable are the commands the engine runs
	// for analysis and merge nodes.
	Executable      string
	MergeExecutable string

	// ParameterFile and CacheFile are passed to every analysis job.
	ParameterFile string
	CacheFile     string

	// Retry is the engine-level retry count declared per node.
	Retry int

	RequestMemoryMB int
	RequestDiskMB   int

	// MaxConcurrent, when positive, layers analysis nodes with
	// generated PARENT/CHILD edges so at most this many run at once
	// without relying on engine-side throttling.
	MaxConcurrent int
}

// AnalysisNodeName derives the deterministic node name for a job spec.
func AnalysisNodeName(job model.JobSpec) string {
	return "analysis-" + job.ID
}

// MergeNodeName derives the deterministic node name for a merge group.
func MergeNodeName(group model.MergeGroup) string {
	return "merge-" + group.ID()
}

// Build wires jobs and merge groups into a validated graph. Every
// structural defect, including a merge group referencing an unknown
// job, surfaces as a *ValidationError.
func (b *Builder) Build(jobs []model.JobSpec, groups []model.MergeGroup) (*Dag, error) {
	d := newDag()

	byJobID := make(map[string]*Node, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		node := &Node{
			Name:    AnalysisNodeName(*job),
			Kind:    KindAnalysis,
			Command: b.Executable,
			Args: []string{
				strconv.FormatInt(job.Start-job.PadStart, 10),
				strconv.FormatInt(job.End+job.PadEnd, 10),
				b.CacheFile,
				b.ParameterFile,
			},
			Retry:           b.Retry,
			RequestMemoryMB: b.RequestMemoryMB,
			RequestDiskMB:   b.RequestDiskMB,
			State:           StateIdle,
			Job:             job,
		}
		if err := d.add(node); err != nil {
			return nil, err
		}
		byJobID[job.ID] = node
	}

	if b.MaxConcurrent > 0 {
		throttle(byJobID, b.MaxConcurrent)
	}

	for i := range groups {
		group := &groups[i]
		node := &Node{
			Name:            MergeNodeName(*group),
			Kind:            KindMerge,
			Command:         b.MergeExecutable,
			Args:            mergeArgs(group),
			Retry:           b.Retry,
			RequestMemoryMB: b.RequestMemoryMB,
			RequestDiskMB:   b.RequestDiskMB,
			State:           StateIdle,
			Group:           group,
		}
		for _, member := range group.Members {
			parent, ok := byJobID[member.ID]
			if !ok {
				return nil, &ValidationError{
					Reason: fmt.Sprintf("merge group %s references unknown job %s", group.ID(), member.ID),
				}
			}
			node.Parents = append(node.Parents, parent)
		}
		sortParents(node)
		if err := d.add(node); err != nil {
			return nil, err
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func mergeArgs(group *model.MergeGroup) []string {
	args := []string{"--output", group.ConsolidatedPath}
	for _, member := range group.Members {
		args = append(args, member.Outputs[group.OutputKind])
	}
	return args
}

// throttle layers analysis nodes into waves of size maxConcurrent,
// every node of one wave depending on every node of the previous wave.
func throttle(byJobID map[string]*Node, maxConcurrent int) {
	nodes := make([]*Node, 0, len(byJobID))
	for _, n := range byJobID {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })

	for i := maxConcurrent; i < len(nodes); i++ {
		waveStart := (i/maxConcurrent - 1) * maxConcurrent
		for _, parent := range nodes[waveStart : waveStart+maxConcurrent] {
			nodes[i].Parents = append(nodes[i].Parents, parent)
		}
		sortParents(nodes[i])
	}
}

func sortParents(n *Node) {
	sort.Slice(n.Parents, func(i, j int) bool { return n.Parents[i].Name < n.Parents[j].Name })
}
