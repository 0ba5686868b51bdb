package model

import "fmt"

// JobSpec is one cluster-job-sized unit of analysis work. Start/End is
// the interval the job is responsible for producing triggers over; the
// pads extend the data read on either side for algorithm warm-up and
// overlap the neighbouring jobs only in that pad region.
type JobSpec struct {
	ID       string
	Start    int64
	End      int64
	PadStart int64
	PadEnd   int64

	// Inputs is the subset of the frame manifest overlapping the
	// padded data span.
	Inputs []FileRef

	// Outputs maps an output kind to the result file the algorithm is
	// expected to produce for that kind.
	Outputs map[string]string

	RetryCount int
}

// Span is the trigger interval the job owns, excluding pads.
func (j JobSpec) Span() Range {
	return Range{Start: j.Start, End: j.End}
}

// DataSpan is the full interval of data the job reads, including pads.
func (j JobSpec) DataSpan() Range {
	return Range{Start: j.Start - j.PadStart, End: j.End + j.PadEnd}
}

// JobID derives the canonical identifier for an analysis interval.
// Identical planning input always yields identical IDs, which is what
// lets a re-submitted DAG be recognized instead of duplicated.
func JobID(start, end int64) string {
	return fmt.Sprintf("%d-%d", start, end)
}

// MergeGroup names the set of jobs whose per-kind outputs are
// consolidated into one artifact for one time bucket.
type MergeGroup struct {
	OutputKind string
	Bucket     int64

	// Members are sorted by job start time.
	Members []JobSpec

	ConsolidatedPath string
}

// ID derives the canonical identifier for a merge group.
func (g MergeGroup) ID() string {
	return fmt.Sprintf("%s-%d", g.OutputKind, g.Bucket)
}
