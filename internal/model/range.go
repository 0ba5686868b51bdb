package model

import (
	"fmt"
	"sort"
)

// Range is a half-open GPS time interval [Start, End).
type Range struct {
	Start int64 `yaml:"start" json:"start"`
	End   int64 `yaml:"end" json:"end"`
}

func (r Range) Duration() int64 {
	return r.End - r.Start
}

func (r Range) IsZero() bool {
	return r.Start == 0 && r.End == 0
}

func (r Range) Contains(t int64) bool {
	return t >= r.Start && t < r.End
}

func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Intersect returns the overlap of two ranges, or a zero-duration
// range when they are disjoint.
func (r Range) Intersect(o Range) Range {
	out := Range{Start: max64(r.Start, o.Start), End: min64(r.End, o.End)}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Normalize sorts ranges by start time and merges overlapping or
// adjacent entries. Zero-duration ranges are dropped.
func Normalize(ranges []Range) []Range {
	out := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Duration() > 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Intersect computes the overlap of two normalized range lists.
func Intersect(a, b []Range) []Range {
	var out []Range
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		r := a[i].Intersect(b[j])
		if r.Duration() > 0 {
			out = append(out, r)
		}
		if a[i].End < b[j].End {
			i++
		} else {
			j++
		}
	}
	return out
}

// Union merges two range lists into a single normalized list.
func Union(a, b []Range) []Range {
	return Normalize(append(append([]Range{}, a...), b...))
}

// Complement returns the sub-ranges of within not covered by the
// normalized list ranges.
func Complement(ranges []Range, within Range) []Range {
	var out []Range
	cursor := within.Start
	for _, r := range ranges {
		clipped := r.Intersect(within)
		if clipped.Duration() == 0 {
			continue
		}
		if clipped.Start > cursor {
			out = append(out, Range{Start: cursor, End: clipped.Start})
		}
		if clipped.End > cursor {
			cursor = clipped.End
		}
	}
	if cursor < within.End {
		out = append(out, Range{Start: cursor, End: within.End})
	}
	return out
}

// TotalDuration sums the durations of a range list.
func TotalDuration(ranges []Range) int64 {
	var total int64
	for _, r := range ranges {
		total += r.Duration()
	}
	return total
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
