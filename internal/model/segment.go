package model

// Segment is a contiguous interval judged to contain valid, analyzable
// data. Segments produced by a selection pass are pairwise disjoint and
// sorted by start time.
type Segment struct {
	Range `yaml:",inline"`

	// Flags are the sorted data-quality flag names whose conjunction
	// selected this segment.
	Flags []string `yaml:"flags,omitempty"`
}

// FileRef locates one frame file and the interval of data it holds.
type FileRef struct {
	Path  string `yaml:"path"`
	Start int64  `yaml:"start"`
	End   int64  `yaml:"end"`
}

func (f FileRef) Span() Range {
	return Range{Start: f.Start, End: f.End}
}

// FrameManifest maps a segment to the ordered frame files covering it.
// Uncovered sub-ranges are recorded in Gaps rather than dropped, so the
// manifest always accounts for the full segment.
type FrameManifest struct {
	Segment Segment
	Files   []FileRef
	Gaps    []Range
}

// Covered returns the sub-ranges of the segment for which frame data
// exists, i.e. the segment minus its gaps.
func (m FrameManifest) Covered() []Range {
	return Complement(m.Gaps, m.Segment.Range)
}

// FilesOverlapping returns the manifest files intersecting r, in start
// order.
func (m FrameManifest) FilesOverlapping(r Range) []FileRef {
	var out []FileRef
	for _, f := range m.Files {
		if f.Span().Overlaps(r) {
			out = append(out, f)
		}
	}
	return out
}
