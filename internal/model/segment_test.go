package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameManifestCovered(t *testing.T) {
	m := FrameManifest{
		Segment: Segment{Range: Range{Start: 0, End: 100}},
		Gaps:    []Range{{Start: 40, End: 60}},
	}
	assert.Equal(t, []Range{{Start: 0, End: 40}, {Start: 60, End: 100}}, m.Covered())

	full := FrameManifest{Segment: Segment{Range: Range{Start: 0, End: 100}}}
	assert.Equal(t, []Range{{Start: 0, End: 100}}, full.Covered())
}

func TestFilesOverlapping(t *testing.T) {
	m := FrameManifest{
		Segment: Segment{Range: Range{Start: 0, End: 300}},
		Files: []FileRef{
			{Path: "a.gwf", Start: 0, End: 100},
			{Path: "b.gwf", Start: 100, End: 200},
			{Path: "c.gwf", Start: 200, End: 300},
		},
	}

	got := m.FilesOverlapping(Range{Start: 150, End: 250})
	assert.Len(t, got, 2)
	assert.Equal(t, "b.gwf", got[0].Path)
	assert.Equal(t, "c.gwf", got[1].Path)

	// boundary touch is not overlap
	got = m.FilesOverlapping(Range{Start: 100, End: 200})
	assert.Len(t, got, 1)
	assert.Equal(t, "b.gwf", got[0].Path)
}

func TestJobSpans(t *testing.T) {
	j := JobSpec{ID: JobID(100, 200), Start: 100, End: 200, PadStart: 8, PadEnd: 8}

	assert.Equal(t, "100-200", j.ID)
	assert.Equal(t, Range{Start: 100, End: 200}, j.Span())
	assert.Equal(t, Range{Start: 92, End: 208}, j.DataSpan())
}

func TestMergeGroupID(t *testing.T) {
	g := MergeGroup{OutputKind: "root", Bucket: 1200000}
	assert.Equal(t, "root-1200000", g.ID())
}
