package partition

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgunny/pyomicron/internal/model"
)

func manifestFor(seg model.Segment, gaps ...model.Range) model.FrameManifest {
	return model.FrameManifest{
		Segment: seg,
		Files: []model.FileRef{
			{Path: "all.gwf", Start: seg.Start - 1000, End: seg.End + 1000},
		},
		Gaps: gaps,
	}
}

func seg(start, end int64) model.Segment {
	return model.Segment{Range: model.Range{Start: start, End: end}}
}

// non-pad regions must tile the analyzable time exactly, no overlap, no
// holes
func assertCoverage(t *testing.T, jobs []model.JobSpec, want []model.Range) {
	t.Helper()
	var spans []model.Range
	for _, j := range jobs {
		spans = append(spans, j.Span())
	}
	for i := 1; i < len(spans); i++ {
		assert.GreaterOrEqual(t, spans[i].Start, spans[i-1].End)
	}
	assert.Equal(t, want, model.Normalize(spans))
}

func TestPartitionExactTiling(t *testing.T) {
	p, err := New(Config{MaxDuration: 100, MinDuration: 25, Pad: 8})
	require.NoError(t, err)

	s := seg(0, 400)
	jobs, err := p.Partition(s, manifestFor(s))
	require.NoError(t, err)

	require.Len(t, jobs, 4)
	assertCoverage(t, jobs, []model.Range{{Start: 0, End: 400}})
	for _, j := range jobs {
		assert.Equal(t, int64(100), j.Span().Duration())
	}
}

func TestPartitionShortRemainderFoldsIn(t *testing.T) {
	p, err := New(Config{MaxDuration: 100, MinDuration: 25, Pad: 0})
	require.NoError(t, err)

	s := seg(0, 210)
	jobs, err := p.Partition(s, manifestFor(s))
	require.NoError(t, err)

	// 0-100, then 100-210: the 10s remainder extends the second chunk
	require.Len(t, jobs, 2)
	assert.Equal(t, model.Range{Start: 0, End: 100}, jobs[0].Span())
	assert.Equal(t, model.Range{Start: 100, End: 210}, jobs[1].Span())
	assertCoverage(t, jobs, []model.Range{{Start: 0, End: 210}})
}

func TestPartitionSubMinimumSpan(t *testing.T) {
	p, err := New(Config{MaxDuration: 100, MinDuration: 50, Pad: 0})
	require.NoError(t, err)

	s := seg(0, 30)
	jobs, err := p.Partition(s, manifestFor(s))
	require.NoError(t, err)

	require.Len(t, jobs, 1)
	assert.Equal(t, model.Range{Start: 0, End: 30}, jobs[0].Span())
}

func TestPartitionGapTolerance(t *testing.T) {
	cfg := Config{MaxDuration: 100, MinDuration: 10, Pad: 0, GapTolerance: 32}
	p, err := New(cfg)
	require.NoError(t, err)

	s := seg(0, 400)

	// short gap is swallowed
	jobs, err := p.Partition(s, manifestFor(s, model.Range{Start: 190, End: 210}))
	require.NoError(t, err)
	assertCoverage(t, jobs, []model.Range{{Start: 0, End: 400}})

	// long gap splits the tiling
	jobs, err = p.Partition(s, manifestFor(s, model.Range{Start: 150, End: 250}))
	require.NoError(t, err)
	assertCoverage(t, jobs, []model.Range{{Start: 0, End: 150}, {Start: 250, End: 400}})
	for _, j := range jobs {
		assert.False(t, j.Span().Overlaps(model.Range{Start: 150, End: 250}))
	}
}

func TestPartitionPadsClippedAtSpanEdges(t *testing.T) {
	p, err := New(Config{MaxDuration: 100, MinDuration: 10, Pad: 8})
	require.NoError(t, err)

	s := seg(0, 200)
	jobs, err := p.Partition(s, manifestFor(s))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, int64(0), jobs[0].PadStart)
	assert.Equal(t, int64(8), jobs[0].PadEnd)
	assert.Equal(t, int64(8), jobs[1].PadStart)
	assert.Equal(t, int64(0), jobs[1].PadEnd)
}

func TestPartitionChunksPerJob(t *testing.T) {
	p, err := New(Config{MaxDuration: 100, MinDuration: 10, ChunksPerJob: 3})
	require.NoError(t, err)

	s := seg(0, 700)
	jobs, err := p.Partition(s, manifestFor(s))
	require.NoError(t, err)

	// 7 chunks packed 3+3+1
	require.Len(t, jobs, 3)
	assert.Equal(t, model.Range{Start: 0, End: 300}, jobs[0].Span())
	assert.Equal(t, model.Range{Start: 300, End: 600}, jobs[1].Span())
	assert.Equal(t, model.Range{Start: 600, End: 700}, jobs[2].Span())
	for _, j := range jobs {
		assert.LessOrEqual(t, j.Span().Duration(), p.cfg.MaxJobSpan())
	}
}

func TestPartitionJobMetadata(t *testing.T) {
	cfg := Config{
		MaxDuration: 100, MinDuration: 10, Pad: 8,
		OutputDir:   "/out",
		OutputKinds: []string{"root", "txt"},
	}
	p, err := New(cfg)
	require.NoError(t, err)

	s := seg(0, 100)
	m := model.FrameManifest{
		Segment: s,
		Files: []model.FileRef{
			{Path: "a.gwf", Start: 0, End: 64},
			{Path: "b.gwf", Start: 64, End: 128},
			{Path: "far.gwf", Start: 5000, End: 6000},
		},
	}
	jobs, err := p.Partition(s, m)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	j := jobs[0]
	assert.Equal(t, "0-100", j.ID)
	require.Len(t, j.Inputs, 2)
	assert.Equal(t, filepath.Join("/out", "root", "TRIGGERS-0-100.root"), j.Outputs["root"])
	assert.Equal(t, filepath.Join("/out", "txt", "TRIGGERS-0-100.txt"), j.Outputs["txt"])
}

func TestPartitionManifestMismatch(t *testing.T) {
	p, err := New(Config{MaxDuration: 100})
	require.NoError(t, err)

	_, err = p.Partition(seg(0, 100), manifestFor(seg(0, 200)))
	assert.Error(t, err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{MaxDuration: 0})
	assert.Error(t, err)

	_, err = New(Config{MaxDuration: 10, MinDuration: 20})
	assert.Error(t, err)

	_, err = New(Config{MaxDuration: 10, Pad: -1})
	assert.Error(t, err)
}

func TestOutputPathDeterministic(t *testing.T) {
	a := OutputPath("triggers", "root", 100, 200)
	b := OutputPath("triggers", "root", 100, 200)
	assert.Equal(t, a, b)
	assert.Equal(t, filepath.Join("triggers", "root", "TRIGGERS-100-100.root"), a)
}
