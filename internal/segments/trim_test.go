package segments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgunny/pyomicron/internal/model"
)

func seg(start, end int64) model.Segment {
	return model.Segment{Range: model.Range{Start: start, End: end}}
}

func TestSplitAtMetricDay(t *testing.T) {
	// confined segments pass through
	out := SplitAtMetricDay([]model.Segment{seg(10, 90000)})
	assert.Equal(t, []model.Segment{seg(10, 90000)}, out)

	// straddling one boundary
	out = SplitAtMetricDay([]model.Segment{seg(90000, 110000)})
	assert.Equal(t, []model.Segment{seg(90000, 100000), seg(100000, 110000)}, out)

	// straddling two boundaries
	out = SplitAtMetricDay([]model.Segment{seg(50000, 250000)})
	assert.Equal(t, []model.Segment{
		seg(50000, 100000), seg(100000, 200000), seg(200000, 250000),
	}, out)

	// split preserves flags
	in := model.Segment{Range: model.Range{Start: 99000, End: 101000}, Flags: []string{"ready"}}
	split := SplitAtMetricDay([]model.Segment{in})
	require.Len(t, split, 2)
	assert.Equal(t, []string{"ready"}, split[0].Flags)
	assert.Equal(t, []string{"ready"}, split[1].Flags)
}

func TestTruncateLiveEdge(t *testing.T) {
	const chunk, overlap = 64, 8

	t.Run("closed final segment untouched", func(t *testing.T) {
		segs := []model.Segment{seg(0, 1000)}
		out := TruncateLiveEdge(segs, 2000, chunk, overlap)
		assert.Equal(t, segs, out)
	})

	t.Run("short live segment removed", func(t *testing.T) {
		segs := []model.Segment{seg(0, 1000), seg(1900, 2000)}
		out := TruncateLiveEdge(segs, 2000, chunk, overlap)
		assert.Equal(t, []model.Segment{seg(0, 1000)}, out)
	})

	t.Run("long live segment truncated to whole chunks", func(t *testing.T) {
		segs := []model.Segment{seg(0, 1000)}
		out := TruncateLiveEdge(segs, 1000, chunk, overlap)
		require.Len(t, out, 1)

		end := out[0].End
		assert.Less(t, end, int64(1000-chunk+1))
		// end sits on a chunk boundary of the stepped tiling
		assert.Equal(t, int64(0), (end-chunk)%(chunk-overlap))
		// input untouched
		assert.Equal(t, int64(1000), segs[0].End)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, TruncateLiveEdge(nil, 1000, chunk, overlap))
	})
}
