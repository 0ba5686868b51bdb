package segments

import "github.com/alecgunny/pyomicron/internal/model"

// metricDay is the GPS metric-day width. Output artifacts are bucketed
// per metric day, so no segment may straddle a boundary.
const metricDay int64 = 100000

// SplitAtMetricDay splits any segment crossing a 100000-second GPS
// boundary into one segment per metric day. Already-confined segments
// are returned unchanged.
func SplitAtMetricDay(segs []model.Segment) []model.Segment {
	var out []model.Segment
	for _, seg := range segs {
		start := seg.Start
		for start < seg.End {
			boundary := (start/metricDay + 1) * metricDay
			end := seg.End
			if boundary < end {
				end = boundary
			}
			out = append(out, model.Segment{
				Range: model.Range{Start: start, End: end},
				Flags: seg.Flags,
			})
			start = end
		}
	}
	return out
}

// TruncateLiveEdge adjusts the final segment of an online run whose end
// touches the limit of available data. A too-short final segment (under
// two chunks) is removed entirely so it can be processed once closed;
// otherwise the last chunk is dropped and the remainder truncated to a
// whole number of chunks, guaranteeing the next run has data to operate
// on and that estimation windows stay consistent.
func TruncateLiveEdge(segs []model.Segment, dataEnd, chunkDur, overlap int64) []model.Segment {
	if len(segs) == 0 {
		return segs
	}
	last := segs[len(segs)-1]
	if last.End != dataEnd {
		return segs
	}

	if last.Duration() < chunkDur*2 {
		return segs[:len(segs)-1]
	}

	end := last.End - chunkDur
	t := last.Start
	step := chunkDur
	for t+chunkDur <= end {
		t += step
		step = chunkDur - overlap
	}
	out := append([]model.Segment{}, segs...)
	out[len(out)-1].End = t
	return out
}
