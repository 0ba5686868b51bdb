// Package partition splits valid analysis segments into cluster-job
// sized chunks.
package partition

import (
	"fmt"
	"path/filepath"

	"github.com/alecgunny/pyomicron/internal/model"
)

// Config tunes the tiling. Gap tolerance and minimum duration are
// operational values and deliberately configuration, not constants.
type Config struct {
	// MaxDuration is the longest trigger interval a single chunk may
	// span, excluding pads.
	MaxDuration int64

	// MinDuration is the shortest a trailing chunk may be; a smaller
	// remainder is folded into the preceding chunk rather than
	// submitted as an undersized job.
	MinDuration int64

	// Pad extends each chunk's data read on both sides for algorithm
	// warm-up. Pads are clipped at span edges and are the only region
	// where consecutive jobs overlap.
	Pad int64

	// GapTolerance absorbs manifest gaps at most this long into a
	// chunk; the algorithm handles the missing samples internally.
	// Longer gaps split the tiling.
	GapTolerance int64

	// ChunksPerJob packs up to this many contiguous chunks into one
	// cluster job. Zero means one chunk per job.
	ChunksPerJob int

	// OutputDir and OutputKinds determine the expected result file for
	// each (job, kind) pair.
	OutputDir   string
	OutputKinds []string
}

func (c Config) chunksPerJob() int {
	if c.ChunksPerJob < 1 {
		return 1
	}
	return c.ChunksPerJob
}

// MaxJobSpan is the longest trigger interval one JobSpec may cover.
func (c Config) MaxJobSpan() int64 {
	return c.MaxDuration * int64(c.chunksPerJob())
}

// Partitioner tiles segments into job specs.
type Partitioner struct {
	cfg Config
}

func New(cfg Config) (*Partitioner, error) {
	if cfg.MaxDuration <= 0 {
		return nil, fmt.Errorf("partition: max duration must be positive, got %d", cfg.MaxDuration)
	}
	if cfg.MinDuration < 0 || cfg.MinDuration > cfg.MaxDuration {
		return nil, fmt.Errorf("partition: min duration %d out of range [0, %d]", cfg.MinDuration, cfg.MaxDuration)
	}
	if cfg.Pad < 0 {
		return nil, fmt.Errorf("partition: pad must be non-negative, got %d", cfg.Pad)
	}
	return &Partitioner{cfg: cfg}, nil
}

// Partition greedily tiles the segment left to right. Chunks never
// cross a gap longer than the tolerance; outside such gaps the non-pad
// regions of the produced jobs cover the segment exactly, with no
// overlap between them.
func (p *Partitioner) Partition(seg model.Segment, manifest model.FrameManifest) ([]model.JobSpec, error) {
	if manifest.Segment.Range != seg.Range {
		return nil, fmt.Errorf("partition: manifest covers %s, segment is %s", manifest.Segment.Range, seg.Range)
	}

	spans := analyzableSpans(seg.Range, manifest.Gaps, p.cfg.GapTolerance)

	var jobs []model.JobSpec
	for _, span := range spans {
		chunks := tile(span, p.cfg.MaxDuration, p.cfg.MinDuration)
		for start := 0; start < len(chunks); start += p.cfg.chunksPerJob() {
			end := start + p.cfg.chunksPerJob()
			if end > len(chunks) {
				end = len(chunks)
			}
			jobs = append(jobs, p.jobFor(span, chunks[start].Start, chunks[end-1].End, manifest))
		}
	}
	return jobs, nil
}

func (p *Partitioner) jobFor(span model.Range, start, end int64, manifest model.FrameManifest) model.JobSpec {
	job := model.JobSpec{
		ID:       model.JobID(start, end),
		Start:    start,
		End:      end,
		PadStart: minInt64(p.cfg.Pad, start-span.Start),
		PadEnd:   minInt64(p.cfg.Pad, span.End-end),
		Outputs:  make(map[string]string, len(p.cfg.OutputKinds)),
	}
	job.Inputs = manifest.FilesOverlapping(job.DataSpan())
	for _, kind := range p.cfg.OutputKinds {
		job.Outputs[kind] = OutputPath(p.cfg.OutputDir, kind, start, end)
	}
	return job
}

// OutputPath derives the result file an analysis job is expected to
// produce for one output kind. Names are deterministic in
// (kind, start, end) so expected outputs can be checked without
// consulting the job.
func OutputPath(dir, kind string, start, end int64) string {
	name := fmt.Sprintf("TRIGGERS-%d-%d.%s", start, end-start, kind)
	return filepath.Join(dir, kind, name)
}

// analyzableSpans subtracts gaps longer than the tolerance from the
// segment. Short gaps are swallowed: the chunk spanning them simply
// includes the missing time.
func analyzableSpans(seg model.Range, gaps []model.Range, tolerance int64) []model.Range {
	var blocking []model.Range
	for _, g := range gaps {
		if g.Duration() > tolerance {
			blocking = append(blocking, g)
		}
	}
	return model.Complement(model.Normalize(blocking), seg)
}

// tile cuts a span into consecutive chunks of at most maxDur. A final
// remainder shorter than minDur extends the previous chunk instead of
// becoming its own; a span that is itself shorter than minDur still
// yields one chunk, since coverage wins over the size floor when there
// is no neighbour to merge into.
func tile(span model.Range, maxDur, minDur int64) []model.Range {
	var chunks []model.Range
	cursor := span.Start
	for cursor < span.End {
		end := cursor + maxDur
		if end > span.End {
			end = span.End
		}
		if remainder := span.End - end; remainder > 0 && remainder < minDur {
			end = span.End
		}
		chunks = append(chunks, model.Range{Start: cursor, End: end})
		cursor = end
	}
	return chunks
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
