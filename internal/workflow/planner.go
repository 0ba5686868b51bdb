// Package workflow runs the planning pipeline end to end: segment
// selection, frame discovery, partitioning, merge grouping, and DAG
// assembly. Construction is single-threaded, synchronous, and
// side-effect-free; only Materialize touches the filesystem, so a plan
// may be recomputed safely at any time.
package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/alecgunny/pyomicron/internal/backoff"
	"github.com/alecgunny/pyomicron/internal/config"
	"github.com/alecgunny/pyomicron/internal/dag"
	"github.com/alecgunny/pyomicron/internal/flags"
	"github.com/alecgunny/pyomicron/internal/frames"
	"github.com/alecgunny/pyomicron/internal/merge"
	"github.com/alecgunny/pyomicron/internal/model"
	"github.com/alecgunny/pyomicron/internal/partition"
	"github.com/alecgunny/pyomicron/internal/segments"
)

// PlanningContext carries one planning run's artifacts through the
// pipeline. It is owned by the caller and threaded explicitly; nothing
// here lives in shared mutable state.
type PlanningContext struct {
	Range     model.Range
	Expr      flags.Expr
	Segments  []model.Segment
	Manifests []model.FrameManifest
	Jobs      []model.JobSpec
	Groups    []model.MergeGroup
	Dag       *dag.Dag

	CachePath string
	DagPath   string

	// Warnings records intervals degraded to gaps because archive
	// queries kept failing; the plan proceeds without them.
	Warnings []string
}

// Planner builds planning contexts from a configuration and the two
// external read-only services.
type Planner struct {
	Config  *config.Config
	Store   flags.Store
	Archive frames.Archive
	RunDir  string

	// Online marks a run against the live edge of available data;
	// DataEnd is that edge. The final segment is trimmed so the next
	// run is never left with an unprocessably short remainder.
	Online  bool
	DataEnd int64
}

// Plan computes the full planning context for a range. The identical
// range, configuration, and external answers always produce an
// identical context, including the serialized form of its DAG.
func (p *Planner) Plan(ctx context.Context, rng model.Range) (*PlanningContext, error) {
	cfg := p.Config
	pc := &PlanningContext{
		Range:     rng,
		CachePath: filepath.Join(p.RunDir, "cache", "frames.lcf"),
		DagPath:   filepath.Join(p.RunDir, "dag", cfg.Group+".dag"),
	}

	segs, err := p.selectSegments(ctx, pc, rng)
	if err != nil {
		return nil, err
	}

	if p.Online {
		segs = segments.TruncateLiveEdge(segs, p.DataEnd, cfg.ChunkDuration, cfg.OverlapDuration)
		if len(segs) == 0 {
			return nil, &segments.NoValidSegmentsError{Range: rng, Expr: pc.exprString()}
		}
	}
	segs = segments.SplitAtMetricDay(segs)
	pc.Segments = segs

	finder := &frames.Finder{Archive: p.Archive, Backoff: backoff.Default()}
	for _, seg := range segs {
		manifest, err := finder.Locate(ctx, seg, cfg.DataSource)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			// degraded-but-partial plan: the interval becomes a gap
			// to re-query next pass instead of failing the run
			pc.Warnings = append(pc.Warnings, fmt.Sprintf("frame query failed, treating %s as gap: %v", seg.Range, err))
			manifest = model.FrameManifest{Segment: seg, Gaps: []model.Range{seg.Range}}
		}
		pc.Manifests = append(pc.Manifests, manifest)
	}

	partitioner, err := partition.New(partition.Config{
		MaxDuration:  cfg.ChunkDuration,
		MinDuration:  cfg.MinChunkDuration,
		Pad:          cfg.Pad(),
		GapTolerance: cfg.GapTolerance,
		ChunksPerJob: cfg.MaxChunksPerJob,
		OutputDir:    cfg.OutputDir,
		OutputKinds:  cfg.OutputFormats,
	})
	if err != nil {
		return nil, err
	}
	for i, seg := range segs {
		jobs, err := partitioner.Partition(seg, pc.Manifests[i])
		if err != nil {
			return nil, err
		}
		pc.Jobs = append(pc.Jobs, jobs...)
	}
	if len(pc.Jobs) == 0 {
		return nil, &segments.NoValidSegmentsError{Range: rng, Expr: pc.exprString()}
	}

	scheduler := &merge.Scheduler{
		OutputDir: filepath.Join(cfg.OutputDir, "merge"),
		Bucket:    p.bucketFunc(),
	}
	pc.Groups, err = scheduler.Group(pc.Jobs, cfg.OutputFormats)
	if err != nil {
		return nil, err
	}

	builder := &dag.Builder{
		Executable:      cfg.Executable,
		MergeExecutable: cfg.MergeExecutable,
		ParameterFile:   cfg.ParametersFile,
		CacheFile:       pc.CachePath,
		Retry:           cfg.MaxRetries,
		RequestMemoryMB: cfg.RequestMemoryMB,
		RequestDiskMB:   cfg.RequestDiskMB,
		MaxConcurrent:   cfg.MaxConcurrent,
	}
	pc.Dag, err = builder.Build(pc.Jobs, pc.Groups)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (p *Planner) selectSegments(ctx context.Context, pc *PlanningContext, rng model.Range) ([]model.Segment, error) {
	cfg := p.Config
	if cfg.StateFlags == "" {
		// no state selection configured: the whole range is one
		// candidate segment, bounded only by frame availability
		return []model.Segment{{Range: rng}}, nil
	}

	expr, err := flags.Parse(cfg.StateFlags)
	if err != nil {
		return nil, err
	}
	pc.Expr = expr

	selector := &segments.Selector{
		Store:       p.Store,
		CoalesceGap: cfg.CoalesceGap,
		Backoff:     backoff.Default(),
	}
	return selector.Select(ctx, rng, expr, cfg.MinSegmentDuration)
}

func (p *Planner) bucketFunc() merge.BucketFunc {
	if p.Config.Bucket == "utc-day" {
		return merge.UTCDay
	}
	return merge.MetricDay
}

func (pc *PlanningContext) exprString() string {
	if pc.Expr == nil {
		return "<all>"
	}
	return pc.Expr.String()
}

// TriggerSpan is the coverage triggers will actually be produced for:
// the analysis segments contracted by the pad on each side.
func (pc *PlanningContext) TriggerSpan(pad int64) []model.Range {
	var out []model.Range
	for _, seg := range pc.Segments {
		r := model.Range{Start: seg.Start + pad, End: seg.End - pad}
		if r.Duration() > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Materialize writes the plan's artifacts: the frame cache consumed by
// analysis jobs and the DAG submission file. The DAG write reports
// whether an identical file already existed, which is how re-planning
// an already-submitted run is detected instead of duplicated.
func (pc *PlanningContext) Materialize() (alreadyWritten bool, err error) {
	if err := frames.WriteCache(pc.Manifests, pc.CachePath); err != nil {
		return false, err
	}
	return pc.Dag.WriteFile(pc.DagPath)
}
