// Package frames maps analysis segments to the physical frame files
// holding their data.
package frames

import (
	"context"
	"fmt"
	"sort"

	"github.com/alecgunny/pyomicron/internal/backoff"
	"github.com/alecgunny/pyomicron/internal/model"
)

// Archive answers which frame files cover a time range for a data
// source. Absence of coverage is a normal result, not an error.
type Archive interface {
	Find(ctx context.Context, source string, within model.Range) ([]model.FileRef, error)
}

// QueryError reports an archive-access failure, as opposed to "no files
// for this time", which is an ordinary gap. Access failures are retried
// with backoff before this surfaces.
type QueryError struct {
	Source string
	Range  model.Range
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("frame query for %s over %s: %v", e.Source, e.Range, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Finder locates frame coverage for segments.
type Finder struct {
	Archive Archive
	Backoff backoff.Config
}

// Locate builds the frame manifest for a segment. Files are returned
// sorted by start time with redundant (fully-covered) entries dropped,
// and every uncovered sub-interval of the segment is recorded as a gap
// so downstream partitioning can exclude it. Archive lag is expected:
// gapped time is re-queried on the next planning pass rather than
// failing the segment.
func (f *Finder) Locate(ctx context.Context, seg model.Segment, source string) (model.FrameManifest, error) {
	manifest := model.FrameManifest{Segment: seg}

	var hits []model.FileRef
	err := backoff.Do(ctx, f.Backoff, func(ctx context.Context) error {
		found, err := f.Archive.Find(ctx, source, seg.Range)
		if err != nil {
			return err
		}
		hits = found
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return model.FrameManifest{}, ctx.Err()
		}
		return model.FrameManifest{}, &QueryError{Source: source, Range: seg.Range, Err: err}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Start != hits[j].Start {
			return hits[i].Start < hits[j].Start
		}
		return hits[i].End < hits[j].End
	})

	var covered []model.Range
	var cursor int64
	for _, hit := range hits {
		if !hit.Span().Overlaps(seg.Range) {
			continue
		}
		// Drop files that add no coverage beyond what earlier files
		// already provide.
		if len(manifest.Files) > 0 && hit.End <= cursor {
			continue
		}
		manifest.Files = append(manifest.Files, hit)
		covered = append(covered, hit.Span())
		cursor = hit.End
	}

	manifest.Gaps = model.Complement(model.Normalize(covered), seg.Range)
	return manifest, nil
}
