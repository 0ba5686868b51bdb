// Package segments resolves a requested time range into the disjoint,
// valid analysis intervals the rest of the planning pipeline operates
// on.
package segments

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/alecgunny/pyomicron/internal/backoff"
	"github.com/alecgunny/pyomicron/internal/flags"
	"github.com/alecgunny/pyomicron/internal/model"
)

// NoValidSegmentsError reports that a selection produced no analyzable
// intervals. This reflects real absence of usable data: it is surfaced
// to the operator and never retried.
type NoValidSegmentsError struct {
	Range model.Range
	Expr  string
}

func (e *NoValidSegmentsError) Error() string {
	return fmt.Sprintf("no valid segments for %s matching %s", e.Range, e.Expr)
}

// Selector turns (range, flag expression) into an ordered segment list.
type Selector struct {
	Store flags.Store

	// CoalesceGap merges adjacent intervals separated by less than
	// this many seconds before the minimum-duration filter runs.
	CoalesceGap int64

	// Backoff bounds retries of individual store queries.
	Backoff backoff.Config
}

// Select queries the segment store for intervals satisfying expr within
// rng, coalesces near-adjacent intervals, and drops intervals shorter
// than minDuration. The result is deterministic for identical inputs
// and identical store answers: sorted by start time, ties broken by
// lexical flag order.
func (s *Selector) Select(ctx context.Context, rng model.Range, expr flags.Expr, minDuration int64) ([]model.Segment, error) {
	if rng.Duration() <= 0 {
		return nil, fmt.Errorf("invalid range %s", rng)
	}

	store := retryStore{inner: s.Store, cfg: s.Backoff}
	ranges, err := expr.Eval(ctx, store, rng)
	if err != nil {
		return nil, fmt.Errorf("select segments: %w", err)
	}

	ranges = coalesce(ranges, s.CoalesceGap)

	flagNames := expr.Names()
	var out []model.Segment
	for _, r := range ranges {
		if r.Duration() < minDuration {
			continue
		}
		out = append(out, model.Segment{Range: r, Flags: flagNames})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return strings.Join(out[i].Flags, ",") < strings.Join(out[j].Flags, ",")
	})

	if len(out) == 0 {
		return nil, &NoValidSegmentsError{Range: rng, Expr: expr.String()}
	}
	return out, nil
}

// coalesce merges ranges separated by a gap smaller than maxGap.
// Ranges are assumed normalized.
func coalesce(ranges []model.Range, maxGap int64) []model.Range {
	if maxGap <= 0 || len(ranges) < 2 {
		return ranges
	}
	out := []model.Range{ranges[0]}
	for _, r := range ranges[1:] {
		last := &out[len(out)-1]
		if r.Start-last.End < maxGap {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// retryStore wraps a flags.Store with bounded backoff so transient
// database failures are absorbed at the query boundary. No lock is held
// across the call.
type retryStore struct {
	inner flags.Store
	cfg   backoff.Config
}

func (r retryStore) Query(ctx context.Context, flag string, within model.Range) ([]model.Range, error) {
	var out []model.Range
	err := backoff.Do(ctx, r.cfg, func(ctx context.Context) error {
		ranges, err := r.inner.Query(ctx, flag, within)
		if err != nil {
			return err
		}
		out = ranges
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
