// Package merge plans and performs the consolidation of per-chunk
// trigger files into one artifact per output kind and time bucket.
package merge

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/alecgunny/pyomicron/internal/model"
)

// BucketFunc maps a GPS time to the start of its merge bucket.
type BucketFunc func(gps int64) int64

// MetricDay buckets by 100000-second GPS metric day, the archive's
// native layout.
func MetricDay(gps int64) int64 {
	return gps / 100000 * 100000
}

// gpsEpoch is 1980-01-06T00:00:00 UTC. Leap seconds accumulated since
// then are ignored here; a bucket boundary off by a few seconds from
// civil midnight is irrelevant for grouping.
var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// UTCDay buckets by UTC calendar day.
func UTCDay(gps int64) int64 {
	t := gpsEpoch.Add(time.Duration(gps) * time.Second)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int64(day.Sub(gpsEpoch) / time.Second)
}

// Scheduler groups job specs into merge groups. Grouping is idempotent:
// the same job set always yields the same groups with the same
// membership and consolidated paths.
type Scheduler struct {
	OutputDir string
	Bucket    BucketFunc
}

// Group buckets jobs by (output kind, bucket of job start). Kinds are
// merged separately, never intermixed: each produces its own groups.
// Every job belongs to exactly one group per kind.
func (s *Scheduler) Group(jobs []model.JobSpec, kinds []string) ([]model.MergeGroup, error) {
	if s.Bucket == nil {
		return nil, fmt.Errorf("merge group: no bucket function configured")
	}

	byKey := make(map[string]*model.MergeGroup)
	for _, kind := range kinds {
		for _, job := range jobs {
			if _, ok := job.Outputs[kind]; !ok {
				return nil, fmt.Errorf("merge group: job %s has no %s output", job.ID, kind)
			}
			bucket := s.Bucket(job.Start)
			key := fmt.Sprintf("%s-%d", kind, bucket)
			g, ok := byKey[key]
			if !ok {
				g = &model.MergeGroup{
					OutputKind:       kind,
					Bucket:           bucket,
					ConsolidatedPath: ConsolidatedPath(s.OutputDir, kind, bucket),
				}
				byKey[key] = g
			}
			g.Members = append(g.Members, job)
		}
	}

	out := make([]model.MergeGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].Start < g.Members[j].Start })
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OutputKind != out[j].OutputKind {
			return out[i].OutputKind < out[j].OutputKind
		}
		return out[i].Bucket < out[j].Bucket
	})
	return out, nil
}

// ConsolidatedPath derives the merged artifact path for one
// (kind, bucket) pair. The name depends on nothing else, so replanning
// always targets the same file.
func ConsolidatedPath(dir, kind string, bucket int64) string {
	name := fmt.Sprintf("TRIGGERS-MERGED-%d.%s", bucket, kind)
	return filepath.Join(dir, kind, name)
}
