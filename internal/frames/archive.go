package frames

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecgunny/pyomicron/internal/model"
)

// CacheArchive serves frame queries from a pre-built cache file, the
// offline equivalent of a live archive query.
type CacheArchive struct {
	Path string
}

func (a *CacheArchive) Find(ctx context.Context, source string, within model.Range) ([]model.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	refs, err := ReadCache(a.Path)
	if err != nil {
		return nil, err
	}
	var out []model.FileRef
	for _, ref := range refs {
		if ref.Span().Overlaps(within) {
			out = append(out, ref)
		}
	}
	return out, nil
}

// DirArchive serves frame queries by scanning a directory of frame
// files following the standard "<source>-<start>-<duration>.<ext>"
// naming convention. Files that do not parse are ignored; an absent
// directory is an access failure, not an empty result.
type DirArchive struct {
	Dir string
}

func (a *DirArchive) Find(ctx context.Context, source string, within model.Range) ([]model.FileRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan frame directory: %w", err)
	}

	prefix := source + "-"
	var out []model.FileRef
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		span, ok := parseFrameName(strings.TrimPrefix(entry.Name(), prefix))
		if !ok {
			continue
		}
		if span.Overlaps(within) {
			out = append(out, model.FileRef{
				Path:  filepath.Join(a.Dir, entry.Name()),
				Start: span.Start,
				End:   span.End,
			})
		}
	}
	return out, nil
}

// parseFrameName extracts the span from "<start>-<duration>.<ext>".
func parseFrameName(rest string) (model.Range, bool) {
	if dot := strings.LastIndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	parts := strings.Split(rest, "-")
	if len(parts) != 2 {
		return model.Range{}, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return model.Range{}, false
	}
	dur, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || dur <= 0 {
		return model.Range{}, false
	}
	return model.Range{Start: start, End: start + dur}, true
}
