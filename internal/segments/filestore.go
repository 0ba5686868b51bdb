package segments

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecgunny/pyomicron/internal/model"
)

// FileStore serves flag queries from a directory of per-flag segment
// files, one "start end" line per active interval. It stands in for the
// network segment database when running from exported segment lists.
// A flag with no file is simply never active.
type FileStore struct {
	Dir string
}

func (s *FileStore) Query(ctx context.Context, flag string, within model.Range) ([]model.Range, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.Dir, flagFileName(flag))
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open segment file for %s: %w", flag, err)
	}
	defer f.Close()

	var out []model.Range
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("segment file %s line %d: expected 'start end'", path, line)
		}
		start, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("segment file %s line %d: %w", path, line, err)
		}
		end, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("segment file %s line %d: %w", path, line, err)
		}
		r := model.Range{Start: start, End: end}
		if r.Overlaps(within) {
			out = append(out, r)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read segment file %s: %w", path, err)
	}
	return model.Normalize(out), nil
}

// flagFileName maps a flag name like "H1:DMT-ANALYSIS_READY:1" to a
// filesystem-safe file name.
func flagFileName(flag string) string {
	return strings.ReplaceAll(flag, ":", "_") + ".txt"
}
