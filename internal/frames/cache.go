package frames

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecgunny/pyomicron/internal/model"
)

// WriteCache writes the frame file list consumed by analysis jobs, one
// "path start end" line per file in start order. Output is byte-stable
// for identical manifests.
func WriteCache(manifests []model.FrameManifest, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	var b strings.Builder
	for _, m := range manifests {
		for _, f := range m.Files {
			fmt.Fprintf(&b, "%s %d %d\n", f.Path, f.Start, f.End)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write frame cache: %w", err)
	}
	return nil
}

// ReadCache parses a frame cache file written by WriteCache.
func ReadCache(path string) ([]model.FileRef, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame cache: %w", err)
	}
	defer fh.Close()

	var out []model.FileRef
	scanner := bufio.NewScanner(fh)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("frame cache %s line %d: expected 3 fields, got %d", path, line, len(fields))
		}
		start, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("frame cache %s line %d: bad start: %w", path, line, err)
		}
		end, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("frame cache %s line %d: bad end: %w", path, line, err)
		}
		out = append(out, model.FileRef{Path: fields[0], Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read frame cache: %w", err)
	}
	return out, nil
}
