package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// record is one trigger line keyed by its leading GPS time.
type record struct {
	time float64
	line string
}

// Report summarizes one merge: which constituents contributed and which
// were skipped, with the reason. Incomplete is set whenever anything
// was skipped, and is also written to the artifact's metadata sidecar
// so downstream consumers can see the merge was partial.
type Report struct {
	Output  string            `yaml:"output"`
	Merged  []string          `yaml:"merged"`
	Skipped map[string]string `yaml:"skipped,omitempty"`
	Records int               `yaml:"records"`
}

func (r *Report) Incomplete() bool {
	return len(r.Skipped) > 0
}

// Merger consolidates same-kind trigger files. Zero-byte or malformed
// constituents are skipped and reported, never fatal: a merge with a
// missing constituent proceeds with the available subset rather than
// blocking the whole consolidation.
type Merger struct {
	Stderr io.Writer
}

// Merge reads every input, orders all records by time, and writes one
// consolidated file plus a YAML metadata sidecar at dest + ".meta.yaml".
// The destination is written atomically.
func (m *Merger) Merge(inputs []string, dest string) (*Report, error) {
	report := &Report{Output: dest, Skipped: make(map[string]string)}

	var records []record
	for _, input := range inputs {
		recs, err := readRecords(input)
		if err != nil {
			report.Skipped[input] = err.Error()
			if m.Stderr != nil {
				fmt.Fprintf(m.Stderr, "skipping %s: %v\n", input, err)
			}
			continue
		}
		report.Merged = append(report.Merged, input)
		records = append(records, recs...)
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].time < records[j].time })
	report.Records = len(records)

	if dir := filepath.Dir(dest); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create merge directory: %w", err)
		}
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("create merge output: %w", err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := w.WriteString(rec.line + "\n"); err != nil {
			f.Close()
			os.Remove(tmp)
			return nil, fmt.Errorf("write merge output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("flush merge output: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("close merge output: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("finalize merge output: %w", err)
	}

	if err := writeMeta(report); err != nil {
		return nil, err
	}
	return report, nil
}

func writeMeta(report *Report) error {
	meta := struct {
		Complete bool   `yaml:"complete"`
		Report   Report `yaml:",inline"`
	}{
		Complete: !report.Incomplete(),
		Report:   *report,
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshal merge metadata: %w", err)
	}
	if err := os.WriteFile(report.Output+".meta.yaml", data, 0o644); err != nil {
		return fmt.Errorf("write merge metadata: %w", err)
	}
	return nil
}

// readRecords parses one constituent file: non-comment lines whose
// first field is a GPS time. An empty file or any unparsable line
// disqualifies the whole file.
func readRecords(path string) ([]record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []record
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: malformed record time %q", lineNo, fields[0])
		}
		out = append(out, record{time: t, line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no records")
	}
	return out, nil
}
