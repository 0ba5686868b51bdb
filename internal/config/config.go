// Package config loads and validates the YAML run configuration.
// Operationally tuned values (gap tolerance, retry budget, chunk
// sizing) live here rather than in code.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

// EngineConfig describes how to reach the external batch engine.
type EngineConfig struct {
	SubmitCommand []string `yaml:"submit-command"`
	StatusCommand []string `yaml:"status-command"`
}

// Config is one processing group's run configuration.
type Config struct {
	Group      string `yaml:"group"`
	DataSource string `yaml:"data-source"`
	StateFlags string `yaml:"state-flags"`

	ChunkDuration      int64 `yaml:"chunk-duration"`
	MinChunkDuration   int64 `yaml:"min-chunk-duration"`
	MinSegmentDuration int64 `yaml:"min-segment-duration"`
	CoalesceGap        int64 `yaml:"coalesce-gap"`
	OverlapDuration    int64 `yaml:"overlap-duration"`
	GapTolerance       int64 `yaml:"gap-tolerance"`

	MaxChunksPerJob int `yaml:"max-chunks-per-job"`
	MaxConcurrent   int `yaml:"max-concurrent"`
	MaxRetries      int `yaml:"max-retries"`
	NoDataExitCode  int `yaml:"no-data-exit-code"`

	OutputFormats []string `yaml:"output-formats"`
	OutputDir     string   `yaml:"output-dir"`

	Executable      string `yaml:"executable"`
	MergeExecutable string `yaml:"merge-executable"`
	ParametersFile  string `yaml:"parameters-file"`

	RequestMemoryMB int `yaml:"request-memory-mb"`
	RequestDiskMB   int `yaml:"request-disk-mb"`

	LedgerPath   string `yaml:"ledger-path"`
	PollInterval string `yaml:"poll-interval"`
	Bucket       string `yaml:"bucket"`

	Engine EngineConfig `yaml:"engine"`
}

// Pad is the per-side data extension for algorithm warm-up, half the
// configured overlap.
func (c *Config) Pad() int64 {
	return c.OverlapDuration / 2
}

// PollIntervalDuration parses the poll interval, defaulting to 30s.
func (c *Config) PollIntervalDuration() (time.Duration, error) {
	if c.PollInterval == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("parse poll-interval: %w", err)
	}
	return d, nil
}

// Load reads, schema-validates, and defaults a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := validate(data); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Defaults are documented starting points, not structural constants:
// every one of them is expected to be tuned per deployment.
func (c *Config) applyDefaults() {
	if c.MinChunkDuration == 0 {
		c.MinChunkDuration = c.ChunkDuration / 4
	}
	if c.MinSegmentDuration == 0 {
		c.MinSegmentDuration = c.ChunkDuration
	}
	if c.GapTolerance == 0 {
		c.GapTolerance = 32
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.NoDataExitCode == 0 {
		c.NoDataExitCode = 100
	}
	if c.MaxChunksPerJob == 0 {
		c.MaxChunksPerJob = 1
	}
	if len(c.OutputFormats) == 0 {
		c.OutputFormats = []string{"txt"}
	}
	if c.OutputDir == "" {
		c.OutputDir = "triggers"
	}
	if c.Bucket == "" {
		c.Bucket = "metric-day"
	}
	if c.LedgerPath == "" {
		c.LedgerPath = "ledger.db"
	}
}

// validate checks the raw YAML against the embedded schema before
// decoding, so field-level mistakes surface with schema paths instead
// of zero values.
func validate(data []byte) error {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config YAML: %w", err)
	}
	// round-trip through JSON so the validator sees the numeric types
	// it expects
	encoded, err := json.Marshal(jsonify(raw))
	if err != nil {
		return fmt.Errorf("encode config for validation: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return fmt.Errorf("decode config for validation: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	var schemaObj interface{}
	if err := yaml.Unmarshal(schemaYAML, &schemaObj); err != nil {
		return nil, fmt.Errorf("parse embedded schema: %w", err)
	}
	jsonData, err := json.Marshal(jsonify(schemaObj))
	if err != nil {
		return nil, fmt.Errorf("marshal embedded schema: %w", err)
	}

	const schemaURI = "config://run/schema.json"
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == schemaURI {
			return io.NopCloser(strings.NewReader(string(jsonData))), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}
	schema, err := compiler.Compile(schemaURI)
	if err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}
	return schema, nil
}

// jsonify rewrites YAML's map[interface{}]interface{} shapes into the
// map[string]interface{} form the schema validator expects.
func jsonify(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = jsonify(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = jsonify(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = jsonify(item)
		}
		return out
	default:
		return v
	}
}
