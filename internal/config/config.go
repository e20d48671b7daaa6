// Package config provides configuration management for go-padel-swarm.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the orchestrator.
type Config struct {
	// Orchestration
	Workers    int           `json:"workers" yaml:"workers"`
	RampRate   int           `json:"ramp_rate" yaml:"ramp_rate"`
	RampJitter time.Duration `json:"ramp_jitter" yaml:"ramp_jitter"`

	// Molecules
	SMILES     []string `json:"smiles" yaml:"smiles"`
	InputFile  string   `json:"input_file" yaml:"input_file"`
	OutputPath string   `json:"output" yaml:"output"` // "-" = stdout, ".gz" = compressed
	ReportPNG  string   `json:"report_png" yaml:"report_png"`

	// Java runtime
	JavaPath  string        `json:"java_path" yaml:"java_path"`
	JarPath   string        `json:"jar_path" yaml:"jar_path"` // empty = auto-detect
	HeapSize  string        `json:"heap_size" yaml:"heap_size"`
	Headless  bool          `json:"headless" yaml:"headless"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"` // per molecule, 0 = no limit
	KillGrace time.Duration `json:"kill_grace" yaml:"kill_grace"`

	// Descriptor selection
	TwoD            bool   `json:"descriptors_2d" yaml:"descriptors_2d"`
	ThreeD          bool   `json:"descriptors_3d" yaml:"descriptors_3d"`
	Fingerprints    bool   `json:"fingerprints" yaml:"fingerprints"`
	DescriptorTypes string `json:"descriptor_types" yaml:"descriptor_types"`
	PaDELConfigFile string `json:"padel_config" yaml:"padel_config"`

	// Structure preparation
	Convert3D            bool   `json:"convert_3d" yaml:"convert_3d"`
	DetectAromaticity    bool   `json:"detect_aromaticity" yaml:"detect_aromaticity"`
	RemoveSalt           bool   `json:"remove_salt" yaml:"remove_salt"`
	StandardizeNitro     bool   `json:"standardize_nitro" yaml:"standardize_nitro"`
	StandardizeTautomers bool   `json:"standardize_tautomers" yaml:"standardize_tautomers"`
	TautomerList         string `json:"tautomer_list" yaml:"tautomer_list"`
	Retain3D             bool   `json:"retain_3d" yaml:"retain_3d"`

	// PaDEL tuning
	PaDELThreads         int  `json:"padel_threads" yaml:"padel_threads"` // -1 = one per core
	MaxRuntime           int  `json:"max_runtime_ms" yaml:"max_runtime_ms"`
	WaitingJobs          int  `json:"waiting_jobs" yaml:"waiting_jobs"`
	MaxCompoundsPerFile  int  `json:"max_cpd_per_file" yaml:"max_cpd_per_file"`
	RetainOrder          bool `json:"retain_order" yaml:"retain_order"`
	UseFilenameAsMolName bool `json:"use_filename_as_molname" yaml:"use_filename_as_molname"`
	PaDELLog             bool `json:"padel_log" yaml:"padel_log"`

	// Workspace
	TempDir  string `json:"temp_dir" yaml:"temp_dir"`
	KeepTemp bool   `json:"keep_temp" yaml:"keep_temp"`

	// Observability
	MetricsAddr       string `json:"metrics_addr" yaml:"metrics_addr"` // empty = disabled
	MetricsDump       string `json:"metrics_dump" yaml:"metrics_dump"` // final scrape file, "-" = stdout
	PromWorkerMetrics bool   `json:"prom_worker_metrics" yaml:"prom_worker_metrics"`
	Verbose           bool   `json:"verbose" yaml:"verbose"`
	LogFormat         string `json:"log_format" yaml:"log_format"` // json, text
	TUIEnabled        bool   `json:"tui" yaml:"tui"`

	// Stderr capture
	StatsEnabled       bool    `json:"stats" yaml:"stats"`
	StatsBufferSize    int     `json:"stats_buffer_size" yaml:"stats_buffer_size"`
	StatsDropThreshold float64 `json:"stats_drop_threshold" yaml:"stats_drop_threshold"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd" yaml:"print_cmd"`
	Check         bool `json:"check" yaml:"check"`
	SkipPreflight bool `json:"skip_preflight" yaml:"skip_preflight"`

	// ConfigFile is the YAML file the rest of this struct was loaded
	// from, when -config was given. Never read back from YAML itself.
	ConfigFile string `json:"config_file" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Orchestration
		Workers:    runtime.NumCPU(),
		RampRate:   4,
		RampJitter: 200 * time.Millisecond,

		// Molecules
		OutputPath: "descriptors.csv",

		// Java runtime
		JavaPath:  "java",
		JarPath:   "", // resolved by preflight
		HeapSize:  "1G",
		Headless:  true,
		Timeout:   5 * time.Minute,
		KillGrace: 5 * time.Second,

		// Descriptor selection
		TwoD: true,

		// PaDEL tuning. One CDK thread per JVM: parallelism lives in
		// the worker pool, not inside each process.
		PaDELThreads:        1,
		MaxRuntime:          -1,
		WaitingJobs:         -1,
		MaxCompoundsPerFile: 0,

		// Workspace
		TempDir: "padel_temp",

		// Observability
		MetricsAddr: "0.0.0.0:17091",
		Verbose:     false,
		LogFormat:   "json",
		TUIEnabled:  true,

		// Stderr capture
		StatsEnabled:       true,
		StatsBufferSize:    1000,
		StatsDropThreshold: 0.01,
	}
}

// DescriptorsSelected reports whether at least one descriptor class
// will be calculated. PaDEL runs to completion but emits an empty
// table when nothing is selected.
func (c *Config) DescriptorsSelected() bool {
	return c.TwoD || c.ThreeD || c.Fingerprints ||
		c.DescriptorTypes != "" || c.PaDELConfigFile != ""
}

// WritesToStdout reports whether descriptor output goes to stdout,
// which rules out the TUI dashboard.
func (c *Config) WritesToStdout() bool {
	return c.OutputPath == "-"
}

// LoadFile overlays cfg with values from a YAML file. Unknown keys
// are rejected so a typo fails loudly instead of silently using the
// default.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}
