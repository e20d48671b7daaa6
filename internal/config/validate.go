package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// heapSizeRe matches JVM -Xmx syntax: a number with an optional
// k/m/g suffix. No suffix means bytes.
var heapSizeRe = regexp.MustCompile(`^[0-9]+[kKmMgG]?$`)

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	// Molecules are required unless a diagnostic mode supplies its own
	// (-print-cmd uses a placeholder, -check injects a probe molecule).
	if len(cfg.SMILES) == 0 && cfg.InputFile == "" && !cfg.PrintCmd && !cfg.Check {
		errs = append(errs, ValidationError{
			Field:   "smiles",
			Message: "no molecules given: pass SMILES arguments, -smiles, or -input",
		})
	}

	// Workers must be positive
	if cfg.Workers < 1 {
		errs = append(errs, ValidationError{
			Field:   "workers",
			Message: "must be at least 1",
		})
	}

	// Ramp rate must be positive
	if cfg.RampRate < 1 {
		errs = append(errs, ValidationError{
			Field:   "ramp_rate",
			Message: "must be at least 1",
		})
	}

	if cfg.RampJitter < 0 {
		errs = append(errs, ValidationError{
			Field:   "ramp_jitter",
			Message: "must not be negative",
		})
	}

	// Something has to be calculated
	if !cfg.DescriptorsSelected() {
		errs = append(errs, ValidationError{
			Field:   "descriptors",
			Message: "no descriptor classes selected: enable -2d, -3d, -fingerprints, or pass -descriptor-types/-padel-config",
		})
	}

	// Java runtime
	if cfg.JavaPath == "" {
		errs = append(errs, ValidationError{
			Field:   "java_path",
			Message: "must not be empty",
		})
	}
	if cfg.HeapSize != "" && !heapSizeRe.MatchString(cfg.HeapSize) {
		errs = append(errs, ValidationError{
			Field:   "heap_size",
			Message: fmt.Sprintf("must look like 512M or 2G (got %q)", cfg.HeapSize),
		})
	}

	// Timeout of zero disables the budget; negative makes no sense
	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must be zero (no limit) or positive",
		})
	}
	if cfg.KillGrace <= 0 {
		errs = append(errs, ValidationError{
			Field:   "kill_grace",
			Message: "must be positive",
		})
	}

	// PaDEL numeric options use -1 as their "unlimited" sentinel
	if cfg.PaDELThreads == 0 || cfg.PaDELThreads < -1 {
		errs = append(errs, ValidationError{
			Field:   "padel_threads",
			Message: "must be -1 (one per core) or a positive thread count",
		})
	}
	if cfg.MaxRuntime == 0 || cfg.MaxRuntime < -1 {
		errs = append(errs, ValidationError{
			Field:   "max_runtime_ms",
			Message: "must be -1 (unlimited) or a positive millisecond budget",
		})
	}
	if cfg.WaitingJobs == 0 || cfg.WaitingJobs < -1 {
		errs = append(errs, ValidationError{
			Field:   "waiting_jobs",
			Message: "must be -1 (50 per thread) or a positive queue depth",
		})
	}
	if cfg.MaxCompoundsPerFile < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_cpd_per_file",
			Message: "must be zero (unlimited) or positive",
		})
	}

	// Output
	if cfg.OutputPath == "" {
		errs = append(errs, ValidationError{
			Field:   "output",
			Message: `must not be empty (use "-" for stdout)`,
		})
	}
	if cfg.TempDir == "" {
		errs = append(errs, ValidationError{
			Field:   "temp_dir",
			Message: "must not be empty",
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	// Metrics listen address (empty = disabled)
	if cfg.MetricsAddr != "" {
		if err := validateListenAddr(cfg.MetricsAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics_addr",
				Message: err.Error(),
			})
		}
	}

	// Stderr capture settings
	if cfg.StatsBufferSize < 1 {
		errs = append(errs, ValidationError{
			Field:   "stats_buffer_size",
			Message: "must be at least 1",
		})
	}
	if cfg.StatsDropThreshold <= 0 || cfg.StatsDropThreshold > 1 {
		errs = append(errs, ValidationError{
			Field:   "stats_drop_threshold",
			Message: "must be in (0, 1]",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// validateListenAddr checks a host:port listen address.
func validateListenAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("must be host:port (got %q)", addr)
	}
	_ = host // empty host means all interfaces
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be 1-65535 (got %q)", port)
	}
	return nil
}

// checkProbeSMILES is the molecule -check runs when none was given.
// Benzene: small, aromatic, and every descriptor class handles it.
const checkProbeSMILES = "c1ccccc1"

// ApplyCheckMode modifies config for --check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.Workers = 1
	cfg.Verbose = true
	cfg.TUIEnabled = false
	cfg.OutputPath = "-"
	if len(cfg.SMILES) == 0 && cfg.InputFile == "" {
		cfg.SMILES = []string{checkProbeSMILES}
	}
}
