// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/randomizedcoder/go-padel-swarm/internal/process"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

// javaProbeTimeout bounds the java -version invocation. A hung probe
// should not hang startup.
const javaProbeTimeout = 10 * time.Second

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(targetWorkers int, javaPath, jarPath, tempDir, heapSize string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 6),
		Passed: true,
	}

	// Java runtime check
	javaCheck := checkJava(javaPath)
	result.Checks = append(result.Checks, javaCheck)
	if !javaCheck.Passed {
		result.Passed = false
	}

	// Descriptor jar check
	jarCheck := checkJar(jarPath)
	result.Checks = append(result.Checks, jarCheck)
	if !jarCheck.Passed {
		result.Passed = false
	}

	// Scratch directory check
	tempCheck := checkTempDir(tempDir)
	result.Checks = append(result.Checks, tempCheck)
	if !tempCheck.Passed {
		result.Passed = false
	}

	// File descriptor check
	fdCheck := checkFileDescriptors(targetWorkers)
	result.Checks = append(result.Checks, fdCheck)
	if !fdCheck.Passed {
		result.Passed = false
	}

	// Process limit check
	procCheck := checkProcessLimit(targetWorkers)
	result.Checks = append(result.Checks, procCheck)
	if !procCheck.Passed {
		result.Passed = false
	}

	// Memory check (warning only)
	memCheck := checkMemory(targetWorkers, heapSize)
	result.Checks = append(result.Checks, memCheck)
	// Don't fail on memory warning

	return result
}

// checkJava verifies the Java runtime is available and working.
func checkJava(javaPath string) Check {
	ctx, cancel := context.WithTimeout(context.Background(), javaProbeTimeout)
	defer cancel()

	banner, err := process.ProbeJava(ctx, javaPath)
	if err != nil {
		return Check{
			Name:    "java_runtime",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", javaPath, err),
		}
	}

	version := process.ParseJavaVersion(banner)
	if version == "" {
		version = "unknown"
	}

	return Check{
		Name:    "java_runtime",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", javaPath, version),
	}
}

// checkJar verifies the descriptor jar exists and is a file.
func checkJar(jarPath string) Check {
	resolved, err := process.FindJar(jarPath)
	if err != nil {
		return Check{
			Name:    "descriptor_jar",
			Passed:  false,
			Message: err.Error(),
		}
	}

	return Check{
		Name:    "descriptor_jar",
		Passed:  true,
		Message: fmt.Sprintf("found %s", resolved),
	}
}

// checkTempDir verifies the scratch directory can be created and
// written to. Every invocation writes its .smi and .csv here.
func checkTempDir(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{
			Name:    "temp_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	probe, err := os.CreateTemp(dir, "preflight_*")
	if err != nil {
		return Check{
			Name:    "temp_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot write to %s: %v", dir, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	return Check{
		Name:    "temp_dir",
		Passed:  true,
		Message: fmt.Sprintf("%s is writable", abs),
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(workers int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Each JVM holds the jar, class files, scratch files, and pipes
	// open. Plus orchestrator overhead (metrics server, logging, etc.)
	required := workers*16 + 64
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d workers)", actual, required, workers),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
// Every JVM thread (GC, JIT, CDK worker) counts against RLIMIT_NPROC.
func checkProcessLimit(workers int) Check {
	required := workers*32 + 128

	// Read soft limit from /proc/self/limits
	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	// Parse "Max processes" line
	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// checkMemory warns when available memory cannot hold every worker's
// pinned heap at once. Warning only: Linux overcommits and not every
// JVM touches its full heap.
func checkMemory(workers int, heapSize string) Check {
	heapBytes := ParseHeapSize(heapSize)
	if heapBytes <= 0 {
		return Check{
			Name:    "memory",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("cannot parse heap size %q", heapSize),
		}
	}

	available := memAvailableBytes()
	if available <= 0 {
		return Check{
			Name:    "memory",
			Passed:  true,
			Warning: true,
			Message: "unable to read /proc/meminfo (non-Linux?)",
		}
	}

	// Heap per worker plus ~25% JVM overhead (metaspace, stacks, CDK
	// native buffers)
	requiredMB := int(int64(workers) * (heapBytes + heapBytes/4) / (1 << 20))
	availableMB := int(available / (1 << 20))

	return Check{
		Name:     "memory",
		Required: requiredMB,
		Actual:   availableMB,
		Passed:   true, // Don't fail on this
		Warning:  availableMB < requiredMB,
		Message:  fmt.Sprintf("%d MB available (recommend %d MB for %d × %s heaps)", availableMB, requiredMB, workers, heapSize),
	}
}

// ParseHeapSize converts a JVM heap string ("1G", "512m", "262144k")
// to bytes. Returns 0 when the string cannot be parsed.
func ParseHeapSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n * multiplier
}

// memAvailableBytes reads MemAvailable from /proc/meminfo. Returns 0
// when it cannot be determined.
func memAvailableBytes() int64 {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemAvailable:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseInt(fields[1], 10, 64)
				if err == nil {
					return kb * 1024
				}
			}
			break
		}
	}
	return 0
}

// PrintResults prints the preflight check results. They go to stderr
// because stdout may carry the descriptor table.
func PrintResults(result *Result) {
	fmt.Fprintln(os.Stderr, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(os.Stderr, check.String())
		if !check.Passed {
			fmt.Fprintf(os.Stderr, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(os.Stderr)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "java_runtime":
		return "install a JRE (apt install default-jre) or pass -java /path/to/java"
	case "descriptor_jar":
		return "download PaDEL-Descriptor and pass -jar /path/to/PaDEL-Descriptor.jar"
	case "temp_dir":
		return "pass -temp-dir pointing at a writable directory"
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
