package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultHeapSize is the JVM heap given to each PaDEL instance.
	// PaDEL loads the whole molecule set into memory, so the heap is
	// pinned (-Xms == -Xmx) to avoid GC-driven resizing under swarm load.
	DefaultHeapSize = "1G"

	// DefaultJarName is the file name of the descriptor calculator.
	DefaultJarName = "PaDEL-Descriptor.jar"
)

// Options mirror PaDEL-Descriptor's own command-line switches.
// Zero values match the program's defaults except where noted.
type Options struct {
	// MaxRuntime is the maximum running time per molecule in milliseconds.
	// -1 means unlimited.
	MaxRuntime int

	// WaitingJobs is the maximum number of jobs queued per worker thread.
	// -1 means 50 * max threads.
	WaitingJobs int

	// Threads is the maximum number of threads the JVM may use.
	// -1 means one per CPU core. Swarm runs pin this to 1 so the
	// parallelism lives in the worker pool, not inside each JVM.
	Threads int

	// MaxCompoundsPerFile caps compounds per descriptor file. 0 = unlimited.
	MaxCompoundsPerFile int

	// TwoD calculates 2-D descriptors.
	TwoD bool

	// ThreeD calculates 3-D descriptors.
	ThreeD bool

	// ConfigFile is an optional PaDEL configuration file path.
	ConfigFile string

	// Convert3D converts molecules to 3-D before calculation.
	Convert3D bool

	// DescriptorTypes is an optional descriptor-types XML path.
	DescriptorTypes string

	// DetectAromaticity removes existing aromaticity information and
	// re-detects it before calculation.
	DetectAromaticity bool

	// Fingerprints calculates fingerprints.
	Fingerprints bool

	// Log makes PaDEL write a .log file next to the descriptor file.
	Log bool

	// RemoveSalt removes salt from each molecule.
	RemoveSalt bool

	// Retain3D retains 3-D coordinates when standardizing structure.
	Retain3D bool

	// RetainOrder keeps the structural file order in the descriptor file.
	RetainOrder bool

	// StandardizeNitro standardizes nitro groups to N(:O):O.
	StandardizeNitro bool

	// StandardizeTautomers standardizes tautomers.
	StandardizeTautomers bool

	// TautomerList is an optional SMIRKS tautomers file path.
	TautomerList string

	// UseFilenameAsMolName uses the file name (minus extension) as the
	// molecule name.
	UseFilenameAsMolName bool
}

// DefaultOptions returns PaDEL's own defaults.
func DefaultOptions() Options {
	return Options{
		MaxRuntime:          -1,
		WaitingJobs:         -1,
		Threads:             -1,
		MaxCompoundsPerFile: 0,
	}
}

// PaDELConfig holds configuration for launching the PaDEL-Descriptor JVM.
type PaDELConfig struct {
	// JavaPath is the java binary, resolved via PATH when not absolute.
	JavaPath string

	// JarPath is the path to PaDEL-Descriptor.jar.
	JarPath string

	// HeapSize is the pinned JVM heap (-Xms/-Xmx), e.g. "1G".
	// Only applied in headless mode.
	HeapSize string

	// Headless adds -Djava.awt.headless=true and the heap flags.
	// PaDEL pops up AWT dialogs without it.
	Headless bool

	// Options are the descriptor switches passed through to the jar.
	Options Options
}

// DefaultPaDELConfig returns a PaDELConfig with sensible defaults.
func DefaultPaDELConfig(jarPath string) *PaDELConfig {
	return &PaDELConfig{
		JavaPath: "java",
		JarPath:  jarPath,
		HeapSize: DefaultHeapSize,
		Headless: true,
		Options:  DefaultOptions(),
	}
}

// DefaultJarPath returns the conventional jar location: a
// PaDEL-Descriptor directory next to the running executable, falling
// back to the bare jar name in the working directory.
func DefaultJarPath() string {
	exe, err := os.Executable()
	if err == nil {
		p := filepath.Join(filepath.Dir(exe), "PaDEL-Descriptor", DefaultJarName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return DefaultJarName
}

// PaDELRunner implements Runner for PaDEL-Descriptor JVM processes.
type PaDELRunner struct {
	config *PaDELConfig
}

// NewPaDELRunner creates a new PaDEL runner with the given configuration.
func NewPaDELRunner(cfg *PaDELConfig) *PaDELRunner {
	return &PaDELRunner{
		config: cfg,
	}
}

// Name returns "padel".
func (r *PaDELRunner) Name() string {
	return "padel"
}

// BuildCommand creates an exec.Cmd for one descriptor job.
// It fails if the java binary cannot be resolved, so a missing runtime
// is caught before anything is spawned or waited on.
func (r *PaDELRunner) BuildCommand(ctx context.Context, job Job) (*exec.Cmd, error) {
	javaPath, err := exec.LookPath(r.config.JavaPath)
	if err != nil {
		return nil, fmt.Errorf("java runtime %q: %w", r.config.JavaPath, err)
	}
	args := r.buildArgs(job)
	cmd := exec.CommandContext(ctx, javaPath, args...)
	return cmd, nil
}

// buildArgs constructs the java command-line arguments.
// Flag order matches PaDEL's documented invocation: JVM flags, -jar,
// the four numeric options, the boolean/path options, then -dir/-file.
func (r *PaDELRunner) buildArgs(job Job) []string {
	var args []string

	if r.config.Headless {
		heap := r.config.HeapSize
		if heap == "" {
			heap = DefaultHeapSize
		}
		args = append(args,
			"-Xms"+heap,
			"-Xmx"+heap,
			"-Djava.awt.headless=true",
		)
	}

	args = append(args, "-jar", r.config.JarPath)

	o := r.config.Options
	args = append(args,
		"-maxruntime", strconv.Itoa(o.MaxRuntime),
		"-waitingjobs", strconv.Itoa(o.WaitingJobs),
		"-threads", strconv.Itoa(o.Threads),
		"-maxcpdperfile", strconv.Itoa(o.MaxCompoundsPerFile),
	)

	if o.TwoD {
		args = append(args, "-2d")
	}
	if o.ThreeD {
		args = append(args, "-3d")
	}
	if o.ConfigFile != "" {
		args = append(args, "-config", o.ConfigFile)
	}
	if o.Convert3D {
		args = append(args, "-convert3d")
	}
	if o.DescriptorTypes != "" {
		args = append(args, "-descriptortypes", o.DescriptorTypes)
	}
	if o.DetectAromaticity {
		args = append(args, "-detectaromaticity")
	}
	if o.Fingerprints {
		args = append(args, "-fingerprints")
	}
	if o.Log {
		args = append(args, "-log")
	}
	if o.RemoveSalt {
		args = append(args, "-removesalt")
	}
	if o.Retain3D {
		args = append(args, "-retain3d")
	}
	if o.RetainOrder {
		args = append(args, "-retainorder")
	}
	if o.StandardizeNitro {
		args = append(args, "-standardizenitro")
	}
	if o.StandardizeTautomers {
		args = append(args, "-standardizetautomers")
	}
	if o.TautomerList != "" {
		args = append(args, "-tautomerlist", o.TautomerList)
	}
	if o.UseFilenameAsMolName {
		args = append(args, "-usefilenameasmolname")
	}

	args = append(args, "-dir", job.InputPath, "-file", job.OutputPath)

	return args
}

// Bind fixes a runner to one job so the supervisor can build the
// command without knowing about jobs.
func (r *PaDELRunner) Bind(job Job) *BoundJob {
	return &BoundJob{runner: r, job: job}
}

// Config returns the PaDEL configuration.
func (r *PaDELRunner) Config() *PaDELConfig {
	return r.config
}

// CommandString returns the command that would be executed (for debugging).
func (r *PaDELRunner) CommandString(job Job) string {
	args := r.buildArgs(job)
	return r.config.JavaPath + " " + strings.Join(args, " ")
}

// BoundJob is a Runner fixed to a single job.
type BoundJob struct {
	runner *PaDELRunner
	job    Job
}

// BuildCommand builds the command for the bound job.
func (b *BoundJob) BuildCommand(ctx context.Context) (*exec.Cmd, error) {
	return b.runner.BuildCommand(ctx, b.job)
}

// Name returns the underlying runner's name.
func (b *BoundJob) Name() string {
	return b.runner.Name()
}

// Job returns the bound job.
func (b *BoundJob) Job() Job {
	return b.job
}
