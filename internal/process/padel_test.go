package process

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// Table-Driven Tests: DefaultPaDELConfig
// =============================================================================

func TestDefaultPaDELConfig(t *testing.T) {
	cfg := DefaultPaDELConfig("/opt/padel/PaDEL-Descriptor.jar")

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"JavaPath", cfg.JavaPath, "java"},
		{"JarPath", cfg.JarPath, "/opt/padel/PaDEL-Descriptor.jar"},
		{"HeapSize", cfg.HeapSize, "1G"},
		{"Headless", cfg.Headless, true},
		{"MaxRuntime", cfg.Options.MaxRuntime, -1},
		{"WaitingJobs", cfg.Options.WaitingJobs, -1},
		{"Threads", cfg.Options.Threads, -1},
		{"MaxCompoundsPerFile", cfg.Options.MaxCompoundsPerFile, 0},
		{"TwoD", cfg.Options.TwoD, false},
		{"Fingerprints", cfg.Options.Fingerprints, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Table-Driven Tests: buildArgs
// =============================================================================

func TestPaDELRunner_buildArgs_Defaults(t *testing.T) {
	cfg := DefaultPaDELConfig("PaDEL-Descriptor.jar")
	runner := NewPaDELRunner(cfg)
	job := Job{ID: 0, InputPath: "padel_temp/in.smi", OutputPath: "padel_temp/out.csv"}

	args := runner.buildArgs(job)
	want := []string{
		"-Xms1G", "-Xmx1G", "-Djava.awt.headless=true",
		"-jar", "PaDEL-Descriptor.jar",
		"-maxruntime", "-1",
		"-waitingjobs", "-1",
		"-threads", "-1",
		"-maxcpdperfile", "0",
		"-dir", "padel_temp/in.smi",
		"-file", "padel_temp/out.csv",
	}

	if !reflect.DeepEqual(args, want) {
		t.Errorf("buildArgs() = %v, want %v", args, want)
	}
}

func TestPaDELRunner_buildArgs_BooleanFlags(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Options)
		wantFlag string
	}{
		{"2d", func(o *Options) { o.TwoD = true }, "-2d"},
		{"3d", func(o *Options) { o.ThreeD = true }, "-3d"},
		{"convert3d", func(o *Options) { o.Convert3D = true }, "-convert3d"},
		{"detectaromaticity", func(o *Options) { o.DetectAromaticity = true }, "-detectaromaticity"},
		{"fingerprints", func(o *Options) { o.Fingerprints = true }, "-fingerprints"},
		{"log", func(o *Options) { o.Log = true }, "-log"},
		{"removesalt", func(o *Options) { o.RemoveSalt = true }, "-removesalt"},
		{"retain3d", func(o *Options) { o.Retain3D = true }, "-retain3d"},
		{"retainorder", func(o *Options) { o.RetainOrder = true }, "-retainorder"},
		{"standardizenitro", func(o *Options) { o.StandardizeNitro = true }, "-standardizenitro"},
		{"standardizetautomers", func(o *Options) { o.StandardizeTautomers = true }, "-standardizetautomers"},
		{"usefilenameasmolname", func(o *Options) { o.UseFilenameAsMolName = true }, "-usefilenameasmolname"},
	}

	job := Job{InputPath: "in.smi", OutputPath: "out.csv"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Flag absent when the option is off
			cfg := DefaultPaDELConfig("p.jar")
			runner := NewPaDELRunner(cfg)
			argsStr := " " + strings.Join(runner.buildArgs(job), " ") + " "
			if strings.Contains(argsStr, " "+tt.wantFlag+" ") {
				t.Errorf("flag %s present with option disabled", tt.wantFlag)
			}

			// Flag present when the option is on
			cfg = DefaultPaDELConfig("p.jar")
			tt.mutate(&cfg.Options)
			runner = NewPaDELRunner(cfg)
			argsStr = " " + strings.Join(runner.buildArgs(job), " ") + " "
			if !strings.Contains(argsStr, " "+tt.wantFlag+" ") {
				t.Errorf("flag %s missing with option enabled", tt.wantFlag)
			}
		})
	}
}

func TestPaDELRunner_buildArgs_PathFlags(t *testing.T) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.Options.ConfigFile = "conf.txt"
	cfg.Options.DescriptorTypes = "types.xml"
	cfg.Options.TautomerList = "tautomers.smirks"
	runner := NewPaDELRunner(cfg)

	argsStr := strings.Join(runner.buildArgs(Job{InputPath: "i", OutputPath: "o"}), " ")

	for _, want := range []string{
		"-config conf.txt",
		"-descriptortypes types.xml",
		"-tautomerlist tautomers.smirks",
	} {
		if !strings.Contains(argsStr, want) {
			t.Errorf("missing %q in args: %s", want, argsStr)
		}
	}
}

func TestPaDELRunner_buildArgs_HeadlessDisabled(t *testing.T) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.Headless = false
	runner := NewPaDELRunner(cfg)

	args := runner.buildArgs(Job{InputPath: "i", OutputPath: "o"})

	if args[0] != "-jar" {
		t.Errorf("expected -jar first without headless mode, got %v", args[:2])
	}
	argsStr := strings.Join(args, " ")
	for _, forbidden := range []string{"-Xms", "-Xmx", "headless"} {
		if strings.Contains(argsStr, forbidden) {
			t.Errorf("unexpected %q in non-headless args: %s", forbidden, argsStr)
		}
	}
}

func TestPaDELRunner_buildArgs_InputOutputLast(t *testing.T) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.Options.TwoD = true
	cfg.Options.Fingerprints = true
	runner := NewPaDELRunner(cfg)

	args := runner.buildArgs(Job{InputPath: "mol.smi", OutputPath: "desc.csv"})

	n := len(args)
	if n < 4 {
		t.Fatalf("args too short: %v", args)
	}
	tail := args[n-4:]
	want := []string{"-dir", "mol.smi", "-file", "desc.csv"}
	if !reflect.DeepEqual(tail, want) {
		t.Errorf("args tail = %v, want %v", tail, want)
	}
}

func TestPaDELRunner_buildArgs_NumericOverrides(t *testing.T) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.Options.MaxRuntime = 120000
	cfg.Options.WaitingJobs = 10
	cfg.Options.Threads = 1
	cfg.Options.MaxCompoundsPerFile = 5000
	runner := NewPaDELRunner(cfg)

	argsStr := strings.Join(runner.buildArgs(Job{InputPath: "i", OutputPath: "o"}), " ")

	for _, want := range []string{
		"-maxruntime 120000",
		"-waitingjobs 10",
		"-threads 1",
		"-maxcpdperfile 5000",
	} {
		if !strings.Contains(argsStr, want) {
			t.Errorf("missing %q in args: %s", want, argsStr)
		}
	}
}

// =============================================================================
// Tests: BuildCommand
// =============================================================================

func TestPaDELRunner_BuildCommand_MissingJava(t *testing.T) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.JavaPath = "definitely-not-a-real-java-binary-12345"
	runner := NewPaDELRunner(cfg)

	_, err := runner.BuildCommand(context.Background(), Job{InputPath: "i", OutputPath: "o"})
	if err == nil {
		t.Fatal("expected error for missing java binary")
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("expected exec.ErrNotFound in chain, got %v", err)
	}
}

func TestPaDELRunner_BuildCommand_UsesResolvedBinary(t *testing.T) {
	// "echo" stands in for java; only command construction is under test.
	cfg := DefaultPaDELConfig("p.jar")
	cfg.JavaPath = "echo"
	runner := NewPaDELRunner(cfg)

	cmd, err := runner.BuildCommand(context.Background(), Job{ID: 7, InputPath: "i.smi", OutputPath: "o.csv"})
	if err != nil {
		t.Fatalf("BuildCommand failed: %v", err)
	}
	if cmd.Process != nil {
		t.Error("command must not be started by BuildCommand")
	}
	argsStr := strings.Join(cmd.Args, " ")
	if !strings.Contains(argsStr, "-dir i.smi") || !strings.Contains(argsStr, "-file o.csv") {
		t.Errorf("command args missing job paths: %s", argsStr)
	}
}

// =============================================================================
// Tests: Bind / CommandString
// =============================================================================

func TestPaDELRunner_Bind(t *testing.T) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.JavaPath = "echo"
	runner := NewPaDELRunner(cfg)
	job := Job{ID: 3, InputPath: "a.smi", OutputPath: "a.csv"}

	bound := runner.Bind(job)

	if bound.Name() != "padel" {
		t.Errorf("Name() = %q, want %q", bound.Name(), "padel")
	}
	if bound.Job() != job {
		t.Errorf("Job() = %+v, want %+v", bound.Job(), job)
	}

	cmd, err := bound.BuildCommand(context.Background())
	if err != nil {
		t.Fatalf("BuildCommand failed: %v", err)
	}
	if !strings.Contains(strings.Join(cmd.Args, " "), "a.smi") {
		t.Errorf("bound command missing job input: %v", cmd.Args)
	}
}

func TestPaDELRunner_CommandString(t *testing.T) {
	cfg := DefaultPaDELConfig("PaDEL-Descriptor.jar")
	runner := NewPaDELRunner(cfg)

	s := runner.CommandString(Job{InputPath: "in.smi", OutputPath: "out.csv"})

	if !strings.HasPrefix(s, "java ") {
		t.Errorf("CommandString should start with the java binary: %s", s)
	}
	for _, want := range []string{"-jar PaDEL-Descriptor.jar", "-dir in.smi", "-file out.csv"} {
		if !strings.Contains(s, want) {
			t.Errorf("CommandString missing %q: %s", want, s)
		}
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkPaDELRunner_buildArgs(b *testing.B) {
	cfg := DefaultPaDELConfig("p.jar")
	cfg.Options.TwoD = true
	cfg.Options.ThreeD = true
	cfg.Options.Fingerprints = true
	runner := NewPaDELRunner(cfg)
	job := Job{InputPath: "in.smi", OutputPath: "out.csv"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = runner.buildArgs(job)
	}
}
