package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// smilesList is a custom flag type for repeatable -smiles flags.
type smilesList []string

func (s *smilesList) String() string {
	return strings.Join(*s, ", ")
}

func (s *smilesList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if arguments are malformed.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs is ParseFlags on an explicit argument slice, so tests can
// call it more than once without tripping flag redefinition panics.
func ParseArgs(args []string) (*Config, error) {
	cfg := DefaultConfig()

	// Load the YAML config file first so flags override it.
	if path := configFileArg(args); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	fs := flag.NewFlagSet("go-padel-swarm", flag.ContinueOnError)
	var smiles smilesList

	// Custom usage message
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, `go-padel-swarm - parallel molecular descriptor calculation with PaDEL-Descriptor

Usage:
  go-padel-swarm [flags] [SMILES ...]

Molecule Flags:
`)
		// Print flags by category
		printFlagCategory(fs, []string{"smiles", "input", "output", "report-png"})

		fmt.Fprintf(out, "\nSwarm Flags:\n")
		printFlagCategory(fs, []string{"workers", "ramp-rate", "ramp-jitter"})

		fmt.Fprintf(out, "\nJava Runtime:\n")
		printFlagCategory(fs, []string{"java", "jar", "heap", "headless", "timeout", "kill-grace"})

		fmt.Fprintf(out, "\nDescriptor Selection:\n")
		printFlagCategory(fs, []string{"2d", "3d", "fingerprints", "descriptor-types", "padel-config"})

		fmt.Fprintf(out, "\nStructure Preparation:\n")
		printFlagCategory(fs, []string{"convert-3d", "detect-aromaticity", "remove-salt",
			"standardize-nitro", "standardize-tautomers", "tautomer-list", "retain-3d"})

		fmt.Fprintf(out, "\nPaDEL Tuning:\n")
		printFlagCategory(fs, []string{"padel-threads", "max-runtime", "waiting-jobs",
			"max-cpd-per-file", "retain-order", "use-filename-as-molname", "padel-log"})

		fmt.Fprintf(out, "\nWorkspace:\n")
		printFlagCategory(fs, []string{"temp-dir", "keep-temp"})

		fmt.Fprintf(out, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, []string{"print-cmd", "check", "skip-preflight", "config"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, []string{"metrics", "metrics-dump", "prom-worker-metrics",
			"v", "log-format", "tui", "stats", "stats-buffer"})

		fmt.Fprintf(out, `
Examples:
  # 2-D descriptors for one molecule, table on stdout
  go-padel-swarm -output - "CCO"

  # Batch run from a SMILES file, gzipped output
  go-padel-swarm -workers 8 -input molecules.smi -output descriptors.csv.gz

  # Validate java, the jar, and the scratch directory
  go-padel-swarm -check

`)
	}

	// Molecules
	fs.Var(&smiles, "smiles", "SMILES string to calculate descriptors for (can repeat)")
	fs.StringVar(&cfg.InputFile, "input", cfg.InputFile, "SMILES file, one molecule per line (.gz ok)")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, `Descriptor table destination ("-" = stdout, ".gz" = compressed)`)
	fs.StringVar(&cfg.ReportPNG, "report-png", cfg.ReportPNG, "Write a runtime histogram PNG after the run")

	// Swarm
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of concurrent JVM workers")
	fs.IntVar(&cfg.RampRate, "ramp-rate", cfg.RampRate, "Workers to start per second")
	fs.DurationVar(&cfg.RampJitter, "ramp-jitter", cfg.RampJitter, "Random jitter per worker start")

	// Java runtime
	fs.StringVar(&cfg.JavaPath, "java", cfg.JavaPath, "Path to the java binary")
	fs.StringVar(&cfg.JarPath, "jar", cfg.JarPath, "Path to PaDEL-Descriptor.jar (auto-detected when empty)")
	fs.StringVar(&cfg.HeapSize, "heap", cfg.HeapSize, "Pinned JVM heap per worker (-Xms/-Xmx)")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the JVM headless (disable to allow AWT dialogs)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-molecule wall clock budget (0 = no limit)")
	fs.DurationVar(&cfg.KillGrace, "kill-grace", cfg.KillGrace, "SIGTERM to SIGKILL escalation delay")

	// Descriptor selection
	fs.BoolVar(&cfg.TwoD, "2d", cfg.TwoD, "Calculate 2-D descriptors")
	fs.BoolVar(&cfg.ThreeD, "3d", cfg.ThreeD, "Calculate 3-D descriptors")
	fs.BoolVar(&cfg.Fingerprints, "fingerprints", cfg.Fingerprints, "Calculate fingerprints")
	fs.StringVar(&cfg.DescriptorTypes, "descriptor-types", cfg.DescriptorTypes, "Descriptor types XML file")
	fs.StringVar(&cfg.PaDELConfigFile, "padel-config", cfg.PaDELConfigFile, "PaDEL configuration file passed through to the jar")

	// Structure preparation
	fs.BoolVar(&cfg.Convert3D, "convert-3d", cfg.Convert3D, "Convert molecules to 3-D before calculation")
	fs.BoolVar(&cfg.DetectAromaticity, "detect-aromaticity", cfg.DetectAromaticity, "Re-detect aromaticity before calculation")
	fs.BoolVar(&cfg.RemoveSalt, "remove-salt", cfg.RemoveSalt, "Remove salt from each molecule")
	fs.BoolVar(&cfg.StandardizeNitro, "standardize-nitro", cfg.StandardizeNitro, "Standardize nitro groups to N(:O):O")
	fs.BoolVar(&cfg.StandardizeTautomers, "standardize-tautomers", cfg.StandardizeTautomers, "Standardize tautomers")
	fs.StringVar(&cfg.TautomerList, "tautomer-list", cfg.TautomerList, "SMIRKS tautomers file")
	fs.BoolVar(&cfg.Retain3D, "retain-3d", cfg.Retain3D, "Retain 3-D coordinates when standardizing")

	// PaDEL tuning
	fs.IntVar(&cfg.PaDELThreads, "padel-threads", cfg.PaDELThreads, "CDK threads per JVM (-1 = one per core)")
	fs.IntVar(&cfg.MaxRuntime, "max-runtime", cfg.MaxRuntime, "PaDEL per-molecule budget in milliseconds (-1 = unlimited)")
	fs.IntVar(&cfg.WaitingJobs, "waiting-jobs", cfg.WaitingJobs, "Jobs queued per PaDEL thread (-1 = 50 per thread)")
	fs.IntVar(&cfg.MaxCompoundsPerFile, "max-cpd-per-file", cfg.MaxCompoundsPerFile, "Compounds per descriptor file (0 = unlimited)")
	fs.BoolVar(&cfg.RetainOrder, "retain-order", cfg.RetainOrder, "Keep input order in the descriptor file")
	fs.BoolVar(&cfg.UseFilenameAsMolName, "use-filename-as-molname", cfg.UseFilenameAsMolName, "Use the file name as the molecule name")
	fs.BoolVar(&cfg.PaDELLog, "padel-log", cfg.PaDELLog, "Make PaDEL write a .log file next to each descriptor file")

	// Workspace
	fs.StringVar(&cfg.TempDir, "temp-dir", cfg.TempDir, "Scratch directory for per-job input/output files")
	fs.BoolVar(&cfg.KeepTemp, "keep-temp", cfg.KeepTemp, "Keep scratch files after each job (debugging)")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the java command and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate the environment with a single probe molecule")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file (flags override it)")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.StringVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, `Write a final metrics scrape on exit ("-" = stdout, ".gz" = compressed)`)
	fs.BoolVar(&cfg.PromWorkerMetrics, "prom-worker-metrics", cfg.PromWorkerMetrics, "Export per-worker Prometheus metrics (high cardinality)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (use -tui=false to disable)")

	// Stderr capture
	fs.BoolVar(&cfg.StatsEnabled, "stats", cfg.StatsEnabled, "Capture and classify JVM stderr output")
	fs.IntVar(&cfg.StatsBufferSize, "stats-buffer", cfg.StatsBufferSize, "Lines to buffer per worker (increase if seeing drops)")
	// Note: stats-drop-threshold is intentionally not documented (hidden advanced flag)
	fs.Float64Var(&cfg.StatsDropThreshold, "stats-drop-threshold", cfg.StatsDropThreshold, "")

	// Parse
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Repeatable -smiles flags extend whatever the config file gave us.
	cfg.SMILES = append(cfg.SMILES, smiles...)

	// Positional arguments: more SMILES
	cfg.SMILES = append(cfg.SMILES, fs.Args()...)

	return cfg, nil
}

// configFileArg pre-scans args for -config so the YAML file can be
// loaded before flag defaults are registered. flag.Parse sees the
// flag again later; by then it is a harmless re-assignment.
func configFileArg(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			return ""
		}
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(fs.Output(), "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(fs.Output(), " (default %s)", f.DefValue)
				}
				fmt.Fprintln(fs.Output())
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	// Infer type from default value format
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	// Check if it looks like a duration
	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	// Check if numeric
	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
