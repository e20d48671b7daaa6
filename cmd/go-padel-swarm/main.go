// Package main provides the go-padel-swarm CLI entry point.
//
// go-padel-swarm calculates molecular descriptors by orchestrating a
// swarm of PaDEL-Descriptor JVM processes, one molecule per process,
// and merging the per-molecule tables into a single CSV.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/randomizedcoder/go-padel-swarm/internal/config"
	"github.com/randomizedcoder/go-padel-swarm/internal/logging"
	"github.com/randomizedcoder/go-padel-swarm/internal/orchestrator"
	"github.com/randomizedcoder/go-padel-swarm/internal/process"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-padel-swarm
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-padel-swarm %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Check mode disables the TUI and rewrites the output path, so
	// apply it before the logger suppression decision below.
	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// Initialize logger
	// When the TUI is active, suppress logs to avoid interfering with
	// its rendering.
	var logger *slog.Logger
	if cfg.TUIEnabled && !cfg.WritesToStdout() {
		// Use a null logger that discards all output
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if cfg.Check {
		logger.Info("check_mode_enabled", "workers", cfg.Workers, "molecules", len(cfg.SMILES))
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Handle --print-cmd mode
	if cfg.PrintCmd {
		printPaDELCommand(cfg)
		return 0
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"workers", cfg.Workers,
		"ramp_rate", cfg.RampRate,
		"input", moleculeSource(cfg),
		"output", cfg.OutputPath,
		"metrics_addr", cfg.MetricsAddr,
	)

	// Print startup banner
	printBanner(cfg)

	// Create and run orchestrator
	orch := orchestrator.New(cfg, logger)
	if err := orch.Run(context.Background()); err != nil {
		logger.Error("orchestrator_failed", "error", err)
		return 1
	}

	return 0
}

// moleculeSource describes where molecules come from, for logs and the
// banner.
func moleculeSource(cfg *config.Config) string {
	if cfg.InputFile != "" {
		return cfg.InputFile
	}
	return fmt.Sprintf("%d inline SMILES", len(cfg.SMILES))
}

// printBanner prints the startup banner. It goes to stderr when the
// descriptor table itself goes to stdout.
func printBanner(cfg *config.Config) {
	w := io.Writer(os.Stdout)
	if cfg.WritesToStdout() {
		w = os.Stderr
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                          go-padel-swarm                           ║")
	fmt.Fprintln(w, "║     Molecular Descriptors with PaDEL Process Orchestration        ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Target:      %d workers at %d/sec\n", cfg.Workers, cfg.RampRate)
	fmt.Fprintf(w, "  Molecules:   %s\n", moleculeSource(cfg))
	fmt.Fprintf(w, "  Output:      %s\n", cfg.OutputPath)
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	if cfg.ThreeD {
		fmt.Fprintln(w, "  3-D:         enabled (expect long per-molecule runtimes)")
	}
	if cfg.Timeout == 0 {
		fmt.Fprintln(w, "  Timeout:     none (hung JVMs will not be reaped)")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Press Ctrl+C to stop.")
	fmt.Fprintln(w)
}

// printPaDELCommand prints the java command that would be generated.
func printPaDELCommand(cfg *config.Config) {
	jarPath := cfg.JarPath
	if jarPath == "" {
		jarPath = process.DefaultJarPath()
	}

	// Create a runner to generate the command
	padelConfig := &process.PaDELConfig{
		JavaPath: cfg.JavaPath,
		JarPath:  jarPath,
		HeapSize: cfg.HeapSize,
		Headless: cfg.Headless,
		Options: process.Options{
			MaxRuntime:           cfg.MaxRuntime,
			WaitingJobs:          cfg.WaitingJobs,
			Threads:              cfg.PaDELThreads,
			MaxCompoundsPerFile:  cfg.MaxCompoundsPerFile,
			TwoD:                 cfg.TwoD,
			ThreeD:               cfg.ThreeD,
			ConfigFile:           cfg.PaDELConfigFile,
			Convert3D:            cfg.Convert3D,
			DescriptorTypes:      cfg.DescriptorTypes,
			DetectAromaticity:    cfg.DetectAromaticity,
			Fingerprints:         cfg.Fingerprints,
			Log:                  cfg.PaDELLog,
			RemoveSalt:           cfg.RemoveSalt,
			Retain3D:             cfg.Retain3D,
			RetainOrder:          cfg.RetainOrder,
			StandardizeNitro:     cfg.StandardizeNitro,
			StandardizeTautomers: cfg.StandardizeTautomers,
			TautomerList:         cfg.TautomerList,
			UseFilenameAsMolName: cfg.UseFilenameAsMolName,
		},
	}

	runner := process.NewPaDELRunner(padelConfig)

	job := process.Job{
		InputPath:  filepath.Join(cfg.TempDir, "<uuid>.smi"),
		OutputPath: filepath.Join(cfg.TempDir, "<uuid>.csv"),
	}

	fmt.Println("# PaDEL command that would be run for each molecule:")
	fmt.Println()
	fmt.Println(runner.CommandString(job))
}
