package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultWorkDir is the scratch directory used when none is configured.
const DefaultWorkDir = "padel_temp"

// Workspace hands out per-invocation scratch file pairs under one
// directory and removes them afterwards. UUID basenames keep concurrent
// invocations from colliding.
type Workspace struct {
	dir    string
	keep   bool
	logger *slog.Logger
}

// Scratch is one invocation's file pair. The JVM reads InputPath and
// writes OutputPath, plus ".log" side files when its logging is on.
type Scratch struct {
	ID         string
	InputPath  string
	OutputPath string
}

// NewWorkspace creates (if needed) the scratch directory. keep leaves
// scratch files in place after each invocation for debugging.
func NewWorkspace(dir string, keep bool, logger *slog.Logger) (*Workspace, error) {
	if dir == "" {
		dir = DefaultWorkDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &ConfigurationError{Reason: "scratch directory", Path: dir, Err: err}
	}
	return &Workspace{
		dir:    dir,
		keep:   keep,
		logger: logger,
	}, nil
}

// Dir returns the scratch directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// NewScratch allocates a fresh scratch pair. No files are created yet.
func (w *Workspace) NewScratch() Scratch {
	id := uuid.New().String()
	return Scratch{
		ID:         id,
		InputPath:  filepath.Join(w.dir, id+".smi"),
		OutputPath: filepath.Join(w.dir, id+".csv"),
	}
}

// WriteInput writes the molecule to the scratch .smi file. No trailing
// newline: the jar counts lines, and a trailing blank line would be a
// second (empty) molecule.
func (w *Workspace) WriteInput(s Scratch, smiles string) error {
	if err := os.WriteFile(s.InputPath, []byte(smiles), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.InputPath, err)
	}
	return nil
}

// Remove deletes the scratch pair and any side logs the jar wrote.
// Missing files are fine; anything else is logged and swallowed, since
// cleanup failures must not mask the invocation's own outcome.
func (w *Workspace) Remove(s Scratch) {
	if w.keep {
		w.logger.Debug("keeping_scratch_files",
			"id", s.ID,
			"input", s.InputPath,
			"output", s.OutputPath,
		)
		return
	}

	candidates := []string{
		s.InputPath,
		s.OutputPath,
		s.InputPath + ".log",
		s.OutputPath + ".log",
	}
	for _, path := range candidates {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("scratch_cleanup_failed",
				"path", path,
				"error", err,
			)
		}
	}
}

// Close removes the scratch directory if it is empty. A non-empty
// directory (keep mode, or foreign files) is left alone.
func (w *Workspace) Close() {
	if err := os.Remove(w.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Debug("workspace_dir_not_removed",
			"dir", w.dir,
			"error", err,
		)
	}
}
