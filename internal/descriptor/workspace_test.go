package descriptor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Tests: Workspace
// =============================================================================

func TestNewWorkspace_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "padel_temp")

	ws, err := NewWorkspace(dir, false, testLogger())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat workspace dir: %v", err)
	}
	if !info.IsDir() {
		t.Error("workspace path is not a directory")
	}
	if ws.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", ws.Dir(), dir)
	}
}

func TestNewWorkspace_UnwritableParent(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	parent := t.TempDir()
	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(parent, 0o755) })

	_, err := NewWorkspace(filepath.Join(parent, "padel_temp"), false, testLogger())
	if err == nil {
		t.Fatal("expected error for unwritable parent")
	}
	cfgErr, ok := err.(*ConfigurationError)
	if !ok {
		t.Fatalf("err = %T, want *ConfigurationError", err)
	}
	if cfgErr.Reason != "scratch directory" {
		t.Errorf("Reason = %q", cfgErr.Reason)
	}
}

func TestWorkspace_NewScratch_Unique(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), false, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := ws.NewScratch()
		if seen[s.ID] {
			t.Fatalf("duplicate scratch id %s", s.ID)
		}
		seen[s.ID] = true

		if !strings.HasSuffix(s.InputPath, s.ID+".smi") {
			t.Errorf("InputPath = %q, want <dir>/%s.smi", s.InputPath, s.ID)
		}
		if !strings.HasSuffix(s.OutputPath, s.ID+".csv") {
			t.Errorf("OutputPath = %q, want <dir>/%s.csv", s.OutputPath, s.ID)
		}
	}
}

func TestWorkspace_WriteInput_NoTrailingNewline(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), false, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	s := ws.NewScratch()
	if err := ws.WriteInput(s, "CCO"); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}

	data, err := os.ReadFile(s.InputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "CCO" {
		t.Errorf("input file = %q, want %q exactly", data, "CCO")
	}
}

func TestWorkspace_Remove(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspace(dir, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	s := ws.NewScratch()
	// Simulate a full run: input, output, and both jar-side logs
	for _, p := range []string{s.InputPath, s.OutputPath, s.InputPath + ".log", s.OutputPath + ".log"} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ws.Remove(s)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("files left after Remove: %v", names)
	}
}

func TestWorkspace_Remove_MissingFilesFine(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), false, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	// Nothing was ever written; Remove must not panic or log-spam
	ws.Remove(ws.NewScratch())
}

func TestWorkspace_Remove_KeepMode(t *testing.T) {
	dir := t.TempDir()
	ws, err := NewWorkspace(dir, true, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	s := ws.NewScratch()
	if err := ws.WriteInput(s, "CCO"); err != nil {
		t.Fatal(err)
	}

	ws.Remove(s)

	if _, err := os.Stat(s.InputPath); err != nil {
		t.Errorf("keep mode removed the input: %v", err)
	}
}

func TestWorkspace_Close(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "padel_temp")
	ws, err := NewWorkspace(dir, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	ws.Close()

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("empty workspace dir should be removed, stat err = %v", err)
	}
}

func TestWorkspace_Close_NonEmptyLeftAlone(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "padel_temp")
	ws, err := NewWorkspace(dir, false, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leftover.csv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("non-empty workspace dir should survive Close: %v", err)
	}
}
