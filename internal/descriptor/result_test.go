package descriptor

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"
)

// =============================================================================
// Tests: table operations
// =============================================================================

func TestResult_ColumnsCopy(t *testing.T) {
	res := NewResult([]string{"Name", "ALogP"})

	cols := res.Columns()
	cols[0] = "mutated"

	if got := res.Columns()[0]; got != "Name" {
		t.Errorf("Columns()[0] = %q after external mutation, want Name", got)
	}
}

func TestResult_ValueSetValue(t *testing.T) {
	res := NewResult([]string{"Name", "ALogP"})
	if err := res.AppendRow([]string{"AUTOGEN_molecule_1", "1.2"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		row     int
		column  string
		wantVal string
		wantOK  bool
	}{
		{"existing cell", 0, "Name", "AUTOGEN_molecule_1", true},
		{"second column", 0, "ALogP", "1.2", true},
		{"unknown column", 0, "nope", "", false},
		{"row out of range", 1, "Name", "", false},
		{"negative row", -1, "Name", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := res.Value(tt.row, tt.column)
			if got != tt.wantVal || ok != tt.wantOK {
				t.Errorf("Value(%d, %q) = (%q, %v), want (%q, %v)",
					tt.row, tt.column, got, ok, tt.wantVal, tt.wantOK)
			}
		})
	}

	if !res.SetValue(0, "Name", "CCO") {
		t.Error("SetValue on existing cell = false")
	}
	if v, _ := res.Value(0, "Name"); v != "CCO" {
		t.Errorf("Name after SetValue = %q, want CCO", v)
	}
	if res.SetValue(0, "nope", "x") {
		t.Error("SetValue on unknown column = true")
	}
	if res.SetValue(5, "Name", "x") {
		t.Error("SetValue out of range = true")
	}
}

func TestResult_AppendRow_WidthMismatch(t *testing.T) {
	res := NewResult([]string{"Name", "ALogP", "AMR"})

	if err := res.AppendRow([]string{"m", "1"}); err == nil {
		t.Error("expected error for short row")
	}
	if err := res.AppendRow([]string{"m", "1", "2", "3"}); err == nil {
		t.Error("expected error for long row")
	}
	if res.NumRows() != 0 {
		t.Errorf("NumRows = %d after rejected appends, want 0", res.NumRows())
	}
}

func TestResult_AppendRow_CopiesInput(t *testing.T) {
	res := NewResult([]string{"Name"})
	row := []string{"orig"}
	if err := res.AppendRow(row); err != nil {
		t.Fatal(err)
	}

	row[0] = "mutated"
	if v, _ := res.Value(0, "Name"); v != "orig" {
		t.Errorf("stored value = %q after caller mutation, want orig", v)
	}
}

func TestResult_AppendFrom(t *testing.T) {
	a := NewResult([]string{"Name", "ALogP"})
	a.AppendRow([]string{"m1", "1.0"})

	b := NewResult([]string{"Name", "ALogP"})
	b.AppendRow([]string{"m2", "2.0"})
	b.AppendRow([]string{"m3", "3.0"})

	if err := a.AppendFrom(b); err != nil {
		t.Fatalf("AppendFrom: %v", err)
	}
	if a.NumRows() != 3 {
		t.Errorf("NumRows = %d, want 3", a.NumRows())
	}
	if v, _ := a.Value(2, "Name"); v != "m3" {
		t.Errorf("row 2 Name = %q, want m3", v)
	}
}

func TestResult_AppendFrom_HeaderMismatch(t *testing.T) {
	a := NewResult([]string{"Name", "ALogP"})

	if err := a.AppendFrom(NewResult([]string{"Name"})); err == nil {
		t.Error("expected error for different column count")
	}
	if err := a.AppendFrom(NewResult([]string{"ALogP", "Name"})); err == nil {
		t.Error("expected error for reordered columns")
	}
}

// =============================================================================
// Tests: writing
// =============================================================================

func TestResult_WriteCSV(t *testing.T) {
	res := NewResult([]string{"Name", "ALogP", "note"})
	res.AppendRow([]string{"CCO", "1.2", ""})
	res.AppendRow([]string{"mol,with,commas", "-0.5", "Infinity"})

	var buf bytes.Buffer
	if err := res.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "Name,ALogP,note\n" +
		"CCO,1.2,\n" +
		"\"mol,with,commas\",-0.5,Infinity\n"
	if buf.String() != want {
		t.Errorf("WriteCSV output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestResult_WriteFile_RoundTrip(t *testing.T) {
	res := NewResult([]string{"Name", "ALogP"})
	res.AppendRow([]string{"CCO", "1.2"})

	for _, name := range []string{"out.csv", "out.csv.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := res.WriteFile(path); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			back, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if !reflect.DeepEqual(back.Columns(), res.Columns()) {
				t.Errorf("columns = %v, want %v", back.Columns(), res.Columns())
			}
			if v, _ := back.Value(0, "ALogP"); v != "1.2" {
				t.Errorf("ALogP = %q, want 1.2", v)
			}
		})
	}
}
