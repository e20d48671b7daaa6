package descriptor

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// =============================================================================
// Tests: Molecule
// =============================================================================

func TestMolecule_Label(t *testing.T) {
	tests := []struct {
		name string
		mol  Molecule
		want string
	}{
		{"named", Molecule{SMILES: "CCO", Name: "ethanol"}, "ethanol"},
		{"unnamed falls back to smiles", Molecule{SMILES: "CCO"}, "CCO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mol.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMolecule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mol     Molecule
		wantErr bool
	}{
		{"valid", Molecule{SMILES: "CC(=O)Oc1ccccc1C(=O)O"}, false},
		{"empty", Molecule{}, true},
		{"whitespace only", Molecule{SMILES: "   "}, true},
		{"embedded space", Molecule{SMILES: "C C"}, true},
		{"embedded tab", Molecule{SMILES: "C\tC"}, true},
		{"embedded newline", Molecule{SMILES: "C\nC"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mol.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Tests: ParseMolecules
// =============================================================================

func TestParseMolecules(t *testing.T) {
	input := `# aspirin and friends
CC(=O)Oc1ccccc1C(=O)O aspirin

c1ccccc1   benzene ring demo
CCO
  # indented comment
  CN1C=NC2=C1C(=O)N(C(=O)N2C)C
`
	mols, err := ParseMolecules(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseMolecules: %v", err)
	}

	want := []Molecule{
		{SMILES: "CC(=O)Oc1ccccc1C(=O)O", Name: "aspirin"},
		{SMILES: "c1ccccc1", Name: "benzene ring demo"},
		{SMILES: "CCO"},
		{SMILES: "CN1C=NC2=C1C(=O)N(C(=O)N2C)C"},
	}
	if !reflect.DeepEqual(mols, want) {
		t.Errorf("mols = %+v, want %+v", mols, want)
	}
}

func TestParseMolecules_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no content", ""},
		{"only comments", "# nothing here\n# still nothing\n"},
		{"only blank lines", "\n\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMolecules(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error for input without molecules")
			}
		})
	}
}

// =============================================================================
// Tests: ReadMolecules
// =============================================================================

func TestReadMolecules_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mols.smi")
	if err := os.WriteFile(path, []byte("CCO ethanol\nCCC\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mols, err := ReadMolecules(path)
	if err != nil {
		t.Fatalf("ReadMolecules: %v", err)
	}
	if len(mols) != 2 {
		t.Fatalf("len = %d, want 2", len(mols))
	}
	if mols[0].Name != "ethanol" {
		t.Errorf("mols[0].Name = %q, want ethanol", mols[0].Name)
	}
}

func TestReadMolecules_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mols.smi.gz")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte("CCO\nCCC\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	mols, err := ReadMolecules(path)
	if err != nil {
		t.Fatalf("ReadMolecules: %v", err)
	}
	if len(mols) != 2 {
		t.Errorf("len = %d, want 2", len(mols))
	}
}

func TestReadMolecules_Missing(t *testing.T) {
	if _, err := ReadMolecules(filepath.Join(t.TempDir(), "nope.smi")); err == nil {
		t.Error("expected error for missing file")
	}
}
