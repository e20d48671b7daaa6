package descriptor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Molecule is one input molecule: the SMILES string and an optional
// display name from the input file.
type Molecule struct {
	SMILES string
	Name   string
}

// Label returns the name to place in the result's Name column: the
// explicit name if the input provided one, otherwise the SMILES
// string itself.
func (m Molecule) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.SMILES
}

// Validate rejects molecules that cannot be written to a .smi file.
func (m Molecule) Validate() error {
	if strings.TrimSpace(m.SMILES) == "" {
		return errors.New("smiles must not be empty")
	}
	if strings.ContainsAny(m.SMILES, " \t\r\n") {
		return fmt.Errorf("smiles %q must not contain whitespace", m.SMILES)
	}
	return nil
}

// ReadMolecules loads a molecule list: one molecule per line, SMILES
// first, optional whitespace-separated name after it. Blank lines and
// `#` comments are skipped. Files ending in .gz are decompressed.
func ReadMolecules(path string) ([]Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open molecule file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gunzip molecule file %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	mols, err := ParseMolecules(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return mols, nil
}

// ParseMolecules reads molecules from r; see ReadMolecules for the format.
func ParseMolecules(r io.Reader) ([]Molecule, error) {
	var mols []Molecule

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		mol := Molecule{SMILES: fields[0]}
		if len(fields) > 1 {
			mol.Name = strings.Join(fields[1:], " ")
		}
		if err := mol.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		mols = append(mols, mol)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read molecules: %w", err)
	}
	if len(mols) == 0 {
		return nil, errors.New("no molecules found")
	}
	return mols, nil
}
