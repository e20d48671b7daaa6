package descriptor

import "errors"

// Request describes one descriptor invocation. Exactly one molecule
// source must be set: an in-memory SMILES string, or the path of an
// existing molecule file (or directory of molecule files).
type Request struct {
	// SMILES is a single molecule given inline.
	SMILES string

	// InputPath is an existing .smi file or a directory of molecule
	// files, handed to the JVM as-is.
	InputPath string

	// OutputPath is where the descriptor CSV lands. Empty means a
	// scratch file that is removed after parsing.
	OutputPath string
}

// Validate checks that the request names exactly one molecule source.
func (r Request) Validate() error {
	switch {
	case r.SMILES == "" && r.InputPath == "":
		return errors.New("request needs a SMILES string or an input path")
	case r.SMILES != "" && r.InputPath != "":
		return errors.New("request cannot have both a SMILES string and an input path")
	}
	return nil
}
