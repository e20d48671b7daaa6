package descriptor

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ReadFile parses the descriptor CSV at path into a Result. The file
// being absent is a ParseError: the JVM reporting success does not
// guarantee it produced output. A .gz suffix is decompressed.
func ReadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "output file missing", Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &ParseError{Path: path, Reason: "output not gzip", Err: err}
		}
		defer gz.Close()
		r = gz
	}

	res, err := Read(r)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && perr.Path == "" {
			perr.Path = path
		}
		return nil, err
	}
	return res, nil
}

// Read parses descriptor CSV from r. The first record is the header;
// every data row must have exactly as many fields as the header.
func Read(r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ParseError{Reason: "output is empty"}
	}
	if err != nil {
		return nil, &ParseError{Reason: "malformed header", Err: err}
	}
	if len(header) == 0 || (len(header) == 1 && strings.TrimSpace(header[0]) == "") {
		return nil, &ParseError{Reason: "output has no header columns"}
	}

	res := NewResult(header)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{
				Reason: fmt.Sprintf("malformed record after %d rows", res.NumRows()),
				Err:    err,
			}
		}
		if err := res.AppendRow(record); err != nil {
			return nil, &ParseError{Reason: "record width mismatch", Err: err}
		}
	}

	return res, nil
}
