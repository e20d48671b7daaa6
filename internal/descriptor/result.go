package descriptor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Result is a parsed descriptor table: one row per molecule, one column
// per descriptor name. Column order is preserved exactly as the output
// file's header gave it. Values stay strings; the jar decides numeric
// formatting and some descriptors legitimately produce "" or "Infinity".
type Result struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// NewResult creates an empty table with the given header.
func NewResult(columns []string) *Result {
	cols := make([]string, len(columns))
	copy(cols, columns)

	index := make(map[string]int, len(cols))
	for i, name := range cols {
		index[name] = i
	}

	return &Result{
		columns: cols,
		index:   index,
	}
}

// Columns returns a copy of the header, in output order.
func (r *Result) Columns() []string {
	cols := make([]string, len(r.columns))
	copy(cols, r.columns)
	return cols
}

// NumColumns returns the number of descriptor columns (including Name).
func (r *Result) NumColumns() int {
	return len(r.columns)
}

// NumRows returns the number of data rows.
func (r *Result) NumRows() int {
	return len(r.rows)
}

// HasColumn reports whether the header contains the named column.
func (r *Result) HasColumn(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Row returns a copy of row i.
func (r *Result) Row(i int) []string {
	row := make([]string, len(r.rows[i]))
	copy(row, r.rows[i])
	return row
}

// Value returns the cell at (row, column). The second return is false
// when the column does not exist or the row is out of range.
func (r *Result) Value(row int, column string) (string, bool) {
	col, ok := r.index[column]
	if !ok || row < 0 || row >= len(r.rows) {
		return "", false
	}
	return r.rows[row][col], true
}

// SetValue overwrites the cell at (row, column). Returns false when the
// column does not exist or the row is out of range.
func (r *Result) SetValue(row int, column, value string) bool {
	col, ok := r.index[column]
	if !ok || row < 0 || row >= len(r.rows) {
		return false
	}
	r.rows[row][col] = value
	return true
}

// AppendRow adds a data row. The row length must match the header.
func (r *Result) AppendRow(values []string) error {
	if len(values) != len(r.columns) {
		return fmt.Errorf("row has %d fields, header has %d", len(values), len(r.columns))
	}
	row := make([]string, len(values))
	copy(row, values)
	r.rows = append(r.rows, row)
	return nil
}

// AppendFrom appends all rows of other. The headers must be identical,
// which holds for outputs of the same jar with the same options.
func (r *Result) AppendFrom(other *Result) error {
	if len(other.columns) != len(r.columns) {
		return fmt.Errorf("cannot merge: %d columns vs %d", len(other.columns), len(r.columns))
	}
	for i, name := range r.columns {
		if other.columns[i] != name {
			return fmt.Errorf("cannot merge: column %d is %q vs %q", i, other.columns[i], name)
		}
	}
	for _, row := range other.rows {
		if err := r.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the table (header first) to w.
func (r *Result) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range r.rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path as CSV. A .gz suffix compresses
// the output; "-" writes to stdout.
func (r *Result) WriteFile(path string) error {
	if path == "-" {
		return r.WriteCSV(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		if err := r.WriteCSV(gz); err != nil {
			gz.Close()
			f.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("close gzip: %w", err)
		}
		return f.Close()
	}

	if err := r.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
