// Package dataset holds the in-memory CSV table the splitter works on.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Table errors.
var (
	ErrNoHeader      = errors.New("table has no header row")
	ErrNoRows        = errors.New("table has no data rows")
	ErrColumnMissing = errors.New("column not found")
	ErrNotNumeric    = errors.New("value is not numeric")
)

// Table is a header plus rows of raw cell text. Cells are not converted so a
// table written back out keeps the source formatting.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read parses CSV from r. The first record is the header; every row must
// have the same number of fields.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}

	return &Table{Header: header, Rows: records}, nil
}

// ReadFile loads the CSV file at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name in the header.
func (t *Table) ColumnIndex(name string) (int, error) {
	for i, h := range t.Header {
		if h == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrColumnMissing, name)
}

// Float64Column parses every cell of column name as a float64. Empty cells,
// NaN, and non-numeric text are errors.
func (t *Table) Float64Column(name string) ([]float64, error) {
	idx, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		cell := strings.TrimSpace(row[idx])
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: column %q row %d: %q", ErrNotNumeric, name, i+1, row[idx])
		}
		values[i] = v
	}
	return values, nil
}

// Select returns a table holding the rows at indices, in the order given.
// Rows are shared with t, not copied.
func (t *Table) Select(indices []int) *Table {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = t.Rows[idx]
	}
	return &Table{Header: t.Header, Rows: rows}
}

// Write encodes the header and rows as CSV. No index column is added.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFile writes the table to path, creating parent directories.
func (t *Table) WriteFile(path string) (err error) {
	if mkErr := os.MkdirAll(filepath.Dir(path), 0750); mkErr != nil {
		return fmt.Errorf("failed to create directory: %w", mkErr)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	return t.Write(f)
}
