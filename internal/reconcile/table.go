// Package reconcile measures agreement between extracted treatment lines and
// a curated reference dataset.
//
// Comparison runs at two levels. CompareLines checks that both sides found
// the same number of treatment lines per patient. CompareFields then aligns
// the lines of agreeing patients by line number and compares each cell,
// tolerating small date differences and drug-list reordering.
package reconcile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hemapex/hemapex/internal/schema"
)

// Row is one table row keyed by column name.
type Row map[string]string

// Get returns the trimmed value of column, or "" when absent.
func (r Row) Get(column string) string {
	return clean(r[column])
}

// Table is an in-memory CSV table. Rows keep file order.
type Table struct {
	Columns []string
	Rows    []Row
}

// ReadOptions configures CSV parsing.
type ReadOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// IDColumn is the patient identifier column. Headers matching it
	// case-insensitively are renamed to it. Empty means "rghc".
	IDColumn string
}

func (o ReadOptions) idColumn() string {
	if o.IDColumn == "" {
		return schema.ColumnPatientID
	}
	return o.IDColumn
}

// ReadTable parses a CSV document with a header row.
func ReadTable(r io.Reader, opts ReadOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty table: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idColumn := opts.idColumn()
	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if strings.EqualFold(h, idColumn) {
			h = idColumn
		}
		columns[i] = h
	}

	t := &Table{Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.Rows)+1, err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// LoadTable reads a CSV file.
func LoadTable(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// GroupBy splits rows by the value of column. Keys are returned in order of
// first appearance; rows with a blank key are dropped.
func (t *Table) GroupBy(column string) ([]string, map[string][]Row) {
	var keys []string
	groups := make(map[string][]Row)
	for _, row := range t.Rows {
		key := row.Get(column)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], row)
	}
	return keys, groups
}

// Restrict returns a table holding only rows whose column value is in keep.
func (t *Table) Restrict(column string, keep map[string]bool) *Table {
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if keep[row.Get(column)] {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// RenameColumn renames column from to to in the header and every row. It is
// a no-op when from is absent or equal to to.
func (t *Table) RenameColumn(from, to string) {
	if from == to || !t.HasColumn(from) {
		return
	}
	for i, c := range t.Columns {
		if c == from {
			t.Columns[i] = to
		}
	}
	for _, row := range t.Rows {
		if v, ok := row[from]; ok {
			row[to] = v
			delete(row, from)
		}
	}
}

// Write encodes the table as CSV with a header row.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row[col]
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// clean trims v and maps the placeholders dataframe exports use for missing
// cells to "".
func clean(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "nan", "none", "null", "nat":
		return ""
	}
	return v
}
