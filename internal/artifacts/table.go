package artifacts

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header plus string rows, the shape of every artifact file.
// Rows always have len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of name in the header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumns reports whether every name is present in the header.
func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if t.Column(n) < 0 {
			return false
		}
	}
	return true
}

// Values returns the cells of column name, one per row.
func (t *Table) Values(name string) []string {
	idx := t.Column(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// ReadTable loads a comma-delimited UTF-8 file with a header row. An empty
// file yields an empty table. Errors for missing files wrap fs.ErrNotExist.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := decodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

func decodeTable(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: records[0], Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		row := make([]string, len(t.Header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteTable writes t to path. The content goes to a temporary file in the
// same directory first and is renamed into place once fully flushed, so a
// crash never leaves a truncated artifact under the final name.
func WriteTable(path string, t *Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	buffered := bufio.NewWriter(tmp)
	w := csv.NewWriter(buffered)
	if len(t.Header) > 0 {
		if err := w.Write(t.Header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("promote %s: %w", path, err)
	}
	cleanup = false
	return nil
}

// Builder accumulates rows whose columns may differ, keeping the union of
// columns in first-seen order.
type Builder struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// NewBuilder returns a Builder whose header starts with columns.
func NewBuilder(columns ...string) *Builder {
	b := &Builder{index: make(map[string]int)}
	for _, c := range columns {
		b.column(c)
	}
	return b
}

func (b *Builder) column(name string) int {
	if idx, ok := b.index[name]; ok {
		return idx
	}
	b.index[name] = len(b.header)
	b.header = append(b.header, name)
	return len(b.header) - 1
}

// Add appends one row given as parallel column and value slices.
func (b *Builder) Add(columns, values []string) {
	row := make([]string, len(b.header), len(b.header)+len(columns))
	for i, c := range columns {
		idx := b.column(c)
		for len(row) <= idx {
			row = append(row, "")
		}
		row[idx] = values[i]
	}
	b.rows = append(b.rows, row)
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int {
	return len(b.rows)
}

// Table returns the accumulated rows padded to the final header width.
func (b *Builder) Table() *Table {
	t := &Table{Header: append([]string(nil), b.header...), Rows: make([][]string, len(b.rows))}
	for i, row := range b.rows {
		padded := make([]string, len(t.Header))
		copy(padded, row)
		t.Rows[i] = padded
	}
	return t
}
