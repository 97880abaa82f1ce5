package engine

import (
	"io"
	"os"
	"path/filepath"
)

// Table is a fixed-width on-disk record store: one row per rowLength bytes
// of the .data file, schema described by the .def file, mutations audited
// in the .log file. A Table is owned by exactly one Database for its
// lifetime; db is a non-owning back-reference used to reach the trigger
// meta-tables during row operations.
type Table struct {
	name      string
	db        *Database
	dir       string
	columns   map[string]ColumnDef
	order     []string
	rowLength int

	data *os.File
	log  *os.File
}

func (t *Table) defPath() string   { return filepath.Join(t.dir, t.name+".def") }
func (t *Table) dataPath() string  { return filepath.Join(t.dir, t.name+".data") }
func (t *Table) logPath() string   { return filepath.Join(t.dir, t.name+".log") }
func (t *Table) sharedDir() string { return filepath.Join(t.dir, t.name+".shared") }
func (t *Table) exclusivePath() string {
	return filepath.Join(t.dir, t.name+".exclusive")
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// Columns returns the schema column order, as stored on disk.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether c is a defined column.
func (t *Table) Has(c string) bool {
	_, ok := t.columns[c]
	return ok
}

// RowLength returns 1 + sum(columns[c].Length).
func (t *Table) RowLength() int { return t.rowLength }

// openTable opens an existing table's file handles and parses its schema.
func openTable(db *Database, dir, name string) (*Table, error) {
	t := &Table{name: name, db: db, dir: dir}
	if err := t.loadSchema(); err != nil {
		return nil, err
	}
	if err := t.openHandles(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) loadSchema() error {
	raw, err := os.ReadFile(t.defPath())
	if err != nil {
		return wrapErr(KindIoError, "Table.loadSchema", err)
	}
	order, columns, err := parseDef(raw)
	if err != nil {
		return err
	}
	t.order = order
	t.columns = columns
	t.rowLength = rowLengthOf(order, columns)
	return nil
}

func (t *Table) openHandles() error {
	data, err := os.OpenFile(t.dataPath(), os.O_RDWR, 0o644)
	if err != nil {
		return wrapErr(KindIoError, "Table.openHandles", err)
	}
	logf, err := os.OpenFile(t.logPath(), os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		data.Close()
		return wrapErr(KindIoError, "Table.openHandles", err)
	}
	t.data = data
	t.log = logf
	return nil
}

// Close releases the table's file handles.
func (t *Table) Close() error {
	var firstErr error
	if t.data != nil {
		if err := t.data.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if t.log != nil {
		if err := t.log.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// seekRow positions the data file cursor at the start of row n.
func (t *Table) seekRow(n int) error {
	_, err := t.data.Seek(int64(n)*int64(t.rowLength), io.SeekStart)
	if err != nil {
		return wrapErr(KindIoError, "Table.seekRow", err)
	}
	return nil
}

// seekColumn positions the data file cursor at row n, column c.
func (t *Table) seekColumn(n int, c string) error {
	col, ok := t.columns[c]
	if !ok {
		return newErr(KindSchemaViolation, "Table.seekColumn", "unknown column %q", c)
	}
	_, err := t.data.Seek(int64(n)*int64(t.rowLength)+int64(col.Offset), io.SeekStart)
	if err != nil {
		return wrapErr(KindIoError, "Table.seekColumn", err)
	}
	return nil
}

// ReadRow returns the raw (untrimmed, fixed-width) cell for every column
// of row n.
func (t *Table) ReadRow(n int) (map[string]string, error) {
	if n < 0 || n >= t.NumberOfRows() {
		return nil, newErr(KindOutOfBounds, "Table.ReadRow", "row %d out of bounds (%d rows)", n, t.NumberOfRows())
	}
	if err := t.seekRow(n); err != nil {
		return nil, err
	}
	buf := make([]byte, t.rowLength)
	if _, err := io.ReadFull(t.data, buf); err != nil {
		return nil, wrapErr(KindIoError, "Table.ReadRow", err)
	}
	row := make(map[string]string, len(t.order))
	for _, name := range t.order {
		col := t.columns[name]
		row[name] = string(buf[col.Offset : col.Offset+col.Length])
	}
	return row, nil
}

// writeColumn pads/truncates v to the column's width and writes it at the
// current cursor position.
func (t *Table) writeColumn(c string, v string) error {
	col, ok := t.columns[c]
	if !ok {
		return newErr(KindSchemaViolation, "Table.writeColumn", "unknown column %q", c)
	}
	buf := fit(v, col.Length)
	if _, err := t.data.Write(buf); err != nil {
		return wrapErr(KindIoError, "Table.writeColumn", err)
	}
	return nil
}

// fit pads v with trailing spaces or truncates it to exactly n bytes.
func fit(v string, n int) []byte {
	buf := make([]byte, n)
	copy(buf, v)
	for i := len(v); i < n; i++ {
		buf[i] = ' '
	}
	return buf
}

// NumberOfRows returns file_size(.data) / rowLength, including tombstoned
// rows. Callers filter on ~del when a semantic (live) row count is wanted.
func (t *Table) NumberOfRows() int {
	info, err := t.data.Stat()
	if err != nil {
		return 0
	}
	return int(info.Size()) / t.rowLength
}
