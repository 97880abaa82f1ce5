package engine

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// Insert appends row as a new record: for every column in schema order,
// write row[c] (empty if absent), terminate with a newline, and append an
// Insert entry to the table's log. Returns the new row's number.
func (t *Table) Insert(row map[string]string) (int, error) {
	info, err := t.data.Stat()
	if err != nil {
		return 0, wrapErr(KindIoError, "Table.Insert", err)
	}
	if _, err := t.data.Seek(0, io.SeekEnd); err != nil {
		return 0, wrapErr(KindIoError, "Table.Insert", err)
	}
	for _, name := range t.order {
		v := row[name]
		if name == delColumn && v == "" {
			v = delLive
		}
		if err := t.writeColumn(name, v); err != nil {
			return 0, err
		}
	}
	if _, err := t.data.Write([]byte("\n")); err != nil {
		return 0, wrapErr(KindIoError, "Table.Insert", err)
	}
	if err := t.data.Sync(); err != nil {
		return 0, wrapErr(KindIoError, "Table.Insert", err)
	}
	n := int(info.Size()) / t.rowLength
	if err := t.appendLog("Insert", hashToString(row)); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteRow sets ~del='y' at row n. Fails if the table has no ~del column
// (it always does for user tables), n is out of bounds, or n is already
// tombstoned — the last rejects per the resolved open question while
// clearTombstone (used by rollback) stays unguarded so undo stays idempotent.
func (t *Table) DeleteRow(n int) error {
	if !t.Has(delColumn) {
		return newErr(KindSchemaViolation, "Table.DeleteRow", "table %q has no ~del column", t.name)
	}
	if n < 0 || n >= t.NumberOfRows() {
		return newErr(KindOutOfBounds, "Table.DeleteRow", "row %d out of bounds (%d rows)", n, t.NumberOfRows())
	}
	row, err := t.ReadRow(n)
	if err != nil {
		return err
	}
	if trim(row[delColumn]) == delDead {
		return newErr(KindSchemaViolation, "Table.DeleteRow", "row %d already deleted", n)
	}
	if err := t.setDel(n, delDead); err != nil {
		return err
	}
	return t.appendLog("Delete", strconv.Itoa(n))
}

// clearTombstone writes ~del back to a single space at row n, bypassing the
// already-deleted guard so rollback's undo-delete is always idempotent.
func (t *Table) clearTombstone(n int) error {
	return t.setDel(n, delLive)
}

func (t *Table) setDel(n int, v string) error {
	if err := t.seekColumn(n, delColumn); err != nil {
		return err
	}
	if err := t.writeColumn(delColumn, v); err != nil {
		return err
	}
	return t.data.Sync()
}

// Update overwrites, in row n, every cell named by a key of row that exists
// in the table's schema.
func (t *Table) Update(n int, row map[string]string) error {
	if n < 0 || n >= t.NumberOfRows() {
		return newErr(KindOutOfBounds, "Table.Update", "row %d out of bounds (%d rows)", n, t.NumberOfRows())
	}
	current, err := t.ReadRow(n)
	if err != nil {
		return err
	}
	if trim(current[delColumn]) == delDead {
		return newErr(KindSchemaViolation, "Table.Update", "row %d already deleted", n)
	}
	for name, v := range row {
		if !t.Has(name) {
			continue
		}
		if err := t.seekColumn(n, name); err != nil {
			return err
		}
		if err := t.writeColumn(name, v); err != nil {
			return err
		}
	}
	if err := t.data.Sync(); err != nil {
		return wrapErr(KindIoError, "Table.Update", err)
	}
	return t.appendLog("Update", fmt.Sprintf("%d %s", n, hashToString(row)))
}

func (t *Table) appendLog(kind, details string) error {
	line := fmt.Sprintf("%d\t%s\t%s\n", time.Now().Unix(), kind, details)
	if _, err := t.log.WriteString(line); err != nil {
		return wrapErr(KindIoError, "Table.appendLog", err)
	}
	return t.log.Sync()
}

// hashToString renders a row map as a deterministic, sorted "k=v;k=v" string
// for the audit log — out of scope to specify exactly (the source delegates
// this to an external hash-to-string helper); any stable rendering suffices
// since the log is not consulted for recovery.
func hashToString(row map[string]string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ";"
		}
		out += k + "=" + trim(row[k])
	}
	return out
}
