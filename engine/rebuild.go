package engine

import "os"

// AddColumn adds a new fixed-width column. If the table is currently
// empty, the schema is updated in place (append "c:len\n" to .def);
// otherwise every row must be physically rebuilt to make room.
func (t *Table) AddColumn(c string, length int) error {
	if t.Has(c) {
		return newErr(KindSchemaViolation, "Table.AddColumn", "column %q already exists", c)
	}
	if len(c) > maxNameLength {
		return newErr(KindSchemaViolation, "Table.AddColumn", "column name %q exceeds %d bytes", c, maxNameLength)
	}

	if t.NumberOfRows() == 0 {
		f, err := os.OpenFile(t.defPath(), os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return wrapErr(KindIoError, "Table.AddColumn", err)
		}
		if _, err := f.WriteString(formatDefLine(c, length)); err != nil {
			f.Close()
			return wrapErr(KindIoError, "Table.AddColumn", err)
		}
		if err := f.Close(); err != nil {
			return wrapErr(KindIoError, "Table.AddColumn", err)
		}
		t.order = append(t.order, c)
		t.columns[c] = ColumnDef{Name: c, Length: length, Offset: t.rowLength - 1}
		t.rowLength += length
		return t.appendLog("AddColumn", c)
	}

	if err := t.rebuildDataFile(c, length, ""); err != nil {
		return err
	}
	return t.appendLog("AddColumn", c)
}

// DeleteColumn removes a column from the schema. Forbidden for the
// reserved ~del column. Rebuilds the data file if any rows exist.
func (t *Table) DeleteColumn(c string) error {
	if c == delColumn {
		return newErr(KindSchemaViolation, "Table.DeleteColumn", "column %q is reserved and cannot be deleted", delColumn)
	}
	if !t.Has(c) {
		return newErr(KindSchemaViolation, "Table.DeleteColumn", "column %q does not exist", c)
	}

	if t.NumberOfRows() == 0 {
		newOrder := make([]string, 0, len(t.order)-1)
		for _, name := range t.order {
			if name != c {
				newOrder = append(newOrder, name)
			}
		}
		newColumns := make(map[string]ColumnDef, len(newOrder))
		offset := 0
		for _, name := range newOrder {
			length := t.columns[name].Length
			newColumns[name] = ColumnDef{Name: name, Length: length, Offset: offset}
			offset += length
		}
		if err := os.WriteFile(t.defPath(), []byte(renderDef(newOrder, newColumns)), 0o644); err != nil {
			return wrapErr(KindIoError, "Table.DeleteColumn", err)
		}
		t.order = newOrder
		t.columns = newColumns
		t.rowLength = rowLengthOf(newOrder, newColumns)
		return t.appendLog("DeleteColumn", c)
	}

	if err := t.rebuildDataFile("", 0, c); err != nil {
		return err
	}
	return t.appendLog("DeleteColumn", c)
}

func renderDef(order []string, columns map[string]ColumnDef) string {
	out := ""
	for _, name := range order {
		out += formatDefLine(name, columns[name].Length)
	}
	return out
}

// rebuildDataFile implements the rebuild protocol: create a throwaway
// sibling table whose schema is this table's current columns (minus
// removeCol, if given, plus addCol/addLen, if given); re-insert every live
// row, read through THIS table's still-intact schema and handles (the
// physical .data file has not moved yet); delete the original; rename the
// temp table back to the original name; and adopt its (now correct)
// in-memory state and file handles.
func (t *Table) rebuildDataFile(addCol string, addLen int, removeCol string) error {
	tmpName := tempTableName()
	tmp, err := t.db.NewTable(tmpName)
	if err != nil {
		return err
	}

	tmp.order = nil
	tmp.columns = map[string]ColumnDef{}
	tmp.rowLength = 1
	defLines := ""
	for _, name := range t.order {
		if name == removeCol {
			continue
		}
		length := t.columns[name].Length
		defLines += formatDefLine(name, length)
		tmp.order = append(tmp.order, name)
		tmp.columns[name] = ColumnDef{Name: name, Length: length, Offset: tmp.rowLength - 1}
		tmp.rowLength += length
	}
	if addCol != "" {
		defLines += formatDefLine(addCol, addLen)
		tmp.order = append(tmp.order, addCol)
		tmp.columns[addCol] = ColumnDef{Name: addCol, Length: addLen, Offset: tmp.rowLength - 1}
		tmp.rowLength += addLen
	}
	if err := os.WriteFile(tmp.defPath(), []byte(defLines), 0o644); err != nil {
		return wrapErr(KindIoError, "Table.rebuildDataFile", err)
	}

	n := t.NumberOfRows()
	for i := 0; i < n; i++ {
		row, err := t.ReadRow(i)
		if err != nil {
			return err
		}
		if trim(row[delColumn]) == delDead {
			continue
		}
		if addCol != "" {
			row[addCol] = ""
		}
		if _, err := tmp.Insert(row); err != nil {
			return err
		}
	}

	origName := t.name
	if err := t.db.DeleteTable(origName); err != nil {
		return err
	}
	if err := t.db.RenameTable(tmpName, origName); err != nil {
		return err
	}

	renamed, err := t.db.Table(origName)
	if err != nil {
		return err
	}
	*t = *renamed
	t.db.tables[origName] = t
	return nil
}
