package engine

import "strings"

// RegisterPK inserts the two ~before rows that make column (table, column)
// a primary key: insert and update both fire the pk trigger.
func RegisterPK(db *Database, table, column string) error {
	before, err := db.Table(BeforeTriggers)
	if err != nil {
		return err
	}
	for _, op := range []string{OpInsert, OpUpdate} {
		if _, err := before.Insert(metaRow(table, column, op, "pk", "")); err != nil {
			return err
		}
	}
	return nil
}

// RemovePK deletes exactly the rows RegisterPK inserted, matched on
// (table, column, function) — the broader of the two source variants,
// chosen per the resolved open question.
func RemovePK(db *Database, table, column string) error {
	return removeMetaRows(db, table, column, "pk")
}

// RegisterFK registers a foreign key from (childTable, childColumn) to
// (parentTable, parentColumn): insert/update on the child check fk, and
// update/delete on the parent are restricted while children reference it.
func RegisterFK(db *Database, childTable, childColumn, parentTable, parentColumn string) error {
	before, err := db.Table(BeforeTriggers)
	if err != nil {
		return err
	}
	refParams := parentTable + ";" + parentColumn
	refChild := childTable + ";" + childColumn

	rows := []map[string]string{
		metaRow(childTable, childColumn, OpInsert, "fk", refParams),
		metaRow(childTable, childColumn, OpUpdate, "fk", refParams),
		metaRow(parentTable, parentColumn, OpUpdate, "update_restricted", refChild),
		metaRow(parentTable, parentColumn, OpDelete, "delete_restricted", refChild),
	}
	for _, row := range rows {
		if _, err := before.Insert(row); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFK deletes exactly the four rows RegisterFK inserted.
func RemoveFK(db *Database, childTable, childColumn, parentTable, parentColumn string) error {
	if err := removeMetaRowsOp(db, childTable, childColumn, "fk", OpInsert); err != nil {
		return err
	}
	if err := removeMetaRowsOp(db, childTable, childColumn, "fk", OpUpdate); err != nil {
		return err
	}
	if err := removeMetaRowsOp(db, parentTable, parentColumn, "update_restricted", OpUpdate); err != nil {
		return err
	}
	return removeMetaRowsOp(db, parentTable, parentColumn, "delete_restricted", OpDelete)
}

func metaRow(table, column, op, fn, params string) map[string]string {
	return map[string]string{
		"table":      table,
		"column":     column,
		"operation":  op,
		"function":   fn,
		"parameters": params,
	}
}

func removeMetaRows(db *Database, table, column, function string) error {
	before, err := db.Table(BeforeTriggers)
	if err != nil {
		return err
	}
	return deleteMatching(before, func(row map[string]string) bool {
		return strings.TrimSpace(row["table"]) == table &&
			strings.TrimSpace(row["column"]) == column &&
			strings.TrimSpace(row["function"]) == function
	})
}

func removeMetaRowsOp(db *Database, table, column, function, op string) error {
	before, err := db.Table(BeforeTriggers)
	if err != nil {
		return err
	}
	return deleteMatching(before, func(row map[string]string) bool {
		return strings.TrimSpace(row["table"]) == table &&
			strings.TrimSpace(row["column"]) == column &&
			strings.TrimSpace(row["function"]) == function &&
			strings.TrimSpace(row["operation"]) == op
	})
}

func deleteMatching(t *Table, match func(map[string]string) bool) error {
	n := t.NumberOfRows()
	for i := 0; i < n; i++ {
		row, err := t.ReadRow(i)
		if err != nil {
			return err
		}
		if trim(row[delColumn]) == delDead {
			continue
		}
		if match(row) {
			if err := t.DeleteRow(i); err != nil {
				return err
			}
		}
	}
	return nil
}
