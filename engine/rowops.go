package engine

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// triggerView builds a fresh RA view over the named meta-table, filtered
// to rows naming table t.
func triggerView(db *Database, metaTable string, t *Table) (*RA, error) {
	meta, err := db.Table(metaTable)
	if err != nil {
		return nil, err
	}
	v := NewRA()
	if err := v.PrepareTable(meta); err != nil {
		return nil, err
	}
	if err := v.Select("table", Equals, t.Name()); err != nil {
		return nil, err
	}
	return v, nil
}

// InsertRow runs the full insert pipeline: before-triggers, physical
// insert, after-triggers. Meta-tables (~before/~after) skip triggering on
// themselves since no triggers are ever registered against them.
func InsertRow(db *Database, t *Table, row map[string]string) (int, error) {
	if err := runTriggers(db, t, OpInsert, row, nil, BeforeTriggers); err != nil {
		return 0, err
	}
	n, err := t.Insert(row)
	if err != nil {
		return 0, err
	}
	if err := runTriggers(db, t, OpInsert, row, nil, AfterTriggers); err != nil {
		return n, err
	}
	return n, nil
}

// UpdateRow runs the full update pipeline. row1 is read before the write;
// row2 is the caller-supplied patch.
func UpdateRow(db *Database, t *Table, n int, row2 map[string]string) error {
	row1, err := t.ReadRow(n)
	if err != nil {
		return err
	}
	if err := runTriggers(db, t, OpUpdate, row1, row2, BeforeTriggers); err != nil {
		return err
	}
	if err := t.Update(n, row2); err != nil {
		return err
	}
	return runTriggers(db, t, OpUpdate, row1, row2, AfterTriggers)
}

// DeleteRow runs the full delete pipeline.
func DeleteRow(db *Database, t *Table, n int) error {
	row1, err := t.ReadRow(n)
	if err != nil {
		return err
	}
	if err := runTriggers(db, t, OpDelete, row1, nil, BeforeTriggers); err != nil {
		return err
	}
	if err := t.DeleteRow(n); err != nil {
		return err
	}
	return runTriggers(db, t, OpDelete, row1, nil, AfterTriggers)
}

func runTriggers(db *Database, t *Table, op string, row1, row2 map[string]string, metaTable string) error {
	if t.Name() == BeforeTriggers || t.Name() == AfterTriggers {
		return nil
	}
	view, err := triggerView(db, metaTable, t)
	if err != nil {
		return err
	}
	return ExecuteTrigger(db, t, view, op, row1, row2)
}
