package engine

// TriggerParams is the argument bundle passed to a registered trigger
// function when it fires.
type TriggerParams struct {
	DB     *Database
	Table  string
	Column string
	Row1   map[string]string
	Row2   map[string]string
	Args   []string
}

// TriggerFunc validates (or rejects) a pending mutation.
type TriggerFunc func(p TriggerParams) error

// triggerRegistry is the process-wide map of trigger keys to functions,
// initialised once and extended by RegisterTrigger for user-defined keys.
var triggerRegistry = map[string]TriggerFunc{
	"pk":                pkTrigger,
	"fk":                fkTrigger,
	"fk_strict":         fkStrictTrigger,
	"update_restricted": updateRestrictedTrigger,
	"delete_restricted": deleteRestrictedTrigger,
}

// RegisterTrigger adds or replaces a trigger function under key.
func RegisterTrigger(key string, fn TriggerFunc) {
	triggerRegistry[key] = fn
}

// ExecuteTrigger fires every trigger registered against T's mutated
// columns for the given operation. ra must already be filtered to the
// table under mutation (select('table', Equals, T.Name())). For each
// (column, value) in row1, a copy of ra is further filtered to that column
// and operation; every surviving meta-row's function is invoked.
func ExecuteTrigger(db *Database, t *Table, ra *RA, op string, row1, row2 map[string]string) error {
	for column := range row1 {
		view := ra.Copy()
		if err := view.Select("column", Equals, column); err != nil {
			return err
		}
		if err := view.Select("operation", Equals, op); err != nil {
			return err
		}
		n := view.NumberOfRows()
		for i := 0; i < n; i++ {
			r, err := view.ReadRow(i)
			if err != nil {
				return err
			}
			fn, ok := triggerRegistry[trim(r["function"])]
			if !ok {
				return newErr(KindConstraintViolation, "ExecuteTrigger", "unregistered trigger function %q", trim(r["function"]))
			}
			params := TriggerParams{
				DB:     db,
				Table:  t.Name(),
				Column: column,
				Row1:   row1,
				Row2:   row2,
				Args:   splitParams(trim(r["parameters"])),
			}
			if err := fn(params); err != nil {
				return err
			}
		}
	}
	return nil
}

func pkTrigger(p TriggerParams) error {
	table, err := p.DB.Table(p.Table)
	if err != nil {
		return err
	}
	value := p.Row1[p.Column]
	if p.Row2 != nil {
		value = p.Row2[p.Column]
	}
	value = trim(value)

	n := table.NumberOfRows()
	for i := 0; i < n; i++ {
		row, err := table.ReadRow(i)
		if err != nil {
			return err
		}
		if trim(row[delColumn]) == delDead {
			continue
		}
		if trim(row[p.Column]) == value {
			return newErr(KindConstraintViolation, "pk", "duplicate value %q for %s.%s", value, p.Table, p.Column)
		}
	}
	return nil
}

// fkTrigger checks the new value exists in the parent table. Per the
// preserved source bug, on update it reads Row1 (the OLD value), not Row2.
func fkTrigger(p TriggerParams) error {
	if len(p.Args) < 2 {
		return newErr(KindConstraintViolation, "fk", "malformed fk trigger parameters")
	}
	parentTable, parentColumn := p.Args[0], p.Args[1]
	return fkCheck(p, parentTable, parentColumn, p.Row1[p.Column])
}

// fkStrictTrigger is the intended fix: reads Row2 (the new value) on
// update, same as on insert.
func fkStrictTrigger(p TriggerParams) error {
	if len(p.Args) < 2 {
		return newErr(KindConstraintViolation, "fk_strict", "malformed fk trigger parameters")
	}
	parentTable, parentColumn := p.Args[0], p.Args[1]
	value := p.Row1[p.Column]
	if p.Row2 != nil {
		value = p.Row2[p.Column]
	}
	return fkCheck(p, parentTable, parentColumn, value)
}

func fkCheck(p TriggerParams, parentTable, parentColumn, value string) error {
	value = trim(value)
	parent, err := p.DB.Table(parentTable)
	if err != nil {
		return err
	}
	n := parent.NumberOfRows()
	for i := 0; i < n; i++ {
		row, err := parent.ReadRow(i)
		if err != nil {
			return err
		}
		if trim(row[delColumn]) == delDead {
			continue
		}
		if trim(row[parentColumn]) == value {
			return nil
		}
	}
	return newErr(KindConstraintViolation, "fk", "no matching row in %s.%s for value %q", parentTable, parentColumn, value)
}

func updateRestrictedTrigger(p TriggerParams) error {
	return restrictedCheck(p, "update_restricted")
}

func deleteRestrictedTrigger(p TriggerParams) error {
	return restrictedCheck(p, "delete_restricted")
}

func restrictedCheck(p TriggerParams, op string) error {
	if len(p.Args) < 2 {
		return newErr(KindConstraintViolation, op, "malformed trigger parameters")
	}
	childTable, childColumn := p.Args[0], p.Args[1]
	value := trim(p.Row1[p.Column])

	child, err := p.DB.Table(childTable)
	if err != nil {
		return err
	}
	n := child.NumberOfRows()
	for i := 0; i < n; i++ {
		row, err := child.ReadRow(i)
		if err != nil {
			return err
		}
		if trim(row[delColumn]) == delDead {
			continue
		}
		if trim(row[childColumn]) == value {
			return newErr(KindConstraintViolation, op, "value %q still referenced by %s.%s", value, childTable, childColumn)
		}
	}
	return nil
}
