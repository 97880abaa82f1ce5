package engine

// colRef names a column by the table that owns it.
type colRef struct {
	table string
	name  string
}

// tableEntry holds one table's row-number sequence inside a view. All
// entries in a view share the same length and positional correspondence:
// tables[T].rowNumbers[i] is the i-th tuple in the current projection onto
// T. This invariant is load-bearing for Cross and NlJoin.
type tableEntry struct {
	ref        *Table
	rowNumbers []int
}

// RA is a lazy row-index view over one or more tables: a set of referenced
// tables plus, for each, an ordered sequence of kept row numbers, and a
// mapping of column aliases back to (table, column).
type RA struct {
	tables  map[string]*tableEntry
	columns map[string]colRef
}

// NewRA returns an empty view.
func NewRA() *RA {
	return &RA{tables: make(map[string]*tableEntry), columns: make(map[string]colRef)}
}

// PrepareTable registers t with row_numbers = [0..NumberOfRows(t)-1] and
// imports every column of t as an alias of the same name. Fails if a table
// of the same name is already in the view.
func (v *RA) PrepareTable(t *Table) error {
	if _, ok := v.tables[t.name]; ok {
		return newErr(KindRAError, "RA.PrepareTable", "table %q already prepared", t.name)
	}
	n := t.NumberOfRows()
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	v.tables[t.name] = &tableEntry{ref: t, rowNumbers: rows}
	for _, c := range t.order {
		v.columns[c] = colRef{table: t.name, name: c}
	}
	return nil
}

// Select keeps only the rows where alias's column satisfies
// predicate(trimmed(cell), param), after first dropping tombstoned rows.
// It re-projects every table's row_numbers through the surviving
// positions, not just the filtered table's — this is what keeps cross/join
// results aligned.
func (v *RA) Select(alias string, predicate Predicate, param string) error {
	col, ok := v.columns[alias]
	if !ok {
		return newErr(KindRAError, "RA.Select", "unknown alias %q", alias)
	}
	entry, ok := v.tables[col.table]
	if !ok {
		return newErr(KindRAError, "RA.Select", "table for alias %q not prepared", alias)
	}

	kept := make([]int, 0, len(entry.rowNumbers))
	for i, rn := range entry.rowNumbers {
		row, err := entry.ref.ReadRow(rn)
		if err != nil {
			return err
		}
		if trim(row[delColumn]) == delDead {
			continue
		}
		if predicate(row[col.name], param) {
			kept = append(kept, i)
		}
	}

	for _, e := range v.tables {
		e.rowNumbers = reindex(e.rowNumbers, kept)
	}
	return nil
}

func reindex(rowNumbers []int, positions []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = rowNumbers[p]
	}
	return out
}

// Project drops every alias not in keep. A table is dropped entirely once
// none of its columns remain aliased.
func (v *RA) Project(keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, a := range keep {
		if _, ok := v.columns[a]; !ok {
			return newErr(KindRAError, "RA.Project", "unknown alias %q", a)
		}
		keepSet[a] = true
	}

	remainingByTable := make(map[string]int)
	for alias, col := range v.columns {
		if keepSet[alias] {
			remainingByTable[col.table]++
		}
	}

	for alias, col := range v.columns {
		if !keepSet[alias] {
			delete(v.columns, alias)
			if remainingByTable[col.table] == 0 {
				delete(v.tables, col.table)
			}
		}
	}
	return nil
}

// Redefine renames alias old to new.
func (v *RA) Redefine(oldAlias, newAlias string) error {
	col, ok := v.columns[oldAlias]
	if !ok {
		return newErr(KindRAError, "RA.Redefine", "unknown alias %q", oldAlias)
	}
	if _, ok := v.columns[newAlias]; ok {
		return newErr(KindRAError, "RA.Redefine", "alias %q already exists", newAlias)
	}
	delete(v.columns, oldAlias)
	v.columns[newAlias] = col
	return nil
}

// Cross computes the Cartesian product of the current view with t.
func (v *RA) Cross(t *Table) error {
	m := t.NumberOfRows()
	k := v.NumberOfRows()

	for _, e := range v.tables {
		e.rowNumbers = repeatSequence(e.rowNumbers, m)
	}

	if err := v.PrepareTable(t); err != nil {
		return err
	}
	entry := v.tables[t.name]
	rows := make([]int, 0, m*k)
	for rn := 0; rn < m; rn++ {
		for i := 0; i < k; i++ {
			rows = append(rows, rn)
		}
	}
	entry.rowNumbers = rows
	return nil
}

// repeatSequence repeats seq m times in order, producing length m*len(seq).
func repeatSequence(seq []int, m int) []int {
	out := make([]int, 0, len(seq)*m)
	for i := 0; i < m; i++ {
		out = append(out, seq...)
	}
	return out
}

// NlJoin performs a nested-loop equi-join: for every row rn1 currently kept
// from alias's table, and every row rn2 of t, the pair is kept iff neither
// row is tombstoned and the trimmed cell at (alias, rn1) equals the
// trimmed cell at (t, col, rn2). The resulting pairing is applied to every
// existing table in the view.
func (v *RA) NlJoin(alias string, t *Table, col string) error {
	colRefv, ok := v.columns[alias]
	if !ok {
		return newErr(KindRAError, "RA.NlJoin", "unknown alias %q", alias)
	}
	t1, ok := v.tables[colRefv.table]
	if !ok {
		return newErr(KindRAError, "RA.NlJoin", "table for alias %q not prepared", alias)
	}
	if !t.Has(col) {
		return newErr(KindRAError, "RA.NlJoin", "unknown column %q on table %q", col, t.name)
	}

	var posT1, newT2 []int
	for pos, rn1 := range t1.rowNumbers {
		row1, err := t1.ref.ReadRow(rn1)
		if err != nil {
			return err
		}
		if trim(row1[delColumn]) == delDead {
			continue
		}
		left := row1[colRefv.name]
		for rn2 := 0; rn2 < t.NumberOfRows(); rn2++ {
			row2, err := t.ReadRow(rn2)
			if err != nil {
				return err
			}
			if trim(row2[delColumn]) == delDead {
				continue
			}
			if trim(left) == trim(row2[col]) {
				posT1 = append(posT1, pos)
				newT2 = append(newT2, rn2)
			}
		}
	}

	for _, e := range v.tables {
		e.rowNumbers = reindex(e.rowNumbers, posT1)
	}

	if err := v.PrepareTable(t); err != nil {
		return err
	}
	v.tables[t.name].rowNumbers = newT2
	return nil
}

// Copy returns a shallow copy sufficient to mutate independently of v.
func (v *RA) Copy() *RA {
	out := NewRA()
	for name, e := range v.tables {
		rows := make([]int, len(e.rowNumbers))
		copy(rows, e.rowNumbers)
		out.tables[name] = &tableEntry{ref: e.ref, rowNumbers: rows}
	}
	for alias, col := range v.columns {
		out.columns[alias] = col
	}
	return out
}

// ReadRow assembles result row i by reading cell (tables[col.table].rowNumbers[i], col.name)
// for every column in the view.
func (v *RA) ReadRow(i int) (map[string]string, error) {
	out := make(map[string]string, len(v.columns))
	for alias, col := range v.columns {
		e, ok := v.tables[col.table]
		if !ok {
			return nil, newErr(KindRAError, "RA.ReadRow", "table %q not in view", col.table)
		}
		if i < 0 || i >= len(e.rowNumbers) {
			return nil, newErr(KindOutOfBounds, "RA.ReadRow", "row %d out of bounds", i)
		}
		row, err := e.ref.ReadRow(e.rowNumbers[i])
		if err != nil {
			return nil, err
		}
		out[alias] = row[col.name]
	}
	return out, nil
}

// NumberOfRows returns the length of any one table's row_numbers (all
// equal, by invariant).
func (v *RA) NumberOfRows() int {
	for _, e := range v.tables {
		return len(e.rowNumbers)
	}
	return 0
}

// RowNumbers returns the current row-number sequence for the table
// registered under name (its physical table name, not an alias).
func (v *RA) RowNumbers(tableName string) ([]int, error) {
	e, ok := v.tables[tableName]
	if !ok {
		return nil, newErr(KindRAError, "RA.RowNumbers", "table %q not in view", tableName)
	}
	out := make([]int, len(e.rowNumbers))
	copy(out, e.rowNumbers)
	return out, nil
}
