package engine

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// reserved meta-table names.
const (
	BeforeTriggers = "~before"
	AfterTriggers  = "~after"
)

var tableFileRe = regexp.MustCompile(`^([^.].*)\.(data|log|def)$`)

// Database is a directory-scoped set of Tables. It owns the two reserved
// trigger meta-tables ~before and ~after.
type Database struct {
	dir    string
	tables map[string]*Table
}

// Open scans path for existing tables and ensures the trigger meta-tables
// and the .init flag file exist. Re-opening a directory is idempotent.
func Open(dir string) (*Database, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, wrapErr(KindIoError, "Open", err)
	}
	if !info.IsDir() {
		return nil, newErr(KindDirectoryInvalid, "Open", "%q is not a directory", dir)
	}

	db := &Database{dir: dir, tables: make(map[string]*Table)}
	if err := db.scan(); err != nil {
		return nil, err
	}
	if err := db.initDir(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) scan() error {
	entries, err := os.ReadDir(db.dir)
	if err != nil {
		return wrapErr(KindIoError, "Database.scan", err)
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := tableFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		t, err := openTable(db, db.dir, name)
		if err != nil {
			return err
		}
		db.tables[name] = t
	}
	return nil
}

// initDir is idempotent: if .init is absent, it creates the ~before/~after
// meta-tables with their five trigger columns, then creates .init.
func (db *Database) initDir() error {
	flag := filepath.Join(db.dir, ".init")
	if _, err := os.Stat(flag); err == nil {
		return nil
	}

	for _, name := range []string{BeforeTriggers, AfterTriggers} {
		if _, ok := db.tables[name]; ok {
			continue
		}
		t, err := db.NewTable(name)
		if err != nil {
			return err
		}
		for _, c := range []struct {
			name   string
			length int
		}{
			{delColumn, delColumnLength},
			{"table", maxNameLength},
			{"column", maxNameLength},
			{"operation", 6},
			{"function", maxNameLength},
			{"parameters", maxNameLength},
		} {
			if err := t.AddColumn(c.name, c.length); err != nil {
				return err
			}
		}
	}

	f, err := os.Create(flag)
	if err != nil {
		return wrapErr(KindIoError, "Database.initDir", err)
	}
	return f.Close()
}

// NewTable creates an empty table (.data/.log/.def + a .shared lock
// directory) and adds the default ~del column. ~before and ~after are
// created without it; initDir adds their columns, ~del included.
func (db *Database) NewTable(name string) (*Table, error) {
	if len(name) > maxNameLength {
		return nil, newErr(KindSchemaViolation, "Database.NewTable", "table name %q exceeds %d bytes", name, maxNameLength)
	}
	if _, ok := db.tables[name]; ok {
		return nil, newErr(KindSchemaViolation, "Database.NewTable", "table %q already exists", name)
	}

	t := &Table{name: name, db: db, dir: db.dir, columns: map[string]ColumnDef{}, order: nil, rowLength: 1}
	for _, p := range []string{t.dataPath(), t.logPath(), t.defPath()} {
		if _, err := os.Stat(p); err == nil {
			return nil, newErr(KindSchemaViolation, "Database.NewTable", "file %q already exists", p)
		}
	}

	if err := os.WriteFile(t.defPath(), nil, 0o644); err != nil {
		return nil, wrapErr(KindIoError, "Database.NewTable", err)
	}
	if err := os.WriteFile(t.dataPath(), nil, 0o644); err != nil {
		return nil, wrapErr(KindIoError, "Database.NewTable", err)
	}
	if err := os.WriteFile(t.logPath(), nil, 0o644); err != nil {
		return nil, wrapErr(KindIoError, "Database.NewTable", err)
	}
	if err := os.MkdirAll(t.sharedDir(), 0o755); err != nil {
		return nil, wrapErr(KindIoError, "Database.NewTable", err)
	}

	if err := t.openHandles(); err != nil {
		return nil, err
	}

	db.tables[name] = t

	if name != BeforeTriggers && name != AfterTriggers {
		if err := t.AddColumn(delColumn, delColumnLength); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// DeleteTable unlinks a table's three files and its lock directory.
func (db *Database) DeleteTable(name string) error {
	t, ok := db.tables[name]
	if !ok {
		return newErr(KindSchemaViolation, "Database.DeleteTable", "table %q does not exist", name)
	}
	t.Close()
	for _, p := range []string{t.dataPath(), t.logPath(), t.defPath(), t.exclusivePath()} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return wrapErr(KindIoError, "Database.DeleteTable", err)
		}
	}
	if err := os.RemoveAll(t.sharedDir()); err != nil {
		return wrapErr(KindIoError, "Database.DeleteTable", err)
	}
	delete(db.tables, name)
	return nil
}

// RenameTable renames all filesystem entries belonging to a table and
// reopens its file handles under the new name.
func (db *Database) RenameTable(oldName, newName string) error {
	t, ok := db.tables[oldName]
	if !ok {
		return newErr(KindSchemaViolation, "Database.RenameTable", "table %q does not exist", oldName)
	}
	if _, ok := db.tables[newName]; ok {
		return newErr(KindSchemaViolation, "Database.RenameTable", "table %q already exists", newName)
	}

	t.Close()

	oldPaths := []string{t.dataPath(), t.logPath(), t.defPath()}
	oldShared := t.sharedDir()
	oldExclusive := t.exclusivePath()

	t.name = newName
	newPaths := []string{t.dataPath(), t.logPath(), t.defPath()}

	for i := range oldPaths {
		if err := os.Rename(oldPaths[i], newPaths[i]); err != nil {
			return wrapErr(KindIoError, "Database.RenameTable", err)
		}
	}
	if err := os.Rename(oldShared, t.sharedDir()); err != nil && !os.IsNotExist(err) {
		return wrapErr(KindIoError, "Database.RenameTable", err)
	}
	if err := os.Rename(oldExclusive, t.exclusivePath()); err != nil && !os.IsNotExist(err) {
		return wrapErr(KindIoError, "Database.RenameTable", err)
	}

	if err := t.openHandles(); err != nil {
		return err
	}
	delete(db.tables, oldName)
	db.tables[newName] = t
	return nil
}

// Table looks up a table by name.
func (db *Database) Table(name string) (*Table, error) {
	t, ok := db.tables[name]
	if !ok {
		return nil, newErr(KindSchemaViolation, "Database.Table", "table %q does not exist", name)
	}
	return t, nil
}

// TableNames lists all user tables (excluding the two trigger meta-tables).
func (db *Database) TableNames() []string {
	var out []string
	for name := range db.tables {
		if name == BeforeTriggers || name == AfterTriggers {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dir returns the database's backing directory.
func (db *Database) Dir() string { return db.dir }

// tempTableName returns a throwaway sibling table name for rebuild.
func tempTableName() string {
	return "~" + strings.ReplaceAll(newUUID(), "-", "")
}
