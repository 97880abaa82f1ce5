package engine

import (
	"os"
	"strings"
	"testing"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return db
}

func TestInsertAndReadRow_WidthTrimming(t *testing.T) {
	db := newTestDB(t)
	friend, err := db.NewTable("FRIEND")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if err := friend.AddColumn("NAME", 20); err != nil {
		t.Fatalf("AddColumn(NAME) error: %v", err)
	}
	if err := friend.AddColumn("AGE", 2); err != nil {
		t.Fatalf("AddColumn(AGE) error: %v", err)
	}

	if _, err := friend.Insert(map[string]string{"NAME": "Buzz", "AGE": "18"}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if got := friend.NumberOfRows(); got != 1 {
		t.Fatalf("NumberOfRows() = %d, want 1", got)
	}

	row, err := friend.ReadRow(0)
	if err != nil {
		t.Fatalf("ReadRow() error: %v", err)
	}
	if want := "Buzz" + strings.Repeat(" ", 16); row["NAME"] != want {
		t.Errorf("NAME = %q, want %q", row["NAME"], want)
	}
	if row["AGE"] != "18" {
		t.Errorf("AGE = %q, want %q", row["AGE"], "18")
	}
	if row[delColumn] != " " {
		t.Errorf("~del = %q, want %q", row[delColumn], " ")
	}

	if _, err := friend.Insert(map[string]string{"NAME": "Alexandra-The-Great", "AGE": "200"}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	row2, err := friend.ReadRow(1)
	if err != nil {
		t.Fatalf("ReadRow(1) error: %v", err)
	}
	if want := "Alexandra-The-Great" + " "; row2["NAME"] != want {
		t.Errorf("NAME = %q, want %q (19 bytes padded to 20)", row2["NAME"], want)
	}
	if row2["AGE"] != "20" {
		t.Errorf("AGE = %q, want truncated %q", row2["AGE"], "20")
	}
}

func TestTableInvariants(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if err := tbl.AddColumn("A", 10); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := tbl.Insert(map[string]string{"A": "x"}); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	wantRowLength := 1
	for _, c := range tbl.order {
		wantRowLength += tbl.columns[c].Length
	}
	if tbl.rowLength != wantRowLength {
		t.Errorf("rowLength = %d, want %d", tbl.rowLength, wantRowLength)
	}

	info, err := tbl.data.Stat()
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if int(info.Size()) != tbl.rowLength*tbl.NumberOfRows() {
		t.Errorf("data file size = %d, want %d", info.Size(), tbl.rowLength*tbl.NumberOfRows())
	}
}

func TestAddColumnDeleteColumn_Idempotent(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if err := tbl.AddColumn("A", 10); err != nil {
		t.Fatalf("AddColumn(A) error: %v", err)
	}
	if _, err := tbl.Insert(map[string]string{"A": "hello"}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	rowLengthBefore := tbl.rowLength
	defBefore, err := readDefFile(t, tbl)
	if err != nil {
		t.Fatalf("readDefFile() error: %v", err)
	}

	if err := tbl.AddColumn("B", 5); err != nil {
		t.Fatalf("AddColumn(B) error: %v", err)
	}
	if err := tbl.DeleteColumn("B"); err != nil {
		t.Fatalf("DeleteColumn(B) error: %v", err)
	}

	if tbl.rowLength != rowLengthBefore {
		t.Errorf("rowLength = %d, want %d (restored)", tbl.rowLength, rowLengthBefore)
	}
	defAfter, err := readDefFile(t, tbl)
	if err != nil {
		t.Fatalf("readDefFile() error: %v", err)
	}
	if defAfter != defBefore {
		t.Errorf(".def = %q, want %q", defAfter, defBefore)
	}

	row, err := tbl.ReadRow(0)
	if err != nil {
		t.Fatalf("ReadRow() error: %v", err)
	}
	if strings.TrimSpace(row["A"]) != "hello" {
		t.Errorf("A = %q, want %q (preserved across rebuild)", strings.TrimSpace(row["A"]), "hello")
	}
}

func readDefFile(t *testing.T, tbl *Table) (string, error) {
	t.Helper()
	raw, err := os.ReadFile(tbl.defPath())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func TestDeleteColumn_ReservedForbidden(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if err := tbl.DeleteColumn(delColumn); err == nil {
		t.Fatal("DeleteColumn(~del) should fail")
	}
}

func TestDeleteRow_TombstoneOnly(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if err := tbl.AddColumn("A", 5); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	if _, err := tbl.Insert(map[string]string{"A": "x"}); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if err := tbl.DeleteRow(0); err != nil {
		t.Fatalf("DeleteRow() error: %v", err)
	}
	if got := tbl.NumberOfRows(); got != 1 {
		t.Fatalf("NumberOfRows() = %d, want 1 (tombstoned, not removed)", got)
	}
	row, err := tbl.ReadRow(0)
	if err != nil {
		t.Fatalf("ReadRow() error: %v", err)
	}
	if strings.TrimSpace(row[delColumn]) != "y" {
		t.Errorf("~del = %q, want %q", row[delColumn], "y")
	}
	if err := tbl.DeleteRow(0); err == nil {
		t.Error("DeleteRow() on already-deleted row should fail")
	}
}
