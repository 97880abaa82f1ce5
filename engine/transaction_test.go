package engine

import (
	"strings"
	"testing"
)

func TestRollback_UndoesInsertUpdateDelete(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	if err := tbl.AddColumn("A", 10); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	seed := NewTransaction(db)
	if _, err := seed.Insert(tbl, map[string]string{"A": "one"}); err != nil {
		t.Fatalf("seed insert error: %v", err)
	}
	if _, err := seed.Insert(tbl, map[string]string{"A": "two"}); err != nil {
		t.Fatalf("seed insert error: %v", err)
	}
	seed.Commit()

	snapshot := liveRows(t, tbl)

	tx := NewTransaction(db)
	if _, err := tx.Insert(tbl, map[string]string{"A": "three"}); err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if err := tx.Update(tbl, 0, map[string]string{"A": "ONE"}); err != nil {
		t.Fatalf("update error: %v", err)
	}
	if err := tx.DeleteRow(tbl, 1); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback error: %v", err)
	}

	after := liveRows(t, tbl)
	if !sameRows(snapshot, after) {
		t.Errorf("live rows after rollback = %v, want %v", after, snapshot)
	}
}

func liveRows(t *testing.T, tbl *Table) []string {
	t.Helper()
	var out []string
	for i := 0; i < tbl.NumberOfRows(); i++ {
		row, err := tbl.ReadRow(i)
		if err != nil {
			t.Fatalf("ReadRow() error: %v", err)
		}
		if strings.TrimSpace(row[delColumn]) == "y" {
			continue
		}
		out = append(out, strings.TrimSpace(row["A"]))
	}
	return out
}

func sameRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRollback_JoinFilterDeleteScenario(t *testing.T) {
	db, friend, contact := setupFriendContact(t)

	before := liveRows(t, friend)

	tx := NewTransaction(db)
	v := NewRA()
	if err := v.PrepareTable(contact); err != nil {
		t.Fatalf("PrepareTable() error: %v", err)
	}
	if err := v.NlJoin("NAME", friend, "NAME"); err != nil {
		t.Fatalf("NlJoin() error: %v", err)
	}
	if err := v.Select("WEB", Equals, "FB"); err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	friendRows, err := v.RowNumbers("FRIEND")
	if err != nil {
		t.Fatalf("RowNumbers() error: %v", err)
	}
	seen := map[int]bool{}
	for _, rn := range friendRows {
		if seen[rn] {
			continue
		}
		seen[rn] = true
		if err := tx.DeleteRow(friend, rn); err != nil {
			t.Fatalf("DeleteRow() error: %v", err)
		}
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback error: %v", err)
	}

	after := liveRows(t, friend)
	if !sameRows(before, after) {
		t.Errorf("FRIEND live rows after rollback = %v, want %v", after, before)
	}
}

func TestLock_MutualExclusion(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}

	a := NewTransaction(db)
	if err := a.ELock(tbl); err != nil {
		t.Fatalf("A ELock() error: %v", err)
	}

	b := NewTransaction(db)
	if err := b.ELock(tbl); err == nil {
		t.Error("B ELock() should fail while A holds the exclusive lock")
	}
	if err := b.SLock(tbl); err == nil {
		t.Error("B SLock() should fail while A holds the exclusive lock")
	}

	a.Commit()

	if err := b.ELock(tbl); err != nil {
		t.Errorf("B ELock() should succeed after A commits: %v", err)
	}
}

func TestLock_SharedAllowsMultipleReaders(t *testing.T) {
	db := newTestDB(t)
	tbl, err := db.NewTable("T")
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}

	a := NewTransaction(db)
	if err := a.SLock(tbl); err != nil {
		t.Fatalf("A SLock() error: %v", err)
	}
	b := NewTransaction(db)
	if err := b.SLock(tbl); err != nil {
		t.Fatalf("B SLock() should succeed alongside another shared lock: %v", err)
	}
	if err := b.ELock(tbl); err == nil {
		t.Error("B ELock() should fail while A holds a shared lock")
	}
}
