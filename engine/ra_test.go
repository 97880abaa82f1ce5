package engine

import (
	"strings"
	"testing"
)

func setupFriendContact(t *testing.T) (*Database, *Table, *Table) {
	t.Helper()
	db := newTestDB(t)

	friend, err := db.NewTable("FRIEND")
	if err != nil {
		t.Fatalf("NewTable(FRIEND) error: %v", err)
	}
	if err := friend.AddColumn("NAME", 20); err != nil {
		t.Fatalf("AddColumn(NAME) error: %v", err)
	}

	contact, err := db.NewTable("CONTACT")
	if err != nil {
		t.Fatalf("NewTable(CONTACT) error: %v", err)
	}
	if err := contact.AddColumn("NAME", 20); err != nil {
		t.Fatalf("AddColumn(NAME) error: %v", err)
	}
	if err := contact.AddColumn("WEB", 20); err != nil {
		t.Fatalf("AddColumn(WEB) error: %v", err)
	}

	for _, name := range []string{"Buzz", "Christoph", "Christina"} {
		if _, err := friend.Insert(map[string]string{"NAME": name}); err != nil {
			t.Fatalf("Insert(FRIEND) error: %v", err)
		}
	}

	rows := []map[string]string{
		{"NAME": "Buzz", "WEB": "Twitter"},
		{"NAME": "Buzz", "WEB": "G+"},
		{"NAME": "Christoph", "WEB": "FB"},
		{"NAME": "Christina", "WEB": "FB"},
	}
	for _, r := range rows {
		if _, err := contact.Insert(r); err != nil {
			t.Fatalf("Insert(CONTACT) error: %v", err)
		}
	}

	return db, friend, contact
}

func TestRA_AlgebraDrivenUpdate(t *testing.T) {
	_, _, contact := setupFriendContact(t)

	v := NewRA()
	if err := v.PrepareTable(contact); err != nil {
		t.Fatalf("PrepareTable() error: %v", err)
	}
	if err := v.Select("WEB", Equals, "FB"); err != nil {
		t.Fatalf("Select() error: %v", err)
	}

	rowNumbers, err := v.RowNumbers("CONTACT")
	if err != nil {
		t.Fatalf("RowNumbers() error: %v", err)
	}
	if len(rowNumbers) != 2 {
		t.Fatalf("len(rowNumbers) = %d, want 2", len(rowNumbers))
	}
	for _, rn := range rowNumbers {
		if err := contact.Update(rn, map[string]string{"WEB": "Facebook"}); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
	}

	for i := 0; i < contact.NumberOfRows(); i++ {
		row, err := contact.ReadRow(i)
		if err != nil {
			t.Fatalf("ReadRow() error: %v", err)
		}
		web := strings.TrimSpace(row["WEB"])
		name := strings.TrimSpace(row["NAME"])
		switch name {
		case "Christoph", "Christina":
			if web != "Facebook" {
				t.Errorf("row %d WEB = %q, want Facebook", i, web)
			}
		default:
			if web == "Facebook" {
				t.Errorf("row %d (%s) WEB should not have changed, got %q", i, name, web)
			}
		}
		if strings.TrimSpace(row[delColumn]) != "" {
			t.Errorf("row %d ~del changed unexpectedly", i)
		}
	}
}

func TestRA_JoinFilterDelete(t *testing.T) {
	db, friend, contact := setupFriendContact(t)
	_ = db

	v := NewRA()
	if err := v.PrepareTable(contact); err != nil {
		t.Fatalf("PrepareTable(CONTACT) error: %v", err)
	}
	if err := v.NlJoin("NAME", friend, "NAME"); err != nil {
		t.Fatalf("NlJoin() error: %v", err)
	}
	if err := v.Select("WEB", Equals, "FB"); err != nil {
		t.Fatalf("Select() error: %v", err)
	}

	friendRows, err := v.RowNumbers("FRIEND")
	if err != nil {
		t.Fatalf("RowNumbers(FRIEND) error: %v", err)
	}

	toDelete := make(map[int]bool)
	for _, rn := range friendRows {
		toDelete[rn] = true
	}
	for rn := range toDelete {
		if err := friend.DeleteRow(rn); err != nil {
			t.Fatalf("DeleteRow() error: %v", err)
		}
	}

	for i := 0; i < friend.NumberOfRows(); i++ {
		row, err := friend.ReadRow(i)
		if err != nil {
			t.Fatalf("ReadRow() error: %v", err)
		}
		name := strings.TrimSpace(row["NAME"])
		wantDeleted := name == "Christoph" || name == "Christina"
		gotDeleted := strings.TrimSpace(row[delColumn]) == "y"
		if gotDeleted != wantDeleted {
			t.Errorf("FRIEND row %d (%s) deleted = %v, want %v", i, name, gotDeleted, wantDeleted)
		}
	}
}

func TestRA_ProjectDropsUnreferencedTable(t *testing.T) {
	_, friend, contact := setupFriendContact(t)

	v := NewRA()
	if err := v.PrepareTable(contact); err != nil {
		t.Fatalf("PrepareTable(CONTACT) error: %v", err)
	}
	if err := v.NlJoin("NAME", friend, "NAME"); err != nil {
		t.Fatalf("NlJoin() error: %v", err)
	}
	if err := v.Project([]string{"WEB"}); err != nil {
		t.Fatalf("Project() error: %v", err)
	}
	if _, ok := v.tables["FRIEND"]; ok {
		t.Error("FRIEND should have been dropped once no alias referenced it")
	}
	if _, ok := v.tables["CONTACT"]; !ok {
		t.Error("CONTACT should remain (WEB still aliased)")
	}
}

func TestRA_CrossAlignsRowCounts(t *testing.T) {
	db := newTestDB(t)
	a, err := db.NewTable("A")
	if err != nil {
		t.Fatalf("NewTable(A) error: %v", err)
	}
	if err := a.AddColumn("X", 5); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	b, err := db.NewTable("B")
	if err != nil {
		t.Fatalf("NewTable(B) error: %v", err)
	}
	if err := b.AddColumn("Y", 5); err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	for i := 0; i < 2; i++ {
		a.Insert(map[string]string{"X": "a"})
	}
	for i := 0; i < 3; i++ {
		b.Insert(map[string]string{"Y": "b"})
	}

	v := NewRA()
	if err := v.PrepareTable(a); err != nil {
		t.Fatalf("PrepareTable(A) error: %v", err)
	}
	if err := v.Cross(b); err != nil {
		t.Fatalf("Cross() error: %v", err)
	}
	if v.NumberOfRows() != 6 {
		t.Fatalf("NumberOfRows() = %d, want 6", v.NumberOfRows())
	}
	aRows, _ := v.RowNumbers("A")
	bRows, _ := v.RowNumbers("B")
	if len(aRows) != len(bRows) {
		t.Fatalf("misaligned row_numbers: len(A)=%d len(B)=%d", len(aRows), len(bRows))
	}
}
