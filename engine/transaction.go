package engine

import (
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"
)

// LockTimeout is the age after which an advisory lock file is considered
// stale and garbage-collected by the next LocksOf call.
const LockTimeout = 300 * time.Second

// idCounter holds the last issued transaction id, in microseconds.
var idCounter int64

// newTransactionID returns a monotonically-increasing float timestamp
// (seconds, microsecond resolution), also used (as a string) for
// shared-lock marker filenames. A call that lands on or before the last
// issued id gets that id plus one microsecond.
func newTransactionID() float64 {
	now := time.Now().UnixMicro()
	for {
		last := atomic.LoadInt64(&idCounter)
		next := now
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapInt64(&idCounter, last, next) {
			return float64(next) / 1e6
		}
	}
}

// undoKind tags an undo log entry by the physical operation it reverses.
type undoKind int

const (
	undoInsert undoKind = iota
	undoUpdate
	undoDelete
)

type undoEntry struct {
	kind    undoKind
	table   *Table
	row     int
	oldRow  map[string]string
}

// LockState is the result of scanning a table's lock files: every live
// shared holder, plus the exclusive holder (empty string if none).
type LockState struct {
	Shared    []string
	Exclusive string
}

// Transaction wraps filesystem-based advisory locks, an in-memory undo
// log, commit, and rollback around the row-operation pipeline.
type Transaction struct {
	db  *Database
	id  float64
	idS string
	log []undoEntry

	lockedExclusive map[string]bool
	lockedShared    map[string]bool
}

// NewTransaction allocates a fresh id from the monotonic system clock.
func NewTransaction(db *Database) *Transaction {
	id := newTransactionID()
	return &Transaction{
		db:              db,
		id:              id,
		idS:             strconv.FormatFloat(id, 'f', -1, 64),
		lockedExclusive: make(map[string]bool),
		lockedShared:    make(map[string]bool),
	}
}

// ID returns the transaction's timestamp identity.
func (tx *Transaction) ID() float64 { return tx.id }

// LocksOf scans t's .shared directory and .exclusive file, garbage
// collecting any lock older than LockTimeout.
func LocksOf(t *Table) (LockState, error) {
	var state LockState

	entries, err := os.ReadDir(t.sharedDir())
	if err != nil && !os.IsNotExist(err) {
		return state, wrapErr(KindIoError, "LocksOf", err)
	}
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		path := filepath.Join(t.sharedDir(), e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > LockTimeout {
			os.Remove(path)
			continue
		}
		state.Shared = append(state.Shared, e.Name())
	}

	if info, err := os.Stat(t.exclusivePath()); err == nil {
		if time.Since(info.ModTime()) > LockTimeout {
			os.Remove(t.exclusivePath())
		} else {
			raw, err := os.ReadFile(t.exclusivePath())
			if err != nil {
				return state, wrapErr(KindIoError, "LocksOf", err)
			}
			state.Exclusive = firstLine(string(raw))
		}
	}
	return state, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}

// ELock acquires an exclusive lock on t, allowed iff no other transaction
// holds a shared or exclusive lock. Downgrades this transaction's own
// shared lock first, if held.
func (tx *Transaction) ELock(t *Table) error {
	state, err := LocksOf(t)
	if err != nil {
		return err
	}
	for _, holder := range state.Shared {
		if holder != tx.idS {
			return newErr(KindLockConflict, "Transaction.ELock", "table %q has a live shared lock", t.Name())
		}
	}
	if state.Exclusive != "" && state.Exclusive != tx.idS {
		return newErr(KindLockConflict, "Transaction.ELock", "table %q is exclusively locked", t.Name())
	}

	if tx.lockedShared[t.Name()] {
		if err := tx.Unlock(t); err != nil {
			return err
		}
	}

	if err := os.WriteFile(t.exclusivePath(), []byte(tx.idS+"\n"), 0o644); err != nil {
		return wrapErr(KindIoError, "Transaction.ELock", err)
	}
	tx.lockedExclusive[t.Name()] = true
	return nil
}

// SLock acquires a shared lock on t, allowed iff no other transaction
// holds the exclusive lock. Drops this transaction's own exclusive lock
// first, if held.
func (tx *Transaction) SLock(t *Table) error {
	state, err := LocksOf(t)
	if err != nil {
		return err
	}
	if state.Exclusive != "" && state.Exclusive != tx.idS {
		return newErr(KindLockConflict, "Transaction.SLock", "table %q is exclusively locked", t.Name())
	}

	if tx.lockedExclusive[t.Name()] {
		if err := tx.Unlock(t); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(t.sharedDir(), 0o755); err != nil {
		return wrapErr(KindIoError, "Transaction.SLock", err)
	}
	path := filepath.Join(t.sharedDir(), tx.idS)
	f, err := os.Create(path)
	if err != nil {
		return wrapErr(KindIoError, "Transaction.SLock", err)
	}
	if err := f.Close(); err != nil {
		return wrapErr(KindIoError, "Transaction.SLock", err)
	}
	tx.lockedShared[t.Name()] = true
	return nil
}

// Unlock releases whichever lock (if any) this transaction holds on t.
func (tx *Transaction) Unlock(t *Table) error {
	if tx.lockedExclusive[t.Name()] {
		if err := os.Remove(t.exclusivePath()); err != nil && !os.IsNotExist(err) {
			return wrapErr(KindIoError, "Transaction.Unlock", err)
		}
		delete(tx.lockedExclusive, t.Name())
		return nil
	}
	if tx.lockedShared[t.Name()] {
		path := filepath.Join(t.sharedDir(), tx.idS)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return wrapErr(KindIoError, "Transaction.Unlock", err)
		}
		delete(tx.lockedShared, t.Name())
	}
	return nil
}

// Insert performs a transactional row insert: runs the trigger-wrapped
// physical insert, appends an undo entry on success, and rolls back and
// re-raises on failure.
func (tx *Transaction) Insert(t *Table, row map[string]string) (int, error) {
	n, err := InsertRow(tx.db, t, row)
	if err != nil {
		tx.Rollback()
		return 0, contextualize("Transaction.Insert", err)
	}
	tx.log = append(tx.log, undoEntry{kind: undoInsert, table: t, row: n})
	return n, nil
}

// Update performs a transactional row update.
func (tx *Transaction) Update(t *Table, n int, row map[string]string) error {
	oldRow, err := t.ReadRow(n)
	if err != nil {
		return err
	}
	if err := UpdateRow(tx.db, t, n, row); err != nil {
		tx.Rollback()
		return contextualize("Transaction.Update", err)
	}
	tx.log = append(tx.log, undoEntry{kind: undoUpdate, table: t, row: n, oldRow: oldRow})
	return nil
}

// DeleteRow performs a transactional row delete.
func (tx *Transaction) DeleteRow(t *Table, n int) error {
	if err := DeleteRow(tx.db, t, n); err != nil {
		tx.Rollback()
		return contextualize("Transaction.DeleteRow", err)
	}
	tx.log = append(tx.log, undoEntry{kind: undoDelete, table: t, row: n})
	return nil
}

// Rollback replays the undo log in reverse: an insert is undone by
// tombstoning the freshly-appended row, an update by restoring the old
// row, a delete by clearing the tombstone. It keeps replaying on error so
// one failed undo step doesn't strand the rest of the log, but reports the
// first failure (wrapped as a KindIoError) once replay and commit finish.
func (tx *Transaction) Rollback() error {
	var firstErr error
	for i := len(tx.log) - 1; i >= 0; i-- {
		e := tx.log[i]
		var err error
		switch e.kind {
		case undoInsert:
			err = e.table.DeleteRow(e.row)
		case undoUpdate:
			err = e.table.Update(e.row, e.oldRow)
		case undoDelete:
			err = e.table.clearTombstone(e.row)
		}
		if err != nil && firstErr == nil {
			firstErr = wrapErr(KindIoError, "Transaction.Rollback", err)
		}
	}
	if err := tx.Commit(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Commit releases all locks held by this transaction and clears the undo
// log.
func (tx *Transaction) Commit() error {
	for name := range tx.lockedExclusive {
		if t, err := tx.db.Table(name); err == nil {
			tx.Unlock(t)
		}
	}
	for name := range tx.lockedShared {
		if t, err := tx.db.Table(name); err == nil {
			tx.Unlock(t)
		}
	}
	tx.log = nil
	return nil
}

// contextualize re-raises err with an additional operation name, preserving
// its Kind if it is already an engine Error.
func contextualize(op string, err error) error {
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, Op: op + " -> " + e.Op, Err: e.Err}
	}
	return wrapErr(KindIoError, op, err)
}
