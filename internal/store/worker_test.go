package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/dukerupert/timeclock/internal/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWorkerCreateAndGet(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	w, err := s.Create("Ada Lovelace", "ada@example.com", "555-0100", "Server", 18.5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.ID == 0 {
		t.Error("expected non-zero id")
	}
	if !w.IsActive {
		t.Error("new worker should be active")
	}
	if w.HasPIN {
		t.Error("new worker should have no PIN")
	}

	got, err := s.GetByID(w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Email != "ada@example.com" || got.HourlyRate != 18.5 {
		t.Errorf("got %+v", got)
	}
}

func TestWorkerGetMissing(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	got, err := s.GetByID(999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing worker, got %+v", got)
	}
}

func TestWorkerEmailUnique(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	if _, err := s.Create("Ada", "ada@example.com", "", "Server", 18.5); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Create("Other Ada", "ada@example.com", "", "Cook", 20)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestWorkerEmailUniqueAcrossInactive(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	w, err := s.Create("Ada", "ada@example.com", "", "Server", 18.5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Deactivate(w.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// The email stays reserved even after soft delete.
	if _, err := s.Create("New Ada", "ada@example.com", "", "Server", 19); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate against inactive worker", err)
	}

	exists, err := s.EmailExists("ada@example.com", 0)
	if err != nil {
		t.Fatalf("email exists: %v", err)
	}
	if !exists {
		t.Error("inactive worker's email should still register as taken")
	}
}

func TestWorkerDeactivatePreservesRow(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	w, _ := s.Create("Ada", "ada@example.com", "", "Server", 18.5)
	if err := s.Deactivate(w.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := s.GetByID(w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("soft-deleted worker should still be fetchable")
	}
	if got.IsActive {
		t.Error("deactivated worker reports active")
	}

	active, err := s.List(false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active list = %d, want 0", len(active))
	}

	all, err := s.List(true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("full list = %d, want 1", len(all))
	}
}

func TestWorkerUpdate(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	w, _ := s.Create("Ada", "ada@example.com", "", "Server", 18.5)
	updated, err := s.Update(w.ID, "Ada Lovelace", "ada@example.com", "555-0101", "Shift Lead", 22)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Ada Lovelace" || updated.Position != "Shift Lead" || updated.HourlyRate != 22 {
		t.Errorf("updated = %+v", updated)
	}
}

func TestWorkerUpdateEmailCollision(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	s.Create("Ada", "ada@example.com", "", "Server", 18.5)
	w2, _ := s.Create("Ben", "ben@example.com", "", "Cook", 20)

	if _, err := s.Update(w2.ID, "Ben", "ada@example.com", "", "Cook", 20); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestWorkerGetByEmail(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	s.Create("Ada", "ada@example.com", "", "Server", 18.5)

	got, err := s.GetByEmail("ada@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.Name != "Ada" {
		t.Errorf("got %+v", got)
	}

	missing, err := s.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestWorkerCounts(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	s.Create("Ada", "ada@example.com", "", "Server", 18.5)
	w2, _ := s.Create("Ben", "ben@example.com", "", "Cook", 20)
	s.Deactivate(w2.ID)

	total, active, err := s.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 2 || active != 1 {
		t.Errorf("total/active = %d/%d, want 2/1", total, active)
	}
}

func TestWorkerPINLifecycle(t *testing.T) {
	s := NewWorkerStore(setupDB(t))

	w, _ := s.Create("Ada", "ada@example.com", "", "Server", 18.5)

	hash, err := s.GetPINHash(w.ID)
	if err != nil {
		t.Fatalf("get pin hash: %v", err)
	}
	if hash != "" {
		t.Error("expected empty hash before SetPIN")
	}

	if err := s.SetPIN(w.ID, "fake-hash"); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	got, _ := s.GetByID(w.ID)
	if !got.HasPIN {
		t.Error("HasPIN should be true after SetPIN")
	}

	if err := s.ClearPIN(w.ID); err != nil {
		t.Fatalf("clear pin: %v", err)
	}
	got, _ = s.GetByID(w.ID)
	if got.HasPIN {
		t.Error("HasPIN should be false after ClearPIN")
	}
}
