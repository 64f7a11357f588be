package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/adeilh/rakh-records/record"
	"github.com/adeilh/rakh-records/recordstore"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, ErrMissingPath) {
		t.Fatalf("Open(\"\") error = %v, want ErrMissingPath", err)
	}
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		id, err := s.Create(ctx, record.Fields{Name: "A", HireDate: "2024-01-01"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if id != want {
			t.Fatalf("Create() id = %d, want %d", id, want)
		}
	}
}

func TestReadAllOrderedByID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// 256 crosses a byte boundary; little-endian keys would sort it first.
	for i := 0; i < 300; i++ {
		if _, err := s.Create(ctx, record.Fields{Name: "A", HireDate: "2024-01-01"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	all, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(all) != 300 {
		t.Fatalf("ReadAll() len = %d, want 300", len(all))
	}
	for i, r := range all {
		if r.ID != int64(i+1) {
			t.Fatalf("ReadAll()[%d].ID = %d, want %d", i, r.ID, i+1)
		}
	}
}

func TestUpdateDeleteAndMissing(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	f := record.Fields{Name: "A", Position: "Eng", Salary: 1000, HireDate: "2024-01-01"}
	id, _ := s.Create(ctx, f)

	f.Position = "Lead"
	if ok, err := s.Update(ctx, id, f); err != nil || !ok {
		t.Fatalf("Update() = %v, %v", ok, err)
	}
	got, err := s.ReadByID(ctx, id)
	if err != nil {
		t.Fatalf("ReadByID() error = %v", err)
	}
	if got != record.New(id, f) {
		t.Fatalf("ReadByID() = %+v", got)
	}

	if ok, err := s.Update(ctx, 99, f); err != nil || ok {
		t.Fatalf("Update(missing) = %v, %v", ok, err)
	}
	if ok, err := s.Delete(ctx, id); err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if ok, err := s.Delete(ctx, id); err != nil || ok {
		t.Fatalf("Delete() twice = %v, %v", ok, err)
	}
	if _, err := s.ReadByID(ctx, id); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("ReadByID() after delete = %v", err)
	}
}

func TestReopenKeepsRecordsAndSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.Create(ctx, record.Fields{Name: "A", HireDate: "2024-01-01"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_ = s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	id, err := s.Create(ctx, record.Fields{Name: "B", HireDate: "2024-01-02"})
	if err != nil || id != 2 {
		t.Fatalf("Create() after reopen = %d, %v; want 2", id, err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("ReadAll() error = %v, want context.Canceled", err)
	}
}
