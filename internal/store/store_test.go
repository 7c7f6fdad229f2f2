package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var created Doc
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		created, err = tx.Insert(ctx, "notifications", Doc{"title": "Case closed", "read": false})
		return err
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if created.ID() == "" {
		t.Fatal("Insert should assign an id")
	}

	var got Doc
	err = s.View(ctx, func(tx *Tx) error {
		var err error
		got, err = tx.Get(ctx, "notifications", created.ID())
		return err
	})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["title"] != "Case closed" || got["read"] != false {
		t.Errorf("unexpected doc: %v", got)
	}
}

func TestInsertKeepsGivenID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Insert(ctx, "cases", Doc{"id": "c1"}); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, "cases", Doc{"id": "c1"})
		return err
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSameIDInDifferentResources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Insert(ctx, "cases", Doc{"id": "x"}); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, "employees", Doc{"id": "x"})
		return err
	})
	if err != nil {
		t.Fatalf("ids are scoped per resource: %v", err)
	}
}

func TestAllNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tx.Insert(ctx, "blacklist", Doc{"id": id}); err != nil {
				return err
			}
		}
		_, err := tx.Insert(ctx, "employers", Doc{"id": "other"})
		return err
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var docs []Doc
	var n int
	err = s.View(ctx, func(tx *Tx) error {
		var err error
		if docs, err = tx.All(ctx, "blacklist"); err != nil {
			return err
		}
		n, err = tx.Count(ctx, "blacklist")
		return err
	})
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if n != 3 || len(docs) != 3 {
		t.Fatalf("expected 3 docs, got count=%d len=%d", n, len(docs))
	}
	if docs[0].ID() != "c" || docs[2].ID() != "a" {
		t.Errorf("expected newest first, got %s..%s", docs[0].ID(), docs[2].ID())
	}
}

func TestPutAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		_, err := tx.Insert(ctx, "verifiers", Doc{"id": "v1", "name": "Ada", "openCases": 1})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(ctx, func(tx *Tx) error {
		// id in the body is ignored in favor of the path id
		_, err := tx.Put(ctx, "verifiers", "v1", Doc{"id": "zzz", "name": "Ada", "openCases": 2})
		return err
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err = s.View(ctx, func(tx *Tx) error {
		doc, err := tx.Get(ctx, "verifiers", "v1")
		if err != nil {
			return err
		}
		if doc["openCases"] != float64(2) {
			t.Errorf("openCases = %v, want 2", doc["openCases"])
		}
		if doc.ID() != "v1" {
			t.Errorf("id = %q, want v1", doc.ID())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Update(ctx, func(tx *Tx) error { return tx.Delete(ctx, "verifiers", "v1") })
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	err = s.Update(ctx, func(tx *Tx) error { return tx.Delete(ctx, "verifiers", "v1") })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
	err = s.Update(ctx, func(tx *Tx) error {
		_, err := tx.Put(ctx, "verifiers", "v1", Doc{})
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("put missing: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Insert(ctx, "cases", Doc{"id": "c1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	err = s.View(ctx, func(tx *Tx) error {
		_, err := tx.Get(ctx, "cases", "c1")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("insert should have rolled back, got %v", err)
	}
}

func TestMemoryStoresAreSeparate(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)
	ctx := context.Background()

	err := a.Update(ctx, func(tx *Tx) error {
		_, err := tx.Insert(ctx, "cases", Doc{"id": "c1"})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	var n int
	b.View(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Count(ctx, "cases")
		return err
	})
	if n != 0 {
		t.Errorf("second store sees %d cases, want 0", n)
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err = s.Update(ctx, func(tx *Tx) error {
		_, err := tx.Insert(ctx, "employees", Doc{"id": "e1", "name": "Jo"})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	err = s.View(ctx, func(tx *Tx) error {
		doc, err := tx.Get(ctx, "employees", "e1")
		if err == nil && doc["name"] != "Jo" {
			t.Errorf("name = %v, want Jo", doc["name"])
		}
		return err
	})
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
}
