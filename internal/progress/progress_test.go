package progress

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"ocrlabel/internal/common"
)

func TestRecordStatus(t *testing.T) {
	r := NewRecord()
	if r.Status("a") != Unviewed {
		t.Fatalf("fresh id should be unviewed")
	}
	r.MarkViewed("a")
	if r.Status("a") != Viewed {
		t.Fatalf("want viewed")
	}
	r.MarkUpdated("a")
	if r.Status("a") != Updated || r.Status("a").String() != "updated" {
		t.Fatalf("want updated")
	}
	var zero Record
	zero.MarkViewed("z")
	if zero.Status("z") != Viewed {
		t.Fatalf("zero record should accept marks")
	}
}

func TestWireIsSorted(t *testing.T) {
	r := FromWire(Wire{Viewed: []string{"b", "a", "b"}, Updated: []string{"c"}})
	w := r.ToWire()
	if !reflect.DeepEqual(w.Viewed, []string{"a", "b"}) || !reflect.DeepEqual(w.Updated, []string{"c"}) {
		t.Fatalf("wire = %+v", w)
	}
}

// exerciseTracker checks that marking twice equals marking once.
func exerciseTracker(t *testing.T, tr Tracker) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := tr.MarkViewed(ctx, "inv001"); err != nil {
			t.Fatalf("mark viewed: %v", err)
		}
	}
	if err := tr.MarkUpdated(ctx, "inv002"); err != nil {
		t.Fatalf("mark updated: %v", err)
	}
	rec, err := tr.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	w := rec.ToWire()
	if !reflect.DeepEqual(w.Viewed, []string{"inv001"}) || !reflect.DeepEqual(w.Updated, []string{"inv002"}) {
		t.Fatalf("record = %+v", w)
	}
}

func TestMemoryTracker(t *testing.T) {
	m := NewMemory()
	exerciseTracker(t, m)
	rec, _ := m.Load(context.Background())
	rec.MarkViewed("leak")
	again, _ := m.Load(context.Background())
	if again.Status("leak") != Unviewed {
		t.Fatalf("Load must return a copy")
	}
}

func TestSQLiteTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	ctx := context.Background()
	s, err := OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exerciseTracker(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	rec, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.Status("inv001") != Viewed || rec.Status("inv002") != Updated {
		t.Fatalf("progress not persisted: %+v", rec.ToWire())
	}
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(ctx, common.ProgressConfig{Backend: common.ProgressMemory}, nil)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := tr.(*Memory); !ok {
		t.Fatalf("want *Memory, got %T", tr)
	}

	path := filepath.Join(t.TempDir(), "p.db")
	tr, err = Open(ctx, common.ProgressConfig{Backend: common.ProgressSQLite, SQLitePath: path}, nil)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer tr.Close()
	if _, ok := tr.(*SQLite); !ok {
		t.Fatalf("want *SQLite, got %T", tr)
	}

	if _, err := Open(ctx, common.ProgressConfig{Backend: "etcd"}, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("unknown backend: %v", err)
	}
}
