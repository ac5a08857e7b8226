package dedup

import (
	"errors"
	"testing"
	"time"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	states  map[string]SeenState
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{states: make(map[string]SeenState)}
}

func (m *memStore) Load(namespace string) (SeenState, error) {
	if m.loadErr != nil {
		return SeenState{}, m.loadErr
	}
	return m.states[namespace], nil
}

func (m *memStore) Save(namespace string, state SeenState) error {
	m.states[namespace] = state
	return nil
}

func newTestFilter(store Store, day string) *Filter {
	f := New(store)
	f.now = func() time.Time {
		t, _ := time.Parse("2006-01-02", day)
		return t
	}
	return f
}

func TestKey_Stable(t *testing.T) {
	a := Key("BUYING", "AAPL 1/17 150", "Call")
	b := Key("BUYING", "AAPL 1/17 150", "Call")
	c := Key("BUYING", "AAPL 1/17 150", "Put")
	if a != b {
		t.Error("same parts must produce the same key")
	}
	if a == c {
		t.Error("different parts must produce different keys")
	}
}

func TestFilterNew_Idempotent(t *testing.T) {
	store := newMemStore()
	f := newTestFilter(store, "2026-01-05")

	keyFn := func(s string) string { return Key(s) }

	fresh, err := FilterNew(f, []string{"a", "b", "a"}, "test", keyFn)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	// Duplicate within one batch is admitted once.
	if len(fresh) != 2 {
		t.Fatalf("got %d fresh, want 2", len(fresh))
	}

	fresh, err = FilterNew(f, []string{"a", "b", "c"}, "test", keyFn)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 1 || fresh[0] != "c" {
		t.Fatalf("second pass: got %v, want [c]", fresh)
	}
}

func TestFilterNew_DailyReset(t *testing.T) {
	store := newMemStore()
	keyFn := func(s string) string { return Key(s) }

	day1 := newTestFilter(store, "2026-01-05")
	if _, err := FilterNew(day1, []string{"a"}, "test", keyFn); err != nil {
		t.Fatalf("FilterNew: %v", err)
	}

	day2 := newTestFilter(store, "2026-01-06")
	fresh, err := FilterNew(day2, []string{"a"}, "test", keyFn)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 1 {
		t.Error("a new date must reset the seen set")
	}
	if store.states["test"].Date != "2026-01-06" {
		t.Errorf("persisted date = %q, want 2026-01-06", store.states["test"].Date)
	}
}

func TestFilterNew_SavesEvenWhenNothingNew(t *testing.T) {
	store := newMemStore()
	f := newTestFilter(store, "2026-01-05")
	keyFn := func(s string) string { return Key(s) }

	if _, err := FilterNew(f, []string{"a"}, "test", keyFn); err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	store.states["test"] = SeenState{Date: "2026-01-04", Seen: store.states["test"].Seen}

	if _, err := FilterNew(f, nil, "test", keyFn); err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if store.states["test"].Date != "2026-01-05" {
		t.Error("the date reset itself must be persisted even with no candidates")
	}
}

func TestFilterNew_NamespaceIsolation(t *testing.T) {
	store := newMemStore()
	f := newTestFilter(store, "2026-01-05")
	keyFn := func(s string) string { return Key(s) }

	if _, err := FilterNew(f, []string{"a"}, "ns1", keyFn); err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	fresh, err := FilterNew(f, []string{"a"}, "ns2", keyFn)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 1 {
		t.Error("namespaces must not share seen sets")
	}
}

func TestStage_CommitDeferred(t *testing.T) {
	store := newMemStore()
	f := newTestFilter(store, "2026-01-05")
	keyFn := func(s string) string { return Key(s) }

	fresh, commit, err := Stage(f, []string{"a", "b"}, "test", keyFn)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("got %d fresh, want 2", len(fresh))
	}

	// Nothing persisted before commit: a re-stage sees the batch again.
	if _, ok := store.states["test"]; ok {
		t.Fatal("seen set persisted before commit")
	}
	fresh, _, err = Stage(f, []string{"a", "b"}, "test", keyFn)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if len(fresh) != 2 {
		t.Errorf("uncommitted stage must leave the batch eligible, got %d", len(fresh))
	}

	if err := commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	fresh, err = FilterNew(f, []string{"a", "b"}, "test", keyFn)
	if err != nil {
		t.Fatalf("FilterNew: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("committed keys must be suppressed, got %v", fresh)
	}
}

func TestFilterNew_LoadError(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("boom")
	f := newTestFilter(store, "2026-01-05")

	if _, err := FilterNew(f, []string{"a"}, "test", func(s string) string { return s }); err == nil {
		t.Error("expected load error to propagate")
	}
}

func TestLoadSaveValue(t *testing.T) {
	store := newMemStore()
	f := newTestFilter(store, "2026-01-05")

	v, err := f.LoadValue("signal")
	if err != nil {
		t.Fatalf("LoadValue: %v", err)
	}
	if v != "" {
		t.Errorf("missing namespace should yield empty, got %q", v)
	}

	if err := f.SaveValue("signal", "ON"); err != nil {
		t.Fatalf("SaveValue: %v", err)
	}
	v, err = f.LoadValue("signal")
	if err != nil {
		t.Fatalf("LoadValue: %v", err)
	}
	if v != "ON" {
		t.Errorf("got %q, want ON", v)
	}
}
