package session

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewStore(path)

	saved := &State{
		Identity: "sensor-1-9f2c1e7a",
		LastHost: "broker.local",
		LastPort: 7110,
		Topics:   []string{"metrics", "alerts"},
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for an existing state file")
	}

	if loaded.Identity != saved.Identity {
		t.Errorf("Identity = %q, want %q", loaded.Identity, saved.Identity)
	}
	if loaded.LastHost != "broker.local" || loaded.LastPort != 7110 {
		t.Errorf("endpoint = %s:%d, want broker.local:7110", loaded.LastHost, loaded.LastPort)
	}
	if !reflect.DeepEqual(loaded.Topics, saved.Topics) {
		t.Errorf("Topics = %v, want %v", loaded.Topics, saved.Topics)
	}
	if loaded.Version != StateVersion {
		t.Errorf("Version = %d, want %d", loaded.Version, StateVersion)
	}
	if loaded.SavedAt.IsZero() {
		t.Error("SavedAt was not stamped on save")
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state != nil {
		t.Errorf("Load of missing file = %+v, want nil", state)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewStore(path)

	if err := store.Save(&State{Identity: "x"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	// Idempotent.
	if err := store.Clear(); err != nil {
		t.Errorf("second Clear = %v, want nil", err)
	}

	state, err := store.Load()
	if err != nil || state != nil {
		t.Errorf("Load after Clear = %+v, %v; want nil, nil", state, err)
	}
}
