package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/refacto/internal/storage"
)

func TestKVStore_SetGet(t *testing.T) {
	store := NewKVStore(openTestDB(t))

	if err := store.Set(map[string]string{"score": "91", "arrayOfSuggestions": `[{"score":91}]`}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get("score")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "91" {
		t.Errorf("Get(score) = %q; want 91", got)
	}

	got, _ = store.Get("arrayOfSuggestions")
	if got != `[{"score":91}]` {
		t.Errorf("Get(arrayOfSuggestions) = %q", got)
	}
}

func TestKVStore_Get_NotFound(t *testing.T) {
	store := NewKVStore(openTestDB(t))

	if _, err := store.Get("missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v; want ErrNotFound", err)
	}
}

func TestKVStore_Set_Overwrites(t *testing.T) {
	store := NewKVStore(openTestDB(t))

	store.Set(map[string]string{"score": "10"})
	store.Set(map[string]string{"score": "20"})

	if got, _ := store.Get("score"); got != "20" {
		t.Errorf("Get(score) = %q; want 20", got)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("Keys() = %v; want one key", keys)
	}
}

func TestKVStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refacto.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	db.Migrate()
	NewKVStore(db).Set(map[string]string{"score": "55"})
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()
	db.Migrate()

	if got, err := NewKVStore(db).Get("score"); err != nil || got != "55" {
		t.Errorf("Get(score) after reopen = %q, %v; want 55", got, err)
	}
}
