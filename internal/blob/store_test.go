package blob

import (
	"errors"
	"testing"
)

// storeImpls enumerates the Store implementations under test.
func storeImpls(t *testing.T) map[string]Store {
	t.Helper()

	fsStore, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystemStore() error = %v", err)
	}

	return map[string]Store{
		"filesystem": fsStore,
		"memory":     NewMemoryStore(),
	}
}

func TestStore_PutGet(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("user1", "pack1", "source1", "chunks.json")

			if err := store.Put(key, []byte("first")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := store.Get(key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != "first" {
				t.Errorf("Get() = %q, want %q", got, "first")
			}

			// Put replaces wholesale.
			if err := store.Put(key, []byte("second")); err != nil {
				t.Fatalf("Put() overwrite error = %v", err)
			}
			got, err = store.Get(key)
			if err != nil {
				t.Fatalf("Get() after overwrite error = %v", err)
			}
			if string(got) != "second" {
				t.Errorf("Get() after overwrite = %q, want %q", got, "second")
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(Key("user1", "pack1", "nope"))
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_EmptyBlob(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("user1", "pack1", "empty")
			if err := store.Put(key, nil); err != nil {
				t.Fatalf("Put(nil) error = %v", err)
			}
			got, err := store.Get(key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Get() = %q, want empty", got)
			}
		})
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	key := Key("u", "p", "s")

	if err := store.Put(key, []byte("immutable")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, _ := store.Get(key)
	got[0] = 'X'

	again, _ := store.Get(key)
	if string(again) != "immutable" {
		t.Errorf("stored blob mutated through a returned slice: %q", again)
	}
}

func TestKey(t *testing.T) {
	if got := Key("u", "p", "s", "chunks.json"); got != "u/p/s/chunks.json" {
		t.Errorf("Key() = %q", got)
	}
}
