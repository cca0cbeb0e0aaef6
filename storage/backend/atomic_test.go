package backend_test

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/marmot/storage/backend"
	"github.com/jrife/marmot/storage/kv"
)

func TestAtomicStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openAtomic(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if ok, err := store.Exists(ctx, "a"); err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%t, %#v)", ok, err)
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "1" {
		t.Fatalf("expected to read %q, got %#v", "1", result)
	}

	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if result := store.Read(ctx, "a"); result.Status != backend.StatusAbsent {
		t.Fatalf("expected status to be StatusAbsent, got %d", result.Status)
	}

	// removing an absent key is a harmless no-op
	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestAtomicStoreList(t *testing.T) {
	ctx := context.Background()
	store := openAtomic(t, backend.Config{Transport: kv.NewMemoryTransport(), Codec: &corruptibleCodec{}})
	defer store.Close()

	for _, key := range []string{"a", "b", "c", "bad-key"} {
		if err := store.Set(ctx, key, "1"); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	if err := store.Remove(ctx, "c"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	keys, err := store.List(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	listed := []string{}

	for _, key := range keys {
		listed = append(listed, key.(string))
	}

	sort.Strings(listed)

	// removed keys are gone and undecodable keys are dropped
	if diff := cmp.Diff([]string{"a", "b"}, listed); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	transport := kv.NewMemoryTransport()
	content := openContent(t, backend.Config{Transport: transport})
	defer content.Close()
	atomic := openAtomic(t, backend.Config{Transport: transport})
	defer atomic.Close()

	hash, err := content.Add(ctx, "immutable")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// the same raw key through the atomic store must not interfere
	// with the content entry
	if err := atomic.Set(ctx, hash, "mutable"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := atomic.Remove(ctx, hash); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if result := content.Read(ctx, hash); !result.Found() || result.Value != "immutable" {
		t.Fatalf("expected to read %q, got %#v", "immutable", result)
	}
}

func TestTestAndSet(t *testing.T) {
	ctx := context.Background()
	store := openAtomic(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	committed, err := store.TestAndSet(ctx, "a", "1", "2")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !committed {
		t.Fatalf("expected the update to commit")
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "2" {
		t.Fatalf("expected to read %q, got %#v", "2", result)
	}

	// a stale test must fail cleanly and leave the store unchanged
	committed, err = store.TestAndSet(ctx, "a", "1", "3")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if committed {
		t.Fatalf("expected the update to be rejected")
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "2" {
		t.Fatalf("expected to read %q, got %#v", "2", result)
	}
}

func TestTestAndSetAbsent(t *testing.T) {
	ctx := context.Background()
	store := openAtomic(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	// test = nil succeeds only when the key is absent
	if committed, err := store.TestAndSet(ctx, "a", nil, "1"); err != nil || !committed {
		t.Fatalf("expected (true, nil), got (%t, %#v)", committed, err)
	}

	if committed, err := store.TestAndSet(ctx, "a", nil, "2"); err != nil || committed {
		t.Fatalf("expected (false, nil), got (%t, %#v)", committed, err)
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "1" {
		t.Fatalf("expected to read %q, got %#v", "1", result)
	}

	// set = nil deletes the key
	if committed, err := store.TestAndSet(ctx, "a", "1", nil); err != nil || !committed {
		t.Fatalf("expected (true, nil), got (%t, %#v)", committed, err)
	}

	if result := store.Read(ctx, "a"); result.Status != backend.StatusAbsent {
		t.Fatalf("expected status to be StatusAbsent, got %d", result.Status)
	}

	// testing against an absent key with a value must fail
	if committed, err := store.TestAndSet(ctx, "a", "1", "2"); err != nil || committed {
		t.Fatalf("expected (false, nil), got (%t, %#v)", committed, err)
	}
}

func TestTestAndSetConflict(t *testing.T) {
	ctx := context.Background()
	transport := kv.NewMemoryTransport()
	hooked := &hookedTransport{Transport: transport}
	store := openAtomic(t, backend.Config{Transport: hooked})
	defer store.Close()
	intruder := openAtomic(t, backend.Config{Transport: transport})
	defer intruder.Close()

	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// another writer slips in between lock and commit
	hooked.afterLock = func() {
		hooked.afterLock = nil

		if err := intruder.Set(ctx, "a", "9"); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	committed, err := store.TestAndSet(ctx, "a", "1", "2")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if committed {
		t.Fatalf("expected the update to abort on conflict")
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "9" {
		t.Fatalf("expected to read %q, got %#v", "9", result)
	}
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := openAtomic(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	if err := store.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "1" {
		t.Fatalf("expected to read %q, got %#v", "1", result)
	}

	if committed, err := store.TestAndSet(ctx, "a", "1", "2"); err != nil || !committed {
		t.Fatalf("expected (true, nil), got (%t, %#v)", committed, err)
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "2" {
		t.Fatalf("expected to read %q, got %#v", "2", result)
	}

	if committed, err := store.TestAndSet(ctx, "a", "1", "3"); err != nil || committed {
		t.Fatalf("expected (false, nil), got (%t, %#v)", committed, err)
	}

	if result := store.Read(ctx, "a"); !result.Found() || result.Value != "2" {
		t.Fatalf("expected to read %q, got %#v", "2", result)
	}

	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if result := store.Read(ctx, "a"); result.Status != backend.StatusAbsent {
		t.Fatalf("expected status to be StatusAbsent, got %d", result.Status)
	}

	keys, err := store.List(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if len(keys) != 0 {
		t.Fatalf("expected no keys, got %#v", keys)
	}
}
