package backend_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/jrife/marmot/storage/backend"
	"github.com/jrife/marmot/storage/codec"
	"github.com/jrife/marmot/storage/kv"
)

func TestContentStoreAdd(t *testing.T) {
	ctx := context.Background()
	store := openContent(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	hash, err := store.Add(ctx, "some value")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !hash.Equal(codec.Sum([]byte("some value"))) {
		t.Fatalf("expected hash to be derived from the canonical encoding")
	}

	// adding an equal value must produce the same hash
	again, err := store.Add(ctx, "some value")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !hash.Equal(again) {
		t.Fatalf("expected %s, got %s", hash.Hex(), again.Hex())
	}

	if ok, err := store.Exists(ctx, hash); err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%t, %#v)", ok, err)
	}

	if result := store.Read(ctx, hash); !result.Found() || result.Value != "some value" {
		t.Fatalf("expected to read %q, got %#v", "some value", result)
	}
}

func TestContentStoreDistinctValues(t *testing.T) {
	ctx := context.Background()
	store := openContent(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	a, err := store.Add(ctx, "value one")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	b, err := store.Add(ctx, "value two")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if a.Equal(b) {
		t.Fatalf("expected distinct values to produce distinct hashes")
	}

	if result := store.Read(ctx, a); !result.Found() || result.Value != "value one" {
		t.Fatalf("expected to read %q, got %#v", "value one", result)
	}

	if result := store.Read(ctx, b); !result.Found() || result.Value != "value two" {
		t.Fatalf("expected to read %q, got %#v", "value two", result)
	}
}

func TestContentStoreReadAbsent(t *testing.T) {
	ctx := context.Background()
	store := openContent(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	if result := store.Read(ctx, codec.Sum([]byte("never stored"))); result.Status != backend.StatusAbsent {
		t.Fatalf("expected status to be StatusAbsent, got %d", result.Status)
	}
}

func TestContentStoreBatch(t *testing.T) {
	ctx := context.Background()
	store := openContent(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	var a, b codec.Hash

	err := store.Batch(ctx, func(batch backend.BatchWriter) error {
		var err error

		if a, err = batch.Add("batched one"); err != nil {
			return err
		}

		// writes queued in a batch are not visible until the group
		// commits
		if ok, _ := store.Exists(ctx, a); ok {
			t.Fatalf("expected queued add to be invisible before commit")
		}

		b, err = batch.Add("batched two")

		return err
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	for _, hash := range []codec.Hash{a, b} {
		if ok, err := store.Exists(ctx, hash); err != nil || !ok {
			t.Fatalf("expected (true, nil), got (%t, %#v)", ok, err)
		}
	}
}

func TestContentStoreBatchNoRollback(t *testing.T) {
	ctx := context.Background()
	store := openContent(t, backend.Config{Transport: kv.NewMemoryTransport()})
	defer store.Close()

	var hash codec.Hash
	fnErr := fmt.Errorf("something went wrong")

	err := store.Batch(ctx, func(batch backend.BatchWriter) error {
		var err error

		if hash, err = batch.Add("survives failure"); err != nil {
			return err
		}

		return fnErr
	})

	if err != fnErr {
		t.Fatalf("expected err to be the fn error, got %#v", err)
	}

	// the group is committed even when fn fails: queued adds are not
	// rolled back
	if ok, err := store.Exists(ctx, hash); err != nil || !ok {
		t.Fatalf("expected (true, nil), got (%t, %#v)", ok, err)
	}
}
