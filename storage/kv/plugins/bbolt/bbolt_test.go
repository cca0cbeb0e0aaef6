package bbolt_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/marmot/storage/kv/plugins/bbolt"
	"github.com/jrife/marmot/utils/uuid"
)

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	path := fmt.Sprintf("%s/bbolt-%s", os.TempDir(), uuid.MustUUID())

	defer os.RemoveAll(path)

	transport, err := bbolt.New(bbolt.BBoltTransportConfig{Path: path})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	conn, err := transport.Connect(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := conn.Set(ctx, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := transport.Close(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// data written through one transport instance survives a reopen
	transport, err = bbolt.New(bbolt.BBoltTransportConfig{Path: path})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	defer transport.Close()

	conn, err = transport.Connect(ctx)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	defer conn.Close()

	value, err := conn.Get(ctx, []byte("a"))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]byte("1"), value); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
}
