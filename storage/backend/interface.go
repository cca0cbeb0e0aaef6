package backend

import (
	"context"

	"github.com/jrife/marmot/storage/codec"
	"github.com/jrife/marmot/storage/kv"
	"go.uber.org/zap"
)

// Config contains configuration shared by both store kinds
type Config struct {
	// Root is an optional prefix segment prepended to every namespace
	// under this handle, separating unrelated logical databases that
	// share one physical transport.
	Root string
	// Transport is the kv service the store is backed by. Required.
	Transport kv.Transport
	// Codec encodes and decodes keys and values. Defaults to
	// codec.Raw.
	Codec codec.Codec
	// Logger defaults to the global zap logger
	Logger *zap.Logger
}

// ReadStatus tags the outcome of a read
type ReadStatus int

const (
	// StatusFound means the key exists and its value was decoded
	StatusFound ReadStatus = iota
	// StatusAbsent means the key does not exist
	StatusAbsent
	// StatusUnreadable means the key exists but its value could not
	// be decoded
	StatusUnreadable
	// StatusUnavailable means the transport could not be reached, so
	// nothing is known about the key
	StatusUnavailable
)

// ReadResult is the outcome of a read. Value is set only when Status
// is StatusFound. Err carries detail for StatusUnreadable and
// StatusUnavailable.
type ReadResult struct {
	Status ReadStatus
	Value  interface{}
	Err    error
}

// Found reports whether the read produced a value
func (result ReadResult) Found() bool {
	return result.Status == StatusFound
}

// ContentStore is a write-once store of immutable values keyed by the
// hash of their canonical encoding
type ContentStore interface {
	// Exists reports whether a value with this hash was stored
	Exists(ctx context.Context, hash codec.Hash) (bool, error)
	// Read returns the value stored under hash
	Read(ctx context.Context, hash codec.Hash) ReadResult
	// Add stores value under the hash of its encoding and returns
	// that hash. Adding an equal value twice writes the same entry
	// twice; the operation is idempotent.
	Add(ctx context.Context, value interface{}) (codec.Hash, error)
	// Batch runs fn with a writer that queues adds into a single
	// transport command group. The group is purely a write-combining
	// hint: it provides no rollback, and it is committed even when fn
	// returns an error, so fn must only queue operations that are
	// individually idempotent.
	Batch(ctx context.Context, fn func(batch BatchWriter) error) error
	// Close releases the store's connection
	Close() error
}

// BatchWriter queues adds inside a Batch call
type BatchWriter interface {
	// Add queues a write of value and returns its hash. The write is
	// not visible until Batch commits the group.
	Add(value interface{}) (codec.Hash, error)
}

// Subscription identifies a registered watch callback
type Subscription uint64

// Event describes a confirmed mutation of one key. Value is nil when
// the key was removed.
type Event struct {
	Key   interface{}
	Value interface{}
}

// WatchFunc is a watch callback. Callbacks run synchronously on the
// goroutine that performed the mutation, in registration order, with
// no isolation between them: a callback that blocks delays the
// mutating caller and every callback registered after it.
type WatchFunc func(event Event)

// AtomicStore is a mutable key-value store with change notification
// and an optimistic compare-and-swap primitive
type AtomicStore interface {
	// Exists reports whether key exists
	Exists(ctx context.Context, key interface{}) (bool, error)
	// Read returns the value stored at key
	Read(ctx context.Context, key interface{}) ReadResult
	// List returns the keys stored under this handle's namespace.
	// Keys that cannot be decoded are dropped. Order is unspecified.
	List(ctx context.Context) ([]interface{}, error)
	// Set unconditionally stores value at key and notifies watchers
	// once the write is confirmed
	Set(ctx context.Context, key interface{}, value interface{}) error
	// Remove unconditionally deletes key and notifies watchers once
	// the deletion is confirmed. Removing an absent key is a no-op
	// at the data level but still notifies watchers.
	Remove(ctx context.Context, key interface{}) error
	// TestAndSet replaces the value at key with set if the current
	// value equals test, comparing canonical encodings. nil stands
	// for absence on both sides: test = nil succeeds only if the key
	// does not exist, set = nil deletes the key. It returns false
	// without modifying anything if the test fails or another writer
	// modified key concurrently; conflict is a normal outcome, not an
	// error. No internal retry is performed.
	TestAndSet(ctx context.Context, key interface{}, test interface{}, set interface{}) (bool, error)
	// WatchKey registers fn to be called on every confirmed mutation
	// of key
	WatchKey(key interface{}, fn WatchFunc) (Subscription, error)
	// WatchAll registers fn to be called on every confirmed mutation
	// of any key, after that key's own watchers
	WatchAll(fn WatchFunc) Subscription
	// Unwatch removes a subscription. It has no effect if the
	// subscription was already removed.
	Unwatch(sub Subscription)
	// Close releases the store's connection and drops all
	// subscriptions
	Close() error
}
