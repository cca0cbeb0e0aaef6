package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates that the requested key does not exist
	ErrNotFound = errors.New("key does not exist")
	// ErrConflict indicates that a transaction was aborted because one
	// of the keys locked on its connection was modified between Lock
	// and Commit. It is a normal outcome of optimistic concurrency
	// control, not a transport fault.
	ErrConflict = errors.New("transaction aborted: locked key was modified")
	// ErrClosed indicates that the transport or connection was closed
	ErrClosed = errors.New("transport was closed")
)

// PluginOptions is a generic bag of driver-specific options
type PluginOptions map[string]interface{}

// Plugin represents a kv transport driver
type Plugin interface {
	// Name returns the name of the driver
	Name() string
	// NewTransport returns a transport instance configured
	// from options
	NewTransport(options PluginOptions) (Transport, error)
	// NewTempTransport returns a transport instance initialized
	// with some sane defaults. It is meant for tests that need an
	// instance of the driver's transport without knowing how to
	// configure it. Drivers that require external infrastructure
	// may return an error here; conformance tests skip them.
	NewTempTransport() (Transport, error)
}

// Transport is a handle to a key-value service. Multiple connections
// obtained from one transport observe the same key space.
type Transport interface {
	// Connect establishes a connection. The caller owns the returned
	// connection and must close it when done.
	Connect(ctx context.Context) (Conn, error)
	// Close closes the transport. Connections obtained from this
	// transport must not be used after Close returns. Operations on
	// them return ErrClosed.
	Close() error
}

// Conn is a single connection to the key-value service. A connection
// executes at most one command at a time and must only be used by one
// goroutine at a time. Optimistic locks taken with Lock are scoped to
// the connection that took them.
type Conn interface {
	// Exists reports whether key exists
	Exists(ctx context.Context, key []byte) (bool, error)
	// Get returns the value stored at key. It returns ErrNotFound
	// if the key does not exist.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Set stores value at key, overwriting any existing value
	Set(ctx context.Context, key []byte, value []byte) error
	// Delete removes key. Deleting an absent key has no effect and
	// returns nil.
	Delete(ctx context.Context, key []byte) error
	// Scan returns all keys that start with prefix. Order is
	// unspecified.
	Scan(ctx context.Context, prefix []byte) ([][]byte, error)
	// Lock begins an optimistic watch on key. A transaction committed
	// on this connection afterwards aborts with ErrConflict if key is
	// modified before the commit. Lock does not block other writers.
	Lock(ctx context.Context, key []byte) error
	// Unlock cancels the optimistic watch on key. Unlocking a key
	// that is not locked has no effect.
	Unlock(ctx context.Context, key []byte) error
	// Begin returns a new transaction builder for this connection.
	// Commands queued on it are not visible until Commit.
	Begin() Txn
	// Close releases the connection. Locks held by the connection
	// are released.
	Close() error
}

// Txn is a queue of commands submitted atomically with respect to the
// optimistic locks held by its connection. It must only be used by one
// goroutine at a time and is invalid after Commit returns.
type Txn interface {
	// Set queues an upsert of key to value
	Set(key []byte, value []byte)
	// Delete queues a removal of key
	Delete(key []byte)
	// Commit submits the queued commands. If the connection holds
	// optimistic locks and any locked key was modified since Lock,
	// Commit returns ErrConflict and no queued command takes effect.
	// Commit releases the connection's locks whether it succeeds or
	// aborts.
	Commit(ctx context.Context) error
}
