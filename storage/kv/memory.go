package kv

import (
	"context"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
)

var _ Transport = (*MemoryTransport)(nil)

// MemoryTransport is an in-memory implementation of Transport. It keeps
// the key space in a sorted map and a version counter per key to drive
// optimistic lock conflict detection. It is primarily meant for tests
// and embedded use.
type MemoryTransport struct {
	mu       sync.Mutex
	entries  *treemap.Map
	versions map[string]uint64
	closed   bool
}

// NewMemoryTransport creates an empty in-memory transport
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		entries:  treemap.NewWithStringComparator(),
		versions: make(map[string]uint64),
	}
}

// Connect implements Transport.Connect
func (transport *MemoryTransport) Connect(ctx context.Context) (Conn, error) {
	transport.mu.Lock()
	defer transport.mu.Unlock()

	if transport.closed {
		return nil, ErrClosed
	}

	return &memoryConn{transport: transport, locks: make(map[string]uint64)}, nil
}

// Close implements Transport.Close
func (transport *MemoryTransport) Close() error {
	transport.mu.Lock()
	defer transport.mu.Unlock()

	transport.closed = true

	return nil
}

func (transport *MemoryTransport) set(key []byte, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)

	transport.entries.Put(string(key), v)
	transport.versions[string(key)]++
}

func (transport *MemoryTransport) delete(key []byte) {
	if _, ok := transport.entries.Get(string(key)); !ok {
		return
	}

	transport.entries.Remove(string(key))
	transport.versions[string(key)]++
}

var _ Conn = (*memoryConn)(nil)

type memoryConn struct {
	transport *MemoryTransport
	locks     map[string]uint64
	closed    bool
}

func (conn *memoryConn) enter() error {
	if conn.closed || conn.transport.closed {
		return ErrClosed
	}

	return nil
}

// Exists implements Conn.Exists
func (conn *memoryConn) Exists(ctx context.Context, key []byte) (bool, error) {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return false, err
	}

	_, ok := conn.transport.entries.Get(string(key))

	return ok, nil
}

// Get implements Conn.Get
func (conn *memoryConn) Get(ctx context.Context, key []byte) ([]byte, error) {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return nil, err
	}

	value, ok := conn.transport.entries.Get(string(key))

	if !ok {
		return nil, ErrNotFound
	}

	v := make([]byte, len(value.([]byte)))
	copy(v, value.([]byte))

	return v, nil
}

// Set implements Conn.Set
func (conn *memoryConn) Set(ctx context.Context, key []byte, value []byte) error {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return err
	}

	conn.transport.set(key, value)

	return nil
}

// Delete implements Conn.Delete
func (conn *memoryConn) Delete(ctx context.Context, key []byte) error {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return err
	}

	conn.transport.delete(key)

	return nil
}

// Scan implements Conn.Scan
func (conn *memoryConn) Scan(ctx context.Context, prefix []byte) ([][]byte, error) {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return nil, err
	}

	keys := [][]byte{}
	iter := conn.transport.entries.Iterator()

	for iter.Next() {
		key := iter.Key().(string)

		if strings.HasPrefix(key, string(prefix)) {
			keys = append(keys, []byte(key))
		}
	}

	return keys, nil
}

// Lock implements Conn.Lock
func (conn *memoryConn) Lock(ctx context.Context, key []byte) error {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return err
	}

	conn.locks[string(key)] = conn.transport.versions[string(key)]

	return nil
}

// Unlock implements Conn.Unlock
func (conn *memoryConn) Unlock(ctx context.Context, key []byte) error {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	if err := conn.enter(); err != nil {
		return err
	}

	delete(conn.locks, string(key))

	return nil
}

// Begin implements Conn.Begin
func (conn *memoryConn) Begin() Txn {
	return &memoryTxn{conn: conn}
}

// Close implements Conn.Close
func (conn *memoryConn) Close() error {
	conn.transport.mu.Lock()
	defer conn.transport.mu.Unlock()

	conn.closed = true
	conn.locks = make(map[string]uint64)

	return nil
}

type memoryCommand struct {
	delete bool
	key    []byte
	value  []byte
}

var _ Txn = (*memoryTxn)(nil)

type memoryTxn struct {
	conn     *memoryConn
	commands []memoryCommand
}

// Set implements Txn.Set
func (txn *memoryTxn) Set(key []byte, value []byte) {
	txn.commands = append(txn.commands, memoryCommand{key: key, value: value})
}

// Delete implements Txn.Delete
func (txn *memoryTxn) Delete(key []byte) {
	txn.commands = append(txn.commands, memoryCommand{delete: true, key: key})
}

// Commit implements Txn.Commit
func (txn *memoryTxn) Commit(ctx context.Context) error {
	txn.conn.transport.mu.Lock()
	defer txn.conn.transport.mu.Unlock()

	if err := txn.conn.enter(); err != nil {
		return err
	}

	locks := txn.conn.locks
	txn.conn.locks = make(map[string]uint64)

	for key, version := range locks {
		if txn.conn.transport.versions[key] != version {
			return ErrConflict
		}
	}

	for _, command := range txn.commands {
		if command.delete {
			txn.conn.transport.delete(command.key)
		} else {
			txn.conn.transport.set(command.key, command.value)
		}
	}

	return nil
}
