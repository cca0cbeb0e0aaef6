// Package kv defines the transport contract that storage backends are
// built on: a minimal command set over a remote or embedded key-value
// service.
//
// A transport is deliberately coarse. It knows nothing about namespaces,
// content addressing, or change notification; those are layered on top by
// the backend package. The command set is:
//
//   - Exists/Get/Set/Delete: single-key operations
//   - Scan: enumerate keys under a prefix
//   - Lock/Unlock: begin or cancel an optimistic watch on a key
//   - Begin/Txn.Commit: queue a group of commands and submit them
//
// A transaction opened while the connection holds an optimistic lock
// commits only if none of the locked keys were modified since Lock was
// called; otherwise Commit returns ErrConflict and none of the queued
// commands take effect. Any write to a locked key counts as a
// modification, including a delete or a write of an identical value. A
// transaction opened with no outstanding lock is a plain command group:
// a write-combining hint with no conflict detection and no rollback.
//
// Each connection executes commands strictly sequentially. Callers must
// not issue a command on a connection while another command on that
// connection is in flight; in particular the lock, read, transaction,
// commit sequence used for conditional updates must run uninterrupted on
// one connection because locks are connection-scoped.
//
// Drivers live under plugins. A kv plugin is a factory for transport
// instances; multiple connections from one transport share the same
// underlying key space.
package kv
