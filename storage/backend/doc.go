// Package backend implements the storage backends consumed by the
// versioned database layer: a content-addressable store for immutable
// values keyed by their hash, and an atomic-write store for mutable
// references with change notification and a compare-and-swap primitive.
//
// Both stores are thin layers over a kv transport. Each store handle
// owns one transport connection and a namespace prefix; handles sharing
// one physical transport are isolated from each other only by their
// prefixes, which is sufficient because prefixed keys cannot collide.
//
// Reads return a tagged ReadResult instead of collapsing every failure
// to absence: a missing key, an undecodable value, and an unreachable
// transport are distinct outcomes and the consuming layer decides which
// of them it treats as equivalent.
package backend
