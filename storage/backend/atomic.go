package backend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jrife/marmot/storage/kv"
	"github.com/jrife/marmot/utils/log"
	"go.uber.org/zap"
)

// AtomicNamespace is the namespace segment for atomic-write stores
const AtomicNamespace = "data"

var _ AtomicStore = (*atomicStore)(nil)

type atomicStore struct {
	helper  *helper
	watcher *watcher
	logger  *zap.Logger
}

// NewAtomicStore opens an atomic-write store on the transport under
// the "data" namespace. The store owns its watch registry: it is
// created here and discarded with the handle.
func NewAtomicStore(ctx context.Context, config Config) (AtomicStore, error) {
	h, err := openHelper(ctx, AtomicNamespace, config)

	if err != nil {
		return nil, err
	}

	return &atomicStore{
		helper:  h,
		watcher: newWatcher(),
		logger:  h.logger.With(zap.String("store", "atomic"), zap.ByteString("prefix", h.prefix)),
	}, nil
}

// Exists implements AtomicStore.Exists
func (store *atomicStore) Exists(ctx context.Context, key interface{}) (bool, error) {
	return store.helper.exists(ctx, key)
}

// Read implements AtomicStore.Read
func (store *atomicStore) Read(ctx context.Context, key interface{}) ReadResult {
	return store.helper.read(ctx, key)
}

// List implements AtomicStore.List
func (store *atomicStore) List(ctx context.Context) ([]interface{}, error) {
	raws, err := store.helper.conn.Scan(ctx, store.helper.prefix)

	if err != nil {
		return nil, wrapError("could not scan keys", err)
	}

	keys := []interface{}{}

	for _, raw := range raws {
		key, err := store.helper.codec.DecodeKey(raw[len(store.helper.prefix):])

		if err != nil {
			// an undecodable key is dropped rather than failing the
			// whole enumeration
			store.logger.Debug("dropped undecodable key", zap.ByteString("key", raw), zap.Error(err))

			continue
		}

		keys = append(keys, key)
	}

	return keys, nil
}

// Set implements AtomicStore.Set
func (store *atomicStore) Set(ctx context.Context, key interface{}, value interface{}) error {
	logger := log.WithContext(ctx, store.logger).With(zap.String("operation", "Set"))

	encodedKey, raw, err := store.keys(key)

	if err != nil {
		return err
	}

	encodedValue, err := store.helper.codec.EncodeValue(value)

	if err != nil {
		return fmt.Errorf("could not encode value: %s", err.Error())
	}

	if err := store.helper.conn.Set(ctx, raw, encodedValue); err != nil {
		err = wrapError("could not set key", err)

		logger.Debug("error", zap.Error(err))

		return err
	}

	store.watcher.notify(encodedKey, Event{Key: key, Value: value})

	return nil
}

// Remove implements AtomicStore.Remove
func (store *atomicStore) Remove(ctx context.Context, key interface{}) error {
	logger := log.WithContext(ctx, store.logger).With(zap.String("operation", "Remove"))

	encodedKey, raw, err := store.keys(key)

	if err != nil {
		return err
	}

	if err := store.helper.conn.Delete(ctx, raw); err != nil {
		err = wrapError("could not delete key", err)

		logger.Debug("error", zap.Error(err))

		return err
	}

	store.watcher.notify(encodedKey, Event{Key: key})

	return nil
}

// TestAndSet implements AtomicStore.TestAndSet.
//
// The lock, read, transaction, commit sequence runs uninterrupted on
// the handle's own connection: optimistic locks are connection-scoped
// at the transport, so no other command may be issued on the
// connection in between.
func (store *atomicStore) TestAndSet(ctx context.Context, key interface{}, test interface{}, set interface{}) (bool, error) {
	logger := log.WithContext(ctx, store.logger).With(zap.String("operation", "TestAndSet"))

	encodedKey, raw, err := store.keys(key)

	if err != nil {
		return false, err
	}

	// encode before taking the lock so an encoding failure cannot
	// leave a lock behind
	var encodedTest, encodedSet []byte

	if test != nil {
		if encodedTest, err = store.helper.codec.EncodeValue(test); err != nil {
			return false, fmt.Errorf("could not encode test value: %s", err.Error())
		}
	}

	if set != nil {
		if encodedSet, err = store.helper.codec.EncodeValue(set); err != nil {
			return false, fmt.Errorf("could not encode set value: %s", err.Error())
		}
	}

	conn := store.helper.conn

	if err := conn.Lock(ctx, raw); err != nil {
		return false, wrapError("could not lock key", err)
	}

	current, err := conn.Get(ctx, raw)

	if err != nil && err != kv.ErrNotFound {
		conn.Unlock(ctx, raw)

		return false, wrapError("could not get key", err)
	}

	if !optionEqual(test != nil, encodedTest, err != kv.ErrNotFound, current) {
		if err := conn.Unlock(ctx, raw); err != nil {
			return false, wrapError("could not unlock key", err)
		}

		logger.Debug("test mismatch")

		return false, nil
	}

	txn := conn.Begin()

	if set == nil {
		txn.Delete(raw)
	} else {
		txn.Set(raw, encodedSet)
	}

	if err := txn.Commit(ctx); err != nil {
		if err == kv.ErrConflict {
			// another writer modified the key between lock and
			// commit. Contention is data, not a fault: the caller
			// owns any retry loop.
			logger.Debug("conflict")

			return false, nil
		}

		return false, wrapError("could not commit", err)
	}

	store.watcher.notify(encodedKey, Event{Key: key, Value: set})

	return true, nil
}

// WatchKey implements AtomicStore.WatchKey
func (store *atomicStore) WatchKey(key interface{}, fn WatchFunc) (Subscription, error) {
	encodedKey, err := store.helper.encodeKey(key)

	if err != nil {
		return 0, err
	}

	return store.watcher.watchKey(encodedKey, fn), nil
}

// WatchAll implements AtomicStore.WatchAll
func (store *atomicStore) WatchAll(fn WatchFunc) Subscription {
	return store.watcher.watchAll(fn)
}

// Unwatch implements AtomicStore.Unwatch
func (store *atomicStore) Unwatch(sub Subscription) {
	store.watcher.unwatch(sub)
}

// Close implements AtomicStore.Close
func (store *atomicStore) Close() error {
	return store.helper.close()
}

func (store *atomicStore) keys(key interface{}) ([]byte, []byte, error) {
	encodedKey, err := store.helper.encodeKey(key)

	if err != nil {
		return nil, nil, err
	}

	raw := make([]byte, 0, len(store.helper.prefix)+len(encodedKey))
	raw = append(raw, store.helper.prefix...)
	raw = append(raw, encodedKey...)

	return encodedKey, raw, nil
}

// optionEqual compares two optional encoded values: both absent, or
// both present with equal encodings
func optionEqual(aPresent bool, a []byte, bPresent bool, b []byte) bool {
	if aPresent != bPresent {
		return false
	}

	return !aPresent || bytes.Equal(a, b)
}
