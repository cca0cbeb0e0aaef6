package backend

import (
	"context"
	"fmt"

	"github.com/jrife/marmot/storage/codec"
	"github.com/jrife/marmot/storage/kv"
	"github.com/jrife/marmot/utils/log"
	"go.uber.org/zap"
)

// ContentNamespace is the namespace segment for content-addressable
// stores
const ContentNamespace = "obj"

var _ ContentStore = (*contentStore)(nil)

type contentStore struct {
	helper *helper
	logger *zap.Logger
}

// NewContentStore opens a content-addressable store on the transport
// under the "obj" namespace
func NewContentStore(ctx context.Context, config Config) (ContentStore, error) {
	h, err := openHelper(ctx, ContentNamespace, config)

	if err != nil {
		return nil, err
	}

	return &contentStore{
		helper: h,
		logger: h.logger.With(zap.String("store", "content"), zap.ByteString("prefix", h.prefix)),
	}, nil
}

// Exists implements ContentStore.Exists
func (store *contentStore) Exists(ctx context.Context, hash codec.Hash) (bool, error) {
	return store.helper.exists(ctx, hash)
}

// Read implements ContentStore.Read
func (store *contentStore) Read(ctx context.Context, hash codec.Hash) ReadResult {
	return store.helper.read(ctx, hash)
}

// Add implements ContentStore.Add
func (store *contentStore) Add(ctx context.Context, value interface{}) (codec.Hash, error) {
	logger := log.WithContext(ctx, store.logger).With(zap.String("operation", "Add"))

	raw, encoded, hash, err := store.address(value)

	if err != nil {
		return nil, err
	}

	if err := store.helper.conn.Set(ctx, raw, encoded); err != nil {
		err = wrapError("could not set key", err)

		logger.Debug("error", zap.Error(err))

		return nil, err
	}

	logger.Debug("added value", zap.String("hash", hash.Hex()))

	return hash, nil
}

// Batch implements ContentStore.Batch
func (store *contentStore) Batch(ctx context.Context, fn func(batch BatchWriter) error) error {
	txn := store.helper.conn.Begin()
	fnErr := fn(&contentBatch{store: store, txn: txn})

	// The group is a write-combining hint, not a transaction: queued
	// adds are idempotent, so the commit is issued even when fn fails
	// and nothing is rolled back.
	if err := txn.Commit(ctx); err != nil {
		if fnErr != nil {
			return fnErr
		}

		return wrapError("could not commit batch", err)
	}

	return fnErr
}

// Close implements ContentStore.Close
func (store *contentStore) Close() error {
	return store.helper.close()
}

// address computes the transport key, canonical encoding, and hash
// for value
func (store *contentStore) address(value interface{}) ([]byte, []byte, codec.Hash, error) {
	encoded, err := store.helper.codec.EncodeValue(value)

	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not encode value: %s", err.Error())
	}

	hash := codec.Sum(encoded)
	raw, err := store.helper.rawKey(hash)

	if err != nil {
		return nil, nil, nil, err
	}

	return raw, encoded, hash, nil
}

var _ BatchWriter = (*contentBatch)(nil)

type contentBatch struct {
	store *contentStore
	txn   kv.Txn
}

// Add implements BatchWriter.Add
func (batch *contentBatch) Add(value interface{}) (codec.Hash, error) {
	raw, encoded, hash, err := batch.store.address(value)

	if err != nil {
		return nil, err
	}

	batch.txn.Set(raw, encoded)

	return hash, nil
}
