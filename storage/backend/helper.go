package backend

import (
	"context"
	"fmt"

	"github.com/jrife/marmot/storage/codec"
	"github.com/jrife/marmot/storage/kv"
	"go.uber.org/zap"
)

// helper holds what both store kinds share: a namespace prefix, the
// connection the handle owns, and the codec.
type helper struct {
	prefix []byte
	conn   kv.Conn
	codec  codec.Codec
	logger *zap.Logger
}

// openHelper computes the effective namespace prefix, establishes the
// handle's connection and fills in config defaults. sub is the store
// kind's namespace segment.
func openHelper(ctx context.Context, sub string, config Config) (*helper, error) {
	if config.Transport == nil {
		return nil, fmt.Errorf("no transport was configured")
	}

	h := &helper{
		codec:  config.Codec,
		logger: config.Logger,
	}

	if h.codec == nil {
		h.codec = &codec.Raw{}
	}

	if h.logger == nil {
		h.logger = zap.L()
	}

	prefix := sub + ":"

	if config.Root != "" {
		prefix = config.Root + ":" + prefix
	}

	h.prefix = []byte(prefix)

	conn, err := config.Transport.Connect(ctx)

	if err != nil {
		return nil, wrapError("could not connect to transport", err)
	}

	h.conn = conn

	return h, nil
}

// encodeKey returns the encoded form of key without the namespace
// prefix. It is the identity watchers are registered under.
func (h *helper) encodeKey(key interface{}) ([]byte, error) {
	encoded, err := h.codec.EncodeKey(key)

	if err != nil {
		return nil, fmt.Errorf("could not encode key: %s", err.Error())
	}

	return encoded, nil
}

// rawKey returns the transport key for key: the namespace prefix
// followed by the encoded key.
func (h *helper) rawKey(key interface{}) ([]byte, error) {
	encoded, err := h.encodeKey(key)

	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, len(h.prefix)+len(encoded))
	raw = append(raw, h.prefix...)
	raw = append(raw, encoded...)

	return raw, nil
}

func (h *helper) exists(ctx context.Context, key interface{}) (bool, error) {
	raw, err := h.rawKey(key)

	if err != nil {
		return false, err
	}

	ok, err := h.conn.Exists(ctx, raw)

	if err != nil {
		return false, wrapError("could not check key existence", err)
	}

	return ok, nil
}

func (h *helper) read(ctx context.Context, key interface{}) ReadResult {
	raw, err := h.rawKey(key)

	if err != nil {
		return ReadResult{Status: StatusUnreadable, Err: err}
	}

	data, err := h.conn.Get(ctx, raw)

	if err == kv.ErrNotFound {
		return ReadResult{Status: StatusAbsent}
	}

	if err != nil {
		return ReadResult{Status: StatusUnavailable, Err: wrapError("could not get key", err)}
	}

	value, err := h.codec.DecodeValue(data)

	if err != nil {
		return ReadResult{Status: StatusUnreadable, Err: fmt.Errorf("could not decode value: %s", err.Error())}
	}

	return ReadResult{Status: StatusFound, Value: value}
}

func (h *helper) close() error {
	return h.conn.Close()
}
