// Package codec defines how opaque keys and values are translated to
// and from the byte encodings stored at the transport, and the hash
// function that derives content addresses from encoded values.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Codec translates keys and values to and from their canonical byte
// encodings. Encodings must be deterministic: two values that encode
// to the same bytes are the same value as far as storage backends are
// concerned.
type Codec interface {
	// EncodeKey encodes a key
	EncodeKey(key interface{}) ([]byte, error)
	// DecodeKey decodes a key previously encoded with EncodeKey
	DecodeKey(data []byte) (interface{}, error)
	// EncodeValue encodes a value
	EncodeValue(value interface{}) ([]byte, error)
	// DecodeValue decodes a value previously encoded with EncodeValue
	DecodeValue(data []byte) (interface{}, error)
}

// Hash is a content address: a key derived from the canonical encoding
// of a value
type Hash []byte

// Sum computes the content address of an encoded value. Two encoded
// values produce the same hash if and only if they are byte-for-byte
// equal, collision resistance of the underlying function assumed.
func Sum(encodedValue []byte) Hash {
	sum := sha256.Sum256(encodedValue)

	return Hash(sum[:])
}

// Hex returns the hexadecimal form of the hash
func (hash Hash) Hex() string {
	return hex.EncodeToString(hash)
}

// Equal compares two hashes
func (hash Hash) Equal(other Hash) bool {
	return bytes.Equal(hash, other)
}
