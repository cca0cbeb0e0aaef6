package codec

import (
	"fmt"
)

var _ Codec = (*Raw)(nil)

// Raw is a pass-through codec for string and byte slice keys and
// values. Decoded keys and values are strings.
type Raw struct {
}

func rawEncode(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case Hash:
		return []byte(v), nil
	}

	return nil, fmt.Errorf("cannot encode value of type %T", v)
}

// EncodeKey implements Codec.EncodeKey
func (codec *Raw) EncodeKey(key interface{}) ([]byte, error) {
	return rawEncode(key)
}

// DecodeKey implements Codec.DecodeKey
func (codec *Raw) DecodeKey(data []byte) (interface{}, error) {
	return string(data), nil
}

// EncodeValue implements Codec.EncodeValue
func (codec *Raw) EncodeValue(value interface{}) ([]byte, error) {
	return rawEncode(value)
}

// DecodeValue implements Codec.DecodeValue
func (codec *Raw) DecodeValue(data []byte) (interface{}, error) {
	return string(data), nil
}
