package codec

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// Unmarshaler unmarshals encoded bytes into a concrete type
type Unmarshaler func(data []byte) (interface{}, error)

var _ Codec = (*Proto)(nil)

// Proto is a codec for values that are protobuf messages. Keys are
// strings or byte slices, like Raw. Marshaling must be deterministic
// for content addressing to be stable, so messages with maps should
// not be stored through this codec.
type Proto struct {
	// UnmarshalValue decodes a value. It is required: the codec
	// cannot know the concrete message type on its own.
	UnmarshalValue Unmarshaler
}

// EncodeKey implements Codec.EncodeKey
func (codec *Proto) EncodeKey(key interface{}) ([]byte, error) {
	return rawEncode(key)
}

// DecodeKey implements Codec.DecodeKey
func (codec *Proto) DecodeKey(data []byte) (interface{}, error) {
	return string(data), nil
}

// EncodeValue implements Codec.EncodeValue
func (codec *Proto) EncodeValue(value interface{}) ([]byte, error) {
	message, ok := value.(proto.Message)

	if !ok {
		return nil, fmt.Errorf("cannot encode value of type %T: not a proto message", value)
	}

	data, err := proto.Marshal(message)

	if err != nil {
		return nil, fmt.Errorf("could not marshal value: %s", err.Error())
	}

	return data, nil
}

// DecodeValue implements Codec.DecodeValue
func (codec *Proto) DecodeValue(data []byte) (interface{}, error) {
	if codec.UnmarshalValue == nil {
		return nil, fmt.Errorf("no value unmarshaler was configured")
	}

	return codec.UnmarshalValue(data)
}
