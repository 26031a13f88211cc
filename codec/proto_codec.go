package codec

import (
	"fmt"

	"renderlink/message"
)

// ProtoCodec encodes message types in the protobuf binary format.
// Anything that is not a message.Wire is rejected rather than guessed at.
type ProtoCodec struct{}

const protoName = "renderwire"

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message.Wire)
	if !ok {
		return nil, fmt.Errorf("codec: %T does not implement message.Wire", v)
	}
	return m.MarshalWire(nil), nil
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message.Wire)
	if !ok {
		return fmt.Errorf("codec: %T does not implement message.Wire", v)
	}
	return m.UnmarshalWire(data)
}

func (ProtoCodec) Name() string {
	return protoName
}

func (ProtoCodec) Type() CodecType {
	return CodecTypeProto
}
