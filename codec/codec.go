// Package codec provides the gRPC codecs used to put message types on the wire.
//
// Both codecs are registered with grpc's encoding registry at init, so client and
// render host agree on a codec through the call's content-subtype:
//
//	application/grpc+renderwire   protobuf binary (default)
//	application/grpc+renderjson   JSON, for debugging against a logging proxy
package codec

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

type CodecType string

const (
	CodecTypeProto CodecType = "proto"
	CodecTypeJSON  CodecType = "json"
)

// Codec is a grpc codec that also reports which config value selects it.
type Codec interface {
	encoding.Codec
	Type() CodecType
}

func init() {
	encoding.RegisterCodec(ProtoCodec{})
	encoding.RegisterCodec(JSONCodec{})
}

// GetCodec returns the codec for a config value. Unknown values fall back to the
// protobuf codec, matching the render host's default.
func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeJSON {
		return JSONCodec{}
	}

	return ProtoCodec{}
}

// ParseCodecType validates a config value.
func ParseCodecType(s string) (CodecType, error) {
	switch CodecType(s) {
	case CodecTypeProto, CodecTypeJSON:
		return CodecType(s), nil
	default:
		return "", fmt.Errorf("codec: unknown codec type %q", s)
	}
}
