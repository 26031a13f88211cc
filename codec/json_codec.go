package codec

import (
	"encoding/json"
)

// JSONCodec uses Go's standard library encoding/json for serialization.
// Pros: human-readable, easy to inspect in a proxy log.
// Cons: larger payloads, and float32 values go through float64 text.
type JSONCodec struct{}

const jsonName = "renderjson"

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string {
	return jsonName
}

func (JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
