package message

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire is implemented by every message in this package.
//
// MarshalWire appends the protobuf binary encoding of the message to b.
// UnmarshalWire resets nothing: callers decode into a zero value.
type Wire interface {
	MarshalWire(b []byte) []byte
	UnmarshalWire(b []byte) error
}

// ---- encoding helpers ----
//
// Scalars outside a oneof follow proto3 rules and are skipped when zero.
// Oneof members and sub-messages are always written so presence survives.

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessage(b []byte, num protowire.Number, m Wire) []byte {
	return appendBytes(b, num, m.MarshalWire(nil))
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	return appendVarint(b, num, uint64(int64(v)))
}

func appendUint64(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return appendVarint(b, num, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendFloat32(b []byte, num protowire.Number, v float32) []byte {
	if math.Float32bits(v) == 0 {
		return b
	}
	return appendFloat(b, num, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	return appendBytes(b, num, []byte(v))
}

// ---- decoding helpers ----

type field struct {
	num    protowire.Number
	typ    protowire.Type
	scalar uint64
	bytes  []byte
}

// decoder accumulates the first error so per-message switches stay flat.
type decoder struct {
	err error
}

func (d *decoder) fail(f field, want protowire.Type) {
	if d.err == nil {
		d.err = fmt.Errorf("message: field %d has wire type %d, want %d", f.num, f.typ, want)
	}
}

func (d *decoder) varint(f field) uint64 {
	if f.typ != protowire.VarintType {
		d.fail(f, protowire.VarintType)
		return 0
	}
	return f.scalar
}

func (d *decoder) int32(f field) int32 { return int32(d.varint(f)) }

func (d *decoder) uint32(f field) uint32 { return uint32(d.varint(f)) }

func (d *decoder) bool(f field) bool { return protowire.DecodeBool(d.varint(f)) }

func (d *decoder) float32(f field) float32 {
	if f.typ != protowire.Fixed32Type {
		d.fail(f, protowire.Fixed32Type)
		return 0
	}
	return math.Float32frombits(uint32(f.scalar))
}

func (d *decoder) bytes(f field) []byte {
	if f.typ != protowire.BytesType {
		d.fail(f, protowire.BytesType)
		return nil
	}
	return append([]byte(nil), f.bytes...)
}

func (d *decoder) string(f field) string {
	if f.typ != protowire.BytesType {
		d.fail(f, protowire.BytesType)
		return ""
	}
	return string(f.bytes)
}

func (d *decoder) message(f field, m Wire) {
	if f.typ != protowire.BytesType {
		d.fail(f, protowire.BytesType)
		return
	}
	if err := m.UnmarshalWire(f.bytes); err != nil && d.err == nil {
		d.err = fmt.Errorf("message: field %d: %w", f.num, err)
	}
}

// walk feeds every field of b to fn. Unknown fields are handed over too;
// callers ignore the numbers they do not know.
func walk(b []byte, fn func(d *decoder, f field)) error {
	d := &decoder{}
	for len(b) > 0 && d.err == nil {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.scalar, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.scalar = uint64(v)
		case protowire.Fixed64Type:
			f.scalar, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		fn(d, f)
	}
	return d.err
}

// ---- messages ----

func (m *ObjectRef) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Type))
	return appendUint64(b, 2, m.Handle)
}

func (m *ObjectRef) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.Type = ObjectType(d.int32(f))
		case 2:
			m.Handle = d.varint(f)
		}
	})
}

func (m *Float2) MarshalWire(b []byte) []byte {
	b = appendFloat32(b, 1, m.X)
	return appendFloat32(b, 2, m.Y)
}

func (m *Float2) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.X = d.float32(f)
		case 2:
			m.Y = d.float32(f)
		}
	})
}

func (m *Float3) MarshalWire(b []byte) []byte {
	b = appendFloat32(b, 1, m.X)
	b = appendFloat32(b, 2, m.Y)
	return appendFloat32(b, 3, m.Z)
}

func (m *Float3) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.X = d.float32(f)
		case 2:
			m.Y = d.float32(f)
		case 3:
			m.Z = d.float32(f)
		}
	})
}

func (m *Float4) MarshalWire(b []byte) []byte {
	b = appendFloat32(b, 1, m.X)
	b = appendFloat32(b, 2, m.Y)
	b = appendFloat32(b, 3, m.Z)
	return appendFloat32(b, 4, m.W)
}

func (m *Float4) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.X = d.float32(f)
		case 2:
			m.Y = d.float32(f)
		case 3:
			m.Z = d.float32(f)
		case 4:
			m.W = d.float32(f)
		}
	})
}

func (m *Int2) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, m.X)
	return appendInt32(b, 2, m.Y)
}

func (m *Int2) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.X = d.int32(f)
		case 2:
			m.Y = d.int32(f)
		}
	})
}

func (m *Int3) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, m.X)
	b = appendInt32(b, 2, m.Y)
	return appendInt32(b, 3, m.Z)
}

func (m *Int3) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.X = d.int32(f)
		case 2:
			m.Y = d.int32(f)
		case 3:
			m.Z = d.int32(f)
		}
	})
}

func (m *Int4) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, m.X)
	b = appendInt32(b, 2, m.Y)
	b = appendInt32(b, 3, m.Z)
	return appendInt32(b, 4, m.W)
}

func (m *Int4) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.X = d.int32(f)
		case 2:
			m.Y = d.int32(f)
		case 3:
			m.Z = d.int32(f)
		case 4:
			m.W = d.int32(f)
		}
	})
}

func (m *Matrix) MarshalWire(b []byte) []byte {
	for i := range m.Rows {
		b = appendMessage(b, protowire.Number(i+1), &m.Rows[i])
	}
	return b
}

func (m *Matrix) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num >= 1 && f.num <= 4 {
			d.message(f, &m.Rows[f.num-1])
		}
	})
}

func (m *FilePath) MarshalWire(b []byte) []byte {
	b = appendString(b, 1, m.Package)
	return appendString(b, 2, m.FileName)
}

func (m *FilePath) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.Package = d.string(f)
		case 2:
			m.FileName = d.string(f)
		}
	})
}

func (m *PinValue) MarshalWire(b []byte) []byte {
	if m.BoolValue != nil {
		b = appendVarint(b, 1, protowire.EncodeBool(*m.BoolValue))
	}
	if m.FloatValue != nil {
		b = appendFloat(b, 2, *m.FloatValue)
	}
	if m.Float2Value != nil {
		b = appendMessage(b, 3, m.Float2Value)
	}
	if m.Float3Value != nil {
		b = appendMessage(b, 4, m.Float3Value)
	}
	if m.Float4Value != nil {
		b = appendMessage(b, 5, m.Float4Value)
	}
	if m.IntValue != nil {
		b = appendVarint(b, 6, uint64(int64(*m.IntValue)))
	}
	if m.Int2Value != nil {
		b = appendMessage(b, 7, m.Int2Value)
	}
	if m.Int3Value != nil {
		b = appendMessage(b, 8, m.Int3Value)
	}
	if m.Int4Value != nil {
		b = appendMessage(b, 9, m.Int4Value)
	}
	if m.MatrixValue != nil {
		b = appendMessage(b, 10, m.MatrixValue)
	}
	if m.StringValue != nil {
		b = appendBytes(b, 11, []byte(*m.StringValue))
	}
	if m.FilePathValue != nil {
		b = appendMessage(b, 12, m.FilePathValue)
	}
	return b
}

// UnmarshalWire keeps every oneof member it sees, so a malformed value with
// several members set stays detectable by the caller.
func (m *PinValue) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			v := d.bool(f)
			m.BoolValue = &v
		case 2:
			v := d.float32(f)
			m.FloatValue = &v
		case 3:
			m.Float2Value = new(Float2)
			d.message(f, m.Float2Value)
		case 4:
			m.Float3Value = new(Float3)
			d.message(f, m.Float3Value)
		case 5:
			m.Float4Value = new(Float4)
			d.message(f, m.Float4Value)
		case 6:
			v := d.int32(f)
			m.IntValue = &v
		case 7:
			m.Int2Value = new(Int2)
			d.message(f, m.Int2Value)
		case 8:
			m.Int3Value = new(Int3)
			d.message(f, m.Int3Value)
		case 9:
			m.Int4Value = new(Int4)
			d.message(f, m.Int4Value)
		case 10:
			m.MatrixValue = new(Matrix)
			d.message(f, m.MatrixValue)
		case 11:
			v := d.string(f)
			m.StringValue = &v
		case 12:
			m.FilePathValue = new(FilePath)
			d.message(f, m.FilePathValue)
		}
	})
}

func (m *PinAddress) MarshalWire(b []byte) []byte {
	if m.PinId != nil {
		b = appendVarint(b, 1, uint64(int64(*m.PinId)))
	}
	if m.Name != nil {
		b = appendBytes(b, 2, []byte(*m.Name))
	}
	if m.Index != nil {
		b = appendVarint(b, 3, uint64(*m.Index))
	}
	return b
}

func (m *PinAddress) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			v := d.int32(f)
			m.PinId = &v
		case 2:
			v := d.string(f)
			m.Name = &v
		case 3:
			v := d.uint32(f)
			m.Index = &v
		}
	})
}

func (m *GetPinValueRequest) MarshalWire(b []byte) []byte {
	b = appendMessage(b, 1, &m.Object)
	b = appendMessage(b, 2, &m.Address)
	return appendInt32(b, 3, int32(m.ExpectedType))
}

func (m *GetPinValueRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			d.message(f, &m.Object)
		case 2:
			d.message(f, &m.Address)
		case 3:
			m.ExpectedType = ValueType(d.int32(f))
		}
	})
}

func (m *GetPinValueResponse) MarshalWire(b []byte) []byte {
	return appendMessage(b, 1, &m.Value)
}

func (m *GetPinValueResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			d.message(f, &m.Value)
		}
	})
}

func (m *SetPinValueRequest) MarshalWire(b []byte) []byte {
	b = appendMessage(b, 1, &m.Object)
	b = appendMessage(b, 2, &m.Address)
	b = appendMessage(b, 3, &m.Value)
	return appendBool(b, 4, m.Evaluate)
}

func (m *SetPinValueRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			d.message(f, &m.Object)
		case 2:
			d.message(f, &m.Address)
		case 3:
			d.message(f, &m.Value)
		case 4:
			m.Evaluate = d.bool(f)
		}
	})
}

func (m *BoolResponse) MarshalWire(b []byte) []byte {
	return appendBool(b, 1, m.Result)
}

func (m *BoolResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			m.Result = d.bool(f)
		}
	})
}

func (m *CreateRequest) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Type))
	return appendMessage(b, 2, &m.Owner)
}

func (m *CreateRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.Type = ObjectType(d.int32(f))
		case 2:
			d.message(f, &m.Owner)
		}
	})
}

func (m *ObjectRefResponse) MarshalWire(b []byte) []byte {
	return appendMessage(b, 1, &m.Result)
}

func (m *ObjectRefResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			d.message(f, &m.Result)
		}
	})
}

func (m *ObjectRequest) MarshalWire(b []byte) []byte {
	return appendMessage(b, 1, &m.Object)
}

func (m *ObjectRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			d.message(f, &m.Object)
		}
	})
}

func (m *Empty) MarshalWire(b []byte) []byte { return b }

func (m *Empty) UnmarshalWire(b []byte) error {
	return walk(b, func(*decoder, field) {})
}

func (m *RegisterCallbackRequest) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Kind))
	b = appendString(b, 2, m.CallbackSource)
	return appendMessage(b, 3, &m.Object)
}

func (m *RegisterCallbackRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.Kind = CallbackKind(d.int32(f))
		case 2:
			m.CallbackSource = d.string(f)
		case 3:
			d.message(f, &m.Object)
		}
	})
}

func (m *RegisterCallbackResponse) MarshalWire(b []byte) []byte {
	return appendInt32(b, 1, m.CallbackId)
}

func (m *RegisterCallbackResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			m.CallbackId = d.int32(f)
		}
	})
}

func (m *RemoveCallbackRequest) MarshalWire(b []byte) []byte {
	return appendInt32(b, 1, m.CallbackId)
}

func (m *RemoveCallbackRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			m.CallbackId = d.int32(f)
		}
	})
}

func (m *ImportRequest) MarshalWire(b []byte) []byte {
	b = appendMessage(b, 1, &m.Object)
	b = appendInt32(b, 2, m.NextChunkCallbackId)
	b = appendInt32(b, 3, m.AssetMissingCallbackId)
	return appendString(b, 4, m.FileName)
}

func (m *ImportRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			d.message(f, &m.Object)
		case 2:
			m.NextChunkCallbackId = d.int32(f)
		case 3:
			m.AssetMissingCallbackId = d.int32(f)
		case 4:
			m.FileName = d.string(f)
		}
	})
}

func (m *ImportResponse) MarshalWire(b []byte) []byte {
	b = appendBool(b, 1, m.Result)
	return appendMessage(b, 2, &m.Root)
}

func (m *ImportResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.Result = d.bool(f)
		case 2:
			d.message(f, &m.Root)
		}
	})
}

func (m *AddObserverRequest) MarshalWire(b []byte) []byte {
	b = appendMessage(b, 1, &m.Object)
	return appendString(b, 2, m.CallbackSource)
}

func (m *AddObserverRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			d.message(f, &m.Object)
		case 2:
			m.CallbackSource = d.string(f)
		}
	})
}

func (m *RemoveObserverRequest) MarshalWire(b []byte) []byte {
	b = appendMessage(b, 1, &m.Object)
	return appendInt32(b, 2, m.CallbackId)
}

func (m *RemoveObserverRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			d.message(f, &m.Object)
		case 2:
			m.CallbackId = d.int32(f)
		}
	})
}

func (m *AssetMissingRequest) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, m.CallbackId)
	b = appendMessage(b, 2, &m.Item)
	b = appendString(b, 3, m.Package)
	return appendString(b, 4, m.FileName)
}

func (m *AssetMissingRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.CallbackId = d.int32(f)
		case 2:
			d.message(f, &m.Item)
		case 3:
			m.Package = d.string(f)
		case 4:
			m.FileName = d.string(f)
		}
	})
}

func (m *NextChunkRequest) MarshalWire(b []byte) []byte {
	return appendInt32(b, 1, m.CallbackId)
}

func (m *NextChunkRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			m.CallbackId = d.int32(f)
		}
	})
}

func (m *NextChunkResponse) MarshalWire(b []byte) []byte {
	if len(m.Data) == 0 {
		return b
	}
	return appendBytes(b, 1, m.Data)
}

func (m *NextChunkResponse) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		if f.num == 1 {
			m.Data = d.bytes(f)
		}
	})
}

func (m *ProjectChangedRequest) MarshalWire(b []byte) []byte {
	b = appendInt32(b, 1, m.CallbackId)
	b = appendInt32(b, 2, int32(m.Event))
	return appendString(b, 3, m.ProjectPath)
}

func (m *ProjectChangedRequest) UnmarshalWire(b []byte) error {
	return walk(b, func(d *decoder, f field) {
		switch f.num {
		case 1:
			m.CallbackId = d.int32(f)
		case 2:
			m.Event = ProjectEvent(d.int32(f))
		case 3:
			m.ProjectPath = d.string(f)
		}
	})
}
