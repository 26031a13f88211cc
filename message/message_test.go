package message

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestSetPinValueRequestWire(t *testing.T) {
	name := "diffuse"
	v := float32(-2.5)
	req := &SetPinValueRequest{
		Object:   ObjectRef{Type: ObjectTypeNode, Handle: 1 << 40},
		Address:  PinAddress{Name: &name},
		Value:    PinValue{Float3Value: &Float3{X: 1, Y: v, Z: 0}},
		Evaluate: true,
	}

	data := req.MarshalWire(nil)

	var got SetPinValueRequest
	require.NoError(t, got.UnmarshalWire(data))
	assert.Equal(t, *req, got)
	assert.Equal(t, []ValueType{ValueTypeFloat3}, got.Value.Populated())
}

func TestEmptyOneofMembersKeepPresence(t *testing.T) {
	empty := ""
	zero := int32(0)
	idx := uint32(0)
	cases := []PinValue{
		{StringValue: &empty},
		{IntValue: &zero},
		{MatrixValue: &Matrix{}},
		{FilePathValue: &FilePath{}},
	}
	for _, pv := range cases {
		var got PinValue
		require.NoError(t, got.UnmarshalWire(pv.MarshalWire(nil)))
		assert.Equal(t, pv.Populated(), got.Populated())
	}

	addr := PinAddress{Index: &idx}
	var gotAddr PinAddress
	require.NoError(t, gotAddr.UnmarshalWire(addr.MarshalWire(nil)))
	require.NotNil(t, gotAddr.Index)
	assert.Nil(t, gotAddr.PinId)
	assert.Nil(t, gotAddr.Name)
}

func TestNegativeInt32SurvivesWire(t *testing.T) {
	neg := int32(math.MinInt32)
	pv := PinValue{IntValue: &neg, Int4Value: &Int4{X: -1, Y: 2, Z: -3, W: math.MaxInt32}}

	var got PinValue
	require.NoError(t, got.UnmarshalWire(pv.MarshalWire(nil)))
	assert.Equal(t, neg, *got.IntValue)
	assert.Equal(t, *pv.Int4Value, *got.Int4Value)
	// both members survive so the reader can reject the value
	assert.Len(t, got.Populated(), 2)
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	ref := ObjectRef{Type: ObjectTypeNodeGraph, Handle: 7}
	data := ref.MarshalWire(nil)
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendString(data, "from a newer host")
	data = protowire.AppendTag(data, 100, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 12345)

	var got ObjectRef
	require.NoError(t, got.UnmarshalWire(data))
	assert.Equal(t, ref, got)
}

func TestWrongWireTypeIsRejected(t *testing.T) {
	data := protowire.AppendTag(nil, 1, protowire.BytesType)
	data = protowire.AppendString(data, "not a varint")

	var got ObjectRef
	require.Error(t, got.UnmarshalWire(data))
}

func TestTruncatedInputIsRejected(t *testing.T) {
	req := &ImportRequest{Object: ObjectRef{Type: ObjectTypeNodeGraph, Handle: 3}, FileName: "scene.orbx"}
	data := req.MarshalWire(nil)

	var got ImportRequest
	require.Error(t, got.UnmarshalWire(data[:len(data)-2]))
}

func TestLogicalResults(t *testing.T) {
	cases := []struct {
		name string
		resp LogicalResult
		ok   bool
	}{
		{"bool true", &BoolResponse{Result: true}, true},
		{"bool false", &BoolResponse{}, false},
		{"ref", &ObjectRefResponse{Result: ObjectRef{Type: ObjectTypeNode, Handle: 4}}, true},
		{"null ref", &ObjectRefResponse{}, false},
		{"callback id", &RegisterCallbackResponse{CallbackId: 42}, true},
		{"no callback id", &RegisterCallbackResponse{}, false},
		{"import failed", &ImportResponse{}, false},
	}
	for _, tc := range cases {
		ok, diag := tc.resp.LogicalResult()
		assert.Equal(t, tc.ok, ok, tc.name)
		if !tc.ok {
			assert.NotEmpty(t, diag, tc.name)
		}
	}
}

func TestObjectTypeString(t *testing.T) {
	assert.Equal(t, "NodeGraph", ObjectTypeNodeGraph.String())
	assert.Equal(t, "ObjectType(99)", ObjectType(99).String())
	assert.Equal(t, "NextChunk", CallbackKindNextChunk.String())
}
