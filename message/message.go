// Package message defines the wire messages exchanged between the SDK and the render host.
//
// The shapes mirror the render host's protobuf schema. Every instance-method request
// carries an ObjectRef identifying its target; pin get/set requests carry exactly one
// populated PinValue field; results come back in dedicated Result fields.
//
// Messages are plain structs. They encode to the protobuf binary format through
// MarshalWire/UnmarshalWire (see wire.go) and to JSON through their struct tags.
package message

import "strconv"

// ObjectType is the remote type tag embedded in every ObjectRef.
type ObjectType int32

const (
	ObjectTypeUnknown        ObjectType = 0
	ObjectTypeNode           ObjectType = 1
	ObjectTypeNodeGraph      ObjectType = 2
	ObjectTypeRootNodeGraph  ObjectType = 3
	ObjectTypeCategory       ObjectType = 4
	ObjectTypePackage        ObjectType = 5
	ObjectTypeProjectManager ObjectType = 6
	ObjectTypeItemArray      ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeUnknown:
		return "Unknown"
	case ObjectTypeNode:
		return "Node"
	case ObjectTypeNodeGraph:
		return "NodeGraph"
	case ObjectTypeRootNodeGraph:
		return "RootNodeGraph"
	case ObjectTypeCategory:
		return "Category"
	case ObjectTypePackage:
		return "Package"
	case ObjectTypeProjectManager:
		return "ProjectManager"
	case ObjectTypeItemArray:
		return "ItemArray"
	default:
		return "ObjectType(" + strconv.FormatInt(int64(t), 10) + ")"
	}
}

// ValueType names a PinValue field. The numbering matches the PinValue field numbers.
type ValueType int32

const (
	ValueTypeNone     ValueType = 0
	ValueTypeBool     ValueType = 1
	ValueTypeFloat    ValueType = 2
	ValueTypeFloat2   ValueType = 3
	ValueTypeFloat3   ValueType = 4
	ValueTypeFloat4   ValueType = 5
	ValueTypeInt      ValueType = 6
	ValueTypeInt2     ValueType = 7
	ValueTypeInt3     ValueType = 8
	ValueTypeInt4     ValueType = 9
	ValueTypeMatrix   ValueType = 10
	ValueTypeString   ValueType = 11
	ValueTypeFilePath ValueType = 12
)

// CallbackKind identifies which client-side callback family a registration belongs to.
type CallbackKind int32

const (
	CallbackKindUnknown        CallbackKind = 0
	CallbackKindAssetMissing   CallbackKind = 1
	CallbackKindNextChunk      CallbackKind = 2
	CallbackKindProjectChanged CallbackKind = 3
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackKindAssetMissing:
		return "AssetMissing"
	case CallbackKindNextChunk:
		return "NextChunk"
	case CallbackKindProjectChanged:
		return "ProjectChanged"
	default:
		return "CallbackKind(" + strconv.FormatInt(int64(k), 10) + ")"
	}
}

// ProjectEvent is the lifecycle change reported to project observers.
type ProjectEvent int32

const (
	ProjectEventUnknown ProjectEvent = 0
	ProjectEventNew     ProjectEvent = 1
	ProjectEventLoaded  ProjectEvent = 2
	ProjectEventSaved   ProjectEvent = 3
	ProjectEventClosed  ProjectEvent = 4
)

// ObjectRef identifies a server-resident object. Handle 0 means "no object".
type ObjectRef struct {
	Type   ObjectType `json:"type,omitempty"`
	Handle uint64     `json:"handle,omitempty"`
}

type Float2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type Float3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type Float4 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

type Int2 struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

type Int3 struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

type Int4 struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
	W int32 `json:"w"`
}

// Matrix is a row-major 4x4 float matrix.
type Matrix struct {
	Rows [4]Float4 `json:"m"`
}

// FilePath is a file reference inside a package.
type FilePath struct {
	Package  string `json:"package"`
	FileName string `json:"file_name"`
}

// PinValue is a oneof: a well-formed value has exactly one non-nil field.
type PinValue struct {
	BoolValue     *bool     `json:"bool_value,omitempty"`
	FloatValue    *float32  `json:"float_value,omitempty"`
	Float2Value   *Float2   `json:"float2_value,omitempty"`
	Float3Value   *Float3   `json:"float3_value,omitempty"`
	Float4Value   *Float4   `json:"float4_value,omitempty"`
	IntValue      *int32    `json:"int_value,omitempty"`
	Int2Value     *Int2     `json:"int2_value,omitempty"`
	Int3Value     *Int3     `json:"int3_value,omitempty"`
	Int4Value     *Int4     `json:"int4_value,omitempty"`
	MatrixValue   *Matrix   `json:"matrix_value,omitempty"`
	StringValue   *string   `json:"string_value,omitempty"`
	FilePathValue *FilePath `json:"file_path_value,omitempty"`
}

// Populated lists the value types whose field is set, in field order.
func (v *PinValue) Populated() []ValueType {
	var out []ValueType
	if v.BoolValue != nil {
		out = append(out, ValueTypeBool)
	}
	if v.FloatValue != nil {
		out = append(out, ValueTypeFloat)
	}
	if v.Float2Value != nil {
		out = append(out, ValueTypeFloat2)
	}
	if v.Float3Value != nil {
		out = append(out, ValueTypeFloat3)
	}
	if v.Float4Value != nil {
		out = append(out, ValueTypeFloat4)
	}
	if v.IntValue != nil {
		out = append(out, ValueTypeInt)
	}
	if v.Int2Value != nil {
		out = append(out, ValueTypeInt2)
	}
	if v.Int3Value != nil {
		out = append(out, ValueTypeInt3)
	}
	if v.Int4Value != nil {
		out = append(out, ValueTypeInt4)
	}
	if v.MatrixValue != nil {
		out = append(out, ValueTypeMatrix)
	}
	if v.StringValue != nil {
		out = append(out, ValueTypeString)
	}
	if v.FilePathValue != nil {
		out = append(out, ValueTypeFilePath)
	}
	return out
}

// PinAddress is a oneof over the three pin addressing modes.
type PinAddress struct {
	PinId *int32  `json:"pin_id,omitempty"`
	Name  *string `json:"name,omitempty"`
	Index *uint32 `json:"index,omitempty"`
}

type GetPinValueRequest struct {
	Object       ObjectRef  `json:"object"`
	Address      PinAddress `json:"address"`
	ExpectedType ValueType  `json:"expected_type,omitempty"`
}

type GetPinValueResponse struct {
	Value PinValue `json:"value"`
}

type SetPinValueRequest struct {
	Object   ObjectRef  `json:"object"`
	Address  PinAddress `json:"address"`
	Value    PinValue   `json:"value"`
	Evaluate bool       `json:"evaluate"`
}

type BoolResponse struct {
	Result bool `json:"result"`
}

type CreateRequest struct {
	Type  ObjectType `json:"type"`
	Owner ObjectRef  `json:"owner"`
}

type ObjectRefResponse struct {
	Result ObjectRef `json:"result"`
}

type ObjectRequest struct {
	Object ObjectRef `json:"object"`
}

type Empty struct{}

type RegisterCallbackRequest struct {
	Kind           CallbackKind `json:"kind"`
	CallbackSource string       `json:"callback_source"`
	Object         ObjectRef    `json:"object"`
}

type RegisterCallbackResponse struct {
	CallbackId int32 `json:"callback_id"`
}

type RemoveCallbackRequest struct {
	CallbackId int32 `json:"callback_id"`
}

type ImportRequest struct {
	Object                 ObjectRef `json:"object"`
	NextChunkCallbackId    int32     `json:"next_chunk_callback_id"`
	AssetMissingCallbackId int32     `json:"asset_missing_callback_id,omitempty"`
	FileName               string    `json:"file_name,omitempty"`
}

type ImportResponse struct {
	Result bool      `json:"result"`
	Root   ObjectRef `json:"root"`
}

type AddObserverRequest struct {
	Object         ObjectRef `json:"object"`
	CallbackSource string    `json:"callback_source"`
}

type RemoveObserverRequest struct {
	Object     ObjectRef `json:"object"`
	CallbackId int32     `json:"callback_id"`
}

// AssetMissingRequest is delivered to the client once per asset the host cannot resolve.
type AssetMissingRequest struct {
	CallbackId int32     `json:"callback_id"`
	Item       ObjectRef `json:"item"`
	Package    string    `json:"package,omitempty"`
	FileName   string    `json:"file_name,omitempty"`
}

// NextChunkRequest asks the client for the next buffer of a chunked transfer.
type NextChunkRequest struct {
	CallbackId int32 `json:"callback_id"`
}

// NextChunkResponse carries one buffer. An empty buffer ends the transfer.
type NextChunkResponse struct {
	Data []byte `json:"data,omitempty"`
}

type ProjectChangedRequest struct {
	CallbackId  int32        `json:"callback_id"`
	Event       ProjectEvent `json:"event"`
	ProjectPath string       `json:"project_path,omitempty"`
}

// LogicalResult is implemented by responses whose declared result can report
// that the requested operation did not succeed even though the call itself did.
type LogicalResult interface {
	LogicalResult() (ok bool, diagnostic string)
}

func (r *BoolResponse) LogicalResult() (bool, string) {
	if !r.Result {
		return false, "result is false"
	}
	return true, ""
}

func (r *ObjectRefResponse) LogicalResult() (bool, string) {
	if r.Result.Handle == 0 {
		return false, "null object handle"
	}
	return true, ""
}

func (r *RegisterCallbackResponse) LogicalResult() (bool, string) {
	if r.CallbackId == 0 {
		return false, "no callback id issued"
	}
	return true, ""
}

func (r *ImportResponse) LogicalResult() (bool, string) {
	if !r.Result {
		return false, "import reported failure"
	}
	return true, ""
}
