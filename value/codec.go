package value

import (
	"errors"
	"fmt"

	"renderlink/message"
)

// ErrTypeMismatch is matched by every *TypeMismatchError.
var ErrTypeMismatch = errors.New("value: type mismatch")

var errNilValue = errors.New("value: nil value")

// TypeMismatchError reports a response whose populated value field is not the
// one the caller asked for. It always indicates a defect: client/host version
// skew or a caller asking for the wrong type. It is never converted away.
type TypeMismatchError struct {
	Expected Tag
	Got      Tag
	// Populated is the number of value fields the host set; anything but 1 is malformed.
	Populated int
}

func (e *TypeMismatchError) Error() string {
	switch e.Populated {
	case 0:
		return fmt.Sprintf("value: expected %s, host sent no value", e.Expected)
	case 1:
		return fmt.Sprintf("value: expected %s, host sent %s", e.Expected, e.Got)
	default:
		return fmt.Sprintf("value: expected %s, host sent %d values", e.Expected, e.Populated)
	}
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Fields are the request fields a pin setter carries.
type Fields struct {
	Value message.PinValue
	// Evaluate asks the host to propagate the change through dependent
	// computation now instead of deferring it.
	Evaluate bool
}

// Encode sets exactly one value field for v.
func Encode(v Value, evaluate bool) (Fields, error) {
	pv, err := EncodePin(v)
	if err != nil {
		return Fields{}, err
	}
	return Fields{Value: pv, Evaluate: evaluate}, nil
}

// EncodePin converts v to its wire oneof.
func EncodePin(v Value) (message.PinValue, error) {
	var pv message.PinValue
	switch v := v.(type) {
	case nil:
		return pv, errNilValue
	case Bool:
		b := bool(v)
		pv.BoolValue = &b
	case Float:
		f := float32(v)
		pv.FloatValue = &f
	case Float2:
		pv.Float2Value = &message.Float2{X: v.X, Y: v.Y}
	case Float3:
		pv.Float3Value = &message.Float3{X: v.X, Y: v.Y, Z: v.Z}
	case Float4:
		pv.Float4Value = &message.Float4{X: v.X, Y: v.Y, Z: v.Z, W: v.W}
	case Int:
		i := int32(v)
		pv.IntValue = &i
	case Int2:
		pv.Int2Value = &message.Int2{X: v.X, Y: v.Y}
	case Int3:
		pv.Int3Value = &message.Int3{X: v.X, Y: v.Y, Z: v.Z}
	case Int4:
		pv.Int4Value = &message.Int4{X: v.X, Y: v.Y, Z: v.Z, W: v.W}
	case Matrix:
		m := &message.Matrix{}
		for r := range v {
			m.Rows[r] = message.Float4{X: v[r][0], Y: v[r][1], Z: v[r][2], W: v[r][3]}
		}
		pv.MatrixValue = m
	case String:
		s := string(v)
		pv.StringValue = &s
	case FilePath:
		pv.FilePathValue = &message.FilePath{Package: v.Package, FileName: v.FileName}
	default:
		panic(fmt.Sprintf("value: unhandled value type %T", v))
	}
	return pv, nil
}

// TagOf reports which variant a wire value carries, or TagNone when it
// carries zero or several.
func TagOf(pv message.PinValue) Tag {
	pop := pv.Populated()
	if len(pop) != 1 {
		return TagNone
	}
	return Tag(pop[0])
}

// Decode reads the field for expected. Any other shape is a *TypeMismatchError.
// Strings are copied out, so the result does not alias the response.
func Decode(pv message.PinValue, expected Tag) (Value, error) {
	pop := pv.Populated()
	if len(pop) != 1 || Tag(pop[0]) != expected {
		e := &TypeMismatchError{Expected: expected, Populated: len(pop)}
		if len(pop) == 1 {
			e.Got = Tag(pop[0])
		}
		return nil, e
	}

	switch expected {
	case TagBool:
		return Bool(*pv.BoolValue), nil
	case TagFloat:
		return Float(*pv.FloatValue), nil
	case TagFloat2:
		f := pv.Float2Value
		return Float2{X: f.X, Y: f.Y}, nil
	case TagFloat3:
		f := pv.Float3Value
		return Float3{X: f.X, Y: f.Y, Z: f.Z}, nil
	case TagFloat4:
		f := pv.Float4Value
		return Float4{X: f.X, Y: f.Y, Z: f.Z, W: f.W}, nil
	case TagInt:
		return Int(*pv.IntValue), nil
	case TagInt2:
		i := pv.Int2Value
		return Int2{X: i.X, Y: i.Y}, nil
	case TagInt3:
		i := pv.Int3Value
		return Int3{X: i.X, Y: i.Y, Z: i.Z}, nil
	case TagInt4:
		i := pv.Int4Value
		return Int4{X: i.X, Y: i.Y, Z: i.Z, W: i.W}, nil
	case TagMatrix:
		var m Matrix
		for r, row := range pv.MatrixValue.Rows {
			m[r] = [4]float32{row.X, row.Y, row.Z, row.W}
		}
		return m, nil
	case TagString:
		return String(clone(*pv.StringValue)), nil
	case TagFilePath:
		fp := pv.FilePathValue
		return FilePath{Package: clone(fp.Package), FileName: clone(fp.FileName)}, nil
	default:
		panic(fmt.Sprintf("value: unhandled tag %s", expected))
	}
}

func clone(s string) string {
	return string([]byte(s))
}
