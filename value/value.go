// Package value implements the typed pin value union and its wire codec.
//
// Value is a closed sum type: the concrete types in this file are the only
// implementations, and every switch over them panics on an unknown type so a
// new member cannot be added without updating the codec.
package value

import (
	"fmt"

	"renderlink/message"
)

// Tag identifies a Value variant. Tags share their numbering with
// message.ValueType so the expected type can be sent to the host as is.
type Tag uint8

const (
	TagNone Tag = iota
	TagBool
	TagFloat
	TagFloat2
	TagFloat3
	TagFloat4
	TagInt
	TagInt2
	TagInt3
	TagInt4
	TagMatrix
	TagString
	TagFilePath
)

// Tags lists every concrete tag in wire order.
var Tags = []Tag{
	TagBool, TagFloat, TagFloat2, TagFloat3, TagFloat4,
	TagInt, TagInt2, TagInt3, TagInt4,
	TagMatrix, TagString, TagFilePath,
}

var tagNames = [...]string{
	TagNone:     "None",
	TagBool:     "Bool",
	TagFloat:    "Float",
	TagFloat2:   "Float2",
	TagFloat3:   "Float3",
	TagFloat4:   "Float4",
	TagInt:      "Int",
	TagInt2:     "Int2",
	TagInt3:     "Int3",
	TagInt4:     "Int4",
	TagMatrix:   "Matrix",
	TagString:   "String",
	TagFilePath: "FilePath",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

func (t Tag) ValueType() message.ValueType {
	return message.ValueType(t)
}

// Value is one typed pin value.
type Value interface {
	Tag() Tag
	isValue()
}

type Bool bool

type Float float32

type Float2 struct{ X, Y float32 }

type Float3 struct{ X, Y, Z float32 }

type Float4 struct{ X, Y, Z, W float32 }

type Int int32

type Int2 struct{ X, Y int32 }

type Int3 struct{ X, Y, Z int32 }

type Int4 struct{ X, Y, Z, W int32 }

// Matrix is row-major: m[row][column].
type Matrix [4][4]float32

type String string

// FilePath references a file inside a package.
type FilePath struct {
	Package  string
	FileName string
}

func (Bool) Tag() Tag     { return TagBool }
func (Float) Tag() Tag    { return TagFloat }
func (Float2) Tag() Tag   { return TagFloat2 }
func (Float3) Tag() Tag   { return TagFloat3 }
func (Float4) Tag() Tag   { return TagFloat4 }
func (Int) Tag() Tag      { return TagInt }
func (Int2) Tag() Tag     { return TagInt2 }
func (Int3) Tag() Tag     { return TagInt3 }
func (Int4) Tag() Tag     { return TagInt4 }
func (Matrix) Tag() Tag   { return TagMatrix }
func (String) Tag() Tag   { return TagString }
func (FilePath) Tag() Tag { return TagFilePath }

func (Bool) isValue()     {}
func (Float) isValue()    {}
func (Float2) isValue()   {}
func (Float3) isValue()   {}
func (Float4) isValue()   {}
func (Int) isValue()      {}
func (Int2) isValue()     {}
func (Int3) isValue()     {}
func (Int4) isValue()     {}
func (Matrix) isValue()   {}
func (String) isValue()   {}
func (FilePath) isValue() {}

// Identity returns the 4x4 identity matrix.
func Identity() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}
