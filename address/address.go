// Package address resolves pin addresses into the identity fields of a request.
//
// A pin can be addressed three ways:
//
//	ByID     stable across host versions; preferred
//	ByName   stable across reordering; compared as a string on the host
//	ByIndex  positional; only valid until the object's pin layout changes
//
// Callers re-resolve indices after adding or removing dynamic pins.
// Addressing is write-only: nothing in a response echoes the address back.
package address

import (
	"errors"
	"fmt"
	"math"

	"renderlink/message"
)

var (
	ErrNoAddress     = errors.New("address: no addressing mode set")
	ErrNegativeIndex = errors.New("address: negative pin index")
	ErrIndexRange    = errors.New("address: pin index exceeds uint32")
)

type Kind uint8

const (
	KindNone Kind = iota
	KindID
	KindName
	KindIndex
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindName:
		return "name"
	case KindIndex:
		return "index"
	default:
		return "none"
	}
}

// Address is one of {stable id, name, positional index}. The zero value is unset.
type Address struct {
	kind  Kind
	id    int32
	name  string
	index int
}

func ByID(id int32) Address {
	return Address{kind: KindID, id: id}
}

func ByName(name string) Address {
	return Address{kind: KindName, name: name}
}

func ByIndex(index int) Address {
	return Address{kind: KindIndex, index: index}
}

func (a Address) Kind() Kind {
	return a.kind
}

func (a Address) String() string {
	switch a.kind {
	case KindID:
		return fmt.Sprintf("pin#%d", a.id)
	case KindName:
		return fmt.Sprintf("pin%q", a.name)
	case KindIndex:
		return fmt.Sprintf("pin[%d]", a.index)
	default:
		return "pin(?)"
	}
}

// Resolve populates exactly one field of the wire address. Invalid addresses are
// rejected here so no call is ever attempted with them.
func Resolve(a Address) (message.PinAddress, error) {
	switch a.kind {
	case KindID:
		id := a.id
		return message.PinAddress{PinId: &id}, nil
	case KindName:
		// never a nil string on the wire; "" is sent as a present, empty name
		name := a.name
		return message.PinAddress{Name: &name}, nil
	case KindIndex:
		if a.index < 0 {
			return message.PinAddress{}, fmt.Errorf("%w: %d", ErrNegativeIndex, a.index)
		}
		if uint64(a.index) > math.MaxUint32 {
			return message.PinAddress{}, fmt.Errorf("%w: %d", ErrIndexRange, a.index)
		}
		idx := uint32(a.index)
		return message.PinAddress{Index: &idx}, nil
	default:
		return message.PinAddress{}, ErrNoAddress
	}
}
