package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renderlink/message"
)

func TestNullProxy(t *testing.T) {
	p := New(message.ObjectTypeNode)
	assert.True(t, p.IsNull())
	assert.Equal(t, Handle(0), p.Handle())

	p.SetNull()
	assert.True(t, p.IsNull())

	p.Attach(0xdeadbeef)
	assert.False(t, p.IsNull())
	assert.Equal(t, Handle(0xdeadbeef), p.Handle())

	p.SetNull()
	assert.True(t, p.IsNull())
}

func TestRefCarriesTag(t *testing.T) {
	p := New(message.ObjectTypeNodeGraph)
	p.Attach(12)
	assert.Equal(t, message.ObjectRef{Type: message.ObjectTypeNodeGraph, Handle: 12}, p.Ref())
}

func TestAdopt(t *testing.T) {
	p := New(message.ObjectTypeNode)

	require.NoError(t, p.Adopt(message.ObjectRef{Type: message.ObjectTypeNode, Handle: 5}))
	assert.Equal(t, Handle(5), p.Handle())

	err := p.Adopt(message.ObjectRef{Type: message.ObjectTypeCategory, Handle: 6})
	require.ErrorIs(t, err, ErrTagMismatch)
	assert.Equal(t, Handle(5), p.Handle(), "a rejected ref must not change the handle")

	require.NoError(t, p.Adopt(message.ObjectRef{}))
	assert.True(t, p.IsNull())
}

func TestSame(t *testing.T) {
	a := New(message.ObjectTypeNode)
	b := New(message.ObjectTypeNode)
	assert.False(t, Same(a, b))

	a.Attach(3)
	b.Attach(3)
	assert.True(t, Same(a, b))

	// equal handles are the same object whatever type the proxy carries
	graph := New(message.ObjectTypeRootNodeGraph)
	graph.Attach(3)
	assert.True(t, Same(a, graph))

	// independent copies: nulling one leaves the other alone
	b.SetNull()
	assert.False(t, a.IsNull())
	assert.False(t, Same(a, b))
}

func TestString(t *testing.T) {
	p := New(message.ObjectTypePackage)
	assert.Equal(t, "Package(null)", p.String())
	p.Attach(255)
	assert.Equal(t, "Package(0xff)", p.String())
}
