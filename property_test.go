package dynobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericPropertySetValueCoercesAndStores(t *testing.T) {
	typ, err := FromSignature("i")
	require.NoError(t, err)
	p := NewGenericProperty(typ)

	err = p.SetValue(From(int64(5)))
	require.NoError(t, err)
	assert.Equal(t, 5, p.Value().Value())
}

func TestGenericPropertySetValueRejectsMismatch(t *testing.T) {
	typ, err := FromSignature("i")
	require.NoError(t, err)
	p := NewGenericProperty(typ)

	err = p.SetValue(From(struct{ X int }{X: 1}))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestGenericPropertyTriggersOwnSignalOnSet(t *testing.T) {
	typ, err := FromSignature("s")
	require.NoError(t, err)
	p := NewGenericProperty(typ)

	var seen AnyValue
	p.Signal().Connect(func(params []AnyValue) {
		if len(params) > 0 {
			seen = params[0]
		}
	})

	require.NoError(t, p.SetValue(From("hello")))
	assert.Equal(t, "hello", seen.Value())
}

func TestGenericPropertyDynamicTypeAcceptsAnything(t *testing.T) {
	typ, err := FromSignature("m")
	require.NoError(t, err)
	p := NewGenericProperty(typ)

	require.NoError(t, p.SetValue(From([]int{1, 2, 3})))
	assert.Equal(t, []int{1, 2, 3}, p.Value().Value())
}
