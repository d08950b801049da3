package trino

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBagAggregatesMultipleErrors(t *testing.T) {
	b := newErrorBag()
	assert.False(t, b.hasErrors())
	b.add(errors.New("first"))
	b.add(errors.New("second"))
	assert.True(t, b.hasErrors())

	err := b.throwIfErrors()
	require.Error(t, err)
	var multi *MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)
}

func TestErrorBagSingleErrorIsNotWrapped(t *testing.T) {
	b := newErrorBag()
	sentinel := errors.New("only one")
	b.add(sentinel)
	err := b.throwIfErrors()
	assert.Same(t, sentinel, err)
}

func TestErrorBagNilAddIsNoop(t *testing.T) {
	b := newErrorBag()
	b.add(nil)
	assert.False(t, b.hasErrors())
	assert.NoError(t, b.throwIfErrors())
}

func TestMultiErrorUnwrapExposesAllErrors(t *testing.T) {
	e1 := errors.New("a")
	e2 := errors.New("b")
	m := &MultiError{Errors: []error{e1, e2}}
	assert.True(t, errors.Is(m, e1))
	assert.True(t, errors.Is(m, e2))
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("network reset")
	err := newClientError(kindProtocol, "request failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestProtocolErrorCarriesStatusAndBody(t *testing.T) {
	err := newProtocolError("bad response", 502, "upstream unavailable", nil)
	assert.Equal(t, 502, err.StatusCode)
	assert.Equal(t, "upstream unavailable", err.Body)
}
