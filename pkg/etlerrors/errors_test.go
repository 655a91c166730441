package etlerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeLoad, "commit failed")

	assert.Equal(t, ErrorTypeLoad, err.Type)
	assert.Equal(t, "load: commit failed", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWrap(t *testing.T) {
	t.Run("wraps and unwraps", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(cause, ErrorTypeConnection, "failed to reach database")

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "connection reset")
		assert.ErrorIs(t, err, cause)
	})

	t.Run("nil error wraps to nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeLoad, "ignored"))
	})

	t.Run("preserves the original stack", func(t *testing.T) {
		inner := New(ErrorTypeQuery, "bad query")
		outer := Wrap(inner, ErrorTypeLoad, "load failed")
		assert.Equal(t, inner.Stack, outer.Stack)
	})
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeInputMissing, "raw_latest.csv not found")

	assert.True(t, IsType(err, ErrorTypeInputMissing))
	assert.False(t, IsType(err, ErrorTypeLoad))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeLoad))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeInputMissing))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrorTypeInputMissing, "x")))
	assert.True(t, IsFatal(New(ErrorTypeLoad, "x")))
	assert.True(t, IsFatal(New(ErrorTypeConnection, "x")))
	assert.True(t, IsFatal(errors.New("untyped")))

	assert.False(t, IsFatal(New(ErrorTypeData, "x")))
	assert.False(t, IsFatal(New(ErrorTypeValidation, "x")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeData, "malformed cell").
		WithDetail("column", "price").
		WithDetail("line", 42)

	assert.Equal(t, "price", err.Details["column"])
	assert.Equal(t, 42, err.Details["line"])
}
