package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeInvalidInput, "bad account number")
		assert.True(t, HasCode(err, CodeInvalidInput))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches inner code through wraps", func(t *testing.T) {
		inner := New(CodeUnavailable, "index down")
		outer := Wrap(fmt.Errorf("lookup: %w", inner), CodeInternal, "dedupe failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeUnavailable))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestErrorsIs(t *testing.T) {
	err := Wrap(errors.New("cause"), CodeUnauthorized, "invalid token")
	require.ErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "missing")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, "missing", MessageOf(New(CodeNotFound, "missing")))
	assert.Equal(t, "missing: cause", Wrap(errors.New("cause"), CodeNotFound, "missing").Error())
}
