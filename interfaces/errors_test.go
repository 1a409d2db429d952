package interfaces

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializationError(t *testing.T) {
	kind := errors.New("kind")
	cause := errors.New("cause")

	err := fmt.Errorf("startup: %w", &InitializationError{Kind: kind, Message: "stable message", Err: cause})
	require.True(t, IsInitializationError(err))
	assert.ErrorIs(t, err, kind)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "startup: stable message: cause", err.Error())

	bare := NewInitializationError("only message", nil)
	assert.Equal(t, "only message", bare.Error())
	assert.Empty(t, bare.Unwrap())

	assert.False(t, IsInitializationError(cause))
}
