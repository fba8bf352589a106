package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	err := NewAccessDeniedError("not the owner")

	assert.True(t, stderrors.Is(err, ErrAccessDenied))
	assert.False(t, stderrors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("submit: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrAccessDenied))
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("outer: %w", NewStorageError("insert message", cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeStorage, appErr.Code)
	assert.ErrorIs(t, appErr, cause)
	assert.Equal(t, "insert message", appErr.Details["operation"])
}

func TestClassifyUnknownIsStorageFailure(t *testing.T) {
	appErr := Classify(stderrors.New("boom"))
	assert.Equal(t, ErrCodeStorage, appErr.Code)
	assert.True(t, appErr.IsInternal())

	typed := NewInvalidOrExpiredTokenError()
	assert.Same(t, typed, Classify(typed))
	assert.True(t, typed.IsUnauthorized())
}
