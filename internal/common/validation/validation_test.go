package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-relay-backend/internal/common/errors"
)

func TestTitle(t *testing.T) {
	got, err := Title("  Refund  ", "Default")
	require.NoError(t, err)
	assert.Equal(t, "Refund", got)

	got, err = Title("   ", "Default")
	require.NoError(t, err)
	assert.Equal(t, "Default", got)

	_, err = Title(strings.Repeat("я", MaxTitleLength+1), "Default")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestMessageBody(t *testing.T) {
	got, err := MessageBody("\thello\n")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = MessageBody(" \n ")
	assert.ErrorIs(t, err, errors.ErrValidation)

	// Length is counted in runes, not bytes.
	_, err = MessageBody(strings.Repeat("ü", MaxMessageLength))
	assert.NoError(t, err)
	_, err = MessageBody(strings.Repeat("a", MaxMessageLength+1))
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ann", DisplayName(" Ann "))
	assert.Len(t, []rune(DisplayName(strings.Repeat("ж", 300))), MaxDisplayNameLength)
}

func TestPositiveID(t *testing.T) {
	assert.NoError(t, PositiveID(1, "id"))
	assert.ErrorIs(t, PositiveID(0, "id"), errors.ErrValidation)
}
