package validation

import (
	"strings"
	"unicode/utf8"

	"support-relay-backend/internal/common/errors"
)

const (
	MaxTitleLength       = 255
	MaxMessageLength     = 4096
	MaxDisplayNameLength = 128
)

// Title trims title and applies the default when it is empty.
func Title(title, fallback string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return fallback, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", errors.NewValidationError("title", "too long")
	}
	return title, nil
}

// MessageBody trims body and rejects empty or oversized text.
func MessageBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.NewValidationError("body", "required")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", errors.NewValidationError("body", "too long")
	}
	return body, nil
}

// DisplayName trims name and cuts it to MaxDisplayNameLength runes.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= MaxDisplayNameLength {
		return name
	}
	return string([]rune(name)[:MaxDisplayNameLength])
}

// PositiveID rejects zero and negative identifiers.
func PositiveID(value int64, field string) error {
	if value <= 0 {
		return errors.NewValidationError(field, "must be positive")
	}
	return nil
}
