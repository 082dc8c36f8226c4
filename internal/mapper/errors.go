package mapper

import (
	"errors"
	"fmt"
)

// ConfigError reports a construction-time problem: the graph cannot be
// built consistently, so nothing is emitted.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Role is the entity role being processed.
	Role string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownRole indicates the entity role has no definition.
	ErrCodeUnknownRole ConfigErrorCode = "UNKNOWN_ROLE"

	// ErrCodeMissingPrimaryKey indicates a definition without a usable key.
	ErrCodeMissingPrimaryKey ConfigErrorCode = "MISSING_PRIMARY_KEY"

	// ErrCodeInvalidValue indicates a column value that is not storable.
	ErrCodeInvalidValue ConfigErrorCode = "INVALID_VALUE"

	// ErrCodeUnknownVariant indicates a subtype with no discriminator alias.
	ErrCodeUnknownVariant ConfigErrorCode = "UNKNOWN_VARIANT"

	// ErrCodeUnknownRelation indicates a relation type with no implementation.
	ErrCodeUnknownRelation ConfigErrorCode = "UNKNOWN_RELATION"

	// ErrCodeRequiredRelation indicates a non-nullable relation left empty.
	ErrCodeRequiredRelation ConfigErrorCode = "REQUIRED_RELATION"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s (role=%s)", e.Code, e.Message, e.Role)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError returns true if err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped ConfigError, or "".
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
