package keypool

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of an error
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeDuplicate
	ErrorTypeNotFound
	ErrorTypeExhausted
	ErrorTypeDispatchFailed
	ErrorTypeInvalidInput
	ErrorTypePersistence
)

// PoolError represents an error in the keypool package
type PoolError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *PoolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.TypeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.TypeString(), e.Message)
}

func (e *PoolError) Unwrap() error {
	return e.Err
}

func (e *PoolError) TypeString() string {
	switch e.Type {
	case ErrorTypeDuplicate:
		return "DuplicateCredential"
	case ErrorTypeNotFound:
		return "NotFound"
	case ErrorTypeExhausted:
		return "PoolExhausted"
	case ErrorTypeDispatchFailed:
		return "DispatchFailed"
	case ErrorTypeInvalidInput:
		return "InvalidInputError"
	case ErrorTypePersistence:
		return "PersistenceError"
	default:
		return "UnknownError"
	}
}

// NewPoolError creates a new PoolError
func NewPoolError(errType ErrorType, message string, err error) *PoolError {
	return &PoolError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func isType(err error, t ErrorType) bool {
	var pe *PoolError
	return errors.As(err, &pe) && pe.Type == t
}

// IsDuplicate reports whether err is a DuplicateCredential error.
func IsDuplicate(err error) bool { return isType(err, ErrorTypeDuplicate) }

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsExhausted reports whether err means no eligible credential existed.
func IsExhausted(err error) bool { return isType(err, ErrorTypeExhausted) }

// IsDispatchFailed reports whether err means the attempt budget was spent on
// transient call failures.
func IsDispatchFailed(err error) bool { return isType(err, ErrorTypeDispatchFailed) }
