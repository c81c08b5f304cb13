package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	// ErrValidation is returned when a request is missing a required field.
	ErrValidation = errors.New("registry: validation failed")

	// ErrConflict is returned when a registration would violate BSSID uniqueness.
	ErrConflict = errors.New("registry: conflict")

	// ErrNotFound is returned when a delete matches nothing.
	ErrNotFound = errors.New("registry: not found")

	// ErrStorage is returned when the backing store fails.
	ErrStorage = errors.New("registry: storage failure")
)

// Client-facing messages. HTTP clients match on these strings.
const (
	MsgBSSIDRequired    = "bssid is required"
	MsgFacilityRequired = "facilityId is required"
	MsgBSSIDExists      = "BSSID already exists"
	MsgPairExists       = "BSSID and facilityId pair already exists"
	MsgBSSIDNotFound    = "BSSID not found"
	MsgFacilityNotFound = "FacilityId not found"
	MsgDatabaseNotFound = "Database not found"
	MsgStorageFailure   = "storage operation failed"
)

// Kind classifies an Error.
type Kind int

// Error kinds.
const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindStorage
)

// String returns the lowercase label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindStorage:
		return ErrStorage
	default:
		return nil
	}
}

// Error is the structured error returned by every Service operation.
//
// Message is safe to show to API clients. Err holds the underlying cause,
// if any, and is only set for storage failures.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func storageError(cause error) *Error {
	return &Error{Kind: KindStorage, Message: MsgStorageFailure, Err: cause}
}

// KindOf extracts the Kind of err. Errors that are not *Error report KindStorage.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}
