package schemas

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches any *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrRouting matches any *RoutingError via errors.Is.
	ErrRouting = errors.New("routing failed")
	// ErrGeneration matches any *GenerationError via errors.Is.
	ErrGeneration = errors.New("generation failed")
	// ErrStorage matches any *StorageError via errors.Is.
	ErrStorage = errors.New("storage failed")
)

// ValidationError reports a malformed message or artifact.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := "validation error"
	if e.Field != "" {
		msg += " on " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RoutingError reports a send addressed to a role that has no mailbox.
type RoutingError struct {
	Receiver Role
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing error: no mailbox for role %q", e.Receiver)
}

func (e *RoutingError) Is(target error) bool { return target == ErrRouting }

// GenerationError wraps a failure of the external generation capability.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation with model %q failed: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error        { return e.Err }
func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// StorageError wraps a failure to persist or load an artifact.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error        { return e.Err }
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
