// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrNotFound is returned when the lvm object is not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when the lvm object already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInUse is returned when the object is in use or locked by another
	// writer.
	ErrInUse = errors.New("in use")

	// ErrResourceExhausted is returned when the volume group has no room left.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrPermission is returned when a mutation is attempted on a read-only
	// session.
	ErrPermission = errors.New("permission denied")

	// ErrInvalid is returned when an argument is rejected.
	ErrInvalid = errors.New("invalid argument")

	// ErrUnsupported is returned when the engine cannot be used on this host.
	ErrUnsupported = errors.New("not supported")

	// ErrParse is returned when a value reported by the engine is malformed.
	ErrParse = errors.New("parse error")

	// ErrAllocation is returned when the engine cannot allocate a context.
	ErrAllocation = errors.New("engine allocation failed")

	// ErrReleased is returned when a closed or removed handle is used.
	ErrReleased = errors.New("handle released")

	// ErrConcurrentModification is returned when a volume group changed
	// between two opens.
	ErrConcurrentModification = errors.New("volume group modified concurrently")
)

// EngineError is a failure reported by the engine through the context's
// error slot.
type EngineError struct {
	Op      string
	Code    syscall.Errno
	Message string
}

func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.Error()
	}
	return fmt.Sprintf("%s: %s (errno %d)", e.Op, msg, int(e.Code))
}

// Is maps the error code onto the package sentinels.
func (e *EngineError) Is(target error) bool {
	return target != nil && sentinel(e.Code) == target
}

// Unwrap returns the error code, so errors.Is(err, syscall.ENOENT) holds.
func (e *EngineError) Unwrap() error {
	return e.Code
}

func sentinel(code syscall.Errno) error {
	switch code {
	case syscall.ENOENT, syscall.ENXIO, syscall.ENODEV:
		return ErrNotFound
	case syscall.EEXIST:
		return ErrAlreadyExists
	case syscall.EBUSY, syscall.EAGAIN:
		return ErrInUse
	case syscall.ENOSPC:
		return ErrResourceExhausted
	case syscall.EPERM, syscall.EACCES:
		return ErrPermission
	case syscall.EINVAL:
		return ErrInvalid
	case syscall.ENOTSUP:
		return ErrUnsupported
	default:
		return nil
	}
}

// ValidationError is a rejected argument or name. Err holds the engine's
// error when the engine applied the rule, for example a name that is taken.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Unwrap returns the engine's error, so a duplicate name matches both
// ErrInvalid and ErrAlreadyExists.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// nameRejected turns an engine rejection of a name into a ValidationError.
// Other errors pass through.
func nameRejected(field, value string, err error) error {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return err
	}
	reason := ee.Message
	if reason == "" {
		reason = ee.Code.Error()
	}
	return &ValidationError{Field: field, Value: value, Reason: reason, Err: ee}
}

// ParseError is a malformed value returned by the engine.
type ParseError struct {
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Value, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ConcurrentModificationError reports that a volume group no longer has the
// revision a caller inspected.
type ConcurrentModificationError struct {
	Want Revision
	Got  Revision
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("volume group %s: expected %s, found %s", e.Want.Name, e.Want, e.Got)
}

func (e *ConcurrentModificationError) Is(target error) bool {
	return target == ErrConcurrentModification
}

// validateArg rejects values the engine cannot represent.
func validateArg(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Value: value, Reason: "must not be empty"}
	}
	return validateNUL(field, value)
}

func validateNUL(field, value string) error {
	for i := 0; i < len(value); i++ {
		if value[i] == 0 {
			return &ValidationError{Field: field, Value: value, Reason: fmt.Sprintf("contains NUL at offset %d", i)}
		}
	}
	return nil
}
