// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error categories. Typed errors below match these through errors.Is.
var (
	// ErrInvalidArgument indicates a nil or empty argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedMime indicates data whose leading bytes match no known signature.
	ErrUnsupportedMime = errors.New("unsupported mime signature")

	// ErrSignatureConflict indicates two different labels registered for one signature.
	ErrSignatureConflict = errors.New("signature conflict")

	// ErrTransient indicates a collaborator failure that may succeed when retried.
	ErrTransient = errors.New("transient failure")

	// ErrTimeout indicates a per-item deadline was exceeded.
	ErrTimeout = errors.New("timeout")

	// ErrRetriesExhausted indicates every attempt of a retried operation failed.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrUnrecoverable indicates a failure with no recovery configured.
	ErrUnrecoverable = errors.New("unrecoverable failure")

	// ErrInvalidRequest indicates a Request failed validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyInput indicates a Request carries no input payload.
	ErrEmptyInput = errors.New("input cannot be empty")

	// ErrInvalidPriority indicates a negative request priority.
	ErrInvalidPriority = errors.New("priority cannot be negative")

	// ErrInvalidInputKind indicates an unknown InputKind value.
	ErrInvalidInputKind = errors.New("invalid input kind")
)

// ValidationError reports a bad argument or undetectable input.
type ValidationError struct {
	Field  string
	Reason string
	// Err is the category, ErrInvalidArgument when nil.
	Err error
}

// NewValidationError creates a ValidationError in the ErrInvalidArgument category.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: ErrInvalidArgument}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInvalidArgument
	}
	return e.Err
}

// SignatureConflictError is returned when a signature path already carries a
// different label. It is a construction-time error and must abort startup.
type SignatureConflictError struct {
	Signature   []byte
	Existing    string
	Conflicting string
}

func (e *SignatureConflictError) Error() string {
	return fmt.Sprintf("signature % X is already registered as %q, cannot register %q",
		e.Signature, e.Existing, e.Conflicting)
}

func (e *SignatureConflictError) Is(target error) bool {
	return target == ErrSignatureConflict
}

// TimeoutError is returned when a single invocation exceeds its deadline.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// TransientError wraps a collaborator network or API failure.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// UnrecoverableError is returned once retries are exhausted. Err holds the
// error of the final attempt.
type UnrecoverableError struct {
	Attempts int
	Err      error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *UnrecoverableError) Unwrap() error {
	return e.Err
}

func (e *UnrecoverableError) Is(target error) bool {
	return target == ErrUnrecoverable || target == ErrRetriesExhausted
}

// IsRetryable reports whether err is worth another attempt. Transient and
// timeout failures are; validation failures, exhausted retries and
// cancellation are not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrUnrecoverable):
		return false
	default:
		return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
	}
}
