/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Resource errors
	ErrArtifactNotFound      ErrorCode = "ARTIFACT_NOT_FOUND"
	ErrVersionNotFound       ErrorCode = "VERSION_NOT_FOUND"
	ErrArtifactAlreadyExists ErrorCode = "ARTIFACT_ALREADY_EXISTS"
	ErrRuleNotFound          ErrorCode = "RULE_NOT_FOUND"
	ErrRuleAlreadyExists     ErrorCode = "RULE_ALREADY_EXISTS"

	// Request errors
	ErrInvalidRequestFormat ErrorCode = "INVALID_REQUEST_FORMAT"
	ErrInvalidProperties    ErrorCode = "INVALID_PROPERTIES"
	ErrInvalidArtifactType  ErrorCode = "INVALID_ARTIFACT_TYPE"
	ErrInvalidArtifactState ErrorCode = "INVALID_ARTIFACT_STATE"
	ErrInvalidRuleType      ErrorCode = "INVALID_RULE_TYPE"
	ErrNotSupported         ErrorCode = "NOT_SUPPORTED"

	// System errors
	ErrStorageError  ErrorCode = "STORAGE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// RegistryError represents a structured registry error
type RegistryError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"` // Internal cause, not exposed in JSON
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// New creates a new RegistryError
func New(code ErrorCode, message string) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a new RegistryError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a new RegistryError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// Wrapf creates a new RegistryError wrapping an existing error with formatted message
func Wrapf(code ErrorCode, cause error, format string, args ...interface{}) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails adds details to a RegistryError
func (e *RegistryError) WithDetails(details map[string]interface{}) *RegistryError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to a RegistryError
func (e *RegistryError) WithRequestID(requestID string) *RegistryError {
	e.RequestID = requestID
	return e
}

// GetHTTPStatus returns the appropriate HTTP status code for the error
func (e *RegistryError) GetHTTPStatus() int {
	switch e.Code {
	case ErrInvalidRequestFormat, ErrInvalidProperties, ErrInvalidArtifactType,
		ErrInvalidArtifactState, ErrInvalidRuleType:
		return 400 // Bad Request

	case ErrArtifactNotFound, ErrVersionNotFound, ErrRuleNotFound:
		return 404 // Not Found

	case ErrArtifactAlreadyExists, ErrRuleAlreadyExists:
		return 409 // Conflict

	case ErrNotSupported:
		return 501 // Not Implemented

	case ErrStorageError, ErrInternalError:
		return 500 // Internal Server Error

	default:
		return 500 // Default to Internal Server Error
	}
}

// Common error constructors for convenience

// NewArtifactNotFound creates an artifact-not-found error
func NewArtifactNotFound(groupID, artifactID string) *RegistryError {
	return Newf(ErrArtifactNotFound, "artifact not found: %s/%s", groupID, artifactID)
}

// NewArtifactNotFoundByGlobalID creates an artifact-not-found error for a global id lookup
func NewArtifactNotFoundByGlobalID(globalID int64) *RegistryError {
	return Newf(ErrArtifactNotFound, "artifact not found for global id: %d", globalID)
}

// NewVersionNotFound creates a version-not-found error
func NewVersionNotFound(groupID, artifactID string, version int64) *RegistryError {
	return Newf(ErrVersionNotFound, "version %d not found for artifact: %s/%s", version, groupID, artifactID)
}

// NewArtifactAlreadyExists creates an already-exists error
func NewArtifactAlreadyExists(groupID, artifactID string) *RegistryError {
	return Newf(ErrArtifactAlreadyExists, "artifact already exists: %s/%s", groupID, artifactID)
}

// NewRuleNotFound creates a rule-not-found error
func NewRuleNotFound(rule string) *RegistryError {
	return Newf(ErrRuleNotFound, "rule not found: %s", rule)
}

// NewRuleAlreadyExists creates a rule-already-exists error
func NewRuleAlreadyExists(rule string) *RegistryError {
	return Newf(ErrRuleAlreadyExists, "rule already exists: %s", rule)
}

// NewInvalidProperties creates an invalid-properties error
func NewInvalidProperties(cause error) *RegistryError {
	return Wrap(ErrInvalidProperties, "properties could not be processed for storage", cause)
}

// NewStorageError creates a backend-level storage error
func NewStorageError(message string, cause error) *RegistryError {
	return Wrap(ErrStorageError, message, cause)
}

// IsRegistryError checks if an error is a RegistryError
func IsRegistryError(err error) bool {
	var re *RegistryError
	return errors.As(err, &re)
}

// AsRegistryError converts an error to RegistryError if possible
func AsRegistryError(err error) (*RegistryError, bool) {
	var re *RegistryError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasCode reports whether err is a RegistryError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	re, ok := AsRegistryError(err)
	return ok && re.Code == code
}
