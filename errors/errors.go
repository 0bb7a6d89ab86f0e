// Package errors provides error handling for tabula.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors for use across tabula.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidConfig indicates a configuration file was malformed or invalid
	ErrInvalidConfig = New("invalid configuration")

	// ErrInvalidRule indicates an override rule failed validation
	ErrInvalidRule = New("invalid rule")

	// ErrRuleConflict indicates override rules conflict and could not be resolved
	ErrRuleConflict = New("rule conflict")

	// ErrNoMapping indicates no mapping configuration has been loaded
	ErrNoMapping = New("no mapping configuration loaded")

	// ErrNoBackup indicates there is no previous configuration to roll back to
	ErrNoBackup = New("no configuration backup available")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidConfigError checks if an error is or wraps ErrInvalidConfig
func IsInvalidConfigError(err error) bool {
	return err != nil && Is(err, ErrInvalidConfig)
}

// IsInvalidRuleError checks if an error is or wraps ErrInvalidRule
func IsInvalidRuleError(err error) bool {
	return err != nil && Is(err, ErrInvalidRule)
}

// IsRuleConflictError checks if an error is or wraps ErrRuleConflict
func IsRuleConflictError(err error) bool {
	return err != nil && Is(err, ErrRuleConflict)
}

// NewInvalidConfigError creates an invalid-configuration error with a formatted message
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}

// NewInvalidRuleError creates an invalid-rule error with a formatted message
func NewInvalidRuleError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRule, Newf(format, args...).Error())
}
