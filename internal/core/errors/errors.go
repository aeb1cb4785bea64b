// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Channel and entity resolution errors.
var (
	// ErrChannelNotFound indicates a channel handle could not be resolved.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrNotAChannel indicates the resolved entity is not a broadcast channel.
	ErrNotAChannel = errors.New("entity is not a channel")

	// ErrInvalidUsername indicates the platform rejected the handle as malformed.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")
)

// Response and parsing errors.
var (
	// ErrEmptyResponse indicates an empty or unexpected response was received.
	ErrEmptyResponse = errors.New("empty response")
)

// Rate limiting errors.
var (
	// ErrFloodWaitTooLong indicates the platform asked to wait longer than allowed.
	ErrFloodWaitTooLong = errors.New("flood wait exceeds limit")
)

// Query validation errors.
var (
	// ErrInvalidTimeUnit indicates an unsupported date_trunc unit.
	ErrInvalidTimeUnit = errors.New("invalid time unit")

	// ErrInvalidDateRange indicates unparsable or inverted range bounds.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrNoSeedLists indicates a query was issued without any seed list.
	ErrNoSeedLists = errors.New("no seed lists selected")

	// ErrEmptyGraph indicates there is nothing to build or export.
	ErrEmptyGraph = errors.New("graph has no edges")
)

// Configuration errors.
var (
	// ErrSinkDisabled indicates an optional export sink is not configured.
	ErrSinkDisabled = errors.New("export sink disabled")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
