// Package services defines the business logic for dispatching, importing,
// and opt-status processing. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import (
	"errors"
	"fmt"
	"time"
)

// Dispatch precondition errors. Any of these aborts the whole batch before
// the first send attempt, with zero persisted records.
var (
	// ErrNoSelector is returned when a dispatch request supplies no segment
	// selector at all.
	ErrNoSelector = errors.New("a segment selector is required")

	// ErrAmbiguousSelector is returned when a dispatch request supplies more
	// than one segment selector.
	ErrAmbiguousSelector = errors.New("exactly one segment selector must be supplied")

	// ErrEmptyMessageBody is returned when the message template is blank.
	ErrEmptyMessageBody = errors.New("message body is required")

	// ErrGatewayNotConfigured is returned when the Twilio credentials are
	// missing or incomplete.
	ErrGatewayNotConfigured = errors.New("twilio credentials not configured")

	// ErrBatchNotFound indicates the requested dispatch batch does not exist.
	ErrBatchNotFound = errors.New("dispatch batch not found")
)

// ComplianceError reports that a dispatch was attempted outside the legal
// sending window. It carries the human-readable reason and the next instant
// at which sending becomes permissible.
type ComplianceError struct {
	Reason      string
	NextAllowed time.Time
}

// Error implements the error interface.
func (e *ComplianceError) Error() string {
	return fmt.Sprintf("%s (next allowed: %s)", e.Reason, e.NextAllowed.Format(time.RFC1123))
}
