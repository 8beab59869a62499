package types

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// ErrorKind classifies provider failures for outcome reporting and retry
// decisions.
type ErrorKind string

const (
	ErrCredentials  ErrorKind = "credentials"
	ErrAccessDenied ErrorKind = "access_denied"
	ErrThrottled    ErrorKind = "throttled"
	ErrTransient    ErrorKind = "transient"
	ErrNotFound     ErrorKind = "not_found"
	ErrSchema       ErrorKind = "schema"
	ErrDeadline     ErrorKind = "deadline"
	ErrUnknown      ErrorKind = "unknown"
)

// CredentialsError aborts a whole discovery run. It is the only error the
// engine propagates to the caller.
type CredentialsError struct {
	RoleRef string
	Err     error
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("credential acquisition failed for %s: %v", e.RoleRef, e.Err)
}

func (e *CredentialsError) Unwrap() error { return e.Err }

// Classify maps a provider error to an ErrorKind. API error codes come from
// smithy; context errors map to deadline.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var credErr *CredentialsError
	if errors.As(err, &credErr) {
		return ErrCredentials
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrDeadline
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case isAccessDeniedCode(code):
			return ErrAccessDenied
		case isThrottleCode(code):
			return ErrThrottled
		case isNotFoundCode(code):
			return ErrNotFound
		case apiErr.ErrorFault() == smithy.FaultServer:
			return ErrTransient
		}
		return ErrUnknown
	}
	// Plain network failures retry like server faults.
	return ErrTransient
}

// Retryable reports whether a call that failed with kind should go through
// the backoff policy.
func (k ErrorKind) Retryable() bool {
	return k == ErrThrottled || k == ErrTransient
}

func isAccessDeniedCode(code string) bool {
	switch code {
	case "AccessDenied", "AccessDeniedException", "UnauthorizedOperation",
		"AuthorizationError", "NotAuthorized", "Forbidden":
		return true
	}
	return false
}

func isThrottleCode(code string) bool {
	switch code {
	case "Throttling", "ThrottlingException", "TooManyRequestsException",
		"RequestLimitExceeded", "SlowDown", "LimitExceededException":
		return true
	}
	return false
}

func isNotFoundCode(code string) bool {
	if strings.HasSuffix(code, "NotFound") || strings.HasSuffix(code, "NotFoundException") {
		return true
	}
	switch code {
	case "NoSuchEntity", "NoSuchBucket", "ResourceNotFoundException", "NotFoundException":
		return true
	}
	return false
}
