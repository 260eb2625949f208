package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Classification markers for store failures. Wrap tags errors with one of
// these so downstream code can route on class without string matching.
var (
	// ErrNetwork marks transient connectivity failures. Eligible for
	// fallback and requeue.
	ErrNetwork = errors.New("network error")
	// ErrAuthentication marks an invalid or expired session. Eligible for
	// fallback; collection reads degrade rather than fail.
	ErrAuthentication = errors.New("authentication error")
	// ErrValidation marks malformed payloads. Fatal for the operation,
	// never retried.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable marks a durable store that cannot serve requests,
	// either because initialization failed or its backend is failing.
	ErrUnavailable = errors.New("store unavailable")
	// ErrStorage marks a generic store failure with no sharper class. Not
	// fallback-eligible: only classified transient failures detour.
	ErrStorage = errors.New("storage error")
)

// Wrap builds an error message that includes provider context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, scope, operation, message string, err error) error {
	detail := buildDetail(scope, operation, message)
	if marker == nil {
		marker = ErrStorage
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(scope, operation, message string) string {
	parts := make([]string, 0, 3)
	if scope = strings.TrimSpace(scope); scope != "" {
		parts = append(parts, scope)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "storage failure"
	}
	return strings.Join(parts, ": ")
}

// IsNetwork reports whether err is classified as a connectivity failure.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsAuthentication reports whether err is classified as a session failure.
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }

// IsValidation reports whether err is classified as a malformed payload.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable reports whether err indicates an unusable durable store.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

// IsStorage reports whether err is a generic, unclassified store failure.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }

// FallbackEligible reports whether a primary-provider failure may be retried
// against the local store. Only classified network and session failures
// qualify; everything else propagates to the caller untouched.
func FallbackEligible(err error) bool {
	return IsNetwork(err) || IsAuthentication(err)
}

// Retryable reports whether a queued mutation that failed with err should stay
// in the queue for another drain. Validation failures are terminal for the
// item.
func Retryable(err error) bool {
	return !IsValidation(err)
}

// FallbackError reports that both the primary operation and its local detour
// failed. It carries both causes so errors.Is classification still works.
type FallbackError struct {
	Operation string
	Table     string
	Primary   error
	Fallback  error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s %s: primary and fallback providers failed: primary: %v; fallback: %v",
		e.Operation, e.Table, e.Primary, e.Fallback)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}
