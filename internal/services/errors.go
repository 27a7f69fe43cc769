package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"verdant/internal/breaker"
	"verdant/internal/identification"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderFailure     = errors.New("provider failure")
	ErrTimeout             = errors.New("timeout")
	ErrLockUnavailable     = errors.New("lock backend unavailable")
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
	ErrNotFound            = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProviderFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// CallStatusFor maps a provider call error to the status recorded in the
// aggregated result. Breaker rejections classify as circuit_open, deadline
// expiry as timeout, and everything else as a plain failure.
func CallStatusFor(err error) identification.CallStatus {
	switch {
	case err == nil:
		return identification.CallStatusSuccess
	case errors.Is(err, breaker.ErrOpen), errors.Is(err, ErrProviderUnavailable):
		return identification.CallStatusCircuitOpen
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return identification.CallStatusTimeout
	default:
		return identification.CallStatusFailure
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
