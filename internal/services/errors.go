package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrPrecondition    = errors.New("precondition failed")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

var markers = []struct {
	err  error
	kind string
}{
	{ErrValidation, "validation"},
	{ErrPrecondition, "precondition"},
	{ErrConfiguration, "configuration"},
	{ErrNotFound, "not_found"},
	{ErrTimeout, "timeout"},
	{ErrTransient, "transient"},
	{ErrExternalService, "external_service"},
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails summarizes a wrapped error for persistence.
type ErrorDetails struct {
	Kind    string
	Message string
}

// Details extracts the marker kind and a human readable message from err.
// Kind is empty when err carries none of the package markers.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Message: strings.TrimSpace(err.Error())}
	for _, m := range markers {
		if errors.Is(err, m.err) {
			details.Kind = m.kind
			break
		}
	}
	return details
}

// IsPermanent reports whether err is tagged with a marker that must never be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrNotFound)
}

// StatusCoder is implemented by errors that carry an HTTP status from a
// remote provider.
type StatusCoder interface {
	HTTPStatus() int
}

// HTTPStatus returns the first HTTP status carried in err's chain.
func HTTPStatus(err error) (int, bool) {
	var coder StatusCoder
	if errors.As(err, &coder) {
		if code := coder.HTTPStatus(); code > 0 {
			return code, true
		}
	}
	return 0, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
