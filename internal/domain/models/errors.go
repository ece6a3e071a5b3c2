package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrModelFit         = errors.New("model fit failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrUpstream         = errors.New("upstream unavailable")
)

// InsufficientDataError is returned when fewer usable observations exist than
// a model needs.
type InsufficientDataError struct {
	What string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d %s, got %d", e.Need, e.What, e.Got)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// ModelFitError is returned when the variance model cannot be fitted.
type ModelFitError struct {
	Reason     string
	Iterations int
	Err        error
}

func (e *ModelFitError) Error() string {
	msg := "model fit failed: " + e.Reason
	if e.Iterations > 0 {
		msg = fmt.Sprintf("%s (after %d iterations)", msg, e.Iterations)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelFitError) Is(target error) bool { return target == ErrModelFit }

func (e *ModelFitError) Unwrap() error { return e.Err }

// InvalidInputError reports a malformed argument.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// PartialResultError carries an explicitly requested partial result together
// with the failure that made it partial.
type PartialResultError struct {
	Result *AnalysisResult
	Err    error
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("partial result for %s: %v", e.Result.Ticker, e.Err)
}

func (e *PartialResultError) Unwrap() error { return e.Err }

// UpstreamError wraps a failed call to a news or market-data provider.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrorKind is a short label for metrics and API error codes.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrModelFit):
		return "model_fit"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "internal"
	}
}
