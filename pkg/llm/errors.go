package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrEmptyCompletion is returned when the model answers with blank text.
var ErrEmptyCompletion = errors.New("llm: empty completion")

// StatusError carries the HTTP status a provider answered with.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string { return fmt.Sprintf("llm: status %d: %v", e.Code, e.Err) }
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus returns the provider status code.
func (e *StatusError) HTTPStatus() int { return e.Code }

// langchaingo clients report HTTP failures only in the error text.
var statusPattern = regexp.MustCompile(`(?i)status(?: code)?:? (\d{3})\b`)

// classify wraps err in a StatusError when the provider reported a status code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) {
		return err
	}
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil || code < 100 || code > 599 {
		return err
	}
	return &StatusError{Code: code, Err: err}
}
