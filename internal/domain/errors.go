package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBadRequest marks malformed query input (missing, non-numeric or
	// out-of-range coordinates).
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound means the coordinate resolves to no grid cell.
	ErrNotFound = errors.New("no grid cell at location")

	// ErrMissingField marks a data-integrity problem: a column the schema
	// requires is absent or NULL.
	ErrMissingField = errors.New("missing grid field")

	// ErrNetworkFailure marks a client-side failure to reach the location API
	// or to read its response.
	ErrNetworkFailure = errors.New("network failure")
)

// MissingFieldError lists the fields that were required but absent.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingField, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }
