// Package apperr defines the error taxonomy shared by the controller, gateways and transports.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrGateway      = errors.New("gateway error")
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError reports draft fields rejected at save time.
// Fields maps the field name ("title", "content") to a human-readable reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// GatewayError wraps a failure returned by the remote store.
// The cause stays reachable through Unwrap, so errors.Is(err, ErrNotFound) still works.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrGateway) match.
func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}
