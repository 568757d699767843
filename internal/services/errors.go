package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/votra/contracts/validation"
)

// Sentinel errors surfaced by the services layer. Handlers map these to HTTP
// status codes; none of them are retried automatically except
// ErrConcurrencyConflict, which gets a bounded local retry.
var (
	ErrTemplateNotFound     = errors.New("template not found or inactive")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrCounterpartyNotFound = errors.New("counterparty not found")
	ErrConcurrencyConflict  = errors.New("conflicting concurrent update")
)

// ValidationError carries field-level violations back to the caller.
// Deterministic: never retried.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f := range e.Violations {
		fields = append(fields, f)
	}
	return "validation failed: " + strings.Join(fields, ", ")
}

// InvalidStateError reports an operation that is illegal in the document's
// current state, along with the states it would be legal from.
type InvalidStateError struct {
	Current string
	Allowed []string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %q (allowed: %s)", e.Current, strings.Join(e.Allowed, ", "))
}
