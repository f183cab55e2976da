package errors

import "strings"

// AggregateError carries the failures of an asynchronous cross-boundary call.
// The original error is never returned directly to the awaiting caller; it is
// always wrapped here, and reachable through errors.Is/As.
type AggregateError struct {
	Errors []error
}

// Aggregate wraps errs, dropping nils. It returns nil when nothing remains.
func Aggregate(errs ...error) *AggregateError {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &AggregateError{Errors: kept}
}

func (e *AggregateError) Error() string {
	var b strings.Builder
	b.WriteString("[invoke] remote: one or more errors occurred")
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the inner errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Is matches ErrRemote and any other AggregateError.
func (e *AggregateError) Is(target error) bool {
	switch t := target.(type) {
	case *AggregateError:
		return true
	case *Error:
		return t.Kind == KindRemote && (t.Phase == "" || t.Phase == PhaseInvoke)
	}
	return false
}

// First returns the first inner error.
func (e *AggregateError) First() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}
