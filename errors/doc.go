// Package errors provides structured error types for wasm-isolate.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Sentinels such as ErrDisposed or ErrInvalidArgument carry only a kind and match
// any *Error of that kind with errors.Is:
//
//	if errors.Is(err, errors.ErrDisposed) {
//		// the context, wrapper or proxy was already closed
//	}
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindFileNotFound).
//		Path("/opt/mods/app.wasm").
//		Detail("codebase does not exist").
//		Build()
//
// Failures of asynchronous cross-boundary calls are always delivered as an
// *AggregateError wrapping the original error.
package errors
