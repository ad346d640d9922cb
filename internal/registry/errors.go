package registry

import "errors"

var (
	// ErrPackageNotFound is returned when neither the local search path,
	// the cache nor the registry has the requested package or version.
	ErrPackageNotFound = errors.New("package not found")

	// ErrNetwork is returned when the registry cannot be reached or answers
	// with an unexpected status.
	ErrNetwork = errors.New("network error")
)

// retryableError marks a transient failure (connection error, 5xx) that
// retry attempts again.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	return errors.As(err, new(*retryableError))
}
