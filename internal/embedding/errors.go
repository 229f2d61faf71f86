package embedding

import (
	"errors"
	"fmt"
)

// ErrCacheUnavailable marks a cache backend failure. It is handled inside
// the batch processor by computing directly; it never fails a pipeline run.
var ErrCacheUnavailable = errors.New("embedding cache unavailable")

// ProviderError is a transient provider failure. The batch processor
// retries it with bounded exponential backoff.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// PermanentError is a provider failure that exhausted its retries. It is
// scoped to the affected batch items; other items in the same run still
// succeed.
type PermanentError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("embedding failed permanently for model %s after %d attempts: %v", e.Model, e.Attempts, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a permanent embedding failure.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
