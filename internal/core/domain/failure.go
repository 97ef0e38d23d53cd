package domain

import "fmt"

// FailureKind is the stable taxonomy every generation error is mapped to.
type FailureKind string

const (
	FailureInvalidInput       FailureKind = "invalid_input"
	FailureInvalidCredentials FailureKind = "invalid_credentials"
	FailureRateLimited        FailureKind = "rate_limited"
	FailureOverloaded         FailureKind = "overloaded"
	FailureNoImageProduced    FailureKind = "no_image_produced"
	FailureCancelled          FailureKind = "cancelled"
	FailureUnknown            FailureKind = "unknown"
)

// Retryable reports whether the kind is transient upstream trouble.
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureOverloaded
}

// Failure is the typed error surfaced by the generation core.
type Failure struct {
	Kind      FailureKind
	Message   string
	Retryable bool
	// Attempts is the number of transport calls made, 0 if none.
	Attempts int
	Err      error
}

// NewFailure builds a failure of the given kind around an optional cause.
func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{
		Kind:      kind,
		Message:   message,
		Retryable: kind.Retryable(),
		Err:       cause,
	}
}

func (f *Failure) Error() string {
	if f.Err != nil && f.Err.Error() != f.Message {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
