package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/tryon/internal/core/domain"
)

// The upstream service does not hand back a structured error code through
// every client path, so transient failures are recognised from the error text.
// Update these tables, not the retry or API code, when upstream wording changes.
var (
	rateLimitPatterns = []string{
		"resource_exhausted",
		"resource has been exhausted",
		"quota",
		"rate limit",
		"too many requests",
	}

	overloadPatterns = []string{
		"overloaded",
		"unavailable",
	}

	// Status codes only count when they are labelled as one, so ports and
	// request ids that happen to contain the digits do not match.
	rateLimitCode = regexp.MustCompile(`\b(?:http|status|error|code)\W{0,3}429\b`)
	overloadCode  = regexp.MustCompile(`\b(?:http|status|error|code)\W{0,3}503\b`)
)

// StatusError is a non-200 answer from the upstream HTTP API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Classify maps a raised error onto the failure taxonomy.
func Classify(err error) domain.FailureKind {
	if err == nil {
		return ""
	}

	var f *domain.Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	if errors.Is(err, context.Canceled) {
		return domain.FailureCancelled
	}
	// A single attempt ran out of time: treat it like an overloaded upstream.
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureOverloaded
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FailureOverloaded
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return domain.FailureRateLimited
		case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return domain.FailureOverloaded
		}
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted:
			return domain.FailureRateLimited
		case codes.Unavailable, codes.DeadlineExceeded:
			return domain.FailureOverloaded
		case codes.Canceled:
			return domain.FailureCancelled
		}
	}

	msg := strings.ToLower(err.Error())
	if rateLimitCode.MatchString(msg) || containsAny(msg, rateLimitPatterns) {
		return domain.FailureRateLimited
	}
	if overloadCode.MatchString(msg) || containsAny(msg, overloadPatterns) {
		return domain.FailureOverloaded
	}

	return domain.FailureUnknown
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}

// Finalize turns the error that ended a call into the failure shown to the
// user. attempts is the number of transport calls made.
func Finalize(err error, attempts int) *domain.Failure {
	if err == nil {
		return nil
	}

	kind := Classify(err)

	// Input and credential failures already explain what the caller must fix.
	var existing *domain.Failure
	if errors.As(err, &existing) && existing.Message != "" &&
		(kind == domain.FailureInvalidInput || kind == domain.FailureInvalidCredentials) {
		out := *existing
		out.Attempts = attempts
		return &out
	}

	f := domain.NewFailure(kind, userMessage(kind, attempts), err)
	f.Attempts = attempts
	return f
}

func userMessage(kind domain.FailureKind, attempts int) string {
	retried := attempts - 1
	if retried < 0 {
		retried = 0
	}

	switch kind {
	case domain.FailureInvalidInput:
		return "The request is incomplete. Please check the selected images or description."
	case domain.FailureInvalidCredentials:
		return "API key is missing. Set gemini.api_key in the config or the GEMINI_API_KEY environment variable."
	case domain.FailureRateLimited:
		return fmt.Sprintf("The image model's rate limit was hit. Retried automatically %d times without success; please wait a minute and try again.", retried)
	case domain.FailureOverloaded:
		return fmt.Sprintf("The image model is busy right now. Retried automatically %d times without success; please try again later.", retried)
	case domain.FailureNoImageProduced:
		return "The model did not return an image. Please try again or adjust the description."
	case domain.FailureCancelled:
		return "Generation was cancelled."
	default:
		return "Generation failed. Please check your network connection and try again."
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
