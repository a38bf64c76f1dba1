package fetch

import "time"

// FailureClass classifies a failed page request for retry policy selection.
type FailureClass int

const (
	// ClassRateLimited is an HTTP 429 response.
	ClassRateLimited FailureClass = iota
	// ClassServerError is any 5xx response.
	ClassServerError
	// ClassTimeout is a request that exceeded the client timeout.
	ClassTimeout
	// ClassNetwork is any other transport-level failure.
	ClassNetwork
	// ClassClientError is a non-429 4xx response. Terminal, never retried.
	ClassClientError
)

func (c FailureClass) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerError:
		return "server_error"
	case ClassTimeout:
		return "timeout"
	case ClassNetwork:
		return "network"
	case ClassClientError:
		return "client_error"
	}
	return "unknown"
}

// Retryable reports whether a failure of this class may be retried.
func (c FailureClass) Retryable() bool {
	return c != ClassClientError
}

// Backoff returns the delay before retrying after the given attempt
// (0-based). Rate limiting backs off exponentially; server errors and
// transport failures back off linearly. Kept pure so retry schedules can be
// tested without sleeping.
func Backoff(base time.Duration, attempt int, class FailureClass) time.Duration {
	switch class {
	case ClassRateLimited:
		return base * time.Duration(1<<attempt)
	case ClassServerError, ClassTimeout, ClassNetwork:
		return base * time.Duration(attempt+1)
	default:
		return 0
	}
}
