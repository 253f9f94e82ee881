package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// TransportError wraps a failure to reach or get a usable answer from the
// generative service. These are the only errors the caller should surface
// as "try again".
type TransportError struct {
	Err       error
	IsTimeout bool
}

func (e *TransportError) Error() string {
	if e.IsTimeout {
		return "generation timed out: " + e.Err.Error()
	}
	return "generation failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassifyError wraps network and timeout failures as TransportError and
// leaves everything else untouched.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Err: err, IsTimeout: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransportError{Err: err, IsTimeout: netErr.Timeout()}
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline exceeded", "connection refused", "connection reset", "no such host", "429", "rate limit", "503", "502"} {
		if strings.Contains(errStr, marker) {
			return &TransportError{Err: err, IsTimeout: strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline")}
		}
	}

	return err
}

// IsRetryable reports whether the error is a transport error worth retrying.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
