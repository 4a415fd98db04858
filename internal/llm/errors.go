package llm

import "fmt"

// RequestError is returned by Decide when every retry attempt failed. Its
// Error() string always carries the "request_failed: ..." prefix the
// controller stores verbatim as last_result.
type RequestError struct {
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request_failed: %s", e.Reason)
}

func requestErr(format string, args ...interface{}) *RequestError {
	return &RequestError{Reason: fmt.Sprintf(format, args...)}
}
