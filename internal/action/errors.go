package action

import (
	"fmt"
	"strings"
)

// ErrorKind distinguishes malformed LLM output (parse_error) from a
// structurally valid but semantically wrong action (invalid). Both count
// toward a controller's consecutive_errors, and the prefixed Error() string
// is stored verbatim as last_result so the LLM sees its own mistake.
type ErrorKind string

const (
	ParseErrorKind ErrorKind = "parse_error"
	InvalidKind    ErrorKind = "invalid"
)

// ParseError is returned by Parse whenever raw LLM text cannot be turned
// into a valid Action. Its Error() string always carries the
// "parse_error: ..." or "invalid: ..." prefix so it can be stored verbatim
// as last_result.
type ParseError struct {
	Kind   ErrorKind
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func parseErr(format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: ParseErrorKind, Reason: fmt.Sprintf(format, args...)}
}

func invalidErr(format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: InvalidKind, Reason: fmt.Sprintf(format, args...)}
}

// IsErrorResult reports whether result is one of the four result kinds
// that count toward a controller's consecutive-error backoff: parse_error,
// invalid, request_failed, or decision_error. Engine refusals (cooldown,
// blocked:*, no_path) and "ok" never count.
func IsErrorResult(result string) bool {
	return strings.HasPrefix(result, string(ParseErrorKind)+":") ||
		strings.HasPrefix(result, string(InvalidKind)+":") ||
		strings.HasPrefix(result, "request_failed:") ||
		strings.HasPrefix(result, "decision_error:")
}
