package textanalysis

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure so the boundary can pick a status code and log it.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindConfiguration       Kind = "configuration"
	KindUpstreamQuota       Kind = "upstream_429"
	KindUpstreamAuth        Kind = "upstream_auth"
	KindUpstreamForbidden   Kind = "upstream_forbidden"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindUpstreamMalformed   Kind = "upstream_malformed"
	KindUpstreamGeneric     Kind = "upstream_generic"
)

// User-facing messages. They never carry provider detail.
const (
	MsgAPIKeyMissing       = "OpenAI API key not configured"
	MsgQuotaExceeded       = "OpenAI API quota exceeded"
	MsgInvalidAPIKey       = "Invalid OpenAI API key"
	MsgForbidden           = "OpenAI API access forbidden."
	MsgUnavailable         = "OpenAI API service temporarily unavailable. Please try again later"
	MsgNoResponse          = "No response from OpenAI API"
	MsgInvalidFormat       = "Invalid response format from AI service"
	MsgAnalysisFailed      = "Failed to analyze text with AI service."
	validationPrefix       = "Validation error: "
	msgInvalidJSONPayload  = "Invalid JSON payload"
	msgRequestBodyTooLarge = "Request body too large"
)

// Error is a classified failure. Message is safe to show to API clients; the
// wrapped cause carries the diagnostic detail and a stack.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Status maps the kind onto an HTTP status code.
func (e *Error) Status() int {
	return statusForKind(e.Kind)
}

// StackTrace renders the cause with the stack recorded when the error was built.
func (e *Error) StackTrace() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

func statusForKind(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, message string, cause error) *Error {
	if cause == nil {
		cause = pkgerrors.New(message)
	} else {
		cause = pkgerrors.WithStack(cause)
	}
	return &Error{Kind: kind, Message: message, cause: cause}
}

// NewValidationError joins every violated constraint into one message.
func NewValidationError(violations ...string) *Error {
	return newError(KindValidation, validationPrefix+strings.Join(violations, ", "), nil)
}

// NewBodyTooLargeError reports a request body over the transport's limit.
func NewBodyTooLargeError(cause error) *Error {
	return newError(KindValidation, validationPrefix+msgRequestBodyTooLarge, cause)
}

// AsError extracts a classified error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
