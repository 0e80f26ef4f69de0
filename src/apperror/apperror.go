// Package apperror maps the error kinds of the SILC HTTP contract
// (not-found/conflict/invalid/gone/auth/unavailable/internal) to status
// codes centrally, instead of scattering http.Error calls through
// handlers. Run outcomes busy/timeout/overflow are not errors here: they
// are 200 responses carried by session.RunResult's status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Kind distinguishes the handling an error receives, not its Go type.
type Kind int

const (
	// KindInternal is the zero value on purpose: an un-annotated error
	// defaults to the safest (and loudest) handling.
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindGone
	KindAuth
	KindUnavailable
)

// Error is an apperror-annotated error carrying the HTTP status it maps to.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error (maps to 404).
func NotFound(format string, args ...interface{}) *Error { return newf(KindNotFound, format, args...) }

// Conflict builds a KindConflict error (maps to 409).
func Conflict(format string, args ...interface{}) *Error { return newf(KindConflict, format, args...) }

// InvalidInput builds a KindInvalidInput error (maps to 400).
func InvalidInput(format string, args ...interface{}) *Error {
	return newf(KindInvalidInput, format, args...)
}

// Gone builds a KindGone error (maps to 410).
func Gone(format string, args ...interface{}) *Error { return newf(KindGone, format, args...) }

// Auth builds a KindAuth error (maps to 401).
func Auth(format string, args ...interface{}) *Error { return newf(KindAuth, format, args...) }

// Unavailable builds a KindUnavailable error (maps to 503), used when
// MAX_SESSIONS is exceeded (spec §4.9 step 3).
func Unavailable(format string, args ...interface{}) *Error {
	return newf(KindUnavailable, format, args...)
}

// Wrap annotates a lower-level error as Internal, preserving the cause for logging.
func Wrap(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func statusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindGone:
		return http.StatusGone
	case KindAuth:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// detailResponse is the {"detail": "..."} shape spec §6.1 requires for errors.
type detailResponse struct {
	Detail string `json:"detail"`
}

// JSONWriter is satisfied by gin.Context's subset used here, kept
// narrow so this package stays framework-agnostic.
type JSONWriter interface {
	JSON(code int, obj interface{})
}

// Respond writes the correct status + {"detail": ...} body for err,
// logging internal errors with a correlation ID for operators to grep.
func Respond(c JSONWriter, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = &Error{Kind: KindInternal, Message: "internal error", Cause: err}
	}

	status := statusFor(appErr.Kind)
	detail := appErr.Message

	if appErr.Kind == KindInternal {
		correlationID := uuid.NewString()
		logrus.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"cause":          appErr.Cause,
		}).Error(appErr.Message)
		detail = fmt.Sprintf("%s (ref: %s)", appErr.Message, correlationID)
	}

	c.JSON(status, detailResponse{Detail: detail})
}
