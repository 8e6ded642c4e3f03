package api

import (
	"errors"
	"net/http"

	service "github.com/okian/techrank/internal/app"
	"github.com/okian/techrank/internal/adapters/repository"
	"github.com/okian/techrank/internal/adapters/transfer"
	"github.com/okian/techrank/internal/domain/model"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrPayloadTooLarge = errors.New("request body too large")
)

// Error records the handler operation that failed along with an optional
// kind and cause. errors.Is matches both the kind and the cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

// Wrap attaches op to err.
func Wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// NewKind returns an error of kind with no further cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// bodyError reports a request body that could not be read or parsed. A body
// cut off by http.MaxBytesReader becomes ErrPayloadTooLarge, anything else
// takes kind.
func bodyError(op string, kind, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewKind(op, ErrPayloadTooLarge)
	}
	if kind == nil {
		return Wrap(op, err)
	}
	return WrapKind(op, kind, err)
}

func (e *Error) Error() string { return e.Op + ": " + e.message() }

// message is the client-facing text, without the op.
func (e *Error) message() string {
	switch {
	case e.Err == nil && e.Kind == nil:
		return "unknown error"
	case e.Err == nil:
		return e.Kind.Error()
	case e.Kind == nil || errors.Is(e.Err, e.Kind):
		return e.Err.Error()
	default:
		return e.Kind.Error() + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, transfer.ErrInvalidPayload):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, transfer.ErrArchiveDisabled):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
