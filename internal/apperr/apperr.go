// Package apperr defines the closed error taxonomy shared by every service.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one member of the error taxonomy.
type Kind string

const (
	KindSchemaInvalid       Kind = "SCHEMA_INVALID"
	KindVersionConflict     Kind = "VERSION_CONFLICT"
	KindConfigNotFound      Kind = "CONFIG_NOT_FOUND"
	KindNoActive            Kind = "NO_ACTIVE"
	KindUnknownConfigType   Kind = "UNKNOWN_CONFIG_TYPE"
	KindContentFiltered     Kind = "CONTENT_FILTERED"
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	KindTimeout             Kind = "TIMEOUT"
	KindConversationClosed  Kind = "CONVERSATION_CLOSED"
	KindInternal            Kind = "INTERNAL"
)

// StatusUnavailableForLegalReasons is used for content filtered by a moderator.
const StatusUnavailableForLegalReasons = http.StatusUnavailableForLegalReasons

type kindInfo struct {
	status int
	retry  bool
}

var kinds = map[Kind]kindInfo{
	KindSchemaInvalid:       {status: http.StatusBadRequest},
	KindVersionConflict:     {status: http.StatusConflict},
	KindConfigNotFound:      {status: http.StatusNotFound},
	KindNoActive:            {status: http.StatusNotFound},
	KindUnknownConfigType:   {status: http.StatusBadRequest},
	KindContentFiltered:     {status: StatusUnavailableForLegalReasons},
	KindUpstreamUnavailable: {status: http.StatusServiceUnavailable, retry: true},
	KindTimeout:             {status: http.StatusGatewayTimeout, retry: true},
	KindConversationClosed:  {status: http.StatusConflict},
	KindInternal:            {status: http.StatusInternalServerError},
}

// Valid reports whether k is a member of the taxonomy.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Retryable returns the default retry hint for the kind.
func (k Kind) Retryable() bool {
	return kinds[k].retry
}

// Error is a classified error. Status and Retry default from the kind but
// can be overridden when passing through a downstream error envelope.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Retry   bool
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by kind so errors.Is(err, apperr.New(KindTimeout, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind with default status and retry.
func New(kind Kind, format string, args ...any) *Error {
	if !kind.Valid() {
		kind = KindInternal
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Status:  kind.Status(),
		Retry:   kind.Retryable(),
	}
}

// Wrap classifies cause under kind, keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	e := New(kind, format, args...)
	e.cause = cause
	if cause != nil {
		if e.Message == "" {
			e.Message = cause.Error()
		} else {
			e.Message += ": " + cause.Error()
		}
	}
	return e
}

// From classifies any error. Classified errors are returned unchanged,
// context deadline errors become TIMEOUT and everything else INTERNAL
// with retry disabled.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, err, "")
	}
	internal := Wrap(KindInternal, err, "")
	internal.Retry = false
	return internal
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
