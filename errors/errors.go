package errors

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

const (
	UnknownCode       = 500
	UnknownReason     = "INTERNAL_ERROR"
	MetadataSeparator = ", "
	MetadataPrefix    = "metadata={"
	MetadataSuffix    = "}"
	CausePrefix       = "cause="
)

// Status is the externally visible part of an error: the HTTP status code,
// the machine readable reason and a human readable message.
type Status struct {
	Code     int               `json:"-"`
	Reason   string            `json:"code,omitempty"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Error is a structured error carrying a Status and an optional cause.
type Error struct {
	Status
	cause error
}

func (e *Error) Error() string {
	var msg strings.Builder

	msg.WriteString("code=")
	msg.WriteString(strconv.Itoa(e.Code))
	if e.Reason != "" {
		msg.WriteString(MetadataSeparator)
		msg.WriteString("reason=")
		msg.WriteString(e.Reason)
	}
	msg.WriteString(MetadataSeparator)
	msg.WriteString("message=")
	msg.WriteString(e.Message)

	if len(e.Metadata) > 0 {
		msg.WriteString(MetadataSeparator)
		msg.WriteString(MetadataPrefix)
		first := true
		for k, v := range e.Metadata {
			if !first {
				msg.WriteString(", ")
			}
			msg.WriteString(k)
			msg.WriteByte('=')
			msg.WriteString(v)
			first = false
		}
		msg.WriteString(MetadataSuffix)
	}

	if e.cause != nil {
		msg.WriteString(MetadataSeparator)
		msg.WriteString(CausePrefix)
		msg.WriteString(e.cause.Error())
	}

	return msg.String()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithMetadata returns a copy of e with m merged into its metadata.
func (e *Error) WithMetadata(m map[string]string) *Error {
	if len(m) == 0 {
		return e
	}

	err := e.clone()
	if err.Metadata == nil {
		err.Metadata = make(map[string]string, len(m))
	}

	maps.Copy(err.Metadata, m)
	return err
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}

	err := e.clone()
	err.cause = cause
	return err
}

// WithReason returns a copy of e with the given machine readable reason.
func (e *Error) WithReason(reason string) *Error {
	err := e.clone()
	err.Reason = reason
	return err
}

// WithMessage returns a copy of e with a new message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	err := e.clone()
	err.Message = format
	if len(args) > 0 {
		err.Message = fmt.Sprintf(format, args...)
	}
	return err
}

func (e *Error) clone() *Error {
	var metadata map[string]string
	if len(e.Metadata) > 0 {
		metadata = make(map[string]string, len(e.Metadata))
		maps.Copy(metadata, e.Metadata)
	}

	return &Error{
		Status: Status{
			Code:     e.Code,
			Reason:   e.Reason,
			Message:  e.Message,
			Metadata: metadata,
		},
		cause: e.cause,
	}
}

// Is reports whether err is an *Error of the same kind. Errors with a reason
// compare by code and reason so that a reworded message still matches.
func (e *Error) Is(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return false
	}
	if e.Reason != "" || ge.Reason != "" {
		return e.Code == ge.Code && e.Reason == ge.Reason
	}
	return e.Code == ge.Code && e.Message == ge.Message
}

func (e *Error) GetCode() int {
	return e.Code
}

func (e *Error) GetReason() string {
	return e.Reason
}

func (e *Error) GetMessage() string {
	return e.Message
}

// GetMetadata returns a copy of the metadata.
func (e *Error) GetMetadata() map[string]string {
	if len(e.Metadata) == 0 {
		return nil
	}

	result := make(map[string]string, len(e.Metadata))
	maps.Copy(result, e.Metadata)
	return result
}

func (e *Error) GetCause() error {
	return e.cause
}

// New creates a new error with the given code and formatted message.
func New(code int, format string, args ...any) *Error {
	var message string
	if len(args) == 0 {
		message = format
	} else {
		message = fmt.Sprintf(format, args...)
	}

	return &Error{
		Status: Status{
			Code:    code,
			Message: message,
		},
	}
}

// NewReason creates a new error with a machine readable reason.
func NewReason(code int, reason, format string, args ...any) *Error {
	err := New(code, format, args...)
	err.Reason = reason
	return err
}

func NewWithMetadata(code int, metadata map[string]string, format string, args ...any) *Error {
	err := New(code, format, args...)
	if len(metadata) > 0 {
		err.Metadata = make(map[string]string, len(metadata))
		maps.Copy(err.Metadata, metadata)
	}
	return err
}

// FromError converts err to *Error, searching the chain first. Unknown errors
// become an internal error that keeps err as its cause.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	if ge, ok := err.(*Error); ok {
		return ge
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	return NewReason(UnknownCode, UnknownReason, "internal error").WithCause(err)
}

// Wrap wraps err with a new error. Returns nil if err is nil.
func Wrap(err error, code int, format string, args ...any) *Error {
	if err == nil {
		return nil
	}

	return New(code, format, args...).WithCause(err)
}

func WrapWithMetadata(err error, code int, metadata map[string]string, format string, args ...any) *Error {
	if err == nil {
		return nil
	}

	return NewWithMetadata(code, metadata, format, args...).WithCause(err)
}
