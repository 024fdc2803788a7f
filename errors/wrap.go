package errors

import (
	goerrors "errors"
	"strconv"
)

// Re-exported so callers need a single errors import.
var (
	Unwrap = goerrors.Unwrap
	Is     = goerrors.Is
	As     = goerrors.As
	Join   = goerrors.Join
)

// Code is the HTTP status of err; 500 for errors that are not *Error.
func Code(err error) int {
	if err == nil {
		return 200
	}
	return FromError(err).Code
}

// Reason is the machine readable reason of err, falling back to the status
// code when none was set. Empty for nil.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	e := FromError(err)
	if e.Reason != "" {
		return e.Reason
	}
	return strconv.Itoa(e.Code)
}
