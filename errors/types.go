package errors

// 4xx
func BadRequest(format string, args ...any) *Error {
	return NewReason(400, "BAD_REQUEST", format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return NewReason(401, "UNAUTHORIZED", format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return NewReason(403, "FORBIDDEN", format, args...)
}

func NotFound(format string, args ...any) *Error {
	return NewReason(404, "NOT_FOUND", format, args...)
}

func Conflict(format string, args ...any) *Error {
	return NewReason(409, "CONFLICT", format, args...)
}

func TooManyRequests(format string, args ...any) *Error {
	return NewReason(429, "RATE_LIMIT_EXCEEDED", format, args...)
}

// 5xx
func Internal(format string, args ...any) *Error {
	return NewReason(500, UnknownReason, format, args...)
}

func ServiceUnavailable(format string, args ...any) *Error {
	return NewReason(503, "SERVICE_UNAVAILABLE", format, args...)
}

func BadRequestWithMetadata(metadata map[string]string, format string, args ...any) *Error {
	return BadRequest(format, args...).WithMetadata(metadata)
}

func ForbiddenWithMetadata(metadata map[string]string, format string, args ...any) *Error {
	return Forbidden(format, args...).WithMetadata(metadata)
}
