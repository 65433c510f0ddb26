package errutil

// Detail points at the field or parameter that caused the failure.
type Detail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// BaseError is the single error shape crossing service boundaries. The
// transport layer maps Code to a status; Err stays internal and is never
// serialized.
type BaseError struct {
	Code    CoreStatus
	Message string
	Details []Detail
	Err     error
}

type Option func(*BaseError)

func WithDetails(details ...Detail) Option {
	return func(e *BaseError) {
		e.Details = append(e.Details, details...)
	}
}

func WithErr(err error) Option {
	return func(e *BaseError) {
		e.Err = err
	}
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e BaseError) Unwrap() error {
	return e.Err
}

// JSON is the response body rendered by the HTTP error middleware.
func (e BaseError) JSON() map[string]any {
	body := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return map[string]any{"error": body}
}

func newError(code CoreStatus, msg string, opts ...Option) error {
	e := BaseError{Code: code, Message: msg}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func BadRequest(msg string, opts ...Option) error {
	return newError(StatusBadRequest, msg, opts...)
}

func ValidationFailed(msg string, opts ...Option) error {
	return newError(StatusValidationFailed, msg, opts...)
}

func Unauthorized(msg string, opts ...Option) error {
	return newError(StatusUnauthorized, msg, opts...)
}

func Forbidden(msg string, opts ...Option) error {
	return newError(StatusForbidden, msg, opts...)
}

func NotFound(msg string, opts ...Option) error {
	return newError(StatusNotFound, msg, opts...)
}

func Conflict(msg string, opts ...Option) error {
	return newError(StatusConflict, msg, opts...)
}

func UnprocessableEntity(msg string, opts ...Option) error {
	return newError(StatusUnprocessableEntity, msg, opts...)
}

func Timeout(msg string, opts ...Option) error {
	return newError(StatusTimeout, msg, opts...)
}

func Internal(msg string, opts ...Option) error {
	return newError(StatusInternal, msg, opts...)
}

func BadGateway(msg string, opts ...Option) error {
	return newError(StatusBadGateway, msg, opts...)
}

func ServiceUnavailable(msg string, opts ...Option) error {
	return newError(StatusServiceUnavailable, msg, opts...)
}
