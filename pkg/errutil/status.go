package errutil

import "net/http"

// CoreStatus is the transport-agnostic error class carried by BaseError.
type CoreStatus string

const (
	StatusBadRequest          CoreStatus = "bad_request"
	StatusValidationFailed    CoreStatus = "validation_failed"
	StatusUnauthorized        CoreStatus = "unauthorized"
	StatusForbidden           CoreStatus = "forbidden"
	StatusNotFound            CoreStatus = "not_found"
	StatusConflict            CoreStatus = "conflict"
	StatusUnprocessableEntity CoreStatus = "unprocessable_entity"
	StatusTooManyRequests     CoreStatus = "too_many_requests"
	StatusTimeout             CoreStatus = "timeout"
	StatusInternal            CoreStatus = "internal"
	StatusBadGateway          CoreStatus = "bad_gateway"
	StatusServiceUnavailable  CoreStatus = "service_unavailable"
	StatusUnknown             CoreStatus = "unknown"
)

// HTTPStatus maps the CoreStatus to the status code returned by the HTTP layer.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest:
		return http.StatusBadRequest
	case StatusValidationFailed:
		return http.StatusUnprocessableEntity
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusBadGateway:
		return http.StatusBadGateway
	case StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
