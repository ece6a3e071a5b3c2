package http

import "net/http"

// AppError is a client-facing failure: a stable code, a message and the HTTP
// status it maps to. Err keeps the cause for logs and errors.Is.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = map[string]interface{}{}
	}
	e.Params[key] = value
	return e
}

// WithError attaches the cause without exposing it in the response body.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// statusCodes is the default code for each status helper below.
var statusCodes = map[int]string{
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusTooManyRequests:     "ERR_RATE_LIMITED",
	http.StatusInternalServerError: "ERR_INTERNAL",
	http.StatusBadGateway:          "ERR_UPSTREAM",
	http.StatusServiceUnavailable:  "ERR_UNAVAILABLE",
	http.StatusGatewayTimeout:      "ERR_TIMEOUT",
}

func statusError(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	return NewAppError(statusCodes[status], "", message, status)
}

func NotFoundError(message string) *AppError {
	return statusError(http.StatusNotFound, message)
}

// UnprocessableError is a 422 with a domain specific code such as
// ERR_INSUFFICIENT_DATA.
func UnprocessableError(code, message string) *AppError {
	return NewAppError(code, "", message, http.StatusUnprocessableEntity)
}

func TooManyRequestsError(message string) *AppError {
	return statusError(http.StatusTooManyRequests, message)
}

// BadGatewayError reports a failing upstream collaborator.
func BadGatewayError(message string) *AppError {
	return statusError(http.StatusBadGateway, message)
}

func ServiceUnavailableError(message string) *AppError {
	return statusError(http.StatusServiceUnavailable, message)
}

func GatewayTimeoutError(message string) *AppError {
	return statusError(http.StatusGatewayTimeout, message)
}

func InternalError(message string) *AppError {
	return statusError(http.StatusInternalServerError, message)
}
