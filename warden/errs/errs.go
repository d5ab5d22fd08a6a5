package errs

import "errors"

// HTTPStatusError carries the status code a handler should respond
// with, alongside the original error for logging.
type HTTPStatusError struct {
	StatusCode  int
	Message     string
	OriginalErr error
}

func NewHTTPStatusError(statusCode int, message string, originalErr error) *HTTPStatusError {
	return &HTTPStatusError{
		StatusCode:  statusCode,
		Message:     message,
		OriginalErr: originalErr,
	}
}

func (e *HTTPStatusError) Error() string {
	if e.OriginalErr != nil {
		return e.Message + ": " + e.OriginalErr.Error()
	}
	return e.Message
}

func (e *HTTPStatusError) Unwrap() error { return e.OriginalErr }

func IsHTTPStatusError(err error) (*HTTPStatusError, bool) {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
