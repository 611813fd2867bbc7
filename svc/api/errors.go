package api

import (
	"errors"
	"net/http"
)

// HTTPError is an error with a fixed status code and a machine readable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string {
	return http.StatusText(e.Code)
}

var (
	ErrUnauthorized = HTTPError{Code: http.StatusUnauthorized, Key: "unauthorized"}
	ErrForbidden    = HTTPError{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound     = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
)

// Binding errors.
var (
	ErrMissingContentType   = errors.New("missing content type")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidJSON          = errors.New("invalid JSON")
	ErrInvalidPathParam     = errors.New("invalid path parameter")
)
