package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Client-specific errors
var (
	ErrClientClosed  = errors.New("client is closed")
	ErrInvalidConfig = errors.New("invalid client configuration")
	ErrEmptyPath     = errors.New("request path is empty")
	ErrUpdateFailed  = errors.New("server reported the update as failed")
)

// StatusError is returned for non-2xx responses. It unwraps to
// api.ErrTransport.
type StatusError struct {
	Method string
	URL    string
	Code   int
	// Body holds the first bytes of the response, for diagnostics.
	Body string
	err  error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error { return e.err }
