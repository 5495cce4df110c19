package api

import "errors"

// Failure classes shared by every component that talks to the server.
var (
	// ErrTransport covers requests that never produced a usable 2xx response.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse covers 2xx responses whose body is not the expected JSON shape.
	ErrMalformedResponse = errors.New("malformed server response")
)
