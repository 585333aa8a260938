package chat

import "errors"

var (
	// ErrInvalidInput marks a malformed client request. No upstream is
	// contacted once it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable marks a failed model call (auth, rate limit,
	// transport, 5xx).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedToolCall marks a web_search request whose arguments do not
	// parse or lack a query.
	ErrMalformedToolCall = errors.New("malformed tool call")
)
