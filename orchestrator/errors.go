package orchestrator

import "errors"

var (
	// ErrHandlerRequired is returned when a request handler is not provided.
	ErrHandlerRequired = errors.New("request handler required")

	// ErrNotStarted is returned when requests are submitted before Start.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("orchestrator already started")

	// ErrClosed is returned when requests are submitted after Close.
	ErrClosed = errors.New("orchestrator closed")
)
