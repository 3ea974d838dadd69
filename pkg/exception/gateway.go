package exception

import "errors"

// Gateway errors
var (
	ErrBadRequest   = errors.New("gateway: malformed event")
	ErrUnknownEvent = errors.New("gateway: unknown event name")
	ErrNilStore     = errors.New("gateway: nil order store")
	ErrNilForwarder = errors.New("gateway: nil forwarder")
)
