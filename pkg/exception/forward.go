package exception

import "errors"

// Forwarding errors
var (
	ErrDeliveryRejected    = errors.New("forward: downstream rejected delivery")
	ErrDeliveryUnreachable = errors.New("forward: downstream unreachable")
	ErrMissingTenant       = errors.New("forward: order has no tenant")
)
