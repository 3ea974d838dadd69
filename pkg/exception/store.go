package exception

import "errors"

// Store errors
var (
	ErrStoreUnavailable = errors.New("store: connection unavailable")
	ErrSerialization    = errors.New("store: record serialization failed")
	ErrOrderNotFound    = errors.New("store: order not found")
)
