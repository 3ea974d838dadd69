package schema

import "encoding/json"

// Event names accepted from clients.
const (
	EventSubmitOrder = "submitOrder"
	EventUpsertOrder = "order"
	EventAck         = "ack"
)

// Error kinds reported in failure acks.
const (
	KindStoreUnavailable = "store_unavailable"
	KindSerialization    = "serialization"
	KindBadRequest       = "bad_request"
)

// Frame is one websocket message in either direction. Seq is chosen by
// the client and echoed back on the matching ack.
type Frame struct {
	Event string          `json:"event"`
	Seq   uint64          `json:"seq"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Ack is the result envelope sent back for every inbound event.
type Ack struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorKind string `json:"errorKind,omitempty"`
	Order     *Order `json:"order,omitempty"`
}
