package schema

import (
	"encoding/json"
)

// StatusSubmitted is the status forced onto every freshly submitted order.
const StatusSubmitted = 0

// Order is the persisted snapshot of a client submission. Fields the
// gateway does not interpret are carried in Extra and survive the store
// round-trip byte for byte.
type Order struct {
	ID          uint64
	Tenant      string
	OrderStatus int
	Extra       map[string]json.RawMessage
}

const (
	fieldID     = "id"
	fieldTenant = "tenant"
	fieldStatus = "order_status"
)

// MarshalJSON flattens the known fields and the opaque extras into a
// single JSON object.
func (o Order) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(o.Extra)+3)
	for k, v := range o.Extra {
		fields[k] = v
	}

	id, err := json.Marshal(o.ID)
	if err != nil {
		return nil, err
	}
	fields[fieldID] = id

	tenant, err := json.Marshal(o.Tenant)
	if err != nil {
		return nil, err
	}
	fields[fieldTenant] = tenant

	status, err := json.Marshal(o.OrderStatus)
	if err != nil {
		return nil, err
	}
	fields[fieldStatus] = status

	return json.Marshal(fields)
}

// UnmarshalJSON splits the known fields out of the object and keeps the
// remainder as raw messages.
func (o *Order) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*o = Order{}
	if raw, ok := fields[fieldID]; ok {
		if err := json.Unmarshal(raw, &o.ID); err != nil {
			return err
		}
		delete(fields, fieldID)
	}
	if raw, ok := fields[fieldTenant]; ok {
		if err := json.Unmarshal(raw, &o.Tenant); err != nil {
			return err
		}
		delete(fields, fieldTenant)
	}
	if raw, ok := fields[fieldStatus]; ok {
		if err := json.Unmarshal(raw, &o.OrderStatus); err != nil {
			return err
		}
		delete(fields, fieldStatus)
	}
	if len(fields) != 0 {
		o.Extra = fields
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (o Order) Clone() Order {
	out := o
	if o.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(o.Extra))
		for k, v := range o.Extra {
			buf := make(json.RawMessage, len(v))
			copy(buf, v)
			out.Extra[k] = buf
		}
	}
	return out
}
