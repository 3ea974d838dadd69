package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"main/internal/schema"
	"main/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

// OrderStore is the slice of the store the session needs. The gateway
// owns the concrete instance; sessions only borrow it.
type OrderStore interface {
	AllocateID(ctx context.Context) (uint64, error)
	Put(ctx context.Context, id uint64, order schema.Order) error
}

// Session is one live client connection. Events are read in arrival
// order and handled concurrently, except that events targeting the same
// order id are serialized to keep snapshots whole.
type Session struct {
	id      uint64
	conn    *websocket.Conn
	gateway *Gateway

	writeMu sync.Mutex
	locks   keyedLocks
	wg      sync.WaitGroup
	closed  atomic.Bool
}

func newSession(id uint64, conn *websocket.Conn, g *Gateway) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		gateway: g,
	}
}

// run reads frames until the connection drops, then drains in-flight
// handlers. Malformed frames close the connection.
func (s *Session) run(ctx context.Context) {
	defer s.wg.Wait()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logs.Warnf("session %d read, err: %+v", s.id, err)
			}
			return
		}

		var frame schema.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logs.Warnf("session %d malformed frame, err: %+v", s.id, err)
			return
		}

		s.wg.Add(1)
		go func(frame schema.Frame) {
			defer s.wg.Done()
			s.handle(ctx, frame)
		}(frame)
	}
}

func (s *Session) handle(ctx context.Context, frame schema.Frame) {
	switch frame.Event {
	case schema.EventSubmitOrder:
		s.handleOrder(ctx, frame, true)
	case schema.EventUpsertOrder:
		s.handleOrder(ctx, frame, false)
	default:
		logs.Warnf("session %d unknown event %q", s.id, frame.Event)
		s.ackFailure(frame.Seq, fmt.Errorf("%w: %s", exception.ErrUnknownEvent, frame.Event))
	}
}

// handleOrder implements both flows. submit forces pending status and
// notifies the tenant system; upsert is the raw store-sync primitive.
func (s *Session) handleOrder(ctx context.Context, frame schema.Frame, submit bool) {
	var order schema.Order
	if err := json.Unmarshal(frame.Data, &order); err != nil {
		s.ackFailure(frame.Seq, exception.ErrBadRequest)
		return
	}

	if submit {
		order.OrderStatus = schema.StatusSubmitted
	}

	if order.ID == 0 {
		id, err := s.gateway.store.AllocateID(ctx)
		if err != nil {
			s.ackFailure(frame.Seq, err)
			return
		}
		order.ID = id
		s.gateway.metrics.IDsAllocated.Inc()
		logs.Infof("session %d allocated order id %d", s.id, id)
	}

	unlock := s.locks.lock(order.ID)
	err := s.gateway.store.Put(ctx, order.ID, order)
	unlock()
	if err != nil {
		logs.Errorf("session %d store order %d, err: %+v", s.id, order.ID, err)
		s.ackFailure(frame.Seq, err)
		return
	}

	if submit {
		// Fire and forget: the ack never waits on downstream delivery.
		s.gateway.forwarder.Forward(ctx, order.Clone())
	}
	s.gateway.archiver.Publish(order)
	s.gateway.metrics.OrdersAccepted.Inc()

	s.ack(frame.Seq, schema.Ack{
		Success: true,
		Message: "Order received and stored successfully.",
		Order:   &order,
	})
}

func (s *Session) ackFailure(seq uint64, err error) {
	s.gateway.metrics.OrdersFailed.Inc()
	kind := schema.KindBadRequest
	switch {
	case errors.Is(err, exception.ErrStoreUnavailable):
		kind = schema.KindStoreUnavailable
	case errors.Is(err, exception.ErrSerialization):
		kind = schema.KindSerialization
	}
	s.ack(seq, schema.Ack{
		Success:   false,
		Message:   err.Error(),
		ErrorKind: kind,
	})
}

func (s *Session) ack(seq uint64, ack schema.Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		logs.Errorf("session %d encode ack, err: %+v", s.id, err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(schema.Frame{Event: schema.EventAck, Seq: seq, Data: data}); err != nil {
		logs.Warnf("session %d write ack, err: %+v", s.id, err)
	}
}

// close transitions the session to its terminal state. Stored orders are
// unaffected.
func (s *Session) close() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.conn.Close()
	}
}
