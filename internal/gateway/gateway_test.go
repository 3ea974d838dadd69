package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"main/internal/forward"
	"main/internal/schema"
	"main/internal/store"
	"main/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ OrderStore = (*store.Store)(nil)

type fakeStore struct {
	mu        sync.Mutex
	counter   uint64
	orders    map[uint64]schema.Order
	allocErr  error
	putErr    error
	putErrSeq int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[uint64]schema.Order)}
}

func (s *fakeStore) AllocateID(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocErr != nil {
		return 0, s.allocErr
	}
	s.counter++
	return s.counter, nil
}

func (s *fakeStore) Put(_ context.Context, id uint64, order schema.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil && s.putErrSeq > 0 {
		s.putErrSeq--
		return s.putErr
	}
	s.orders[id] = order.Clone()
	return nil
}

func (s *fakeStore) get(id uint64) (schema.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

type fakeForwarder struct {
	orders chan schema.Order
}

func newFakeForwarder() *fakeForwarder {
	return &fakeForwarder{orders: make(chan schema.Order, 16)}
}

func (f *fakeForwarder) Forward(_ context.Context, order schema.Order) {
	f.orders <- order
}

func newTestGateway(t *testing.T, st OrderStore, fwd forward.Forwarder, option ...Option) (*Gateway, string) {
	t.Helper()
	g, err := New(context.Background(), st, fwd, option...)
	require.NoError(t, err)
	t.Cleanup(g.Close)

	srv := httptest.NewServer(http.HandlerFunc(g.HandleWS))
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, seq uint64, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(schema.Frame{
		Event: event,
		Seq:   seq,
		Data:  json.RawMessage(payload),
	}))
}

func readAck(t *testing.T, conn *websocket.Conn) (uint64, schema.Ack) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame schema.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, schema.EventAck, frame.Event)

	var ack schema.Ack
	require.NoError(t, json.Unmarshal(frame.Data, &ack))
	return frame.Seq, ack
}

func TestUpsertAllocatesID(t *testing.T) {
	st := newFakeStore()
	_, url := newTestGateway(t, st, newFakeForwarder())
	conn := dial(t, url)

	send(t, conn, schema.EventUpsertOrder, 1, `{"tenant":"acme","note":"x"}`)
	seq, ack := readAck(t, conn)

	assert.Equal(t, uint64(1), seq)
	require.True(t, ack.Success)
	require.NotNil(t, ack.Order)
	assert.Equal(t, uint64(1), ack.Order.ID)

	stored, ok := st.get(1)
	require.True(t, ok)
	assert.Equal(t, "acme", stored.Tenant)
	assert.JSONEq(t, `"x"`, string(stored.Extra["note"]))
}

func TestUpsertExistingIDFullReplace(t *testing.T) {
	st := newFakeStore()
	_, url := newTestGateway(t, st, newFakeForwarder())
	conn := dial(t, url)

	send(t, conn, schema.EventUpsertOrder, 1, `{"id":5,"tenant":"acme","note":"old","extra":"y"}`)
	_, ack := readAck(t, conn)
	require.True(t, ack.Success)

	send(t, conn, schema.EventUpsertOrder, 2, `{"id":5,"tenant":"acme","note":"new"}`)
	_, ack = readAck(t, conn)
	require.True(t, ack.Success)

	stored, ok := st.get(5)
	require.True(t, ok)
	assert.JSONEq(t, `"new"`, string(stored.Extra["note"]))
	_, hasExtra := stored.Extra["extra"]
	assert.False(t, hasExtra, "replaced snapshot must not keep prior fields")
	st.mu.Lock()
	counter := st.counter
	st.mu.Unlock()
	assert.Equal(t, uint64(0), counter, "no allocation for existing id")
}

func TestSubmitForcesPendingAndForwards(t *testing.T) {
	st := newFakeStore()
	fwd := newFakeForwarder()
	_, url := newTestGateway(t, st, fwd)
	conn := dial(t, url)

	send(t, conn, schema.EventSubmitOrder, 7, `{"id":1,"tenant":"acme","order_status":5}`)
	seq, ack := readAck(t, conn)

	assert.Equal(t, uint64(7), seq)
	require.True(t, ack.Success)
	assert.Equal(t, schema.StatusSubmitted, ack.Order.OrderStatus)

	stored, ok := st.get(1)
	require.True(t, ok)
	assert.Equal(t, schema.StatusSubmitted, stored.OrderStatus)

	select {
	case forwarded := <-fwd.orders:
		assert.Equal(t, uint64(1), forwarded.ID)
		assert.Equal(t, "acme", forwarded.Tenant)
		assert.Equal(t, schema.StatusSubmitted, forwarded.OrderStatus)
	case <-time.After(5 * time.Second):
		t.Fatal("order was not forwarded")
	}
}

func TestSubmitAllocatesMissingID(t *testing.T) {
	st := newFakeStore()
	fwd := newFakeForwarder()
	_, url := newTestGateway(t, st, fwd)
	conn := dial(t, url)

	send(t, conn, schema.EventSubmitOrder, 1, `{"tenant":"acme"}`)
	_, ack := readAck(t, conn)

	require.True(t, ack.Success)
	assert.Equal(t, uint64(1), ack.Order.ID)
	_, ok := st.get(1)
	assert.True(t, ok)
}

func TestStoreFailureIsAcked(t *testing.T) {
	st := newFakeStore()
	st.putErr = exception.ErrStoreUnavailable
	st.putErrSeq = 1
	_, url := newTestGateway(t, st, newFakeForwarder())
	conn := dial(t, url)

	send(t, conn, schema.EventUpsertOrder, 1, `{"id":9,"tenant":"acme"}`)
	seq, ack := readAck(t, conn)

	assert.Equal(t, uint64(1), seq)
	require.False(t, ack.Success)
	assert.Equal(t, schema.KindStoreUnavailable, ack.ErrorKind)
	assert.Nil(t, ack.Order)

	// The session keeps serving once the store recovers.
	send(t, conn, schema.EventUpsertOrder, 2, `{"id":9,"tenant":"acme"}`)
	_, ack = readAck(t, conn)
	assert.True(t, ack.Success)
}

func TestForwardFailureDoesNotAffectAck(t *testing.T) {
	st := newFakeStore()
	unreachable := forward.New(forward.Option{
		Scheme:  "http",
		Host:    "127.0.0.1:1",
		Timeout: time.Second,
	})
	_, url := newTestGateway(t, st, unreachable)
	conn := dial(t, url)

	send(t, conn, schema.EventSubmitOrder, 1, `{"id":3,"tenant":"acme"}`)
	_, ack := readAck(t, conn)

	require.True(t, ack.Success)
	_, ok := st.get(3)
	assert.True(t, ok, "store write must survive delivery failure")
}

func TestConcurrentUpsertsAllocateUniqueIDs(t *testing.T) {
	st := newFakeStore()
	_, url := newTestGateway(t, st, newFakeForwarder())

	connA := dial(t, url)
	connB := dial(t, url)

	send(t, connA, schema.EventUpsertOrder, 1, `{"tenant":"acme"}`)
	send(t, connB, schema.EventUpsertOrder, 1, `{"tenant":"acme"}`)

	_, ackA := readAck(t, connA)
	_, ackB := readAck(t, connB)

	require.True(t, ackA.Success)
	require.True(t, ackB.Success)
	ids := map[uint64]bool{ackA.Order.ID: true, ackB.Order.ID: true}
	assert.Len(t, ids, 2, "ids must be unique across connections")
}

func TestUnknownEventAck(t *testing.T) {
	_, url := newTestGateway(t, newFakeStore(), newFakeForwarder())
	conn := dial(t, url)

	send(t, conn, "cancelOrder", 3, `{}`)
	seq, ack := readAck(t, conn)

	assert.Equal(t, uint64(3), seq)
	require.False(t, ack.Success)
	assert.Equal(t, schema.KindBadRequest, ack.ErrorKind)
}

func TestOriginRestriction(t *testing.T) {
	_, url := newTestGateway(t, newFakeStore(), newFakeForwarder(), Option{
		CORSOrigin: "https://app.example.com",
	})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}

	header = http.Header{"Origin": []string{"https://app.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
