package gateway

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"main/internal/archive"
	"main/internal/forward"
	"main/internal/obs"
	"main/pkg/exception"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

// Option defines the gateway runtime configuration.
type Option struct {
	// CORSOrigin restricts browser upgrades to one origin. Optional;
	// empty allows any origin.
	CORSOrigin string
	// Metrics receives gateway counters. Optional; a private set is
	// allocated when nil.
	Metrics *obs.Metrics
	// Archiver receives accepted orders for the reporting sink.
	// Optional; nil disables archiving.
	Archiver *archive.Archiver
}

// Gateway owns the live session set and the shared store and forwarder.
// It carries no business logic of its own.
type Gateway struct {
	opt       Option
	store     OrderStore
	forwarder forward.Forwarder
	metrics   *obs.Metrics
	archiver  *archive.Archiver
	upgrader  websocket.Upgrader

	ctx context.Context

	mu        sync.Mutex
	sessions  map[uint64]*Session
	nextID    uint64
	closed    atomic.Bool
	sessionWG sync.WaitGroup
}

// New builds a gateway bound to the shared store and forwarder. The
// context bounds every session's event handling.
func New(ctx context.Context, store OrderStore, forwarder forward.Forwarder, option ...Option) (*Gateway, error) {
	if store == nil {
		return nil, exception.ErrNilStore
	}
	if forwarder == nil {
		return nil, exception.ErrNilForwarder
	}

	var opt Option
	if len(option) != 0 {
		opt = option[0]
	}
	metrics := opt.Metrics
	if metrics == nil {
		metrics = obs.NewMetrics()
	}

	g := &Gateway{
		opt:       opt,
		store:     store,
		forwarder: forwarder,
		metrics:   metrics,
		archiver:  opt.Archiver,
		ctx:       ctx,
		sessions:  make(map[uint64]*Session),
	}
	g.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if opt.CORSOrigin == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == opt.CORSOrigin
		},
	}
	return g, nil
}

// Metrics returns the metric set the gateway reports into.
func (g *Gateway) Metrics() *obs.Metrics {
	return g.metrics
}

// HandleWS upgrades the request and serves the connection until it
// drops. One call per connection; it blocks for the session's lifetime.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if g.closed.Load() {
		http.Error(w, "gateway closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logs.Warnf("upgrade failed, err: %+v", err)
		return
	}

	session := g.register(conn)
	if session == nil {
		_ = conn.Close()
		return
	}
	logs.Infof("session %d connected from %s", session.id, r.RemoteAddr)

	session.run(g.ctx)

	g.unregister(session)
	session.close()
	logs.Infof("session %d disconnected", session.id)
}

// Close stops accepting connections, closes live sessions and waits for
// their handlers to drain.
func (g *Gateway) Close() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}

	g.mu.Lock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	g.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	g.sessionWG.Wait()
}

func (g *Gateway) register(conn *websocket.Conn) *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed.Load() {
		return nil
	}
	g.nextID++
	s := newSession(g.nextID, conn, g)
	g.sessions[s.id] = s
	g.sessionWG.Add(1)
	g.metrics.Sessions.Inc()
	return s
}

func (g *Gateway) unregister(s *Session) {
	g.mu.Lock()
	delete(g.sessions, s.id)
	g.mu.Unlock()
	g.metrics.Sessions.Dec()
	g.sessionWG.Done()
}
