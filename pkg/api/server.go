// Package api serves the ops event stream: a WebSocket endpoint that
// mirrors everything crossing the event bus, for dashboards and
// debugging. It binds to loopback-style addresses and carries no bot
// control surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
)

// Server owns the HTTP listener and the WebSocket hub.
type Server struct {
	addr      string
	bus       *events.Bus
	hub       *Hub
	startTime time.Time

	httpServer *http.Server
	cancel     context.CancelFunc
}

// NewServer creates the ops server. addr empty disables it; callers
// check before constructing.
func NewServer(addr string, bus *events.Bus) *Server {
	s := &Server{
		addr:      addr,
		bus:       bus,
		startTime: time.Now(),
	}
	s.hub = NewHub(s)
	return s
}

// Start begins listening and mirrors every bus event type into the hub.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.hub.Run(ctx)

	for _, t := range events.AllTypes() {
		s.bus.Subscribe(t, s.forwarder(t), false)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	s.httpServer = &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("api", "ops server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.InfoCF("api", "ops event stream listening", map[string]interface{}{"addr": s.addr})
	return nil
}

// Stop shuts the listener and the hub down.
func (s *Server) Stop() {
	for _, t := range events.AllTypes() {
		s.bus.Unsubscribe(t, s.forwarder(t))
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// forwarder builds the bus handler that mirrors one event type into the
// hub. Payloads the hub can't JSON-encode are rendered as strings.
func (s *Server) forwarder(t events.Type) events.Handler {
	return func(args ...interface{}) events.Result {
		data := make([]interface{}, len(args))
		for i, a := range args {
			switch a.(type) {
			case string, bool, int, int64, float64:
				data[i] = a
			default:
				data[i] = describe(a)
			}
		}
		s.hub.Broadcast(string(t), data)
		return events.Continue
	}
}

func describe(v interface{}) interface{} {
	// Known payload structs marshal fine; everything else gets %+v.
	switch v.(type) {
	case nil:
		return nil
	default:
		if _, ok := v.(fmt.Stringer); ok {
			return fmt.Sprint(v)
		}
		return v
	}
}
