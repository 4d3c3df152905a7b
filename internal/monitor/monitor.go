// Package monitor serves a local-only websocket feed of live channel
// status snapshots, for debugging tools that want to watch the
// registry without speaking the TLV control protocol. It never
// accepts commands; it is a read-only mirror of registry state, not a
// second control plane.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwsl/radiod/internal/channel"
	"github.com/cwsl/radiod/internal/rlog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192, // increased from 1024 for large snapshot messages
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Snapshot is one channel's state as mirrored to a connected client.
type Snapshot struct {
	SSRC     uint32  `json:"ssrc"`
	Freq     float64 `json:"freq"`
	State    string  `json:"state"`
	Encoding string  `json:"encoding"`
}

// Monitor serves GET /channels over a websocket upgrade, pushing a
// full snapshot of the registry every Interval.
type Monitor struct {
	registry *channel.Registry
	srv      *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// Interval is how often a snapshot is pushed to every connected client.
const Interval = time.Second

// New builds a Monitor bound to registry, not yet listening.
func New(registry *channel.Registry) *Monitor {
	return &Monitor{registry: registry, conns: make(map[*websocket.Conn]struct{})}
}

func (m *Monitor) snapshot() []Snapshot {
	chans := m.registry.All()
	out := make([]Snapshot, 0, len(chans))
	for _, ch := range chans {
		_, _, encoding := ch.Output()
		out = append(out, Snapshot{
			SSRC:     ch.SSRC(),
			Freq:     ch.Freq(),
			State:    ch.State().String(),
			Encoding: encoding,
		})
	}
	return out
}

func (m *Monitor) handleChannels(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rlog.V(1).Printf("monitor: upgrade: %v", err)
		return
	}
	m.addConn(conn)
	defer m.removeConn(conn)

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (m *Monitor) addConn(c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c] = struct{}{}
}

func (m *Monitor) removeConn(c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, c)
	c.Close()
}

func (m *Monitor) broadcast() {
	data, err := json.Marshal(m.snapshot())
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			rlog.V(1).Printf("monitor: write: %v", err)
		}
	}
}

// Serve starts the HTTP listener on addr and pushes snapshots to
// every connected client until ctx is cancelled.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/channels", m.handleChannels)
	m.srv = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- m.srv.ListenAndServe() }()

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			m.srv.Shutdown(shutdownCtx)
			return nil
		case <-ticker.C:
			m.broadcast()
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	}
}
