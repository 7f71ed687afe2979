// Package livetap bridges simulator lifecycle transitions and probe
// samples to any number of websocket-connected browsers. Sinks are
// connected from the goroutine that owns the simulator; broadcast fans
// out to per-connection buffered channels so a slow or stalled browser
// can never block the simulation loop, the same shape
// internal/handler/ws/delivery.go uses to bridge a subscription channel
// to a long-lived transport.
package livetap

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/event"
	"github.com/quartzsim/core/simulator"
)

// Event is the wire shape written to every connected browser.
type Event struct {
	Kind  string    `json:"kind"`
	Phase string    `json:"phase,omitempty"`
	Probe string    `json:"probe,omitempty"`
	Value float64   `json:"value,omitempty"`
	At    time.Time `json:"at"`
}

const clientBuffer = 64

type client struct {
	events chan Event
}

// Tap fans lifecycle and probe events out to connected websocket
// clients. The zero value is not usable; construct with New.
type Tap struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New returns a Tap ready to WatchLifecycle/WatchProbe and ServeHTTP.
func New(logger *slog.Logger) *Tap {
	return &Tap{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// WatchLifecycle connects t to sim's lifecycle source. Call only from
// the goroutine that owns sim. The returned detach disconnects the
// sink; it does not close any client connection.
func (t *Tap) WatchLifecycle(sim *simulator.Simulator) (detach func()) {
	cookie, err := sim.Lifecycle().Connect(func(p simulator.Phase) event.Void {
		t.broadcast(Event{Kind: "phase", Phase: p.String(), At: time.Now()})
		return event.Void{}
	})
	if err != nil {
		return func() {}
	}
	return func() { sim.Lifecycle().Disconnect(cookie) }
}

// WatchProbe connects t to probe, tagging every sample with name. Call
// only from the goroutine that owns probe's source.
func (t *Tap) WatchProbe(name string, probe *collab.Probe) (detach func()) {
	cookie, err := probe.Connect(func(value float64) event.Void {
		t.broadcast(Event{Kind: "probe", Probe: name, Value: value, At: time.Now()})
		return event.Void{}
	})
	if err != nil {
		return func() {}
	}
	return func() { probe.Disconnect(cookie) }
}

func (t *Tap) broadcast(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for c := range t.clients {
		select {
		case c.events <- ev:
		default:
			// client is behind; drop the sample rather than stall the
			// goroutine feeding the sim.
		}
	}
}

func (t *Tap) addClient(c *client) {
	t.mu.Lock()
	t.clients[c] = struct{}{}
	t.mu.Unlock()
}

func (t *Tap) removeClient(c *client) {
	t.mu.Lock()
	delete(t.clients, c)
	t.mu.Unlock()
}

// ServeHTTP upgrades r to a websocket and streams every broadcast Event
// to it as JSON text frames until the connection closes.
func (t *Tap) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if t.logger != nil {
			t.logger.Error("livetap upgrade failed", "error", err)
		}
		return
	}
	defer ws.Close()

	c := &client{events: make(chan Event, clientBuffer)}
	t.addClient(c)
	defer t.removeClient(c)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-c.events:
			data, err := json.Marshal(ev)
			if err != nil {
				if t.logger != nil {
					t.logger.Error("livetap marshal failed", "error", err)
				}
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if t.logger != nil {
					t.logger.Warn("livetap send failed", "error", err)
				}
				return
			}
		}
	}
}
