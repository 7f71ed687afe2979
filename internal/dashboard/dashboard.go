// Package dashboard renders a live terminal view of simulator lifecycle
// phase, simulated time, and named probe samples. The teacher ships no
// TUI; this package exists because gizak/termui/v3 is present in the
// teacher's own go.mod and the demo host needs some live view of a
// running simulation besides JSON endpoints.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/event"
	"github.com/quartzsim/core/simulator"
	"github.com/quartzsim/core/vtime"
)

const refreshInterval = 200 * time.Millisecond

// Dashboard accumulates the latest lifecycle phase, simulated time, and
// probe samples and paints them to the terminal via termui. Connect it
// to a simulator and probes from the goroutine that owns them; Run
// itself only reads the accumulated state under mu, so it is safe to
// run on its own goroutine.
type Dashboard struct {
	mu      sync.Mutex
	phase   string
	now     vtime.Instant
	samples map[string]float64
}

// New returns an empty Dashboard.
func New() *Dashboard {
	return &Dashboard{samples: make(map[string]float64)}
}

// WatchLifecycle connects d to sim's lifecycle source. Call only from
// the goroutine that owns sim.
func (d *Dashboard) WatchLifecycle(sim *simulator.Simulator) (detach func()) {
	cookie, err := sim.Lifecycle().Connect(func(p simulator.Phase) event.Void {
		d.mu.Lock()
		d.phase = p.String()
		d.now = sim.Clock().Now()
		d.mu.Unlock()
		return event.Void{}
	})
	if err != nil {
		return func() {}
	}
	return func() { sim.Lifecycle().Disconnect(cookie) }
}

// WatchProbe connects d to probe under name. Call only from the
// goroutine that owns probe's source.
func (d *Dashboard) WatchProbe(name string, probe *collab.Probe) (detach func()) {
	cookie, err := probe.Connect(func(value float64) event.Void {
		d.mu.Lock()
		d.samples[name] = value
		d.mu.Unlock()
		return event.Void{}
	})
	if err != nil {
		return func() {}
	}
	return func() { probe.Disconnect(cookie) }
}

// Snapshot returns the phase, simulated time, and probe samples
// accumulated so far, for callers that want the state without
// repainting a terminal (tests, for example).
func (d *Dashboard) Snapshot() (phase string, now vtime.Instant, samples map[string]float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make(map[string]float64, len(d.samples))
	for k, v := range d.samples {
		cp[k] = v
	}
	return d.phase, d.now, cp
}

// Run initializes the terminal UI and blocks, repainting on
// refreshInterval, until ctx is cancelled or the user presses q /
// Ctrl-C. It is the caller's job to run this on its own goroutine, not
// the one driving the simulator.
func (d *Dashboard) Run(ctx context.Context) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("dashboard: init termui: %w", err)
	}
	defer ui.Close()

	header := widgets.NewParagraph()
	header.Title = "quartzsim"
	header.SetRect(0, 0, 60, 3)

	stats := widgets.NewList()
	stats.Title = "probes"
	stats.SetRect(0, 3, 60, 20)

	render := func() {
		d.mu.Lock()
		header.Text = fmt.Sprintf("phase: %-8s t=%s", d.phase, d.now)
		rows := make([]string, 0, len(d.samples))
		for name, v := range d.samples {
			rows = append(rows, fmt.Sprintf("%s: %.3f", name, v))
		}
		d.mu.Unlock()

		sort.Strings(rows)
		stats.Rows = rows
		ui.Render(header, stats)
	}

	render()

	events := ui.PollEvents()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if e.ID == "q" || e.ID == "<C-c>" {
				return nil
			}
		case <-ticker.C:
			render()
		}
	}
}
