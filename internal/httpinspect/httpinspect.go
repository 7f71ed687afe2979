// Package httpinspect exposes registry and scheduler state over a
// small chi HTTP API for operators watching a running demo. Like
// internal/controlplane, every read of registry/scheduler state is
// marshaled onto the goroutine that owns them through a command
// mailbox; unlike controlplane, the registry listing is also
// cache-aside'd in an LRU so a dashboard polling every few hundred
// milliseconds does not hammer the sim loop with a command per
// request. Scheduler stats and the clock change every tick, so those
// two are never cached.
package httpinspect

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/vtime"
)

// registryTTL bounds how stale a cached registry listing may be before
// a request forces a fresh read off the sim loop.
const registryTTL = 200 * time.Millisecond

// RegistryListing is served at GET /registry.
type RegistryListing struct {
	Classes []object.TypeID `json:"classes"`
}

// SchedulerStats is served at GET /scheduler/stats.
type SchedulerStats struct {
	QueueLen int           `json:"queue_len"`
	Now      vtime.Instant `json:"now"`
}

// ClockNow is served at GET /clock/now.
type ClockNow struct {
	Now vtime.Instant `json:"now"`
}

type registryCacheEntry struct {
	listing RegistryListing
	at      time.Time
}

// Inspector reads registry and sched for the HTTP handlers below. Call
// Drive from the goroutine that owns registry/sched once per run-loop
// iteration, the same contract as controlplane.Service.Drive.
type Inspector struct {
	registry *object.Registry
	sched    *scheduler.Scheduler

	cmds chan func()

	mu    sync.Mutex
	cache *lru.Cache[string, registryCacheEntry]
}

const cacheKey = "registry"

// New returns an Inspector over registry and sched.
func New(registry *object.Registry, sched *scheduler.Scheduler) *Inspector {
	cache, _ := lru.New[string, registryCacheEntry](1)
	return &Inspector{
		registry: registry,
		sched:    sched,
		cmds:     make(chan func(), 64),
		cache:    cache,
	}
}

// Drive runs every command currently queued by an HTTP handler. It must
// be called only from the goroutine that owns registry/sched; it never
// blocks waiting for more work.
func (ins *Inspector) Drive() {
	for {
		select {
		case cmd := <-ins.cmds:
			cmd()
		default:
			return
		}
	}
}

// run marshals fn onto the sim loop goroutine via cmds and blocks for
// its result.
func (ins *Inspector) run(fn func()) {
	done := make(chan struct{})
	ins.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

func (ins *Inspector) registryListing() RegistryListing {
	ins.mu.Lock()
	if cached, ok := ins.cache.Get(cacheKey); ok && time.Since(cached.at) < registryTTL {
		ins.mu.Unlock()
		return cached.listing
	}
	ins.mu.Unlock()

	var listing RegistryListing
	ins.run(func() {
		listing = RegistryListing{Classes: ins.registry.Registered()}
	})

	ins.mu.Lock()
	ins.cache.Add(cacheKey, registryCacheEntry{listing: listing, at: time.Now()})
	ins.mu.Unlock()

	return listing
}

func (ins *Inspector) schedulerStats() SchedulerStats {
	var stats SchedulerStats
	ins.run(func() {
		stats = SchedulerStats{QueueLen: ins.sched.Len(), Now: ins.sched.Now()}
	})
	return stats
}

func (ins *Inspector) clockNow() ClockNow {
	var now ClockNow
	ins.run(func() {
		now = ClockNow{Now: ins.sched.Now()}
	})
	return now
}

// Router returns the chi router mounting the inspection endpoints.
func (ins *Inspector) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/registry", ins.handleRegistry)
	r.Get("/scheduler/stats", ins.handleSchedulerStats)
	r.Get("/clock/now", ins.handleClockNow)
	return r
}

func (ins *Inspector) handleRegistry(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ins.registryListing())
}

func (ins *Inspector) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ins.schedulerStats())
}

func (ins *Inspector) handleClockNow(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ins.clockNow())
}
