// Package demomodel is the worked example cmd/quartzsim links against: two
// UID classes that wire an event interface between themselves and
// schedule periodic events, exercising the UID registry, event wiring,
// tear-off aggregation, and the scheduler end to end.
package demomodel

import (
	"github.com/quartzsim/core/buffer"
	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/event"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/vtime"
)

// pingPacketHeaderSize and pingPacketPayloadSize lay out the packet each
// Ping tick builds: a 4-byte tick counter header the model itself reads
// back, followed by a zero-compressed region standing in for an
// application payload no part of this demo ever inspects.
const (
	pingPacketHeaderSize  = 4
	pingPacketPayloadSize = 256
)

const (
	// UIDPing and UIDPong are the two demo classes cmd/quartzsim
	// registers with the object registry.
	UIDPing object.TypeID = "quartz.demo.Ping"
	UIDPong object.TypeID = "quartz.demo.Pong"

	// UIDPingEvents is exported so collaborators outside this package
	// (internal/controlplane's Connect/Disconnect RPCs, in particular)
	// can Query a handle for it without reaching into demomodel internals.
	UIDPingEvents object.TypeID = "quartz.demo.PingEvents"
	uidPongStats  object.TypeID = "quartz.demo.PongStats"
)

// PingEvents is the event interface Ping exposes: Ticks fires once per
// period, carrying the virtual time of the tick. The sink has no
// meaningful result, hence the event.Void return.
type PingEvents interface {
	Ticks() *event.Source[func(vtime.Instant) event.Void]
}

// PongStats is Pong's tear-off interface, counting the ticks it has
// observed from whichever Ping it is attached to.
type PongStats interface {
	Count() int
}

type pongStatsTearOff struct {
	count int
}

func (s *pongStatsTearOff) Count() int { return s.count }

// Ping schedules itself on sched every period, firing Ticks and a
// statistics probe each time, and logging through the injected
// collaborator. It never stops on its own; the simulator's deadline or
// an explicit Cancel of its pending entry is what ends it.
type Ping struct {
	*object.Base
	sched  *scheduler.Scheduler
	logger collab.Logger
	period vtime.Duration
	ticks  *event.Source[func(vtime.Instant) event.Void]
	probe  *collab.Probe
	fired  int
	handle scheduler.Handle
}

var _ PingEvents = (*Ping)(nil)

// NewPing constructs a stand-alone Ping and schedules its first tick
// one period from sched's current time.
func NewPing(sched *scheduler.Scheduler, logger collab.Logger, period vtime.Duration) *Ping {
	p := &Ping{
		sched:  sched,
		logger: logger,
		period: period,
		ticks:  event.NewSource[func(vtime.Instant) event.Void](0),
		probe:  collab.NewProbe(),
	}
	p.Base = object.NewHeap(UIDPing, []object.InterfaceEntry{
		{UID: UIDPingEvents, Resolver: object.Direct(PingEvents(p))},
	}, nil)
	p.scheduleNext()
	return p
}

// Ticks is the event interface consumers attach to.
func (p *Ping) Ticks() *event.Source[func(vtime.Instant) event.Void] { return p.ticks }

// Probe exposes the running tick count as a statistics probe, the
// value internal/statsbus republishes externally.
func (p *Ping) Probe() *collab.Probe { return p.probe }

// Stop cancels Ping's next pending tick. A Ping that has already fired
// its last scheduled tick before Stop runs is simply done; Cancel on a
// completed handle is a no-op.
func (p *Ping) Stop() { p.sched.Cancel(p.handle) }

func (p *Ping) scheduleNext() {
	p.handle, _ = p.sched.ScheduleIn(p.period, p.tick)
}

func (p *Ping) tick() error {
	p.fired++
	now := p.sched.Now()

	pkt := p.buildPacket()
	collab.Info(p.logger, now, p.UID(), "tick", map[string]any{"count": p.fired, "packet_bytes": pkt.Size()})
	pkt.Release()

	event.Fire1(p.ticks, now)
	collab.Emit(p.probe, float64(p.fired))
	p.scheduleNext()
	return nil
}

// buildPacket constructs this tick's packet: a real header carrying the
// tick count, followed by a zero-compressed payload region. Nothing in
// this demo reads the payload back, so it never needs to be realised.
func (p *Ping) buildPacket() *buffer.View {
	pkt := buffer.NewZeroCompressed(pingPacketHeaderSize+pingPacketPayloadSize, pingPacketHeaderSize, pingPacketPayloadSize)
	it := pkt.Iterator()
	_ = it.WriteU32(uint32(p.fired), buffer.BigEndian)
	return pkt
}

// Pong listens to a Ping's Ticks and counts them in a tear-off
// PongStats interface, demonstrating the tear-off resolver kind wired
// to a live event connection rather than a one-shot query.
type Pong struct {
	*object.Base
	logger collab.Logger
	cookie event.Cookie
}

// NewPong constructs a stand-alone Pong with zero observed ticks.
func NewPong(logger collab.Logger) *Pong {
	pg := &Pong{logger: logger}
	pg.Base = object.NewHeap(UIDPong, []object.InterfaceEntry{
		{UID: uidPongStats, Resolver: object.TearOff(uidPongStats, func(*object.Base) (any, error) {
			return &pongStatsTearOff{}, nil
		})},
	}, nil)
	return pg
}

// Attach connects pg's tick sink to source's Ticks event.
func (pg *Pong) Attach(source PingEvents) error {
	cookie, err := source.Ticks().Connect(pg.onTick)
	if err != nil {
		return err
	}
	pg.cookie = cookie
	return nil
}

// Detach disconnects pg from source. Safe to call even if Attach was
// never called or already detached: disconnecting an unknown cookie is
// a silent no-op.
func (pg *Pong) Detach(source PingEvents) {
	source.Ticks().Disconnect(pg.cookie)
}

// Stats reports the tick count observed so far.
func (pg *Pong) Stats() (int, error) {
	iface, err := pg.Query(uidPongStats)
	if err != nil {
		return 0, err
	}
	defer pg.Release()
	return iface.(PongStats).Count(), nil
}

func (pg *Pong) onTick(at vtime.Instant) event.Void {
	iface, err := pg.Query(uidPongStats)
	if err != nil {
		return event.Void{}
	}
	defer pg.Release()

	stats := iface.(*pongStatsTearOff)
	stats.count++
	collab.Debug(pg.logger, at, pg.UID(), "pong", map[string]any{"count": stats.count})
	return event.Void{}
}

// Register installs factories for UIDPing and UIDPong on r. Neither
// class is aggregable: both are always constructed stand-alone.
func Register(r *object.Registry, sched *scheduler.Scheduler, logger collab.Logger, period vtime.Duration) error {
	if err := r.Register(UIDPing, func(object.Root) (object.Root, error) {
		return NewPing(sched, logger, period), nil
	}, false); err != nil {
		return err
	}
	return r.Register(UIDPong, func(object.Root) (object.Root, error) {
		return NewPong(logger), nil
	}, false)
}

// Wire constructs a Ping/Pong pair via r and attaches pong to ping's
// ticks. The returned cleanup detaches the connection and releases both
// objects in mutual-destructor order (pong before ping, mirroring the
// order they were retained in).
func Wire(r *object.Registry, logger collab.Logger) (ping *Ping, pong *Pong, cleanup func(), err error) {
	pingObj, err := r.Create(UIDPing, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	ping = pingObj.(*Ping)

	pongObj, err := r.Create(UIDPong, nil)
	if err != nil {
		ping.Release()
		return nil, nil, nil, err
	}
	pong = pongObj.(*Pong)

	if err = pong.Attach(ping); err != nil {
		ping.Release()
		pong.Release()
		return nil, nil, nil, err
	}

	cleanup = func() {
		pong.Detach(ping)
		pong.Release()
		ping.Release()
	}
	return ping, pong, cleanup, nil
}
