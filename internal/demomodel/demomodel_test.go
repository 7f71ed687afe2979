package demomodel

import (
	"testing"

	"github.com/quartzsim/core/buffer"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/vtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPing_TicksFireOnSchedule(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	p := NewPing(sched, nil, 10*vtime.Second)

	require.NoError(t, sched.RunUntil(vtime.Zero.Add(35*vtime.Second)))
	assert.Equal(t, 3, p.fired)
	p.Release()
}

func TestPing_BuildPacketHasRealHeaderAndZeroPayload(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	p := NewPing(sched, nil, 10*vtime.Second)
	p.fired = 7

	pkt := p.buildPacket()
	defer pkt.Release()

	assert.Equal(t, pingPacketHeaderSize+pingPacketPayloadSize, pkt.Size())
	assert.False(t, pkt.IsReal())

	it := pkt.Iterator()
	assert.Equal(t, uint32(7), it.ReadU32(buffer.BigEndian))
	for !it.AtEnd() {
		assert.Equal(t, uint8(0), it.ReadU8())
	}

	p.Release()
}

func TestPong_CountsTicksFromAttachedPing(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	p := NewPing(sched, nil, 5*vtime.Second)
	pg := NewPong(nil)

	require.NoError(t, pg.Attach(p))
	require.NoError(t, sched.RunUntil(vtime.Zero.Add(22*vtime.Second)))

	count, err := pg.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	pg.Detach(p)
	pg.Release()
	p.Release()
}

func TestPong_DetachStopsCounting(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	p := NewPing(sched, nil, 1*vtime.Second)
	pg := NewPong(nil)
	require.NoError(t, pg.Attach(p))

	require.NoError(t, sched.RunUntil(vtime.Zero.Add(3*vtime.Second)))
	pg.Detach(p)
	require.NoError(t, sched.RunUntil(vtime.Zero.Add(10*vtime.Second)))

	count, err := pg.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	pg.Release()
	p.Release()
}

func TestRegister_CreatesPingAndPongViaRegistry(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	r := object.NewRegistry()
	require.NoError(t, Register(r, sched, nil, 1*vtime.Second))

	ping, pong, cleanup, err := Wire(r, nil)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, sched.RunUntil(vtime.Zero.Add(4*vtime.Second)))
	count, err := pong.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, UIDPing, ping.UID())
}
