package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ConnectAssignsLowestFreeSlot(t *testing.T) {
	p := NewPool[func()](0)
	c1, err := p.Connect(func() {})
	require.NoError(t, err)
	c2, err := p.Connect(func() {})
	require.NoError(t, err)
	assert.Equal(t, Cookie(1), c1)
	assert.Equal(t, Cookie(2), c2)

	p.Disconnect(c1)
	c3, err := p.Connect(func() {})
	require.NoError(t, err)
	assert.Equal(t, Cookie(1), c3, "the freed slot is reused before growing")
}

func TestPool_Disconnect_UnknownCookieIsNoOp(t *testing.T) {
	p := NewPool[func()](0)
	assert.NotPanics(t, func() {
		p.Disconnect(999)
		p.Disconnect(0)
		p.Disconnect(-1)
	})
}

func TestPool_Connect_RespectsBoundedCapacity(t *testing.T) {
	p := NewPool[func()](1)
	_, err := p.Connect(func() {})
	require.NoError(t, err)
	_, err = p.Connect(func() {})
	assert.Error(t, err)
}

func TestPool_Each_SnapshotsBeforeMutation(t *testing.T) {
	p := NewPool[func()](0)
	var c2 Cookie
	var calls []Cookie
	c1, _ := p.Connect(func() {})
	c2, _ = p.Connect(func() {})
	_, _ = p.Connect(func() {})

	p.Each(func(c Cookie, sink func()) {
		calls = append(calls, c)
		if c == c1 {
			p.Disconnect(c2) // observed only on the *next* Each, not this one
		}
	})

	assert.Equal(t, []Cookie{1, 2, 3}, calls)
	assert.Equal(t, 2, p.Len())
}

func TestPool_Len_ExcludesDisconnected(t *testing.T) {
	p := NewPool[func()](0)
	c1, _ := p.Connect(func() {})
	_, _ = p.Connect(func() {})
	p.Disconnect(c1)
	assert.Equal(t, 1, p.Len())
}
