package vtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstant_AddSubRoundTrip(t *testing.T) {
	start := Zero.Add(5 * Second)
	later := start.Add(3 * Second)
	assert.Equal(t, 3*Second, later.Sub(start))
	assert.True(t, start.Before(later))
	assert.True(t, later.After(start))
}

func TestDurationConstants_AreExactMultiples(t *testing.T) {
	assert.Equal(t, Duration(1000), Microsecond)
	assert.Equal(t, Duration(1_000_000), Millisecond)
	assert.Equal(t, Duration(1_000_000_000), Second)
	assert.Equal(t, 60*Second, Minute)
	assert.Equal(t, 60*Minute, Hour)
}

func TestClock_AdvanceMovesNow(t *testing.T) {
	c := NewClock()
	assert.Equal(t, Zero, c.Now())
	c.Advance(Zero.Add(10 * Second))
	assert.Equal(t, Zero.Add(10*Second), c.Now())
}

func TestClock_AdvanceBackwardsPanics(t *testing.T) {
	c := NewClock()
	c.Advance(Zero.Add(10 * Second))
	assert.Panics(t, func() { c.Advance(Zero.Add(5 * Second)) })
}
