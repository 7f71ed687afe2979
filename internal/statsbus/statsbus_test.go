package statsbus

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/quartzsim/core/collab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_AttachPublishesSampleOnProbeTopic(t *testing.T) {
	gc := NewInMemoryPublisher(watermill.NopLogger{})
	defer gc.Close()

	sub, err := gc.Subscribe(t.Context(), topicFor("demo"))
	require.NoError(t, err)

	probe := collab.NewProbe()
	bus := New(gc, nil)
	detach, err := bus.Attach("demo", probe)
	require.NoError(t, err)
	defer detach()

	collab.Emit(probe, 42)

	select {
	case msg := <-sub:
		assert.Contains(t, string(msg.Payload), `"value":42`)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("expected a published sample")
	}
}

func TestBus_DetachStopsFurtherPublishes(t *testing.T) {
	gc := NewInMemoryPublisher(watermill.NopLogger{})
	defer gc.Close()

	probe := collab.NewProbe()
	bus := New(gc, nil)
	detach, err := bus.Attach("demo", probe)
	require.NoError(t, err)

	detach()
	collab.Emit(probe, 1.0)

	assert.Equal(t, 0, probe.Len())
}
