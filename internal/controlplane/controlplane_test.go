package controlplane

import (
	"context"
	"testing"
	"time"

	"github.com/quartzsim/core/internal/demomodel"
	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/vtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uidWidget object.TypeID = "test.Widget"
const uidGreeter object.TypeID = "test.Greeter"

type widget struct{ *object.Base }

func newWidget() *widget {
	w := &widget{}
	w.Base = object.NewHeap(uidWidget, []object.InterfaceEntry{
		{UID: uidGreeter, Resolver: object.Direct("hello")},
	}, nil)
	return w
}

// pump repeatedly drives svc's command mailbox and steps sched forward
// in the background, the way cmd/quartzsim's simulator loop continuously
// services a gRPC handler running on its own goroutine. stop ends the
// pump and blocks until its goroutine has exited.
func pump(t *testing.T, svc *Service, sched *scheduler.Scheduler) (stop func()) {
	t.Helper()
	done := make(chan struct{})
	quit := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-quit:
				return
			default:
			}
			svc.Drive()
			_, _ = sched.Step(sched.Now().Add(vtime.Hour))
			time.Sleep(time.Millisecond)
		}
	}()
	return func() {
		close(quit)
		<-done
	}
}

func newTestService(t *testing.T) (*Service, func()) {
	t.Helper()
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	r := object.NewRegistry()
	require.NoError(t, r.Register(uidWidget, func(object.Root) (object.Root, error) {
		return newWidget(), nil
	}, false))
	require.NoError(t, demomodel.Register(r, sched, nil, vtime.Millisecond))

	svc := NewService(r, sched, nil)
	stop := pump(t, svc, sched)
	return svc, stop
}

func TestService_CreateQueryRelease(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()

	createResp, err := svc.Create(context.Background(), &CreateRequest{ClassUID: string(uidWidget)})
	require.NoError(t, err)
	assert.NotEmpty(t, createResp.Handle)

	queryResp, err := svc.Query(context.Background(), &QueryRequest{
		Handle:       createResp.Handle,
		InterfaceUID: string(uidGreeter),
	})
	require.NoError(t, err)
	assert.True(t, queryResp.Resolved)

	ack, err := svc.Release(context.Background(), &ReleaseRequest{Handle: createResp.Handle})
	require.NoError(t, err)
	assert.True(t, ack.OK)

	_, err = svc.Release(context.Background(), &ReleaseRequest{Handle: createResp.Handle})
	assert.Error(t, err)
}

func TestService_Create_UnknownClassFails(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()

	_, err := svc.Create(context.Background(), &CreateRequest{ClassUID: "test.NoSuchClass"})
	assert.Error(t, err)
}

func TestService_ScheduleIn_Acks(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()

	ack, err := svc.ScheduleIn(context.Background(), &ScheduleInRequest{Milliseconds: 5})
	require.NoError(t, err)
	assert.True(t, ack.OK)
}

func TestService_ConnectDisconnect_PingEvents(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()

	createResp, err := svc.Create(context.Background(), &CreateRequest{ClassUID: string(demomodel.UIDPing)})
	require.NoError(t, err)

	connectResp, err := svc.Connect(context.Background(), &ConnectRequest{
		Handle:       createResp.Handle,
		InterfaceUID: string(demomodel.UIDPingEvents),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, connectResp.Cookie)

	ack, err := svc.Disconnect(context.Background(), &DisconnectRequest{Cookie: connectResp.Cookie})
	require.NoError(t, err)
	assert.True(t, ack.OK)

	// Disconnecting again is a no-op, not an error.
	ack, err = svc.Disconnect(context.Background(), &DisconnectRequest{Cookie: connectResp.Cookie})
	require.NoError(t, err)
	assert.True(t, ack.OK)
}

func TestService_Connect_UnsupportedInterfaceFails(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()

	createResp, err := svc.Create(context.Background(), &CreateRequest{ClassUID: string(uidWidget)})
	require.NoError(t, err)

	_, err = svc.Connect(context.Background(), &ConnectRequest{
		Handle:       createResp.Handle,
		InterfaceUID: string(uidGreeter),
	})
	assert.Error(t, err)
}
