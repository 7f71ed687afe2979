package httpinspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzsim/core/object"
	"github.com/quartzsim/core/scheduler"
	"github.com/quartzsim/core/vtime"
)

const uidWidget object.TypeID = "test.Widget"

func pump(t *testing.T, ins *Inspector, sched *scheduler.Scheduler) (stop func()) {
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
			ins.Drive()
			_, _ = sched.Step(sched.Now())
			time.Sleep(time.Millisecond)
		}
	}()
	return func() {
		close(quit)
		<-done
	}
}

func TestInspector_Registry_ReportsRegisteredClasses(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	r := object.NewRegistry()
	require.NoError(t, r.Register(uidWidget, func(object.Root) (object.Root, error) {
		return nil, nil
	}, false))

	ins := New(r, sched)
	stop := pump(t, ins, sched)
	defer stop()

	srv := httptest.NewServer(ins.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/registry")
	require.NoError(t, err)
	defer resp.Body.Close()

	var listing RegistryListing
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Contains(t, listing.Classes, uidWidget)
}

func TestInspector_Registry_CachesWithinTTL(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	r := object.NewRegistry()

	ins := New(r, sched)
	stop := pump(t, ins, sched)
	defer stop()

	first := ins.registryListing()
	second := ins.registryListing()
	assert.Equal(t, first, second)
}

func TestInspector_SchedulerStats_ReportsQueueLenAndNow(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	r := object.NewRegistry()

	ins := New(r, sched)
	stop := pump(t, ins, sched)
	defer stop()

	_, err := sched.ScheduleIn(1*vtime.Hour, func() error { return nil })
	require.NoError(t, err)

	srv := httptest.NewServer(ins.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/scheduler/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats SchedulerStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.QueueLen)
}

func TestInspector_ClockNow_ReportsCurrentInstant(t *testing.T) {
	clock := vtime.NewClock()
	sched := scheduler.New(clock)
	r := object.NewRegistry()

	ins := New(r, sched)
	stop := pump(t, ins, sched)
	defer stop()

	srv := httptest.NewServer(ins.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/clock/now")
	require.NoError(t, err)
	defer resp.Body.Close()

	var now ClockNow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&now))
	assert.Equal(t, sched.Now(), now.Now)
}
