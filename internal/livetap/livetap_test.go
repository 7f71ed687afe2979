package livetap

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quartzsim/core/collab"
	"github.com/quartzsim/core/simulator"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestTap_WatchLifecycle_StreamsPhaseEvents(t *testing.T) {
	tap := New(nil)
	srv := httptest.NewServer(tap)
	defer srv.Close()

	conn := dial(t, srv)

	sim := simulator.New()
	detach := tap.WatchLifecycle(sim)
	defer detach()

	require.NoError(t, sim.Run())

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"phase"`)
	assert.Contains(t, string(data), `"phase":"begin"`)
}

func TestTap_WatchProbe_StreamsSamplesUnderName(t *testing.T) {
	tap := New(nil)
	srv := httptest.NewServer(tap)
	defer srv.Close()

	conn := dial(t, srv)

	probe := collab.NewProbe()
	detach := tap.WatchProbe("demo", probe)
	defer detach()

	collab.Emit(probe, 7)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"probe":"demo"`)
	assert.Contains(t, string(data), `"value":7`)
}

func TestTap_Detach_StopsFurtherBroadcasts(t *testing.T) {
	tap := New(nil)
	probe := collab.NewProbe()
	detach := tap.WatchProbe("demo", probe)

	detach()
	collab.Emit(probe, 1)

	assert.Equal(t, 0, probe.Len())
}
