package presenter

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsonglew/webrtc-stream/internal/capture"
)

type recorder struct {
	calls []string
}

func (r *recorder) OnLocalStream(*capture.Stream) { r.calls = append(r.calls, "local") }
func (r *recorder) OnRemoteStream(RemoteStream)   { r.calls = append(r.calls, "remote") }
func (r *recorder) SetControls(Controls)          { r.calls = append(r.calls, "controls") }
func (r *recorder) Alert(error)                   { r.calls = append(r.calls, "alert") }

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}

	m.OnLocalStream(&capture.Stream{})
	m.OnRemoteStream(RemoteStream{ID: "remote"})
	m.SetControls(Initial)
	m.Alert(errors.New("boom"))

	want := []string{"local", "remote", "controls", "alert"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
}

func TestTerminalWithoutRemoteStream(t *testing.T) {
	term := NewTerminal("")
	term.OnLocalStream(&capture.Stream{ID: "s", Width: 480, Height: 360})
	term.SetControls(Controls{StopVisible: true})
	term.Alert(errors.New("negotiation failed"))
	assert.NoError(t, term.Close())
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubReplaysSnapshotToLateViewer(t *testing.T) {
	hub := NewHub()
	hub.OnLocalStream(&capture.Stream{ID: "local-1", Width: 480, Height: 360})
	hub.SetControls(Initial)
	hub.SetControls(Controls{StartVisible: false, StopVisible: true})

	conn := dialHub(t, hub)

	ev := readEvent(t, conn)
	assert.Equal(t, EventLocalStream, ev.Type)
	require.NotNil(t, ev.Stream)
	assert.Equal(t, "local-1", ev.Stream.ID)
	assert.Equal(t, 480, ev.Stream.Width)

	ev = readEvent(t, conn)
	assert.Equal(t, EventControls, ev.Type)
	require.NotNil(t, ev.Controls)
	assert.Equal(t, Controls{StartVisible: false, StopVisible: true}, *ev.Controls)
}

func TestHubBroadcastsLiveEvents(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	require.Eventually(t, func() bool { return hub.Viewers() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Alert(errors.New("unexpected end of JSON input"))

	ev := readEvent(t, conn)
	assert.Equal(t, EventAlert, ev.Type)
	assert.Equal(t, "unexpected end of JSON input", ev.Error)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Viewers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
