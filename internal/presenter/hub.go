package presenter

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tsonglew/webrtc-stream/internal/capture"
	"github.com/tsonglew/webrtc-stream/internal/util"
)

// EventType identifies the kind of presenter event.
type EventType string

const (
	EventLocalStream  EventType = "local-stream"
	EventRemoteStream EventType = "remote-stream"
	EventControls     EventType = "controls"
	EventAlert        EventType = "alert"
)

// StreamInfo describes a stream without its media.
type StreamInfo struct {
	ID          string `json:"id"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	VideoTracks int    `json:"videoTracks,omitempty"`
	AudioTracks int    `json:"audioTracks,omitempty"`
	Codec       string `json:"codec,omitempty"`
}

// Event is the JSON structure pushed to every viewer.
type Event struct {
	Type     EventType   `json:"type"`
	Stream   *StreamInfo `json:"stream,omitempty"`
	Controls *Controls   `json:"controls,omitempty"`
	Error    string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is a Presenter that mirrors every call to WebSocket viewers as JSON
// events. A viewer that connects late first receives the latest event of
// each type, so it can render the current state.
type Hub struct {
	mu       sync.Mutex
	conns    map[*websocket.Conn]*sync.Mutex
	snapshot map[EventType]Event
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:    make(map[*websocket.Conn]*sync.Mutex),
		snapshot: make(map[EventType]Event),
	}
}

// snapshotOrder is the replay order for late viewers.
var snapshotOrder = []EventType{EventLocalStream, EventRemoteStream, EventControls, EventAlert}

// ServeHTTP upgrades the request and keeps the viewer registered until it
// disconnects. Viewers are read-only; inbound messages are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("viewer upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	wmu := &sync.Mutex{}

	h.mu.Lock()
	for _, typ := range snapshotOrder {
		if ev, ok := h.snapshot[typ]; ok {
			if err := conn.WriteJSON(ev); err != nil {
				h.mu.Unlock()
				return
			}
		}
	}
	h.conns[conn] = wmu
	h.mu.Unlock()
	util.LogDebug("viewer connected: %s", conn.RemoteAddr())

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		util.LogDebug("viewer disconnected: %s", conn.RemoteAddr())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// broadcast records ev in the snapshot and writes it to every viewer.
func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	h.snapshot[ev.Type] = ev
	targets := make(map[*websocket.Conn]*sync.Mutex, len(h.conns))
	for c, m := range h.conns {
		targets[c] = m
	}
	h.mu.Unlock()

	for conn, wmu := range targets {
		wmu.Lock()
		err := conn.WriteJSON(ev)
		wmu.Unlock()
		if err != nil {
			util.LogDebug("failed to push %s to viewer: %v", ev.Type, err)
		}
	}
}

func (h *Hub) OnLocalStream(s *capture.Stream) {
	h.broadcast(Event{Type: EventLocalStream, Stream: &StreamInfo{
		ID:          s.ID,
		Width:       s.Width,
		Height:      s.Height,
		VideoTracks: len(s.VideoTracks()),
		AudioTracks: len(s.AudioTracks()),
	}})
}

func (h *Hub) OnRemoteStream(s RemoteStream) {
	info := &StreamInfo{ID: s.ID, VideoTracks: 1}
	if s.Track != nil {
		info.Codec = s.Track.Codec().MimeType
	}
	h.broadcast(Event{Type: EventRemoteStream, Stream: info})
}

func (h *Hub) SetControls(c Controls) {
	h.broadcast(Event{Type: EventControls, Controls: &c})
}

func (h *Hub) Alert(err error) {
	h.broadcast(Event{Type: EventAlert, Error: err.Error()})
}
