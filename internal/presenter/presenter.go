// Package presenter abstracts the surface the caller renders to: the local
// and remote previews, the start/stop controls, and user-facing alerts.
package presenter

import (
	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/capture"
)

// Controls is the visibility of the start and stop affordances.
type Controls struct {
	StartVisible bool `json:"start"`
	StopVisible  bool `json:"stop"`
}

// Initial is the controls state before a session starts.
var Initial = Controls{StartVisible: true, StopVisible: false}

// RemoteStream is the inbound media bound to the remote preview.
type RemoteStream struct {
	ID    string
	Track *webrtc.TrackRemote
}

// Presenter is implemented by every rendering surface.
type Presenter interface {
	OnLocalStream(*capture.Stream)
	OnRemoteStream(RemoteStream)
	SetControls(Controls)
	Alert(error)
}

// Multi fans every call out to several presenters, in order.
type Multi []Presenter

func (m Multi) OnLocalStream(s *capture.Stream) {
	for _, p := range m {
		p.OnLocalStream(s)
	}
}

func (m Multi) OnRemoteStream(s RemoteStream) {
	for _, p := range m {
		p.OnRemoteStream(s)
	}
}

func (m Multi) SetControls(c Controls) {
	for _, p := range m {
		p.SetControls(c)
	}
}

func (m Multi) Alert(err error) {
	for _, p := range m {
		p.Alert(err)
	}
}
