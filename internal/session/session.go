// Package session drives a single offer/answer media session: it owns one
// PeerConnection, sends the local video to the answering server and hands
// the video that comes back to the remote preview.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/capture"
	"github.com/tsonglew/webrtc-stream/internal/presenter"
	"github.com/tsonglew/webrtc-stream/internal/util"
)

// DefaultCloseDelay is how long Stop waits before closing the connection.
const DefaultCloseDelay = 500 * time.Millisecond

var (
	// ErrNotIdle is returned by Start once a session has been started.
	ErrNotIdle = errors.New("session already started")

	// ErrNotStarted is returned by Stop before Start.
	ErrNotStarted = errors.New("session not started")
)

// PeerConnection is the part of *webrtc.PeerConnection a session uses.
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnICEGatheringStateChange(f func(webrtc.ICEGatheringState))
	ICEGatheringState() webrtc.ICEGatheringState
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	LocalDescription() *webrtc.SessionDescription
	SetRemoteDescription(desc webrtc.SessionDescription) error
	Close() error
}

var _ PeerConnection = (*webrtc.PeerConnection)(nil)

// PeerFactory creates the session's PeerConnection.
type PeerFactory func() (PeerConnection, error)

// Signaler carries the local offer to the remote side and returns its answer.
type Signaler interface {
	Offer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// Surface is where the session reports to the user.
type Surface interface {
	OnRemoteStream(presenter.RemoteStream)
	SetControls(presenter.Controls)
	Alert(error)
}

// Options configures a Session.
type Options struct {
	NewPeer    PeerFactory
	Signaler   Signaler
	Surface    Surface
	CloseDelay time.Duration
}

// State is the lifecycle stage of a Session.
type State int

const (
	Idle State = iota
	Negotiating
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Negotiating:
		return "negotiating"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Session is a single caller-side media session. It is started at most once
// and stopped at most once.
type Session struct {
	opts   Options
	stream *capture.Stream

	mu       sync.Mutex
	state    State
	pc       PeerConnection
	cancel   context.CancelFunc
	err      error
	remoteID string

	negotiated chan struct{}
	closed     chan struct{}
}

// New creates an idle Session sending the video tracks of stream.
func New(stream *capture.Stream, opts Options) *Session {
	if opts.CloseDelay <= 0 {
		opts.CloseDelay = DefaultCloseDelay
	}
	return &Session{
		opts:       opts,
		stream:     stream,
		negotiated: make(chan struct{}),
		closed:     make(chan struct{}),
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Negotiated returns a channel closed when the negotiation pipeline ends,
// successfully or not.
func (s *Session) Negotiated() <-chan struct{} {
	return s.negotiated
}

// Err returns the error that ended the negotiation pipeline, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Closed returns a channel closed once Stop has closed the connection.
func (s *Session) Closed() <-chan struct{} {
	return s.closed
}

// Start creates the PeerConnection, attaches the local video tracks and
// launches negotiation in the background. Negotiation failures are reported
// through Surface.Alert, not returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.state != Idle {
		s.mu.Unlock()
		return ErrNotIdle
	}

	pc, err := s.opts.NewPeer()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create PeerConnection: %w", err)
	}

	for _, track := range s.stream.VideoTracks() {
		if _, err := pc.AddTrack(track); err != nil {
			s.mu.Unlock()
			return errors.Join(fmt.Errorf("failed to add track %s: %w", track.ID(), err), pc.Close())
		}
	}

	pc.OnTrack(s.onTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogInfo("PeerConnection state: %s", state.String())
	})

	nCtx, cancel := context.WithCancel(ctx)
	s.pc = pc
	s.cancel = cancel
	s.state = Negotiating
	s.mu.Unlock()

	s.opts.Surface.SetControls(presenter.Controls{StartVisible: false, StopVisible: true})

	go s.negotiate(nCtx, pc)
	return nil
}

// Stop hides the controls and closes the connection after the close delay.
// Stopping a closed session does nothing.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.mu.Unlock()
		return ErrNotStarted
	case Closed:
		s.mu.Unlock()
		return nil
	}
	s.state = Closed
	pc, cancel := s.pc, s.cancel
	s.mu.Unlock()

	s.opts.Surface.SetControls(presenter.Controls{})
	util.LogInfo("closing session in %s", s.opts.CloseDelay)

	time.AfterFunc(s.opts.CloseDelay, func() {
		cancel()
		if err := pc.Close(); err != nil {
			util.LogWarning("failed to close PeerConnection: %v", err)
		}
		close(s.closed)
		util.LogInfo("session closed")
	})
	return nil
}

// onTrack binds the first inbound video stream to the remote preview. Every
// video track of that stream is handed over; other streams are ignored.
func (s *Session) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	if track.Kind() != webrtc.RTPCodecTypeVideo {
		util.LogDebug("ignoring remote %s track %s", track.Kind(), track.ID())
		return
	}

	s.mu.Lock()
	if s.remoteID == "" {
		s.remoteID = track.StreamID()
	}
	bound := s.remoteID == track.StreamID()
	s.mu.Unlock()

	if !bound {
		util.LogDebug("ignoring track %s of extra remote stream %s", track.ID(), track.StreamID())
		return
	}
	s.opts.Surface.OnRemoteStream(presenter.RemoteStream{ID: track.StreamID(), Track: track})
}
