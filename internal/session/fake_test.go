package session

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/capture"
	"github.com/tsonglew/webrtc-stream/internal/presenter"
)

// fakePeer records every call a session makes and lets tests drive ICE
// gathering by hand.
type fakePeer struct {
	mu sync.Mutex

	events        []string
	tracks        []webrtc.TrackLocal
	gathering     webrtc.ICEGatheringState
	onGathering   func(webrtc.ICEGatheringState)
	registrations int
	local         *webrtc.SessionDescription
	remote        *webrtc.SessionDescription
	closeCalls    int

	// completeOnSetLocal finishes gathering synchronously inside
	// SetLocalDescription.
	completeOnSetLocal bool
}

func newFakePeer() *fakePeer {
	return &fakePeer{gathering: webrtc.ICEGatheringStateNew}
}

func (p *fakePeer) record(event string) {
	p.events = append(p.events, event)
}

func (p *fakePeer) AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("add-track:" + track.ID())
	p.tracks = append(p.tracks, track)
	return nil, nil
}

func (p *fakePeer) OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {}

func (p *fakePeer) OnConnectionStateChange(func(webrtc.PeerConnectionState)) {}

func (p *fakePeer) OnICEGatheringStateChange(f func(webrtc.ICEGatheringState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registrations++
	p.onGathering = f
}

func (p *fakePeer) ICEGatheringState() webrtc.ICEGatheringState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gathering
}

func (p *fakePeer) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("create-offer")
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (p *fakePeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("set-local")
	p.local = &desc
	if p.completeOnSetLocal {
		p.gathering = webrtc.ICEGatheringStateComplete
	} else {
		p.gathering = webrtc.ICEGatheringStateGathering
	}
	return nil
}

func (p *fakePeer) LocalDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.local == nil {
		return nil
	}
	desc := *p.local
	desc.SDP += "a=end-of-candidates\r\n"
	return &desc
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("set-remote")
	p.remote = &desc
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("close")
	p.closeCalls++
	return nil
}

// completeGathering moves gathering to complete and notifies the observer.
func (p *fakePeer) completeGathering() {
	p.mu.Lock()
	p.gathering = webrtc.ICEGatheringStateComplete
	f := p.onGathering
	p.mu.Unlock()

	if f != nil {
		f(webrtc.ICEGatheringStateComplete)
	}
}

func (p *fakePeer) snapshot() (events []string, registrations, closeCalls int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...), p.registrations, p.closeCalls
}

func (p *fakePeer) remoteDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

// fakeSignaler answers with a fixed description and records each offer
// along with the gathering state at the time it was sent.
type fakeSignaler struct {
	peer   *fakePeer
	answer webrtc.SessionDescription
	err    error

	mu        sync.Mutex
	offers    []webrtc.SessionDescription
	gathering []webrtc.ICEGatheringState
}

func (s *fakeSignaler) Offer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	s.mu.Lock()
	s.offers = append(s.offers, offer)
	if s.peer != nil {
		s.gathering = append(s.gathering, s.peer.ICEGatheringState())
	}
	s.mu.Unlock()

	if s.err != nil {
		return webrtc.SessionDescription{}, s.err
	}
	return s.answer, nil
}

func (s *fakeSignaler) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offers)
}

// blockingSignaler never answers until ctx ends.
type blockingSignaler struct{}

func (blockingSignaler) Offer(ctx context.Context, _ webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	<-ctx.Done()
	return webrtc.SessionDescription{}, ctx.Err()
}

// fakeSurface records what the session reports.
type fakeSurface struct {
	mu       sync.Mutex
	controls []presenter.Controls
	alerts   []error
	remotes  []presenter.RemoteStream
}

func (f *fakeSurface) OnLocalStream(*capture.Stream) {}

func (f *fakeSurface) OnRemoteStream(s presenter.RemoteStream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remotes = append(f.remotes, s)
}

func (f *fakeSurface) SetControls(c presenter.Controls) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, c)
}

func (f *fakeSurface) Alert(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, err)
}

func (f *fakeSurface) remotesSnapshot() []presenter.RemoteStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]presenter.RemoteStream(nil), f.remotes...)
}

func (f *fakeSurface) alertsSnapshot() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.alerts...)
}

func (f *fakeSurface) controlsSnapshot() []presenter.Controls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]presenter.Controls(nil), f.controls...)
}

func factoryFor(p PeerConnection) PeerFactory {
	return func() (PeerConnection, error) { return p, nil }
}

var errFactory = errors.New("no peer for you")
