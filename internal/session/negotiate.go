package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/util"
)

// negotiate runs the offer/answer pipeline once and records its outcome.
func (s *Session) negotiate(ctx context.Context, pc PeerConnection) {
	defer close(s.negotiated)

	err := s.exchange(ctx, pc)

	s.mu.Lock()
	s.err = err
	stopped := s.state == Closed
	if err == nil && !stopped {
		s.state = Active
	}
	s.mu.Unlock()

	switch {
	case err != nil && stopped:
		util.LogDebug("negotiation ended after stop: %v", err)
	case err != nil:
		util.LogError("negotiation failed: %v", err)
		s.opts.Surface.Alert(err)
	case stopped:
		util.LogDebug("negotiation finished after stop")
	default:
		util.LogSuccess("session negotiated")
	}
}

// exchange performs each negotiation step in order and stops at the first
// failure. Nothing is retried or rolled back.
func (s *Session) exchange(ctx context.Context, pc PeerConnection) error {
	// ── 1. Offer ───────────────────────────────────────────────────────
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	// ── 2. Gather every candidate into the local description ───────────
	if err := waitGathering(ctx, pc); err != nil {
		return fmt.Errorf("failed waiting for ICE gathering: %w", err)
	}
	local := pc.LocalDescription()
	if local == nil {
		return errors.New("no local description after gathering")
	}
	util.LogDebug("ICE gathering complete, sending offer")

	// ── 3. Send offer, receive answer ──────────────────────────────────
	answer, err := s.opts.Signaler.Offer(ctx, *local)
	if err != nil {
		return fmt.Errorf("failed to exchange offer: %w", err)
	}

	// ── 4. Apply answer ────────────────────────────────────────────────
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

// waitGathering blocks until pc's ICE gathering state is complete. When it
// already is, no observer is registered. Otherwise a one-shot observer is
// installed for the wait and replaced with a no-op afterwards.
func waitGathering(ctx context.Context, pc PeerConnection) error {
	if pc.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		return nil
	}

	done := make(chan struct{})
	var once sync.Once
	pc.OnICEGatheringStateChange(func(state webrtc.ICEGatheringState) {
		if state == webrtc.ICEGatheringStateComplete {
			once.Do(func() { close(done) })
		}
	})
	defer pc.OnICEGatheringStateChange(func(webrtc.ICEGatheringState) {})

	// Gathering may have finished before the observer was in place.
	if pc.ICEGatheringState() == webrtc.ICEGatheringStateComplete {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
