// Package app contains the top-level orchestration for the call and serve
// commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tsonglew/webrtc-stream/internal/capture"
	"github.com/tsonglew/webrtc-stream/internal/config"
	"github.com/tsonglew/webrtc-stream/internal/presenter"
	"github.com/tsonglew/webrtc-stream/internal/session"
	"github.com/tsonglew/webrtc-stream/internal/signaling"
	"github.com/tsonglew/webrtc-stream/internal/util"
	webrtcpkg "github.com/tsonglew/webrtc-stream/internal/webrtc"
)

// ErrCallFailed marks a negotiation failure that has already been shown to
// the user through the presenters.
var ErrCallFailed = errors.New("call failed")

// keyframeInterval paces keyframe requests for the remote video while it is
// being recorded, so the recording can be decoded from any point.
const keyframeInterval = 3 * time.Second

// RunCall orchestrates the full caller lifecycle:
//  1. Set up the presentation surfaces (terminal, optional event hub)
//  2. Acquire local media and bind it to the local preview
//  3. Start the session (offer → gather → POST /offer → answer)
//  4. Wait for ctx to end or negotiation to fail
//  5. Stop the session and release everything
func RunCall(ctx context.Context, cfg config.CallConfig) error {
	// ── 1. Presentation ────────────────────────────────────────────────
	terminal := presenter.NewTerminal(cfg.Record)
	surfaces := presenter.Multi{terminal}

	if cfg.EventsListen != "" {
		hub := presenter.NewHub()
		stopEvents, err := serveEvents(cfg.EventsListen, hub)
		if err != nil {
			return err
		}
		defer stopEvents()
		surfaces = append(surfaces, hub)
	}
	surfaces.SetControls(presenter.Initial)

	// ── 2. Capture ─────────────────────────────────────────────────────
	captureCtx, stopCapture := context.WithCancel(ctx)
	defer stopCapture()

	controller := capture.NewController(newDevice(cfg), surfaces)
	stream, err := controller.Acquire(captureCtx, capture.Constraints{
		Width:  cfg.Width,
		Height: cfg.Height,
		Audio:  cfg.AudioFile != "",
	})
	if err != nil {
		return err
	}
	defer func() {
		stopCapture()
		if err := controller.Close(); err != nil {
			util.LogWarning("failed to release capture device: %v", err)
		}
	}()

	// ── 3. Session ─────────────────────────────────────────────────────
	peerOpts := webrtcpkg.Options{ICEServers: cfg.ICEServers}
	if cfg.Record != "" {
		peerOpts.PLIInterval = keyframeInterval
	}

	sess := session.New(stream, session.Options{
		NewPeer: func() (session.PeerConnection, error) {
			return webrtcpkg.NewPeerConnection(peerOpts)
		},
		Signaler:   signaling.NewClient(cfg.SignalURL, cfg.RequestTimeout),
		Surface:    surfaces,
		CloseDelay: cfg.CloseDelay,
	})

	// Negotiation outlives ctx: Stop decides when it ends.
	if err := sess.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	util.StartStatsReporter(ctx)
	util.LogInfo("calling %s", cfg.SignalURL)

	// ── 4. Wait ────────────────────────────────────────────────────────
	var failure error
	select {
	case <-ctx.Done():
	case <-sess.Negotiated():
		if failure = sess.Err(); failure == nil {
			util.LogSuccess("media session established, press Ctrl+C to hang up")
			<-ctx.Done()
		}
	}

	// ── 5. Stop ────────────────────────────────────────────────────────
	if err := sess.Stop(); err != nil {
		return err
	}
	<-sess.Closed()

	if err := terminal.Close(); err != nil {
		util.LogWarning("failed to finish recording: %v", err)
	}
	if failure != nil {
		return fmt.Errorf("%w: %w", ErrCallFailed, failure)
	}
	return nil
}

// newDevice picks the capture device described by cfg.
func newDevice(cfg config.CallConfig) capture.Device {
	if cfg.VideoFile != "" {
		return &capture.FileDevice{VideoPath: cfg.VideoFile, AudioPath: cfg.AudioFile}
	}
	return &capture.BlankDevice{VideoTracks: cfg.BlankTracks}
}

// serveEvents exposes hub at /events on addr. The returned func stops it.
func serveEvents(addr string, hub *presenter.Hub) (func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for event viewers: %w", err)
	}

	r := chi.NewRouter()
	r.Get("/events", hub.ServeHTTP)
	srv := &http.Server{Handler: r}

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("event hub stopped: %v", err)
		}
	}()
	util.LogInfo("event viewers can connect to ws://%s/events", l.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
