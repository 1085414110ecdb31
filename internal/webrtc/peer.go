// Package webrtc builds the pion API and PeerConnections shared by the caller
// and the answering server.
package webrtc

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/util"
)

// Options controls how a PeerConnection is built.
type Options struct {
	// ICEServers lists STUN/TURN URLs. The caller uses a single public STUN
	// server; the answering server usually runs with none.
	ICEServers []string

	// PLIInterval enables the periodic keyframe-request interceptor on
	// inbound video. Zero disables it.
	PLIInterval time.Duration
}

// NewAPI assembles a pion API with the default codecs, the default
// interceptors (NACK, RTCP reports, TWCC) and pion's logs routed to pterm.
func NewAPI(opts Options) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to register interceptors: %w", err)
	}

	if opts.PLIInterval > 0 {
		pli, err := intervalpli.NewReceiverInterceptor(intervalpli.GeneratorInterval(opts.PLIInterval))
		if err != nil {
			return nil, fmt.Errorf("failed to create PLI interceptor: %w", err)
		}
		registry.Add(pli)
	}

	settings := webrtc.SettingEngine{}
	settings.LoggerFactory = util.PionLoggerFactory{}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	), nil
}

// Configuration returns a PeerConnection configuration using the given
// ICE server URLs. An empty list yields host candidates only.
func Configuration(iceServers []string) webrtc.Configuration {
	config := webrtc.Configuration{}
	if len(iceServers) > 0 {
		config.ICEServers = []webrtc.ICEServer{
			{URLs: iceServers},
		}
	}
	return config
}

// NewPeerConnection creates a PeerConnection from a freshly built API.
func NewPeerConnection(opts Options) (*webrtc.PeerConnection, error) {
	api, err := NewAPI(opts)
	if err != nil {
		return nil, err
	}
	return api.NewPeerConnection(Configuration(opts.ICEServers))
}
