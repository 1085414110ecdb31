package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/config"
	"github.com/tsonglew/webrtc-stream/internal/relay"
	"github.com/tsonglew/webrtc-stream/internal/signaling"
	"github.com/tsonglew/webrtc-stream/internal/util"
	webrtcpkg "github.com/tsonglew/webrtc-stream/internal/webrtc"
)

const shutdownTimeout = 5 * time.Second

// RunServe runs the answering media server until ctx ends. Every offer
// posted to /offer gets its own PeerConnection, whose video is sent back
// to the caller.
func RunServe(ctx context.Context, cfg config.ServeConfig) error {
	api, err := webrtcpkg.NewAPI(webrtcpkg.Options{ICEServers: cfg.ICEServers, PLIInterval: cfg.PLIInterval})
	if err != nil {
		return err
	}
	pcConfig := webrtcpkg.Configuration(cfg.ICEServers)

	server := signaling.NewServer(signaling.ServerOptions{
		NewPeer: func() (*webrtc.PeerConnection, error) {
			return api.NewPeerConnection(pcConfig)
		},
		Prepare:      relay.Loopback,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	l, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}

	util.StartStatsReporter(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(l) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	util.LogInfo("shutting down, closing %d peer(s)", server.Peers())
	return server.Shutdown(shutdownCtx)
}
