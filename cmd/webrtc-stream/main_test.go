package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsonglew/webrtc-stream/internal/app"
)

func TestNormalizeSignalURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{raw: "  http://media.local:9000/offer ", want: "http://media.local:9000"},
		{raw: "https://media.example.com", want: "https://media.example.com"},
		{raw: "ws://media.example.com", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := normalizeSignalURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailureMessage(t *testing.T) {
	alerted := fmt.Errorf("%w: %w", app.ErrCallFailed, errors.New("failed to decode answer (HTTP 500): boom"))
	assert.Equal(t, "call failed", failureMessage(alerted))

	other := errors.New("invalid signal URL: \"ftp://x\"")
	assert.Equal(t, other.Error(), failureMessage(other))
}

func TestFlagsOverrideConfig(t *testing.T) {
	c := newCLI()
	root := c.command()
	call, _, err := root.Find([]string{"call"})
	require.NoError(t, err)

	require.NoError(t, call.Flags().Parse([]string{
		"--signal-url", "http://10.0.0.2:8080",
		"--ice-server", "stun:a.example:3478",
		"--ice-server", "stun:b.example:3478",
		"--close-delay", "2s",
		"--video", "clip.ivf",
	}))

	cfg, err := c.load()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.2:8080", cfg.Call.SignalURL)
	assert.Equal(t, []string{"stun:a.example:3478", "stun:b.example:3478"}, cfg.Call.ICEServers)
	assert.Equal(t, 2*time.Second, cfg.Call.CloseDelay)
	assert.Equal(t, "clip.ivf", cfg.Call.VideoFile)

	// Unset flags leave the defaults in place.
	assert.Equal(t, 480, cfg.Call.Width)
	assert.Equal(t, 30*time.Second, cfg.Call.RequestTimeout)
	assert.Equal(t, "0.0.0.0:8080", cfg.Serve.Listen)
}
