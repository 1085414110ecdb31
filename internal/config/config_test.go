package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", cfg.Call.SignalURL)
	assert.Equal(t, []string{DefaultSTUNServer}, cfg.Call.ICEServers)
	assert.Equal(t, 480, cfg.Call.Width)
	assert.Equal(t, 360, cfg.Call.Height)
	assert.Equal(t, 500*time.Millisecond, cfg.Call.CloseDelay)
	assert.Equal(t, 1, cfg.Call.BlankTracks)
	assert.Equal(t, int64(1<<20), cfg.Serve.MaxBodyBytes)
	assert.NoError(t, cfg.Call.Validate())
	assert.NoError(t, cfg.Serve.Validate())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("WEBRTC_STREAM_CALL_SIGNAL_URL", "https://media.example.com")
	t.Setenv("WEBRTC_STREAM_CALL_CLOSE_DELAY", "250ms")
	t.Setenv("WEBRTC_STREAM_SERVE_LISTEN", "127.0.0.1:9000")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://media.example.com", cfg.Call.SignalURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Call.CloseDelay)
	assert.Equal(t, "127.0.0.1:9000", cfg.Serve.Listen)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "call:\n  width: 640\n  height: 480\n  blank-tracks: 2\nserve:\n  pli-interval: 1s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Call.Width)
	assert.Equal(t, 480, cfg.Call.Height)
	assert.Equal(t, 2, cfg.Call.BlankTracks)
	assert.Equal(t, time.Second, cfg.Serve.PLIInterval)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCallValidate(t *testing.T) {
	base := func() CallConfig {
		return CallConfig{
			SignalURL:      "http://localhost:8080",
			Width:          480,
			Height:         360,
			BlankTracks:    1,
			CloseDelay:     500 * time.Millisecond,
			RequestTimeout: time.Second,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*CallConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*CallConfig) {}},
		{name: "websocket scheme", mutate: func(c *CallConfig) { c.SignalURL = "ws://localhost:8080" }, wantErr: true},
		{name: "missing host", mutate: func(c *CallConfig) { c.SignalURL = "http://" }, wantErr: true},
		{name: "zero width", mutate: func(c *CallConfig) { c.Width = 0 }, wantErr: true},
		{name: "no tracks", mutate: func(c *CallConfig) { c.BlankTracks = 0 }, wantErr: true},
		{name: "no tracks with file", mutate: func(c *CallConfig) { c.BlankTracks = 0; c.VideoFile = "in.ivf" }},
		{name: "negative delay", mutate: func(c *CallConfig) { c.CloseDelay = -time.Second }, wantErr: true},
		{name: "zero delay", mutate: func(c *CallConfig) { c.CloseDelay = 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServeValidate(t *testing.T) {
	cfg := ServeConfig{Listen: "", MaxBodyBytes: 0, PLIInterval: 0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen address")
	assert.Contains(t, err.Error(), "max-body-bytes")
}
