// Package config holds the CLI configuration types and their loading rules.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// WEBRTC_STREAM_CALL_SIGNAL_URL.
const EnvPrefix = "WEBRTC_STREAM"

// DefaultSTUNServer is the single traversal helper the caller is configured with.
const DefaultSTUNServer = "stun:stun.l.google.com:19302"

// Config stores every parameter gathered from defaults, the config file,
// the environment and CLI flags.
type Config struct {
	Debug bool        `mapstructure:"debug"`
	Call  CallConfig  `mapstructure:"call"`
	Serve ServeConfig `mapstructure:"serve"`
}

// CallConfig configures the calling side (capture + negotiation).
type CallConfig struct {
	SignalURL      string        `mapstructure:"signal-url"`      // base URL of the answering server
	ICEServers     []string      `mapstructure:"ice-servers"`     // STUN/TURN URLs for the peer connection
	VideoFile      string        `mapstructure:"video-file"`      // IVF (VP8) source; empty selects blank tracks
	AudioFile      string        `mapstructure:"audio-file"`      // optional Ogg/Opus source
	Width          int           `mapstructure:"width"`           // requested video width
	Height         int           `mapstructure:"height"`          // requested video height
	BlankTracks    int           `mapstructure:"blank-tracks"`    // video tracks created when no file is given
	CloseDelay     time.Duration `mapstructure:"close-delay"`     // grace period between stop and close
	RequestTimeout time.Duration `mapstructure:"request-timeout"` // signaling HTTP timeout
	Record         string        `mapstructure:"record"`          // IVF file the remote video is written to
	EventsListen   string        `mapstructure:"events-listen"`   // address of the WebSocket event hub
}

// ServeConfig configures the answering media server.
type ServeConfig struct {
	Listen       string        `mapstructure:"listen"`
	ICEServers   []string      `mapstructure:"ice-servers"`
	MaxBodyBytes int64         `mapstructure:"max-body-bytes"`
	PLIInterval  time.Duration `mapstructure:"pli-interval"`
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for AutomaticEnv to resolve them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("call.signal-url", "http://127.0.0.1:8080")
	v.SetDefault("call.ice-servers", []string{DefaultSTUNServer})
	v.SetDefault("call.video-file", "")
	v.SetDefault("call.audio-file", "")
	v.SetDefault("call.width", 480)
	v.SetDefault("call.height", 360)
	v.SetDefault("call.blank-tracks", 1)
	v.SetDefault("call.close-delay", 500*time.Millisecond)
	v.SetDefault("call.request-timeout", 30*time.Second)
	v.SetDefault("call.record", "")
	v.SetDefault("call.events-listen", "")

	v.SetDefault("serve.listen", "0.0.0.0:8080")
	v.SetDefault("serve.ice-servers", []string{})
	v.SetDefault("serve.max-body-bytes", int64(1<<20))
	v.SetDefault("serve.pli-interval", 3*time.Second)
}

// Load reads defaults, the optional config file and the environment into a
// validated Config. Flags must already be bound to v by the caller.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the call section.
func (c *CallConfig) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.SignalURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid signal URL: %q", c.SignalURL)
	}

	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid video size %dx%d", c.Width, c.Height))
	}
	if c.VideoFile == "" && c.BlankTracks < 1 {
		errs = append(errs, errors.New("blank-tracks must be at least 1 when no video file is given"))
	}
	if c.CloseDelay < 0 {
		errs = append(errs, errors.New("close-delay must not be negative"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request-timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks the serve section.
func (c *ServeConfig) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max-body-bytes must be positive"))
	}
	if c.PLIInterval <= 0 {
		errs = append(errs, errors.New("pli-interval must be positive"))
	}
	return errors.Join(errs...)
}
