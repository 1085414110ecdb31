// Command webrtc-stream is the CLI entry point.
//
// The call command captures local media (an IVF/Ogg file or blank tracks),
// offers it to an answering server with a single POST /offer and plays back
// whatever the server sends in return. The serve command is that answering
// server: it loops every inbound video track straight back to its caller.
//
// Without a subcommand it falls back to interactive prompts.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tsonglew/webrtc-stream/internal/app"
	"github.com/tsonglew/webrtc-stream/internal/config"
	"github.com/tsonglew/webrtc-stream/internal/util"
)

var version = "dev"

func main() {
	// Root context, cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI().command().ExecuteContext(ctx); err != nil {
		util.LogError("%s", failureMessage(err))
		os.Exit(1)
	}
}

// failureMessage is the final log line for err. Failures the presenters
// already alerted are not repeated.
func failureMessage(err error) string {
	if errors.Is(err, app.ErrCallFailed) {
		return app.ErrCallFailed.Error()
	}
	return err.Error()
}

// cli holds the state shared by every command.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newCLI() *cli {
	return &cli{v: viper.New()}
}

// command builds the root command and its subcommands.
func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "webrtc-stream",
		Short:         "Offer/answer media sessions over WebRTC",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			pterm.Info.Println(fmt.Sprintf("webrtc-stream — v%s", version))
			pterm.Println()
		},
		RunE: c.runInteractive,
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")
	_ = c.v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))

	root.AddCommand(c.newCallCmd(), c.newServeCmd())
	return root
}

// load resolves the configuration from defaults, file, environment and flags.
func (c *cli) load() (*config.Config, error) {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		util.EnableDebug()
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func (c *cli) newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Send local media to an answering server and receive its media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCall(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("signal-url", "", "Base URL of the answering server")
	f.StringSlice("ice-server", nil, "STUN/TURN URL (repeatable)")
	f.String("video", "", "IVF file (VP8/VP9/AV1) to send; blank tracks when empty")
	f.String("audio", "", "Ogg/Opus file to send alongside the video")
	f.Int("width", 0, "Requested video width")
	f.Int("height", 0, "Requested video height")
	f.Int("blank-tracks", 0, "Number of blank video tracks when no video file is given")
	f.Duration("close-delay", 0, "Delay between stop and closing the connection")
	f.Duration("request-timeout", 0, "Timeout of the offer request")
	f.String("record", "", "Write the received video to this IVF file")
	f.String("events-listen", "", "Serve a WebSocket event stream at this address")

	c.bind("call", f, map[string]string{
		"signal-url":      "signal-url",
		"ice-servers":     "ice-server",
		"video-file":      "video",
		"audio-file":      "audio",
		"width":           "width",
		"height":          "height",
		"blank-tracks":    "blank-tracks",
		"close-delay":     "close-delay",
		"request-timeout": "request-timeout",
		"record":          "record",
		"events-listen":   "events-listen",
	})
	return cmd
}

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer offers on POST /offer and send each video track back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.String("listen", "", "Address to listen on")
	f.StringSlice("ice-server", nil, "STUN/TURN URL (repeatable)")
	f.Int64("max-body-bytes", 0, "Largest accepted offer body")
	f.Duration("pli-interval", 0, "Interval between keyframe requests")

	c.bind("serve", f, map[string]string{
		"listen":         "listen",
		"ice-servers":    "ice-server",
		"max-body-bytes": "max-body-bytes",
		"pli-interval":   "pli-interval",
	})
	return cmd
}

// bind maps config keys under section to flag names. Unset flags leave the
// lower layers in effect.
func (c *cli) bind(section string, flags *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = c.v.BindPFlag(section+"."+key, flags.Lookup(flag))
	}
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

func (c *cli) runCall(ctx context.Context) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if err := cfg.Call.Validate(); err != nil {
		return err
	}
	if err := app.RunCall(ctx, cfg.Call); err != nil {
		return err
	}
	util.LogInfo("call ended")
	return nil
}

func (c *cli) runServe(ctx context.Context) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if err := cfg.Serve.Validate(); err != nil {
		return err
	}
	if err := app.RunServe(ctx, cfg.Serve); err != nil {
		return err
	}
	util.LogInfo("server stopped")
	return nil
}

// runInteractive falls back to prompts when no subcommand is given.
func (c *cli) runInteractive(cmd *cobra.Command, args []string) error {
	role, err := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Call  — Send local media to a server", "Serve — Answer offers and loop media back"}).
		WithDefaultText("Select a mode").
		Show()
	if err != nil {
		return err
	}
	pterm.Println()

	if strings.HasPrefix(role, "Serve") {
		return c.runServe(cmd.Context())
	}

	c.v.Set("call.signal-url", askSignalURL())
	return c.runCall(cmd.Context())
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeSignalURL validates a server address and turns it into a base
// URL. A bare host:port is taken as plain HTTP.
func normalizeSignalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid server URL: %s", raw)
	}
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), nil
}

// askSignalURL prompts for the answering server until a valid URL is entered.
func askSignalURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("Answering server (e.g. http://127.0.0.1:8080)").
			Show()

		signalURL, err := normalizeSignalURL(raw)
		if err == nil {
			pterm.Println()
			return signalURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
