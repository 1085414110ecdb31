package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tsonglew/webrtc-stream/internal/util"
)

// Device is a source of local media.
type Device interface {
	// Open acquires the device and reads its metadata. The returned stream's
	// tracks exist but carry no media until Play runs.
	Open(c Constraints) (*Stream, error)

	// Play pumps media into the stream's tracks until ctx is done.
	Play(ctx context.Context) error

	// Close releases the device.
	Close() error
}

// Preview is the local preview surface a captured stream is bound to.
type Preview interface {
	OnLocalStream(*Stream)
}

// Controller acquires a single local stream, binds it to the preview and
// starts playback.
type Controller struct {
	device  Device
	preview Preview

	mu     sync.Mutex
	stream *Stream
	played chan struct{}
}

// NewController creates a Controller for the given device and preview.
func NewController(device Device, preview Preview) *Controller {
	return &Controller{
		device:  device,
		preview: preview,
		played:  make(chan struct{}),
	}
}

// Acquire opens the device, binds the stream to the preview exactly once and
// starts playback in the background. Playback stops when ctx is done.
func (c *Controller) Acquire(ctx context.Context, cons Constraints) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return nil, errors.New("capture already acquired")
	}

	stream, err := c.device.Open(cons)
	if err != nil {
		util.LogError("failed to acquire local media: %v", err)
		return nil, fmt.Errorf("failed to acquire local media: %w", err)
	}
	c.stream = stream
	c.preview.OnLocalStream(stream)

	go func() {
		defer close(c.played)
		if err := c.device.Play(ctx); err != nil && !errors.Is(err, context.Canceled) {
			util.LogError("local playback stopped: %v", err)
		}
	}()

	return stream, nil
}

// Stream returns the acquired stream, or nil before Acquire succeeds.
func (c *Controller) Stream() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// Close waits for playback to end (if it started) and releases the device.
// The context passed to Acquire must be done for playback to end.
func (c *Controller) Close() error {
	c.mu.Lock()
	started := c.stream != nil
	c.mu.Unlock()

	if started {
		<-c.played
	}
	return c.device.Close()
}
