package capture

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// BlankDevice produces VP8 video tracks that never carry media. It lets a
// caller negotiate without a media source.
type BlankDevice struct {
	VideoTracks int
}

// Open implements Device.
func (d *BlankDevice) Open(c Constraints) (*Stream, error) {
	if d.VideoTracks < 1 {
		return nil, fmt.Errorf("blank device needs at least one video track, got %d", d.VideoTracks)
	}

	stream := &Stream{ID: uuid.NewString(), Width: c.Width, Height: c.Height}
	for i := 0; i < d.VideoTracks; i++ {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			fmt.Sprintf("video%d", i),
			stream.ID,
		)
		if err != nil {
			return nil, err
		}
		stream.Tracks = append(stream.Tracks, Track{Kind: webrtc.RTPCodecTypeVideo, Local: track})
	}
	return stream, nil
}

// Play implements Device; it only waits for ctx.
func (d *BlankDevice) Play(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close implements Device.
func (d *BlankDevice) Close() error { return nil }
