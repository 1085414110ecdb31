package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/tsonglew/webrtc-stream/internal/util"
)

// opusFrameDuration is the page pacing used for Ogg/Opus playback.
const opusFrameDuration = 20 * time.Millisecond

// FileDevice reads video from an IVF file and, optionally, audio from an
// Ogg/Opus file. Both files are replayed from the start when they end.
type FileDevice struct {
	VideoPath string
	AudioPath string

	video      *os.File
	videoTrack *webrtc.TrackLocalStaticSample
	frameDur   time.Duration

	audio      *os.File
	audioTrack *webrtc.TrackLocalStaticSample
}

// ivfMimeTypes maps IVF FourCC codes to RTP mime types.
var ivfMimeTypes = map[string]string{
	"VP80": webrtc.MimeTypeVP8,
	"VP90": webrtc.MimeTypeVP9,
	"AV01": webrtc.MimeTypeAV1,
}

// Open implements Device. The IVF header is the stream's metadata; the
// returned stream reports the file's real dimensions.
func (d *FileDevice) Open(c Constraints) (*Stream, error) {
	f, err := os.Open(d.VideoPath)
	if err != nil {
		return nil, err
	}

	_, header, err := ivfreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read IVF header of %s: %w", d.VideoPath, err)
	}

	mimeType, ok := ivfMimeTypes[header.FourCC]
	if !ok {
		f.Close()
		return nil, fmt.Errorf("unsupported IVF codec %q", header.FourCC)
	}

	if int(header.Width) != c.Width || int(header.Height) != c.Height {
		util.LogWarning("video source is %dx%d, requested %dx%d", header.Width, header.Height, c.Width, c.Height)
	}

	d.frameDur = frameDuration(header)
	stream := &Stream{ID: uuid.NewString(), Width: int(header.Width), Height: int(header.Height)}

	d.videoTrack, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mimeType}, "video", stream.ID)
	if err != nil {
		f.Close()
		return nil, err
	}
	d.video = f
	stream.Tracks = append(stream.Tracks, Track{Kind: webrtc.RTPCodecTypeVideo, Local: d.videoTrack})

	if c.Audio && d.AudioPath != "" {
		if err := d.openAudio(stream); err != nil {
			d.Close()
			return nil, err
		}
	}

	return stream, nil
}

func (d *FileDevice) openAudio(stream *Stream) error {
	f, err := os.Open(d.AudioPath)
	if err != nil {
		return err
	}
	if _, _, err := oggreader.NewWith(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to read Ogg header of %s: %w", d.AudioPath, err)
	}

	d.audioTrack, err = webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", stream.ID)
	if err != nil {
		f.Close()
		return err
	}
	d.audio = f
	stream.Tracks = append(stream.Tracks, Track{Kind: webrtc.RTPCodecTypeAudio, Local: d.audioTrack})
	return nil
}

// frameDuration derives the per-frame pacing from the IVF timebase, falling
// back to 30 fps for a malformed header.
func frameDuration(h *ivfreader.IVFFileHeader) time.Duration {
	if h.TimebaseDenominator == 0 || h.TimebaseNumerator == 0 {
		return time.Second / 30
	}
	return time.Duration(float64(time.Second) * float64(h.TimebaseNumerator) / float64(h.TimebaseDenominator))
}

// Play implements Device.
func (d *FileDevice) Play(ctx context.Context) error {
	if d.video == nil {
		return errors.New("file device is not open")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- d.playVideo(ctx) }()
	if d.audio != nil {
		go func() { errCh <- d.playAudio(ctx) }()
	} else {
		errCh <- nil
	}

	return errors.Join(<-errCh, <-errCh)
}

func (d *FileDevice) playVideo(ctx context.Context) error {
	reader, err := rewindIVF(d.video)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(d.frameDur)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			if reader, err = rewindIVF(d.video); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read video frame: %w", err)
		}

		if err := d.videoTrack.WriteSample(media.Sample{Data: frame, Duration: d.frameDur}); err != nil {
			return fmt.Errorf("failed to write video sample: %w", err)
		}
		util.Stats.AddCaptured(len(frame))
	}
}

func (d *FileDevice) playAudio(ctx context.Context) error {
	reader, err := rewindOgg(d.audio)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if reader, err = rewindOgg(d.audio); err != nil {
				return err
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read audio page: %w", err)
		}

		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		dur := time.Duration(float64(samples) / 48000 * float64(time.Second))

		if err := d.audioTrack.WriteSample(media.Sample{Data: page, Duration: dur}); err != nil {
			return fmt.Errorf("failed to write audio sample: %w", err)
		}
	}
}

func rewindIVF(f *os.File) (*ivfreader.IVFReader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	reader, _, err := ivfreader.NewWith(f)
	return reader, err
}

func rewindOgg(f *os.File) (*oggreader.OggReader, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	reader, _, err := oggreader.NewWith(f)
	return reader, err
}

// Close implements Device.
func (d *FileDevice) Close() error {
	var errs []error
	if d.video != nil {
		errs = append(errs, d.video.Close())
		d.video = nil
	}
	if d.audio != nil {
		errs = append(errs, d.audio.Close())
		d.audio = nil
	}
	return errors.Join(errs...)
}
