package presenter

import (
	"errors"
	"io"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pterm/pterm"

	"github.com/tsonglew/webrtc-stream/internal/capture"
	"github.com/tsonglew/webrtc-stream/internal/util"
)

// rtpWriter is the part of ivfwriter.IVFWriter the terminal records through.
type rtpWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// Terminal renders the session to the terminal. The remote preview drains
// the inbound video track and, when RecordPath is set, records it to an IVF
// file.
type Terminal struct {
	RecordPath string

	wg        sync.WaitGroup
	mu        sync.Mutex
	recording bool
	recorder  rtpWriter
}

// NewTerminal creates a Terminal presenter.
func NewTerminal(recordPath string) *Terminal {
	return &Terminal{RecordPath: recordPath}
}

func (t *Terminal) OnLocalStream(s *capture.Stream) {
	util.LogInfo("local preview: %dx%d, %d video / %d audio track(s)",
		s.Width, s.Height, len(s.VideoTracks()), len(s.AudioTracks()))
}

func (t *Terminal) OnRemoteStream(s RemoteStream) {
	codec := s.Track.Codec()
	util.LogSuccess("remote preview bound to stream %s (%s)", s.ID, codec.MimeType)

	// Only the first remote track is recorded.
	record := false
	t.mu.Lock()
	if t.RecordPath != "" && !t.recording {
		w, err := ivfwriter.New(t.RecordPath, ivfwriter.WithCodec(codec.MimeType))
		if err != nil {
			util.LogError("failed to open recording %s: %v", t.RecordPath, err)
		} else {
			t.recorder = w
			record = true
		}
		t.recording = true
	}
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.drain(s, record)
	}()
}

// drain reads the remote track until it ends, recording it if asked to.
func (t *Terminal) drain(s RemoteStream, record bool) {
	util.Stats.AddTrack()
	defer util.Stats.RemoveTrack()

	for {
		pkt, _, err := s.Track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogDebug("remote track %s ended: %v", s.Track.ID(), err)
			}
			return
		}
		util.Stats.AddRecv(len(pkt.Payload))

		if !record {
			continue
		}

		t.mu.Lock()
		if t.recorder != nil {
			if err := t.recorder.WriteRTP(pkt); err != nil {
				util.LogWarning("recording stopped: %v", err)
				t.recorder.Close()
				t.recorder = nil
			}
		}
		t.mu.Unlock()
	}
}

func (t *Terminal) SetControls(c Controls) {
	util.LogDebug("controls: start=%s stop=%s", visibility(c.StartVisible), visibility(c.StopVisible))
}

// Alert prints err prominently. It is the terminal's rendition of a
// blocking browser alert.
func (t *Terminal) Alert(err error) {
	pterm.Error.Println(err.Error())
}

// Close waits for the remote preview to finish and closes the recording.
// The peer connection must be closed first for the track to end.
func (t *Terminal) Close() error {
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recorder == nil {
		return nil
	}
	err := t.recorder.Close()
	t.recorder = nil
	return err
}

func visibility(v bool) string {
	if v {
		return "shown"
	}
	return "hidden"
}
