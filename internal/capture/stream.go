// Package capture acquires local media and exposes it as a set of pion local
// tracks. It plays the part of a camera/microphone for the caller.
package capture

import (
	"github.com/pion/webrtc/v4"
)

// Constraints describes what the caller asks of a capture device. Width and
// Height are ideal values: a device that cannot match them still succeeds.
type Constraints struct {
	Width  int
	Height int
	Audio  bool
}

// Track is one local track together with its media kind.
type Track struct {
	Kind  webrtc.RTPCodecType
	Local webrtc.TrackLocal
}

// Stream is the set of local tracks obtained from a capture device.
type Stream struct {
	ID     string
	Width  int
	Height int
	Tracks []Track
}

// VideoTracks returns the stream's video tracks in capture order.
func (s *Stream) VideoTracks() []webrtc.TrackLocal {
	return s.tracksOfKind(webrtc.RTPCodecTypeVideo)
}

// AudioTracks returns the stream's audio tracks in capture order.
func (s *Stream) AudioTracks() []webrtc.TrackLocal {
	return s.tracksOfKind(webrtc.RTPCodecTypeAudio)
}

func (s *Stream) tracksOfKind(kind webrtc.RTPCodecType) []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	for _, t := range s.Tracks {
		if t.Kind == kind {
			out = append(out, t.Local)
		}
	}
	return out
}
