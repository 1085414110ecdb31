package webrtc

import (
	"fmt"
	"strconv"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

func parse(desc webrtc.SessionDescription) (*sdp.SessionDescription, error) {
	parsed := &sdp.SessionDescription{}
	if err := parsed.UnmarshalString(desc.SDP); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", desc.Type, err)
	}
	return parsed, nil
}

// CountMedia returns the number of media sections of the given kind
// ("audio", "video", "application") in a session description.
func CountMedia(desc webrtc.SessionDescription, kind string) (int, error) {
	parsed, err := parse(desc)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range parsed.MediaDescriptions {
		if m.MediaName.Media == kind {
			n++
		}
	}
	return n, nil
}

// PreferredVideoCodecs returns, for every video section in order, the MIME
// type of its first (most preferred) payload format. Sections whose first
// format has no rtpmap fall back to VP8.
func PreferredVideoCodecs(desc webrtc.SessionDescription) ([]string, error) {
	parsed, err := parse(desc)
	if err != nil {
		return nil, err
	}

	var mimes []string
	for _, m := range parsed.MediaDescriptions {
		if m.MediaName.Media != "video" {
			continue
		}

		mime := webrtc.MimeTypeVP8
		if len(m.MediaName.Formats) > 0 {
			if pt, err := strconv.ParseUint(m.MediaName.Formats[0], 10, 8); err == nil {
				if codec, err := parsed.GetCodecForPayloadType(uint8(pt)); err == nil && codec.Name != "" {
					mime = "video/" + codec.Name
				}
			}
		}
		mimes = append(mimes, mime)
	}
	return mimes, nil
}
