// Package signaling carries session descriptions between the caller and the
// answering server over a single HTTP request/response pair.
package signaling

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// OfferPath is the fixed path offers are posted to.
const OfferPath = "/offer"

// Description is the JSON structure exchanged on OfferPath, in both
// directions. It carries exactly the description's payload and type.
type Description struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// FromSessionDescription mirrors a pion description verbatim.
func FromSessionDescription(desc webrtc.SessionDescription) Description {
	return Description{SDP: desc.SDP, Type: desc.Type.String()}
}

// SessionDescription converts the wire form back into a pion description.
func (d Description) SessionDescription() (webrtc.SessionDescription, error) {
	typ := webrtc.NewSDPType(d.Type)
	if typ == webrtc.SDPTypeUnknown {
		return webrtc.SessionDescription{}, fmt.Errorf("unknown description type %q", d.Type)
	}
	return webrtc.SessionDescription{Type: typ, SDP: d.SDP}, nil
}
