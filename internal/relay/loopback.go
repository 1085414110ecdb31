// Package relay sends every inbound video track of an answering
// PeerConnection straight back to the peer that sent it.
package relay

import (
	"errors"
	"fmt"
	"io"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/tsonglew/webrtc-stream/internal/util"
	webrtcpkg "github.com/tsonglew/webrtc-stream/internal/webrtc"
)

const rtcpBufferSize = 1500

// Loopback prepares pc to echo the video of offer back to its sender. It adds
// one outbound track per video section of the offer, so that applying the
// offer pairs each inbound section with an outbound track on the same
// transceiver. Packets are forwarded as-is, without transcoding.
func Loopback(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) error {
	codecs, err := webrtcpkg.PreferredVideoCodecs(offer)
	if err != nil {
		return err
	}
	if len(codecs) == 0 {
		util.LogWarning("offer carries no video, nothing to loop back")
	}

	for i, mime := range codecs {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: mime}, fmt.Sprintf("loopback%d", i), "loopback")
		if err != nil {
			return fmt.Errorf("failed to create loopback track: %w", err)
		}

		sender, err := pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("failed to add loopback track: %w", err)
		}
		go drainRTCP(sender)
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeVideo {
			util.LogDebug("ignoring inbound %s track %s", remote.Kind(), remote.ID())
			return
		}

		local := pairedTrack(pc, receiver)
		if local == nil {
			util.LogWarning("no loopback track for inbound track %s", remote.ID())
			return
		}

		// Ask for a keyframe right away; the interval interceptor keeps
		// asking afterwards.
		if err := pc.WriteRTCP([]rtcp.Packet{
			&rtcp.PictureLossIndication{MediaSSRC: uint32(remote.SSRC())},
		}); err != nil {
			util.LogDebug("failed to send PLI: %v", err)
		}

		forward(remote, local)
	})

	return nil
}

// pairedTrack finds the outbound track sharing a transceiver with receiver.
func pairedTrack(pc *webrtc.PeerConnection, receiver *webrtc.RTPReceiver) *webrtc.TrackLocalStaticRTP {
	for _, t := range pc.GetTransceivers() {
		if t.Receiver() != receiver || t.Sender() == nil {
			continue
		}
		local, _ := t.Sender().Track().(*webrtc.TrackLocalStaticRTP)
		return local
	}
	return nil
}

// forward copies RTP packets from remote to local until remote ends.
func forward(remote *webrtc.TrackRemote, local *webrtc.TrackLocalStaticRTP) {
	util.Stats.AddTrack()
	defer util.Stats.RemoveTrack()

	util.LogInfo("looping back track %s (%s)", remote.ID(), remote.Codec().MimeType)

	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogDebug("track %s read: %v", remote.ID(), err)
			}
			return
		}
		util.Stats.AddRecv(len(pkt.Payload))

		if err := local.WriteRTP(pkt); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return
			}
			util.LogDebug("track %s write: %v", local.ID(), err)
			continue
		}
		util.Stats.AddSent(len(pkt.Payload))
	}
}

// drainRTCP reads inbound RTCP for sender so interceptors (NACK, reports)
// keep running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, rtcpBufferSize)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
