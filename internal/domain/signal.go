package domain

import "github.com/pion/webrtc/v3"

// SignalPayload is the content of WebRTC signaling envelopes. The core
// never inspects the SDP or candidate; it only relays the handshake
// between two identified peers.
type SignalPayload struct {
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}
