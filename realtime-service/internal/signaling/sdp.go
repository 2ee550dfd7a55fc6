package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// ValidateSessionDescription checks that raw is an RTCSessionDescription of
// the wanted type whose SDP parses.
func ValidateSessionDescription(raw json.RawMessage, want webrtc.SDPType) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing %s", domain.ErrValidation, want)
	}

	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return fmt.Errorf("%w: invalid %s: %v", domain.ErrValidation, want, err)
	}
	if sd.Type != want {
		return fmt.Errorf("%w: expected %s, got %s", domain.ErrValidation, want, sd.Type)
	}
	if _, err := sd.Unmarshal(); err != nil {
		return fmt.Errorf("%w: malformed sdp in %s: %v", domain.ErrValidation, want, err)
	}
	return nil
}

// ValidateCandidate checks that raw is an RTCIceCandidateInit. An empty
// candidate string marks end of candidates and is accepted.
func ValidateCandidate(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing candidate", domain.ErrValidation)
	}

	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("%w: invalid candidate: %v", domain.ErrValidation, err)
	}
	return nil
}
