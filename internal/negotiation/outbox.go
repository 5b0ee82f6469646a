package negotiation

import (
	"encoding/json"

	pion "github.com/pion/webrtc/v4"

	"github.com/localdrop/localdrop/internal/signaling"
)

// MessageSender is the part of the signaling client the outbox needs.
type MessageSender interface {
	Send(msg signaling.Message) error
}

// RelayOutbox sends negotiation messages as signaling messages.
type RelayOutbox struct {
	sender MessageSender
}

// NewRelayOutbox wraps a signaling sender.
func NewRelayOutbox(sender MessageSender) *RelayOutbox {
	return &RelayOutbox{sender: sender}
}

func (o *RelayOutbox) SendOffer(to string, desc pion.SessionDescription) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	return o.sender.Send(signaling.Offer{To: to, Description: raw})
}

func (o *RelayOutbox) SendAnswer(to string, desc pion.SessionDescription) error {
	raw, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	return o.sender.Send(signaling.Answer{To: to, Description: raw})
}

func (o *RelayOutbox) SendCandidate(to string, candidate pion.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	return o.sender.Send(signaling.Candidate{To: to, Candidate: raw})
}
