// Package negotiation drives the offer/answer/candidate exchange that turns
// two relay participants into a connected pair with an open data channel.
//
// A Session tracks one negotiation with one remote peer. Candidates that
// arrive before the remote description are queued and applied in arrival
// order exactly once the description is set. Local candidates are held
// until the local description has been sent, so the remote never sees a
// candidate ahead of the description it belongs to.
package negotiation

import (
	"errors"

	pion "github.com/pion/webrtc/v4"
)

var (
	ErrNegotiationFailed = errors.New("connection failed, run the command again")
	ErrSessionClosed     = errors.New("negotiation session closed")
	ErrInvalidTransition = errors.New("message not valid in current negotiation state")
	ErrUnknownSession    = errors.New("no negotiation with that peer")
	ErrBadDescription    = errors.New("malformed session description")
	ErrBadCandidate      = errors.New("malformed candidate")
	ErrOffersRefused     = errors.New("not accepting incoming connections")
)

// Role is which side of the exchange a session plays.
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// State is a session's position in the exchange.
type State int

const (
	Idle State = iota
	Offering
	AwaitingOffer
	DescriptionExchanged
	ChannelOpen
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Offering:
		return "offering"
	case AwaitingOffer:
		return "awaiting-offer"
	case DescriptionExchanged:
		return "description-exchanged"
	case ChannelOpen:
		return "channel-open"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

// Transport is the peer connection a session negotiates. Implementations
// must deliver Events from their own goroutines, never from inside one of
// these methods.
type Transport interface {
	// CreateOffer creates an offer and installs it as the local description.
	CreateOffer() (pion.SessionDescription, error)

	// CreateAnswer creates an answer to the installed remote offer and
	// installs it as the local description.
	CreateAnswer() (pion.SessionDescription, error)

	SetRemoteDescription(desc pion.SessionDescription) error
	AddICECandidate(candidate pion.ICECandidateInit) error
	Close() error
}

// Events are reported by a Transport to its session.
type Events interface {
	LocalCandidate(candidate pion.ICECandidateInit)
	ChannelOpened()
	ConnectionStateChanged(state pion.PeerConnectionState)
}

// TransportFactory builds the transport for a new session.
type TransportFactory func(peerID string, role Role, events Events) (Transport, error)

// Outbox sends negotiation messages to a remote peer through the relay.
type Outbox interface {
	SendOffer(to string, desc pion.SessionDescription) error
	SendAnswer(to string, desc pion.SessionDescription) error
	SendCandidate(to string, candidate pion.ICECandidateInit) error
}
