package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/localdrop/localdrop/internal/presence"
)

// Kind identifies a signaling message on the wire.
type Kind string

// Message kinds. Join, Offer, Answer and Candidate travel client to server;
// everything else is server to client. Offer, Answer and Candidate are
// forwarded to the addressed peer with From stamped by the relay.
const (
	KindJoin            Kind = "join"
	KindJoined          Kind = "joined"
	KindParticipantList Kind = "participant-list"
	KindOffer           Kind = "offer"
	KindAnswer          Kind = "answer"
	KindCandidate       Kind = "candidate"
	KindError           Kind = "error"
)

var (
	ErrUnknownKind     = errors.New("unknown message kind")
	ErrMissingRoom     = errors.New("missing room code")
	ErrMissingPeer     = errors.New("missing destination peer")
	ErrMissingPayload  = errors.New("missing payload")
	ErrMalformedSignal = errors.New("malformed message")
)

// Message is the closed set of signaling messages.
type Message interface {
	Kind() Kind
}

// Join asks the relay to admit the sender into Room.
type Join struct {
	Room        string
	ClientID    string
	DeviceClass string
	ClientType  string
	Name        string
}

// Joined confirms admission and tells the client its peer id.
type Joined struct {
	Room   string
	PeerID string
}

// ParticipantList is broadcast to every member whenever membership changes.
type ParticipantList struct {
	Room         string
	Participants []presence.Participant
}

// Offer carries a session description from the initiator. The relay does
// not interpret Description.
type Offer struct {
	To          string
	From        string
	Description json.RawMessage
}

// Answer carries the responder's session description.
type Answer struct {
	To          string
	From        string
	Description json.RawMessage
}

// Candidate carries one network candidate.
type Candidate struct {
	To        string
	From      string
	Candidate json.RawMessage
}

// Error reports a rejected request back to the sender.
type Error struct {
	Message string
}

func (Join) Kind() Kind            { return KindJoin }
func (Joined) Kind() Kind          { return KindJoined }
func (ParticipantList) Kind() Kind { return KindParticipantList }
func (Offer) Kind() Kind           { return KindOffer }
func (Answer) Kind() Kind          { return KindAnswer }
func (Candidate) Kind() Kind       { return KindCandidate }
func (Error) Kind() Kind           { return KindError }

// envelope is the JSON shape shared by all kinds.
type envelope struct {
	Type         Kind                   `json:"type"`
	Room         string                 `json:"room,omitempty"`
	PeerID       string                 `json:"peerId,omitempty"`
	ClientID     string                 `json:"clientId,omitempty"`
	DeviceClass  string                 `json:"deviceClass,omitempty"`
	ClientType   string                 `json:"clientType,omitempty"`
	Name         string                 `json:"name,omitempty"`
	To           string                 `json:"to,omitempty"`
	From         string                 `json:"from,omitempty"`
	Description  json.RawMessage        `json:"description,omitempty"`
	Candidate    json.RawMessage        `json:"candidate,omitempty"`
	Participants []presence.Participant `json:"participants,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// Decode parses one wire message into its typed variant.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignal, err)
	}

	switch env.Type {
	case KindJoin:
		if strings.TrimSpace(env.Room) == "" {
			return nil, ErrMissingRoom
		}
		return Join{
			Room:        env.Room,
			ClientID:    env.ClientID,
			DeviceClass: env.DeviceClass,
			ClientType:  env.ClientType,
			Name:        env.Name,
		}, nil

	case KindJoined:
		return Joined{Room: env.Room, PeerID: env.PeerID}, nil

	case KindParticipantList:
		participants := env.Participants
		if participants == nil {
			participants = []presence.Participant{}
		}
		return ParticipantList{Room: env.Room, Participants: participants}, nil

	case KindOffer, KindAnswer:
		if env.To == "" && env.From == "" {
			return nil, ErrMissingPeer
		}
		if len(env.Description) == 0 {
			return nil, fmt.Errorf("%s: %w", env.Type, ErrMissingPayload)
		}
		if env.Type == KindOffer {
			return Offer{To: env.To, From: env.From, Description: env.Description}, nil
		}
		return Answer{To: env.To, From: env.From, Description: env.Description}, nil

	case KindCandidate:
		if env.To == "" && env.From == "" {
			return nil, ErrMissingPeer
		}
		if len(env.Candidate) == 0 {
			return nil, fmt.Errorf("%s: %w", env.Type, ErrMissingPayload)
		}
		return Candidate{To: env.To, From: env.From, Candidate: env.Candidate}, nil

	case KindError:
		return Error{Message: env.Error}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
}

// Encode renders a typed message in its wire form.
func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind()}

	switch msg := m.(type) {
	case Join:
		env.Room = msg.Room
		env.ClientID = msg.ClientID
		env.DeviceClass = msg.DeviceClass
		env.ClientType = msg.ClientType
		env.Name = msg.Name
	case Joined:
		env.Room = msg.Room
		env.PeerID = msg.PeerID
	case ParticipantList:
		env.Room = msg.Room
		env.Participants = msg.Participants
	case Offer:
		env.To, env.From, env.Description = msg.To, msg.From, msg.Description
	case Answer:
		env.To, env.From, env.Description = msg.To, msg.From, msg.Description
	case Candidate:
		env.To, env.From, env.Candidate = msg.To, msg.From, msg.Candidate
	case Error:
		env.Error = msg.Message
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	return json.Marshal(env)
}

// Addressed is implemented by the messages the relay routes to one peer.
type Addressed interface {
	Message
	Destination() string
	WithSender(peerID string) Message
}

func (o Offer) Destination() string     { return o.To }
func (a Answer) Destination() string    { return a.To }
func (c Candidate) Destination() string { return c.To }

// WithSender returns a copy stamped with the sender's peer id. The
// destination is stripped: the receiving client only needs From.
func (o Offer) WithSender(peerID string) Message {
	return Offer{From: peerID, Description: o.Description}
}

func (a Answer) WithSender(peerID string) Message {
	return Answer{From: peerID, Description: a.Description}
}

func (c Candidate) WithSender(peerID string) Message {
	return Candidate{From: peerID, Candidate: c.Candidate}
}
