package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/localdrop/localdrop/internal/signaling"
)

// Negotiator owns every session of one client, keyed by remote peer id.
// Starting a new negotiation with a peer discards the previous session.
type Negotiator struct {
	outbox  Outbox
	factory TransportFactory
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	incoming chan *Session
	refusing bool
	closed   bool
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithLogger sets the negotiator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Negotiator) {
		n.logger = logger
	}
}

// NewNegotiator creates a negotiator that builds transports with factory
// and sends through outbox.
func NewNegotiator(outbox Outbox, factory TransportFactory, opts ...Option) *Negotiator {
	n := &Negotiator{
		outbox:   outbox,
		factory:  factory,
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
		incoming: make(chan *Session, 8),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Connect starts a negotiation with peerID as the initiator.
func (n *Negotiator) Connect(ctx context.Context, peerID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := n.replace(peerID, Initiator)
	if err != nil {
		return nil, err
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// HandleSignal routes an offer, answer or candidate from the relay.
func (n *Negotiator) HandleSignal(msg signaling.Addressed) error {
	switch m := msg.(type) {
	case signaling.Offer:
		if n.isRefusing() {
			return fmt.Errorf("offer from %s: %w", m.From, ErrOffersRefused)
		}
		desc, err := decodeDescription(m.Description, pion.SDPTypeOffer)
		if err != nil {
			return err
		}
		s, err := n.replace(m.From, Responder)
		if err != nil {
			return err
		}
		if err := s.HandleOffer(desc); err != nil {
			return err
		}
		n.announce(s)
		return nil

	case signaling.Answer:
		desc, err := decodeDescription(m.Description, pion.SDPTypeAnswer)
		if err != nil {
			return err
		}
		s, ok := n.Session(m.From)
		if !ok {
			return fmt.Errorf("answer from %s: %w", m.From, ErrUnknownSession)
		}
		return s.HandleAnswer(desc)

	case signaling.Candidate:
		var candidate pion.ICECandidateInit
		if err := json.Unmarshal(m.Candidate, &candidate); err != nil {
			return fmt.Errorf("%w: %v", ErrBadCandidate, err)
		}
		s, ok := n.Session(m.From)
		if !ok {
			n.logger.Debug("dropping candidate for unknown session", "peer", m.From)
			return nil
		}
		s.HandleCandidate(candidate)
		return nil
	}

	return fmt.Errorf("unexpected signal %s", msg.Kind())
}

// Run feeds signals into HandleSignal until signals closes or ctx is done.
func (n *Negotiator) Run(ctx context.Context, signals <-chan signaling.Addressed) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-signals:
			if !ok {
				return
			}
			err := n.HandleSignal(msg)
			switch {
			case err == nil:
			case errors.Is(err, ErrOffersRefused):
				n.logger.Debug("offer refused", "error", err)
			default:
				n.logger.Warn("signal rejected", "kind", msg.Kind(), "error", err)
			}
		}
	}
}

// Session returns the current session with peerID.
func (n *Negotiator) Session(peerID string) (*Session, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.sessions[peerID]
	return s, ok
}

// Incoming delivers responder sessions created by remote offers.
func (n *Negotiator) Incoming() <-chan *Session {
	return n.incoming
}

// RefuseOffers stops answering remote offers. Sessions already waiting in
// Incoming are closed.
func (n *Negotiator) RefuseOffers() {
	n.mu.Lock()
	n.refusing = true
	n.mu.Unlock()

	for {
		select {
		case s := <-n.incoming:
			n.logger.Debug("closing unaccepted session", "peer", s.PeerID())
			s.Close()
		default:
			return
		}
	}
}

func (n *Negotiator) isRefusing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.refusing
}

// Close ends every session. The negotiator rejects new ones afterwards.
func (n *Negotiator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	sessions := n.sessions
	n.sessions = make(map[string]*Session)
	n.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// replace creates a fresh session for peerID, closing any previous one.
func (n *Negotiator) replace(peerID string, role Role) (*Session, error) {
	s := newSession(peerID, role, n.outbox, n.logger)
	transport, err := n.factory(peerID, role, s)
	if err != nil {
		return nil, fmt.Errorf("%w: create transport: %w", ErrNegotiationFailed, err)
	}
	s.transport = transport

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		transport.Close()
		return nil, ErrSessionClosed
	}
	prev := n.sessions[peerID]
	n.sessions[peerID] = s
	n.mu.Unlock()

	if prev != nil {
		n.logger.Debug("discarding previous session", "peer", peerID, "state", prev.State().String())
		prev.Close()
	}
	return s, nil
}

func (n *Negotiator) announce(s *Session) {
	n.mu.Lock()
	queued := false
	if !n.refusing {
		select {
		case n.incoming <- s:
			queued = true
		default:
			n.logger.Warn("no one is accepting incoming sessions, closing", "peer", s.PeerID())
		}
	}
	n.mu.Unlock()

	if !queued {
		s.Close()
	}
}

func decodeDescription(raw json.RawMessage, want pion.SDPType) (pion.SessionDescription, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, fmt.Errorf("%w: %v", ErrBadDescription, err)
	}
	if desc.Type != want || desc.SDP == "" {
		return desc, fmt.Errorf("%w: expected %s", ErrBadDescription, want)
	}
	return desc, nil
}

// IsFailure reports whether err means the peer connection could not be
// established.
func IsFailure(err error) bool {
	return errors.Is(err, ErrNegotiationFailed)
}
