package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"
)

// Session is one negotiation with one remote peer.
type Session struct {
	peerID string
	role   Role
	outbox Outbox
	logger *slog.Logger

	mu            sync.Mutex
	state         State
	transport     Transport
	local         *pion.SessionDescription
	remote        *pion.SessionDescription
	pendingRemote []pion.ICECandidateInit
	pendingLocal  []pion.ICECandidateInit
	localSent     bool
	openSeen      bool
	err           error

	opened   chan struct{}
	finished chan struct{}
}

func newSession(peerID string, role Role, outbox Outbox, logger *slog.Logger) *Session {
	state := Idle
	if role == Responder {
		state = AwaitingOffer
	}
	return &Session{
		peerID:   peerID,
		role:     role,
		outbox:   outbox,
		logger:   logger.With("peer", peerID, "role", role.String()),
		state:    state,
		opened:   make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// PeerID is the remote participant this session negotiates with.
func (s *Session) PeerID() string { return s.peerID }

// Role reports which side of the exchange this session plays.
func (s *Session) Role() Role { return s.role }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transport returns the session's transport.
func (s *Session) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

// Err returns why the session ended, or nil while it is live.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session reaches Closed or Failed.
func (s *Session) Done() <-chan struct{} {
	return s.finished
}

// WaitOpen blocks until the data channel is open, the session ends, or
// ctx is done.
func (s *Session) WaitOpen(ctx context.Context) error {
	select {
	case <-s.opened:
		return nil
	case <-s.finished:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start creates and sends the offer. Only valid for a new initiator.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != Idle {
		defer s.mu.Unlock()
		return fmt.Errorf("start in state %s: %w", s.state, ErrInvalidTransition)
	}

	offer, err := s.transport.CreateOffer()
	if err != nil {
		return s.failUnlock(fmt.Errorf("create offer: %w", err))
	}
	s.local = &offer

	if err := s.outbox.SendOffer(s.peerID, offer); err != nil {
		return s.failUnlock(fmt.Errorf("send offer: %w", err))
	}
	s.state = Offering
	s.flushLocalLocked()
	s.mu.Unlock()

	s.logger.Debug("offer sent")
	return nil
}

// HandleOffer applies a remote offer and answers it. Only valid for a
// responder that has not seen an offer yet.
func (s *Session) HandleOffer(offer pion.SessionDescription) error {
	s.mu.Lock()
	if s.state != AwaitingOffer {
		defer s.mu.Unlock()
		return fmt.Errorf("offer in state %s: %w", s.state, ErrInvalidTransition)
	}

	if err := s.transport.SetRemoteDescription(offer); err != nil {
		return s.failUnlock(fmt.Errorf("set remote description: %w", err))
	}
	s.remote = &offer
	s.flushRemoteLocked()

	answer, err := s.transport.CreateAnswer()
	if err != nil {
		return s.failUnlock(fmt.Errorf("create answer: %w", err))
	}
	s.local = &answer

	if err := s.outbox.SendAnswer(s.peerID, answer); err != nil {
		return s.failUnlock(fmt.Errorf("send answer: %w", err))
	}
	s.state = DescriptionExchanged
	s.flushLocalLocked()
	s.maybeOpenLocked()
	s.mu.Unlock()

	s.logger.Debug("answer sent")
	return nil
}

// HandleAnswer applies the remote answer. Only valid while Offering.
func (s *Session) HandleAnswer(answer pion.SessionDescription) error {
	s.mu.Lock()
	if s.state != Offering {
		defer s.mu.Unlock()
		return fmt.Errorf("answer in state %s: %w", s.state, ErrInvalidTransition)
	}

	if err := s.transport.SetRemoteDescription(answer); err != nil {
		return s.failUnlock(fmt.Errorf("set remote description: %w", err))
	}
	s.remote = &answer
	s.flushRemoteLocked()
	s.state = DescriptionExchanged
	s.maybeOpenLocked()
	s.mu.Unlock()

	s.logger.Debug("answer applied")
	return nil
}

// HandleCandidate applies a remote candidate, or queues it until the
// remote description is known. Ended sessions ignore it.
func (s *Session) HandleCandidate(candidate pion.ICECandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	if s.remote == nil {
		s.pendingRemote = append(s.pendingRemote, candidate)
		return
	}
	s.addCandidateLocked(candidate)
}

// LocalCandidate sends a locally gathered candidate once the local
// description has gone out.
func (s *Session) LocalCandidate(candidate pion.ICECandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	if !s.localSent {
		s.pendingLocal = append(s.pendingLocal, candidate)
		return
	}
	s.sendCandidateLocked(candidate)
}

// ChannelOpened records that the data channel is usable. It takes effect
// once both descriptions have been exchanged.
func (s *Session) ChannelOpened() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return
	}
	s.openSeen = true
	s.maybeOpenLocked()
}

// ConnectionStateChanged ends the session when the connection fails or
// closes. Other states are informational.
func (s *Session) ConnectionStateChanged(state pion.PeerConnectionState) {
	s.logger.Debug("connection state changed", "state", state.String())

	switch state {
	case pion.PeerConnectionStateFailed:
		s.end(Failed, ErrNegotiationFailed)
	case pion.PeerConnectionStateClosed:
		s.end(Closed, ErrSessionClosed)
	}
}

// Close ends the session and closes its transport.
func (s *Session) Close() {
	s.end(Closed, ErrSessionClosed)
}

func (s *Session) end(state State, err error) {
	s.mu.Lock()
	t := s.terminateLocked(state, err)
	s.mu.Unlock()

	if t != nil {
		if cerr := t.Close(); cerr != nil {
			s.logger.Debug("transport close failed", "error", cerr)
		}
	}
}

// failUnlock moves to Failed, releases the lock, closes the transport and
// returns err joined with ErrNegotiationFailed.
func (s *Session) failUnlock(err error) error {
	wrapped := fmt.Errorf("%w: %w", ErrNegotiationFailed, err)
	t := s.terminateLocked(Failed, wrapped)
	s.mu.Unlock()

	s.logger.Warn("negotiation failed", "error", err)
	if t != nil {
		t.Close()
	}
	return wrapped
}

// terminateLocked performs the transition into a terminal state and
// returns the transport the caller must close outside the lock.
func (s *Session) terminateLocked(state State, err error) Transport {
	if s.state.Terminal() {
		return nil
	}
	s.state = state
	s.err = err
	s.pendingRemote = nil
	s.pendingLocal = nil
	close(s.finished)
	return s.transport
}

func (s *Session) maybeOpenLocked() {
	if s.state == DescriptionExchanged && s.openSeen {
		s.state = ChannelOpen
		close(s.opened)
		s.logger.Debug("data channel open")
	}
}

func (s *Session) flushRemoteLocked() {
	pending := s.pendingRemote
	s.pendingRemote = nil
	for _, c := range pending {
		s.addCandidateLocked(c)
	}
}

func (s *Session) flushLocalLocked() {
	s.localSent = true
	pending := s.pendingLocal
	s.pendingLocal = nil
	for _, c := range pending {
		s.sendCandidateLocked(c)
	}
}

// A rejected candidate is logged, not fatal.
func (s *Session) addCandidateLocked(c pion.ICECandidateInit) {
	if err := s.transport.AddICECandidate(c); err != nil {
		s.logger.Debug("failed to add remote candidate", "error", err)
	}
}

func (s *Session) sendCandidateLocked(c pion.ICECandidateInit) {
	if err := s.outbox.SendCandidate(s.peerID, c); err != nil {
		s.logger.Debug("failed to send local candidate", "error", err)
	}
}
