package webrtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/localdrop/localdrop/internal/config"
	"github.com/localdrop/localdrop/internal/negotiation"
	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/signaling"
	"github.com/localdrop/localdrop/internal/transfer"
)

// ErrRelayError wraps an error reported by the relay.
var ErrRelayError = errors.New("relay error")

// Endpoint is this client's presence on the relay: one signaling
// connection, the room it joined and every negotiation it runs.
type Endpoint struct {
	cfg        *config.Config
	client     *signaling.Client
	handler    *signaling.Handler
	negotiator *negotiation.Negotiator
	logger     *slog.Logger

	cancel context.CancelFunc

	mu     sync.Mutex
	self   signaling.Joined
	roster []presence.Participant
	notify chan []presence.Participant
}

// Link is an open data channel to one remote participant.
type Link struct {
	Remote  presence.Participant
	Session *negotiation.Session
	Peer    *Peer
	Codec   transfer.Codec
}

// Channel returns the transfer data channel.
func (l *Link) Channel() *pion.DataChannel {
	return l.Peer.Channel()
}

// Close ends the negotiation and the peer connection.
func (l *Link) Close() {
	l.Session.Close()
}

// Dial connects to the relay described by cfg.
func Dial(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Endpoint, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := signaling.NewClient(cfg.WebSocketURL, logger)
	if err := client.Connect(ctx); err != nil {
		return nil, transfer.NewError("connect to server", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e := &Endpoint{
		cfg:     cfg,
		client:  client,
		handler: signaling.NewHandler(client),
		logger:  logger,
		cancel:  cancel,
		notify:  make(chan []presence.Participant, 1),
	}
	e.negotiator = negotiation.NewNegotiator(
		negotiation.NewRelayOutbox(client),
		e.newTransport,
		negotiation.WithLogger(logger),
	)

	go e.handler.Start()
	go e.negotiator.Run(runCtx, e.handler.Signals)
	go e.watchRoster(runCtx)

	return e, nil
}

func (e *Endpoint) newTransport(peerID string, role negotiation.Role, events negotiation.Events) (negotiation.Transport, error) {
	return NewPeer(PeerConfig{
		STUNServers: e.cfg.GetSTUNServers(),
		Role:        role,
		Events:      events,
		Logger:      e.logger.With("peer", peerID, "role", role.String()),
	})
}

// watchRoster keeps the latest participant list and republishes it.
func (e *Endpoint) watchRoster(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case participants := <-e.handler.Participants:
			e.mu.Lock()
			e.roster = participants
			e.mu.Unlock()

			select {
			case e.notify <- participants:
			default:
				select {
				case <-e.notify:
				default:
				}
				select {
				case e.notify <- participants:
				default:
				}
			}
		}
	}
}

// Join enters room and waits for the relay's acknowledgement.
func (e *Endpoint) Join(ctx context.Context, room string) (signaling.Joined, error) {
	err := e.client.Send(signaling.Join{
		Room:        room,
		ClientID:    e.cfg.ClientID,
		DeviceClass: presence.DeviceDesktop,
		ClientType:  presence.ClientTypeCLI,
		Name:        e.cfg.Name,
	})
	if err != nil {
		return signaling.Joined{}, transfer.NewError("join room", err)
	}

	select {
	case joined := <-e.handler.Joined:
		e.mu.Lock()
		e.self = joined
		e.mu.Unlock()
		e.logger.Debug("joined room", "room", joined.Room, "peer", joined.PeerID)
		return joined, nil
	case msg := <-e.handler.Errors:
		return signaling.Joined{}, transfer.WrapError("join room", ErrRelayError, msg)
	case <-e.client.Done():
		return signaling.Joined{}, transfer.NewError("join room", signaling.ErrClientClosed)
	case <-ctx.Done():
		return signaling.Joined{}, ctx.Err()
	}
}

// Self returns this client's admission record.
func (e *Endpoint) Self() signaling.Joined {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self
}

// Roster delivers participant lists as they change. Only the latest is
// kept if the reader falls behind.
func (e *Endpoint) Roster() <-chan []presence.Participant {
	return e.notify
}

// Others returns the latest participant list without this client.
func (e *Endpoint) Others() []presence.Participant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return without(e.roster, e.self.PeerID)
}

// Participant looks up a peer in the latest list.
func (e *Endpoint) Participant(peerID string) (presence.Participant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.roster {
		if p.PeerID == peerID {
			return p, true
		}
	}
	return presence.Participant{}, false
}

// Connect negotiates a data channel with peerID and waits until it opens.
// From then on the endpoint refuses offers from other participants.
func (e *Endpoint) Connect(ctx context.Context, peerID string) (*Link, error) {
	e.negotiator.RefuseOffers()
	session, err := e.negotiator.Connect(ctx, peerID)
	if err != nil {
		return nil, err
	}
	return e.open(ctx, session)
}

// Accept waits for a remote participant to connect to us.
func (e *Endpoint) Accept(ctx context.Context) (*Link, error) {
	for {
		select {
		case session := <-e.negotiator.Incoming():
			link, err := e.open(ctx, session)
			if err != nil && ctx.Err() == nil && errors.Is(err, negotiation.ErrSessionClosed) {
				// Superseded by a newer offer from the same peer.
				continue
			}
			return link, err
		case msg := <-e.handler.Errors:
			return nil, transfer.WrapError("accept", ErrRelayError, msg)
		case <-e.client.Done():
			return nil, transfer.NewError("accept", signaling.ErrClientClosed)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Endpoint) open(ctx context.Context, session *negotiation.Session) (*Link, error) {
	if err := session.WaitOpen(ctx); err != nil {
		session.Close()
		return nil, err
	}

	peer, ok := session.Transport().(*Peer)
	if !ok {
		session.Close()
		return nil, fmt.Errorf("unexpected transport %T", session.Transport())
	}

	remote, ok := e.Participant(session.PeerID())
	if !ok {
		remote = presence.Participant{PeerID: session.PeerID()}
	}

	return &Link{
		Remote:  remote,
		Session: session,
		Peer:    peer,
		Codec:   SelectCodec(presence.ClientTypeCLI, remote.ClientType),
	}, nil
}

// Close ends every negotiation and the relay connection.
func (e *Endpoint) Close() {
	e.cancel()
	e.negotiator.Close()
	e.client.Close()
}

func without(participants []presence.Participant, peerID string) []presence.Participant {
	out := make([]presence.Participant, 0, len(participants))
	for _, p := range participants {
		if p.PeerID != peerID {
			out = append(out, p)
		}
	}
	return out
}
