// Package relay implements the signaling relay: a single event loop that
// owns room membership and routes messages between connected peers.
package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/roomcode"
	"github.com/localdrop/localdrop/internal/signaling"
)

// ErrHubStopped is returned by Lookup once Run has returned.
var ErrHubStopped = errors.New("relay hub stopped")

// MembershipObserver is told about every room snapshot the hub broadcasts.
// An empty participant slice means the room was deleted. Implementations
// must not block: they are called from the event loop.
type MembershipObserver interface {
	RoomChanged(room string, participants []presence.Participant)
}

type inbound struct {
	client *Client
	msg    signaling.Message
	err    error
}

type lookupRequest struct {
	room  string
	reply chan lookupReply
}

type lookupReply struct {
	participants []presence.Participant
	found        bool
}

// Hub is the relay's event loop. All registry state is touched only from
// the goroutine running Run.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	lookups    chan lookupRequest
	done       chan struct{}

	registry *presence.Registry
	clients  map[*Client]struct{}
	peers    map[string]*Client

	observer MembershipObserver
	logger   *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithObserver attaches a membership observer.
func WithObserver(observer MembershipObserver) Option {
	return func(h *Hub) {
		h.observer = observer
	}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		lookups:    make(chan lookupRequest),
		done:       make(chan struct{}),
		registry:   presence.NewRegistry(),
		clients:    make(map[*Client]struct{}),
		peers:      make(map[string]*Client),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes connection events until ctx is cancelled. On exit every
// remaining client's send queue is closed, which ends its write pump.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for c := range h.clients {
			close(c.send)
		}
		h.clients = nil
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.peers[c.PeerID] = c
			h.logger.Debug("client registered", "peer", c.PeerID, "remote", c.remoteAddr())

		case c := <-h.unregister:
			h.handleDisconnect(c)

		case in := <-h.inbound:
			h.handleInbound(in)

		case req := <-h.lookups:
			req.reply <- lookupReply{
				participants: h.registry.Participants(req.room),
				found:        h.registry.Has(req.room),
			}
		}
	}
}

// Lookup returns the current participants of room by asking the event loop.
func (h *Hub) Lookup(ctx context.Context, room string) ([]presence.Participant, bool, error) {
	req := lookupRequest{room: room, reply: make(chan lookupReply, 1)}

	select {
	case h.lookups <- req:
	case <-h.done:
		return nil, false, ErrHubStopped
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply.participants, reply.found, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Register hands a new connection to the hub. It reports false if the hub
// has stopped, in which case the caller owns the connection.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) submit(in inbound) bool {
	select {
	case h.inbound <- in:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handleInbound(in inbound) {
	c := in.client
	if _, ok := h.clients[c]; !ok {
		return
	}

	if in.err != nil {
		h.logger.Debug("rejected message", "peer", c.PeerID, "error", in.err)
		h.deliver(c, signaling.Error{Message: in.err.Error()})
		return
	}

	switch msg := in.msg.(type) {
	case signaling.Join:
		h.handleJoin(c, msg)
	case signaling.Addressed:
		h.forward(c, msg)
	default:
		h.logger.Debug("unexpected message from client", "peer", c.PeerID, "kind", msg.Kind())
		h.deliver(c, signaling.Error{Message: "unexpected message: " + string(msg.Kind())})
	}
}

func (h *Hub) handleJoin(c *Client, join signaling.Join) {
	deviceClass := join.DeviceClass
	if deviceClass == "" {
		deviceClass = c.deviceClass
	}
	name := join.Name
	if name == "" {
		name = presence.DisplayNameFor(deviceClass, c.PeerID)
	}

	room := roomcode.Canonical(join.Room)
	result := h.registry.Admit(room, presence.Participant{
		PeerID:      c.PeerID,
		ClientID:    join.ClientID,
		DeviceClass: deviceClass,
		ClientType:  join.ClientType,
		DisplayName: name,
	})

	for _, ghost := range result.Evicted {
		h.logger.Debug("evicted ghost", "room", room, "peer", ghost.PeerID, "client_id", ghost.ClientID)
		if gc, ok := h.peers[ghost.PeerID]; ok {
			gc.room = ""
		}
	}

	c.room = room
	h.logger.Info("peer joined", "room", room, "peer", c.PeerID, "device", deviceClass)

	h.deliver(c, signaling.Joined{Room: room, PeerID: c.PeerID})
	h.broadcast(room)
	if result.PreviousRoom != "" {
		h.broadcast(result.PreviousRoom)
	}
}

func (h *Hub) forward(c *Client, msg signaling.Addressed) {
	dest, ok := h.peers[msg.Destination()]
	if !ok {
		h.logger.Debug("dropping message for unknown peer", "kind", msg.Kind(), "from", c.PeerID, "to", msg.Destination())
		return
	}
	h.deliver(dest, msg.WithSender(c.PeerID))
}

func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	delete(h.peers, c.PeerID)

	if c.room != "" && h.registry.Remove(c.room, c.PeerID) {
		h.logger.Info("peer left", "room", c.room, "peer", c.PeerID)
		h.broadcast(c.room)
	}
	c.room = ""
	close(c.send)
}

// broadcast sends the room's current participant list to every member.
func (h *Hub) broadcast(room string) {
	participants := h.registry.Participants(room)

	if len(participants) > 0 {
		data, err := signaling.Encode(signaling.ParticipantList{Room: room, Participants: participants})
		if err != nil {
			h.logger.Error("failed to encode participant list", "room", room, "error", err)
			return
		}
		for _, p := range participants {
			if member, ok := h.peers[p.PeerID]; ok {
				h.enqueue(member, data)
			}
		}
	}

	if h.observer != nil {
		h.observer.RoomChanged(room, participants)
	}
}

func (h *Hub) deliver(c *Client, msg signaling.Message) {
	data, err := signaling.Encode(msg)
	if err != nil {
		h.logger.Error("failed to encode message", "kind", msg.Kind(), "error", err)
		return
	}
	h.enqueue(c, data)
}

// enqueue never blocks the event loop. A full queue loses the message.
func (h *Hub) enqueue(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("send queue full, dropping message", "peer", c.PeerID)
	}
}
