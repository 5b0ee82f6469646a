// Package webrtc adapts pion peer connections to the negotiation and
// transfer packages and ties them to a relay connection.
package webrtc

import (
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/localdrop/localdrop/internal/negotiation"
	"github.com/localdrop/localdrop/internal/transfer"
)

const eventQueueSize = 128

// MessageHandler receives data channel messages in arrival order.
type MessageHandler func(data []byte, isText bool)

// PeerConfig holds the options for a single peer connection.
type PeerConfig struct {
	STUNServers []string
	Role        negotiation.Role
	Events      negotiation.Events
	Logger      *slog.Logger
}

// Peer is one pion PeerConnection plus the transfer data channel. It
// implements negotiation.Transport.
type Peer struct {
	pc     *pion.PeerConnection
	role   negotiation.Role
	events negotiation.Events
	logger *slog.Logger

	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	channel *pion.DataChannel
	onClose func()
	closed  bool

	msgMu   sync.Mutex
	handler MessageHandler
	pending []pion.DataChannelMessage
}

// NewPeer creates a peer connection. The initiator creates the transfer
// channel; the responder waits for the remote one.
func NewPeer(cfg PeerConfig) (*Peer, error) {
	pc, err := newPeerConnection(cfg.STUNServers)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Peer{
		pc:     pc,
		role:   cfg.Role,
		events: cfg.Events,
		logger: logger,
		queue:  make(chan func(), eventQueueSize),
		done:   make(chan struct{}),
	}
	go p.run()

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		candidate := c.ToJSON()
		p.dispatch(func() { p.events.LocalCandidate(candidate) })
	})

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.logger.Debug("peer connection state changed", "state", state.String())
		p.dispatch(func() { p.events.ConnectionStateChanged(state) })
	})

	if cfg.Role == negotiation.Initiator {
		ordered := true
		dc, err := pc.CreateDataChannel(transfer.ChannelLabel, &pion.DataChannelInit{Ordered: &ordered})
		if err != nil {
			p.Close()
			return nil, err
		}
		p.attach(dc)
	} else {
		pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() != transfer.ChannelLabel {
				p.logger.Debug("ignoring unexpected data channel", "label", dc.Label())
				return
			}
			p.attach(dc)
		})
	}

	return p, nil
}

// newPeerConnection builds a PeerConnection with the configured STUN
// servers. Loopback candidates are kept so two peers on one host connect.
func newPeerConnection(stunServers []string) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if len(stunServers) > 0 {
		iceServers = []pion.ICEServer{{URLs: stunServers}}
	}

	settingEngine := pion.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := pion.NewAPI(pion.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(pion.Configuration{ICEServers: iceServers})
}

func (p *Peer) attach(dc *pion.DataChannel) {
	p.mu.Lock()
	p.channel = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		p.logger.Debug("data channel open", "label", dc.Label())
		p.dispatch(p.events.ChannelOpened)
	})
	dc.OnMessage(p.deliver)
	dc.OnClose(func() {
		p.mu.Lock()
		p.closed = true
		fn := p.onClose
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}

// run delivers transport events one at a time, off pion's goroutines.
func (p *Peer) run() {
	for {
		select {
		case fn := <-p.queue:
			fn()
		case <-p.done:
			return
		}
	}
}

func (p *Peer) dispatch(fn func()) {
	select {
	case p.queue <- fn:
	case <-p.done:
	}
}

func (p *Peer) deliver(msg pion.DataChannelMessage) {
	p.msgMu.Lock()
	defer p.msgMu.Unlock()

	if p.handler == nil {
		p.pending = append(p.pending, msg)
		return
	}
	p.handler(msg.Data, msg.IsString)
}

// SetMessageHandler installs fn and replays messages that arrived before it.
func (p *Peer) SetMessageHandler(fn MessageHandler) {
	p.msgMu.Lock()
	defer p.msgMu.Unlock()

	p.handler = fn
	for _, msg := range p.pending {
		fn(msg.Data, msg.IsString)
	}
	p.pending = nil
}

// OnChannelClose registers fn to run when the data channel closes. It runs
// immediately if the channel has already closed.
func (p *Peer) OnChannelClose(fn func()) {
	p.mu.Lock()
	p.onClose = fn
	closed := p.closed
	p.mu.Unlock()

	if closed {
		fn()
	}
}

// Channel returns the transfer data channel, or nil before it exists.
func (p *Peer) Channel() *pion.DataChannel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

func (p *Peer) CreateOffer() (pion.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return pion.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return pion.SessionDescription{}, err
	}
	return offer, nil
}

func (p *Peer) CreateAnswer() (pion.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return pion.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return pion.SessionDescription{}, err
	}
	return answer, nil
}

func (p *Peer) SetRemoteDescription(desc pion.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *Peer) AddICECandidate(candidate pion.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// Close tears down the connection. Events still queued are dropped.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.pc.Close()
	})
	return err
}
