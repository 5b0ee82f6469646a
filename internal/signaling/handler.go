package signaling

import "github.com/localdrop/localdrop/internal/presence"

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	// Joined receives the relay's admission acknowledgement.
	Joined chan Joined

	// Participants always holds the most recent room snapshot. Older
	// snapshots are discarded if the consumer falls behind.
	Participants chan []presence.Participant

	// Signals carries offers, answers and candidates in arrival order.
	Signals chan Addressed

	// Errors carries relay error messages.
	Errors chan string
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		Joined:       make(chan Joined, 1),
		Participants: make(chan []presence.Participant, 1),
		Signals:      make(chan Addressed, 64),
		Errors:       make(chan string, 4),
	}
}

// Start routes messages until the client's incoming channel closes, then
// closes Signals.
func (h *Handler) Start() {
	defer close(h.Signals)

	for msg := range h.client.Incoming() {
		switch m := msg.(type) {
		case Joined:
			replaceLatest(h.Joined, m)

		case ParticipantList:
			replaceLatest(h.Participants, m.Participants)

		case Addressed:
			h.Signals <- m

		case Error:
			select {
			case h.Errors <- m.Message:
			default:
				h.client.logger.Warn("dropping relay error", "error", m.Message)
			}
		}
	}
}

// replaceLatest stores v in a one-slot channel, displacing a stale value.
// Start is the only writer, so the retry cannot race another producer.
func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
