package signaling

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/localdrop/localdrop/internal/presence"
)

// scriptedRelay answers a join with joined, two participant lists and an
// offer, then echoes whatever it reads next back as an error message.
func scriptedRelay(t *testing.T) *httptest.Server {
	t.Helper()
	var upgrader websocket.Upgrader

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := Decode(data)
		if err != nil {
			return
		}
		join := msg.(Join)

		write := func(m Message) {
			out, _ := Encode(m)
			conn.WriteMessage(websocket.TextMessage, out)
		}
		write(Joined{Room: join.Room, PeerID: "me"})
		write(ParticipantList{Room: join.Room, Participants: []presence.Participant{{PeerID: "me"}}})
		write(ParticipantList{Room: join.Room, Participants: []presence.Participant{{PeerID: "me"}, {PeerID: "them"}}})
		write(Offer{From: "them", Description: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)})

		_, data, err = conn.ReadMessage()
		if err != nil {
			return
		}
		write(Error{Message: string(data)})

		// Hold the connection until the client goes away.
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientAndHandlerRouting(t *testing.T) {
	srv := scriptedRelay(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	client := NewClient(url, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	h := NewHandler(client)
	go h.Start()

	if err := client.Send(Join{Room: "AB12CD", ClientID: "c1"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case joined := <-h.Joined:
		if joined.PeerID != "me" {
			t.Errorf("peer id = %q", joined.PeerID)
		}
	case <-ctx.Done():
		t.Fatal("no joined message")
	}

	select {
	case sig := <-h.Signals:
		offer, ok := sig.(Offer)
		if !ok || offer.From != "them" {
			t.Fatalf("signal = %#v", sig)
		}
	case <-ctx.Done():
		t.Fatal("no offer routed")
	}

	// The offer arrived after both lists, so the slot holds the newest one.
	select {
	case ps := <-h.Participants:
		if len(ps) != 2 {
			t.Errorf("latest snapshot has %d participants, want 2", len(ps))
		}
	default:
		t.Fatal("no participant snapshot")
	}

	if err := client.Send(Candidate{To: "them", Candidate: json.RawMessage(`{"candidate":"c"}`)}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case msg := <-h.Errors:
		if !strings.Contains(msg, `"type":"candidate"`) {
			t.Errorf("relay saw %s", msg)
		}
	case <-ctx.Done():
		t.Fatal("no error routed")
	}

	client.Close()
	if err := client.Send(Join{Room: "AB12CD"}); err != ErrClientClosed {
		t.Errorf("Send after Close = %v, want ErrClientClosed", err)
	}
}

func TestConnectFailure(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1/ws", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected a dial error")
	}
}
