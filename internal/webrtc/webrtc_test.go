package webrtc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/localdrop/localdrop/internal/negotiation"
	"github.com/localdrop/localdrop/internal/presence"
	"github.com/localdrop/localdrop/internal/signaling"
	"github.com/localdrop/localdrop/internal/transfer"
)

var discard = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestSelectCodec(t *testing.T) {
	tests := []struct {
		local, remote string
		want          string
	}{
		{presence.ClientTypeCLI, presence.ClientTypeCLI, "msgpack"},
		{presence.ClientTypeCLI, presence.ClientTypeWeb, "json"},
		{presence.ClientTypeCLI, "", "json"},
		{presence.ClientTypeWeb, presence.ClientTypeCLI, "json"},
	}
	for _, tt := range tests {
		if got := SelectCodec(tt.local, tt.remote).Name(); got != tt.want {
			t.Errorf("SelectCodec(%q, %q) = %s, want %s", tt.local, tt.remote, got, tt.want)
		}
	}
}

// memoryOutbox hands messages to the other side's negotiator as if the
// relay had stamped them.
type memoryOutbox struct {
	from string
	out  chan signaling.Addressed
}

func (o *memoryOutbox) SendOffer(to string, desc pion.SessionDescription) error {
	raw, _ := json.Marshal(desc)
	o.out <- signaling.Offer{From: o.from, Description: raw}
	return nil
}

func (o *memoryOutbox) SendAnswer(to string, desc pion.SessionDescription) error {
	raw, _ := json.Marshal(desc)
	o.out <- signaling.Answer{From: o.from, Description: raw}
	return nil
}

func (o *memoryOutbox) SendCandidate(to string, candidate pion.ICECandidateInit) error {
	raw, _ := json.Marshal(candidate)
	o.out <- signaling.Candidate{From: o.from, Candidate: raw}
	return nil
}

func peerFactory(peerID string, role negotiation.Role, events negotiation.Events) (negotiation.Transport, error) {
	return NewPeer(PeerConfig{Role: role, Events: events, Logger: discard})
}

func TestLoopbackTransfer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	toB := make(chan signaling.Addressed, 256)
	toA := make(chan signaling.Addressed, 256)

	a := negotiation.NewNegotiator(&memoryOutbox{from: "alpha", out: toB}, peerFactory, negotiation.WithLogger(discard))
	b := negotiation.NewNegotiator(&memoryOutbox{from: "beta", out: toA}, peerFactory, negotiation.WithLogger(discard))
	defer a.Close()
	defer b.Close()

	go a.Run(ctx, toA)
	go b.Run(ctx, toB)

	initiator, err := a.Connect(ctx, "beta")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	var responder *negotiation.Session
	select {
	case responder = <-b.Incoming():
	case <-ctx.Done():
		t.Fatal("no incoming session")
	}

	if err := initiator.WaitOpen(ctx); err != nil {
		t.Fatalf("initiator WaitOpen: %v", err)
	}
	if err := responder.WaitOpen(ctx); err != nil {
		t.Fatalf("responder WaitOpen: %v", err)
	}

	results := make(chan transfer.Result, 1)
	receiver := transfer.NewReceiver(transfer.MsgpackCodec{}, nil,
		transfer.WithReceiverLogger(discard),
		transfer.OnComplete(func(r transfer.Result) { results <- r }))

	responderPeer := responder.Transport().(*Peer)
	responderPeer.SetMessageHandler(func(data []byte, isText bool) {
		receiver.HandleMessage(data, isText)
	})

	data := bytes.Repeat([]byte("localdrop"), 200_000)
	sender := transfer.NewSender(initiator.Transport().(*Peer).Channel(), transfer.MsgpackCodec{},
		transfer.WithSenderLogger(discard))
	if err := sender.Send(ctx, transfer.Payload{Name: "loop.bin", Size: int64(len(data)), Reader: bytes.NewReader(data)}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case r := <-results:
		if !bytes.Equal(r.Data, data) || r.Short() {
			t.Fatalf("received %d bytes, want %d", r.Received, len(data))
		}
	case <-ctx.Done():
		t.Fatal("transfer did not complete")
	}
}

func TestMessagesBeforeHandlerAreReplayed(t *testing.T) {
	p := &Peer{}
	p.deliver(pion.DataChannelMessage{IsString: true, Data: []byte("first")})
	p.deliver(pion.DataChannelMessage{Data: []byte("second")})

	var got []string
	p.SetMessageHandler(func(data []byte, isText bool) {
		got = append(got, string(data))
	})
	p.deliver(pion.DataChannelMessage{Data: []byte("third")})

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChannelCloseAfterTheFact(t *testing.T) {
	p := &Peer{closed: true}
	called := false
	p.OnChannelClose(func() { called = true })
	if !called {
		t.Error("close callback not run for an already closed channel")
	}
}
