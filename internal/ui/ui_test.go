package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/localdrop/localdrop/internal/presence"
)

var roster = []presence.Participant{
	{PeerID: "self", DisplayName: "Desktop self", DeviceClass: "desktop", ClientType: "cli"},
	{PeerID: "p1", DisplayName: "Phone", DeviceClass: "mobile", ClientType: "web"},
	{PeerID: "p2", DisplayName: "Laptop", DeviceClass: "desktop", ClientType: "cli"},
}

func TestPickerNavigation(t *testing.T) {
	m := newPickerModel(roster, nil, "self")
	if len(m.peers) != 2 {
		t.Fatalf("peers = %d, self not excluded", len(m.peers))
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.chosen == nil || m.chosen.PeerID != "p2" {
		t.Fatalf("chosen = %+v", m.chosen)
	}
	if cmd == nil {
		t.Error("enter did not quit")
	}
}

func TestPickerKeepsCursorAcrossUpdates(t *testing.T) {
	m := newPickerModel(roster, nil, "self")
	m.Update(tea.KeyMsg{Type: tea.KeyDown})

	// p1 leaves and p3 joins ahead of p2.
	m.Update(rosterMsg{
		roster[0],
		{PeerID: "p3", DisplayName: "Tablet"},
		roster[2],
	})
	if m.peers[m.cursor].PeerID != "p2" {
		t.Errorf("cursor moved to %s", m.peers[m.cursor].PeerID)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !m.cancelled {
		t.Error("q did not cancel")
	}
}

func TestPickerWaitsWhenEmpty(t *testing.T) {
	m := newPickerModel(roster[:1], nil, "self")
	if !strings.Contains(m.View(), "Waiting") {
		t.Errorf("view = %q", m.View())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.chosen != nil {
		t.Error("enter chose from an empty list")
	}
}

func TestPickPeerWithoutTerminal(t *testing.T) {
	updates := make(chan []presence.Participant, 1)
	updates <- roster

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := PickPeer(ctx, roster[:1], updates, "self")
	if err != nil {
		t.Fatal(err)
	}
	if got.PeerID != "p1" {
		t.Errorf("picked %s", got.PeerID)
	}

	_, err = PickPeer(ctx, nil, make(chan []presence.Participant), "self")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestSummaryView(t *testing.T) {
	view := TransferSummaryView(TransferSummary{
		Status:   "Complete",
		Name:     "a.bin",
		Size:     2048,
		Duration: 2 * time.Second,
		Digest:   "abcd",
	})
	for _, want := range []string{"a.bin", "2.00 KB", "1.00 KB/s", "BLAKE3", "abcd"} {
		if !strings.Contains(view, want) {
			t.Errorf("summary missing %q:\n%s", want, view)
		}
	}
}

func TestParticipantTableMarksSelf(t *testing.T) {
	view := ParticipantTable(roster, "self")
	if !strings.Contains(view, "Desktop self (you)") || !strings.Contains(view, "Laptop") {
		t.Errorf("table:\n%s", view)
	}
}
