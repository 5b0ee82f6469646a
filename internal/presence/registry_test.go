package presence

import (
	"fmt"
	"testing"
)

func participant(peerID, clientID string) Participant {
	return Participant{
		PeerID:      peerID,
		ClientID:    clientID,
		DeviceClass: DeviceDesktop,
		DisplayName: DisplayNameFor(DeviceDesktop, peerID),
	}
}

func peerIDs(ps []Participant) []string {
	ids := make([]string, len(ps))
	for i, p := range ps {
		ids[i] = p.PeerID
	}
	return ids
}

func TestAdmitKeepsAdmissionOrder(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", "c1"))
	r.Admit("ROOM01", participant("p2", "c2"))
	r.Admit("ROOM01", participant("p3", "c3"))

	got := fmt.Sprint(peerIDs(r.Participants("ROOM01")))
	if got != "[p1 p2 p3]" {
		t.Fatalf("participants = %s, want [p1 p2 p3]", got)
	}
}

func TestAdmitEvictsGhost(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", "laptop"))
	r.Admit("ROOM01", participant("p2", "phone"))

	result := r.Admit("ROOM01", participant("p3", "laptop"))

	if len(result.Evicted) != 1 || result.Evicted[0].PeerID != "p1" {
		t.Fatalf("evicted = %+v, want p1", result.Evicted)
	}
	got := fmt.Sprint(peerIDs(r.Participants("ROOM01")))
	if got != "[p2 p3]" {
		t.Fatalf("participants = %s, want [p2 p3]", got)
	}
	if _, ok := r.RoomOf("p1"); ok {
		t.Error("evicted peer is still indexed")
	}
	if r.Remove("ROOM01", "p1") {
		t.Error("removing an evicted ghost should be a no-op")
	}
}

func TestAdmitNeverHoldsDuplicateStableIdentity(t *testing.T) {
	r := NewRegistry()
	clients := []string{"a", "b", "a", "c", "b", "a", "a", "c"}

	for i, clientID := range clients {
		peerID := fmt.Sprintf("p%d", i)
		r.Admit("ROOM01", participant(peerID, clientID))

		seen := make(map[string]string)
		for _, p := range r.Participants("ROOM01") {
			if prev, dup := seen[p.ClientID]; dup {
				t.Fatalf("step %d: client %s held by %s and %s", i, p.ClientID, prev, p.PeerID)
			}
			seen[p.ClientID] = p.PeerID
		}
		if seen[clientID] != peerID {
			t.Fatalf("step %d: client %s held by %s, want most recent %s", i, clientID, seen[clientID], peerID)
		}
	}
}

func TestEmptyClientIDIsNotAGhostKey(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", ""))
	r.Admit("ROOM01", participant("p2", ""))

	if n := len(r.Participants("ROOM01")); n != 2 {
		t.Fatalf("participants = %d, want 2", n)
	}
}

func TestAdmitMovesPeerBetweenRooms(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", "c1"))
	r.Admit("ROOM01", participant("p2", "c2"))

	result := r.Admit("ROOM02", participant("p1", "c1"))

	if result.PreviousRoom != "ROOM01" {
		t.Fatalf("previous room = %q, want ROOM01", result.PreviousRoom)
	}
	if got := fmt.Sprint(peerIDs(r.Participants("ROOM01"))); got != "[p2]" {
		t.Errorf("ROOM01 = %s, want [p2]", got)
	}
	if got := fmt.Sprint(peerIDs(r.Participants("ROOM02"))); got != "[p1]" {
		t.Errorf("ROOM02 = %s, want [p1]", got)
	}
	if room, _ := r.RoomOf("p1"); room != "ROOM02" {
		t.Errorf("RoomOf(p1) = %q, want ROOM02", room)
	}
}

func TestRejoinSameRoomReportsNoPreviousRoom(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", "c1"))

	result := r.Admit("ROOM01", participant("p1", "c1"))

	if result.PreviousRoom != "" {
		t.Errorf("previous room = %q, want empty", result.PreviousRoom)
	}
	if n := len(r.Participants("ROOM01")); n != 1 {
		t.Errorf("participants = %d, want 1", n)
	}
}

func TestRemoveLastParticipantDeletesRoom(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", "c1"))
	r.Admit("ROOM01", participant("p2", "c2"))

	if !r.Remove("ROOM01", "p1") {
		t.Fatal("Remove(p1) = false")
	}
	if !r.Has("ROOM01") {
		t.Fatal("room deleted while a participant remains")
	}
	if !r.Remove("ROOM01", "p2") {
		t.Fatal("Remove(p2) = false")
	}
	if r.Has("ROOM01") {
		t.Error("empty room still present")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
	if ps := r.Participants("ROOM01"); len(ps) != 0 {
		t.Errorf("participants of deleted room = %v", ps)
	}
}

func TestRemoveUnknownPeer(t *testing.T) {
	r := NewRegistry()
	if r.Remove("NOPE", "p1") {
		t.Error("Remove on missing room = true")
	}
	r.Admit("ROOM01", participant("p1", "c1"))
	if r.Remove("ROOM01", "p9") {
		t.Error("Remove of unknown peer = true")
	}
}

func TestParticipantsReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Admit("ROOM01", participant("p1", "c1"))

	snapshot := r.Participants("ROOM01")
	snapshot[0].DisplayName = "changed"

	if r.Participants("ROOM01")[0].DisplayName == "changed" {
		t.Error("snapshot aliases registry storage")
	}
}

func TestDeviceClassFromUserAgent(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", DeviceMobile},
		{"Mozilla/5.0 (X11; Linux x86_64)", DeviceDesktop},
		{"", DeviceDesktop},
	}
	for _, tt := range tests {
		if got := DeviceClassFromUserAgent(tt.agent); got != tt.want {
			t.Errorf("DeviceClassFromUserAgent(%q) = %q, want %q", tt.agent, got, tt.want)
		}
	}
}

func TestDisplayNameFor(t *testing.T) {
	if got := DisplayNameFor(DeviceMobile, "3f2a9c1e-0000"); got != "Mobile 3f2a" {
		t.Errorf("got %q", got)
	}
	if got := DisplayNameFor(DeviceDesktop, ""); got != "Desktop" {
		t.Errorf("got %q", got)
	}
}
