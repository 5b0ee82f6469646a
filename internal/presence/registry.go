// Package presence tracks which participants are in which room.
//
// The registry is a plain data structure with no I/O and no locking. It is
// owned by the relay's event loop, so each mutation and the participant
// snapshot taken right after it form a single indivisible step.
package presence

// AdmitResult describes the side effects of an Admit call.
type AdmitResult struct {
	// Evicted holds older records that shared the newcomer's ClientID.
	Evicted []Participant

	// PreviousRoom is the room the peer was tracked in before this admit,
	// or "" if it was not in any room (or rejoined the same room).
	PreviousRoom string
}

// Registry maps room codes to the participants admitted into them.
type Registry struct {
	rooms  map[string][]Participant
	peerIn map[string]string // peerID -> room
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string][]Participant),
		peerIn: make(map[string]string),
	}
}

// Admit inserts p into room. Any record in the room with the same ClientID
// is evicted first, and if p.PeerID is tracked in another room it is moved.
func (r *Registry) Admit(room string, p Participant) AdmitResult {
	var result AdmitResult

	if prev, ok := r.peerIn[p.PeerID]; ok {
		r.Remove(prev, p.PeerID)
		if prev != room {
			result.PreviousRoom = prev
		}
	}

	members := r.rooms[room]
	kept := members[:0]
	for _, existing := range members {
		if p.ClientID != "" && existing.ClientID == p.ClientID {
			result.Evicted = append(result.Evicted, existing)
			delete(r.peerIn, existing.PeerID)
			continue
		}
		kept = append(kept, existing)
	}

	r.rooms[room] = append(kept, p)
	r.peerIn[p.PeerID] = room
	return result
}

// Remove deletes the record for peerID from room. The room itself is
// deleted once it has no participants left. It reports whether a record
// was removed.
func (r *Registry) Remove(room, peerID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}

	for i, existing := range members {
		if existing.PeerID != peerID {
			continue
		}
		members = append(members[:i], members[i+1:]...)
		delete(r.peerIn, peerID)
		if len(members) == 0 {
			delete(r.rooms, room)
		} else {
			r.rooms[room] = members
		}
		return true
	}
	return false
}

// Participants returns a copy of the room's records in admission order.
func (r *Registry) Participants(room string) []Participant {
	members := r.rooms[room]
	out := make([]Participant, len(members))
	copy(out, members)
	return out
}

// RoomOf returns the room peerID is currently tracked in.
func (r *Registry) RoomOf(peerID string) (string, bool) {
	room, ok := r.peerIn[peerID]
	return room, ok
}

// Has reports whether room currently exists.
func (r *Registry) Has(room string) bool {
	_, ok := r.rooms[room]
	return ok
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}
