package server

// PresenceEntry maps a live connection to its room and user identity.
// Entries exist only while the connection is up and are never persisted.
type PresenceEntry struct {
	ConnectionId string
	RoomCode     string
	UserId       int
	Username     string
	client       *Client
}

// PresenceTable is owned by the Coordinator and mutated only from its
// event loop, so it needs no locking of its own.
type PresenceTable struct {
	entries map[string]*PresenceEntry
}

func NewPresenceTable() *PresenceTable {
	return &PresenceTable{
		entries: make(map[string]*PresenceEntry),
	}
}

func (pt *PresenceTable) Add(entry *PresenceEntry) {
	pt.entries[entry.ConnectionId] = entry
}

func (pt *PresenceTable) Get(connectionId string) (*PresenceEntry, bool) {
	entry, ok := pt.entries[connectionId]
	return entry, ok
}

func (pt *PresenceTable) Remove(connectionId string) {
	delete(pt.entries, connectionId)
}

// Room returns every live entry for roomCode, excluding skipConnectionId
// when non-empty. This is the audience-resolution rule for broadcasts.
func (pt *PresenceTable) Room(roomCode, skipConnectionId string) []*PresenceEntry {
	var entries []*PresenceEntry
	for connId, entry := range pt.entries {
		if entry.RoomCode != roomCode || connId == skipConnectionId {
			continue
		}

		entries = append(entries, entry)
	}

	return entries
}

func (pt *PresenceTable) Len() int {
	return len(pt.entries)
}

// RoomLen reports the number of live connections in roomCode.
func (pt *PresenceTable) RoomLen(roomCode string) int {
	var n int
	for _, entry := range pt.entries {
		if entry.RoomCode == roomCode {
			n++
		}
	}

	return n
}

// ActiveCall is the believed-active call for a room, derived from the
// latest offer. The durable calls table keeps history, this entry is
// authoritative for signaling.
type ActiveCall struct {
	CallType    string
	InitiatorId int
}

type CallTracker struct {
	calls map[string]ActiveCall
}

func NewCallTracker() *CallTracker {
	return &CallTracker{
		calls: make(map[string]ActiveCall),
	}
}

// Set records the active call for roomCode, last offer wins.
func (ct *CallTracker) Set(roomCode string, call ActiveCall) {
	ct.calls[roomCode] = call
}

func (ct *CallTracker) Get(roomCode string) (ActiveCall, bool) {
	call, ok := ct.calls[roomCode]
	return call, ok
}

func (ct *CallTracker) Clear(roomCode string) {
	delete(ct.calls, roomCode)
}
