// Package room holds the authoritative, in-memory room state: member
// list, chat buffer, join-code allocation and the deterministic host
// election used during migration. Every exported operation either
// produces a fully valid Room or returns an error — there are no partial
// mutations. Callers are responsible for serializing access (the
// coordinator funnels all mutation through a single event loop; see
// internal/coordinator).
package room

import "encoding/json"

// DeviceId is stable per physical device across reconnects.
type DeviceId string

// ClientId is ephemeral per connection, assigned by the coordinator.
type ClientId string

// RoomId is assigned by the coordinator at room creation.
type RoomId string

// JoinCode is a 6-character code drawn from [A-Z0-9], unique among the
// coordinator's live rooms.
type JoinCode string

// Role is a member's standing within a room.
type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

// maxChatEntries bounds the chat FIFO; the oldest entry is dropped once
// exceeded.
const maxChatEntries = 50

// Member is one logical participant in a room.
type Member struct {
	DeviceId  DeviceId `json:"deviceId"`
	ClientId  ClientId `json:"clientId"`
	Name      string   `json:"name"`
	JoinOrder int64    `json:"joinOrder"`
	Role      Role     `json:"role"`
	// ConnectedAt is informational only (ms since epoch); never consulted
	// by election or the invariants.
	ConnectedAt int64 `json:"connectedAt"`
}

// ChatEntry is one message in a room's chat buffer.
type ChatEntry struct {
	FromDeviceId DeviceId `json:"fromDeviceId"`
	FromName     string   `json:"fromName"`
	Text         string   `json:"text"`
	Timestamp    int64    `json:"timestamp"`
}

// Room is the authoritative state for one session. Member order matches
// join order; Chat is a bounded FIFO capped at maxChatEntries.
type Room struct {
	RoomId       RoomId      `json:"roomId"`
	JoinCode     JoinCode    `json:"joinCode"`
	HostDeviceId DeviceId    `json:"hostDeviceId"`
	MaxPlayers   int         `json:"maxPlayers"`
	Members      []Member    `json:"members"`
	Chat         []ChatEntry `json:"chat"`
	// ModuleState is an opaque blob owned by whatever game-module system
	// sits above this core; the room model never inspects it, only carries
	// it through snapshot and restore.
	ModuleState json.RawMessage `json:"moduleState,omitempty"`
}

// Snapshot is the complete replicated datum broadcast on every observable
// mutation and used to seed a restored coordinator. The two lookup tables
// are derived from Room.Members; receivers rebuild them on restore rather
// than trust a possibly-stale copy, but the wire form carries both so a
// peer with only the snapshot (no separate member list) can use them
// directly.
type Snapshot struct {
	Room            Room                `json:"room"`
	DeviceToClient  map[DeviceId]ClientId `json:"deviceToClient"`
	DeviceToName    map[DeviceId]string   `json:"deviceToName"`
}

// clone deep-copies a Room so a returned snapshot cannot alias internal
// mutable state.
func (r Room) clone() Room {
	members := make([]Member, len(r.Members))
	copy(members, r.Members)

	chat := make([]ChatEntry, len(r.Chat))
	copy(chat, r.Chat)

	var moduleState json.RawMessage
	if r.ModuleState != nil {
		moduleState = make(json.RawMessage, len(r.ModuleState))
		copy(moduleState, r.ModuleState)
	}

	return Room{
		RoomId:       r.RoomId,
		JoinCode:     r.JoinCode,
		HostDeviceId: r.HostDeviceId,
		MaxPlayers:   r.MaxPlayers,
		Members:      members,
		Chat:         chat,
		ModuleState:  moduleState,
	}
}

// snapshotOf builds a Snapshot from a Room, deriving the two lookup
// tables from the current member list.
func snapshotOf(r Room) Snapshot {
	cloned := r.clone()
	deviceToClient := make(map[DeviceId]ClientId, len(cloned.Members))
	deviceToName := make(map[DeviceId]string, len(cloned.Members))
	for _, m := range cloned.Members {
		deviceToClient[m.DeviceId] = m.ClientId
		deviceToName[m.DeviceId] = m.Name
	}
	return Snapshot{
		Room:           cloned,
		DeviceToClient: deviceToClient,
		DeviceToName:   deviceToName,
	}
}
