package room

const defaultMaxPlayers = 8
const maxJoinCodeAttempts = 64

// Store owns every room a single coordinator currently hosts, the
// coordinator-wide joinOrder counter, and the set of live join codes.
// A coordinator in this system hosts exactly one room in normal
// operation, but Store supports several to keep joinCode uniqueness and
// the joinOrder counter properly coordinator-scoped rather than
// room-scoped, matching invariant 3 and the Member doc in spec.md §3.
type Store struct {
	rooms     map[RoomId]*Room
	byCode    map[JoinCode]RoomId
	nextOrder int64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		rooms:  make(map[RoomId]*Room),
		byCode: make(map[JoinCode]RoomId),
	}
}

// CreateRoom allocates a fresh unique join code and a new Room with a
// single member: the creator, as host.
func (s *Store) CreateRoom(roomId RoomId, hostDeviceId DeviceId, hostClientId ClientId, hostName string, maxPlayers int, connectedAt int64) (Room, error) {
	code, err := s.allocateJoinCode()
	if err != nil {
		return Room{}, err
	}

	if maxPlayers <= 0 {
		maxPlayers = defaultMaxPlayers
	}

	r := &Room{
		RoomId:       roomId,
		JoinCode:     code,
		HostDeviceId: hostDeviceId,
		MaxPlayers:   maxPlayers,
		Members: []Member{{
			DeviceId:    hostDeviceId,
			ClientId:    hostClientId,
			Name:        hostName,
			JoinOrder:   s.nextOrder,
			Role:        RoleHost,
			ConnectedAt: connectedAt,
		}},
	}
	s.nextOrder++

	s.rooms[roomId] = r
	s.byCode[code] = roomId

	return r.clone(), nil
}

// JoinRoomByCode appends a new member to the room identified by code.
func (s *Store) JoinRoomByCode(code JoinCode, deviceId DeviceId, clientId ClientId, name string, connectedAt int64) (Room, error) {
	roomId, ok := s.byCode[code]
	if !ok {
		return Room{}, ErrInvalidJoinCode
	}
	r := s.rooms[roomId]

	for _, m := range r.Members {
		if m.Name == name {
			return Room{}, ErrNameConflict
		}
	}
	if r.MaxPlayers > 0 && len(r.Members) >= r.MaxPlayers {
		return Room{}, ErrRoomFull
	}

	r.Members = append(r.Members, Member{
		DeviceId:    deviceId,
		ClientId:    clientId,
		Name:        name,
		JoinOrder:   s.nextOrder,
		Role:        RoleMember,
		ConnectedAt: connectedAt,
	})
	s.nextOrder++

	return r.clone(), nil
}

// LeaveRoom removes deviceId from its room. If the room becomes empty it
// is destroyed (its join code released) and (Room{}, false) is returned.
// If the leaver was host, a new host is elected from the remaining
// members before the result is returned.
func (s *Store) LeaveRoom(deviceId DeviceId) (Room, bool, error) {
	r, roomId, err := s.findByMember(deviceId)
	if err != nil {
		return Room{}, false, err
	}

	wasHost := r.HostDeviceId == deviceId
	r.Members = removeMember(r.Members, deviceId)

	if len(r.Members) == 0 {
		delete(s.rooms, roomId)
		delete(s.byCode, r.JoinCode)
		return Room{}, false, nil
	}

	if wasHost {
		newHost, ok := Elect(r.Members, deviceId)
		if ok {
			r.HostDeviceId = newHost
			for i := range r.Members {
				if r.Members[i].DeviceId == newHost {
					r.Members[i].Role = RoleHost
				} else {
					r.Members[i].Role = RoleMember
				}
			}
		}
	}

	return r.clone(), true, nil
}

// Kick removes targetDeviceId from the room hosted by hostDeviceId.
// Fails with ErrNotHost if hostDeviceId does not currently hold the host
// role in that room.
func (s *Store) Kick(hostDeviceId, targetDeviceId DeviceId) (Room, error) {
	r, _, err := s.findByMember(hostDeviceId)
	if err != nil {
		return Room{}, err
	}
	if r.HostDeviceId != hostDeviceId {
		return Room{}, ErrNotHost
	}

	r.Members = removeMember(r.Members, targetDeviceId)
	return r.clone(), nil
}

// AppendChat appends a chat entry sent by fromDeviceId to its room,
// dropping the oldest entry if the buffer would exceed maxChatEntries.
func (s *Store) AppendChat(fromDeviceId DeviceId, text string, timestamp int64) (ChatEntry, error) {
	r, _, err := s.findByMember(fromDeviceId)
	if err != nil {
		return ChatEntry{}, ErrNotInRoom
	}

	var fromName string
	for _, m := range r.Members {
		if m.DeviceId == fromDeviceId {
			fromName = m.Name
			break
		}
	}

	entry := ChatEntry{
		FromDeviceId: fromDeviceId,
		FromName:     fromName,
		Text:         text,
		Timestamp:    timestamp,
	}

	r.Chat = append(r.Chat, entry)
	if len(r.Chat) > maxChatEntries {
		r.Chat = r.Chat[len(r.Chat)-maxChatEntries:]
	}

	return entry, nil
}

// MakeSnapshot returns a deep copy of the room's full replicated state.
func (s *Store) MakeSnapshot(roomId RoomId) (Snapshot, error) {
	r, ok := s.rooms[roomId]
	if !ok {
		return Snapshot{}, ErrUnknownRoom
	}
	return snapshotOf(*r), nil
}

// RoomOf returns the room containing deviceId, if any.
func (s *Store) RoomOf(deviceId DeviceId) (RoomId, bool) {
	_, roomId, err := s.findByMember(deviceId)
	if err != nil {
		return "", false
	}
	return roomId, true
}

// Restore rebuilds a room from a previously captured snapshot, preserving
// roomId, joinCode, hostDeviceId, the member list and the chat buffer.
// Member clientId values carried over are provisional: the coordinator
// reassigns them as each device reconnects and sends HELLO.
func (s *Store) Restore(snap Snapshot) error {
	r := snap.Room.clone()
	if _, taken := s.byCode[r.JoinCode]; taken {
		return ErrNameConflict // join code collision on restore; caller should pick a fresh id/code upstream
	}

	s.rooms[r.RoomId] = &r
	s.byCode[r.JoinCode] = r.RoomId

	for _, m := range r.Members {
		if m.JoinOrder >= s.nextOrder {
			s.nextOrder = m.JoinOrder + 1
		}
	}
	return nil
}

// UpdateClientId rebinds a member's clientId, used when a reconnecting
// device sends HELLO after a restore seeded it with a provisional id.
func (s *Store) UpdateClientId(deviceId DeviceId, clientId ClientId) error {
	r, _, err := s.findByMember(deviceId)
	if err != nil {
		return err
	}
	for i := range r.Members {
		if r.Members[i].DeviceId == deviceId {
			r.Members[i].ClientId = clientId
			return nil
		}
	}
	return ErrNotInRoom
}

func (s *Store) findByMember(deviceId DeviceId) (*Room, RoomId, error) {
	for roomId, r := range s.rooms {
		for _, m := range r.Members {
			if m.DeviceId == deviceId {
				return r, roomId, nil
			}
		}
	}
	return nil, "", ErrNotInRoom
}

func (s *Store) allocateJoinCode() (JoinCode, error) {
	for i := 0; i < maxJoinCodeAttempts; i++ {
		code, err := generateJoinCode()
		if err != nil {
			return "", err
		}
		if _, taken := s.byCode[code]; !taken {
			return code, nil
		}
	}
	return "", ErrInvalidJoinCode // exhausted attempts; astronomically unlikely at 36^6 codes
}

func removeMember(members []Member, deviceId DeviceId) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m.DeviceId != deviceId {
			out = append(out, m)
		}
	}
	return out
}
