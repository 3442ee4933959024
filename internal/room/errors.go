package room

import "errors"

// Sentinel errors returned by Store operations. Coordinator dispatch maps
// these to stable wire error codes; nothing downstream matches on string
// text.
var (
	ErrInvalidJoinCode = errors.New("invalid join code")
	ErrNameConflict    = errors.New("name already in use in this room")
	ErrNotHost         = errors.New("caller is not the current host")
	ErrNotInRoom       = errors.New("device is not a member of this room")
	ErrRoomFull        = errors.New("room has reached its player limit")
	ErrUnknownRoom     = errors.New("no such room")
)
