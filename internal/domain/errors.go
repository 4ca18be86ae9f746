package domain

import "errors"

// Room lifecycle errors. All are non-fatal and local to the requesting
// client; none ever propagates to other rooms or the process.
var (
	// ErrCapacityExceeded means the store holds the configured maximum
	// number of live rooms.
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	// ErrNotFound means no live room has the referenced code.
	ErrNotFound = errors.New("room not found")
	// ErrRoomFull means the guest slot is occupied by a different identity.
	ErrRoomFull = errors.New("room full")
	// ErrStale means the room a rejoin referenced no longer exists.
	ErrStale = errors.New("room no longer exists")
)
