// Package domain contains entity without logic, just meta-data
package domain

import "time"

type (
	// RoomCode is the short human-shareable identifier of a room.
	RoomCode string
	// ClientID is the opaque identity assigned to a connection.
	ClientID string
)

// Role of a connection inside its room.
type Role int

const (
	RoleUnassigned Role = iota
	RoleHost
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	default:
		return "unassigned"
	}
}

// Room pairs at most one host with at most one guest.
// An empty ClientID means the slot is vacant.
type Room struct {
	Code      RoomCode
	Host      ClientID
	Guest     ClientID
	CreatedAt time.Time
}

// Empty reports whether both slots are vacant. An empty room is garbage
// and must not outlive the event that emptied it.
func (r Room) Empty() bool {
	return r.Host == "" && r.Guest == ""
}

// PeerOf returns the other occupant, or "" if the room holds no peer
// for the given identity.
func (r Room) PeerOf(id ClientID) ClientID {
	switch id {
	case r.Host:
		return r.Guest
	case r.Guest:
		return r.Host
	}
	return ""
}
