package app

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/domain"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 7
)

// RoomStore holds every live room keyed by code and enforces the global
// capacity bound. It is safe for concurrent readers; all mutations go
// through the Lifecycle manager, which serialises them.
type RoomStore struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomCode]*domain.Room
	capacity int
	now      func() time.Time
}

func NewRoomStore(capacity int) *RoomStore {
	return &RoomStore{
		rooms:    make(map[domain.RoomCode]*domain.Room),
		capacity: capacity,
		now:      time.Now,
	}
}

// Create allocates a room with the given host. It fails fast with
// ErrCapacityExceeded at the configured bound and retries code generation
// until the code is unique among live rooms.
func (s *RoomStore) Create(host domain.ClientID) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rooms) >= s.capacity {
		return domain.Room{}, domain.ErrCapacityExceeded
	}

	code := generateCode()
	for {
		if _, exists := s.rooms[code]; !exists {
			break
		}
		code = generateCode()
	}

	room := &domain.Room{Code: code, Host: host, CreatedAt: s.now()}
	s.rooms[code] = room
	log.Info().Str("module", "app.store").Str("room", string(code)).
		Int("total", len(s.rooms)).Msg("room created")
	return *room, nil
}

// Get returns a snapshot of the room, if it exists.
func (s *RoomStore) Get(code domain.RoomCode) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[code]; ok {
		return *r, true
	}
	return domain.Room{}, false
}

// Update overwrites the slots of an existing room. Missing rooms are
// ignored; the caller has already validated existence under the
// lifecycle lock.
func (s *RoomStore) Update(code domain.RoomCode, host, guest domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[code]; ok {
		r.Host = host
		r.Guest = guest
	}
}

// Delete removes the room. Deleting an absent code is a no-op.
func (s *RoomStore) Delete(code domain.RoomCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return
	}
	delete(s.rooms, code)
	log.Info().Str("module", "app.store").Str("room", string(code)).
		Int("total", len(s.rooms)).Msg("room deleted")
}

// Range calls fn for each live room until fn returns false. Iteration
// order is the map's order: unspecified, which the first-fit matchmaking
// policy deliberately accepts.
func (s *RoomStore) Range(fn func(domain.Room) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if !fn(*r) {
			return
		}
	}
}

// Count returns the number of live rooms. Read-only accessor for the
// health endpoint.
func (s *RoomStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// Capacity returns the configured upper bound on live rooms.
func (s *RoomStore) Capacity() int { return s.capacity }

func generateCode() domain.RoomCode {
	b := make([]byte, codeLength)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return domain.RoomCode(b)
}
