package app

import (
	"math/rand/v2"

	"github.com/pairwave/pairwave/internal/domain"
)

// Matchmaker locates rooms with an open guest slot. The two call sites
// use deliberately different selection policies: join-random takes the
// first open room in store iteration order, while switch-to-next picks
// uniformly at random among all open rooms not hosted by the requester.
type Matchmaker struct {
	store *RoomStore
}

func NewMatchmaker(store *RoomStore) *Matchmaker {
	return &Matchmaker{store: store}
}

// FirstOpen returns the first room whose guest slot is vacant, in store
// iteration order. O(n), no fairness guarantee.
func (m *Matchmaker) FirstOpen() (domain.Room, bool) {
	var found domain.Room
	ok := false
	m.store.Range(func(r domain.Room) bool {
		if r.Guest == "" {
			found = r
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// RandomOpen collects every room with a vacant guest slot whose host is
// not the excluded client and picks one uniformly at random.
func (m *Matchmaker) RandomOpen(exclude domain.ClientID) (domain.Room, bool) {
	var open []domain.Room
	m.store.Range(func(r domain.Room) bool {
		if r.Guest == "" && r.Host != exclude {
			open = append(open, r)
		}
		return true
	})
	if len(open) == 0 {
		return domain.Room{}, false
	}
	return open[rand.IntN(len(open))], true
}
