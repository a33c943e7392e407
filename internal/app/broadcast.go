package app

import (
	"sync"

	"quiniela-service/internal/domain"
)

// leaderboardHub fans leaderboard snapshots out to per-brand subscribers.
type leaderboardHub struct {
	mu     sync.Mutex
	brands map[string]map[chan domain.Leaderboard]struct{}
}

func newLeaderboardHub() *leaderboardHub {
	return &leaderboardHub{brands: make(map[string]map[chan domain.Leaderboard]struct{})}
}

func (h *leaderboardHub) subscribe(slug string) (chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	h.mu.Lock()
	subs := h.brands[slug]
	if subs == nil {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.brands[slug] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.brands[slug]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.brands, slug)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *leaderboardHub) broadcast(slug string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.brands[slug] {
		select {
		case ch <- lb:
		default:
			// Drop the stale snapshot so a slow client never blocks the
			// batch; it only ever needs the latest standings.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
