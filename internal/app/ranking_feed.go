package app

import (
	"context"
	"log"
	"sync"

	"trail-progress-service/internal/domain"
)

// BoardSource produces a fresh accuracy leaderboard snapshot.
type BoardSource func(ctx context.Context) ([]domain.AccuracyRankingEntry, error)

// RankingFeed fans fresh accuracy boards out to live subscribers (websocket
// clients). Refresh is called after each finalize; the board itself stays an
// on-demand computation, the feed only decides when to recompute.
type RankingFeed struct {
	source BoardSource

	mu          sync.Mutex
	latest      []domain.AccuracyRankingEntry
	subscribers map[chan []domain.AccuracyRankingEntry]struct{}
}

func NewRankingFeed(source BoardSource) *RankingFeed {
	return &RankingFeed{
		source:      source,
		subscribers: make(map[chan []domain.AccuracyRankingEntry]struct{}),
	}
}

// Refresh recomputes the board and pushes it to every subscriber. A failing
// recompute is logged and the previous snapshot stands.
func (f *RankingFeed) Refresh(ctx context.Context) {
	board, err := f.source(ctx)
	if err != nil {
		log.Printf("ranking feed refresh skipped: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = board
	for ch := range f.subscribers {
		select {
		case ch <- board:
		default:
			// Drop the stale snapshot so a slow client never blocks the push.
			select {
			case <-ch:
			default:
			}
			ch <- board
		}
	}
}

// Subscribe returns a channel receiving board snapshots, primed with the
// latest one. The caller must invoke the returned cancel function to avoid
// leaks.
func (f *RankingFeed) Subscribe() (<-chan []domain.AccuracyRankingEntry, func()) {
	ch := make(chan []domain.AccuracyRankingEntry, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.latest != nil {
		ch <- f.latest
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}
