package leave

import (
	"context"
	"sync"
)

// =============================================================================
// FEED - In-process fan-out of whole-collection snapshots
// =============================================================================

// Feed delivers Updates to subscribers of a collection. Every Update is a
// full replacement, so a slow subscriber only ever needs the newest one: a
// subscriber holds at most one undelivered Update and older ones are
// dropped. Publish never blocks.
type Feed struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	collection Collection
	ch         chan Update
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*subscription]struct{})}
}

// Subscribe registers a subscriber for c and queues initial as its first
// Update. The channel is closed when ctx is done or the feed is closed.
//
// To avoid missing a change between reading initial and registering,
// callers hold the same lock around both that they hold around Publish.
func (f *Feed) Subscribe(ctx context.Context, c Collection, initial Update) <-chan Update {
	s := &subscription{collection: c, ch: make(chan Update, 1)}
	s.ch <- initial

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[s]; ok {
			delete(f.subs, s)
			close(s.ch)
		}
	}()
	return s.ch
}

// Publish hands u to every subscriber of u.Collection.
func (f *Feed) Publish(u Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		if s.collection != u.Collection {
			continue
		}
		select {
		case s.ch <- u:
		default:
			// Replace the stale undelivered snapshot. Only Publish sends,
			// and it holds f.mu, so the second send cannot block.
			select {
			case <-s.ch:
			default:
			}
			s.ch <- u
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		delete(f.subs, s)
		close(s.ch)
	}
}
