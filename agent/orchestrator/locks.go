package orchestrator

import "sync"

// convLocks serializes turns per conversation id. A per-id mutex (not one
// global lock) keeps unrelated conversations fully parallel. Entries are
// refcounted and removed once the last holder releases, so the table tracks
// only conversations with a turn in flight rather than every id ever seen.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*convLock)}
}

func (l *convLocks) acquire(conversationID string) (unlock func()) {
	l.mu.Lock()
	lock, ok := l.locks[conversationID]
	if !ok {
		lock = &convLock{}
		l.locks[conversationID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, conversationID)
		}
		l.mu.Unlock()
	}
}
