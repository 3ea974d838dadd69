package gateway

import "sync"

// keyedLocks serializes handling of events for the same order id within
// one session, so a slow write cannot interleave with a later write to
// the same snapshot. Different ids proceed independently.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[uint64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (l *keyedLocks) lock(id uint64) (unlock func()) {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[uint64]*lockEntry)
	}
	entry := l.entries[id]
	if entry == nil {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}
