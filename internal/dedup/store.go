// Package dedup implements a time-windowed duplicate detector keyed by
// fingerprint.
//
// A Store is not safe for concurrent use. The collector loop is its only
// caller.
package dedup

import "container/list"

// Policy configures one store.
type Policy struct {
	// Window is how long, in seconds, a key stays live after it was last
	// recorded.
	Window int64
	// Refresh moves last-seen to now on every duplicate hit (sliding
	// window). When false the window runs from the last accepted sighting.
	Refresh bool
}

type entry struct {
	key      string
	lastSeen int64
}

// Store maps fingerprint keys to their last-seen time. Entries are kept in
// a list ordered by lastSeen so expired ones are always at the front.
type Store struct {
	policy Policy
	items  map[string]*list.Element
	order  *list.List
}

func New(p Policy) *Store {
	return &Store{
		policy: p,
		items:  make(map[string]*list.Element),
		order:  list.New(),
	}
}

// Window returns the configured window in seconds.
func (s *Store) Window() int64 { return s.policy.Window }

// Len returns the number of entries currently held, live or not yet evicted.
func (s *Store) Len() int { return len(s.items) }

// CheckAndRecord reports whether key was seen within the window ending at
// now. A miss records key at now. A hit refreshes it only under a sliding
// policy.
func (s *Store) CheckAndRecord(key string, now int64) bool {
	return s.CheckAndRecordAt(key, now, now)
}

// CheckAndRecordAt checks key against the window ending at now but stamps
// the entry with ts, the sighting's own time. Stamps never move backwards,
// so a record written at ts is indistinguishable from a later Seed(key, ts).
func (s *Store) CheckAndRecordAt(key string, now, ts int64) bool {
	s.EvictExpired(now)

	if el, ok := s.items[key]; ok && s.live(el.Value.(*entry), now) {
		if s.policy.Refresh {
			s.Seed(key, ts)
		}
		return true
	}
	s.Seed(key, ts)
	return false
}

// Contains reports whether key is live at now without recording it.
func (s *Store) Contains(key string, now int64) bool {
	s.EvictExpired(now)
	el, ok := s.items[key]
	return ok && s.live(el.Value.(*entry), now)
}

// Record sets key's last-seen to now unconditionally.
func (s *Store) Record(key string, now int64) {
	s.EvictExpired(now)
	s.set(key, now)
}

// Seed registers a historical sighting, keeping the most recent timestamp
// seen for key. No eviction happens here; stale seeds go on the next check.
func (s *Store) Seed(key string, ts int64) {
	if el, ok := s.items[key]; ok && el.Value.(*entry).lastSeen >= ts {
		return
	}
	s.set(key, ts)
}

// LastSeen returns the stored timestamp for key, if any.
func (s *Store) LastSeen(key string) (int64, bool) {
	el, ok := s.items[key]
	if !ok {
		return 0, false
	}
	return el.Value.(*entry).lastSeen, true
}

// EvictExpired removes every entry whose lastSeen is older than
// now - window and returns how many were removed.
func (s *Store) EvictExpired(now int64) int {
	cutoff := now - s.policy.Window
	n := 0
	for el := s.order.Front(); el != nil; el = s.order.Front() {
		e := el.Value.(*entry)
		if e.lastSeen >= cutoff {
			break
		}
		s.order.Remove(el)
		delete(s.items, e.key)
		n++
	}
	return n
}

func (s *Store) live(e *entry, now int64) bool {
	return now-e.lastSeen <= s.policy.Window
}

// set stores key at ts and keeps the list sorted. Callers almost always pass
// the newest time, so the backward scan stops immediately.
func (s *Store) set(key string, ts int64) {
	if el, ok := s.items[key]; ok {
		s.order.Remove(el)
	}
	e := &entry{key: key, lastSeen: ts}

	mark := s.order.Back()
	for mark != nil && mark.Value.(*entry).lastSeen > ts {
		mark = mark.Prev()
	}
	if mark == nil {
		s.items[key] = s.order.PushFront(e)
	} else {
		s.items[key] = s.order.InsertAfter(e, mark)
	}
}
