// Package paramstore is the in-memory backing store for the parameter
// handler: named values with optional TTL, change watchers and operation
// stats. Values are opaque byte slices (the handler stores encoded CBOR).
package paramstore

import (
	"container/heap"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Options tunes the store.
type Options struct {
	// DefaultTTL applies when Set is called with ttl == 0 and a default is
	// wanted; zero keeps parameters until deleted.
	DefaultTTL time.Duration
	// MaxBytes caps the total size of stored values; 0 means unlimited.
	MaxBytes uint64
}

// Event describes one parameter change delivered to watchers.
type Event struct {
	Name    string
	Value   []byte // nil when Deleted
	Deleted bool
}

// WatchFunc receives parameter change events. Callbacks run outside the
// store lock and must not block for long.
type WatchFunc func(Event)

type entry struct {
	val      []byte
	expireAt int64 // unix nano; 0 = no expiry
}

// Store is safe for concurrent use.
type Store struct {
	opts Options

	mu       sync.RWMutex
	params   map[string]*entry
	expq     expHeap
	watchers []WatchFunc

	wake    chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	nowFn func() time.Time

	mBytes   atomic.Uint64
	mSets    atomic.Uint64
	mGets    atomic.Uint64
	mHits    atomic.Uint64
	mMisses  atomic.Uint64
	mDels    atomic.Uint64
	mExpired atomic.Uint64
}

// New creates a store and starts its expiry goroutine.
func New(opts Options) *Store {
	s := &Store{
		opts:    opts,
		params:  make(map[string]*entry),
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		nowFn:   time.Now,
	}
	heap.Init(&s.expq)
	s.wg.Add(1)
	go s.expirer()
	return s
}

// Close stops the expiry goroutine.
func (s *Store) Close() {
	close(s.closeCh)
	s.wg.Wait()
}

// Watch registers a callback for subsequent changes.
func (s *Store) Watch(fn WatchFunc) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}

// Set stores a value, always copying it. ttl == 0 applies the configured
// default. Returns false without writing when the byte cap would be
// exceeded.
func (s *Store) Set(name string, val []byte, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = s.opts.DefaultTTL
	}
	expAt := int64(0)
	if ttl > 0 {
		expAt = s.nowFn().Add(ttl).UnixNano()
	}
	v := append([]byte(nil), val...)

	s.mu.Lock()
	oldLen := 0
	if prev, ok := s.params[name]; ok {
		oldLen = len(prev.val)
	}
	if delta := len(v) - oldLen; delta > 0 {
		if !s.tryAddBytes(uint64(delta)) {
			s.mu.Unlock()
			return false
		}
	} else if delta < 0 {
		s.subBytes(uint64(-delta))
	}
	s.params[name] = &entry{val: v, expireAt: expAt}
	if expAt != 0 {
		heap.Push(&s.expq, &expItem{name: name, when: expAt})
	}
	s.mu.Unlock()
	s.mSets.Add(1)

	if expAt != 0 {
		s.signalWake()
	}
	s.notify(Event{Name: name, Value: v})
	return true
}

// Get returns a copy of the value.
func (s *Store) Get(name string) ([]byte, bool) {
	s.mGets.Add(1)
	s.mu.RLock()
	e, ok := s.params[name]
	if !ok {
		s.mu.RUnlock()
		s.mMisses.Add(1)
		return nil, false
	}
	exp, val := e.expireAt, e.val
	s.mu.RUnlock()

	if exp != 0 && exp <= s.nowFn().UnixNano() {
		s.evict(name)
		s.mMisses.Add(1)
		return nil, false
	}
	s.mHits.Add(1)
	return append([]byte(nil), val...), true
}

// Delete removes a parameter. Returns whether it existed.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	e, ok := s.params[name]
	if ok {
		delete(s.params, name)
		s.subBytes(uint64(len(e.val)))
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.mDels.Add(1)
	s.notify(Event{Name: name, Deleted: true})
	return true
}

// Names lists parameters with the given prefix, sorted. Expired entries are
// excluded but only evicted lazily by Get or the expirer.
func (s *Store) Names(prefix string) []string {
	now := s.nowFn().UnixNano()
	s.mu.RLock()
	out := make([]string, 0, len(s.params))
	for name, e := range s.params {
		if e.expireAt != 0 && e.expireAt <= now {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// TTL returns remaining lifetime and presence. A parameter without expiry
// reports (0, true).
func (s *Store) TTL(name string) (time.Duration, bool) {
	s.mu.RLock()
	e, ok := s.params[name]
	if !ok {
		s.mu.RUnlock()
		return 0, false
	}
	exp := e.expireAt
	s.mu.RUnlock()

	if exp == 0 {
		return 0, true
	}
	now := s.nowFn().UnixNano()
	if exp <= now {
		s.evict(name)
		return 0, false
	}
	return time.Duration(exp - now), true
}

// Stats is a point-in-time snapshot of operation counters.
type Stats struct {
	Params  int
	Bytes   uint64
	Sets    uint64
	Gets    uint64
	Hits    uint64
	Misses  uint64
	Dels    uint64
	Expired uint64
}

// Metrics returns a snapshot without blocking store operations for long.
func (s *Store) Metrics() Stats {
	s.mu.RLock()
	n := len(s.params)
	s.mu.RUnlock()
	return Stats{
		Params:  n,
		Bytes:   s.mBytes.Load(),
		Sets:    s.mSets.Load(),
		Gets:    s.mGets.Load(),
		Hits:    s.mHits.Load(),
		Misses:  s.mMisses.Load(),
		Dels:    s.mDels.Load(),
		Expired: s.mExpired.Load(),
	}
}

// tryAddBytes reserves delta bytes against the cap.
func (s *Store) tryAddBytes(delta uint64) bool {
	if s.opts.MaxBytes == 0 {
		s.mBytes.Add(delta)
		return true
	}
	for {
		cur := s.mBytes.Load()
		next := cur + delta
		if next > s.opts.MaxBytes {
			return false
		}
		if s.mBytes.CompareAndSwap(cur, next) {
			return true
		}
	}
}

func (s *Store) subBytes(delta uint64) {
	for {
		cur := s.mBytes.Load()
		next := uint64(0)
		if delta < cur {
			next = cur - delta
		}
		if s.mBytes.CompareAndSwap(cur, next) {
			return
		}
	}
}

// evict removes a parameter whose TTL has passed, re-checking under the
// write lock against a racing Set.
func (s *Store) evict(name string) {
	now := s.nowFn().UnixNano()
	s.mu.Lock()
	e, ok := s.params[name]
	if !ok || e.expireAt == 0 || e.expireAt > now {
		s.mu.Unlock()
		return
	}
	delete(s.params, name)
	s.subBytes(uint64(len(e.val)))
	s.mu.Unlock()
	s.mExpired.Add(1)
	s.notify(Event{Name: name, Deleted: true})
}

func (s *Store) notify(ev Event) {
	s.mu.RLock()
	ws := make([]WatchFunc, len(s.watchers))
	copy(ws, s.watchers)
	s.mu.RUnlock()
	for _, fn := range ws {
		fn(ev)
	}
}

func (s *Store) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ===== expiry queue =====

type expItem struct {
	when int64
	name string
}

type expHeap []*expItem

func (q expHeap) Len() int           { return len(q) }
func (q expHeap) Less(i, j int) bool { return q[i].when < q[j].when }
func (q expHeap) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *expHeap) Push(x any)        { *q = append(*q, x.(*expItem)) }
func (q *expHeap) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// expirer evicts parameters as their deadlines pass. It sleeps until the
// nearest deadline and is woken early when Set schedules a sooner one.
func (s *Store) expirer() {
	defer s.wg.Done()
	for {
		var wait time.Duration
		var due []string

		s.mu.Lock()
		now := s.nowFn().UnixNano()
		for s.expq.Len() > 0 {
			it := s.expq[0]
			if it.when > now {
				wait = time.Duration(it.when - now)
				break
			}
			heap.Pop(&s.expq)
			// The entry may have been rewritten with a later deadline;
			// evict re-checks before deleting.
			due = append(due, it.name)
		}
		s.mu.Unlock()

		for _, name := range due {
			s.evict(name)
		}

		if wait == 0 {
			select {
			case <-s.closeCh:
				return
			case <-s.wake:
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-s.closeCh:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}
