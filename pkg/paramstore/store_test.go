package paramstore

import (
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s := New(opts)
	t.Cleanup(s.Close)
	return s
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestSetGetDelete(t *testing.T) {
	s := newTestStore(t, Options{})

	if !s.Set("a", []byte("one"), 0) {
		t.Fatalf("Set rejected without a cap")
	}
	got, ok := s.Get("a")
	if !ok || string(got) != "one" {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	// Returned slice is a copy.
	got[0] = 'X'
	again, _ := s.Get("a")
	if string(again) != "one" {
		t.Fatalf("stored value aliased by caller mutation: %q", again)
	}

	if !s.Delete("a") {
		t.Fatalf("Delete of existing param returned false")
	}
	if s.Delete("a") {
		t.Fatalf("Delete of missing param returned true")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("Get found a deleted param")
	}
}

func TestNamesPrefixSorted(t *testing.T) {
	s := newTestStore(t, Options{})
	for _, name := range []string{"nav.rate", "thruster.limit", "nav.mode"} {
		s.Set(name, []byte{1}, 0)
	}
	names := s.Names("nav.")
	if len(names) != 2 || names[0] != "nav.mode" || names[1] != "nav.rate" {
		t.Fatalf("Names = %v", names)
	}
	if all := s.Names(""); len(all) != 3 {
		t.Fatalf("Names(\"\") = %v", all)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Set("short", []byte{1}, 15*time.Millisecond)
	s.Set("keep", []byte{1}, 0)

	if _, ok := s.Get("short"); !ok {
		t.Fatalf("param expired immediately")
	}
	if ttl, ok := s.TTL("short"); !ok || ttl <= 0 {
		t.Fatalf("TTL = %v, %v", ttl, ok)
	}

	expired := waitFor(t, time.Second, func() bool {
		_, ok := s.Get("short")
		return !ok
	})
	if !expired {
		t.Fatalf("param never expired")
	}
	if _, ok := s.Get("keep"); !ok {
		t.Fatalf("no-TTL param went away")
	}
	if s.Metrics().Expired == 0 {
		t.Fatalf("expiry not counted")
	}
}

func TestSetRefreshesDeadline(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Set("p", []byte{1}, 10*time.Millisecond)
	s.Set("p", []byte{2}, time.Minute)

	time.Sleep(30 * time.Millisecond)
	got, ok := s.Get("p")
	if !ok || got[0] != 2 {
		t.Fatalf("rewritten param lost: %v, %v", got, ok)
	}
}

func TestDefaultTTL(t *testing.T) {
	s := newTestStore(t, Options{DefaultTTL: 15 * time.Millisecond})
	s.Set("p", []byte{1}, 0)
	expired := waitFor(t, time.Second, func() bool {
		_, ok := s.Get("p")
		return !ok
	})
	if !expired {
		t.Fatalf("default TTL not applied")
	}
}

func TestMaxBytesCap(t *testing.T) {
	s := newTestStore(t, Options{MaxBytes: 10})

	if !s.Set("a", make([]byte, 6), 0) {
		t.Fatalf("first write under cap rejected")
	}
	if s.Set("b", make([]byte, 6), 0) {
		t.Fatalf("write over cap accepted")
	}
	// Shrinking an existing value frees budget.
	if !s.Set("a", make([]byte, 2), 0) {
		t.Fatalf("shrinking rewrite rejected")
	}
	if !s.Set("b", make([]byte, 6), 0) {
		t.Fatalf("write within freed budget rejected")
	}
	if got := s.Metrics().Bytes; got != 8 {
		t.Fatalf("tracked bytes = %d, want 8", got)
	}
}

func TestWatch(t *testing.T) {
	s := newTestStore(t, Options{})

	var mu sync.Mutex
	var events []Event
	s.Watch(func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	s.Set("p", []byte("v"), 0)
	s.Delete("p")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Deleted || events[0].Name != "p" || string(events[0].Value) != "v" {
		t.Fatalf("set event = %+v", events[0])
	}
	if !events[1].Deleted || events[1].Name != "p" {
		t.Fatalf("delete event = %+v", events[1])
	}
}

func TestMetricsCounters(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Set("a", []byte{1}, 0)
	s.Get("a")
	s.Get("missing")
	s.Delete("a")

	m := s.Metrics()
	if m.Sets != 1 || m.Gets != 2 || m.Hits != 1 || m.Misses != 1 || m.Dels != 1 {
		t.Fatalf("stats = %+v", m)
	}
	if m.Params != 0 || m.Bytes != 0 {
		t.Fatalf("store not empty after delete: %+v", m)
	}
}
