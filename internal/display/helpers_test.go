package display

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"signage-sync/internal/cache"
	"signage-sync/internal/platform/logger"
)

// fakeClock is a manually advanced Clock. Due callbacks run synchronously
// inside Advance, without the clock lock held.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	due   time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, due: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves the clock forward by d, firing due timers in due order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.due
		next.done = true
		c.mu.Unlock()

		next.f()
	}
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

func (c *fakeClock) nextDueLocked(target time.Time) *fakeTimer {
	live := make([]*fakeTimer, 0, len(c.timers))
	for _, t := range c.timers {
		if !t.done && !t.due.After(target) {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].due.Before(live[j].due) })
	return live[0]
}

// flakyStore wraps an InMemoryStore and fails reads while err is set.
type flakyStore struct {
	*InMemoryStore
	mu  sync.Mutex
	err error
}

var errStorageDown = errors.New("storage down")

func (s *flakyStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *flakyStore) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *flakyStore) ListApprovedMedia(ctx context.Context) ([]MediaEntry, error) {
	if err := s.failure(); err != nil {
		return nil, err
	}
	return s.InMemoryStore.ListApprovedMedia(ctx)
}

func (s *flakyStore) CountApproved(ctx context.Context) (int, error) {
	if err := s.failure(); err != nil {
		return 0, err
	}
	return s.InMemoryStore.CountApproved(ctx)
}

func (s *flakyStore) SetMediaDuration(ctx context.Context, id MediaID, seconds float64) error {
	if err := s.failure(); err != nil {
		return err
	}
	return s.InMemoryStore.SetMediaDuration(ctx, id, seconds)
}

type fixture struct {
	clock   *fakeClock
	store   *InMemoryStore
	cache   *cache.Memory[[]MediaEntry]
	catalog *Catalog
	sched   *Scheduler
}

func newFixture(t *testing.T, items ...MediaEntry) *fixture {
	t.Helper()
	return newFixtureWithStore(t, NewInMemoryStore(), items...)
}

func newFixtureWithStore(t *testing.T, store *InMemoryStore, items ...MediaEntry) *fixture {
	t.Helper()
	clk := newFakeClock()
	store.now = clk.Now
	for _, it := range items {
		store.Add(it, StatusApproved)
	}
	c := cache.NewMemory[[]MediaEntry](cache.WithClock(clk.Now))
	log := logger.Discard()
	catalog := NewCatalog(store, c, DefaultCatalogTTLMinutes, log, nil)
	sched := NewScheduler(store, catalog, clk, log, nil)
	t.Cleanup(sched.Stop)
	return &fixture{clock: clk, store: store, cache: c, catalog: catalog, sched: sched}
}

// image returns an ordered image entry; seconds <= 0 leaves the duration unset.
func image(order int, seconds float64) MediaEntry {
	return entry(FileTypeImage, order, seconds)
}

func video(order int, seconds float64) MediaEntry {
	return entry(FileTypeVideo, order, seconds)
}

func entry(ft FileType, order int, seconds float64) MediaEntry {
	o := order
	e := MediaEntry{FileType: ft, DisplayOrder: &o, Title: string(ft)}
	if seconds > 0 {
		d := seconds
		e.DurationSeconds = &d
	}
	return e
}

func currentID(t *testing.T, s TimelineState) MediaID {
	t.Helper()
	if s.CurrentMediaID == nil {
		t.Fatal("expected a current media id, got nil")
	}
	return *s.CurrentMediaID
}
