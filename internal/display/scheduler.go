package display

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"signage-sync/internal/platform/metrics"
)

const (
	// VideoEndThreshold is how close (seconds) a reported position must be to
	// the reported duration for the video to count as finished.
	VideoEndThreshold = 0.5
	// VideoEndDebounce delays the advance after a client reports a video end.
	VideoEndDebounce = 500 * time.Millisecond

	timerStorageTimeout = 5 * time.Second
)

// Transition causes, used for logs and metrics.
const (
	causeStart    = "start"
	causeWake     = "wake"
	causeTimer    = "timer"
	causeVideoEnd = "video_end"
	causeManual   = "manual"
	causePrevious = "previous"
	causeSkip     = "skip"
	causeOperator = "operator"
	causeDrift    = "drift"
	causeStale    = "stale"
)

// ErrInvalidDuration is returned for durations outside (0, MaxDurationSeconds].
var ErrInvalidDuration = errors.New("duration must be positive and at most one day")

// pendingAdvance describes the single armed timer.
type pendingAdvance struct {
	mediaID MediaID
	delay   time.Duration
	due     time.Time
	cause   string
}

// Scheduler owns the global timeline. Every mutation, whether from a timer,
// an HTTP call or a reconciliation tick, runs under mu, and the timer is
// always canceled before a new one is armed, so at most one advance is ever
// pending.
type Scheduler struct {
	store   Store
	catalog *Catalog
	clock   Clock
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   TimelineState
	started bool
	timer   Timer
	gen     uint64 // bumped on every cancel; a firing timer with a stale gen is ignored
	pending pendingAdvance
}

// NewScheduler returns an Idle scheduler positioned at index 0. Call Start to
// begin playback. A nil clock selects the system clock; metrics may be nil.
func NewScheduler(store Store, catalog *Catalog, clock Clock, log *slog.Logger, m *metrics.Metrics) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	now := clock.Now()
	return &Scheduler{
		store:   store,
		catalog: catalog,
		clock:   clock,
		log:     log,
		metrics: m,
		state: TimelineState{
			Epoch:          uuid.NewString(),
			StartTimestamp: now,
			LastUpdateTime: now,
			ChangedBy:      ChangedBySystem,
			VideoState:     VideoState{IsPlaying: true, LastUpdated: now},
		},
	}
}

// Start arms the timer for the current item. With an empty catalog the
// scheduler stays Idle until a later read finds media.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	items := s.catalog.List(ctx)
	s.moveLocked(items, s.state.CurrentIndex, ChangedBySystem, causeStart)
}

// Stop cancels the pending timer. The state is kept.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	s.cancelLocked()
}

// Serve implements suture.Service: it starts playback and stops it when ctx
// is canceled. A restart by the supervisor resumes from the kept state.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string { return "playback-scheduler" }

// GetState returns a snapshot of the timeline.
func (s *Scheduler) GetState() TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// GetMediaItems returns the approved media in play order.
func (s *Scheduler) GetMediaItems(ctx context.Context) []MediaEntry {
	return s.catalog.List(ctx)
}

// View returns the state, catalog and timing info served to polling clients.
// A current item that moved or vanished since the last mutation is corrected
// first, so the state always agrees with the returned media list.
func (s *Scheduler) View(ctx context.Context) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.catalog.List(ctx)
	s.reconcileLocked(items)

	now := s.clock.Now()
	info := TimeInfo{ServerTime: now}
	if s.state.CurrentMediaID != nil {
		info.ElapsedTime = now.Sub(s.state.StartTimestamp).Seconds()
		info.ItemDuration = PlayDuration(items[s.state.CurrentIndex]).Seconds()
	}
	return View{State: s.state.clone(), Media: items, TimeInfo: info}
}

// Advance moves to the next item, wrapping to the first after the last.
// With an empty catalog it is a no-op.
func (s *Scheduler) Advance(ctx context.Context, actor string) TimelineState {
	return s.step(ctx, actor, 1, causeManual)
}

// Previous moves to the preceding item, wrapping to the last before the first.
func (s *Scheduler) Previous(ctx context.Context, actor string) TimelineState {
	return s.step(ctx, actor, -1, causePrevious)
}

func (s *Scheduler) step(ctx context.Context, actor string, delta int, cause string) TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.catalog.List(ctx)
	n := len(items)
	if n == 0 {
		s.idleLocked()
		return s.state.clone()
	}
	next := ((s.baseIndexLocked(items)+delta)%n + n) % n
	s.moveLocked(items, next, actor, cause)
	return s.state.clone()
}

// ResetTimeline returns to the first item with a fresh start time.
func (s *Scheduler) ResetTimeline(ctx context.Context, actor string) TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.catalog.List(ctx)
	s.moveLocked(items, 0, actor, causeOperator)
	return s.state.clone()
}

// SkipToMedia jumps to index, clamped into the catalog bounds.
func (s *Scheduler) SkipToMedia(ctx context.Context, index int, actor string) TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.catalog.List(ctx)
	if len(items) > 0 && (index < 0 || index >= len(items)) {
		s.log.Debug("skip index clamped",
			slog.Int("requested", index),
			slog.Int("catalog_size", len(items)))
	}
	s.moveLocked(items, clampIndex(index, len(items)), actor, causeSkip)
	return s.state.clone()
}

// UpdateMediaDuration persists a new duration and patches the cached
// snapshot in place. The armed timer keeps its delay; the new duration
// applies the next time the item goes live.
func (s *Scheduler) UpdateMediaDuration(ctx context.Context, id MediaID, seconds float64, actor string) (TimelineState, error) {
	if seconds <= 0 || seconds > MaxDurationSeconds {
		return s.GetState(), ErrInvalidDuration
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetMediaDuration(ctx, id, seconds); err != nil {
		s.log.Error("set media duration failed",
			slog.String("op", "scheduler.update_duration"),
			slog.Int64("media_id", int64(id)),
			slog.String("error", err.Error()))
		return s.state.clone(), err
	}
	patched := s.catalog.PatchDuration(id, seconds)
	s.log.Info("media duration updated",
		slog.Int64("media_id", int64(id)),
		slog.Float64("seconds", seconds),
		slog.Bool("cache_patched", patched),
		slog.String("changed_by", actor))
	return s.state.clone(), nil
}

// ReportVideoState records a client's playback position for the current
// video. A playing video within VideoEndThreshold of its end schedules an
// advance after VideoEndDebounce, replacing the duration timer if that one
// would fire later. A report whose position runs ahead of the time the
// current item has actually been live describes an earlier item and does
// not advance.
func (s *Scheduler) ReportVideoState(ctx context.Context, isPlaying bool, currentTime, duration float64, actor string) TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.state.VideoState = VideoState{
		IsPlaying:   isPlaying,
		CurrentTime: currentTime,
		Duration:    duration,
		LastUpdated: now,
	}
	s.state.LastUpdateTime = now
	s.state.ChangedBy = actor

	if !s.started || !isPlaying || duration <= 0 || duration-currentTime > VideoEndThreshold {
		return s.state.clone()
	}
	if s.pending.cause == causeVideoEnd {
		return s.state.clone()
	}

	items := s.catalog.List(ctx)
	cur, ok := s.currentItemLocked(items)
	if !ok || cur.FileType != FileTypeVideo {
		return s.state.clone()
	}
	if elapsed := now.Sub(s.state.StartTimestamp).Seconds(); currentTime > elapsed+VideoEndThreshold {
		s.log.Debug("video end report ahead of timeline ignored",
			slog.Int64("media_id", int64(cur.ID)),
			slog.Float64("current_time", currentTime),
			slog.Float64("elapsed", elapsed),
			slog.String("changed_by", actor))
		return s.state.clone()
	}
	due := now.Add(VideoEndDebounce)
	if s.timer != nil && !due.Before(s.pending.due) {
		return s.state.clone()
	}

	s.log.Info("video end reported",
		slog.Int64("media_id", int64(cur.ID)),
		slog.Float64("current_time", currentTime),
		slog.Float64("duration", duration),
		slog.String("changed_by", actor))
	s.armLocked(cur.ID, VideoEndDebounce, causeVideoEnd)
	return s.state.clone()
}

// ClearMediaCache invalidates the catalog snapshot. Every mutation of the
// approved set or its order must call it.
func (s *Scheduler) ClearMediaCache() {
	s.catalog.Invalidate()
	s.log.Debug("media cache cleared")
}

// OnCatalogDrift reacts to a detected change in the approved set. With a
// timer armed the timeline resets to the first item and true is returned;
// an Idle scheduler instead starts playing if media appeared.
func (s *Scheduler) OnCatalogDrift(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.catalog.List(ctx)
	if s.timer != nil {
		s.moveLocked(items, 0, ChangedBySystem, causeDrift)
		return true
	}
	s.reconcileLocked(items)
	return false
}

// Armed reports whether an advance is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Pending returns the delay and cause of the armed timer.
func (s *Scheduler) Pending() (delay time.Duration, cause string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return 0, "", false
	}
	return s.pending.delay, s.pending.cause, true
}

// fire runs when a timer elapses. A timer canceled after it started firing
// carries a stale generation and does nothing.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || gen != s.gen {
		return
	}
	cause := s.pending.cause
	s.timer = nil
	s.pending = pendingAdvance{}

	ctx, cancel := context.WithTimeout(context.Background(), timerStorageTimeout)
	defer cancel()

	items := s.catalog.List(ctx)
	if len(items) == 0 {
		s.idleLocked()
		return
	}
	next := (s.baseIndexLocked(items) + 1) % len(items)
	s.moveLocked(items, next, ChangedByAuto, cause)
}

// moveLocked makes items[index] live and arms its timer. Caller must hold s.mu.
func (s *Scheduler) moveLocked(items []MediaEntry, index int, actor, cause string) {
	if len(items) == 0 {
		s.idleLocked()
		return
	}
	index = clampIndex(index, len(items))
	item := items[index]
	now := s.clock.Now()
	from := s.state.CurrentIndex

	id := item.ID
	s.state.CurrentIndex = index
	s.state.CurrentMediaID = &id
	s.state.StartTimestamp = now
	s.state.LastUpdateTime = now
	s.state.ChangedBy = actor
	s.state.VideoState = VideoState{IsPlaying: true, LastUpdated: now}

	d := PlayDuration(item)
	if s.started {
		s.armLocked(id, d, causeTimer)
	} else {
		s.cancelLocked()
	}
	s.record(cause)

	s.log.Info("timeline moved",
		slog.String("cause", cause),
		slog.Int("from", from),
		slog.Int("index", index),
		slog.Int64("media_id", int64(id)),
		slog.Duration("play_for", d),
		slog.String("changed_by", actor))
}

// idleLocked clears the current item and cancels the timer. Caller must hold s.mu.
func (s *Scheduler) idleLocked() {
	s.cancelLocked()
	if s.state.CurrentMediaID == nil && s.state.CurrentIndex == 0 {
		return
	}
	s.state.CurrentIndex = 0
	s.state.CurrentMediaID = nil
	s.state.LastUpdateTime = s.clock.Now()
	s.state.ChangedBy = ChangedBySystem
	s.log.Info("timeline idle, no approved media")
}

// reconcileLocked makes the state agree with items. Caller must hold s.mu.
func (s *Scheduler) reconcileLocked(items []MediaEntry) {
	n := len(items)
	if n == 0 {
		if s.state.CurrentMediaID != nil || s.timer != nil {
			s.idleLocked()
		}
		return
	}

	if s.state.CurrentMediaID == nil {
		if s.started {
			s.moveLocked(items, s.state.CurrentIndex, ChangedBySystem, causeWake)
		}
		return
	}

	id := *s.state.CurrentMediaID
	idx := s.state.CurrentIndex
	if idx < n && items[idx].ID == id {
		if s.started && s.timer == nil {
			s.moveLocked(items, idx, ChangedBySystem, causeWake)
		}
		return
	}

	if j := indexOf(items, id); j >= 0 {
		s.state.CurrentIndex = j
		s.state.LastUpdateTime = s.clock.Now()
		s.log.Info("timeline index corrected",
			slog.Int64("media_id", int64(id)),
			slog.Int("from", idx),
			slog.Int("index", j))
		return
	}

	s.log.Warn("current media left the catalog, restarting from first item",
		slog.Int64("media_id", int64(id)),
		slog.Int("index", idx))
	s.moveLocked(items, 0, ChangedBySystem, causeStale)
}

// baseIndexLocked is the position of the current item in items, falling back
// to the clamped stored index. Caller must hold s.mu.
func (s *Scheduler) baseIndexLocked(items []MediaEntry) int {
	if s.state.CurrentMediaID != nil {
		if j := indexOf(items, *s.state.CurrentMediaID); j >= 0 {
			return j
		}
	}
	return clampIndex(s.state.CurrentIndex, len(items))
}

func (s *Scheduler) currentItemLocked(items []MediaEntry) (MediaEntry, bool) {
	if s.state.CurrentMediaID == nil {
		return MediaEntry{}, false
	}
	j := indexOf(items, *s.state.CurrentMediaID)
	if j < 0 {
		return MediaEntry{}, false
	}
	return items[j], true
}

// armLocked cancels any pending timer and arms a new one. Caller must hold s.mu.
func (s *Scheduler) armLocked(id MediaID, delay time.Duration, cause string) {
	s.cancelLocked()
	gen := s.gen
	s.pending = pendingAdvance{
		mediaID: id,
		delay:   delay,
		due:     s.clock.Now().Add(delay),
		cause:   cause,
	}
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
}

// cancelLocked stops the pending timer, if any. Caller must hold s.mu.
func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = pendingAdvance{}
	s.gen++
}

func (s *Scheduler) record(cause string) {
	if s.metrics == nil {
		return
	}
	switch cause {
	case causeStart, causeWake:
	case causeOperator, causeDrift, causeStale:
		s.metrics.IncReset(cause)
	default:
		s.metrics.IncAdvance(cause)
	}
}
