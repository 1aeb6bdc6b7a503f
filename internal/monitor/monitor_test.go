// Jukewire - Crowd-Curated Queue and Zone Playback Synchronization
// Copyright 2026 Jukewire contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jukewire/jukewire

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jukewire/jukewire/internal/models"
)

// fakeProvider scripts now-playing responses and records zone mutations.
type fakeProvider struct {
	mu      sync.Mutex
	current *models.NowPlaying
	err     error
	assigns []string
	plays   int
	// block, when non-nil, makes GetNowPlaying wait until it is closed.
	block chan struct{}
	// inFlight tracks concurrent GetNowPlaying calls to verify the
	// single-pass invariant.
	inFlight    int
	maxInFlight int
}

func (p *fakeProvider) GetNowPlaying(ctx context.Context, zoneID string) (*models.NowPlaying, error) {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	block := p.block
	p.mu.Unlock()

	if block != nil {
		<-block
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	return p.current, p.err
}

func (p *fakeProvider) SetZoneContent(ctx context.Context, zoneID, trackID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigns = append(p.assigns, trackID)
	return nil
}

func (p *fakeProvider) Play(ctx context.Context, zoneID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays++
	return nil
}

func (p *fakeProvider) Pause(ctx context.Context, zoneID string) error      { return nil }
func (p *fakeProvider) SkipToNext(ctx context.Context, zoneID string) error { return nil }

func (p *fakeProvider) setCurrent(np *models.NowPlaying) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = np
}

func (p *fakeProvider) assignments() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.assigns...)
}

// fakeStore scripts the queue view and records consumption calls.
type fakeStore struct {
	mu        sync.Mutex
	view      *models.QueueView
	marked    []string
	markTrue  map[string]bool
	afterMark map[string]*models.QueueView
	recent    map[string]*models.QueueItem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		view:      &models.QueueView{},
		markTrue:  make(map[string]bool),
		afterMark: make(map[string]*models.QueueView),
		recent:    make(map[string]*models.QueueItem),
	}
}

func (s *fakeStore) GetQueueWithNext(sessionID string) *models.QueueView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *fakeStore) MarkTrackAsPlayed(sessionID, trackID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, trackID)
	if next, ok := s.afterMark[trackID]; ok {
		s.view = next
	}
	return s.markTrue[trackID]
}

func (s *fakeStore) GetMostRecentQueueItemForTrack(sessionID, trackID string) *models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recent[trackID]
}

// fakeBroadcaster records published snapshots.
type fakeBroadcaster struct {
	mu        sync.Mutex
	queues    []*models.QueueView
	playbacks []*models.PlaybackState
}

func (b *fakeBroadcaster) PublishQueue(sessionID string, view *models.QueueView) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = append(b.queues, view)
}

func (b *fakeBroadcaster) PublishPlayback(sessionID string, state *models.PlaybackState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbacks = append(b.playbacks, state)
}

// timerCtl captures scheduled timer callbacks for manual firing.
type timerCtl struct {
	mu  sync.Mutex
	fns []func()
}

func (tc *timerCtl) factory(d time.Duration, fn func()) *time.Timer {
	tc.mu.Lock()
	tc.fns = append(tc.fns, fn)
	tc.mu.Unlock()
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

// fireNext runs the most recently scheduled callback synchronously.
func (tc *timerCtl) fireNext(t *testing.T) {
	t.Helper()
	tc.mu.Lock()
	if len(tc.fns) == 0 {
		tc.mu.Unlock()
		t.Fatal("no timer scheduled")
	}
	fn := tc.fns[len(tc.fns)-1]
	tc.fns = tc.fns[:len(tc.fns)-1]
	tc.mu.Unlock()
	fn()
}

func (tc *timerCtl) scheduled() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.fns)
}

func defaultTestConfig() Config {
	return Config{
		PollInterval:      5 * time.Second,
		PollFloor:         2 * time.Second,
		PollBuffer:        2500 * time.Millisecond,
		AssignmentTimeout: 15 * time.Second,
	}
}

type testHarness struct {
	registry *Registry
	provider *fakeProvider
	store    *fakeStore
	bcast    *fakeBroadcaster
	timers   *timerCtl
	now      time.Time
	nowMu    sync.Mutex
}

func newHarness(cfg Config) *testHarness {
	h := &testHarness{
		provider: &fakeProvider{},
		store:    newFakeStore(),
		bcast:    &fakeBroadcaster{},
		timers:   &timerCtl{},
		now:      time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	h.registry = NewRegistry(h.provider, h.store, h.bcast, cfg)
	h.registry.newTimer = h.timers.factory
	h.registry.clock = func() time.Time {
		h.nowMu.Lock()
		defer h.nowMu.Unlock()
		return h.now
	}
	return h
}

func (h *testHarness) advance(d time.Duration) {
	h.nowMu.Lock()
	h.now = h.now.Add(d)
	h.nowMu.Unlock()
}

func queueItem(trackID string) *models.QueueItem {
	return &models.QueueItem{ID: "item-" + trackID, TrackID: trackID, Name: "Track " + trackID}
}

func viewWithNext(tracks ...string) *models.QueueView {
	view := &models.QueueView{Queue: []*models.QueueItem{}}
	for _, tr := range tracks {
		view.Queue = append(view.Queue, queueItem(tr))
	}
	if len(view.Queue) > 0 {
		view.NextUp = view.Queue[0]
	}
	return view
}

func TestEnsureIsIdempotent(t *testing.T) {
	h := newHarness(defaultTestConfig())

	h.registry.Ensure("sess", "host-1", "zone-1")
	if !h.registry.Monitored("sess") {
		t.Fatal("monitor not created")
	}
	if h.timers.scheduled() != 1 {
		t.Fatalf("scheduled timers = %d, want 1", h.timers.scheduled())
	}

	// Re-ensure with a pending timer: no duplicate schedule, no new state.
	h.registry.Ensure("sess", "host-2", "zone-2")
	if h.timers.scheduled() != 1 {
		t.Fatalf("re-ensure scheduled another timer, count = %d", h.timers.scheduled())
	}

	h.registry.mu.Lock()
	m := h.registry.monitors["sess"]
	if m.hostID != "host-2" || m.zoneID != "zone-2" {
		t.Errorf("re-ensure did not update host/zone: %+v", m)
	}
	h.registry.mu.Unlock()
}

func TestNoZoneConfiguredIdles(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.registry.Ensure("sess", "host-1", "")

	h.timers.fireNext(t)

	if got := h.provider.assignments(); len(got) != 0 {
		t.Errorf("pass without zone made provider calls: %v", got)
	}
	// The pass must re-arm even when skipped.
	if h.timers.scheduled() != 1 {
		t.Errorf("pass did not re-arm, scheduled = %d", h.timers.scheduled())
	}
}

// TestTransitionSequence replays the observed track sequence
// [A, A, B, B, C] against a queue whose next-up is B, then C. Expected:
// A is consumed exactly once (on the A->B transition), and exactly one
// assignment is issued for B and one for C.
func TestTransitionSequence(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.store.view = viewWithNext("B", "C")
	h.store.markTrue["A"] = true
	h.store.markTrue["B"] = true
	h.store.afterMark["A"] = viewWithNext("C")
	h.store.afterMark["B"] = viewWithNext()

	h.registry.Ensure("sess", "host-1", "zone-1")

	playing := func(track string) *models.NowPlaying {
		return &models.NowPlaying{TrackID: track, Playing: true}
	}

	// Passes 1-2: zone plays A, next-up is B.
	h.provider.setCurrent(playing("A"))
	h.timers.fireNext(t) // assigns B
	h.timers.fireNext(t) // B pending, no duplicate assignment

	// Passes 3-4: zone picked up B; A->B transition consumes A and the
	// refreshed view exposes C as next-up.
	h.provider.setCurrent(playing("B"))
	h.timers.fireNext(t) // confirms B, consumes A, assigns C
	h.timers.fireNext(t) // C pending, no duplicate assignment

	// Pass 5: zone picked up C; B->C transition consumes B.
	h.provider.setCurrent(playing("C"))
	h.timers.fireNext(t)

	wantAssigns := []string{"B", "C"}
	gotAssigns := h.provider.assignments()
	if len(gotAssigns) != len(wantAssigns) {
		t.Fatalf("assignments = %v, want %v", gotAssigns, wantAssigns)
	}
	for i := range wantAssigns {
		if gotAssigns[i] != wantAssigns[i] {
			t.Fatalf("assignments = %v, want %v", gotAssigns, wantAssigns)
		}
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	markedA := 0
	for _, tr := range h.store.marked {
		if tr == "A" {
			markedA++
		}
	}
	if markedA != 1 {
		t.Errorf("A consumed %d times, want exactly 1 (marked: %v)", markedA, h.store.marked)
	}
}

func TestFallbackContentIssuedOnce(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.DefaultContentID = "ambient-1"
	h := newHarness(cfg)

	h.registry.Ensure("sess", "host-1", "zone-1")

	// No provider state, empty queue: assign fallback exactly once.
	h.timers.fireNext(t)
	h.timers.fireNext(t)
	h.timers.fireNext(t)

	got := h.provider.assignments()
	if len(got) != 1 || got[0] != "ambient-1" {
		t.Fatalf("fallback assignments = %v, want exactly one ambient-1", got)
	}

	// Once the fallback is observed playing, no re-issue either.
	h.provider.setCurrent(&models.NowPlaying{TrackID: "ambient-1", Playing: true})
	h.timers.fireNext(t)
	if got := h.provider.assignments(); len(got) != 1 {
		t.Errorf("fallback re-issued after confirmation: %v", got)
	}
}

func TestStuckAssignmentRetry(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.store.view = viewWithNext("B")
	h.registry.Ensure("sess", "host-1", "zone-1")

	h.timers.fireNext(t) // assigns B, pending
	if got := h.provider.assignments(); len(got) != 1 {
		t.Fatalf("initial assignments = %v", got)
	}

	// Within the timeout: no retry.
	h.advance(5 * time.Second)
	h.timers.fireNext(t)
	if got := h.provider.assignments(); len(got) != 1 {
		t.Fatalf("retried before timeout: %v", got)
	}

	// Past the timeout: re-issue, and keep re-issuing (unbounded).
	h.advance(11 * time.Second)
	h.timers.fireNext(t)
	if got := h.provider.assignments(); len(got) != 2 {
		t.Fatalf("no retry after timeout: %v", got)
	}
	h.advance(16 * time.Second)
	h.timers.fireNext(t)
	if got := h.provider.assignments(); len(got) != 3 {
		t.Errorf("retry is not unbounded: %v", got)
	}
}

func TestProviderErrorAbsorbed(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.registry.Ensure("sess", "host-1", "zone-1")
	h.provider.mu.Lock()
	h.provider.err = errors.New("provider down")
	h.provider.mu.Unlock()

	h.timers.fireNext(t)

	h.bcast.mu.Lock()
	broadcasts := len(h.bcast.playbacks)
	h.bcast.mu.Unlock()
	if broadcasts != 0 {
		t.Error("failed pass should not broadcast")
	}
	if h.timers.scheduled() != 1 {
		t.Errorf("failed pass did not re-arm, scheduled = %d", h.timers.scheduled())
	}
	if !h.registry.Monitored("sess") {
		t.Error("failed pass must not stop monitoring")
	}
}

func TestNoConcurrentPasses(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.registry.Ensure("sess", "host-1", "zone-1")

	block := make(chan struct{})
	h.provider.mu.Lock()
	h.provider.block = block
	h.provider.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.timers.fireNext(t)
		close(done)
	}()

	// Wait for the pass to be in flight, then try to start another.
	for {
		h.provider.mu.Lock()
		inFlight := h.provider.inFlight
		h.provider.mu.Unlock()
		if inFlight == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	h.registry.runPass("sess") // re-entrant fire is suppressed
	h.registry.RequestImmediate("sess", 0)

	close(block)
	<-done

	h.provider.mu.Lock()
	defer h.provider.mu.Unlock()
	if h.provider.maxInFlight > 1 {
		t.Errorf("concurrent passes observed: max in flight = %d", h.provider.maxInFlight)
	}
}

func TestStopDuringPassDoesNotResurrect(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.registry.Ensure("sess", "host-1", "zone-1")

	block := make(chan struct{})
	h.provider.mu.Lock()
	h.provider.block = block
	h.provider.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.timers.fireNext(t)
		close(done)
	}()

	for {
		h.provider.mu.Lock()
		inFlight := h.provider.inFlight
		h.provider.mu.Unlock()
		if inFlight == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	h.registry.Stop("sess")
	before := h.timers.scheduled()
	close(block)
	<-done

	if h.registry.Monitored("sess") {
		t.Error("stopped session was resurrected by the running pass")
	}
	if h.timers.scheduled() != before {
		t.Error("running pass re-armed a stopped session")
	}
}

func TestStopAndImmediateAreNoOpsWithoutMonitor(t *testing.T) {
	h := newHarness(defaultTestConfig())

	// None of these should panic or create state.
	h.registry.Stop("ghost")
	h.registry.RequestImmediate("ghost", 0)
	h.registry.UpdateZone("ghost", "zone-9")

	if h.registry.Monitored("ghost") {
		t.Error("no-op calls created monitor state")
	}
}

func TestRequesterResolution(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.registry.Ensure("sess", "host-1", "zone-1")

	h.provider.setCurrent(&models.NowPlaying{TrackID: "T", Playing: true})
	h.store.recent["T"] = &models.QueueItem{TrackID: "T", AddedBy: models.Actor{Display: "Alice"}}

	h.timers.fireNext(t)

	h.bcast.mu.Lock()
	defer h.bcast.mu.Unlock()
	if len(h.bcast.playbacks) != 1 {
		t.Fatalf("playback broadcasts = %d, want 1", len(h.bcast.playbacks))
	}
	if h.bcast.playbacks[0].Requester != "Alice" {
		t.Errorf("requester = %q, want Alice", h.bcast.playbacks[0].Requester)
	}
}

func TestRequesterUnknownWhenNoQueueEntry(t *testing.T) {
	h := newHarness(defaultTestConfig())
	h.registry.Ensure("sess", "host-1", "zone-1")
	h.provider.setCurrent(&models.NowPlaying{TrackID: "T", Playing: true})

	h.timers.fireNext(t)

	h.bcast.mu.Lock()
	defer h.bcast.mu.Unlock()
	if h.bcast.playbacks[0].Requester != unknownRequester {
		t.Errorf("requester = %q, want %q", h.bcast.playbacks[0].Requester, unknownRequester)
	}
}

func TestAdaptiveDelay(t *testing.T) {
	h := newHarness(defaultTestConfig())
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		np       *models.NowPlaying
		expected time.Duration
	}{
		{
			name:     "nothing playing uses default",
			np:       nil,
			expected: 5 * time.Second,
		},
		{
			name:     "paused uses default",
			np:       &models.NowPlaying{TrackID: "T", DurationMS: 180000, StartedAt: now.Add(-30 * time.Second)},
			expected: 5 * time.Second,
		},
		{
			name:     "unknown duration uses default",
			np:       &models.NowPlaying{TrackID: "T", Playing: true, StartedAt: now.Add(-30 * time.Second)},
			expected: 5 * time.Second,
		},
		{
			// duration 180000ms, 170000ms in:
			// remaining 10000ms + 2500ms buffer = 12500ms, clamped to
			// the 5000ms ceiling.
			name:     "mid-track clamps to ceiling",
			np:       &models.NowPlaying{TrackID: "T", Playing: true, DurationMS: 180000, StartedAt: now.Add(-170 * time.Second)},
			expected: 5 * time.Second,
		},
		{
			name:     "near track end lands between floor and ceiling",
			np:       &models.NowPlaying{TrackID: "T", Playing: true, DurationMS: 180000, StartedAt: now.Add(-179500 * time.Millisecond)},
			expected: 3 * time.Second,
		},
		{
			name:     "past track end yields buffer only",
			np:       &models.NowPlaying{TrackID: "T", Playing: true, DurationMS: 180000, StartedAt: now.Add(-200 * time.Second)},
			expected: 2500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.registry.nextDelay(tt.np, now); got != tt.expected {
				t.Errorf("nextDelay() = %s, want %s", got, tt.expected)
			}
		})
	}
}
