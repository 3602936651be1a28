package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/compositor"
	"github.com/framecull/framecull-agent/internal/media"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects events fired by a session.
type recorder struct {
	mu        sync.Mutex
	states    []State
	positions []float64
	errs      []error
}

func (r *recorder) events() Events {
	return Events{
		OnState: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
		OnPosition: func(sec float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.positions = append(r.positions, sec)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) snapshot() (states []State, positions []float64, errs []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...), append([]float64(nil), r.positions...), append([]error(nil), r.errs...)
}

func newTestSession(t *testing.T, opener *media.StubOpener, path string, trim clip.Trim, rec *recorder) *Session {
	t.Helper()
	src, err := opener.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	comp := compositor.New(8, testLogger())
	var events Events
	if rec != nil {
		events = rec.events()
	}
	sess := NewSession("clip1", src, trim, "", nil, comp, 2, events, testLogger())
	t.Cleanup(func() { sess.Close() })
	return sess
}

func stubOpener(duration float64) *media.StubOpener {
	opener := media.NewStubOpener()
	opener.AddClip("/a.mp4", media.Info{DurationSec: duration, Width: 16, Height: 16, FrameRate: 30})
	return opener
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

func TestSession_PlaySeeksToTrimStartBeforePlaying(t *testing.T) {
	rec := &recorder{}
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{Start: 0.2, End: 0.5}, rec)

	if got := sess.State(); got != StateStopped {
		t.Fatalf("initial state = %v, want stopped", got)
	}
	if err := sess.Play(context.Background()); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if got := sess.State(); got != StatePlaying {
		t.Fatalf("state after Play() = %v, want playing", got)
	}
	if pos := sess.Position(); pos < 2.0 {
		t.Errorf("position after Play() = %v, want >= trim start 2.0", pos)
	}

	// Redundant play is a no-op; no second state event.
	if err := sess.Play(context.Background()); err != nil {
		t.Fatalf("redundant Play() error = %v", err)
	}
	states, _, _ := rec.snapshot()
	playing := 0
	for _, s := range states {
		if s == StatePlaying {
			playing++
		}
	}
	if playing != 1 {
		t.Errorf("got %d playing transitions, want 1", playing)
	}
}

func TestSession_PauseHaltsImmediately(t *testing.T) {
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{}, nil)

	if err := sess.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	sess.Pause()
	if got := sess.State(); got != StatePaused {
		t.Fatalf("state after Pause() = %v, want paused", got)
	}
	pos := sess.Position()
	time.Sleep(60 * time.Millisecond)
	if got := sess.Position(); got != pos {
		t.Errorf("position advanced while paused: %v -> %v", pos, got)
	}

	// Redundant pause is a no-op.
	sess.Pause()
	if got := sess.State(); got != StatePaused {
		t.Errorf("state after redundant Pause() = %v, want paused", got)
	}
}

func TestSession_PositionMonotonicWhilePlaying(t *testing.T) {
	rec := &recorder{}
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{}, rec)

	if err := sess.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	sess.Pause()

	_, positions, _ := rec.snapshot()
	if len(positions) < 3 {
		t.Fatalf("sampler published %d positions, want several", len(positions))
	}
	for i := 1; i < len(positions); i++ {
		if positions[i] < positions[i-1] {
			t.Fatalf("positions not monotonic: %v then %v", positions[i-1], positions[i])
		}
	}
}

func TestSession_ReachEndPausesAndRewinds(t *testing.T) {
	rec := &recorder{}
	// Trim range 0..0.2s of a 10s clip.
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{Start: 0, End: 0.02}, rec)

	if err := sess.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return sess.State() == StatePaused })

	if pos := sess.Position(); pos != 0 {
		t.Errorf("position after reaching end = %v, want rewind to trim start 0", pos)
	}

	// The rewound position is published with the pause, not after it.
	states, positions, _ := rec.snapshot()
	if states[len(states)-1] != StatePaused {
		t.Fatalf("last state = %v, want paused", states[len(states)-1])
	}
	if len(positions) == 0 || positions[len(positions)-1] != 0 {
		t.Errorf("last published position = %v, want 0", positions)
	}
}

func TestSession_PlayFromEndResumesAtTrimStart(t *testing.T) {
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{Start: 0.2, End: 0.5}, nil)

	if _, err := sess.Scrub(context.Background(), 5.0); err != nil {
		t.Fatal(err)
	}
	if err := sess.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	sess.Pause()
	if pos := sess.Position(); pos < 2.0 || pos > 2.5 {
		t.Errorf("resume position = %v, want near trim start 2.0", pos)
	}
}

func TestSession_ScrubClampsAndNeverStartsPlayback(t *testing.T) {
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{Start: 0.2, End: 0.5}, nil)

	landed, err := sess.Scrub(context.Background(), 9.9)
	if err != nil {
		t.Fatalf("Scrub() error = %v", err)
	}
	if landed != 5.0 {
		t.Errorf("Scrub(9.9) landed = %v, want clamp to trim end 5.0", landed)
	}

	landed, err = sess.Scrub(context.Background(), 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if landed != 2.0 {
		t.Errorf("Scrub(0.1) landed = %v, want clamp to trim start 2.0", landed)
	}
	if got := sess.State(); got != StateStopped {
		t.Errorf("state after scrubs = %v, scrubbing must not start playback", got)
	}
}

func TestSession_LaterScrubSupersedesEarlier(t *testing.T) {
	opener := stubOpener(10)
	opener.SetSeekDelay("/a.mp4", 150*time.Millisecond)
	sess := newTestSession(t, opener, "/a.mp4", clip.Trim{}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Scrub(context.Background(), 3.0)
	}()
	time.Sleep(30 * time.Millisecond)

	landed, err := sess.Scrub(context.Background(), 7.0)
	if err != nil {
		t.Fatalf("Scrub() error = %v", err)
	}
	<-done

	if landed != 7.0 {
		t.Errorf("latest scrub landed = %v, want 7.0", landed)
	}
	if pos := sess.Position(); pos != 7.0 {
		t.Errorf("position = %v, want the later scrub target 7.0", pos)
	}
}

func TestSession_SeekFailureStopsAndSurfaces(t *testing.T) {
	opener := stubOpener(10)
	opener.FailSeeks("/a.mp4", errors.New("corrupt atom"))
	rec := &recorder{}
	sess := newTestSession(t, opener, "/a.mp4", clip.Trim{}, rec)

	err := sess.Play(context.Background())
	if err == nil {
		t.Fatal("Play() on a failing source should error")
	}
	if !errors.Is(err, media.ErrSeek) {
		t.Errorf("error = %v, want wrap of media.ErrSeek", err)
	}
	if got := sess.State(); got != StateStopped {
		t.Errorf("state after seek failure = %v, want stopped", got)
	}
	_, _, errs := rec.snapshot()
	if len(errs) != 1 {
		t.Errorf("got %d error events, want 1", len(errs))
	}
}

func TestSession_SetTrimClampsPositionAndRearms(t *testing.T) {
	rec := &recorder{}
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{}, rec)

	if _, err := sess.Scrub(context.Background(), 4.0); err != nil {
		t.Fatal(err)
	}
	sess.SetTrim(clip.Trim{Start: 0, End: 0.3})
	if pos := sess.Position(); pos != 3.0 {
		t.Errorf("position after trim shrink = %v, want clamp to new end 3.0", pos)
	}
}

func TestSession_CloseIsSynchronous(t *testing.T) {
	rec := &recorder{}
	sess := newTestSession(t, stubOpener(10), "/a.mp4", clip.Trim{}, rec)

	if err := sess.Play(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	states, positions, errs := rec.snapshot()
	time.Sleep(100 * time.Millisecond)
	s2, p2, e2 := rec.snapshot()
	if len(s2) != len(states) || len(p2) != len(positions) || len(e2) != len(errs) {
		t.Fatal("events fired after Close returned")
	}

	if err := sess.Play(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Play() after Close = %v, want ErrSessionClosed", err)
	}
	if _, err := sess.Scrub(context.Background(), 1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Scrub() after Close = %v, want ErrSessionClosed", err)
	}
}

func TestManager_ReplacesPriorSessionAndReleasesHandle(t *testing.T) {
	opener := stubOpener(10)
	pool := media.NewPool(opener, 1)
	comp := compositor.New(8, testLogger())
	mgr := NewManager(pool, comp, 2, testLogger())
	defer mgr.CloseAll()

	c := &clip.Clip{ID: "clip1", Path: "/a.mp4", DurationSec: 10}
	ctx := context.Background()

	first, err := mgr.Open(ctx, c, "", nil, Events{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// With only one pool slot, reopening the same clip must release the
	// prior handle first or this would block forever.
	openCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	second, err := mgr.Open(openCtx, c, "", nil, Events{})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if first == second {
		t.Fatal("reopen returned the prior session")
	}
	if err := first.Play(ctx); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("prior session Play() = %v, want ErrSessionClosed", err)
	}

	got, ok := mgr.Get("clip1")
	if !ok || got != second {
		t.Error("Get() should return the live session")
	}
}

func TestManager_CloseUnknownClipIsNoop(t *testing.T) {
	pool := media.NewPool(stubOpener(10), 1)
	mgr := NewManager(pool, compositor.New(8, testLogger()), 2, testLogger())
	if err := mgr.Close("nope"); err != nil {
		t.Fatalf("Close() unknown clip error = %v", err)
	}
}
