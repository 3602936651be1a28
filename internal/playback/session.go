// Package playback implements the trim-bounded playback controller. A
// Session owns one decode handle and runs a small state machine
// (Stopped/Playing/Paused) whose position never leaves the clip's trim
// range. End of range is detected twice over: a periodic sampler that
// publishes the observed position and stops early inside a guard band,
// and a boundary timer armed at the exact trim end, which is the
// authoritative stop.
package playback

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/compositor"
	"github.com/framecull/framecull-agent/internal/lut"
	"github.com/framecull/framecull-agent/internal/media"
)

type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

var ErrSessionClosed = errors.New("playback session closed")

// samplerInterval is the cadence of the UI position sampler.
const samplerInterval = time.Second / 30

// Events are fired synchronously under the session lock. Handlers must
// return promptly and must not call back into the session.
type Events struct {
	OnState    func(s State)
	OnPosition func(sec float64)
	OnError    func(err error)
}

type Session struct {
	clipID string
	info   media.Info
	src    media.Source
	comp   *compositor.Compositor
	stream *compositor.Stream
	events Events
	logger *slog.Logger

	// guard is how far before trim end the sampler may stop early.
	guard float64

	mu       sync.Mutex
	state    State
	trim     clip.Trim
	lutID    string
	pos      float64
	anchor   float64   // media position when the clock started
	anchorAt time.Time // wall time when the clock started
	seekGen  uint64
	boundary *time.Timer
	closed   bool

	stopSampler chan struct{}
	samplerDone chan struct{}
}

func NewSession(clipID string, src media.Source, trim clip.Trim, lutID string, table *lut.Table, comp *compositor.Compositor, guardFrames int, events Events, logger *slog.Logger) *Session {
	info := src.Info()
	guard := float64(guardFrames) * info.FrameDuration()
	start, _ := trim.EffectiveRange(info.DurationSec)

	s := &Session{
		clipID:      clipID,
		info:        info,
		src:         src,
		comp:        comp,
		stream:      comp.NewStream(table),
		events:      events,
		logger:      logger,
		guard:       guard,
		trim:        trim.Normalized(),
		lutID:       lutID,
		pos:         start,
		stopSampler: make(chan struct{}),
		samplerDone: make(chan struct{}),
	}
	go s.samplerLoop()
	return s
}

func (s *Session) ClipID() string { return s.clipID }

func (s *Session) Info() media.Info { return s.info }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Position reports the externally visible position, advancing the clock
// while playing.
func (s *Session) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Session) Trim() clip.Trim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trim
}

// Play seeks to the resume position and flips to Playing only after the
// seek has been acknowledged. Starting from outside the trim range, or
// from the trim end, resumes at the trim start. A no-op while Playing.
func (s *Session) Play(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StatePlaying {
		s.mu.Unlock()
		return nil
	}
	start, end := s.trim.EffectiveRange(s.info.DurationSec)
	target := s.pos
	tol := s.info.FrameDuration() / 2
	if target < start || target >= end-tol {
		target = start
	}
	gen := s.nextGenLocked()
	s.mu.Unlock()

	landed, err := s.src.Seek(ctx, target)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.seekGen {
		return nil
	}
	if err != nil {
		s.failLocked(fmt.Errorf("play seek at %.3fs: %w", target, err))
		return err
	}
	s.pos = landed
	s.anchor = landed
	s.anchorAt = time.Now()
	s.setStateLocked(StatePlaying)
	s.armBoundaryLocked(end - landed)
	return nil
}

// Pause halts immediately; the position stays where the clock last was.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.state != StatePlaying {
		return
	}
	s.pos = s.positionLocked()
	s.disarmBoundaryLocked()
	s.setStateLocked(StatePaused)
	s.publishPositionLocked(s.pos)
}

// Scrub seeks to sec, clamped into the trim range. It never starts
// playback; while playing it repositions the clock and re-arms the
// boundary. A scrub issued while an earlier seek is still in flight
// supersedes it.
func (s *Session) Scrub(ctx context.Context, sec float64) (float64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	start, end := s.trim.EffectiveRange(s.info.DurationSec)
	if sec < start {
		sec = start
	}
	if sec > end {
		sec = end
	}
	gen := s.nextGenLocked()
	s.pos = sec
	if s.state == StatePlaying {
		s.anchor = sec
		s.anchorAt = time.Now()
		s.armBoundaryLocked(end - sec)
	}
	s.mu.Unlock()

	landed, err := s.src.Seek(ctx, sec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.seekGen {
		// A newer seek superseded this one; its completion wins.
		return s.pos, nil
	}
	if err != nil {
		s.failLocked(fmt.Errorf("scrub seek at %.3fs: %w", sec, err))
		return 0, err
	}
	s.pos = landed
	if s.state == StatePlaying {
		s.anchor = landed
		s.anchorAt = time.Now()
	}
	s.publishPositionLocked(landed)
	return landed, nil
}

// SetTrim replaces the trim range, clamps the current position into it
// and re-arms the boundary if playing.
func (s *Session) SetTrim(t clip.Trim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.trim = t.Normalized()
	start, end := s.trim.EffectiveRange(s.info.DurationSec)
	pos := s.positionLocked()
	if pos < start {
		pos = start
	}
	if pos > end {
		pos = end
	}
	s.pos = pos
	if s.state == StatePlaying {
		s.anchor = pos
		s.anchorAt = time.Now()
		s.armBoundaryLocked(end - pos)
	}
	s.publishPositionLocked(pos)
}

// SwapLUT replaces the active LUT without re-initializing anything;
// playback continues from the current position.
func (s *Session) SwapLUT(lutID string, table *lut.Table) {
	s.mu.Lock()
	s.lutID = lutID
	s.mu.Unlock()
	s.stream.SwapLUT(table)
}

// Preview returns the composited still at sec (clamped into the trim
// range) using the session's active LUT.
func (s *Session) Preview(ctx context.Context, sec float64) (*image.RGBA, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	start, end := s.trim.EffectiveRange(s.info.DurationSec)
	if sec < start {
		sec = start
	}
	if sec > end {
		sec = end
	}
	lutID := s.lutID
	s.mu.Unlock()

	return s.comp.PreviewFrame(ctx, s.clipID, s.src, sec, lutID, s.stream.Table())
}

// Close synchronously stops the sampler and boundary timer and releases
// the decode handle. No event fires after Close returns.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.disarmBoundaryLocked()
	s.mu.Unlock()

	close(s.stopSampler)
	<-s.samplerDone
	return s.src.Close()
}

func (s *Session) samplerLoop() {
	defer close(s.samplerDone)
	ticker := time.NewTicker(samplerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSampler:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// sample publishes the observed position and performs the early-stop
// check inside the guard band. The boundary timer remains the
// authoritative stop; whichever fires first wins and the other finds
// the session no longer playing.
func (s *Session) sample() {
	s.mu.Lock()
	if s.closed || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	pos := s.positionLocked()
	start, end := s.trim.EffectiveRange(s.info.DurationSec)
	if pos >= end-s.guard {
		s.finishLocked(start)
		s.mu.Unlock()
		s.realign(start)
		return
	}
	s.pos = pos
	s.publishPositionLocked(pos)
	s.mu.Unlock()
}

func (s *Session) onBoundary() {
	s.mu.Lock()
	if s.closed || s.state != StatePlaying {
		s.mu.Unlock()
		return
	}
	start, _ := s.trim.EffectiveRange(s.info.DurationSec)
	s.finishLocked(start)
	s.mu.Unlock()
	s.realign(start)
}

// finishLocked performs the pause-and-rewind of the reachEnd transition:
// the Paused state and the rewound position are published back to back
// with no observable intermediate.
func (s *Session) finishLocked(start float64) {
	s.disarmBoundaryLocked()
	s.nextGenLocked()
	s.pos = start
	s.setStateLocked(StatePaused)
	s.publishPositionLocked(start)
}

// realign moves the decode position back to the trim start after a
// reachEnd transition so the next frame shown is the first of the range.
func (s *Session) realign(start float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.nextGenLocked()
	s.mu.Unlock()

	_, err := s.src.Seek(context.Background(), start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.seekGen || err == nil {
		return
	}
	s.failLocked(fmt.Errorf("rewind seek at %.3fs: %w", start, err))
}

// failLocked is the seek-failure transition: Stopped, error surfaced,
// no retry.
func (s *Session) failLocked(err error) {
	s.disarmBoundaryLocked()
	s.setStateLocked(StateStopped)
	if s.logger != nil {
		s.logger.Error("playback seek failed", "clip_id", s.clipID, "error", err)
	}
	if s.events.OnError != nil {
		s.events.OnError(err)
	}
}

func (s *Session) stateLocked() State { return s.state }

func (s *Session) positionLocked() float64 {
	if s.state != StatePlaying {
		return s.pos
	}
	pos := s.anchor + time.Since(s.anchorAt).Seconds()
	_, end := s.trim.EffectiveRange(s.info.DurationSec)
	if pos > end {
		pos = end
	}
	return pos
}

func (s *Session) setStateLocked(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if s.events.OnState != nil {
		s.events.OnState(next)
	}
}

func (s *Session) publishPositionLocked(sec float64) {
	if s.events.OnPosition != nil {
		s.events.OnPosition(sec)
	}
}

func (s *Session) armBoundaryLocked(remaining float64) {
	s.disarmBoundaryLocked()
	if remaining < 0 {
		remaining = 0
	}
	s.boundary = time.AfterFunc(time.Duration(remaining*float64(time.Second)), s.onBoundary)
}

func (s *Session) disarmBoundaryLocked() {
	if s.boundary != nil {
		s.boundary.Stop()
		s.boundary = nil
	}
}

func (s *Session) nextGenLocked() uint64 {
	s.seekGen++
	return s.seekGen
}
