package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// StubOpener is an in-memory Opener used in tests and when no decode
// framework is available. Frames are synthesized, seeks are instant, and
// failures can be injected per path.
type StubOpener struct {
	mu         sync.Mutex
	infos      map[string]Info
	seekErrs   map[string]error
	seekDelays map[string]time.Duration
	keyframes  map[string][]float64
	openCount  int
}

func NewStubOpener() *StubOpener {
	return &StubOpener{
		infos:      make(map[string]Info),
		seekErrs:   make(map[string]error),
		seekDelays: make(map[string]time.Duration),
		keyframes:  make(map[string][]float64),
	}
}

// AddClip registers a synthetic clip at path.
func (o *StubOpener) AddClip(path string, info Info) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.infos[path] = info
}

// FailSeeks makes every seek/extract on path return err.
func (o *StubOpener) FailSeeks(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seekErrs[path] = err
}

// SetSeekDelay makes every seek on path take at least d.
func (o *StubOpener) SetSeekDelay(path string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seekDelays[path] = d
}

// SetKeyframes fixes the keyframe timestamps reported for path.
func (o *StubOpener) SetKeyframes(path string, ts []float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keyframes[path] = ts
}

// OpenCount reports how many handles have been created.
func (o *StubOpener) OpenCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.openCount
}

func (o *StubOpener) Probe(_ context.Context, path string) (Info, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	info, ok := o.infos[path]
	if !ok {
		return Info{}, fmt.Errorf("no such clip: %s", path)
	}
	return info, nil
}

func (o *StubOpener) KeyframeBefore(_ context.Context, path string, sec float64) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	best := 0.0
	for _, t := range o.keyframes[path] {
		if t <= sec+1e-9 && t > best {
			best = t
		}
	}
	return best, nil
}

func (o *StubOpener) Open(ctx context.Context, path string) (Source, error) {
	info, err := o.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.openCount++
	seekErr := o.seekErrs[path]
	seekDelay := o.seekDelays[path]
	o.mu.Unlock()
	return &stubSource{info: info, seekErr: seekErr, seekDelay: seekDelay}, nil
}

type stubSource struct {
	mu        sync.Mutex
	info      Info
	seekErr   error
	seekDelay time.Duration
	pos       float64
	closed    bool
}

func (s *stubSource) Info() Info {
	return s.info
}

func (s *stubSource) Seek(_ context.Context, sec float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seekDelay > 0 {
		time.Sleep(s.seekDelay)
	}
	if s.closed {
		return 0, fmt.Errorf("%w: source closed", ErrSeek)
	}
	if s.seekErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrSeek, s.seekErr)
	}
	if sec < 0 {
		sec = 0
	}
	if sec > s.info.DurationSec {
		sec = s.info.DurationSec
	}
	s.pos = sec
	return sec, nil
}

func (s *stubSource) ExtractFrame(_ context.Context, sec float64) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: source closed", ErrSeek)
	}
	if s.seekErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeek, s.seekErr)
	}

	w, h := s.info.Width, s.info.Height
	if w <= 0 {
		w = 16
	}
	if h <= 0 {
		h = 16
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	// Shade encodes the timestamp so tests can tell frames apart.
	shade := uint8(int(sec*10) % 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: shade, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	return img, nil
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
