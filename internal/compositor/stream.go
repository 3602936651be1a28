package compositor

import (
	"image"
	"sync"

	"github.com/framecull/framecull-agent/internal/lut"
)

// Stream is the continuous-playback hook: the media pipeline calls Process
// for every decoded frame, and SwapLUT replaces the active table without
// re-initializing anything. A swap takes effect from the next frame; the
// frame being processed when the swap lands finishes with the old table.
type Stream struct {
	compositor *Compositor

	mu    sync.RWMutex
	table *lut.Table
}

func (c *Compositor) NewStream(table *lut.Table) *Stream {
	return &Stream{compositor: c, table: table}
}

// Process composites the current LUT onto one decoded frame.
func (s *Stream) Process(frame *image.RGBA) *image.RGBA {
	s.mu.RLock()
	table := s.table
	s.mu.RUnlock()
	return s.compositor.Composite(frame, table)
}

// SwapLUT atomically replaces the active table. nil restores identity.
func (s *Stream) SwapLUT(table *lut.Table) {
	s.mu.Lock()
	s.table = table
	s.mu.Unlock()
}

// Table returns the active table.
func (s *Stream) Table() *lut.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}
