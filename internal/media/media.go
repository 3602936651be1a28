// Package media is the boundary to the external decode/encode framework.
// The agent drives it through the Opener/Source interfaces; the production
// implementation shells out to ffmpeg/ffprobe.
package media

import (
	"context"
	"errors"
	"image"
)

// ErrSeek is wrapped by seek/extract failures so callers can map them to
// the playback error taxonomy.
var ErrSeek = errors.New("seek failed")

// Info describes a probed video file.
type Info struct {
	DurationSec float64
	Width       int
	Height      int
	FrameRate   float64
	Codec       string
}

// FrameDuration returns the duration of one frame in seconds, defaulting
// to 1/30 s when the frame rate is unknown.
func (i Info) FrameDuration() float64 {
	if i.FrameRate <= 0 {
		return 1.0 / 30.0
	}
	return 1.0 / i.FrameRate
}

// Source is an exclusively owned decode/seek handle for one open clip.
// It is not safe for concurrent use; the owning playback session
// serializes access. Close releases the handle and must be called before
// a new handle for the same clip is created.
type Source interface {
	Info() Info

	// Seek positions the decoder at mediaTimeSec with frame accuracy (not
	// nearest-keyframe) and returns the landed time. The seek has completed
	// when Seek returns; callers rely on that acknowledgement ordering.
	Seek(ctx context.Context, sec float64) (float64, error)

	// ExtractFrame decodes the frame at sec into an RGBA buffer.
	ExtractFrame(ctx context.Context, sec float64) (*image.RGBA, error)

	Close() error
}

// Opener creates decode handles and answers container-level queries.
type Opener interface {
	Probe(ctx context.Context, path string) (Info, error)
	Open(ctx context.Context, path string) (Source, error)

	// KeyframeBefore returns the timestamp of the last keyframe at or
	// before sec, used to decide whether a passthrough cut is realizable.
	KeyframeBefore(ctx context.Context, path string, sec float64) (float64, error)
}
