// Package compositor applies a LUT color transform to decoded frames. One
// Composite path serves both the still-frame preview and continuous
// playback, so the two can never drift apart in color output.
package compositor

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/framecull/framecull-agent/internal/lut"
	"github.com/framecull/framecull-agent/internal/media"
)

// maxPreviewWidth bounds the size of cached preview stills.
const maxPreviewWidth = 960

type Compositor struct {
	cache  *previewCache
	logger *slog.Logger
}

func New(cacheSize int, logger *slog.Logger) *Compositor {
	return &Compositor{
		cache:  newPreviewCache(cacheSize),
		logger: logger,
	}
}

// Composite returns the frame with the table applied. A nil table is the
// identity transform and returns the source frame unchanged. A non-nil
// table never mutates the source; the transform runs on a copy.
func (c *Compositor) Composite(frame *image.RGBA, table *lut.Table) *image.RGBA {
	if table == nil {
		return frame
	}
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, frame.Pix)
	table.ApplyRGBA(out)
	return out
}

// PreviewFrame extracts the frame at sec, scales it to preview size and
// composites the given LUT. Results are cached by (clip, timestamp, lut)
// so scrubbing back over a visited position is O(1).
func (c *Compositor) PreviewFrame(ctx context.Context, clipID string, src media.Source, sec float64, lutID string, table *lut.Table) (*image.RGBA, error) {
	key := previewKey{
		ClipID:      clipID,
		TimestampMs: int64(sec * 1000),
		LUTID:       lutID,
	}
	if img, ok := c.cache.get(key); ok {
		return img, nil
	}

	frame, err := src.ExtractFrame(ctx, sec)
	if err != nil {
		return nil, fmt.Errorf("preview extraction: %w", err)
	}

	frame = scaleToPreview(frame)
	out := c.Composite(frame, table)
	c.cache.put(key, out)

	if c.logger != nil {
		c.logger.Debug("preview frame composited", "clip_id", clipID, "t", sec, "lut_id", lutID)
	}
	return out, nil
}

// InvalidateClip drops all cached previews for a clip, e.g. after its
// file was replaced on disk.
func (c *Compositor) InvalidateClip(clipID string) {
	c.cache.invalidateClip(clipID)
}

func scaleToPreview(frame *image.RGBA) *image.RGBA {
	b := frame.Bounds()
	if b.Dx() <= maxPreviewWidth {
		return frame
	}
	h := b.Dy() * maxPreviewWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, maxPreviewWidth, h))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), frame, b, xdraw.Src, nil)
	return out
}
