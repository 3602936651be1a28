package export

import (
	"context"
	"fmt"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/media"
)

// Planner decides per clip how its trimmed range leaves the machine.
// The decision is deterministic; nothing prompts mid-export.
type Planner struct {
	opener media.Opener
}

func NewPlanner(opener media.Opener) *Planner {
	return &Planner{opener: opener}
}

// Plan picks the export strategy for one clip.
//
// Baking a selected LUT forces a re-encode at highest quality. Everything
// else is a passthrough copy of the trimmed byte range, provided the trim
// start lands on a cut point the container can start from: when the
// nearest keyframe at or before the trim start is more than half a frame
// away, a straight copy would shift the cut, so the clip falls back to a
// re-encode. The fallback is reported as its own strategy, never folded
// into passthrough.
func (p *Planner) Plan(ctx context.Context, c *clip.Clip) (Strategy, error) {
	if c.BakeInLUT && c.SelectedLUT != "" {
		return StrategyHighestQuality, nil
	}

	start, _ := c.Trim.EffectiveRange(c.DurationSec)
	if start == 0 {
		return StrategyPassthrough, nil
	}

	info, err := p.opener.Probe(ctx, c.Path)
	if err != nil {
		return "", fmt.Errorf("probe %s: %w", c.Path, err)
	}
	keyframe, err := p.opener.KeyframeBefore(ctx, c.Path, start)
	if err != nil {
		return "", fmt.Errorf("keyframe scan %s: %w", c.Path, err)
	}

	if start-keyframe > info.FrameDuration()/2 {
		return StrategyReencodeFallback, nil
	}
	return StrategyPassthrough, nil
}
