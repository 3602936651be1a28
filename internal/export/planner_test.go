package export

import (
	"context"
	"testing"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/media"
)

func TestPlanner_Plan(t *testing.T) {
	opener := media.NewStubOpener()
	opener.AddClip("/aligned.mp4", media.Info{DurationSec: 10, FrameRate: 30})
	opener.SetKeyframes("/aligned.mp4", []float64{0, 3.0, 6.0})
	opener.AddClip("/offset.mp4", media.Info{DurationSec: 10, FrameRate: 30})
	opener.SetKeyframes("/offset.mp4", []float64{0, 2.0, 4.0})

	planner := NewPlanner(opener)
	ctx := context.Background()

	tests := []struct {
		name string
		clip clip.Clip
		want Strategy
	}{
		{
			name: "bake with LUT forces highest quality",
			clip: clip.Clip{Path: "/offset.mp4", DurationSec: 10, Trim: clip.Trim{Start: 0.3}, SelectedLUT: "lut1", BakeInLUT: true},
			want: StrategyHighestQuality,
		},
		{
			name: "LUT selected but not baked stays passthrough",
			clip: clip.Clip{Path: "/aligned.mp4", DurationSec: 10, SelectedLUT: "lut1"},
			want: StrategyPassthrough,
		},
		{
			name: "default trim start needs no keyframe check",
			clip: clip.Clip{Path: "/offset.mp4", DurationSec: 10, Trim: clip.Trim{End: 0.5}},
			want: StrategyPassthrough,
		},
		{
			name: "trim start on a keyframe",
			clip: clip.Clip{Path: "/aligned.mp4", DurationSec: 10, Trim: clip.Trim{Start: 0.3}},
			want: StrategyPassthrough,
		},
		{
			name: "trim start between keyframes falls back to re-encode",
			clip: clip.Clip{Path: "/offset.mp4", DurationSec: 10, Trim: clip.Trim{Start: 0.3}},
			want: StrategyReencodeFallback,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.clip
			got, err := planner.Plan(ctx, &c)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Plan() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPlanner_ProbeFailureSurfaces(t *testing.T) {
	planner := NewPlanner(media.NewStubOpener())
	c := &clip.Clip{Path: "/missing.mp4", DurationSec: 10, Trim: clip.Trim{Start: 0.3}}
	if _, err := planner.Plan(context.Background(), c); err == nil {
		t.Fatal("Plan() with unknown source should error")
	}
}
