package clip

import (
	"math/rand"
	"testing"
)

func TestTrim_SetStartClamps(t *testing.T) {
	tests := []struct {
		name  string
		trim  Trim
		value float64
		want  float64
	}{
		{name: "in range", trim: Trim{Start: 0, End: 1}, value: 0.3, want: 0.3},
		{name: "below zero", trim: Trim{Start: 0, End: 1}, value: -0.5, want: 0},
		{name: "past end pins at end minus gap", trim: Trim{Start: 0, End: 0.5}, value: 0.9, want: 0.5 - MinGap},
		{name: "sentinel end treated as one", trim: Trim{Start: 0, End: 0}, value: 0.995, want: 1 - MinGap},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.trim.SetStart(tc.value)
			if got.Start != tc.want {
				t.Errorf("SetStart(%g).Start = %g, want %g", tc.value, got.Start, tc.want)
			}
		})
	}
}

func TestTrim_SetEndClamps(t *testing.T) {
	tests := []struct {
		name  string
		trim  Trim
		value float64
		want  float64
	}{
		{name: "in range", trim: Trim{Start: 0.2, End: 1}, value: 0.8, want: 0.8},
		{name: "above one", trim: Trim{Start: 0, End: 0.5}, value: 1.5, want: 1},
		{name: "before start pins at start plus gap", trim: Trim{Start: 0.5, End: 1}, value: 0.1, want: 0.5 + MinGap},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.trim.SetEnd(tc.value)
			if got.End != tc.want {
				t.Errorf("SetEnd(%g).End = %g, want %g", tc.value, got.End, tc.want)
			}
		})
	}
}

// Random edit sequences must preserve 0 <= start < end <= 1 with the
// minimum gap after every single call.
func TestTrim_ClampInvariantUnderRandomEdits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	trim := Trim{}

	for i := 0; i < 10000; i++ {
		v := rng.Float64()*3 - 1 // [-1, 2), exercises both clamp sides
		if rng.Intn(2) == 0 {
			trim = trim.SetStart(v)
		} else {
			trim = trim.SetEnd(v)
		}

		n := trim.Normalized()
		if n.Start < 0 || n.End > 1 {
			t.Fatalf("edit %d: range [%g, %g] escaped [0,1]", i, n.Start, n.End)
		}
		if n.End-n.Start < MinGap-1e-9 {
			t.Fatalf("edit %d: gap %g below MinGap", i, n.End-n.Start)
		}
		if !trim.Valid() {
			t.Fatalf("edit %d: trim %+v reported invalid", i, trim)
		}
	}
}

func TestTrim_EffectiveRangeResolvesSentinel(t *testing.T) {
	tests := []struct {
		name      string
		trim      Trim
		duration  float64
		wantStart float64
		wantEnd   float64
	}{
		{name: "untouched sentinel is full clip", trim: Trim{}, duration: 10, wantStart: 0, wantEnd: 10},
		{name: "explicit end", trim: Trim{Start: 0.25, End: 0.5}, duration: 10, wantStart: 2.5, wantEnd: 5},
		{name: "literal one", trim: Trim{Start: 0.1, End: 1}, duration: 8, wantStart: 0.8, wantEnd: 8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := tc.trim.EffectiveRange(tc.duration)
			if start != tc.wantStart || end != tc.wantEnd {
				t.Errorf("EffectiveRange(%g) = (%g, %g), want (%g, %g)",
					tc.duration, start, end, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestTrim_IsDefault(t *testing.T) {
	if !(Trim{}).IsDefault() {
		t.Error("zero trim should be default")
	}
	if !(Trim{Start: 0, End: 1}).IsDefault() {
		t.Error("full-range trim should be default")
	}
	if (Trim{Start: 0.1, End: 1}).IsDefault() {
		t.Error("trimmed start should not be default")
	}
	if (Trim{Start: 0, End: 0.9}).IsDefault() {
		t.Error("trimmed end should not be default")
	}
}
