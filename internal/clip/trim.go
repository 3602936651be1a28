package clip

// MinGap is the smallest allowed normalized distance between trim start
// and trim end. Handle edits that would close the gap further are pinned.
const MinGap = 0.01

// Trim holds the normalized [0,1] in/out points of a clip.
//
// End == 0 is a sentinel meaning "end of clip": records start life as
// (0, 0) before the trim is ever touched, and EffectiveRange resolves the
// sentinel against the clip duration. All mutation goes through SetStart
// and SetEnd, which clamp so that 0 <= Start < effective End <= 1 holds
// after every edit.
type Trim struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// effectiveEnd resolves the End sentinel in normalized space.
func (t Trim) effectiveEnd() float64 {
	if t.End == 0 {
		return 1
	}
	return t.End
}

// SetStart clamps value into [0, end-MinGap] and returns the updated trim.
func (t Trim) SetStart(value float64) Trim {
	max := t.effectiveEnd() - MinGap
	if value > max {
		value = max
	}
	if value < 0 {
		value = 0
	}
	t.Start = value
	return t
}

// SetEnd clamps value into [start+MinGap, 1] and returns the updated trim.
// The result is stored literally: an end of 1.0 stays 1.0, it does not
// collapse back into the sentinel.
func (t Trim) SetEnd(value float64) Trim {
	min := t.Start + MinGap
	if value < min {
		value = min
	}
	if value > 1 {
		value = 1
	}
	t.End = value
	return t
}

// IsDefault reports whether the trim still covers the whole clip.
func (t Trim) IsDefault() bool {
	return t.Start == 0 && (t.End == 0 || t.End == 1)
}

// Normalized returns the trim with the End sentinel resolved.
func (t Trim) Normalized() Trim {
	return Trim{Start: t.Start, End: t.effectiveEnd()}
}

// EffectiveRange converts the normalized trim into seconds for a clip of
// the given duration, resolving the End sentinel first.
func (t Trim) EffectiveRange(durationSec float64) (startSec, endSec float64) {
	return t.Start * durationSec, t.effectiveEnd() * durationSec
}

// Valid reports whether the invariant 0 <= Start < End <= 1 (with the
// sentinel resolved) holds, including the minimum gap.
func (t Trim) Valid() bool {
	end := t.effectiveEnd()
	return t.Start >= 0 && end <= 1 && end-t.Start >= MinGap-1e-9
}
