package lut

import "strings"

// NormalizeProfileToken canonicalizes a camera gamma or color-primaries
// string for matching: lower-cased with '-', '.', '_' and whitespace
// removed, so "S-Log3", "s.log3" and "s log3" all compare equal.
func NormalizeProfileToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch r {
		case '-', '.', '_', ' ', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ProfileKey builds the durable "gamma|colorspace" preference key from
// normalized tokens.
func ProfileKey(gamma, primaries string) string {
	return NormalizeProfileToken(gamma) + "|" + NormalizeProfileToken(primaries)
}

// profileRule maps a known camera profile to the display name of a bundled
// conversion LUT. Rules with a primaries token are exact matches; rules
// with an empty primaries token are gamma-only fallbacks and rank below
// every exact match.
type profileRule struct {
	gamma     string
	primaries string
	lutName   string
}

// builtinProfiles is the shipped camera-profile table, checked after
// learned user preferences. Order within a specificity tier is first-match.
var builtinProfiles = []profileRule{
	{"slog3", "sgamut3cine", "S-Log3 S-Gamut3.Cine to Rec.709"},
	{"slog3", "sgamut3", "S-Log3 S-Gamut3 to Rec.709"},
	{"slog2", "sgamut", "S-Log2 S-Gamut to Rec.709"},
	{"clog3", "cinemagamut", "C-Log3 Cinema Gamut to Rec.709"},
	{"clog2", "cinemagamut", "C-Log2 Cinema Gamut to Rec.709"},
	{"vlog", "vgamut", "V-Log V-Gamut to Rec.709"},
	{"nlog", "bt2020", "N-Log BT.2020 to Rec.709"},
	{"hlg", "bt2020", "HLG BT.2020 to Rec.709"},

	// Gamma-only fallbacks.
	{"slog3", "", "S-Log3 S-Gamut3.Cine to Rec.709"},
	{"clog3", "", "C-Log3 Cinema Gamut to Rec.709"},
	{"vlog", "", "V-Log V-Gamut to Rec.709"},
	{"hlg", "", "HLG BT.2020 to Rec.709"},
}

// matchBuiltin returns the bundled LUT display name for a normalized
// profile, preferring an exact gamma+primaries match over a gamma-only
// fallback. Empty result means no builtin rule applies.
func matchBuiltin(gamma, primaries string) string {
	for _, rule := range builtinProfiles {
		if rule.primaries == "" {
			continue
		}
		if rule.gamma == gamma && rule.primaries == primaries {
			return rule.lutName
		}
	}
	for _, rule := range builtinProfiles {
		if rule.primaries != "" {
			continue
		}
		if rule.gamma == gamma {
			return rule.lutName
		}
	}
	return ""
}
