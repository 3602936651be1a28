package clip

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Clip is the persisted record for one video file. The agent does not scan
// folders itself; records arrive from the scanning collaborator via Upsert
// and the agent writes back only trim, LUT selection and the deletion flag.
type Clip struct {
	ID               string    `json:"id"`
	Path             string    `json:"path"`
	Filename         string    `json:"filename"`
	DurationSec      float64   `json:"duration_sec"`
	Trim             Trim      `json:"trim"`
	SelectedLUT      string    `json:"selected_lut"`
	BakeInLUT        bool      `json:"bake_in_lut"`
	FlaggedForDelete bool      `json:"flagged_for_deletion"`
	CameraGamma      string    `json:"camera_gamma,omitempty"`
	CameraPrimaries  string    `json:"camera_primaries,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasPendingWork reports whether the clip carries an actual culling decision:
// a non-default trim or a LUT selection. Test-mode exports filter on this.
func (c *Clip) HasPendingWork() bool {
	return !c.Trim.IsDefault() || c.SelectedLUT != ""
}

// NewID derives the stable clip identifier from the absolute file path.
// The same path always maps to the same ID so records survive rescans.
func NewID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:16])
}
