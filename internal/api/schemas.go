package api

import (
	"time"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/export"
	"github.com/framecull/framecull-agent/internal/lut"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string `json:"state"`
	ClipsCount   int    `json:"clips_count"`
	LUTsCount    int    `json:"luts_count"`
	ExportJobID  string `json:"export_job_id,omitempty"`
	LastJobError string `json:"last_job_error,omitempty"`
}

type RegisterClipRequest struct {
	Path            string  `json:"path"`
	DurationSec     float64 `json:"duration_sec"`
	CameraGamma     string  `json:"camera_gamma,omitempty"`
	CameraPrimaries string  `json:"camera_primaries,omitempty"`
}

type ClipResponse struct {
	ID               string  `json:"id"`
	Path             string  `json:"path"`
	Filename         string  `json:"filename"`
	DurationSec      float64 `json:"duration_sec"`
	TrimStart        float64 `json:"trim_start"`
	TrimEnd          float64 `json:"trim_end"`
	SelectedLUT      string  `json:"selected_lut"`
	BakeInLUT        bool    `json:"bake_in_lut"`
	FlaggedForDelete bool    `json:"flagged_for_deletion"`
	CameraGamma      string  `json:"camera_gamma,omitempty"`
	CameraPrimaries  string  `json:"camera_primaries,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

type ClipsResponse struct {
	Clips []ClipResponse `json:"clips"`
}

type TrimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type LUTSelectionRequest struct {
	LUTID string `json:"lut_id"`
	Bake  bool   `json:"bake"`
}

type FlagRequest struct {
	Flagged bool `json:"flagged"`
}

type LUTEntryResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Origin      string `json:"origin"`
}

type LUTsResponse struct {
	LUTs []LUTEntryResponse `json:"luts"`
}

type ImportLUTRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

type LearnPreferenceRequest struct {
	Gamma     string `json:"gamma"`
	Primaries string `json:"primaries"`
	LUTID     string `json:"lut_id"`
}

type PreferenceResponse struct {
	ProfileKey string `json:"profile_key"`
	LUTID      string `json:"lut_id"`
	LUTName    string `json:"lut_name"`
	LearnedAt  string `json:"learned_at"`
}

type PreferencesResponse struct {
	Preferences []PreferenceResponse `json:"preferences"`
}

type PlaybackStateResponse struct {
	ClipID      string  `json:"clip_id"`
	State       string  `json:"state"`
	PositionSec float64 `json:"position_sec"`
	TrimStart   float64 `json:"trim_start"`
	TrimEnd     float64 `json:"trim_end"`
}

type ScrubRequest struct {
	PositionSec float64 `json:"position_sec"`
}

type SwapLUTRequest struct {
	LUTID string `json:"lut_id"`
}

type ExportStartRequest struct {
	Mode      string `json:"mode"`
	OutputDir string `json:"output_dir,omitempty"`
}

type ExportStartResponse struct {
	JobID string `json:"job_id"`
}

type ExportItemResponse struct {
	ClipID   string `json:"clip_id"`
	Filename string `json:"filename"`
	Strategy string `json:"strategy,omitempty"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type ExportJobResponse struct {
	ID        string               `json:"id"`
	Mode      string               `json:"mode"`
	Status    string               `json:"status"`
	Total     int                  `json:"total"`
	Completed int                  `json:"completed"`
	Error     string               `json:"error,omitempty"`
	CreatedAt string               `json:"created_at"`
	Items     []ExportItemResponse `json:"items,omitempty"`
}

type ExportJobsResponse struct {
	Jobs []ExportJobResponse `json:"jobs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ClipToResponse(c *clip.Clip) ClipResponse {
	return ClipResponse{
		ID:               c.ID,
		Path:             c.Path,
		Filename:         c.Filename,
		DurationSec:      c.DurationSec,
		TrimStart:        c.Trim.Start,
		TrimEnd:          c.Trim.End,
		SelectedLUT:      c.SelectedLUT,
		BakeInLUT:        c.BakeInLUT,
		FlaggedForDelete: c.FlaggedForDelete,
		CameraGamma:      c.CameraGamma,
		CameraPrimaries:  c.CameraPrimaries,
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
	}
}

func LUTToResponse(e *lut.Entry) LUTEntryResponse {
	return LUTEntryResponse{
		ID:          e.ID,
		DisplayName: e.DisplayName,
		Origin:      string(e.Origin),
	}
}

func PreferenceToResponse(p *lut.Preference) PreferenceResponse {
	return PreferenceResponse{
		ProfileKey: p.ProfileKey,
		LUTID:      p.LUTID,
		LUTName:    p.LUTName,
		LearnedAt:  p.LearnedAt.Format(time.RFC3339),
	}
}

func JobToResponse(j *export.Job, items []export.Item) ExportJobResponse {
	resp := ExportJobResponse{
		ID:        j.ID,
		Mode:      string(j.Mode),
		Status:    string(j.Status),
		Total:     j.Total,
		Completed: j.Completed,
		Error:     j.Error,
		CreatedAt: j.CreatedAt.Format(time.RFC3339),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, ExportItemResponse{
			ClipID:   item.ClipID,
			Filename: item.Filename,
			Strategy: string(item.Strategy),
			Status:   string(item.Status),
			Error:    item.Error,
		})
	}
	return resp
}
