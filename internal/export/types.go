package export

import "time"

type Mode string

const (
	// ModeTest writes outputs under a Culled subfolder and never touches
	// the sources.
	ModeTest Mode = "test"
	// ModeCull trashes flagged clips first, then processes the rest in
	// place next to the sources.
	ModeCull Mode = "cull"
)

type Strategy string

const (
	// StrategyPassthrough copies the trimmed byte range without
	// re-encoding.
	StrategyPassthrough Strategy = "passthrough"
	// StrategyHighestQuality re-encodes the trimmed range, piping every
	// decoded frame through the compositor.
	StrategyHighestQuality Strategy = "highest_quality"
	// StrategyReencodeFallback is a requested passthrough that cannot be
	// realized at the trim point and re-encodes instead. Kept distinct so
	// the fallback is visible, never a silent behavior change.
	StrategyReencodeFallback Strategy = "reencode_fallback"
)

type JobStatus string

const (
	JobIdle          JobStatus = "idle"
	JobRunning       JobStatus = "running"
	JobCompleted     JobStatus = "completed"
	JobCancelled     JobStatus = "cancelled"
	JobFailedPartial JobStatus = "failed_partial"
)

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemSkipped    ItemStatus = "skipped"
)

type Job struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	JobID    string     `json:"job_id"`
	ClipID   string     `json:"clip_id"`
	Filename string     `json:"filename"`
	Strategy Strategy   `json:"strategy"`
	Status   ItemStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}

// Request starts an export run.
type Request struct {
	Mode      Mode   `json:"mode"`
	OutputDir string `json:"output_dir"`
}

// Progress mirrors the per-clip progress contract: current counts
// finished clips, filename is the clip being worked on, and the terminal
// event is (total, total, "").
type Progress struct {
	Current  int
	Total    int
	Filename string
}
