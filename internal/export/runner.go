// Package export plans and runs export jobs: per clip a deterministic
// strategy decision, per job a trash phase (cull mode), a processing
// phase, cooperative cancellation and persistent history.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/compositor"
	"github.com/framecull/framecull-agent/internal/logging"
	"github.com/framecull/framecull-agent/internal/lut"
)

var ErrJobRunning = errors.New("an export job is already running")

// EncodeError marks a per-clip failure. The job continues past it and
// aggregates the reasons into a failed_partial result.
type EncodeError struct {
	Clip string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Clip, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Callbacks receive job lifecycle events. They may be invoked from the
// job worker goroutine.
type Callbacks struct {
	OnProgress func(p Progress)
	OnStatus   func(msg string)
}

type Runner struct {
	repo     clip.Repository
	catalog  *lut.Catalog
	planner  *Planner
	encoder  Encoder
	comp     *compositor.Compositor
	store    Store
	trashDir string
	logger   *slog.Logger
	cb       Callbacks

	running   atomic.Bool
	cancelled atomic.Bool
	currentID atomic.Value // string
}

func NewRunner(repo clip.Repository, catalog *lut.Catalog, planner *Planner, encoder Encoder, comp *compositor.Compositor, store Store, trashDir string, cb Callbacks, logger *slog.Logger) *Runner {
	r := &Runner{
		repo:     repo,
		catalog:  catalog,
		planner:  planner,
		encoder:  encoder,
		comp:     comp,
		store:    store,
		trashDir: trashDir,
		logger:   logger,
		cb:       cb,
	}
	r.currentID.Store("")
	return r
}

func (r *Runner) IsRunning() bool { return r.running.Load() }

// CurrentJobID returns the id of the running job, or "".
func (r *Runner) CurrentJobID() string {
	id, _ := r.currentID.Load().(string)
	return id
}

// Cancel requests a cooperative stop. The clip being processed finishes;
// everything after it is skipped.
func (r *Runner) Cancel() {
	if r.running.Load() {
		r.cancelled.Store(true)
		r.logger.Info("export cancellation requested", "job_id", r.CurrentJobID())
	}
}

// Start plans a job from the current catalog state, persists it and runs
// it on a worker goroutine. Only one job runs at a time.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	if req.Mode != ModeTest && req.Mode != ModeCull {
		return "", fmt.Errorf("unknown export mode %q", req.Mode)
	}
	if req.Mode == ModeTest {
		if err := ValidateOutputDir(req.OutputDir); err != nil {
			return "", err
		}
	}

	if r.running.Swap(true) {
		return "", ErrJobRunning
	}
	r.cancelled.Store(false)

	clips, err := r.repo.List(ctx)
	if err != nil {
		r.running.Store(false)
		return "", fmt.Errorf("list clips: %w", err)
	}

	selected := r.selectClips(req.Mode, clips)
	job := Job{
		ID:     uuid.NewString(),
		Mode:   req.Mode,
		Status: JobRunning,
		Total:  len(selected),
	}
	items := make([]Item, 0, len(selected))
	for _, c := range selected {
		items = append(items, Item{
			JobID:    job.ID,
			ClipID:   c.ID,
			Filename: c.Filename,
			Status:   ItemPending,
		})
	}
	if err := r.store.CreateJob(ctx, job, items); err != nil {
		r.running.Store(false)
		return "", fmt.Errorf("persist job: %w", err)
	}
	r.currentID.Store(job.ID)

	go r.run(job, selected, req)

	r.logger.Info("export job started", "job_id", job.ID, "mode", req.Mode, "clips", len(selected))
	return job.ID, nil
}

// selectClips applies the mode filter. Test mode keeps only clips with
// an actual change; cull mode takes every clip that is flagged or has
// pending work.
func (r *Runner) selectClips(mode Mode, clips []*clip.Clip) []*clip.Clip {
	var out []*clip.Clip
	for _, c := range clips {
		switch mode {
		case ModeTest:
			if c.HasPendingWork() {
				out = append(out, c)
			}
		case ModeCull:
			if c.FlaggedForDelete || c.HasPendingWork() {
				out = append(out, c)
			}
		}
	}
	return out
}

func (r *Runner) run(job Job, clips []*clip.Clip, req Request) {
	ctx := context.Background()
	defer func() {
		r.currentID.Store("")
		r.running.Store(false)
	}()

	total := len(clips)
	completed := 0
	var failures []string
	cancelled := false

	// Cull mode trashes flagged clips in a distinct phase that runs
	// strictly before any processing, so a trash failure never leaves
	// half-processed survivors behind it.
	remaining := clips
	if job.Mode == ModeCull {
		remaining = remaining[:0:0]
		for _, c := range clips {
			if !c.FlaggedForDelete {
				remaining = append(remaining, c)
				continue
			}
			r.status(fmt.Sprintf("Trashing %s", c.Filename))
			if err := r.trash(c); err != nil {
				r.itemFailed(ctx, job.ID, c, "", err)
				failures = append(failures, err.Error())
			} else {
				r.store.UpdateItem(ctx, job.ID, c.ID, "", ItemCompleted, "")
			}
			completed++
			r.progress(completed, total, c.Filename)
		}
	}

	for i, c := range remaining {
		if r.cancelled.Load() {
			cancelled = true
			for _, rest := range remaining[i:] {
				r.store.UpdateItem(ctx, job.ID, rest.ID, "", ItemSkipped, "cancelled")
			}
			break
		}

		r.status(fmt.Sprintf("Exporting %s", c.Filename))
		r.store.UpdateItem(ctx, job.ID, c.ID, "", ItemProcessing, "")

		strategy, err := r.processClip(ctx, c, req)
		if err != nil {
			encErr := &EncodeError{Clip: c.Filename, Err: err}
			r.itemFailed(ctx, job.ID, c, strategy, encErr)
			failures = append(failures, encErr.Error())
		} else {
			r.store.UpdateItem(ctx, job.ID, c.ID, strategy, ItemCompleted, "")
		}

		completed++
		r.progress(completed, total, c.Filename)
		r.store.UpdateJob(ctx, job.ID, JobRunning, completed, "")
	}

	status := JobCompleted
	errMsg := ""
	switch {
	case cancelled:
		status = JobCancelled
	case len(failures) > 0:
		status = JobFailedPartial
		errMsg = strings.Join(failures, "; ")
	}
	r.store.UpdateJob(ctx, job.ID, status, completed, errMsg)

	if status == JobCompleted {
		// Terminal progress event for natural completion only.
		r.progress(total, total, "")
	}
	r.status("")
	r.logger.Info("export job finished", "job_id", job.ID, "status", status, "completed", completed, "failures", len(failures))
}

// processClip runs one clip end to end and returns the strategy used.
// Partial output of a failed clip is removed, never left behind.
func (r *Runner) processClip(ctx context.Context, c *clip.Clip, req Request) (Strategy, error) {
	if _, err := os.Stat(c.Path); err != nil {
		return "", fmt.Errorf("source missing: %w", err)
	}

	strategy, err := r.planner.Plan(ctx, c)
	if err != nil {
		return "", err
	}

	dst, err := r.outputPath(c, req)
	if err != nil {
		return strategy, err
	}

	start, end := c.Trim.EffectiveRange(c.DurationSec)

	switch strategy {
	case StrategyPassthrough:
		err = r.encoder.Passthrough(ctx, c.Path, dst, start, end)
	case StrategyHighestQuality, StrategyReencodeFallback:
		var process FrameProcessor
		if c.BakeInLUT && c.SelectedLUT != "" {
			table, terr := r.catalog.TableFor(c.SelectedLUT)
			if terr != nil {
				return strategy, fmt.Errorf("load LUT %s: %w", c.SelectedLUT, terr)
			}
			process = r.comp.NewStream(table).Process
		}
		err = r.encoder.Reencode(ctx, c.Path, dst, start, end, process)
	default:
		err = fmt.Errorf("unknown strategy %q", strategy)
	}

	if err != nil {
		os.Remove(dst)
		return strategy, err
	}
	return strategy, nil
}

func (r *Runner) outputPath(c *clip.Clip, req Request) (string, error) {
	var dir string
	if req.Mode == ModeTest {
		dir = filepath.Join(req.OutputDir, "Culled")
	} else {
		dir = filepath.Dir(c.Path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return filepath.Join(dir, outputFilename(c.Filename)), nil
}

// trash moves a flagged clip into the trash directory; nothing is ever
// permanently deleted.
func (r *Runner) trash(c *clip.Clip) error {
	if err := os.MkdirAll(r.trashDir, 0755); err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}
	dst := filepath.Join(r.trashDir, filepath.Base(c.Path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(r.trashDir, uuid.NewString()[:8]+"_"+filepath.Base(c.Path))
	}
	if err := os.Rename(c.Path, dst); err != nil {
		return fmt.Errorf("trash %s: %w", c.Filename, err)
	}
	r.logger.Info("clip trashed", "clip_id", c.ID, "dst", logging.SanitizePath(dst))
	return nil
}

func (r *Runner) itemFailed(ctx context.Context, jobID string, c *clip.Clip, strategy Strategy, err error) {
	r.logger.Error("export item failed", "job_id", jobID, "clip_id", c.ID, "error", err)
	r.store.UpdateItem(ctx, jobID, c.ID, strategy, ItemFailed, err.Error())
}

func (r *Runner) progress(current, total int, filename string) {
	if r.cb.OnProgress != nil {
		r.cb.OnProgress(Progress{Current: current, Total: total, Filename: filename})
	}
}

func (r *Runner) status(msg string) {
	if r.cb.OnStatus != nil {
		r.cb.OnStatus(msg)
	}
}
