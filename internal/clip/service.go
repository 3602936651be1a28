package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/framecull/framecull-agent/internal/lut"
)

var (
	ErrClipNotFound = errors.New("clip not found")
	ErrInvalidTrim  = errors.New("invalid trim range")
)

// cascadeSubscriberKey identifies the service's own catalog subscription.
const cascadeSubscriberKey = "clip-service"

// Service owns clip record mutation. Trim and LUT changes go through the
// explicit Commit* methods, called on discrete user actions (drag release,
// dropdown selection), never on intermediate drag values, so persistence
// cannot feed back into in-flight interaction state.
type Service struct {
	repo    Repository
	catalog *lut.Catalog
	logger  *slog.Logger
}

func NewService(repo Repository, catalog *lut.Catalog, logger *slog.Logger) *Service {
	s := &Service{repo: repo, catalog: catalog, logger: logger}
	if catalog != nil {
		catalog.Subscribe(cascadeSubscriberKey, s.onPreferenceLearned)
	}
	return s
}

// Close detaches the service from catalog cascade events.
func (s *Service) Close() {
	if s.catalog != nil {
		s.catalog.Unsubscribe(cascadeSubscriberKey)
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Clip, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Clip, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Register upserts a clip record supplied by the scanning collaborator.
// New records start with the full-range trim sentinel (0, 0). A matching
// camera-profile LUT is assigned up front when the catalog knows one and
// the record has no selection yet.
func (s *Service) Register(ctx context.Context, path string, durationSec float64, gamma, primaries string) (*Clip, error) {
	id := NewID(path)

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	c := &Clip{
		ID:              id,
		Path:            path,
		Filename:        filepath.Base(path),
		DurationSec:     durationSec,
		CameraGamma:     gamma,
		CameraPrimaries: primaries,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing != nil {
		c.Trim = existing.Trim
		c.SelectedLUT = existing.SelectedLUT
		c.BakeInLUT = existing.BakeInLUT
		c.FlaggedForDelete = existing.FlaggedForDelete
		c.CreatedAt = existing.CreatedAt
	}

	if c.SelectedLUT == "" && s.catalog != nil && (gamma != "" || primaries != "") {
		if match, err := s.catalog.FindBestMatch(ctx, gamma, primaries); err == nil && match != nil {
			c.SelectedLUT = match.ID
		}
	}

	if err := s.repo.Upsert(ctx, c); err != nil {
		return nil, err
	}
	if existing != nil && c.SelectedLUT != existing.SelectedLUT {
		if err := s.repo.UpdateSelectedLUT(ctx, c.ID, c.SelectedLUT); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CommitTrim persists a trim range. This is the discrete commit point of
// the editing contract: the caller clamps via Trim.SetStart/SetEnd during
// the drag and commits once on release.
func (s *Service) CommitTrim(ctx context.Context, id string, trim Trim) (*Clip, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrClipNotFound
	}
	if !trim.Valid() {
		return nil, fmt.Errorf("%w: start=%g end=%g", ErrInvalidTrim, trim.Start, trim.End)
	}

	if err := s.repo.UpdateTrim(ctx, id, trim); err != nil {
		return nil, err
	}
	c.Trim = trim

	if s.logger != nil {
		s.logger.Info("trim committed", "clip_id", id, "start", trim.Start, "end", trim.End)
	}
	return c, nil
}

// CommitLUTSelection persists a LUT selection and bake flag. When the clip
// carries camera metadata the selection is also learned as the profile
// preference, which cascades to every loaded clip sharing the profile.
func (s *Service) CommitLUTSelection(ctx context.Context, id, lutID string, bake bool) (*Clip, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrClipNotFound
	}

	if lutID != "" && s.catalog != nil && s.catalog.Get(lutID) == nil {
		return nil, lut.ErrEntryNotFound
	}

	if err := s.repo.UpdateLUTSelection(ctx, id, lutID, bake); err != nil {
		return nil, err
	}
	c.SelectedLUT = lutID
	c.BakeInLUT = bake

	if s.logger != nil {
		s.logger.Info("lut selection committed", "clip_id", id, "lut_id", lutID, "bake", bake)
	}

	if lutID != "" && s.catalog != nil && c.CameraGamma != "" && c.CameraPrimaries != "" {
		if err := s.catalog.LearnPreference(ctx, c.CameraGamma, c.CameraPrimaries, lutID); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to learn lut preference", "clip_id", id, "error", err)
			}
		}
	}
	return c, nil
}

// SetFlagged marks or unmarks a clip for deletion during cull-in-place.
func (s *Service) SetFlagged(ctx context.Context, id string, flagged bool) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrClipNotFound
	}
	return s.repo.UpdateFlagged(ctx, id, flagged)
}

// onPreferenceLearned is the cascade handler: every loaded clip sharing the
// learned profile gets its selected-LUT field updated without a rescan.
func (s *Service) onPreferenceLearned(ev lut.PreferenceEvent) {
	ctx := context.Background()

	clips, err := s.repo.ListByProfile(ctx, ev.Gamma, ev.Primaries)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("cascade lookup failed", "profile_key", ev.ProfileKey, "error", err)
		}
		return
	}

	updated := 0
	for _, c := range clips {
		if c.SelectedLUT == ev.LUTID {
			continue
		}
		if err := s.repo.UpdateSelectedLUT(ctx, c.ID, ev.LUTID); err != nil {
			if s.logger != nil {
				s.logger.Warn("cascade update failed", "clip_id", c.ID, "error", err)
			}
			continue
		}
		updated++
	}

	if s.logger != nil && updated > 0 {
		s.logger.Info("lut preference cascaded", "profile_key", ev.ProfileKey, "clips_updated", updated)
	}
}
