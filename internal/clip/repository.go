package clip

import (
	"context"
	"database/sql"
	"time"

	"github.com/framecull/framecull-agent/internal/lut"
)

type Repository interface {
	Get(ctx context.Context, id string) (*Clip, error)
	List(ctx context.Context) ([]*Clip, error)
	Upsert(ctx context.Context, c *Clip) error
	UpdateTrim(ctx context.Context, id string, trim Trim) error
	UpdateLUTSelection(ctx context.Context, id, lutID string, bake bool) error
	UpdateSelectedLUT(ctx context.Context, id, lutID string) error
	UpdateFlagged(ctx context.Context, id string, flagged bool) error
	ListByProfile(ctx context.Context, gamma, primaries string) ([]*Clip, error)
	Count(ctx context.Context) (int, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const clipColumns = `id, path, filename, duration_sec, trim_start, trim_end,
	selected_lut, bake_in_lut, flagged_for_deletion, camera_gamma, camera_primaries,
	created_at, updated_at`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Clip, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+clipColumns+` FROM clips WHERE id = ?
	`, id)
	return scanClipRow(row)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clipColumns+` FROM clips ORDER BY filename
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClipRows(rows)
}

func (r *SQLiteRepository) ListByProfile(ctx context.Context, gamma, primaries string) ([]*Clip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+clipColumns+` FROM clips
		WHERE camera_gamma IS NOT NULL AND camera_primaries IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// Profile matching is normalization-aware, so filtering happens in Go
	// rather than SQL string equality.
	all, err := scanClipRows(rows)
	if err != nil {
		return nil, err
	}
	var out []*Clip
	for _, c := range all {
		if lut.NormalizeProfileToken(c.CameraGamma) == lut.NormalizeProfileToken(gamma) &&
			lut.NormalizeProfileToken(c.CameraPrimaries) == lut.NormalizeProfileToken(primaries) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, c *Clip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clips (id, path, filename, duration_sec, trim_start, trim_end,
			selected_lut, bake_in_lut, flagged_for_deletion, camera_gamma, camera_primaries,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			filename = excluded.filename,
			duration_sec = excluded.duration_sec,
			camera_gamma = excluded.camera_gamma,
			camera_primaries = excluded.camera_primaries,
			updated_at = excluded.updated_at
	`, c.ID, c.Path, c.Filename, c.DurationSec, c.Trim.Start, c.Trim.End,
		c.SelectedLUT, boolToInt(c.BakeInLUT), boolToInt(c.FlaggedForDelete),
		nullString(c.CameraGamma), nullString(c.CameraPrimaries),
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) UpdateTrim(ctx context.Context, id string, trim Trim) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET trim_start = ?, trim_end = ?, updated_at = datetime('now') WHERE id = ?
	`, trim.Start, trim.End, id)
	return err
}

func (r *SQLiteRepository) UpdateLUTSelection(ctx context.Context, id, lutID string, bake bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET selected_lut = ?, bake_in_lut = ?, updated_at = datetime('now') WHERE id = ?
	`, lutID, boolToInt(bake), id)
	return err
}

func (r *SQLiteRepository) UpdateSelectedLUT(ctx context.Context, id, lutID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET selected_lut = ?, updated_at = datetime('now') WHERE id = ?
	`, lutID, id)
	return err
}

func (r *SQLiteRepository) UpdateFlagged(ctx context.Context, id string, flagged bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE clips SET flagged_for_deletion = ?, updated_at = datetime('now') WHERE id = ?
	`, boolToInt(flagged), id)
	return err
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clips").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClip(row rowScanner) (*Clip, error) {
	var c Clip
	var bake, flagged int
	var gamma, primaries sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.Path, &c.Filename, &c.DurationSec,
		&c.Trim.Start, &c.Trim.End, &c.SelectedLUT, &bake, &flagged,
		&gamma, &primaries, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.BakeInLUT = bake == 1
	c.FlaggedForDelete = flagged == 1
	c.CameraGamma = gamma.String
	c.CameraPrimaries = primaries.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

func scanClipRow(row *sql.Row) (*Clip, error) {
	c, err := scanClip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func scanClipRows(rows *sql.Rows) ([]*Clip, error) {
	var clips []*Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
