package lut

import (
	"context"
	"database/sql"
	"time"
)

// Preference is one learned camera-profile → LUT mapping. At most one
// preference exists per normalized profile key.
type Preference struct {
	ProfileKey string    `json:"profile_key"`
	LUTID      string    `json:"lut_id"`
	LUTName    string    `json:"lut_name"`
	LearnedAt  time.Time `json:"learned_at"`
}

// Store persists catalog entries and learned preferences.
type Store interface {
	ListEntries(ctx context.Context) ([]*Entry, error)
	InsertEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id string) error

	GetPreference(ctx context.Context, profileKey string) (*Preference, error)
	UpsertPreference(ctx context.Context, p *Preference) error
	ListPreferences(ctx context.Context) ([]*Preference, error)
}

type SQLiteStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) ListEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, origin, path, created_at
		FROM lut_entries ORDER BY display_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.DisplayName, &e.Origin, &e.Path, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) InsertEntry(ctx context.Context, e *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lut_entries (id, display_name, origin, path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, e.ID, e.DisplayName, e.Origin, e.Path, e.CreatedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM lut_entries WHERE id = ?", id)
	return err
}

func (s *SQLiteStore) GetPreference(ctx context.Context, profileKey string) (*Preference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT profile_key, lut_id, lut_name, learned_at
		FROM camera_prefs WHERE profile_key = ?
	`, profileKey)

	var p Preference
	var learnedAt string
	err := row.Scan(&p.ProfileKey, &p.LUTID, &p.LUTName, &learnedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.LearnedAt, _ = time.Parse(time.RFC3339, learnedAt)
	return &p, nil
}

func (s *SQLiteStore) UpsertPreference(ctx context.Context, p *Preference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO camera_prefs (profile_key, lut_id, lut_name, learned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_key) DO UPDATE SET
			lut_id = excluded.lut_id,
			lut_name = excluded.lut_name,
			learned_at = excluded.learned_at
	`, p.ProfileKey, p.LUTID, p.LUTName, p.LearnedAt.Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) ListPreferences(ctx context.Context) ([]*Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_key, lut_id, lut_name, learned_at
		FROM camera_prefs ORDER BY profile_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []*Preference
	for rows.Next() {
		var p Preference
		var learnedAt string
		if err := rows.Scan(&p.ProfileKey, &p.LUTID, &p.LUTName, &learnedAt); err != nil {
			return nil, err
		}
		p.LearnedAt, _ = time.Parse(time.RFC3339, learnedAt)
		prefs = append(prefs, &p)
	}
	return prefs, rows.Err()
}
