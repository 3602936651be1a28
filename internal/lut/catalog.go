package lut

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	OriginBundled = "bundled"
	OriginUser    = "user"
)

var (
	// ErrBuiltinLocked is returned when deletion of a bundled entry is attempted.
	ErrBuiltinLocked = errors.New("bundled LUT entries cannot be deleted")
	// ErrEntryNotFound is returned when a LUT identifier resolves to nothing.
	ErrEntryNotFound = errors.New("lut entry not found")
)

// Entry is one catalog entry. The backing table is parsed at most once,
// on first use; a parsed Entry is immutable and safe to share.
type Entry struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Origin      string    `json:"origin"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"created_at"`

	once     sync.Once
	table    *Table
	parseErr error
}

// Table parses the backing .cube file on first call and returns the cached
// result afterwards. A parse failure is sticky for the entry's lifetime.
func (e *Entry) Table() (*Table, error) {
	e.once.Do(func() {
		e.table, e.parseErr = ParseFile(e.Path)
	})
	if e.parseErr != nil {
		return nil, fmt.Errorf("lut %q: %w", e.DisplayName, e.parseErr)
	}
	return e.table, nil
}

// PreferenceEvent is delivered synchronously to subscribers after a learned
// preference has been committed to durable storage.
type PreferenceEvent struct {
	Gamma      string
	Primaries  string
	ProfileKey string
	LUTID      string
	LUTName    string
}

// Catalog holds the set of available LUTs and the learned camera-profile
// preferences. Reads are concurrent; mutation happens only on explicit
// user import/learn/delete actions.
type Catalog struct {
	store  Store
	logger *slog.Logger

	bundledDir string
	userDir    string

	mu          sync.RWMutex
	entries     map[string]*Entry // by id
	subscribers map[string]func(PreferenceEvent)
}

func NewCatalog(store Store, bundledDir, userDir string, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:       store,
		logger:      logger,
		bundledDir:  bundledDir,
		userDir:     userDir,
		entries:     make(map[string]*Entry),
		subscribers: make(map[string]func(PreferenceEvent)),
	}
}

// Load enumerates bundled and user LUT directories, registering files that
// are not yet known. Parsing is deferred to first use, so Load never blocks
// on reading cube bodies. Unreadable files are skipped with a warning, not
// a load failure.
func (c *Catalog) Load(ctx context.Context) error {
	stored, err := c.store.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored lut entries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byPath := make(map[string]*Entry)
	for _, e := range stored {
		c.entries[e.ID] = e
		byPath[e.Path] = e
	}

	register := func(dir, origin string) {
		files, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) && c.logger != nil {
				c.logger.Warn("failed to read lut dir", "dir", dir, "error", err)
			}
			return
		}
		for _, f := range files {
			if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), ".cube") {
				continue
			}
			path := filepath.Join(dir, f.Name())
			if _, ok := byPath[path]; ok {
				continue
			}
			e := &Entry{
				ID:          uuid.NewString(),
				DisplayName: strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())),
				Origin:      origin,
				Path:        path,
				CreatedAt:   time.Now(),
			}
			if err := c.store.InsertEntry(ctx, e); err != nil {
				if c.logger != nil {
					c.logger.Warn("failed to persist lut entry", "path", path, "error", err)
				}
				continue
			}
			c.entries[e.ID] = e
			byPath[path] = e
		}
	}

	register(c.bundledDir, OriginBundled)
	register(c.userDir, OriginUser)

	if c.logger != nil {
		c.logger.Info("lut catalog loaded", "entries", len(c.entries))
	}
	return nil
}

// Entries returns a snapshot of the catalog sorted by display name.
func (c *Catalog) Entries() []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Get returns the entry for an identifier, or nil when unknown.
func (c *Catalog) Get(id string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id]
}

// TableFor resolves an identifier to a parsed table. An empty identifier
// means "no LUT" and yields (nil, nil).
func (c *Catalog) TableFor(id string) (*Table, error) {
	if id == "" {
		return nil, nil
	}
	e := c.Get(id)
	if e == nil {
		return nil, ErrEntryNotFound
	}
	return e.Table()
}

// FindBestMatch resolves a camera profile to a catalog entry. Priority:
// learned user preference for the exact normalized key, then the built-in
// profile table (exact gamma+primaries beats gamma-only), then nil.
// Matching is deterministic for an unchanged catalog and preference store.
func (c *Catalog) FindBestMatch(ctx context.Context, gamma, primaries string) (*Entry, error) {
	ng := NormalizeProfileToken(gamma)
	np := NormalizeProfileToken(primaries)
	if ng == "" && np == "" {
		return nil, nil
	}

	pref, err := c.store.GetPreference(ctx, ng+"|"+np)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		if e := c.Get(pref.LUTID); e != nil {
			return e, nil
		}
		if c.logger != nil {
			c.logger.Warn("learned preference references missing lut", "lut_id", pref.LUTID)
		}
	}

	name := matchBuiltin(ng, np)
	if name == "" {
		return nil, nil
	}
	return c.findByName(name), nil
}

func (c *Catalog) findByName(name string) *Entry {
	want := NormalizeProfileToken(name)
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Entry
	for _, e := range c.entries {
		if NormalizeProfileToken(e.DisplayName) != want {
			continue
		}
		// Deterministic tie-break across map iteration order.
		if best == nil || e.ID < best.ID {
			best = e
		}
	}
	return best
}

// LearnPreference upserts the camera-profile preference for the given
// entry and then notifies subscribers synchronously. The write-through to
// durable storage completes before the first subscriber runs, so cascade
// handlers always re-read a committed preference.
func (c *Catalog) LearnPreference(ctx context.Context, gamma, primaries, entryID string) error {
	entry := c.Get(entryID)
	if entry == nil {
		return ErrEntryNotFound
	}

	key := ProfileKey(gamma, primaries)
	pref := &Preference{
		ProfileKey: key,
		LUTID:      entry.ID,
		LUTName:    entry.DisplayName,
		LearnedAt:  time.Now(),
	}
	if err := c.store.UpsertPreference(ctx, pref); err != nil {
		return fmt.Errorf("failed to persist preference: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("camera-profile preference learned",
			"profile_key", key, "lut_id", entry.ID, "lut_name", entry.DisplayName)
	}

	event := PreferenceEvent{
		Gamma:      gamma,
		Primaries:  primaries,
		ProfileKey: key,
		LUTID:      entry.ID,
		LUTName:    entry.DisplayName,
	}

	c.mu.RLock()
	subs := make([]func(PreferenceEvent), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(event)
	}
	return nil
}

// Subscribe registers a cascade callback under the given key, replacing
// any previous registration for that key.
func (c *Catalog) Subscribe(key string, fn func(PreferenceEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers[key] = fn
}

// Unsubscribe removes the cascade callback registered under key.
func (c *Catalog) Unsubscribe(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribers, key)
}

// Import validates the cube data, writes it into the user LUT directory
// and registers a new user-origin entry. The parse happens before any file
// is written so a malformed upload leaves no trace.
func (c *Catalog) Import(ctx context.Context, name string, data []byte) (*Entry, error) {
	if _, err := Parse(strings.NewReader(string(data))); err != nil {
		return nil, err
	}

	base := sanitizeFilename(name)
	if base == "" {
		base = "imported"
	}
	if err := os.MkdirAll(c.userDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create user lut dir: %w", err)
	}

	path := filepath.Join(c.userDir, base+".cube")
	for i := 2; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(c.userDir, fmt.Sprintf("%s-%d.cube", base, i))
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write lut file: %w", err)
	}

	e := &Entry{
		ID:          uuid.NewString(),
		DisplayName: base,
		Origin:      OriginUser,
		Path:        path,
		CreatedAt:   time.Now(),
	}
	if err := c.store.InsertEntry(ctx, e); err != nil {
		os.Remove(path)
		return nil, err
	}

	c.mu.Lock()
	c.entries[e.ID] = e
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("lut imported", "lut_id", e.ID, "name", e.DisplayName)
	}
	return e, nil
}

// Delete removes a user-imported entry and its backing file. Bundled
// entries are locked and fail with ErrBuiltinLocked.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	e := c.Get(id)
	if e == nil {
		return ErrEntryNotFound
	}
	if e.Origin == OriginBundled {
		return ErrBuiltinLocked
	}

	if err := c.store.DeleteEntry(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()

	if err := os.Remove(e.Path); err != nil && !os.IsNotExist(err) {
		if c.logger != nil {
			c.logger.Warn("failed to remove lut file", "path", e.Path, "error", err)
		}
	}
	return nil
}

// Preferences returns all learned camera-profile preferences.
func (c *Catalog) Preferences(ctx context.Context) ([]*Preference, error) {
	return c.store.ListPreferences(ctx)
}

func sanitizeFilename(s string) string {
	s = strings.TrimSuffix(s, filepath.Ext(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ' || r == '.':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
