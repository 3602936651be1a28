package clip

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/framecull/framecull-agent/internal/db"
	"github.com/framecull/framecull-agent/internal/lut"
)

const testCube = `LUT_3D_SIZE 2
0 0 0
1 0 0
0 1 0
1 1 0
0 0 1
1 0 1
0 1 1
1 1 1
`

func setupService(t *testing.T) (*Service, *lut.Catalog, string) {
	t.Helper()
	tmp := t.TempDir()

	database, err := db.New(filepath.Join(tmp, "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	userDir := filepath.Join(tmp, "user")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}

	catalog := lut.NewCatalog(lut.NewStore(database.Conn()), filepath.Join(tmp, "bundled"), userDir, nil)
	if err := catalog.Load(context.Background()); err != nil {
		t.Fatalf("catalog load: %v", err)
	}

	repo := NewRepository(database.Conn())
	svc := NewService(repo, catalog, nil)
	t.Cleanup(svc.Close)
	return svc, catalog, userDir
}

func TestService_RegisterAndGet(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, "/media/A001.mp4", 12.5, "S-Log3", "S-Gamut3.Cine")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if c.ID != NewID("/media/A001.mp4") {
		t.Errorf("id not path-derived: %s", c.ID)
	}
	if !c.Trim.IsDefault() {
		t.Errorf("new clip trim should be default sentinel, got %+v", c.Trim)
	}

	got, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.Filename != "A001.mp4" {
		t.Fatalf("Get() = %+v", got)
	}
}

func TestService_RegisterPreservesEdits(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, "/media/B002.mp4", 10, "", "")
	if err != nil {
		t.Fatal(err)
	}

	trim := Trim{}.SetStart(0.2).SetEnd(0.8)
	if _, err := svc.CommitTrim(ctx, c.ID, trim); err != nil {
		t.Fatalf("CommitTrim() error = %v", err)
	}

	// Re-registration (rescan) must not clobber the committed trim.
	again, err := svc.Register(ctx, "/media/B002.mp4", 10, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if again.Trim != trim {
		t.Errorf("rescan clobbered trim: got %+v, want %+v", again.Trim, trim)
	}
}

func TestService_CommitTrimRejectsInvalid(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, "/media/C003.mp4", 10, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CommitTrim(ctx, c.ID, Trim{Start: 0.9, End: 0.2}); err == nil {
		t.Error("CommitTrim() should reject inverted range")
	}
	if _, err := svc.CommitTrim(ctx, "missing", Trim{Start: 0, End: 1}); err != ErrClipNotFound {
		t.Errorf("CommitTrim() on missing clip = %v, want ErrClipNotFound", err)
	}
}

func TestService_CommitLUTSelection(t *testing.T) {
	svc, catalog, userDir := setupService(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(userDir, "Look.cube"), []byte(testCube), 0644); err != nil {
		t.Fatal(err)
	}
	if err := catalog.Load(ctx); err != nil {
		t.Fatal(err)
	}
	entry := catalog.Entries()[0]

	c, err := svc.Register(ctx, "/media/D004.mp4", 10, "", "")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := svc.CommitLUTSelection(ctx, c.ID, entry.ID, true)
	if err != nil {
		t.Fatalf("CommitLUTSelection() error = %v", err)
	}
	if updated.SelectedLUT != entry.ID || !updated.BakeInLUT {
		t.Errorf("selection not applied: %+v", updated)
	}

	if _, err := svc.CommitLUTSelection(ctx, c.ID, "nonexistent", false); err != lut.ErrEntryNotFound {
		t.Errorf("unknown lut = %v, want ErrEntryNotFound", err)
	}
}

func TestService_CascadePropagation(t *testing.T) {
	svc, catalog, userDir := setupService(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(userDir, "Look.cube"), []byte(testCube), 0644); err != nil {
		t.Fatal(err)
	}
	if err := catalog.Load(ctx); err != nil {
		t.Fatal(err)
	}
	entry := catalog.Entries()[0]

	// Three clips share the profile (with spelling variants); one does not.
	a, _ := svc.Register(ctx, "/media/E1.mp4", 10, "S-Log3", "S-Gamut3.Cine")
	b, _ := svc.Register(ctx, "/media/E2.mp4", 10, "s-log3", "s.gamut3.cine")
	d, _ := svc.Register(ctx, "/media/E3.mp4", 10, "s log3", "S GAMUT3 CINE")
	other, _ := svc.Register(ctx, "/media/E4.mp4", 10, "V-Log", "V-Gamut")

	if _, err := svc.CommitLUTSelection(ctx, a.ID, entry.ID, false); err != nil {
		t.Fatalf("CommitLUTSelection() error = %v", err)
	}

	for _, id := range []string{a.ID, b.ID, d.ID} {
		got, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.SelectedLUT != entry.ID {
			t.Errorf("clip %s selected_lut = %q, want %q (cascade)", id, got.SelectedLUT, entry.ID)
		}
	}

	unrelated, err := svc.Get(ctx, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if unrelated.SelectedLUT == entry.ID {
		t.Error("cascade must not touch clips with a different profile")
	}
}

func TestService_SetFlagged(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, "/media/F005.mp4", 10, "", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SetFlagged(ctx, c.ID, true); err != nil {
		t.Fatalf("SetFlagged() error = %v", err)
	}
	got, _ := svc.Get(ctx, c.ID)
	if !got.FlaggedForDelete {
		t.Error("flag not persisted")
	}
}
