package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeName_ControlChars(t *testing.T) {
	got := SanitizeName(" A\nB\rC\tD\x00 ", 100)
	if strings.ContainsAny(got, "\n\r\t\x00") {
		t.Fatalf("sanitize output contains control chars: %q", got)
	}
	if got != "ABCD" {
		t.Fatalf("SanitizeName control char behavior mismatch, got %q", got)
	}
}

func TestSanitizeName_MaxLength(t *testing.T) {
	got := SanitizeName("abcdefghijklmnopqrstuvwxyz", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected length 10, got %d (%q)", len([]rune(got)), got)
	}
}

func TestSanitizeName_ReplacesDisallowed(t *testing.T) {
	got := SanitizeName("bad<>|\"name", 100)
	if got != "bad____name" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestOutputFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip_culled.mp4"},
		{"A Roll 003.MOV", "A Roll 003_culled.MOV"},
		{"weird<name>.mp4", "weird_name__culled.mp4"},
	}
	for _, tc := range tests {
		if got := outputFilename(tc.in); got != tc.want {
			t.Errorf("outputFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateOutputDir(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateOutputDir(dir); err != nil {
		t.Fatalf("ValidateOutputDir(%q) error = %v, want nil", dir, err)
	}

	if err := ValidateOutputDir(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for non-existent path")
	}

	if err := ValidateOutputDir("/tmp/../etc"); err == nil {
		t.Fatal("expected traversal error")
	}

	filePath := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ValidateOutputDir(filePath); err == nil {
		t.Fatal("expected non-directory error")
	}
}
