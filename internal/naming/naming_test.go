package naming

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
	got := SanitizeName("cut/<scene>:1", 100)
	if got != "cut__scene__1" {
		t.Fatalf("SanitizeName disallowed replacement mismatch: got %q", got)
	}
}

func TestValidateOutputDir(t *testing.T) {
	tmp := t.TempDir()
	filePath := filepath.Join(tmp, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	tests := []struct {
		name    string
		dir     string
		wantErr bool
	}{
		{"existing dir", tmp, false},
		{"empty", "  ", true},
		{"missing", filepath.Join(tmp, "missing"), true},
		{"traversal", "/tmp/../etc", true},
		{"unclean", tmp + "/", true},
		{"not a dir", filePath, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputDir(tt.dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputDir(%q) error = %v, wantErr %v", tt.dir, err, tt.wantErr)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	const id = "3f2a9c1e-0b7d-4c55-9a61-2d8f0e4b7c10"

	tests := []struct {
		name  string
		label string
		input string
		want  string
	}{
		{"explicit name", "my clip", "/v/in.mp4", "/out/my clip-3f2a9c1e.gif"},
		{"name with gif suffix", "loop.gif", "/v/in.mp4", "/out/loop-3f2a9c1e.gif"},
		{"input base", "", "/videos/Holiday 2024.mov", "/out/Holiday 2024-3f2a9c1e.gif"},
		{"unsafe name", "a/b", "/v/in.mp4", "/out/a_b-3f2a9c1e.gif"},
		{"nothing usable", "", "","/out/clip-3f2a9c1e.gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputPath("/out", tt.label, tt.input, id)
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}
