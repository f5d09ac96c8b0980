// Package naming builds safe output file names for conversions whose caller
// did not pick a destination.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	maxNameLen  = 80
	idPrefixLen = 8
)

func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// ValidateOutputDir accepts only clean, existing directories.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output_dir is required")
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output_dir cannot contain path traversal")
		}
	}

	if filepath.Clean(dir) != dir {
		return fmt.Errorf("output_dir must be clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("output_dir does not exist")
		}
		return fmt.Errorf("invalid output_dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output_dir is not a directory")
	}

	return nil
}

// OutputPath names a GIF <name>-<id prefix>.gif inside dir. An empty name
// falls back to the input file's base name without its extension.
func OutputPath(dir, name, input, jobID string) string {
	base := SanitizeName(name, maxNameLen)
	if base == "" {
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		base = SanitizeName(stem, maxNameLen)
	}
	base = strings.TrimSuffix(base, ".gif")
	if base == "" || base == "." {
		base = "clip"
	}

	id := jobID
	if len(id) > idPrefixLen {
		id = id[:idPrefixLen]
	}
	return filepath.Join(dir, base+"-"+id+".gif")
}
