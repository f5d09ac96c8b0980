package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithJobID(WithComponent(New(&buf, "info", true), "runner"), "job-1")

	logger.Debug("hidden")
	logger.Info("job completed", "bytes", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "job completed", entry["msg"])
	assert.Equal(t, "runner", entry["component"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.EqualValues(t, 42, entry["bytes"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "warn", false).Warn("palette kept", "path", "/tmp/p.png")

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "path=/tmp/p.png")
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "****", SanitizeToken("short"))
	assert.Equal(t, "abcd...wxyz", SanitizeToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestSanitizePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	assert.Equal(t, filepath.Join("~", "videos", "a.mp4"), SanitizePath(filepath.Join(home, "videos", "a.mp4")))
	assert.Equal(t, "/srv/a.mp4", SanitizePath("/srv/a.mp4"))
	assert.Equal(t, home+"x/a.mp4", SanitizePath(home+"x/a.mp4"))
}
