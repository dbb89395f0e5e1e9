package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matchframe/mf-clips/internal/timing"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		ms       int64
		expected string
	}{
		{0, "00:00:00.000"},
		{1370000, "00:22:50.000"},
		{3661500, "01:01:01.500"},
		{59999, "00:00:59.999"},
		{-500, "00:00:00.000"},
	}
	for _, tc := range tests {
		if got := FormatTimestamp(tc.ms); got != tc.expected {
			t.Errorf("FormatTimestamp(%d) = %q; want %q", tc.ms, got, tc.expected)
		}
	}
}

func TestEscapeDrawtext(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"score: 2-1", `score\: 2-1`},
		{`back\slash`, `back\\slash`},
		{"keeper's save", `keeper\\\'s save`},
		{"100% effort", `100\% effort`},
	}
	for _, tc := range tests {
		if got := EscapeDrawtext(tc.input); got != tc.expected {
			t.Errorf("EscapeDrawtext(%q) = %q; want %q", tc.input, got, tc.expected)
		}
	}
}

func TestCaptionFilter(t *testing.T) {
	c := &Caption{Minute: 23, Label: "goal", Description: "header from the corner"}
	filter := CaptionFilter(c)

	if !strings.Contains(filter, `23' | GOAL`) && !strings.Contains(filter, `23\\\' | GOAL`) {
		t.Errorf("filter missing top banner text: %s", filter)
	}
	if strings.Count(filter, "drawtext=") != 2 {
		t.Errorf("expected two drawtext overlays, got: %s", filter)
	}
	if !strings.Contains(filter, "header from the corner") {
		t.Errorf("filter missing description banner: %s", filter)
	}

	// No description means a single overlay.
	single := CaptionFilter(&Caption{Minute: 5, Label: "foul"})
	if strings.Count(single, "drawtext=") != 1 {
		t.Errorf("expected one drawtext overlay, got: %s", single)
	}
}

func TestCopyVsEncodeArgs(t *testing.T) {
	w := timing.Window{StartMs: 1370000, DurationMs: 35000}

	cp := copyArgs("in.mp4", "out.mp4", w)
	require.Contains(t, cp, "-c")
	require.Contains(t, cp, "copy")
	require.NotContains(t, cp, "-vf")
	require.Contains(t, cp, "00:22:50.000")

	enc := encodeArgs("in.mp4", "out.mp4", w, &Caption{Minute: 23, Label: "goal"})
	require.Contains(t, enc, "-vf")
	require.Contains(t, enc, "libx264")
	require.Contains(t, enc, "ultrafast")
	require.NotContains(t, enc, "copy")
}

func TestFetch_HTTP(t *testing.T) {
	payload := []byte("not really a video but bytes nonetheless")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "source.mp4")
	path, err := Fetch(context.Background(), srv.Client(), srv.URL+"/video.mp4", dest)
	require.NoError(t, err)
	require.Equal(t, dest, path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "source.mp4")
	_, err := Fetch(context.Background(), srv.Client(), srv.URL+"/missing.mp4", dest)
	require.ErrorIs(t, err, ErrDownload)
}

func TestFetch_LocalPath(t *testing.T) {
	src := filepath.Join(t.TempDir(), "staged.mp4")
	require.NoError(t, os.WriteFile(src, []byte("bytes"), 0o644))

	path, err := Fetch(context.Background(), http.DefaultClient, src, filepath.Join(t.TempDir(), "unused.mp4"))
	require.NoError(t, err)
	require.Equal(t, src, path)

	_, err = Fetch(context.Background(), http.DefaultClient, filepath.Join(t.TempDir(), "nope.mp4"), "unused")
	require.ErrorIs(t, err, ErrDownload)
}
