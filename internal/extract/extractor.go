package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/matchframe/mf-clips/internal/engine"
	"github.com/matchframe/mf-clips/internal/timing"
)

// Caption is the optional burned-in overlay: a top banner with minute and
// category label, and an optional free-text bottom banner.
type Caption struct {
	Minute      int
	Label       string
	Description string
}

// Extractor trims a window out of a staged source file inside an engine
// session. Two paths: stream copy when no caption is wanted (lossless, no
// filter graph), re-encode with drawtext overlays when one is.
type Extractor struct {
	Engine *engine.Engine
}

// Extract writes the trimmed clip into the session and returns its path.
// The file lives in the session's temp dir and disappears on Release.
func (x *Extractor) Extract(ctx context.Context, s *engine.Session, sourcePath string, w timing.Window, caption *Caption) (string, error) {
	outPath := s.Path("clip.mp4")

	var args []string
	if caption == nil {
		args = copyArgs(sourcePath, outPath, w)
	} else {
		args = encodeArgs(sourcePath, outPath, w, caption)
	}

	if err := s.RunFFmpeg(ctx, args...); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outPath)
		return "", fmt.Errorf("%w: empty output", ErrExtraction)
	}
	return outPath, nil
}

// copyArgs: seek + duration-bounded stream copy.
func copyArgs(in, out string, w timing.Window) []string {
	return []string{
		"-ss", FormatTimestamp(w.StartMs),
		"-i", in,
		"-t", FormatTimestamp(w.DurationMs),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		out,
	}
}

// encodeArgs: re-encode with the caption filter graph. crf 23 and the
// fastest preset keep the burn-in path tolerable on broadcast-length clips;
// audio is re-encoded at a fixed bitrate since stream copy is off the table.
func encodeArgs(in, out string, w timing.Window, c *Caption) []string {
	return []string{
		"-ss", FormatTimestamp(w.StartMs),
		"-i", in,
		"-t", FormatTimestamp(w.DurationMs),
		"-vf", CaptionFilter(c),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		out,
	}
}

// CaptionFilter builds the drawtext chain: a centered top banner
// "{minute}' | {LABEL}" on a semi-opaque box, plus a smaller bottom banner
// when a description exists.
func CaptionFilter(c *Caption) string {
	top := fmt.Sprintf("%d' | %s", c.Minute, strings.ToUpper(c.Label))
	filter := fmt.Sprintf(
		"drawtext=text='%s':fontsize=36:fontcolor=white:x=(w-text_w)/2:y=40:box=1:boxcolor=black@0.6:boxborderw=14",
		EscapeDrawtext(top),
	)
	if c.Description != "" {
		filter += fmt.Sprintf(
			",drawtext=text='%s':fontsize=24:fontcolor=white:x=(w-text_w)/2:y=h-text_h-40:box=1:boxcolor=black@0.6:boxborderw=10",
			EscapeDrawtext(c.Description),
		)
	}
	return filter
}

// EscapeDrawtext escapes the characters drawtext treats as syntax. An
// unescaped quote or colon in a free-text description corrupts the whole
// filter graph.
var drawtextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\\\'`,
	`:`, `\:`,
	`%`, `\%`,
)

func EscapeDrawtext(s string) string {
	return drawtextEscaper.Replace(s)
}

// FormatTimestamp renders milliseconds as an HH:MM:SS.mmm ffmpeg timestamp.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, frac)
}
