package thumbnail

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/matchframe/mf-clips/internal/engine"
	"github.com/matchframe/mf-clips/internal/extract"
	"github.com/matchframe/mf-clips/internal/timing"
)

// Thumbnail generation is best-effort: a clip without a poster frame is still
// a clip. Synthesize returns nil bytes on any failure and never propagates an
// error into the clip path.

const (
	// Seek a short way into the clip so the frame lands after the pre-roll
	// buffer, closer to the actual event moment.
	seekOffsetSeconds = 3.0

	// Hard cap for the whole decode/seek/encode chain.
	synthesisTimeout = 20 * time.Second

	// Overlay sizes are scaled against this reference width.
	baselineWidth = 1280.0
)

// Meta carries what the badges render: the event category and match minute.
type Meta struct {
	Category string
	Minute   int
}

// Badge colors per category. Unknown categories fall back to the green/white
// pair so new event types degrade gracefully.
type badgeColor struct {
	Background string
	Text       string
}

var defaultColor = badgeColor{Background: "0x1F8A4C", Text: "white"}

var badgeColors = map[string]badgeColor{
	timing.CategoryGoal:       {Background: "0xC0392B", Text: "white"},
	timing.CategoryPenalty:    {Background: "0xC0392B", Text: "white"},
	timing.CategoryShot:       {Background: "0xE67E22", Text: "white"},
	timing.CategoryYellowCard: {Background: "0xF1C40F", Text: "black"},
	timing.CategoryRedCard:    {Background: "0xE74C3C", Text: "white"},
	timing.CategorySave:       {Background: "0x2980B9", Text: "white"},
	timing.CategoryCorner:     {Background: "0x8E44AD", Text: "white"},
	timing.CategoryFoul:       {Background: "0x7F8C8D", Text: "white"},
}

// Display labels for badge text. Categories without an entry render their
// raw name upper-cased with underscores spaced out.
var badgeLabels = map[string]string{
	timing.CategoryGoal:         "GOAL",
	timing.CategoryShot:         "SHOT",
	timing.CategoryShotOnTarget: "ON TARGET",
	timing.CategoryYellowCard:   "YELLOW CARD",
	timing.CategoryRedCard:      "RED CARD",
	timing.CategorySubstitution: "SUBSTITUTION",
	timing.CategoryPenalty:      "PENALTY",
	timing.CategoryFreeKick:     "FREE KICK",
	timing.CategorySave:         "SAVE",
	timing.CategoryCorner:       "CORNER",
	timing.CategoryFoul:         "FOUL",
}

func ColorFor(category string) (string, string) {
	if c, ok := badgeColors[category]; ok {
		return c.Background, c.Text
	}
	return defaultColor.Background, defaultColor.Text
}

func LabelFor(category string) string {
	if l, ok := badgeLabels[category]; ok {
		return l
	}
	return strings.ToUpper(strings.ReplaceAll(category, "_", " "))
}

// Synthesizer grabs one frame from a generated clip and composites badge
// overlays onto it in the ffmpeg filter graph.
type Synthesizer struct {
	Engine *engine.Engine
}

// Synthesize returns the encoded JPEG bytes, or nil when anything along the
// probe/seek/decode/encode chain fails or the timeout fires. The owning clip
// generation flow is never aborted by a thumbnail miss.
func (s *Synthesizer) Synthesize(ctx context.Context, clipPath string, meta Meta) []byte {
	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	out, err := s.synthesize(ctx, clipPath, meta)
	if err != nil {
		log.Printf("Thumbnail: generation skipped for %s: %v", clipPath, err)
		return nil
	}
	return out
}

func (s *Synthesizer) synthesize(ctx context.Context, clipPath string, meta Meta) ([]byte, error) {
	dur, err := s.Engine.Probe(ctx, clipPath)
	if err != nil {
		return nil, err
	}

	seek := seekOffsetSeconds
	if dur-0.1 < seek {
		seek = dur - 0.1
	}
	if seek < 0 {
		seek = 0
	}

	width, _, err := s.Engine.ProbeFrame(ctx, clipPath)
	if err != nil {
		return nil, err
	}

	sess, err := s.Engine.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Release()

	outPath := sess.Path("thumb.jpg")
	err = sess.RunFFmpeg(ctx,
		"-ss", fmt.Sprintf("%.3f", seek),
		"-i", clipPath,
		"-vframes", "1",
		"-vf", OverlayFilter(width, meta),
		"-q:v", "3",
		outPath,
	)
	if err != nil {
		return nil, err
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty thumbnail output")
	}
	return out, nil
}

// OverlayFilter builds the compositing chain: a faded bottom band (two
// stacked translucent strips approximating the gradient), the category badge
// bottom-left, the minute badge bottom-right with a thin accent bar.
func OverlayFilter(frameWidth int, meta Meta) string {
	scale := float64(frameWidth) / baselineWidth
	if scale <= 0 {
		scale = 1
	}

	bandH := scaled(120, scale)
	fontBig := scaled(34, scale)
	pad := scaled(14, scale)
	margin := scaled(24, scale)
	barW := scaled(6, scale)

	bg, fg := ColorFor(meta.Category)
	label := extract.EscapeDrawtext(LabelFor(meta.Category))
	minuteText := extract.EscapeDrawtext(fmt.Sprintf("%d'", meta.Minute))

	parts := []string{
		// Bottom fade: lighter strip above a darker one.
		fmt.Sprintf("drawbox=y=ih-%d:h=%d:color=black@0.35:t=fill", bandH, bandH/2),
		fmt.Sprintf("drawbox=y=ih-%d:h=%d:color=black@0.7:t=fill", bandH/2, bandH/2),
		// Category badge, bottom-left.
		fmt.Sprintf("drawtext=text='%s':fontsize=%d:fontcolor=%s:x=%d:y=h-text_h-%d:box=1:boxcolor=%s@0.9:boxborderw=%d",
			label, fontBig, fg, margin, margin, bg, pad),
		// Minute badge, bottom-right, near-opaque black.
		fmt.Sprintf("drawtext=text='%s':fontsize=%d:fontcolor=white:x=w-text_w-%d:y=h-text_h-%d:box=1:boxcolor=black@0.85:boxborderw=%d",
			minuteText, fontBig, margin, margin, pad),
		// Accent bar beside the minute badge.
		fmt.Sprintf("drawbox=x=iw-%d:y=ih-%d:w=%d:h=%d:color=%s@1:t=fill",
			margin+barW, bandH-margin, barW, bandH-2*margin, bg),
	}
	return strings.Join(parts, ",")
}

func scaled(base int, scale float64) int {
	v := int(float64(base) * scale)
	if v < 1 {
		v = 1
	}
	return v
}
