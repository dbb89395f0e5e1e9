package timing

import (
	"github.com/matchframe/mf-clips/internal/data"
)

// ToVideoRelativeMs converts an event's game-clock time into an offset on a
// specific video file's own timeline.
//
// The precedence here exists because metadata offsets may have been recorded
// against a different video boundary than the one we are extracting from:
// a stale offset must never be trusted blindly.
//
//  1. If the raw game time cannot fit in this file at all, the stored offset
//     is game-time in disguise; recompute from the segment's start minute.
//  2. A metadata offset that survives the same plausibility check is trusted.
//  3. Otherwise remap from the start minute when the segment has one, or use
//     raw game time for a from-kickoff file.
//
// The result is floored at 0 and, when the duration is known, capped at one
// second before the end of the file.
func ToVideoRelativeMs(e *data.MatchEvent, v *data.MatchVideo) int64 {
	gameTimeSec := e.GameTimeSeconds()
	videoRelSec := float64((e.Minute-v.StartMinute)*60 + e.Second)

	durKnown := v.DurationSeconds != nil && *v.DurationSeconds > 0

	var ms int64
	switch {
	case durKnown && gameTimeSec > *v.DurationSeconds:
		// Game time exceeds what the file could contain outright.
		if videoRelSec < 0 {
			videoRelSec = 0
		}
		ms = int64(videoRelSec * 1000)

	default:
		if offsetMs, ok := e.MetadataOffsetMs(); ok {
			// Same plausibility check against the file bounds.
			if durKnown && float64(offsetMs)/1000 > *v.DurationSeconds {
				if videoRelSec < 0 {
					videoRelSec = 0
				}
				ms = int64(videoRelSec * 1000)
			} else {
				ms = offsetMs
			}
		} else if v.StartMinute > 0 {
			ms = int64(videoRelSec * 1000)
		} else {
			ms = int64(gameTimeSec * 1000)
		}
	}

	if ms < 0 {
		ms = 0
	}
	if durKnown {
		if maxMs := int64((*v.DurationSeconds - 1) * 1000); ms > maxMs {
			if maxMs < 0 {
				maxMs = 0
			}
			ms = maxMs
		}
	}
	return ms
}

// Window is the (start, duration) slice of a source video to extract.
type Window struct {
	StartMs    int64
	DurationMs int64
}

// WindowFor centers a policy window on the event instant and clamps it into
// the video's bounds. Pre-roll is absorbed into the start clamp; post-roll
// is truncated at end of file rather than failing the extraction.
func WindowFor(e *data.MatchEvent, v *data.MatchVideo, p Policy) Window {
	eventMs := ToVideoRelativeMs(e, v)

	start := eventMs - p.BeforeMs
	if start < 0 {
		start = 0
	}
	dur := p.BeforeMs + p.AfterMs

	if v.DurationSeconds != nil && *v.DurationSeconds > 0 {
		totalMs := int64(*v.DurationSeconds * 1000)
		if start >= totalMs {
			start = totalMs - 1000
			if start < 0 {
				start = 0
			}
		}
		if start+dur > totalMs {
			dur = totalMs - start
		}
	}
	if dur < 1000 {
		dur = 1000
	}
	return Window{StartMs: start, DurationMs: dur}
}
