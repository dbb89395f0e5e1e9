package clips

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/matchframe/mf-clips/internal/data"
)

// Summary is the aggregate outcome of one batch invocation.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Cancelled bool `json:"cancelled"`
}

// ProcessAll generates clips for a match's events, strictly one at a time.
// The extraction engine stages files in a shared scratch area, so events are
// never interleaved; the cap bounds worst-case run time of one invocation.
//
// videoURL, when non-empty, forces every event onto that source (with the
// start/duration overrides in opts); otherwise each event gets the segment
// the resync precedence selects.
//
// Cancellation is cooperative: the context and the shared cancel flag are
// checked before each event and between its long steps. A cancelled batch
// keeps every clip finished so far.
func (s *Service) ProcessAll(ctx context.Context, matchID uuid.UUID, videoURL string, opts Options) (*Summary, error) {
	events, err := s.events.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}
	if len(events) > limit {
		events = events[:limit]
	}

	var forced *data.MatchVideo
	var candidates []*data.MatchVideo
	if videoURL != "" {
		forced = &data.MatchVideo{
			MatchID:         matchID,
			FileURL:         videoURL,
			VideoType:       data.VideoTypeFull,
			DurationSeconds: opts.VideoDurationSeconds,
		}
		if opts.VideoStartMinute != nil {
			forced.StartMinute = *opts.VideoStartMinute
		}
	} else {
		candidates, err = s.videos.ListByMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, ErrNoVideo
		}
	}

	summary := &Summary{Total: len(events)}
	if err := s.progress.Begin(ctx, matchID, summary.Total); err != nil {
		return nil, err
	}
	s.metrics.BatchStarted()
	defer s.metrics.BatchEnded()

	for i, event := range events {
		if ctx.Err() != nil || s.progress.Cancelled(ctx, matchID) {
			summary.Cancelled = true
			break
		}

		video := forced
		if video == nil {
			video = SelectVideo(event, candidates)
		}

		ok, err := s.progress.TryAcquireEvent(ctx, event.ID)
		if err != nil {
			return summary, err
		}
		if !ok {
			// A skip is neither success nor failure; only the message
			// changes, the counters stay put.
			summary.Skipped++
			s.progress.Stage(ctx, matchID,
				fmt.Sprintf("Skipped %s at %d' (already in progress)", event.EventType, event.Minute))
			continue
		}

		stage := func(msg string) {
			s.progress.Stage(ctx, matchID, fmt.Sprintf("[%d/%d] %s", i+1, summary.Total, msg))
		}
		cancelled := func() bool { return s.progress.Cancelled(ctx, matchID) }
		_, genErr := s.generateOne(ctx, event, video, opts, stage, cancelled)
		s.progress.ReleaseEvent(ctx, event.ID)

		if genErr != nil {
			if errors.Is(genErr, context.Canceled) {
				summary.Cancelled = true
				break
			}
			// One bad video or caption never aborts the batch.
			summary.Failed++
			log.Printf("ClipGen: event %s failed: %v", event.ID, genErr)
			s.progress.Step(ctx, matchID, false,
				fmt.Sprintf("Failed %s at %d': %v", event.EventType, event.Minute, genErr))
			continue
		}

		summary.Completed++
		s.progress.Step(ctx, matchID, true,
			fmt.Sprintf("Generated %s clip at %d' (%d/%d)", event.EventType, event.Minute, summary.Completed, summary.Total))
	}

	state := "done"
	if summary.Cancelled {
		state = "cancelled"
	}
	message := fmt.Sprintf("Generated %d of %d clips (%d failed, %d skipped)",
		summary.Completed, summary.Total, summary.Failed, summary.Skipped)
	if err := s.progress.Finish(ctx, matchID, state, message); err != nil {
		log.Printf("ClipGen: progress finish failed for match %s: %v", matchID, err)
	}
	log.Printf("ClipGen: match %s batch %s: %s", matchID, state, message)

	return summary, nil
}
