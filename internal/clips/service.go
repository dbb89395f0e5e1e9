package clips

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/matchframe/mf-clips/internal/data"
	"github.com/matchframe/mf-clips/internal/extract"
	"github.com/matchframe/mf-clips/internal/publish"
	"github.com/matchframe/mf-clips/internal/thumbnail"
	"github.com/matchframe/mf-clips/internal/timing"
)

var (
	ErrEventInFlight = errors.New("event generation already in progress")
	ErrNoVideo       = errors.New("no video available for event")
)

type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.MatchEvent, error)
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*data.MatchEvent, error)
	UpdateClip(ctx context.Context, id uuid.UUID, clipURL string, pending bool) error
	SetClipPending(ctx context.Context, id uuid.UUID, pending bool) error
}

type VideoStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.MatchVideo, error)
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*data.MatchVideo, error)
}

type ThumbnailStore interface {
	Create(ctx context.Context, t *data.Thumbnail) error
}

type BlobStore interface {
	UploadBlob(ctx context.Context, matchID uuid.UUID, kind, filename string, r io.Reader) (string, error)
}

type Publisher interface {
	ClipGenerated(n publish.ClipNotice) error
	ClipFailed(n publish.ClipNotice) error
}

// ProgressStore is the cross-process batch state: snapshot, cancel flag,
// and the per-event in-flight guard.
type ProgressStore interface {
	Begin(ctx context.Context, matchID uuid.UUID, total int) error
	Step(ctx context.Context, matchID uuid.UUID, ok bool, message string) error
	Stage(ctx context.Context, matchID uuid.UUID, message string) error
	Finish(ctx context.Context, matchID uuid.UUID, state, message string) error
	Cancelled(ctx context.Context, matchID uuid.UUID) bool
	TryAcquireEvent(ctx context.Context, eventID uuid.UUID) (bool, error)
	ReleaseEvent(ctx context.Context, eventID uuid.UUID)
}

// Pipeline is the media side of generation: staging the source, cutting the
// window, synthesizing the poster frame. Each cleanup must be called on
// every exit path.
type Pipeline interface {
	Fetch(ctx context.Context, sourceURL string) (path string, cleanup func(), err error)
	Cut(ctx context.Context, sourcePath string, w timing.Window, caption *extract.Caption) (clipPath string, cleanup func(), err error)
	Thumbnail(ctx context.Context, clipPath string, meta thumbnail.Meta) []byte
}

type Metrics interface {
	ClipGenerated(category string)
	ClipFailed(stage string)
	ThumbnailMiss()
	ObserveExtract(d time.Duration)
	BatchStarted()
	BatchEnded()
}

// Options are the caller-supplied per-invocation overrides.
type Options struct {
	BufferBeforeMs       *int64  `json:"buffer_before_ms,omitempty"`
	BufferAfterMs        *int64  `json:"buffer_after_ms,omitempty"`
	VideoStartMinute     *int    `json:"video_start_minute,omitempty"`
	VideoDurationSeconds *float64 `json:"video_duration_seconds,omitempty"`
	AddSubtitles         bool    `json:"add_subtitles,omitempty"`
	Limit                int     `json:"limit,omitempty"`
}

const DefaultBatchLimit = 20

type Service struct {
	events   EventStore
	videos   VideoStore
	thumbs   ThumbnailStore
	blobs    BlobStore
	pipeline Pipeline
	progress ProgressStore
	pub      Publisher
	metrics  Metrics

	resync *Resync
}

func NewService(events EventStore, videos VideoStore, thumbs ThumbnailStore,
	blobs BlobStore, pipeline Pipeline, progress ProgressStore,
	pub Publisher, metrics Metrics) *Service {
	return &Service{
		events:   events,
		videos:   videos,
		thumbs:   thumbs,
		blobs:    blobs,
		pipeline: pipeline,
		progress: progress,
		pub:      pub,
		metrics:  metrics,
		resync:   NewResync(),
	}
}

// Result is what one successful generation produced.
type Result struct {
	ClipURL      string
	ThumbnailURL string
	Window       timing.Window
}

// GenerateForEvent runs the full single-event path under the in-flight
// guard: remap, cut, upload, thumbnail, write-back, notify.
func (s *Service) GenerateForEvent(ctx context.Context, eventID uuid.UUID, opts Options) (*Result, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	video, err := s.videoForEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	acquired, err := s.progress.TryAcquireEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrEventInFlight
	}
	defer s.progress.ReleaseEvent(ctx, eventID)

	return s.generateOne(ctx, event, video, opts, func(string) {}, nil)
}

// checkpoint is consulted between an event's long steps. The shared cancel
// flag matters because batch triggers detach from the request context: a UI
// cancel must land mid-event, not after the current event finishes.
func checkpoint(ctx context.Context, cancelled func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cancelled != nil && cancelled() {
		return context.Canceled
	}
	return nil
}

// videoForEvent resolves the segment to extract from: the event's explicit
// video if set, otherwise the resync precedence over the match's videos.
func (s *Service) videoForEvent(ctx context.Context, event *data.MatchEvent) (*data.MatchVideo, error) {
	if event.VideoID != nil {
		v, err := s.videos.GetByID(ctx, *event.VideoID)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, data.ErrRecordNotFound) {
			return nil, err
		}
		// Referenced video is gone; fall through to selection.
	}
	videos, err := s.videos.ListByMatch(ctx, event.MatchID)
	if err != nil {
		return nil, err
	}
	v := SelectVideo(event, videos)
	if v == nil {
		return nil, ErrNoVideo
	}
	return v, nil
}

// generateOne is the per-event unit of work. stage receives human-readable
// progress messages for the batch UI; cancelled, when non-nil, is polled at
// the checkpoints alongside the context.
func (s *Service) generateOne(ctx context.Context, event *data.MatchEvent, video *data.MatchVideo, opts Options, stage func(string), cancelled func() bool) (result *Result, err error) {
	defer func() {
		if err != nil {
			s.metrics.ClipFailed(stageOf(err))
			s.pub.ClipFailed(publish.ClipNotice{
				EventID:    event.ID,
				MatchID:    event.MatchID,
				EventType:  event.EventType,
				Error:      err.Error(),
				OccurredAt: time.Now().UTC(),
			})
		}
	}()

	video = applyVideoOverrides(video, opts)
	window := windowFor(event, video, opts)

	stage(fmt.Sprintf("Downloading source for %s at %d'", event.EventType, event.Minute))
	sourcePath, cleanupSource, err := s.pipeline.Fetch(ctx, video.FileURL)
	if err != nil {
		return nil, err
	}
	defer cleanupSource()

	if err := checkpoint(ctx, cancelled); err != nil {
		return nil, err
	}

	var caption *extract.Caption
	if opts.AddSubtitles {
		caption = &extract.Caption{
			Minute:      event.Minute,
			Label:       thumbnail.LabelFor(event.EventType),
			Description: event.Description,
		}
	}

	stage(fmt.Sprintf("Extracting %s clip (%s)", event.EventType, extract.FormatTimestamp(window.StartMs)))
	cutStart := time.Now()
	clipPath, cleanupClip, err := s.pipeline.Cut(ctx, sourcePath, window, caption)
	if err != nil {
		return nil, err
	}
	defer cleanupClip()
	s.metrics.ObserveExtract(time.Since(cutStart))

	if err := checkpoint(ctx, cancelled); err != nil {
		return nil, err
	}

	stage("Uploading clip")
	clipFile, err := os.Open(clipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrUpload, err)
	}
	clipURL, err := s.blobs.UploadBlob(ctx, event.MatchID, "clips",
		fmt.Sprintf("event-%s.mp4", event.ID), clipFile)
	clipFile.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extract.ErrUpload, err)
	}

	// Thumbnail is best-effort: a miss is logged and metered, never fatal.
	stage("Generating thumbnail")
	var thumbURL string
	if img := s.pipeline.Thumbnail(ctx, clipPath, thumbnail.Meta{
		Category: event.EventType,
		Minute:   event.Minute,
	}); img != nil {
		thumbURL = s.storeThumbnail(ctx, event, img)
	} else {
		s.metrics.ThumbnailMiss()
	}

	if err := s.events.UpdateClip(ctx, event.ID, clipURL, false); err != nil {
		return nil, err
	}

	s.metrics.ClipGenerated(event.EventType)
	s.pub.ClipGenerated(publish.ClipNotice{
		EventID:      event.ID,
		MatchID:      event.MatchID,
		EventType:    event.EventType,
		ClipURL:      clipURL,
		ThumbnailURL: thumbURL,
		DurationSec:  float64(window.DurationMs) / 1000,
		OccurredAt:   time.Now().UTC(),
	})

	return &Result{ClipURL: clipURL, ThumbnailURL: thumbURL, Window: window}, nil
}

// storeThumbnail uploads the image and records it. Failures here degrade to
// "no thumbnail" exactly like a synthesis miss.
func (s *Service) storeThumbnail(ctx context.Context, event *data.MatchEvent, img []byte) string {
	url, err := s.blobs.UploadBlob(ctx, event.MatchID, "images",
		fmt.Sprintf("event-%s.jpg", event.ID), bytes.NewReader(img))
	if err != nil {
		log.Printf("ClipGen: thumbnail upload failed for event %s: %v", event.ID, err)
		s.metrics.ThumbnailMiss()
		return ""
	}
	err = s.thumbs.Create(ctx, &data.Thumbnail{
		EventID:   event.ID,
		MatchID:   event.MatchID,
		ImageURL:  url,
		EventType: event.EventType,
		Title:     fmt.Sprintf("%s %d'", thumbnail.LabelFor(event.EventType), event.Minute),
	})
	if err != nil {
		log.Printf("ClipGen: thumbnail record failed for event %s: %v", event.ID, err)
	}
	return url
}

func applyVideoOverrides(v *data.MatchVideo, opts Options) *data.MatchVideo {
	if opts.VideoStartMinute == nil && opts.VideoDurationSeconds == nil {
		return v
	}
	out := *v
	if opts.VideoStartMinute != nil {
		out.StartMinute = *opts.VideoStartMinute
	}
	if opts.VideoDurationSeconds != nil {
		out.DurationSeconds = opts.VideoDurationSeconds
	}
	return &out
}

func windowFor(event *data.MatchEvent, video *data.MatchVideo, opts Options) timing.Window {
	policy := timing.TimingsFor(event.EventType)
	if opts.BufferBeforeMs != nil {
		policy.BeforeMs = *opts.BufferBeforeMs
	}
	if opts.BufferAfterMs != nil {
		policy.AfterMs = *opts.BufferAfterMs
	}
	return timing.WindowFor(event, video, policy)
}

// stageOf classifies an error for the failure counter.
func stageOf(err error) string {
	switch {
	case errors.Is(err, extract.ErrDownload):
		return "download"
	case errors.Is(err, extract.ErrUpload):
		return "upload"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "extract"
	}
}

