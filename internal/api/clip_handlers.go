package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matchframe/mf-clips/internal/clips"
	"github.com/matchframe/mf-clips/internal/data"
	"github.com/matchframe/mf-clips/internal/extract"
	"github.com/matchframe/mf-clips/internal/progress"
)

type EventRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.MatchEvent, error)
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*data.MatchEvent, error)
	UpdateTagging(ctx context.Context, e *data.MatchEvent) error
}

type VideoRepo interface {
	Create(ctx context.Context, v *data.MatchVideo) error
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*data.MatchVideo, error)
}

type ThumbnailRepo interface {
	GetByEvent(ctx context.Context, eventID uuid.UUID) (*data.Thumbnail, error)
}

// ProgressReader is the handler-facing slice of the progress store: read the
// snapshot, flip the cancel flag. Writes stay inside the clip service.
type ProgressReader interface {
	Get(ctx context.Context, matchID uuid.UUID) (*progress.Snapshot, error)
	RequestCancel(ctx context.Context, matchID uuid.UUID) error
}

type ClipHandler struct {
	Clips    *clips.Service
	Events   EventRepo
	Videos   VideoRepo
	Thumbs   ThumbnailRepo
	Progress ProgressReader
}

func NewClipHandler(svc *clips.Service, events EventRepo, videos VideoRepo,
	thumbs ThumbnailRepo, prog ProgressReader) *ClipHandler {
	return &ClipHandler{
		Clips:    svc,
		Events:   events,
		Videos:   videos,
		Thumbs:   thumbs,
		Progress: prog,
	}
}

func (h *ClipHandler) Register(r chi.Router) {
	r.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Get("/videos", h.ListVideos)
		r.Post("/videos", h.RegisterVideo)
		r.Post("/clips/generate", h.GenerateBatch)
		r.Get("/clips/progress", h.GetProgress)
		r.Post("/clips/cancel", h.CancelBatch)
	})
	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Patch("/", h.UpdateEvent)
		r.Post("/clip", h.RegenerateClip)
		r.Get("/thumbnail", h.GetThumbnail)
	})
}

func matchIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "matchID"))
}

func eventIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "eventID"))
}

// GET /api/v1/matches/{matchID}/events
func (h *ClipHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}
	events, err := h.Events.ListByMatch(r.Context(), matchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*data.MatchEvent{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GET /api/v1/matches/{matchID}/videos
func (h *ClipHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}
	videos, err := h.Videos.ListByMatch(r.Context(), matchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if videos == nil {
		videos = []*data.MatchVideo{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

// POST /api/v1/matches/{matchID}/videos
//
// Links an already-hosted file to the match. Files dropped into the staging
// directory go through the ingest watcher instead.
func (h *ClipHandler) RegisterVideo(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}

	var req struct {
		FileURL         string   `json:"file_url"`
		VideoType       string   `json:"video_type"`
		StartMinute     int      `json:"start_minute"`
		DurationSeconds *float64 `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.FileURL == "" {
		respondError(w, http.StatusBadRequest, "file_url is required")
		return
	}
	switch req.VideoType {
	case data.VideoTypeFull, data.VideoTypeFirstHalf, data.VideoTypeSecondHalf, data.VideoTypeClip:
	case "":
		req.VideoType = data.VideoTypeFull
	default:
		respondError(w, http.StatusBadRequest, "Invalid video_type")
		return
	}
	if req.VideoType == data.VideoTypeSecondHalf && req.StartMinute == 0 {
		req.StartMinute = 45
	}

	v := &data.MatchVideo{
		MatchID:         matchID,
		FileURL:         req.FileURL,
		VideoType:       req.VideoType,
		StartMinute:     req.StartMinute,
		DurationSeconds: req.DurationSeconds,
	}
	if err := h.Videos.Create(r.Context(), v); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

// POST /api/v1/matches/{matchID}/clips/generate
//
// Kicks off a batch run and returns 202 immediately; the run is tracked in
// the progress store and streamed over /clips/progress.
func (h *ClipHandler) GenerateBatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}

	var req struct {
		VideoURL string `json:"video_url"`
		clips.Options
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	if snap, err := h.Progress.Get(r.Context(), matchID); err == nil && snap != nil && snap.State == "running" {
		respondError(w, http.StatusConflict, "A batch is already running for this match")
		return
	}

	// The run outlives the request; cancellation goes through the shared
	// flag, not the request context.
	go func() {
		summary, err := h.Clips.ProcessAll(context.Background(), matchID, req.VideoURL, req.Options)
		if err != nil {
			log.Printf("ClipGen: batch for match %s aborted: %v", matchID, err)
			return
		}
		log.Printf("ClipGen: batch for match %s finished: %d/%d completed", matchID, summary.Completed, summary.Total)
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":   "started",
		"progress": "/api/v1/matches/" + matchID.String() + "/clips/progress",
	})
}

// GET /api/v1/matches/{matchID}/clips/progress
func (h *ClipHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}
	snap, err := h.Progress.Get(r.Context(), matchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		respondError(w, http.StatusNotFound, "No batch recorded for this match")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// POST /api/v1/matches/{matchID}/clips/cancel
func (h *ClipHandler) CancelBatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := matchIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}
	if err := h.Progress.RequestCancel(r.Context(), matchID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancel requested"})
}

// POST /api/v1/events/{eventID}/clip
//
// Regenerates one clip synchronously and returns the new URLs.
func (h *ClipHandler) RegenerateClip(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	var opts clips.Options
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	result, err := h.Clips.GenerateForEvent(r.Context(), eventID, opts)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			respondError(w, http.StatusNotFound, "Event not found")
		case errors.Is(err, clips.ErrEventInFlight):
			respondError(w, http.StatusConflict, "Clip generation already in progress for this event")
		case errors.Is(err, clips.ErrNoVideo):
			respondError(w, http.StatusUnprocessableEntity, "No video available for this event")
		case errors.Is(err, extract.ErrDownload):
			respondError(w, http.StatusBadGateway, "Source video download failed")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"clip_url":      result.ClipURL,
		"thumbnail_url": result.ThumbnailURL,
		"start_ms":      result.Window.StartMs,
		"duration_ms":   result.Window.DurationMs,
	})
}

// PATCH /api/v1/events/{eventID}
//
// Applies a tagging edit and, when the edit moves or retypes the event,
// queues a regeneration of its clip.
func (h *ClipHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	oldEvent, err := h.Events.GetByID(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Event not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var req struct {
		EventType   *string          `json:"event_type"`
		Minute      *int             `json:"minute"`
		Second      *int             `json:"second"`
		Description *string          `json:"description"`
		MatchHalf   *string          `json:"match_half"`
		Metadata    *json.RawMessage `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	updated := *oldEvent
	if req.EventType != nil {
		updated.EventType = *req.EventType
	}
	if req.Minute != nil {
		if *req.Minute < 0 {
			respondError(w, http.StatusBadRequest, "minute must be >= 0")
			return
		}
		updated.Minute = *req.Minute
	}
	if req.Second != nil {
		if *req.Second < 0 || *req.Second > 59 {
			respondError(w, http.StatusBadRequest, "second must be 0-59")
			return
		}
		updated.Second = *req.Second
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.MatchHalf != nil {
		switch *req.MatchHalf {
		case data.HalfFirst, data.HalfSecond:
			updated.MatchHalf = req.MatchHalf
		case "":
			updated.MatchHalf = nil
		default:
			respondError(w, http.StatusBadRequest, "Invalid match_half")
			return
		}
	}
	if req.Metadata != nil {
		updated.Metadata = *req.Metadata
	}

	if err := h.Events.UpdateTagging(r.Context(), &updated); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Event not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	old, next := *oldEvent, updated
	go func() {
		if err := h.Clips.HandleEventUpdate(context.Background(), &old, &next, clips.Options{}); err != nil {
			log.Printf("ClipGen: resync after edit of event %s failed: %v", next.ID, err)
		}
	}()

	respondJSON(w, http.StatusOK, &updated)
}

// GET /api/v1/events/{eventID}/thumbnail
func (h *ClipHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	eventID, err := eventIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}
	thumb, err := h.Thumbs.GetByEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "No thumbnail for this event")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, thumb)
}
