package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	HalfFirst  = "first"
	HalfSecond = "second"
)

// MatchEvent represents one tagged in-game occurrence. Clip fields are
// written only by the clip engine; everything else is owned by the capture UI.
type MatchEvent struct {
	ID          uuid.UUID       `json:"id"`
	MatchID     uuid.UUID       `json:"match_id"`
	EventType   string          `json:"event_type"`
	Minute      int             `json:"minute"`
	Second      int             `json:"second"`
	Description string          `json:"description,omitempty"`
	ClipURL     *string         `json:"clip_url,omitempty"`
	ClipPending bool            `json:"clip_pending"`
	VideoID     *uuid.UUID      `json:"video_id,omitempty"`
	MatchHalf   *string         `json:"match_half,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// GameTimeSeconds is the match-clock time, independent of any video file.
func (e *MatchEvent) GameTimeSeconds() float64 {
	return float64(e.Minute*60 + e.Second)
}

// MetadataOffsetMs digs a precomputed video-relative offset out of the
// metadata bag. Upstream writers are inconsistent: some store
// "video_offset_ms" (ms), older ones store "videoSecond" (seconds).
func (e *MatchEvent) MetadataOffsetMs() (int64, bool) {
	if len(e.Metadata) == 0 {
		return 0, false
	}
	var meta map[string]any
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		return 0, false
	}
	if v, ok := meta["video_offset_ms"]; ok {
		if f, ok := v.(float64); ok && f >= 0 {
			return int64(f), true
		}
	}
	if v, ok := meta["videoSecond"]; ok {
		if f, ok := v.(float64); ok && f >= 0 {
			return int64(f * 1000), true
		}
	}
	return 0, false
}

type EventModel struct {
	DB DBTX
}

const eventColumns = `
	id, match_id, event_type, minute, second, description,
	clip_url, clip_pending, video_id, match_half, metadata,
	created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*MatchEvent, error) {
	var e MatchEvent
	var desc sql.NullString
	var clipURL sql.NullString
	var videoID sql.NullString
	var half sql.NullString
	var meta []byte

	err := row.Scan(
		&e.ID, &e.MatchID, &e.EventType, &e.Minute, &e.Second, &desc,
		&clipURL, &e.ClipPending, &videoID, &half, &meta,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if desc.Valid {
		e.Description = desc.String
	}
	if clipURL.Valid {
		e.ClipURL = &clipURL.String
	}
	if videoID.Valid {
		if id, err := uuid.Parse(videoID.String); err == nil {
			e.VideoID = &id
		}
	}
	if half.Valid {
		e.MatchHalf = &half.String
	}
	if len(meta) > 0 {
		e.Metadata = json.RawMessage(meta)
	}
	return &e, nil
}

func (m EventModel) GetByID(ctx context.Context, id uuid.UUID) (*MatchEvent, error) {
	query := `SELECT` + eventColumns + ` FROM match_events WHERE id = $1`
	return scanEvent(m.DB.QueryRowContext(ctx, query, id))
}

// ListByMatch returns all events of a match ordered by game time, which is
// the order the batch generator processes them in.
func (m EventModel) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*MatchEvent, error) {
	query := `SELECT` + eventColumns + `
		FROM match_events
		WHERE match_id = $1
		ORDER BY minute, second, created_at`

	rows, err := m.DB.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*MatchEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateClip writes back the generated clip URL and clears the pending flag
// in one statement so the resync trigger sees a single transition.
func (m EventModel) UpdateClip(ctx context.Context, id uuid.UUID, clipURL string, pending bool) error {
	query := `
		UPDATE match_events
		SET clip_url = $1, clip_pending = $2, updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $3`
	res, err := m.DB.ExecContext(ctx, query, clipURL, pending, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (m EventModel) SetClipPending(ctx context.Context, id uuid.UUID, pending bool) error {
	query := `
		UPDATE match_events
		SET clip_pending = $1, updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $2`
	_, err := m.DB.ExecContext(ctx, query, pending, id)
	return err
}

// UpdateTagging applies a capture-UI edit. Clip fields are not touched here.
func (m EventModel) UpdateTagging(ctx context.Context, e *MatchEvent) error {
	query := `
		UPDATE match_events
		SET event_type = $1, minute = $2, second = $3, description = $4,
		    match_half = $5, metadata = $6, updated_at = (NOW() AT TIME ZONE 'UTC')
		WHERE id = $7`
	var desc any
	if e.Description != "" {
		desc = e.Description
	}
	var meta any
	if len(e.Metadata) > 0 {
		meta = []byte(e.Metadata)
	}
	res, err := m.DB.ExecContext(ctx, query, e.EventType, e.Minute, e.Second, desc, e.MatchHalf, meta, e.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
