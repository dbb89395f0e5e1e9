package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	VideoTypeFull       = "full"
	VideoTypeFirstHalf  = "first_half"
	VideoTypeSecondHalf = "second_half"
	VideoTypeClip       = "clip"
)

// MatchVideo represents one uploaded or linked video file of a match.
// DurationSeconds is nil until the file has been probed.
type MatchVideo struct {
	ID              uuid.UUID `json:"id"`
	MatchID         uuid.UUID `json:"match_id"`
	FileURL         string    `json:"file_url"`
	VideoType       string    `json:"video_type"`
	StartMinute     int       `json:"start_minute"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type VideoModel struct {
	DB DBTX
}

const videoColumns = `id, match_id, file_url, video_type, start_minute, duration_seconds, created_at`

func scanVideo(row interface{ Scan(...any) error }) (*MatchVideo, error) {
	var v MatchVideo
	var dur sql.NullFloat64
	err := row.Scan(&v.ID, &v.MatchID, &v.FileURL, &v.VideoType, &v.StartMinute, &dur, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	if dur.Valid {
		v.DurationSeconds = &dur.Float64
	}
	return &v, nil
}

func (m VideoModel) Create(ctx context.Context, v *MatchVideo) error {
	query := `
		INSERT INTO match_videos (match_id, file_url, video_type, start_minute, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	var dur any
	if v.DurationSeconds != nil {
		dur = *v.DurationSeconds
	}
	return m.DB.QueryRowContext(ctx, query,
		v.MatchID, v.FileURL, v.VideoType, v.StartMinute, dur,
	).Scan(&v.ID, &v.CreatedAt)
}

func (m VideoModel) GetByID(ctx context.Context, id uuid.UUID) (*MatchVideo, error) {
	query := `SELECT ` + videoColumns + ` FROM match_videos WHERE id = $1`
	return scanVideo(m.DB.QueryRowContext(ctx, query, id))
}

// ListByMatch returns videos in upload order; the resync coordinator applies
// its own half/full precedence on top.
func (m VideoModel) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*MatchVideo, error) {
	query := `SELECT ` + videoColumns + ` FROM match_videos WHERE match_id = $1 ORDER BY created_at`
	rows, err := m.DB.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*MatchVideo
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (m VideoModel) SetDuration(ctx context.Context, id uuid.UUID, seconds float64) error {
	query := `UPDATE match_videos SET duration_seconds = $1 WHERE id = $2`
	_, err := m.DB.ExecContext(ctx, query, seconds, id)
	return err
}
