package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Thumbnail is the persisted record for a generated poster frame,
// one-to-one with a successfully generated clip.
type Thumbnail struct {
	ID        uuid.UUID `json:"id"`
	EventID   uuid.UUID `json:"event_id"`
	MatchID   uuid.UUID `json:"match_id"`
	ImageURL  string    `json:"image_url"`
	EventType string    `json:"event_type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type ThumbnailModel struct {
	DB DBTX
}

func (m ThumbnailModel) Create(ctx context.Context, t *Thumbnail) error {
	query := `
		INSERT INTO thumbnails (event_id, match_id, image_url, event_type, title)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE
		SET image_url = EXCLUDED.image_url, event_type = EXCLUDED.event_type, title = EXCLUDED.title
		RETURNING id, created_at`
	return m.DB.QueryRowContext(ctx, query,
		t.EventID, t.MatchID, t.ImageURL, t.EventType, t.Title,
	).Scan(&t.ID, &t.CreatedAt)
}

func (m ThumbnailModel) GetByEvent(ctx context.Context, eventID uuid.UUID) (*Thumbnail, error) {
	query := `
		SELECT id, event_id, match_id, image_url, event_type, title, created_at
		FROM thumbnails WHERE event_id = $1`
	var t Thumbnail
	err := m.DB.QueryRowContext(ctx, query, eventID).Scan(
		&t.ID, &t.EventID, &t.MatchID, &t.ImageURL, &t.EventType, &t.Title, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
