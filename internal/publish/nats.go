package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	SubjectClipGenerated = "clips.generated"
	SubjectClipFailed    = "clips.failed"
)

// ClipNotice is the downstream notification emitted after each event's
// generation attempt. The scheduling UI subscribes to refresh its media
// pickers without polling.
type ClipNotice struct {
	EventID      uuid.UUID `json:"event_id"`
	MatchID      uuid.UUID `json:"match_id"`
	EventType    string    `json:"event_type"`
	ClipURL      string    `json:"clip_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	DurationSec  float64   `json:"duration_sec,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type NATSPublisher struct {
	conn       *nats.Conn
	maxRetries int
}

func NewNATSPublisher(conn *nats.Conn, maxRetries int) *NATSPublisher {
	return &NATSPublisher{conn: conn, maxRetries: maxRetries}
}

func (p *NATSPublisher) ClipGenerated(n ClipNotice) error {
	return p.publish(SubjectClipGenerated, n)
}

func (p *NATSPublisher) ClipFailed(n ClipNotice) error {
	return p.publish(SubjectClipFailed, n)
}

func (p *NATSPublisher) publish(subject string, n ClipNotice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	for i := 0; i <= p.maxRetries; i++ {
		err = p.conn.Publish(subject, data)
		if err == nil {
			return nil
		}

		// Backoff
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}

	return fmt.Errorf("publish failed after %d retries: %w", p.maxRetries, err)
}

// NopPublisher is used when NATS is not configured; notifications are
// simply dropped.
type NopPublisher struct{}

func (NopPublisher) ClipGenerated(ClipNotice) error { return nil }
func (NopPublisher) ClipFailed(ClipNotice) error    { return nil }
