package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// In-flight guards must outlive the longest realistic extraction but
	// still expire if a worker dies mid-clip.
	InflightTTL = 10 * time.Minute

	// Progress snapshots linger long enough for the UI to show the final
	// summary after a batch ends.
	SnapshotTTL = 2 * time.Hour
)

// Snapshot is the UI-facing state of one match's batch run.
type Snapshot struct {
	State     string `json:"state"` // running, done, cancelled, failed
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Message   string `json:"message"`
	UpdatedAt int64  `json:"updated_at"`
}

// Store keeps batch progress, cancellation flags, and the per-event
// in-flight guard in Redis so triggers from different processes see the
// same state.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func progressKey(matchID uuid.UUID) string { return fmt.Sprintf("clipgen:progress:%s", matchID) }
func cancelKey(matchID uuid.UUID) string   { return fmt.Sprintf("clipgen:cancel:%s", matchID) }
func inflightKey(eventID uuid.UUID) string { return fmt.Sprintf("clipgen:inflight:%s", eventID) }

// Begin resets the snapshot for a new run and clears a stale cancel flag.
func (s *Store) Begin(ctx context.Context, matchID uuid.UUID, total int) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, cancelKey(matchID))
	pipe.HSet(ctx, progressKey(matchID),
		"state", "running",
		"total", total,
		"completed", 0,
		"failed", 0,
		"message", "",
		"updated_at", time.Now().Unix(),
	)
	pipe.Expire(ctx, progressKey(matchID), SnapshotTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Step records one event's outcome and the current stage message.
func (s *Store) Step(ctx context.Context, matchID uuid.UUID, ok bool, message string) error {
	pipe := s.client.Pipeline()
	if ok {
		pipe.HIncrBy(ctx, progressKey(matchID), "completed", 1)
	} else {
		pipe.HIncrBy(ctx, progressKey(matchID), "failed", 1)
	}
	pipe.HSet(ctx, progressKey(matchID), "message", message, "updated_at", time.Now().Unix())
	_, err := pipe.Exec(ctx)
	return err
}

// Stage updates only the human-readable message (downloading, extracting,
// uploading, generating thumbnail).
func (s *Store) Stage(ctx context.Context, matchID uuid.UUID, message string) error {
	return s.client.HSet(ctx, progressKey(matchID),
		"message", message, "updated_at", time.Now().Unix(),
	).Err()
}

// Finish marks the terminal state of a run.
func (s *Store) Finish(ctx context.Context, matchID uuid.UUID, state, message string) error {
	return s.client.HSet(ctx, progressKey(matchID),
		"state", state, "message", message, "updated_at", time.Now().Unix(),
	).Err()
}

func (s *Store) Get(ctx context.Context, matchID uuid.UUID) (*Snapshot, error) {
	vals, err := s.client.HGetAll(ctx, progressKey(matchID)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, nil
	}
	snap := &Snapshot{
		State:   vals["state"],
		Message: vals["message"],
	}
	fmt.Sscanf(vals["total"], "%d", &snap.Total)
	fmt.Sscanf(vals["completed"], "%d", &snap.Completed)
	fmt.Sscanf(vals["failed"], "%d", &snap.Failed)
	fmt.Sscanf(vals["updated_at"], "%d", &snap.UpdatedAt)
	return snap, nil
}

// RequestCancel sets the cooperative cancel flag. The batch loop checks it
// before each event and after each long step; in-flight work is not aborted.
func (s *Store) RequestCancel(ctx context.Context, matchID uuid.UUID) error {
	return s.client.Set(ctx, cancelKey(matchID), "1", SnapshotTTL).Err()
}

func (s *Store) Cancelled(ctx context.Context, matchID uuid.UUID) bool {
	n, err := s.client.Exists(ctx, cancelKey(matchID)).Result()
	return err == nil && n > 0
}

// TryAcquireEvent claims the per-event guard. A false return means another
// trigger path is already regenerating this event.
func (s *Store) TryAcquireEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	return s.client.SetNX(ctx, inflightKey(eventID), "1", InflightTTL).Result()
}

func (s *Store) ReleaseEvent(ctx context.Context, eventID uuid.UUID) {
	s.client.Del(ctx, inflightKey(eventID))
}
