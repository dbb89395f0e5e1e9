package clips

import (
	"context"
	"fmt"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matchframe/mf-clips/internal/data"
)

// NeedsRegeneration decides whether an event edit made a previously
// generated clip stale.
//
// The pending true→false suppression matters: the write-back that marks a
// just-completed generation flips exactly that flag, and re-triggering on it
// would loop forever.
func NeedsRegeneration(oldEvent, newEvent *data.MatchEvent) bool {
	if newEvent == nil {
		return false
	}
	if oldEvent == nil {
		return newEvent.ClipURL == nil || *newEvent.ClipURL == "" || newEvent.ClipPending
	}

	// Identical snapshots never trigger.
	if sameClipInputs(oldEvent, newEvent) &&
		oldEvent.ClipPending == newEvent.ClipPending &&
		sameClipURL(oldEvent, newEvent) {
		return false
	}

	// Completion write-back.
	if oldEvent.ClipPending && !newEvent.ClipPending {
		return false
	}

	if newEvent.ClipURL == nil || *newEvent.ClipURL == "" {
		return true
	}
	if newEvent.ClipPending {
		return true
	}
	return !sameClipInputs(oldEvent, newEvent)
}

func sameClipInputs(a, b *data.MatchEvent) bool {
	return a.Minute == b.Minute &&
		a.Second == b.Second &&
		a.EventType == b.EventType &&
		a.Description == b.Description
}

func sameClipURL(a, b *data.MatchEvent) bool {
	au, bu := "", ""
	if a.ClipURL != nil {
		au = *a.ClipURL
	}
	if b.ClipURL != nil {
		bu = *b.ClipURL
	}
	return au == bu
}

// InferHalf returns the half an event belongs to, from the explicit tag when
// present, else the minute heuristic.
func InferHalf(e *data.MatchEvent) string {
	if e.MatchHalf != nil {
		switch *e.MatchHalf {
		case data.HalfFirst, data.HalfSecond:
			return *e.MatchHalf
		}
	}
	if e.Minute < 45 {
		return data.HalfFirst
	}
	return data.HalfSecond
}

// SelectVideo picks the extraction source among candidates:
// half-specific match first, then a full-match file, then whatever is first.
func SelectVideo(e *data.MatchEvent, videos []*data.MatchVideo) *data.MatchVideo {
	if len(videos) == 0 {
		return nil
	}

	want := data.VideoTypeFirstHalf
	if InferHalf(e) == data.HalfSecond {
		want = data.VideoTypeSecondHalf
	}
	for _, v := range videos {
		if v.VideoType == want {
			return v
		}
	}
	for _, v := range videos {
		if v.VideoType == data.VideoTypeFull {
			return v
		}
	}
	return videos[0]
}

const (
	resyncCacheSize = 2048
	resyncTTL       = 30 * time.Second
)

// Resync absorbs trigger storms: the capture UI saves edits field-by-field,
// and each save would otherwise schedule another regeneration of the same
// event with the same inputs.
type Resync struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewResync() *Resync {
	c, _ := lru.New[string, time.Time](resyncCacheSize)
	return &Resync{cache: c, ttl: resyncTTL}
}

func (r *Resync) isDuplicate(key string) bool {
	if seenAt, ok := r.cache.Get(key); ok {
		if time.Since(seenAt) < r.ttl {
			return true
		}
	}
	r.cache.Add(key, time.Now())
	return false
}

func resyncKey(e *data.MatchEvent) string {
	return fmt.Sprintf("%s|%d|%d|%s|%s", e.ID, e.Minute, e.Second, e.EventType, e.Description)
}

// HandleEventUpdate is the resync entry point for an event edit. When the
// clip is stale it marks the event pending and regenerates synchronously;
// callers that want fire-and-forget run it on a goroutine.
func (s *Service) HandleEventUpdate(ctx context.Context, oldEvent, newEvent *data.MatchEvent, opts Options) error {
	if !NeedsRegeneration(oldEvent, newEvent) {
		return nil
	}
	if s.resync.isDuplicate(resyncKey(newEvent)) {
		log.Printf("Resync: duplicate trigger for event %s suppressed", newEvent.ID)
		return nil
	}

	if err := s.events.SetClipPending(ctx, newEvent.ID, true); err != nil {
		return err
	}

	_, err := s.GenerateForEvent(ctx, newEvent.ID, opts)
	if err != nil {
		log.Printf("Resync: regeneration failed for event %s: %v", newEvent.ID, err)
	}
	return err
}
