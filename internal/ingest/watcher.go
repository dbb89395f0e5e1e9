package ingest

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/matchframe/mf-clips/internal/data"
)

// settleDelay is how long a new file must stay untouched before we treat
// the upload as complete. Recorders copy multi-gigabyte files into the
// staging directory, so a Create event alone means nothing.
const settleDelay = 2 * time.Second

type VideoCreator interface {
	Create(ctx context.Context, v *data.MatchVideo) error
}

type DurationProber interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Watcher registers video files dropped into the staging directory.
// Filenames carry the linkage: {matchID}_{segment}.mp4, where segment is
// full, first_half/h1 or second_half/h2.
type Watcher struct {
	Dir    string
	Videos VideoCreator
	Prober DurationProber

	// pending tracks files waiting out their settle delay so a burst of
	// Write events registers one video, not many.
	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewWatcher(dir string, videos VideoCreator, prober DurationProber) *Watcher {
	return &Watcher{
		Dir:     dir,
		Videos:  videos,
		Prober:  prober,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches until the context ends. Events for non-video files and
// unparseable names are logged and dropped.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return err
	}
	log.Printf("Ingest: watching %s", w.Dir)
	defer w.drainPending()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isVideoFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Ingest: watch error: %v", err)
		}
	}
}

// schedule (re)arms the settle timer for a path. Every Write event pushes
// the registration further out; it fires only once the file goes quiet.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		if err := w.register(ctx, path); err != nil {
			log.Printf("Ingest: %s not registered: %v", filepath.Base(path), err)
		}
	})
}

// drainPending stops every armed settle timer. Called when Run exits so no
// registration fires after the watcher is gone.
func (w *Watcher) drainPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) register(ctx context.Context, path string) error {
	w.mu.Lock()
	_, armed := w.pending[path]
	delete(w.pending, path)
	w.mu.Unlock()
	// A Write landing between the timer firing and this point Resets the
	// already-fired timer, queueing a second call. The map entry is gone by
	// then, so the duplicate bails here.
	if !armed {
		return nil
	}

	matchID, videoType, startMinute, ok := ParseStagingName(filepath.Base(path))
	if !ok {
		log.Printf("Ingest: ignoring %s, name does not carry a match id", filepath.Base(path))
		return nil
	}

	v := &data.MatchVideo{
		MatchID:     matchID,
		FileURL:     path,
		VideoType:   videoType,
		StartMinute: startMinute,
	}

	// A failed probe still registers the video; window clamping just has
	// no upper bound until someone fills the duration in.
	if dur, err := w.Prober.Probe(ctx, path); err != nil {
		log.Printf("Ingest: probe of %s failed: %v", filepath.Base(path), err)
	} else {
		v.DurationSeconds = &dur
	}

	if err := w.Videos.Create(ctx, v); err != nil {
		return err
	}
	log.Printf("Ingest: registered %s video %s for match %s", videoType, filepath.Base(path), matchID)
	return nil
}

func isVideoFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".mkv", ".ts":
		return true
	}
	return false
}

// ParseStagingName splits {matchID}_{segment}{ext} into its parts.
// Recognized segments: full, first_half, h1, second_half, h2. A bare
// {matchID}{ext} registers as a full match video.
func ParseStagingName(name string) (matchID uuid.UUID, videoType string, startMinute int, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	idPart, segment := base, ""
	if i := strings.Index(base, "_"); i >= 0 {
		idPart, segment = base[:i], base[i+1:]
	}

	matchID, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, "", 0, false
	}

	switch strings.ToLower(segment) {
	case "", "full":
		return matchID, data.VideoTypeFull, 0, true
	case "first_half", "h1", "1st":
		return matchID, data.VideoTypeFirstHalf, 0, true
	case "second_half", "h2", "2nd":
		return matchID, data.VideoTypeSecondHalf, 45, true
	}
	return uuid.Nil, "", 0, false
}
