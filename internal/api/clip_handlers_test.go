package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/matchframe/mf-clips/internal/clips"
	"github.com/matchframe/mf-clips/internal/data"
	"github.com/matchframe/mf-clips/internal/progress"
	"github.com/matchframe/mf-clips/internal/publish"
	"github.com/matchframe/mf-clips/internal/storage"
)

// fakeProgress implements both the clip service's store and the handler's
// reader over a plain map, safe for the async batch goroutine.
type fakeProgress struct {
	mu       sync.Mutex
	state    string
	total    int
	inflight map[uuid.UUID]bool
	cancel   bool
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{inflight: map[uuid.UUID]bool{}}
}

func (p *fakeProgress) Begin(ctx context.Context, matchID uuid.UUID, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = "running"
	p.total = total
	return nil
}

func (p *fakeProgress) Step(ctx context.Context, matchID uuid.UUID, ok bool, message string) error {
	return nil
}

func (p *fakeProgress) Stage(ctx context.Context, matchID uuid.UUID, message string) error {
	return nil
}

func (p *fakeProgress) Finish(ctx context.Context, matchID uuid.UUID, state, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	return nil
}

func (p *fakeProgress) Cancelled(ctx context.Context, matchID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel
}

func (p *fakeProgress) TryAcquireEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight[eventID] {
		return false, nil
	}
	p.inflight[eventID] = true
	return true, nil
}

func (p *fakeProgress) ReleaseEvent(ctx context.Context, eventID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, eventID)
}

func (p *fakeProgress) Get(ctx context.Context, matchID uuid.UUID) (*progress.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == "" {
		return nil, nil
	}
	return &progress.Snapshot{State: p.state, Total: p.total, UpdatedAt: time.Now().Unix()}, nil
}

func (p *fakeProgress) RequestCancel(ctx context.Context, matchID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel = true
	return nil
}

func (p *fakeProgress) snapshotState() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

type handlerFixture struct {
	events   *clips.MockEventStore
	videos   *clips.MockVideoStore
	thumbs   *clips.MockThumbnailStore
	progress *fakeProgress
	router   chi.Router
}

// eventRepo matches the handler's repo interface on top of the store mocks.
type eventRepo struct{ *clips.MockEventStore }

func (r eventRepo) UpdateTagging(ctx context.Context, e *data.MatchEvent) error {
	args := r.Called(ctx, e)
	return args.Error(0)
}

type videoRepo struct{ *clips.MockVideoStore }

func (r videoRepo) Create(ctx context.Context, v *data.MatchVideo) error {
	args := r.Called(ctx, v)
	return args.Error(0)
}

type thumbRepo struct{ *clips.MockThumbnailStore }

func (r thumbRepo) GetByEvent(ctx context.Context, eventID uuid.UUID) (*data.Thumbnail, error) {
	args := r.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.Thumbnail), args.Error(1)
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	f := &handlerFixture{
		events:   new(clips.MockEventStore),
		videos:   new(clips.MockVideoStore),
		thumbs:   new(clips.MockThumbnailStore),
		progress: newFakeProgress(),
	}
	svc := clips.NewService(f.events, f.videos, f.thumbs,
		new(clips.MockBlobStore), new(clips.MockPipeline), f.progress,
		publish.NopPublisher{}, noopMetrics{})

	h := NewClipHandler(svc, eventRepo{f.events}, videoRepo{f.videos}, thumbRepo{f.thumbs}, f.progress)

	f.router = chi.NewRouter()
	f.router.Route("/api/v1", func(r chi.Router) {
		h.Register(r)
	})
	return f
}

type noopMetrics struct{}

func (noopMetrics) ClipGenerated(string)         {}
func (noopMetrics) ClipFailed(string)            {}
func (noopMetrics) ThumbnailMiss()               {}
func (noopMetrics) ObserveExtract(time.Duration) {}
func (noopMetrics) BatchStarted()                {}
func (noopMetrics) BatchEnded()                  {}

func TestListEvents(t *testing.T) {
	f := newHandlerFixture(t)
	matchID := uuid.New()
	f.events.On("ListByMatch", mock.Anything, matchID).Return([]*data.MatchEvent{
		{ID: uuid.New(), MatchID: matchID, EventType: "goal", Minute: 23, Second: 10},
	}, nil)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/matches/"+matchID.String()+"/events", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Events []*data.MatchEvent `json:"events"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Events) != 1 || resp.Events[0].EventType != "goal" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestListEvents_InvalidID(t *testing.T) {
	f := newHandlerFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/matches/not-a-uuid/events", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegisterVideo(t *testing.T) {
	f := newHandlerFixture(t)
	matchID := uuid.New()
	f.videos.On("Create", mock.Anything, mock.MatchedBy(func(v *data.MatchVideo) bool {
		return v.VideoType == data.VideoTypeSecondHalf && v.StartMinute == 45
	})).Return(nil)

	body := `{"file_url": "http://cdn/h2.mp4", "video_type": "second_half"}`
	req := httptest.NewRequest("POST", "/api/v1/matches/"+matchID.String()+"/videos", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	f.videos.AssertExpectations(t)
}

func TestRegisterVideo_BadType(t *testing.T) {
	f := newHandlerFixture(t)
	body := `{"file_url": "http://cdn/x.mp4", "video_type": "highlight_reel"}`
	req := httptest.NewRequest("POST", "/api/v1/matches/"+uuid.NewString()+"/videos", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRegenerateClip_EventNotFound(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := uuid.New()
	f.events.On("GetByID", mock.Anything, eventID).Return(nil, data.ErrRecordNotFound)

	req := httptest.NewRequest("POST", "/api/v1/events/"+eventID.String()+"/clip", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRegenerateClip_NoVideo(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := uuid.New()
	f.events.On("GetByID", mock.Anything, eventID).Return(&data.MatchEvent{
		ID: eventID, MatchID: uuid.New(), EventType: "goal", Minute: 23,
	}, nil)
	f.videos.On("ListByMatch", mock.Anything, mock.Anything).Return([]*data.MatchVideo{}, nil)

	req := httptest.NewRequest("POST", "/api/v1/events/"+eventID.String()+"/clip", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestUpdateEvent_AppliesPartialEdit(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := uuid.New()
	event := &data.MatchEvent{ID: eventID, MatchID: uuid.New(), EventType: "goal", Minute: 23, Second: 10}
	f.events.On("GetByID", mock.Anything, eventID).Return(event, nil)
	f.events.On("UpdateTagging", mock.Anything, mock.MatchedBy(func(e *data.MatchEvent) bool {
		return e.Minute == 24 && e.EventType == "goal"
	})).Return(nil)

	// The edit moves the event, so the async resync kicks in; it will ask
	// for the event's videos.
	f.videos.On("ListByMatch", mock.Anything, mock.Anything).Return([]*data.MatchVideo{}, nil).Maybe()
	f.events.On("SetClipPending", mock.Anything, eventID, true).Return(nil).Maybe()

	body := `{"minute": 24}`
	req := httptest.NewRequest("PATCH", "/api/v1/events/"+eventID.String(), strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp data.MatchEvent
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Minute != 24 || resp.Second != 10 {
		t.Errorf("partial edit not applied: %+v", resp)
	}
	// Let the resync goroutine finish before the mocks go out of scope.
	time.Sleep(50 * time.Millisecond)
}

func TestUpdateEvent_RejectsBadSecond(t *testing.T) {
	f := newHandlerFixture(t)
	eventID := uuid.New()
	f.events.On("GetByID", mock.Anything, eventID).Return(&data.MatchEvent{ID: eventID}, nil)

	body := `{"second": 61}`
	req := httptest.NewRequest("PATCH", "/api/v1/events/"+eventID.String(), strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProgressEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	matchID := uuid.New()

	// Nothing recorded yet.
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/matches/"+matchID.String()+"/clips/progress", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("empty progress status = %d, want 404", w.Code)
	}

	f.progress.Begin(context.Background(), matchID, 5)

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/matches/"+matchID.String()+"/clips/progress", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("progress status = %d", w.Code)
	}
	var snap progress.Snapshot
	json.Unmarshal(w.Body.Bytes(), &snap)
	if snap.State != "running" || snap.Total != 5 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/matches/"+matchID.String()+"/clips/cancel", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d", w.Code)
	}
	if !f.progress.Cancelled(context.Background(), matchID) {
		t.Error("cancel flag not set")
	}
}

func TestGenerateBatch_ConflictWhileRunning(t *testing.T) {
	f := newHandlerFixture(t)
	matchID := uuid.New()
	f.progress.Begin(context.Background(), matchID, 3)

	req := httptest.NewRequest("POST", "/api/v1/matches/"+matchID.String()+"/clips/generate", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestGenerateBatch_StartsRun(t *testing.T) {
	f := newHandlerFixture(t)
	matchID := uuid.New()
	f.events.On("ListByMatch", mock.Anything, matchID).Return([]*data.MatchEvent{}, nil)

	body := `{"video_url": "http://cdn/full.mp4"}`
	req := httptest.NewRequest("POST", "/api/v1/matches/"+matchID.String()+"/clips/generate", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	// Empty match: the async run should finish almost immediately.
	deadline := time.Now().Add(2 * time.Second)
	for f.progress.snapshotState() != "done" {
		if time.Now().After(deadline) {
			t.Fatalf("batch never finished, state = %q", f.progress.snapshotState())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMediaServe(t *testing.T) {
	dir := t.TempDir()
	signer := storage.NewSigner("test-key", time.Minute)
	store, err := storage.NewLocalStore(dir, "http://localhost:8080", signer)
	if err != nil {
		t.Fatal(err)
	}

	matchID := uuid.New()
	url, err := store.UploadBlob(context.Background(), matchID, storage.KindClips,
		"event-a.mp4", bytes.NewReader([]byte("mp4-bytes")))
	if err != nil {
		t.Fatal(err)
	}

	r := chi.NewRouter()
	NewMediaHandler(store).Register(r)

	// Happy path: exactly the URL the upload returned.
	req := httptest.NewRequest("GET", strings.TrimPrefix(url, "http://localhost:8080"), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "mp4-bytes" {
		t.Error("wrong body served")
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("Content-Type = %q", ct)
	}

	// No token.
	req = httptest.NewRequest("GET", "/media/"+matchID.String()+"/clips/event-a.mp4", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", w.Code)
	}

	// Token for another file must not open this one.
	otherToken, _ := signer.Sign(matchID.String() + "/clips/other.mp4")
	req = httptest.NewRequest("GET", "/media/"+matchID.String()+"/clips/event-a.mp4?t="+otherToken, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("cross-path token status = %d, want 403", w.Code)
	}

	// Valid token but the artifact is gone.
	os.Remove(filepath.Join(dir, matchID.String(), "clips", "event-a.mp4"))
	req = httptest.NewRequest("GET", strings.TrimPrefix(url, "http://localhost:8080"), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted artifact status = %d, want 404", w.Code)
	}
}
