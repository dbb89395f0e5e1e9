package clips

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/matchframe/mf-clips/internal/data"
	"github.com/matchframe/mf-clips/internal/extract"
	"github.com/matchframe/mf-clips/internal/publish"
	"github.com/matchframe/mf-clips/internal/thumbnail"
	"github.com/matchframe/mf-clips/internal/timing"
)

// MockEventStore
type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) GetByID(ctx context.Context, id uuid.UUID) (*data.MatchEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.MatchEvent), args.Error(1)
}

func (m *MockEventStore) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*data.MatchEvent, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.MatchEvent), args.Error(1)
}

func (m *MockEventStore) UpdateClip(ctx context.Context, id uuid.UUID, clipURL string, pending bool) error {
	args := m.Called(ctx, id, clipURL, pending)
	return args.Error(0)
}

func (m *MockEventStore) SetClipPending(ctx context.Context, id uuid.UUID, pending bool) error {
	args := m.Called(ctx, id, pending)
	return args.Error(0)
}

// MockVideoStore
type MockVideoStore struct {
	mock.Mock
}

func (m *MockVideoStore) GetByID(ctx context.Context, id uuid.UUID) (*data.MatchVideo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.MatchVideo), args.Error(1)
}

func (m *MockVideoStore) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]*data.MatchVideo, error) {
	args := m.Called(ctx, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*data.MatchVideo), args.Error(1)
}

// MockThumbnailStore
type MockThumbnailStore struct {
	mock.Mock
}

func (m *MockThumbnailStore) Create(ctx context.Context, t *data.Thumbnail) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockBlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) UploadBlob(ctx context.Context, matchID uuid.UUID, kind, filename string, r io.Reader) (string, error) {
	args := m.Called(ctx, matchID, kind, filename, r)
	return args.String(0), args.Error(1)
}

// MockPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) ClipGenerated(n publish.ClipNotice) error {
	args := m.Called(n)
	return args.Error(0)
}

func (m *MockPublisher) ClipFailed(n publish.ClipNotice) error {
	args := m.Called(n)
	return args.Error(0)
}

// MockPipeline
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Fetch(ctx context.Context, sourceURL string) (string, func(), error) {
	args := m.Called(ctx, sourceURL)
	cleanup, _ := args.Get(1).(func())
	if cleanup == nil {
		cleanup = func() {}
	}
	return args.String(0), cleanup, args.Error(2)
}

func (m *MockPipeline) Cut(ctx context.Context, sourcePath string, w timing.Window, caption *extract.Caption) (string, func(), error) {
	args := m.Called(ctx, sourcePath, w, caption)
	cleanup, _ := args.Get(1).(func())
	if cleanup == nil {
		cleanup = func() {}
	}
	return args.String(0), cleanup, args.Error(2)
}

func (m *MockPipeline) Thumbnail(ctx context.Context, clipPath string, meta thumbnail.Meta) []byte {
	args := m.Called(ctx, clipPath, meta)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]byte)
}

// memProgress is an in-memory ProgressStore; the Redis behavior itself is
// covered in the progress package.
type memProgress struct {
	total     int
	completed int
	failed    int
	state     string
	messages  []string
	cancelled bool
	inflight  map[uuid.UUID]bool

	// CancelAfterSteps stops the batch after N Step calls, mimicking the
	// UI pressing cancel mid-run.
	cancelAfterSteps int
	steps            int
}

func newMemProgress() *memProgress {
	return &memProgress{inflight: map[uuid.UUID]bool{}, cancelAfterSteps: -1}
}

func (p *memProgress) Begin(ctx context.Context, matchID uuid.UUID, total int) error {
	p.total = total
	p.state = "running"
	return nil
}

func (p *memProgress) Step(ctx context.Context, matchID uuid.UUID, ok bool, message string) error {
	if ok {
		p.completed++
	} else {
		p.failed++
	}
	p.messages = append(p.messages, message)
	p.steps++
	if p.cancelAfterSteps >= 0 && p.steps >= p.cancelAfterSteps {
		p.cancelled = true
	}
	return nil
}

func (p *memProgress) Stage(ctx context.Context, matchID uuid.UUID, message string) error {
	p.messages = append(p.messages, message)
	return nil
}

func (p *memProgress) Finish(ctx context.Context, matchID uuid.UUID, state, message string) error {
	p.state = state
	p.messages = append(p.messages, message)
	return nil
}

func (p *memProgress) Cancelled(ctx context.Context, matchID uuid.UUID) bool {
	return p.cancelled
}

func (p *memProgress) TryAcquireEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if p.inflight[eventID] {
		return false, nil
	}
	p.inflight[eventID] = true
	return true, nil
}

func (p *memProgress) ReleaseEvent(ctx context.Context, eventID uuid.UUID) {
	delete(p.inflight, eventID)
}

// nopMetrics
type nopMetrics struct{}

func (nopMetrics) ClipGenerated(string)          {}
func (nopMetrics) ClipFailed(string)             {}
func (nopMetrics) ThumbnailMiss()                {}
func (nopMetrics) ObserveExtract(time.Duration)  {}
func (nopMetrics) BatchStarted()                 {}
func (nopMetrics) BatchEnded()                   {}
