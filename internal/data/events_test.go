package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

var eventCols = []string{
	"id", "match_id", "event_type", "minute", "second", "description",
	"clip_url", "clip_pending", "video_id", "match_half", "metadata",
	"created_at", "updated_at",
}

func eventRow(id, matchID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(eventCols).
		AddRow(id, matchID, "goal", 23, 10, "Header from corner",
			nil, false, nil, nil, []byte(`{"video_offset_ms": 1391000}`),
			time.Now(), time.Now())
}

func TestEventGetByID(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	m := EventModel{DB: db}

	id, matchID := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM match_events WHERE id").
		WithArgs(id).
		WillReturnRows(eventRow(id, matchID))

	e, err := m.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if e.EventType != "goal" || e.Minute != 23 || e.Second != 10 {
		t.Errorf("scanned wrong event: %+v", e)
	}
	if e.ClipURL != nil {
		t.Error("clip_url NULL should scan to nil")
	}
	if off, ok := e.MetadataOffsetMs(); !ok || off != 1391000 {
		t.Errorf("metadata offset = %d, %v", off, ok)
	}
}

func TestEventGetByID_NotFound(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	m := EventModel{DB: db}

	mock.ExpectQuery("FROM match_events WHERE id").
		WillReturnError(sql.ErrNoRows)

	if _, err := m.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("want ErrRecordNotFound, got %v", err)
	}
}

func TestEventListByMatch_OrderedByGameTime(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	m := EventModel{DB: db}

	matchID := uuid.New()
	rows := sqlmock.NewRows(eventCols).
		AddRow(uuid.New(), matchID, "kickoff", 0, 0, nil, nil, false, nil, nil, nil, time.Now(), time.Now()).
		AddRow(uuid.New(), matchID, "goal", 23, 10, nil, nil, false, nil, nil, nil, time.Now(), time.Now())

	mock.ExpectQuery("ORDER BY minute, second, created_at").
		WithArgs(matchID).
		WillReturnRows(rows)

	events, err := m.ListByMatch(context.Background(), matchID)
	if err != nil {
		t.Fatalf("ListByMatch failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].EventType != "kickoff" || events[1].EventType != "goal" {
		t.Error("events out of order")
	}
}

func TestEventUpdateClip(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	m := EventModel{DB: db}

	id := uuid.New()
	mock.ExpectExec("UPDATE match_events").
		WithArgs("http://store/clips/event.mp4", false, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.UpdateClip(context.Background(), id, "http://store/clips/event.mp4", false); err != nil {
		t.Errorf("UpdateClip failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestEventUpdateClip_MissingRow(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	m := EventModel{DB: db}

	mock.ExpectExec("UPDATE match_events").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := m.UpdateClip(context.Background(), uuid.New(), "x", false)
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("want ErrRecordNotFound, got %v", err)
	}
}

func TestEventUpdateTagging(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	m := EventModel{DB: db}

	half := HalfSecond
	e := &MatchEvent{
		ID:        uuid.New(),
		EventType: "yellow_card",
		Minute:    67,
		Second:    30,
		MatchHalf: &half,
		Metadata:  json.RawMessage(`{"videoSecond": 1350}`),
	}

	mock.ExpectExec("UPDATE match_events").
		WithArgs("yellow_card", 67, 30, nil, &half, []byte(e.Metadata), e.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := m.UpdateTagging(context.Background(), e); err != nil {
		t.Errorf("UpdateTagging failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMetadataOffsetMs(t *testing.T) {
	cases := []struct {
		name string
		meta string
		want int64
		ok   bool
	}{
		{"millisecond key", `{"video_offset_ms": 1391000}`, 1391000, true},
		{"legacy second key", `{"videoSecond": 1391}`, 1391000, true},
		{"ms key wins over legacy", `{"video_offset_ms": 2000, "videoSecond": 99}`, 2000, true},
		{"negative rejected", `{"video_offset_ms": -5}`, 0, false},
		{"wrong type", `{"video_offset_ms": "soon"}`, 0, false},
		{"empty", ``, 0, false},
		{"garbage", `not json`, 0, false},
	}
	for _, tc := range cases {
		e := &MatchEvent{}
		if tc.meta != "" {
			e.Metadata = json.RawMessage(tc.meta)
		}
		got, ok := e.MetadataOffsetMs()
		if got != tc.want || ok != tc.ok {
			t.Errorf("%s: got (%d, %v), want (%d, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestGameTimeSeconds(t *testing.T) {
	e := &MatchEvent{Minute: 23, Second: 10}
	if got := e.GameTimeSeconds(); got != 1390 {
		t.Errorf("GameTimeSeconds = %v, want 1390", got)
	}
}
