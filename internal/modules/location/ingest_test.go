// README: Ingestion tests: validation, idempotent replay, staleness flagging.
package location

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"waypoint/internal/types"
)

type fakeLog struct {
	inserted  bool
	appendErr error
	geoErr    error
	latest    *Sample
	latestErr error

	appends  []Sample
	geoCalls []types.ID
}

func (l *fakeLog) Append(_ context.Context, sample Sample) (bool, error) {
	if l.appendErr != nil {
		return false, l.appendErr
	}
	l.appends = append(l.appends, sample)
	return l.inserted, nil
}

func (l *fakeLog) Latest(_ context.Context, _ types.ID) (*Sample, error) {
	if l.latestErr != nil {
		return nil, l.latestErr
	}
	return l.latest, nil
}

func (l *fakeLog) SetGeo(_ context.Context, driverID types.ID, _ types.Point) error {
	l.geoCalls = append(l.geoCalls, driverID)
	return l.geoErr
}

type fakeTracker struct {
	samples []Sample
}

func (t *fakeTracker) OnLocation(_ context.Context, sample Sample) {
	t.samples = append(t.samples, sample)
}

func ptr[T any](v T) *T { return &v }

func newTestIngest(log *fakeLog, tracker *fakeTracker) (*Ingest, time.Time) {
	now := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	in := NewIngest(log, tracker, 5*time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	in.now = func() time.Time { return now }
	return in, now
}

func validSample(recordedAt time.Time) Sample {
	return Sample{
		DriverID:   "d1",
		Lat:        10.8231,
		Lng:        106.6297,
		Heading:    ptr(90.0),
		SpeedKmh:   ptr(32.0),
		RecordedAt: recordedAt,
	}
}

func TestRecordRejectsMalformedSamples(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Sample)
	}{
		{"empty driver id", func(s *Sample) { s.DriverID = "" }},
		{"latitude above range", func(s *Sample) { s.Lat = 90.1 }},
		{"latitude below range", func(s *Sample) { s.Lat = -90.1 }},
		{"longitude above range", func(s *Sample) { s.Lng = 180.1 }},
		{"longitude below range", func(s *Sample) { s.Lng = -180.1 }},
		{"heading above range", func(s *Sample) { s.Heading = ptr(361.0) }},
		{"negative heading", func(s *Sample) { s.Heading = ptr(-1.0) }},
		{"negative speed", func(s *Sample) { s.SpeedKmh = ptr(-5.0) }},
	}
	for _, tc := range cases {
		log := &fakeLog{inserted: true}
		tracker := &fakeTracker{}
		in, now := newTestIngest(log, tracker)

		s := validSample(now)
		tc.mutate(&s)

		_, err := in.Record(context.Background(), s)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: error = %v, want ErrValidation", tc.name, err)
		}
		if len(log.appends) != 0 {
			t.Errorf("%s: rejected sample reached the store", tc.name)
		}
		if len(tracker.samples) != 0 {
			t.Errorf("%s: rejected sample reached the tracker", tc.name)
		}
	}
}

func TestRecordFreshSample(t *testing.T) {
	log := &fakeLog{inserted: true}
	tracker := &fakeTracker{}
	in, now := newTestIngest(log, tracker)

	cur, err := in.Record(context.Background(), validSample(now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if cur.Stale {
		t.Error("one-minute-old sample flagged stale")
	}
	if len(log.appends) != 1 {
		t.Fatalf("appends = %d, want 1", len(log.appends))
	}
	if len(log.geoCalls) != 1 {
		t.Errorf("geo mirror writes = %d, want 1", len(log.geoCalls))
	}
	if len(tracker.samples) != 1 {
		t.Errorf("tracker notifications = %d, want 1", len(tracker.samples))
	}
}

// TestRecordReplayedSample: the store reports the (driver, recorded_at) pair
// as already present, so the tracker must not see it a second time.
func TestRecordReplayedSample(t *testing.T) {
	log := &fakeLog{inserted: false}
	tracker := &fakeTracker{}
	in, now := newTestIngest(log, tracker)

	cur, err := in.Record(context.Background(), validSample(now))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if cur.Stale {
		t.Error("replayed fresh sample flagged stale")
	}
	if len(tracker.samples) != 0 {
		t.Errorf("replay reached the tracker %d times, want 0", len(tracker.samples))
	}
}

func TestRecordStaleSample(t *testing.T) {
	log := &fakeLog{inserted: true}
	tracker := &fakeTracker{}
	in, now := newTestIngest(log, tracker)

	cur, err := in.Record(context.Background(), validSample(now.Add(-10*time.Minute)))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !cur.Stale {
		t.Error("ten-minute-old sample not flagged stale")
	}
	if len(log.appends) != 1 {
		t.Error("stale sample must still be persisted")
	}
	if len(log.geoCalls) != 0 {
		t.Error("stale sample must not be mirrored as a fresh position")
	}
	if len(tracker.samples) != 1 {
		t.Error("stale sample must still reach the tracker")
	}
}

func TestRecordDefaultsRecordedAt(t *testing.T) {
	log := &fakeLog{inserted: true}
	in, now := newTestIngest(log, &fakeTracker{})

	s := validSample(time.Time{})
	cur, err := in.Record(context.Background(), s)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !cur.RecordedAt.Equal(now) {
		t.Errorf("RecordedAt = %v, want defaulted to %v", cur.RecordedAt, now)
	}
	if !log.appends[0].RecordedAt.Equal(now) {
		t.Errorf("persisted RecordedAt = %v, want %v", log.appends[0].RecordedAt, now)
	}
}

func TestRecordSurvivesGeoMirrorFailure(t *testing.T) {
	log := &fakeLog{inserted: true, geoErr: errors.New("redis down")}
	tracker := &fakeTracker{}
	in, now := newTestIngest(log, tracker)

	_, err := in.Record(context.Background(), validSample(now))
	if err != nil {
		t.Fatalf("Record failed on mirror error: %v", err)
	}
	if len(tracker.samples) != 1 {
		t.Error("sample lost because of a mirror failure")
	}
}

func TestRecordPropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("pg down")
	log := &fakeLog{appendErr: storeErr}
	tracker := &fakeTracker{}
	in, now := newTestIngest(log, tracker)

	_, err := in.Record(context.Background(), validSample(now))
	if !errors.Is(err, storeErr) {
		t.Fatalf("error = %v, want store failure", err)
	}
	if len(tracker.samples) != 0 {
		t.Error("unpersisted sample reached the tracker")
	}
}

func TestCurrent(t *testing.T) {
	log := &fakeLog{}
	in, now := newTestIngest(log, &fakeTracker{})

	fresh := validSample(now.Add(-2 * time.Minute))
	log.latest = &fresh
	cur, err := in.Current(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Stale {
		t.Error("two-minute-old sample flagged stale")
	}

	old := validSample(now.Add(-20 * time.Minute))
	log.latest = &old
	cur, err = in.Current(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if !cur.Stale {
		t.Error("twenty-minute-old sample not flagged stale")
	}

	log.latestErr = ErrNoSample
	if _, err := in.Current(context.Background(), "unknown"); !errors.Is(err, ErrNoSample) {
		t.Fatalf("error = %v, want ErrNoSample", err)
	}
}
