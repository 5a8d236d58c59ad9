// README: Driver location ingestion: validate, persist, flag staleness, and
// hand the sample to the tracking layer for ETA recomputation.
package location

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"waypoint/internal/metrics"
	"waypoint/internal/types"
)

var ErrValidation = errors.New("invalid location sample")

// Log is the persistence port for samples. *Store satisfies it.
type Log interface {
	Append(ctx context.Context, sample Sample) (bool, error)
	Latest(ctx context.Context, driverID types.ID) (*Sample, error)
	SetGeo(ctx context.Context, driverID types.ID, p types.Point) error
}

// Tracker receives accepted samples. The tracking manager satisfies it and
// fans the sample out to the driver's active orders.
type Tracker interface {
	OnLocation(ctx context.Context, sample Sample)
}

type Ingest struct {
	log         Log
	tracker     Tracker
	staleWindow time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

func NewIngest(log Log, tracker Tracker, staleWindow time.Duration, logger *slog.Logger) *Ingest {
	return &Ingest{
		log:         log,
		tracker:     tracker,
		staleWindow: staleWindow,
		logger:      logger.With("component", "location_ingest"),
		now:         time.Now,
	}
}

// Record is the sole write path for "current location". Malformed samples
// are rejected before any persistence. Stale samples are stored but flagged,
// never mirrored as fresh, and still forwarded so sessions can show the
// stale-but-present position.
func (in *Ingest) Record(ctx context.Context, sample Sample) (Current, error) {
	metrics.LocationSamplesTotal.Inc()

	if err := validate(sample); err != nil {
		metrics.LocationSamplesRejectedTotal.Inc()
		return Current{}, err
	}
	now := in.now()
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = now
	}

	inserted, err := in.log.Append(ctx, sample)
	if err != nil {
		return Current{}, err
	}

	stale := now.Sub(sample.RecordedAt) > in.staleWindow
	if stale {
		metrics.LocationSamplesStaleTotal.Inc()
	} else if err := in.log.SetGeo(ctx, sample.DriverID, sample.Point()); err != nil {
		// The Postgres log is the source of truth; a failed mirror write
		// must not reject the sample.
		in.logger.WarnContext(ctx, "geo mirror write failed",
			"driver_id", sample.DriverID, "error", err)
	}

	// A replayed sample was already applied once; do not recompute again.
	if inserted && in.tracker != nil {
		in.tracker.OnLocation(ctx, sample)
	}
	return Current{Sample: sample, Stale: stale}, nil
}

// Current returns the newest known sample with its staleness flag.
func (in *Ingest) Current(ctx context.Context, driverID types.ID) (Current, error) {
	sm, err := in.log.Latest(ctx, driverID)
	if err != nil {
		return Current{}, err
	}
	return Current{
		Sample: *sm,
		Stale:  in.now().Sub(sm.RecordedAt) > in.staleWindow,
	}, nil
}

func validate(s Sample) error {
	if s.DriverID == "" {
		return ErrValidation
	}
	if s.Lat < -90 || s.Lat > 90 {
		return ErrValidation
	}
	if s.Lng < -180 || s.Lng > 180 {
		return ErrValidation
	}
	if s.Heading != nil && (*s.Heading < 0 || *s.Heading > 360) {
		return ErrValidation
	}
	if s.SpeedKmh != nil && *s.SpeedKmh < 0 {
		return ErrValidation
	}
	return nil
}
