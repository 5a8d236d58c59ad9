// README: Location store: append-only Postgres log with a Redis GEO mirror
// of each driver's newest fresh position.
package location

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"waypoint/internal/types"
)

const driverGeoKey = "tracking:drivers"

var ErrNoSample = errors.New("no location sample for driver")

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client) *Store {
	return &Store{db: db, redis: rdb}
}

// Append writes the sample to the log. Returns false when the
// (driver_id, recorded_at) pair was already present.
func (s *Store) Append(ctx context.Context, sample Sample) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO driver_locations (
			driver_id, lat, lng, heading, speed_kmh, accuracy_m, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (driver_id, recorded_at) DO NOTHING`,
		string(sample.DriverID),
		sample.Lat, sample.Lng,
		sample.Heading, sample.SpeedKmh, sample.AccuracyM,
		sample.RecordedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Latest returns the newest sample for a driver, or ErrNoSample.
func (s *Store) Latest(ctx context.Context, driverID types.ID) (*Sample, error) {
	row := s.db.QueryRow(ctx, `
		SELECT driver_id, lat, lng, heading, speed_kmh, accuracy_m, recorded_at
		FROM driver_locations
		WHERE driver_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`, string(driverID),
	)

	var sm Sample
	var heading, speed, accuracy sql.NullFloat64
	err := row.Scan(&sm.DriverID, &sm.Lat, &sm.Lng, &heading, &speed, &accuracy, &sm.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSample
	}
	if err != nil {
		return nil, err
	}
	sm.Heading = toFloatPtr(heading)
	sm.SpeedKmh = toFloatPtr(speed)
	sm.AccuracyM = toFloatPtr(accuracy)
	return &sm, nil
}

// SetGeo mirrors a fresh position into the Redis GEO set so nearby queries
// and dashboards read O(1) from Redis instead of scanning the log.
func (s *Store) SetGeo(ctx context.Context, driverID types.ID, p types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(driverID),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func toFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
