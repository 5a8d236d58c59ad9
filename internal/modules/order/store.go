// README: Order store backed by PostgreSQL with optimistic status versioning.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waypoint/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var dLat, dLng *float64
	if o.DeliveryPoint != nil {
		dLat, dLng = &o.DeliveryPoint.Lat, &o.DeliveryPoint.Lng
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, driver_id, status, status_version,
			delivery_address, delivery_lat, delivery_lng,
			estimated_delivery_time, actual_delivery_time, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(o.ID),
		string(o.UserID),
		toStringPtr(o.DriverID),
		string(o.Status),
		o.StatusVersion,
		o.DeliveryAddress,
		dLat, dLng,
		o.EstimatedDeliveryTime,
		o.ActualDeliveryTime,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}
	for i, h := range o.History {
		if err := insertHistory(ctx, tx, o.ID, i, h); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, driver_id, status, status_version,
		       delivery_address, delivery_lat, delivery_lng,
		       estimated_delivery_time, actual_delivery_time, created_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus performs the compare-and-swap on (status, status_version) and
// appends the history entry in the same transaction. Returns false when a
// concurrent writer won the race.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, entry StatusChange, deliveredAt *time.Time) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    actual_delivery_time = COALESCE($2, actual_delivery_time)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		deliveredAt,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	var seq int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_status_history WHERE order_id = $1`,
		string(id),
	).Scan(&seq); err != nil {
		return false, err
	}
	if err := insertHistory(ctx, tx, id, seq, entry); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// SetDriver assigns a driver under the same optimistic check as UpdateStatus.
func (s *Store) SetDriver(ctx context.Context, id types.ID, driverID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET driver_id = $1,
		    status_version = status_version + 1
		WHERE id = $2 AND status_version = $3`,
		string(driverID),
		string(id),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetETA persists a recomputed estimate. Last writer wins: callers already
// serialize per order, and the estimate is advisory, not lifecycle state.
func (s *Store) SetETA(ctx context.Context, id types.ID, eta time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE orders SET estimated_delivery_time = $1 WHERE id = $2`,
		eta, string(id),
	)
	return err
}

// ActiveByDriver returns the driver's out_for_delivery orders.
func (s *Store) ActiveByDriver(ctx context.Context, driverID types.ID) ([]*Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, driver_id, status, status_version,
		       delivery_address, delivery_lat, delivery_lng,
		       estimated_delivery_time, actual_delivery_time, created_at
		FROM orders
		WHERE driver_id = $1 AND status = $2`,
		string(driverID), string(StatusOutForDelivery),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if err := s.loadHistory(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadHistory(ctx context.Context, o *Order) error {
	rows, err := s.db.Query(ctx, `
		SELECT status, actor_type, actor_id, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY seq`, string(o.ID),
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var h StatusChange
		var actorID, note sql.NullString
		if err := rows.Scan(&h.Status, &h.Actor.Type, &actorID, &note, &h.At); err != nil {
			return err
		}
		if actorID.Valid {
			h.Actor.ID = types.ID(actorID.String)
		}
		h.Note = note.String
		o.History = append(o.History, h)
	}
	return rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, orderID types.ID, seq int, h StatusChange) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, seq, status, actor_type, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(orderID), seq, string(h.Status), string(h.Actor.Type),
		nullableID(h.Actor.ID), nullableString(h.Note), h.At,
	)
	return err
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var driverID sql.NullString
	var dLat, dLng sql.NullFloat64
	var estimated, actual sql.NullTime

	err := row.Scan(
		&o.ID, &o.UserID, &driverID, &o.Status, &o.StatusVersion,
		&o.DeliveryAddress, &dLat, &dLng,
		&estimated, &actual, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		d := types.ID(driverID.String)
		o.DriverID = &d
	}
	if dLat.Valid && dLng.Valid {
		o.DeliveryPoint = &types.Point{Lat: dLat.Float64, Lng: dLng.Float64}
	}
	o.EstimatedDeliveryTime = toTimePtr(estimated)
	o.ActualDeliveryTime = toTimePtr(actual)
	return &o, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nullableID(v types.ID) *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
