package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"trips/internal/domain"
	"trips/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `
	id, rider_id, driver_id, vehicle_type, status, city,
	origin_lat, origin_lng, origin_h3,
	dest_lat, dest_lng, dest_h3,
	requested_at, offered_at, assigned_at, pickup_started_at, in_progress_at, completed_at, paid_at,
	quote_id, pricing, payment_intent_id,
	est_distance_m, est_duration_s, final_distance_m, final_duration_s,
	cancel_side, cancel_reason, canceled_at
`

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)
	`

	args, err := tripArgs(trip)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return trip, nil
}

// Update updates an existing trip.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips SET
			rider_id = $2, driver_id = $3, vehicle_type = $4, status = $5, city = $6,
			origin_lat = $7, origin_lng = $8, origin_h3 = $9,
			dest_lat = $10, dest_lng = $11, dest_h3 = $12,
			requested_at = $13, offered_at = $14, assigned_at = $15, pickup_started_at = $16,
			in_progress_at = $17, completed_at = $18, paid_at = $19,
			quote_id = $20, pricing = $21, payment_intent_id = $22,
			est_distance_m = $23, est_duration_s = $24, final_distance_m = $25, final_duration_s = $26,
			cancel_side = $27, cancel_reason = $28, canceled_at = $29
		WHERE id = $1
	`

	args, err := tripArgs(trip)
	if err != nil {
		return err
	}

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByRiderID retrieves recent trips for a rider.
func (r *TripRepository) ListByRiderID(ctx context.Context, riderID string, limit int) ([]*domain.Trip, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + tripColumns + ` FROM trips WHERE rider_id = $1 ORDER BY requested_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, riderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// GetActiveByDriverID retrieves the non-terminal trip assigned to a driver.
// Returns nil if no active trip exists.
func (r *TripRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + ` FROM trips
		WHERE driver_id = $1 AND status NOT IN ('PAID', 'CANCELED')
		ORDER BY assigned_at DESC LIMIT 1
	`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return trip, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func tripArgs(trip *domain.Trip) ([]any, error) {
	var pricing []byte
	if trip.Pricing != nil {
		data, err := json.Marshal(trip.Pricing)
		if err != nil {
			return nil, err
		}
		pricing = data
	}

	var finalDistance, finalDuration sql.NullFloat64
	if trip.Final != nil {
		finalDistance = sql.NullFloat64{Float64: trip.Final.DistanceM, Valid: true}
		finalDuration = sql.NullFloat64{Float64: trip.Final.DurationS, Valid: true}
	}

	var cancelSide, cancelReason sql.NullString
	var canceledAt sql.NullTime
	if trip.Cancel != nil {
		cancelSide = sql.NullString{String: string(trip.Cancel.Side), Valid: true}
		cancelReason = sql.NullString{String: trip.Cancel.Reason, Valid: true}
		canceledAt = sql.NullTime{Time: trip.Cancel.At, Valid: true}
	}

	return []any{
		trip.ID,
		trip.RiderID,
		nullString(trip.DriverID),
		string(trip.VehicleType),
		string(trip.Status),
		trip.City,
		trip.Origin.Lat, trip.Origin.Lng, trip.Origin.H3Index,
		trip.Destination.Lat, trip.Destination.Lng, trip.Destination.H3Index,
		trip.RequestedAt,
		nullTime(trip.OfferedAt),
		nullTime(trip.AssignedAt),
		nullTime(trip.PickupStartedAt),
		nullTime(trip.InProgressAt),
		nullTime(trip.CompletedAt),
		nullTime(trip.PaidAt),
		nullString(trip.QuoteID),
		pricing,
		nullString(trip.PaymentIntentID),
		trip.Estimated.DistanceM,
		trip.Estimated.DurationS,
		finalDistance,
		finalDuration,
		cancelSide,
		cancelReason,
		canceledAt,
	}, nil
}

func scanTrip(s scanner) (*domain.Trip, error) {
	var trip domain.Trip
	var driverID, quoteID, paymentIntentID, cancelSide, cancelReason sql.NullString
	var offeredAt, assignedAt, pickupStartedAt, inProgressAt, completedAt, paidAt, canceledAt sql.NullTime
	var pricing []byte
	var finalDistance, finalDuration sql.NullFloat64
	var vehicleType, status string

	err := s.Scan(
		&trip.ID,
		&trip.RiderID,
		&driverID,
		&vehicleType,
		&status,
		&trip.City,
		&trip.Origin.Lat, &trip.Origin.Lng, &trip.Origin.H3Index,
		&trip.Destination.Lat, &trip.Destination.Lng, &trip.Destination.H3Index,
		&trip.RequestedAt,
		&offeredAt,
		&assignedAt,
		&pickupStartedAt,
		&inProgressAt,
		&completedAt,
		&paidAt,
		&quoteID,
		&pricing,
		&paymentIntentID,
		&trip.Estimated.DistanceM,
		&trip.Estimated.DurationS,
		&finalDistance,
		&finalDuration,
		&cancelSide,
		&cancelReason,
		&canceledAt,
	)
	if err != nil {
		return nil, err
	}

	trip.VehicleType = domain.VehicleType(vehicleType)
	trip.Status = domain.TripStatus(status)
	trip.DriverID = driverID.String
	trip.QuoteID = quoteID.String
	trip.PaymentIntentID = paymentIntentID.String
	trip.OfferedAt = timeOrZero(offeredAt)
	trip.AssignedAt = timeOrZero(assignedAt)
	trip.PickupStartedAt = timeOrZero(pickupStartedAt)
	trip.InProgressAt = timeOrZero(inProgressAt)
	trip.CompletedAt = timeOrZero(completedAt)
	trip.PaidAt = timeOrZero(paidAt)

	if len(pricing) > 0 {
		var snapshot domain.PricingSnapshot
		if err := json.Unmarshal(pricing, &snapshot); err != nil {
			return nil, err
		}
		trip.Pricing = &snapshot
	}

	if finalDistance.Valid || finalDuration.Valid {
		trip.Final = &domain.TripMetrics{
			DistanceM: finalDistance.Float64,
			DurationS: finalDuration.Float64,
		}
	}

	if cancelSide.Valid {
		trip.Cancel = &domain.Cancellation{
			Side:   domain.CancelSide(cancelSide.String),
			Reason: cancelReason.String,
			At:     timeOrZero(canceledAt),
		}
	}

	return &trip, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timeOrZero(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}
