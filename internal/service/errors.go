package service

import "errors"

var (
	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidOrigin is returned when origin coordinates are out of range.
	ErrInvalidOrigin = errors.New("invalid origin location")

	// ErrInvalidDestination is returned when destination coordinates are out of range.
	ErrInvalidDestination = errors.New("invalid destination location")

	// ErrInvalidVehicleType is returned when the requested vehicle type is unknown.
	ErrInvalidVehicleType = errors.New("invalid vehicle type")

	// ErrInvalidCity is returned when the city code is empty.
	ErrInvalidCity = errors.New("invalid city")

	// ErrEmptyPin is returned when the presented PIN is empty.
	ErrEmptyPin = errors.New("pin must not be empty")

	// ErrInvalidCancelSide is returned when the cancellation side is not rider,
	// driver, or system.
	ErrInvalidCancelSide = errors.New("invalid cancel side")

	// ErrInvalidMetrics is returned when final trip metrics are missing or
	// non-positive.
	ErrInvalidMetrics = errors.New("invalid final trip metrics")

	// ErrPickupEtaUnavailable is returned when the pickup ETA cannot be
	// resolved for a driver accepting an offer. Acceptance requires a
	// deliverable ETA, so the caller gets a client error rather than a
	// degraded assignment.
	ErrPickupEtaUnavailable = errors.New("pickup eta unavailable")

	// ErrInvalidPaymentMethod is returned when payment method is empty.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)
