package domain

import "fmt"

// Guard violations are distinct error types so callers can switch on the
// exact failure with errors.As and map each one to a specific client-facing
// response.

// InvalidTransitionError is returned when a command is not legal from the
// trip's current status.
type InvalidTransitionError struct {
	TripID  string
	From    TripStatus
	Command string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("trip %s: command %s not allowed from status %s", e.TripID, e.Command, e.From)
}

// AlreadyAssignedError is returned when a trip is already assigned to a
// different driver.
type AlreadyAssignedError struct {
	TripID            string
	AssignedDriverID  string
	RequestedDriverID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("trip %s: already assigned to driver %s", e.TripID, e.AssignedDriverID)
}

// DriverNotOnlineError is returned when the driver being assigned is
// reported offline by the presence service.
type DriverNotOnlineError struct {
	TripID   string
	DriverID string
}

func (e *DriverNotOnlineError) Error() string {
	return fmt.Sprintf("trip %s: driver %s is not online", e.TripID, e.DriverID)
}

// OfferExpiredError is returned when the offer window for a trip has passed.
type OfferExpiredError struct {
	TripID string
}

func (e *OfferExpiredError) Error() string {
	return fmt.Sprintf("trip %s: offer expired", e.TripID)
}

// InvalidPINError is returned when pickup verification fails. Blocked
// indicates the trip is locked out after too many wrong guesses.
type InvalidPINError struct {
	TripID  string
	Blocked bool
}

func (e *InvalidPINError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("trip %s: pin verification blocked", e.TripID)
	}
	return fmt.Sprintf("trip %s: invalid pin", e.TripID)
}

// RadiusTooLargeError is returned when the driver is too far from the pickup
// point to start the trip, or when no distance measurement is available.
type RadiusTooLargeError struct {
	TripID    string
	DistanceM float64
	MaxM      float64
	Measured  bool
}

func (e *RadiusTooLargeError) Error() string {
	if !e.Measured {
		return fmt.Sprintf("trip %s: distance to pickup could not be measured", e.TripID)
	}
	return fmt.Sprintf("trip %s: driver is %.0fm from pickup, max %.0fm", e.TripID, e.DistanceM, e.MaxM)
}

// MissingMetricsError is returned when completion is attempted without final
// distance/duration figures.
type MissingMetricsError struct {
	TripID string
}

func (e *MissingMetricsError) Error() string {
	return fmt.Sprintf("trip %s: final trip metrics are required", e.TripID)
}

// MissingPricingSnapshotError is returned when completion is attempted
// without an authoritative pricing-finalize result.
type MissingPricingSnapshotError struct {
	TripID string
}

func (e *MissingPricingSnapshotError) Error() string {
	return fmt.Sprintf("trip %s: authoritative pricing snapshot is required", e.TripID)
}

// UnauthorizedActorError is returned when the acting identity does not match
// the expected actor for a command.
type UnauthorizedActorError struct {
	TripID   string
	Actor    Actor
	Expected string
}

func (e *UnauthorizedActorError) Error() string {
	return fmt.Sprintf("trip %s: %s %s may not perform this action (expected %s)", e.TripID, e.Actor.Type, e.Actor.ID, e.Expected)
}

// PaymentNotCapturedError is returned when MARK_PAID runs without a captured
// payment confirmation.
type PaymentNotCapturedError struct {
	TripID          string
	PaymentIntentID string
	Status          string
}

func (e *PaymentNotCapturedError) Error() string {
	return fmt.Sprintf("trip %s: payment intent %s is %s, not captured", e.TripID, e.PaymentIntentID, e.Status)
}

// InvalidStateForPaymentError is returned when MARK_PAID is applied to a trip
// that is not COMPLETED.
type InvalidStateForPaymentError struct {
	TripID string
	Status TripStatus
}

func (e *InvalidStateForPaymentError) Error() string {
	return fmt.Sprintf("trip %s: cannot mark paid from status %s", e.TripID, e.Status)
}
