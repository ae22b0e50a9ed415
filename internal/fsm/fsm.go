package fsm

import (
	"errors"
	"time"

	"trips/internal/domain"
)

// Command is a trip lifecycle command.
type Command string

const (
	CommandRequest     Command = "REQUEST"
	CommandOffer       Command = "OFFER"
	CommandAssign      Command = "ASSIGN"
	CommandStartPickup Command = "START_PICKUP"
	CommandStart       Command = "START"
	CommandComplete    Command = "COMPLETE"
	CommandCancel      Command = "CANCEL"
	CommandMarkPaid    Command = "MARK_PAID"
)

// MaxPickupRadiusM is the largest allowed driver distance from the origin
// when starting pickup.
const MaxPickupRadiusM = 80.0

var (
	// ErrDriverRequired is returned when ASSIGN is issued without a driver id.
	ErrDriverRequired = errors.New("assign requires a driver id")

	// ErrSideRequired is returned when CANCEL is issued without a side.
	ErrSideRequired = errors.New("cancel requires a side")

	// ErrReasonRequired is returned when CANCEL is issued without a reason.
	ErrReasonRequired = errors.New("cancel requires a reason")
)

// Context carries the external facts a transition needs. Transition itself
// performs no I/O; orchestrators gather these before applying a command.
type Context struct {
	// Timestamp overrides the transition time. Zero means time.Now().
	Timestamp time.Time

	// Actor is the acting identity, if one was supplied.
	Actor *domain.Actor

	// DriverID is the driver being assigned (ASSIGN).
	DriverID string

	// DriverOnline is the presence check result. Nil means not checked.
	DriverOnline *bool

	// OfferExpired is the offer-expiry timer result (ASSIGN).
	OfferExpired bool

	// PinVerified reports whether the presented pickup PIN matched.
	PinVerified bool

	// DistanceToOriginM is the measured driver distance to the pickup point.
	// Nil means the measurement is missing.
	DistanceToOriginM *float64

	// FinalMetrics are the measured distance/duration at completion.
	FinalMetrics *domain.TripMetrics

	// Pricing is the authoritative snapshot from the pricing finalize call.
	Pricing *domain.PricingSnapshot

	// PaymentIntentID is the payment intent created at completion.
	PaymentIntentID string

	// PaymentCaptured reports whether the payment intent was captured.
	PaymentCaptured bool

	// PaymentStatus is the raw intent status, for error context.
	PaymentStatus string

	// Side and Reason describe a cancellation.
	Side   domain.CancelSide
	Reason string
}

func (tc Context) at() time.Time {
	if tc.Timestamp.IsZero() {
		return time.Now()
	}
	return tc.Timestamp
}

// predecessors holds, per command, the statuses the command may be applied
// from. MARK_PAID is absent: it has dedicated error semantics.
var predecessors = map[Command][]domain.TripStatus{
	CommandOffer:       {domain.TripStatusRequested},
	CommandAssign:      {domain.TripStatusRequested, domain.TripStatusOffered},
	CommandStartPickup: {domain.TripStatusAssigned},
	CommandStart:       {domain.TripStatusPickupStarted},
	CommandComplete:    {domain.TripStatusInProgress},
	CommandCancel: {
		domain.TripStatusRequested,
		domain.TripStatusOffered,
		domain.TripStatusAssigned,
		domain.TripStatusPickupStarted,
		domain.TripStatusInProgress,
	},
}

func legalFrom(cmd Command, from domain.TripStatus) bool {
	for _, s := range predecessors[cmd] {
		if s == from {
			return true
		}
	}
	return false
}

// Transition applies a lifecycle command to a trip and returns the resulting
// trip. The input trip is never mutated. Re-applying a command to a trip
// already in the target status with matching key fields returns the trip
// unchanged, so retries never double-apply timestamps or side effects.
func Transition(trip *domain.Trip, cmd Command, tc Context) (*domain.Trip, error) {
	switch cmd {
	case CommandRequest:
		return applyRequest(trip, tc)
	case CommandOffer:
		return applyOffer(trip, tc)
	case CommandAssign:
		return applyAssign(trip, tc)
	case CommandStartPickup:
		return applyStartPickup(trip, tc)
	case CommandStart:
		return applyStart(trip, tc)
	case CommandComplete:
		return applyComplete(trip, tc)
	case CommandCancel:
		return applyCancel(trip, tc)
	case CommandMarkPaid:
		return applyMarkPaid(trip, tc)
	default:
		return nil, &domain.InvalidTransitionError{TripID: trip.ID, From: trip.Status, Command: string(cmd)}
	}
}

func invalid(trip *domain.Trip, cmd Command) error {
	return &domain.InvalidTransitionError{TripID: trip.ID, From: trip.Status, Command: string(cmd)}
}

func applyRequest(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusRequested {
		return trip, nil
	}
	if trip.Status != "" {
		return nil, invalid(trip, CommandRequest)
	}
	next := trip.Clone()
	next.Status = domain.TripStatusRequested
	next.RequestedAt = tc.at()
	return next, nil
}

func applyOffer(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusOffered {
		return trip, nil
	}
	if !legalFrom(CommandOffer, trip.Status) {
		return nil, invalid(trip, CommandOffer)
	}
	next := trip.Clone()
	next.Status = domain.TripStatusOffered
	next.OfferedAt = tc.at()
	return next, nil
}

func applyAssign(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if tc.DriverID == "" {
		return nil, ErrDriverRequired
	}
	if trip.Status == domain.TripStatusAssigned {
		if trip.DriverID == tc.DriverID {
			return trip, nil
		}
		return nil, &domain.AlreadyAssignedError{
			TripID:            trip.ID,
			AssignedDriverID:  trip.DriverID,
			RequestedDriverID: tc.DriverID,
		}
	}
	if !legalFrom(CommandAssign, trip.Status) {
		return nil, invalid(trip, CommandAssign)
	}
	if tc.DriverOnline != nil && !*tc.DriverOnline {
		return nil, &domain.DriverNotOnlineError{TripID: trip.ID, DriverID: tc.DriverID}
	}
	if tc.OfferExpired {
		return nil, &domain.OfferExpiredError{TripID: trip.ID}
	}
	next := trip.Clone()
	next.Status = domain.TripStatusAssigned
	next.DriverID = tc.DriverID
	next.AssignedAt = tc.at()
	return next, nil
}

func applyStartPickup(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusPickupStarted {
		return trip, nil
	}
	if !legalFrom(CommandStartPickup, trip.Status) {
		return nil, invalid(trip, CommandStartPickup)
	}
	if err := requireDriver(trip, tc.Actor); err != nil {
		return nil, err
	}
	if !tc.PinVerified {
		return nil, &domain.InvalidPINError{TripID: trip.ID}
	}
	if tc.DistanceToOriginM == nil {
		return nil, &domain.RadiusTooLargeError{TripID: trip.ID, MaxM: MaxPickupRadiusM}
	}
	if *tc.DistanceToOriginM > MaxPickupRadiusM {
		return nil, &domain.RadiusTooLargeError{
			TripID:    trip.ID,
			DistanceM: *tc.DistanceToOriginM,
			MaxM:      MaxPickupRadiusM,
			Measured:  true,
		}
	}
	next := trip.Clone()
	next.Status = domain.TripStatusPickupStarted
	next.PickupStartedAt = tc.at()
	return next, nil
}

func applyStart(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusInProgress {
		return trip, nil
	}
	if !legalFrom(CommandStart, trip.Status) {
		return nil, invalid(trip, CommandStart)
	}
	if err := requireDriver(trip, tc.Actor); err != nil {
		return nil, err
	}
	next := trip.Clone()
	next.Status = domain.TripStatusInProgress
	next.InProgressAt = tc.at()
	return next, nil
}

func applyComplete(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusCompleted {
		return trip, nil
	}
	if !legalFrom(CommandComplete, trip.Status) {
		return nil, invalid(trip, CommandComplete)
	}
	if err := requireDriver(trip, tc.Actor); err != nil {
		return nil, err
	}
	if tc.FinalMetrics == nil {
		return nil, &domain.MissingMetricsError{TripID: trip.ID}
	}
	if tc.Pricing == nil {
		return nil, &domain.MissingPricingSnapshotError{TripID: trip.ID}
	}
	next := trip.Clone()
	next.Status = domain.TripStatusCompleted
	next.CompletedAt = tc.at()
	final := *tc.FinalMetrics
	next.Final = &final
	pricing := *tc.Pricing
	next.Pricing = &pricing
	next.PaymentIntentID = tc.PaymentIntentID
	return next, nil
}

func applyCancel(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusCanceled {
		return trip, nil
	}
	if !legalFrom(CommandCancel, trip.Status) {
		return nil, invalid(trip, CommandCancel)
	}
	if tc.Side == "" {
		return nil, ErrSideRequired
	}
	if tc.Reason == "" {
		return nil, ErrReasonRequired
	}
	if err := requireSide(trip, tc.Actor, tc.Side); err != nil {
		return nil, err
	}
	next := trip.Clone()
	next.Status = domain.TripStatusCanceled
	next.Cancel = &domain.Cancellation{Side: tc.Side, Reason: tc.Reason, At: tc.at()}
	return next, nil
}

func applyMarkPaid(trip *domain.Trip, tc Context) (*domain.Trip, error) {
	if trip.Status == domain.TripStatusPaid {
		return trip, nil
	}
	if trip.Status != domain.TripStatusCompleted {
		return nil, &domain.InvalidStateForPaymentError{TripID: trip.ID, Status: trip.Status}
	}
	if !tc.PaymentCaptured {
		return nil, &domain.PaymentNotCapturedError{
			TripID:          trip.ID,
			PaymentIntentID: trip.PaymentIntentID,
			Status:          tc.PaymentStatus,
		}
	}
	next := trip.Clone()
	next.Status = domain.TripStatusPaid
	next.PaidAt = tc.at()
	return next, nil
}

// requireDriver verifies that a supplied actor is the trip's assigned driver.
// A nil actor skips the check.
func requireDriver(trip *domain.Trip, actor *domain.Actor) error {
	if actor == nil {
		return nil
	}
	if actor.Type == domain.ActorTypeSystem {
		return nil
	}
	if actor.Type != domain.ActorTypeDriver || actor.ID != trip.DriverID {
		return &domain.UnauthorizedActorError{TripID: trip.ID, Actor: *actor, Expected: "assigned driver"}
	}
	return nil
}

// requireSide cross-checks the acting identity against the declared
// cancellation side.
func requireSide(trip *domain.Trip, actor *domain.Actor, side domain.CancelSide) error {
	if actor == nil {
		return nil
	}
	switch side {
	case domain.CancelSideRider:
		if actor.Type != domain.ActorTypeRider || actor.ID != trip.RiderID {
			return &domain.UnauthorizedActorError{TripID: trip.ID, Actor: *actor, Expected: "trip rider"}
		}
	case domain.CancelSideDriver:
		if actor.Type != domain.ActorTypeDriver || actor.ID != trip.DriverID {
			return &domain.UnauthorizedActorError{TripID: trip.ID, Actor: *actor, Expected: "assigned driver"}
		}
	case domain.CancelSideSystem:
		if actor.Type != domain.ActorTypeSystem {
			return &domain.UnauthorizedActorError{TripID: trip.ID, Actor: *actor, Expected: "system"}
		}
	}
	return nil
}
