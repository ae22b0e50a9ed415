package fsm

import (
	"errors"
	"testing"
	"time"

	"trips/internal/domain"
)

func newTrip(status domain.TripStatus) *domain.Trip {
	return &domain.Trip{
		ID:      "trip-1",
		RiderID: "rider-1",
		Status:  status,
	}
}

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func metrics() *domain.TripMetrics {
	return &domain.TripMetrics{DistanceM: 5200, DurationS: 840}
}

func pricing() *domain.PricingSnapshot {
	return &domain.PricingSnapshot{Base: 3.5, SurgeMultiplier: 1.0, Total: 12.4, Currency: "USD"}
}

func TestTransition_FullLifecycle(t *testing.T) {
	t.Parallel()

	trip := &domain.Trip{ID: "trip-1", RiderID: "rider-1"}

	trip, err := Transition(trip, CommandRequest, Context{})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if trip.Status != domain.TripStatusRequested {
		t.Fatalf("expected REQUESTED, got %s", trip.Status)
	}

	trip, err = Transition(trip, CommandAssign, Context{DriverID: "driver-1", DriverOnline: boolPtr(true)})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if trip.Status != domain.TripStatusAssigned || trip.DriverID != "driver-1" {
		t.Fatalf("unexpected trip after assign: %+v", trip)
	}

	trip, err = Transition(trip, CommandStartPickup, Context{PinVerified: true, DistanceToOriginM: floatPtr(25)})
	if err != nil {
		t.Fatalf("start_pickup: %v", err)
	}

	trip, err = Transition(trip, CommandStart, Context{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if trip.Status != domain.TripStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", trip.Status)
	}

	trip, err = Transition(trip, CommandComplete, Context{
		FinalMetrics:    metrics(),
		Pricing:         pricing(),
		PaymentIntentID: "pi-1",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if trip.PaymentIntentID != "pi-1" || trip.Pricing == nil || trip.Final == nil {
		t.Fatalf("completion fields not set: %+v", trip)
	}

	trip, err = Transition(trip, CommandMarkPaid, Context{PaymentCaptured: true})
	if err != nil {
		t.Fatalf("mark_paid: %v", err)
	}
	if trip.Status != domain.TripStatusPaid {
		t.Fatalf("expected PAID, got %s", trip.Status)
	}
}

func TestTransition_TerminalStatesRejectEverything(t *testing.T) {
	t.Parallel()

	commands := []Command{CommandOffer, CommandAssign, CommandStartPickup, CommandStart, CommandComplete, CommandCancel}

	for _, status := range []domain.TripStatus{domain.TripStatusPaid, domain.TripStatusCanceled} {
		for _, cmd := range commands {
			trip := newTrip(status)
			trip.DriverID = "driver-1"

			tc := Context{
				DriverID:          "driver-2",
				PinVerified:       true,
				DistanceToOriginM: floatPtr(10),
				FinalMetrics:      metrics(),
				Pricing:           pricing(),
				Side:              domain.CancelSideSystem,
				Reason:            "test",
			}

			// CANCEL on CANCELED is an idempotent no-op, not a failure.
			if status == domain.TripStatusCanceled && cmd == CommandCancel {
				continue
			}

			next, err := Transition(trip, cmd, tc)
			if err == nil && next.Status != status {
				t.Errorf("command %s transitioned terminal status %s to %s", cmd, status, next.Status)
			}
		}
	}
}

func TestTransition_AssignIdempotentReplay(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusRequested)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := Transition(trip, CommandAssign, Context{DriverID: "driver-1", Timestamp: ts})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	// Same driver again, later timestamp: trip must come back unchanged.
	second, err := Transition(first, CommandAssign, Context{DriverID: "driver-1", Timestamp: ts.Add(time.Minute)})
	if err != nil {
		t.Fatalf("replayed assign: %v", err)
	}
	if !second.AssignedAt.Equal(first.AssignedAt) {
		t.Errorf("replay changed assignedAt: %v vs %v", second.AssignedAt, first.AssignedAt)
	}
	if second != first {
		t.Error("replay should return the trip unchanged")
	}
}

func TestTransition_AssignToDifferentDriverFails(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusAssigned)
	trip.DriverID = "driver-1"

	_, err := Transition(trip, CommandAssign, Context{DriverID: "driver-2"})
	var aa *domain.AlreadyAssignedError
	if !errors.As(err, &aa) {
		t.Fatalf("expected AlreadyAssignedError, got %v", err)
	}
	if aa.AssignedDriverID != "driver-1" || aa.RequestedDriverID != "driver-2" {
		t.Errorf("unexpected error context: %+v", aa)
	}
}

func TestTransition_AssignGuards(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusRequested)

	if _, err := Transition(trip, CommandAssign, Context{}); !errors.Is(err, ErrDriverRequired) {
		t.Errorf("expected ErrDriverRequired, got %v", err)
	}

	_, err := Transition(trip, CommandAssign, Context{DriverID: "driver-1", DriverOnline: boolPtr(false)})
	var offline *domain.DriverNotOnlineError
	if !errors.As(err, &offline) {
		t.Errorf("expected DriverNotOnlineError, got %v", err)
	}

	_, err = Transition(trip, CommandAssign, Context{DriverID: "driver-1", OfferExpired: true})
	var expired *domain.OfferExpiredError
	if !errors.As(err, &expired) {
		t.Errorf("expected OfferExpiredError, got %v", err)
	}
}

func TestTransition_StartPickupGuards(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusAssigned)
	trip.DriverID = "driver-1"

	_, err := Transition(trip, CommandStartPickup, Context{DistanceToOriginM: floatPtr(10)})
	var pin *domain.InvalidPINError
	if !errors.As(err, &pin) {
		t.Errorf("expected InvalidPINError without verified pin, got %v", err)
	}

	// Missing measurement is treated the same as too far.
	_, err = Transition(trip, CommandStartPickup, Context{PinVerified: true})
	var radius *domain.RadiusTooLargeError
	if !errors.As(err, &radius) {
		t.Fatalf("expected RadiusTooLargeError for missing distance, got %v", err)
	}
	if radius.Measured {
		t.Error("missing measurement should report Measured=false")
	}

	_, err = Transition(trip, CommandStartPickup, Context{PinVerified: true, DistanceToOriginM: floatPtr(120)})
	if !errors.As(err, &radius) {
		t.Fatalf("expected RadiusTooLargeError beyond 80m, got %v", err)
	}
	if !radius.Measured || radius.DistanceM != 120 {
		t.Errorf("unexpected error context: %+v", radius)
	}
}

func TestTransition_ActorGuard(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusPickupStarted)
	trip.DriverID = "driver-1"

	_, err := Transition(trip, CommandStart, Context{
		Actor: &domain.Actor{Type: domain.ActorTypeDriver, ID: "driver-9"},
	})
	var unauth *domain.UnauthorizedActorError
	if !errors.As(err, &unauth) {
		t.Fatalf("expected UnauthorizedActorError, got %v", err)
	}

	if _, err := Transition(trip, CommandStart, Context{
		Actor: &domain.Actor{Type: domain.ActorTypeDriver, ID: "driver-1"},
	}); err != nil {
		t.Fatalf("assigned driver should be able to start: %v", err)
	}
}

func TestTransition_CompleteGuards(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusInProgress)
	trip.DriverID = "driver-1"

	_, err := Transition(trip, CommandComplete, Context{Pricing: pricing()})
	var mm *domain.MissingMetricsError
	if !errors.As(err, &mm) {
		t.Errorf("expected MissingMetricsError, got %v", err)
	}

	_, err = Transition(trip, CommandComplete, Context{FinalMetrics: metrics()})
	var mp *domain.MissingPricingSnapshotError
	if !errors.As(err, &mp) {
		t.Errorf("expected MissingPricingSnapshotError, got %v", err)
	}
}

func TestTransition_CancelSideCrossCheck(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusAssigned)
	trip.DriverID = "driver-1"

	if _, err := Transition(trip, CommandCancel, Context{Reason: "changed plans"}); !errors.Is(err, ErrSideRequired) {
		t.Errorf("expected ErrSideRequired, got %v", err)
	}
	if _, err := Transition(trip, CommandCancel, Context{Side: domain.CancelSideRider}); !errors.Is(err, ErrReasonRequired) {
		t.Errorf("expected ErrReasonRequired, got %v", err)
	}

	// A driver declaring a rider-side cancellation must be rejected.
	_, err := Transition(trip, CommandCancel, Context{
		Side:   domain.CancelSideRider,
		Reason: "changed plans",
		Actor:  &domain.Actor{Type: domain.ActorTypeDriver, ID: "driver-1"},
	})
	var unauth *domain.UnauthorizedActorError
	if !errors.As(err, &unauth) {
		t.Fatalf("expected UnauthorizedActorError, got %v", err)
	}

	next, err := Transition(trip, CommandCancel, Context{
		Side:   domain.CancelSideRider,
		Reason: "changed plans",
		Actor:  &domain.Actor{Type: domain.ActorTypeRider, ID: "rider-1"},
	})
	if err != nil {
		t.Fatalf("rider cancel: %v", err)
	}
	if next.Cancel == nil || next.Cancel.Side != domain.CancelSideRider {
		t.Errorf("cancellation metadata not recorded: %+v", next.Cancel)
	}
}

func TestTransition_MarkPaidGuards(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusInProgress)
	_, err := Transition(trip, CommandMarkPaid, Context{PaymentCaptured: true})
	var state *domain.InvalidStateForPaymentError
	if !errors.As(err, &state) {
		t.Errorf("expected InvalidStateForPaymentError, got %v", err)
	}

	trip = newTrip(domain.TripStatusCompleted)
	trip.PaymentIntentID = "pi-1"
	_, err = Transition(trip, CommandMarkPaid, Context{PaymentStatus: "requires_capture"})
	var nc *domain.PaymentNotCapturedError
	if !errors.As(err, &nc) {
		t.Fatalf("expected PaymentNotCapturedError, got %v", err)
	}
	if nc.PaymentIntentID != "pi-1" || nc.Status != "requires_capture" {
		t.Errorf("unexpected error context: %+v", nc)
	}
}

func TestTransition_InputTripNotMutated(t *testing.T) {
	t.Parallel()

	trip := newTrip(domain.TripStatusRequested)
	_, err := Transition(trip, CommandAssign, Context{DriverID: "driver-1"})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if trip.Status != domain.TripStatusRequested || trip.DriverID != "" {
		t.Errorf("input trip was mutated: %+v", trip)
	}
}
