package tests

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"trips/internal/client"
	"trips/internal/domain"
	"trips/internal/service"
	"trips/internal/stream"
)

// fixture bundles the service under test with all of its mocks.
type fixture struct {
	svc       *service.TripService
	tripRepo  *MockTripRepository
	auditRepo *MockAuditRepository
	pins      *MockPinStore
	timers    *MockTimerStore
	cache     *MockTripCache
	geo       *MockGeoClient
	pricing   *MockPricingClient
	payments  *MockPaymentsClient
	presence  *MockPresenceClient
	publisher *MockPublisher
}

func newFixture() *fixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		tripRepo:  NewMockTripRepository(),
		auditRepo: NewMockAuditRepository(),
		pins:      NewMockPinStore(),
		timers:    NewMockTimerStore(),
		cache:     NewMockTripCache(),
		geo:       NewMockGeoClient(),
		pricing:   NewMockPricingClient(),
		payments:  NewMockPaymentsClient(),
		presence:  NewMockPresenceClient(),
		publisher: NewMockPublisher(),
	}
	f.svc = service.NewTripService(
		f.tripRepo,
		f.auditRepo,
		f.pins,
		f.timers,
		f.cache,
		f.geo,
		f.pricing,
		f.payments,
		f.presence,
		f.publisher,
		"stream:trips",
		service.DefaultTimers(),
		log,
	)
	return f
}

func (f *fixture) driverOnline(driverID string) {
	f.presence.SetSession(driverID, &client.SessionResponse{
		Online:      true,
		LastLoc:     &client.Point{Lat: 40.7128, Lng: -74.0060},
		Eligibility: client.Eligibility{OK: true},
	})
}

func (f *fixture) createTrip(t *testing.T) *domain.Trip {
	t.Helper()
	trip, err := f.svc.CreateTrip(context.Background(), service.CreateTripRequest{
		RiderID:     "rider-1",
		VehicleType: domain.VehicleTypeEconomy,
		City:        "nyc",
		OriginLat:   40.7128,
		OriginLng:   -74.0060,
		DestLat:     40.7580,
		DestLng:     -73.9855,
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	return trip
}

func (f *fixture) acceptTrip(t *testing.T, tripID, driverID string) *service.AcceptTripResponse {
	t.Helper()
	f.driverOnline(driverID)
	resp, err := f.svc.AcceptTrip(context.Background(), service.AcceptTripRequest{
		TripID:   tripID,
		DriverID: driverID,
	})
	if err != nil {
		t.Fatalf("AcceptTrip: %v", err)
	}
	return resp
}

func (f *fixture) advanceToInProgress(t *testing.T) (*domain.Trip, string) {
	t.Helper()
	trip := f.createTrip(t)
	resp := f.acceptTrip(t, trip.ID, "driver-1")

	ctx := context.Background()
	if _, err := f.svc.VerifyPin(ctx, service.VerifyPinRequest{TripID: trip.ID, Pin: resp.Pin}); err != nil {
		t.Fatalf("VerifyPin: %v", err)
	}
	started, err := f.svc.StartTrip(ctx, service.StartTripRequest{TripID: trip.ID})
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	return started, "driver-1"
}

func TestTripLifecycle_FullFlow(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	trip := f.createTrip(t)
	if trip.Status != domain.TripStatusRequested {
		t.Fatalf("status = %s, want REQUESTED", trip.Status)
	}
	if trip.QuoteID != "quote-1" {
		t.Errorf("quote id = %q, want quote-1", trip.QuoteID)
	}
	if trip.Origin.H3Index == "" || trip.Destination.H3Index == "" {
		t.Error("trip endpoints not indexed")
	}

	resp := f.acceptTrip(t, trip.ID, "driver-1")
	if resp.Trip.Status != domain.TripStatusAssigned {
		t.Fatalf("status = %s, want ASSIGNED", resp.Trip.Status)
	}
	if len(resp.Pin) != 4 {
		t.Errorf("pin = %q, want 4 digits", resp.Pin)
	}
	if resp.PickupEtaSec != 240 {
		t.Errorf("pickup eta = %v, want 240", resp.PickupEtaSec)
	}
	if !f.timers.HasRiderNoShow(trip.ID) {
		t.Error("rider no-show timer not armed after acceptance")
	}

	verified, err := f.svc.VerifyPin(ctx, service.VerifyPinRequest{TripID: trip.ID, Pin: resp.Pin})
	if err != nil {
		t.Fatalf("VerifyPin: %v", err)
	}
	if verified.Status != domain.TripStatusPickupStarted {
		t.Fatalf("status = %s, want PICKUP_STARTED", verified.Status)
	}
	if _, ok := f.pins.Pin(trip.ID); ok {
		t.Error("pin not cleared after verification")
	}
	if f.timers.HasRiderNoShow(trip.ID) {
		t.Error("rider no-show timer still armed after pickup")
	}
	if !f.timers.HasDriverNoShow(trip.ID) {
		t.Error("driver no-show timer not armed after pickup")
	}

	started, err := f.svc.StartTrip(ctx, service.StartTripRequest{TripID: trip.ID})
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	if started.Status != domain.TripStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", started.Status)
	}
	if f.timers.HasDriverNoShow(trip.ID) {
		t.Error("driver no-show timer still armed after start")
	}

	completed, err := f.svc.CompleteTrip(ctx, service.CompleteTripRequest{
		TripID:         trip.ID,
		FinalDistanceM: 5200,
		FinalDurationS: 900,
		PaymentMethod:  "card",
	})
	if err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}
	if completed.Status != domain.TripStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", completed.Status)
	}
	if completed.PaymentIntentID == "" {
		t.Error("payment intent not attached")
	}

	f.payments.SetIntentStatus(completed.PaymentIntentID, "succeeded")
	paid, err := f.svc.MarkPaid(ctx, service.MarkPaidRequest{TripID: trip.ID})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != domain.TripStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}

	wantEvents := []string{
		domain.EventTripRequested,
		domain.EventTripAssigned,
		domain.EventTripPickupStarted,
		domain.EventTripStarted,
		domain.EventTripCompleted,
		domain.EventTripPaid,
	}
	events := f.publisher.Events()
	if len(events) != len(wantEvents) {
		t.Fatalf("published %d events, want %d", len(events), len(wantEvents))
	}
	for i, want := range wantEvents {
		if events[i].Event.Type != want {
			t.Errorf("event[%d] = %s, want %s", i, events[i].Event.Type, want)
		}
	}

	if got := atomic.LoadInt32(&f.auditRepo.AppendCallCount); got != 6 {
		t.Errorf("audit entries = %d, want 6", got)
	}
}

func TestCreateTrip_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	base := service.CreateTripRequest{
		RiderID:     "rider-1",
		VehicleType: domain.VehicleTypeEconomy,
		City:        "nyc",
		OriginLat:   40.7,
		OriginLng:   -74.0,
		DestLat:     40.8,
		DestLng:     -73.9,
	}

	cases := []struct {
		name    string
		mutate  func(*service.CreateTripRequest)
		wantErr error
	}{
		{"missing rider", func(r *service.CreateTripRequest) { r.RiderID = "" }, service.ErrInvalidRiderID},
		{"missing city", func(r *service.CreateTripRequest) { r.City = "" }, service.ErrInvalidCity},
		{"bad vehicle type", func(r *service.CreateTripRequest) { r.VehicleType = "HELICOPTER" }, service.ErrInvalidVehicleType},
		{"origin latitude out of range", func(r *service.CreateTripRequest) { r.OriginLat = 91 }, service.ErrInvalidOrigin},
		{"destination longitude out of range", func(r *service.CreateTripRequest) { r.DestLng = -500 }, service.ErrInvalidDestination},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			_, err := f.svc.CreateTrip(ctx, req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAcceptTrip_OfferExpired(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.timers.ExpireOffer(trip.ID)
	f.driverOnline("driver-1")

	_, err := f.svc.AcceptTrip(context.Background(), service.AcceptTripRequest{
		TripID:   trip.ID,
		DriverID: "driver-1",
	})
	var offerExpired *domain.OfferExpiredError
	if !errors.As(err, &offerExpired) {
		t.Fatalf("err = %v, want OfferExpiredError", err)
	}
}

func TestAcceptTrip_DriverOffline(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.presence.SetSession("driver-1", &client.SessionResponse{Online: false})

	_, err := f.svc.AcceptTrip(context.Background(), service.AcceptTripRequest{
		TripID:   trip.ID,
		DriverID: "driver-1",
	})
	var offline *domain.DriverNotOnlineError
	if !errors.As(err, &offline) {
		t.Fatalf("err = %v, want DriverNotOnlineError", err)
	}
}

func TestAcceptTrip_IneligibleDriverRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.presence.SetSession("driver-1", &client.SessionResponse{
		Online:      true,
		LastLoc:     &client.Point{Lat: 40.71, Lng: -74.0},
		Eligibility: client.Eligibility{OK: false, Status: "documents_expired"},
	})

	_, err := f.svc.AcceptTrip(context.Background(), service.AcceptTripRequest{
		TripID:   trip.ID,
		DriverID: "driver-1",
	})
	var offline *domain.DriverNotOnlineError
	if !errors.As(err, &offline) {
		t.Fatalf("err = %v, want DriverNotOnlineError", err)
	}
}

func TestAcceptTrip_Replay_KeepsExistingPin(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	first := f.acceptTrip(t, trip.ID, "driver-1")

	second, err := f.svc.AcceptTrip(context.Background(), service.AcceptTripRequest{
		TripID:   trip.ID,
		DriverID: "driver-1",
	})
	if err != nil {
		t.Fatalf("replayed AcceptTrip: %v", err)
	}
	if second.Trip.Status != domain.TripStatusAssigned {
		t.Errorf("status = %s, want ASSIGNED", second.Trip.Status)
	}
	if second.Pin != "" {
		t.Error("replay issued a new pin")
	}
	if got := atomic.LoadInt32(&f.pins.SetPinCallCount); got != 1 {
		t.Errorf("SetPin calls = %d, want 1", got)
	}
	if got := f.publisher.CountByType(domain.EventTripAssigned); got != 1 {
		t.Errorf("trip.assigned events = %d, want 1", got)
	}

	stored, ok := f.pins.Pin(trip.ID)
	if !ok || stored != first.Pin {
		t.Error("original pin not preserved across replay")
	}
}

func TestAcceptTrip_SecondDriverConflict(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.acceptTrip(t, trip.ID, "driver-1")
	f.driverOnline("driver-2")

	_, err := f.svc.AcceptTrip(context.Background(), service.AcceptTripRequest{
		TripID:   trip.ID,
		DriverID: "driver-2",
	})
	var conflict *domain.AlreadyAssignedError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want AlreadyAssignedError", err)
	}
	if conflict.AssignedDriverID != "driver-1" {
		t.Errorf("assigned driver = %s, want driver-1", conflict.AssignedDriverID)
	}
}

func TestVerifyPin_WrongPinBlocksAfterThreeAttempts(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	resp := f.acceptTrip(t, trip.ID, "driver-1")
	ctx := context.Background()

	wrong := "0000"
	if wrong == resp.Pin {
		wrong = "0001"
	}

	for i := 0; i < 3; i++ {
		_, err := f.svc.VerifyPin(ctx, service.VerifyPinRequest{TripID: trip.ID, Pin: wrong})
		var pinErr *domain.InvalidPINError
		if !errors.As(err, &pinErr) {
			t.Fatalf("attempt %d: err = %v, want InvalidPINError", i+1, err)
		}
	}

	// Even the correct PIN is rejected while the block is active.
	_, err := f.svc.VerifyPin(ctx, service.VerifyPinRequest{TripID: trip.ID, Pin: resp.Pin})
	var pinErr *domain.InvalidPINError
	if !errors.As(err, &pinErr) {
		t.Fatalf("err = %v, want InvalidPINError", err)
	}
	if !pinErr.Blocked {
		t.Error("expected blocked pin error after three failed attempts")
	}
}

func TestVerifyPin_DriverTooFarFromPickup(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	resp := f.acceptTrip(t, trip.ID, "driver-1")

	f.geo.SetEta(600, 250)

	_, err := f.svc.VerifyPin(context.Background(), service.VerifyPinRequest{TripID: trip.ID, Pin: resp.Pin})
	var radiusErr *domain.RadiusTooLargeError
	if !errors.As(err, &radiusErr) {
		t.Fatalf("err = %v, want RadiusTooLargeError", err)
	}
	if !radiusErr.Measured {
		t.Error("expected a measured distance in the rejection")
	}
	if radiusErr.DistanceM != 250 {
		t.Errorf("distance = %v, want 250", radiusErr.DistanceM)
	}
}

func TestVerifyPin_MissingDriverLocationRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	resp := f.acceptTrip(t, trip.ID, "driver-1")

	// Driver session loses its location before verification.
	f.presence.SetSession("driver-1", &client.SessionResponse{
		Online:      true,
		Eligibility: client.Eligibility{OK: true},
	})

	_, err := f.svc.VerifyPin(context.Background(), service.VerifyPinRequest{TripID: trip.ID, Pin: resp.Pin})
	var radiusErr *domain.RadiusTooLargeError
	if !errors.As(err, &radiusErr) {
		t.Fatalf("err = %v, want RadiusTooLargeError", err)
	}
	if radiusErr.Measured {
		t.Error("expected an unmeasured rejection when location is missing")
	}
}

func TestStartTrip_OnlyAssignedDriver(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	resp := f.acceptTrip(t, trip.ID, "driver-1")
	ctx := context.Background()

	if _, err := f.svc.VerifyPin(ctx, service.VerifyPinRequest{TripID: trip.ID, Pin: resp.Pin}); err != nil {
		t.Fatalf("VerifyPin: %v", err)
	}

	_, err := f.svc.StartTrip(ctx, service.StartTripRequest{
		TripID: trip.ID,
		Actor:  &domain.Actor{Type: domain.ActorTypeDriver, ID: "driver-2"},
	})
	var unauthorized *domain.UnauthorizedActorError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("err = %v, want UnauthorizedActorError", err)
	}
}

func TestCompleteTrip_UsesAuthoritativePrice(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.advanceToInProgress(t)
	ctx := context.Background()

	trips, _ := f.tripRepo.ListByRiderID(ctx, "rider-1", 10)
	tripID := trips[0].ID

	completed, err := f.svc.CompleteTrip(ctx, service.CompleteTripRequest{
		TripID:         tripID,
		FinalDistanceM: 5200,
		FinalDurationS: 900,
		PaymentMethod:  "card",
	})
	if err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}

	// The finalize response wins over the quote estimate.
	if completed.Pricing.Total != 14.25 {
		t.Errorf("total = %v, want finalize total 14.25", completed.Pricing.Total)
	}
	if completed.Pricing.RuleVersion != "v42" {
		t.Errorf("rule version = %q, want v42", completed.Pricing.RuleVersion)
	}
	if completed.Pricing.Currency != "USD" {
		t.Errorf("currency = %q, want quote currency USD", completed.Pricing.Currency)
	}
	if f.payments.LastIntentAmount != 14.25 {
		t.Errorf("intent amount = %v, want 14.25", f.payments.LastIntentAmount)
	}
	if completed.Final == nil || completed.Final.DistanceM != 5200 {
		t.Error("final metrics not recorded")
	}
}

func TestCompleteTrip_Replay_SingleIntent(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.advanceToInProgress(t)
	ctx := context.Background()

	trips, _ := f.tripRepo.ListByRiderID(ctx, "rider-1", 10)
	tripID := trips[0].ID

	req := service.CompleteTripRequest{
		TripID:         tripID,
		FinalDistanceM: 5200,
		FinalDurationS: 900,
		PaymentMethod:  "card",
	}
	if _, err := f.svc.CompleteTrip(ctx, req); err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}
	if _, err := f.svc.CompleteTrip(ctx, req); err != nil {
		t.Fatalf("replayed CompleteTrip: %v", err)
	}

	if got := atomic.LoadInt32(&f.payments.CreateIntentCallCount); got != 1 {
		t.Errorf("CreateIntent calls = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&f.pricing.FinalizeCallCount); got != 1 {
		t.Errorf("Finalize calls = %d, want 1", got)
	}
	if got := f.publisher.CountByType(domain.EventTripCompleted); got != 1 {
		t.Errorf("trip.completed events = %d, want 1", got)
	}
}

func TestCancelTrip_SideMustMatchActor(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.acceptTrip(t, trip.ID, "driver-1")

	_, err := f.svc.CancelTrip(context.Background(), service.CancelTripRequest{
		TripID: trip.ID,
		Side:   domain.CancelSideRider,
		Reason: "changed my mind",
		Actor:  &domain.Actor{Type: domain.ActorTypeDriver, ID: "driver-1"},
	})
	var unauthorized *domain.UnauthorizedActorError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("err = %v, want UnauthorizedActorError", err)
	}
}

func TestCancelTrip_CleansUpPinAndTimers(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.acceptTrip(t, trip.ID, "driver-1")

	canceled, err := f.svc.CancelTrip(context.Background(), service.CancelTripRequest{
		TripID: trip.ID,
		Side:   domain.CancelSideRider,
		Reason: "changed my mind",
		Actor:  &domain.Actor{Type: domain.ActorTypeRider, ID: "rider-1"},
	})
	if err != nil {
		t.Fatalf("CancelTrip: %v", err)
	}
	if canceled.Status != domain.TripStatusCanceled {
		t.Fatalf("status = %s, want CANCELED", canceled.Status)
	}
	if canceled.Cancel == nil || canceled.Cancel.Side != domain.CancelSideRider {
		t.Error("cancellation record missing or wrong side")
	}
	if _, ok := f.pins.Pin(trip.ID); ok {
		t.Error("pin not cleared on cancel")
	}
	if f.timers.HasRiderNoShow(trip.ID) {
		t.Error("rider no-show timer not cleared on cancel")
	}
}

func TestCancelTrip_CompletedTripRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.advanceToInProgress(t)
	ctx := context.Background()

	trips, _ := f.tripRepo.ListByRiderID(ctx, "rider-1", 10)
	tripID := trips[0].ID

	if _, err := f.svc.CompleteTrip(ctx, service.CompleteTripRequest{
		TripID:         tripID,
		FinalDistanceM: 5200,
		FinalDurationS: 900,
		PaymentMethod:  "card",
	}); err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}

	_, err := f.svc.CancelTrip(ctx, service.CancelTripRequest{
		TripID: tripID,
		Side:   domain.CancelSideSystem,
		Reason: "late cancel",
		Actor:  &domain.Actor{Type: domain.ActorTypeSystem, ID: "ops"},
	})
	var invalid *domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestMarkPaid_RequiresCapturedIntent(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.advanceToInProgress(t)
	ctx := context.Background()

	trips, _ := f.tripRepo.ListByRiderID(ctx, "rider-1", 10)
	tripID := trips[0].ID

	completed, err := f.svc.CompleteTrip(ctx, service.CompleteTripRequest{
		TripID:         tripID,
		FinalDistanceM: 5200,
		FinalDurationS: 900,
		PaymentMethod:  "card",
	})
	if err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}

	// Intent still pending capture.
	_, err = f.svc.MarkPaid(ctx, service.MarkPaidRequest{TripID: tripID})
	var notCaptured *domain.PaymentNotCapturedError
	if !errors.As(err, &notCaptured) {
		t.Fatalf("err = %v, want PaymentNotCapturedError", err)
	}

	f.payments.SetIntentStatus(completed.PaymentIntentID, "succeeded")
	paid, err := f.svc.MarkPaid(ctx, service.MarkPaidRequest{TripID: tripID})
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if paid.Status != domain.TripStatusPaid {
		t.Fatalf("status = %s, want PAID", paid.Status)
	}
}

func TestMarkPaid_BeforeCompletionRejected(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)

	_, err := f.svc.MarkPaid(context.Background(), service.MarkPaidRequest{TripID: trip.ID})
	var invalidState *domain.InvalidStateForPaymentError
	if !errors.As(err, &invalidState) {
		t.Fatalf("err = %v, want InvalidStateForPaymentError", err)
	}
}

func TestPaymentCapturedEvent_MarksTripPaid(t *testing.T) {
	t.Parallel()
	f := newFixture()
	f.advanceToInProgress(t)
	ctx := context.Background()

	trips, _ := f.tripRepo.ListByRiderID(ctx, "rider-1", 10)
	tripID := trips[0].ID

	completed, err := f.svc.CompleteTrip(ctx, service.CompleteTripRequest{
		TripID:         tripID,
		FinalDistanceM: 5200,
		FinalDurationS: 900,
		PaymentMethod:  "card",
	})
	if err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}
	f.payments.SetIntentStatus(completed.PaymentIntentID, "succeeded")

	ev, err := stream.NewEvent(service.EventPaymentIntentCaptured, "payments", map[string]string{
		"trip_id":           tripID,
		"payment_intent_id": completed.PaymentIntentID,
		"status":            "succeeded",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if err := f.svc.HandlePaymentCaptured(ctx, ev); err != nil {
		t.Fatalf("HandlePaymentCaptured: %v", err)
	}

	trip, err := f.svc.GetTrip(ctx, tripID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if trip.Status != domain.TripStatusPaid {
		t.Fatalf("status = %s, want PAID", trip.Status)
	}
}

func TestDriverOfflineEvent_CancelsPrePickupTrip(t *testing.T) {
	t.Parallel()
	f := newFixture()
	trip := f.createTrip(t)
	f.acceptTrip(t, trip.ID, "driver-1")
	ctx := context.Background()

	ev, err := stream.NewEvent(service.EventDriverOffline, "presence", map[string]string{
		"driver_id": "driver-1",
		"reason":    "heartbeat lost",
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if err := f.svc.HandleDriverOffline(ctx, ev); err != nil {
		t.Fatalf("HandleDriverOffline: %v", err)
	}

	got, err := f.svc.GetTrip(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if got.Status != domain.TripStatusCanceled {
		t.Fatalf("status = %s, want CANCELED", got.Status)
	}
	if got.Cancel.Side != domain.CancelSideSystem {
		t.Errorf("cancel side = %s, want system", got.Cancel.Side)
	}
}

func TestDriverOfflineEvent_InProgressTripUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture()
	started, driverID := f.advanceToInProgress(t)
	ctx := context.Background()

	ev, err := stream.NewEvent(service.EventDriverOffline, "presence", map[string]string{
		"driver_id": driverID,
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if err := f.svc.HandleDriverOffline(ctx, ev); err != nil {
		t.Fatalf("HandleDriverOffline: %v", err)
	}

	got, err := f.svc.GetTrip(ctx, started.ID)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	if got.Status != domain.TripStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", got.Status)
	}
}
