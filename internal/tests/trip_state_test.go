package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"trips/internal/domain"
	"trips/internal/service"
)

func TestGetTripState_ServedFromCache(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	trip := f.createTrip(t)

	// A repository failure proves the status read never reaches Postgres.
	f.tripRepo.GetError = errors.New("postgres down")

	state, err := f.svc.GetTripState(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetTripState: %v", err)
	}
	if state.Status != string(domain.TripStatusRequested) {
		t.Fatalf("status = %s, want REQUESTED", state.Status)
	}
	if state.RiderID != "rider-1" {
		t.Fatalf("rider_id = %s, want rider-1", state.RiderID)
	}
	if atomic.LoadInt32(&f.cache.GetCallCount) == 0 {
		t.Fatal("cache was never read")
	}
}

func TestGetTripState_MissRefillsCache(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	trip := f.createTrip(t)
	if err := f.cache.InvalidateTrip(ctx, trip.ID); err != nil {
		t.Fatalf("InvalidateTrip: %v", err)
	}

	before := atomic.LoadInt32(&f.cache.SetCallCount)
	state, err := f.svc.GetTripState(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetTripState: %v", err)
	}
	if state.Status != string(domain.TripStatusRequested) {
		t.Fatalf("status = %s, want REQUESTED", state.Status)
	}
	if !f.cache.Cached(trip.ID) {
		t.Fatal("cache miss was not refilled")
	}
	if got := atomic.LoadInt32(&f.cache.SetCallCount); got != before+1 {
		t.Fatalf("SetTripState calls = %d, want %d", got, before+1)
	}
}

func TestGetTripState_TerminalTripDroppedFromCache(t *testing.T) {
	t.Parallel()
	f := newFixture()
	ctx := context.Background()

	trip := f.createTrip(t)
	_, err := f.svc.CancelTrip(ctx, service.CancelTripRequest{
		TripID: trip.ID,
		Side:   domain.CancelSideRider,
		Reason: "changed my mind",
		Actor:  &domain.Actor{Type: domain.ActorTypeRider, ID: "rider-1"},
	})
	if err != nil {
		t.Fatalf("CancelTrip: %v", err)
	}

	if f.cache.Cached(trip.ID) {
		t.Fatal("terminal trip still cached")
	}
	if atomic.LoadInt32(&f.cache.InvalidateCallCount) == 0 {
		t.Fatal("cancel did not invalidate the state cache")
	}

	// Status reads for terminal trips come from the repository and do not
	// repopulate the cache.
	state, err := f.svc.GetTripState(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetTripState: %v", err)
	}
	if state.Status != string(domain.TripStatusCanceled) {
		t.Fatalf("status = %s, want CANCELED", state.Status)
	}
	if f.cache.Cached(trip.ID) {
		t.Fatal("terminal trip was re-cached on read")
	}
}
