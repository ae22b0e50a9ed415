package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"trips/internal/client"
	"trips/internal/domain"
	"trips/internal/fsm"
	"trips/internal/redis"
	"trips/internal/repository"
	"trips/internal/stream"
)

// h3TripResolution is the index resolution used for trip endpoints.
const h3TripResolution = 9

// EventSource identifies this service in published event envelopes.
const EventSource = "trip-service"

// Timers holds the TTLs for the per-trip timer keys.
type Timers struct {
	OfferTTL        time.Duration
	PinTTL          time.Duration
	RiderNoShowTTL  time.Duration
	DriverNoShowTTL time.Duration
}

// DefaultTimers returns the production timer TTLs.
func DefaultTimers() Timers {
	return Timers{
		OfferTTL:        2 * time.Minute,
		PinTTL:          30 * time.Minute,
		RiderNoShowTTL:  10 * time.Minute,
		DriverNoShowTTL: 10 * time.Minute,
	}
}

// TripService orchestrates the trip lifecycle. Each operation loads the trip,
// gathers the external facts the transition needs, applies the state machine,
// persists, and publishes exactly one domain event.
type TripService struct {
	tripRepo    repository.TripRepository
	auditRepo   repository.AuditRepository
	pins        redis.PinStoreInterface
	timers      redis.TimerStoreInterface
	tripCache   redis.TripCacheInterface
	geo         client.GeoClientInterface
	pricing     client.PricingClientInterface
	payments    client.PaymentsClientInterface
	presence    client.PresenceClientInterface
	publisher   stream.PublisherInterface
	tripsStream string
	ttl         Timers
	log         *logrus.Logger
}

// NewTripService creates a new TripService.
func NewTripService(
	tripRepo repository.TripRepository,
	auditRepo repository.AuditRepository,
	pins redis.PinStoreInterface,
	timers redis.TimerStoreInterface,
	tripCache redis.TripCacheInterface,
	geo client.GeoClientInterface,
	pricing client.PricingClientInterface,
	payments client.PaymentsClientInterface,
	presence client.PresenceClientInterface,
	publisher stream.PublisherInterface,
	tripsStream string,
	ttl Timers,
	log *logrus.Logger,
) *TripService {
	return &TripService{
		tripRepo:    tripRepo,
		auditRepo:   auditRepo,
		pins:        pins,
		timers:      timers,
		tripCache:   tripCache,
		geo:         geo,
		pricing:     pricing,
		payments:    payments,
		presence:    presence,
		publisher:   publisher,
		tripsStream: tripsStream,
		ttl:         ttl,
		log:         log,
	}
}

// CreateTripRequest contains the parameters for requesting a trip.
type CreateTripRequest struct {
	RiderID     string
	VehicleType domain.VehicleType
	City        string
	OriginLat   float64
	OriginLng   float64
	DestLat     float64
	DestLng     float64
}

// CreateTrip creates a trip in REQUESTED status: endpoints are indexed, an
// upfront quote is attached, the offer-expiry timer is armed, and
// trip.requested is published.
func (s *TripService) CreateTrip(ctx context.Context, req CreateTripRequest) (*domain.Trip, error) {
	if req.RiderID == "" {
		return nil, ErrInvalidRiderID
	}
	if req.City == "" {
		return nil, ErrInvalidCity
	}
	if !validVehicleType(req.VehicleType) {
		return nil, ErrInvalidVehicleType
	}
	if !validCoordinate(req.OriginLat, req.OriginLng) {
		return nil, ErrInvalidOrigin
	}
	if !validCoordinate(req.DestLat, req.DestLng) {
		return nil, ErrInvalidDestination
	}

	indexes, err := s.geo.H3Encode(ctx, []client.H3Op{
		{Op: "encode", Lat: req.OriginLat, Lng: req.OriginLng, Res: h3TripResolution},
		{Op: "encode", Lat: req.DestLat, Lng: req.DestLng, Res: h3TripResolution},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding trip endpoints: %w", err)
	}
	if len(indexes) != 2 {
		return nil, fmt.Errorf("encoding trip endpoints: got %d results, want 2", len(indexes))
	}

	origin := client.Point{Lat: req.OriginLat, Lng: req.OriginLng}
	dest := client.Point{Lat: req.DestLat, Lng: req.DestLng}

	quote, err := s.pricing.Quote(ctx, client.QuoteRequest{
		Origin:      origin,
		Destination: dest,
		VehicleType: string(req.VehicleType),
		City:        req.City,
	})
	if err != nil {
		return nil, fmt.Errorf("quoting trip: %w", err)
	}

	trip := &domain.Trip{
		ID:          uuid.New().String(),
		RiderID:     req.RiderID,
		VehicleType: req.VehicleType,
		City:        req.City,
		Origin:      domain.Coordinate{Lat: req.OriginLat, Lng: req.OriginLng, H3Index: indexes[0].Index},
		Destination: domain.Coordinate{Lat: req.DestLat, Lng: req.DestLng, H3Index: indexes[1].Index},
		QuoteID:     quote.QuoteID,
		Pricing: &domain.PricingSnapshot{
			Base:      quote.Breakdown["base"],
			Total:     quote.EstimateTotal,
			Currency:  quote.Currency,
			Breakdown: quote.Breakdown,
		},
	}

	// The route estimate is best effort; a degraded geo service must not
	// block trip creation.
	if eta, etaErr := s.geo.Eta(ctx, client.EtaRequest{
		Origins:      []client.Point{origin},
		Destinations: []client.Point{dest},
		City:         req.City,
	}); etaErr == nil && len(eta.Pairs) > 0 {
		trip.Estimated = domain.TripMetrics{
			DistanceM: eta.Pairs[0].DistanceM,
			DurationS: eta.Pairs[0].DurationSec,
		}
	} else if etaErr != nil {
		s.log.WithError(etaErr).WithField("trip_id", trip.ID).Warn("trip estimate unavailable")
	}

	next, err := fsm.Transition(trip, fsm.CommandRequest, fsm.Context{})
	if err != nil {
		return nil, err
	}

	if err := s.tripRepo.Create(ctx, next); err != nil {
		return nil, err
	}

	// The offer-expiry key must exist before any driver can accept: a
	// missing key reads as expired.
	if err := s.timers.SetOfferExpiry(ctx, next.ID, s.ttl.OfferTTL); err != nil {
		return nil, fmt.Errorf("arming offer expiry: %w", err)
	}

	s.afterTransition(ctx, trip, next, fsm.CommandRequest, nil, "")
	s.publish(ctx, domain.EventTripRequested, domain.TripRequestedEvent{
		TripID:      next.ID,
		RiderID:     next.RiderID,
		VehicleType: string(next.VehicleType),
		City:        next.City,
		Origin:      domain.LatLng{Lat: next.Origin.Lat, Lng: next.Origin.Lng},
		Destination: domain.LatLng{Lat: next.Destination.Lat, Lng: next.Destination.Lng},
		QuoteID:     next.QuoteID,
		RequestedAt: next.RequestedAt.UTC().Format(time.RFC3339),
	})

	return next, nil
}

// AcceptTripRequest contains the parameters for a driver accepting an offer.
type AcceptTripRequest struct {
	TripID   string
	DriverID string
	Actor    *domain.Actor
}

// AcceptTripResponse is the result of a successful acceptance.
type AcceptTripResponse struct {
	Trip         *domain.Trip
	Pin          string
	PickupEtaSec float64
}

// AcceptTrip assigns a driver to a trip. The driver must be online and the
// offer must not have expired. On success a fresh pickup PIN is issued, the
// rider-no-show timer is armed, and trip.assigned carries the pickup ETA.
func (s *TripService) AcceptTrip(ctx context.Context, req AcceptTripRequest) (*AcceptTripResponse, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	// Replay of a completed acceptance keeps the existing PIN and timers.
	if trip.Status == domain.TripStatusAssigned && trip.DriverID == req.DriverID {
		return &AcceptTripResponse{Trip: trip}, nil
	}

	session, err := s.presence.GetSession(ctx, req.DriverID)
	if err != nil {
		return nil, fmt.Errorf("checking driver presence: %w", err)
	}
	online := session.Online && session.Eligibility.OK

	expired, err := s.timers.IsOfferExpired(ctx, trip.ID)
	if err != nil {
		return nil, fmt.Errorf("checking offer expiry: %w", err)
	}

	next, err := fsm.Transition(trip, fsm.CommandAssign, fsm.Context{
		Actor:        req.Actor,
		DriverID:     req.DriverID,
		DriverOnline: &online,
		OfferExpired: expired,
	})
	if err != nil {
		return nil, err
	}

	// Pickup ETA is part of the acceptance contract. Without a driver
	// location or a reachable geo service the acceptance is rejected.
	if session.LastLoc == nil {
		return nil, ErrPickupEtaUnavailable
	}
	eta, err := s.geo.Eta(ctx, client.EtaRequest{
		Origins:      []client.Point{*session.LastLoc},
		Destinations: []client.Point{{Lat: trip.Origin.Lat, Lng: trip.Origin.Lng}},
		City:         trip.City,
	})
	if err != nil || len(eta.Pairs) == 0 {
		return nil, ErrPickupEtaUnavailable
	}
	pickupEta := eta.Pairs[0].DurationSec

	pin, err := generatePin()
	if err != nil {
		return nil, fmt.Errorf("generating pickup pin: %w", err)
	}
	if err := s.pins.SetPin(ctx, trip.ID, pin, s.ttl.PinTTL); err != nil {
		return nil, fmt.Errorf("storing pickup pin: %w", err)
	}
	if err := s.timers.SetRiderNoShow(ctx, trip.ID, s.ttl.RiderNoShowTTL); err != nil {
		return nil, fmt.Errorf("arming rider no-show timer: %w", err)
	}

	if err := s.tripRepo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, trip, next, fsm.CommandAssign, req.Actor, "")
	s.publish(ctx, domain.EventTripAssigned, domain.TripAssignedEvent{
		TripID:       next.ID,
		RiderID:      next.RiderID,
		DriverID:     next.DriverID,
		PickupEtaSec: pickupEta,
		AssignedAt:   next.AssignedAt.UTC().Format(time.RFC3339),
	})

	return &AcceptTripResponse{Trip: next, Pin: pin, PickupEtaSec: pickupEta}, nil
}

// VerifyPinRequest contains the parameters for verifying the pickup PIN.
type VerifyPinRequest struct {
	TripID string
	Pin    string
	Actor  *domain.Actor
}

// VerifyPin validates the rider's pickup PIN and the driver's proximity to
// the origin. On success the trip moves to PICKUP_STARTED, the PIN is
// cleared, the rider-no-show timer is dropped, and the driver-no-show timer
// is armed.
func (s *TripService) VerifyPin(ctx context.Context, req VerifyPinRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.Pin == "" {
		return nil, ErrEmptyPin
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.Status == domain.TripStatusPickupStarted {
		return trip, nil
	}

	match, err := s.pins.ValidatePin(ctx, trip.ID, req.Pin)
	switch {
	case errors.Is(err, redis.ErrPinBlocked):
		return nil, &domain.InvalidPINError{TripID: trip.ID, Blocked: true}
	case errors.Is(err, redis.ErrPinNotFound):
		return nil, &domain.InvalidPINError{TripID: trip.ID}
	case err != nil:
		return nil, fmt.Errorf("validating pickup pin: %w", err)
	}

	var distance *float64
	session, err := s.presence.GetSession(ctx, trip.DriverID)
	if err != nil {
		s.log.WithError(err).WithField("trip_id", trip.ID).Warn("driver presence unavailable during pin verify")
	} else if session.LastLoc != nil {
		eta, etaErr := s.geo.Eta(ctx, client.EtaRequest{
			Origins:      []client.Point{*session.LastLoc},
			Destinations: []client.Point{{Lat: trip.Origin.Lat, Lng: trip.Origin.Lng}},
			City:         trip.City,
		})
		if etaErr == nil && len(eta.Pairs) > 0 {
			d := eta.Pairs[0].DistanceM
			distance = &d
		}
	}

	next, err := fsm.Transition(trip, fsm.CommandStartPickup, fsm.Context{
		Actor:             req.Actor,
		PinVerified:       match,
		DistanceToOriginM: distance,
	})
	if err != nil {
		return nil, err
	}

	if err := s.pins.ClearPin(ctx, trip.ID); err != nil {
		s.log.WithError(err).WithField("trip_id", trip.ID).Warn("failed to clear pickup pin")
	}
	if err := s.timers.ClearNoShow(ctx, trip.ID); err != nil {
		s.log.WithError(err).WithField("trip_id", trip.ID).Warn("failed to clear no-show timers")
	}
	if err := s.timers.SetDriverNoShow(ctx, trip.ID, s.ttl.DriverNoShowTTL); err != nil {
		return nil, fmt.Errorf("arming driver no-show timer: %w", err)
	}

	if err := s.tripRepo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, trip, next, fsm.CommandStartPickup, req.Actor, "")
	s.publish(ctx, domain.EventTripPickupStarted, domain.TripPickupStartedEvent{
		TripID:          next.ID,
		DriverID:        next.DriverID,
		PickupStartedAt: next.PickupStartedAt.UTC().Format(time.RFC3339),
	})

	return next, nil
}

// StartTripRequest contains the parameters for starting the ride.
type StartTripRequest struct {
	TripID string
	Actor  *domain.Actor
}

// StartTrip moves a trip from PICKUP_STARTED to IN_PROGRESS. Only the
// assigned driver (or the system) may start the ride.
func (s *TripService) StartTrip(ctx context.Context, req StartTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	next, err := fsm.Transition(trip, fsm.CommandStart, fsm.Context{Actor: req.Actor})
	if err != nil {
		return nil, err
	}
	if next == trip {
		return trip, nil
	}

	if err := s.timers.ClearNoShow(ctx, trip.ID); err != nil {
		s.log.WithError(err).WithField("trip_id", trip.ID).Warn("failed to clear no-show timers")
	}

	if err := s.tripRepo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, trip, next, fsm.CommandStart, req.Actor, "")
	s.publish(ctx, domain.EventTripStarted, domain.TripStartedEvent{
		TripID:    next.ID,
		DriverID:  next.DriverID,
		StartedAt: next.InProgressAt.UTC().Format(time.RFC3339),
	})

	return next, nil
}

// CompleteTripRequest contains the parameters for completing a trip.
type CompleteTripRequest struct {
	TripID         string
	Actor          *domain.Actor
	FinalDistanceM float64
	FinalDurationS float64
	PaymentMethod  string
}

// CompleteTrip ends the ride. The final price comes from the pricing
// service's finalize call and a payment intent is opened for it; both are
// attached to the trip before COMPLETED is persisted.
func (s *TripService) CompleteTrip(ctx context.Context, req CompleteTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.FinalDistanceM <= 0 || req.FinalDurationS <= 0 {
		return nil, ErrInvalidMetrics
	}
	if req.PaymentMethod == "" {
		return nil, ErrInvalidPaymentMethod
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	// Replay short-circuits before the finalize/intent calls so a retried
	// completion never opens a second payment intent.
	if trip.Status == domain.TripStatusCompleted {
		return trip, nil
	}
	if trip.Status != domain.TripStatusInProgress {
		return nil, &domain.InvalidTransitionError{TripID: trip.ID, From: trip.Status, Command: string(fsm.CommandComplete)}
	}

	final, err := s.pricing.Finalize(ctx, client.FinalizeRequest{
		QuoteID:        trip.QuoteID,
		TripID:         trip.ID,
		VehicleType:    string(trip.VehicleType),
		DistanceMFinal: req.FinalDistanceM,
		DurationSFinal: req.FinalDurationS,
		City:           trip.City,
	})
	if err != nil {
		return nil, fmt.Errorf("finalizing price: %w", err)
	}

	currency := "USD"
	base := 0.0
	if trip.Pricing != nil {
		currency = trip.Pricing.Currency
		base = trip.Pricing.Base
	}
	if b, ok := final.Breakdown["base"]; ok {
		base = b
	}
	snapshot := &domain.PricingSnapshot{
		Base:            base,
		SurgeMultiplier: final.SurgeUsed,
		Total:           final.TotalFinal,
		Currency:        currency,
		Breakdown:       final.Breakdown,
		Taxes:           final.Taxes,
		RuleVersion:     final.PricingRuleVersion,
	}

	intent, err := s.payments.CreateIntent(ctx, client.CreateIntentRequest{
		TripID:   trip.ID,
		Amount:   final.TotalFinal,
		Currency: currency,
		Method:   req.PaymentMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}

	next, err := fsm.Transition(trip, fsm.CommandComplete, fsm.Context{
		Actor:           req.Actor,
		FinalMetrics:    &domain.TripMetrics{DistanceM: req.FinalDistanceM, DurationS: req.FinalDurationS},
		Pricing:         snapshot,
		PaymentIntentID: intent.PaymentIntentID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.tripRepo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, trip, next, fsm.CommandComplete, req.Actor, "")
	s.publish(ctx, domain.EventTripCompleted, domain.TripCompletedEvent{
		TripID:          next.ID,
		RiderID:         next.RiderID,
		DriverID:        next.DriverID,
		Total:           next.Pricing.Total,
		Currency:        next.Pricing.Currency,
		PaymentIntentID: next.PaymentIntentID,
		DistanceM:       next.Final.DistanceM,
		DurationS:       next.Final.DurationS,
		CompletedAt:     next.CompletedAt.UTC().Format(time.RFC3339),
	})

	return next, nil
}

// CancelTripRequest contains the parameters for canceling a trip.
type CancelTripRequest struct {
	TripID string
	Side   domain.CancelSide
	Reason string
	Actor  *domain.Actor
}

// CancelTrip cancels a trip from any non-terminal, pre-completion status.
// Pickup PIN and timer keys are cleaned up best effort; their failure never
// blocks the cancellation.
func (s *TripService) CancelTrip(ctx context.Context, req CancelTripRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	switch req.Side {
	case domain.CancelSideRider, domain.CancelSideDriver, domain.CancelSideSystem:
	default:
		return nil, ErrInvalidCancelSide
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	next, err := fsm.Transition(trip, fsm.CommandCancel, fsm.Context{
		Actor:  req.Actor,
		Side:   req.Side,
		Reason: req.Reason,
	})
	if err != nil {
		return nil, err
	}
	if next == trip {
		return trip, nil
	}

	if err := s.pins.ClearPin(ctx, trip.ID); err != nil {
		s.log.WithError(err).WithField("trip_id", trip.ID).Warn("failed to clear pickup pin on cancel")
	}
	if err := s.timers.ClearAll(ctx, trip.ID); err != nil {
		s.log.WithError(err).WithField("trip_id", trip.ID).Warn("failed to clear timers on cancel")
	}

	if err := s.tripRepo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, trip, next, fsm.CommandCancel, req.Actor, req.Reason)
	s.publish(ctx, domain.EventTripCanceled, domain.TripCanceledEvent{
		TripID:     next.ID,
		Side:       string(next.Cancel.Side),
		Reason:     next.Cancel.Reason,
		CanceledAt: next.Cancel.At.UTC().Format(time.RFC3339),
	})

	return next, nil
}

// MarkPaidRequest contains the parameters for marking a trip as paid.
type MarkPaidRequest struct {
	TripID string
	Actor  *domain.Actor
}

// MarkPaid settles a completed trip once its payment intent reports capture.
func (s *TripService) MarkPaid(ctx context.Context, req MarkPaidRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.Status == domain.TripStatusPaid {
		return trip, nil
	}
	if trip.Status != domain.TripStatusCompleted {
		return nil, &domain.InvalidStateForPaymentError{TripID: trip.ID, Status: trip.Status}
	}
	if trip.PaymentIntentID == "" {
		return nil, &domain.PaymentNotCapturedError{TripID: trip.ID, Status: "missing"}
	}

	status, err := s.payments.GetIntent(ctx, trip.PaymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("checking payment intent: %w", err)
	}

	next, err := fsm.Transition(trip, fsm.CommandMarkPaid, fsm.Context{
		Actor:           req.Actor,
		PaymentCaptured: status.Captured(),
		PaymentStatus:   status.Status,
	})
	if err != nil {
		return nil, err
	}

	if err := s.tripRepo.Update(ctx, next); err != nil {
		return nil, err
	}

	s.afterTransition(ctx, trip, next, fsm.CommandMarkPaid, req.Actor, "")
	s.publish(ctx, domain.EventTripPaid, domain.TripPaidEvent{
		TripID:          next.ID,
		PaymentIntentID: next.PaymentIntentID,
		PaidAt:          next.PaidAt.UTC().Format(time.RFC3339),
	})

	return next, nil
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.tripRepo.GetByID(ctx, tripID)
}

// GetTripState returns the lightweight status projection for a trip. It
// reads through the Redis cache: a hit skips the repository entirely, a
// miss loads the trip and, for non-terminal trips, refills the cache.
func (s *TripService) GetTripState(ctx context.Context, tripID string) (*redis.CachedTripState, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	state, err := s.tripCache.GetTripState(ctx, tripID)
	if err != nil {
		s.log.WithError(err).WithField("trip_id", tripID).Warn("trip state cache read failed")
	} else if state != nil {
		return state, nil
	}

	trip, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.IsTerminal() {
		if err := s.tripCache.SetTripState(ctx, trip); err != nil {
			s.log.WithError(err).WithField("trip_id", tripID).Warn("failed to refresh trip state cache")
		}
	}
	return &redis.CachedTripState{
		ID:       trip.ID,
		RiderID:  trip.RiderID,
		DriverID: trip.DriverID,
		Status:   string(trip.Status),
		City:     trip.City,
	}, nil
}

// ListRiderTrips retrieves a rider's recent trips.
func (s *TripService) ListRiderTrips(ctx context.Context, riderID string, limit int) ([]*domain.Trip, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.tripRepo.ListByRiderID(ctx, riderID, limit)
}

// GetTripAudit retrieves a trip's transition log.
func (s *TripService) GetTripAudit(ctx context.Context, tripID string) ([]*repository.AuditEntry, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.auditRepo.ListByTripID(ctx, tripID)
}

// afterTransition refreshes the state cache and appends the audit entry.
// Both are best effort: the trip row is already persisted. Terminal trips
// are dropped from the cache rather than refreshed; status lookups for them
// fall through to the repository.
func (s *TripService) afterTransition(ctx context.Context, prev, next *domain.Trip, cmd fsm.Command, actor *domain.Actor, detail string) {
	if next.IsTerminal() {
		if err := s.tripCache.InvalidateTrip(ctx, next.ID); err != nil {
			s.log.WithError(err).WithField("trip_id", next.ID).Warn("failed to invalidate trip state cache")
		}
	} else if err := s.tripCache.SetTripState(ctx, next); err != nil {
		s.log.WithError(err).WithField("trip_id", next.ID).Warn("failed to refresh trip state cache")
	}

	entry := &repository.AuditEntry{
		ID:         uuid.New().String(),
		TripID:     next.ID,
		Command:    string(cmd),
		FromStatus: prev.Status,
		ToStatus:   next.Status,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
	if actor != nil {
		entry.ActorType = string(actor.Type)
		entry.ActorID = actor.ID
	}
	if err := s.auditRepo.Append(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"trip_id": next.ID,
			"command": cmd,
		}).Error("failed to append audit entry")
	}
}

// publish appends one domain event to the trip stream. Publishing happens
// after the persisted write; a failure here is logged and the operation
// still succeeds.
func (s *TripService) publish(ctx context.Context, eventType string, payload any) {
	ev, err := stream.NewEvent(eventType, EventSource, payload)
	if err != nil {
		s.log.WithError(err).WithField("event_type", eventType).Error("failed to build event")
		return
	}
	if err := s.publisher.Publish(ctx, s.tripsStream, ev); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"event_id":   ev.ID,
		}).Error("failed to publish event")
	}
}

func validCoordinate(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func validVehicleType(vt domain.VehicleType) bool {
	switch vt {
	case domain.VehicleTypeEconomy, domain.VehicleTypeComfort, domain.VehicleTypeXL:
		return true
	}
	return false
}

// generatePin produces a 4-digit pickup PIN from a CSPRNG.
func generatePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
