package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"trips/internal/domain"
	"trips/internal/stream"
)

// Inbound event types this service reacts to.
const (
	EventPaymentIntentCaptured = "payment.intent.captured"
	EventDriverOffline         = "driver.offline"
)

// paymentCapturedPayload is the payments service's capture notification.
type paymentCapturedPayload struct {
	TripID          string `json:"trip_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Status          string `json:"status"`
}

// driverOfflinePayload is the presence service's offline notification.
type driverOfflinePayload struct {
	DriverID string `json:"driver_id"`
	Reason   string `json:"reason"`
}

var systemActor = &domain.Actor{Type: domain.ActorTypeSystem, ID: "trip-service"}

// RegisterConsumers wires this service's inbound handlers onto the payments
// and presence stream consumers.
func (s *TripService) RegisterConsumers(payments, presence *stream.Consumer) {
	payments.Handle(EventPaymentIntentCaptured, s.HandlePaymentCaptured)
	presence.Handle(EventDriverOffline, s.HandleDriverOffline)
}

// HandlePaymentCaptured settles the trip referenced by a capture
// notification. Domain rejections are logged and acknowledged; only
// infrastructure failures leave the message pending for redelivery.
func (s *TripService) HandlePaymentCaptured(ctx context.Context, ev stream.Event) error {
	var payload paymentCapturedPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.WithError(err).WithField("event_id", ev.ID).Warn("malformed payment capture event")
		return nil
	}
	if payload.TripID == "" {
		s.log.WithField("event_id", ev.ID).Warn("payment capture event without trip id")
		return nil
	}

	_, err := s.MarkPaid(ctx, MarkPaidRequest{TripID: payload.TripID, Actor: systemActor})
	if err == nil {
		return nil
	}
	if isDomainRejection(err) {
		s.log.WithError(err).WithFields(logrus.Fields{
			"trip_id":  payload.TripID,
			"event_id": ev.ID,
		}).Warn("payment capture event rejected")
		return nil
	}
	return err
}

// HandleDriverOffline cancels the driver's active trip on the system side if
// the ride has not yet begun. A trip already IN_PROGRESS rides out the
// presence gap.
func (s *TripService) HandleDriverOffline(ctx context.Context, ev stream.Event) error {
	var payload driverOfflinePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.log.WithError(err).WithField("event_id", ev.ID).Warn("malformed driver offline event")
		return nil
	}
	if payload.DriverID == "" {
		return nil
	}

	trip, err := s.tripRepo.GetActiveByDriverID(ctx, payload.DriverID)
	if err != nil {
		return err
	}
	if trip == nil {
		return nil
	}
	if trip.Status != domain.TripStatusAssigned && trip.Status != domain.TripStatusPickupStarted {
		return nil
	}

	reason := "driver went offline"
	if payload.Reason != "" {
		reason = "driver went offline: " + payload.Reason
	}
	_, err = s.CancelTrip(ctx, CancelTripRequest{
		TripID: trip.ID,
		Side:   domain.CancelSideSystem,
		Reason: reason,
		Actor:  systemActor,
	})
	if err == nil {
		return nil
	}
	if isDomainRejection(err) {
		s.log.WithError(err).WithFields(logrus.Fields{
			"trip_id":  trip.ID,
			"event_id": ev.ID,
		}).Warn("driver offline cancellation rejected")
		return nil
	}
	return err
}

// isDomainRejection reports whether an error is a lifecycle rejection rather
// than an infrastructure failure. Rejections are terminal for a message:
// redelivery would fail the same way.
func isDomainRejection(err error) bool {
	var (
		invalidTransition *domain.InvalidTransitionError
		invalidState      *domain.InvalidStateForPaymentError
		notCaptured       *domain.PaymentNotCapturedError
		unauthorized      *domain.UnauthorizedActorError
	)
	return errors.As(err, &invalidTransition) ||
		errors.As(err, &invalidState) ||
		errors.As(err, &notCaptured) ||
		errors.As(err, &unauthorized)
}
