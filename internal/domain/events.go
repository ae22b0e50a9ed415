package domain

// Event types published on the trip stream.
const (
	EventTripRequested     = "trip.requested"
	EventTripOffered       = "trip.offered"
	EventTripAssigned      = "trip.assigned"
	EventTripPickupStarted = "trip.pickup_started"
	EventTripStarted       = "trip.started"
	EventTripCompleted     = "trip.completed"
	EventTripCanceled      = "trip.canceled"
	EventTripPaid          = "trip.paid"
)

// LatLng is a coordinate pair used in event payloads.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TripRequestedEvent is published when a trip is created.
type TripRequestedEvent struct {
	TripID      string `json:"trip_id"`
	RiderID     string `json:"rider_id"`
	VehicleType string `json:"vehicle_type"`
	City        string `json:"city"`
	Origin      LatLng `json:"origin"`
	Destination LatLng `json:"destination"`
	QuoteID     string `json:"quote_id"`
	RequestedAt string `json:"requested_at"`
}

// TripAssignedEvent is published when a driver accepts a trip.
type TripAssignedEvent struct {
	TripID       string  `json:"trip_id"`
	RiderID      string  `json:"rider_id"`
	DriverID     string  `json:"driver_id"`
	PickupEtaSec float64 `json:"pickup_eta_sec"`
	AssignedAt   string  `json:"assigned_at"`
}

// TripPickupStartedEvent is published when the pickup PIN is verified.
type TripPickupStartedEvent struct {
	TripID          string `json:"trip_id"`
	DriverID        string `json:"driver_id"`
	PickupStartedAt string `json:"pickup_started_at"`
}

// TripStartedEvent is published when the ride begins.
type TripStartedEvent struct {
	TripID    string `json:"trip_id"`
	DriverID  string `json:"driver_id"`
	StartedAt string `json:"started_at"`
}

// TripCompletedEvent is published when the ride ends with an authoritative
// price attached.
type TripCompletedEvent struct {
	TripID          string  `json:"trip_id"`
	RiderID         string  `json:"rider_id"`
	DriverID        string  `json:"driver_id"`
	Total           float64 `json:"total"`
	Currency        string  `json:"currency"`
	PaymentIntentID string  `json:"payment_intent_id"`
	DistanceM       float64 `json:"distance_m"`
	DurationS       float64 `json:"duration_s"`
	CompletedAt     string  `json:"completed_at"`
}

// TripCanceledEvent is published when a trip is canceled.
type TripCanceledEvent struct {
	TripID     string `json:"trip_id"`
	Side       string `json:"side"`
	Reason     string `json:"reason"`
	CanceledAt string `json:"canceled_at"`
}

// TripPaidEvent is published when payment capture is confirmed.
type TripPaidEvent struct {
	TripID          string `json:"trip_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	PaidAt          string `json:"paid_at"`
}
