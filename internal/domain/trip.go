package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusRequested     TripStatus = "REQUESTED"
	TripStatusOffered       TripStatus = "OFFERED"
	TripStatusAssigned      TripStatus = "ASSIGNED"
	TripStatusPickupStarted TripStatus = "PICKUP_STARTED"
	TripStatusInProgress    TripStatus = "IN_PROGRESS"
	TripStatusCompleted     TripStatus = "COMPLETED"
	TripStatusPaid          TripStatus = "PAID"
	TripStatusCanceled      TripStatus = "CANCELED"
)

// VehicleType represents the requested vehicle class.
type VehicleType string

const (
	VehicleTypeEconomy VehicleType = "ECONOMY"
	VehicleTypeComfort VehicleType = "COMFORT"
	VehicleTypeXL      VehicleType = "XL"
)

// CancelSide identifies which party initiated a cancellation.
type CancelSide string

const (
	CancelSideRider  CancelSide = "rider"
	CancelSideDriver CancelSide = "driver"
	CancelSideSystem CancelSide = "system"
)

// ActorType identifies the kind of identity acting on a trip.
type ActorType string

const (
	ActorTypeRider  ActorType = "rider"
	ActorTypeDriver ActorType = "driver"
	ActorTypeSystem ActorType = "system"
)

// Actor is the identity performing a lifecycle command.
type Actor struct {
	Type ActorType
	ID   string
}

// Coordinate is a geographic point plus its geospatial index string.
type Coordinate struct {
	Lat     float64
	Lng     float64
	H3Index string
}

// PricingSnapshot holds the authoritative price for a trip. At completion it
// must come from the pricing service's finalize response, never be computed
// locally.
type PricingSnapshot struct {
	Base            float64
	SurgeMultiplier float64
	Total           float64
	Currency        string
	Breakdown       map[string]float64
	Taxes           float64
	RuleVersion     string
}

// TripMetrics holds distance/duration figures for a trip leg.
type TripMetrics struct {
	DistanceM float64
	DurationS float64
}

// Cancellation records who canceled a trip, why, and when.
type Cancellation struct {
	Side   CancelSide
	Reason string
	At     time.Time
}

// Trip is the aggregate root spanning request through payment. It is created
// in REQUESTED, mutated in place by each lifecycle step, and terminates into
// PAID or CANCELED.
type Trip struct {
	ID          string
	RiderID     string
	DriverID    string
	VehicleType VehicleType
	Status      TripStatus
	City        string

	Origin      Coordinate
	Destination Coordinate

	RequestedAt     time.Time
	OfferedAt       time.Time
	AssignedAt      time.Time
	PickupStartedAt time.Time
	InProgressAt    time.Time
	CompletedAt     time.Time
	PaidAt          time.Time

	QuoteID         string
	Pricing         *PricingSnapshot
	PaymentIntentID string

	Estimated TripMetrics
	Final     *TripMetrics

	Cancel *Cancellation
}

// IsTerminal reports whether the trip has reached a terminal status.
func (t *Trip) IsTerminal() bool {
	return t.Status == TripStatusPaid || t.Status == TripStatusCanceled
}

// Clone returns a deep copy of the trip.
func (t *Trip) Clone() *Trip {
	cp := *t
	if t.Pricing != nil {
		pricing := *t.Pricing
		if t.Pricing.Breakdown != nil {
			pricing.Breakdown = make(map[string]float64, len(t.Pricing.Breakdown))
			for k, v := range t.Pricing.Breakdown {
				pricing.Breakdown[k] = v
			}
		}
		cp.Pricing = &pricing
	}
	if t.Final != nil {
		final := *t.Final
		cp.Final = &final
	}
	if t.Cancel != nil {
		cancel := *t.Cancel
		cp.Cancel = &cancel
	}
	return &cp
}
