package client

import (
	"context"

	"trips/internal/resilience"
)

// QuoteRequest asks the pricing service for an upfront estimate.
type QuoteRequest struct {
	Origin      Point  `json:"origin"`
	Destination Point  `json:"destination"`
	VehicleType string `json:"vehicle_type"`
	City        string `json:"city"`
}

// QuoteResponse is the pricing service's estimate.
type QuoteResponse struct {
	QuoteID       string             `json:"quote_id"`
	Currency      string             `json:"currency"`
	EstimateTotal float64            `json:"estimate_total"`
	Breakdown     map[string]float64 `json:"breakdown"`
	Zone          string             `json:"zone"`
}

// FinalizeRequest asks for the authoritative final price of a trip.
type FinalizeRequest struct {
	QuoteID        string  `json:"quote_id"`
	TripID         string  `json:"trip_id"`
	VehicleType    string  `json:"vehicle_type"`
	DistanceMFinal float64 `json:"distance_m_final"`
	DurationSFinal float64 `json:"duration_s_final"`
	City           string  `json:"city"`
}

// FinalizeResponse is the authoritative price. Trip completion must reflect
// this, never a locally recomputed figure.
type FinalizeResponse struct {
	TotalFinal         float64            `json:"total_final"`
	Taxes              float64            `json:"taxes"`
	SurgeUsed          float64            `json:"surge_used"`
	PricingRuleVersion string             `json:"pricing_rule_version"`
	Breakdown          map[string]float64 `json:"breakdown,omitempty"`
	Degradation        string             `json:"degradation,omitempty"`
}

// PricingClient talks to the pricing service.
type PricingClient struct {
	caller caller
	guard  guard
}

// NewPricingClient creates a PricingClient with its own circuit breaker.
func NewPricingClient(cfg Config, limiter *resilience.RateLimiter, breakerCfg resilience.BreakerConfig) *PricingClient {
	return &PricingClient{
		caller: newCaller(cfg),
		guard: guard{
			limiter: limiter,
			breaker: resilience.NewCircuitBreaker("pricing", breakerCfg),
			key:     "pricing",
		},
	}
}

// Quote returns an upfront price estimate.
func (c *PricingClient) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	var resp QuoteResponse
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.postJSON(ctx, "/quote", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Finalize returns the authoritative final price for a completed trip.
func (c *PricingClient) Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResponse, error) {
	var resp FinalizeResponse
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.postJSON(ctx, "/finalize", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
