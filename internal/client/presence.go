package client

import (
	"context"

	"trips/internal/resilience"
)

// Eligibility is the presence service's judgment of a driver session.
type Eligibility struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// SessionResponse is a driver's presence snapshot.
type SessionResponse struct {
	Online      bool        `json:"online"`
	LastLoc     *Point      `json:"last_loc"`
	Eligibility Eligibility `json:"eligibility"`
}

// PresenceClient talks to the driver presence service.
type PresenceClient struct {
	caller caller
	guard  guard
}

// NewPresenceClient creates a PresenceClient with its own circuit breaker.
func NewPresenceClient(cfg Config, limiter *resilience.RateLimiter, breakerCfg resilience.BreakerConfig) *PresenceClient {
	return &PresenceClient{
		caller: newCaller(cfg),
		guard: guard{
			limiter: limiter,
			breaker: resilience.NewCircuitBreaker("presence", breakerCfg),
			key:     "presence",
		},
	}
}

// GetSession returns the driver's current presence session.
func (c *PresenceClient) GetSession(ctx context.Context, driverID string) (*SessionResponse, error) {
	var resp SessionResponse
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.getJSON(ctx, "/sessions/"+driverID, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
