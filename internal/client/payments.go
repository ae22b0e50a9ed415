package client

import (
	"context"

	"trips/internal/resilience"
)

// Payment intent statuses that count as captured.
const (
	IntentStatusSucceeded = "succeeded"
	IntentStatusCaptured  = "captured"
)

// CreateIntentRequest asks the payments service to open a payment intent.
type CreateIntentRequest struct {
	TripID   string  `json:"tripId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Method   string  `json:"method"`
}

// CreateIntentResponse describes a freshly created payment intent.
type CreateIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
	ClientSecret    string `json:"clientSecret"`
}

// IntentStatus is the current state of a payment intent.
type IntentStatus struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
}

// Captured reports whether the intent's payment has been captured.
func (s IntentStatus) Captured() bool {
	return s.Status == IntentStatusSucceeded || s.Status == IntentStatusCaptured
}

// PaymentsClient talks to the payments service.
type PaymentsClient struct {
	caller caller
	guard  guard
}

// NewPaymentsClient creates a PaymentsClient with its own circuit breaker.
func NewPaymentsClient(cfg Config, limiter *resilience.RateLimiter, breakerCfg resilience.BreakerConfig) *PaymentsClient {
	return &PaymentsClient{
		caller: newCaller(cfg),
		guard: guard{
			limiter: limiter,
			breaker: resilience.NewCircuitBreaker("payments", breakerCfg),
			key:     "payments",
		},
	}
}

// CreateIntent opens a payment intent for a completed trip.
func (c *PaymentsClient) CreateIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResponse, error) {
	var resp CreateIntentResponse
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.postJSON(ctx, "/intents", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetIntent returns the current status of a payment intent.
func (c *PaymentsClient) GetIntent(ctx context.Context, paymentIntentID string) (*IntentStatus, error) {
	var resp IntentStatus
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.getJSON(ctx, "/intents/"+paymentIntentID, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
