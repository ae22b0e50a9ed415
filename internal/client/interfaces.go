package client

import "context"

// GeoClientInterface defines the geo service operations consumed here.
type GeoClientInterface interface {
	Eta(ctx context.Context, req EtaRequest) (*EtaResponse, error)
	Route(ctx context.Context, req RouteRequest) (*RouteResponse, error)
	H3Encode(ctx context.Context, ops []H3Op) ([]H3Result, error)
}

// PricingClientInterface defines the pricing service operations consumed here.
type PricingClientInterface interface {
	Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error)
	Finalize(ctx context.Context, req FinalizeRequest) (*FinalizeResponse, error)
}

// PaymentsClientInterface defines the payments service operations consumed here.
type PaymentsClientInterface interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResponse, error)
	GetIntent(ctx context.Context, paymentIntentID string) (*IntentStatus, error)
}

// PresenceClientInterface defines the driver presence operations consumed here.
type PresenceClientInterface interface {
	GetSession(ctx context.Context, driverID string) (*SessionResponse, error)
}

// Ensure concrete types implement interfaces.
var (
	_ GeoClientInterface      = (*GeoClient)(nil)
	_ PricingClientInterface  = (*PricingClient)(nil)
	_ PaymentsClientInterface = (*PaymentsClient)(nil)
	_ PresenceClientInterface = (*PresenceClient)(nil)
)
