package client

import (
	"context"
	"fmt"

	"trips/internal/resilience"
)

// EtaRequest asks for travel estimates between origin/destination pairs.
type EtaRequest struct {
	Origins      []Point `json:"origins"`
	Destinations []Point `json:"destinations"`
	Profile      string  `json:"profile"`
	City         string  `json:"city"`
}

// EtaPair is one origin/destination estimate.
type EtaPair struct {
	DurationSec float64 `json:"duration_sec"`
	DistanceM   float64 `json:"distance_m"`
}

// EtaResponse is the geo service's estimate answer.
type EtaResponse struct {
	Engine      string    `json:"engine"`
	Pairs       []EtaPair `json:"pairs"`
	Degradation string    `json:"degradation,omitempty"`
}

// RouteRequest asks for a full route between two points.
type RouteRequest struct {
	Origin      Point  `json:"origin"`
	Destination Point  `json:"destination"`
	Profile     string `json:"profile"`
	City        string `json:"city"`
}

// RouteResponse is the geo service's routing answer.
type RouteResponse struct {
	Polyline    string  `json:"polyline"`
	DistanceM   float64 `json:"distance_m"`
	DurationSec float64 `json:"duration_sec"`
	Degradation string  `json:"degradation,omitempty"`
}

// H3Op is one operation in a batched geospatial-index request.
type H3Op struct {
	Op  string  `json:"op"` // "encode" or "kRing"
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	Res int     `json:"res"`
}

// H3Result is the answer to one H3Op.
type H3Result struct {
	Index string   `json:"index"`
	Ring  []string `json:"ring,omitempty"`
}

type h3Request struct {
	Ops []H3Op `json:"ops"`
}

type h3Response struct {
	Results []H3Result `json:"results"`
}

// GeoClient talks to the geospatial routing service. Immutable
// coordinate-to-index conversions are memoized in a bounded LRU cache, so a
// batch may be served by a mix of cache hits and one remote call; result
// order always matches the request order.
type GeoClient struct {
	caller  caller
	guard   guard
	h3Cache *resilience.Cache[string, H3Result]
}

// NewGeoClient creates a GeoClient with its own circuit breaker.
func NewGeoClient(cfg Config, limiter *resilience.RateLimiter, breakerCfg resilience.BreakerConfig, h3Cache *resilience.Cache[string, H3Result]) *GeoClient {
	return &GeoClient{
		caller: newCaller(cfg),
		guard: guard{
			limiter: limiter,
			breaker: resilience.NewCircuitBreaker("geo", breakerCfg),
			key:     "geo",
		},
		h3Cache: h3Cache,
	}
}

// Eta returns travel estimates for the given origin/destination pairs.
func (c *GeoClient) Eta(ctx context.Context, req EtaRequest) (*EtaResponse, error) {
	var resp EtaResponse
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.postJSON(ctx, "/eta", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Route returns a full route between two points.
func (c *GeoClient) Route(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	var resp RouteResponse
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.postJSON(ctx, "/route", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// H3Encode resolves a batch of index operations. Encode ops hit the local
// cache first; only misses go to the service. results[i] always corresponds
// to ops[i].
func (c *GeoClient) H3Encode(ctx context.Context, ops []H3Op) ([]H3Result, error) {
	results := make([]H3Result, len(ops))

	var missing []H3Op
	var missingIdx []int
	for i, op := range ops {
		if op.Op == "encode" && c.h3Cache != nil {
			if cached, ok := c.h3Cache.Get(h3CacheKey(op)); ok {
				results[i] = cached
				continue
			}
		}
		missing = append(missing, op)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	var resp h3Response
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return c.caller.postJSON(ctx, "/h3", h3Request{Ops: missing}, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) != len(missing) {
		return nil, fmt.Errorf("h3 batch: got %d results for %d ops", len(resp.Results), len(missing))
	}

	for j, res := range resp.Results {
		i := missingIdx[j]
		results[i] = res
		if ops[i].Op == "encode" && c.h3Cache != nil {
			c.h3Cache.Set(h3CacheKey(ops[i]), res)
		}
	}

	return results, nil
}

// h3CacheKey identifies an encode op. Coordinate-to-index conversion is
// immutable, so entries never need invalidation.
func h3CacheKey(op H3Op) string {
	return fmt.Sprintf("%.6f:%.6f:%d", op.Lat, op.Lng, op.Res)
}
