package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"trips/internal/domain"
	"trips/internal/service"
)

// TripHandler handles HTTP requests for the trip lifecycle.
type TripHandler struct {
	tripService *service.TripService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// CreateTripRequest is the HTTP request body for requesting a trip.
type CreateTripRequest struct {
	RiderID        string  `json:"rider_id"`
	VehicleType    string  `json:"vehicle_type"`
	City           string  `json:"city"`
	OriginLat      float64 `json:"origin_lat"`
	OriginLng      float64 `json:"origin_lng"`
	DestinationLat float64 `json:"destination_lat"`
	DestinationLng float64 `json:"destination_lng"`
}

// AcceptTripRequest is the HTTP request body for a driver accepting a trip.
type AcceptTripRequest struct {
	DriverID string `json:"driver_id"`
}

// VerifyPinRequest is the HTTP request body for verifying the pickup PIN.
type VerifyPinRequest struct {
	Pin string `json:"pin"`
}

// CompleteTripRequest is the HTTP request body for completing a trip.
type CompleteTripRequest struct {
	DistanceM     float64 `json:"distance_m"`
	DurationS     float64 `json:"duration_s"`
	PaymentMethod string  `json:"payment_method"`
}

// CancelTripRequest is the HTTP request body for canceling a trip.
type CancelTripRequest struct {
	Side   string `json:"side"`
	Reason string `json:"reason,omitempty"`
}

// CoordinateResponse is a trip endpoint in responses.
type CoordinateResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	H3Index string  `json:"h3_index,omitempty"`
}

// PricingResponse is the price snapshot in responses.
type PricingResponse struct {
	Base            float64            `json:"base"`
	SurgeMultiplier float64            `json:"surge_multiplier,omitempty"`
	Total           float64            `json:"total"`
	Currency        string             `json:"currency"`
	Breakdown       map[string]float64 `json:"breakdown,omitempty"`
	Taxes           float64            `json:"taxes,omitempty"`
	RuleVersion     string             `json:"rule_version,omitempty"`
}

// MetricsResponse is a distance/duration pair in responses.
type MetricsResponse struct {
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
}

// CancellationResponse describes a cancellation in responses.
type CancellationResponse struct {
	Side       string `json:"side"`
	Reason     string `json:"reason"`
	CanceledAt string `json:"canceled_at"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	TripID          string                `json:"trip_id"`
	RiderID         string                `json:"rider_id"`
	DriverID        string                `json:"driver_id,omitempty"`
	VehicleType     string                `json:"vehicle_type"`
	Status          string                `json:"status"`
	City            string                `json:"city"`
	Origin          CoordinateResponse    `json:"origin"`
	Destination     CoordinateResponse    `json:"destination"`
	QuoteID         string                `json:"quote_id,omitempty"`
	Pricing         *PricingResponse      `json:"pricing,omitempty"`
	PaymentIntentID string                `json:"payment_intent_id,omitempty"`
	Estimated       *MetricsResponse      `json:"estimated,omitempty"`
	Final           *MetricsResponse      `json:"final,omitempty"`
	Cancel          *CancellationResponse `json:"cancellation,omitempty"`
	RequestedAt     string                `json:"requested_at,omitempty"`
	AssignedAt      string                `json:"assigned_at,omitempty"`
	PickupStartedAt string                `json:"pickup_started_at,omitempty"`
	InProgressAt    string                `json:"in_progress_at,omitempty"`
	CompletedAt     string                `json:"completed_at,omitempty"`
	PaidAt          string                `json:"paid_at,omitempty"`
}

// AcceptTripResponse is the HTTP response for a successful acceptance.
type AcceptTripResponse struct {
	Trip         TripResponse `json:"trip"`
	Pin          string       `json:"pin,omitempty"`
	PickupEtaSec float64      `json:"pickup_eta_sec,omitempty"`
}

// AuditEntryResponse is one lifecycle transition in the audit trail.
// TripStateResponse is the lightweight status projection for polling.
type TripStateResponse struct {
	TripID   string `json:"trip_id"`
	RiderID  string `json:"rider_id"`
	DriverID string `json:"driver_id,omitempty"`
	Status   string `json:"status"`
	City     string `json:"city"`
}

type AuditEntryResponse struct {
	Command    string `json:"command"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ActorType  string `json:"actor_type,omitempty"`
	ActorID    string `json:"actor_id,omitempty"`
	Detail     string `json:"detail,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), service.CreateTripRequest{
		RiderID:     req.RiderID,
		VehicleType: domain.VehicleType(req.VehicleType),
		City:        req.City,
		OriginLat:   req.OriginLat,
		OriginLng:   req.OriginLng,
		DestLat:     req.DestinationLat,
		DestLng:     req.DestinationLng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripToResponse(trip))
}

// AcceptTrip handles POST /v1/trips/:id/accept
func (h *TripHandler) AcceptTrip(c *gin.Context) {
	var req AcceptTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.tripService.AcceptTrip(c.Request.Context(), service.AcceptTripRequest{
		TripID:   c.Param("id"),
		DriverID: req.DriverID,
		Actor:    actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AcceptTripResponse{
		Trip:         tripToResponse(result.Trip),
		Pin:          result.Pin,
		PickupEtaSec: result.PickupEtaSec,
	})
}

// VerifyPin handles POST /v1/trips/:id/verify-pin
func (h *TripHandler) VerifyPin(c *gin.Context) {
	var req VerifyPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.VerifyPin(c.Request.Context(), service.VerifyPinRequest{
		TripID: c.Param("id"),
		Pin:    req.Pin,
		Actor:  actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripToResponse(trip))
}

// StartTrip handles POST /v1/trips/:id/start
func (h *TripHandler) StartTrip(c *gin.Context) {
	trip, err := h.tripService.StartTrip(c.Request.Context(), service.StartTripRequest{
		TripID: c.Param("id"),
		Actor:  actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripToResponse(trip))
}

// CompleteTrip handles POST /v1/trips/:id/complete
func (h *TripHandler) CompleteTrip(c *gin.Context) {
	var req CompleteTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CompleteTrip(c.Request.Context(), service.CompleteTripRequest{
		TripID:         c.Param("id"),
		Actor:          actorFrom(c),
		FinalDistanceM: req.DistanceM,
		FinalDurationS: req.DurationS,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripToResponse(trip))
}

// CancelTrip handles POST /v1/trips/:id/cancel
func (h *TripHandler) CancelTrip(c *gin.Context) {
	var req CancelTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.tripService.CancelTrip(c.Request.Context(), service.CancelTripRequest{
		TripID: c.Param("id"),
		Side:   domain.CancelSide(req.Side),
		Reason: req.Reason,
		Actor:  actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripToResponse(trip))
}

// MarkPaid handles POST /v1/trips/:id/mark-paid
func (h *TripHandler) MarkPaid(c *gin.Context) {
	trip, err := h.tripService.MarkPaid(c.Request.Context(), service.MarkPaidRequest{
		TripID: c.Param("id"),
		Actor:  actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripToResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripToResponse(trip))
}

// GetTripStatus handles GET /v1/trips/:id/status. It serves the cached
// status projection when one exists, so pollers do not hit Postgres.
func (h *TripHandler) GetTripStatus(c *gin.Context) {
	state, err := h.tripService.GetTripState(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, TripStateResponse{
		TripID:   state.ID,
		RiderID:  state.RiderID,
		DriverID: state.DriverID,
		Status:   state.Status,
		City:     state.City,
	})
}

// GetTripAudit handles GET /v1/trips/:id/audit
func (h *TripHandler) GetTripAudit(c *gin.Context) {
	entries, err := h.tripService.GetTripAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			Command:    e.Command,
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			ActorType:  e.ActorType,
			ActorID:    e.ActorID,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	respondJSON(c, http.StatusOK, gin.H{"trip_id": c.Param("id"), "entries": out})
}

// ListRiderTrips handles GET /v1/riders/:id/trips
func (h *TripHandler) ListRiderTrips(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	trips, err := h.tripService.ListRiderTrips(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, tripToResponse(t))
	}

	respondJSON(c, http.StatusOK, gin.H{"rider_id": c.Param("id"), "trips": out})
}

// actorFrom extracts the acting identity from request headers. Missing
// headers yield a nil actor, which skips the identity checks.
func actorFrom(c *gin.Context) *domain.Actor {
	actorType := c.GetHeader("X-Actor-Type")
	actorID := c.GetHeader("X-Actor-Id")
	if actorType == "" || actorID == "" {
		return nil
	}
	return &domain.Actor{Type: domain.ActorType(actorType), ID: actorID}
}

func tripToResponse(t *domain.Trip) TripResponse {
	resp := TripResponse{
		TripID:          t.ID,
		RiderID:         t.RiderID,
		DriverID:        t.DriverID,
		VehicleType:     string(t.VehicleType),
		Status:          string(t.Status),
		City:            t.City,
		Origin:          CoordinateResponse{Lat: t.Origin.Lat, Lng: t.Origin.Lng, H3Index: t.Origin.H3Index},
		Destination:     CoordinateResponse{Lat: t.Destination.Lat, Lng: t.Destination.Lng, H3Index: t.Destination.H3Index},
		QuoteID:         t.QuoteID,
		PaymentIntentID: t.PaymentIntentID,
		RequestedAt:     formatTime(t.RequestedAt),
		AssignedAt:      formatTime(t.AssignedAt),
		PickupStartedAt: formatTime(t.PickupStartedAt),
		InProgressAt:    formatTime(t.InProgressAt),
		CompletedAt:     formatTime(t.CompletedAt),
		PaidAt:          formatTime(t.PaidAt),
	}

	if t.Pricing != nil {
		resp.Pricing = &PricingResponse{
			Base:            t.Pricing.Base,
			SurgeMultiplier: t.Pricing.SurgeMultiplier,
			Total:           t.Pricing.Total,
			Currency:        t.Pricing.Currency,
			Breakdown:       t.Pricing.Breakdown,
			Taxes:           t.Pricing.Taxes,
			RuleVersion:     t.Pricing.RuleVersion,
		}
	}
	if t.Estimated.DistanceM > 0 || t.Estimated.DurationS > 0 {
		resp.Estimated = &MetricsResponse{DistanceM: t.Estimated.DistanceM, DurationS: t.Estimated.DurationS}
	}
	if t.Final != nil {
		resp.Final = &MetricsResponse{DistanceM: t.Final.DistanceM, DurationS: t.Final.DurationS}
	}
	if t.Cancel != nil {
		resp.Cancel = &CancellationResponse{
			Side:       string(t.Cancel.Side),
			Reason:     t.Cancel.Reason,
			CanceledAt: t.Cancel.At.UTC().Format(time.RFC3339),
		}
	}

	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
