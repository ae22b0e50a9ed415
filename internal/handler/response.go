package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trips/internal/domain"
	"trips/internal/redis"
	"trips/internal/repository"
	"trips/internal/resilience"
	"trips/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service, domain, and infrastructure errors to
// HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var (
		invalidTransition *domain.InvalidTransitionError
		alreadyAssigned   *domain.AlreadyAssignedError
		driverOffline     *domain.DriverNotOnlineError
		offerExpired      *domain.OfferExpiredError
		invalidPin        *domain.InvalidPINError
		radiusTooLarge    *domain.RadiusTooLargeError
		missingMetrics    *domain.MissingMetricsError
		missingPricing    *domain.MissingPricingSnapshotError
		unauthorized      *domain.UnauthorizedActorError
		notCaptured       *domain.PaymentNotCapturedError
		invalidState      *domain.InvalidStateForPaymentError
		breakerOpen       *resilience.BreakerOpenError
	)

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidTripID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidOrigin),
		errors.Is(err, service.ErrInvalidDestination),
		errors.Is(err, service.ErrInvalidVehicleType),
		errors.Is(err, service.ErrInvalidCity),
		errors.Is(err, service.ErrEmptyPin),
		errors.Is(err, service.ErrInvalidCancelSide),
		errors.Is(err, service.ErrInvalidMetrics),
		errors.Is(err, service.ErrInvalidPaymentMethod),
		errors.Is(err, service.ErrPickupEtaUnavailable):
		return http.StatusBadRequest

	case errors.As(err, &missingMetrics),
		errors.As(err, &missingPricing):
		return http.StatusBadRequest

	// PIN failures: blocked attempts are throttled, plain mismatches are
	// forbidden.
	case errors.As(err, &invalidPin):
		if invalidPin.Blocked {
			return http.StatusTooManyRequests
		}
		return http.StatusForbidden

	// Acting identity does not match the trip.
	case errors.As(err, &unauthorized):
		return http.StatusForbidden

	// Lifecycle conflicts
	case errors.As(err, &invalidTransition),
		errors.As(err, &alreadyAssigned),
		errors.As(err, &driverOffline),
		errors.As(err, &offerExpired),
		errors.As(err, &radiusTooLarge),
		errors.As(err, &notCaptured),
		errors.As(err, &invalidState):
		return http.StatusConflict

	// A request with this idempotency key is still executing.
	case errors.Is(err, redis.ErrInFlight):
		return http.StatusConflict

	// Downstream circuit open
	case errors.As(err, &breakerOpen):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
