package handlers

import (
	"errors"
	"net/http"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/security/validation"
	"github.com/username/finwatch/src/services"
	"github.com/username/finwatch/src/watchlist"
)

// sendServiceError maps a service error to a status code and message.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrUnknownPlan):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, watchlist.ErrUnauthenticated):
		sendJSONError(w, "Please sign in to continue", http.StatusUnauthorized)
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrUserNotFound):
		sendJSONError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, services.ErrPaymentFailed):
		sendJSONError(w, "Payment failed. Please try again.", http.StatusPaymentRequired)
	case errors.Is(err, market.ErrRateLimited):
		sendJSONError(w, "Market data provider is rate limiting requests. Please try again shortly.", http.StatusTooManyRequests)
	case errors.Is(err, watchlist.ErrNetwork), errors.Is(err, market.ErrUpstream):
		logger.FromContext(r.Context()).Warn("Upstream failure", "path", r.URL.Path, "error", err)
		sendJSONError(w, "Service temporarily unavailable. Please try again.", http.StatusBadGateway)
	case errors.Is(err, market.ErrNoQuote):
		sendJSONError(w, err.Error(), http.StatusNotFound)
	default:
		logger.FromContext(r.Context()).Error(fallback, "path", r.URL.Path, "error", err)
		sendJSONError(w, fallback, http.StatusInternalServerError)
	}
}
