package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/services"
)

type SubscriptionHandler struct {
	db            *sql.DB
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandler(db *sql.DB, subscriptions *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{db: db, subscriptions: subscriptions}
}

func (h *SubscriptionHandler) HandlePlans(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, services.Plans())
}

// currentUser loads the caller, writing the error response on failure.
func (h *SubscriptionHandler) currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}
	user, err := model.GetUserByID(r.Context(), h.db, userID)
	if err != nil {
		sendServiceError(w, r, err, "Failed to retrieve user information")
		return nil, false
	}
	return user, true
}

func (h *SubscriptionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Status(r.Context(), user.OwnerID(), user.Email)
	if err != nil {
		sendServiceError(w, r, err, "Failed to retrieve subscription")
		return
	}
	sendJSON(w, http.StatusOK, sub)
}

func (h *SubscriptionHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	sub, err := h.subscriptions.Subscribe(r.Context(), user.OwnerID(), user.Email, strings.TrimSpace(req.Plan))
	if err != nil {
		sendServiceError(w, r, err, "Failed to process subscription")
		return
	}
	sendJSON(w, http.StatusOK, sub)
}
