package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/security"
	"github.com/username/finwatch/src/security/validation"
	"github.com/username/finwatch/src/services"
)

type contextKey string

const userIDContextKey contextKey = "userID"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
var passwordRegex = regexp.MustCompile(`^.{6,}$`)

// ownerPurger removes a user's rows from the remote watchlist table.
type ownerPurger interface {
	DeleteByOwner(ctx context.Context, owner string) error
}

type UserHandler struct {
	db            *sql.DB
	authService   *security.AuthService
	workspaces    *services.Manager
	remote        ownerPurger
	refreshExpiry time.Duration
}

func NewUserHandler(db *sql.DB, authService *security.AuthService, workspaces *services.Manager, remote ownerPurger, refreshExpiry time.Duration) *UserHandler {
	if refreshExpiry <= 0 {
		refreshExpiry = 7 * 24 * time.Hour
	}
	return &UserHandler{
		db:            db,
		authService:   authService,
		workspaces:    workspaces,
		remote:        remote,
		refreshExpiry: refreshExpiry,
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	logger.L.Warn("Sending JSON error to client", "message", message, "statusCode", statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func sendJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// ownerFromRequest returns the authenticated user id as stored in the
// per-user tables. It writes a 401 and returns false when absent.
func ownerFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return "", false
	}
	return strconv.FormatInt(userID, 10), true
}

func userPayload(u *model.User) map[string]any {
	return map[string]any{
		"id":            u.ID,
		"username":      u.Username,
		"email":         u.Email,
		"auth_provider": u.AuthProvider,
		"display_name":  u.DisplayName,
		"photo_url":     u.PhotoURL,
	}
}

// HandleGetMe returns the signed-in user.
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	user, err := model.GetUserByID(r.Context(), h.db, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load user", "error", err)
		sendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, userPayload(user))
}

type UpdateProfileRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

// HandleUpdateMe changes the signed-in user's display name and photo.
func (h *UserHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	contextID := strconv.FormatInt(userID, 10)
	name, err := validation.ValidateFreeText(req.Name, "name", contextID, validation.MaxDisplayNameLength)
	if err != nil {
		sendServiceError(w, r, err, "Invalid name")
		return
	}
	photo, err := validation.ValidateImageURL(req.PhotoURL, "photo_url")
	if err != nil {
		sendServiceError(w, r, err, "Invalid photo URL")
		return
	}

	user, err := model.GetUserByID(r.Context(), h.db, userID)
	if err != nil {
		sendServiceError(w, r, err, "Failed to retrieve user information")
		return
	}
	if err := user.UpdateProfile(r.Context(), h.db, name, photo); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update profile", "userID", userID, "error", err)
		sendJSONError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	logger.FromContext(r.Context()).Info("Profile updated", "userID", userID)
	sendJSON(w, http.StatusOK, userPayload(user))
}
