package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/model"
)

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewPassword != req.ConfirmNewPassword {
		sendJSONError(w, "New passwords do not match", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(req.NewPassword) {
		sendJSONError(w, "New password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := model.GetUserByID(ctx, h.db, userID)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to get user for password change", "error", err)
		sendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}
	if user.AuthProvider != "local" {
		sendJSONError(w, "Password cannot be changed for accounts created via Google.", http.StatusForbidden)
		return
	}
	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		sendJSONError(w, "Incorrect current password", http.StatusForbidden)
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to hash new password", "error", err)
		sendJSONError(w, "Failed to process new password", http.StatusInternalServerError)
		return
	}
	if err := user.UpdatePassword(ctx, h.db, hashed); err != nil {
		logger.FromContext(ctx).Error("Failed to update password in DB", "error", err)
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}
	logger.FromContext(ctx).Info("Password changed successfully")
	sendJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully."})
}

type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccountHandler removes the user, their sessions, ledger,
// subscription and watchlist, and tears down their workspace.
func (h *UserHandler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	var req DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := model.GetUserByID(ctx, h.db, userID)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to get user for account deletion", "error", err)
		sendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}
	if user.AuthProvider == "local" {
		if err := user.CheckPassword(req.Password); err != nil {
			sendJSONError(w, "Incorrect password. Account deletion failed.", http.StatusForbidden)
			return
		}
	}

	owner := strconv.FormatInt(userID, 10)
	if h.workspaces != nil {
		h.workspaces.Close(ctx, owner)
	}
	if h.remote != nil {
		if err := h.remote.DeleteByOwner(ctx, owner); err != nil {
			logger.FromContext(ctx).Error("Failed to delete remote watchlist", "error", err)
			sendJSONError(w, "Failed to delete account data (watchlist)", http.StatusBadGateway)
			return
		}
	}
	if err := model.DeleteUserData(ctx, h.db, userID); err != nil {
		logger.FromContext(ctx).Error("Failed to delete account", "error", err)
		sendJSONError(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}
	logger.FromContext(ctx).Info("Account deleted successfully")
	w.WriteHeader(http.StatusNoContent)
}
