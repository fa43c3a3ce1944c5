package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/security/validation"
)

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// issueSession creates an access/refresh token pair backed by a session row.
func (h *UserHandler) issueSession(r *http.Request, userID int64) (*tokenPair, error) {
	accessToken, err := h.authService.GenerateToken(strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	session := &model.Session{
		UserID:       userID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().UTC().Add(h.refreshExpiry),
	}
	if err := model.CreateSession(r.Context(), h.db, session); err != nil {
		return nil, err
	}
	return &tokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// warmWorkspace loads the user's watchlist ahead of the first request.
func (h *UserHandler) warmWorkspace(r *http.Request, userID int64) {
	if h.workspaces == nil {
		return
	}
	if _, err := h.workspaces.Open(r.Context(), strconv.FormatInt(userID, 10)); err != nil {
		logger.FromContext(r.Context()).Warn("Failed to open workspace on sign-in", "userID", userID, "error", err)
	}
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	credentials.Username = validation.SanitizeText(strings.TrimSpace(credentials.Username))
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))
	credentials.Password = strings.TrimSpace(credentials.Password)

	if credentials.Username == "" && strings.Contains(credentials.Email, "@") {
		credentials.Username = strings.Split(credentials.Email, "@")[0]
	}

	if credentials.Username == "" {
		sendJSONError(w, "Username is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateStringMaxLength(credentials.Username, 50, "Username"); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !emailRegex.MatchString(credentials.Email) {
		sendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(credentials.Password) {
		sendJSONError(w, "Password must be at least 6 characters long", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := model.GetUserByUsername(ctx, h.db, credentials.Username); err == nil {
		sendJSONError(w, "Username already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, model.ErrUserNotFound) {
		logger.FromContext(ctx).Error("Error checking username uniqueness", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}
	if _, err := model.GetUserByEmail(ctx, h.db, credentials.Email); err == nil {
		sendJSONError(w, "Email address already in use", http.StatusConflict)
		return
	} else if !errors.Is(err, model.ErrUserNotFound) {
		logger.FromContext(ctx).Error("Error checking email uniqueness", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := h.authService.HashPassword(credentials.Password)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to hash password", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}
	user := &model.User{
		Username:     credentials.Username,
		Email:        credentials.Email,
		Password:     hashedPassword,
		AuthProvider: "local",
	}
	if err := user.CreateUser(ctx, h.db); err != nil {
		logger.FromContext(ctx).Error("Failed to create user in DB", "error", err)
		sendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	logger.FromContext(ctx).Info("User registered", "userID", user.ID)
	sendJSON(w, http.StatusCreated, map[string]any{
		"message": "Account created. You can now sign in.",
		"user":    userPayload(user),
	})
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))

	ctx := r.Context()
	user, err := model.GetUserByEmail(ctx, h.db, credentials.Email)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			logger.FromContext(ctx).Error("User lookup by email failed for login", "error", err)
		}
		sendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if user.AuthProvider != "local" {
		sendJSONError(w, "This account uses Google sign-in", http.StatusUnauthorized)
		return
	}
	if err := user.CheckPassword(credentials.Password); err != nil {
		logger.FromContext(ctx).Warn("Password check failed for login", "userID", user.ID)
		sendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := user.RecordLogin(ctx, h.db); err != nil {
		logger.FromContext(ctx).Warn("Failed to record login", "userID", user.ID, "error", err)
	}

	tokens, err := h.issueSession(r, user.ID)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to create session", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.warmWorkspace(r, user.ID)

	logger.FromContext(ctx).Info("User login successful", "userID", user.ID)
	sendJSON(w, http.StatusOK, map[string]any{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"user":          userPayload(user),
	})
}

// RefreshTokenHandler rotates a refresh token: the old session is deleted
// and a new pair is issued.
func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if requestBody.RefreshToken == "" {
		sendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	oldSession, err := model.GetSessionByRefreshToken(ctx, h.db, requestBody.RefreshToken)
	if err != nil {
		logger.FromContext(ctx).Warn("Refresh token lookup failed", "error", err)
		sendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}
	if err := model.DeleteSessionByRefreshToken(ctx, h.db, requestBody.RefreshToken); err != nil {
		logger.FromContext(ctx).Error("Failed to delete old session during refresh", "userID", oldSession.UserID, "error", err)
	}

	tokens, err := h.issueSession(r, oldSession.UserID)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to create new session on refresh", "userID", oldSession.UserID, "error", err)
		sendJSONError(w, "Failed to create new session on refresh", http.StatusInternalServerError)
		return
	}
	logger.FromContext(ctx).Info("Token refreshed successfully", "userID", oldSession.UserID)
	sendJSON(w, http.StatusOK, tokens)
}

// LogoutUserHandler deletes the session and signs the user's workspace out.
func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if tokenString := bearerToken(r); tokenString != "" {
		if err := model.DeleteSessionByToken(ctx, h.db, tokenString); err != nil {
			logger.FromContext(ctx).Warn("Failed to delete session on logout", "error", err)
		}
	}
	if userID, ok := GetUserIDFromContext(ctx); ok && h.workspaces != nil {
		h.workspaces.Close(ctx, strconv.FormatInt(userID, 10))
	}
	w.WriteHeader(http.StatusNoContent)
}
