package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/finwatch/src/config"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/model"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// OAuthHandler signs users in with Google.
type OAuthHandler struct {
	users       *UserHandler
	config      *oauth2.Config
	state       string
	frontendURL string
	userInfoURL string
}

func NewOAuthHandler(users *UserHandler, cfg *config.AppConfig) *OAuthHandler {
	return &OAuthHandler{
		users: users,
		config: &oauth2.Config{
			RedirectURL:  cfg.GoogleRedirectURL,
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		state:       cfg.OAuthStateString,
		frontendURL: cfg.FrontendBaseURL,
		userInfoURL: googleUserInfoURL,
	}
}

func (h *OAuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.config.AuthCodeURL(h.state), http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/signin?error="+code, http.StatusTemporaryRedirect)
}

func (h *OAuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	if r.FormValue("state") != h.state {
		log.Warn("Invalid OAuth state from Google callback")
		h.fail(w, r, "invalid_state")
		return
	}

	token, err := h.config.Exchange(ctx, r.FormValue("code"))
	if err != nil {
		log.Error("Failed to exchange code for token", "error", err)
		h.fail(w, r, "token_exchange_failed")
		return
	}

	resp, err := h.config.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		log.Error("Failed to get user info from Google", "error", err)
		h.fail(w, r, "userinfo_failed")
		return
	}
	defer resp.Body.Close()

	var googleUser struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		log.Error("Failed to decode Google user info", "error", err)
		h.fail(w, r, "userinfo_parse_failed")
		return
	}
	if !googleUser.Verified {
		h.fail(w, r, "email_not_verified_by_google")
		return
	}

	user, err := model.GetUserByEmail(ctx, h.users.db, googleUser.Email)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		user = &model.User{Username: googleUser.Email, Email: googleUser.Email, AuthProvider: "google"}
		if err := user.CreateUser(ctx, h.users.db); err != nil {
			log.Error("Failed to create Google user", "error", err)
			h.fail(w, r, "user_creation_failed")
			return
		}
	case err != nil:
		log.Error("User lookup failed for Google login", "error", err)
		h.fail(w, r, "user_lookup_failed")
		return
	case user.AuthProvider == "local":
		log.Warn("Google login attempt for existing local account", "userID", user.ID)
		h.fail(w, r, "email_already_exists_local")
		return
	}

	if err := user.RecordLogin(ctx, h.users.db); err != nil {
		log.Warn("Failed to record login", "userID", user.ID, "error", err)
	}
	tokens, err := h.users.issueSession(r, user.ID)
	if err != nil {
		log.Error("Failed to create session for Google user", "userID", user.ID, "error", err)
		h.fail(w, r, "token_generation_failed")
		return
	}
	h.users.warmWorkspace(r, user.ID)

	userJSON, err := json.Marshal(userPayload(user))
	if err != nil {
		h.fail(w, r, "user_data_build_failed")
		return
	}
	redirectURL := fmt.Sprintf("%s/auth/google/callback?token=%s&refresh_token=%s&user=%s",
		h.frontendURL,
		url.QueryEscape(tokens.AccessToken),
		url.QueryEscape(tokens.RefreshToken),
		url.QueryEscape(string(userJSON)))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
