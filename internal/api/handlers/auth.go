package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rohits-web03/peerlink/internal/api/middleware"
	"github.com/rohits-web03/peerlink/internal/services"
	"github.com/rohits-web03/peerlink/internal/utils"
	"github.com/rs/zerolog/log"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (Credentials, bool) {
	var input Credentials
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return input, false
	}
	return input, input.Username != "" && input.Password != ""
}

// Signup godoc
// @Summary Register a user
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body handlers.Credentials true "Username and password"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCredentials(r)
	if !ok {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	if _, err := h.users.Signup(r.Context(), input.Username, input.Password); err != nil {
		if errors.Is(err, services.ErrConflict) {
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: "Username is already taken!",
			})
			return
		}
		respondError(w, r, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "User registered successfully!",
	})
}

// Login godoc
// @Summary Log in
// @Description Sets an HttpOnly session cookie valid for 24 hours.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body handlers.Credentials true "Username and password"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	input, ok := decodeCredentials(r)
	if !ok {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	token, exp, err := h.users.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	h.setSessionCookie(w, token, exp)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Login successful",
	})
}

// CheckAuth godoc
// @Summary Check the session
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /auth/check [get]
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	if p == nil {
		utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
			Success: false,
			Message: "Not authenticated",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Authenticated as: " + p.Username,
	})
}

// Logout godoc
// @Summary Log out
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, middleware.SessionCookie)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Logged out successfully",
	})
}

// DeleteAccount godoc
// @Summary Delete my account
// @Description Deletes every file the caller owns, then the account itself.
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /auth/account [delete]
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.files.DeleteAccount(r.Context(), middleware.PrincipalFrom(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	h.clearCookie(w, middleware.SessionCookie)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Account deleted successfully",
	})
}

// GoogleLogin godoc
// @Summary Start Google sign-in
// @Tags Auth
// @Success 307
// @Failure 404 {object} utils.Payload
// @Router /auth/google/login [get]
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.opts.GoogleOAuth == nil {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
			Success: false,
			Message: "Google sign-in is not enabled",
		})
		return
	}

	state, err := GenerateState(map[string]string{"flow": "login"})
	if err != nil {
		respondError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		Secure:   h.opts.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.opts.GoogleOAuth.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback godoc
// @Summary Finish Google sign-in
// @Tags Auth
// @Param state query string true "OAuth state"
// @Param code query string true "Authorization code"
// @Success 307
// @Failure 400 {string} string
// @Router /auth/google/callback [get]
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.opts.GoogleOAuth == nil {
		http.NotFound(w, r)
		return
	}

	state := r.FormValue("state")
	saved, err := r.Cookie(stateCookie)
	if err != nil || saved.Value == "" || saved.Value != state {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	h.clearCookie(w, stateCookie)
	if _, err := DecodeState(state); err != nil {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	identity, err := h.googleIdentity(r)
	if err != nil {
		log.Error().Err(err).Msg("google sign-in failed")
		h.redirectToFrontend(w, r, "error", "google_failed")
		return
	}

	token, exp, err := h.users.LoginWithGoogle(r.Context(), identity)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			log.Warn().Str("email", identity.Email).Msg("google sign-in refused: username belongs to another account")
			h.redirectToFrontend(w, r, "error", "user_already_exists")
			return
		}
		log.Error().Err(err).Msg("google sign-in failed")
		h.redirectToFrontend(w, r, "error", "google_failed")
		return
	}
	h.setSessionCookie(w, token, exp)

	h.redirectToFrontend(w, r, "status", "success_login")
}

func (h *Handler) googleIdentity(r *http.Request) (services.GoogleIdentity, error) {
	token, err := h.opts.GoogleOAuth.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		return services.GoogleIdentity{}, fmt.Errorf("code exchange: %w", err)
	}

	client := h.opts.GoogleOAuth.Client(r.Context(), token)
	resp, err := client.Get(h.googleUserInfoURL)
	if err != nil {
		return services.GoogleIdentity{}, fmt.Errorf("get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.GoogleIdentity{}, fmt.Errorf("get user info: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.GoogleIdentity{}, fmt.Errorf("read user info: %w", err)
	}

	var googleUser struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.Unmarshal(data, &googleUser); err != nil {
		return services.GoogleIdentity{}, fmt.Errorf("parse user info: %w", err)
	}
	if !googleUser.VerifiedEmail {
		return services.GoogleIdentity{}, fmt.Errorf("google email %q is not verified", googleUser.Email)
	}
	if googleUser.ID == "" {
		return services.GoogleIdentity{}, fmt.Errorf("google user info has no id")
	}
	return services.GoogleIdentity{Subject: googleUser.ID, Email: googleUser.Email}, nil
}

func (h *Handler) redirectToFrontend(w http.ResponseWriter, r *http.Request, key, value string) {
	target := h.opts.FrontendURL + "/?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	// SameSite=None lets a frontend on another origin send the cookie in production.
	sameSite := http.SameSiteLaxMode
	if h.opts.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(exp).Seconds()),
		Secure:   h.opts.SecureCookies,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

func (h *Handler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   h.opts.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
