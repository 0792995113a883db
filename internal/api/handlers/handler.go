package handlers

import (
	"errors"
	"net/http"

	"github.com/rohits-web03/peerlink/internal/services"
	"github.com/rohits-web03/peerlink/internal/utils"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Options struct {
	// SecureCookies marks cookies Secure and SameSite=None, for cross-site production use.
	SecureCookies bool
	MaxUploadSize int64
	FrontendURL   string
	// GoogleOAuth is nil when Google sign-in is disabled.
	GoogleOAuth *oauth2.Config
}

// Handler serves the HTTP API on top of the file and user services.
type Handler struct {
	files *services.FileService
	users *services.UserService
	opts  Options

	googleUserInfoURL string
}

func New(files *services.FileService, users *services.UserService, opts Options) *Handler {
	return &Handler{
		files:             files,
		users:             users,
		opts:              opts,
		googleUserInfoURL: googleUserInfoURL,
	}
}

// respondError maps service errors onto status codes. Upstream failures are
// logged and answered with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "File not found or expired."
	case errors.Is(err, services.ErrNotFoundOrUnauthorized):
		status, message = http.StatusBadRequest, "File not found or unauthorized."
	case errors.Is(err, services.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, services.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, services.ErrForbidden):
		status, message = http.StatusForbidden, "Operation not permitted"
	case errors.Is(err, services.ErrInvalidInput):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrConflict):
		status, message = http.StatusConflict, "Conflict, please retry"
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	utils.JSONResponse(w, status, utils.Payload{Success: false, Message: message})
}
