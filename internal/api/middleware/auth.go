package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rohits-web03/peerlink/internal/services"
	"github.com/rohits-web03/peerlink/internal/utils"
	"github.com/rs/zerolog/log"
)

// SessionCookie holds the signed session token.
const SessionCookie = "token"

type contextKey string

const principalKey contextKey = "principal"

type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*services.Principal, error)
}

// Authenticate resolves the session cookie, when present, into a principal on the
// request context. Requests without a valid session continue as guests.
func Authenticate(auth TokenAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			p, err := auth.Authenticate(r.Context(), cookie.Value)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
			case errors.Is(err, services.ErrUnauthenticated):
				next.ServeHTTP(w, r)
			default:
				log.Error().Err(err).Msg("failed to resolve session")
				utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
					Success: false,
					Message: "Internal server error",
				})
			}
		})
	}
}

// RequireAuth rejects guests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
				Success: false,
				Message: "Not authenticated",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p *services.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller, or nil for a guest.
func PrincipalFrom(ctx context.Context) *services.Principal {
	p, _ := ctx.Value(principalKey).(*services.Principal)
	return p
}
