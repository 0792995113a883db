package api

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/rohits-web03/peerlink/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/peerlink/internal/api/handlers"
	"github.com/rohits-web03/peerlink/internal/api/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

func SetupRouter(h *handlers.Handler, auth middleware.TokenAuthenticator, corsOpts cors.Options) http.Handler {
	mux := http.NewServeMux()
	c := cors.New(corsOpts)
	protected := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(fn)
	}

	// ---------- PUBLIC ROUTES ----------
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /docs/", httpSwagger.WrapHandler)

	mux.HandleFunc("POST /auth/signup", h.Signup)
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("GET /auth/check", h.CheckAuth)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("GET /auth/google/login", h.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", h.GoogleCallback)

	// session optional: guests upload too
	mux.HandleFunc("POST /files/upload", h.UploadFile)
	mux.HandleFunc("GET /files/download/{shareCode}", h.DownloadFile)
	mux.HandleFunc("GET /files/info/{shareCode}", h.FileInfo)

	// ---------- PROTECTED ROUTES ----------
	mux.Handle("GET /files/user/history", protected(h.UserHistory))
	mux.Handle("DELETE /files/user/delete/{shareCode}", protected(h.DeleteFile))
	mux.Handle("DELETE /auth/account", protected(h.DeleteAccount))

	log.Debug().Msg("router initialized")

	handler := middleware.Metrics(mux)
	handler = middleware.Authenticate(auth)(handler)
	handler = c.Handler(handler)
	handler = middleware.Logger(handler)
	return handler
}
