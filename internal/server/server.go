/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the screen
service to its collaborators.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"SymptoScan/internal/config"
	"SymptoScan/internal/geminiservice"
	"SymptoScan/internal/screen"
	"SymptoScan/internal/utility"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// screens serves every screen endpoint.
	screens *screen.Handler

	// startTime is reported by the health endpoint.
	startTime time.Time

	// Echo is the underlying web framework instance.
	*echo.Echo
}

// New assembles the service from cfg.
func New(cfg config.Config) *Server {
	client := geminiservice.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.GeminiTimeout())
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; submissions will fail with an API key error")
	}

	orchestrator := geminiservice.NewOrchestrator(client, &log.Logger).
		WithConcurrentDispatch(cfg.DispatchMode == config.DispatchConcurrent)

	registry := screen.NewRegistry(cfg.MaxScreens, cfg.ScreenTTL(), utility.UnregisterClient)

	secret := cfg.SessionSecret
	if secret == "" {
		secret = screen.NewID()
		log.Warn().Msg("SESSION_SECRET is not set; using a random secret, screen cookies will not survive restarts")
	}
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(int(cfg.ScreenTTL().Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.IsProduction()
	store.Options.SameSite = http.SameSiteLaxMode

	limiter := utility.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow())

	return &Server{
		port:      cfg.Port,
		screens:   screen.NewHandler(registry, orchestrator, store, limiter, screen.LocatorFromConfig(cfg)),
		startTime: time.Now(),
	}
}

// NewServer initializes a new Server instance and returns a configured *http.Server.
func NewServer(cfg config.Config) *http.Server {
	newApp := New(cfg)

	// Reads are bounded; writes must outlast two sequential Gemini calls.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.GeminiTimeout() + 10*time.Second,
	}

	return server
}
