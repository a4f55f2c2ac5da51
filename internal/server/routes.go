package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"https://*", "http://*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)
	e.GET("/info", s.screens.InfoHandler)

	// Screen lifecycle
	e.POST("/screens", s.screens.CreateScreenHandler)
	e.GET("/screen", s.screens.GetCurrentScreenHandler)
	e.GET("/screens/:id", s.screens.GetScreenHandler)
	e.PUT("/screens/:id/symptoms", s.screens.UpdateSymptomsHandler)
	e.POST("/screens/:id/submit", s.screens.SubmitHandler)
	e.DELETE("/screens/:id", s.screens.DeleteScreenHandler)

	// Websocket render stream
	e.GET("/screens/:id/ws", s.screens.ScreenSocketHandler)

	s.Echo = e
	return e
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()

		c.Set("logger", &logger)

		return next(c)
	}
}
