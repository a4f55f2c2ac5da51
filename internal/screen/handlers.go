package screen

import (
	"context"
	"errors"
	"net/http"

	"SymptoScan/internal/config"
	"SymptoScan/internal/geolocation"
	"SymptoScan/internal/utility"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

const (
	cookieName     = "symptoscan_screen"
	cookieScreenID = "screen_id"
)

// InfoMessage is the body of the screen's info dialog.
const InfoMessage = "SymptoScan gives general information generated by an AI model. " +
	"It is not a medical diagnosis and does not replace a doctor. " +
	"If your symptoms are severe or getting worse, contact emergency services or a healthcare professional."

/* =================================================================================
							DTOs (Data Transfer Objects)
=================================================================================*/

// LocationReport is the device's own view of its location service.
type LocationReport struct {
	ServiceEnabled *bool    `json:"service_enabled,omitempty"`
	Permission     string   `json:"permission"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

// CreateScreenRequest opens a new screen.
type CreateScreenRequest struct {
	// ShareLocation is the user's answer to the location prompt, used by
	// locators that cannot read device permission directly.
	ShareLocation bool            `json:"share_location"`
	Location      *LocationReport `json:"location,omitempty"`
}

// SymptomsRequest carries the text of the input field.
type SymptomsRequest struct {
	Symptoms *string `json:"symptoms"`
}

// InfoResponse is the content of the info dialog.
type InfoResponse struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// LocatorFactory picks the location source for a new screen.
type LocatorFactory func(c echo.Context, req CreateScreenRequest) geolocation.Locator

// LocatorFromConfig returns the factory matching cfg.LocationProvider.
func LocatorFromConfig(cfg config.Config) LocatorFactory {
	switch cfg.LocationProvider {
	case config.LocationIP:
		return func(c echo.Context, req CreateScreenRequest) geolocation.Locator {
			return geolocation.NewIPLocator(cfg.IPLookupURL, utility.GetRealIP(c), req.ShareLocation)
		}
	case config.LocationStatic:
		pos := geolocation.Coordinate{Latitude: *cfg.StaticLatitude, Longitude: *cfg.StaticLongitude}
		return func(echo.Context, CreateScreenRequest) geolocation.Locator {
			return geolocation.StaticLocator{Position: pos}
		}
	case config.LocationNone:
		return func(echo.Context, CreateScreenRequest) geolocation.Locator {
			return geolocation.DisabledLocator{}
		}
	default:
		return reportedLocator
	}
}

func reportedLocator(_ echo.Context, req CreateScreenRequest) geolocation.Locator {
	r := req.Location
	if r == nil {
		return geolocation.ReportedLocator{}
	}
	loc := geolocation.ReportedLocator{
		Enabled:    r.ServiceEnabled == nil || *r.ServiceEnabled,
		Permission: geolocation.ParsePermission(r.Permission),
	}
	if r.Latitude != nil && r.Longitude != nil {
		loc.Position = &geolocation.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude}
	}
	return loc
}

// Handler serves the screen endpoints.
type Handler struct {
	registry   *Registry
	assessor   Assessor
	cookies    sessions.Store
	limiter    *utility.RateLimiter
	locatorFor LocatorFactory
}

// NewHandler wires the screen endpoints to their collaborators.
func NewHandler(registry *Registry, assessor Assessor, cookies sessions.Store, limiter *utility.RateLimiter, locatorFor LocatorFactory) *Handler {
	if locatorFor == nil {
		locatorFor = reportedLocator
	}
	return &Handler{
		registry:   registry,
		assessor:   assessor,
		cookies:    cookies,
		limiter:    limiter,
		locatorFor: locatorFor,
	}
}

/* =================================================================================
									HANDLERS
=================================================================================*/

// CreateScreenHandler opens a screen and makes its one location attempt.
func (h *Handler) CreateScreenHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	var req CreateScreenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	id := NewID()
	loc := geolocation.Acquire(c.Request().Context(), h.locatorFor(c, req), logger)

	s := New(id, h.assessor, loc, func(v View) { utility.TriggerRender(id, v) }, *logger)
	h.registry.Add(s)

	if h.cookies != nil {
		sess, _ := h.cookies.Get(c.Request(), cookieName)
		sess.Values[cookieScreenID] = id
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			logger.Warn().Err(err).Msg("Failed to save screen cookie")
		}
	}

	logger.Info().Str("screen_id", id).Bool("has_location", loc != nil).Msg("Screen created")
	return c.JSON(http.StatusCreated, s.View())
}

// GetScreenHandler returns the current view of a screen.
func (h *Handler) GetScreenHandler(c echo.Context) error {
	s, err := h.lookup(c)
	if err != nil {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, s.View())
}

// GetCurrentScreenHandler resolves the screen from the session cookie.
func (h *Handler) GetCurrentScreenHandler(c echo.Context) error {
	if h.cookies == nil {
		return notFound(c)
	}
	sess, err := h.cookies.Get(c.Request(), cookieName)
	if err != nil {
		return notFound(c)
	}
	id, _ := sess.Values[cookieScreenID].(string)
	s, err := h.registry.Get(id)
	if err != nil {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, s.View())
}

// UpdateSymptomsHandler replaces the input text.
func (h *Handler) UpdateSymptomsHandler(c echo.Context) error {
	s, err := h.lookup(c)
	if err != nil {
		return notFound(c)
	}

	var req SymptomsRequest
	if err := c.Bind(&req); err != nil || req.Symptoms == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Field 'symptoms' is required"})
	}

	view, err := s.SetSymptoms(*req.Symptoms)
	if errors.Is(err, ErrSubmissionInProgress) {
		return c.JSON(http.StatusConflict, view)
	}
	return c.JSON(http.StatusOK, view)
}

// SubmitHandler runs a submission and answers with the final view. A body
// with "symptoms" replaces the text as part of the same submission.
func (h *Handler) SubmitHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	s, err := h.lookup(c)
	if err != nil {
		return notFound(c)
	}

	var req SymptomsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	// Blank input is answered by the screen without spending quota.
	text := s.View().Symptoms
	if req.Symptoms != nil {
		text = *req.Symptoms
	}
	if h.limiter != nil && !IsBlank(text) {
		if err := h.limiter.CheckIPRateLimit(utility.GetRealIP(c)); err != nil {
			logger.Warn().Str("screen_id", s.ID()).Msg("Submission rate limited")
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		}
	}

	// A dropped connection must not abort the round trip.
	ctx := context.WithoutCancel(c.Request().Context())
	var view View
	if req.Symptoms != nil {
		view, err = s.SubmitText(ctx, *req.Symptoms)
	} else {
		view, err = s.Submit(ctx)
	}
	switch {
	case errors.Is(err, ErrSymptomsRequired):
		return c.JSON(http.StatusUnprocessableEntity, view)
	case errors.Is(err, ErrSubmissionInProgress):
		return c.JSON(http.StatusConflict, view)
	case view.Phase == PhaseError:
		return c.JSON(http.StatusBadGateway, view)
	}
	return c.JSON(http.StatusOK, view)
}

// DeleteScreenHandler disposes a screen.
func (h *Handler) DeleteScreenHandler(c echo.Context) error {
	if !h.registry.Dispose(c.Param("id")) {
		return notFound(c)
	}
	return c.NoContent(http.StatusNoContent)
}

// ScreenSocketHandler streams the view of a screen on every render.
func (h *Handler) ScreenSocketHandler(c echo.Context) error {
	logger := utility.GetLogger(c)

	s, err := h.lookup(c)
	if err != nil {
		return notFound(c)
	}

	conn, err := utility.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}

	utility.RegisterClient(s.ID(), conn)
	utility.TriggerRender(s.ID(), s.View())

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	utility.ReleaseClient(s.ID(), conn)
	return nil
}

// InfoHandler returns the info dialog content.
func (h *Handler) InfoHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, InfoResponse{Title: "About SymptoScan", Message: InfoMessage})
}

// LiveScreens reports how many screens are open.
func (h *Handler) LiveScreens() int {
	return h.registry.Len()
}

func (h *Handler) lookup(c echo.Context) (*Screen, error) {
	return h.registry.Get(c.Param("id"))
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": ErrScreenNotFound.Error()})
}
