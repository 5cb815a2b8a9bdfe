// Package httpapi exposes a REST control surface alongside the WebSocket
// subscription channel: a health check, a point-in-time state snapshot,
// device enumeration, and an action endpoint for callers that would
// rather poll/post than hold a socket open (scripts, MIDI bridges, curl).
package httpapi

import (
	"io"
	"log"
	"net/http"

	"github.com/gordonklaus/portaudio"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/directpipe/host/internal/control"
)

// Server serves the REST control surface.
type Server struct {
	broadcaster *control.Broadcaster
	dispatcher  *control.Dispatcher
	echo        *echo.Echo

	actionLimiter *rate.Limiter
}

// New constructs a Server and registers its routes. actionsPerSecond and
// actionBurst bound the rate of POST /api/action requests; callers over
// the limit receive 429.
func New(broadcaster *control.Broadcaster, dispatcher *control.Dispatcher, actionsPerSecond float64, actionBurst int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[httpapi] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{
		broadcaster:   broadcaster,
		dispatcher:    dispatcher,
		echo:          e,
		actionLimiter: rate.NewLimiter(rate.Limit(actionsPerSecond), actionBurst),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.GET("/api/devices", s.handleDevices)
	s.echo.POST("/api/action", s.handleAction, s.rateLimitAction)
}

// Handler returns the server's http.Handler so it can be mounted
// alongside other routes (e.g. the WebSocket upgrade endpoint) under a
// single listener.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) rateLimitAction(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.actionLimiter.Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many actions")
		}
		return next(c)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleState returns the same wire envelope published over the
// WebSocket channel, so a polling client and a subscribing client parse
// an identical schema.
func (s *Server) handleState(c echo.Context) error {
	data, err := s.broadcaster.ToJSON()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSONBlob(http.StatusOK, data)
}

// DeviceResponse is one element of the GET /api/devices array.
type DeviceResponse struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	MaxInputChannels  int     `json:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
}

func (s *Server) handleDevices(c echo.Context) error {
	devices, err := portaudio.Devices()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]DeviceResponse, 0, len(devices))
	for i, d := range devices {
		resp = append(resp, DeviceResponse{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

// handleAction accepts the same action message schema as the WebSocket
// channel's inbound messages and dispatches it to every listener.
func (s *Server) handleAction(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
	}
	event, err := control.ParseActionMessage(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.dispatcher.Dispatch(event)
	return c.NoContent(http.StatusNoContent)
}

// jsonErrorHandler ensures every error response has a consistent JSON
// body of the form {"error": "message"}.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if c.Response().Committed {
		return
	}
	if werr := c.JSON(code, map[string]string{"error": msg}); werr != nil {
		log.Printf("[httpapi] error writing error response: %v", werr)
	}
}
