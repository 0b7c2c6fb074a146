// Package server exposes the diary REST API under /api.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/health-diary/internal/errs"
	"github.com/and161185/health-diary/internal/guard"
	"github.com/and161185/health-diary/internal/service"
	"github.com/and161185/health-diary/internal/validate"
)

// Pinger reports storage health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Server. DB and Registry are optional.
type Deps struct {
	Auth      service.AuthService
	Diary     *service.DiaryService
	Validator *validate.Validator
	DB        Pinger
	Registry  *prometheus.Registry
	Logger    *zap.Logger
}

// Server wires services into echo handlers.
type Server struct {
	echo  *echo.Echo
	auth  service.AuthService
	diary *service.DiaryService
	db    Pinger
	log   *zap.Logger
}

// New constructs the HTTP server with routes and middleware installed.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Validator == nil {
		d.Validator = validate.New()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = d.Validator

	s := &Server{echo: e, auth: d.Auth, diary: d.Diary, db: d.DB, log: d.Logger}
	e.HTTPErrorHandler = s.handleError

	e.Use(NewMetrics(d.Registry).Middleware, Logging(d.Logger), Recover(d.Logger))

	e.GET("/healthz", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))

	api := e.Group("/api")
	api.POST("/auth/register", s.register)
	api.POST("/auth/login", s.login)

	fam := api.Group("/family", Auth(d.Auth))
	fam.GET("/entries", s.listEntries)
	fam.POST("/entries", s.createEntry)
	fam.PUT("/entries/:id", s.updateEntry)
	fam.POST("/entries/:id", s.updateEntry)
	fam.DELETE("/entries/:id", s.deleteEntry)
	fam.GET("/profiles", s.listProfiles)
	fam.POST("/profiles", s.createProfile)
	fam.PUT("/profiles/:id", s.updateProfile)
	fam.DELETE("/profiles/:id", s.deleteProfile)

	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.echo.Shutdown(ctx) }

func (s *Server) health(c echo.Context) error {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.Warn("health: database ping failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// handleError maps domain errors to HTTP statuses in one place.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}

func errorResponse(err error) (int, errorBody) {
	var (
		he *echo.HTTPError
		ve *validate.Error
		ce *guard.ConflictError
	)
	switch {
	case errors.As(err, &he):
		return he.Code, errorBody{Message: fmt.Sprint(he.Message)}
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Message: ve.Error(), Fields: ve.Fields}
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, errorBody{Message: err.Error()}
	case errors.As(err, &ce):
		return http.StatusConflict, errorBody{Message: ce.Error()}
	case errors.Is(err, errs.ErrReferentialConflict):
		return http.StatusConflict, errorBody{Message: "family member is still referenced by diary entries"}
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, errorBody{Message: "not found"}
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Message: "invalid credentials"}
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Message: "too many failed attempts, try again later"}
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Message: "email is already registered"}
	default:
		return http.StatusInternalServerError, errorBody{Message: "internal server error"}
	}
}
