// internal/api/v2/api.go
package api

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/neighbourly/canvass-go/internal/api/auth"
	"github.com/neighbourly/canvass-go/internal/claims"
	"github.com/neighbourly/canvass-go/internal/conf"
	"github.com/neighbourly/canvass-go/internal/geo"
	"github.com/neighbourly/canvass-go/internal/logging"
	"github.com/neighbourly/canvass-go/internal/observability"
	"github.com/neighbourly/canvass-go/internal/overlay"
)

// GeoProvider is the slice of the territory service client the API needs.
// *geo.Client satisfies it; tests substitute their own.
type GeoProvider interface {
	MeshblockBounds(ctx context.Context, query url.Values) (*overlay.FeatureCollection, error)
	PostcodeBounds(ctx context.Context, postcode string) ([]geo.Bounds, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Service  *claims.Service
	Overlay  *overlay.Overlay
	Geo      GeoProvider
	Settings *conf.Settings

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error

	metrics *observability.Metrics

	// Auth related fields (injected via functional options)
	authService    auth.Service
	authMiddleware echo.MiddlewareFunc

	startTime *time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithAuthMiddleware sets the authentication middleware for the controller.
func WithAuthMiddleware(mw echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.authMiddleware = mw
	}
}

// WithAuthService sets the authentication service for the controller.
func WithAuthService(svc auth.Service) Option {
	return func(c *Controller) {
		c.authService = svc
	}
}

// WithMetrics sets the shared metrics instance.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates a new API controller and registers its routes.
func New(e *echo.Echo, service *claims.Service, statusOverlay *overlay.Overlay,
	geoClient GeoProvider, settings *conf.Settings, logger *log.Logger, opts ...Option) (*Controller, error) {

	if logger == nil {
		logger = log.Default()
	}

	c := &Controller{
		Echo:     e,
		Service:  service,
		Overlay:  statusOverlay,
		Geo:      geoClient,
		Settings: settings,
		logger:   logger,
	}

	// Structured logger for API requests
	apiLogPath := "logs/web.log"
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)

	apiLogger, closeFunc, err := logging.NewFileLogger(apiLogPath, "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: Failed to initialize API structured logger: %v", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
		logger.Printf("API structured logging initialized to %s", apiLogPath)
	}

	// Apply functional options (auth middleware and service injected from serve command)
	for _, opt := range opts {
		opt(c)
	}

	if c.authService == nil {
		c.authService = auth.NewIdentityService(service.Domains())
	}
	if c.authMiddleware == nil {
		logger.Println("Warning: Auth middleware not configured")
	}

	// Create v2 API group
	c.Group = e.Group("/api/v2")

	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())

	now := time.Now()
	c.startTime = &now

	c.initRoutes()

	return c, nil
}

// LoggingMiddleware creates a middleware function that logs API requests
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			level := slog.LevelInfo
			if res.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			} else if res.Status >= http.StatusBadRequest {
				level = slog.LevelWarn
			}

			c.apiLogger.Log(req.Context(), level, "API request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", ctx.RealIP(),
			)

			return err
		}
	}
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	c.initMeshblockRoutes()
	c.initPostcodeRoutes()
	c.initDataEntryRoutes()

	// Metrics are only exposed when the web server runs in debug mode.
	if c.metrics != nil && c.Settings.WebServer.Debug {
		c.Group.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck handles GET /api/v2/health
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":    "healthy",
		"version":   c.Settings.Version,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	// Simple datastore connectivity probe
	dbStatus := "connected"
	if _, err := c.Service.ActiveClaimsFor(ctx.Request().Context(), []string{"health-check"}); err != nil {
		dbStatus = "disconnected"
		response["database_error"] = err.Error()
		response["status"] = "degraded"
	}
	response["database_status"] = dbStatus

	if c.startTime != nil {
		uptime := time.Since(*c.startTime)
		response["uptime"] = uptime.String()
		response["uptime_seconds"] = uptime.Seconds()
	}

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown performs cleanup of all resources used by the API controller
func (c *Controller) Shutdown() {
	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
}

// ErrorResponse is the error response structure
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	correlationID := generateCorrelationID()

	var errorStr string
	if err != nil {
		errorStr = err.Error()
	} else {
		errorStr = message
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}
}

// generateCorrelationID creates a unique identifier for error tracking
func generateCorrelationID() string {
	return uuid.NewString()[:8]
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)
	ip := ctx.RealIP()

	c.logger.Printf("API Error [%s] from %s: %s: %v", errorResp.CorrelationID, ip, message, err)

	if c.apiLogger != nil {
		c.apiLogger.Error("API Error",
			"correlation_id", errorResp.CorrelationID,
			"message", message,
			"error", errorResp.Error,
			"code", code,
			"path", ctx.Request().URL.Path,
			"method", ctx.Request().Method,
			"ip", ip,
		)
	}

	return ctx.JSON(code, errorResp)
}

// Debug logs debug messages when debug mode is enabled
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		c.logger.Printf("[DEBUG] "+format, v...)
	}
}
