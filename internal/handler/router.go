// Package handler provides the HTTP surface of Alexander Gateway.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-gateway/internal/domain"
	"github.com/prn-tf/alexander-gateway/internal/identity"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Router handles HTTP routing for the gateway.
type Router struct {
	gateway       *GatewayHandler
	verifier      identity.Verifier
	readiness     ReadinessChecker
	endpointPath  string
	allowedOrigin string
	metrics       http.Handler
	metricsPath   string
	middlewares   []func(http.Handler) http.Handler
	logger        zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Gateway       *GatewayHandler
	Verifier      identity.Verifier
	Readiness     ReadinessChecker
	EndpointPath  string
	AllowedOrigin string

	// MetricsHandler is mounted at MetricsPath when both are set.
	MetricsHandler http.Handler
	MetricsPath    string

	// Middlewares wrap every route, after request ID and logging.
	Middlewares []func(http.Handler) http.Handler

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	endpoint := config.EndpointPath
	if endpoint == "" {
		endpoint = "/wasabi-storage"
	}
	return &Router{
		gateway:       config.Gateway,
		verifier:      config.Verifier,
		readiness:     config.Readiness,
		endpointPath:  endpoint,
		allowedOrigin: config.AllowedOrigin,
		metrics:       config.MetricsHandler,
		metricsPath:   config.MetricsPath,
		middlewares:   config.Middlewares,
		logger:        config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(rt.middlewares...)

	r.NotFound(rt.handleNotFound)
	r.MethodNotAllowed(rt.handleMethodNotAllowed)

	// Health checks (no auth)
	r.Get("/health", rt.handleHealth)
	r.Get("/ready", rt.handleReady)

	if rt.metrics != nil && rt.metricsPath != "" {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(CORS(rt.allowedOrigin))
		r.Use(identity.Middleware(rt.verifier, rt.gateway.Unauthorized))
		r.Options(rt.endpointPath, func(http.ResponseWriter, *http.Request) {})
		r.Method(http.MethodPost, rt.endpointPath, rt.gateway)
	})

	return r
}

// handleHealth handles liveness requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports 503 when the database cannot be reached.
func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if rt.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := rt.readiness.Ping(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Success: false, Error: "not found"})
}

// handleMethodNotAllowed keeps the uniform 400 shape for the gateway endpoint.
func (rt *Router) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == rt.endpointPath {
		writeError(w, domain.NewDomainError(domain.ErrValidation, "method not allowed", r.Method))
		return
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}
