package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/augurworld/augur/internal/config"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/observability"
	"github.com/augurworld/augur/internal/urlstate"
)

// gzipMinSize keeps single-cell reports, which are under a kilobyte, compressible.
const gzipMinSize = 256

// Locator answers location lookups and reports readiness.
type Locator interface {
	sharedobs.ReadinessChecker
	Lookup(ctx context.Context, q domain.LocationQuery) (*domain.PrecipitationReport, error)
}

// Server exposes the location API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	locator    Locator
	geocoder   domain.Geocoder
	codec      *urlstate.Codec
	validate   *validator.Validate
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the HTTP server. A nil geocoder disables /search and /place.
func NewServer(cfg *config.Config, locator Locator, geocoder domain.Geocoder, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	codec, err := urlstate.NewCodec(cfg.Grid.Years, cfg.Grid.OverlayPeriods, cfg.Grid.DefaultOverlayPeriod)
	if err != nil {
		return nil, fmt.Errorf("share codec: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		locator:  locator,
		geocoder: geocoder,
		codec:    codec,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  metrics,
		logger:   logger,
	}
	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}
	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      s.routes(gzip),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(gzip func(http.Handler) http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	// Order matters: recovery outermost, then request identity, then logging and metrics.
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(s.metricsMiddleware)
	r.Use(publicCORS())

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(s.locator))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return gzip(next) })

		r.Get("/location", s.handleLocation)
		r.Get("/api/location", s.handleLocation)
		r.Get("/location/download", s.handleDownload)
		r.Get("/search", s.handleSearch)
		r.Get("/place", s.handlePlace)
		r.Get("/share/qr", s.handleShareQR)
		r.Get("/config", s.handleConfig)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no such route")
	})
	return r
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
