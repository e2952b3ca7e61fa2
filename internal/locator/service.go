// Package locator answers location lookups: it snaps a query to the grid,
// reshapes the stored cell into a report and records the outcome.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/observability"
)

// buildTimeout bounds a shared cell read once no caller can cancel it.
const buildTimeout = 10 * time.Second

// Grid resolves query coordinates against the stored grid.
type Grid interface {
	Nearest(ctx context.Context, lat, lng float64) (domain.GridPoint, error)
	Cell(ctx context.Context, p domain.GridPoint) (domain.GridCell, error)
	Ping(ctx context.Context) error
}

// ReportCache stores reshaped reports by resolved grid point.
type ReportCache interface {
	Get(ctx context.Context, p domain.GridPoint) (*domain.PrecipitationReport, bool)
	Put(ctx context.Context, p domain.GridPoint, r *domain.PrecipitationReport)
}

// EventPublisher records lookups on the event stream.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LookupEvent) error
}

// Service composes grid resolution, reshaping and caching.
type Service struct {
	grid    Grid
	schema  *domain.Schema
	cache   ReportCache
	events  EventPublisher
	metrics *observability.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// Option configures optional collaborators.
type Option func(*Service)

// WithCache enables the report cache.
func WithCache(c ReportCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithEvents publishes one LookupEvent per lookup.
func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// New creates a Service over the given grid and schema.
func New(grid Grid, schema *domain.Schema, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		grid:    grid,
		schema:  schema,
		metrics: metrics,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the year and period layout reports are built with.
func (s *Service) Schema() *domain.Schema {
	return s.schema
}

// CheckReadiness reports whether the grid database is reachable.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if err := s.grid.Ping(ctx); err != nil {
		return fmt.Errorf("grid database: %w", err)
	}
	return nil
}

// Lookup returns the report for the grid cell nearest to q.
// Errors wrap domain.ErrBadRequest, domain.ErrNotFound or domain.ErrMissingField
// when the failure has one of those causes.
func (s *Service) Lookup(ctx context.Context, q domain.LocationQuery) (*domain.PrecipitationReport, error) {
	start := time.Now()
	query := domain.Coordinate{Lat: q.Lat, Lng: q.Lng}
	if !query.Valid() {
		err := fmt.Errorf("%w: coordinate %v,%v out of range", domain.ErrBadRequest, q.Lat, q.Lng)
		s.record(ctx, query, nil, false, err, start)
		return nil, err
	}

	p, err := s.grid.Nearest(ctx, q.Lat, q.Lng)
	if err != nil {
		s.record(ctx, query, nil, false, err, start)
		return nil, err
	}

	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, p); ok {
			s.metrics.ReportCache.WithLabelValues("hit").Inc()
			s.record(ctx, query, &p, true, nil, start)
			return report, nil
		}
		s.metrics.ReportCache.WithLabelValues("miss").Inc()
	}

	// The read is shared by every caller waiting on p, so it must outlive the
	// caller that started it. Each caller still stops waiting on its own ctx.
	ch := s.group.DoChan(p.Key(), func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()
		return s.build(bctx, p)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		err := fmt.Errorf("lookup %s: %w", p.Key(), ctx.Err())
		s.record(ctx, query, &p, false, err, start)
		return nil, err
	}
	if res.Shared {
		s.metrics.ReportCache.WithLabelValues("shared").Inc()
	}
	if res.Err != nil {
		s.record(ctx, query, &p, false, res.Err, start)
		return nil, res.Err
	}
	s.record(ctx, query, &p, false, nil, start)
	return res.Val.(*domain.PrecipitationReport), nil
}

func (s *Service) build(ctx context.Context, p domain.GridPoint) (*domain.PrecipitationReport, error) {
	cell, err := s.grid.Cell(ctx, p)
	if err != nil {
		return nil, err
	}
	report, err := domain.Reshape(cell, s.schema)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, p, report)
	}
	return report, nil
}

// record logs, counts and publishes the outcome of one lookup.
func (s *Service) record(ctx context.Context, query domain.Coordinate, resolved *domain.GridPoint, cacheHit bool, err error, start time.Time) {
	outcome := Outcome(err)
	s.metrics.LookupsTotal.WithLabelValues(outcome).Inc()
	s.metrics.LookupDuration.Observe(time.Since(start).Seconds())

	switch outcome {
	case domain.OutcomeIntegrityError:
		s.logger.Error("grid cell failed integrity check", "lat", query.Lat, "lng", query.Lng, "error", err)
	case domain.OutcomeError:
		s.logger.Error("location lookup failed", "lat", query.Lat, "lng", query.Lng, "error", err)
	default:
		s.logger.Debug("location lookup", "lat", query.Lat, "lng", query.Lng, "outcome", outcome, "cache_hit", cacheHit)
	}

	if s.events == nil || outcome == domain.OutcomeBadRequest {
		return
	}
	event := domain.NewLookupEvent(query, resolved, outcome, cacheHit)
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish lookup event failed", "id", event.ID, "error", err)
	}
}

// Outcome classifies a lookup error for metrics and events.
func Outcome(err error) string {
	switch {
	case err == nil:
		return domain.OutcomeOK
	case errors.Is(err, domain.ErrBadRequest):
		return domain.OutcomeBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return domain.OutcomeNotFound
	case errors.Is(err, domain.ErrMissingField):
		return domain.OutcomeIntegrityError
	case errors.Is(err, context.Canceled):
		return domain.OutcomeCanceled
	default:
		return domain.OutcomeError
	}
}
